// internal/model/validate.go
package model

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

func (u User) Validate() error {
	if u.ID <= 0 {
		return errors.New("id is required")
	}
	if u.Login == "" {
		return errors.New("login is required")
	}
	return nil
}

func (r Repository) Validate() error {
	if r.ID <= 0 {
		return errors.New("id is required")
	}
	if r.UserID <= 0 {
		return errors.New("user_id is required")
	}
	owner, name, ok := strings.Cut(r.FullName, "/")
	if !ok || owner == "" || name == "" {
		return fmt.Errorf("full_name %q is not in 'owner/name' form", r.FullName)
	}
	if r.LastUpdateDt.IsZero() {
		return errors.New("last_update_dt is required")
	}
	return nil
}

func (i Issue) Validate() error {
	switch {
	case i.ID <= 0:
		return errors.New("id is required")
	case i.RepoID <= 0:
		return errors.New("repo_id is required")
	case i.UserID <= 0:
		return errors.New("user_id is required")
	case i.Number <= 0:
		return errors.New("number is required")
	case i.UpdatedAt.IsZero():
		return errors.New("updated_at is required")
	}
	if i.State != IssueOpen && i.State != IssueClosed {
		return fmt.Errorf("state %q is not one of open, closed", i.State)
	}
	if err := i.Title.Validate(); err != nil {
		return fmt.Errorf("title: %w", err)
	}
	if err := i.Body.Validate(); err != nil {
		return fmt.Errorf("body: %w", err)
	}
	return nil
}

func (c Comment) Validate() error {
	switch {
	case c.ID <= 0:
		return errors.New("id is required")
	case c.IssueID <= 0:
		return errors.New("issue_id is required")
	case c.UserID <= 0:
		return errors.New("user_id is required")
	}
	if err := c.Body.Validate(); err != nil {
		return fmt.Errorf("body: %w", err)
	}
	return nil
}

// Validate accepts a missing sentiment; a present one must honour the classifier contract.
func (t Text) Validate() error {
	if t.Sentiment == nil {
		return nil
	}
	return t.Sentiment.Validate()
}

func (s Sentiment) Validate() error {
	if err := checkScores(s.Polarity, s.Subjectivity); err != nil {
		return err
	}
	for i, b := range s.Breakdown {
		if err := checkScores(b.Polarity, b.Subjectivity); err != nil {
			return fmt.Errorf("breakdown[%d]: %w", i, err)
		}
	}
	return nil
}

func checkScores(polarity, subjectivity float64) error {
	if math.IsNaN(polarity) || polarity < -1 || polarity > 1 {
		return fmt.Errorf("polarity %v outside [-1, 1]", polarity)
	}
	if math.IsNaN(subjectivity) || subjectivity < 0 || subjectivity > 1 {
		return fmt.Errorf("subjectivity %v outside [0, 1]", subjectivity)
	}
	return nil
}
