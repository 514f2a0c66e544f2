// internal/model/validate_test.go
package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validIssue() Issue {
	return Issue{
		ID:        1,
		RepoID:    10,
		UserID:    100,
		Number:    7,
		State:     IssueOpen,
		Title:     Text{RawText: "Great!"},
		Body:      Text{RawText: "Thanks!!!"},
		UpdatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestIssue_Validate(t *testing.T) {
	t.Run("accepts a complete issue without sentiment", func(t *testing.T) {
		assert.NoError(t, validIssue().Validate())
	})

	cases := map[string]func(i *Issue){
		"missing id":      func(i *Issue) { i.ID = 0 },
		"missing repo":    func(i *Issue) { i.RepoID = 0 },
		"missing author":  func(i *Issue) { i.UserID = 0 },
		"missing number":  func(i *Issue) { i.Number = 0 },
		"unknown state":   func(i *Issue) { i.State = "merged" },
		"no updated time": func(i *Issue) { i.UpdatedAt = time.Time{} },
		"bad title score": func(i *Issue) { i.Title.Sentiment = &Sentiment{Polarity: 1.5} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			issue := validIssue()
			mutate(&issue)
			assert.Error(t, issue.Validate())
		})
	}
}

func TestSentiment_Validate(t *testing.T) {
	ok := Sentiment{
		Polarity:     0.8,
		Subjectivity: 0.75,
		Breakdown:    []SentenceSentiment{{Sentence: "Great!", Polarity: 1, Subjectivity: 0.75}},
	}
	assert.NoError(t, ok.Validate())

	badSentence := ok
	badSentence.Breakdown = []SentenceSentiment{{Sentence: "x", Polarity: 0, Subjectivity: -0.1}}
	assert.ErrorContains(t, badSentence.Validate(), "breakdown[0]")
}

func TestRepository_Validate(t *testing.T) {
	repo := Repository{ID: 1, UserID: 2, FullName: "a/b", LastUpdateDt: MinWatermark}
	assert.NoError(t, repo.Validate())

	repo.FullName = "a/"
	assert.Error(t, repo.Validate())
}

func TestComment_Validate(t *testing.T) {
	assert.NoError(t, Comment{ID: 1, IssueID: 2, UserID: 3}.Validate())
	assert.Error(t, Comment{ID: 1, UserID: 3}.Validate())
	assert.Error(t, User{ID: 3}.Validate())
}
