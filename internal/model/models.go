// internal/model/models.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// MinWatermark is the watermark a repository starts with before its first sync.
var MinWatermark = time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC)

// Job is a pending request to sync one repository.
type Job struct {
	ID         uuid.UUID `json:"id"`
	Repo       string    `json:"repo"`
	InsertedAt int64     `json:"inserted_at"`
}

// User is a GitHub account that authored an issue or comment, or owns a repository.
type User struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
}

// Repository carries the sync watermark for one tracked repository.
type Repository struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	FullName     string    `json:"full_name"`
	LastUpdateDt time.Time `json:"last_update_dt"`
}

type IssueState string

const (
	IssueOpen   IssueState = "open"
	IssueClosed IssueState = "closed"
)

// Issue is a stored issue or pull request.
type Issue struct {
	ID        int64      `json:"id"`
	RepoID    int64      `json:"repo_id"`
	UserID    int64      `json:"user_id"`
	Number    int        `json:"number"`
	State     IssueState `json:"state"`
	IsPR      bool       `json:"is_pr"`
	Title     Text       `json:"title"`
	Body      Text       `json:"body"`
	UpdatedAt time.Time  `json:"updated_at"`
}

type Comment struct {
	ID        int64     `json:"id"`
	IssueID   int64     `json:"issue_id"`
	UserID    int64     `json:"user_id"`
	Body      Text      `json:"body"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Text is a free-text field together with its enrichment.
// Sentiment is nil when the classifier could not score the text.
type Text struct {
	RawText   string     `json:"raw_text"`
	Sentiment *Sentiment `json:"sentiment"`
}

// Sentiment is the classifier output for one piece of text.
type Sentiment struct {
	AnalyzedText string              `json:"analyzed_text"`
	Polarity     float64             `json:"polarity"`
	Subjectivity float64             `json:"subjectivity"`
	Breakdown    []SentenceSentiment `json:"breakdown"`
}

type SentenceSentiment struct {
	Sentence     string  `json:"sentence"`
	Polarity     float64 `json:"polarity"`
	Subjectivity float64 `json:"subjectivity"`
}
