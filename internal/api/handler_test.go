// internal/api/handler_test.go
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github-issue-sentiment/internal/database"
	"github-issue-sentiment/internal/database/databasetest"
	"github-issue-sentiment/internal/model"
)

var repo = model.Repository{ID: 10, UserID: 1, FullName: "a/b", LastUpdateDt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}

func serve(t *testing.T, mockQ *databasetest.MockQuerier, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	router := NewRouter(mockQ, slog.New(slog.NewTextHandler(io.Discard, nil)))
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealthCheck(t *testing.T) {
	rec := serve(t, new(databasetest.MockQuerier), http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestGetRepository(t *testing.T) {
	t.Run("returns the repository with its watermark", func(t *testing.T) {
		mockQ := new(databasetest.MockQuerier)
		mockQ.On("GetRepositoryByFullName", mock.Anything, "a/b").Return(repo, nil).Once()

		rec := serve(t, mockQ, http.MethodGet, "/v1/repos/a/b", "")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"id":10,"user_id":1,"full_name":"a/b","last_update_dt":"2024-01-01T00:00:00Z"}`, rec.Body.String())
	})

	t.Run("returns 404 for an unknown repository", func(t *testing.T) {
		mockQ := new(databasetest.MockQuerier)
		mockQ.On("GetRepositoryByFullName", mock.Anything, "x/y").Return(model.Repository{}, pgx.ErrNoRows).Once()

		rec := serve(t, mockQ, http.MethodGet, "/v1/repos/x/y/issues", "")

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("returns 500 when the database fails", func(t *testing.T) {
		mockQ := new(databasetest.MockQuerier)
		mockQ.On("GetRepositoryByFullName", mock.Anything, "a/b").Return(model.Repository{}, errors.New("db down")).Once()

		rec := serve(t, mockQ, http.MethodGet, "/v1/repos/a/b", "")

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestGetIssues(t *testing.T) {
	t.Run("lists stored issues with sentiment", func(t *testing.T) {
		mockQ := new(databasetest.MockQuerier)
		issue := model.Issue{
			ID: 1, RepoID: 10, UserID: 100, Number: 7, State: model.IssueOpen,
			Title:     model.Text{RawText: "Great!", Sentiment: &model.Sentiment{AnalyzedText: "Great!", Polarity: 0.8, Subjectivity: 0.75}},
			Body:      model.Text{RawText: "Thanks!!!"},
			UpdatedAt: repo.LastUpdateDt,
		}
		mockQ.On("GetRepositoryByFullName", mock.Anything, "a/b").Return(repo, nil).Once()
		mockQ.On("ListIssuesByRepo", mock.Anything, int64(10)).Return([]model.Issue{issue}, nil).Once()

		rec := serve(t, mockQ, http.MethodGet, "/v1/repos/a/b/issues", "")

		require.Equal(t, http.StatusOK, rec.Code)
		var got []model.Issue
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		require.Len(t, got, 1)
		assert.Equal(t, 0.8, got[0].Title.Sentiment.Polarity)
		assert.Nil(t, got[0].Body.Sentiment)
	})

	t.Run("returns an empty list rather than null", func(t *testing.T) {
		mockQ := new(databasetest.MockQuerier)
		mockQ.On("GetRepositoryByFullName", mock.Anything, "a/b").Return(repo, nil).Once()
		mockQ.On("ListIssuesByRepo", mock.Anything, int64(10)).Return([]model.Issue(nil), nil).Once()

		rec := serve(t, mockQ, http.MethodGet, "/v1/repos/a/b/issues", "")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[]`, rec.Body.String())
	})
}

func TestGetComments(t *testing.T) {
	t.Run("lists the comments of an issue", func(t *testing.T) {
		mockQ := new(databasetest.MockQuerier)
		comments := []model.Comment{{ID: 501, IssueID: 1, UserID: 200, Body: model.Text{RawText: "+1"}}}
		mockQ.On("GetRepositoryByFullName", mock.Anything, "a/b").Return(repo, nil).Once()
		mockQ.On("GetIssueByNumber", mock.Anything, database.GetIssueByNumberParams{RepoID: 10, Number: 7}).Return(model.Issue{ID: 1}, nil).Once()
		mockQ.On("ListCommentsByIssue", mock.Anything, int64(1)).Return(comments, nil).Once()

		rec := serve(t, mockQ, http.MethodGet, "/v1/repos/a/b/issues/7/comments", "")

		require.Equal(t, http.StatusOK, rec.Code)
		var got []model.Comment
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, comments, got)
		mockQ.AssertExpectations(t)
	})

	t.Run("rejects a non-numeric issue number", func(t *testing.T) {
		mockQ := new(databasetest.MockQuerier)

		rec := serve(t, mockQ, http.MethodGet, "/v1/repos/a/b/issues/seven/comments", "")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		mockQ.AssertNotCalled(t, "GetRepositoryByFullName", mock.Anything, mock.Anything)
	})

	t.Run("returns 404 for an unknown issue", func(t *testing.T) {
		mockQ := new(databasetest.MockQuerier)
		mockQ.On("GetRepositoryByFullName", mock.Anything, "a/b").Return(repo, nil).Once()
		mockQ.On("GetIssueByNumber", mock.Anything, mock.Anything).Return(model.Issue{}, pgx.ErrNoRows).Once()

		rec := serve(t, mockQ, http.MethodGet, "/v1/repos/a/b/issues/99/comments", "")

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestCreateJob(t *testing.T) {
	t.Run("enqueues a job", func(t *testing.T) {
		mockQ := new(databasetest.MockQuerier)
		job := model.Job{ID: uuid.New(), Repo: "a/b", InsertedAt: 1700000000000}
		mockQ.On("CreateJob", mock.Anything, "a/b").Return(job, nil).Once()

		rec := serve(t, mockQ, http.MethodPost, "/v1/jobs", `{"repo":" a/b "}`)

		require.Equal(t, http.StatusCreated, rec.Code)
		var got model.Job
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, job, got)
	})

	t.Run("rejects a malformed repository", func(t *testing.T) {
		mockQ := new(databasetest.MockQuerier)

		for _, body := range []string{`{"repo":"nope"}`, `{}`, `not json`} {
			rec := serve(t, mockQ, http.MethodPost, "/v1/jobs", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		}
		mockQ.AssertNotCalled(t, "CreateJob", mock.Anything, mock.Anything)
	})
}
