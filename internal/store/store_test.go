// internal/store/store_test.go
package store

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github-issue-sentiment/internal/database"
	"github-issue-sentiment/internal/database/databasetest"
	custom_errors "github-issue-sentiment/internal/errors"
	"github-issue-sentiment/internal/model"
)

func newTestTx() (*Tx, *databasetest.MockQuerier) {
	mockQ := new(databasetest.MockQuerier)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return NewTx(mockQ, logger), mockQ
}

func TestTx_ValidationGating(t *testing.T) {
	ctx := context.Background()
	updated := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("writes a valid issue", func(t *testing.T) {
		tx, mockQ := newTestTx()
		issue := model.Issue{ID: 1, RepoID: 2, UserID: 3, Number: 7, State: model.IssueClosed, UpdatedAt: updated}
		mockQ.On("UpsertIssue", ctx, issue).Return(nil).Once()

		err := tx.UpsertIssue(ctx, issue)

		assert.NoError(t, err)
		mockQ.AssertExpectations(t)
	})

	t.Run("drops an issue missing a required field", func(t *testing.T) {
		tx, mockQ := newTestTx()
		issue := model.Issue{ID: 1, RepoID: 2, Number: 7, State: model.IssueOpen, UpdatedAt: updated}

		err := tx.UpsertIssue(ctx, issue)

		var vErr *custom_errors.ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, "issue", vErr.Entity)
		assert.Equal(t, int64(1), vErr.ID)
		mockQ.AssertNotCalled(t, "UpsertIssue", mock.Anything, mock.Anything)
	})

	t.Run("keeps valid siblings of an invalid comment", func(t *testing.T) {
		tx, mockQ := newTestTx()
		good := model.Comment{ID: 10, IssueID: 1, UserID: 3}
		bad := model.Comment{ID: 11, IssueID: 1}
		mockQ.On("UpsertComment", ctx, good).Return(nil).Once()

		errs := []error{tx.UpsertComment(ctx, bad), tx.UpsertComment(ctx, good)}

		assert.Error(t, errs[0])
		assert.NoError(t, errs[1])
		mockQ.AssertExpectations(t)
		mockQ.AssertNotCalled(t, "UpsertComment", ctx, bad)
	})

	t.Run("rejects a user without login and a repository without owner", func(t *testing.T) {
		tx, mockQ := newTestTx()

		assert.Error(t, tx.UpsertUser(ctx, model.User{ID: 5}))
		assert.Error(t, tx.UpsertRepository(ctx, model.Repository{ID: 1, FullName: "a/b", LastUpdateDt: model.MinWatermark}))
		mockQ.AssertNotCalled(t, "UpsertUser", mock.Anything, mock.Anything)
		mockQ.AssertNotCalled(t, "UpsertRepository", mock.Anything, mock.Anything)
	})

	t.Run("surfaces database errors unchanged", func(t *testing.T) {
		tx, mockQ := newTestTx()
		dbError := errors.New("connection reset")
		user := model.User{ID: 5, Login: "octocat"}
		mockQ.On("UpsertUser", ctx, user).Return(dbError).Once()

		err := tx.UpsertUser(ctx, user)

		assert.Equal(t, dbError, err)
	})
}

func TestTx_AdvanceWatermark(t *testing.T) {
	ctx := context.Background()
	to := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("returns the stored watermark", func(t *testing.T) {
		tx, mockQ := newTestTx()
		later := to.Add(time.Hour)
		mockQ.On("AdvanceWatermark", ctx, database.AdvanceWatermarkParams{ID: 9, LastUpdateDt: to}).Return(later, nil).Once()

		wm, err := tx.AdvanceWatermark(ctx, 9, to)

		require.NoError(t, err)
		assert.Equal(t, later, wm)
	})

	t.Run("reports a missing repository", func(t *testing.T) {
		tx, mockQ := newTestTx()
		mockQ.On("AdvanceWatermark", ctx, mock.Anything).Return(time.Time{}, pgx.ErrNoRows).Once()

		_, err := tx.AdvanceWatermark(ctx, 9, to)

		assert.ErrorIs(t, err, ErrNotFound)
	})
}
