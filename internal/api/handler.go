// internal/api/handler.go
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5"

	"github-issue-sentiment/internal/database"
	"github-issue-sentiment/internal/model"
	"github-issue-sentiment/internal/syncer"
)

// Handler is the container for API dependencies.
type Handler struct {
	db     database.Querier
	logger *slog.Logger
}

// NewRouter creates and configures a new chi router with all API routes.
func NewRouter(db database.Querier, logger *slog.Logger) http.Handler {
	h := &Handler{
		db:     db,
		logger: logger,
	}

	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", h.healthCheck)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/jobs", h.createJob)
		r.Route("/repos/{owner}/{name}", func(r chi.Router) {
			r.Get("/", h.getRepository)
			r.Get("/issues", h.getIssues)
			r.Get("/issues/{number}/comments", h.getComments)
		})
	})

	return r
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type createJobRequest struct {
	Repo string `json:"repo"`
}

// createJob enqueues a sync of one repository.
// POST /v1/jobs {"repo": "owner/name"}
func (h *Handler) createJob(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	id, err := syncer.ParseRepoIdentifier(req.Repo)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	job, err := h.db.CreateJob(r.Context(), id.String())
	if err != nil {
		h.logger.Error("Failed to create job", "repo", id.String(), "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	h.logger.Info("Job enqueued", "job_id", job.ID, "repo", job.Repo)
	respondWithJSON(w, http.StatusCreated, job)
}

// getRepository returns the repository with its sync watermark.
// GET /v1/repos/{owner}/{name}
func (h *Handler) getRepository(w http.ResponseWriter, r *http.Request) {
	repo, ok := h.lookupRepository(w, r)
	if !ok {
		return
	}
	respondWithJSON(w, http.StatusOK, repo)
}

// getIssues handles the request to retrieve stored issues for a repository.
// GET /v1/repos/{owner}/{name}/issues
func (h *Handler) getIssues(w http.ResponseWriter, r *http.Request) {
	repo, ok := h.lookupRepository(w, r)
	if !ok {
		return
	}

	issues, err := h.db.ListIssuesByRepo(r.Context(), repo.ID)
	if err != nil {
		h.logger.Error("Failed to get issues", "repo_id", repo.ID, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if issues == nil {
		issues = []model.Issue{}
	}
	respondWithJSON(w, http.StatusOK, issues)
}

// getComments handles the request to retrieve the comments of one issue.
// GET /v1/repos/{owner}/{name}/issues/{number}/comments
func (h *Handler) getComments(w http.ResponseWriter, r *http.Request) {
	number, err := strconv.Atoi(chi.URLParam(r, "number"))
	if err != nil || number <= 0 {
		respondWithError(w, http.StatusBadRequest, "Invalid issue number")
		return
	}

	repo, ok := h.lookupRepository(w, r)
	if !ok {
		return
	}

	issue, err := h.db.GetIssueByNumber(r.Context(), database.GetIssueByNumberParams{RepoID: repo.ID, Number: number})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			respondWithError(w, http.StatusNotFound, "Issue not found")
			return
		}
		h.logger.Error("Failed to get issue", "repo_id", repo.ID, "number", number, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	comments, err := h.db.ListCommentsByIssue(r.Context(), issue.ID)
	if err != nil {
		h.logger.Error("Failed to get comments", "issue_id", issue.ID, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if comments == nil {
		comments = []model.Comment{}
	}
	respondWithJSON(w, http.StatusOK, comments)
}

// lookupRepository writes the error response itself when it returns false.
func (h *Handler) lookupRepository(w http.ResponseWriter, r *http.Request) (model.Repository, bool) {
	fullName := chi.URLParam(r, "owner") + "/" + chi.URLParam(r, "name")

	repo, err := h.db.GetRepositoryByFullName(r.Context(), fullName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			respondWithError(w, http.StatusNotFound, "Repository not found")
			return model.Repository{}, false
		}
		h.logger.Error("Failed to get repository", "repo", fullName, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return model.Repository{}, false
	}
	return repo, true
}
