package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bkyoung/pr-optimizer/internal/domain"
	"github.com/bkyoung/pr-optimizer/internal/store"
)

const defaultListLimit = 50

type pullRequestResponse struct {
	ID         int64     `json:"id"`
	ExternalID int64     `json:"external_id"`
	Number     int       `json:"number"`
	RepoName   string    `json:"repo_name"`
	Title      string    `json:"title"`
	URL        string    `json:"url"`
	HeadSHA    string    `json:"head_sha"`
	BaseSHA    string    `json:"base_sha"`
	Author     string    `json:"author"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type fileResponse struct {
	ID           int64  `json:"id"`
	Filename     string `json:"filename"`
	ChangeStatus string `json:"change_status"`
	Language     string `json:"language,omitempty"`
	HasContent   bool   `json:"has_content"`
	Additions    int    `json:"additions"`
	Deletions    int    `json:"deletions"`
	Changes      int    `json:"changes"`
}

type suggestionResponse struct {
	ID                string             `json:"id"`
	FileID            int64              `json:"file_id"`
	OpportunityType   string             `json:"opportunity_type"`
	Location          string             `json:"location"`
	Description       string             `json:"description"`
	Severity          string             `json:"severity"`
	OriginalCode      string             `json:"original_code"`
	OptimizedCode     string             `json:"optimized_code"`
	Explanation       string             `json:"explanation,omitempty"`
	Status            string             `json:"status"`
	ExternalCommentID int64              `json:"external_comment_id,omitempty"`
	Metrics           map[string]float64 `json:"metrics,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListPulls(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	pulls, err := s.pulls.List(r.Context(), limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to list pull requests")
		return
	}

	out := make([]pullRequestResponse, len(pulls))
	for i, pr := range pulls {
		out[i] = toPullRequestResponse(pr)
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetPull(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	pr, err := s.pulls.GetByID(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toPullRequestResponse(pr))
}

func (s *Server) handleGetPullByNumber(w http.ResponseWriter, r *http.Request) {
	repo := chi.URLParam(r, "owner") + "/" + chi.URLParam(r, "repo")
	number, err := strconv.Atoi(chi.URLParam(r, "number"))
	if err != nil || number < 1 {
		s.writeError(w, http.StatusBadRequest, "pull request number must be a positive integer")
		return
	}

	pr, err := s.pulls.GetByRepoAndNumber(r.Context(), repo, number)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toPullRequestResponse(pr))
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	if _, err := s.pulls.GetByID(r.Context(), id); err != nil {
		s.writeStoreError(w, err)
		return
	}

	files, err := s.files.ListFilesByPullRequest(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to list files")
		return
	}

	out := make([]fileResponse, len(files))
	for i, f := range files {
		out[i] = fileResponse{
			ID:           f.ID,
			Filename:     f.Filename,
			ChangeStatus: f.ChangeStatus,
			Language:     f.Language,
			HasContent:   f.HasContent(),
			Additions:    f.Additions,
			Deletions:    f.Deletions,
			Changes:      f.Changes,
		}
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListSuggestions(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	if _, err := s.pulls.GetByID(r.Context(), id); err != nil {
		s.writeStoreError(w, err)
		return
	}

	suggestions, err := s.suggestions.ListSuggestionsByPullRequest(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to list suggestions")
		return
	}

	out := make([]suggestionResponse, len(suggestions))
	for i, sg := range suggestions {
		out[i] = suggestionResponse{
			ID:                sg.ID,
			FileID:            sg.FileID,
			OpportunityType:   sg.OpportunityType,
			Location:          sg.Location.String(),
			Description:       sg.Description,
			Severity:          sg.Severity,
			OriginalCode:      sg.OriginalCode,
			OptimizedCode:     sg.OptimizedCode,
			Explanation:       sg.Explanation,
			Status:            sg.Status,
			ExternalCommentID: sg.ExternalCommentID,
			Metrics:           sg.Metrics,
		}
	}
	s.writeJSON(w, http.StatusOK, out)
}

func toPullRequestResponse(pr domain.PullRequest) pullRequestResponse {
	return pullRequestResponse{
		ID:         pr.ID,
		ExternalID: pr.ExternalID,
		Number:     pr.Number,
		RepoName:   pr.RepoName,
		Title:      pr.Title,
		URL:        pr.URL,
		HeadSHA:    pr.HeadSHA,
		BaseSHA:    pr.BaseSHA,
		Author:     pr.Author,
		Status:     string(pr.Status),
		CreatedAt:  pr.CreatedAt,
		UpdatedAt:  pr.UpdatedAt,
	}
}

func (s *Server) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		s.writeError(w, http.StatusBadRequest, "id must be a positive integer")
		return 0, false
	}
	return id, true
}

func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}
	s.writeError(w, http.StatusInternalServerError, "query failed")
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.LogError(context.Background(), "failed to encode response", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
