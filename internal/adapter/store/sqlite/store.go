package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bkyoung/pr-optimizer/internal/domain"
	"github.com/bkyoung/pr-optimizer/internal/store"
	_ "github.com/mattn/go-sqlite3"
)

// Store implements the store.Store interface using SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore creates a new SQLite store at the given path.
// Use ":memory:" for in-memory database (useful for testing).
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &Store{db: db, now: time.Now}

	if err := s.createSchema(); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return s, nil
}

// createSchema creates all tables and indexes if they don't exist.
func (s *Store) createSchema() error {
	schema := `
	-- Tracked pull requests; rows are never hard-deleted, status moves
	-- to 'closed' instead.
	CREATE TABLE IF NOT EXISTS pull_requests (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		external_id INTEGER NOT NULL,
		number INTEGER NOT NULL,
		repo_name TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		url TEXT NOT NULL,
		head_sha TEXT NOT NULL,
		base_sha TEXT NOT NULL,
		author TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending'
			CHECK(status IN ('pending','processing','optimized','completed','error','closed')),
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		UNIQUE(external_id, repo_name)
	);

	-- Files touched by a pull request; content fetched lazily.
	CREATE TABLE IF NOT EXISTS pr_files (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		pull_request_id INTEGER NOT NULL,
		filename TEXT NOT NULL,
		change_status TEXT NOT NULL,
		language TEXT,
		content TEXT,
		additions INTEGER NOT NULL DEFAULT 0,
		deletions INTEGER NOT NULL DEFAULT 0,
		changes INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		UNIQUE(pull_request_id, filename),
		FOREIGN KEY (pull_request_id) REFERENCES pull_requests(id) ON DELETE CASCADE
	);

	-- Generated optimization suggestions.
	CREATE TABLE IF NOT EXISTS suggestions (
		suggestion_id TEXT PRIMARY KEY,
		pull_request_id INTEGER NOT NULL,
		file_id INTEGER NOT NULL,
		opportunity_type TEXT NOT NULL,
		location TEXT NOT NULL,
		description TEXT NOT NULL,
		severity TEXT NOT NULL,
		original_code TEXT NOT NULL,
		optimized_code TEXT NOT NULL,
		explanation TEXT,
		status TEXT NOT NULL DEFAULT 'pending'
			CHECK(status IN ('pending','commented','accepted','rejected')),
		external_comment_id INTEGER,
		metrics TEXT,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (pull_request_id) REFERENCES pull_requests(id) ON DELETE CASCADE,
		FOREIGN KEY (file_id) REFERENCES pr_files(id) ON DELETE CASCADE
	);

	-- Human review outcomes feeding the feedback-driven backend.
	CREATE TABLE IF NOT EXISTS suggestion_feedback (
		feedback_id INTEGER PRIMARY KEY AUTOINCREMENT,
		suggestion_id TEXT NOT NULL,
		status TEXT NOT NULL CHECK(status IN ('accepted', 'rejected')),
		timestamp INTEGER NOT NULL,
		FOREIGN KEY (suggestion_id) REFERENCES suggestions(suggestion_id) ON DELETE CASCADE
	);

	-- Indexes for performance
	CREATE INDEX IF NOT EXISTS idx_pull_requests_repo_number ON pull_requests(repo_name, number);
	CREATE INDEX IF NOT EXISTS idx_pr_files_pull_request ON pr_files(pull_request_id);
	CREATE INDEX IF NOT EXISTS idx_suggestions_pull_request ON suggestions(pull_request_id);
	CREATE INDEX IF NOT EXISTS idx_suggestions_file ON suggestions(file_id);
	CREATE INDEX IF NOT EXISTS idx_feedback_suggestion ON suggestion_feedback(suggestion_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// CreateOrUpdate upserts a pull request keyed on (external_id, repo_name).
// A fresh upsert re-enters the 'pending' state so a new pipeline run can
// begin; row identity is preserved across updates.
func (s *Store) CreateOrUpdate(ctx context.Context, in domain.PullRequestInput) (domain.PullRequest, error) {
	if err := in.Validate(); err != nil {
		return domain.PullRequest{}, err
	}

	now := s.now().Unix()
	query := `
		INSERT INTO pull_requests (external_id, number, repo_name, title, url, head_sha, base_sha, author, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 'pending', ?, ?)
		ON CONFLICT(external_id, repo_name) DO UPDATE SET
			number = excluded.number,
			title = excluded.title,
			url = excluded.url,
			head_sha = excluded.head_sha,
			base_sha = excluded.base_sha,
			author = excluded.author,
			status = 'pending',
			updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		in.ExternalID,
		in.Number,
		in.RepoName,
		in.Title,
		in.URL,
		in.HeadSHA,
		in.BaseSHA,
		in.Author,
		now,
		now,
	)
	if err != nil {
		return domain.PullRequest{}, fmt.Errorf("failed to upsert pull request: %w", err)
	}

	return s.getPullRequest(ctx, `external_id = ? AND repo_name = ?`, in.ExternalID, in.RepoName)
}

// UpdateStatus writes the lifecycle status for one pull request row.
func (s *Store) UpdateStatus(ctx context.Context, id int64, status domain.Status) error {
	if !status.Valid() {
		return fmt.Errorf("%w: unknown status %q", domain.ErrValidation, status)
	}

	query := `UPDATE pull_requests SET status = ?, updated_at = ? WHERE id = ?`
	result, err := s.db.ExecContext(ctx, query, string(status), s.now().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("pull request %d: %w", id, store.ErrNotFound)
	}

	return nil
}

const pullRequestColumns = `id, external_id, number, repo_name, title, url, head_sha, base_sha, author, status, created_at, updated_at`

// GetByID retrieves a pull request by primary id.
func (s *Store) GetByID(ctx context.Context, id int64) (domain.PullRequest, error) {
	return s.getPullRequest(ctx, `id = ?`, id)
}

// GetByRepoAndNumber retrieves a pull request by repository and number.
func (s *Store) GetByRepoAndNumber(ctx context.Context, repo string, number int) (domain.PullRequest, error) {
	return s.getPullRequest(ctx, `repo_name = ? AND number = ?`, repo, number)
}

func (s *Store) getPullRequest(ctx context.Context, where string, args ...interface{}) (domain.PullRequest, error) {
	query := `SELECT ` + pullRequestColumns + ` FROM pull_requests WHERE ` + where

	var pr domain.PullRequest
	var status string
	var createdAt, updatedAt int64

	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&pr.ID,
		&pr.ExternalID,
		&pr.Number,
		&pr.RepoName,
		&pr.Title,
		&pr.URL,
		&pr.HeadSHA,
		&pr.BaseSHA,
		&pr.Author,
		&status,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.PullRequest{}, fmt.Errorf("pull request: %w", store.ErrNotFound)
		}
		return domain.PullRequest{}, fmt.Errorf("failed to get pull request: %w", err)
	}

	pr.Status = domain.Status(status)
	pr.CreatedAt = time.Unix(createdAt, 0)
	pr.UpdatedAt = time.Unix(updatedAt, 0)
	return pr, nil
}

// List retrieves the most recently updated pull requests, limited by count.
func (s *Store) List(ctx context.Context, limit int) ([]domain.PullRequest, error) {
	query := `SELECT ` + pullRequestColumns + ` FROM pull_requests ORDER BY updated_at DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pull requests: %w", err)
	}
	defer rows.Close()

	var pulls []domain.PullRequest
	for rows.Next() {
		var pr domain.PullRequest
		var status string
		var createdAt, updatedAt int64

		if err := rows.Scan(
			&pr.ID,
			&pr.ExternalID,
			&pr.Number,
			&pr.RepoName,
			&pr.Title,
			&pr.URL,
			&pr.HeadSHA,
			&pr.BaseSHA,
			&pr.Author,
			&status,
			&createdAt,
			&updatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan pull request: %w", err)
		}

		pr.Status = domain.Status(status)
		pr.CreatedAt = time.Unix(createdAt, 0)
		pr.UpdatedAt = time.Unix(updatedAt, 0)
		pulls = append(pulls, pr)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pull requests: %w", err)
	}

	return pulls, nil
}

// UpsertFile upserts a file record keyed on (pull_request_id, filename).
func (s *Store) UpsertFile(ctx context.Context, file domain.PRFile) (domain.PRFile, error) {
	now := s.now().Unix()
	query := `
		INSERT INTO pr_files (pull_request_id, filename, change_status, language, content, additions, deletions, changes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(pull_request_id, filename) DO UPDATE SET
			change_status = excluded.change_status,
			language = excluded.language,
			content = excluded.content,
			additions = excluded.additions,
			deletions = excluded.deletions,
			changes = excluded.changes,
			updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		file.PullRequestID,
		file.Filename,
		file.ChangeStatus,
		nullString(file.Language),
		nullString(file.Content),
		file.Additions,
		file.Deletions,
		file.Changes,
		now,
		now,
	)
	if err != nil {
		return domain.PRFile{}, fmt.Errorf("failed to upsert file: %w", err)
	}

	return s.getFile(ctx, `pull_request_id = ? AND filename = ?`, file.PullRequestID, file.Filename)
}

const fileColumns = `id, pull_request_id, filename, change_status, language, content, additions, deletions, changes, created_at, updated_at`

// GetFileByID retrieves a file record by primary id.
func (s *Store) GetFileByID(ctx context.Context, id int64) (domain.PRFile, error) {
	return s.getFile(ctx, `id = ?`, id)
}

func (s *Store) getFile(ctx context.Context, where string, args ...interface{}) (domain.PRFile, error) {
	query := `SELECT ` + fileColumns + ` FROM pr_files WHERE ` + where

	file, err := scanFile(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.PRFile{}, fmt.Errorf("file: %w", store.ErrNotFound)
		}
		return domain.PRFile{}, fmt.Errorf("failed to get file: %w", err)
	}
	return file, nil
}

// ListFilesByPullRequest retrieves all file records for a pull request.
func (s *Store) ListFilesByPullRequest(ctx context.Context, pullRequestID int64) ([]domain.PRFile, error) {
	query := `SELECT ` + fileColumns + ` FROM pr_files WHERE pull_request_id = ? ORDER BY filename ASC`

	rows, err := s.db.QueryContext(ctx, query, pullRequestID)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	defer rows.Close()

	var files []domain.PRFile
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan file: %w", err)
		}
		files = append(files, file)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating files: %w", err)
	}

	return files, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanFile(row rowScanner) (domain.PRFile, error) {
	var file domain.PRFile
	var language, content sql.NullString
	var createdAt, updatedAt int64

	if err := row.Scan(
		&file.ID,
		&file.PullRequestID,
		&file.Filename,
		&file.ChangeStatus,
		&language,
		&content,
		&file.Additions,
		&file.Deletions,
		&file.Changes,
		&createdAt,
		&updatedAt,
	); err != nil {
		return domain.PRFile{}, err
	}

	file.Language = language.String
	file.Content = content.String
	file.CreatedAt = time.Unix(createdAt, 0)
	file.UpdatedAt = time.Unix(updatedAt, 0)
	return file, nil
}

// SaveSuggestions stores multiple suggestions in a single transaction.
// Suggestion IDs are content-derived, so replaying the same batch is a
// no-op rather than a duplicate.
func (s *Store) SaveSuggestions(ctx context.Context, suggestions []domain.Suggestion) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO suggestions (suggestion_id, pull_request_id, file_id, opportunity_type, location, description, severity, original_code, optimized_code, explanation, status, metrics, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(suggestion_id) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	now := s.now().Unix()
	for _, sg := range suggestions {
		metrics, err := marshalMetrics(sg.Metrics)
		if err != nil {
			return fmt.Errorf("failed to encode metrics for %s: %w", sg.ID, err)
		}

		if _, err := stmt.ExecContext(ctx,
			sg.ID,
			sg.PullRequestID,
			sg.FileID,
			sg.OpportunityType,
			sg.Location.String(),
			sg.Description,
			sg.Severity,
			sg.OriginalCode,
			sg.OptimizedCode,
			sg.Explanation,
			sg.Status,
			metrics,
			now,
		); err != nil {
			return fmt.Errorf("failed to insert suggestion: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

const suggestionColumns = `suggestion_id, pull_request_id, file_id, opportunity_type, location, description, severity, original_code, optimized_code, explanation, status, external_comment_id, metrics, created_at`

// GetSuggestionByID retrieves a single suggestion.
func (s *Store) GetSuggestionByID(ctx context.Context, id string) (domain.Suggestion, error) {
	query := `SELECT ` + suggestionColumns + ` FROM suggestions WHERE suggestion_id = ?`

	sg, err := scanSuggestion(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.Suggestion{}, fmt.Errorf("suggestion %s: %w", id, store.ErrNotFound)
		}
		return domain.Suggestion{}, fmt.Errorf("failed to get suggestion: %w", err)
	}
	return sg, nil
}

// ListSuggestionsByPullRequest retrieves all suggestions for a pull request.
func (s *Store) ListSuggestionsByPullRequest(ctx context.Context, pullRequestID int64) ([]domain.Suggestion, error) {
	return s.listSuggestions(ctx, `pull_request_id = ?`, pullRequestID)
}

// ListSuggestionsByFile retrieves all suggestions for a file.
func (s *Store) ListSuggestionsByFile(ctx context.Context, fileID int64) ([]domain.Suggestion, error) {
	return s.listSuggestions(ctx, `file_id = ?`, fileID)
}

func (s *Store) listSuggestions(ctx context.Context, where string, args ...interface{}) ([]domain.Suggestion, error) {
	query := `SELECT ` + suggestionColumns + ` FROM suggestions WHERE ` + where + ` ORDER BY file_id ASC, location ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list suggestions: %w", err)
	}
	defer rows.Close()

	var suggestions []domain.Suggestion
	for rows.Next() {
		sg, err := scanSuggestion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan suggestion: %w", err)
		}
		suggestions = append(suggestions, sg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating suggestions: %w", err)
	}

	return suggestions, nil
}

func scanSuggestion(row rowScanner) (domain.Suggestion, error) {
	var sg domain.Suggestion
	var location string
	var explanation, metrics sql.NullString
	var commentID sql.NullInt64
	var createdAt int64

	if err := row.Scan(
		&sg.ID,
		&sg.PullRequestID,
		&sg.FileID,
		&sg.OpportunityType,
		&location,
		&sg.Description,
		&sg.Severity,
		&sg.OriginalCode,
		&sg.OptimizedCode,
		&explanation,
		&sg.Status,
		&commentID,
		&metrics,
		&createdAt,
	); err != nil {
		return domain.Suggestion{}, err
	}

	loc, err := domain.ParseLocation(location)
	if err != nil {
		return domain.Suggestion{}, fmt.Errorf("stored location corrupt: %w", err)
	}
	sg.Location = loc
	sg.Explanation = explanation.String
	sg.ExternalCommentID = commentID.Int64
	sg.CreatedAt = time.Unix(createdAt, 0)

	if metrics.Valid && metrics.String != "" {
		if err := json.Unmarshal([]byte(metrics.String), &sg.Metrics); err != nil {
			return domain.Suggestion{}, fmt.Errorf("stored metrics corrupt: %w", err)
		}
	}

	return sg, nil
}

// MarkCommented attaches the posted comment id and flips the suggestion
// status to 'commented'.
func (s *Store) MarkCommented(ctx context.Context, id string, commentID int64) error {
	query := `UPDATE suggestions SET status = ?, external_comment_id = ? WHERE suggestion_id = ?`

	result, err := s.db.ExecContext(ctx, query, domain.SuggestionCommented, commentID, id)
	if err != nil {
		return fmt.Errorf("failed to mark suggestion commented: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("suggestion %s: %w", id, store.ErrNotFound)
	}

	return nil
}

// RecordReview flips the suggestion status to accepted or rejected and
// appends the feedback row consumed by the feedback-driven backend.
func (s *Store) RecordReview(ctx context.Context, id string, accepted bool) error {
	status := domain.SuggestionRejected
	if accepted {
		status = domain.SuggestionAccepted
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `UPDATE suggestions SET status = ? WHERE suggestion_id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update suggestion status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("suggestion %s: %w", id, store.ErrNotFound)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO suggestion_feedback (suggestion_id, status, timestamp) VALUES (?, ?, ?)`,
		id, status, s.now().Unix(),
	); err != nil {
		return fmt.Errorf("failed to record feedback: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetFeedbackStats aggregates review outcomes for one opportunity type.
func (s *Store) GetFeedbackStats(ctx context.Context, opportunityType string) (store.FeedbackStats, error) {
	query := `
		SELECT
			COUNT(CASE WHEN f.status = 'accepted' THEN 1 END),
			COUNT(CASE WHEN f.status = 'rejected' THEN 1 END)
		FROM suggestion_feedback f
		JOIN suggestions s ON s.suggestion_id = f.suggestion_id
		WHERE s.opportunity_type = ?
	`

	stats := store.FeedbackStats{OpportunityType: opportunityType}
	err := s.db.QueryRowContext(ctx, query, opportunityType).Scan(&stats.Accepted, &stats.Rejected)
	if err != nil {
		return store.FeedbackStats{}, fmt.Errorf("failed to get feedback stats: %w", err)
	}

	return stats, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func marshalMetrics(metrics map[string]float64) (interface{}, error) {
	if len(metrics) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(metrics)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}
