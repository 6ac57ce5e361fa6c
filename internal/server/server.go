// Package server exposes the webhook receiver and the read-only HTTP
// API over the pull request store.
package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/bkyoung/pr-optimizer/internal/adapter/httpx"
	"github.com/bkyoung/pr-optimizer/internal/store"
	"github.com/bkyoung/pr-optimizer/internal/webhook"
)

// Config carries the server's HTTP-level settings.
type Config struct {
	// WebhookSecret verifies GitHub delivery signatures.
	WebhookSecret string

	// VerifySignatures must stay enabled in production. Disabling it is
	// a local-development convenience and is logged loudly.
	VerifySignatures bool

	// AllowedOrigins configures CORS for the read API.
	AllowedOrigins []string
}

// Dispatcher is the webhook routing surface the server consumes.
type Dispatcher interface {
	Dispatch(ctx context.Context, eventType string, payload []byte) (webhook.Result, error)
}

// Server routes webhook deliveries to the dispatcher and serves
// read-only queries over tracked pull requests.
type Server struct {
	router      *chi.Mux
	dispatcher  Dispatcher
	pulls       store.PullRequestStore
	files       store.FileStore
	suggestions store.SuggestionStore
	logger      httpx.Logger
	cfg         Config
}

// NewServer wires the router and handlers.
func NewServer(cfg Config, dispatcher Dispatcher, pulls store.PullRequestStore, files store.FileStore, suggestions store.SuggestionStore, logger httpx.Logger) *Server {
	r := chi.NewRouter()

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	s := &Server{
		router:      r,
		dispatcher:  dispatcher,
		pulls:       pulls,
		files:       files,
		suggestions: suggestions,
		logger:      logger,
		cfg:         cfg,
	}

	if !cfg.VerifySignatures {
		s.logger.LogWarning(context.Background(), "webhook signature verification is DISABLED; never run this way in production", nil)
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Post("/webhooks/github", s.handleWebhook)

	s.router.Get("/api/health", s.handleHealth)
	s.router.Get("/api/pulls", s.handleListPulls)
	s.router.Get("/api/pulls/{id}", s.handleGetPull)
	s.router.Get("/api/pulls/{id}/files", s.handleListFiles)
	s.router.Get("/api/pulls/{id}/suggestions", s.handleListSuggestions)
	s.router.Get("/api/repos/{owner}/{repo}/pulls/{number}", s.handleGetPullByNumber)
}

// Router returns the handler for mounting on an http.Server.
func (s *Server) Router() http.Handler {
	return s.router
}
