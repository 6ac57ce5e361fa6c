package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	openai "github.com/sashabaranov/go-openai"

	"github.com/bkyoung/pr-optimizer/internal/adapter/backend/feedback"
	mockbackend "github.com/bkyoung/pr-optimizer/internal/adapter/backend/mock"
	"github.com/bkyoung/pr-optimizer/internal/adapter/backend/opportunity"
	"github.com/bkyoung/pr-optimizer/internal/adapter/cli"
	githubadapter "github.com/bkyoung/pr-optimizer/internal/adapter/github"
	"github.com/bkyoung/pr-optimizer/internal/adapter/httpx"
	"github.com/bkyoung/pr-optimizer/internal/adapter/observability"
	"github.com/bkyoung/pr-optimizer/internal/adapter/store/sqlite"
	"github.com/bkyoung/pr-optimizer/internal/config"
	"github.com/bkyoung/pr-optimizer/internal/redaction"
	"github.com/bkyoung/pr-optimizer/internal/server"
	"github.com/bkyoung/pr-optimizer/internal/store"
	"github.com/bkyoung/pr-optimizer/internal/usecase/optimize"
	"github.com/bkyoung/pr-optimizer/internal/usecase/pipeline"
	"github.com/bkyoung/pr-optimizer/internal/version"
	"github.com/bkyoung/pr-optimizer/internal/webhook"
)

func main() {
	if err := run(); err != nil {
		log.Println(err)
		os.Exit(1)
	}
}

func run() error {
	// Create cancellable context with signal handling for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Local development keeps secrets in a .env file; absence is fine.
	_ = godotenv.Load()

	cfg, err := config.Load(config.LoaderOptions{
		ConfigPaths: defaultConfigPaths(),
		FileName:    "pro",
		EnvPrefix:   "PRO",
	})
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	logger := buildLogger(cfg.Observability)
	pipeLogger := observability.NewPipelineLogger(logger)

	storeDir := filepath.Dir(cfg.Store.Path)
	if err := os.MkdirAll(storeDir, 0755); err != nil {
		return fmt.Errorf("create store directory %s: %w", storeDir, err)
	}
	st, err := sqlite.NewStore(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("open store %s: %w", cfg.Store.Path, err)
	}
	defer st.Close()

	repoAPI, err := buildRepoClient(cfg)
	if err != nil {
		return err
	}
	bridge := githubadapter.NewBridge(repoAPI)

	backend, err := buildBackend(cfg, st)
	if err != nil {
		return err
	}
	adapter, err := optimize.NewAdapter(backend)
	if err != nil {
		return fmt.Errorf("build optimizer: %w", err)
	}

	var redactor pipeline.Redactor
	if cfg.Redaction.Enabled {
		engine, err := redaction.NewEngineWithPatterns(cfg.Redaction.ExtraPatterns)
		if err != nil {
			return fmt.Errorf("build redaction engine: %w", err)
		}
		redactor = engine
	}

	orch, err := pipeline.NewOrchestrator(pipeline.Deps{
		Repo:        bridge,
		Optimizer:   adapter,
		Pulls:       st,
		Files:       st,
		Suggestions: st,
		Redactor:    redactor,
		Logger:      pipeLogger,
		Options: pipeline.Options{
			CachedMode:       cfg.Optimizer.CachedMode,
			CreateFollowUpPR: cfg.Optimizer.CreateFollowUpPR,
			MaxFileWorkers:   cfg.Optimizer.MaxFileWorkers,
		},
	})
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}

	runner := pipeline.NewRunner(orch, st, bridge, pipeLogger, cfg.Optimizer.RunTimeoutDuration())

	dispatcher := webhook.NewDispatcher(st, runner, webhook.Options{
		TriggerLabel: cfg.Webhook.TriggerLabel,
		CommandToken: cfg.Webhook.CommandToken,
	}, logger)

	srv := server.NewServer(server.Config{
		WebhookSecret:    cfg.Webhook.Secret,
		VerifySignatures: cfg.Webhook.VerifySignatures,
		AllowedOrigins:   cfg.Server.AllowedOrigins,
	}, dispatcher, st, st, st, logger)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	app := &service{
		addr:            addr,
		handler:         srv.Router(),
		runner:          runner,
		shutdownTimeout: cfg.Server.ShutdownTimeoutDuration(),
	}

	root := cli.NewRootCommand(cli.Dependencies{
		Service:    app,
		Runner:     runner,
		ListenAddr: addr,
		Version:    version.Value(),
	})

	if err := root.ExecuteContext(ctx); err != nil {
		if errors.Is(err, cli.ErrVersionRequested) {
			return nil
		}
		return fmt.Errorf("command failed: %w", err)
	}
	return nil
}

func defaultConfigPaths() []string {
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "pro"))
	}
	return paths
}

func buildLogger(cfg config.ObservabilityConfig) httpx.Logger {
	return httpx.NewDefaultLogger(
		httpx.ParseLogLevel(cfg.Logging.Level),
		httpx.ParseLogFormat(cfg.Logging.Format),
		cfg.Logging.RedactAPIKeys,
	)
}

// buildRepoClient resolves the GitHub client from config. Authentication
// resolves in order: App credentials, personal access token, mock.
// Validate has already refused the mock path in production.
func buildRepoClient(cfg config.Config) (githubadapter.API, error) {
	if cfg.GitHub.UseMock {
		log.Println("GitHub: using the mock client; no remote calls will be made")
		return githubadapter.NewMockClient(), nil
	}

	var tokens githubadapter.TokenSource
	switch {
	case cfg.GitHub.UsesApp():
		pem, err := os.ReadFile(cfg.GitHub.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("read App private key %s: %w", cfg.GitHub.PrivateKeyPath, err)
		}
		appTokens, err := githubadapter.NewAppTokenSource(cfg.GitHub.AppID, cfg.GitHub.InstallationID, pem)
		if err != nil {
			return nil, fmt.Errorf("build App token source: %w", err)
		}
		if cfg.GitHub.BaseURL != "" {
			appTokens.SetBaseURL(cfg.GitHub.BaseURL)
		}
		tokens = appTokens

	case cfg.GitHub.Token != "":
		tokens = githubadapter.NewStaticTokenSource(cfg.GitHub.Token)

	default:
		log.Println("GitHub: no credentials configured, falling back to the mock client")
		return githubadapter.NewMockClient(), nil
	}

	client := githubadapter.NewClient(tokens)
	if cfg.GitHub.BaseURL != "" {
		client.SetBaseURL(cfg.GitHub.BaseURL)
	}
	client.SetTimeout(cfg.HTTP.TimeoutDuration())
	client.SetMaxRetries(cfg.HTTP.MaxRetries)
	client.SetInitialBackoff(cfg.HTTP.InitialBackoffDuration())
	return client, nil
}

// buildBackend resolves the optimization backend from config. A missing
// OpenAI key degrades the feedback backend to mock outside production;
// Validate has already refused that combination in production.
func buildBackend(cfg config.Config, stats store.SuggestionStore) (optimize.Backend, error) {
	switch cfg.Optimizer.Backend {
	case "mock":
		return mockbackend.NewBackend(), nil

	case "opportunity":
		return opportunity.NewBackend(), nil

	case "feedback":
		if cfg.Optimizer.OpenAIAPIKey == "" {
			log.Println("Optimizer: no OpenAI API key configured, falling back to the mock backend")
			return mockbackend.NewBackend(), nil
		}
		client := openai.NewClient(cfg.Optimizer.OpenAIAPIKey)
		return feedback.NewBackend(client, stats, cfg.Optimizer.Model)

	default:
		return nil, fmt.Errorf("unknown optimizer backend %q", cfg.Optimizer.Backend)
	}
}

// service adapts the wired HTTP server and runner to the CLI's Service
// dependency: serve until the context is cancelled, then drain.
type service struct {
	addr            string
	handler         http.Handler
	runner          *pipeline.Runner
	shutdownTimeout time.Duration
}

func (s *service) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	// In-flight pipeline runs finish on their own detached timeout.
	s.runner.Wait()
	return nil
}

// Compile-time interface compliance checks
var _ githubadapter.API = (*githubadapter.Client)(nil)
var _ githubadapter.API = (*githubadapter.MockClient)(nil)
var _ pipeline.RepoClient = (*githubadapter.Bridge)(nil)
var _ pipeline.Redactor = (*redaction.Engine)(nil)
var _ server.Dispatcher = (*webhook.Dispatcher)(nil)
var _ cli.Service = (*service)(nil)
var _ cli.PipelineRunner = (*pipeline.Runner)(nil)
var _ store.Store = (*sqlite.Store)(nil)
