package config

import (
	"fmt"
	"time"
)

// Environment names. Production tightens validation: mock clients and
// disabled signature verification are refused.
const (
	EnvProduction  = "production"
	EnvDevelopment = "development"
)

// Config represents the full application configuration.
type Config struct {
	Environment   string              `yaml:"environment"`
	Server        ServerConfig        `yaml:"server"`
	Webhook       WebhookConfig       `yaml:"webhook"`
	GitHub        GitHubConfig        `yaml:"github"`
	Optimizer     OptimizerConfig     `yaml:"optimizer"`
	HTTP          HTTPConfig          `yaml:"http"`
	Redaction     RedactionConfig     `yaml:"redaction"`
	Store         StoreConfig         `yaml:"store"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host            string   `yaml:"host"`
	Port            int      `yaml:"port"`
	ShutdownTimeout string   `yaml:"shutdownTimeout"`
	AllowedOrigins  []string `yaml:"allowedOrigins"`
}

// WebhookConfig configures delivery verification and trigger matching.
type WebhookConfig struct {
	Secret           string `yaml:"secret"`
	VerifySignatures bool   `yaml:"verifySignatures"`
	TriggerLabel     string `yaml:"triggerLabel"`
	CommandToken     string `yaml:"commandToken"`
}

// GitHubConfig configures the API client. Authentication resolves in
// order: App credentials, personal access token, mock (non-production
// only).
type GitHubConfig struct {
	Token          string `yaml:"token"`
	AppID          int64  `yaml:"appID"`
	InstallationID int64  `yaml:"installationID"`
	PrivateKeyPath string `yaml:"privateKeyPath"`
	BaseURL        string `yaml:"baseURL"`
	UseMock        bool   `yaml:"useMock"`
}

// OptimizerConfig selects and tunes the optimization backend.
type OptimizerConfig struct {
	Backend          string `yaml:"backend"` // mock, feedback, opportunity
	Model            string `yaml:"model"`
	OpenAIAPIKey     string `yaml:"openaiAPIKey"`
	MaxFileWorkers   int    `yaml:"maxFileWorkers"`
	RunTimeout       string `yaml:"runTimeout"`
	CreateFollowUpPR bool   `yaml:"createFollowUpPR"`
	CachedMode       bool   `yaml:"cachedMode"`
}

// HTTPConfig holds outbound HTTP client settings.
type HTTPConfig struct {
	Timeout        string `yaml:"timeout"`
	MaxRetries     int    `yaml:"maxRetries"`
	InitialBackoff string `yaml:"initialBackoff"`
	MaxBackoff     string `yaml:"maxBackoff"`
}

// RedactionConfig configures secret scrubbing applied to file content
// before it reaches a backend.
type RedactionConfig struct {
	Enabled       bool     `yaml:"enabled"`
	ExtraPatterns []string `yaml:"extraPatterns"`
}

// StoreConfig configures the persistence layer.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// ObservabilityConfig configures logging.
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level         string `yaml:"level"`  // debug, info, warning, error
	Format        string `yaml:"format"` // json, human
	RedactAPIKeys bool   `yaml:"redactAPIKeys"`
}

// IsProduction reports whether the configuration targets production.
func (c Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// Validate checks the configuration for contradictions that would only
// surface at request time. It is called once at startup.
func (c Config) Validate() error {
	switch c.Environment {
	case EnvProduction, EnvDevelopment:
	default:
		return fmt.Errorf("unknown environment %q", c.Environment)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}

	switch c.Optimizer.Backend {
	case "mock", "feedback", "opportunity":
	default:
		return fmt.Errorf("unknown optimizer backend %q", c.Optimizer.Backend)
	}

	if c.Webhook.VerifySignatures && c.Webhook.Secret == "" {
		return fmt.Errorf("webhook secret is required when signature verification is enabled")
	}

	if c.Optimizer.Backend == "feedback" && c.Optimizer.OpenAIAPIKey == "" && c.IsProduction() {
		return fmt.Errorf("feedback backend requires an OpenAI API key in production")
	}

	if c.IsProduction() {
		if !c.Webhook.VerifySignatures {
			return fmt.Errorf("signature verification cannot be disabled in production")
		}
		if c.GitHub.UseMock {
			return fmt.Errorf("the mock GitHub client cannot be used in production")
		}
		if c.Optimizer.Backend == "mock" {
			return fmt.Errorf("the mock backend cannot be used in production")
		}
		if !c.GitHub.hasCredentials() {
			return fmt.Errorf("github credentials are required in production: set a token or App credentials")
		}
	}

	if c.Store.Path == "" {
		return fmt.Errorf("store path must not be empty")
	}

	return nil
}

func (g GitHubConfig) hasCredentials() bool {
	if g.Token != "" {
		return true
	}
	return g.AppID != 0 && g.InstallationID != 0 && g.PrivateKeyPath != ""
}

// UsesApp reports whether GitHub App credentials are configured.
func (g GitHubConfig) UsesApp() bool {
	return g.AppID != 0 && g.InstallationID != 0 && g.PrivateKeyPath != ""
}

// ShutdownTimeoutDuration parses the configured shutdown timeout,
// falling back to 15s.
func (s ServerConfig) ShutdownTimeoutDuration() time.Duration {
	return parseDuration(s.ShutdownTimeout, 15*time.Second)
}

// RunTimeoutDuration parses the configured per-run timeout, falling
// back to 10m.
func (o OptimizerConfig) RunTimeoutDuration() time.Duration {
	return parseDuration(o.RunTimeout, 10*time.Minute)
}

// TimeoutDuration parses the HTTP client timeout, falling back to 30s.
func (h HTTPConfig) TimeoutDuration() time.Duration {
	return parseDuration(h.Timeout, 30*time.Second)
}

// InitialBackoffDuration parses the initial retry backoff, falling
// back to 1s.
func (h HTTPConfig) InitialBackoffDuration() time.Duration {
	return parseDuration(h.InitialBackoff, time.Second)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// Merge combines multiple configuration instances, prioritising the latter ones.
func Merge(configs ...Config) Config {
	result := Config{}
	for _, cfg := range configs {
		result = merge(result, cfg)
	}
	return result
}

func merge(base, overlay Config) Config {
	result := base

	if overlay.Environment != "" {
		result.Environment = overlay.Environment
	}
	result.Server = chooseServer(base.Server, overlay.Server)
	result.Webhook = chooseWebhook(base.Webhook, overlay.Webhook)
	result.GitHub = chooseGitHub(base.GitHub, overlay.GitHub)
	result.Optimizer = chooseOptimizer(base.Optimizer, overlay.Optimizer)
	result.HTTP = chooseHTTP(base.HTTP, overlay.HTTP)
	result.Redaction = chooseRedaction(base.Redaction, overlay.Redaction)
	result.Store = chooseStore(base.Store, overlay.Store)
	result.Observability = chooseObservability(base.Observability, overlay.Observability)

	return result
}

func chooseServer(base, overlay ServerConfig) ServerConfig {
	if overlay.Host != "" || overlay.Port != 0 || overlay.ShutdownTimeout != "" || len(overlay.AllowedOrigins) > 0 {
		return overlay
	}
	return base
}

func chooseWebhook(base, overlay WebhookConfig) WebhookConfig {
	if overlay.Secret != "" || overlay.VerifySignatures || overlay.TriggerLabel != "" || overlay.CommandToken != "" {
		return overlay
	}
	return base
}

func chooseGitHub(base, overlay GitHubConfig) GitHubConfig {
	if overlay.Token != "" || overlay.AppID != 0 || overlay.BaseURL != "" || overlay.UseMock {
		return overlay
	}
	return base
}

func chooseOptimizer(base, overlay OptimizerConfig) OptimizerConfig {
	if overlay.Backend != "" || overlay.Model != "" || overlay.OpenAIAPIKey != "" || overlay.MaxFileWorkers != 0 {
		return overlay
	}
	return base
}

func chooseHTTP(base, overlay HTTPConfig) HTTPConfig {
	if overlay.Timeout != "" || overlay.MaxRetries != 0 || overlay.InitialBackoff != "" || overlay.MaxBackoff != "" {
		return overlay
	}
	return base
}

func chooseRedaction(base, overlay RedactionConfig) RedactionConfig {
	if overlay.Enabled || len(overlay.ExtraPatterns) > 0 {
		return overlay
	}
	return base
}

func chooseStore(base, overlay StoreConfig) StoreConfig {
	if overlay.Path != "" {
		return overlay
	}
	return base
}

func chooseObservability(base, overlay ObservabilityConfig) ObservabilityConfig {
	result := base
	if overlay.Logging.Level != "" || overlay.Logging.Format != "" {
		result.Logging = overlay.Logging
	}
	return result
}
