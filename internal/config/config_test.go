package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		Environment: EnvDevelopment,
		Server:      ServerConfig{Host: "127.0.0.1", Port: 8080},
		Webhook:     WebhookConfig{Secret: "s3cret", VerifySignatures: true},
		GitHub:      GitHubConfig{Token: "ghp_testtoken"},
		Optimizer:   OptimizerConfig{Backend: "opportunity", MaxFileWorkers: 4},
		Store:       StoreConfig{Path: "./optimizer.db"},
	}
}

func TestValidateAcceptsSaneConfig(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "unknown environment",
			mutate:  func(c *Config) { c.Environment = "staging" },
			wantErr: "unknown environment",
		},
		{
			name:    "bad port",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "invalid server port",
		},
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.Optimizer.Backend = "quantum" },
			wantErr: "unknown optimizer backend",
		},
		{
			name: "verification without secret",
			mutate: func(c *Config) {
				c.Webhook.Secret = ""
			},
			wantErr: "webhook secret is required",
		},
		{
			name: "production with verification disabled",
			mutate: func(c *Config) {
				c.Environment = EnvProduction
				c.Webhook.VerifySignatures = false
				c.Webhook.Secret = ""
			},
			wantErr: "cannot be disabled in production",
		},
		{
			name: "production with mock client",
			mutate: func(c *Config) {
				c.Environment = EnvProduction
				c.GitHub.UseMock = true
			},
			wantErr: "mock GitHub client",
		},
		{
			name: "production with mock backend",
			mutate: func(c *Config) {
				c.Environment = EnvProduction
				c.Optimizer.Backend = "mock"
			},
			wantErr: "mock backend",
		},
		{
			name: "production without credentials",
			mutate: func(c *Config) {
				c.Environment = EnvProduction
				c.GitHub.Token = ""
			},
			wantErr: "credentials are required",
		},
		{
			name: "production feedback backend without key",
			mutate: func(c *Config) {
				c.Environment = EnvProduction
				c.Optimizer.Backend = "feedback"
			},
			wantErr: "OpenAI API key",
		},
		{
			name:    "empty store path",
			mutate:  func(c *Config) { c.Store.Path = "" },
			wantErr: "store path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateAllowsMockInDevelopment(t *testing.T) {
	cfg := validConfig()
	cfg.GitHub.Token = ""
	cfg.GitHub.UseMock = true
	cfg.Optimizer.Backend = "mock"
	require.NoError(t, cfg.Validate())
}

func TestGitHubConfigUsesApp(t *testing.T) {
	g := GitHubConfig{AppID: 1, InstallationID: 2, PrivateKeyPath: "/tmp/key.pem"}
	assert.True(t, g.UsesApp())
	assert.True(t, g.hasCredentials())

	g.PrivateKeyPath = ""
	assert.False(t, g.UsesApp())
	assert.False(t, g.hasCredentials())
}

func TestMergeOverlayWins(t *testing.T) {
	base := Config{
		Environment: EnvDevelopment,
		Server:      ServerConfig{Host: "0.0.0.0", Port: 8080},
		Optimizer:   OptimizerConfig{Backend: "opportunity"},
		Store:       StoreConfig{Path: "base.db"},
	}
	overlay := Config{
		Environment: EnvProduction,
		Optimizer:   OptimizerConfig{Backend: "feedback", Model: "gpt-4o-mini"},
	}

	merged := Merge(base, overlay)

	assert.Equal(t, EnvProduction, merged.Environment)
	assert.Equal(t, "feedback", merged.Optimizer.Backend)
	assert.Equal(t, "gpt-4o-mini", merged.Optimizer.Model)
	// Sections absent from the overlay keep base values.
	assert.Equal(t, 8080, merged.Server.Port)
	assert.Equal(t, "base.db", merged.Store.Path)
}

func TestMergeEmptyOverlayKeepsBase(t *testing.T) {
	base := validConfig()
	merged := Merge(base, Config{})
	assert.Equal(t, base, merged)
}

func TestDurationHelpers(t *testing.T) {
	assert.Equal(t, 20*time.Second, ServerConfig{ShutdownTimeout: "20s"}.ShutdownTimeoutDuration())
	assert.Equal(t, 15*time.Second, ServerConfig{}.ShutdownTimeoutDuration())
	assert.Equal(t, 15*time.Second, ServerConfig{ShutdownTimeout: "garbage"}.ShutdownTimeoutDuration())

	assert.Equal(t, 5*time.Minute, OptimizerConfig{RunTimeout: "5m"}.RunTimeoutDuration())
	assert.Equal(t, 10*time.Minute, OptimizerConfig{}.RunTimeoutDuration())

	assert.Equal(t, 45*time.Second, HTTPConfig{Timeout: "45s"}.TimeoutDuration())
	assert.Equal(t, 30*time.Second, HTTPConfig{}.TimeoutDuration())
	assert.Equal(t, 2*time.Second, HTTPConfig{InitialBackoff: "2s"}.InitialBackoffDuration())
	assert.Equal(t, time.Second, HTTPConfig{InitialBackoff: "-1s"}.InitialBackoffDuration())
}
