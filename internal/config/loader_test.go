package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(LoaderOptions{ConfigPaths: []string{t.TempDir()}})
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Environment)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.True(t, cfg.Webhook.VerifySignatures)
	assert.Equal(t, "optimize", cfg.Webhook.TriggerLabel)
	assert.Equal(t, "/optimize", cfg.Webhook.CommandToken)
	assert.Equal(t, "https://api.github.com", cfg.GitHub.BaseURL)
	assert.Equal(t, "opportunity", cfg.Optimizer.Backend)
	assert.Equal(t, 4, cfg.Optimizer.MaxFileWorkers)
	assert.Equal(t, 3, cfg.HTTP.MaxRetries)
	assert.True(t, cfg.Redaction.Enabled)
	assert.NotEmpty(t, cfg.Store.Path)
	assert.Equal(t, "info", cfg.Observability.Logging.Level)
	assert.Equal(t, "human", cfg.Observability.Logging.Format)
}

func TestLoadReadsConfigFile(t *testing.T) {
	dir := t.TempDir()
	content := `
environment: production
server:
  host: 10.0.0.5
  port: 9090
webhook:
  secret: file-secret
  verifySignatures: true
github:
  token: ghp_from_file
optimizer:
  backend: feedback
  model: gpt-4o-mini
store:
  path: /var/lib/pro/optimizer.db
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pro.yaml"), []byte(content), 0o644))

	cfg, err := Load(LoaderOptions{ConfigPaths: []string{dir}})
	require.NoError(t, err)

	assert.Equal(t, EnvProduction, cfg.Environment)
	assert.Equal(t, "10.0.0.5", cfg.Server.Host)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "file-secret", cfg.Webhook.Secret)
	assert.Equal(t, "ghp_from_file", cfg.GitHub.Token)
	assert.Equal(t, "feedback", cfg.Optimizer.Backend)
	assert.Equal(t, "/var/lib/pro/optimizer.db", cfg.Store.Path)
	// Defaults still fill unset keys.
	assert.Equal(t, "/optimize", cfg.Webhook.CommandToken)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	content := `
optimizer:
  backend: opportunity
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pro.yaml"), []byte(content), 0o644))
	t.Setenv("PRO_OPTIMIZER_BACKEND", "mock")
	t.Setenv("PRO_ENVIRONMENT", "development")

	cfg, err := Load(LoaderOptions{ConfigPaths: []string{dir}})
	require.NoError(t, err)

	assert.Equal(t, "mock", cfg.Optimizer.Backend)
	assert.Equal(t, EnvDevelopment, cfg.Environment)
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pro.yaml"), []byte("{{nope"), 0o644))

	_, err := Load(LoaderOptions{ConfigPaths: []string{dir}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestLoadExpandsEnvVars(t *testing.T) {
	dir := t.TempDir()
	content := `
webhook:
  secret: ${PRO_TEST_WEBHOOK_SECRET}
github:
  token: $PRO_TEST_GH_TOKEN
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pro.yaml"), []byte(content), 0o644))
	t.Setenv("PRO_TEST_WEBHOOK_SECRET", "expanded-secret")
	t.Setenv("PRO_TEST_GH_TOKEN", "ghp_expanded")

	cfg, err := Load(LoaderOptions{ConfigPaths: []string{dir}})
	require.NoError(t, err)

	assert.Equal(t, "expanded-secret", cfg.Webhook.Secret)
	assert.Equal(t, "ghp_expanded", cfg.GitHub.Token)
}

func TestExpandEnvStringKeepsUnknownVars(t *testing.T) {
	assert.Equal(t, "${NOT_SET_ANYWHERE_12345}", expandEnvString("${NOT_SET_ANYWHERE_12345}"))
	assert.Equal(t, "", expandEnvString(""))
}

func TestLocateConfigFilePrefersGivenPaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pro.yaml")
	require.NoError(t, os.WriteFile(path, []byte("environment: development\n"), 0o644))

	assert.Equal(t, path, locateConfigFile("pro", []string{dir}))
	assert.Equal(t, "", locateConfigFile("pro", []string{t.TempDir()}))
}
