package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	s, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "mcp-kubedebug", s.AppName)
	assert.Equal(t, 30*time.Second, s.QueryTimeout)
	assert.Equal(t, 10, s.MaxConcurrentQueries)
	assert.Equal(t, 3, s.MaxRetryAttempts)
	assert.Equal(t, time.Second, s.RetryDelay)
	assert.Equal(t, 300*time.Second, s.CacheTTL)
	assert.Equal(t, "Loki", s.LokiDatasource)
	assert.Equal(t, "Prometheus", s.PrometheusDatasource)
	assert.Equal(t, "default", s.K8sNamespace)
	assert.Equal(t, 8000, s.ServerPort)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("GRAFANA_URL", "https://grafana.example.com")
	t.Setenv("GRAFANA_API_KEY", "secret")
	t.Setenv("QUERY_TIMEOUT", "12.5")
	t.Setenv("MAX_CONCURRENT_QUERIES", "4")
	t.Setenv("MAX_RETRY_ATTEMPTS", "5")
	t.Setenv("RETRY_DELAY", "0.5")

	s, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "https://grafana.example.com", s.GrafanaURL)
	assert.Equal(t, 12500*time.Millisecond, s.QueryTimeout)
	assert.Equal(t, 4, s.MaxConcurrentQueries)
	assert.Equal(t, 5, s.MaxRetryAttempts)
	assert.Equal(t, 500*time.Millisecond, s.RetryDelay)
	assert.Empty(t, s.Validate())
}

func TestLoadFromEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	content := "GRAFANA_URL=https://grafana.internal\nGRAFANA_TOKEN=legacy-token\nSERVER_PORT=9000\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	s, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://grafana.internal", s.GrafanaURL)
	assert.Equal(t, 9000, s.ServerPort)

	key, err := s.GrafanaKey()
	require.NoError(t, err)
	assert.Equal(t, "legacy-token", key)
}

func TestGrafanaKeyPrecedence(t *testing.T) {
	s := &Settings{GrafanaAPIKey: "new", GrafanaToken: "old"}
	key, err := s.GrafanaKey()
	require.NoError(t, err)
	assert.Equal(t, "new", key)

	s = &Settings{}
	_, err = s.GrafanaKey()
	assert.Error(t, err)
}

func TestValidateReportsIssues(t *testing.T) {
	s := &Settings{
		GrafanaURL:           "grafana.example.com", // missing scheme
		ServerPort:           0,
		LogLevel:             "VERBOSE",
		MaxConcurrentQueries: 0,
		MaxRetryAttempts:     0,
	}

	issues := s.Validate()
	assert.Contains(t, issues, "GRAFANA_URL must start with http:// or https://")
	assert.Contains(t, issues, "GRAFANA_API_KEY or GRAFANA_TOKEN is required")
	assert.Contains(t, issues, "SERVER_PORT must be between 1 and 65535")
	assert.Contains(t, issues, "LOG_LEVEL must be one of: DEBUG, INFO, WARNING, ERROR, CRITICAL")
	assert.Contains(t, issues, "MAX_CONCURRENT_QUERIES must be at least 1")
	assert.Contains(t, issues, "MAX_RETRY_ATTEMPTS must be at least 1")
}
