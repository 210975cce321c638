// Package config loads mcp-kubedebug settings from the environment and an
// optional configuration file (.env, YAML, or JSON).
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Settings holds the full application configuration.
type Settings struct {
	// Application
	AppName  string
	Debug    bool
	LogLevel string

	// Server
	ServerHost string
	ServerPort int

	// Grafana
	GrafanaURL    string
	GrafanaAPIKey string
	GrafanaToken  string
	GrafanaOrgID  int

	// Data sources
	LokiDatasource       string
	PrometheusDatasource string

	// AWS
	AWSRegion      string
	AWSProfile     string
	EKSClusterName string

	// Kubernetes
	KubeconfigPath string
	K8sNamespace   string

	// Performance
	QueryTimeout         time.Duration
	MaxConcurrentQueries int
	CacheTTL             time.Duration

	// Retries
	MaxRetryAttempts int
	RetryDelay       time.Duration

	// Monitoring
	MetricsEnabled      bool
	HealthCheckInterval time.Duration
}

// Load reads settings from the environment, optionally merged with the
// configuration file at path. Environment variables win over file values.
func Load(path string) (*Settings, error) {
	v := viper.New()

	v.SetDefault("app_name", "mcp-kubedebug")
	v.SetDefault("debug", false)
	v.SetDefault("log_level", "INFO")
	v.SetDefault("server_host", "0.0.0.0")
	v.SetDefault("server_port", 8000)
	v.SetDefault("loki_datasource", "Loki")
	v.SetDefault("prometheus_datasource", "Prometheus")
	v.SetDefault("aws_region", "us-east-1")
	v.SetDefault("k8s_namespace", "default")
	v.SetDefault("query_timeout", 30.0)
	v.SetDefault("max_concurrent_queries", 10)
	v.SetDefault("cache_ttl", 300)
	v.SetDefault("max_retry_attempts", 3)
	v.SetDefault("retry_delay", 1.0)
	v.SetDefault("metrics_enabled", true)
	v.SetDefault("health_check_interval", 60)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	s := &Settings{
		AppName:  v.GetString("app_name"),
		Debug:    v.GetBool("debug"),
		LogLevel: strings.ToUpper(v.GetString("log_level")),

		ServerHost: v.GetString("server_host"),
		ServerPort: v.GetInt("server_port"),

		GrafanaURL:    v.GetString("grafana_url"),
		GrafanaAPIKey: v.GetString("grafana_api_key"),
		GrafanaToken:  v.GetString("grafana_token"),
		GrafanaOrgID:  v.GetInt("grafana_org_id"),

		LokiDatasource:       v.GetString("loki_datasource"),
		PrometheusDatasource: v.GetString("prometheus_datasource"),

		AWSRegion:      v.GetString("aws_region"),
		AWSProfile:     v.GetString("aws_profile"),
		EKSClusterName: v.GetString("eks_cluster_name"),

		KubeconfigPath: v.GetString("kubeconfig_path"),
		K8sNamespace:   v.GetString("k8s_namespace"),

		QueryTimeout:         secondsToDuration(v.GetFloat64("query_timeout")),
		MaxConcurrentQueries: v.GetInt("max_concurrent_queries"),
		CacheTTL:             secondsToDuration(v.GetFloat64("cache_ttl")),

		MaxRetryAttempts: v.GetInt("max_retry_attempts"),
		RetryDelay:       secondsToDuration(v.GetFloat64("retry_delay")),

		MetricsEnabled:      v.GetBool("metrics_enabled"),
		HealthCheckInterval: secondsToDuration(v.GetFloat64("health_check_interval")),
	}

	return s, nil
}

// GrafanaKey returns the configured API key, preferring GRAFANA_API_KEY
// over the legacy GRAFANA_TOKEN.
func (s *Settings) GrafanaKey() (string, error) {
	if s.GrafanaAPIKey != "" {
		return s.GrafanaAPIKey, nil
	}
	if s.GrafanaToken != "" {
		return s.GrafanaToken, nil
	}
	return "", fmt.Errorf("either GRAFANA_API_KEY or GRAFANA_TOKEN must be provided")
}

// Validate returns a list of configuration issues, empty when the
// configuration is usable.
func (s *Settings) Validate() []string {
	var issues []string

	if s.GrafanaURL == "" {
		issues = append(issues, "GRAFANA_URL is required")
	} else if !strings.HasPrefix(s.GrafanaURL, "http://") && !strings.HasPrefix(s.GrafanaURL, "https://") {
		issues = append(issues, "GRAFANA_URL must start with http:// or https://")
	}

	if _, err := s.GrafanaKey(); err != nil {
		issues = append(issues, "GRAFANA_API_KEY or GRAFANA_TOKEN is required")
	}

	if s.ServerPort < 1 || s.ServerPort > 65535 {
		issues = append(issues, "SERVER_PORT must be between 1 and 65535")
	}

	switch s.LogLevel {
	case "DEBUG", "INFO", "WARNING", "ERROR", "CRITICAL":
	default:
		issues = append(issues, "LOG_LEVEL must be one of: DEBUG, INFO, WARNING, ERROR, CRITICAL")
	}

	if s.MaxConcurrentQueries < 1 {
		issues = append(issues, "MAX_CONCURRENT_QUERIES must be at least 1")
	}
	if s.MaxRetryAttempts < 1 {
		issues = append(issues, "MAX_RETRY_ATTEMPTS must be at least 1")
	}

	return issues
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}
