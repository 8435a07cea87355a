package models

// Config holds the application configuration
type Config struct {
	Graph    GraphConfig    `json:"graph"`
	Database DatabaseConfig `json:"database"`
	Export   ExportConfig   `json:"export"`
	Retry    RetryConfig    `json:"retry"`
	Server   ServerConfig   `json:"server"`
	Tracing  TracingConfig  `json:"tracing"`
	LogLevel string         `json:"log_level"`
}

// GraphConfig holds Graph API related configuration
type GraphConfig struct {
	APIBaseURL  string `json:"api_base_url"`
	AccessToken string `json:"access_token"`
	TimeoutSec  int    `json:"timeout_sec"`
	PageSize    int    `json:"page_size"`
	RetryCount  int    `json:"retry_count"`
}

// DatabaseConfig holds job history store configuration
type DatabaseConfig struct {
	Path string `json:"path"`
}

// ExportConfig holds export pipeline configuration
type ExportConfig struct {
	RootDir        string `json:"root_dir"`
	ProgressTTLMin int    `json:"progress_ttl_min"`
	AlwaysRebuild  bool   `json:"always_rebuild"`
	MaxReplyDepth  int    `json:"max_reply_depth"`
}

// RetryConfig holds retry related configuration
type RetryConfig struct {
	InitialBackoffMs int `json:"initialBackoffMs"`
	MaxBackoffMs     int `json:"maxBackoffMs"`
	MaxAttempts      int `json:"maxAttempts"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int `json:"port"`
}

// TracingConfig holds OpenTelemetry configuration
type TracingConfig struct {
	ServiceName    string  `json:"service_name"`
	ServiceVersion string  `json:"service_version"`
	Environment    string  `json:"environment"`
	OTLPEndpoint   string  `json:"otlp_endpoint"`
	SampleRate     float64 `json:"sample_rate"`
	Enabled        bool    `json:"enabled"`
	UseStdout      bool    `json:"use_stdout"`
}

type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string {
	return e.Message
}
