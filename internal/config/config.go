package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/optiononetech/teams-chat-export/internal/constants"
	"github.com/optiononetech/teams-chat-export/internal/models"
	"github.com/optiononetech/teams-chat-export/internal/security"
)

var (
	ErrMissingGraphURL    = models.ConfigError{Message: "missing Graph API base URL"}
	ErrMissingAccessToken = models.ConfigError{Message: "missing Graph access token"}
	ErrMissingDBPath      = models.ConfigError{Message: "missing database path"}
	ErrMissingExportDir   = models.ConfigError{Message: "missing export root directory"}
)

func LoadConfig(path string) (*models.Config, error) {
	// Validate config file path to prevent directory traversal
	if err := security.ValidateFilePath(path); err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}

	file, err := os.ReadFile(path) // #nosec G304 - Path validated by security.ValidateFilePath above
	if err != nil {
		return nil, err
	}

	var config models.Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, err
	}

	applyDefaults(&config)
	applyEnvironmentOverrides(&config)

	if err := validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func applyDefaults(c *models.Config) {
	if c.Graph.APIBaseURL == "" {
		c.Graph.APIBaseURL = constants.DefaultGraphAPIBaseURL
	}
	if c.Graph.TimeoutSec <= 0 {
		c.Graph.TimeoutSec = constants.DefaultGraphTimeoutSec
	}
	if c.Graph.PageSize <= 0 {
		c.Graph.PageSize = constants.DefaultGraphPageSize
	}
	if c.Graph.RetryCount <= 0 {
		c.Graph.RetryCount = constants.DefaultGraphRetryAttempts
	}
	if c.Export.RootDir == "" {
		c.Export.RootDir = constants.DefaultExportRootDir
	}
	if c.Export.ProgressTTLMin <= 0 {
		c.Export.ProgressTTLMin = constants.DefaultProgressTTLMin
	}
	if c.Export.MaxReplyDepth <= 0 {
		c.Export.MaxReplyDepth = constants.DefaultMaxReplyDepth
	}
	if c.Retry.InitialBackoffMs <= 0 {
		c.Retry.InitialBackoffMs = constants.DefaultBackoffInitialMs
	}
	if c.Retry.MaxBackoffMs <= 0 {
		c.Retry.MaxBackoffMs = constants.DefaultMaxBackoffMs
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = constants.DefaultMaxAttempts
	}
	if c.Server.Port <= 0 {
		c.Server.Port = constants.DefaultServerPort
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

func applyEnvironmentOverrides(c *models.Config) {
	if url := os.Getenv("GRAPH_API_URL"); url != "" {
		c.Graph.APIBaseURL = url
	}

	// SECURITY: the access token should come from the environment, not the file
	if token := os.Getenv("GRAPH_ACCESS_TOKEN"); token != "" {
		c.Graph.AccessToken = token
	}

	if path := os.Getenv("DB_PATH"); path != "" {
		c.Database.Path = path
	}
	if dir := os.Getenv("EXPORT_DIR"); dir != "" {
		c.Export.RootDir = dir
	}
	if port := os.Getenv("TEAMSEXPORT_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil && p > 0 {
			c.Server.Port = p
		}
	}
	if level := os.Getenv("TEAMSEXPORT_LOG_LEVEL"); level != "" {
		c.LogLevel = level
	}
}

func validate(c *models.Config) error {
	if c.Graph.APIBaseURL == "" {
		return ErrMissingGraphURL
	}
	if c.Graph.AccessToken == "" {
		return ErrMissingAccessToken
	}
	if c.Database.Path == "" {
		return ErrMissingDBPath
	}
	if c.Export.RootDir == "" {
		return ErrMissingExportDir
	}

	isProduction := os.Getenv("TEAMSEXPORT_ENV") == "production"
	if isProduction && c.LogLevel == "debug" {
		return models.ConfigError{Message: "debug logging should not be used in production (security risk)"}
	}

	return nil
}
