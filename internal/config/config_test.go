package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/optiononetech/teams-chat-export/internal/constants"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfig_Valid(t *testing.T) {
	path := writeConfig(t, `{
		"graph": {"access_token": "token-abc"},
		"database": {"path": "/tmp/export.db"},
		"export": {"root_dir": "/tmp/export"}
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, constants.DefaultGraphAPIBaseURL, cfg.Graph.APIBaseURL)
	assert.Equal(t, "token-abc", cfg.Graph.AccessToken)
	assert.Equal(t, constants.DefaultGraphPageSize, cfg.Graph.PageSize)
	assert.Equal(t, constants.DefaultServerPort, cfg.Server.Port)
	assert.Equal(t, constants.DefaultMaxReplyDepth, cfg.Export.MaxReplyDepth)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadConfig_MissingToken(t *testing.T) {
	path := writeConfig(t, `{
		"database": {"path": "/tmp/export.db"},
		"export": {"root_dir": "/tmp/export"}
	}`)

	_, err := LoadConfig(path)
	assert.ErrorIs(t, err, ErrMissingAccessToken)
}

func TestLoadConfig_MissingDBPath(t *testing.T) {
	path := writeConfig(t, `{
		"graph": {"access_token": "token-abc"},
		"export": {"root_dir": "/tmp/export"}
	}`)

	_, err := LoadConfig(path)
	assert.ErrorIs(t, err, ErrMissingDBPath)
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, `{
		"graph": {"access_token": "from-file", "api_base_url": "https://file.example/v1.0"},
		"database": {"path": "/tmp/export.db"},
		"export": {"root_dir": "/tmp/export"}
	}`)

	t.Setenv("GRAPH_API_URL", "https://env.example/v1.0")
	t.Setenv("GRAPH_ACCESS_TOKEN", "from-env")
	t.Setenv("TEAMSEXPORT_PORT", "9090")
	t.Setenv("TEAMSEXPORT_LOG_LEVEL", "warn")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "https://env.example/v1.0", cfg.Graph.APIBaseURL)
	assert.Equal(t, "from-env", cfg.Graph.AccessToken)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	path := writeConfig(t, `{not json`)

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfig_TraversalPath(t *testing.T) {
	_, err := LoadConfig("../../etc/passwd")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config path")
}

func TestLoadConfig_ProductionDebugRejected(t *testing.T) {
	path := writeConfig(t, `{
		"graph": {"access_token": "token-abc"},
		"database": {"path": "/tmp/export.db"},
		"export": {"root_dir": "/tmp/export"},
		"log_level": "debug"
	}`)

	t.Setenv("TEAMSEXPORT_ENV", "production")

	_, err := LoadConfig(path)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "production")
}
