package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	// Ensure no env vars interfere
	os.Unsetenv("STORAGE_PATH")
	os.Unsetenv("API_PORT")
	os.Unsetenv("NATS_URL")

	cfg := LoadConfig()

	assert.Equal(t, "couches.db", cfg.Storage.Path)
	assert.Equal(t, 8080, cfg.API.Port)
	assert.Equal(t, 10, cfg.Backend.TimeoutSeconds)
	assert.Empty(t, cfg.Nats.URL)
}

func TestLoadConfig_EnvVars(t *testing.T) {
	os.Setenv("STORAGE_PATH", "/tmp/test.db")
	os.Setenv("API_PORT", "9090")
	os.Setenv("NATS_URL", "nats://test:4222")
	defer func() {
		os.Unsetenv("STORAGE_PATH")
		os.Unsetenv("API_PORT")
		os.Unsetenv("NATS_URL")
	}()

	cfg := LoadConfig()

	assert.Equal(t, "/tmp/test.db", cfg.Storage.Path)
	assert.Equal(t, 9090, cfg.API.Port)
	assert.Equal(t, "nats://test:4222", cfg.Nats.URL)
}

func TestLoadConfig_FileOverride(t *testing.T) {
	// Create config directory
	err := os.Mkdir("config", 0755)
	require.NoError(t, err)
	defer os.RemoveAll("config")

	configContent := []byte(`
storage:
  path: "/var/lib/couches/file.db"
api:
  port: 7070
`)
	err = os.WriteFile("config/config.yml", configContent, 0644)
	require.NoError(t, err)

	cfg := LoadConfig()

	assert.Equal(t, "/var/lib/couches/file.db", cfg.Storage.Path)
	assert.Equal(t, 7070, cfg.API.Port)
}

func TestLoadConfig_LocalFileOverride(t *testing.T) {
	// Create config directory
	err := os.Mkdir("config", 0755)
	require.NoError(t, err)
	defer os.RemoveAll("config")

	// Create config.yml
	err = os.WriteFile("config/config.yml", []byte(`
storage:
  path: "/var/lib/couches/file.db"
api:
  port: 7070
`), 0644)
	require.NoError(t, err)

	// config.local.yml overrides the shared file
	err = os.WriteFile("config/config.local.yml", []byte(`
api:
  port: 7071
`), 0644)
	require.NoError(t, err)

	cfg := LoadConfig()

	assert.Equal(t, "/var/lib/couches/file.db", cfg.Storage.Path)
	assert.Equal(t, 7071, cfg.API.Port)
}

func TestLoadConfig_EnvBeatsFile(t *testing.T) {
	err := os.Mkdir("config", 0755)
	require.NoError(t, err)
	defer os.RemoveAll("config")

	err = os.WriteFile("config/config.yml", []byte("api:\n  port: 7070\n"), 0644)
	require.NoError(t, err)

	os.Setenv("API_PORT", "6060")
	defer os.Unsetenv("API_PORT")

	cfg := LoadConfig()

	assert.Equal(t, 6060, cfg.API.Port)
}
