package config

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type StorageConfig struct {
	// Path is the sqlite database file, ":memory:" for an ephemeral store.
	Path string `yaml:"path"`
}

type APIConfig struct {
	Port int `yaml:"port"`
}

type BackendConfig struct {
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

type NatsConfig struct {
	// URL is empty when change notifications are disabled.
	URL string `yaml:"url"`
}

type Config struct {
	Storage StorageConfig `yaml:"storage"`
	API     APIConfig     `yaml:"api"`
	Backend BackendConfig `yaml:"backend"`
	Nats    NatsConfig    `yaml:"nats"`
}

// LoadConfig resolves configuration in layers: built-in defaults, then
// config/config.yml, then config/config.local.yml, then environment
// variables. Later layers win.
func LoadConfig() *Config {
	cfg := &Config{
		Storage: StorageConfig{Path: "couches.db"},
		API:     APIConfig{Port: 8080},
		Backend: BackendConfig{TimeoutSeconds: 10},
	}

	loadFile(cfg, "config/config.yml")
	loadFile(cfg, "config/config.local.yml")

	if v := os.Getenv("STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}
	if v := os.Getenv("BACKEND_TIMEOUT_SECONDS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			cfg.Backend.TimeoutSeconds = secs
		}
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		cfg.Nats.URL = v
	}

	return cfg
}

func loadFile(cfg *Config, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	yaml.Unmarshal(data, cfg)
}
