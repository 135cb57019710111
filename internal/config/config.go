package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	DBPath          string `json:"db_path" env:"DB_PATH"`
	WebEnabled      bool   `json:"web_enabled" env:"WEB_ENABLED"`
	WebPort         int    `json:"web_port" env:"WEB_PORT"`
	LogLevel        string `json:"log_level" env:"LOG_LEVEL"`
	LogPath         string `json:"log_path" env:"LOG_PATH"`
	DarkModeDefault bool   `json:"dark_mode_default" env:"DARK_MODE"`
}

const envPrefix = "LAZYTODO_"

func Default() Config {
	return Config{WebPort: 8080, LogLevel: "info", DarkModeDefault: true}
}

func DefaultConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "lazytodo", "config.json"), nil
}

func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	return os.MkdirAll(dir, 0o755)
}

// Load reads the config file at path and then applies LAZYTODO_* environment
// overrides. A missing file yields the defaults.
func Load(path string) (Config, error) {
	config := Default()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return Config{}, err
	}
	if err == nil {
		if err := json.Unmarshal(data, &config); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := env.ParseWithOptions(&config, env.Options{Prefix: envPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return config, nil
}

func Save(path string, cfg Config) error {
	if err := EnsureDir(path); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o644)
}
