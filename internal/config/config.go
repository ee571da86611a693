package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the server-level configuration, loaded from an optional
// YAML file. Environment variables override file values so deployments
// can keep one file per environment and tweak individual knobs.
type Config struct {
	// Listen address for the HTTP surface.
	Addr string `yaml:"addr"`

	// Path of the embedded SQLite database file.
	DatabasePath string `yaml:"database_path"`

	// Gemini model used for generation, summarization and moderation.
	Model string `yaml:"model"`

	// Gemini API key. Usually left empty here and supplied via
	// GEMINI_API_KEY; with no key the engine runs on the local
	// deterministic generator.
	APIKey string `yaml:"api_key"`

	// Debug switches zap to development output.
	Debug bool `yaml:"debug"`

	Limits Limits `yaml:"-"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Addr:         ":8787",
		DatabasePath: "data/colloquy.db",
		Model:        "gemini-2.0-flash",
		Limits:       DefaultLimits(),
	}
}

// Load reads the YAML file at path (if it exists), then applies
// environment overrides and the env-tunable limits.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return cfg, fmt.Errorf("failed to read config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	if addr := os.Getenv("COLLOQUY_ADDR"); addr != "" {
		cfg.Addr = addr
	}
	if db := os.Getenv("COLLOQUY_DB"); db != "" {
		cfg.DatabasePath = db
	}
	if model := os.Getenv("COLLOQUY_MODEL"); model != "" {
		cfg.Model = model
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		cfg.APIKey = key
	}
	cfg.Limits = LoadLimits()

	return cfg, nil
}
