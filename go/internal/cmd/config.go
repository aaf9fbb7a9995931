package main

import (
	"os"

	"github.com/focusguard/focusguard/go/internal/config"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// loadConfig reads CONFIG_PATH (default config.yaml) and applies environment overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(getEnv("CONFIG_PATH", config.DefaultPath))
	if err != nil {
		return nil, err
	}
	cfg.Server.Port = getEnv("PORT", cfg.Server.Port)
	return cfg, nil
}
