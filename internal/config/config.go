package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
)

type AppConfig struct {
	WSAddr  string
	APIAddr string

	RedisURL    string
	DatabaseURL string

	AIBaseURL string
	AIAPIKey  string
	AIModel   string

	MasterOverrideDir string

	AITimeoutSec int
	AIMaxRetries int

	OutboundBuffer int
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		WSAddr:         ":8080",
		APIAddr:        ":8081",
		AITimeoutSec:   30,
		AIMaxRetries:   2,
		OutboundBuffer: 64,
	}

	if v := strings.TrimSpace(os.Getenv("WS_ADDR")); v != "" {
		cfg.WSAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("API_ADDR")); v != "" {
		cfg.APIAddr = v
	}

	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))

	cfg.AIBaseURL = strings.TrimSpace(os.Getenv("AI_BASE_URL"))
	cfg.AIAPIKey = strings.TrimSpace(os.Getenv("AI_API_KEY"))
	cfg.AIModel = strings.TrimSpace(os.Getenv("AI_MODEL"))

	cfg.MasterOverrideDir = strings.TrimSpace(os.Getenv("MASTER_OVERRIDE_DIR"))

	if v := strings.TrimSpace(os.Getenv("AI_TIMEOUT")); v != "" { // seconds
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.AITimeoutSec = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("AI_MAX_RETRIES")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.AIMaxRetries = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("OUTBOUND_BUFFER")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.OutboundBuffer = n
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.AIBaseURL == "" {
		return nil, errors.New("AI_BASE_URL is required")
	}
	if cfg.AIAPIKey == "" {
		return nil, errors.New("AI_API_KEY is required")
	}

	return cfg, nil
}
