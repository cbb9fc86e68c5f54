package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	SSLMode  string `json:"ssl_mode"`
}

type AIEndpointConfig struct {
	Provider string      `json:"provider"`
	Model    string      `json:"model"`
	Data     interface{} `json:"data"`
}

type AIConfig struct {
	Provider      string             `json:"provider"`
	Model         string             `json:"model"`
	EmbedProvider string             `json:"embed_provider"`
	EmbedModel    string             `json:"embed_model"`
	MaxInputChars int                `json:"max_input_chars"`
	Timeout       int                `json:"timeout"`
	Data          interface{}        `json:"data"`
	Fallbacks     []AIEndpointConfig `json:"fallbacks"`
}

type FileStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type CaptureConfig struct {
	JobTTLSeconds   int64  `json:"job_ttl_seconds"`
	MaxContentChars int    `json:"max_content_chars"`
	CleanupSpec     string `json:"cleanup_spec"`
	SweepSpec       string `json:"sweep_spec"`
}

type ReviewConfig struct {
	LearningStepsSeconds []int64 `json:"learning_steps_seconds"`
	EasyBonus            float64 `json:"easy_bonus"`
	InitialEaseFactor    float64 `json:"initial_ease_factor"`
	MinEaseFactor        float64 `json:"min_ease_factor"`
	MaxEaseFactor        float64 `json:"max_ease_factor"`
	MaxIntervalDays      int64   `json:"max_interval_days"`
}

type Config struct {
	Port             int              `json:"port"`
	JWTSecret        string           `json:"jwt_secret"`
	JWTTTLHours      int              `json:"jwt_ttl_hours"`
	Database         DatabaseConfig   `json:"database"`
	LogConfig        logger.LogConfig `json:"log_config"`
	AI               AIConfig         `json:"ai"`
	FileStore        FileStoreConfig  `json:"file_store"`
	Capture          CaptureConfig    `json:"capture"`
	Review           ReviewConfig     `json:"review"`
	CORSOrigins      []string         `json:"cors_origins"`
	RateLimitSeconds int              `json:"rate_limit_seconds"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Port == 0 {
		return nil, fmt.Errorf("port is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("jwt_secret is required")
	}
	if cfg.Database.DSN == "" && cfg.Database.Host == "" {
		return nil, fmt.Errorf("database.dsn or database.host is required")
	}
	if cfg.JWTTTLHours == 0 {
		cfg.JWTTTLHours = 72
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.AI.Provider == "" {
		return nil, fmt.Errorf("ai.provider is required")
	}
	if cfg.AI.Timeout <= 0 {
		cfg.AI.Timeout = 120
	}
	if cfg.AI.MaxInputChars <= 0 {
		cfg.AI.MaxInputChars = 64 * 1024
	}
	if cfg.FileStore.Type == "" {
		cfg.FileStore.Type = "local"
	}
	if cfg.Capture.JobTTLSeconds <= 0 {
		cfg.Capture.JobTTLSeconds = 600
	}
	if cfg.Capture.MaxContentChars <= 0 {
		cfg.Capture.MaxContentChars = 8000
	}
	if cfg.Capture.CleanupSpec == "" {
		cfg.Capture.CleanupSpec = "*/10 * * * *"
	}
	if cfg.Capture.SweepSpec == "" {
		cfg.Capture.SweepSpec = "*/5 * * * *"
	}
	return &cfg, nil
}
