// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type AdminConfig struct {
	Port          int    `yaml:"port"`
	APIKey        string `yaml:"api_key"`
	SessionSecret string `yaml:"session_secret"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type ApifyConfig struct {
	Token        string        `yaml:"token"`
	ActorID      string        `yaml:"actor_id"`
	PollInterval time.Duration `yaml:"poll_interval"`
	MaxPolls     int           `yaml:"max_polls"`
}

type AIConfig struct {
	OpenAIKey    string `yaml:"openai_key"`
	GeminiKey    string `yaml:"gemini_key"`
	GeminiURL    string `yaml:"gemini_url"`
	DefaultModel string `yaml:"default_model"`
	WhisperModel string `yaml:"whisper_model"`
}

type StorageConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type WorkerConfig struct {
	Count        int           `yaml:"count"`
	BusyInterval time.Duration `yaml:"busy_interval"`
	IdleInterval time.Duration `yaml:"idle_interval"`
}

type NotifyConfig struct {
	TelegramToken string `yaml:"telegram_token"`
	ChatID        int64  `yaml:"chat_id"`
}

type Config struct {
	Log      LogConfig      `yaml:"log"`
	Admin    AdminConfig    `yaml:"admin"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Apify    ApifyConfig    `yaml:"apify"`
	AI       AIConfig       `yaml:"ai"`
	Storage  StorageConfig  `yaml:"storage"`
	Worker   WorkerConfig   `yaml:"worker"`
	Notify   NotifyConfig   `yaml:"notify"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Worker.Count <= 0 {
		cfg.Worker.Count = 3
	}
	if cfg.Worker.BusyInterval <= 0 {
		cfg.Worker.BusyInterval = 500 * time.Millisecond
	}
	if cfg.Worker.IdleInterval <= 0 {
		cfg.Worker.IdleInterval = 2 * time.Second
	}
	if cfg.Apify.PollInterval <= 0 {
		cfg.Apify.PollInterval = time.Second
	}
	if cfg.Apify.MaxPolls <= 0 {
		cfg.Apify.MaxPolls = 3600
	}
	if cfg.AI.DefaultModel == "" {
		cfg.AI.DefaultModel = "gpt-4o-mini"
	}
	if cfg.AI.WhisperModel == "" {
		cfg.AI.WhisperModel = "whisper-1"
	}
	if cfg.Admin.Port == 0 {
		cfg.Admin.Port = 8080
	}

	// Minimal validation
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if cfg.Apify.Token == "" {
		return nil, errors.New("apify.token is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}
