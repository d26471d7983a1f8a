package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	yaml "gopkg.in/yaml.v3"
)

type AppConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	NodeID     string `yaml:"node_id"`

	RedisURL         string `yaml:"redis_url"`
	DatabaseURL      string `yaml:"database_url"`
	ResultWebhookURL string `yaml:"result_webhook_url"`

	DefaultTimeControl time.Duration `yaml:"-"`
	MaxTimeControl     time.Duration `yaml:"-"`
	SweepInterval      time.Duration `yaml:"-"`
	BotDelay           time.Duration `yaml:"-"`

	PersistWorkers int           `yaml:"persist_workers"`
	PersistQueue   int           `yaml:"persist_queue"`
	PersistTimeout time.Duration `yaml:"-"`

	AllowedOrigins []string `yaml:"allowed_origins"`
	MessagesDir    string   `yaml:"messages_dir"`

	// YAML carries durations as plain integers, same units as the env vars.
	DefaultTimeControlSec int `yaml:"default_time_control"`
	MaxTimeControlSec     int `yaml:"max_time_control"`
	SweepIntervalMS       int `yaml:"sweep_interval_ms"`
	BotThinkMS            int `yaml:"bot_think_ms"`
	PersistTimeoutMS      int `yaml:"persist_timeout_ms"`
}

func defaults() *AppConfig {
	return &AppConfig{
		ListenAddr:            ":5000",
		PersistWorkers:        4,
		PersistQueue:          256,
		DefaultTimeControlSec: 300,
		MaxTimeControlSec:     3 * 3600,
		SweepIntervalMS:       500,
		BotThinkMS:            1000,
		PersistTimeoutMS:      3000,
	}
}

// Load reads .env (if present), then the YAML file named by CONFIG_FILE,
// then environment variables. Later sources win.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	cfg := defaults()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	setString(&cfg.ListenAddr, "LISTEN_ADDR")
	setString(&cfg.NodeID, "NODE_ID")
	setString(&cfg.RedisURL, "REDIS_URL")
	setString(&cfg.DatabaseURL, "DATABASE_URL")
	setString(&cfg.ResultWebhookURL, "RESULT_WEBHOOK_URL")
	setString(&cfg.MessagesDir, "MESSAGES_DIR")

	if v := strings.TrimSpace(os.Getenv("ALLOWED_ORIGINS")); v != "" {
		cfg.AllowedOrigins = nil
		for _, p := range strings.Split(v, ",") {
			if s := strings.TrimSpace(p); s != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, s)
			}
		}
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"DEFAULT_TIME_CONTROL", &cfg.DefaultTimeControlSec},
		{"MAX_TIME_CONTROL", &cfg.MaxTimeControlSec},
		{"SWEEP_INTERVAL_MS", &cfg.SweepIntervalMS},
		{"BOT_THINK_MS", &cfg.BotThinkMS},
		{"PERSIST_TIMEOUT_MS", &cfg.PersistTimeoutMS},
		{"PERSIST_WORKERS", &cfg.PersistWorkers},
		{"PERSIST_QUEUE", &cfg.PersistQueue},
	}
	for _, it := range ints {
		if err := setPositiveInt(it.dst, it.key); err != nil {
			return nil, err
		}
	}

	cfg.DefaultTimeControl = time.Duration(cfg.DefaultTimeControlSec) * time.Second
	cfg.MaxTimeControl = time.Duration(cfg.MaxTimeControlSec) * time.Second
	cfg.SweepInterval = time.Duration(cfg.SweepIntervalMS) * time.Millisecond
	cfg.BotDelay = time.Duration(cfg.BotThinkMS) * time.Millisecond
	cfg.PersistTimeout = time.Duration(cfg.PersistTimeoutMS) * time.Millisecond

	if cfg.NodeID == "" {
		cfg.NodeID = uuid.NewString()
	}
	if cfg.ListenAddr == "" {
		return nil, errors.New("LISTEN_ADDR is required")
	}
	if cfg.DefaultTimeControl > cfg.MaxTimeControl {
		return nil, errors.New("DEFAULT_TIME_CONTROL exceeds MAX_TIME_CONTROL")
	}
	return cfg, nil
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setPositiveInt(dst *int, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		if *dst <= 0 {
			return fmt.Errorf("%s must be a positive integer", key)
		}
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fmt.Errorf("%s must be a positive integer, got %q", key, v)
	}
	*dst = n
	return nil
}

// ClampTimeControl maps a requested control in seconds onto the configured
// bounds. Zero or negative requests use the default.
func (c *AppConfig) ClampTimeControl(seconds int) time.Duration {
	if seconds <= 0 {
		return c.DefaultTimeControl
	}
	d := time.Duration(seconds) * time.Second
	if d > c.MaxTimeControl {
		return c.MaxTimeControl
	}
	return d
}
