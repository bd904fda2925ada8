package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the service. Durations are whole
// seconds so every supported file format can express them.
type Config struct {
	Addr        string `json:"addr" yaml:"addr" toml:"addr"`
	OllamaHost  string `json:"ollama_host" yaml:"ollama_host" toml:"ollama_host"`
	Model       string `json:"model" yaml:"model" toml:"model"`
	DBPath      string `json:"db_path" yaml:"db_path" toml:"db_path"`
	FrontendDir string `json:"frontend_dir" yaml:"frontend_dir" toml:"frontend_dir"`

	LogLevel  string `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogPretty bool   `json:"log_pretty" yaml:"log_pretty" toml:"log_pretty"`

	ConnectTimeoutSec int `json:"connect_timeout_sec" yaml:"connect_timeout_sec" toml:"connect_timeout_sec"`
	ReadTimeoutSec    int `json:"read_timeout_sec" yaml:"read_timeout_sec" toml:"read_timeout_sec"`
	NamingTimeoutSec  int `json:"naming_timeout_sec" yaml:"naming_timeout_sec" toml:"naming_timeout_sec"`
	SendTimeoutSec    int `json:"send_timeout_sec" yaml:"send_timeout_sec" toml:"send_timeout_sec"`
	HealthTTLSec      int `json:"health_ttl_sec" yaml:"health_ttl_sec" toml:"health_ttl_sec"`
	ShutdownSec       int `json:"shutdown_sec" yaml:"shutdown_sec" toml:"shutdown_sec"`

	ProgressEvery int `json:"progress_every" yaml:"progress_every" toml:"progress_every"`
	// MaxSessions caps concurrent streaming sessions (0 = unlimited).
	MaxSessions  int   `json:"max_sessions" yaml:"max_sessions" toml:"max_sessions"`
	MaxWaitSec   int   `json:"max_wait_sec" yaml:"max_wait_sec" toml:"max_wait_sec"`
	HistoryLimit int   `json:"history_limit" yaml:"history_limit" toml:"history_limit"`
	MaxBodyBytes int64 `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`

	CORSEnabled bool     `json:"cors_enabled" yaml:"cors_enabled" toml:"cors_enabled"`
	CORSOrigins []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`
}

// Defaults returns the configuration used when nothing else is specified.
func Defaults() Config {
	return Config{
		Addr:              ":8000",
		OllamaHost:        "http://localhost:11434",
		Model:             "qwen2.5:14b",
		DBPath:            "~/.codegend/generations.db",
		LogLevel:          "info",
		ConnectTimeoutSec: 5,
		ReadTimeoutSec:    30,
		NamingTimeoutSec:  20,
		SendTimeoutSec:    5,
		HealthTTLSec:      30,
		ShutdownSec:       10,
		ProgressEvery:     10,
		MaxWaitSec:        30,
		HistoryLimit:      50,
		MaxBodyBytes:      1 << 20,
		CORSEnabled:       true,
		CORSOrigins:       []string{"*"},
	}
}

// Load reads a configuration file based on its extension on top of Defaults.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &cfg)
	case ".json":
		err = json.Unmarshal(b, &cfg)
	case ".toml":
		err = toml.Unmarshal(b, &cfg)
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	if err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// LoadDotEnv loads KEY=VALUE files into the process environment without
// overriding variables that are already set. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overrides cfg with the environment variables the service has
// always honored.
func ApplyEnv(cfg *Config, getenv func(string) string) error {
	if getenv == nil {
		getenv = os.Getenv
	}
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&cfg.OllamaHost, "OLLAMA_HOST")
	set(&cfg.Model, "MODEL_NAME")
	set(&cfg.Addr, "CODEGEN_ADDR")
	set(&cfg.DBPath, "CODEGEN_DB_PATH")
	set(&cfg.FrontendDir, "CODEGEN_FRONTEND_DIR")
	set(&cfg.LogLevel, "CODEGEN_LOG_LEVEL")
	if v := strings.TrimSpace(getenv("CODEGEN_MAX_SESSIONS")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CODEGEN_MAX_SESSIONS: %w", err)
		}
		cfg.MaxSessions = n
	}
	return nil
}

// Validate rejects settings the server cannot start with.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Addr) == "" {
		errs = append(errs, errors.New("addr is required"))
	}
	if !strings.HasPrefix(c.OllamaHost, "http://") && !strings.HasPrefix(c.OllamaHost, "https://") {
		errs = append(errs, fmt.Errorf("ollama_host must be an http(s) URL: %q", c.OllamaHost))
	}
	if strings.TrimSpace(c.DBPath) == "" {
		errs = append(errs, errors.New("db_path is required"))
	}
	if c.MaxSessions < 0 {
		errs = append(errs, errors.New("max_sessions must be >= 0"))
	}
	if c.ProgressEvery < 0 {
		errs = append(errs, errors.New("progress_every must be >= 0"))
	}
	return errors.Join(errs...)
}

// Seconds converts a whole-second setting to a Duration.
func Seconds(n int) time.Duration { return time.Duration(n) * time.Second }
