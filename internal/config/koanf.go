// Favmirror - Incremental Favorites Mirror
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/favmirror

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/favmirror/config.yaml",
	"/etc/favmirror/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all default values.
// Defaults are loaded first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Source: SourceConfig{
			BaseURL:        "https://api.bilibili.com",
			UserAgent:      "Mozilla/5.0 (X11; Linux x86_64) favmirror/1.0",
			Timeout:        10 * time.Second,
			RequestDelay:   500 * time.Millisecond,
			Jitter:         250 * time.Millisecond,
			MaxPages:       100,
			PageSize:       20,
			MaxRetries:     5,
			RetryBaseDelay: 1 * time.Second,
		},
		Database: DatabaseConfig{
			Path:                "data/favmirror.db",
			BackupBeforeMigrate: true,
			MaxOpenConns:        8,
		},
		Assets: AssetsConfig{
			Enabled:  true,
			Dir:      "data/covers",
			Timeout:  10 * time.Second,
			MaxBytes: 10 << 20, // 10MB
		},
		Sync: SyncConfig{
			ContextStore:      "sqlite",
			BadgerPath:        "data/contexts",
			LivenessTimeout:   2 * time.Minute,
			HeartbeatInterval: 20 * time.Second,
			ContextRetention:  30 * 24 * time.Hour,
		},
		Schedule: ScheduleConfig{
			Enabled:      true,
			Spec:         "@every 6h",
			RunOnStartup: false,
		},
		Tasks: TasksConfig{
			Enabled:      true,
			PollInterval: 2 * time.Second,
			MaxRetries:   2,
			RetryDelay:   5 * time.Minute,
			Retention:    30 * 24 * time.Hour,
		},
		Server: ServerConfig{
			Enabled:           true,
			Host:              "127.0.0.1",
			Port:              8000,
			Timeout:           30 * time.Second,
			ShutdownTimeout:   10 * time.Second,
			CORSOrigins:       []string{},
			RateLimitRequests: 100,
			RateLimitWindow:   1 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			MaxSizeMB:  50,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
	}
}

// LoadWithKoanf loads configuration from defaults, the first config file found
// and environment variables, then validates it.
func LoadWithKoanf() (*Config, error) {
	return LoadFrom("")
}

// LoadFrom is LoadWithKoanf with an explicit config file path. An empty path
// falls back to CONFIG_PATH and DefaultConfigPaths. An explicit path that does
// not exist is an error.
func LoadFrom(path string) (*Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: config file (optional)
	configPath := path
	if configPath == "" {
		configPath = findConfigFile()
	} else if _, err := os.Stat(configPath); err != nil {
		return nil, fmt.Errorf("config file %s: %w", configPath, err)
	}
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: environment variables (highest priority)
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the config file to load, or "" when none exists.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths are config paths whose env values are comma-separated lists.
var sliceConfigPaths = []string{
	"server.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps lowercased environment variable names to koanf paths.
// Unmapped variables are ignored.
var envMappings = map[string]string{
	// Remote source
	"source_base_url":          "source.base_url",
	"bilibili_uid":             "source.user_mid",
	"user_dede_user_id":        "source.user_mid",
	"bilibili_cookie":          "source.cookie",
	"raw_cookies":              "source.cookie",
	"source_user_agent":        "source.user_agent",
	"download_timeout":         "source.timeout",
	"request_delay":            "source.request_delay",
	"request_jitter":           "source.jitter",
	"max_pages_per_collection": "source.max_pages",
	"source_page_size":         "source.page_size",
	"source_max_retries":       "source.max_retries",
	"source_retry_base_delay":  "source.retry_base_delay",

	// Store
	"database_path":                  "database.path",
	"database_backup_before_migrate": "database.backup_before_migrate",
	"database_max_open_conns":        "database.max_open_conns",

	// Covers
	"covers_enabled":   "assets.enabled",
	"covers_dir":       "assets.dir",
	"covers_timeout":   "assets.timeout",
	"covers_max_bytes": "assets.max_bytes",

	// Sync engine
	"sync_context_store":      "sync.context_store",
	"sync_badger_path":        "sync.badger_path",
	"sync_liveness_timeout":   "sync.liveness_timeout",
	"sync_heartbeat_interval": "sync.heartbeat_interval",
	"sync_context_retention":  "sync.context_retention",

	// Scheduler
	"sync_schedule_enabled": "schedule.enabled",
	"sync_schedule":         "schedule.spec",
	"sync_on_startup":       "schedule.run_on_startup",

	// Task queue
	"tasks_enabled":      "tasks.enabled",
	"task_poll_interval": "tasks.poll_interval",
	"task_max_retries":   "tasks.max_retries",
	"task_retry_delay":   "tasks.retry_delay",
	"task_retention":     "tasks.retention",

	// HTTP server
	"http_enabled":          "server.enabled",
	"http_host":             "server.host",
	"web_host":              "server.host",
	"http_port":             "server.port",
	"web_port":              "server.port",
	"http_timeout":          "server.timeout",
	"http_shutdown_timeout": "server.shutdown_timeout",
	"cors_origins":          "server.cors_origins",
	"rate_limit_requests":   "server.rate_limit_requests",
	"rate_limit_window":     "server.rate_limit_window",
	"disable_rate_limit":    "server.rate_limit_disabled",

	// Logging
	"log_level":        "logging.level",
	"log_format":       "logging.format",
	"log_caller":       "logging.caller",
	"log_file":         "logging.file",
	"log_max_size_mb":  "logging.max_size_mb",
	"log_max_backups":  "logging.max_backups",
	"log_max_age_days": "logging.max_age_days",
}

// envTransformFunc transforms environment variable names to koanf config paths.
//
// Examples:
//   - DATABASE_PATH -> database.path
//   - MAX_PAGES_PER_COLLECTION -> source.max_pages
//   - SYNC_SCHEDULE -> schedule.spec
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
