// Favmirror - Incremental Favorites Mirror
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/favmirror

// Package config loads favmirror configuration with Koanf v2.
//
// Loading order (highest priority wins):
//  1. Built-in defaults (defaultConfig)
//  2. Optional YAML file (CONFIG_PATH, config.yaml, /etc/favmirror/config.yaml)
//  3. Environment variables, through an explicit name mapping
//
// Configuration is read once at startup. Changing it requires a restart.
package config

import (
	"fmt"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Source   SourceConfig   `koanf:"source"`
	Database DatabaseConfig `koanf:"database"`
	Assets   AssetsConfig   `koanf:"assets"`
	Sync     SyncConfig     `koanf:"sync"`
	Schedule ScheduleConfig `koanf:"schedule"`
	Tasks    TasksConfig    `koanf:"tasks"`
	Server   ServerConfig   `koanf:"server"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// SourceConfig configures the remote favorites API client.
type SourceConfig struct {
	// BaseURL of the remote JSON API.
	BaseURL string `koanf:"base_url" validate:"required,url"`

	// UserMID is the remote account whose favorite folders are mirrored.
	UserMID string `koanf:"user_mid"`

	// Cookie is sent verbatim as the Cookie header (e.g. "SESSDATA=...; bili_jct=...").
	Cookie string `koanf:"cookie"`

	UserAgent string        `koanf:"user_agent"`
	Timeout   time.Duration `koanf:"timeout" validate:"gt=0"`

	// RequestDelay is the politeness delay between API requests.
	RequestDelay time.Duration `koanf:"request_delay" validate:"gte=0"`

	// Jitter adds up to this much random extra delay per request.
	Jitter time.Duration `koanf:"jitter" validate:"gte=0"`

	// MaxPages caps listing pages fetched per collection per run.
	MaxPages int `koanf:"max_pages" validate:"gte=1,lte=10000"`

	PageSize       int           `koanf:"page_size" validate:"gte=1,lte=50"`
	MaxRetries     int           `koanf:"max_retries" validate:"gte=0,lte=10"`
	RetryBaseDelay time.Duration `koanf:"retry_base_delay" validate:"gte=0"`
}

// DatabaseConfig configures the SQLite mirror store.
type DatabaseConfig struct {
	Path string `koanf:"path" validate:"required"`

	// BackupBeforeMigrate copies the database before applying pending migrations.
	BackupBeforeMigrate bool `koanf:"backup_before_migrate"`

	MaxOpenConns int `koanf:"max_open_conns" validate:"gte=1"`
}

// AssetsConfig configures the cover image cache.
type AssetsConfig struct {
	// Enabled toggles cover downloads during sync.
	Enabled  bool          `koanf:"enabled"`
	Dir      string        `koanf:"dir"`
	Timeout  time.Duration `koanf:"timeout" validate:"gt=0"`
	MaxBytes int64         `koanf:"max_bytes" validate:"gt=0"`
}

// SyncConfig configures the sync engine and where Sync Contexts are persisted.
type SyncConfig struct {
	// ContextStore selects the Sync Context backend: sqlite, badger or memory.
	ContextStore string `koanf:"context_store" validate:"oneof=sqlite badger memory"`

	// BadgerPath is the directory for the badger context store.
	BadgerPath string `koanf:"badger_path"`

	// LivenessTimeout is how long an in-progress context may go without a
	// heartbeat before it is considered interrupted and resumable.
	LivenessTimeout time.Duration `koanf:"liveness_timeout" validate:"gt=0"`

	HeartbeatInterval time.Duration `koanf:"heartbeat_interval" validate:"gt=0"`

	// ContextRetention is how long completed and cleaned contexts are kept.
	ContextRetention time.Duration `koanf:"context_retention" validate:"gte=0"`
}

// ScheduleConfig configures periodic sync runs in serve mode.
type ScheduleConfig struct {
	Enabled bool `koanf:"enabled"`

	// Spec is a standard 5-field cron expression or descriptor such as "@every 6h".
	Spec string `koanf:"spec"`

	RunOnStartup bool `koanf:"run_on_startup"`
}

// TasksConfig configures the persisted sync task queue in serve mode.
type TasksConfig struct {
	// Enabled runs the queue worker. Tasks can still be submitted from the
	// CLI when it is off; they run on the next serve with the queue enabled.
	Enabled bool `koanf:"enabled"`

	PollInterval time.Duration `koanf:"poll_interval" validate:"gt=0"`

	// MaxRetries is the number of automatic retries for a failed task.
	MaxRetries int           `koanf:"max_retries" validate:"gte=0,lte=10"`
	RetryDelay time.Duration `koanf:"retry_delay" validate:"gt=0"`

	// Retention is how long finished tasks are kept. Zero keeps them forever.
	Retention time.Duration `koanf:"retention" validate:"gte=0"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Enabled           bool          `koanf:"enabled"`
	Host              string        `koanf:"host"`
	Port              int           `koanf:"port" validate:"gte=1,lte=65535"`
	Timeout           time.Duration `koanf:"timeout" validate:"gt=0"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitRequests int           `koanf:"rate_limit_requests" validate:"gte=0"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window" validate:"gte=0"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoggingConfig configures zerolog output.
type LoggingConfig struct {
	Level      string `koanf:"level" validate:"oneof=trace debug info warn warning error"`
	Format     string `koanf:"format" validate:"oneof=json console"`
	Caller     bool   `koanf:"caller"`
	File       string `koanf:"file"`
	MaxSizeMB  int    `koanf:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `koanf:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `koanf:"max_age_days" validate:"gte=0"`
}
