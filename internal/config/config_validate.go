// Favmirror - Incremental Favorites Mirror
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/favmirror

package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"

	"github.com/tomtom215/favmirror/internal/validation"
)

// Validate checks that required configuration is present and consistent.
// Field-level constraints come from struct tags; cross-field rules follow.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		return err
	}

	if err := c.validateSource(); err != nil {
		return err
	}

	if err := c.validateAssets(); err != nil {
		return err
	}

	if err := c.validateSync(); err != nil {
		return err
	}

	return c.validateSchedule()
}

func (c *Config) validateSource() error {
	u, err := url.Parse(c.Source.BaseURL)
	if err != nil {
		return fmt.Errorf("SOURCE_BASE_URL is invalid: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("SOURCE_BASE_URL must use http or https, got %q", u.Scheme)
	}
	if c.Source.UserMID != "" && strings.Trim(c.Source.UserMID, "0123456789") != "" {
		return fmt.Errorf("BILIBILI_UID must be numeric, got %q", c.Source.UserMID)
	}
	return nil
}

func (c *Config) validateAssets() error {
	if c.Assets.Enabled && c.Assets.Dir == "" {
		return fmt.Errorf("COVERS_DIR is required when COVERS_ENABLED=true")
	}
	return nil
}

func (c *Config) validateSync() error {
	if c.Sync.ContextStore == "badger" && c.Sync.BadgerPath == "" {
		return fmt.Errorf("SYNC_BADGER_PATH is required when SYNC_CONTEXT_STORE=badger")
	}
	if c.Sync.HeartbeatInterval >= c.Sync.LivenessTimeout {
		return fmt.Errorf("SYNC_HEARTBEAT_INTERVAL (%s) must be shorter than SYNC_LIVENESS_TIMEOUT (%s)",
			c.Sync.HeartbeatInterval, c.Sync.LivenessTimeout)
	}
	return nil
}

func (c *Config) validateSchedule() error {
	if !c.Schedule.Enabled {
		return nil
	}
	if c.Schedule.Spec == "" {
		return fmt.Errorf("SYNC_SCHEDULE is required when SYNC_SCHEDULE_ENABLED=true")
	}
	if _, err := cron.ParseStandard(c.Schedule.Spec); err != nil {
		return fmt.Errorf("SYNC_SCHEDULE is invalid: %w", err)
	}
	return nil
}
