// Favmirror - Incremental Favorites Mirror
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/favmirror

// Package assets stores item cover images on local disk.
//
// A cover lives at <dir>/<short_code><ext>. The extension comes from the
// remote URL path and defaults to .jpg. Files are written through a temp file
// and renamed into place, so a reader never sees a partial image.
package assets

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/tomtom215/favmirror/internal/logging"
	"github.com/tomtom215/favmirror/internal/metrics"
)

var (
	// ErrInvalidURL is returned for empty or non-http(s) cover URLs.
	ErrInvalidURL = errors.New("invalid cover url")

	// ErrTooLarge is returned when a downloaded asset exceeds the size limit.
	ErrTooLarge = errors.New("cover exceeds size limit")

	// ErrInvalidShortCode is returned when a short code cannot name a file.
	ErrInvalidShortCode = errors.New("invalid short code")
)

var allowedExt = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".gif":  true,
}

var shortCodePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Fetcher downloads raw asset bytes. source.Source satisfies it.
type Fetcher interface {
	FetchAsset(ctx context.Context, url string) ([]byte, error)
}

// Cache downloads covers into a directory.
type Cache struct {
	dir      string
	fetcher  Fetcher
	timeout  time.Duration
	maxBytes int64
}

// New creates a cache rooted at dir. A zero timeout disables the per-download
// deadline and a zero maxBytes disables the size check.
func New(dir string, fetcher Fetcher, timeout time.Duration, maxBytes int64) *Cache {
	return &Cache{dir: dir, fetcher: fetcher, timeout: timeout, maxBytes: maxBytes}
}

// Dir returns the cache directory.
func (c *Cache) Dir() string {
	return c.dir
}

// NormalizeURL turns protocol-relative URLs into https and rejects anything
// that is not http(s).
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidURL)
	}
	if strings.HasPrefix(raw, "//") {
		raw = "https:" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: scheme %q", ErrInvalidURL, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	return u.String(), nil
}

// extFor returns the file extension for a cover URL.
func extFor(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ".jpg"
	}
	ext := strings.ToLower(path.Ext(u.Path))
	if allowedExt[ext] {
		return ext
	}
	return ".jpg"
}

// PathFor returns the local path for an item's cover.
func (c *Cache) PathFor(shortCode, coverURL string) (string, error) {
	if !shortCodePattern.MatchString(shortCode) {
		return "", fmt.Errorf("%w: %q", ErrInvalidShortCode, shortCode)
	}
	return filepath.Join(c.dir, shortCode+extFor(coverURL)), nil
}

// Exists reports whether a regular file is present at p.
func Exists(p string) bool {
	if p == "" {
		return false
	}
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}

// Ensure makes sure the cover for shortCode is on disk and returns its path.
// Without forced, an existing file is kept and downloaded is false.
func (c *Cache) Ensure(ctx context.Context, shortCode, coverURL string, forced bool) (string, bool, error) {
	normalized, err := NormalizeURL(coverURL)
	if err != nil {
		return "", false, err
	}
	dest, err := c.PathFor(shortCode, normalized)
	if err != nil {
		return "", false, err
	}
	if !forced && Exists(dest) {
		return dest, false, nil
	}

	fetchCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	data, err := c.fetcher.FetchAsset(fetchCtx, normalized)
	if err != nil {
		return "", false, fmt.Errorf("download cover %s: %w", shortCode, err)
	}
	if len(data) == 0 {
		return "", false, fmt.Errorf("download cover %s: empty body", shortCode)
	}
	if c.maxBytes > 0 && int64(len(data)) > c.maxBytes {
		return "", false, fmt.Errorf("%w: %s is %d bytes", ErrTooLarge, shortCode, len(data))
	}

	if err := writeAtomic(dest, data); err != nil {
		return "", false, fmt.Errorf("write cover %s: %w", shortCode, err)
	}

	metrics.RecordCover(len(data))
	logging.Debug().Str("short_code", shortCode).Str("path", dest).Int("bytes", len(data)).Msg("Cover downloaded")
	return dest, true, nil
}

// writeAtomic writes data to a temp file in the target directory and renames it over dest.
func writeAtomic(dest string, data []byte) error {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".cover-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}
