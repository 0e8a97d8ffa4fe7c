// Favmirror - Incremental Favorites Mirror
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/favmirror

package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/tomtom215/favmirror/internal/config"
	"github.com/tomtom215/favmirror/internal/logging"
	"github.com/tomtom215/favmirror/internal/metrics"
)

// maxErrorBodySize limits how much of an error response body is read for diagnostics.
const maxErrorBodySize = 64 * 1024 // 64KB

// invalidTitle is the placeholder title the remote shows for invalidated entries.
const invalidTitle = "已失效视频"

// Remote codes that mean the resource no longer exists.
var goneCodes = map[int]bool{
	-404:  true,
	62002: true, // item invisible
	62004: true, // item under review or removed
	62012: true, // item visible to uploader only
}

// Remote codes that signal throttling or temporary failure.
var transientCodes = map[int]bool{
	-412: true, // request intercepted (anti-crawl)
	-509: true, // over frequency
	-799: true, // too many requests
	-500: true,
	-503: true,
}

// Remote codes that mean the credentials are not accepted.
var unavailableCodes = map[int]bool{
	-101: true, // not logged in
	-111: true, // csrf mismatch
	-403: true, // access denied
}

// readBodyForError reads at most maxErrorBodySize bytes of an error response.
func readBodyForError(r io.Reader) []byte {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return []byte("(failed to read response body)")
	}
	if len(body) == maxErrorBodySize {
		return append(body, []byte("\n... (truncated)")...)
	}
	return body
}

// Client is the HTTP implementation of Source for a Bilibili-style
// favorites API. API calls share one politeness limiter; asset downloads
// bypass it since covers are served from separate CDN hosts.
type Client struct {
	baseURL        string
	userMID        string
	cookie         string
	userAgent      string
	pageSize       int
	maxPages       int
	maxRetries     int
	retryBaseDelay time.Duration
	jitter         time.Duration

	// maxAssetBytes bounds FetchAsset bodies.
	maxAssetBytes int64

	client  *http.Client
	limiter *rate.Limiter
}

// NewClient creates a client from configuration.
//
// Defaults:
//   - one API request per RequestDelay, plus up to Jitter random extra wait
//   - HTTP 429 retried MaxRetries times with exponential backoff from RetryBaseDelay
func NewClient(cfg config.SourceConfig) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		userMID:        cfg.UserMID,
		cookie:         cfg.Cookie,
		userAgent:      cfg.UserAgent,
		pageSize:       cfg.PageSize,
		maxPages:       cfg.MaxPages,
		maxRetries:     cfg.MaxRetries,
		retryBaseDelay: cfg.RetryBaseDelay,
		jitter:         cfg.Jitter,
		maxAssetBytes:  defaultMaxAssetBytes,
		client:         &http.Client{Timeout: cfg.Timeout},
	}
	if c.pageSize <= 0 {
		c.pageSize = 20
	}
	if cfg.RequestDelay > 0 {
		c.limiter = rate.NewLimiter(rate.Every(cfg.RequestDelay), 1)
	}
	return c
}

const defaultMaxAssetBytes = 10 << 20

// WithMaxAssetBytes sets the largest asset body FetchAsset accepts.
func (c *Client) WithMaxAssetBytes(n int64) *Client {
	if n > 0 {
		c.maxAssetBytes = n
	}
	return c
}

// PageLimit returns the per-collection page cap.
func (c *Client) PageLimit() int {
	return c.maxPages
}

// wait blocks for the politeness delay.
func (c *Client) wait(ctx context.Context) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	if c.jitter > 0 {
		extra := time.Duration(rand.Int64N(int64(c.jitter)))
		select {
		case <-time.After(extra):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, reqURL string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if c.cookie != "" {
		req.Header.Set("Cookie", c.cookie)
	}
	req.Header.Set("Referer", "https://www.bilibili.com/")
	return req, nil
}

// doRequestWithRateLimit performs a GET with exponential backoff on HTTP 429.
// Retry-After (seconds) overrides the computed delay.
func (c *Client) doRequestWithRateLimit(ctx context.Context, reqURL string) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		req, err := c.newRequest(ctx, reqURL)
		if err != nil {
			return nil, err
		}

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("%w: HTTP request failed: %w", ErrTransient, err)
		}

		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}

		_ = resp.Body.Close()
		metrics.SourceRateLimited.Inc()

		if attempt >= c.maxRetries {
			return nil, &APIError{
				Op:         "request",
				StatusCode: http.StatusTooManyRequests,
				Message:    fmt.Sprintf("rate limit exceeded after %d retries", c.maxRetries),
				Kind:       ErrTransient,
			}
		}

		delay := c.retryBaseDelay * time.Duration(1<<uint(attempt))
		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds >= 0 {
				delay = time.Duration(seconds) * time.Second
			}
		}

		logging.Debug().Int("attempt", attempt+1).Dur("delay", delay).Msg("Remote rate limited, backing off")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// envelope is the common response wrapper.
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// classifyStatus maps a non-200 HTTP status to a sentinel.
func classifyStatus(status int) error {
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return ErrUnavailable
	case status == http.StatusNotFound:
		return ErrNotFound
	default:
		return ErrTransient
	}
}

// classifyCode maps a remote envelope code to a sentinel. detail selects
// ErrItemGone for removal codes; listings report them as ErrNotFound.
func classifyCode(code int, detail bool) error {
	switch {
	case goneCodes[code]:
		if detail {
			return ErrItemGone
		}
		return ErrNotFound
	case unavailableCodes[code]:
		return ErrUnavailable
	case transientCodes[code]:
		return ErrTransient
	default:
		return ErrTransient
	}
}

// getJSON calls an API endpoint and decodes the envelope's data into out.
func (c *Client) getJSON(ctx context.Context, op, path string, query url.Values, detail bool, out any) (err error) {
	start := time.Now()
	defer func() { metrics.RecordSourceRequest(op, time.Since(start), err) }()

	if err := c.wait(ctx); err != nil {
		return err
	}

	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	resp, err := c.doRequestWithRateLimit(ctx, reqURL)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			apiErr.Op = op
		}
		return err
	}
	defer closeBody(resp)

	if resp.StatusCode != http.StatusOK {
		body := readBodyForError(resp.Body)
		return &APIError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Message:    string(body),
			Kind:       classifyStatus(resp.StatusCode),
		}
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("%w: failed to decode %s response: %w", ErrTransient, op, err)
	}
	if env.Code != 0 {
		return &APIError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Code:       env.Code,
			Message:    env.Message,
			Kind:       classifyCode(env.Code, detail),
		}
	}
	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%w: failed to decode %s data: %w", ErrTransient, op, err)
	}
	return nil
}

func closeBody(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBodySize))
	_ = resp.Body.Close()
}

// ListCollections returns the folders created by the configured account.
func (c *Client) ListCollections(ctx context.Context) ([]RemoteCollection, error) {
	if c.userMID == "" {
		return nil, fmt.Errorf("%w: no account id configured", ErrUnavailable)
	}

	var data folderListData
	query := url.Values{"up_mid": {c.userMID}}
	if err := c.getJSON(ctx, "list_collections", "/x/v3/fav/folder/created/list-all", query, false, &data); err != nil {
		return nil, err
	}

	out := make([]RemoteCollection, 0, len(data.List))
	for _, f := range data.List {
		out = append(out, f.toRemote())
	}
	return out, nil
}

// ListItems returns one page of a folder. Pages beyond the cap return
// ErrPageCapReached without contacting the remote.
func (c *Client) ListItems(ctx context.Context, collectionID string, page int) (*Page, error) {
	if page < 1 {
		return nil, fmt.Errorf("invalid page %d", page)
	}
	if c.maxPages > 0 && page > c.maxPages {
		return nil, fmt.Errorf("%w: page %d > %d", ErrPageCapReached, page, c.maxPages)
	}

	var data resourceListData
	query := url.Values{
		"media_id": {collectionID},
		"pn":       {strconv.Itoa(page)},
		"ps":       {strconv.Itoa(c.pageSize)},
		"platform": {"web"},
	}
	if err := c.getJSON(ctx, "list_items", "/x/v3/fav/resource/list", query, false, &data); err != nil {
		return nil, err
	}

	p := &Page{Number: page, HasMore: data.HasMore, Entries: make([]Entry, 0, len(data.Medias))}
	if data.Info != nil {
		rc := data.Info.toRemote()
		p.Collection = &rc
	}
	for i := range data.Medias {
		p.Entries = append(p.Entries, data.Medias[i].toEntry())
	}
	return p, nil
}

// GetItemDetail fetches an item by short code (bvid).
func (c *Client) GetItemDetail(ctx context.Context, shortCode string) (*Entry, error) {
	var data viewData
	query := url.Values{"bvid": {shortCode}}
	if err := c.getJSON(ctx, "item_detail", "/x/web-interface/view", query, true, &data); err != nil {
		return nil, err
	}
	e := data.toEntry()
	return &e, nil
}

// FetchAsset downloads an asset. It is not subject to the API limiter.
func (c *Client) FetchAsset(ctx context.Context, assetURL string) (_ []byte, err error) {
	start := time.Now()
	defer func() { metrics.RecordSourceRequest("fetch_asset", time.Since(start), err) }()

	resp, err := c.doRequestWithRateLimit(ctx, assetURL)
	if err != nil {
		return nil, err
	}
	defer closeBody(resp)

	if resp.StatusCode != http.StatusOK {
		body := readBodyForError(resp.Body)
		return nil, &APIError{
			Op:         "fetch_asset",
			StatusCode: resp.StatusCode,
			Message:    string(body),
			Kind:       classifyStatus(resp.StatusCode),
		}
	}

	if resp.ContentLength > c.maxAssetBytes {
		return nil, fmt.Errorf("%w: %d bytes declared, limit %d", ErrAssetTooLarge, resp.ContentLength, c.maxAssetBytes)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxAssetBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read asset: %w", ErrTransient, err)
	}
	if int64(len(data)) > c.maxAssetBytes {
		return nil, fmt.Errorf("%w: limit %d", ErrAssetTooLarge, c.maxAssetBytes)
	}
	return data, nil
}

var _ Source = (*Client)(nil)
