// Favmirror - Incremental Favorites Mirror
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/favmirror

package assets

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type fakeFetcher struct {
	mu    sync.Mutex
	data  map[string][]byte
	err   error
	calls []string
}

func (f *fakeFetcher) FetchAsset(ctx context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	if f.err != nil {
		return nil, f.err
	}
	d, ok := f.data[url]
	if !ok {
		return nil, errors.New("no such asset")
	}
	return d, nil
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"//i0.hdslb.com/bfs/a.jpg", "https://i0.hdslb.com/bfs/a.jpg", false},
		{"http://i0.hdslb.com/a.png", "http://i0.hdslb.com/a.png", false},
		{"  https://x/y.webp ", "https://x/y.webp", false},
		{"", "", true},
		{"ftp://x/y.jpg", "", true},
		{"file:///etc/passwd", "", true},
		{"/relative/path.jpg", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeURL(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidURL) {
					t.Fatalf("expected ErrInvalidURL, got %v", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Fatalf("NormalizeURL(%q) = %q, %v", tt.in, got, err)
			}
		})
	}
}

func TestPathFor(t *testing.T) {
	c := New("/covers", nil, 0, 0)
	tests := []struct {
		code, url, want string
	}{
		{"BV1aa", "https://x/a.PNG", "/covers/BV1aa.png"},
		{"BV1aa", "https://x/a.jpeg?x=1", "/covers/BV1aa.jpeg"},
		{"BV1aa", "https://x/a", "/covers/BV1aa.jpg"},
		{"BV1aa", "https://x/a.exe", "/covers/BV1aa.jpg"},
	}
	for _, tt := range tests {
		got, err := c.PathFor(tt.code, tt.url)
		if err != nil || got != filepath.FromSlash(tt.want) {
			t.Errorf("PathFor(%q, %q) = %q, %v", tt.code, tt.url, got, err)
		}
	}

	if _, err := c.PathFor("../etc", "https://x/a.jpg"); !errors.Is(err, ErrInvalidShortCode) {
		t.Errorf("expected ErrInvalidShortCode, got %v", err)
	}
}

func TestEnsure(t *testing.T) {
	dir := t.TempDir()
	f := &fakeFetcher{data: map[string][]byte{"https://cdn/a.jpg": []byte("jpegdata")}}
	c := New(dir, f, time.Second, 1024)
	ctx := context.Background()

	p, downloaded, err := c.Ensure(ctx, "BV1aa", "//cdn/a.jpg", false)
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if !downloaded || p != filepath.Join(dir, "BV1aa.jpg") {
		t.Fatalf("Ensure = %q, %v", p, downloaded)
	}
	got, _ := os.ReadFile(p)
	if string(got) != "jpegdata" {
		t.Errorf("file content = %q", got)
	}

	t.Run("existing file is kept", func(t *testing.T) {
		_, downloaded, err := c.Ensure(ctx, "BV1aa", "https://cdn/a.jpg", false)
		if err != nil || downloaded {
			t.Fatalf("second Ensure downloaded=%v err=%v", downloaded, err)
		}
		if len(f.calls) != 1 {
			t.Errorf("fetch calls = %d, want 1", len(f.calls))
		}
	})

	t.Run("forced re-downloads", func(t *testing.T) {
		_, downloaded, err := c.Ensure(ctx, "BV1aa", "https://cdn/a.jpg", true)
		if err != nil || !downloaded {
			t.Fatalf("forced Ensure downloaded=%v err=%v", downloaded, err)
		}
	})

	t.Run("no temp files left", func(t *testing.T) {
		entries, _ := os.ReadDir(dir)
		for _, e := range entries {
			if e.Name() != "BV1aa.jpg" {
				t.Errorf("unexpected file %s", e.Name())
			}
		}
	})
}

func TestEnsureFailures(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	t.Run("fetch error", func(t *testing.T) {
		f := &fakeFetcher{err: errors.New("cdn down")}
		c := New(dir, f, time.Second, 0)
		if _, _, err := c.Ensure(ctx, "BV1aa", "https://cdn/a.jpg", false); err == nil {
			t.Fatal("expected error")
		}
		if Exists(filepath.Join(dir, "BV1aa.jpg")) {
			t.Error("failed download must not leave a file")
		}
	})

	t.Run("too large", func(t *testing.T) {
		f := &fakeFetcher{data: map[string][]byte{"https://cdn/big.jpg": make([]byte, 100)}}
		c := New(dir, f, time.Second, 10)
		if _, _, err := c.Ensure(ctx, "BV1bb", "https://cdn/big.jpg", false); !errors.Is(err, ErrTooLarge) {
			t.Fatalf("expected ErrTooLarge, got %v", err)
		}
	})

	t.Run("invalid url", func(t *testing.T) {
		f := &fakeFetcher{}
		c := New(dir, f, time.Second, 0)
		if _, _, err := c.Ensure(ctx, "BV1cc", "data:image/png;base64,xx", false); !errors.Is(err, ErrInvalidURL) {
			t.Fatalf("expected ErrInvalidURL, got %v", err)
		}
		if len(f.calls) != 0 {
			t.Error("invalid url must not be fetched")
		}
	})
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	if Exists("") || Exists(dir) {
		t.Error("empty path and directories are not cover files")
	}
	p := filepath.Join(dir, "x.jpg")
	if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !Exists(p) {
		t.Error("expected file to exist")
	}
}
