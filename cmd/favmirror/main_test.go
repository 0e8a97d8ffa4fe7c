// Favmirror - Incremental Favorites Mirror
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/favmirror

package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/tomtom215/favmirror/internal/models"
)

const folderListJSON = `{"code":0,"message":"0","data":{"count":1,"list":[
  {"id":100,"mid":42,"title":"Favorites","media_count":2}
]}}`

const resourcePageJSON = `{"code":0,"message":"0","data":{
  "info":{"id":100,"mid":42,"title":"Favorites","media_count":2},
  "medias":[
    {"id":11,"type":2,"title":"First","page":1,"duration":60,"bvid":"BV1aa",
     "upper":{"mid":7,"name":"Seven"},"cnt_info":{"play":10}},
    {"id":12,"type":2,"title":"Second","page":1,"duration":90,"bvid":"BV1bb",
     "upper":{"mid":7,"name":"Seven"},"cnt_info":{"play":20}}
  ],
  "has_more":false}}`

// newRemote serves one folder holding two items.
func newRemote(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/x/v3/fav/folder/created/list-all", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(folderListJSON))
	})
	mux.HandleFunc("/x/v3/fav/resource/list", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(resourcePageJSON))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func writeConfig(t *testing.T, baseURL string) string {
	t.Helper()
	dir := t.TempDir()
	body := fmt.Sprintf(`source:
  base_url: %s
  user_mid: "42"
  request_delay: 0s
  jitter: 0s
  max_retries: 0
database:
  path: %s
  backup_before_migrate: false
assets:
  enabled: false
sync:
  context_store: sqlite
schedule:
  enabled: false
logging:
  level: error
`, baseURL, filepath.Join(dir, "mirror.db"))
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestMigrate(t *testing.T) {
	cfg := writeConfig(t, "http://127.0.0.1:1")

	out, err := execute(t, "migrate", "--status", "--config", cfg)
	if err != nil {
		t.Fatalf("migrate --status: %v\n%s", err, out)
	}
	if !strings.Contains(out, "pending") || strings.Contains(out, "applied ") {
		t.Errorf("fresh store should only report pending steps:\n%s", out)
	}

	out, err = execute(t, "migrate", "--config", cfg)
	if err != nil {
		t.Fatalf("migrate: %v\n%s", err, out)
	}
	if !strings.Contains(out, "schema is up to date") || strings.Contains(out, "pending") {
		t.Errorf("after migrate:\n%s", out)
	}
}

func TestSyncCommand(t *testing.T) {
	remote := newRemote(t)
	cfg := writeConfig(t, remote.URL)

	out, err := execute(t, "sync", "--json", "--config", cfg)
	if err != nil {
		t.Fatalf("sync: %v\n%s", err, out)
	}
	var summary models.RunSummary
	if err := json.Unmarshal([]byte(out), &summary); err != nil {
		t.Fatalf("decode summary: %v\n%s", err, out)
	}
	if summary.Added != 2 || summary.CollectionsProcessed != 1 || summary.Deleted != 0 {
		t.Errorf("summary = %+v", summary)
	}

	t.Run("second run is idempotent", func(t *testing.T) {
		out, err := execute(t, "sync", "--config", cfg)
		if err != nil {
			t.Fatalf("sync: %v\n%s", err, out)
		}
		if !strings.Contains(out, "added: 0  updated: 0  deleted: 0") {
			t.Errorf("second run:\n%s", out)
		}
	})

	t.Run("status", func(t *testing.T) {
		out, err := execute(t, "status", "--config", cfg)
		if err != nil {
			t.Fatalf("status: %v\n%s", err, out)
		}
		if !strings.Contains(out, "Items: 2") || !strings.Contains(out, "[100] Favorites") {
			t.Errorf("status:\n%s", out)
		}
	})

	t.Run("completed contexts", func(t *testing.T) {
		out, err := execute(t, "contexts", "list", "--status", "completed", "--config", cfg)
		if err != nil {
			t.Fatalf("contexts list: %v\n%s", err, out)
		}
		if strings.Count(out, "completed") != 2 {
			t.Errorf("expected two completed contexts:\n%s", out)
		}
	})

	t.Run("clean completed context is refused", func(t *testing.T) {
		out, err := execute(t, "contexts", "list", "--json", "--limit", "1", "--config", cfg)
		if err != nil {
			t.Fatal(err)
		}
		var views []struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal([]byte(out), &views); err != nil || len(views) != 1 {
			t.Fatalf("decode views: %v\n%s", err, out)
		}
		if _, err := execute(t, "contexts", "clean", views[0].ID, "--config", cfg); err == nil {
			t.Error("cleaning a completed context should fail")
		}
	})

	t.Run("prune", func(t *testing.T) {
		out, err := execute(t, "contexts", "prune", "--older-than", "1ns", "--config", cfg)
		if err != nil {
			t.Fatalf("prune: %v\n%s", err, out)
		}
		if !strings.Contains(out, "2 context(s) pruned") {
			t.Errorf("prune:\n%s", out)
		}
	})
}

func TestTasksCommand(t *testing.T) {
	remote := newRemote(t)
	cfg := writeConfig(t, remote.URL)

	out, err := execute(t, "tasks", "submit", "--collection", "100", "--priority", "5", "--config", cfg)
	if err != nil {
		t.Fatalf("tasks submit: %v\n%s", err, out)
	}
	if !strings.Contains(out, "queued ") || !strings.Contains(out, "priority 5") {
		t.Errorf("submit:\n%s", out)
	}

	listTasks := func(t *testing.T, status string) []struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} {
		t.Helper()
		out, err := execute(t, "tasks", "list", "--json", "--status", status, "--config", cfg)
		if err != nil {
			t.Fatalf("tasks list: %v\n%s", err, out)
		}
		var list []struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		}
		if err := json.Unmarshal([]byte(out), &list); err != nil {
			t.Fatalf("decode tasks: %v\n%s", err, out)
		}
		return list
	}

	if pending := listTasks(t, "pending"); len(pending) != 1 {
		t.Fatalf("pending tasks = %+v, want 1", pending)
	}

	out, err = execute(t, "tasks", "run", "--config", cfg)
	if err != nil {
		t.Fatalf("tasks run: %v\n%s", err, out)
	}
	if !strings.Contains(out, "1 task(s) run") || !strings.Contains(out, "+2 ~0 -0") {
		t.Errorf("run:\n%s", out)
	}

	completed := listTasks(t, "completed")
	if len(completed) != 1 {
		t.Fatalf("completed tasks = %+v, want 1", completed)
	}

	t.Run("completed task cannot be cancelled", func(t *testing.T) {
		if _, err := execute(t, "tasks", "cancel", completed[0].ID, "--config", cfg); err == nil {
			t.Error("cancelling a completed task should fail")
		}
	})

	t.Run("cancel and retry a pending task", func(t *testing.T) {
		if _, err := execute(t, "tasks", "submit", "--config", cfg); err != nil {
			t.Fatal(err)
		}
		pending := listTasks(t, "pending")
		if len(pending) != 1 {
			t.Fatalf("pending tasks = %+v", pending)
		}
		if out, err := execute(t, "tasks", "cancel", pending[0].ID, "--config", cfg); err != nil {
			t.Fatalf("cancel: %v\n%s", err, out)
		}
		out, err := execute(t, "tasks", "retry", pending[0].ID, "--config", cfg)
		if err != nil || !strings.Contains(out, "retry 1") {
			t.Errorf("retry: %v\n%s", err, out)
		}
	})

	t.Run("prune", func(t *testing.T) {
		out, err := execute(t, "tasks", "prune", "--older-than", "1ns", "--config", cfg)
		if err != nil || !strings.Contains(out, "1 task(s) pruned") {
			t.Errorf("prune: %v\n%s", err, out)
		}
	})
}

func TestCommandErrors(t *testing.T) {
	cfg := writeConfig(t, "http://127.0.0.1:1")
	tests := []struct {
		name string
		args []string
	}{
		{"non numeric collection", []string{"sync", "--collection", "abc", "--config", cfg}},
		{"missing config file", []string{"status", "--config", filepath.Join(t.TempDir(), "nope.yaml")}},
		{"clean without id", []string{"contexts", "clean", "--config", cfg}},
		{"clean stale with id", []string{"contexts", "clean", "--stale", "x", "--config", cfg}},
		{"unknown status", []string{"contexts", "list", "--status", "running", "--config", cfg}},
		{"unknown context", []string{"contexts", "resume", "missing", "--config", cfg}},
		{"remote unreachable", []string{"sync", "--config", cfg}},
		{"task for non numeric collection", []string{"tasks", "submit", "--collection", "abc", "--config", cfg}},
		{"task priority out of range", []string{"tasks", "submit", "--priority", "500", "--config", cfg}},
		{"unknown task status", []string{"tasks", "list", "--status", "paused", "--config", cfg}},
		{"unknown task", []string{"tasks", "retry", "missing", "--config", cfg}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if out, err := execute(t, tt.args...); err == nil {
				t.Errorf("expected an error, got output:\n%s", out)
			}
		})
	}
}
