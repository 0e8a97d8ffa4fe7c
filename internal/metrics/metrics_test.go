// Favmirror - Incremental Favorites Mirror
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/favmirror

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	io_prometheus_client "github.com/prometheus/client_model/go"
)

// histogramCount extracts the sample count from a Prometheus histogram
func histogramCount(t *testing.T, h prometheus.Histogram) uint64 {
	t.Helper()
	var m io_prometheus_client.Metric
	if err := h.Write(&m); err != nil {
		t.Fatalf("write histogram: %v", err)
	}
	return m.GetHistogram().GetSampleCount()
}

func TestRecordSyncRun(t *testing.T) {
	t.Run("completed run updates counters and last success", func(t *testing.T) {
		addedBefore := testutil.ToFloat64(SyncItems.WithLabelValues("added"))
		deletedBefore := testutil.ToFloat64(SyncItems.WithLabelValues("deleted"))
		runsBefore := testutil.ToFloat64(SyncRuns.WithLabelValues("completed"))
		samplesBefore := histogramCount(t, SyncDuration)

		RecordSyncRun(3*time.Second, SyncCounts{Added: 3, Deleted: 1}, "completed")

		if got := testutil.ToFloat64(SyncItems.WithLabelValues("added")) - addedBefore; got != 3 {
			t.Errorf("added delta = %v, want 3", got)
		}
		if got := testutil.ToFloat64(SyncItems.WithLabelValues("deleted")) - deletedBefore; got != 1 {
			t.Errorf("deleted delta = %v, want 1", got)
		}
		if got := testutil.ToFloat64(SyncRuns.WithLabelValues("completed")) - runsBefore; got != 1 {
			t.Errorf("runs delta = %v, want 1", got)
		}
		if histogramCount(t, SyncDuration) != samplesBefore+1 {
			t.Error("expected one duration sample")
		}
		if testutil.ToFloat64(SyncLastSuccess) == 0 {
			t.Error("expected last success timestamp to be set")
		}
	})

	t.Run("failed run does not count as success", func(t *testing.T) {
		SyncLastSuccess.Set(0)
		RecordSyncRun(time.Second, SyncCounts{}, "failed")
		if testutil.ToFloat64(SyncLastSuccess) != 0 {
			t.Error("failed run must not set last success")
		}
	})
}

func TestRecordSourceRequest(t *testing.T) {
	okBefore := testutil.ToFloat64(SourceRequests.WithLabelValues("list_items", "success"))
	errBefore := testutil.ToFloat64(SourceRequests.WithLabelValues("list_items", "error"))

	RecordSourceRequest("list_items", 10*time.Millisecond, nil)
	RecordSourceRequest("list_items", 10*time.Millisecond, errors.New("boom"))

	if testutil.ToFloat64(SourceRequests.WithLabelValues("list_items", "success"))-okBefore != 1 {
		t.Error("expected one success")
	}
	if testutil.ToFloat64(SourceRequests.WithLabelValues("list_items", "error"))-errBefore != 1 {
		t.Error("expected one error")
	}
}

func TestRecordTxAndCover(t *testing.T) {
	errBefore := testutil.ToFloat64(DBTxErrors.WithLabelValues("page"))
	coversBefore := testutil.ToFloat64(CoversDownloaded)
	bytesBefore := testutil.ToFloat64(CoverBytes)

	RecordTx("page", time.Millisecond, nil)
	RecordTx("page", time.Millisecond, errors.New("locked"))
	RecordCover(2048)

	if testutil.ToFloat64(DBTxErrors.WithLabelValues("page"))-errBefore != 1 {
		t.Error("expected one tx error")
	}
	if testutil.ToFloat64(CoversDownloaded)-coversBefore != 1 {
		t.Error("expected one cover")
	}
	if testutil.ToFloat64(CoverBytes)-bytesBefore != 2048 {
		t.Error("expected 2048 cover bytes")
	}
}

func TestRecordTask(t *testing.T) {
	before := testutil.ToFloat64(TasksFinished.WithLabelValues("retried"))
	RecordTask("retried")
	if got := testutil.ToFloat64(TasksFinished.WithLabelValues("retried")) - before; got != 1 {
		t.Errorf("retried delta = %v, want 1", got)
	}
}
