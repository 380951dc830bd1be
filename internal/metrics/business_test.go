// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPromhttpExposure(t *testing.T) {
	IncSourceFetch("success")

	srv := httptest.NewServer(promhttp.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	rec := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "epgmerge_source_fetch_total") {
		t.Error("epgmerge_source_fetch_total not exposed")
	}
}

func TestRecordRefreshCancelledKeepsGauges(t *testing.T) {
	RecordRefresh(false, 3, 40, 2*time.Second)
	if got := testutil.ToFloat64(mergedProgrammes); got != 40 {
		t.Fatalf("merged programmes = %v, want 40", got)
	}

	before := testutil.ToFloat64(refreshTotal.WithLabelValues("cancelled"))
	RecordRefresh(true, 0, 0, time.Second)

	if got := testutil.ToFloat64(mergedProgrammes); got != 40 {
		t.Errorf("cancelled run overwrote gauge: %v", got)
	}
	if got := testutil.ToFloat64(refreshTotal.WithLabelValues("cancelled")); got != before+1 {
		t.Errorf("cancelled counter = %v, want %v", got, before+1)
	}
}

func TestRecordRefreshFailedKeepsGauges(t *testing.T) {
	RecordRefresh(false, 2, 12, time.Second)
	before := testutil.ToFloat64(refreshTotal.WithLabelValues("failed"))

	RecordRefreshFailed(time.Second)

	if got := testutil.ToFloat64(mergedProgrammes); got != 12 {
		t.Errorf("failed run overwrote gauge: %v", got)
	}
	if got := testutil.ToFloat64(refreshTotal.WithLabelValues("failed")); got != before+1 {
		t.Errorf("failed counter = %v, want %v", got, before+1)
	}
}

func TestRecordCacheWrite(t *testing.T) {
	ok := testutil.ToFloat64(cacheWritesTotal.WithLabelValues("success"))
	bad := testutil.ToFloat64(cacheWritesTotal.WithLabelValues("failure"))

	RecordCacheWrite(nil)
	RecordCacheWrite(errors.New("disk full"))

	if got := testutil.ToFloat64(cacheWritesTotal.WithLabelValues("success")); got != ok+1 {
		t.Errorf("success = %v, want %v", got, ok+1)
	}
	if got := testutil.ToFloat64(cacheWritesTotal.WithLabelValues("failure")); got != bad+1 {
		t.Errorf("failure = %v, want %v", got, bad+1)
	}
}
