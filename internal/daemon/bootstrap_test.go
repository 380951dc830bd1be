// SPDX-License-Identifier: MIT

package daemon

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/epgmerge/internal/config"
	"github.com/ManuGH/epgmerge/internal/heuristics"
	"github.com/ManuGH/epgmerge/internal/jobs"
)

const sampleXMLTV = `<?xml version="1.0" encoding="UTF-8"?>
<tv>
  <channel id="one.example"><display-name>Channel One</display-name></channel>
  <programme start="20260101060000 +0000" stop="20260101070000 +0000" channel="one.example">
    <title>Morning News</title>
  </programme>
  <programme start="20260101070000 +0000" stop="20260101080000 +0000" channel="one.example">
    <title>Weather</title>
  </programme>
</tv>
`

func serveXMLTV(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		_, _ = io.WriteString(w, sampleXMLTV)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func loadTestConfig(t *testing.T, env map[string]string) config.AppConfig {
	t.Helper()
	t.Setenv("EPGD_DATA_DIR", t.TempDir())
	t.Setenv("EPGD_HEURISTICS_BACKEND", heuristics.BackendMemory)
	for k, v := range env {
		t.Setenv(k, v)
	}
	cfg, err := config.NewLoader("", "test").Load()
	require.NoError(t, err)
	return cfg
}

func TestBootstrapWiresRuntime(t *testing.T) {
	cfg := loadTestConfig(t, nil)

	rt, err := Bootstrap(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close(context.Background()) })

	assert.Equal(t, filepath.Join(cfg.DataDir, jobs.DefaultXMLTVFile), rt.XMLTVPath)
	assert.NotNil(t, rt.Service)
	assert.NotNil(t, rt.Engine)
	assert.NotNil(t, rt.API)

	ready := rt.Health.Ready(context.Background())
	assert.False(t, ready.Ready, "nothing is loaded yet")
	assert.Contains(t, ready.Checks, "schedule")
	assert.Contains(t, ready.Checks, "xmltv")
}

func TestBootstrapRejectsBadTimezone(t *testing.T) {
	cfg := loadTestConfig(t, nil)
	cfg.EPG.DefaultTimezone = "Not/AZone"

	_, err := Bootstrap(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "default timezone")
}

func TestScheduleStateFollowsService(t *testing.T) {
	src := serveXMLTV(t)
	cfg := loadTestConfig(t, map[string]string{"EPGD_SOURCES": src.URL})

	rt, err := Bootstrap(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close(context.Background()) })

	state := ScheduleState(rt.Service)
	assert.False(t, state().Loaded)

	_, err = rt.Service.Refresh(context.Background(), jobs.TriggerManual)
	require.NoError(t, err)

	st := state()
	assert.True(t, st.Loaded)
	assert.False(t, st.FromCache)
	assert.Empty(t, st.LastError)
	assert.False(t, st.UpdatedAt.IsZero())
	assert.True(t, rt.Health.Ready(context.Background()).Ready)
}

func TestServeEndToEnd(t *testing.T) {
	src := serveXMLTV(t)
	addr := reserveListenAddr(t)
	cfg := loadTestConfig(t, map[string]string{
		"EPGD_SOURCES":     src.URL,
		"EPGD_LISTEN_ADDR": addr,
	})
	holder := config.NewConfigHolder(cfg, config.NewLoader("", "test"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, holder) }()
	require.NoError(t, waitForListen(addr, 5*time.Second))

	base := "http://" + addr
	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/readyz")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 10*time.Second, 20*time.Millisecond, "daemon never became ready")

	resp, err := http.Get(base + "/api/v1/channels")
	require.NoError(t, err)
	var channels []struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&channels))
	_ = resp.Body.Close()
	require.Len(t, channels, 1)
	assert.Equal(t, "one.example", channels[0].ID)

	resp, err = http.Get(base + "/xmltv.xml")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "Morning News")

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
