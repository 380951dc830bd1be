// SPDX-License-Identifier: MIT

// Package health provides liveness and readiness probes for the EPG daemon.
// Readiness flips to true once a merged schedule is available.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/ManuGH/epgmerge/internal/log"
)

// Status represents the overall health/readiness status
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// CheckResult represents the result of a component health check
type CheckResult struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// HealthResponse represents the full health check response
type HealthResponse struct {
	Status    Status                 `json:"status"`
	Version   string                 `json:"version,omitempty"`
	Uptime    int64                  `json:"uptime_seconds"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// ReadinessResponse represents the readiness check response
type ReadinessResponse struct {
	Ready     bool                   `json:"ready"`
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// Checker defines the interface for health checks
type Checker interface {
	Name() string
	Check(ctx context.Context) CheckResult
}

// Manager manages health and readiness checks
type Manager struct {
	version  string
	started  time.Time
	checkers []Checker
}

// NewManager creates a new health check manager
func NewManager(version string) *Manager {
	return &Manager{version: version, started: time.Now()}
}

// RegisterChecker adds a health checker to the manager
func (m *Manager) RegisterChecker(checker Checker) {
	m.checkers = append(m.checkers, checker)
}

func (m *Manager) runChecks(ctx context.Context) (map[string]CheckResult, Status) {
	checks := make(map[string]CheckResult, len(m.checkers))
	overall := StatusHealthy
	for _, checker := range m.checkers {
		result := checker.Check(ctx)
		checks[checker.Name()] = result
		switch {
		case result.Status == StatusUnhealthy:
			overall = StatusUnhealthy
		case result.Status == StatusDegraded && overall == StatusHealthy:
			overall = StatusDegraded
		}
	}
	return checks, overall
}

// Health performs a health check (liveness probe).
// The process is reported alive regardless of component state; verbose adds
// the component checks and lets them shape the status field.
func (m *Manager) Health(ctx context.Context, verbose bool) HealthResponse {
	resp := HealthResponse{
		Status:    StatusHealthy,
		Version:   m.version,
		Uptime:    int64(time.Since(m.started).Seconds()),
		Timestamp: time.Now(),
	}
	if verbose && len(m.checkers) > 0 {
		resp.Checks, resp.Status = m.runChecks(ctx)
	}
	return resp
}

// Ready performs a readiness check (readiness probe).
// Any unhealthy component makes the service not ready; degraded ones do not.
func (m *Manager) Ready(ctx context.Context) ReadinessResponse {
	resp := ReadinessResponse{
		Ready:     true,
		Status:    StatusHealthy,
		Timestamp: time.Now(),
	}
	if len(m.checkers) == 0 {
		return resp
	}
	resp.Checks, resp.Status = m.runChecks(ctx)
	resp.Ready = resp.Status != StatusUnhealthy
	return resp
}

// ServeHealth handles HTTP health check requests
func (m *Manager) ServeHealth(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "health")
	verbose := r.URL.Query().Get("verbose") == "true"

	resp := m.Health(r.Context(), verbose)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error().Err(err).Str(log.FieldEvent, "health.encode_error").Msg("failed to encode health response")
	}
}

// ServeReady handles HTTP readiness check requests
func (m *Manager) ServeReady(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "readiness")

	resp := m.Ready(r.Context())

	w.Header().Set("Content-Type", "application/json")
	if resp.Ready {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error().Err(err).Str(log.FieldEvent, "readiness.encode_error").Msg("failed to encode readiness response")
	}

	logger.Debug().
		Str(log.FieldEvent, "readiness.checked").
		Str("status", string(resp.Status)).
		Bool("ready", resp.Ready).
		Msg("readiness check performed")
}

// FileChecker checks that an exported file exists and is non-empty.
type FileChecker struct {
	name string
	path string
}

// NewFileChecker creates a checker for file existence
func NewFileChecker(name, path string) *FileChecker {
	return &FileChecker{name: name, path: path}
}

func (c *FileChecker) Name() string { return c.name }

// Check never reports a missing file as unhealthy: the export appears only
// after the first successful refresh.
func (c *FileChecker) Check(_ context.Context) CheckResult {
	if c.path == "" {
		return CheckResult{Status: StatusHealthy, Message: "not configured (optional)"}
	}

	info, err := os.Stat(c.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return CheckResult{Status: StatusDegraded, Message: "not written yet"}
	case err != nil:
		return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
	case info.IsDir():
		return CheckResult{Status: StatusUnhealthy, Error: "expected file, got directory"}
	case info.Size() == 0:
		return CheckResult{Status: StatusDegraded, Message: "file is empty"}
	}
	return CheckResult{Status: StatusHealthy, Message: "file exists and readable"}
}

// ScheduleState is what ScheduleChecker needs to know about the served schedule.
type ScheduleState struct {
	Loaded    bool
	UpdatedAt time.Time
	FromCache bool
	LastError string
}

// ScheduleChecker reports whether a merged schedule is being served.
type ScheduleChecker struct {
	state   func() ScheduleState
	maxAge  time.Duration
	nowFunc func() time.Time
}

// NewScheduleChecker creates the readiness gate. maxAge <= 0 disables the
// staleness check.
func NewScheduleChecker(state func() ScheduleState, maxAge time.Duration) *ScheduleChecker {
	return &ScheduleChecker{state: state, maxAge: maxAge, nowFunc: time.Now}
}

func (c *ScheduleChecker) Name() string { return "schedule" }

func (c *ScheduleChecker) Check(_ context.Context) CheckResult {
	st := c.state()
	if !st.Loaded {
		res := CheckResult{Status: StatusUnhealthy, Message: "no schedule loaded yet"}
		if st.LastError != "" {
			res.Error = st.LastError
		}
		return res
	}
	if st.LastError != "" {
		return CheckResult{Status: StatusDegraded, Message: "last refresh failed", Error: st.LastError}
	}
	if c.maxAge > 0 && !st.UpdatedAt.IsZero() {
		if age := c.nowFunc().Sub(st.UpdatedAt); age > c.maxAge {
			return CheckResult{Status: StatusDegraded, Message: fmt.Sprintf("schedule is %s old", age.Truncate(time.Second))}
		}
	}
	if st.FromCache {
		return CheckResult{Status: StatusHealthy, Message: "serving cached schedule"}
	}
	return CheckResult{Status: StatusHealthy, Message: "schedule loaded"}
}
