package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"wedding-rsvp/internal/outbox"
)

// Pinger checks a dependency
type Pinger interface {
	Ping(ctx context.Context) error
}

// OutboxCounter reports outbox backlog by status
type OutboxCounter interface {
	CountByStatus(ctx context.Context) (map[outbox.Status]int64, error)
}

// Checker handles the health endpoint
type Checker struct {
	db        Pinger
	outbox    OutboxCounter
	configs   map[string]func() error
	version   string
	startTime time.Time
}

// NewChecker creates a health checker. Config checks are reported but never
// mark the service unhealthy.
func NewChecker(db Pinger, outbox OutboxCounter, configs map[string]func() error, version string) *Checker {
	return &Checker{
		db:        db,
		outbox:    outbox,
		configs:   configs,
		version:   version,
		startTime: time.Now(),
	}
}

// HealthStatus is the health response
type HealthStatus struct {
	Status     string                  `json:"status"`
	Version    string                  `json:"version"`
	Uptime     string                  `json:"uptime"`
	Checks     map[string]*CheckResult `json:"checks"`
	Outbox     map[outbox.Status]int64 `json:"outbox,omitempty"`
	ReportedAt time.Time               `json:"reported_at"`
}

// CheckResult is one check's outcome
type CheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// Health handles GET /health
func (h *Checker) Health(c echo.Context) error {
	ctx := c.Request().Context()
	status := &HealthStatus{
		Status:     "healthy",
		Version:    h.version,
		Uptime:     time.Since(h.startTime).Round(time.Second).String(),
		Checks:     make(map[string]*CheckResult),
		ReportedAt: time.Now().UTC(),
	}

	if h.db != nil {
		start := time.Now()
		if err := h.db.Ping(ctx); err != nil {
			status.Status = "unhealthy"
			status.Checks["database"] = &CheckResult{Status: "unhealthy", Message: err.Error()}
		} else {
			status.Checks["database"] = &CheckResult{Status: "healthy", Latency: time.Since(start).String()}
		}
	}

	for name, check := range h.configs {
		if err := check(); err != nil {
			status.Checks[name] = &CheckResult{Status: "unconfigured", Message: err.Error()}
		} else {
			status.Checks[name] = &CheckResult{Status: "configured"}
		}
	}

	if h.outbox != nil {
		if counts, err := h.outbox.CountByStatus(ctx); err == nil {
			status.Outbox = counts
		}
	}

	code := http.StatusOK
	if status.Status == "unhealthy" {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, status)
}
