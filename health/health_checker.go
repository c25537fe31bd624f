// Package health derives the service health from the catalogue snapshot,
// the session gate and the local database.
package health

import (
	"context"
	"math"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/giygas/medisearch/interfaces"
	"github.com/giygas/medisearch/session"
)

// PhaseSource reports the session state. *session.Gate implements it.
type PhaseSource interface {
	State() session.State
}

// Pinger checks a database connection. *storage.Store implements it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthCheckerImpl implements the interfaces.HealthChecker interface
type HealthCheckerImpl struct {
	store        interfaces.CatalogDataStore // nil for remote catalogues
	gate         PhaseSource
	db           Pinger
	refreshTimes []clock
	now          func() time.Time
}

// Option configures a HealthCheckerImpl
type Option func(*HealthCheckerImpl)

// WithGate includes the session phase in the report
func WithGate(gate PhaseSource) Option {
	return func(h *HealthCheckerImpl) { h.gate = gate }
}

// WithDatabase pings db on every check
func WithDatabase(db Pinger) Option {
	return func(h *HealthCheckerImpl) { h.db = db }
}

// WithRefreshTimes sets the daily refresh times ("06:00;18:00") used by
// CalculateNextUpdate. Malformed entries are ignored.
func WithRefreshTimes(times string) Option {
	return func(h *HealthCheckerImpl) { h.refreshTimes = parseClocks(times) }
}

// NewHealthChecker creates a new health checker. store is nil when the
// catalogue is remote; the data checks are skipped then.
func NewHealthChecker(store interfaces.CatalogDataStore, opts ...Option) interfaces.HealthChecker {
	h := &HealthCheckerImpl{
		store:        store,
		refreshTimes: parseClocks("06:00;18:00"),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HealthCheck returns the status label, the data-related details and the
// HTTP status for /health
func (h *HealthCheckerImpl) HealthCheck() (status string, data map[string]any, httpStatus int) {
	status, httpStatus = "healthy", http.StatusOK
	data = map[string]any{}

	degrade := func(label string, code int) {
		if rank(label) > rank(status) {
			status, httpStatus = label, code
		}
	}

	if h.store != nil {
		records := len(h.store.GetRecords())
		lastUpdate := h.store.GetLastUpdated()
		isUpdating := h.store.IsUpdating()
		dataAge := h.now().Sub(lastUpdate)

		// Thresholds follow the twice daily refresh
		switch {
		case records == 0:
			degrade("unhealthy", http.StatusServiceUnavailable)
		case dataAge > 48*time.Hour:
			degrade("unhealthy", http.StatusServiceUnavailable)
		case dataAge > 24*time.Hour:
			degrade("degraded", http.StatusServiceUnavailable)
		case isUpdating && dataAge > 6*time.Hour:
			degrade("degraded", http.StatusServiceUnavailable)
		}

		data["catalog_backend"] = "memory"
		data["records"] = records
		data["is_updating"] = isUpdating
		data["next_update"] = h.CalculateNextUpdate().Format(time.RFC3339)
		if !lastUpdate.IsZero() {
			data["last_update"] = lastUpdate.Format(time.RFC3339)
			data["data_age_hours"] = math.Round(dataAge.Hours()*10) / 10
		}
	} else {
		data["catalog_backend"] = "remote"
	}

	if h.gate != nil {
		phase := h.gate.State().Phase
		data["session_phase"] = phase.String()
		if phase == session.PhaseUnknown {
			degrade("starting", http.StatusServiceUnavailable)
		}
	}

	if h.db != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			data["database"] = "unreachable"
			degrade("unhealthy", http.StatusServiceUnavailable)
		} else {
			data["database"] = "ok"
		}
	}

	return status, data, httpStatus
}

func rank(status string) int {
	switch status {
	case "starting":
		return 1
	case "degraded":
		return 2
	case "unhealthy":
		return 3
	default:
		return 0
	}
}

// clock is a time of day in minutes after midnight
type clock int

func parseClocks(times string) []clock {
	var out []clock
	for _, part := range strings.Split(times, ";") {
		t, err := time.Parse("15:04", strings.TrimSpace(part))
		if err != nil {
			continue
		}
		out = append(out, clock(t.Hour()*60+t.Minute()))
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// CalculateNextUpdate returns the next scheduled catalogue refresh, or the
// zero time when no refresh is scheduled
func (h *HealthCheckerImpl) CalculateNextUpdate() time.Time {
	if len(h.refreshTimes) == 0 {
		return time.Time{}
	}

	now := h.now()
	at := func(day time.Time, c clock) time.Time {
		return time.Date(day.Year(), day.Month(), day.Day(), int(c)/60, int(c)%60, 0, 0, day.Location())
	}

	for _, c := range h.refreshTimes {
		if candidate := at(now, c); now.Before(candidate) {
			return candidate
		}
	}

	// First refresh tomorrow
	return at(now.AddDate(0, 0, 1), h.refreshTimes[0])
}
