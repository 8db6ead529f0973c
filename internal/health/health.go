// Package health serves the liveness, readiness and metrics endpoints of the worker.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const checkTimeout = 2 * time.Second

// Pinger is a dependency whose reachability gates readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StateReporter exposes the consumer state.
type StateReporter interface {
	Running() bool
	StateName() string
}

type Check struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type Readiness struct {
	Status   string           `json:"status"`
	Consumer string           `json:"consumer"`
	Checks   map[string]Check `json:"checks"`
}

type Handler struct {
	consumer StateReporter
	checks   map[string]Pinger
}

func NewHandler(consumer StateReporter, checks map[string]Pinger) *Handler {
	return &Handler{consumer: consumer, checks: checks}
}

// NewRouter mounts /healthz, /readyz and, when gatherer is set, /metrics.
func NewRouter(h *Handler, gatherer prometheus.Gatherer) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.Healthz)
	r.Get("/readyz", h.Readyz)
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()

	resp := Readiness{Status: "ready", Checks: make(map[string]Check, len(h.checks))}
	ready := true

	if h.consumer != nil {
		resp.Consumer = h.consumer.StateName()
		ready = h.consumer.Running()
	}

	for name, p := range h.checks {
		if err := p.Ping(ctx); err != nil {
			resp.Checks[name] = Check{Status: "failed", Message: err.Error()}
			ready = false
			continue
		}
		resp.Checks[name] = Check{Status: "ok"}
	}

	status := http.StatusOK
	if !ready {
		resp.Status = "not_ready"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
