package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	jsoniter "github.com/json-iterator/go"

	"github.com/angeloszaimis/eventguard/internal/circuitbreaker"
	"github.com/angeloszaimis/eventguard/internal/events"
	"github.com/angeloszaimis/eventguard/internal/healthcheck"
	"github.com/angeloszaimis/eventguard/internal/metrics"
	"github.com/angeloszaimis/eventguard/pkg/logger"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const maxPublishBody = 1 << 20

// EventBus is the part of events.Bus the handlers use.
type EventBus interface {
	Publish(ctx context.Context, t events.Type, payload any) error
	Metrics() metrics.BusSnapshot
	History() []events.Envelope
}

type BreakerRegistry interface {
	Get(name string) (circuitbreaker.Stats, bool)
	Snapshot() []circuitbreaker.Stats
	Reset()
}

type BreakerCollector interface {
	Snapshot() metrics.BreakerSnapshot
	Handler() http.HandlerFunc
}

type HealthReporter interface {
	Status() healthcheck.Status
}

// Handler serves read-only views over the running application.
type Handler struct {
	logger    logger.Logger
	bus       EventBus
	registry  BreakerRegistry
	collector BreakerCollector
	health    HealthReporter
}

func New(log logger.Logger, bus EventBus, registry BreakerRegistry, collector BreakerCollector, health HealthReporter) *Handler {
	return &Handler{
		logger:    log,
		bus:       bus,
		registry:  registry,
		collector: collector,
		health:    health,
	}
}

type healthResponse struct {
	Status string              `json:"status"`
	AI     *healthcheck.Status `json:"ai,omitempty"`
}

// Healthz reports the process as up. The AI provider's last known status is
// included but never turns the response unhealthy.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	if h.health != nil {
		status := h.health.Status()
		resp.AI = &status
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) EventMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.bus.Metrics())
}

// EventHistory lists retained envelopes oldest first. It accepts an optional
// type filter and a limit keeping only the newest entries.
func (h *Handler) EventHistory(w http.ResponseWriter, r *http.Request) {
	history := h.bus.History()

	if t := r.URL.Query().Get("type"); t != "" {
		filtered := history[:0]
		for _, env := range history {
			if env.Type == events.Type(t) {
				filtered = append(filtered, env)
			}
		}
		history = filtered
	}

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		if limit < len(history) {
			history = history[len(history)-limit:]
		}
	}

	writeJSON(w, http.StatusOK, history)
}

// PublishEvent publishes the JSON request body as the payload of the event
// type named in the path.
func (h *Handler) PublishEvent(w http.ResponseWriter, r *http.Request) {
	t := events.Type(chi.URLParam(r, "type"))

	body, err := io.ReadAll(io.LimitReader(r.Body, maxPublishBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	var payload any
	if len(body) > 0 {
		if err := json.Unmarshal(body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, "body must be valid JSON")
			return
		}
	}

	if err := h.bus.Publish(r.Context(), t, payload); err != nil {
		if errors.Is(err, events.ErrInvalidEventType) || errors.Is(err, events.ErrUnserializablePayload) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("Failed to publish event", "event_type", t.String(), "error", err)
		writeError(w, http.StatusInternalServerError, "publish failed")
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

type breakerView struct {
	circuitbreaker.Stats
	Metrics *metrics.BreakerMetrics `json:"metrics,omitempty"`
}

// Breakers joins each breaker's live state with the totals the collector
// has aggregated for it.
func (h *Handler) Breakers(w http.ResponseWriter, r *http.Request) {
	var collected metrics.BreakerSnapshot
	if h.collector != nil {
		collected = h.collector.Snapshot()
	}

	stats := h.registry.Snapshot()
	views := make([]breakerView, 0, len(stats))
	for _, s := range stats {
		view := breakerView{Stats: s}
		if m, ok := collected.Breakers[s.Name]; ok {
			view.Metrics = &m
		}
		views = append(views, view)
	}

	writeJSON(w, http.StatusOK, views)
}

// Breaker returns one breaker's live state.
func (h *Handler) Breaker(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	stats, ok := h.registry.Get(name)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown breaker "+name)
		return
	}

	view := breakerView{Stats: stats}
	if h.collector != nil {
		if m, ok := h.collector.Snapshot().Breakers[name]; ok {
			view.Metrics = &m
		}
	}
	writeJSON(w, http.StatusOK, view)
}

// ResetBreakers forces every breaker closed.
func (h *Handler) ResetBreakers(w http.ResponseWriter, r *http.Request) {
	h.registry.Reset()
	h.logger.Warn("Circuit breakers reset", "from", extractClientIP(r))
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
