// Package api serves the HTTP surface: command submission, read-only views
// of the light tree, health probes and metrics.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/homebase/internal/clock"
	"github.com/dokzlo13/homebase/internal/command"
	"github.com/dokzlo13/homebase/internal/eventbus"
	"github.com/dokzlo13/homebase/internal/home"
	"github.com/dokzlo13/homebase/internal/ledger"
	"github.com/dokzlo13/homebase/internal/lighting"
	"github.com/dokzlo13/homebase/internal/reconcile"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 1000
	commandTimeout      = 10 * time.Second
	// Source tags commands submitted over HTTP.
	Source = "api"
)

// Dispatcher runs commands. *command.Dispatcher implements it.
type Dispatcher interface {
	Submit(ctx context.Context, cmd command.Command) (command.Result, error)
}

// History reads the command ledger. *ledger.Ledger implements it.
type History interface {
	Recent(ctx context.Context, eventType ledger.EventType, limit int) ([]*ledger.Entry, error)
	ForTopic(ctx context.Context, topic string, limit int) ([]*ledger.Entry, error)
}

// Reconciler reports reconciliation progress. *reconcile.Orchestrator implements it.
type Reconciler interface {
	Ready() bool
	Stats() reconcile.Stats
}

// Deps are the collaborators the handlers use.
type Deps struct {
	Registry   *home.Registry
	Dispatcher Dispatcher
	History    History
	Reconciler Reconciler
	Metrics    http.Handler
	Clock      clock.Clock
}

type handlers struct {
	Deps
}

// NewHandler builds the router.
func NewHandler(d Deps) http.Handler {
	if d.Clock == nil {
		d.Clock = clock.Real{}
	}
	h := &handlers{Deps: d}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})
	r.Get("/ready", h.ready)
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/commands", h.submitCommand)
		r.Get("/commands", h.listCommands)
		r.Get("/lights", h.lights)
		r.Get("/state", h.state)
		r.Get("/state/*", h.state)
		r.Get("/config", h.config)
		r.Get("/config/*", h.config)
		r.Get("/baseline", h.baseline)
		r.Get("/history", h.history)
		r.Get("/reconciler", h.reconciler)
	})
	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("took", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}

func (h *handlers) ready(w http.ResponseWriter, r *http.Request) {
	if h.Reconciler != nil && !h.Reconciler.Ready() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "starting"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// commandRequest is the body of POST /api/commands.
type commandRequest struct {
	ID      string         `json:"id,omitempty"`
	Command string         `json:"command"`
	Topic   string         `json:"topic"`
	Args    map[string]any `json:"args,omitempty"`
}

func (h *handlers) submitCommand(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid request body: "+err.Error()))
		return
	}

	kind, err := command.ParseKind(req.Command)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	topic := home.ParseTopic(req.Topic)
	if !h.Registry.Has(topic) {
		writeError(w, http.StatusNotFound, home.ErrDeviceNotFound)
		return
	}

	cmd := command.New(kind, topic, req.Args)
	cmd.Source = Source
	if req.ID != "" {
		id, err := uuid.Parse(req.ID)
		if err != nil {
			writeError(w, http.StatusBadRequest, errors.New("invalid command id: "+err.Error()))
			return
		}
		cmd.ID = id
	}

	ctx, cancel := context.WithTimeout(r.Context(), commandTimeout)
	defer cancel()

	res, err := h.Dispatcher.Submit(ctx, cmd)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handlers) listCommands(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(command.Kinds()))
	for _, k := range command.Kinds() {
		names = append(names, k.String())
	}
	writeJSON(w, http.StatusOK, map[string]any{"commands": names})
}

func (h *handlers) lights(w http.ResponseWriter, r *http.Request) {
	topic := home.ParseTopic(r.URL.Query().Get("topic"))
	lights, err := h.Registry.Lights(topic)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, lights)
}

type stateResponse struct {
	Node     home.NodeInfo  `json:"node"`
	Resolved lighting.State `json:"resolved"`
}

func (h *handlers) state(w http.ResponseWriter, r *http.Request) {
	topic := home.ParseTopic(chi.URLParam(r, "*"))
	resolved, err := h.Registry.Resolve(topic, h.Clock.Now())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	node, err := h.Registry.Describe(topic)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, stateResponse{Node: node, Resolved: resolved})
}

type configResponse struct {
	Topic     lighting.Topic `json:"topic"`
	Own       home.ConfigDoc `json:"own"`
	Effective home.ConfigDoc `json:"effective"`
}

func (h *handlers) config(w http.ResponseWriter, r *http.Request) {
	topic := home.ParseTopic(chi.URLParam(r, "*"))
	own, effective, err := h.Registry.Config(topic, h.Clock.Now())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, configResponse{
		Topic:     topic,
		Own:       home.EncodeConfig(own),
		Effective: home.EncodeConfig(effective),
	})
}

type baselineResponse struct {
	Time  time.Time      `json:"time"`
	Zone  string         `json:"zone"`
	State lighting.State `json:"state"`
}

func (h *handlers) baseline(w http.ResponseWriter, r *http.Request) {
	now := h.Clock.Now().In(h.Registry.Location())
	writeJSON(w, http.StatusOK, baselineResponse{
		Time:  now,
		Zone:  lighting.ZoneAt(now).Label,
		State: h.Registry.Baseline(now),
	})
}

func (h *handlers) history(w http.ResponseWriter, r *http.Request) {
	if h.History == nil {
		writeJSON(w, http.StatusOK, []*ledger.Entry{})
		return
	}
	q := r.URL.Query()
	limit := defaultHistoryLimit
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, errors.New("limit must be a positive integer"))
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	var (
		entries []*ledger.Entry
		err     error
	)
	if raw := q.Get("topic"); raw != "" {
		entries, err = h.History.ForTopic(r.Context(), string(home.ParseTopic(raw)), limit)
	} else {
		entries, err = h.History.Recent(r.Context(), ledger.EventType(q.Get("type")), limit)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if entries == nil {
		entries = []*ledger.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *handlers) reconciler(w http.ResponseWriter, r *http.Request) {
	if h.Reconciler == nil {
		writeError(w, http.StatusNotFound, errors.New("reconciler not running"))
		return
	}
	writeJSON(w, http.StatusOK, h.Reconciler.Stats())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, home.ErrDeviceNotFound):
		return http.StatusNotFound
	case command.IsClientError(err), errors.Is(err, lighting.ErrModifierDomain):
		return http.StatusBadRequest
	case errors.Is(err, eventbus.ErrQueueFull), errors.Is(err, eventbus.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
