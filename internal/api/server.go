// Package api serves the controller's command surface over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bft-labs/bgloc/pkg/fetcher"
	"github.com/bft-labs/bgloc/pkg/lifecycle"
	"github.com/bft-labs/bgloc/pkg/log"
	"github.com/bft-labs/bgloc/pkg/store"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 16

// Commands is the controller surface exposed by the server.
type Commands interface {
	fetcher.Signals

	SetCallback(ctx context.Context, callbackHandle, dispatcherHandle int64) error
	Configure(ctx context.Context, u fetcher.ConfigUpdate) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	IsActivated(ctx context.Context) (bool, error)
	Configuration(ctx context.Context) (store.SamplingConfig, error)
	State() lifecycle.State
	Dispatched() bool
	LeaseHeld() bool
}

var _ Commands = (*fetcher.Controller)(nil)

// ServerOption configures the API server.
type ServerOption func(*serverConfig)

type serverConfig struct {
	logger      log.Logger
	gatherer    prometheus.Gatherer
	middlewares []func(http.Handler) http.Handler
}

// WithLogger sets the logger for request logging.
func WithLogger(logger log.Logger) ServerOption {
	return func(cfg *serverConfig) {
		cfg.logger = log.OrNoop(logger)
	}
}

// WithMetrics mounts /metrics for the given gatherer.
func WithMetrics(g prometheus.Gatherer) ServerOption {
	return func(cfg *serverConfig) {
		cfg.gatherer = g
	}
}

// WithMiddlewares adds middleware to the server.
func WithMiddlewares(mw ...func(http.Handler) http.Handler) ServerOption {
	return func(cfg *serverConfig) {
		cfg.middlewares = append(cfg.middlewares, mw...)
	}
}

type routes struct {
	cmd    Commands
	logger log.Logger
}

// NewServer builds the router for cmd.
func NewServer(cmd Commands, opts ...ServerOption) *chi.Mux {
	cfg := &serverConfig{logger: log.NewNoopLogger()}
	for _, opt := range opts {
		opt(cfg)
	}

	rt := &routes{cmd: cmd, logger: cfg.logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(LoggingMiddleware(cfg.logger))
	for _, mw := range cfg.middlewares {
		r.Use(mw)
	}

	r.Get("/health", rt.health)
	if cfg.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(cfg.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/callback", rt.setCallback)
		r.Post("/configure", rt.configure)
		r.Post("/start", rt.start)
		r.Post("/stop", rt.stop)
		r.Get("/activated", rt.activated)
		r.Get("/configuration", rt.configuration)

		r.Route("/signals", func(r chi.Router) {
			r.Post("/boot", rt.signal(cmd.OnBootCompleted))
			r.Post("/foreground", rt.signal(cmd.OnForeground))
			r.Post("/background", rt.signal(cmd.OnBackground))
			r.Post("/config", rt.signal(cmd.OnConfigChanged))
			r.Post("/permission", rt.permission)
		})
	})

	return r
}

// LoggingMiddleware logs HTTP requests at debug level.
func LoggingMiddleware(logger log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Debug("http request",
				log.String("method", r.Method),
				log.String("path", r.URL.Path),
				log.Int("status", ww.Status()),
				log.Duration("elapsed", time.Since(start)),
				log.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}

func (rt *routes) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, StatusResponse{
		Status:     "ok",
		State:      rt.cmd.State().String(),
		Dispatched: rt.cmd.Dispatched(),
		LeaseHeld:  rt.cmd.LeaseHeld(),
	}, http.StatusOK)
}

func (rt *routes) setCallback(w http.ResponseWriter, r *http.Request) {
	var req CallbackRequest
	if !rt.decode(w, r, &req) {
		return
	}
	if err := rt.cmd.SetCallback(r.Context(), req.CallbackHandle, req.DispatcherHandle); err != nil {
		rt.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *routes) configure(w http.ResponseWriter, r *http.Request) {
	var body ConfigurationBody
	if !rt.decode(w, r, &body) {
		return
	}
	u := body.Update()
	if u.Empty() {
		writeJSON(w, ErrorResponse{Error: "no configuration fields given"}, http.StatusBadRequest)
		return
	}
	if err := rt.cmd.Configure(r.Context(), u); err != nil {
		rt.writeError(w, err)
		return
	}
	rt.configuration(w, r)
}

func (rt *routes) start(w http.ResponseWriter, r *http.Request) {
	rt.signal(rt.cmd.Start)(w, r)
}

func (rt *routes) stop(w http.ResponseWriter, r *http.Request) {
	rt.signal(rt.cmd.Stop)(w, r)
}

func (rt *routes) activated(w http.ResponseWriter, r *http.Request) {
	active, err := rt.cmd.IsActivated(r.Context())
	if err != nil {
		rt.writeError(w, err)
		return
	}
	writeJSON(w, ActivatedResponse{Activated: active}, http.StatusOK)
}

func (rt *routes) configuration(w http.ResponseWriter, r *http.Request) {
	cfg, err := rt.cmd.Configuration(r.Context())
	if err != nil {
		rt.writeError(w, err)
		return
	}
	writeJSON(w, newConfigurationResponse(cfg), http.StatusOK)
}

func (rt *routes) permission(w http.ResponseWriter, r *http.Request) {
	var req PermissionRequest
	if !rt.decode(w, r, &req) {
		return
	}
	if err := rt.cmd.OnPermissionChanged(r.Context(), req.Granted); err != nil {
		rt.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *routes) signal(fn func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(r.Context()); err != nil {
			rt.writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (rt *routes) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeJSON(w, ErrorResponse{Error: "invalid request body: " + err.Error()}, http.StatusBadRequest)
		return false
	}
	return true
}

func (rt *routes) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, fetcher.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, fetcher.ErrClosed):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		rt.logger.Error("command failed", log.Err(err))
	}
	writeJSON(w, ErrorResponse{Error: err.Error()}, status)
}

func writeJSON(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}
