// Package server exposes a small HTTP API to inspect power groups, correct their energy and scrape metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/levenlabs/go-lflag"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mephdrac/powergroup/config"
	"github.com/mephdrac/powergroup/energy"
	"github.com/mephdrac/powergroup/log"
	"github.com/mephdrac/powergroup/monitor"
)

// Monitor is the part of *monitor.Monitor used by the API.
type Monitor interface {
	Status(ctx context.Context) (monitor.Status, error)
	SetAccumulated(ctx context.Context, groupID string, v energy.Variant, kWh float64) error
}

// Server serves the diagnostics API.
type Server struct {
	monitor  Monitor
	gatherer prometheus.Gatherer

	listenAddr string
	httpServer *http.Server

	log *slog.Logger
}

// New constructs a Server listening on listenAddr. Metrics are served from gatherer unless it is nil.
func New(m Monitor, gatherer prometheus.Gatherer, listenAddr string) *Server {
	return &Server{
		monitor:    m,
		gatherer:   gatherer,
		listenAddr: listenAddr,

		log: log.ForComponent("server"),
	}
}

// Configured constructs a Server whose listen address comes from the --http-listen flag. The monitor is passed to
// Serve once it exists.
func Configured(gatherer prometheus.Gatherer) *Server {
	srv := New(nil, gatherer, "")

	listenAddr := lflag.String("http-listen", ":8080", "HTTP listen address of the diagnostics API, empty to disable it")
	lflag.Do(func() {
		srv.listenAddr = *listenAddr
	})

	return srv
}

// Handler returns the routes of the API wrapped in compression, access logging and panic recovery.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.requestLogger)
	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	api.HandleFunc("/groups", s.handleListGroups).Methods(http.MethodGet)
	api.HandleFunc("/groups/{id}", s.handleGetGroup).Methods(http.MethodGet)
	api.HandleFunc("/groups/{id}/energy/{variant}", s.handleSetEnergy).Methods(http.MethodPut)

	return handlers.CustomLoggingHandler(io.Discard, handlers.RecoveryHandler()(gziphandler.GzipHandler(r)), s.logRequest)
}

func (s *Server) logRequest(_ io.Writer, p handlers.LogFormatterParams) {
	s.log.With(
		slog.String("method", p.Request.Method),
		slog.String("path", p.URL.Path),
		slog.Int("status", p.StatusCode),
		slog.Int("size", p.Size),
	).Debug("Handled request")
}

// requestLogger stores a logger tagged with the request in its context, see log.Ctx.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		l := s.log.With(slog.String("method", r.Method), slog.String("path", r.URL.Path))
		next.ServeHTTP(w, r.WithContext(log.With(r.Context(), l)))
	})
}

// Serve runs the server for m. See Run.
func (s *Server) Serve(ctx context.Context, m Monitor) error {
	s.monitor = m
	return s.Run(ctx)
}

// Run serves HTTP until ctx is done and then shuts down gracefully. An empty listen address disables the server, in
// which case Run just waits for ctx.
func (s *Server) Run(ctx context.Context) error {
	if s.listenAddr == "" {
		<-ctx.Done()
		return nil
	}

	s.httpServer = &http.Server{
		Addr:         s.listenAddr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		defer close(errChan)
		s.log.With(slog.String("addr", s.listenAddr)).Info("Starting server")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.log.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, v any, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.With(log.Error(err)).Warn("Failed to write response")
		panic(http.ErrAbortHandler)
	}
}

func (s *Server) writeError(w http.ResponseWriter, msg string, code int) {
	s.writeJSON(w, struct {
		Error string `json:"error"`
	}{Error: msg}, code)
}

// writeMonitorError maps errors returned by the monitor to a status code.
func (s *Server) writeMonitorError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, config.ErrUnknownGroup):
		s.writeError(w, "group not found", http.StatusNotFound)
	case errors.Is(err, monitor.ErrClosed), errors.Is(err, context.Canceled):
		s.writeError(w, "monitor is shutting down", http.StatusServiceUnavailable)
	default:
		log.Ctx(r.Context()).With(log.Error(err)).Error("Monitor request failed")
		s.writeError(w, "internal server error", http.StatusInternalServerError)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok")); err != nil {
		panic(http.ErrAbortHandler)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.monitor.Status(r.Context())
	if err != nil {
		s.writeMonitorError(w, r, err)
		return
	}

	s.writeJSON(w, status, http.StatusOK)
}

func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	status, err := s.monitor.Status(r.Context())
	if err != nil {
		s.writeMonitorError(w, r, err)
		return
	}

	s.writeJSON(w, status.Groups, http.StatusOK)
}

func (s *Server) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	status, err := s.monitor.Status(r.Context())
	if err != nil {
		s.writeMonitorError(w, r, err)
		return
	}

	g, ok := status.Group(mux.Vars(r)["id"])
	if !ok {
		s.writeError(w, "group not found", http.StatusNotFound)
		return
	}

	s.writeJSON(w, g, http.StatusOK)
}

// SetEnergyReq is the body of PUT /api/groups/{id}/energy/{variant}.
type SetEnergyReq struct {
	KWh *float64 `json:"kwh"`
}

func (s *Server) handleSetEnergy(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	variant, err := energy.ParseVariant(vars["variant"])
	if err != nil {
		s.writeError(w, err.Error(), http.StatusNotFound)
		return
	}

	var req SetEnergyReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.KWh == nil || *req.KWh < 0 || math.IsNaN(*req.KWh) || math.IsInf(*req.KWh, 0) {
		s.writeError(w, "kwh must be a non-negative number", http.StatusBadRequest)
		return
	}

	if err := s.monitor.SetAccumulated(r.Context(), vars["id"], variant, *req.KWh); err != nil {
		s.writeMonitorError(w, r, err)
		return
	}

	log.Ctx(r.Context()).With(log.Group(vars["id"]), slog.Any("variant", variant), slog.Float64("kwh", *req.KWh)).Info("Energy set through the API")
	s.handleGetGroup(w, r)
}
