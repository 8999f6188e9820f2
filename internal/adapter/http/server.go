// Package http serves health, metrics, and the observation query API.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/couchcryptid/aviation-weather-etl/internal/domain"
	"github.com/couchcryptid/aviation-weather-etl/internal/store"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const maxBodyBytes = 1 << 20

// Store is the read and threshold surface of the observation store.
type Store interface {
	Summaries() []store.Summary
	Series(source, station string, params []string) ([]domain.Sample, error)
	Active(source, station string, at time.Time) (domain.Snapshot, bool, error)
	Current(source, station string) (domain.Snapshot, bool, error)
	Units(source, station string, params []string) (map[string]domain.UnitInfo, error)
	Rules() []domain.ThresholdRule
	SetThresholds(rules []domain.ThresholdRule) (map[domain.Severity]int, error)
	ClearThresholds()
}

// Server exposes health, readiness, metrics, and /v1 query endpoints.
type Server struct {
	httpServer *http.Server
	store      Store
	logger     *slog.Logger
}

// NewServer creates an HTTP server backed by st.
func NewServer(addr string, ready sharedobs.ReadinessChecker, st Store, logger *slog.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(15 * time.Second))

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      router,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 20 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		store:  st,
		logger: logger,
	}

	router.Get("/healthz", sharedobs.LivenessHandler())
	router.Get("/readyz", sharedobs.ReadinessHandler(ready))
	router.Handle("/metrics", promhttp.Handler())

	router.Route("/v1", func(r chi.Router) {
		r.Get("/sources", s.handleSources)
		r.Get("/series", s.handleSeries)
		r.Get("/active", s.handleActive)
		r.Get("/units", s.handleUnits)
		r.Get("/thresholds", s.handleGetThresholds)
		r.Put("/thresholds", s.handlePutThresholds)
		r.Delete("/thresholds", s.handleDeleteThresholds)
	})

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleSources(w http.ResponseWriter, _ *http.Request) {
	sharedobs.WriteJSON(w, http.StatusOK, map[string]any{"items": s.store.Summaries()})
}

func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	source, station, ok := requireStation(w, r)
	if !ok {
		return
	}
	params := splitParams(r.URL.Query().Get("params"))
	samples, err := s.store.Series(source, station, params)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, map[string]any{
		"source":  source,
		"station": station,
		"params":  params,
		"samples": samples,
	})
}

func (s *Server) handleActive(w http.ResponseWriter, r *http.Request) {
	source, station, ok := requireStation(w, r)
	if !ok {
		return
	}
	var (
		at    time.Time
		snap  domain.Snapshot
		found bool
		err   error
	)
	if raw := r.URL.Query().Get("at"); raw != "" {
		if at, err = time.Parse(time.RFC3339, raw); err != nil {
			writeError(w, http.StatusBadRequest, "at must be an RFC3339 timestamp")
			return
		}
		snap, found, err = s.store.Active(source, station, at)
	} else {
		at = domain.Now()
		snap, found, err = s.store.Current(source, station)
	}
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no observation for %s active at %s", station, at.UTC().Format(time.RFC3339)))
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, snap)
}

func (s *Server) handleUnits(w http.ResponseWriter, r *http.Request) {
	source, station, ok := requireStation(w, r)
	if !ok {
		return
	}
	units, err := s.store.Units(source, station, splitParams(r.URL.Query().Get("params")))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, map[string]any{"units": units})
}

func (s *Server) handleGetThresholds(w http.ResponseWriter, _ *http.Request) {
	sharedobs.WriteJSON(w, http.StatusOK, map[string]any{"rules": nonNil(s.store.Rules())})
}

func (s *Server) handlePutThresholds(w http.ResponseWriter, r *http.Request) {
	var rules []domain.ThresholdRule
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&rules); err != nil {
		writeError(w, http.StatusBadRequest, "invalid threshold rules: "+err.Error())
		return
	}

	counts, err := s.store.SetThresholds(rules)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	colors := make(map[string]int, len(counts))
	for sev, n := range counts {
		if sev != domain.SeverityNone {
			colors[sev.String()] = n
		}
	}
	s.logger.Info("thresholds updated", "rules", len(rules), "colors", colors)
	sharedobs.WriteJSON(w, http.StatusOK, map[string]any{"rules": nonNil(s.store.Rules()), "colors": colors})
}

func (s *Server) handleDeleteThresholds(w http.ResponseWriter, _ *http.Request) {
	s.store.ClearThresholds()
	s.logger.Info("thresholds cleared")
	sharedobs.WriteJSON(w, http.StatusOK, map[string]any{"rules": []domain.ThresholdRule{}})
}

// requireStation reads the mandatory source and station query parameters.
func requireStation(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	q := r.URL.Query()
	source := strings.TrimSpace(q.Get("source"))
	station := strings.TrimSpace(q.Get("station"))
	if source == "" || station == "" {
		writeError(w, http.StatusBadRequest, "source and station are required")
		return "", "", false
	}
	return source, station, true
}

func splitParams(raw string) []string {
	var params []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			params = append(params, p)
		}
	}
	return params
}

func nonNil(rules []domain.ThresholdRule) []domain.ThresholdRule {
	if rules == nil {
		return []domain.ThresholdRule{}
	}
	return rules
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrUnknownSource):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, domain.ErrReservedParameter):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	sharedobs.WriteJSON(w, status, map[string]string{"error": msg})
}
