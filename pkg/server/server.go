// Package server exposes an engine over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/levy-ai/levy/pkg/engine"
	"github.com/levy-ai/levy/pkg/metrics"
	"github.com/levy-ai/levy/pkg/models"
	"github.com/levy-ai/levy/pkg/provider"
)

// CacheHeader carries the result source on /v1/respond replies.
const CacheHeader = "X-Levy-Cache"

const maxBodyBytes = 1 << 20

// RespondRequest is the body of POST /v1/respond.
type RespondRequest struct {
	Prompt string `json:"prompt"`
	models.Params
}

// MetricsResponse is the body of GET /v1/metrics.
type MetricsResponse struct {
	models.MetricsSnapshot
	HitRate float64 `json:"hit_rate"`
	Summary string  `json:"summary"`
}

// Server is the Levy HTTP front end.
type Server struct {
	listen string
	engine *engine.Engine
	logger *slog.Logger
	mux    *http.ServeMux
}

// New creates a Server for e listening on listen.
func New(listen string, e *engine.Engine, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(metrics.NewCollector(e.Recorder()))

	s := &Server{
		listen: listen,
		engine: e,
		logger: logger,
		mux:    http.NewServeMux(),
	}
	s.mux.HandleFunc("/v1/respond", s.handleRespond)
	s.mux.HandleFunc("/v1/metrics", s.handleMetrics)
	s.mux.HandleFunc("/v1/cache", s.handleCache)
	s.mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe starts the server with graceful shutdown support.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.listen,
		Handler: s,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("levy listening", "addr", s.listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleRespond(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	r.Body.Close()

	var req RespondRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeJSONError(w, http.StatusBadRequest, "prompt is required")
		return
	}

	res, err := s.engine.Respond(r.Context(), req.Prompt, req.Params)
	if err != nil {
		code := statusFor(err)
		s.logger.Error("respond failed", "status", code, "error", err)
		writeJSONError(w, code, err.Error())
		return
	}

	w.Header().Set(CacheHeader, string(res.Source))
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	snap := s.engine.Metrics()
	writeJSON(w, http.StatusOK, MetricsResponse{
		MetricsSnapshot: snap,
		HitRate:         snap.HitRate(),
		Summary:         metrics.Summary(snap),
	})
}

func (s *Server) handleCache(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		stats, err := s.engine.Stats(r.Context())
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, stats)
	case http.MethodDelete:
		if err := s.engine.Clear(r.Context()); err != nil {
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.logger.Info("cache cleared")
		w.WriteHeader(http.StatusNoContent)
	default:
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func statusFor(err error) int {
	var pe *provider.Error
	switch {
	case errors.As(err, &pe):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	fmt.Fprintf(w, `{"error":{"message":%q,"type":"levy_error","code":%d}}`, message, code)
}
