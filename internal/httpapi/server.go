package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"vantage/internal/backtest"
	"vantage/internal/domain"
	"vantage/internal/metrics"
)

// Server serves the backtest HTTP API.
type Server struct {
	svc      *backtest.Service
	defaults backtest.Defaults
	origins  []string
	metrics  *metrics.Metrics
	log      *slog.Logger
}

// NewServer creates a new HTTP API server. m may be nil, in which case
// /metrics is not mounted and requests are not counted.
func NewServer(svc *backtest.Service, defaults backtest.Defaults, allowedOrigins []string, m *metrics.Metrics, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		svc:      svc,
		defaults: defaults,
		origins:  allowedOrigins,
		metrics:  m,
		log:      log.With("component", "httpapi"),
	}
}

// RegisterRoutes registers all API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /backtest/demo", s.handleBacktestDemo)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}
}

// Handler returns an http.Handler with logging and CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return s.logMiddleware(corsMiddleware(s.origins, mux))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleBacktestDemo(w http.ResponseWriter, r *http.Request) {
	req, err := s.parseRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.svc.Run(r.Context(), req)
	if err != nil {
		status, msg := errorStatus(err)
		if status >= http.StatusInternalServerError {
			s.log.Error("backtest", "symbol", req.Symbol, "error", err)
		}
		writeError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// parseRequest reads the demo query parameters. Missing parameters take the
// configured defaults; malformed ones are rejected.
func (s *Server) parseRequest(r *http.Request) (backtest.Request, error) {
	q := r.URL.Query()
	req := s.defaults.Request()
	if v := strings.TrimSpace(q.Get("symbol")); v != "" {
		req.Symbol = v
	}

	var err error
	if req.Window, err = intParam(q.Get("window"), req.Window, "window"); err != nil {
		return req, err
	}
	if req.AltWindow, err = intParam(q.Get("alt_window"), req.AltWindow, "alt_window"); err != nil {
		return req, err
	}
	if req.Days, err = intParam(q.Get("days"), req.Days, "days"); err != nil {
		return req, err
	}
	if v := q.Get("use_real"); v != "" {
		b, perr := strconv.ParseBool(v)
		if perr != nil {
			return req, fmt.Errorf("%w: use_real %q is not a boolean", domain.ErrInvalidParameter, v)
		}
		req.UseReal = b
	}
	return req, nil
}

func intParam(raw string, def int, name string) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q is not an integer", domain.ErrInvalidParameter, name, raw)
	}
	return n, nil
}

// errorStatus maps a service error to an HTTP status and client message.
func errorStatus(err error) (int, string) {
	if domain.IsClientError(err) {
		return http.StatusBadRequest, err.Error()
	}
	if errors.Is(err, context.Canceled) {
		return statusClientClosed, "request cancelled"
	}
	return http.StatusInternalServerError, "internal error"
}

// statusClientClosed is the de-facto code for a request the client abandoned.
const statusClientClosed = 499

// ---------------------------------------------------------------------------
// Middleware
// ---------------------------------------------------------------------------

func corsMiddleware(origins []string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && (slices.Contains(origins, origin) || slices.Contains(origins, "*")) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusWriter captures the response status for logging.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		elapsed := time.Since(start)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		if s.metrics != nil {
			s.metrics.ObserveHTTP(route, sw.status, elapsed)
		}
		s.log.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration", elapsed.Round(time.Microsecond),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Detail: msg})
}
