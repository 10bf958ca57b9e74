package web

import (
	"bytes"
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"timeaudit/internal/config"
	appLog "timeaudit/internal/log"
	"timeaudit/internal/report"
)

// ReportSource supplies the report served over HTTP. refresh.Runner
// implements it.
type ReportSource interface {
	Latest() (*report.Report, time.Time, error)
	Refresh(ctx context.Context) (*report.Report, error)
}

// Server exposes the latest report over HTTP.
type Server struct {
	cfg *config.Config
	src ReportSource
	mux *http.ServeMux
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, src ReportSource) *Server {
	s := &Server{
		cfg: cfg,
		src: src,
		mux: http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty credentials disable auth.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="timeaudit", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// StartServer serves on cfg.Listen until ctx is canceled, then shuts down
// gracefully.
func StartServer(ctx context.Context, cfg *config.Config, src ReportSource) error {
	s := NewServer(cfg, src)
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/report", s.handleReport)
	s.mux.HandleFunc("GET /api/report.csv", s.handleReportCSV)
	s.mux.HandleFunc("POST /api/refresh", s.handleRefresh)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

var contentTypes = map[string]string{
	report.FormatJSON:  "application/json; charset=utf-8",
	report.FormatCSV:   "text/csv; charset=utf-8",
	report.FormatYAML:  "application/yaml; charset=utf-8",
	report.FormatTable: "text/plain; charset=utf-8",
}

// handleReport returns the latest report.
//
// GET /api/report?format=json|yaml|csv|table (default json)
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		format = report.FormatJSON
	}
	s.serveReport(w, format)
}

func (s *Server) handleReportCSV(w http.ResponseWriter, _ *http.Request) {
	s.serveReport(w, report.FormatCSV)
}

func (s *Server) serveReport(w http.ResponseWriter, format string) {
	ct, ok := contentTypes[format]
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown format "+format)
		return
	}

	rep, updatedAt, lastErr := s.src.Latest()
	if rep == nil {
		msg := "report not ready"
		if lastErr != nil {
			msg = "report unavailable: " + lastErr.Error()
		}
		writeError(w, http.StatusServiceUnavailable, msg)
		return
	}

	// Render before writing headers so a failure can still produce a 500.
	var buf bytes.Buffer
	if err := report.Write(&buf, rep, format); err != nil {
		appLog.Error("render report failed", err, "format", format)
		writeError(w, http.StatusInternalServerError, "failed to render report")
		return
	}

	w.Header().Set("Content-Type", ct)
	w.Header().Set("Last-Modified", updatedAt.UTC().Format(http.TimeFormat))
	if lastErr != nil {
		w.Header().Set("X-Refresh-Error", lastErr.Error())
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// refreshResponse is the JSON response shape for /api/refresh.
type refreshResponse struct {
	Labels    int       `json:"labels"`
	Days      int       `json:"days"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	rep, err := s.src.Refresh(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "refresh failed: "+err.Error())
		return
	}
	_, updatedAt, _ := s.src.Latest()
	writeJSON(w, http.StatusOK, refreshResponse{
		Labels:    len(rep.Labels),
		Days:      len(rep.Days),
		UpdatedAt: updatedAt,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := sonic.ConfigDefault.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
