package web

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"uoacal/internal/config"
	"uoacal/internal/ics"
	appLog "uoacal/internal/log"
	"uoacal/internal/model"
	"uoacal/internal/sheet"
	"uoacal/internal/timetable"
)

// LoadFunc returns the current timetable page HTML.
type LoadFunc func(ctx context.Context) ([]byte, error)

// Server serves the most recently extracted timetable as JSON, iCalendar
// and xlsx. The timetable is re-read by Refresh, typically on a cron
// schedule; a failed refresh keeps the previous snapshot.
type Server struct {
	cfg     *config.Config
	load    LoadFunc
	encoder ics.Encoder
	mux     *http.ServeMux

	// refreshMu serializes refreshes; snapMu guards snap.
	refreshMu sync.Mutex
	snapMu    sync.RWMutex
	snap      *snapshot
}

// snapshot is one extraction result.
type snapshot struct {
	courses   []model.Course
	report    timetable.Report
	updatedAt time.Time
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, load LoadFunc, encoder ics.Encoder) *Server {
	s := &Server{
		cfg:     cfg,
		load:    load,
		encoder: encoder,
		mux:     http.NewServeMux(),
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

// Refresh loads the timetable page and replaces the snapshot.
func (s *Server) Refresh(ctx context.Context) error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	started := time.Now()
	body, err := s.load(ctx)
	if err != nil {
		return fmt.Errorf("web: load timetable: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("web: parse timetable: %w", err)
	}

	snap := &snapshot{
		courses:   timetable.Extract(doc),
		report:    timetable.Inspect(doc),
		updatedAt: time.Now(),
	}

	s.snapMu.Lock()
	s.snap = snap
	s.snapMu.Unlock()

	appLog.Info("timetable refreshed",
		"courses", len(snap.courses),
		"tables", snap.report.Tables,
		"duration", time.Since(started).String(),
	)
	return nil
}

func (s *Server) current() *snapshot {
	s.snapMu.RLock()
	defer s.snapMu.RUnlock()
	return s.snap
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
			w.Header().Set("WWW-Authenticate", `Basic realm="uoacal", charset="UTF-8"`)
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

// StartServer serves s on cfg.Listen until ctx is cancelled.
func StartServer(ctx context.Context, cfg *config.Config, s *Server) error {
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
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/courses", s.handleCourses)
	s.mux.HandleFunc("/api/debug", s.handleDebug)
	s.mux.HandleFunc("/api/refresh", s.handleRefresh)
	s.mux.HandleFunc("/courses.ics", s.handleICS)
	s.mux.HandleFunc("/courses.xlsx", s.handleXLSX)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// coursesResponse is the JSON response shape for /api/courses.
type coursesResponse struct {
	Courses   []model.Course `json:"courses"`
	Count     int            `json:"count"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (s *Server) handleCourses(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.requireSnapshot(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, coursesResponse{
		Courses:   snap.courses,
		Count:     len(snap.courses),
		UpdatedAt: snap.updatedAt,
	})
}

func (s *Server) handleDebug(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.requireSnapshot(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, snap.report)
}

// handleRefresh re-reads the timetable on POST.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "use POST")
		return
	}
	if err := s.Refresh(r.Context()); err != nil {
		appLog.Error("api refresh failed", err)
		writeError(w, http.StatusBadGateway, "failed to refresh timetable")
		return
	}
	s.handleCourses(w, r)
}

func (s *Server) handleICS(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.requireSnapshot(w)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", ics.ContentType+"; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename="+ics.DefaultFilename)
	if err := s.encoder.Write(w, snap.courses); err != nil {
		appLog.Error("failed to write calendar response", err)
	}
}

func (s *Server) handleXLSX(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.requireSnapshot(w)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := sheet.Write(&buf, snap.courses); err != nil {
		appLog.Error("failed to build workbook", err)
		writeError(w, http.StatusInternalServerError, "failed to build workbook")
		return
	}
	w.Header().Set("Content-Type", sheet.ContentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+sheet.DefaultFilename)
	_, _ = w.Write(buf.Bytes())
}

// requireSnapshot writes 503 when no timetable has been loaded yet.
func (s *Server) requireSnapshot(w http.ResponseWriter) (*snapshot, bool) {
	snap := s.current()
	if snap == nil {
		writeError(w, http.StatusServiceUnavailable, "timetable not loaded yet")
		return nil, false
	}
	return snap, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
