// Package api serves the dashboard to the browser: the embedded web UI, a
// JSON API over the shell's views, a change stream and operational
// endpoints.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ccugym/gymdash/internal/backend"
	"github.com/ccugym/gymdash/internal/metrics"
	"github.com/ccugym/gymdash/internal/views"
)

// Options are the collaborators a Server is built from
type Options struct {
	Shell    *views.Shell
	Bus      *views.Bus
	Logs     *LogBuffer
	History  *UpdateHistory
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
}

// Server represents the HTTP server
type Server struct {
	shell   *views.Shell
	logs    *LogBuffer
	history *UpdateHistory
	stream  *Stream
	router  chi.Router
}

// NewServer creates a new HTTP server
func NewServer(opts Options) *Server {
	s := &Server{
		shell:   opts.Shell,
		logs:    opts.Logs,
		history: opts.History,
		stream:  NewStream(opts.Bus, opts.Metrics),
		router:  chi.NewRouter(),
	}
	if s.logs == nil {
		s.logs = NewLogBuffer(500)
	}
	if s.history == nil {
		s.history = NewUpdateHistory(100)
	}

	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	s.setupRoutes(gatherer)
	return s
}

// setupRoutes configures the HTTP routes
func (s *Server) setupRoutes(gatherer prometheus.Gatherer) {
	r := s.router
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Handle("/ws", s.stream)

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", s.handleState)
		r.Put("/tab", s.handleSelectTab)
		r.Post("/dark-mode", s.handleDarkMode)

		r.Get("/equipment", s.handleEquipment)

		r.Get("/overview", s.handleOverview)
		r.Put("/overview/scale", s.handleOverviewScale)

		r.Route("/admin", func(r chi.Router) {
			r.Get("/", s.handleAdmin)
			r.Post("/login", s.handleAdminLogin)
			r.Patch("/equipment/{name}", s.handleAdminEdit)
			r.Post("/equipment/{name}/update", s.handleAdminUpdate)
			r.Post("/apply-all", s.handleAdminApplyAll)
			r.Get("/history", s.handleAdminHistory)
		})

		r.Get("/suggestions", s.handleSuggestion)
		r.Post("/suggestions", s.handleSuggestionSubmit)

		r.Post("/upgrade", s.handleUpgrade)

		r.Get("/logs", s.handleLogs)
	})

	r.Get("/overview/image/{id}", s.handleOverviewImage)

	// Web UI
	r.Get("/", s.handleUI)
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// History returns the admin update history. Its Add method is meant to be
// passed to the shell as the update observer.
func (s *Server) History() *UpdateHistory {
	return s.history
}

// Close disconnects change stream clients
func (s *Server) Close() {
	s.stream.Close()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("write response failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// statusFor maps view and backend errors onto HTTP statuses
func statusFor(err error) int {
	var se *backend.StatusError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, views.ErrEmptyInput), errors.Is(err, views.ErrInvalidInput), errors.Is(err, views.ErrUnknownTab):
		return http.StatusBadRequest
	case errors.Is(err, views.ErrUnauthenticated), backend.IsAuth(err):
		return http.StatusUnauthorized
	case errors.Is(err, views.ErrProRequired):
		return http.StatusForbidden
	case errors.Is(err, views.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, views.ErrBusy), errors.Is(err, views.ErrLoggedIn):
		return http.StatusConflict
	case backend.IsNetwork(err):
		return http.StatusBadGateway
	case errors.As(err, &se):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// handleHealth handles the health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "healthy",
		"stream_clients": s.stream.Clients(),
	})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.shell.State())
}

func (s *Server) handleSelectTab(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tab string `json:"tab"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := s.shell.SelectTab(r.Context(), req.Tab); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.shell.State())
}

func (s *Server) handleDarkMode(w http.ResponseWriter, r *http.Request) {
	on, err := s.shell.ToggleDarkMode(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"dark_mode": on})
}

func (s *Server) handleEquipment(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.shell.Equipment().Snapshot())
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.shell.Overview().Snapshot())
}

func (s *Server) handleOverviewScale(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Percent int `json:"percent"`
	}
	if !decode(w, r, &req) {
		return
	}
	if _, err := s.shell.Overview().SetPercent(r.Context(), req.Percent); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.shell.Overview().Snapshot())
}

func (s *Server) handleOverviewImage(w http.ResponseWriter, r *http.Request) {
	frame, ok := s.shell.Images().Get(chi.URLParam(r, "id"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", frame.ContentType)
	w.Header().Set("Cache-Control", "no-store")
	w.Write(frame.Data)
}

func (s *Server) handleAdmin(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.shell.Admin().Snapshot())
}

func (s *Server) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Password == "" {
		writeError(w, http.StatusBadRequest, views.ErrEmptyInput.Error())
		return
	}
	err := s.shell.Admin().Login(r.Context(), req.Password)
	writeJSON(w, statusFor(err), s.shell.Admin().Snapshot())
}

func (s *Server) handleAdminEdit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Total     int `json:"total"`
		Available int `json:"available"`
	}
	if !decode(w, r, &req) {
		return
	}
	item, err := s.shell.Admin().Edit(chi.URLParam(r, "name"), req.Total, req.Available)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleAdminUpdate(w http.ResponseWriter, r *http.Request) {
	res, err := s.shell.Admin().Update(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"result": res,
		"admin":  s.shell.Admin().Snapshot(),
	})
}

func (s *Server) handleAdminApplyAll(w http.ResponseWriter, r *http.Request) {
	report, err := s.shell.Admin().ApplyAll(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"report": report,
		"admin":  s.shell.Admin().Snapshot(),
	})
}

func (s *Server) handleAdminHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"updates": s.history.Entries(),
		"failed":  s.history.Failed(),
	})
}

func (s *Server) handleSuggestion(w http.ResponseWriter, r *http.Request) {
	if !s.shell.IsPro() {
		writeError(w, http.StatusForbidden, views.ErrProRequired.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.shell.Suggestion().Snapshot())
}

func (s *Server) handleSuggestionSubmit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Prompt string `json:"prompt"`
	}
	if !decode(w, r, &req) {
		return
	}
	snap, err := s.shell.Suggestion().Submit(r.Context(), req.Prompt)
	if errors.Is(err, views.ErrProRequired) {
		writeError(w, http.StatusForbidden, err.Error())
		return
	}
	writeJSON(w, statusFor(err), snap)
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if !decode(w, r, &req) {
		return
	}
	snap, err := s.shell.Upgrade().Redeem(r.Context(), req.Code)
	writeJSON(w, statusFor(err), snap)
}

// handleLogs returns buffered log lines; ?level=warn,error filters them
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	var levels []string
	if q := r.URL.Query().Get("level"); q != "" {
		levels = strings.Split(q, ",")
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": s.logs.Entries(levels),
	})
}

// handleUI serves the web UI
func (s *Server) handleUI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(webUI))
}
