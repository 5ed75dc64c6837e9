package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/fetchkit/fetchd/internal/download"
	"github.com/fetchkit/fetchd/internal/history"
	"github.com/fetchkit/fetchd/internal/jobs"
	"github.com/fetchkit/fetchd/internal/output"
	"github.com/fetchkit/fetchd/internal/platform"
	"github.com/fetchkit/fetchd/internal/settings"
)

// Server exposes the orchestrator over HTTP: job submission, progress
// polling, artifact retrieval, history and admin settings.
type Server struct {
	Service  *download.Service
	Settings *settings.Manager
	History  *history.Log
	AdminKey string
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/download", s.handleCreate)
		r.Get("/progress/{id}", s.handleProgress)
		r.Get("/file/{id}", s.handleFile)
		r.Get("/history", s.handleHistory)
		r.Get("/settings", s.handleGetSettings)
		r.Post("/settings", s.handleUpdateSettings)
	})
	return r
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	log := output.GetLogger("server")
	var req download.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	id, err := s.Service.Submit(req)
	if err != nil {
		reason, ok := download.Reason(err)
		if !ok {
			writeError(w, http.StatusInternalServerError, "internal", err.Error())
			return
		}
		log.Debug().Str("url", req.URL).Str("reason", string(reason)).Msg("Request rejected")
		writeError(w, http.StatusBadRequest, string(reason), err.Error())
		return
	}
	log.Info().Str("job", id).Str("url", req.URL).Msg("Job created")
	writeJSON(w, http.StatusOK, map[string]string{"job_id": id})
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.Service.Job(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "job not found")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	path, title, err := s.Service.Artifact(id)
	if err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "job not found")
			return
		}
		writeError(w, http.StatusConflict, "not_ready", "job has not finished")
		return
	}
	filename := title + filepath.Ext(path)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	http.ServeFile(w, r, path)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.History == nil {
		writeJSON(w, http.StatusOK, []history.Entry{})
		return
	}
	entries, err := s.History.List(100)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid admin key")
		return
	}
	writeJSON(w, http.StatusOK, s.Settings.Snapshot())
}

type settingsUpdate struct {
	Sources    map[string]bool `json:"sources"`
	UseCookies *bool           `json:"use_cookies"`
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid admin key")
		return
	}
	var upd settingsUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	for name, enabled := range upd.Sources {
		p, err := platform.Parse(name)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_platform", err.Error())
			return
		}
		if err := s.Settings.SetEnabled(p, enabled); err != nil {
			writeError(w, http.StatusInternalServerError, "internal", err.Error())
			return
		}
	}
	if upd.UseCookies != nil {
		if err := s.Settings.SetCookies(*upd.UseCookies); err != nil {
			writeError(w, http.StatusInternalServerError, "internal", err.Error())
			return
		}
	}
	writeJSON(w, http.StatusOK, s.Settings.Snapshot())
}

func (s *Server) authorized(r *http.Request) bool {
	if s.AdminKey == "" {
		return true
	}
	return r.Header.Get("X-Admin-Key") == s.AdminKey
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, reason, message string) {
	writeJSON(w, status, map[string]string{"error": message, "reason": reason})
}
