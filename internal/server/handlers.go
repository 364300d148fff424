package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/vibetex/internal/chat"
	"github.com/hyperjump/vibetex/internal/config"
	"github.com/hyperjump/vibetex/internal/session"
	"github.com/hyperjump/vibetex/internal/watcher"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := map[string]interface{}{
		"sessions": s.sessions.Count(),
	}
	if s.storage != nil {
		compiles, err := s.storage.CountCompiles(ctx)
		if err != nil {
			s.logger.Error("status: count compiles failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		byStatus, err := s.storage.CountCompilesByStatus(ctx)
		if err != nil {
			s.logger.Error("status: count compiles by status failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp["compiles"] = compiles
		resp["compiles_by_status"] = byStatus
		if size, err := s.storage.SizeBytes(); err == nil {
			resp["disk_usage_bytes"] = size
		}
	}
	if s.completions != nil {
		resp["completion_entries"] = s.completions.Table().Len()
	}

	if s.config != nil {
		s.configMu.Lock()
		resp["config"] = map[string]interface{}{
			"backend_url":    s.config.Backend.BaseURL,
			"sequencing":     s.config.Session.Sequencing,
			"session_ttl":    s.config.Session.TTL.String(),
			"database_path":  s.config.Storage.DatabasePath,
			"watched_files":  len(s.config.Watch.Files),
			"auto_compile":   s.config.Watch.AutoCompileOrDefault(),
			"max_results":    s.config.Completion.MaxResults,
			"fuzzy_distance": s.config.Completion.FuzzyDistance,
		}
		s.configMu.Unlock()
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePrompts(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"prompts": chat.StarterPrompts})
}

func (s *Server) handleWatchFilesList(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"files": s.watch.Files()})
}

type watchAddRequest struct {
	Path string `json:"path"`
	Sync *bool  `json:"sync,omitempty"`
}

func (s *Server) handleWatchFilesAdd(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	var req watchAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	abs, err := filepath.Abs(req.Path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	if info, err := os.Stat(abs); err == nil && info.IsDir() {
		s.respondError(w, http.StatusBadRequest, "path is a directory")
		return
	}
	syncExisting := true
	if req.Sync != nil {
		syncExisting = *req.Sync
	}
	s.logger.Debug("watch add file request", zap.String("path", abs), zap.Bool("sync_existing", syncExisting))
	if err := s.watch.AddFile(abs, syncExisting); err != nil {
		if errors.Is(err, watcher.ErrNotTeX) {
			s.respondError(w, http.StatusBadRequest, "only .tex files can be watched")
			return
		}
		s.logger.Error("watch add file failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistWatchFiles()
	s.respondJSON(w, http.StatusCreated, map[string]string{"path": abs, "status": "added"})
}

func (s *Server) handleWatchFilesRemove(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		var body struct {
			Path string `json:"path"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil && body.Path != "" {
			path = body.Path
		}
	}
	if path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required (query or body)")
		return
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	s.logger.Debug("watch remove file request", zap.String("path", abs))
	if err := s.watch.RemoveFile(abs); err != nil {
		s.logger.Error("watch remove file failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if s.onUnwatch != nil {
		s.onUnwatch(abs)
	}
	s.persistWatchFiles()
	s.respondJSON(w, http.StatusOK, map[string]string{"path": abs, "status": "removed"})
}

func (s *Server) persistWatchFiles() {
	if s.configPath == "" || s.config == nil {
		return
	}
	s.configMu.Lock()
	s.config.Watch.Files = s.watch.Files()
	err := config.Save(s.configPath, s.config)
	s.configMu.Unlock()
	if err != nil {
		s.logger.Warn("failed to persist watch config", zap.Error(err))
	}
}

// sessionFor resolves the {id} URL parameter, writing a 404 when it is unknown.
func (s *Server) sessionFor(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := s.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusNotFound, "session not found")
		return nil, false
	}
	return sess, true
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
