package server

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/hyperjump/vibetex/internal/backend"
	"github.com/hyperjump/vibetex/internal/compile"
	"github.com/hyperjump/vibetex/internal/models"
	"github.com/hyperjump/vibetex/internal/preview"
)

const defaultPreviewText = 20000

type contentRequest struct {
	Content string `json:"content"`
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	list := s.sessions.List()
	out := make([]models.SessionInfo, len(list))
	for i, sess := range list {
		out[i] = sess.Info()
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"sessions": out})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req contentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sess := s.sessions.Create(req.Content)
	s.logger.Debug("session created", zap.String("id", sess.ID))
	s.respondJSON(w, http.StatusCreated, sess.Info())
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFor(w, r)
	if !ok {
		return
	}
	s.respondJSON(w, http.StatusOK, sess.Info())
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFor(w, r)
	if !ok {
		return
	}
	if err := s.sessions.Delete(sess.ID); err != nil {
		s.respondError(w, http.StatusNotFound, "session not found")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"id": sess.ID, "status": "closed"})
}

// handleSetContent accepts either JSON {"content": ...} or a raw TeX body.
func (s *Server) handleSetContent(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFor(w, r)
	if !ok {
		return
	}
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	var content string
	if mediaType == "application/json" {
		var req contentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		content = req.Content
	} else {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "failed to read body")
			return
		}
		content = string(data)
	}
	sess.Store.SetContent(content)
	s.respondJSON(w, http.StatusOK, sess.Store.Snapshot())
}

func (s *Server) handleSource(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFor(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", models.SourceContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+models.SourceFilename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, sess.Store.Content())
}

type compileResponse struct {
	compile.Outcome
	Error  string                `json:"error,omitempty"`
	Editor models.EditorSnapshot `json:"editor"`
}

func (s *Server) handleCompile(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFor(w, r)
	if !ok {
		return
	}
	out := sess.Compiler.CompileCurrent(r.Context())
	resp := compileResponse{Outcome: out, Editor: sess.Store.Snapshot()}
	if out.Err != nil {
		resp.Error = compile.FailureMessage
		status := http.StatusBadGateway
		if backend.IsKind(out.Err, backend.KindTransport) && r.Context().Err() != nil {
			status = http.StatusRequestTimeout
		}
		s.respondJSON(w, status, resp)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleArtifact(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFor(w, r)
	if !ok {
		return
	}
	data := sess.Store.Artifact()
	if data == nil {
		s.respondError(w, http.StatusNotFound, "no compiled artifact")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `inline; filename="main.pdf"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFor(w, r)
	if !ok {
		return
	}
	data := sess.Store.Artifact()
	if data == nil {
		s.respondError(w, http.StatusNotFound, "no compiled artifact")
		return
	}
	maxText := intQuery(r, "max", defaultPreviewText)
	p, err := preview.Inspect(data, maxText)
	if err != nil {
		s.logger.Debug("artifact preview failed", zap.String("session", sess.ID), zap.Error(err))
		s.respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, p)
}

func (s *Server) handleCompiles(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFor(w, r)
	if !ok {
		return
	}
	if s.storage == nil {
		s.respondError(w, http.StatusNotImplemented, "compile history not enabled")
		return
	}
	list, err := s.storage.ListCompiles(r.Context(), sess.ID, intQuery(r, "offset", 0), intQuery(r, "limit", 0))
	if err != nil {
		s.logger.Error("list compiles failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"compiles":      list,
		"stale_dropped": sess.Compiler.StaleDropped(),
	})
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFor(w, r)
	if !ok {
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"notifications": sess.Notifications.Drain()})
}

func (s *Server) handleCompletions(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFor(w, r)
	if !ok {
		return
	}
	content := sess.Store.Content()
	pos := len(content)
	if v := r.URL.Query().Get("pos"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "pos must be an integer")
			return
		}
		pos = n
	}
	var list models.CompletionList
	if r.URL.Query().Get("filter") == "false" {
		list = s.completions.SuggestionsAt(content, pos)
	} else {
		list = s.completions.Complete(content, pos)
	}
	s.respondJSON(w, http.StatusOK, list)
}

func (s *Server) handleSearchCompletions(w http.ResponseWriter, r *http.Request) {
	if s.index == nil {
		s.respondError(w, http.StatusNotImplemented, "completion search not enabled")
		return
	}
	q := r.URL.Query().Get("q")
	if q == "" {
		s.respondError(w, http.StatusBadRequest, "q is required")
		return
	}
	fuzzy := r.URL.Query().Get("fuzzy") == "true"
	hits, err := s.index.Search(q, intQuery(r, "limit", 0), fuzzy)
	if err != nil {
		s.logger.Error("completion search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"query": q, "results": hits})
}

func intQuery(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
