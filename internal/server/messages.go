package server

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/vibetex/internal/chat"
	"github.com/hyperjump/vibetex/internal/models"
	"github.com/hyperjump/vibetex/internal/session"
)

const defaultSideBySideWidth = 60

// readUpload returns the named multipart file, or nil when the field is absent.
func readUpload(r *http.Request, field string) (*models.File, error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return fileFromPart(file, header)
}

func fileFromPart(file multipart.File, header *multipart.FileHeader) (*models.File, error) {
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return &models.File{Name: header.Filename, ContentType: contentType, Data: data}, nil
}

func (s *Server) parseForm(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	err := r.ParseMultipartForm(maxUploadBytes)
	if errors.Is(err, http.ErrNotMultipart) {
		err = r.ParseForm()
	}
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid form body")
		return false
	}
	return true
}

func (s *Server) attach(w http.ResponseWriter, r *http.Request, sess *session.Session) bool {
	f, err := readUpload(r, "attached")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid attachment")
		return false
	}
	if f == nil {
		return true
	}
	if err := sess.Chat.SetAttachment(f); err != nil {
		s.respondError(w, http.StatusBadRequest, "attachment type not accepted")
		return false
	}
	return true
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFor(w, r)
	if !ok {
		return
	}
	if !s.parseForm(w, r) {
		return
	}
	prompt := r.FormValue("prompt")
	if prompt == "" {
		s.respondError(w, http.StatusBadRequest, "prompt is required")
		return
	}
	if !s.attach(w, r, sess) {
		return
	}
	msg, err := sess.Chat.SendMessage(r.Context(), prompt)
	switch {
	case errors.Is(err, chat.ErrEmptyPrompt):
		s.respondError(w, http.StatusBadRequest, "prompt is required")
		return
	case errors.Is(err, chat.ErrSuperseded):
		s.respondError(w, http.StatusConflict, "reply superseded by a newer message")
		return
	case err != nil:
		s.logger.Debug("send message failed", zap.String("session", sess.ID), zap.Error(err))
		s.respondError(w, http.StatusBadGateway, chat.FailureMessage)
		return
	}
	view, err := sess.Chat.View(msg.ID)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, view)
}

func (s *Server) handleSetAttachment(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFor(w, r)
	if !ok {
		return
	}
	if !s.parseForm(w, r) {
		return
	}
	f, err := readUpload(r, "attached")
	if err != nil || f == nil {
		s.respondError(w, http.StatusBadRequest, "attached file is required")
		return
	}
	if err := sess.Chat.SetAttachment(f); err != nil {
		s.respondError(w, http.StatusBadRequest, "attachment type not accepted")
		return
	}
	s.respondJSON(w, http.StatusOK, sess.Chat.Attachment())
}

func (s *Server) handleClearAttachment(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFor(w, r)
	if !ok {
		return
	}
	sess.Chat.ClearAttachment()
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFor(w, r)
	if !ok {
		return
	}
	views := sess.Chat.Views()
	if r.URL.Query().Get("format") == "html" {
		for i := range views {
			views[i].HTML = renderMarkdown(views[i].Content)
		}
	}
	resp := map[string]interface{}{
		"messages": views,
		"waiting":  sess.Chat.Waiting(),
	}
	if len(views) == 0 {
		resp["prompts"] = chat.StarterPrompts
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetMessage(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFor(w, r)
	if !ok {
		return
	}
	view, err := sess.Chat.View(chi.URLParam(r, "mid"))
	if err != nil {
		s.respondError(w, http.StatusNotFound, "message not found")
		return
	}
	if r.URL.Query().Get("format") == "html" {
		view.HTML = renderMarkdown(view.Content)
	}
	s.respondJSON(w, http.StatusOK, view)
}

type diffResponse struct {
	Identical bool        `json:"identical"`
	Summary   string      `json:"summary"`
	Additions int         `json:"additions"`
	Deletions int         `json:"deletions"`
	Rows      interface{} `json:"rows"`
	Unified   string      `json:"unified,omitempty"`
}

func (s *Server) handleDiff(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFor(w, r)
	if !ok {
		return
	}
	p, err := sess.Chat.Preview(chi.URLParam(r, "mid"))
	if err != nil {
		s.respondChatError(w, err)
		return
	}
	switch r.URL.Query().Get("format") {
	case "unified":
		w.Header().Set("Content-Type", "text/x-diff; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, p.Unified)
		return
	case "side-by-side":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, p.SideBySide(intQuery(r, "width", defaultSideBySideWidth)))
		return
	}
	s.respondJSON(w, http.StatusOK, diffResponse{
		Identical: p.Identical,
		Summary:   p.Summary(),
		Additions: p.Stats.Additions,
		Deletions: p.Stats.Deletions,
		Rows:      p.Rows,
		Unified:   p.Unified,
	})
}

func (s *Server) handleApply(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFor(w, r)
	if !ok {
		return
	}
	res, err := sess.Chat.Apply(r.Context(), chi.URLParam(r, "mid"))
	if err != nil {
		s.respondChatError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"applied": res.Applied,
		"compile": res.Compile,
		"editor":  sess.Store.Snapshot(),
	})
}

func (s *Server) respondChatError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chat.ErrMessageNotFound):
		s.respondError(w, http.StatusNotFound, "message not found")
	case errors.Is(err, chat.ErrNoProposal):
		s.respondError(w, http.StatusUnprocessableEntity, "message has no proposal")
	case errors.Is(err, chat.ErrApplyInProgress):
		s.respondError(w, http.StatusConflict, "another apply is in progress")
	default:
		s.respondError(w, http.StatusInternalServerError, err.Error())
	}
}
