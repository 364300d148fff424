// Package server provides the HTTP API for vibetex editor sessions.
package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/vibetex/internal/completion"
	"github.com/hyperjump/vibetex/internal/config"
	"github.com/hyperjump/vibetex/internal/session"
	"github.com/hyperjump/vibetex/internal/storage"
)

const (
	requestTimeout = 60 * time.Second
	// Upper bound for multipart chat uploads held in memory.
	maxUploadBytes = 32 << 20
)

// WatchService manages the .tex files mirrored into sessions.
type WatchService interface {
	Files() []string
	AddFile(path string, syncExisting bool) error
	RemoveFile(path string) error
}

// Server is the HTTP server for the vibetex API.
type Server struct {
	sessions    *session.Registry
	storage     storage.Storage
	completions *completion.Provider
	index       *completion.Index
	config      *config.Config
	configPath  string
	configMu    sync.Mutex
	watch       WatchService
	onUnwatch   func(path string)
	logger      *zap.Logger
	server      *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithWatch enables the watch endpoints. onUnwatch runs after a file is removed.
func WithWatch(w WatchService, onUnwatch func(path string)) Option {
	return func(s *Server) {
		s.watch = w
		s.onUnwatch = onUnwatch
	}
}

// WithConfigPath persists watch changes to the config file at path.
func WithConfigPath(path string) Option {
	return func(s *Server) { s.configPath = path }
}

// WithSearchIndex enables command documentation search.
func WithSearchIndex(idx *completion.Index) Option {
	return func(s *Server) { s.index = idx }
}

// NewServer creates a server with the given dependencies.
func NewServer(
	sessions *session.Registry,
	store storage.Storage,
	completions *completion.Provider,
	cfg *config.Config,
	logger *zap.Logger,
	opts ...Option,
) *Server {
	s := &Server{
		sessions:    sessions,
		storage:     store,
		completions: completions,
		config:      cfg,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		// Requests that wait on the backend or stream are bounded by the client only.
		r.Post("/sessions/{id}/compile", s.handleCompile)
		r.Post("/sessions/{id}/messages", s.handleSendMessage)
		r.Post("/sessions/{id}/messages/{mid}/apply", s.handleApply)
		r.Get("/sessions/{id}/events", s.handleEvents)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(requestTimeout))

			r.Get("/status", s.handleStatus)
			r.Get("/prompts", s.handlePrompts)
			r.Get("/completions/search", s.handleSearchCompletions)

			r.Get("/sessions", s.handleListSessions)
			r.Post("/sessions", s.handleCreateSession)
			r.Get("/sessions/{id}", s.handleGetSession)
			r.Delete("/sessions/{id}", s.handleDeleteSession)
			r.Put("/sessions/{id}/content", s.handleSetContent)
			r.Get("/sessions/{id}/source", s.handleSource)
			r.Get("/sessions/{id}/artifact", s.handleArtifact)
			r.Get("/sessions/{id}/preview", s.handlePreview)
			r.Get("/sessions/{id}/compiles", s.handleCompiles)
			r.Put("/sessions/{id}/attachment", s.handleSetAttachment)
			r.Delete("/sessions/{id}/attachment", s.handleClearAttachment)
			r.Get("/sessions/{id}/messages", s.handleListMessages)
			r.Get("/sessions/{id}/messages/{mid}", s.handleGetMessage)
			r.Get("/sessions/{id}/messages/{mid}/diff", s.handleDiff)
			r.Get("/sessions/{id}/completions", s.handleCompletions)
			r.Get("/sessions/{id}/notifications", s.handleNotifications)

			r.Get("/watch/files", s.handleWatchFilesList)
			r.Post("/watch/files", s.handleWatchFilesAdd)
			r.Delete("/watch/files", s.handleWatchFilesRemove)
		})
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := s.config.Address()
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
