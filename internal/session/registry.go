package session

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/hyperjump/vibetex/internal/chat"
	"github.com/hyperjump/vibetex/internal/compile"
	"github.com/hyperjump/vibetex/internal/editor"
	"github.com/hyperjump/vibetex/internal/notify"
)

const (
	defaultTTL     = time.Hour
	defaultCleanup = 10 * time.Minute
)

// ErrNotFound is returned for unknown or expired session IDs.
var ErrNotFound = errors.New("session: not found")

// Backend is the external compile and chat service.
type Backend interface {
	compile.Compiler
	chat.Assistant
}

// Log records session lifetimes.
type Log interface {
	OpenSession(ctx context.Context, id, sourcePath string, at time.Time) error
	CloseSession(ctx context.Context, id string, at time.Time) error
}

// Registry holds live sessions. Ordinary sessions expire after the TTL
// without access; sessions bound to a watched file never expire.
type Registry struct {
	cache      *cache.Cache
	backend    Backend
	recorder   compile.Recorder
	log        Log
	policy     compile.Policy
	extensions []string
	logger     *zap.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithTTL sets the idle expiration and the purge interval.
func WithTTL(ttl, cleanup time.Duration) Option {
	return func(r *Registry) {
		r.cache = cache.New(ttl, cleanup)
	}
}

// WithRecorder records compile history for every session.
func WithRecorder(rec compile.Recorder) Option {
	return func(r *Registry) { r.recorder = rec }
}

// WithLog records session open and close.
func WithLog(l Log) Option {
	return func(r *Registry) { r.log = l }
}

// WithPolicy sets the compile and chat sequencing policy.
func WithPolicy(p compile.Policy) Option {
	return func(r *Registry) { r.policy = p }
}

// WithAttachmentExtensions sets the accepted attachment extensions.
func WithAttachmentExtensions(exts []string) Option {
	return func(r *Registry) { r.extensions = exts }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// NewRegistry creates a registry whose sessions talk to backend.
func NewRegistry(backend Backend, opts ...Option) *Registry {
	r := &Registry{
		cache:      cache.New(defaultTTL, defaultCleanup),
		backend:    backend,
		policy:     compile.PolicyLatest,
		extensions: chat.DefaultAttachmentExtensions,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.cache.OnEvicted(func(id string, v interface{}) {
		s := v.(*Session)
		s.Close()
		r.logger.Debug("session closed", zap.String("id", id))
		if r.log != nil {
			if err := r.log.CloseSession(context.Background(), id, time.Now()); err != nil {
				r.logger.Warn("failed to log session close", zap.String("id", id), zap.Error(err))
			}
		}
	})
	return r
}

// Create starts a new session with initial buffer content.
func (r *Registry) Create(content string) *Session {
	s := r.build(uuid.NewString(), "", content)
	r.cache.Set(s.ID, s, cache.DefaultExpiration)
	r.opened(s)
	return s
}

// Attach returns the non-expiring session with id, creating it for sourcePath
// when absent. The boolean reports whether it was created.
func (r *Registry) Attach(id, sourcePath, content string) (*Session, bool) {
	if v, ok := r.cache.Get(id); ok {
		return v.(*Session), false
	}
	s := r.build(id, sourcePath, content)
	if err := r.cache.Add(id, s, cache.NoExpiration); err != nil {
		// Lost a race with another Attach for the same file.
		s.Close()
		v, _ := r.cache.Get(id)
		return v.(*Session), false
	}
	r.opened(s)
	return s, true
}

func (r *Registry) opened(s *Session) {
	r.logger.Debug("session opened", zap.String("id", s.ID), zap.String("source", s.SourcePath))
	if r.log != nil {
		if err := r.log.OpenSession(context.Background(), s.ID, s.SourcePath, s.CreatedAt); err != nil {
			r.logger.Warn("failed to log session open", zap.String("id", s.ID), zap.Error(err))
		}
	}
}

func (r *Registry) build(id, sourcePath, content string) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	logger := r.logger.With(zap.String("session", id))
	center := notify.NewCenter(notify.WithLogger(logger))
	store := editor.NewStore(content)

	compileOpts := []compile.Option{
		compile.WithPolicy(r.policy),
		compile.WithNotifier(center),
		compile.WithLogger(logger),
	}
	if r.recorder != nil {
		compileOpts = append(compileOpts, compile.WithRecorder(r.recorder, id))
	}
	orch := compile.NewOrchestrator(store, r.backend, compileOpts...)

	s := &Session{
		ID:            id,
		SourcePath:    sourcePath,
		CreatedAt:     time.Now(),
		Store:         store,
		Compiler:      orch,
		Notifications: center,
		ctx:           ctx,
		cancel:        cancel,
		listeners:     make(map[int]func(Event)),
	}
	s.Chat = chat.NewWorkflow(store, r.backend, orch,
		chat.WithPolicy(r.policy),
		chat.WithNotifier(center),
		chat.WithLogger(logger),
		chat.WithAttachmentExtensions(r.extensions...),
		chat.WithMessageHook(s.onMessage),
	)
	s.unsub = store.Subscribe(s.onStoreEvent)
	return s
}

// Get returns the session with id and extends its idle expiration.
func (r *Registry) Get(id string) (*Session, error) {
	v, exp, ok := r.cache.GetWithExpiration(id)
	if !ok {
		return nil, ErrNotFound
	}
	s := v.(*Session)
	if s.ctx.Err() != nil {
		return nil, ErrNotFound
	}
	if !exp.IsZero() {
		r.cache.Set(id, s, cache.DefaultExpiration)
	}
	return s, nil
}

// Delete closes and removes the session.
func (r *Registry) Delete(id string) error {
	if _, ok := r.cache.Get(id); !ok {
		return ErrNotFound
	}
	r.cache.Delete(id)
	return nil
}

// List returns live sessions, oldest first.
func (r *Registry) List() []*Session {
	items := r.cache.Items()
	out := make([]*Session, 0, len(items))
	for _, item := range items {
		out = append(out, item.Object.(*Session))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	return r.cache.ItemCount()
}

// Close closes every session.
func (r *Registry) Close() {
	for id := range r.cache.Items() {
		r.cache.Delete(id)
	}
}
