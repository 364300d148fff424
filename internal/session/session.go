// Package session bundles the per-tab editor state and keeps live sessions
// in an expiring registry.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/hyperjump/vibetex/internal/chat"
	"github.com/hyperjump/vibetex/internal/compile"
	"github.com/hyperjump/vibetex/internal/editor"
	"github.com/hyperjump/vibetex/internal/models"
	"github.com/hyperjump/vibetex/internal/notify"
)

// EventKind names a session event.
type EventKind string

const (
	EventContent   EventKind = EventKind(editor.ContentChanged)
	EventArtifact  EventKind = EventKind(editor.ArtifactChanged)
	EventCompiling EventKind = EventKind(editor.CompilingChanged)
	EventMessage   EventKind = "message"
)

// Event is published to session subscribers.
type Event struct {
	Kind     EventKind              `json:"kind"`
	Snapshot *models.EditorSnapshot `json:"snapshot,omitempty"`
	Message  *models.Message        `json:"message,omitempty"`
}

// Session is one editor instance: buffer, compile orchestrator, chat and
// notifications. Work started on behalf of the session uses Context and
// stops when the session is closed.
type Session struct {
	ID         string
	SourcePath string
	CreatedAt  time.Time

	Store         *editor.Store
	Compiler      *compile.Orchestrator
	Chat          *chat.Workflow
	Notifications *notify.Center

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	nextSub   int
	listeners map[int]func(Event)
	unsub     func()
	closeOnce sync.Once
}

// Context is cancelled when the session closes.
func (s *Session) Context() context.Context {
	return s.ctx
}

// Watched reports whether the session mirrors a file on disk.
func (s *Session) Watched() bool {
	return s.SourcePath != ""
}

// Subscribe registers fn for buffer, artifact, compiling and message events.
func (s *Session) Subscribe(fn func(Event)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.listeners[id] = fn
	s.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

func (s *Session) publish(ev Event) {
	s.mu.Lock()
	fns := make([]func(Event), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

func (s *Session) onStoreEvent(ev editor.Event) {
	snap := ev.Snapshot
	s.publish(Event{Kind: EventKind(ev.Kind), Snapshot: &snap})
}

func (s *Session) onMessage(msg models.Message) {
	s.publish(Event{Kind: EventMessage, Message: &msg})
}

// Info summarizes the session.
func (s *Session) Info() models.SessionInfo {
	return models.SessionInfo{
		ID:           s.ID,
		Editor:       s.Store.Snapshot(),
		Waiting:      s.Chat.Waiting(),
		MessageCount: s.Chat.Len(),
		Attachment:   s.Chat.Attachment(),
		SourcePath:   s.SourcePath,
		CreatedAt:    s.CreatedAt,
	}
}

// Close cancels outstanding work and drops subscribers. It is safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		if s.unsub != nil {
			s.unsub()
		}
		s.mu.Lock()
		s.listeners = make(map[int]func(Event))
		s.mu.Unlock()
	})
}
