// Package editor holds the authoritative document state for one editing session:
// the buffer text, the last compiled artifact and the compile-in-progress flag.
//
// The store is the only owner of that state. It is mutated through SetContent,
// SetArtifact and SetCompiling, and every mutation is published to subscribers
// after the lock is released.
package editor

import (
	"sync"

	"github.com/hyperjump/vibetex/internal/models"
)

// EventKind names the field that changed.
type EventKind string

const (
	ContentChanged   EventKind = "content"
	ArtifactChanged  EventKind = "artifact"
	CompilingChanged EventKind = "compiling"
)

// Event is delivered to subscribers after a mutation.
type Event struct {
	Kind     EventKind
	Snapshot models.EditorSnapshot
}

// Listener receives store events. It runs on the mutating goroutine and must not
// block or mutate the store.
type Listener func(Event)

// Store is the document state store. The zero value is not usable; call NewStore.
type Store struct {
	// pubMu orders a mutation together with its delivery.
	pubMu sync.Mutex

	mu        sync.RWMutex
	content   string
	artifact  []byte
	compiling bool

	subMu     sync.Mutex
	nextSubID int
	listeners map[int]Listener
}

// NewStore returns a store seeded with content, no artifact and not compiling.
func NewStore(content string) *Store {
	return &Store{
		content:   content,
		listeners: make(map[int]Listener),
	}
}

// Content returns the buffer exactly as last set.
func (s *Store) Content() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.content
}

// Artifact returns a copy of the compiled artifact, or nil when none has been stored.
func (s *Store) Artifact() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.artifact == nil {
		return nil
	}
	return append([]byte(nil), s.artifact...)
}

// Compiling reports the busy flag.
func (s *Store) Compiling() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.compiling
}

// Snapshot returns a consistent copy of all state.
func (s *Store) Snapshot() models.EditorSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() models.EditorSnapshot {
	return models.EditorSnapshot{
		Content:     s.content,
		HasArtifact: s.artifact != nil,
		ArtifactLen: len(s.artifact),
		Compiling:   s.compiling,
	}
}

// SetContent replaces the buffer unconditionally. No validation or trimming.
func (s *Store) SetContent(text string) {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()
	s.mu.Lock()
	s.content = text
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.publish(Event{Kind: ContentChanged, Snapshot: snap})
}

// SetArtifact replaces the stored artifact. A nil or empty payload is ignored and
// leaves the previous artifact in place, so a failed compile never blanks the preview.
// It reports whether the artifact was replaced.
func (s *Store) SetArtifact(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	s.pubMu.Lock()
	defer s.pubMu.Unlock()
	s.mu.Lock()
	s.artifact = append([]byte(nil), data...)
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.publish(Event{Kind: ArtifactChanged, Snapshot: snap})
	return true
}

// SetCompiling sets the busy flag. Setting the current value again still notifies.
func (s *Store) SetCompiling(compiling bool) {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()
	s.mu.Lock()
	s.compiling = compiling
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.publish(Event{Kind: CompilingChanged, Snapshot: snap})
}

// Subscribe registers l and returns a function that removes it.
func (s *Store) Subscribe(l Listener) (unsubscribe func()) {
	s.subMu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.listeners[id] = l
	s.subMu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.listeners, id)
			s.subMu.Unlock()
		})
	}
}

// Subscribers returns the number of registered listeners.
func (s *Store) Subscribers() int {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	return len(s.listeners)
}

func (s *Store) publish(ev Event) {
	s.subMu.Lock()
	ls := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		ls = append(ls, l)
	}
	s.subMu.Unlock()
	for _, l := range ls {
		l(ev)
	}
}
