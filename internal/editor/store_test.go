package editor

import (
	"sync"
	"testing"
)

func TestStore_SetContentRoundTrip(t *testing.T) {
	inputs := []string{
		"",
		"\\documentclass{article}",
		"  leading and trailing  \n\n",
		"tabs\tand\r\nCRLF",
		"unicode: ∑ ≤ é",
	}
	s := NewStore("")
	for _, in := range inputs {
		s.SetContent(in)
		if got := s.Content(); got != in {
			t.Errorf("Content() = %q, want %q", got, in)
		}
	}
}

func TestStore_SetArtifactIgnoresEmpty(t *testing.T) {
	s := NewStore("")
	if s.Artifact() != nil {
		t.Fatal("new store should have no artifact")
	}
	if s.SetArtifact(nil) {
		t.Error("SetArtifact(nil) should report no change")
	}
	if s.Snapshot().HasArtifact {
		t.Error("nil payload must not create an artifact")
	}

	s.SetArtifact([]byte("%PDF-first"))
	if s.SetArtifact(nil) || s.SetArtifact([]byte{}) {
		t.Error("empty payload should be a no-op")
	}
	if got := string(s.Artifact()); got != "%PDF-first" {
		t.Errorf("artifact = %q, want previous artifact kept", got)
	}

	s.SetArtifact([]byte("%PDF-second"))
	if got := string(s.Artifact()); got != "%PDF-second" {
		t.Errorf("artifact = %q, want replacement", got)
	}
}

func TestStore_ArtifactIsCopied(t *testing.T) {
	s := NewStore("")
	data := []byte("abc")
	s.SetArtifact(data)
	data[0] = 'x'
	got := s.Artifact()
	if string(got) != "abc" {
		t.Errorf("store shares caller slice: %q", got)
	}
	got[1] = 'y'
	if string(s.Artifact()) != "abc" {
		t.Error("Artifact() should return a copy")
	}
}

func TestStore_SubscribeAndUnsubscribe(t *testing.T) {
	s := NewStore("")
	var mu sync.Mutex
	var kinds []EventKind
	unsub := s.Subscribe(func(ev Event) {
		mu.Lock()
		kinds = append(kinds, ev.Kind)
		mu.Unlock()
	})

	s.SetContent("a")
	s.SetCompiling(true)
	s.SetArtifact([]byte("pdf"))
	s.SetArtifact(nil)
	s.SetCompiling(false)

	want := []EventKind{ContentChanged, CompilingChanged, ArtifactChanged, CompilingChanged}
	mu.Lock()
	if len(kinds) != len(want) {
		t.Fatalf("events = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("event %d = %s, want %s", i, kinds[i], want[i])
		}
	}
	mu.Unlock()

	unsub()
	unsub()
	if s.Subscribers() != 0 {
		t.Errorf("Subscribers() = %d after unsubscribe", s.Subscribers())
	}
	s.SetContent("b")
	mu.Lock()
	defer mu.Unlock()
	if len(kinds) != len(want) {
		t.Error("listener called after unsubscribe")
	}
}

func TestStore_EventSnapshotReflectsMutation(t *testing.T) {
	s := NewStore("start")
	var last Event
	s.Subscribe(func(ev Event) { last = ev })
	s.SetCompiling(true)
	if !last.Snapshot.Compiling || last.Snapshot.Content != "start" {
		t.Errorf("snapshot = %+v", last.Snapshot)
	}
	s.SetArtifact([]byte("1234"))
	if !last.Snapshot.HasArtifact || last.Snapshot.ArtifactLen != 4 {
		t.Errorf("snapshot = %+v", last.Snapshot)
	}
}

func TestStore_ListenerMayReadStore(t *testing.T) {
	s := NewStore("")
	var seen string
	s.Subscribe(func(Event) { seen = s.Content() })
	s.SetContent("reentrant")
	if seen != "reentrant" {
		t.Errorf("listener read %q", seen)
	}
}

func TestStore_ConcurrentEventsFollowStateOrder(t *testing.T) {
	s := NewStore("")
	var (
		mu   sync.Mutex
		last Event
	)
	s.Subscribe(func(ev Event) {
		mu.Lock()
		last = ev
		mu.Unlock()
	})

	for round := 0; round < 50; round++ {
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(v bool) {
				defer wg.Done()
				s.SetCompiling(v)
			}(i%2 == 0)
		}
		wg.Wait()

		mu.Lock()
		got := last.Snapshot.Compiling
		mu.Unlock()
		if want := s.Compiling(); got != want {
			t.Fatalf("round %d: last event Compiling = %v, store = %v", round, got, want)
		}
	}
}
