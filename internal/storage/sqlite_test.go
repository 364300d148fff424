package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperjump/vibetex/internal/models"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "nested", "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func record(id, session string, seq uint64, status models.CompileStatus, at time.Time) *models.CompileRecord {
	return &models.CompileRecord{
		ID:            id,
		SessionID:     session,
		Seq:           seq,
		ContentSHA256: "abc",
		Status:        status,
		ArtifactBytes: 10,
		StartedAt:     at,
		FinishedAt:    at.Add(time.Second),
	}
}

func TestSQLiteStorage_CompileHistory(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	recs := []*models.CompileRecord{
		record("c1", "s1", 1, models.CompileSucceeded, base),
		record("c2", "s1", 2, models.CompileStale, base.Add(time.Minute)),
		record("c3", "s2", 1, models.CompileFailed, base.Add(2*time.Minute)),
	}
	recs[2].Error = "backend returned 500"
	for _, r := range recs {
		if err := store.RecordCompile(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	list, err := store.ListCompiles(ctx, "s1", 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 records, got %d", len(list))
	}
	if list[0].ID != "c2" || list[1].ID != "c1" {
		t.Errorf("expected newest first, got %s, %s", list[0].ID, list[1].ID)
	}
	if list[0].Seq != 2 || list[0].Status != models.CompileStale {
		t.Errorf("got %+v", list[0])
	}
	if got := list[1].Duration(); got != time.Second {
		t.Errorf("duration: got %v", got)
	}

	other, err := store.ListCompiles(ctx, "s2", 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(other) != 1 || other[0].Error != "backend returned 500" {
		t.Errorf("got %+v", other)
	}

	n, err := store.CountCompiles(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("expected 3 compiles, got %d", n)
	}

	byStatus, err := store.CountCompilesByStatus(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if byStatus[models.CompileSucceeded] != 1 || byStatus[models.CompileStale] != 1 || byStatus[models.CompileFailed] != 1 {
		t.Errorf("got %v", byStatus)
	}

	removed, err := store.DeleteCompiles(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if removed != 2 {
		t.Errorf("expected 2 removed, got %d", removed)
	}
	list, _ = store.ListCompiles(ctx, "s1", 0, 10)
	if len(list) != 0 {
		t.Errorf("expected empty history, got %d", len(list))
	}
}

func TestSQLiteStorage_ListPaging(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	base := time.Now()
	for i := 0; i < 5; i++ {
		id := string(rune('a' + i))
		if err := store.RecordCompile(ctx, record(id, "s", uint64(i+1), models.CompileSucceeded, base.Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatal(err)
		}
	}
	page, err := store.ListCompiles(ctx, "s", 1, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 2 || page[0].ID != "d" || page[1].ID != "c" {
		t.Errorf("unexpected page: %v, %v", page[0].ID, page[1].ID)
	}
}

func TestSQLiteStorage_RecordCompileValidation(t *testing.T) {
	store := newTestStorage(t)
	if err := store.RecordCompile(context.Background(), &models.CompileRecord{ID: "x"}); err == nil {
		t.Error("expected error for record without session")
	}
}

func TestSQLiteStorage_Sessions(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	now := time.Now()

	if err := store.OpenSession(ctx, "s1", "", now); err != nil {
		t.Fatal(err)
	}
	if err := store.OpenSession(ctx, "s2", "/tmp/paper.tex", now); err != nil {
		t.Fatal(err)
	}
	n, err := store.CountOpenSessions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("expected 2 open sessions, got %d", n)
	}

	if err := store.CloseSession(ctx, "s1", now); err != nil {
		t.Fatal(err)
	}
	if err := store.CloseSession(ctx, "s1", now); err == nil {
		t.Error("expected error closing a closed session")
	}
	n, _ = store.CountOpenSessions(ctx)
	if n != 1 {
		t.Errorf("expected 1 open session, got %d", n)
	}

	if err := store.OpenSession(ctx, "s1", "", now); err != nil {
		t.Fatal(err)
	}
	n, _ = store.CountOpenSessions(ctx)
	if n != 2 {
		t.Errorf("expected reopened session to count, got %d", n)
	}
}

func TestSQLiteStorage_SizeBytes(t *testing.T) {
	store := newTestStorage(t)
	if err := store.RecordCompile(context.Background(), record("c1", "s1", 1, models.CompileSucceeded, time.Now())); err != nil {
		t.Fatal(err)
	}
	size, err := store.SizeBytes()
	if err != nil {
		t.Fatal(err)
	}
	if size <= 0 {
		t.Errorf("expected positive size, got %d", size)
	}
}
