// Package storage defines the persistence interface for compile history.
package storage

import (
	"context"
	"time"

	"github.com/hyperjump/vibetex/internal/models"
)

// Storage persists compile history and the session log.
type Storage interface {
	// Compile history
	RecordCompile(ctx context.Context, rec *models.CompileRecord) error
	ListCompiles(ctx context.Context, sessionID string, offset, limit int) ([]*models.CompileRecord, error)
	CountCompiles(ctx context.Context) (int64, error)
	CountCompilesByStatus(ctx context.Context) (map[models.CompileStatus]int64, error)
	DeleteCompiles(ctx context.Context, sessionID string) (int64, error)

	// Session log
	OpenSession(ctx context.Context, id, sourcePath string, at time.Time) error
	CloseSession(ctx context.Context, id string, at time.Time) error
	CountOpenSessions(ctx context.Context) (int64, error)

	SizeBytes() (int64, error)
	Close() error
}
