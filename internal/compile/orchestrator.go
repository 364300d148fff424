// Package compile drives one compile cycle: mark busy, send the buffer to the
// compile service, store the artifact on success, and always clear busy.
package compile

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync/atomic"
	"time"

	"github.com/hyperjump/vibetex/internal/editor"
	"github.com/hyperjump/vibetex/internal/models"
	"github.com/hyperjump/vibetex/internal/notify"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// FailureMessage is the notification shown when a compile fails.
const FailureMessage = "Failed to compile document"

// ErrEmptyArtifact is reported when the compile service answers with no bytes.
var ErrEmptyArtifact = errors.New("compile: empty artifact")

// Compiler is the external compile service.
type Compiler interface {
	Compile(ctx context.Context, source *models.File) ([]byte, error)
}

// Recorder persists compile history. Optional.
type Recorder interface {
	RecordCompile(ctx context.Context, rec *models.CompileRecord) error
}

// Outcome describes how one Compile call settled.
type Outcome struct {
	Seq           uint64               `json:"seq"`
	Status        models.CompileStatus `json:"status"`
	ArtifactBytes int                  `json:"artifact_bytes"`
	Err           error                `json:"-"`
}

// OK reports whether the artifact was stored.
func (o Outcome) OK() bool {
	return o.Status == models.CompileSucceeded
}

// Orchestrator coordinates compile requests for one session's store.
type Orchestrator struct {
	sessionID string
	store     *editor.Store
	compiler  Compiler
	seq       *Sequencer
	notifier  notify.Notifier
	recorder  Recorder
	logger    *zap.Logger
	now       func() time.Time
	stale     atomic.Uint64
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithPolicy sets the sequencing policy (default PolicyLatest).
func WithPolicy(p Policy) Option {
	return func(o *Orchestrator) { o.seq = NewSequencer(p) }
}

// WithNotifier sets where failures are reported.
func WithNotifier(n notify.Notifier) Option {
	return func(o *Orchestrator) { o.notifier = n }
}

// WithRecorder enables compile history.
func WithRecorder(r Recorder, sessionID string) Option {
	return func(o *Orchestrator) {
		o.recorder = r
		o.sessionID = sessionID
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// NewOrchestrator creates an orchestrator writing into store.
func NewOrchestrator(store *editor.Store, compiler Compiler, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:    store,
		compiler: compiler,
		seq:      NewSequencer(PolicyLatest),
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Compile runs one compile of buffer. It never returns an error: failures are
// reported to the notifier and described in the Outcome, and the previous
// artifact is left untouched. The Compiling flag is set on entry and cleared
// exactly once on exit. Concurrent calls are not coalesced.
func (o *Orchestrator) Compile(ctx context.Context, buffer string) Outcome {
	seq := o.seq.Next()
	started := o.now()
	o.store.SetCompiling(true)
	defer o.store.SetCompiling(false)

	data, err := o.compiler.Compile(ctx, models.SourceFile(buffer))
	out := Outcome{Seq: seq}
	switch {
	case err != nil:
		o.fail(&out, err)
	case !o.seq.Current(seq):
		out.Status = models.CompileStale
		out.ArtifactBytes = len(data)
		o.stale.Add(1)
		o.logger.Debug("stale compile response dropped",
			zap.Uint64("seq", seq), zap.Uint64("latest", o.seq.Last()))
	default:
		out.ArtifactBytes = len(data)
		if o.store.SetArtifact(data) {
			out.Status = models.CompileSucceeded
		} else {
			o.fail(&out, ErrEmptyArtifact)
		}
	}
	o.record(ctx, buffer, started, out)
	return out
}

func (o *Orchestrator) fail(out *Outcome, err error) {
	out.Status = models.CompileFailed
	out.Err = err
	o.logger.Warn("compile failed", zap.Uint64("seq", out.Seq), zap.Error(err))
	if o.notifier != nil {
		o.notifier.Notify(models.LevelError, FailureMessage)
	}
}

// CompileCurrent compiles whatever the buffer holds now.
func (o *Orchestrator) CompileCurrent(ctx context.Context) Outcome {
	return o.Compile(ctx, o.store.Content())
}

// Busy reports the store's Compiling flag.
func (o *Orchestrator) Busy() bool {
	return o.store.Compiling()
}

// StaleDropped returns how many responses were discarded by sequencing.
func (o *Orchestrator) StaleDropped() uint64 {
	return o.stale.Load()
}

// Policy returns the active sequencing policy.
func (o *Orchestrator) Policy() Policy {
	return o.seq.Policy()
}

func (o *Orchestrator) record(ctx context.Context, buffer string, started time.Time, out Outcome) {
	if o.recorder == nil {
		return
	}
	sum := sha256.Sum256([]byte(buffer))
	rec := &models.CompileRecord{
		ID:            ulid.Make().String(),
		SessionID:     o.sessionID,
		Seq:           out.Seq,
		ContentSHA256: hex.EncodeToString(sum[:]),
		Status:        out.Status,
		ArtifactBytes: out.ArtifactBytes,
		StartedAt:     started,
		FinishedAt:    o.now(),
	}
	if out.Err != nil {
		rec.Error = out.Err.Error()
	}
	// Recorded even when the caller's context is already cancelled.
	if err := o.recorder.RecordCompile(context.WithoutCancel(ctx), rec); err != nil {
		o.logger.Warn("record compile failed", zap.String("id", rec.ID), zap.Error(err))
	}
}
