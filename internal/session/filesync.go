package session

import (
	"os"

	"go.uber.org/zap"

	"github.com/hyperjump/vibetex/internal/fileid"
)

// FileSync loads watched .tex files into their sessions.
type FileSync struct {
	registry    *Registry
	autoCompile bool
	logger      *zap.Logger
}

// NewFileSync creates a FileSync. With autoCompile set, every change is compiled.
func NewFileSync(registry *Registry, autoCompile bool, logger *zap.Logger) *FileSync {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileSync{registry: registry, autoCompile: autoCompile, logger: logger}
}

// Changed reads path into the file's session, creating the session on first
// sight. Unchanged content is ignored.
func (f *FileSync) Changed(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		f.logger.Warn("failed to read watched file", zap.String("path", path), zap.Error(err))
		return
	}
	content := string(data)
	s, created := f.registry.Attach(fileid.SessionID(path), path, content)
	if !created {
		if s.Store.Content() == content {
			return
		}
		s.Store.SetContent(content)
	}
	f.logger.Debug("watched file loaded", zap.String("path", path), zap.String("session", s.ID))
	if f.autoCompile {
		out := s.Compiler.Compile(s.Context(), content)
		f.logger.Debug("watched file compiled",
			zap.String("session", s.ID), zap.String("status", string(out.Status)))
	}
}

// Removed keeps the session and its buffer; the file may come back.
func (f *FileSync) Removed(path string) {
	f.logger.Info("watched file removed", zap.String("path", path), zap.String("session", fileid.SessionID(path)))
}

// Forget closes the session of a file that is no longer watched.
func (f *FileSync) Forget(path string) {
	_ = f.registry.Delete(fileid.SessionID(path))
}
