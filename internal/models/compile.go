package models

import "time"

// CompileStatus is the outcome of one compile request.
type CompileStatus string

const (
	CompileSucceeded CompileStatus = "succeeded"
	CompileFailed    CompileStatus = "failed"
	// CompileStale means the response arrived after a newer request was issued and was dropped.
	CompileStale CompileStatus = "stale"
)

// CompileRecord is one row of compile history.
type CompileRecord struct {
	ID            string        `json:"id" db:"id"`
	SessionID     string        `json:"session_id" db:"session_id"`
	Seq           uint64        `json:"seq" db:"seq"`
	ContentSHA256 string        `json:"content_sha256" db:"content_sha256"`
	Status        CompileStatus `json:"status" db:"status"`
	ArtifactBytes int           `json:"artifact_bytes" db:"artifact_bytes"`
	Error         string        `json:"error,omitempty" db:"error"`
	StartedAt     time.Time     `json:"started_at" db:"started_at"`
	FinishedAt    time.Time     `json:"finished_at" db:"finished_at"`
}

// Duration is the wall time between start and finish.
func (r *CompileRecord) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// ArtifactPreview is a text rendition of the compiled artifact.
type ArtifactPreview struct {
	Pages int    `json:"pages"`
	Bytes int    `json:"bytes"`
	Text  string `json:"text"`
}
