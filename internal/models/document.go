// Package models defines core data structures shared by the editor, chat and API layers.
package models

import "time"

const (
	// SourceFilename is the name the buffer is packaged under for the compile and chat endpoints.
	SourceFilename = "main.tex"
	// SourceContentType is the MIME type of the packaged buffer.
	SourceContentType = "text/x-tex"
)

// File is an in-memory file handed to the backend as a multipart part.
type File struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"-"`
}

// Size returns the payload length in bytes.
func (f *File) Size() int {
	if f == nil {
		return 0
	}
	return len(f.Data)
}

// SourceFile packages buffer content as main.tex.
func SourceFile(content string) *File {
	return &File{
		Name:        SourceFilename,
		ContentType: SourceContentType,
		Data:        []byte(content),
	}
}

// EditorSnapshot is a point-in-time copy of the document state.
type EditorSnapshot struct {
	Content     string `json:"content"`
	HasArtifact bool   `json:"has_artifact"`
	ArtifactLen int    `json:"artifact_bytes"`
	Compiling   bool   `json:"compiling"`
}

// SessionInfo describes one editing session for the API.
type SessionInfo struct {
	ID           string         `json:"id"`
	Editor       EditorSnapshot `json:"editor"`
	Waiting      bool           `json:"waiting"`
	MessageCount int            `json:"message_count"`
	Attachment   *Attachment    `json:"attachment,omitempty"`
	SourcePath   string         `json:"source_path,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}
