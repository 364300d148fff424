package models

// CompletionKind categorizes a completion entry.
type CompletionKind string

const (
	KindFunction  CompletionKind = "function"
	KindSnippet   CompletionKind = "snippet"
	KindReference CompletionKind = "reference"
)

// Completion is one autocomplete entry.
type Completion struct {
	Label         string         `json:"label" yaml:"label"`
	InsertText    string         `json:"insert_text" yaml:"insert"`
	Kind          CompletionKind `json:"kind" yaml:"kind"`
	Documentation string         `json:"documentation,omitempty" yaml:"doc"`
	// Snippet marks InsertText as containing ${n:placeholder} fields.
	Snippet bool `json:"snippet,omitempty" yaml:"snippet"`
}

// Range is a half-open byte range into the buffer.
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// CompletionList is the result of a lookup at one cursor position.
type CompletionList struct {
	Trigger string       `json:"trigger,omitempty"`
	Word    string       `json:"word"`
	Range   Range        `json:"range"`
	Items   []Completion `json:"items"`
}
