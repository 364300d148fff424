package models

import (
	"path/filepath"
	"strings"
	"time"
)

// Role identifies who authored a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ProposalState is the review state of an assistant message.
type ProposalState string

const (
	// ProposalNone means the reply carried no proposed document. Terminal.
	ProposalNone ProposalState = "none"
	// ProposalPending means a proposed document is available for review.
	ProposalPending ProposalState = "pending"
	// ProposalApplied means the proposal has been written into the buffer. Terminal.
	ProposalApplied ProposalState = "applied"
)

// Message is one entry of the chat transcript. Messages are never mutated
// after they are appended; review state is tracked separately.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Proposal  *string   `json:"proposal,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// HasProposal reports whether the message carries a non-empty proposed document.
func (m *Message) HasProposal() bool {
	return m.Role == RoleAssistant && m.Proposal != nil && *m.Proposal != ""
}

// MessageView is a message plus its review state relative to the current buffer.
type MessageView struct {
	Message
	State    ProposalState `json:"state"`
	CanApply bool          `json:"can_apply"`
	HTML     string        `json:"html,omitempty"`
}

// ChatReply is the decoded body of the chat endpoint.
type ChatReply struct {
	Message string  `json:"message"`
	Latex   string  `json:"latex"`
	Error   *string `json:"error"`
}

// Failed reports whether the body carries a non-empty error field.
func (r *ChatReply) Failed() bool {
	return r.Error != nil && *r.Error != ""
}

// AttachmentKind is a coarse classification used for display.
type AttachmentKind string

const (
	AttachmentFile  AttachmentKind = "file"
	AttachmentAudio AttachmentKind = "audio"
)

// Attachment describes the file pending for the next outgoing chat message.
type Attachment struct {
	Name        string         `json:"name"`
	ContentType string         `json:"content_type"`
	Size        int            `json:"size"`
	Kind        AttachmentKind `json:"kind"`
}

// DescribeAttachment builds display metadata for f.
func DescribeAttachment(f *File) *Attachment {
	if f == nil {
		return nil
	}
	kind := AttachmentFile
	if strings.EqualFold(filepath.Ext(f.Name), ".mp3") {
		kind = AttachmentAudio
	}
	return &Attachment{
		Name:        f.Name,
		ContentType: f.ContentType,
		Size:        f.Size(),
		Kind:        kind,
	}
}
