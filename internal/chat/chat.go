// Package chat runs the assistant conversation for one editor session and
// applies the full-document rewrites the assistant proposes.
package chat

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/vibetex/internal/compile"
	"github.com/hyperjump/vibetex/internal/diff"
	"github.com/hyperjump/vibetex/internal/editor"
	"github.com/hyperjump/vibetex/internal/models"
	"github.com/hyperjump/vibetex/internal/notify"
	"go.uber.org/zap"
)

// FailureMessage is the notification published when a send fails.
const FailureMessage = "Failed to send message"

var (
	ErrEmptyPrompt        = errors.New("chat: empty prompt")
	ErrMessageNotFound    = errors.New("chat: message not found")
	ErrNoProposal         = errors.New("chat: message has no proposal")
	ErrApplyInProgress    = errors.New("chat: another apply is in progress")
	ErrSuperseded         = errors.New("chat: reply superseded by a newer message")
	ErrAttachmentRejected = errors.New("chat: attachment type not accepted")
)

// DefaultAttachmentExtensions are the file types accepted as attachments.
var DefaultAttachmentExtensions = []string{".md", ".txt", ".mp3"}

// StarterPrompts are offered while the conversation is empty.
var StarterPrompts = []string{
	"Generate a Jake's Resume template",
	"Convert these equations into LaTeX format",
	"Explain and typeset the quadratic formula in LaTeX",
}

// Assistant is the external chat service.
type Assistant interface {
	Chat(ctx context.Context, prompt string, source, attached *models.File) (*models.ChatReply, error)
}

// Recompiler compiles a buffer after a proposal is applied.
type Recompiler interface {
	Compile(ctx context.Context, buffer string) compile.Outcome
}

// ApplyResult describes one Apply call.
type ApplyResult struct {
	Applied bool            `json:"applied"`
	Compile compile.Outcome `json:"compile"`
}

// Workflow owns the transcript, the pending attachment and proposal review
// for one session.
type Workflow struct {
	store      *editor.Store
	assistant  Assistant
	recompiler Recompiler
	notifier   notify.Notifier
	seq        *compile.Sequencer
	logger     *zap.Logger
	extensions []string
	onMessage  func(models.Message)
	now        func() time.Time

	mu         sync.Mutex
	messages   []models.Message
	index      map[string]int
	applied    map[string]bool
	attachment *models.File
	inFlight   int
	applying   bool
}

// Option configures a Workflow.
type Option func(*Workflow)

// WithPolicy sets how overlapping sends are resolved.
func WithPolicy(p compile.Policy) Option {
	return func(w *Workflow) {
		w.seq = compile.NewSequencer(p)
	}
}

// WithNotifier sets where send failures are reported.
func WithNotifier(n notify.Notifier) Option {
	return func(w *Workflow) {
		w.notifier = n
	}
}

// WithLogger sets the workflow logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *Workflow) {
		w.logger = l
	}
}

// WithAttachmentExtensions restricts attachments to the given extensions.
// An empty list accepts any file.
func WithAttachmentExtensions(exts ...string) Option {
	return func(w *Workflow) {
		w.extensions = exts
	}
}

// WithMessageHook registers fn to run after every appended message.
func WithMessageHook(fn func(models.Message)) Option {
	return func(w *Workflow) {
		w.onMessage = fn
	}
}

// NewWorkflow creates a workflow over store.
func NewWorkflow(store *editor.Store, assistant Assistant, recompiler Recompiler, opts ...Option) *Workflow {
	w := &Workflow{
		store:      store,
		assistant:  assistant,
		recompiler: recompiler,
		seq:        compile.NewSequencer(compile.PolicyLatest),
		logger:     zap.NewNop(),
		extensions: DefaultAttachmentExtensions,
		now:        time.Now,
		index:      make(map[string]int),
		applied:    make(map[string]bool),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// SetAttachment stores f for the next outgoing message, replacing any earlier one.
func (w *Workflow) SetAttachment(f *models.File) error {
	if f == nil {
		w.ClearAttachment()
		return nil
	}
	if !w.acceptsFile(f.Name) {
		return ErrAttachmentRejected
	}
	w.mu.Lock()
	w.attachment = f
	w.mu.Unlock()
	return nil
}

// ClearAttachment drops the pending attachment.
func (w *Workflow) ClearAttachment() {
	w.mu.Lock()
	w.attachment = nil
	w.mu.Unlock()
}

// Attachment describes the pending attachment, or nil.
func (w *Workflow) Attachment() *models.Attachment {
	w.mu.Lock()
	defer w.mu.Unlock()
	return models.DescribeAttachment(w.attachment)
}

func (w *Workflow) acceptsFile(name string) bool {
	if len(w.extensions) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range w.extensions {
		if ext == strings.ToLower(allowed) {
			return true
		}
	}
	return false
}

// SendMessage posts text with the current buffer and pending attachment.
//
// An empty text is rejected before anything else happens. Otherwise the user
// message is appended and the attachment cleared before the assistant is
// called. On failure a notification is published and the user message stays
// in place unanswered. Under PolicyLatest a reply to anything but the most
// recent send is dropped with ErrSuperseded.
func (w *Workflow) SendMessage(ctx context.Context, text string) (*models.Message, error) {
	if text == "" {
		return nil, ErrEmptyPrompt
	}

	w.mu.Lock()
	user := w.appendLocked(models.RoleUser, text, nil)
	attached := w.attachment
	w.attachment = nil
	w.inFlight++
	seq := w.seq.Next()
	w.mu.Unlock()
	w.emit(user)

	reply, err := w.assistant.Chat(ctx, text, models.SourceFile(w.store.Content()), attached)
	if err == nil && reply.Failed() {
		err = errors.New(*reply.Error)
	}

	w.mu.Lock()
	w.inFlight--
	if err != nil {
		w.mu.Unlock()
		w.logger.Warn("chat send failed", zap.Uint64("seq", seq), zap.Error(err))
		if w.notifier != nil {
			w.notifier.Notify(models.LevelError, FailureMessage)
		}
		return nil, err
	}
	if !w.seq.Current(seq) {
		w.mu.Unlock()
		w.logger.Debug("stale chat reply dropped",
			zap.Uint64("seq", seq), zap.Uint64("latest", w.seq.Last()))
		return nil, ErrSuperseded
	}
	var proposal *string
	if reply.Latex != "" {
		latex := reply.Latex
		proposal = &latex
	}
	msg := w.appendLocked(models.RoleAssistant, reply.Message, proposal)
	w.mu.Unlock()
	w.emit(msg)
	return &msg, nil
}

func (w *Workflow) appendLocked(role models.Role, content string, proposal *string) models.Message {
	msg := models.Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Proposal:  proposal,
		CreatedAt: w.now(),
	}
	w.index[msg.ID] = len(w.messages)
	w.messages = append(w.messages, msg)
	return msg
}

func (w *Workflow) emit(msg models.Message) {
	if w.onMessage != nil {
		w.onMessage(msg)
	}
}

// Waiting reports whether a send is outstanding.
func (w *Workflow) Waiting() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.inFlight > 0
}

// Len returns the number of messages.
func (w *Workflow) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.messages)
}

// Messages returns the transcript in order.
func (w *Workflow) Messages() []models.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]models.Message, len(w.messages))
	copy(out, w.messages)
	return out
}

// Views returns the transcript with each message's review state against the
// current buffer.
func (w *Workflow) Views() []models.MessageView {
	content := w.store.Content()
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]models.MessageView, len(w.messages))
	for i, msg := range w.messages {
		out[i] = w.viewLocked(msg, content)
	}
	return out
}

// View returns one message with its review state.
func (w *Workflow) View(id string) (models.MessageView, error) {
	content := w.store.Content()
	w.mu.Lock()
	defer w.mu.Unlock()
	msg, ok := w.lookupLocked(id)
	if !ok {
		return models.MessageView{}, ErrMessageNotFound
	}
	return w.viewLocked(msg, content), nil
}

func (w *Workflow) viewLocked(msg models.Message, content string) models.MessageView {
	v := models.MessageView{Message: msg, State: models.ProposalNone}
	if !msg.HasProposal() {
		return v
	}
	v.State = models.ProposalPending
	if w.applied[msg.ID] {
		v.State = models.ProposalApplied
	}
	v.CanApply = !w.applying && *msg.Proposal != content
	return v
}

func (w *Workflow) lookupLocked(id string) (models.Message, bool) {
	i, ok := w.index[id]
	if !ok {
		return models.Message{}, false
	}
	return w.messages[i], true
}

func (w *Workflow) proposal(id string) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	msg, ok := w.lookupLocked(id)
	if !ok {
		return "", ErrMessageNotFound
	}
	if !msg.HasProposal() {
		return "", ErrNoProposal
	}
	return *msg.Proposal, nil
}

// Preview compares the current buffer with the message's proposal. It does
// not change any state.
func (w *Workflow) Preview(id string) (*diff.Preview, error) {
	proposal, err := w.proposal(id)
	if err != nil {
		return nil, err
	}
	return diff.Compute(w.store.Content(), proposal), nil
}

// Apply writes the message's proposal into the buffer and compiles it once.
// It is a no-op when the buffer already equals the proposal and fails with
// ErrApplyInProgress while another apply runs.
func (w *Workflow) Apply(ctx context.Context, id string) (*ApplyResult, error) {
	proposal, err := w.proposal(id)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	if w.applying {
		w.mu.Unlock()
		return nil, ErrApplyInProgress
	}
	if w.store.Content() == proposal {
		w.mu.Unlock()
		return &ApplyResult{}, nil
	}
	w.applying = true
	w.applied[id] = true
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.applying = false
		w.mu.Unlock()
	}()

	w.store.SetContent(proposal)
	w.logger.Debug("proposal applied", zap.String("message", id))
	out := w.recompiler.Compile(ctx, proposal)
	return &ApplyResult{Applied: true, Compile: out}, nil
}
