package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/vibetex/internal/completion"
	"github.com/hyperjump/vibetex/internal/config"
	"github.com/hyperjump/vibetex/internal/models"
	"github.com/hyperjump/vibetex/internal/session"
	"github.com/hyperjump/vibetex/internal/storage"
	"github.com/hyperjump/vibetex/internal/watcher"
)

const texDoc = "\\documentclass{article}\n\\begin{document}\nHello\n\\end{document}\n"

type fakeBackend struct {
	mu         sync.Mutex
	compiles   atomic.Int32
	compileErr error
	reply      *models.ChatReply
	prompts    []string
	attached   []*models.File
}

func (f *fakeBackend) Compile(ctx context.Context, source *models.File) ([]byte, error) {
	f.compiles.Add(1)
	if f.compileErr != nil {
		return nil, f.compileErr
	}
	return []byte("%PDF-1.4 " + string(source.Data)), nil
}

func (f *fakeBackend) Chat(ctx context.Context, prompt string, source, attached *models.File) (*models.ChatReply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	f.attached = append(f.attached, attached)
	if f.reply == nil {
		return nil, errors.New("backend down")
	}
	return f.reply, nil
}

type mockWatchService struct {
	files []string
}

func (m *mockWatchService) Files() []string {
	return append([]string(nil), m.files...)
}

func (m *mockWatchService) AddFile(path string, _ bool) error {
	if filepath.Ext(path) != ".tex" {
		return watcher.ErrNotTeX
	}
	for _, f := range m.files {
		if f == path {
			return nil
		}
	}
	m.files = append(m.files, path)
	return nil
}

func (m *mockWatchService) RemoveFile(path string) error {
	for i, f := range m.files {
		if f == path {
			m.files = append(m.files[:i], m.files[i+1:]...)
			return nil
		}
	}
	return nil
}

type testEnv struct {
	srv      *Server
	handler  http.Handler
	backend  *fakeBackend
	sessions *session.Registry
	store    *storage.SQLiteStorage
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewSQLiteStorage(filepath.Join(dir, "db.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	fb := &fakeBackend{}
	reg := session.NewRegistry(fb, session.WithRecorder(store), session.WithLog(store))
	t.Cleanup(reg.Close)

	table, err := completion.DefaultTable()
	if err != nil {
		t.Fatal(err)
	}
	idx, err := completion.NewIndex(table)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { idx.Close() })

	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	opts = append([]Option{WithSearchIndex(idx)}, opts...)
	srv := NewServer(reg, store, completion.NewProvider(table), cfg, zap.NewNop(), opts...)
	return &testEnv{srv: srv, handler: srv.Router(), backend: fb, sessions: reg, store: store}
}

func (e *testEnv) do(t *testing.T, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(method, path, body)
	if contentType != "" {
		r.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, r)
	return w
}

func (e *testEnv) newSession(t *testing.T, content string) string {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"content": content})
	w := e.do(t, http.MethodPost, "/api/v1/sessions", bytes.NewReader(body), "application/json")
	if w.Code != http.StatusCreated {
		t.Fatalf("create session: got %d %s", w.Code, w.Body.String())
	}
	var info models.SessionInfo
	if err := json.NewDecoder(w.Body).Decode(&info); err != nil {
		t.Fatal(err)
	}
	return info.ID
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func multipartBody(t *testing.T, fields map[string]string, fileName string, fileData []byte) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if fileName != "" {
		fw, err := mw.CreateFormFile("attached", fileName)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write(fileData); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func TestHandleHealth(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/health", nil, "")
	if w.Code != http.StatusOK {
		t.Errorf("status: got %d", w.Code)
	}
}

func TestSessionLifecycle(t *testing.T) {
	env := newTestEnv(t)
	id := env.newSession(t, texDoc)

	w := env.do(t, http.MethodGet, "/api/v1/sessions/"+id, nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("get: got %d", w.Code)
	}
	w = env.do(t, http.MethodGet, "/api/v1/sessions", nil, "")
	var list struct {
		Sessions []models.SessionInfo `json:"sessions"`
	}
	decode(t, w, &list)
	if len(list.Sessions) != 1 || list.Sessions[0].ID != id {
		t.Errorf("list: got %+v", list.Sessions)
	}

	w = env.do(t, http.MethodDelete, "/api/v1/sessions/"+id, nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("delete: got %d", w.Code)
	}
	w = env.do(t, http.MethodGet, "/api/v1/sessions/"+id, nil, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("get after delete: got %d", w.Code)
	}
}

func TestCreateSession_emptyBody(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodPost, "/api/v1/sessions", nil, "")
	if w.Code != http.StatusCreated {
		t.Errorf("status: got %d", w.Code)
	}
}

func TestUnknownSession(t *testing.T) {
	env := newTestEnv(t)
	for _, path := range []string{"/source", "/artifact", "/messages", "/notifications", "/completions"} {
		w := env.do(t, http.MethodGet, "/api/v1/sessions/nope"+path, nil, "")
		if w.Code != http.StatusNotFound {
			t.Errorf("%s: got %d", path, w.Code)
		}
	}
}

func TestSetContentAndSource(t *testing.T) {
	env := newTestEnv(t)
	id := env.newSession(t, "")

	w := env.do(t, http.MethodPut, "/api/v1/sessions/"+id+"/content", strings.NewReader(texDoc), "text/x-tex")
	if w.Code != http.StatusOK {
		t.Fatalf("raw put: got %d", w.Code)
	}
	var snap models.EditorSnapshot
	decode(t, w, &snap)
	if snap.Content != texDoc {
		t.Errorf("content: got %q", snap.Content)
	}

	w = env.do(t, http.MethodPut, "/api/v1/sessions/"+id+"/content", strings.NewReader(`{"content":"x"}`), "application/json")
	decode(t, w, &snap)
	if snap.Content != "x" {
		t.Errorf("json content: got %q", snap.Content)
	}

	w = env.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/source", nil, "")
	if got := w.Header().Get("Content-Type"); got != models.SourceContentType {
		t.Errorf("content type: got %q", got)
	}
	if got := w.Header().Get("Content-Disposition"); !strings.Contains(got, models.SourceFilename) {
		t.Errorf("disposition: got %q", got)
	}
	if w.Body.String() != "x" {
		t.Errorf("source body: got %q", w.Body.String())
	}
}

func TestCompileAndArtifact(t *testing.T) {
	env := newTestEnv(t)
	id := env.newSession(t, texDoc)

	w := env.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/artifact", nil, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("artifact before compile: got %d", w.Code)
	}

	w = env.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/compile", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("compile: got %d %s", w.Code, w.Body.String())
	}
	var resp struct {
		Status string                `json:"status"`
		Editor models.EditorSnapshot `json:"editor"`
	}
	decode(t, w, &resp)
	if resp.Status != string(models.CompileSucceeded) {
		t.Errorf("status: got %q", resp.Status)
	}
	if resp.Editor.Compiling {
		t.Error("compiling should be false after compile returns")
	}

	w = env.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/artifact", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("artifact: got %d", w.Code)
	}
	if w.Header().Get("Content-Type") != "application/pdf" {
		t.Errorf("artifact content type: got %q", w.Header().Get("Content-Type"))
	}
	if !strings.HasPrefix(w.Body.String(), "%PDF-1.4") {
		t.Errorf("artifact body: got %q", w.Body.String())
	}

	w = env.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/compiles", nil, "")
	var hist struct {
		Compiles []models.CompileRecord `json:"compiles"`
	}
	decode(t, w, &hist)
	if len(hist.Compiles) != 1 {
		t.Errorf("history: got %d records", len(hist.Compiles))
	}
}

func TestCompileFailure(t *testing.T) {
	env := newTestEnv(t)
	env.backend.compileErr = errors.New("latex error")
	id := env.newSession(t, texDoc)

	w := env.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/compile", nil, "")
	if w.Code != http.StatusBadGateway {
		t.Fatalf("compile: got %d", w.Code)
	}
	var resp struct {
		Error string `json:"error"`
	}
	decode(t, w, &resp)
	if resp.Error != "Failed to compile document" {
		t.Errorf("error: got %q", resp.Error)
	}

	w = env.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/notifications", nil, "")
	var notes struct {
		Notifications []models.Notification `json:"notifications"`
	}
	decode(t, w, &notes)
	if len(notes.Notifications) != 1 {
		t.Fatalf("notifications: got %d", len(notes.Notifications))
	}
	w = env.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/notifications", nil, "")
	decode(t, w, &notes)
	if len(notes.Notifications) != 0 {
		t.Errorf("notifications should drain, got %d", len(notes.Notifications))
	}
}

func TestSendMessageAndApply(t *testing.T) {
	env := newTestEnv(t)
	proposal := texDoc + "% added\n"
	env.backend.reply = &models.ChatReply{Message: "Here you go", Latex: proposal}
	id := env.newSession(t, texDoc)

	body, ct := multipartBody(t, map[string]string{"prompt": "Add a comment"}, "", nil)
	w := env.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/messages", body, ct)
	if w.Code != http.StatusCreated {
		t.Fatalf("send: got %d %s", w.Code, w.Body.String())
	}
	var view models.MessageView
	decode(t, w, &view)
	if view.Role != models.RoleAssistant || view.State != models.ProposalPending || !view.CanApply {
		t.Fatalf("view: got %+v", view)
	}

	w = env.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/messages/"+view.ID+"/diff", nil, "")
	var d struct {
		Identical bool `json:"identical"`
		Additions int  `json:"additions"`
	}
	decode(t, w, &d)
	if d.Identical || d.Additions != 1 {
		t.Errorf("diff: got %+v", d)
	}

	w = env.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/messages/"+view.ID+"/apply", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("apply: got %d %s", w.Code, w.Body.String())
	}
	if n := env.backend.compiles.Load(); n != 1 {
		t.Errorf("compiles after apply: got %d, want 1", n)
	}
	sess, _ := env.sessions.Get(id)
	if sess.Store.Content() != proposal {
		t.Errorf("buffer: got %q", sess.Store.Content())
	}

	w = env.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/messages/"+view.ID+"/apply", nil, "")
	var again struct {
		Applied bool `json:"applied"`
	}
	decode(t, w, &again)
	if again.Applied {
		t.Error("second apply should be a no-op")
	}
	if n := env.backend.compiles.Load(); n != 1 {
		t.Errorf("compiles after second apply: got %d, want 1", n)
	}

	w = env.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/messages", nil, "")
	var list struct {
		Messages []models.MessageView `json:"messages"`
		Waiting  bool                 `json:"waiting"`
	}
	decode(t, w, &list)
	if len(list.Messages) != 2 || list.Messages[1].State != models.ProposalApplied || list.Waiting {
		t.Errorf("messages: got %+v", list)
	}
}

func TestSendMessage_attachment(t *testing.T) {
	env := newTestEnv(t)
	env.backend.reply = &models.ChatReply{Message: "noted"}
	id := env.newSession(t, texDoc)

	body, ct := multipartBody(t, map[string]string{"prompt": "Use my notes"}, "notes.md", []byte("# Notes"))
	w := env.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/messages", body, ct)
	if w.Code != http.StatusCreated {
		t.Fatalf("send: got %d %s", w.Code, w.Body.String())
	}
	if len(env.backend.attached) != 1 || env.backend.attached[0] == nil || env.backend.attached[0].Name != "notes.md" {
		t.Fatalf("attached: got %+v", env.backend.attached)
	}

	body, ct = multipartBody(t, map[string]string{"prompt": "x"}, "image.png", []byte("png"))
	w = env.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/messages", body, ct)
	if w.Code != http.StatusBadRequest {
		t.Errorf("rejected attachment: got %d", w.Code)
	}
}

func TestSendMessage_emptyPrompt(t *testing.T) {
	env := newTestEnv(t)
	env.backend.reply = &models.ChatReply{Message: "unused"}
	id := env.newSession(t, texDoc)

	body, ct := multipartBody(t, map[string]string{"prompt": ""}, "", nil)
	w := env.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/messages", body, ct)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status: got %d", w.Code)
	}
	if len(env.backend.prompts) != 0 {
		t.Error("backend should not be called for an empty prompt")
	}
}

func TestSendMessage_urlencoded(t *testing.T) {
	env := newTestEnv(t)
	env.backend.reply = &models.ChatReply{Message: "**bold** reply"}
	id := env.newSession(t, texDoc)

	w := env.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/messages",
		strings.NewReader("prompt=hello"), "application/x-www-form-urlencoded")
	if w.Code != http.StatusCreated {
		t.Fatalf("send: got %d %s", w.Code, w.Body.String())
	}
	var view models.MessageView
	decode(t, w, &view)
	if view.State != models.ProposalNone || view.CanApply {
		t.Errorf("view: got %+v", view)
	}

	w = env.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/messages/"+view.ID+"?format=html", nil, "")
	decode(t, w, &view)
	if !strings.Contains(view.HTML, "<strong>bold</strong>") {
		t.Errorf("html: got %q", view.HTML)
	}

	w = env.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/messages/"+view.ID+"/apply", nil, "")
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("apply without proposal: got %d", w.Code)
	}
	w = env.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/messages/missing/apply", nil, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("apply unknown message: got %d", w.Code)
	}
}

func TestSendMessage_backendFailure(t *testing.T) {
	env := newTestEnv(t)
	id := env.newSession(t, texDoc)

	body, ct := multipartBody(t, map[string]string{"prompt": "hi"}, "", nil)
	w := env.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/messages", body, ct)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status: got %d", w.Code)
	}
	w = env.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/messages", nil, "")
	var list struct {
		Messages []models.MessageView `json:"messages"`
		Waiting  bool                 `json:"waiting"`
	}
	decode(t, w, &list)
	if len(list.Messages) != 1 || list.Messages[0].Role != models.RoleUser {
		t.Errorf("user message should remain: %+v", list.Messages)
	}
	if list.Waiting {
		t.Error("waiting should clear after a failed send")
	}
}

func TestDiffFormats(t *testing.T) {
	env := newTestEnv(t)
	env.backend.reply = &models.ChatReply{Message: "ok", Latex: "a\nc\n"}
	id := env.newSession(t, "a\nb\n")

	body, ct := multipartBody(t, map[string]string{"prompt": "edit"}, "", nil)
	w := env.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/messages", body, ct)
	var view models.MessageView
	decode(t, w, &view)

	w = env.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/messages/"+view.ID+"/diff?format=unified", nil, "")
	if !strings.Contains(w.Body.String(), "-b") || !strings.Contains(w.Body.String(), "+c") {
		t.Errorf("unified: got %q", w.Body.String())
	}
	w = env.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/messages/"+view.ID+"/diff?format=side-by-side&width=20", nil, "")
	if w.Code != http.StatusOK || w.Body.Len() == 0 {
		t.Errorf("side-by-side: got %d %q", w.Code, w.Body.String())
	}
}

func TestSendMessage_EmptyPromptKeepsNoAttachment(t *testing.T) {
	env := newTestEnv(t)
	id := env.newSession(t, texDoc)

	body, ct := multipartBody(t, map[string]string{"prompt": ""}, "notes.md", []byte("# notes"))
	w := env.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/messages", body, ct)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("send: got %d %s", w.Code, w.Body.String())
	}
	sess, _ := env.sessions.Get(id)
	if att := sess.Chat.Attachment(); att != nil {
		t.Errorf("attachment kept after rejected send: %+v", att)
	}
	if len(env.backend.prompts) != 0 {
		t.Errorf("backend called with %v", env.backend.prompts)
	}
}

func TestAttachmentEndpoints(t *testing.T) {
	env := newTestEnv(t)
	id := env.newSession(t, texDoc)

	body, ct := multipartBody(t, nil, "talk.mp3", []byte("ID3"))
	w := env.do(t, http.MethodPut, "/api/v1/sessions/"+id+"/attachment", body, ct)
	if w.Code != http.StatusOK {
		t.Fatalf("put: got %d %s", w.Code, w.Body.String())
	}
	var att models.Attachment
	decode(t, w, &att)
	if att.Kind != models.AttachmentAudio {
		t.Errorf("kind: got %q", att.Kind)
	}

	w = env.do(t, http.MethodDelete, "/api/v1/sessions/"+id+"/attachment", nil, "")
	if w.Code != http.StatusOK {
		t.Errorf("delete: got %d", w.Code)
	}
	sess, _ := env.sessions.Get(id)
	if sess.Chat.Attachment() != nil {
		t.Error("attachment should be cleared")
	}

	body, ct = multipartBody(t, nil, "", nil)
	w = env.do(t, http.MethodPut, "/api/v1/sessions/"+id+"/attachment", body, ct)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing file: got %d", w.Code)
	}
}

func TestCompletions(t *testing.T) {
	env := newTestEnv(t)
	id := env.newSession(t, "Hello world")

	w := env.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/completions", nil, "")
	var list models.CompletionList
	decode(t, w, &list)
	if list.Items == nil || len(list.Items) != 0 {
		t.Errorf("no trigger: got %+v", list)
	}

	sess, _ := env.sessions.Get(id)
	sess.Store.SetContent("Hello \\")
	table, _ := completion.DefaultTable()
	w = env.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/completions?filter=false", nil, "")
	decode(t, w, &list)
	if len(list.Items) != table.Len() {
		t.Errorf("full table: got %d, want %d", len(list.Items), table.Len())
	}

	sess.Store.SetContent("\\sec")
	w = env.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/completions", nil, "")
	decode(t, w, &list)
	if len(list.Items) == 0 || list.Items[0].Label != "\\section" {
		t.Errorf("prefix: got %+v", list.Items)
	}

	w = env.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/completions?pos=abc", nil, "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad pos: got %d", w.Code)
	}
}

func TestSearchCompletions(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/api/v1/completions/search?q=subsection", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var out struct {
		Results []completion.SearchHit `json:"results"`
	}
	decode(t, w, &out)
	if len(out.Results) == 0 {
		t.Error("expected search results")
	}
	w = env.do(t, http.MethodGet, "/api/v1/completions/search", nil, "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing q: got %d", w.Code)
	}
}

func TestStatusAndPrompts(t *testing.T) {
	env := newTestEnv(t)
	env.newSession(t, texDoc)

	w := env.do(t, http.MethodGet, "/api/v1/status", nil, "")
	var status map[string]interface{}
	decode(t, w, &status)
	if status["sessions"].(float64) != 1 {
		t.Errorf("sessions: got %v", status["sessions"])
	}
	if _, ok := status["config"]; !ok {
		t.Error("config summary missing")
	}

	w = env.do(t, http.MethodGet, "/api/v1/prompts", nil, "")
	var prompts struct {
		Prompts []string `json:"prompts"`
	}
	decode(t, w, &prompts)
	if len(prompts.Prompts) != 3 {
		t.Errorf("prompts: got %v", prompts.Prompts)
	}
}

func TestWatchFiles(t *testing.T) {
	dir := t.TempDir()
	mock := &mockWatchService{files: []string{filepath.Join(dir, "a.tex")}}
	var unwatched []string
	env := newTestEnv(t, WithWatch(mock, func(p string) { unwatched = append(unwatched, p) }))

	w := env.do(t, http.MethodGet, "/api/v1/watch/files", nil, "")
	var out struct {
		Files []string `json:"files"`
	}
	decode(t, w, &out)
	if len(out.Files) != 1 {
		t.Errorf("list: got %v", out.Files)
	}

	added := filepath.Join(dir, "b.tex")
	w = env.do(t, http.MethodPost, "/api/v1/watch/files", strings.NewReader(`{"path":"`+added+`"}`), "application/json")
	if w.Code != http.StatusCreated {
		t.Fatalf("add: got %d %s", w.Code, w.Body.String())
	}
	if len(mock.files) != 2 {
		t.Errorf("files after add: got %v", mock.files)
	}

	w = env.do(t, http.MethodPost, "/api/v1/watch/files", strings.NewReader(`{"path":"`+filepath.Join(dir, "notes.txt")+`"}`), "application/json")
	if w.Code != http.StatusBadRequest {
		t.Errorf("non-tex add: got %d", w.Code)
	}
	w = env.do(t, http.MethodPost, "/api/v1/watch/files", strings.NewReader(`{"path":"`+dir+`"}`), "application/json")
	if w.Code != http.StatusBadRequest {
		t.Errorf("directory add: got %d", w.Code)
	}

	w = env.do(t, http.MethodDelete, "/api/v1/watch/files?path="+added, nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("remove: got %d", w.Code)
	}
	if len(unwatched) != 1 || unwatched[0] != added {
		t.Errorf("onUnwatch: got %v", unwatched)
	}
}

func TestWatchFiles_disabled(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/api/v1/watch/files", nil, "")
	if w.Code != http.StatusNotImplemented {
		t.Errorf("status: got %d", w.Code)
	}
}

func TestWatchFiles_persistsConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	mock := &mockWatchService{}
	env := newTestEnv(t, WithWatch(mock, nil), WithConfigPath(cfgPath))

	added := filepath.Join(dir, "paper.tex")
	w := env.do(t, http.MethodPost, "/api/v1/watch/files", strings.NewReader(`{"path":"`+added+`","sync":false}`), "application/json")
	if w.Code != http.StatusCreated {
		t.Fatalf("add: got %d", w.Code)
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Watch.Files) != 1 || cfg.Watch.Files[0] != added {
		t.Errorf("persisted files: got %v", cfg.Watch.Files)
	}
}
