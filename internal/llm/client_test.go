package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"pkt.systems/pslog"

	"github.com/keyvez/termania/internal/action"
)

func testLogger() pslog.Logger {
	return pslog.NewWithOptions(io.Discard, pslog.Options{
		Mode:     pslog.ModeStructured,
		NoColor:  true,
		MinLevel: pslog.ErrorLevel,
	})
}

// fakeBackend returns canned text or an error and records what it was asked.
type fakeBackend struct {
	reply string
	err   error

	calls  int
	system string
	user   string
}

func (f *fakeBackend) Complete(ctx context.Context, system, user string) (string, error) {
	f.calls++
	f.system = system
	f.user = user
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeBackend) Provider() string { return "fake" }
func (f *fakeBackend) Model() string    { return "fake-model" }

func newFakeClient(fb *fakeBackend) *Client {
	return &Client{backend: fb, log: testLogger()}
}

func TestClientLifecycle(t *testing.T) {
	fb := &fakeBackend{reply: `{"explanation":"ok","actions":[{"type":"send_command","pane":0,"command":"ls"}]}`}
	c := newFakeClient(fb)

	if c.Status() != Idle {
		t.Fatalf("initial status: got %v", c.Status())
	}

	// Poll before Submit is a no-op.
	c.Poll(context.Background(), nil)
	if fb.calls != 0 {
		t.Fatal("Poll called the backend while idle")
	}

	c.Submit("list files")
	if c.Status() != Waiting {
		t.Fatalf("after Submit: got %v, want Waiting", c.Status())
	}

	c.Poll(context.Background(), nil)
	if fb.calls != 1 {
		t.Fatalf("backend calls: got %d, want 1", fb.calls)
	}
	if fb.user != "list files" {
		t.Errorf("user prompt: got %q", fb.user)
	}
	if c.Status() != Idle {
		t.Fatalf("after Poll: got %v, want Idle", c.Status())
	}

	resp := c.Response()
	if resp == nil || resp.Explanation != "ok" {
		t.Fatalf("response: got %+v", resp)
	}

	acts := c.Execute()
	if len(acts) != 1 {
		t.Fatalf("actions: got %d, want 1", len(acts))
	}
	if sc := acts[0].(action.SendCommand); sc.Command != "ls" {
		t.Errorf("got %+v", sc)
	}
	if c.Response() != nil {
		t.Error("response survived Execute")
	}

	// A second Poll without a new Submit must not re-call the backend.
	c.Poll(context.Background(), nil)
	if fb.calls != 1 {
		t.Errorf("backend calls: got %d, want 1", fb.calls)
	}
}

func TestClientErrorState(t *testing.T) {
	fb := &fakeBackend{err: errors.New("connection refused")}
	c := newFakeClient(fb)

	c.Submit("hello")
	c.Poll(context.Background(), nil)

	if c.Status() != Error {
		t.Fatalf("status: got %v, want Error", c.Status())
	}
	if got := c.LastError(); !strings.Contains(got, "connection refused") {
		t.Errorf("LastError: got %q", got)
	}
	if c.Response() != nil {
		t.Error("response set on failure")
	}

	// A fresh Submit clears the error.
	fb.err = nil
	fb.reply = `{"actions":[]}`
	c.Submit("retry")
	if c.Status() != Waiting || c.LastError() != "" {
		t.Errorf("after resubmit: status %v, err %q", c.Status(), c.LastError())
	}
	c.Poll(context.Background(), nil)
	if c.Status() != Idle {
		t.Errorf("after retry: got %v, want Idle", c.Status())
	}
}

func TestResubmitReplacesPendingPrompt(t *testing.T) {
	fb := &fakeBackend{reply: `{"actions":[]}`}
	c := newFakeClient(fb)

	c.Submit("first")
	c.Submit("second")
	c.Poll(context.Background(), nil)

	if fb.calls != 1 {
		t.Fatalf("backend calls: got %d, want 1", fb.calls)
	}
	if fb.user != "second" {
		t.Errorf("user prompt: got %q, want %q", fb.user, "second")
	}
}

func TestUnparseableReplyDegradesToMessage(t *testing.T) {
	fb := &fakeBackend{reply: "I cannot help with that."}
	c := newFakeClient(fb)

	c.Submit("do something")
	c.Poll(context.Background(), nil)

	if c.Status() != Idle {
		t.Fatalf("status: got %v", c.Status())
	}
	acts := c.Execute()
	if len(acts) != 1 {
		t.Fatalf("actions: got %d, want 1", len(acts))
	}
	m, ok := acts[0].(action.Message)
	if !ok {
		t.Fatalf("got %T, want Message", acts[0])
	}
	if m.Text != "I cannot help with that." {
		t.Errorf("got %q", m.Text)
	}
}

func TestFencedReplyParses(t *testing.T) {
	fb := &fakeBackend{reply: "Sure:\n```json\n{\"explanation\":\"e\",\"actions\":[{\"type\":\"message\",\"text\":\"hi\"}]}\n```"}
	c := newFakeClient(fb)

	c.Submit("x")
	c.Poll(context.Background(), nil)

	resp := c.Response()
	if resp == nil || len(resp.Actions) != 1 {
		t.Fatalf("response: %+v", resp)
	}
	if _, ok := resp.Actions[0].(action.Message); !ok {
		t.Errorf("got %T, want Message", resp.Actions[0])
	}
}

func TestExecuteWithoutResponse(t *testing.T) {
	c := newFakeClient(&fakeBackend{})
	if acts := c.Execute(); acts != nil {
		t.Errorf("got %v, want nil", acts)
	}
	if c.Status() != Idle {
		t.Errorf("status: got %v", c.Status())
	}
}

func TestPaneSnapshotReachesSystemPrompt(t *testing.T) {
	fb := &fakeBackend{reply: `{"actions":[]}`}
	c := newFakeClient(fb)

	c.Submit("x")
	c.Poll(context.Background(), []PaneContext{
		{Index: 0, Type: "terminal", Title: "build", Lines: []string{"make: done"}},
	})

	if !strings.Contains(fb.system, `=== Pane 0 (terminal) "build" ===`) {
		t.Errorf("system prompt missing pane header:\n%s", fb.system)
	}
	if !strings.Contains(fb.system, "make: done") {
		t.Error("system prompt missing pane output")
	}
}

func TestNewClientProviderSelection(t *testing.T) {
	tests := []struct {
		provider  string
		wantName  string
		wantModel string
	}{
		{"anthropic", "anthropic", DefaultAnthropicModel},
		{"Claude", "anthropic", DefaultAnthropicModel},
		{"openai", "openai", DefaultOpenAIModel},
		{"ollama", "openai", DefaultOpenAIModel},
		{"", "openai", DefaultOpenAIModel},
	}
	for _, tt := range tests {
		c := NewClient(Config{Provider: tt.provider}, testLogger())
		if got := c.Provider(); got != tt.wantName {
			t.Errorf("%q: provider %q, want %q", tt.provider, got, tt.wantName)
		}
		if got := c.Model(); got != tt.wantModel {
			t.Errorf("%q: model %q, want %q", tt.provider, got, tt.wantModel)
		}
	}

	c := NewClient(Config{Provider: "anthropic", Model: "claude-opus-4"}, testLogger())
	if got := c.Model(); got != "claude-opus-4" {
		t.Errorf("model override: got %q", got)
	}
}

func TestStatusString(t *testing.T) {
	tests := []struct {
		s    Status
		want string
	}{
		{Idle, "idle"},
		{Waiting, "waiting"},
		{Error, "error"},
		{Status(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("%d: got %q, want %q", int(tt.s), got, tt.want)
		}
	}
}

func TestBuildSystemPrompt(t *testing.T) {
	long := make([]string, paneContextLines+20)
	for i := range long {
		long[i] = fmt.Sprintf("line %d", i)
	}

	got := BuildSystemPrompt([]PaneContext{
		{Index: 0, Type: "terminal", Title: "shell", ProcessInfo: "pid 123", Lines: []string{"$ ls", "a b c"}},
		{Index: 1, Type: "notes", Title: "scratch"},
		{Index: 2, Type: "terminal", Title: "noisy", Lines: long},
	})

	if !strings.Contains(got, `=== Pane 0 (terminal) "shell" ===`) {
		t.Error("missing pane 0 header")
	}
	if !strings.Contains(got, "[process] pid 123") {
		t.Error("missing process info")
	}
	if !strings.Contains(got, "(no output)") {
		t.Error("missing empty-pane marker")
	}

	// Only the trailing window of a long pane is included.
	if strings.Contains(got, "line 0\n") {
		t.Error("head of long pane leaked into the prompt")
	}
	if !strings.Contains(got, fmt.Sprintf("line %d\n", len(long)-1)) {
		t.Error("tail of long pane missing")
	}

	if !strings.Contains(got, `"actions"`) {
		t.Error("postamble missing")
	}
}

func TestBuildSystemPromptNoPanes(t *testing.T) {
	got := BuildSystemPrompt(nil)
	if !strings.Contains(got, "multi-pane terminal") {
		t.Error("preamble missing")
	}
	if !strings.Contains(got, "Return an empty actions array") {
		t.Error("postamble missing")
	}
}
