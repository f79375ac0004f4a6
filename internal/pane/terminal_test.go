package pane

import (
	"io"
	"strings"
	"testing"
	"time"
)

// fakeBackend queues canned output chunks and records writes. Read returns
// one chunk per call, then ErrWouldBlock, matching the non-blocking contract.
type fakeBackend struct {
	chunks  [][]byte
	writes  []string
	eof     bool
	pid     int
	closed  bool
	resizes [][2]int
}

func (f *fakeBackend) Read(p []byte) (int, error) {
	if len(f.chunks) == 0 {
		if f.eof {
			return 0, io.EOF
		}
		return 0, ErrWouldBlock
	}
	chunk := f.chunks[0]
	n := copy(p, chunk)
	if n < len(chunk) {
		f.chunks[0] = chunk[n:]
	} else {
		f.chunks = f.chunks[1:]
	}
	return n, nil
}

func (f *fakeBackend) Write(p []byte) (int, error) {
	f.writes = append(f.writes, string(p))
	return len(p), nil
}

func (f *fakeBackend) Resize(cols, rows int) error {
	f.resizes = append(f.resizes, [2]int{cols, rows})
	return nil
}

func (f *fakeBackend) Pid() int { return f.pid }

func (f *fakeBackend) Close() error {
	f.closed = true
	return nil
}

func newTestTerminal(t *testing.T, fb *fakeBackend, cfg Config) *TerminalPlugin {
	t.Helper()
	return NewTerminalWithBackend(cfg, fb)
}

func TestPollDrainsAllChunks(t *testing.T) {
	fb := &fakeBackend{chunks: [][]byte{
		[]byte("hello\n"),
		[]byte("world\n"),
	}}
	term := newTestTerminal(t, fb, Config{})

	if !term.Poll() {
		t.Fatal("Poll returned false with pending output")
	}
	if !term.IsDirty() {
		t.Error("pane not dirty after output")
	}
	if len(fb.chunks) != 0 {
		t.Errorf("%d chunks left undrained", len(fb.chunks))
	}

	term.ClearDirty()
	if term.Poll() {
		t.Error("Poll returned true with nothing to read")
	}
	if term.IsDirty() {
		t.Error("pane dirty after empty poll")
	}
}

func TestPollEOFMarksExited(t *testing.T) {
	fb := &fakeBackend{chunks: [][]byte{[]byte("bye\n")}, eof: true}
	term := newTestTerminal(t, fb, Config{})

	term.Poll()
	if !term.IsExited() {
		t.Error("EOF did not mark the pane exited")
	}

	got := term.VisibleText(10)
	if len(got) != 1 || got[0] != "bye" {
		t.Errorf("got %q, want [bye]", got)
	}
}

func TestVisibleTextStripsAnsiAndTail(t *testing.T) {
	fb := &fakeBackend{chunks: [][]byte{
		[]byte("\x1b[31mred\x1b[0m\r\n"),
		[]byte("plain\n"),
		[]byte("prompt$ "),
	}}
	term := newTestTerminal(t, fb, Config{})
	term.Poll()

	got := term.VisibleText(10)
	want := []string{"red", "plain", "prompt$ "}
	if len(got) != len(want) {
		t.Fatalf("got %d lines %q, want %d", len(got), got, len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d: got %q, want %q", i, got[i], want[i])
		}
	}

	if got := term.VisibleText(2); len(got) != 2 || got[0] != "plain" {
		t.Errorf("tail: got %q", got)
	}
}

func TestHistoryRingBounded(t *testing.T) {
	var b strings.Builder
	for i := 0; i < maxHistoryLines+200; i++ {
		b.WriteString("line\n")
	}
	fb := &fakeBackend{chunks: [][]byte{[]byte(b.String())}}
	term := newTestTerminal(t, fb, Config{})
	term.Poll()

	if n := len(term.history); n != maxHistoryLines {
		t.Errorf("history: got %d, want %d", n, maxHistoryLines)
	}
}

func TestWriteInputSnapsScrollback(t *testing.T) {
	fb := &fakeBackend{chunks: [][]byte{[]byte(strings.Repeat("x\n", 100))}}
	term := newTestTerminal(t, fb, Config{Rows: 10, Cols: 20})
	term.Poll()

	term.ScrollUp(5)
	rd := term.RenderData()
	if rd.CursorRow != CursorHidden || rd.CursorCol != CursorHidden {
		t.Error("cursor visible while scrolled")
	}

	term.WriteInput([]byte("q"))
	if term.scrollOffset != 0 {
		t.Errorf("scrollOffset: got %d, want 0", term.scrollOffset)
	}
	if fb.writes[len(fb.writes)-1] != "q" {
		t.Errorf("writes: got %q", fb.writes)
	}

	rd = term.RenderData()
	if rd.CursorRow == CursorHidden {
		t.Error("cursor still hidden after input snapped the view")
	}
}

func TestScrollClamping(t *testing.T) {
	fb := &fakeBackend{chunks: [][]byte{[]byte(strings.Repeat("x\n", 30))}}
	term := newTestTerminal(t, fb, Config{Rows: 10, Cols: 20})
	term.Poll()

	term.ScrollUp(1000)
	if max := len(term.history) - term.rows; term.scrollOffset != max {
		t.Errorf("scrollOffset: got %d, want %d", term.scrollOffset, max)
	}
	term.ScrollDown(1000)
	if term.scrollOffset != 0 {
		t.Errorf("scrollOffset: got %d, want 0", term.scrollOffset)
	}
	term.ScrollDown(5)
	if term.scrollOffset != 0 {
		t.Error("ScrollDown went negative")
	}
}

func TestRenderDataDimensions(t *testing.T) {
	fb := &fakeBackend{}
	term := newTestTerminal(t, fb, Config{Rows: 5, Cols: 8})

	rd := term.RenderData()
	if rd.Rows != 5 || rd.Cols != 8 {
		t.Errorf("got %dx%d, want 5x8", rd.Rows, rd.Cols)
	}
	if len(rd.Cells) != 40 {
		t.Errorf("cells: got %d, want 40", len(rd.Cells))
	}
}

func TestResize(t *testing.T) {
	fb := &fakeBackend{}
	term := newTestTerminal(t, fb, Config{Rows: 5, Cols: 8})
	term.ClearDirty()

	term.Resize(100, 40)
	if term.cols != 100 || term.rows != 40 {
		t.Errorf("got %dx%d, want 100x40", term.cols, term.rows)
	}
	if len(fb.resizes) != 1 || fb.resizes[0] != [2]int{100, 40} {
		t.Errorf("backend resizes: got %v", fb.resizes)
	}
	if !term.IsDirty() {
		t.Error("resize did not mark dirty")
	}

	term.Resize(0, -1)
	if term.cols != 100 {
		t.Error("invalid resize was applied")
	}
}

func TestInitialCommandsAfterDelay(t *testing.T) {
	fb := &fakeBackend{chunks: [][]byte{[]byte("$ ")}}
	term := newTestTerminal(t, fb, Config{InitialCommands: []string{"ls", "pwd"}})

	clock := time.Unix(1000, 0)
	term.now = func() time.Time { return clock }

	term.Poll()
	if len(fb.writes) != 0 {
		t.Fatalf("commands sent before the settle delay: %q", fb.writes)
	}

	clock = clock.Add(initialCommandDelay / 2)
	term.Poll()
	if len(fb.writes) != 0 {
		t.Fatalf("commands sent halfway through the delay: %q", fb.writes)
	}

	clock = clock.Add(initialCommandDelay)
	term.Poll()
	if len(fb.writes) != 2 || fb.writes[0] != "ls\r" || fb.writes[1] != "pwd\r" {
		t.Fatalf("got %q, want [ls\\r pwd\\r]", fb.writes)
	}

	clock = clock.Add(time.Minute)
	term.Poll()
	if len(fb.writes) != 2 {
		t.Errorf("initial commands sent twice: %q", fb.writes)
	}
}

func TestInitialCommandsWaitForOutput(t *testing.T) {
	fb := &fakeBackend{}
	term := newTestTerminal(t, fb, Config{InitialCommands: []string{"ls"}})
	clock := time.Unix(1000, 0)
	term.now = func() time.Time { return clock }

	clock = clock.Add(time.Hour)
	term.Poll()
	if len(fb.writes) != 0 {
		t.Errorf("commands sent before any output: %q", fb.writes)
	}
}

func TestDispose(t *testing.T) {
	fb := &fakeBackend{pid: 42}
	term := newTestTerminal(t, fb, Config{})

	if term.ChildPID() != 42 {
		t.Errorf("pid: got %d, want 42", term.ChildPID())
	}

	term.Dispose()
	if !fb.closed {
		t.Error("backend not closed")
	}
	if !term.IsExited() {
		t.Error("not exited after dispose")
	}
	if term.ChildPID() != 0 {
		t.Errorf("pid after dispose: got %d, want 0", term.ChildPID())
	}

	term.Dispose()
	if term.Poll() {
		t.Error("Poll returned true after dispose")
	}
}

func TestFailedSpawnYieldsErrorPlugin(t *testing.T) {
	term := NewTerminal(Config{Command: "/nonexistent/binary/zzz"})
	if !term.HasError() || !term.IsExited() {
		t.Error("failed spawn should report error and exited")
	}
	if term.Poll() {
		t.Error("Poll on a failed plugin returned true")
	}
	term.WriteInput([]byte("x"))
}

func TestStubPlugin(t *testing.T) {
	s := NewStub("notes", "my notes")
	if s.Type() != "notes" || s.Title() != "my notes" {
		t.Errorf("got %q/%q", s.Type(), s.Title())
	}
	s.SetTitle("renamed")
	if s.Title() != "renamed" {
		t.Errorf("title: got %q", s.Title())
	}
	if s.Poll() || s.IsDirty() || s.HasError() || s.IsExited() {
		t.Error("stub reported activity")
	}
	if s.VisibleText(10) != nil {
		t.Error("stub has visible text")
	}
	if s.RenderData() == nil {
		t.Error("stub RenderData nil")
	}
}

func TestNewFactory(t *testing.T) {
	tests := []struct {
		typ  string
		stub bool
	}{
		{"notes", true},
		{"webview", true},
		{"clock", true},
		{"terminal", false},
		{"", false},
		{"mystery", false},
	}
	for _, tt := range tests {
		p := New(0, Config{Type: tt.typ, Command: "true"})
		_, isStub := p.(*StubPlugin)
		if isStub != tt.stub {
			t.Errorf("New(%q): stub=%v, want %v", tt.typ, isStub, tt.stub)
		}
		p.Dispose()
	}
}
