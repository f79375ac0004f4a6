package pane

import (
	"errors"
	"time"

	"github.com/charmbracelet/x/ansi"
	"github.com/hinshun/vt10x"
)

const (
	defaultRows = 24
	defaultCols = 80

	// maxHistoryLines bounds the stripped-text scrollback ring.
	maxHistoryLines = 2000

	// maxLineBytes bounds a single accumulated line. Longer lines are cut.
	maxLineBytes = 8192

	// initialCommandDelay is how long after the first output the configured
	// initial commands are written, giving the shell time to print its
	// prompt and install handlers.
	initialCommandDelay = time.Second
)

// Resizable is implemented by plugins whose backing surface has a size. The
// controller resizes matching plugins when the window geometry changes.
type Resizable interface {
	Resize(cols, rows int)
}

// TerminalPlugin wraps a PTY and a vt10x emulator. All reads are
// non-blocking; Poll drains whatever the child has produced since the last
// tick and feeds it to the emulator and to a plain-text scrollback ring.
type TerminalPlugin struct {
	title   string
	backend PtyBackend
	term    vt10x.Terminal

	rows int
	cols int

	dirty    bool
	hasError bool
	exited   bool

	scrollOffset int
	history      []string
	lineBuf      []byte
	readBuf      []byte

	initialCommands []string
	initialSent     bool
	firstOutput     time.Time
	lastOutput      time.Time

	now func() time.Time
}

// NewTerminal spawns the pane's command on a fresh PTY. A failed spawn still
// yields a usable plugin that reports HasError and IsExited.
func NewTerminal(cfg Config) *TerminalPlugin {
	rows, cols := cfg.Rows, cfg.Cols
	if rows <= 0 {
		rows = defaultRows
	}
	if cols <= 0 {
		cols = defaultCols
	}

	t := newTerminalShell(cfg, rows, cols)
	backend, err := StartPty(cfg.Command, cfg.Cwd, cols, rows)
	if err != nil {
		t.hasError = true
		t.exited = true
		return t
	}
	t.backend = backend
	return t
}

// NewTerminalWithBackend builds a terminal plugin on an existing backend.
func NewTerminalWithBackend(cfg Config, backend PtyBackend) *TerminalPlugin {
	rows, cols := cfg.Rows, cfg.Cols
	if rows <= 0 {
		rows = defaultRows
	}
	if cols <= 0 {
		cols = defaultCols
	}
	t := newTerminalShell(cfg, rows, cols)
	t.backend = backend
	return t
}

func newTerminalShell(cfg Config, rows, cols int) *TerminalPlugin {
	title := cfg.Title
	if title == "" {
		title = "terminal"
	}
	return &TerminalPlugin{
		title:           title,
		term:            vt10x.New(vt10x.WithSize(cols, rows)),
		rows:            rows,
		cols:            cols,
		readBuf:         make([]byte, 4096),
		initialCommands: cfg.InitialCommands,
		now:             time.Now,
	}
}

func (t *TerminalPlugin) Type() string          { return "terminal" }
func (t *TerminalPlugin) Title() string         { return t.title }
func (t *TerminalPlugin) SetTitle(title string) { t.title = title }

// Poll drains all available PTY output. Returns true iff any bytes were read
// this call.
func (t *TerminalPlugin) Poll() bool {
	if t.backend == nil {
		return false
	}

	read := false
	for !t.exited {
		n, err := t.backend.Read(t.readBuf)
		if n > 0 {
			read = true
			t.consume(t.readBuf[:n])
		}
		if err != nil {
			if errors.Is(err, ErrWouldBlock) {
				break
			}
			// EOF or a fatal read error means the child is gone.
			t.exited = true
			break
		}
	}

	if read {
		now := t.now()
		if t.firstOutput.IsZero() {
			t.firstOutput = now
		}
		t.lastOutput = now
		t.dirty = true
	}

	t.maybeSendInitialCommands()
	return read
}

// maybeSendInitialCommands writes the configured startup commands once the
// shell has produced output and settled for initialCommandDelay.
func (t *TerminalPlugin) maybeSendInitialCommands() {
	if t.initialSent || len(t.initialCommands) == 0 || t.exited {
		return
	}
	if t.firstOutput.IsZero() || t.now().Sub(t.firstOutput) < initialCommandDelay {
		return
	}
	for _, cmd := range t.initialCommands {
		_, _ = t.backend.Write([]byte(cmd + "\r"))
	}
	t.initialSent = true
}

// consume feeds raw output to the emulator and accumulates stripped lines
// into the scrollback ring.
func (t *TerminalPlugin) consume(p []byte) {
	_, _ = t.term.Write(p)

	for _, b := range p {
		if b == '\n' {
			t.pushHistoryLine()
			continue
		}
		if len(t.lineBuf) < maxLineBytes {
			t.lineBuf = append(t.lineBuf, b)
		}
	}
}

func (t *TerminalPlugin) pushHistoryLine() {
	raw := t.lineBuf
	if n := len(raw); n > 0 && raw[n-1] == '\r' {
		raw = raw[:n-1]
	}
	line := ansi.Strip(string(raw))
	t.lineBuf = t.lineBuf[:0]

	t.history = append(t.history, line)
	if len(t.history) > maxHistoryLines {
		t.history = t.history[len(t.history)-maxHistoryLines:]
	}
}

// WriteInput forwards input bytes to the PTY, snapping the view back to the
// live screen first. Write errors are discarded.
func (t *TerminalPlugin) WriteInput(p []byte) {
	if t.scrollOffset != 0 {
		t.scrollOffset = 0
		t.dirty = true
	}
	if t.backend == nil {
		return
	}
	_, _ = t.backend.Write(p)
}

// RenderData snapshots the emulator screen, or a scrollback window when the
// view is scrolled. While scrolled the cursor is reported as CursorHidden.
func (t *TerminalPlugin) RenderData() *RenderData {
	if t.scrollOffset > 0 {
		return t.renderScrollback()
	}

	cells := make([]Cell, 0, t.rows*t.cols)
	for y := 0; y < t.rows; y++ {
		for x := 0; x < t.cols; x++ {
			g := t.term.Cell(x, y)
			cells = append(cells, Cell{
				Ch:    g.Char,
				FG:    uint32(g.FG),
				BG:    uint32(g.BG),
				Attrs: uint16(g.Mode),
			})
		}
	}
	cur := t.term.Cursor()
	return &RenderData{
		Cells:     cells,
		Rows:      t.rows,
		Cols:      t.cols,
		CursorRow: uint32(cur.Y),
		CursorCol: uint32(cur.X),
	}
}

func (t *TerminalPlugin) renderScrollback() *RenderData {
	end := len(t.history) - t.scrollOffset
	if end < 0 {
		end = 0
	}
	start := end - t.rows
	if start < 0 {
		start = 0
	}

	cells := make([]Cell, t.rows*t.cols)
	for i := range cells {
		cells[i].Ch = ' '
	}
	for y, line := range t.history[start:end] {
		x := 0
		for _, r := range line {
			if x >= t.cols {
				break
			}
			cells[y*t.cols+x].Ch = r
			x++
		}
	}
	return &RenderData{
		Cells:     cells,
		Rows:      t.rows,
		Cols:      t.cols,
		CursorRow: CursorHidden,
		CursorCol: CursorHidden,
	}
}

// VisibleText returns the tail of the plain-text scrollback, including the
// partially accumulated current line (usually the prompt).
func (t *TerminalPlugin) VisibleText(maxLines int) []string {
	lines := t.history
	if partial := ansi.Strip(string(t.lineBuf)); partial != "" {
		lines = append(append([]string{}, lines...), partial)
	}
	if maxLines > 0 && len(lines) > maxLines {
		lines = lines[len(lines)-maxLines:]
	}
	return lines
}

func (t *TerminalPlugin) HasError() bool { return t.hasError }
func (t *TerminalPlugin) IsDirty() bool  { return t.dirty }
func (t *TerminalPlugin) ClearDirty()    { t.dirty = false }

// ScrollUp moves the view further into the scrollback.
func (t *TerminalPlugin) ScrollUp(lines int) {
	if lines <= 0 {
		return
	}
	max := len(t.history) - t.rows
	if max < 0 {
		max = 0
	}
	t.scrollOffset += lines
	if t.scrollOffset > max {
		t.scrollOffset = max
	}
	t.dirty = true
}

// ScrollDown moves the view back toward the live screen.
func (t *TerminalPlugin) ScrollDown(lines int) {
	if lines <= 0 {
		return
	}
	t.scrollOffset -= lines
	if t.scrollOffset < 0 {
		t.scrollOffset = 0
	}
	t.dirty = true
}

// IsExited reports whether the child process has terminated.
func (t *TerminalPlugin) IsExited() bool { return t.exited }

// ChildPID returns the child process id, or 0 when no process is attached.
func (t *TerminalPlugin) ChildPID() int {
	if t.backend == nil {
		return 0
	}
	return t.backend.Pid()
}

// Resize updates the emulator grid and the PTY window size.
func (t *TerminalPlugin) Resize(cols, rows int) {
	if cols <= 0 || rows <= 0 {
		return
	}
	t.cols, t.rows = cols, rows
	t.term.Resize(cols, rows)
	if t.backend != nil {
		_ = t.backend.Resize(cols, rows)
	}
	t.dirty = true
}

// Dispose terminates the PTY. Safe to call more than once.
func (t *TerminalPlugin) Dispose() {
	if t.backend != nil {
		_ = t.backend.Close()
		t.backend = nil
	}
	t.exited = true
}
