// Package pane defines the polymorphic pane capability set and its concrete
// implementations: a fully functional terminal plugin backed by a PTY and a
// vt10x emulator, and trivial stubs for the display-only plugin types whose
// rendering lives in the frontend.
//
// No Plugin method may block. The controller polls every plugin once per
// tick on a single thread.
package pane

// CursorHidden is the sentinel cursor coordinate reported while the view is
// scrolled away from the live screen.
const CursorHidden = ^uint32(0)

// Cell is one character cell of a terminal snapshot.
type Cell struct {
	Ch    rune
	FG    uint32
	BG    uint32
	Attrs uint16
}

// RenderData is a structured snapshot of a pane's display state, consumed by
// the frontend through the C ABI.
type RenderData struct {
	Cells     []Cell
	Rows      int
	Cols      int
	CursorRow uint32
	CursorCol uint32
	Watermark string
}

// Plugin is the capability set every pane satisfies.
type Plugin interface {
	// Type returns the plugin type string (e.g. "terminal", "notes").
	Type() string

	Title() string
	SetTitle(title string)

	// Poll drains any available output without blocking. It reports whether
	// any bytes were consumed this call.
	Poll() bool

	// WriteInput forwards raw input bytes to the plugin. Terminal plugins
	// snap the scrollback to the live view first.
	WriteInput(p []byte)

	// RenderData returns the current display snapshot.
	RenderData() *RenderData

	// VisibleText returns up to maxLines of the most recent visible text,
	// one entry per line.
	VisibleText(maxLines int) []string

	HasError() bool
	IsDirty() bool
	ClearDirty()

	ScrollUp(lines int)
	ScrollDown(lines int)

	// IsExited reports whether the plugin's subprocess has terminated.
	IsExited() bool

	// ChildPID returns the subprocess pid, or 0 when there is none.
	ChildPID() int

	// Dispose releases the plugin's resources. Safe to call more than once.
	Dispose()
}

// Config describes one pane at creation time.
type Config struct {
	Type            string
	Title           string
	Command         string
	Cwd             string
	URL             string
	Content         string
	Watermark       string
	InitialCommands []string
	Rows            int
	Cols            int
}

// stubTypes are the recognized non-terminal plugin types. They satisfy the
// capability set trivially; their display logic is owned by the frontend.
var stubTypes = map[string]bool{
	"webview": true,
	"notes":   true,
	"browser": true,
	"editor":  true,
	"files":   true,
	"clock":   true,
	"chart":   true,
	"image":   true,
	"custom":  true,
}

// New creates the plugin for a pane config. An empty or unrecognized type
// yields a terminal plugin.
func New(index uint32, cfg Config) Plugin {
	typ := cfg.Type
	if typ == "" {
		typ = "terminal"
	}
	if stubTypes[typ] {
		return NewStub(typ, cfg.Title)
	}
	return NewTerminal(cfg)
}

// StubPlugin satisfies the capability set with empty behavior. It keeps only
// its type discriminator and title.
type StubPlugin struct {
	typ   string
	title string
}

// NewStub returns a stub plugin of the given type.
func NewStub(typ, title string) *StubPlugin {
	return &StubPlugin{typ: typ, title: title}
}

func (s *StubPlugin) Type() string             { return s.typ }
func (s *StubPlugin) Title() string            { return s.title }
func (s *StubPlugin) SetTitle(title string)    { s.title = title }
func (s *StubPlugin) Poll() bool               { return false }
func (s *StubPlugin) WriteInput(p []byte)      {}
func (s *StubPlugin) RenderData() *RenderData  { return &RenderData{} }
func (s *StubPlugin) VisibleText(int) []string { return nil }
func (s *StubPlugin) HasError() bool           { return false }
func (s *StubPlugin) IsDirty() bool            { return false }
func (s *StubPlugin) ClearDirty()              {}
func (s *StubPlugin) ScrollUp(int)             {}
func (s *StubPlugin) ScrollDown(int)           {}
func (s *StubPlugin) IsExited() bool           { return false }
func (s *StubPlugin) ChildPID() int            { return 0 }
func (s *StubPlugin) Dispose()                 {}
