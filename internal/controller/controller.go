// Package controller owns all application state: the pane grid, the plugin
// set, the tap server, the LLM client, overlays, focus, and the pending
// telemetry slots. Every mutation flows through the controller on one thread;
// the C ABI shim and the CLI both drive it via Poll.
package controller

import (
	"context"
	"fmt"
	"strings"

	"pkt.systems/pslog"

	"github.com/keyvez/termania/internal/action"
	"github.com/keyvez/termania/internal/config"
	"github.com/keyvez/termania/internal/grid"
	"github.com/keyvez/termania/internal/keys"
	"github.com/keyvez/termania/internal/llm"
	"github.com/keyvez/termania/internal/overlay"
	"github.com/keyvez/termania/internal/pane"
	"github.com/keyvez/termania/internal/tap"
	"github.com/keyvez/termania/internal/telemetry"
)

// messageTitle is the notification title used for Message actions.
const messageTitle = "trm"

// readPaneLines bounds the content of one pane_output broadcast.
const readPaneLines = 200

// Notification is the single pending-notification slot. New notifications
// overwrite the previous one.
type Notification struct {
	Title string
	Body  string
}

// ContextState is the single pending context-usage slot.
type ContextState struct {
	UsedTokens   uint64
	TotalTokens  uint64
	Percentage   uint8
	SessionID    string
	IsPreCompact bool
	Valid        bool
}

// Controller is the process-wide state machine.
type Controller struct {
	cfg  *config.Config
	log  pslog.Logger
	tel  *telemetry.Telemetry
	grid *grid.Manager

	plugins  []pane.Plugin
	overlays *overlay.Registry
	tapSrv   *tap.Server
	llm      *llm.Client

	focus     uint32
	broadcast bool

	pendingNotification *Notification
	contextState        ContextState

	cellW, cellH float64
	scale        float64
	winW, winH   float64
}

// New builds a controller from the config. A partial-init failure unwinds
// everything acquired so far.
func New(cfg *config.Config, tel *telemetry.Telemetry, log pslog.Logger) (*Controller, error) {
	c := &Controller{
		cfg:      cfg,
		log:      log,
		tel:      tel,
		grid:     grid.New(cfg.Grid.Rows, cfg.Grid.Cols),
		overlays: overlay.NewRegistry(),
		scale:    1,
	}

	total := c.grid.TotalPanes()
	for i := 0; i < total; i++ {
		pcfg := pane.Config{Type: "terminal"}
		if i < len(cfg.Panes) {
			pcfg = paneConfig(cfg.Panes[i])
		}
		p := pane.New(uint32(i), pcfg)
		c.plugins = append(c.plugins, p)
		if pcfg.Watermark != "" {
			c.overlays.SetWatermark(uint32(i), pcfg.Watermark)
		}
	}

	if cfg.TextTap.Enabled {
		socket := cfg.TextTap.SocketPath
		if socket == "" {
			socket = config.DefaultTapSocket
		}
		c.tapSrv = tap.NewServer(socket, func() int { return len(c.plugins) }, log)
		if err := c.tapSrv.Start(); err != nil {
			c.disposePlugins()
			return nil, fmt.Errorf("starting text tap: %w", err)
		}
	}

	c.llm = llm.NewClient(llm.Config{
		Provider:  cfg.LLM.Provider,
		APIKey:    cfg.LLM.APIKey,
		Model:     cfg.LLM.Model,
		BaseURL:   cfg.LLM.BaseURL,
		MaxTokens: cfg.LLM.MaxTokens,
	}, log)

	return c, nil
}

func paneConfig(p config.Pane) pane.Config {
	return pane.Config{
		Type:            p.Type,
		Title:           p.Title,
		Command:         p.Command,
		Cwd:             p.Cwd,
		URL:             p.URL,
		Content:         p.Content,
		Watermark:       p.Watermark,
		InitialCommands: p.InitialCommands,
	}
}

// Config returns the active configuration.
func (c *Controller) Config() *config.Config { return c.cfg }

// Grid returns the grid manager.
func (c *Controller) Grid() *grid.Manager { return c.grid }

// PaneCount returns the number of panes.
func (c *Controller) PaneCount() int { return len(c.plugins) }

// Plugin returns the plugin at index i, or nil when out of range.
func (c *Controller) Plugin(i uint32) pane.Plugin {
	if int(i) >= len(c.plugins) {
		return nil
	}
	return c.plugins[i]
}

// FocusedPane returns the focused pane index.
func (c *Controller) FocusedPane() uint32 { return c.focus }

// SetFocusedPane moves focus when the index is in range.
func (c *Controller) SetFocusedPane(i uint32) {
	if int(i) < len(c.plugins) {
		c.focus = i
	}
}

// BroadcastMode reports whether text input fans out to every pane.
func (c *Controller) BroadcastMode() bool { return c.broadcast }

// Overlays returns the overlay and watermark registry.
func (c *Controller) Overlays() *overlay.Registry { return c.overlays }

// NoPane is the sentinel returned when a pane could not be created.
const NoPane = ^uint32(0)

// AddOverlayPane spawns a background pane of the given type and maps it
// behind fg. Returns the new pane's index, or NoPane when fg is out of range
// or already has an overlay.
func (c *Controller) AddOverlayPane(fg uint32, ptype string) uint32 {
	if int(fg) >= len(c.plugins) || c.overlays.HasOverlay(fg) {
		return NoPane
	}
	idx := uint32(len(c.plugins))
	c.plugins = append(c.plugins, pane.New(idx, pane.Config{Type: ptype}))
	c.grid.AddColToRow(c.grid.NumRows() - 1)
	c.overlays.AddOverlay(fg, idx)
	return idx
}

// RemoveOverlayPane tears down fg's overlay pair and closes the background
// pane.
func (c *Controller) RemoveOverlayPane(fg uint32) {
	bg, ok := c.overlays.Background(fg)
	if !ok {
		return
	}
	c.overlays.RemoveOverlay(fg)
	c.closePane(bg)
}

// Tap returns the tap server, or nil when disabled.
func (c *Controller) Tap() *tap.Server { return c.tapSrv }

// Poll runs one controller tick: poll every plugin in pane order, poll the
// tap, answer read requests, then drain and apply queued actions. Returns
// the number of panes that became dirty.
func (c *Controller) Poll(ctx context.Context) int {
	dirty := 0
	for _, p := range c.plugins {
		if p.Poll() {
			dirty++
		}
	}

	if c.tapSrv != nil {
		c.tapSrv.Poll()
		for _, idx := range c.tapSrv.DrainReadRequests() {
			c.answerReadPane(idx)
		}
		for _, a := range c.tapSrv.DrainActions() {
			c.Apply(ctx, a)
		}
	}

	if c.tel != nil {
		c.tel.Metrics.RecordDirtyPanes(ctx, int64(dirty))
	}
	return dirty
}

func (c *Controller) answerReadPane(idx uint32) {
	if int(idx) >= len(c.plugins) {
		return
	}
	lines := c.plugins[idx].VisibleText(readPaneLines)
	c.tapSrv.BroadcastPaneContent(idx, strings.Join(lines, "\n"))
}

// RenderData returns pane i's display snapshot with its watermark attached,
// or nil when out of range.
func (c *Controller) RenderData(i uint32) *pane.RenderData {
	p := c.Plugin(i)
	if p == nil {
		return nil
	}
	rd := p.RenderData()
	rd.Watermark = c.overlays.Watermark(i)
	return rd
}

// Resize records the window geometry and resizes every resizable plugin to
// its cell grid.
func (c *Controller) Resize(w, h, scale, cellW, cellH float64) {
	if scale <= 0 {
		scale = 1
	}
	c.winW, c.winH = w, h
	c.scale = scale
	c.cellW, c.cellH = cellW, cellH
	c.applyPaneSizes()
}

// Layouts computes per-pane rectangles for a w x h window at the given scale.
func (c *Controller) Layouts(w, h, scale float64) []grid.PaneLayout {
	return c.grid.ComputeLayout(w, h, c.layoutParams(), scale)
}

func (c *Controller) layoutParams() grid.LayoutParams {
	return grid.LayoutParams{OuterPadding: 8, Gap: 6, TitleBarHeight: 22}
}

func (c *Controller) applyPaneSizes() {
	if c.cellW <= 0 || c.cellH <= 0 || c.winW <= 0 || c.winH <= 0 {
		return
	}
	layouts := c.grid.ComputeLayout(c.winW, c.winH, c.layoutParams(), c.scale)
	for i, l := range layouts {
		if i >= len(c.plugins) {
			break
		}
		r, ok := c.plugins[i].(pane.Resizable)
		if !ok {
			continue
		}
		cols := int(l.W / c.cellW)
		rows := int((l.H - l.TitleH) / c.cellH)
		if cols > 0 && rows > 0 {
			r.Resize(cols, rows)
		}
	}
}

// SendText writes raw UTF-8 input to the focused pane, or to every pane when
// broadcast mode is on.
func (c *Controller) SendText(b []byte) {
	if len(b) == 0 || len(c.plugins) == 0 {
		return
	}
	if c.broadcast {
		for _, p := range c.plugins {
			p.WriteInput(b)
		}
		return
	}
	c.plugins[c.focus].WriteInput(b)
}

// PollNotification consumes the pending notification slot.
func (c *Controller) PollNotification() (Notification, bool) {
	if c.pendingNotification == nil {
		return Notification{}, false
	}
	n := *c.pendingNotification
	c.pendingNotification = nil
	return n, true
}

// ContextUsage returns the pending context-usage slot without consuming it.
func (c *Controller) ContextUsage() ContextState { return c.contextState }

// Close unwinds everything: tap listener and clients, plugins, telemetry.
func (c *Controller) Close(ctx context.Context) {
	if c.tapSrv != nil {
		c.tapSrv.Stop()
	}
	c.disposePlugins()
	if c.tel != nil {
		c.tel.Shutdown(ctx)
	}
}

func (c *Controller) disposePlugins() {
	for _, p := range c.plugins {
		p.Dispose()
	}
	c.plugins = nil
}

// clampFocus keeps the focus index inside the pane range.
func (c *Controller) clampFocus() {
	if n := len(c.plugins); n > 0 && int(c.focus) >= n {
		c.focus = uint32(n - 1)
	}
}

// HandleKey routes one raw key press. App keybindings (Ctrl+Shift without
// Super) are consumed here; everything else is encoded to terminal bytes and
// written to the focused pane.
func (c *Controller) HandleKey(key, mods byte) {
	e := keys.DecodeRaw(key, mods)
	if c.handleAppBinding(e) {
		return
	}
	b := keys.Encode(e)
	if len(b) == 0 || len(c.plugins) == 0 {
		return
	}
	c.plugins[c.focus].WriteInput(b)
}

func (c *Controller) handleAppBinding(e keys.Event) bool {
	if !e.Ctrl || !e.Shift || e.Super {
		return false
	}
	switch e.Key {
	case 'n':
		c.HandleAction(ActionNewPane)
	case 'w':
		c.HandleAction(ActionClosePane)
	case keys.KeyUp:
		c.HandleAction(ActionNavigateUp)
	case keys.KeyDown:
		c.HandleAction(ActionNavigateDown)
	case keys.KeyLeft:
		c.HandleAction(ActionNavigateLeft)
	case keys.KeyRight:
		c.HandleAction(ActionNavigateRight)
	case 'r':
		c.HandleAction(ActionRenamePane)
	case 'b':
		c.HandleAction(ActionBroadcastToggle)
	case '+', '=':
		c.HandleAction(ActionFontSizeIncrease)
	case '-':
		c.HandleAction(ActionFontSizeDecrease)
	case keys.KeyEnter:
		c.HandleAction(ActionCommandOverlayToggle)
	case '/':
		c.HandleAction(ActionHelpToggle)
	default:
		if e.Key >= '1' && e.Key <= '9' {
			c.HandleAction(ActionJumpToPane1 + GUIAction(e.Key-'1'))
			return true
		}
		return false
	}
	return true
}

// LLMSubmit stores a prompt for the next LLMPoll.
func (c *Controller) LLMSubmit(prompt string) { c.llm.Submit(prompt) }

// LLMStatus returns the client state.
func (c *Controller) LLMStatus() llm.Status { return c.llm.Status() }

// LLMResponse returns the held response, or nil.
func (c *Controller) LLMResponse() *action.Response { return c.llm.Response() }

// LLMPoll performs the pending HTTP call with a fresh snapshot of every
// pane. The response is held for inspection, not auto-applied.
func (c *Controller) LLMPoll(ctx context.Context) {
	c.llm.Poll(ctx, c.paneContexts())
}

// LLMExecute applies the held response's actions and resets the client.
func (c *Controller) LLMExecute(ctx context.Context) {
	for _, a := range c.llm.Execute() {
		c.Apply(ctx, a)
	}
}

func (c *Controller) paneContexts() []llm.PaneContext {
	ctxs := make([]llm.PaneContext, 0, len(c.plugins))
	for i, p := range c.plugins {
		pc := llm.PaneContext{
			Index: uint32(i),
			Type:  p.Type(),
			Title: p.Title(),
			Lines: p.VisibleText(40),
		}
		if pid := p.ChildPID(); pid > 0 {
			pc.ProcessInfo = fmt.Sprintf("pid %d", pid)
			if p.IsExited() {
				pc.ProcessInfo += " (exited)"
			}
		}
		ctxs = append(ctxs, pc)
	}
	return ctxs
}
