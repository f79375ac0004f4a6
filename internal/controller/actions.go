package controller

import (
	"context"
	"fmt"

	"github.com/keyvez/termania/internal/action"
	"github.com/keyvez/termania/internal/pane"
)

// GUIAction is the frontend-originated command byte delivered through the
// ABI's action entry point.
type GUIAction uint8

// GUI action codes. Jump actions occupy a contiguous range.
const (
	ActionNewPane GUIAction = iota
	ActionClosePane
	ActionNavigateUp
	ActionNavigateDown
	ActionNavigateLeft
	ActionNavigateRight
	ActionJumpToPane1
	ActionJumpToPane2
	ActionJumpToPane3
	ActionJumpToPane4
	ActionJumpToPane5
	ActionJumpToPane6
	ActionJumpToPane7
	ActionJumpToPane8
	ActionJumpToPane9
	ActionBroadcastToggle
	ActionRenamePane
	ActionFontSizeIncrease
	ActionFontSizeDecrease
	ActionCommandOverlayToggle
	ActionHelpToggle
)

// HandleAction applies one GUI command. Rename, command-overlay, and help
// are frontend-owned surfaces; the controller treats them as hooks and does
// not change pane state for them.
func (c *Controller) HandleAction(a GUIAction) {
	switch a {
	case ActionNewPane:
		c.newPane()
	case ActionClosePane:
		c.closePane(c.focus)
	case ActionNavigateRight, ActionNavigateDown:
		if n := len(c.plugins); n > 0 {
			c.focus = (c.focus + 1) % uint32(n)
		}
	case ActionNavigateLeft, ActionNavigateUp:
		if n := len(c.plugins); n > 0 {
			c.focus = (c.focus + uint32(n) - 1) % uint32(n)
		}
	case ActionBroadcastToggle:
		c.broadcast = !c.broadcast
		c.log.Info("broadcast mode", "enabled", c.broadcast)
	case ActionFontSizeIncrease:
		c.cfg.Font.Size++
	case ActionFontSizeDecrease:
		if c.cfg.Font.Size > 1 {
			c.cfg.Font.Size--
		}
	case ActionRenamePane, ActionCommandOverlayToggle, ActionHelpToggle:
		// Frontend-owned; nothing to do here.
	default:
		if a >= ActionJumpToPane1 && a <= ActionJumpToPane9 {
			idx := uint32(a - ActionJumpToPane1)
			if int(idx) < len(c.plugins) {
				c.focus = idx
			}
		}
	}
}

// newPane appends a default terminal pane to the last grid row and focuses
// it.
func (c *Controller) newPane() {
	idx := uint32(len(c.plugins))
	p := pane.New(idx, pane.Config{Type: "terminal"})
	c.plugins = append(c.plugins, p)
	c.grid.AddColToRow(c.grid.NumRows() - 1)
	c.focus = idx
	c.applyPaneSizes()
}

// closePane removes pane i unless it is the last one.
func (c *Controller) closePane(i uint32) {
	if len(c.plugins) <= 1 || int(i) >= len(c.plugins) {
		return
	}
	row, _, ok := c.grid.PanePosition(int(i))
	if !ok {
		return
	}
	c.plugins[i].Dispose()
	c.plugins = append(c.plugins[:i], c.plugins[i+1:]...)
	c.grid.RemoveColFromRow(row)
	c.overlays.RemovePane(i)
	c.clampFocus()
	c.applyPaneSizes()
}

// Apply executes one action against the controller state. Actions referring
// to out-of-range panes are dropped.
func (c *Controller) Apply(ctx context.Context, a action.Action) {
	switch v := a.(type) {
	case action.RawSend:
		c.applyRawSend(v)
	case action.SendCommand:
		if p := c.Plugin(v.Pane); p != nil {
			p.WriteInput([]byte(v.Command + "\r"))
		}
	case action.SendToAll:
		for _, p := range c.plugins {
			p.WriteInput([]byte(v.Command + "\r"))
		}
	case action.SetTitle:
		if p := c.Plugin(v.Pane); p != nil {
			p.SetTitle(v.Title)
		}
	case action.SetWatermark:
		if int(v.Pane) < len(c.plugins) {
			c.overlays.SetWatermark(v.Pane, v.Watermark)
		}
	case action.ClearWatermark:
		c.overlays.ClearWatermark(v.Pane)
	case action.Navigate:
		// Webview navigation renders in the frontend; retitle so the state
		// change is observable from the core.
		if p := c.Plugin(v.Pane); p != nil && p.Type() == "webview" {
			p.SetTitle(v.URL)
		}
	case action.SetContent:
		// Notes content is frontend-rendered; nothing to store core-side.
	case action.SpawnPane:
		c.spawnPane(v)
	case action.ClosePane:
		c.closePane(v.Pane)
	case action.ReplacePane:
		c.replacePane(v)
	case action.SwapPanes:
		if int(v.A) < len(c.plugins) && int(v.B) < len(c.plugins) {
			c.plugins[v.A], c.plugins[v.B] = c.plugins[v.B], c.plugins[v.A]
		}
	case action.FocusPane:
		c.SetFocusedPane(v.Pane)
	case action.Message:
		c.pendingNotification = &Notification{Title: messageTitle, Body: v.Text}
	case action.Notify:
		c.pendingNotification = &Notification{Title: v.Title, Body: v.Body}
	case action.ContextUsage:
		c.contextState = ContextState{
			UsedTokens:   v.UsedTokens,
			TotalTokens:  v.TotalTokens,
			Percentage:   v.Percentage,
			SessionID:    v.SessionID,
			IsPreCompact: v.IsPreCompact,
			Valid:        true,
		}
	}
	if c.tel != nil {
		c.tel.Metrics.RecordAction(ctx, fmt.Sprintf("%T", a))
	}
}

func (c *Controller) applyRawSend(v action.RawSend) {
	if v.Target.All {
		for _, p := range c.plugins {
			p.WriteInput([]byte(v.Bytes))
		}
		return
	}
	if p := c.Plugin(v.Target.Pane); p != nil {
		p.WriteInput([]byte(v.Bytes))
	}
}

// spawnPane creates a plugin from the action's config. A valid row index
// extends that row; anything else extends the last row. The new pane's flat
// index is the end of its row.
func (c *Controller) spawnPane(v action.SpawnPane) {
	cfg := pane.Config{
		Type:      v.PaneType,
		Title:     v.Title,
		Command:   v.Command,
		Cwd:       v.Cwd,
		URL:       v.URL,
		Content:   v.Content,
		Watermark: v.Watermark,
	}

	row := v.Row
	if row < 0 || row >= c.grid.NumRows() {
		row = c.grid.NumRows() - 1
	}

	// Insertion point: one past the last pane of the target row.
	idx := 0
	for r := 0; r <= row; r++ {
		idx += c.grid.RowCols(r)
	}

	p := pane.New(uint32(idx), cfg)
	c.plugins = append(c.plugins, nil)
	copy(c.plugins[idx+1:], c.plugins[idx:])
	c.plugins[idx] = p
	c.grid.AddColToRow(row)

	if cfg.Watermark != "" {
		c.overlays.SetWatermark(uint32(idx), cfg.Watermark)
	}
	c.focus = uint32(idx)
	c.applyPaneSizes()
}

// replacePane swaps pane i's plugin for a fresh one built from the action's
// config. The grid shape is untouched.
func (c *Controller) replacePane(v action.ReplacePane) {
	if int(v.Pane) >= len(c.plugins) {
		return
	}
	c.plugins[v.Pane].Dispose()
	cfg := pane.Config{
		Type:      v.PaneType,
		Title:     v.Title,
		Command:   v.Command,
		Cwd:       v.Cwd,
		URL:       v.URL,
		Content:   v.Content,
		Watermark: v.Watermark,
	}
	c.plugins[v.Pane] = pane.New(v.Pane, cfg)
	if cfg.Watermark != "" {
		c.overlays.SetWatermark(v.Pane, cfg.Watermark)
	} else {
		c.overlays.ClearWatermark(v.Pane)
	}
	c.applyPaneSizes()
}
