package overlay

import (
	"strings"
	"testing"
)

func TestAddRemoveOverlay(t *testing.T) {
	r := NewRegistry()
	r.AddOverlay(2, 5)

	if !r.HasOverlay(2) {
		t.Error("HasOverlay(2) = false after add")
	}
	if bg, ok := r.Background(2); !ok || bg != 5 {
		t.Errorf("Background(2): got (%d,%v), want (5,true)", bg, ok)
	}
	if r.FocusLayer(2) != Foreground {
		t.Error("new overlay should focus the foreground")
	}

	r.RemoveOverlay(2)
	if r.HasOverlay(2) {
		t.Error("HasOverlay(2) = true after remove")
	}
	if _, ok := r.Background(2); ok {
		t.Error("Background(2) ok after remove")
	}
}

func TestToggleFocus(t *testing.T) {
	r := NewRegistry()
	r.AddOverlay(0, 1)

	r.ToggleFocus(0)
	if r.FocusLayer(0) != Background {
		t.Errorf("after toggle: got %v, want Background", r.FocusLayer(0))
	}
	r.ToggleFocus(0)
	if r.FocusLayer(0) != Foreground {
		t.Errorf("after second toggle: got %v, want Foreground", r.FocusLayer(0))
	}

	// Toggling an unpaired pane must not create an entry.
	r.ToggleFocus(9)
	if r.HasOverlay(9) {
		t.Error("toggle created a pair for pane 9")
	}
}

func TestSwapOverlay(t *testing.T) {
	r := NewRegistry()
	r.AddOverlay(3, 7)
	r.ToggleFocus(3)

	r.SwapOverlay(3)
	if r.HasOverlay(3) {
		t.Error("old foreground still keyed after swap")
	}
	if bg, ok := r.Background(7); !ok || bg != 3 {
		t.Errorf("Background(7): got (%d,%v), want (3,true)", bg, ok)
	}
	if r.FocusLayer(7) != Background {
		t.Errorf("focus layer not carried across swap: got %v", r.FocusLayer(7))
	}

	// Swapping a pane with no pair is a no-op.
	r.SwapOverlay(99)
	if r.HasOverlay(99) {
		t.Error("swap created a pair for pane 99")
	}
}

func TestWatermarkTruncation(t *testing.T) {
	r := NewRegistry()
	long := strings.Repeat("w", MaxWatermarkLen+40)
	r.SetWatermark(1, long)
	if got := r.Watermark(1); len(got) != MaxWatermarkLen {
		t.Errorf("watermark length: got %d, want %d", len(got), MaxWatermarkLen)
	}

	r.SetWatermark(2, "draft")
	if got := r.Watermark(2); got != "draft" {
		t.Errorf("got %q, want %q", got, "draft")
	}
	r.ClearWatermark(2)
	if got := r.Watermark(2); got != "" {
		t.Errorf("after clear: got %q, want empty", got)
	}
	if got := r.Watermark(42); got != "" {
		t.Errorf("unset pane: got %q, want empty", got)
	}
}

func TestRemovePaneScrubsAndShifts(t *testing.T) {
	r := NewRegistry()
	r.AddOverlay(1, 4)
	r.AddOverlay(5, 6)
	r.SetWatermark(1, "one")
	r.SetWatermark(3, "three")
	r.SetWatermark(5, "five")

	r.RemovePane(3)

	// Pair (1,4) survives with bg shifted to 3; pair (5,6) shifts to (4,5).
	if bg, ok := r.Background(1); !ok || bg != 3 {
		t.Errorf("Background(1): got (%d,%v), want (3,true)", bg, ok)
	}
	if bg, ok := r.Background(4); !ok || bg != 5 {
		t.Errorf("Background(4): got (%d,%v), want (5,true)", bg, ok)
	}
	if r.HasOverlay(5) {
		t.Error("stale pair keyed at old index 5")
	}

	if got := r.Watermark(1); got != "one" {
		t.Errorf("watermark 1: got %q, want %q", got, "one")
	}
	if got := r.Watermark(3); got != "" {
		t.Errorf("removed pane watermark survived: %q", got)
	}
	if got := r.Watermark(4); got != "five" {
		t.Errorf("watermark 4: got %q, want %q", got, "five")
	}
}

func TestRemovePaneDropsReferencingPairs(t *testing.T) {
	r := NewRegistry()
	r.AddOverlay(2, 6)
	r.AddOverlay(7, 2)

	r.RemovePane(2)

	if r.HasOverlay(2) {
		t.Error("pair with removed foreground survived")
	}
	// Pair (7,2) referenced the removed pane as background and must go too.
	if r.HasOverlay(6) || r.HasOverlay(7) {
		t.Error("pair referencing removed background survived")
	}
}
