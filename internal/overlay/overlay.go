// Package overlay tracks foreground/background pane pairs and per-pane
// watermarks. Entries are index-to-index lookups only: the registry never
// owns panes, and closing a pane scrubs every entry that refers to it.
package overlay

// Layer selects which half of an overlay pair receives input.
type Layer int

const (
	// Foreground routes input to the overlay pane.
	Foreground Layer = iota
	// Background routes input to the pane underneath.
	Background
)

// MaxWatermarkLen bounds watermark strings; longer values are truncated.
const MaxWatermarkLen = 128

// Registry holds the overlay pairs and watermark strings for a controller.
// Keys are flat pane indices.
type Registry struct {
	pairs      map[uint32]uint32
	focus      map[uint32]Layer
	watermarks map[uint32]string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		pairs:      make(map[uint32]uint32),
		focus:      make(map[uint32]Layer),
		watermarks: make(map[uint32]string),
	}
}

// AddOverlay records fg as an overlay covering bg. The pair starts focused on
// the foreground.
func (r *Registry) AddOverlay(fg, bg uint32) {
	r.pairs[fg] = bg
	r.focus[fg] = Foreground
}

// RemoveOverlay deletes the pair keyed by fg.
func (r *Registry) RemoveOverlay(fg uint32) {
	delete(r.pairs, fg)
	delete(r.focus, fg)
}

// Background returns the pane underneath fg.
func (r *Registry) Background(fg uint32) (uint32, bool) {
	bg, ok := r.pairs[fg]
	return bg, ok
}

// HasOverlay reports whether fg is the foreground of a pair.
func (r *Registry) HasOverlay(fg uint32) bool {
	_, ok := r.pairs[fg]
	return ok
}

// FocusLayer returns the layer receiving input for the pair keyed by fg.
func (r *Registry) FocusLayer(fg uint32) Layer {
	return r.focus[fg]
}

// ToggleFocus flips which layer of the pair receives input.
func (r *Registry) ToggleFocus(fg uint32) {
	if _, ok := r.pairs[fg]; !ok {
		return
	}
	if r.focus[fg] == Foreground {
		r.focus[fg] = Background
	} else {
		r.focus[fg] = Foreground
	}
}

// SwapOverlay exchanges the roles of the pair keyed by fg: the background
// pane becomes the foreground.
func (r *Registry) SwapOverlay(fg uint32) {
	bg, ok := r.pairs[fg]
	if !ok {
		return
	}
	layer := r.focus[fg]
	delete(r.pairs, fg)
	delete(r.focus, fg)
	r.pairs[bg] = fg
	r.focus[bg] = layer
}

// SetWatermark stores a watermark for a pane, truncated to MaxWatermarkLen
// bytes.
func (r *Registry) SetWatermark(pane uint32, text string) {
	if len(text) > MaxWatermarkLen {
		text = text[:MaxWatermarkLen]
	}
	r.watermarks[pane] = text
}

// ClearWatermark removes a pane's watermark.
func (r *Registry) ClearWatermark(pane uint32) {
	delete(r.watermarks, pane)
}

// Watermark returns a pane's watermark, empty when unset.
func (r *Registry) Watermark(pane uint32) string {
	return r.watermarks[pane]
}

// RemovePane invalidates every entry that refers to the removed pane and
// renumbers indices above it, keeping the registry consistent with the
// controller's compacted pane list.
func (r *Registry) RemovePane(removed uint32) {
	pairs := make(map[uint32]uint32, len(r.pairs))
	focus := make(map[uint32]Layer, len(r.focus))
	for fg, bg := range r.pairs {
		if fg == removed || bg == removed {
			continue
		}
		nfg, nbg := shiftDown(fg, removed), shiftDown(bg, removed)
		pairs[nfg] = nbg
		focus[nfg] = r.focus[fg]
	}
	r.pairs = pairs
	r.focus = focus

	watermarks := make(map[uint32]string, len(r.watermarks))
	for pane, text := range r.watermarks {
		if pane == removed {
			continue
		}
		watermarks[shiftDown(pane, removed)] = text
	}
	r.watermarks = watermarks
}

func shiftDown(i, removed uint32) uint32 {
	if i > removed {
		return i - 1
	}
	return i
}
