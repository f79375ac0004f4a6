// Command libtermania builds the C shared library embedding the controller.
// Every exported function takes an opaque handle, tolerates a null handle,
// and bounds-checks every buffer it fills. String outputs return a length
// and do not NUL-terminate, except termania_font_family which returns a
// persistent NUL-terminated pointer owned by the instance.
//
// Build with: go build -buildmode=c-shared -o libtermania.so ./cmd/libtermania
package main

/*
#include <stdint.h>
#include <stdlib.h>

typedef struct {
	uint32_t rows;
	uint32_t cols;
	uint32_t cursor_row;
	uint32_t cursor_col;
	uint8_t  title[128];
	uint32_t title_len;
	uint8_t  flags;
} termania_pane_info;

typedef struct {
	uint32_t ch;
	uint32_t fg;
	uint32_t bg;
	uint16_t attrs;
} termania_cell;

typedef struct {
	float x;
	float y;
	float w;
	float h;
	float title_h;
} termania_layout;
*/
import "C"

import (
	"context"
	"os"
	"runtime/cgo"
	"unsafe"

	"github.com/keyvez/termania/internal/action"
	"github.com/keyvez/termania/internal/config"
	"github.com/keyvez/termania/internal/controller"
	"github.com/keyvez/termania/internal/llm"
	"github.com/keyvez/termania/internal/logx"
	"github.com/keyvez/termania/internal/telemetry"
)

// Pane info flag bits.
const (
	flagDirty    = 1 << 0
	flagHasError = 1 << 1
	flagIsExited = 1 << 2
	flagFocused  = 1 << 3
)

// instance bundles a controller with the C strings it keeps alive.
type instance struct {
	ctl        *controller.Controller
	fontFamily *C.char
}

func fromHandle(h C.uintptr_t) *instance {
	if h == 0 {
		return nil
	}
	v, ok := cgo.Handle(h).Value().(*instance)
	if !ok {
		return nil
	}
	return v
}

func newInstance(cfg *config.Config) C.uintptr_t {
	log := logx.New(os.Stderr)
	tel, err := telemetry.Init(context.Background(), telemetry.Config{
		Endpoint: cfg.OTEL.Endpoint,
		Headers:  cfg.OTEL.Headers,
	})
	if err != nil {
		log.Warn("telemetry init failed", "err", err)
		tel = nil
	}
	ctl, err := controller.New(cfg, tel, log)
	if err != nil {
		log.Error("controller init failed", "err", err)
		return 0
	}
	inst := &instance{
		ctl:        ctl,
		fontFamily: C.CString(cfg.Font.Family),
	}
	return C.uintptr_t(cgo.NewHandle(inst))
}

//export termania_create
func termania_create() C.uintptr_t {
	return newInstance(config.Defaults())
}

//export termania_create_with_config
func termania_create_with_config(path *C.char) C.uintptr_t {
	if path == nil {
		return termania_create()
	}
	cfg, err := config.Load(C.GoString(path))
	if err != nil {
		return 0
	}
	return newInstance(cfg)
}

//export termania_destroy
func termania_destroy(h C.uintptr_t) {
	inst := fromHandle(h)
	if inst == nil {
		return
	}
	inst.ctl.Close(context.Background())
	C.free(unsafe.Pointer(inst.fontFamily))
	cgo.Handle(h).Delete()
}

//export termania_poll
func termania_poll(h C.uintptr_t) C.uint32_t {
	inst := fromHandle(h)
	if inst == nil {
		return 0
	}
	return C.uint32_t(inst.ctl.Poll(context.Background()))
}

//export termania_pane_count
func termania_pane_count(h C.uintptr_t) C.uint32_t {
	inst := fromHandle(h)
	if inst == nil {
		return 0
	}
	return C.uint32_t(inst.ctl.PaneCount())
}

//export termania_pane_info
func termania_pane_info(h C.uintptr_t, i C.uint32_t, out *C.termania_pane_info) C.uint8_t {
	inst := fromHandle(h)
	if inst == nil || out == nil {
		return 0
	}
	p := inst.ctl.Plugin(uint32(i))
	if p == nil {
		return 0
	}
	rd := p.RenderData()
	out.rows = C.uint32_t(rd.Rows)
	out.cols = C.uint32_t(rd.Cols)
	out.cursor_row = C.uint32_t(rd.CursorRow)
	out.cursor_col = C.uint32_t(rd.CursorCol)

	title := p.Title()
	n := copy(unsafe.Slice((*byte)(unsafe.Pointer(&out.title[0])), len(out.title)), title)
	out.title_len = C.uint32_t(n)

	var flags C.uint8_t
	if p.IsDirty() {
		flags |= flagDirty
	}
	if p.HasError() {
		flags |= flagHasError
	}
	if p.IsExited() {
		flags |= flagIsExited
	}
	if uint32(i) == inst.ctl.FocusedPane() {
		flags |= flagFocused
	}
	out.flags = flags
	p.ClearDirty()
	return 1
}

//export termania_pane_cells
func termania_pane_cells(h C.uintptr_t, i C.uint32_t, out *C.termania_cell, max C.uint32_t) C.uint32_t {
	inst := fromHandle(h)
	if inst == nil || out == nil || max == 0 {
		return 0
	}
	rd := inst.ctl.RenderData(uint32(i))
	if rd == nil {
		return 0
	}
	dst := unsafe.Slice(out, int(max))
	n := len(rd.Cells)
	if n > int(max) {
		n = int(max)
	}
	for k := 0; k < n; k++ {
		c := rd.Cells[k]
		dst[k] = C.termania_cell{
			ch:    C.uint32_t(c.Ch),
			fg:    C.uint32_t(c.FG),
			bg:    C.uint32_t(c.BG),
			attrs: C.uint16_t(c.Attrs),
		}
	}
	return C.uint32_t(n)
}

//export termania_pane_layouts
func termania_pane_layouts(h C.uintptr_t, w, ht, scale C.float, out *C.termania_layout, max C.uint32_t) C.uint32_t {
	inst := fromHandle(h)
	if inst == nil || out == nil || max == 0 {
		return 0
	}
	layouts := inst.ctl.Layouts(float64(w), float64(ht), float64(scale))
	dst := unsafe.Slice(out, int(max))
	n := len(layouts)
	if n > int(max) {
		n = int(max)
	}
	for k := 0; k < n; k++ {
		l := layouts[k]
		dst[k] = C.termania_layout{
			x:       C.float(l.X),
			y:       C.float(l.Y),
			w:       C.float(l.W),
			h:       C.float(l.H),
			title_h: C.float(l.TitleH),
		}
	}
	return C.uint32_t(n)
}

//export termania_send_key
func termania_send_key(h C.uintptr_t, key, mods C.uint8_t) {
	inst := fromHandle(h)
	if inst == nil {
		return
	}
	inst.ctl.HandleKey(byte(key), byte(mods))
}

//export termania_send_text
func termania_send_text(h C.uintptr_t, text *C.uint8_t, length C.uint32_t) {
	inst := fromHandle(h)
	if inst == nil || text == nil || length == 0 {
		return
	}
	b := C.GoBytes(unsafe.Pointer(text), C.int(length))
	inst.ctl.SendText(b)
}

//export termania_resize
func termania_resize(h C.uintptr_t, w, ht, scale, cellW, cellH C.float) {
	inst := fromHandle(h)
	if inst == nil {
		return
	}
	inst.ctl.Resize(float64(w), float64(ht), float64(scale), float64(cellW), float64(cellH))
}

//export termania_action
func termania_action(h C.uintptr_t, a C.uint8_t) {
	inst := fromHandle(h)
	if inst == nil {
		return
	}
	inst.ctl.HandleAction(controller.GUIAction(a))
}

//export termania_focused_pane
func termania_focused_pane(h C.uintptr_t) C.uint32_t {
	inst := fromHandle(h)
	if inst == nil {
		return 0
	}
	return C.uint32_t(inst.ctl.FocusedPane())
}

//export termania_set_focused_pane
func termania_set_focused_pane(h C.uintptr_t, i C.uint32_t) {
	inst := fromHandle(h)
	if inst == nil {
		return
	}
	inst.ctl.SetFocusedPane(uint32(i))
}

//export termania_add_overlay
func termania_add_overlay(h C.uintptr_t, fg C.uint32_t, ptype *C.uint8_t, length C.uint32_t) C.uint8_t {
	inst := fromHandle(h)
	if inst == nil || int(fg) >= inst.ctl.PaneCount() {
		return 0
	}
	typ := "terminal"
	if ptype != nil && length > 0 {
		typ = string(C.GoBytes(unsafe.Pointer(ptype), C.int(length)))
	}
	bg := inst.ctl.AddOverlayPane(uint32(fg), typ)
	if bg == controller.NoPane {
		return 0
	}
	return 1
}

//export termania_remove_overlay
func termania_remove_overlay(h C.uintptr_t, fg C.uint32_t) {
	inst := fromHandle(h)
	if inst == nil {
		return
	}
	inst.ctl.RemoveOverlayPane(uint32(fg))
}

//export termania_swap_overlay
func termania_swap_overlay(h C.uintptr_t, fg C.uint32_t) {
	inst := fromHandle(h)
	if inst == nil {
		return
	}
	inst.ctl.Overlays().SwapOverlay(uint32(fg))
}

//export termania_toggle_overlay_focus
func termania_toggle_overlay_focus(h C.uintptr_t, fg C.uint32_t) {
	inst := fromHandle(h)
	if inst == nil {
		return
	}
	inst.ctl.Overlays().ToggleFocus(uint32(fg))
}

//export termania_has_overlay
func termania_has_overlay(h C.uintptr_t, fg C.uint32_t) C.uint8_t {
	inst := fromHandle(h)
	if inst == nil {
		return 0
	}
	if inst.ctl.Overlays().HasOverlay(uint32(fg)) {
		return 1
	}
	return 0
}

//export termania_pane_watermark
func termania_pane_watermark(h C.uintptr_t, i C.uint32_t, buf *C.uint8_t, max C.uint32_t) C.uint32_t {
	inst := fromHandle(h)
	if inst == nil || buf == nil || max == 0 {
		return 0
	}
	wm := inst.ctl.Overlays().Watermark(uint32(i))
	return fillBuf(buf, max, wm)
}

//export termania_set_watermark
func termania_set_watermark(h C.uintptr_t, i C.uint32_t, text *C.uint8_t, length C.uint32_t) {
	inst := fromHandle(h)
	if inst == nil || int(i) >= inst.ctl.PaneCount() {
		return
	}
	if text == nil || length == 0 {
		inst.ctl.Overlays().ClearWatermark(uint32(i))
		return
	}
	inst.ctl.Overlays().SetWatermark(uint32(i), string(C.GoBytes(unsafe.Pointer(text), C.int(length))))
}

//export termania_poll_notification
func termania_poll_notification(h C.uintptr_t, titleBuf *C.uint8_t, titleMax C.uint32_t, bodyBuf *C.uint8_t, bodyMax C.uint32_t) C.uint8_t {
	inst := fromHandle(h)
	if inst == nil {
		return 0
	}
	n, ok := inst.ctl.PollNotification()
	if !ok {
		return 0
	}
	fillBuf(titleBuf, titleMax, n.Title)
	fillBuf(bodyBuf, bodyMax, n.Body)
	return 1
}

//export termania_context_usage
func termania_context_usage(h C.uintptr_t, used, total *C.uint64_t, pct, preCompact *C.uint8_t) C.uint8_t {
	inst := fromHandle(h)
	if inst == nil {
		return 0
	}
	cs := inst.ctl.ContextUsage()
	if !cs.Valid {
		return 0
	}
	if used != nil {
		*used = C.uint64_t(cs.UsedTokens)
	}
	if total != nil {
		*total = C.uint64_t(cs.TotalTokens)
	}
	if pct != nil {
		*pct = C.uint8_t(cs.Percentage)
	}
	if preCompact != nil {
		if cs.IsPreCompact {
			*preCompact = 1
		} else {
			*preCompact = 0
		}
	}
	return 1
}

//export termania_context_session_id
func termania_context_session_id(h C.uintptr_t, buf *C.uint8_t, max C.uint32_t) C.uint32_t {
	inst := fromHandle(h)
	if inst == nil {
		return 0
	}
	return fillBuf(buf, max, inst.ctl.ContextUsage().SessionID)
}

//export termania_llm_submit
func termania_llm_submit(h C.uintptr_t, prompt *C.uint8_t, length C.uint32_t) C.uint32_t {
	inst := fromHandle(h)
	if inst == nil || prompt == nil || length == 0 {
		return 0
	}
	inst.ctl.LLMSubmit(string(C.GoBytes(unsafe.Pointer(prompt), C.int(length))))
	return 1
}

//export termania_llm_poll
func termania_llm_poll(h C.uintptr_t) {
	inst := fromHandle(h)
	if inst == nil {
		return
	}
	inst.ctl.LLMPoll(context.Background())
}

// llm_status values: 0 idle, 1 waiting, 2 response ready, 3 error.
//
//export termania_llm_status
func termania_llm_status(h C.uintptr_t) C.uint8_t {
	inst := fromHandle(h)
	if inst == nil {
		return 0
	}
	if inst.ctl.LLMResponse() != nil {
		return 2
	}
	switch inst.ctl.LLMStatus() {
	case llm.Waiting:
		return 1
	case llm.Error:
		return 3
	default:
		return 0
	}
}

//export termania_llm_response_text
func termania_llm_response_text(h C.uintptr_t, buf *C.uint8_t, max C.uint32_t) C.uint32_t {
	inst := fromHandle(h)
	if inst == nil {
		return 0
	}
	resp := inst.ctl.LLMResponse()
	if resp == nil {
		return 0
	}
	return fillBuf(buf, max, resp.Explanation)
}

//export termania_llm_action_count
func termania_llm_action_count(h C.uintptr_t) C.uint32_t {
	inst := fromHandle(h)
	if inst == nil {
		return 0
	}
	resp := inst.ctl.LLMResponse()
	if resp == nil {
		return 0
	}
	return C.uint32_t(len(resp.Actions))
}

//export termania_llm_action_desc
func termania_llm_action_desc(h C.uintptr_t, i C.uint32_t, buf *C.uint8_t, max C.uint32_t) C.uint32_t {
	inst := fromHandle(h)
	if inst == nil {
		return 0
	}
	resp := inst.ctl.LLMResponse()
	if resp == nil || int(i) >= len(resp.Actions) {
		return 0
	}
	return fillBuf(buf, max, action.FormatForDisplay(resp.Actions[i]))
}

//export termania_llm_execute
func termania_llm_execute(h C.uintptr_t) {
	inst := fromHandle(h)
	if inst == nil {
		return
	}
	inst.ctl.LLMExecute(context.Background())
}

//export termania_font_family
func termania_font_family(h C.uintptr_t) *C.char {
	inst := fromHandle(h)
	if inst == nil {
		return nil
	}
	return inst.fontFamily
}

// fillBuf copies at most max bytes of s into buf, returning the count. The
// output is not NUL-terminated.
func fillBuf(buf *C.uint8_t, max C.uint32_t, s string) C.uint32_t {
	if buf == nil || max == 0 {
		return 0
	}
	dst := unsafe.Slice((*byte)(buf), int(max))
	return C.uint32_t(copy(dst, s))
}

func main() {}
