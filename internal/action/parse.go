package action

import (
	"errors"
	"strings"

	"github.com/tidwall/gjson"
)

// Parse errors. A malformed item inside the actions array is never an error;
// only a missing or mistyped envelope is.
var (
	// ErrNotObject means the input was not a JSON object at the root.
	ErrNotObject = errors.New("response root is not a JSON object")
	// ErrNoActionsField means the root object has no "actions" field.
	ErrNoActionsField = errors.New("response has no \"actions\" field")
	// ErrInvalidActions means "actions" is present but not an array.
	ErrInvalidActions = errors.New("\"actions\" field is not an array")
)

// Response is the parsed form of an LLM reply or any other action batch:
// free-text explanation plus the recognized actions, in order.
type Response struct {
	Explanation string
	Actions     []Action
}

// ExtractJSON locates a JSON object inside possibly-fenced text. Tried in
// order: the whole trimmed input, a ```json fence, a generic ``` fence whose
// body starts with '{', and finally the substring from the first '{' to the
// last '}'. Returns false when no candidate is found.
func ExtractJSON(text string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "{") {
		return trimmed, true
	}

	if inner, ok := extractFence(trimmed, "```json"); ok {
		return inner, true
	}
	if inner, ok := extractFence(trimmed, "```"); ok {
		if strings.HasPrefix(inner, "{") {
			return inner, true
		}
	}

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start >= 0 && end > start {
		return trimmed[start : end+1], true
	}
	return "", false
}

// extractFence returns the trimmed body of the first fence opened by marker.
// For the generic "```" marker the language-tag line (if any) is skipped.
func extractFence(text, marker string) (string, bool) {
	start := strings.Index(text, marker)
	if start < 0 {
		return "", false
	}
	body := text[start+len(marker):]
	if marker == "```" {
		// Skip a language tag on the opening line.
		if nl := strings.Index(body, "\n"); nl >= 0 {
			first := strings.TrimSpace(body[:nl])
			if first != "" && !strings.HasPrefix(first, "{") {
				body = body[nl+1:]
			}
		}
	}
	end := strings.Index(body, "```")
	if end < 0 {
		return "", false
	}
	return strings.TrimSpace(body[:end]), true
}

// ParseActions parses a JSON object of the form
//
//	{"explanation": "...", "actions": [{"type": "...", ...}, ...]}
//
// into a Response. Items that are not objects, have no string "type", name an
// unknown type, or are missing required fields are skipped: one bad action in
// a batch must not discard the rest.
func ParseActions(jsonText string) (*Response, error) {
	root := gjson.Parse(jsonText)
	if !root.IsObject() {
		return nil, ErrNotObject
	}

	resp := &Response{}
	if expl := root.Get("explanation"); expl.Type == gjson.String {
		resp.Explanation = expl.String()
	}

	items := root.Get("actions")
	if !items.Exists() {
		return nil, ErrNoActionsField
	}
	if !items.IsArray() {
		return nil, ErrInvalidActions
	}

	items.ForEach(func(_, item gjson.Result) bool {
		if !item.IsObject() {
			return true
		}
		typ := item.Get("type")
		if typ.Type != gjson.String {
			return true
		}
		build, ok := actionTable[typ.String()]
		if !ok {
			return true
		}
		if a, ok := build(item); ok {
			resp.Actions = append(resp.Actions, a)
		}
		return true
	})

	return resp, nil
}

// Build constructs a single action of the named type from a JSON object
// carrying the variant's fields. It returns false for unknown types or
// missing required fields. The Text Tap uses this for its "action" requests,
// where the discriminator key differs from the batch form.
func Build(typ string, o gjson.Result) (Action, bool) {
	build, ok := actionTable[typ]
	if !ok {
		return nil, false
	}
	return build(o)
}

// actionTable maps the "type" discriminator to a variant constructor. Each
// constructor returns false when a required field is missing or malformed,
// which skips the item.
var actionTable = map[string]func(gjson.Result) (Action, bool){
	"send_command": func(o gjson.Result) (Action, bool) {
		pane, ok := uintField(o, "pane")
		if !ok {
			return nil, false
		}
		cmd, ok := strField(o, "command")
		if !ok {
			return nil, false
		}
		return SendCommand{Pane: uint32(pane), Command: cmd}, true
	},
	"send_to_all": func(o gjson.Result) (Action, bool) {
		cmd, ok := strField(o, "command")
		if !ok {
			return nil, false
		}
		return SendToAll{Command: cmd}, true
	},
	"set_title": func(o gjson.Result) (Action, bool) {
		pane, ok := uintField(o, "pane")
		if !ok {
			return nil, false
		}
		title, ok := strField(o, "title")
		if !ok {
			return nil, false
		}
		return SetTitle{Pane: uint32(pane), Title: title}, true
	},
	"set_watermark": func(o gjson.Result) (Action, bool) {
		pane, ok := uintField(o, "pane")
		if !ok {
			return nil, false
		}
		wm, ok := strField(o, "watermark")
		if !ok {
			return nil, false
		}
		return SetWatermark{Pane: uint32(pane), Watermark: wm}, true
	},
	"clear_watermark": func(o gjson.Result) (Action, bool) {
		pane, ok := uintField(o, "pane")
		if !ok {
			return nil, false
		}
		return ClearWatermark{Pane: uint32(pane)}, true
	},
	"navigate": func(o gjson.Result) (Action, bool) {
		pane, ok := uintField(o, "pane")
		if !ok {
			return nil, false
		}
		url, ok := strField(o, "url")
		if !ok {
			return nil, false
		}
		return Navigate{Pane: uint32(pane), URL: url}, true
	},
	"set_content": func(o gjson.Result) (Action, bool) {
		pane, ok := uintField(o, "pane")
		if !ok {
			return nil, false
		}
		content, ok := strField(o, "content")
		if !ok {
			return nil, false
		}
		return SetContent{Pane: uint32(pane), Content: content}, true
	},
	"spawn_pane": func(o gjson.Result) (Action, bool) {
		sp := SpawnPane{PaneType: optStr(o, "pane_type", "terminal"), Row: -1}
		sp.Title = optStr(o, "title", "")
		sp.Command = optStr(o, "command", "")
		sp.Cwd = optStr(o, "cwd", "")
		sp.URL = optStr(o, "url", "")
		sp.Content = optStr(o, "content", "")
		sp.Watermark = optStr(o, "watermark", "")
		if row, ok := uintField(o, "row"); ok {
			sp.Row = int(row)
		}
		return sp, true
	},
	"close_pane": func(o gjson.Result) (Action, bool) {
		pane, ok := uintField(o, "pane")
		if !ok {
			return nil, false
		}
		return ClosePane{Pane: uint32(pane)}, true
	},
	"replace_pane": func(o gjson.Result) (Action, bool) {
		pane, ok := uintField(o, "pane")
		if !ok {
			return nil, false
		}
		rp := ReplacePane{Pane: uint32(pane), PaneType: optStr(o, "pane_type", "terminal")}
		rp.Title = optStr(o, "title", "")
		rp.Command = optStr(o, "command", "")
		rp.Cwd = optStr(o, "cwd", "")
		rp.URL = optStr(o, "url", "")
		rp.Content = optStr(o, "content", "")
		rp.Watermark = optStr(o, "watermark", "")
		return rp, true
	},
	"swap_panes": func(o gjson.Result) (Action, bool) {
		a, ok := uintField(o, "a")
		if !ok {
			return nil, false
		}
		b, ok := uintField(o, "b")
		if !ok {
			return nil, false
		}
		return SwapPanes{A: uint32(a), B: uint32(b)}, true
	},
	"focus_pane": func(o gjson.Result) (Action, bool) {
		pane, ok := uintField(o, "pane")
		if !ok {
			return nil, false
		}
		return FocusPane{Pane: uint32(pane)}, true
	},
	"message": func(o gjson.Result) (Action, bool) {
		text, ok := strField(o, "text")
		if !ok {
			return nil, false
		}
		return Message{Text: text}, true
	},
	"notify": func(o gjson.Result) (Action, bool) {
		title, ok := strField(o, "title")
		if !ok {
			return nil, false
		}
		body, ok := strField(o, "body")
		if !ok {
			return nil, false
		}
		return Notify{Title: title, Body: body}, true
	},
	"context_usage": func(o gjson.Result) (Action, bool) {
		used, ok := uintField(o, "used_tokens")
		if !ok {
			return nil, false
		}
		total, ok := uintField(o, "total_tokens")
		if !ok {
			return nil, false
		}
		pct, ok := uintField(o, "percentage")
		if !ok {
			return nil, false
		}
		return ContextUsage{
			UsedTokens:   used,
			TotalTokens:  total,
			Percentage:   ClampPercentage(pct),
			SessionID:    optStr(o, "session_id", ""),
			IsPreCompact: o.Get("is_pre_compact").Bool(),
		}, true
	},
}

// ClampPercentage narrows a parsed percentage to the 0..100 range.
func ClampPercentage(v uint64) uint8 {
	if v > 100 {
		return 100
	}
	return uint8(v)
}

// uintField reads a required non-negative integer field. Negative values are
// treated as missing.
func uintField(o gjson.Result, key string) (uint64, bool) {
	f := o.Get(key)
	if f.Type != gjson.Number {
		return 0, false
	}
	if f.Int() < 0 {
		return 0, false
	}
	return f.Uint(), true
}

// strField reads a required string field.
func strField(o gjson.Result, key string) (string, bool) {
	f := o.Get(key)
	if f.Type != gjson.String {
		return "", false
	}
	return f.String(), true
}

// optStr reads an optional string field with a default.
func optStr(o gjson.Result, key, def string) string {
	f := o.Get(key)
	if f.Type != gjson.String {
		return def
	}
	return f.String()
}
