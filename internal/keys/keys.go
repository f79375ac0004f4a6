// Package keys translates raw GUI key events into terminal input bytes
// following xterm conventions. The encoding table is fixed; the frontend
// sends a one-byte key code plus a modifier byte, and Encode produces the
// byte sequence (at most eight bytes) written to the focused PTY.
package keys

// KeyCode identifies a key. Printable keys use their unshifted ASCII value;
// named keys occupy the range above 0x7F.
type KeyCode byte

// Named key codes.
const (
	KeyEnter KeyCode = 0x80 + iota
	KeyTab
	KeyEscape
	KeyBackspace
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
	KeyHome
	KeyEnd
	KeyPageUp
	KeyPageDown
	KeyInsert
	KeyDelete
	KeyF1
	KeyF2
	KeyF3
	KeyF4
	KeyF5
	KeyF6
	KeyF7
	KeyF8
	KeyF9
	KeyF10
	KeyF11
	KeyF12
)

// Modifier bits of the wire-format modifier byte.
const (
	ModCtrl  = 1 << 0
	ModAlt   = 1 << 1
	ModShift = 1 << 2
	ModSuper = 1 << 3
)

// Event is a decoded key press.
type Event struct {
	Key   KeyCode
	Ctrl  bool
	Alt   bool
	Shift bool
	Super bool
}

// DecodeRaw unpacks the two-byte wire form used by the C ABI.
func DecodeRaw(key, mods byte) Event {
	return Event{
		Key:   KeyCode(key),
		Ctrl:  mods&ModCtrl != 0,
		Alt:   mods&ModAlt != 0,
		Shift: mods&ModShift != 0,
		Super: mods&ModSuper != 0,
	}
}

const esc = 0x1B

// xtermMod computes the modifier parameter of CSI sequences:
// 1 + shift + 2*alt + 4*ctrl.
func xtermMod(e Event) byte {
	m := byte(1)
	if e.Shift {
		m++
	}
	if e.Alt {
		m += 2
	}
	if e.Ctrl {
		m += 4
	}
	return m
}

func hasMods(e Event) bool { return e.Ctrl || e.Alt || e.Shift }

// Encode renders an event as terminal input bytes. It returns nil for events
// with no terminal representation (codes outside the named keys and printable
// ASCII). The Super modifier is ignored.
func Encode(e Event) []byte {
	switch e.Key {
	case KeyEnter:
		return []byte{'\r'}
	case KeyTab:
		if e.Shift {
			return []byte{esc, '[', 'Z'}
		}
		return []byte{'\t'}
	case KeyEscape:
		return []byte{esc}
	case KeyBackspace:
		if e.Ctrl {
			return []byte{0x08}
		}
		if e.Alt {
			return []byte{esc, 0x7F}
		}
		return []byte{0x7F}
	case KeyUp, KeyDown, KeyRight, KeyLeft:
		letter := map[KeyCode]byte{KeyUp: 'A', KeyDown: 'B', KeyRight: 'C', KeyLeft: 'D'}[e.Key]
		return csiLetter(e, letter)
	case KeyHome:
		return csiLetter(e, 'H')
	case KeyEnd:
		return csiLetter(e, 'F')
	case KeyPageUp:
		return csiTilde(e, '5')
	case KeyPageDown:
		return csiTilde(e, '6')
	case KeyInsert:
		return csiTilde(e, '2')
	case KeyDelete:
		return csiTilde(e, '3')
	case KeyF1, KeyF2, KeyF3, KeyF4:
		letter := byte('P' + (e.Key - KeyF1))
		if hasMods(e) {
			return []byte{esc, '[', '1', ';', '0' + xtermMod(e), letter}
		}
		return []byte{esc, 'O', letter}
	case KeyF5, KeyF6, KeyF7, KeyF8, KeyF9, KeyF10, KeyF11, KeyF12:
		vt := [...]string{"15", "17", "18", "19", "20", "21", "23", "24"}[e.Key-KeyF5]
		seq := append([]byte{esc, '['}, vt...)
		if hasMods(e) {
			seq = append(seq, ';', '0'+xtermMod(e))
		}
		return append(seq, '~')
	}

	ch := byte(e.Key)
	if ch < 0x20 || ch > 0x7E {
		return nil
	}

	// Ctrl+letter collapses to the C0 control byte.
	if e.Ctrl && ch >= 'a' && ch <= 'z' {
		ctrl := ch - 'a' + 1
		if e.Alt {
			return []byte{esc, ctrl}
		}
		return []byte{ctrl}
	}

	if e.Shift {
		ch = shiftASCII(ch)
	}
	if e.Alt {
		return []byte{esc, ch}
	}
	return []byte{ch}
}

// csiLetter emits ESC [ <letter>, or ESC [ 1 ; <m> <letter> when modified.
func csiLetter(e Event, letter byte) []byte {
	if hasMods(e) {
		return []byte{esc, '[', '1', ';', '0' + xtermMod(e), letter}
	}
	return []byte{esc, '[', letter}
}

// csiTilde emits ESC [ <n> ~, or ESC [ <n> ; <m> ~ when modified.
func csiTilde(e Event, n byte) []byte {
	if hasMods(e) {
		return []byte{esc, '[', n, ';', '0' + xtermMod(e), '~'}
	}
	return []byte{esc, '[', n, '~'}
}

// shiftASCII applies the US-QWERTY shift layer.
func shiftASCII(ch byte) byte {
	if ch >= 'a' && ch <= 'z' {
		return ch - 'a' + 'A'
	}
	switch ch {
	case '1':
		return '!'
	case '2':
		return '@'
	case '3':
		return '#'
	case '4':
		return '$'
	case '5':
		return '%'
	case '6':
		return '^'
	case '7':
		return '&'
	case '8':
		return '*'
	case '9':
		return '('
	case '0':
		return ')'
	case '-':
		return '_'
	case '=':
		return '+'
	case '[':
		return '{'
	case ']':
		return '}'
	case '\\':
		return '|'
	case ';':
		return ':'
	case '\'':
		return '"'
	case ',':
		return '<'
	case '.':
		return '>'
	case '/':
		return '?'
	case '`':
		return '~'
	}
	return ch
}
