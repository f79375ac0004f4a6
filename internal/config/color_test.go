package config

import "testing"

func TestColorUnmarshalText(t *testing.T) {
	tests := []struct {
		in      string
		want    Color
		wantErr bool
	}{
		{"#000000", Color{0, 0, 0, 0xff}, false},
		{"#ffffff", Color{0xff, 0xff, 0xff, 0xff}, false},
		{"#1e1e2e", Color{0x1e, 0x1e, 0x2e, 0xff}, false},
		{"#1e1e2e80", Color{0x1e, 0x1e, 0x2e, 0x80}, false},
		{"  #abcdef  ", Color{0xab, 0xcd, 0xef, 0xff}, false},
		{"abcdef", Color{}, true},
		{"#abc", Color{}, true},
		{"#abcdefg", Color{}, true},
		{"#zzzzzz", Color{}, true},
		{"", Color{}, true},
	}

	for _, tt := range tests {
		var c Color
		err := c.UnmarshalText([]byte(tt.in))
		if (err != nil) != tt.wantErr {
			t.Errorf("%q: err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err == nil && c != tt.want {
			t.Errorf("%q: got %+v, want %+v", tt.in, c, tt.want)
		}
	}
}

func TestColorString(t *testing.T) {
	if got := (Color{0x1e, 0x1e, 0x2e, 0xff}).String(); got != "#1e1e2e" {
		t.Errorf("got %q", got)
	}
	if got := (Color{0x1e, 0x1e, 0x2e, 0x80}).String(); got != "#1e1e2e80" {
		t.Errorf("got %q", got)
	}
}

func TestColorRGBA(t *testing.T) {
	if got := (Color{0x12, 0x34, 0x56, 0x78}).RGBA(); got != 0x12345678 {
		t.Errorf("got %#x", got)
	}
}
