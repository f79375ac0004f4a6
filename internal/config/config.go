// Package config loads termania configuration from TOML and environment.
//
// Precedence (highest to lowest):
//  1. Environment variables (TERMANIA_*)
//  2. Config file
//  3. Built-in defaults
//
// Unknown sections and keys are ignored so older binaries accept newer
// files.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// DefaultTapSocket is the tap socket path used when none is configured.
const DefaultTapSocket = "/tmp/termania.sock"

// Config is the full application configuration.
type Config struct {
	Font    Font      `toml:"font"`
	Grid    Grid      `toml:"grid"`
	Window  Window    `toml:"window"`
	Colors  Colors    `toml:"colors"`
	TextTap TextTap   `toml:"text_tap"`
	LLM     LLM       `toml:"llm"`
	OTEL    OTEL      `toml:"otel"`
	Panes   []Pane    `toml:"panes"`
	Session []Session `toml:"sessions"`
}

// Font describes the renderer font.
type Font struct {
	Family string  `toml:"family"`
	Size   float64 `toml:"size"`
}

// Grid is the initial pane grid shape.
type Grid struct {
	Rows int `toml:"rows"`
	Cols int `toml:"cols"`
}

// Window is the initial window geometry.
type Window struct {
	Title  string `toml:"title"`
	Width  int    `toml:"width"`
	Height int    `toml:"height"`
}

// Colors is the renderer palette.
type Colors struct {
	Background    Color `toml:"background"`
	Foreground    Color `toml:"foreground"`
	Cursor        Color `toml:"cursor"`
	Border        Color `toml:"border"`
	BorderFocused Color `toml:"border_focused"`
	TitleBar      Color `toml:"title_bar"`
	Watermark     Color `toml:"watermark"`
}

// TextTap configures the control socket.
type TextTap struct {
	Enabled    bool   `toml:"enabled"`
	SocketPath string `toml:"socket_path"`
}

// LLM configures the assistant client.
type LLM struct {
	Provider     string `toml:"provider"`
	APIKey       string `toml:"api_key"`
	Model        string `toml:"model"`
	BaseURL      string `toml:"base_url"`
	MaxTokens    int64  `toml:"max_tokens"`
	SystemPrompt string `toml:"system_prompt"`
}

// OTEL configures trace and metric export.
type OTEL struct {
	// Endpoint is the OTLP HTTP endpoint. Empty disables export.
	Endpoint string `toml:"endpoint"`
	// Headers is a comma-separated key=value list, e.g.
	// "Authorization=Basic abc123".
	Headers string `toml:"headers"`
}

// Pane describes one pane at startup.
type Pane struct {
	Type            string   `toml:"type"`
	Title           string   `toml:"title"`
	Command         string   `toml:"command"`
	Cwd             string   `toml:"cwd"`
	URL             string   `toml:"url"`
	Content         string   `toml:"content"`
	Watermark       string   `toml:"watermark"`
	InitialCommands []string `toml:"initial_commands"`
}

// Session is a named pane arrangement. Its top-level title, rows, and cols
// override the window and grid sections when the session is applied.
type Session struct {
	Name  string `toml:"name"`
	Title string `toml:"title"`
	Rows  int    `toml:"rows"`
	Cols  int    `toml:"cols"`
	Panes []Pane `toml:"panes"`
}

// Defaults returns a Config with all default values.
func Defaults() *Config {
	return &Config{
		Font:   Font{Family: "monospace", Size: 14},
		Grid:   Grid{Rows: 2, Cols: 2},
		Window: Window{Title: "termania", Width: 1280, Height: 800},
		Colors: Colors{
			Background:    Color{R: 0x1e, G: 0x1e, B: 0x2e, A: 0xff},
			Foreground:    Color{R: 0xcd, G: 0xd6, B: 0xf4, A: 0xff},
			Cursor:        Color{R: 0xf5, G: 0xe0, B: 0xdc, A: 0xff},
			Border:        Color{R: 0x45, G: 0x47, B: 0x5a, A: 0xff},
			BorderFocused: Color{R: 0x89, G: 0xb4, B: 0xfa, A: 0xff},
			TitleBar:      Color{R: 0x31, G: 0x32, B: 0x44, A: 0xff},
			Watermark:     Color{R: 0x6c, G: 0x70, B: 0x86, A: 0x40},
		},
		TextTap: TextTap{Enabled: true, SocketPath: DefaultTapSocket},
		LLM:     LLM{Provider: "anthropic", MaxTokens: 4096},
	}
}

// Load reads the TOML file at path, layers it over the defaults, and applies
// environment overrides. A missing file is an error; use Defaults directly
// when running without one.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	cfg, err := LoadBytes(data)
	if err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadBytes parses TOML config data over the defaults and applies
// environment overrides.
func LoadBytes(data []byte) (*Config, error) {
	cfg := Defaults()
	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, err
	}
	mergeEnv(cfg)
	cfg.fillKeyFromEnv()
	return cfg, nil
}

// ApplySession overlays the named session onto the config: its title, rows,
// and cols (when set) replace the window and grid values, and its panes
// replace the top-level pane list. Returns false when no session matches.
func (c *Config) ApplySession(name string) bool {
	for _, s := range c.Session {
		if s.Name != name {
			continue
		}
		if s.Title != "" {
			c.Window.Title = s.Title
		}
		if s.Rows > 0 {
			c.Grid.Rows = s.Rows
		}
		if s.Cols > 0 {
			c.Grid.Cols = s.Cols
		}
		if len(s.Panes) > 0 {
			c.Panes = s.Panes
		}
		return true
	}
	return false
}

// mergeEnv applies environment variables onto cfg. Env always wins.
func mergeEnv(cfg *Config) {
	if v := os.Getenv("TERMANIA_TAP_SOCKET"); v != "" {
		cfg.TextTap.SocketPath = v
	}
	if v := os.Getenv("TERMANIA_LLM_PROVIDER"); v != "" {
		cfg.LLM.Provider = v
	}
	if v := os.Getenv("TERMANIA_LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("TERMANIA_LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("TERMANIA_LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("TERMANIA_OTEL_ENDPOINT"); v != "" {
		cfg.OTEL.Endpoint = v
	}
}

// fillKeyFromEnv falls back to the provider SDK's conventional key variable
// when no key is configured.
func (c *Config) fillKeyFromEnv() {
	if c.LLM.APIKey != "" {
		return
	}
	switch strings.ToLower(c.LLM.Provider) {
	case "anthropic", "claude":
		c.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	default:
		c.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	}
}
