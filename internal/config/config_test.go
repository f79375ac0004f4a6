package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if cfg.Grid.Rows != 2 || cfg.Grid.Cols != 2 {
		t.Errorf("grid: got %dx%d, want 2x2", cfg.Grid.Rows, cfg.Grid.Cols)
	}
	if cfg.Window.Title != "termania" || cfg.Window.Width != 1280 || cfg.Window.Height != 800 {
		t.Errorf("window: got %+v", cfg.Window)
	}
	if !cfg.TextTap.Enabled || cfg.TextTap.SocketPath != DefaultTapSocket {
		t.Errorf("tap: got %+v", cfg.TextTap)
	}
	if cfg.LLM.Provider != "anthropic" || cfg.LLM.MaxTokens != 4096 {
		t.Errorf("llm: got %+v", cfg.LLM)
	}
	if cfg.Colors.Background.A != 0xff {
		t.Errorf("background alpha: got %#x", cfg.Colors.Background.A)
	}
}

func TestLoadBytes(t *testing.T) {
	data := []byte(`
[font]
family = "JetBrains Mono"
size = 16.0

[grid]
rows = 3
cols = 1

[window]
title = "work"

[colors]
background = "#101010"
watermark = "#6c708640"

[text_tap]
enabled = false
socket_path = "/run/t.sock"

[llm]
provider = "openai"
model = "gpt-4o"
base_url = "http://localhost:11434/v1"

[otel]
endpoint = "http://localhost:4318"

[[panes]]
type = "terminal"
title = "shell"
command = "bash"
initial_commands = ["cd /tmp", "ls"]

[[panes]]
type = "notes"
title = "scratch"
`)

	cfg, err := LoadBytes(data)
	if err != nil {
		t.Fatalf("LoadBytes: %v", err)
	}

	if cfg.Font.Family != "JetBrains Mono" || cfg.Font.Size != 16 {
		t.Errorf("font: got %+v", cfg.Font)
	}
	if cfg.Grid.Rows != 3 || cfg.Grid.Cols != 1 {
		t.Errorf("grid: got %+v", cfg.Grid)
	}
	if cfg.Window.Title != "work" {
		t.Errorf("title: got %q", cfg.Window.Title)
	}
	// Unset window fields keep their defaults.
	if cfg.Window.Width != 1280 {
		t.Errorf("width: got %d, want default 1280", cfg.Window.Width)
	}

	if got := cfg.Colors.Background; got != (Color{R: 0x10, G: 0x10, B: 0x10, A: 0xff}) {
		t.Errorf("background: got %+v", got)
	}
	if got := cfg.Colors.Watermark; got != (Color{R: 0x6c, G: 0x70, B: 0x86, A: 0x40}) {
		t.Errorf("watermark: got %+v", got)
	}

	if cfg.TextTap.Enabled || cfg.TextTap.SocketPath != "/run/t.sock" {
		t.Errorf("tap: got %+v", cfg.TextTap)
	}
	if cfg.LLM.Provider != "openai" || cfg.LLM.Model != "gpt-4o" {
		t.Errorf("llm: got %+v", cfg.LLM)
	}
	if cfg.OTEL.Endpoint != "http://localhost:4318" {
		t.Errorf("otel: got %+v", cfg.OTEL)
	}

	if len(cfg.Panes) != 2 {
		t.Fatalf("panes: got %d, want 2", len(cfg.Panes))
	}
	p := cfg.Panes[0]
	if p.Type != "terminal" || p.Command != "bash" || len(p.InitialCommands) != 2 {
		t.Errorf("pane 0: got %+v", p)
	}
}

func TestLoadBytesUnknownKeysIgnored(t *testing.T) {
	data := []byte(`
[grid]
rows = 5
hyperdrive = true

[flux_capacitor]
gigawatts = 1.21
`)
	cfg, err := LoadBytes(data)
	if err != nil {
		t.Fatalf("LoadBytes: %v", err)
	}
	if cfg.Grid.Rows != 5 {
		t.Errorf("rows: got %d, want 5", cfg.Grid.Rows)
	}
}

func TestLoadBytesInvalidToml(t *testing.T) {
	if _, err := LoadBytes([]byte(`grid = [unclosed`)); err == nil {
		t.Error("invalid TOML accepted")
	}
	if _, err := LoadBytes([]byte("[colors]\nbackground = \"red\"\n")); err == nil {
		t.Error("invalid color accepted")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "termania.toml")
	if err := os.WriteFile(path, []byte("[window]\ntitle = \"from file\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Window.Title != "from file" {
		t.Errorf("title: got %q", cfg.Window.Title)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("missing file accepted")
	}
}

func TestApplySession(t *testing.T) {
	cfg := Defaults()
	cfg.Session = []Session{
		{Name: "dev", Title: "dev session", Rows: 1, Cols: 3, Panes: []Pane{{Type: "terminal"}}},
		{Name: "minimal"},
	}

	if !cfg.ApplySession("dev") {
		t.Fatal("ApplySession(dev) = false")
	}
	if cfg.Window.Title != "dev session" {
		t.Errorf("title: got %q", cfg.Window.Title)
	}
	if cfg.Grid.Rows != 1 || cfg.Grid.Cols != 3 {
		t.Errorf("grid: got %+v", cfg.Grid)
	}
	if len(cfg.Panes) != 1 {
		t.Errorf("panes: got %d, want 1", len(cfg.Panes))
	}

	// A session with no overrides leaves everything alone.
	before := cfg.Grid
	if !cfg.ApplySession("minimal") {
		t.Fatal("ApplySession(minimal) = false")
	}
	if cfg.Grid != before {
		t.Errorf("grid changed: got %+v", cfg.Grid)
	}

	if cfg.ApplySession("nope") {
		t.Error("ApplySession(nope) = true")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TERMANIA_TAP_SOCKET", "/env/tap.sock")
	t.Setenv("TERMANIA_LLM_PROVIDER", "openai")
	t.Setenv("TERMANIA_LLM_MODEL", "gpt-env")
	t.Setenv("TERMANIA_LLM_BASE_URL", "http://env:9999/v1")
	t.Setenv("TERMANIA_OTEL_ENDPOINT", "http://env:4318")

	cfg, err := LoadBytes([]byte(`
[text_tap]
socket_path = "/file/tap.sock"

[llm]
provider = "anthropic"
`))
	if err != nil {
		t.Fatalf("LoadBytes: %v", err)
	}

	if cfg.TextTap.SocketPath != "/env/tap.sock" {
		t.Errorf("socket: got %q", cfg.TextTap.SocketPath)
	}
	if cfg.LLM.Provider != "openai" || cfg.LLM.Model != "gpt-env" {
		t.Errorf("llm: got %+v", cfg.LLM)
	}
	if cfg.LLM.BaseURL != "http://env:9999/v1" {
		t.Errorf("base url: got %q", cfg.LLM.BaseURL)
	}
	if cfg.OTEL.Endpoint != "http://env:4318" {
		t.Errorf("otel: got %q", cfg.OTEL.Endpoint)
	}
}

func TestAPIKeyFallback(t *testing.T) {
	t.Setenv("TERMANIA_LLM_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test")
	t.Setenv("OPENAI_API_KEY", "sk-oai-test")

	cfg, err := LoadBytes([]byte("[llm]\nprovider = \"anthropic\"\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LLM.APIKey != "sk-ant-test" {
		t.Errorf("anthropic key: got %q", cfg.LLM.APIKey)
	}

	cfg, err = LoadBytes([]byte("[llm]\nprovider = \"openai\"\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LLM.APIKey != "sk-oai-test" {
		t.Errorf("openai key: got %q", cfg.LLM.APIKey)
	}

	// A key in the file wins over the SDK variable.
	cfg, err = LoadBytes([]byte("[llm]\nprovider = \"anthropic\"\napi_key = \"from-file\"\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LLM.APIKey != "from-file" {
		t.Errorf("file key: got %q", cfg.LLM.APIKey)
	}

	// TERMANIA_LLM_API_KEY beats both.
	t.Setenv("TERMANIA_LLM_API_KEY", "from-env")
	cfg, err = LoadBytes([]byte("[llm]\napi_key = \"from-file\"\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LLM.APIKey != "from-env" {
		t.Errorf("env key: got %q", cfg.LLM.APIKey)
	}
}
