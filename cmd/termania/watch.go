package main

import (
	"bufio"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// maxWatchLines bounds the scrollback kept by the watch TUI.
const maxWatchLines = 500

var (
	watchTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	watchPaneStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	watchDimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	watchErrStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

var tapWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "subscribe to broadcasts and display them live",
	RunE: func(cmd *cobra.Command, args []string) error {
		conn, err := net.Dial("unix", flagSocket)
		if err != nil {
			return fmt.Errorf("dialing %s: %w", flagSocket, err)
		}
		defer conn.Close()

		if _, err := conn.Write([]byte(`{"type":"subscribe"}` + "\n")); err != nil {
			return err
		}

		frames := make(chan string, 64)
		go func() {
			defer close(frames)
			sc := bufio.NewScanner(conn)
			sc.Buffer(make([]byte, 64*1024), 1024*1024)
			for sc.Scan() {
				frames <- sc.Text()
			}
		}()

		ti := textinput.New()
		ti.Placeholder = "pane:text, e.g. 0:ls -la"
		ti.CharLimit = 2048
		ti.Width = 80

		m := watchModel{frames: frames, socket: flagSocket, conn: conn, input: ti}
		_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
		return err
	},
}

// frameMsg carries one broadcast line; a closed channel yields eofMsg.
type frameMsg string
type eofMsg struct{}

type watchModel struct {
	frames chan string
	socket string
	conn   net.Conn

	input    textinput.Model
	inputing bool

	lines  []string
	count  int
	closed bool
	width  int
	height int
}

func (m watchModel) Init() tea.Cmd {
	return m.waitForFrame()
}

func (m watchModel) waitForFrame() tea.Cmd {
	return func() tea.Msg {
		line, ok := <-m.frames
		if !ok {
			return eofMsg{}
		}
		return frameMsg(line)
	}
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.inputing {
			return m.handleInputKey(msg)
		}
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "s":
			m.inputing = true
			m.input.SetValue("")
			m.input.Focus()
			return m, textinput.Blink
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case frameMsg:
		m.append(string(msg))
		return m, m.waitForFrame()
	case eofMsg:
		m.closed = true
	}
	return m, nil
}

func (m watchModel) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.inputing = false
		m.input.Blur()
		return m, nil
	case "enter":
		value := m.input.Value()
		m.inputing = false
		m.input.Blur()
		m.send(value)
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// send parses "pane:text" and queues a send request on the tap socket.
func (m *watchModel) send(value string) {
	paneStr, text, ok := strings.Cut(value, ":")
	if !ok {
		m.lines = append(m.lines, watchErrStyle.Render("send: expected pane:text"))
		return
	}
	pane, err := strconv.Atoi(strings.TrimSpace(paneStr))
	if err != nil || pane < 0 {
		m.lines = append(m.lines, watchErrStyle.Render("send: bad pane index"))
		return
	}

	req, _ := sjson.Set(`{"type":"send"}`, "pane", pane)
	req, _ = sjson.Set(req, "text", text+"\r")
	if _, err := m.conn.Write([]byte(req + "\n")); err != nil {
		m.lines = append(m.lines, watchErrStyle.Render("send: "+err.Error()))
		return
	}
	m.lines = append(m.lines, watchDimStyle.Render(fmt.Sprintf("sent to pane %d: %s", pane, text)))
}

// append renders one broadcast frame into display lines.
func (m *watchModel) append(raw string) {
	m.count++
	frame := gjson.Parse(raw)
	switch frame.Get("type").String() {
	case "pane_output":
		pane := frame.Get("pane").Int()
		header := watchPaneStyle.Render(fmt.Sprintf("── pane %d ──", pane))
		m.lines = append(m.lines, header)
		for _, l := range strings.Split(frame.Get("content").String(), "\n") {
			m.lines = append(m.lines, l)
		}
	default:
		m.lines = append(m.lines, watchDimStyle.Render(raw))
	}
	if len(m.lines) > maxWatchLines {
		m.lines = m.lines[len(m.lines)-maxWatchLines:]
	}
}

func (m watchModel) View() string {
	var b strings.Builder
	b.WriteString(watchTitleStyle.Render("termania tap watch"))
	b.WriteString(watchDimStyle.Render(fmt.Sprintf("  %s  (%d frames, q quit, s send)", m.socket, m.count)))
	b.WriteString("\n\n")

	reserved := 4
	if m.inputing {
		reserved = 6
	}
	visible := m.lines
	if m.height > reserved && len(visible) > m.height-reserved {
		visible = visible[len(visible)-(m.height-reserved):]
	}
	for _, l := range visible {
		b.WriteString(l)
		b.WriteString("\n")
	}
	if m.inputing {
		b.WriteString("\n")
		b.WriteString(m.input.View())
		b.WriteString("\n")
	}
	if m.closed {
		b.WriteString(watchErrStyle.Render("\nconnection closed"))
	}
	return b.String()
}
