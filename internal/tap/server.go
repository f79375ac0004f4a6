// Package tap implements the Text Tap: a newline-framed JSON control channel
// over a Unix stream socket. External processes connect to list panes, inject
// input, enqueue actions, subscribe to broadcasts, and report agent
// telemetry.
//
// The server is single-threaded and cooperative: Poll runs on the controller
// tick, accepts pending connections, and drains readable bytes. Accept and
// read use a pollDeadline (1 ms) deadline, so an idle socket costs Poll at
// most that long. A slow subscriber may lose broadcasts; broadcasts are
// advisory.
package tap

import (
	"encoding/json"
	"errors"
	"net"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"pkt.systems/pslog"

	"github.com/keyvez/termania/internal/action"
)

const (
	// clientBufSize bounds the per-client line buffer. A buffer that fills
	// without a newline is discarded so one malformed client cannot starve
	// the rest.
	clientBufSize = 4 * 1024

	// broadcastWriteTimeout caps a single best-effort write to a subscriber.
	broadcastWriteTimeout = 10 * time.Millisecond

	// pollDeadline bounds each accept and read in Poll. It must be positive:
	// Go reports a deadline that has already passed as a timeout without
	// trying the accept or read at all.
	pollDeadline = time.Millisecond
)

// client is one accepted tap connection.
type client struct {
	id         string
	conn       net.Conn
	subscribed bool
	buf        []byte
}

// Server listens on a Unix stream socket and turns tap requests into queued
// actions drained by the controller.
type Server struct {
	path      string
	paneCount func() int
	log       pslog.Logger

	running  bool
	listener *net.UnixListener
	clients  []*client
	pending  []action.Action
	reads    []uint32

	readBuf []byte
}

// NewServer creates a tap server for the given socket path. paneCount
// supplies the live pane count for list_panes replies.
func NewServer(socketPath string, paneCount func() int, log pslog.Logger) *Server {
	return &Server{
		path:      socketPath,
		paneCount: paneCount,
		log:       log,
		readBuf:   make([]byte, clientBufSize),
	}
}

// SocketPath returns the configured socket path.
func (s *Server) SocketPath() string { return s.path }

// Running reports whether the listener is active.
func (s *Server) Running() bool { return s.running }

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int { return len(s.clients) }

// Start binds the socket, removing any stale file first. Calling Start on a
// running server is a no-op.
func (s *Server) Start() error {
	if s.running {
		return nil
	}
	if s.path == "" {
		return errors.New("tap: socket path is required")
	}

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	addr, err := net.ResolveUnixAddr("unix", s.path)
	if err != nil {
		return err
	}
	ln, err := net.ListenUnix("unix", addr)
	if err != nil {
		return err
	}

	s.listener = ln
	s.running = true
	s.log.Info("tap listening", "path", s.path)
	return nil
}

// Stop closes every client, closes the listener, and removes the socket
// file.
func (s *Server) Stop() {
	if !s.running {
		return
	}
	for _, c := range s.clients {
		_ = c.conn.Close()
	}
	s.clients = nil
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
	_ = os.Remove(s.path)
	s.running = false
	s.log.Info("tap stopped", "path", s.path)
}

// Poll accepts pending connections and drains readable client bytes. It
// waits at most pollDeadline on the listener and on each client, and is safe
// to call every controller tick.
func (s *Server) Poll() {
	if !s.running {
		return
	}
	s.acceptPending()

	// Reverse order so eviction by index stays valid.
	for i := len(s.clients) - 1; i >= 0; i-- {
		if !s.serviceClient(s.clients[i]) {
			s.evict(i)
		}
	}
}

// DrainActions returns the queued actions and clears the queue. Each action
// is surfaced exactly once.
func (s *Server) DrainActions() []action.Action {
	if len(s.pending) == 0 {
		return nil
	}
	drained := s.pending
	s.pending = nil
	return drained
}

// DrainReadRequests returns the queued read_pane pane indexes and clears the
// queue. The controller answers each with BroadcastPaneContent.
func (s *Server) DrainReadRequests() []uint32 {
	if len(s.reads) == 0 {
		return nil
	}
	drained := s.reads
	s.reads = nil
	return drained
}

// Broadcast writes bytes verbatim to every subscribed client. Write errors
// are swallowed.
func (s *Server) Broadcast(b []byte) {
	for _, c := range s.clients {
		if !c.subscribed {
			continue
		}
		_ = c.conn.SetWriteDeadline(time.Now().Add(broadcastWriteTimeout))
		_, _ = c.conn.Write(b)
	}
}

// paneOutput is the broadcast frame carrying captured pane content.
type paneOutput struct {
	Type    string `json:"type"`
	Pane    uint32 `json:"pane"`
	Content string `json:"content"`
}

// BroadcastPaneContent sends a pane_output frame to every subscriber. The
// content is JSON-escaped by the encoder, control bytes included.
func (s *Server) BroadcastPaneContent(pane uint32, content string) {
	frame, err := json.Marshal(paneOutput{Type: "pane_output", Pane: pane, Content: content})
	if err != nil {
		return
	}
	s.Broadcast(append(frame, '\n'))
}

func (s *Server) acceptPending() {
	for {
		_ = s.listener.SetDeadline(time.Now().Add(pollDeadline))
		conn, err := s.listener.Accept()
		if err != nil {
			// The short deadline makes Accept return with a timeout when
			// nothing is queued.
			if !isTimeout(err) {
				s.log.Debug("tap accept failed", "err", err)
			}
			return
		}
		c := &client{id: uuid.NewString(), conn: conn}
		s.clients = append(s.clients, c)
		s.log.Debug("tap client connected", "client", c.id)
	}
}

// serviceClient drains one client's readable bytes and processes complete
// lines. Returns false when the client must be evicted.
func (s *Server) serviceClient(c *client) bool {
	for {
		_ = c.conn.SetReadDeadline(time.Now().Add(pollDeadline))
		n, err := c.conn.Read(s.readBuf)
		if n > 0 {
			c.buf = append(c.buf, s.readBuf[:n]...)
			s.processLines(c)
			if len(c.buf) >= clientBufSize {
				// No newline within the bound: drop the garbage.
				s.log.Warn("tap client overflowed line buffer", "client", c.id)
				c.buf = c.buf[:0]
			}
		}
		if err != nil {
			if isTimeout(err) {
				return true
			}
			s.log.Debug("tap client gone", "client", c.id, "err", err)
			return false
		}
	}
}

func (s *Server) evict(i int) {
	c := s.clients[i]
	_ = c.conn.Close()
	s.clients = append(s.clients[:i], s.clients[i+1:]...)
}

func (s *Server) processLines(c *client) {
	for {
		nl := -1
		for i, b := range c.buf {
			if b == '\n' {
				nl = i
				break
			}
		}
		if nl < 0 {
			return
		}
		line := strings.Trim(string(c.buf[:nl]), " \t\r")
		c.buf = append(c.buf[:0], c.buf[nl+1:]...)
		if line == "" {
			continue
		}
		s.handleRequest(c, line)
	}
}

// handleRequest dispatches one JSON request line and writes the reply.
func (s *Server) handleRequest(c *client, line string) {
	req := gjson.Parse(line)
	if !req.IsObject() {
		s.log.Debug("tap request not an object", "client", c.id)
		s.reply(c, errorReply{Error: "invalid json"})
		return
	}

	switch req.Get("type").String() {
	case "subscribe":
		c.subscribed = true
		s.reply(c, statusReply{Status: "subscribed"})

	case "unsubscribe":
		c.subscribed = false
		s.reply(c, statusReply{Status: "unsubscribed"})

	case "list_panes":
		s.reply(c, paneCountReply{PaneCount: s.paneCount()})

	case "read_pane":
		pane, ok := nonNegativeInt(req.Get("pane"))
		if !ok {
			s.reply(c, errorReply{Error: "invalid read_pane"})
			return
		}
		// Content follows asynchronously as a pane_output broadcast; this
		// only acknowledges the request.
		s.reads = append(s.reads, uint32(pane))
		s.reply(c, readPaneReply{Status: "read_pane_queued", Pane: uint32(pane)})

	case "send":
		pane, ok := nonNegativeInt(req.Get("pane"))
		text := req.Get("text")
		if !ok || text.Type != gjson.String {
			s.reply(c, errorReply{Error: "invalid send"})
			return
		}
		s.enqueue(action.RawSend{Target: action.TargetPane(uint32(pane)), Bytes: text.String()})
		s.reply(c, statusReply{Status: "queued"})

	case "send_all":
		text := req.Get("text")
		if text.Type != gjson.String {
			s.reply(c, errorReply{Error: "invalid send_all"})
			return
		}
		s.enqueue(action.RawSend{Target: action.TargetAll(), Bytes: text.String()})
		s.reply(c, statusReply{Status: "queued"})

	case "action":
		a, ok := action.Build(req.Get("action").String(), req)
		if !ok {
			s.reply(c, errorReply{Error: "invalid action"})
			return
		}
		s.enqueue(a)
		s.reply(c, statusReply{Status: "queued"})

	case "context_update":
		a, ok := parseContextUpdate(req.Get("payload"))
		if !ok {
			s.reply(c, errorReply{Error: "invalid context_update"})
			return
		}
		s.enqueue(a)
		s.reply(c, statusReply{Status: "queued"})

	default:
		s.reply(c, errorReply{Error: "unknown command"})
	}
}

// parseContextUpdate maps a Claude-Code-style hook payload to a ContextUsage
// action. The payload carries token counts under context_window plus a
// session id and the firing hook's name.
func parseContextUpdate(payload gjson.Result) (action.Action, bool) {
	if !payload.IsObject() {
		return nil, false
	}
	window := payload.Get("context_window")

	used, _ := nonNegativeInt(window.Get("used"))
	total, _ := nonNegativeInt(window.Get("total"))
	pct, _ := nonNegativeInt(window.Get("used_percentage"))

	return action.ContextUsage{
		UsedTokens:   used,
		TotalTokens:  total,
		Percentage:   action.ClampPercentage(pct),
		SessionID:    payload.Get("session_id").String(),
		IsPreCompact: payload.Get("hook_type").String() == "PreCompact",
	}, true
}

func (s *Server) enqueue(a action.Action) {
	s.pending = append(s.pending, a)
}

type statusReply struct {
	Status string `json:"status"`
}

type paneCountReply struct {
	PaneCount int `json:"pane_count"`
}

type readPaneReply struct {
	Status string `json:"status"`
	Pane   uint32 `json:"pane"`
}

type errorReply struct {
	Error string `json:"error"`
}

func (s *Server) reply(c *client, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(broadcastWriteTimeout))
	_, _ = c.conn.Write(append(b, '\n'))
}

// nonNegativeInt reads a JSON number as a non-negative integer.
func nonNegativeInt(r gjson.Result) (uint64, bool) {
	if r.Type != gjson.Number || r.Int() < 0 {
		return 0, false
	}
	return r.Uint(), true
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
