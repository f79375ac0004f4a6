// Package llm implements the assistant client: a dual-provider chat caller
// (Anthropic Messages or OpenAI Chat Completions) driven as a three-state
// machine by the controller. Submit stores a prompt, Poll performs the HTTP
// call synchronously, Execute releases the held response.
package llm

import (
	"context"
	"strings"

	"pkt.systems/pslog"

	"github.com/keyvez/termania/internal/action"
)

// Default models per provider family.
const (
	DefaultAnthropicModel = "claude-sonnet-4-5"
	DefaultOpenAIModel    = "gpt-4o-mini"

	defaultMaxTokens = 4096
)

// Status is the client's lifecycle state.
type Status int

const (
	// Idle means no request is pending and no call is owed.
	Idle Status = iota
	// Waiting means a prompt has been submitted and Poll has not yet
	// completed the HTTP round trip.
	Waiting
	// Error means the last call failed; LastError carries the reason.
	Error
)

// String returns the lowercase status name.
func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Waiting:
		return "waiting"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Config selects and parameterizes the provider backend.
type Config struct {
	// Provider is matched lowercased: "anthropic" and "claude" pick the
	// Anthropic Messages API; everything else (openai, ollama, lmstudio,
	// custom, empty) is treated as OpenAI-compatible.
	Provider string
	// APIKey may be empty for local OpenAI-compatible servers; the auth
	// header is then omitted entirely.
	APIKey string
	// Model overrides the provider default.
	Model string
	// BaseURL overrides the SDK's default endpoint.
	BaseURL string
	// MaxTokens caps the completion. Zero means the package default.
	MaxTokens int64
}

// backend is one provider transport. Complete performs a single chat call and
// returns the assistant text verbatim.
type backend interface {
	Complete(ctx context.Context, system, user string) (string, error)
	Provider() string
	Model() string
}

// Client drives one provider backend. It is not safe for concurrent use; the
// controller calls it from the tick thread only.
type Client struct {
	backend backend
	log     pslog.Logger

	status        Status
	pendingPrompt string
	lastError     string
	response      *action.Response
}

// NewClient builds a client for the configured provider.
func NewClient(cfg Config, log pslog.Logger) *Client {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}

	var b backend
	if isAnthropic(cfg.Provider) {
		if cfg.Model == "" {
			cfg.Model = DefaultAnthropicModel
		}
		b = newAnthropicBackend(cfg)
	} else {
		if cfg.Model == "" {
			cfg.Model = DefaultOpenAIModel
		}
		b = newOpenAIBackend(cfg)
	}

	return &Client{backend: b, log: log}
}

func isAnthropic(provider string) bool {
	switch strings.ToLower(provider) {
	case "anthropic", "claude":
		return true
	}
	return false
}

// Provider returns the active backend's provider name.
func (c *Client) Provider() string { return c.backend.Provider() }

// Model returns the active backend's model identifier.
func (c *Client) Model() string { return c.backend.Model() }

// Status returns the current lifecycle state.
func (c *Client) Status() Status { return c.status }

// LastError returns the message of the most recent failure, if any.
func (c *Client) LastError() string { return c.lastError }

// Response returns the held response, or nil while none is pending. The
// caller inspects it but must call Execute to consume it.
func (c *Client) Response() *action.Response { return c.response }

// Submit stores the user prompt and moves to Waiting. A prompt submitted
// while another is pending replaces it.
func (c *Client) Submit(prompt string) {
	c.pendingPrompt = prompt
	c.response = nil
	c.lastError = ""
	c.status = Waiting
}

// Poll performs the pending HTTP call synchronously. It is a no-op unless the
// client is Waiting. The panes snapshot becomes the system prompt. On success
// the parsed response is held for inspection; a reply that fails action
// parsing degrades to a single Message carrying the raw text.
func (c *Client) Poll(ctx context.Context, panes []PaneContext) {
	if c.status != Waiting {
		return
	}

	prompt := c.pendingPrompt
	c.pendingPrompt = ""
	system := BuildSystemPrompt(panes)

	text, err := c.backend.Complete(ctx, system, prompt)
	if err != nil {
		c.lastError = err.Error()
		c.status = Error
		c.log.Warn("llm call failed", "provider", c.backend.Provider(), "err", err)
		return
	}

	c.response = parseReply(text)
	c.status = Idle
	c.log.Info("llm response ready",
		"provider", c.backend.Provider(),
		"actions", len(c.response.Actions))
}

// parseReply runs the extraction pipeline over the assistant text. Anything
// that does not yield a valid action batch becomes a lone Message, so the
// user always sees something.
func parseReply(text string) *action.Response {
	if jsonText, ok := action.ExtractJSON(text); ok {
		if resp, err := action.ParseActions(jsonText); err == nil {
			return resp
		}
	}
	return &action.Response{Actions: []action.Action{action.Message{Text: text}}}
}

// Execute consumes the held response, returning its actions for the caller
// to apply, and resets the client to Idle.
func (c *Client) Execute() []action.Action {
	resp := c.response
	c.response = nil
	c.lastError = ""
	c.status = Idle
	if resp == nil {
		return nil
	}
	return resp.Actions
}
