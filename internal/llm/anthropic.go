package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var chatTracer = otel.Tracer("termania/llm")

// anthropicBackend talks to the Anthropic Messages API. Works with the direct
// API and with Anthropic-compatible gateways via BaseURL.
type anthropicBackend struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

func newAnthropicBackend(cfg Config) *anthropicBackend {
	var opts []option.RequestOption
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	return &anthropicBackend{
		client:    anthropic.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
	}
}

func (b *anthropicBackend) Provider() string { return "anthropic" }
func (b *anthropicBackend) Model() string    { return b.model }

// Complete sends one system+user exchange and returns the first text block.
func (b *anthropicBackend) Complete(ctx context.Context, system, user string) (string, error) {
	// GenAI generation span, named "{operation} {model}" per the semantic
	// conventions.
	ctx, span := chatTracer.Start(ctx, "chat "+b.model,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("gen_ai.operation.name", "chat"),
			attribute.String("gen_ai.provider.name", "anthropic"),
			attribute.String("gen_ai.request.model", b.model),
			attribute.Int64("gen_ai.request.max_tokens", b.maxTokens),
		),
	)
	defer span.End()

	recordInput(span, system, user)

	resp, err := b.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(b.model),
		MaxTokens: b.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewTextBlock(user),
			),
		},
	})
	if err != nil {
		span.SetAttributes(attribute.String("error.type", "api_error"))
		return "", fmt.Errorf("anthropic API call failed: %w", err)
	}
	if len(resp.Content) == 0 {
		span.SetAttributes(attribute.String("error.type", "empty_response"))
		return "", fmt.Errorf("anthropic API returned empty response")
	}

	text := resp.Content[0].Text

	span.SetAttributes(
		attribute.String("gen_ai.response.model", b.model),
		attribute.Int64("gen_ai.usage.input_tokens", resp.Usage.InputTokens),
		attribute.Int64("gen_ai.usage.output_tokens", resp.Usage.OutputTokens),
	)
	if string(resp.StopReason) != "" {
		span.SetAttributes(attribute.StringSlice("gen_ai.response.finish_reasons", []string{string(resp.StopReason)}))
	}
	recordOutput(span, text)

	return text, nil
}

// recordInput attaches the request messages as a JSON attribute.
func recordInput(span trace.Span, system, user string) {
	msgs := []map[string]string{
		{"role": "system", "content": system},
		{"role": "user", "content": user},
	}
	if enc, err := json.Marshal(msgs); err == nil {
		span.SetAttributes(attribute.String("gen_ai.input.messages", string(enc)))
	}
}

// recordOutput attaches the assistant reply as a JSON attribute.
func recordOutput(span trace.Span, text string) {
	msgs := []map[string]string{
		{"role": "assistant", "content": text},
	}
	if enc, err := json.Marshal(msgs); err == nil {
		span.SetAttributes(attribute.String("gen_ai.output.messages", string(enc)))
	}
}
