package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "termania"

// Metrics holds the metric instruments. All counters are cumulative and safe
// for concurrent use.
type Metrics struct {
	// LLM token counters, partitioned by provider + model.
	InputTokens  metric.Int64Counter
	OutputTokens metric.Int64Counter

	// Tap counters.
	TapRequests   metric.Int64Counter
	TapBroadcasts metric.Int64Counter

	// Actions applied by the controller, partitioned by action type.
	ActionsApplied metric.Int64Counter

	// Panes marked dirty per tick.
	DirtyPanes metric.Int64Counter
}

// NewMetrics creates all metric instruments. Returns no-op instruments when
// no MeterProvider is registered.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.InputTokens, err = meter.Int64Counter("llm.tokens.input",
		metric.WithDescription("Total LLM input tokens consumed"),
		metric.WithUnit("{token}"))
	if err != nil {
		return nil, err
	}

	m.OutputTokens, err = meter.Int64Counter("llm.tokens.output",
		metric.WithDescription("Total LLM output tokens consumed"),
		metric.WithUnit("{token}"))
	if err != nil {
		return nil, err
	}

	m.TapRequests, err = meter.Int64Counter("tap.requests.total",
		metric.WithDescription("Text tap requests handled, partitioned by request type"))
	if err != nil {
		return nil, err
	}

	m.TapBroadcasts, err = meter.Int64Counter("tap.broadcasts.total",
		metric.WithDescription("Text tap broadcast frames written to subscribers"))
	if err != nil {
		return nil, err
	}

	m.ActionsApplied, err = meter.Int64Counter("actions.applied.total",
		metric.WithDescription("Actions applied by the controller, partitioned by type"))
	if err != nil {
		return nil, err
	}

	m.DirtyPanes, err = meter.Int64Counter("panes.dirty.total",
		metric.WithDescription("Panes reported dirty across ticks"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordTokens records LLM token usage.
func (m *Metrics) RecordTokens(ctx context.Context, provider, model string, input, output int64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("llm.provider", provider),
		attribute.String("llm.model", model),
	)
	m.InputTokens.Add(ctx, input, attrs)
	m.OutputTokens.Add(ctx, output, attrs)
}

// RecordTapRequest records one handled tap request.
func (m *Metrics) RecordTapRequest(ctx context.Context, reqType string) {
	if m == nil {
		return
	}
	m.TapRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tap.request.type", reqType),
	))
}

// RecordTapBroadcast records broadcast frames written.
func (m *Metrics) RecordTapBroadcast(ctx context.Context, frames int64) {
	if m == nil {
		return
	}
	m.TapBroadcasts.Add(ctx, frames)
}

// RecordAction records one applied action.
func (m *Metrics) RecordAction(ctx context.Context, actionType string) {
	if m == nil {
		return
	}
	m.ActionsApplied.Add(ctx, 1, metric.WithAttributes(
		attribute.String("action.type", actionType),
	))
}

// RecordDirtyPanes records the dirty pane count for one tick.
func (m *Metrics) RecordDirtyPanes(ctx context.Context, n int64) {
	if m == nil || n == 0 {
		return
	}
	m.DirtyPanes.Add(ctx, n)
}
