package harness

import (
	"context"
	"time"

	"coreagent/pkg/metrics"
)

// metricsHarness wraps a Harness with per-backend request metrics,
// recording one metrics.RequestMetric per StreamTurn call.
type metricsHarness struct {
	inner Harness
	c     *metrics.Collector
}

// WithMetrics wraps h so every turn it streams is recorded on c. Wrapping a
// harness that has already been wrapped with WithLogger (or vice versa) is
// fine; each decorator only touches its own concern.
func WithMetrics(h Harness, c *metrics.Collector) Harness {
	return &metricsHarness{inner: h, c: c}
}

func (m *metricsHarness) Name() string { return m.inner.Name() }

func (m *metricsHarness) ListModels(ctx context.Context) ([]ModelInfo, error) {
	return m.inner.ListModels(ctx)
}

func (m *metricsHarness) ExpandAlias(alias string) string { return m.inner.ExpandAlias(alias) }

func (m *metricsHarness) MatchesModel(model string) bool { return m.inner.MatchesModel(model) }

func (m *metricsHarness) StreamTurn(ctx context.Context, turn *Turn, onEvent func(Event) error) error {
	start := time.Now()
	var usage *UsageEvent
	err := m.inner.StreamTurn(ctx, turn, func(ev Event) error {
		if ev.Kind == EventUsage {
			usage = ev.Usage
		}
		return onEvent(ev)
	})
	m.record(turn, start, usage, err)
	return err
}

func (m *metricsHarness) StreamAndCollect(ctx context.Context, turn *Turn) (*TurnResult, error) {
	start := time.Now()
	result, err := m.inner.StreamAndCollect(ctx, turn)
	var usage *UsageEvent
	if result != nil {
		usage = result.Usage
	}
	m.record(turn, start, usage, err)
	return result, err
}

func (m *metricsHarness) RunToolLoop(ctx context.Context, turn *Turn, handler ToolHandler, opts LoopOptions) (*TurnResult, error) {
	start := time.Now()
	result, err := m.inner.RunToolLoop(ctx, turn, handler, opts)
	var usage *UsageEvent
	if result != nil {
		usage = result.Usage
	}
	m.record(turn, start, usage, err)
	return result, err
}

func (m *metricsHarness) record(turn *Turn, start time.Time, usage *UsageEvent, err error) {
	rm := metrics.RequestMetric{
		Timestamp: start,
		Backend:   m.inner.Name(),
		Model:     turn.Model,
		Latency:   time.Since(start),
		Status:    "ok",
	}
	if err != nil {
		rm.Status = "error"
		rm.Error = err.Error()
	}
	if usage != nil {
		rm.TokensIn = usage.InputTokens
		rm.TokensOut = usage.OutputTokens
	}
	m.c.Record(rm)
}
