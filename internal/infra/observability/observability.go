// Package observability implements operation tracing, structured logging
// and Prometheus metrics for the control plane.
//
// This provides:
//   - Trace spans for every state-changing operation (issue, approve, execute, ...)
//   - Prometheus counters for outcomes, proposal transitions and supply movement
//   - A zerolog logger configured from the daemon config
package observability

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/learnreward/rewardplane/internal/domain"
)

// ═══════════════════════════════════════════════════════════════════════════
// Trace Spans: in-memory span tracking
// ═══════════════════════════════════════════════════════════════════════════

// Span is one finished control plane operation.
type Span struct {
	TraceID   string            `json:"trace_id"`
	SpanID    string            `json:"span_id"`
	Operation string            `json:"operation"`
	Outcome   string            `json:"outcome"`
	Status    SpanStatus        `json:"status"`
	Started   time.Time         `json:"started"`
	Elapsed   time.Duration     `json:"elapsed_ns"`
	Attrs     map[string]string `json:"attrs,omitempty"`
}

// SpanStatus is SpanOK or SpanError.
type SpanStatus int

const (
	SpanOK SpanStatus = iota
	SpanError
)

// ─── Tracer ─────────────────────────────────────────────────────────────────

// Tracer keeps the most recent spans in a fixed ring. A nil *Tracer is
// valid and only updates the operation metrics.
type Tracer struct {
	mu      sync.Mutex
	ring    []Span
	next    int // slot the next span is written to
	full    bool
	enabled bool
	now     func() time.Time
}

// TracerConfig sizes the span ring.
type TracerConfig struct {
	Enabled  bool
	MaxSpans int
}

// DefaultTracerConfig keeps the last 1000 spans.
func DefaultTracerConfig() TracerConfig {
	return TracerConfig{Enabled: true, MaxSpans: 1_000}
}

// NewTracer creates a tracer. A non-positive MaxSpans selects the default.
func NewTracer(cfg TracerConfig) *Tracer {
	if cfg.MaxSpans <= 0 {
		cfg.MaxSpans = DefaultTracerConfig().MaxSpans
	}
	return &Tracer{
		ring:    make([]Span, cfg.MaxSpans),
		enabled: cfg.Enabled,
		now:     time.Now,
	}
}

// Track runs fn as operation, records a span for it and counts the outcome.
// fn's error is returned unchanged.
func (t *Tracer) Track(ctx context.Context, operation string, attrs map[string]string, fn func() error) error {
	clock := time.Now
	if t != nil {
		clock = t.now
	}
	started := clock()
	err := fn()
	elapsed := clock().Sub(started)

	outcome := Outcome(err)
	OperationsTotal.WithLabelValues(operation, outcome).Inc()
	OperationDuration.WithLabelValues(operation).Observe(elapsed.Seconds())

	if t == nil || !t.enabled {
		return err
	}
	sp := Span{
		TraceID:   TraceIDFromContext(ctx),
		SpanID:    uuid.NewString(),
		Operation: operation,
		Outcome:   outcome,
		Started:   started,
		Elapsed:   elapsed,
		Attrs:     attrs,
	}
	if err != nil {
		sp.Status = SpanError
		sp.Attrs = withError(attrs, err)
	}
	t.record(sp)
	return err
}

// withError copies attrs and adds the error text, leaving the caller's map
// untouched.
func withError(attrs map[string]string, err error) map[string]string {
	out := make(map[string]string, len(attrs)+1)
	for k, v := range attrs {
		out[k] = v
	}
	out["error"] = err.Error()
	return out
}

func (t *Tracer) record(sp Span) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ring[t.next] = sp
	t.next = (t.next + 1) % len(t.ring)
	if t.next == 0 {
		t.full = true
	}
}

// Spans returns up to limit of the newest spans, oldest first. A
// non-positive limit returns all of them.
func (t *Tracer) Spans(limit int) []Span {
	if t == nil {
		return []Span{}
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	n := t.count()
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]Span, limit)
	for i := 0; i < limit; i++ {
		idx := (t.next - limit + i + len(t.ring)) % len(t.ring)
		out[i] = t.ring[idx]
	}
	return out
}

// SpanCount returns how many spans the ring holds.
func (t *Tracer) SpanCount() int {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count()
}

func (t *Tracer) count() int {
	if t.full {
		return len(t.ring)
	}
	return t.next
}

// Outcome labels an operation result: "ok" or the error kind.
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return domain.KindOf(err).String()
}

// ─── Context Helpers ────────────────────────────────────────────────────────

type contextKey string

const traceIDKey contextKey = "rewardplane-trace-id"

// WithTraceID returns a context with the given trace ID.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceIDFromContext returns the context's trace ID, or a fresh one.
func TraceIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(traceIDKey).(string); ok && v != "" {
		return v
	}
	return uuid.NewString()
}

// ═══════════════════════════════════════════════════════════════════════════
// Prometheus Metrics
// ═══════════════════════════════════════════════════════════════════════════

// ─── Operation Metrics ──────────────────────────────────────────────────────

// OperationsTotal counts operations by name and outcome.
var OperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "rewardplane",
	Subsystem: "ops",
	Name:      "total",
	Help:      "Total control plane operations by operation and outcome.",
}, []string{"op", "outcome"})

// OperationDuration tracks operation latency.
var OperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "rewardplane",
	Subsystem: "ops",
	Name:      "duration_seconds",
	Help:      "Control plane operation latency.",
	Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
}, []string{"op"})

// ─── Governance Metrics ─────────────────────────────────────────────────────

// ProposalTransitions counts proposals entering each status.
var ProposalTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "rewardplane",
	Subsystem: "governance",
	Name:      "proposal_transitions_total",
	Help:      "Total proposal status transitions by registry and status.",
}, []string{"registry", "status"})

// ─── Supply Metrics ─────────────────────────────────────────────────────────

// UnitsMinted counts units minted through issuance.
var UnitsMinted = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "rewardplane",
	Subsystem: "supply",
	Name:      "minted_units_total",
	Help:      "Total reward units minted.",
})

// UnitsBurned counts units burned.
var UnitsBurned = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "rewardplane",
	Subsystem: "supply",
	Name:      "burned_units_total",
	Help:      "Total reward units burned.",
})

// UnitsTransferred counts units moved by guarded transfers.
var UnitsTransferred = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "rewardplane",
	Subsystem: "supply",
	Name:      "transferred_units_total",
	Help:      "Total reward units transferred.",
})

// CompensatingBurns counts burns issued to undo a mint whose state commit failed.
var CompensatingBurns = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "rewardplane",
	Subsystem: "supply",
	Name:      "compensating_burns_total",
	Help:      "Total compensating burns by result.",
}, []string{"result"})

// ─── Gate Metrics ───────────────────────────────────────────────────────────

// GatePaused is 1 while the global pause switch is on.
var GatePaused = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "rewardplane",
	Subsystem: "gate",
	Name:      "paused",
	Help:      "Whether the program is globally paused (1) or not (0).",
})

// GatePauseFlags exposes the per-function pause mask.
var GatePauseFlags = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "rewardplane",
	Subsystem: "gate",
	Name:      "pause_flags",
	Help:      "Current per-function pause bitmask.",
})

// RecordGate updates the gate gauges from a program snapshot.
func RecordGate(p *domain.ProgramState) {
	if p == nil {
		return
	}
	if p.Paused {
		GatePaused.Set(1)
	} else {
		GatePaused.Set(0)
	}
	GatePauseFlags.Set(float64(p.PauseFlags))
}
