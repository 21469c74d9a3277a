package observability

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/learnreward/rewardplane/internal/domain"
)

// ─── Tracer ─────────────────────────────────────────────────────────────────

func TestTracer_TrackIssueSpan(t *testing.T) {
	tr := NewTracer(DefaultTracerConfig())
	ctx := WithTraceID(context.Background(), "req-42")
	attrs := map[string]string{"issuer": "edu", "course": "go-101"}

	if err := tr.Track(ctx, "issuance.issue", attrs, func() error { return nil }); err != nil {
		t.Fatalf("Track() = %v", err)
	}

	if tr.SpanCount() != 1 {
		t.Fatalf("SpanCount() = %d, want 1", tr.SpanCount())
	}
	sp := tr.Spans(1)[0]
	if sp.Operation != "issuance.issue" || sp.TraceID != "req-42" {
		t.Errorf("span = %s/%s, want issuance.issue/req-42", sp.Operation, sp.TraceID)
	}
	if sp.Outcome != "ok" || sp.Status != SpanOK {
		t.Errorf("outcome = %q status = %d, want ok/SpanOK", sp.Outcome, sp.Status)
	}
	if sp.Attrs["course"] != "go-101" {
		t.Errorf("course attr = %q", sp.Attrs["course"])
	}
	if sp.SpanID == "" || sp.Elapsed < 0 {
		t.Errorf("span timing/id not recorded: %+v", sp)
	}
}

func TestTracer_FailedSpanKeepsError(t *testing.T) {
	tr := NewTracer(DefaultTracerConfig())
	_ = tr.Track(context.Background(), "treasury.burn", nil, func() error {
		return domain.ErrInsufficientBalance
	})

	sp := tr.Spans(1)[0]
	if sp.Status != SpanError {
		t.Errorf("Status = %d, want SpanError", sp.Status)
	}
	if sp.Attrs["error"] != domain.ErrInsufficientBalance.Error() {
		t.Errorf("error attr = %q", sp.Attrs["error"])
	}
}

func TestTracer_RetainsNewestSpans(t *testing.T) {
	tr := NewTracer(TracerConfig{Enabled: true, MaxSpans: 2})
	for _, op := range []string{"gate.set_global", "governance.approve", "governance.execute"} {
		_ = tr.Track(context.Background(), op, nil, func() error { return nil })
	}

	spans := tr.Spans(0)
	if len(spans) != 2 {
		t.Fatalf("Spans(0) returned %d, want 2", len(spans))
	}
	if spans[0].Operation != "governance.approve" || spans[1].Operation != "governance.execute" {
		t.Errorf("kept %s, %s; want the two newest", spans[0].Operation, spans[1].Operation)
	}
	if got := tr.Spans(1); len(got) != 1 || got[0].Operation != "governance.execute" {
		t.Errorf("Spans(1) = %+v, want latest only", got)
	}
}

func TestTracer_DisabledAndNil(t *testing.T) {
	off := NewTracer(TracerConfig{Enabled: false})
	_ = off.Track(context.Background(), "program.update_config", nil, func() error { return nil })
	if off.SpanCount() != 0 {
		t.Errorf("disabled tracer SpanCount() = %d, want 0", off.SpanCount())
	}

	var none *Tracer
	called := false
	err := none.Track(context.Background(), "gate.set_flags", nil, func() error {
		called = true
		return domain.ErrUnauthorized
	})
	if !called || !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("nil tracer must still run fn and return its error, got %v", err)
	}
}

func TestTracer_FreshTraceIDs(t *testing.T) {
	tr := NewTracer(DefaultTracerConfig())
	ctx := context.Background()
	_ = tr.Track(ctx, "a", nil, func() error { return nil })
	_ = tr.Track(ctx, "b", nil, func() error { return nil })

	spans := tr.Spans(2)
	if spans[0].TraceID == "" || spans[0].TraceID == spans[1].TraceID {
		t.Errorf("trace IDs = %q, %q; want distinct generated IDs", spans[0].TraceID, spans[1].TraceID)
	}
}

func TestTracer_CountsOperations(t *testing.T) {
	tr := NewTracer(DefaultTracerConfig())
	before := testutil.ToFloat64(OperationsTotal.WithLabelValues("treasury.transfer", "policy"))
	_ = tr.Track(context.Background(), "treasury.transfer", nil, func() error {
		return domain.ErrTransferFrontRunning
	})
	after := testutil.ToFloat64(OperationsTotal.WithLabelValues("treasury.transfer", "policy"))
	if after-before != 1 {
		t.Errorf("ops counter moved by %v, want 1", after-before)
	}
}

// ─── Track / Outcome ────────────────────────────────────────────────────────

func TestTracer_Track_RecordsOutcome(t *testing.T) {
	tr := NewTracer(DefaultTracerConfig())
	err := tr.Track(context.Background(), "execute", nil, func() error {
		return fmt.Errorf("execute: %w", domain.ErrNotEnoughSigners)
	})
	if !errors.Is(err, domain.ErrNotEnoughSigners) {
		t.Fatalf("Track() = %v, want ErrNotEnoughSigners", err)
	}
	spans := tr.Spans(1)
	if spans[0].Outcome != "conflict" {
		t.Errorf("Outcome = %q, want conflict", spans[0].Outcome)
	}
	if spans[0].Status != SpanError {
		t.Errorf("Status = %d, want SpanError", spans[0].Status)
	}
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{domain.ErrFunctionPaused, "policy"},
		{domain.ErrOverflow, "arithmetic"},
		{errors.New("disk"), "internal"},
	}
	for _, tt := range tests {
		if got := Outcome(tt.err); got != tt.want {
			t.Errorf("Outcome(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestRecordGate(t *testing.T) {
	RecordGate(&domain.ProgramState{Paused: true, PauseFlags: domain.PauseAll})
	if got := testutil.ToFloat64(GatePaused); got != 1 {
		t.Errorf("GatePaused = %v, want 1", got)
	}
	if got := testutil.ToFloat64(GatePauseFlags); got != float64(domain.PauseAll) {
		t.Errorf("GatePauseFlags = %v, want %d", got, domain.PauseAll)
	}

	RecordGate(&domain.ProgramState{PauseFlags: domain.PauseMint})
	if got := testutil.ToFloat64(GatePaused); got != 0 {
		t.Errorf("GatePaused = %v, want 0", got)
	}

	// nil snapshots leave the gauges alone
	RecordGate(nil)
	if got := testutil.ToFloat64(GatePauseFlags); got != float64(domain.PauseMint) {
		t.Errorf("GatePauseFlags = %v, want %d", got, domain.PauseMint)
	}
}

// ─── Logger ─────────────────────────────────────────────────────────────────

func TestNewLogger_JSONLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(LogConfig{Level: "warn", Format: "json"}, &buf)

	log.Info().Msg("hidden")
	log.Warn().Str("component", "gate").Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info line written at warn level")
	}
	if !strings.Contains(out, `"component":"gate"`) {
		t.Errorf("output missing structured field: %s", out)
	}
}

func TestNewLogger_BadLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(LogConfig{Level: "loud", Format: "json"}, &buf)
	log.Debug().Msg("debug")
	log.Info().Msg("info")
	if strings.Contains(buf.String(), `"message":"debug"`) {
		t.Error("debug line written at default level")
	}
	if !strings.Contains(buf.String(), `"message":"info"`) {
		t.Error("info line missing")
	}
}
