package emit

import (
	"bytes"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// recorder collects every emitted event for assertions.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Emit(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func TestLogEmitterText(t *testing.T) {
	var buf bytes.Buffer
	e := NewLogEmitter(&buf, false)

	e.Emit(Event{ThreadID: "t1", Step: 2, NodeID: "router", Msg: "node_start"})
	e.Emit(Event{ThreadID: "t1", Step: 2, NodeID: "router", Msg: "node_end",
		Meta: map[string]interface{}{"signal": "route-to-generator"}})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "[node_start] threadID=t1 step=2 nodeID=router") {
		t.Errorf("line 1 = %q", lines[0])
	}
	if !strings.Contains(lines[1], `"signal":"route-to-generator"`) {
		t.Errorf("line 2 missing meta: %q", lines[1])
	}
}

func TestLogEmitterJSONL(t *testing.T) {
	var buf bytes.Buffer
	e := NewLogEmitter(&buf, true)

	e.Emit(Event{ThreadID: "t1", Step: 1, NodeID: "coach", Msg: "node_end",
		Meta: map[string]interface{}{"duration_ms": 12.5}})

	var decoded struct {
		ThreadID string                 `json:"threadId"`
		Step     int                    `json:"step"`
		NodeID   string                 `json:"nodeId"`
		Msg      string                 `json:"msg"`
		Meta     map[string]interface{} `json:"meta"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	if decoded.ThreadID != "t1" || decoded.Step != 1 || decoded.NodeID != "coach" || decoded.Msg != "node_end" {
		t.Errorf("decoded = %+v", decoded)
	}
	if decoded.Meta["duration_ms"] != 12.5 {
		t.Errorf("meta = %+v", decoded.Meta)
	}
}

func TestLogEmitterNilWriterDefaults(t *testing.T) {
	// Must not panic.
	NewLogEmitter(nil, false).Emit(Event{Msg: "run_start"})
}

func TestZapEmitterLevels(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	e := NewZapEmitter(zap.New(core))

	e.Emit(Event{ThreadID: "t1", Step: 3, NodeID: "analyzer", Msg: "node_end"})
	e.Emit(Event{ThreadID: "t1", Step: 4, NodeID: "analyzer", Msg: "node_error",
		Meta: map[string]interface{}{"error": "provider unavailable"}})

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Level != zapcore.InfoLevel || entries[0].Message != "node_end" {
		t.Errorf("entry 0 = %v %q", entries[0].Level, entries[0].Message)
	}
	if entries[1].Level != zapcore.ErrorLevel || entries[1].Message != "node_error" {
		t.Errorf("entry 1 = %v %q", entries[1].Level, entries[1].Message)
	}

	ctx := entries[1].ContextMap()
	if ctx["threadId"] != "t1" || ctx["error"] != "provider unavailable" {
		t.Errorf("error entry fields = %+v", ctx)
	}
}

func TestZapEmitterNilLogger(t *testing.T) {
	// Nil logger must fall back to a nop, not panic.
	NewZapEmitter(nil).Emit(Event{Msg: "run_start"})
}

func TestOTelEmitterSpans(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	e := NewOTelEmitter(tp.Tracer("test"))

	e.Emit(Event{ThreadID: "t1", Step: 5, NodeID: "tailorer", Msg: "node_end",
		Meta: map[string]interface{}{"signal": "done", "duration_ms": int64(7)}})
	e.Emit(Event{ThreadID: "t1", Step: 6, NodeID: "tailorer", Msg: "node_error",
		Meta: map[string]interface{}{"error": "timeout"}})

	spans := rec.Ended()
	if len(spans) != 2 {
		t.Fatalf("got %d spans, want 2", len(spans))
	}

	if spans[0].Name() != "node_end" {
		t.Errorf("span 0 name = %q", spans[0].Name())
	}
	attrs := make(map[string]interface{})
	for _, kv := range spans[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	if attrs["thread.id"] != "t1" || attrs["node.id"] != "tailorer" || attrs["signal"] != "done" {
		t.Errorf("span 0 attributes = %+v", attrs)
	}

	if spans[1].Status().Code != codes.Error {
		t.Errorf("error span status = %v", spans[1].Status())
	}
}

func TestBufferedEmitterFlushOnClose(t *testing.T) {
	rec := &recorder{}
	b := NewBufferedEmitter(rec, 16)

	for i := 1; i <= 10; i++ {
		b.Emit(Event{ThreadID: "t1", Step: i, Msg: "node_end"})
	}
	b.Close()

	got := rec.all()
	if len(got) != 10 {
		t.Fatalf("flushed %d events, want 10", len(got))
	}
	for i, ev := range got {
		if ev.Step != i+1 {
			t.Fatalf("event %d has step %d, order not preserved", i, ev.Step)
		}
	}
	if b.Dropped() != 0 {
		t.Errorf("Dropped = %d, want 0", b.Dropped())
	}
}

func TestBufferedEmitterDropsWhenFull(t *testing.T) {
	block := make(chan struct{})
	slow := emitFunc(func(Event) { <-block })

	b := NewBufferedEmitter(slow, 1)
	// First event is picked up by the drain goroutine and blocks; the
	// second fills the buffer; everything after is dropped.
	for i := 0; i < 10; i++ {
		b.Emit(Event{Step: i})
	}
	if b.Dropped() == 0 {
		t.Error("expected drops on a full buffer")
	}
	close(block)
	b.Close()
}

// emitFunc adapts a function to the Emitter interface.
type emitFunc func(Event)

func (f emitFunc) Emit(e Event) { f(e) }

func TestMultiFansOut(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	m := Multi{a, b}

	m.Emit(Event{Msg: "run_start"})

	if len(a.all()) != 1 || len(b.all()) != 1 {
		t.Fatalf("fan-out reached %d and %d emitters", len(a.all()), len(b.all()))
	}
}

func TestNullEmitterDiscards(t *testing.T) {
	NewNullEmitter().Emit(Event{Msg: "run_start"}) // must not panic
}
