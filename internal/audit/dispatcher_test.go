package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type blockingSink struct {
	release chan struct{}
	mu      sync.Mutex
	got     []Event
}

func (s *blockingSink) Emit(_ context.Context, e Event) {
	<-s.release
	s.mu.Lock()
	s.got = append(s.got, e)
	s.mu.Unlock()
}

type boomSink struct{}

func (boomSink) Emit(context.Context, Event) { panic("boom") }

func TestDispatcherDisabledIsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, NoOpSink{}, nil)
	if d != nil {
		t.Fatal("expected nil dispatcher when disabled")
	}
	d.Emit(context.Background(), Event{Action: "LOGIN"})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher should report zero drops")
	}
}

func TestDispatcherDeliversToSink(t *testing.T) {
	sink := NewChannelSink(4)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 4}, sink, nil)
	defer d.Close()

	d.Emit(context.Background(), Event{Action: "LOGIN", Success: true})

	select {
	case e := <-sink.Events():
		if e.Action != "LOGIN" || !e.Success {
			t.Fatalf("unexpected event %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestDispatcherDropIfFull(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink, nil)

	for i := 0; i < 20; i++ {
		d.Emit(context.Background(), Event{Action: "LOGIN_FAILED"})
	}
	if d.Dropped() == 0 {
		t.Fatal("expected dropped events with a full buffer")
	}
	close(sink.release)
	d.Close()
}

func TestDispatcherKeepsHighSeverityWhenFull(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink, nil)

	for i := 0; i < 5; i++ {
		d.Emit(context.Background(), Event{Action: "LOGIN_FAILED", Severity: SeverityWarning})
	}
	dropped := d.Dropped()
	if dropped == 0 {
		t.Fatal("expected warning events to be dropped")
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		d.Emit(context.Background(), Event{Action: "TENANT_SCOPE_VIOLATION", Severity: SeverityHigh})
	}()
	close(sink.release)
	wg.Wait()
	d.Close()

	if d.Dropped() != dropped {
		t.Fatalf("high severity event counted as dropped: %d -> %d", dropped, d.Dropped())
	}
	sink.mu.Lock()
	defer sink.mu.Unlock()
	last := sink.got[len(sink.got)-1]
	if last.Action != "TENANT_SCOPE_VIOLATION" {
		t.Fatalf("high severity event not delivered, got %+v", sink.got)
	}
}

func TestDispatcherEmitHonoursContext(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1}, sink, nil)

	d.Emit(context.Background(), Event{Action: "LOGIN"})
	deadline := time.Now().Add(time.Second)
	for len(d.queue) > 0 {
		if time.Now().After(deadline) {
			t.Fatal("first event never picked up")
		}
		time.Sleep(time.Millisecond)
	}
	d.Emit(context.Background(), Event{Action: "LOGIN"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	d.Emit(ctx, Event{Action: "LOGIN"})
	if d.Dropped() != 1 {
		t.Fatalf("expected the abandoned event to be counted, got %d", d.Dropped())
	}
	close(sink.release)
	d.Close()
}

func TestDispatcherSurvivesPanickingSink(t *testing.T) {
	d := NewDispatcher(Config{Enabled: true, BufferSize: 2}, boomSink{}, nil)
	d.Emit(context.Background(), Event{Action: "LOGOUT"})
	d.Close()
	if d.Failed() != 1 {
		t.Fatalf("expected one failed delivery, got %d", d.Failed())
	}
}

func TestDispatcherCloseDrains(t *testing.T) {
	var buf bytes.Buffer
	d := NewDispatcher(Config{Enabled: true, BufferSize: 8}, NewJSONWriterSink(&buf), nil)
	for i := 0; i < 5; i++ {
		d.Emit(context.Background(), Event{Action: "ROLE_CHANGE", Severity: SeverityWarning})
	}
	d.Close()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 5 {
		t.Fatalf("expected 5 lines, got %d", len(lines))
	}
	var e Event
	if err := json.Unmarshal([]byte(lines[0]), &e); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if e.Action != "ROLE_CHANGE" || e.Severity != SeverityWarning {
		t.Fatalf("unexpected event %+v", e)
	}

	d.Emit(context.Background(), Event{Action: "LATE"})
	if strings.Contains(buf.String(), "LATE") {
		t.Fatal("closed dispatcher accepted an event")
	}
}

func TestMultiSink(t *testing.T) {
	a, b := NewChannelSink(1), NewChannelSink(1)
	MultiSink{a, nil, b}.Emit(context.Background(), Event{Action: "LOGIN"})
	if (<-a.Events()).Action != "LOGIN" || (<-b.Events()).Action != "LOGIN" {
		t.Fatal("expected both sinks to receive the event")
	}
}

type countingSink struct{ n atomic.Uint64 }

func (s *countingSink) Emit(context.Context, Event) { s.n.Add(1) }

func TestDispatcherCloseAccountsForEveryEvent(t *testing.T) {
	for round := 0; round < 20; round++ {
		sink := &countingSink{}
		d := NewDispatcher(Config{Enabled: true, BufferSize: 4}, sink, nil)

		const emitters, each = 8, 50
		var wg sync.WaitGroup
		for range emitters {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for range each {
					d.Emit(context.Background(), Event{Action: "ROLE_CHANGE", Severity: SeverityHigh})
				}
			}()
		}
		time.Sleep(time.Millisecond)
		d.Close()
		wg.Wait()

		if got := sink.n.Load() + d.Dropped(); got != emitters*each {
			t.Fatalf("round %d: delivered %d + dropped %d != %d", round, sink.n.Load(), d.Dropped(), emitters*each)
		}
	}
}
