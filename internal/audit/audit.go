package audit

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// Severity grades an event for reviewers.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityHigh    Severity = "high"
)

func (s Severity) rank() int {
	switch s {
	case SeverityHigh:
		return 2
	case SeverityWarning:
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether s is as severe as min. Unknown values rank as info.
func (s Severity) AtLeast(min Severity) bool { return s.rank() >= min.rank() }

// Event is one security-relevant action: who did what, in which tenant,
// against which resource, and whether it worked.
type Event struct {
	Timestamp  time.Time         `json:"timestamp"`
	Action     string            `json:"action"`
	Severity   Severity          `json:"severity"`
	ActorID    string            `json:"actor_id,omitempty"`
	TenantID   string            `json:"tenant_id,omitempty"`
	Resource   string            `json:"resource,omitempty"`
	ResourceID string            `json:"resource_id,omitempty"`
	IP         string            `json:"ip,omitempty"`
	Success    bool              `json:"success"`
	Error      string            `json:"error,omitempty"`
	Details    map[string]string `json:"details,omitempty"`
}

// Sink receives emitted audit events. Sinks report nothing back: a failing
// sink never fails the operation being audited.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// NoOpSink drops audit events.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Event) {}

// ChannelSink hands events to a reader through a buffered channel. Emit
// blocks while the buffer is full until ctx ends.
type ChannelSink struct {
	ch chan Event
}

func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{ch: make(chan Event, max(buffer, 1))}
}

func (s *ChannelSink) Emit(ctx context.Context, event Event) {
	select {
	case s.ch <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan Event { return s.ch }

// JSONWriterSink writes newline-delimited JSON. The first write error is
// kept and later events are discarded.
type JSONWriterSink struct {
	mu  sync.Mutex
	enc *json.Encoder
	err error
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	s := &JSONWriterSink{}
	if w != nil {
		s.enc = json.NewEncoder(w)
	}
	return s
}

func (s *JSONWriterSink) Emit(_ context.Context, event Event) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.enc == nil || s.err != nil {
		return
	}
	s.err = s.enc.Encode(event)
}

// Err returns the write error that stopped the sink, if any.
func (s *JSONWriterSink) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// MultiSink fans an event out to every sink in order. A panicking sink does
// not starve the ones after it; the first panic is raised again once all
// sinks have run.
type MultiSink []Sink

func (m MultiSink) Emit(ctx context.Context, event Event) {
	var first any
	for _, s := range m {
		if s == nil {
			continue
		}
		if r := emitSafely(ctx, s, event); r != nil && first == nil {
			first = r
		}
	}
	if first != nil {
		panic(first)
	}
}

func emitSafely(ctx context.Context, s Sink, event Event) (recovered any) {
	defer func() { recovered = recover() }()
	s.Emit(ctx, event)
	return nil
}
