// Package telemetry publishes every executed command to an observation sink.
//
// Publishing never blocks the caller and never fails the operation: events go
// through a bounded buffer drained by one goroutine, a full buffer drops the
// event (and counts the drop), and sink errors or panics are only logged.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/leapstack-labs/leapentity/pkg/core"
)

// Kind classifies an executed command.
type Kind string

// Command kinds.
const (
	KindQuery Kind = "query"
	KindExec  Kind = "exec"
	KindSproc Kind = "sproc"
)

// Param is one bound parameter of a command.
type Param struct {
	Name      string
	Value     any
	Direction core.ParamDirection
}

// Event describes one command about to be executed.
type Event struct {
	// Connection identifies the data source (the provider identity).
	Connection string
	Vendor     string
	Kind       Kind
	// Text is the command text or the stored-procedure name.
	Text     string
	Rendered string
	Params   []Param
	At       time.Time
}

// NewEvent builds an event and renders the command with its parameter values.
func NewEvent(connection, vendor string, kind Kind, text string, params []Param) Event {
	return Event{
		Connection: connection,
		Vendor:     vendor,
		Kind:       kind,
		Text:       text,
		Rendered:   Render(text, params),
		Params:     params,
		At:         time.Now(),
	}
}

// Render appends the parameter values to text: "text -- p1=1, p2='x'".
func Render(text string, params []Param) string {
	if len(params) == 0 {
		return text
	}
	parts := make([]string, 0, len(params))
	for i, p := range params {
		name := p.Name
		if name == "" {
			name = fmt.Sprintf("$%d", i+1)
		}
		if p.Direction.IsOutput() {
			name += " " + p.Direction.String()
		}
		parts = append(parts, name+"="+renderValue(p.Value))
	}
	return text + " -- " + strings.Join(parts, ", ")
}

func renderValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case string:
		return "'" + strings.ReplaceAll(x, "'", "''") + "'"
	case []byte:
		return fmt.Sprintf("<%d bytes>", len(x))
	case time.Time:
		return "'" + x.Format(time.RFC3339Nano) + "'"
	default:
		return fmt.Sprint(x)
	}
}

// Sink observes published events.
type Sink interface {
	Observe(ctx context.Context, ev Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, ev Event) error

// Observe implements Sink.
func (f SinkFunc) Observe(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}

// Nop is a sink that discards every event.
var Nop Sink = SinkFunc(func(context.Context, Event) error { return nil })

const defaultBuffer = 256

type queued struct {
	ctx context.Context
	ev  Event
}

// Publisher delivers events to a sink asynchronously. A nil *Publisher is
// valid and discards events.
type Publisher struct {
	sink   Sink
	logger *slog.Logger
	queue  chan queued

	dropped atomic.Uint64
	failed  atomic.Uint64

	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
	done      chan struct{}
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithLogger sets the logger used for sink failures and drops.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithBuffer sets the number of events held before new ones are dropped.
func WithBuffer(n int) Option {
	return func(p *Publisher) {
		if n > 0 {
			p.queue = make(chan queued, n)
		}
	}
}

// NewPublisher starts a publisher delivering to sink.
func NewPublisher(sink Sink, opts ...Option) *Publisher {
	if sink == nil {
		sink = Nop
	}
	p := &Publisher{
		sink:   sink,
		logger: slog.New(slog.DiscardHandler),
		queue:  make(chan queued, defaultBuffer),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	go p.run()
	return p
}

// Publish enqueues ev without blocking.
func (p *Publisher) Publish(ctx context.Context, ev Event) {
	if p == nil {
		return
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.dropped.Add(1)
		return
	}
	select {
	case p.queue <- queued{ctx: context.WithoutCancel(ctx), ev: ev}:
	default:
		if p.dropped.Add(1) == 1 {
			p.logger.Warn("telemetry buffer full, dropping events", "connection", ev.Connection)
		}
	}
}

// Dropped returns the number of events that could not be buffered.
func (p *Publisher) Dropped() uint64 {
	if p == nil {
		return 0
	}
	return p.dropped.Load()
}

// Failed returns the number of events the sink rejected or panicked on.
func (p *Publisher) Failed() uint64 {
	if p == nil {
		return 0
	}
	return p.failed.Load()
}

// Close stops accepting events and waits until the buffered ones are
// delivered or ctx is done.
func (p *Publisher) Close(ctx context.Context) error {
	if p == nil {
		return nil
	}
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.queue)
		p.mu.Unlock()
	})
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Publisher) run() {
	defer close(p.done)
	for q := range p.queue {
		p.deliver(q)
	}
}

func (p *Publisher) deliver(q queued) {
	defer func() {
		if r := recover(); r != nil {
			p.failed.Add(1)
			p.logger.Error("telemetry sink panicked", "panic", r, "connection", q.ev.Connection)
		}
	}()
	if err := p.sink.Observe(q.ctx, q.ev); err != nil {
		p.failed.Add(1)
		p.logger.Warn("telemetry sink failed", "error", err, "connection", q.ev.Connection)
	}
}
