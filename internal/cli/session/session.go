// Package session wires configuration into a provider registry and a data
// context for one CLI invocation.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/leapstack-labs/leapentity/internal/cli/output"
	"github.com/leapstack-labs/leapentity/internal/config"
	"github.com/leapstack-labs/leapentity/pkg/datacontext"
	"github.com/leapstack-labs/leapentity/pkg/registry"
	"github.com/leapstack-labs/leapentity/pkg/schemacache"
	"github.com/leapstack-labs/leapentity/pkg/telemetry"
)

// closeTimeout bounds how long Close waits for buffered telemetry.
const closeTimeout = 2 * time.Second

type sessionKey struct{}

// Session holds the state of one invocation. The registry and data context
// are created on first use, so commands that never touch a database do not
// connect.
type Session struct {
	Config *config.Config
	Logger *slog.Logger
	Out    *output.Renderer

	source  string
	reg     *registry.Registry
	pub     *telemetry.Publisher
	metrics *prometheus.Registry
	dc      *datacontext.Context
}

// New creates a session. A nil logger discards.
func New(cfg *config.Config, logger *slog.Logger, out *output.Renderer) *Session {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Session{Config: cfg, Logger: logger, Out: out}
}

// WithSession stores s in ctx.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// FromContext returns the session stored in ctx, or nil.
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionKey{}).(*Session)
	return s
}

// Source returns the name of the selected source once DataContext ran.
func (s *Session) Source() string { return s.source }

// DataContext returns the data context of the selected source, creating
// the registry and provider on first call.
func (s *Session) DataContext(ctx context.Context) (*datacontext.Context, error) {
	if s.dc != nil {
		return s.dc, nil
	}

	name, src, err := s.Config.Resolve("")
	if err != nil {
		return nil, err
	}
	id, err := src.Identity(name)
	if err != nil {
		return nil, err
	}
	isolation, err := src.IsolationLevel()
	if err != nil {
		return nil, err
	}

	opts := []registry.Option{registry.WithLogger(s.Logger)}
	if s.Config.Offline {
		f, err := schemacache.Load(s.Config.SchemaFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load schema for offline use: %w", err)
		}
		opts = append(opts, registry.WithSnapshot(f))
	}
	sink, err := s.sink()
	if err != nil {
		return nil, err
	}
	if sink != nil {
		s.pub = telemetry.NewPublisher(sink, telemetry.WithLogger(s.Logger), telemetry.WithBuffer(s.Config.Telemetry.Buffer))
		opts = append(opts, registry.WithPublisher(s.pub))
	}
	s.reg = registry.New(opts...)

	dc, err := datacontext.New(ctx, s.reg, src.Connection, id,
		datacontext.WithLogger(s.Logger),
		datacontext.WithIsolation(isolation),
	)
	if err != nil {
		return nil, err
	}
	s.source = name
	s.dc = dc
	s.Logger.Debug("opened data context", "source", name, "vendor", id.Vendor, "offline", s.Config.Offline)
	return dc, nil
}

func (s *Session) sink() (telemetry.Sink, error) {
	var sinks telemetry.MultiSink
	if s.Config.Telemetry.Log {
		sinks = append(sinks, telemetry.NewLogSink(s.Logger))
	}
	if s.Config.Telemetry.Prometheus {
		s.metrics = prometheus.NewRegistry()
		ps, err := telemetry.NewPrometheusSink(s.metrics)
		if err != nil {
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
		sinks = append(sinks, ps)
	}
	if len(sinks) == 0 {
		return nil, nil
	}
	return sinks, nil
}

// SaveSchema writes the schema of the open providers to path.
func (s *Session) SaveSchema(path string) error {
	if s.reg == nil {
		return errors.New("no data source has been opened")
	}
	return s.reg.SaveSchema(path)
}

// Close releases the data context, the registry and telemetry.
func (s *Session) Close() error {
	var errs []error
	if s.dc != nil {
		errs = append(errs, s.dc.Close())
	}
	if s.reg != nil {
		errs = append(errs, s.reg.Close())
	}
	if s.pub != nil {
		ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		errs = append(errs, s.pub.Close(ctx))
		cancel()
		if dropped := s.pub.Dropped(); dropped > 0 {
			s.Logger.Warn("telemetry events dropped", "count", dropped)
		}
	}
	s.logMetrics()
	return errors.Join(errs...)
}

// logMetrics writes the command counters at debug level.
func (s *Session) logMetrics() {
	if s.metrics == nil {
		return
	}
	families, err := s.metrics.Gather()
	if err != nil {
		s.Logger.Warn("failed to gather metrics", "error", err)
		return
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			attrs := []any{"metric", mf.GetName()}
			for _, lp := range m.GetLabel() {
				attrs = append(attrs, lp.GetName(), lp.GetValue())
			}
			switch {
			case m.GetCounter() != nil:
				attrs = append(attrs, "value", m.GetCounter().GetValue())
			case m.GetHistogram() != nil:
				attrs = append(attrs, "count", m.GetHistogram().GetSampleCount(), "sum", m.GetHistogram().GetSampleSum())
			}
			s.Logger.Debug("command metrics", attrs...)
		}
	}
}
