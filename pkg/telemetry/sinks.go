package telemetry

import (
	"context"
	"errors"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

// LogSink writes each event to a slog logger.
type LogSink struct {
	Logger *slog.Logger
	Level  slog.Level
}

// NewLogSink creates a sink logging at debug level. nil uses a discard logger.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &LogSink{Logger: logger, Level: slog.LevelDebug}
}

// Observe implements Sink.
func (s *LogSink) Observe(ctx context.Context, ev Event) error {
	s.Logger.Log(ctx, s.Level, "executing command",
		"connection", ev.Connection,
		"vendor", ev.Vendor,
		"kind", string(ev.Kind),
		"command", ev.Rendered,
		"params", len(ev.Params),
	)
	return nil
}

// Metric names exported by PrometheusSink.
const (
	MetricCommandsTotal    = "commands_total"
	MetricCommandParams    = "command_params"
	metricsNamespace       = "leapentity"
	metricsLabelVendor     = "vendor"
	metricsLabelKind       = "kind"
	metricsLabelConnection = "connection"
)

// PrometheusSink counts commands per vendor, kind and connection.
type PrometheusSink struct {
	Commands *prometheus.CounterVec
	Params   *prometheus.HistogramVec
}

// NewPrometheusSink creates the collectors and registers them with reg.
// A nil reg skips registration.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	s := &PrometheusSink{
		Commands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      MetricCommandsTotal,
				Help:      "Number of commands published before execution.",
			},
			[]string{metricsLabelVendor, metricsLabelKind, metricsLabelConnection},
		),
		Params: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      MetricCommandParams,
				Help:      "Number of bound parameters per command.",
				Buckets:   []float64{0, 1, 2, 4, 8, 16, 32, 64},
			},
			[]string{metricsLabelVendor, metricsLabelKind},
		),
	}
	if reg != nil {
		for _, c := range []prometheus.Collector{s.Commands, s.Params} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return s, nil
}

// Observe implements Sink.
func (s *PrometheusSink) Observe(_ context.Context, ev Event) error {
	s.Commands.WithLabelValues(ev.Vendor, string(ev.Kind), ev.Connection).Inc()
	s.Params.WithLabelValues(ev.Vendor, string(ev.Kind)).Observe(float64(len(ev.Params)))
	return nil
}

// MultiSink fans an event out to every sink and joins their errors.
type MultiSink []Sink

// Observe implements Sink.
func (m MultiSink) Observe(ctx context.Context, ev Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Observe(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
