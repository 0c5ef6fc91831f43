package config

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/leapstack-labs/leapentity/pkg/core"
)

// Output modes.
var outputModes = []string{"auto", "text", "markdown", "json"}

// Validate checks the configuration. registered reports whether a vendor
// has a provider; pass provider.IsRegistered.
func (c *Config) Validate(registered func(vendor string) bool) error {
	var errs []error
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	if !slices.Contains(outputModes, c.Output) {
		errs = append(errs, &core.ConfigError{Subject: "output", Reason: fmt.Sprintf("must be one of %s", strings.Join(outputModes, ", "))})
	}
	if c.Offline && c.SchemaFile == "" {
		errs = append(errs, &core.ConfigError{Subject: "offline", Reason: "requires schema_file"})
	}
	if c.Source != "" {
		if _, ok := c.Sources[c.Source]; !ok {
			errs = append(errs, &core.ConfigError{Subject: c.Source, Reason: "default source is not configured"})
		}
	}
	if c.Telemetry.Buffer < 0 {
		errs = append(errs, &core.ConfigError{Subject: "telemetry.buffer", Reason: "must not be negative"})
	}

	for _, name := range c.SourceNames() {
		s := c.Sources[name]
		switch {
		case s.Vendor == "":
			errs = append(errs, &core.ConfigError{Subject: name, Reason: "vendor is required"})
		case registered != nil && !registered(s.Vendor):
			errs = append(errs, &core.ConfigError{Subject: name, Reason: fmt.Sprintf("vendor %q is not registered", s.Vendor)})
		}
		if _, err := core.ParseCasePolicy(s.Case); err != nil {
			errs = append(errs, fmt.Errorf("source %s: %w", name, err))
		}
		if _, err := s.IsolationLevel(); err != nil {
			errs = append(errs, fmt.Errorf("source %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// Level parses LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelWarn, &core.ConfigError{Subject: "log_level", Reason: fmt.Sprintf("unknown level %q", c.LogLevel)}
	}
	return level, nil
}
