package core

import (
	"errors"
	"fmt"
)

// Error classes. Use errors.Is to classify errors returned by providers and
// data contexts.
var (
	ErrConfiguration    = errors.New("configuration error")
	ErrSchemaResolution = errors.New("schema resolution error")
)

// ConfigError reports a configuration problem that retrying will not fix,
// such as an unknown backend or a table without exactly one primary key.
type ConfigError struct {
	// Subject names the offending table, identity or setting.
	Subject string
	Reason  string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Subject, e.Reason)
}

// Is makes errors.Is(err, ErrConfiguration) match.
func (e *ConfigError) Is(target error) bool {
	return target == ErrConfiguration
}

// SchemaError reports a table or column that could not be resolved.
type SchemaError struct {
	Table  string
	Column string
}

func (e *SchemaError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("table %s not found", e.Table)
	}
	return fmt.Sprintf("column %s not found in table %s", e.Column, e.Table)
}

// Is makes errors.Is(err, ErrSchemaResolution) match.
func (e *SchemaError) Is(target error) bool {
	return target == ErrSchemaResolution
}
