package core

import (
	"fmt"
	"strings"
)

// PortableType is the backend-independent value type of a column or parameter.
type PortableType string

// Portable value types.
const (
	PortableString  PortableType = "string"
	PortableInt64   PortableType = "int64"
	PortableFloat64 PortableType = "float64"
	PortableDecimal PortableType = "decimal"
	PortableBool    PortableType = "bool"
	PortableTime    PortableType = "time"
	PortableBytes   PortableType = "bytes"
	PortableGUID    PortableType = "guid"
	// PortableAny is used for typeless backend columns (e.g. SQLite without affinity).
	PortableAny PortableType = "any"
	// PortableRows marks cursor outputs and result columns holding entity sequences.
	PortableRows    PortableType = "rows"
	PortableUnknown PortableType = "unknown"
)

// Known reports whether t is one of the declared portable types other than unknown.
func (t PortableType) Known() bool {
	switch t {
	case PortableString, PortableInt64, PortableFloat64, PortableDecimal, PortableBool,
		PortableTime, PortableBytes, PortableGUID, PortableAny, PortableRows:
		return true
	}
	return false
}

// TypeMapping maps one backend-native type descriptor to a portable type.
type TypeMapping struct {
	BackendName string       `json:"backend_name,omitempty" yaml:"backend_name,omitempty"`
	BackendCode *int         `json:"backend_code,omitempty" yaml:"backend_code,omitempty"`
	Portable    PortableType `json:"portable" yaml:"portable"`
}

// String renders the mapping as backend→portable.
func (m TypeMapping) String() string {
	name := m.BackendName
	if name == "" {
		name = "?"
	}
	if m.BackendCode != nil {
		name = fmt.Sprintf("%s#%d", name, *m.BackendCode)
	}
	return name + "->" + string(m.Portable)
}

// CasePolicy controls how object names are matched against the backend catalog.
type CasePolicy int

const (
	// CaseExact keeps names as reported by the backend.
	CaseExact CasePolicy = iota
	// CaseInsensitiveUpper folds names to upper case.
	CaseInsensitiveUpper
	// CaseInsensitiveLower folds names to lower case.
	CaseInsensitiveLower
)

// String returns the configuration spelling of the policy.
func (p CasePolicy) String() string {
	switch p {
	case CaseInsensitiveUpper:
		return "upper"
	case CaseInsensitiveLower:
		return "lower"
	default:
		return "exact"
	}
}

// ParseCasePolicy parses "exact", "upper" or "lower" (empty means exact).
func ParseCasePolicy(s string) (CasePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "exact":
		return CaseExact, nil
	case "upper", "insensitive_upper":
		return CaseInsensitiveUpper, nil
	case "lower", "insensitive_lower":
		return CaseInsensitiveLower, nil
	}
	return CaseExact, &ConfigError{Subject: s, Reason: "unknown case policy"}
}
