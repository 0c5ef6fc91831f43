// Package core defines the shared language of the leapentity runtime.
//
// This package contains:
//   - Schema value types (TypeMapping, Column, Table, Relationship)
//   - Stored-procedure signatures (SprocName, SprocParam, SprocDefinition)
//   - Resolution policies (CasePolicy)
//   - The error taxonomy shared by providers and the data context
//
// The Golden Rule: pkg/core imports ONLY stdlib.
// All other packages depend on core, not the reverse.
package core
