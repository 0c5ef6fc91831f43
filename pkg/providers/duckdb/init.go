// Package duckdb provides the DuckDB provider, backed by go-duckdb.
// Every connection installs the configured extensions, applies settings and
// creates cloud storage secrets before it is handed out.
//
// Import this package with a blank identifier to register the provider:
//
//	import _ "github.com/leapstack-labs/leapentity/pkg/providers/duckdb"
package duckdb

import "github.com/leapstack-labs/leapentity/pkg/provider"

func init() {
	provider.Register("duckdb", func(cfg provider.Config) (provider.Provider, error) {
		return New(cfg)
	})
}
