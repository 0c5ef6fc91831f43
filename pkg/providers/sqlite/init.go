// Package sqlite provides the SQLite provider, backed by the pure-Go
// modernc.org/sqlite driver.
//
// Import this package with a blank identifier to register the provider:
//
//	import _ "github.com/leapstack-labs/leapentity/pkg/providers/sqlite"
package sqlite

import "github.com/leapstack-labs/leapentity/pkg/provider"

func init() {
	provider.Register("sqlite", func(cfg provider.Config) (provider.Provider, error) {
		return New(cfg)
	})
}
