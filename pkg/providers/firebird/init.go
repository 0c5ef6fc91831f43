// Package firebird provides the Firebird provider, backed by the pure-Go
// nakagami/firebirdsql driver.
//
// Executable procedures return their outputs as a single row, which is
// read as the scalar outputs. Procedures declared with result sets are
// selectable and are called with SELECT.
//
// Import this package with a blank identifier to register the provider:
//
//	import _ "github.com/leapstack-labs/leapentity/pkg/providers/firebird"
package firebird

import "github.com/leapstack-labs/leapentity/pkg/provider"

func init() {
	provider.Register("firebird", func(cfg provider.Config) (provider.Provider, error) {
		return New(cfg)
	})
}
