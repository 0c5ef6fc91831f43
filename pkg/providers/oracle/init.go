// Package oracle provides the Oracle provider, backed by godror. godror
// needs cgo and the Oracle client libraries at run time.
//
// Procedures run inside an anonymous PL/SQL block with every parameter
// bound by name. REF CURSOR outputs are read back as row sets.
//
// Import this package with a blank identifier to register the provider:
//
//	import _ "github.com/leapstack-labs/leapentity/pkg/providers/oracle"
package oracle

import "github.com/leapstack-labs/leapentity/pkg/provider"

func init() {
	provider.Register("oracle", func(cfg provider.Config) (provider.Provider, error) {
		return New(cfg)
	})
}
