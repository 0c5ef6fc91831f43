// Package access provides the Microsoft Access provider. It runs on the
// ODBC driver and the Access ODBC driver installed on the host.
//
// Import this package with a blank identifier to register the provider:
//
//	import _ "github.com/leapstack-labs/leapentity/pkg/providers/access"
package access

import "github.com/leapstack-labs/leapentity/pkg/provider"

func init() {
	provider.Register("access", func(cfg provider.Config) (provider.Provider, error) {
		return New(cfg)
	})
}
