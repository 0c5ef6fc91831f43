// Package ssdt provides the schema-only SSDT provider. It describes a SQL
// Server database project from a saved schema snapshot and never opens a
// connection, which makes it the provider for offline tooling and tests.
//
// Import this package with a blank identifier to register the provider:
//
//	import _ "github.com/leapstack-labs/leapentity/pkg/providers/ssdt"
package ssdt

import "github.com/leapstack-labs/leapentity/pkg/provider"

func init() {
	provider.Register("ssdt", func(cfg provider.Config) (provider.Provider, error) {
		return New(cfg)
	})
}
