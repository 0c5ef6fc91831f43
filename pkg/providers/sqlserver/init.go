// Package sqlserver provides the Microsoft SQL Server provider, backed by
// go-mssqldb. Procedures run as RPC calls with named parameters, so scalar
// outputs come back through sql.Out.
//
// Import this package with a blank identifier to register the provider:
//
//	import _ "github.com/leapstack-labs/leapentity/pkg/providers/sqlserver"
package sqlserver

import "github.com/leapstack-labs/leapentity/pkg/provider"

func init() {
	provider.Register("sqlserver", func(cfg provider.Config) (provider.Provider, error) {
		return New(cfg)
	})
}
