// Package db2 provides the IBM Db2 provider, backed by go_ibm_db. Output
// parameters bind positionally as sql.Out values.
//
// Import this package with a blank identifier to register the provider:
//
//	import _ "github.com/leapstack-labs/leapentity/pkg/providers/db2"
package db2

import "github.com/leapstack-labs/leapentity/pkg/provider"

func init() {
	provider.Register("db2", func(cfg provider.Config) (provider.Provider, error) {
		return New(cfg)
	})
}
