// Package postgres provides the PostgreSQL provider, backed by the pgx
// database/sql driver.
//
// Import this package with a blank identifier to register the provider:
//
//	import _ "github.com/leapstack-labs/leapentity/pkg/providers/postgres"
package postgres

import "github.com/leapstack-labs/leapentity/pkg/provider"

func init() {
	provider.Register("postgres", func(cfg provider.Config) (provider.Provider, error) {
		return New(cfg)
	})
}
