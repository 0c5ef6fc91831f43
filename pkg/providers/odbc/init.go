// Package odbc provides a generic ODBC provider, backed by
// alexbrainman/odbc. The driver binds input parameters only, so scalar
// outputs of a procedure must be returned as its first result set.
//
// Without catalog queries, tables are discovered as they are used and
// columns are described from an empty result set; primary keys therefore
// have to come from a schema snapshot.
//
// Import this package with a blank identifier to register the provider:
//
//	import _ "github.com/leapstack-labs/leapentity/pkg/providers/odbc"
package odbc

import "github.com/leapstack-labs/leapentity/pkg/provider"

func init() {
	provider.Register("odbc", func(cfg provider.Config) (provider.Provider, error) {
		return New(cfg)
	})
}
