// Package mysql provides the MySQL and MariaDB provider, backed by
// go-sql-driver/mysql.
//
// Procedure outputs are returned through session variables: the call binds
// @name for each output parameter and a trailing SELECT reads them back, so
// connections are opened with multiStatements enabled.
//
// Import this package with a blank identifier to register the provider:
//
//	import _ "github.com/leapstack-labs/leapentity/pkg/providers/mysql"
package mysql

import "github.com/leapstack-labs/leapentity/pkg/provider"

func init() {
	factory := func(cfg provider.Config) (provider.Provider, error) {
		return New(cfg)
	}
	provider.Register("mysql", factory)
	provider.Register("mariadb", factory)
}
