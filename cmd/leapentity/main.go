// Package main provides the leapentity command.
package main

import (
	"os"

	"github.com/leapstack-labs/leapentity/internal/cli"

	// Providers self-register.
	_ "github.com/leapstack-labs/leapentity/pkg/providers/access"
	_ "github.com/leapstack-labs/leapentity/pkg/providers/db2"
	_ "github.com/leapstack-labs/leapentity/pkg/providers/duckdb"
	_ "github.com/leapstack-labs/leapentity/pkg/providers/firebird"
	_ "github.com/leapstack-labs/leapentity/pkg/providers/mysql"
	_ "github.com/leapstack-labs/leapentity/pkg/providers/odbc"
	_ "github.com/leapstack-labs/leapentity/pkg/providers/oracle"
	_ "github.com/leapstack-labs/leapentity/pkg/providers/postgres"
	_ "github.com/leapstack-labs/leapentity/pkg/providers/sqlite"
	_ "github.com/leapstack-labs/leapentity/pkg/providers/sqlserver"
	_ "github.com/leapstack-labs/leapentity/pkg/providers/ssdt"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
