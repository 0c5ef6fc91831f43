package odbc

import (
	"strings"

	"github.com/leapstack-labs/leapentity/pkg/core"
	"github.com/leapstack-labs/leapentity/pkg/provider"
)

// Dialect describes a generic ODBC data source.
var Dialect = &provider.Dialect{
	Name:        "odbc",
	DriverName:  "odbc",
	Quoting:     core.Quoting{Start: `"`, End: `"`},
	Placeholder: provider.PlaceholderQuestion,
	Returning:   provider.ReturnNone,
	SprocCall:   EscapeSprocCall,
	Types:       Types,
}

// EscapeSprocCall builds the ODBC escape sequence "{CALL name(?, ?)}".
func EscapeSprocCall(def core.SprocDefinition, q core.Quoting, binds []string) string {
	return "{CALL " + def.Name.QuotedFullName(q) + "(" + strings.Join(binds, ", ") + ")}"
}

// Types maps the SQL type names ODBC drivers commonly report.
var Types = map[string]core.PortableType{
	"bit":                        core.PortableBool,
	"boolean":                    core.PortableBool,
	"tinyint":                    core.PortableInt64,
	"smallint":                   core.PortableInt64,
	"integer":                    core.PortableInt64,
	"int":                        core.PortableInt64,
	"bigint":                     core.PortableInt64,
	"real":                       core.PortableFloat64,
	"float":                      core.PortableFloat64,
	"double":                     core.PortableFloat64,
	"double precision":           core.PortableFloat64,
	"decimal":                    core.PortableDecimal,
	"numeric":                    core.PortableDecimal,
	"char":                       core.PortableString,
	"varchar":                    core.PortableString,
	"longvarchar":                core.PortableString,
	"wchar":                      core.PortableString,
	"wvarchar":                   core.PortableString,
	"wlongvarchar":               core.PortableString,
	"date":                       core.PortableTime,
	"time":                       core.PortableTime,
	"timestamp":                  core.PortableTime,
	"datetime":                   core.PortableTime,
	"binary":                     core.PortableBytes,
	"varbinary":                  core.PortableBytes,
	"longvarbinary":              core.PortableBytes,
	"guid":                       core.PortableGUID,
	"uniqueidentifier":           core.PortableGUID,
	"character varying":          core.PortableString,
	"timestamp with time zone":   core.PortableTime,
	"binary large object":        core.PortableBytes,
	"character large object":     core.PortableString,
	"national character":         core.PortableString,
	"national character varying": core.PortableString,
}
