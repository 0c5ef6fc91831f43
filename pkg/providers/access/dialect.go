package access

import (
	"github.com/leapstack-labs/leapentity/pkg/core"
	"github.com/leapstack-labs/leapentity/pkg/provider"
)

// Dialect describes Access through ODBC. Access has no queryable catalog
// over ODBC, so columns are described from an empty result set.
var Dialect = &provider.Dialect{
	Name:        "access",
	DriverName:  "odbc",
	Quoting:     core.Quoting{Start: "[", End: "]"},
	Placeholder: provider.PlaceholderQuestion,
	Returning:   provider.ReturnNone,
	SprocCall:   provider.ExecSprocCall,
	Types:       types,
}

var types = map[string]core.PortableType{
	"counter":    core.PortableInt64,
	"byte":       core.PortableInt64,
	"smallint":   core.PortableInt64,
	"integer":    core.PortableInt64,
	"long":       core.PortableInt64,
	"real":       core.PortableFloat64,
	"double":     core.PortableFloat64,
	"currency":   core.PortableDecimal,
	"decimal":    core.PortableDecimal,
	"numeric":    core.PortableDecimal,
	"bit":        core.PortableBool,
	"yesno":      core.PortableBool,
	"char":       core.PortableString,
	"varchar":    core.PortableString,
	"text":       core.PortableString,
	"longchar":   core.PortableString,
	"memo":       core.PortableString,
	"datetime":   core.PortableTime,
	"guid":       core.PortableGUID,
	"binary":     core.PortableBytes,
	"varbinary":  core.PortableBytes,
	"longbinary": core.PortableBytes,
}
