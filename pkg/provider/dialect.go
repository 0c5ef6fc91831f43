package provider

import (
	"sort"
	"strconv"
	"strings"

	"github.com/leapstack-labs/leapentity/pkg/core"
)

// PlaceholderStyle selects how bind parameters are written in command text.
type PlaceholderStyle int

const (
	// PlaceholderQuestion uses ? for every parameter.
	PlaceholderQuestion PlaceholderStyle = iota
	// PlaceholderDollar uses $1, $2, ...
	PlaceholderDollar
	// PlaceholderAtP uses @p1, @p2, ...
	PlaceholderAtP
	// PlaceholderColon uses :1, :2, ...
	PlaceholderColon
)

// ReturningStyle selects how an INSERT reports a generated key.
type ReturningStyle int

const (
	// ReturnNone never reads generated keys back.
	ReturnNone ReturningStyle = iota
	// ReturnLastInsertID uses sql.Result.LastInsertId.
	ReturnLastInsertID
	// ReturnClause appends RETURNING <col>.
	ReturnClause
	// ReturnOutputInserted inserts OUTPUT INSERTED.<col> before VALUES.
	ReturnOutputInserted
)

// SprocCallFunc builds the command text calling def. binds holds one
// placeholder per bound argument, in bind order.
type SprocCallFunc func(def core.SprocDefinition, q core.Quoting, binds []string) string

// Dialect is the pure-data description of one backend. Vendor packages
// declare one and hand it to BaseSQLProvider.
type Dialect struct {
	Name string
	// DriverName is the database/sql driver the vendor registers.
	DriverName    string
	Quoting       core.Quoting
	Placeholder   PlaceholderStyle
	DefaultSchema string

	// KeepConnectionOpen pins the pool to one physical connection that is
	// never closed by Release (single-file and in-memory engines).
	KeepConnectionOpen bool
	// SchemaOnly providers serve metadata from a snapshot and cannot connect.
	SchemaOnly bool
	// NamedOutputs binds output parameters as sql.Named(name, sql.Out{...}).
	// Without it scalar outputs are read from the first row of the first
	// result set.
	NamedOutputs bool
	// NamedInputs binds input parameters by name as well.
	NamedInputs bool
	// PositionalOutputs binds output parameters as bare sql.Out values for
	// drivers that reject named arguments.
	PositionalOutputs bool
	// OutputBind renders the call-site text of an output parameter that is
	// not bound, e.g. a session variable. Used without NamedOutputs.
	OutputBind func(p core.SprocParam) string
	// OutputsLast reads unbound scalar outputs from the last result set
	// instead of the first.
	OutputsLast bool
	Returning   ReturningStyle
	// EmptyInsert is appended to "INSERT INTO t" when no column is set.
	EmptyInsert string

	// TypesQuery lists backend types as (name, code). Optional.
	TypesQuery string
	// TablesQuery lists base tables as (schema, name).
	TablesQuery string
	// ColumnsQuery lists the columns of one table as (name, data_type,
	// nullable, ordinal, primary_key, autonumber, has_default, computed).
	ColumnsQuery string
	// ColumnsArgs builds the ColumnsQuery arguments. Defaults to (schema, name).
	ColumnsArgs func(t core.Table) []any
	// RelationshipsQuery lists foreign keys as (name, primary_schema,
	// primary_table, primary_column, foreign_schema, foreign_table,
	// foreign_column).
	RelationshipsQuery string
	// SprocParamsQuery lists the parameters of one procedure given
	// (owner, package, name) as (name, data_type, direction, ordinal, length).
	SprocParamsQuery string
	SprocCall        SprocCallFunc

	// Types maps lower-case backend type names to portable types.
	Types map[string]core.PortableType
	// TypeResolver overrides Types, e.g. for affinity-based backends. An
	// empty result falls through to Types.
	TypeResolver func(name string) core.PortableType
	// CursorDest returns the Dest of a cursor output parameter.
	CursorDest func() any
	// ReadCursor drains a cursor output parameter after execution.
	ReadCursor func(dest any) (*RowSet, error)
}

// FormatPlaceholder returns the placeholder for the given parameter index (1-based).
func (d *Dialect) FormatPlaceholder(index int) string {
	switch d.Placeholder {
	case PlaceholderDollar:
		return "$" + strconv.Itoa(index)
	case PlaceholderAtP:
		return "@p" + strconv.Itoa(index)
	case PlaceholderColon:
		return ":" + strconv.Itoa(index)
	default:
		return "?"
	}
}

// QuoteIdentifier quotes a single identifier.
func (d *Dialect) QuoteIdentifier(name string) string {
	return d.Quoting.Quote(name)
}

// Portable maps a backend type name to its portable type. Names are matched
// case-insensitively with any length or precision suffix removed; types the
// dialect does not know are typeless (PortableAny).
func (d *Dialect) Portable(typeName string) core.PortableType {
	name := NormalizeTypeName(typeName)
	if d.TypeResolver != nil {
		if t := d.TypeResolver(name); t != "" {
			return t
		}
	}
	if t, ok := d.Types[name]; ok {
		return t
	}
	return core.PortableAny
}

// Mapping builds the type mapping of a backend type.
func (d *Dialect) Mapping(typeName string, code *int) core.TypeMapping {
	return core.TypeMapping{BackendName: typeName, BackendCode: code, Portable: d.Portable(typeName)}
}

// TypeMappings returns the static type map sorted by backend name.
func (d *Dialect) TypeMappings() []core.TypeMapping {
	names := make([]string, 0, len(d.Types))
	for name := range d.Types {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]core.TypeMapping, 0, len(names))
	for _, name := range names {
		out = append(out, core.TypeMapping{BackendName: name, Portable: d.Types[name]})
	}
	return out
}

// NormalizeTypeName lower-cases a type name and strips a "(...)" suffix.
func NormalizeTypeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if i := strings.IndexByte(name, '('); i >= 0 {
		rest := ""
		if j := strings.IndexByte(name[i:], ')'); j >= 0 {
			rest = strings.TrimSpace(name[i+j+1:])
		}
		name = strings.TrimSpace(name[:i])
		if rest != "" {
			name += " " + rest
		}
	}
	return name
}

// ExecSprocCall builds "EXEC name p1, p2" style calls.
func ExecSprocCall(def core.SprocDefinition, q core.Quoting, binds []string) string {
	text := "EXEC " + def.Name.QuotedFullName(q)
	if len(binds) > 0 {
		text += " " + strings.Join(binds, ", ")
	}
	return text
}

// CallSprocCall builds "CALL name(p1, p2)" calls.
func CallSprocCall(def core.SprocDefinition, q core.Quoting, binds []string) string {
	return "CALL " + def.Name.QuotedFullName(q) + "(" + strings.Join(binds, ", ") + ")"
}

// SelectSprocCall builds "SELECT * FROM name(p1, p2)" calls for
// set-returning functions.
func SelectSprocCall(def core.SprocDefinition, q core.Quoting, binds []string) string {
	return "SELECT * FROM " + def.Name.QuotedFullName(q) + "(" + strings.Join(binds, ", ") + ")"
}

// BlockSprocCall builds "BEGIN name(p1, p2); END;" anonymous blocks.
func BlockSprocCall(def core.SprocDefinition, q core.Quoting, binds []string) string {
	return "BEGIN " + def.Name.QuotedFullName(q) + "(" + strings.Join(binds, ", ") + "); END;"
}

// NameOnlySprocCall sends the bare procedure name; drivers such as
// go-mssqldb execute it as an RPC call with named arguments.
func NameOnlySprocCall(def core.SprocDefinition, _ core.Quoting, _ []string) string {
	return def.Name.FullName()
}
