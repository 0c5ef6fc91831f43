package core

import "strings"

// Column represents a column in a database table.
type Column struct {
	Table      string      `json:"table" yaml:"table"`
	Name       string      `json:"name" yaml:"name"`
	Mapping    TypeMapping `json:"mapping" yaml:"mapping"`
	Position   int         `json:"position" yaml:"position"`
	PrimaryKey bool        `json:"primary_key,omitempty" yaml:"primary_key,omitempty"`
	Nullable   bool        `json:"nullable,omitempty" yaml:"nullable,omitempty"`
	AutoNumber bool        `json:"autonumber,omitempty" yaml:"autonumber,omitempty"`
	HasDefault bool        `json:"has_default,omitempty" yaml:"has_default,omitempty"`
	Computed   bool        `json:"computed,omitempty" yaml:"computed,omitempty"`
}

// Writable reports whether the column may appear in an INSERT or UPDATE.
func (c Column) Writable() bool {
	return !c.AutoNumber && !c.Computed
}

// PrimaryKeys returns the names of the primary-key columns in cols.
func PrimaryKeys(cols []Column) []string {
	var keys []string
	for _, c := range cols {
		if c.PrimaryKey {
			keys = append(keys, c.Name)
		}
	}
	return keys
}

// Quoting holds the identifier quote characters of a backend.
type Quoting struct {
	Start string
	End   string
}

// Quote quotes a single identifier, doubling any embedded end quote.
func (q Quoting) Quote(name string) string {
	if q.Start == "" && q.End == "" {
		return name
	}
	return q.Start + strings.ReplaceAll(name, q.End, q.End+q.End) + q.End
}

// Table identifies a table by schema and name.
type Table struct {
	Schema string `json:"schema,omitempty" yaml:"schema,omitempty"`
	Name   string `json:"name" yaml:"name"`
}

// FullName returns "schema.name", or just the name when no schema is set.
func (t Table) FullName() string {
	if t.Schema == "" {
		return t.Name
	}
	return t.Schema + "." + t.Name
}

// QuotedFullName returns the full name with each part quoted.
func (t Table) QuotedFullName(q Quoting) string {
	if t.Schema == "" {
		return q.Quote(t.Name)
	}
	return q.Quote(t.Schema) + "." + q.Quote(t.Name)
}

// String implements fmt.Stringer.
func (t Table) String() string {
	return t.FullName()
}

// ParseTable splits a "schema.name" reference. A reference without a schema
// segment is treated as name-only.
func ParseTable(fullName string) Table {
	if i := strings.IndexByte(fullName, '.'); i >= 0 {
		return Table{Schema: fullName[:i], Name: fullName[i+1:]}
	}
	return Table{Name: fullName}
}

// Relationship is a directed foreign-key edge between two tables.
type Relationship struct {
	Name         string `json:"name" yaml:"name"`
	PrimaryTable string `json:"primary_table" yaml:"primary_table"`
	PrimaryKey   string `json:"primary_key" yaml:"primary_key"`
	ForeignTable string `json:"foreign_table" yaml:"foreign_table"`
	ForeignKey   string `json:"foreign_key" yaml:"foreign_key"`
}

// Direction selects which side of a relationship a navigation constrains.
type Direction int

const (
	// Children navigates from a parent row to the rows referencing it.
	Children Direction = iota
	// Parents navigates from a child row to the row it references.
	Parents
)

// String implements fmt.Stringer.
func (d Direction) String() string {
	if d == Parents {
		return "parents"
	}
	return "children"
}
