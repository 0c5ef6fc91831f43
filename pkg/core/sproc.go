package core

import (
	"sort"
	"strings"
)

// SprocName identifies a stored procedure.
type SprocName struct {
	Owner   string `json:"owner,omitempty" yaml:"owner,omitempty"`
	Package string `json:"package,omitempty" yaml:"package,omitempty"`
	Name    string `json:"name" yaml:"name"`
}

// FullName joins the non-empty parts with dots.
func (n SprocName) FullName() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{n.Owner, n.Package, n.Name} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ".")
}

// QuotedFullName quotes each non-empty part.
func (n SprocName) QuotedFullName(q Quoting) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{n.Owner, n.Package, n.Name} {
		if p != "" {
			parts = append(parts, q.Quote(p))
		}
	}
	return strings.Join(parts, ".")
}

// ParseSprocName parses "name", "owner.name" or "owner.package.name".
func ParseSprocName(s string) SprocName {
	parts := strings.Split(s, ".")
	switch len(parts) {
	case 1:
		return SprocName{Name: parts[0]}
	case 2:
		return SprocName{Owner: parts[0], Name: parts[1]}
	default:
		return SprocName{Owner: parts[0], Package: strings.Join(parts[1:len(parts)-1], "."), Name: parts[len(parts)-1]}
	}
}

// ParamDirection is the direction of a command parameter.
type ParamDirection int

const (
	In ParamDirection = iota
	Out
	InOut
	Return
)

// String implements fmt.Stringer.
func (d ParamDirection) String() string {
	switch d {
	case Out:
		return "out"
	case InOut:
		return "inout"
	case Return:
		return "return"
	default:
		return "in"
	}
}

// IsOutput reports whether the backend writes a value back through the parameter.
func (d ParamDirection) IsOutput() bool {
	return d == Out || d == InOut || d == Return
}

// QueryParameter describes one command parameter.
type QueryParameter struct {
	Name      string         `json:"name" yaml:"name"`
	Mapping   TypeMapping    `json:"mapping" yaml:"mapping"`
	Direction ParamDirection `json:"direction" yaml:"direction"`
}

// SprocParam is a resolved stored-procedure parameter.
type SprocParam struct {
	QueryParameter `yaml:",inline"`
	Ordinal        int  `json:"ordinal" yaml:"ordinal"`
	Length         *int `json:"length,omitempty" yaml:"length,omitempty"`
}

// IsCursor reports whether the parameter returns a row set.
func (p SprocParam) IsCursor() bool {
	return p.Direction.IsOutput() && p.Mapping.Portable == PortableRows
}

// SprocDefinition is a stored procedure plus its resolved signature.
type SprocDefinition struct {
	Name   SprocName    `json:"name" yaml:"name"`
	Params []SprocParam `json:"params,omitempty" yaml:"params,omitempty"`
	// ResultSets names the implicit row sets the procedure returns, in order.
	ResultSets []string `json:"result_sets,omitempty" yaml:"result_sets,omitempty"`
}

// InputParams returns the parameters a caller supplies values for, by ordinal.
func (d SprocDefinition) InputParams() []SprocParam {
	var in []SprocParam
	for _, p := range d.OrderedParams() {
		if p.Direction == In || p.Direction == InOut {
			in = append(in, p)
		}
	}
	return in
}

// OrderedParams returns the parameters sorted by ordinal.
func (d SprocDefinition) OrderedParams() []SprocParam {
	params := make([]SprocParam, len(d.Params))
	copy(params, d.Params)
	sort.SliceStable(params, func(i, j int) bool {
		return params[i].Ordinal < params[j].Ordinal
	})
	return params
}

// ScalarOutputs returns non-cursor output parameters by ordinal.
func (d SprocDefinition) ScalarOutputs() []SprocParam {
	var out []SprocParam
	for _, p := range d.OrderedParams() {
		if p.Direction.IsOutput() && !p.IsCursor() {
			out = append(out, p)
		}
	}
	return out
}

// CursorOutputs returns cursor output parameters by ordinal.
func (d SprocDefinition) CursorOutputs() []SprocParam {
	var out []SprocParam
	for _, p := range d.OrderedParams() {
		if p.IsCursor() {
			out = append(out, p)
		}
	}
	return out
}

// RowSetNames returns the declared row-set names: implicit result sets first,
// then cursor outputs.
func (d SprocDefinition) RowSetNames() []string {
	names := append([]string(nil), d.ResultSets...)
	for _, p := range d.CursorOutputs() {
		names = append(names, p.Name)
	}
	return names
}
