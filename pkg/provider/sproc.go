package provider

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/leapstack-labs/leapentity/pkg/core"
	"github.com/leapstack-labs/leapentity/pkg/telemetry"
)

// SprocResult is the outcome of a stored procedure: Unit, Scalar,
// SingleResultSet or Set.
type SprocResult interface {
	sprocResult()
}

// Unit is the result of a procedure without outputs or row sets.
type Unit struct{}

// Scalar is one named output value.
type Scalar struct {
	Name  string
	Value any
}

// SingleResultSet is one named row set.
type SingleResultSet struct {
	Name string
	Rows *RowSet
}

// Set holds row sets in declared order followed by scalar outputs by
// ordinal. Items are Scalar or SingleResultSet.
type Set struct {
	Items []SprocResult
}

func (Unit) sprocResult()            {}
func (Scalar) sprocResult()          {}
func (SingleResultSet) sprocResult() {}
func (Set) sprocResult()             {}

// ExecuteSproc implements Provider. args bind positionally to the input
// parameters of def in ordinal order.
func (b *BaseSQLProvider) ExecuteSproc(ctx context.Context, conn *sql.Conn, def core.SprocDefinition, args []any) (SprocResult, error) {
	if conn == nil {
		return nil, fmt.Errorf("database connection not established")
	}
	if inputs := def.InputParams(); len(args) != len(inputs) {
		return nil, fmt.Errorf("procedure %s expects %d arguments, got %d", def.Name.FullName(), len(inputs), len(args))
	}

	ordered := def.OrderedParams()
	outs := make(map[int]any)
	var bound []any
	var binds []string
	next := 0
	for i, p := range ordered {
		var value any
		if p.Direction == core.In || p.Direction == core.InOut {
			value = args[next]
			next++
		}
		if p.Direction.IsOutput() && !b.Dial.NamedOutputs {
			switch {
			case p.Direction == core.InOut:
				bound = append(bound, value)
				binds = append(binds, b.Dial.FormatPlaceholder(len(bound)))
			case b.Dial.OutputBind != nil && !p.IsCursor():
				binds = append(binds, b.Dial.OutputBind(p))
			}
			continue
		}

		arg := b.NewParameter(p.QueryParameter, value)
		bound = append(bound, arg)
		binds = append(binds, b.bindText(arg, p.Direction, len(bound)))
		if out, ok := outArg(arg); ok {
			outs[i] = out.Dest
		}
	}

	call := b.Dial.SprocCall
	if call == nil {
		call = ExecSprocCall
	}
	cmd := b.NewCommand(conn, call(def, b.Dial.Quoting, binds))
	cmd.Kind = telemetry.KindSproc

	rows, err := cmd.Query(ctx, bound...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute procedure %s: %w", def.Name.FullName(), err)
	}
	sets, err := drainResultSets(rows, b.Dial, def.Name.FullName())
	// Output parameters are only populated once the rows are closed.
	if cerr := rows.Close(); err == nil && cerr != nil {
		err = cerr
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read procedure %s results: %w", def.Name.FullName(), err)
	}

	scalars := make([]SprocResult, 0)
	scalarParams := def.ScalarOutputs()
	if len(scalarParams) > 0 && !b.Dial.NamedOutputs {
		var first *RowSet
		switch {
		case len(sets) == 0:
		case b.Dial.OutputsLast:
			first, sets = sets[len(sets)-1], sets[:len(sets)-1]
		default:
			first, sets = sets[0], sets[1:]
		}
		for _, p := range scalarParams {
			scalars = append(scalars, Scalar{Name: p.Name, Value: outputFromRow(first, p.Name)})
		}
	} else {
		for i, p := range ordered {
			if p.Direction.IsOutput() && !p.IsCursor() {
				scalars = append(scalars, Scalar{Name: p.Name, Value: derefDest(outs[i])})
			}
		}
	}

	var items []SprocResult
	for i := 0; i < len(sets) || i < len(def.ResultSets); i++ {
		name := fmt.Sprintf("Result%d", i+1)
		if i < len(def.ResultSets) {
			name = def.ResultSets[i]
		}
		set := &RowSet{}
		if i < len(sets) {
			set = sets[i]
		}
		items = append(items, SingleResultSet{Name: name, Rows: set})
	}
	for i, p := range ordered {
		if !p.IsCursor() {
			continue
		}
		set := &RowSet{}
		if dest, ok := outs[i]; ok && b.Dial.ReadCursor != nil {
			if set, err = b.Dial.ReadCursor(dest); err != nil {
				return nil, fmt.Errorf("failed to read cursor %s of procedure %s: %w", p.Name, def.Name.FullName(), err)
			}
		}
		items = append(items, SingleResultSet{Name: p.Name, Rows: set})
	}
	items = append(items, scalars...)

	switch len(items) {
	case 0:
		return Unit{}, nil
	case 1:
		return items[0], nil
	}
	return Set{Items: items}, nil
}

func (b *BaseSQLProvider) bindText(arg any, dir core.ParamDirection, n int) string {
	named, ok := arg.(sql.NamedArg)
	if !ok {
		return b.Dial.FormatPlaceholder(n)
	}
	switch b.Dial.Placeholder {
	case PlaceholderColon:
		return ":" + named.Name
	case PlaceholderAtP:
		if dir.IsOutput() {
			return "@" + named.Name + " OUTPUT"
		}
		return "@" + named.Name
	}
	return b.Dial.FormatPlaceholder(n)
}

func outArg(arg any) (sql.Out, bool) {
	switch a := arg.(type) {
	case sql.Out:
		return a, true
	case sql.NamedArg:
		out, ok := a.Value.(sql.Out)
		return out, ok
	}
	return sql.Out{}, false
}

// drainResultSets buffers every result set that has columns.
func drainResultSets(rows *sql.Rows, d *Dialect, table string) ([]*RowSet, error) {
	var sets []*RowSet
	for {
		set, err := BufferRows(rows, d, table)
		if err != nil {
			return nil, err
		}
		if len(set.Columns) > 0 {
			sets = append(sets, set)
		}
		if !rows.NextResultSet() {
			break
		}
	}
	return sets, rows.Err()
}

func outputFromRow(set *RowSet, param string) any {
	if set == nil || len(set.Rows) == 0 {
		return nil
	}
	name := BindName(param)
	for i, c := range set.Columns {
		if strings.EqualFold(c.Name, name) {
			return set.Rows[0][i]
		}
	}
	return nil
}

func outDest(t core.PortableType, dir core.ParamDirection, value any) any {
	var dest any
	switch t {
	case core.PortableString, core.PortableDecimal, core.PortableGUID:
		dest = new(string)
	case core.PortableInt64:
		dest = new(int64)
	case core.PortableFloat64:
		dest = new(float64)
	case core.PortableBool:
		dest = new(bool)
	case core.PortableTime:
		dest = new(time.Time)
	case core.PortableBytes:
		dest = new([]byte)
	default:
		dest = new(any)
	}
	if dir != core.InOut || value == nil {
		return dest
	}
	elem := reflect.ValueOf(dest).Elem()
	v := reflect.ValueOf(value)
	if v.Type().AssignableTo(elem.Type()) {
		elem.Set(v)
		return dest
	}
	return &value
}

func derefDest(dest any) any {
	if dest == nil {
		return nil
	}
	v := reflect.ValueOf(dest)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return dest
	}
	return v.Elem().Interface()
}
