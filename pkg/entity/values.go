package entity

import (
	"database/sql/driver"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/leapstack-labs/leapentity/pkg/core"
)

// TypeError reports a value that cannot be stored in a column.
type TypeError struct {
	Table  string
	Column string
	Type   core.PortableType
	Value  any
	Reason string
}

func (e *TypeError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("column %s.%s: cannot assign %T: %s", e.Table, e.Column, e.Value, e.Reason)
	}
	return fmt.Sprintf("column %s.%s: cannot assign %T to %s", e.Table, e.Column, e.Value, e.Type)
}

// timeLayouts are tried in order when a backend returns temporal values as text.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

// Normalize maps nil, typed nil pointers and backend null sentinels
// (sql.Null* with Valid=false, any driver.Valuer producing nil) to nil.
func Normalize(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case time.Time, []byte, string:
		return v
	case uuid.UUID:
		return x.String()
	case driver.Valuer:
		val, err := x.Value()
		if err != nil {
			return v
		}
		return Normalize(val)
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		return Normalize(rv.Elem().Interface())
	}
	return v
}

// Coerce normalizes value and converts it to the canonical Go type of col's
// portable type: string, int64, float64, decimal as string, bool, time.Time,
// []byte, guid as string. PortableAny and PortableRows accept any value.
func Coerce(table string, col core.Column, value any) (any, error) {
	v := Normalize(value)
	if v == nil {
		return nil, nil
	}
	fail := func() (any, error) {
		return nil, &TypeError{Table: table, Column: col.Name, Type: col.Mapping.Portable, Value: value}
	}

	switch col.Mapping.Portable {
	case core.PortableAny, core.PortableRows:
		if b, ok := v.([]byte); ok {
			return append([]byte(nil), b...), nil
		}
		return v, nil

	case core.PortableString:
		switch x := v.(type) {
		case string:
			return x, nil
		case []byte:
			return string(x), nil
		}
		return fail()

	case core.PortableInt64:
		if i, ok := toInt64(v); ok {
			return i, nil
		}
		if s, ok := text(v); ok {
			if i, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
				return i, nil
			}
		}
		return fail()

	case core.PortableFloat64:
		switch x := v.(type) {
		case float64:
			return x, nil
		case float32:
			return float64(x), nil
		}
		if i, ok := toInt64(v); ok {
			return float64(i), nil
		}
		if s, ok := text(v); ok {
			if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
				return f, nil
			}
		}
		return fail()

	case core.PortableDecimal:
		if s, ok := text(v); ok {
			return s, nil
		}
		switch x := v.(type) {
		case float64:
			return strconv.FormatFloat(x, 'f', -1, 64), nil
		case float32:
			return strconv.FormatFloat(float64(x), 'f', -1, 32), nil
		case fmt.Stringer:
			return x.String(), nil
		}
		if i, ok := toInt64(v); ok {
			return strconv.FormatInt(i, 10), nil
		}
		return fail()

	case core.PortableBool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
		if i, ok := toInt64(v); ok && (i == 0 || i == 1) {
			return i == 1, nil
		}
		if s, ok := text(v); ok {
			if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
				return b, nil
			}
		}
		return fail()

	case core.PortableTime:
		if t, ok := v.(time.Time); ok {
			return t, nil
		}
		if s, ok := text(v); ok {
			for _, layout := range timeLayouts {
				if t, err := time.Parse(layout, s); err == nil {
					return t, nil
				}
			}
		}
		return fail()

	case core.PortableBytes:
		switch x := v.(type) {
		case []byte:
			return append([]byte(nil), x...), nil
		case string:
			return []byte(x), nil
		}
		return fail()

	case core.PortableGUID:
		switch x := v.(type) {
		case string:
			return x, nil
		case [16]byte:
			return uuid.UUID(x).String(), nil
		case []byte:
			if len(x) == 16 {
				id, err := uuid.FromBytes(x)
				if err == nil {
					return id.String(), nil
				}
			}
			return string(x), nil
		}
		return fail()
	}

	return nil, &TypeError{Table: table, Column: col.Name, Type: col.Mapping.Portable, Value: value, Reason: fmt.Sprintf("unknown declared type %q", col.Mapping.Portable)}
}

func text(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case []byte:
		return string(x), true
	}
	return "", false
}

func toInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint:
		return toUint64(uint64(x))
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint64:
		return toUint64(x)
	}
	return 0, false
}

func toUint64(x uint64) (int64, bool) {
	if x > math.MaxInt64 {
		return 0, false
	}
	return int64(x), true
}
