package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTable(t *testing.T) {
	tests := []struct {
		input    string
		expected Table
	}{
		{"dbo.orders", Table{Schema: "dbo", Name: "orders"}},
		{"orders", Table{Name: "orders"}},
		{"sales.order.lines", Table{Schema: "sales", Name: "order.lines"}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ParseTable(tt.input)
			assert.Equal(t, tt.expected, got)
			assert.Equal(t, tt.input, got.FullName(), "parse must be reversible")
		})
	}
}

func TestTable_QuotedFullName(t *testing.T) {
	brackets := Quoting{Start: "[", End: "]"}
	doubleQuotes := Quoting{Start: `"`, End: `"`}

	assert.Equal(t, "[dbo].[orders]", Table{Schema: "dbo", Name: "orders"}.QuotedFullName(brackets))
	assert.Equal(t, `"orders"`, Table{Name: "orders"}.QuotedFullName(doubleQuotes))
	assert.Equal(t, `"we""ird"`, Table{Name: `we"ird`}.QuotedFullName(doubleQuotes))
	assert.Equal(t, "orders", Table{Name: "orders"}.QuotedFullName(Quoting{}))
}

func TestPrimaryKeys(t *testing.T) {
	cols := []Column{
		{Name: "id", PrimaryKey: true},
		{Name: "name"},
		{Name: "tenant", PrimaryKey: true},
	}
	assert.Equal(t, []string{"id", "tenant"}, PrimaryKeys(cols))
	assert.Empty(t, PrimaryKeys(cols[1:2]))
}

func TestSprocName(t *testing.T) {
	n := ParseSprocName("hr.payroll.close_month")
	assert.Equal(t, SprocName{Owner: "hr", Package: "payroll", Name: "close_month"}, n)
	assert.Equal(t, "hr.payroll.close_month", n.FullName())
	assert.Equal(t, "[dbo].[p]", ParseSprocName("dbo.p").QuotedFullName(Quoting{Start: "[", End: "]"}))
	assert.Equal(t, "p", ParseSprocName("p").FullName())
}

func TestSprocDefinition_Params(t *testing.T) {
	def := SprocDefinition{
		Name: SprocName{Name: "report"},
		Params: []SprocParam{
			{QueryParameter: QueryParameter{Name: "total", Direction: Out, Mapping: TypeMapping{Portable: PortableInt64}}, Ordinal: 3},
			{QueryParameter: QueryParameter{Name: "from", Direction: In}, Ordinal: 1},
			{QueryParameter: QueryParameter{Name: "cur", Direction: Out, Mapping: TypeMapping{Portable: PortableRows}}, Ordinal: 4},
			{QueryParameter: QueryParameter{Name: "to", Direction: InOut}, Ordinal: 2},
		},
		ResultSets: []string{"summary"},
	}

	var names []string
	for _, p := range def.InputParams() {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"from", "to"}, names)

	require.Len(t, def.ScalarOutputs(), 2)
	assert.Equal(t, "to", def.ScalarOutputs()[0].Name)
	assert.Equal(t, "total", def.ScalarOutputs()[1].Name)
	assert.Equal(t, []string{"summary", "cur"}, def.RowSetNames())
}

func TestParseCasePolicy(t *testing.T) {
	tests := []struct {
		input    string
		expected CasePolicy
		wantErr  bool
	}{
		{"", CaseExact, false},
		{"exact", CaseExact, false},
		{"UPPER", CaseInsensitiveUpper, false},
		{"lower", CaseInsensitiveLower, false},
		{"sideways", CaseExact, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseCasePolicy(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrConfiguration)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestErrorClasses(t *testing.T) {
	cfgErr := fmt.Errorf("failed to look up: %w", &ConfigError{Subject: "dbo.orders", Reason: "composite primary key"})
	assert.True(t, errors.Is(cfgErr, ErrConfiguration))
	assert.False(t, errors.Is(cfgErr, ErrSchemaResolution))
	assert.Contains(t, cfgErr.Error(), "dbo.orders")

	schemaErr := &SchemaError{Table: "orders", Column: "nope"}
	assert.True(t, errors.Is(schemaErr, ErrSchemaResolution))
	assert.Equal(t, "column nope not found in table orders", schemaErr.Error())
	assert.Equal(t, "table orders not found", (&SchemaError{Table: "orders"}).Error())
}

func TestPortableType_Known(t *testing.T) {
	assert.True(t, PortableInt64.Known())
	assert.True(t, PortableRows.Known())
	assert.False(t, PortableUnknown.Known())
	assert.False(t, PortableType("varchar").Known())
}
