package provider

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/leapstack-labs/leapentity/internal/testutil"
	"github.com/leapstack-labs/leapentity/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	tablesQuery   = "SELECT table_schema, table_name FROM catalog.tables"
	columnsQuery  = "SELECT name, data_type, nullable, ordinal, pk, autonumber, has_default, computed FROM catalog.columns WHERE schema_name = $1 AND table_name = $2"
	relsQuery     = "SELECT name, p_schema, p_table, p_col, f_schema, f_table, f_col FROM catalog.fks"
	sprocQuery    = "SELECT name, data_type, direction, ordinal, length FROM catalog.params WHERE owner = $1 AND pkg = $2 AND proc = $3"
	testConn      = "mock://test"
	columnHeaders = "name,data_type,nullable,ordinal,pk,autonumber,has_default,computed"
)

func testDialect() *Dialect {
	return &Dialect{
		Name:               "mock",
		DriverName:         "sqlmock",
		Quoting:            core.Quoting{Start: `"`, End: `"`},
		Placeholder:        PlaceholderDollar,
		DefaultSchema:      "public",
		Returning:          ReturnClause,
		TablesQuery:        tablesQuery,
		ColumnsQuery:       columnsQuery,
		RelationshipsQuery: relsQuery,
		SprocParamsQuery:   sprocQuery,
		SprocCall:          SelectSprocCall,
		Types: map[string]core.PortableType{
			"integer": core.PortableInt64,
			"text":    core.PortableString,
			"numeric": core.PortableDecimal,
		},
	}
}

func newMockProvider(t *testing.T, d *Dialect, cfg Config) (*BaseSQLProvider, sqlmock.Sqlmock, *sql.Conn) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	if cfg.Identity == "" {
		cfg.Identity = "mock|test"
	}
	cfg.Logger = testutil.NewTestLogger(t)
	b := NewBase(cfg, d)
	b.SetDB(testConn, db)

	conn, err := b.Open(context.Background(), testConn)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = b.Release(conn)
		mock.ExpectClose()
		_ = b.Close()
	})
	return b, mock, conn
}

func columnRows(rows ...[]driver.Value) *sqlmock.Rows {
	r := sqlmock.NewRows(strings.Split(columnHeaders, ","))
	for _, row := range rows {
		r.AddRow(row...)
	}
	return r
}

func ordersColumns() *sqlmock.Rows {
	return columnRows(
		[]driver.Value{"id", "integer", int64(0), int64(1), true, true, false, false},
		[]driver.Value{"customer_id", "integer", int64(0), int64(2), false, false, false, false},
		[]driver.Value{"total", "numeric(10,2)", int64(1), int64(3), false, false, true, false},
	)
}

func TestBaseSQLProvider_Open(t *testing.T) {
	t.Run("schema-only dialect", func(t *testing.T) {
		d := testDialect()
		d.SchemaOnly = true
		b := NewBase(Config{Identity: "ssdt|x"}, d)

		_, err := b.Open(context.Background(), "anything")
		require.Error(t, err)
		assert.ErrorIs(t, err, core.ErrConfiguration)
		assert.Contains(t, err.Error(), "ssdt|x")
	})

	t.Run("unknown driver", func(t *testing.T) {
		d := testDialect()
		d.DriverName = "no_such_driver"
		b := NewBase(Config{}, d)

		_, err := b.Open(context.Background(), "x")
		assert.Error(t, err)
	})

	t.Run("on connect hook", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		b := NewBase(Config{}, testDialect())
		b.SetDB(testConn, db)
		b.OnConnect = func(ctx context.Context, conn *sql.Conn) error {
			_, err := conn.ExecContext(ctx, "SET search_path = app")
			return err
		}

		mock.ExpectExec(regexp.QuoteMeta("SET search_path = app")).WillReturnResult(sqlmock.NewResult(0, 0))
		conn, err := b.Open(context.Background(), testConn)
		require.NoError(t, err)
		require.NoError(t, b.Release(conn))

		mock.ExpectClose()
		require.NoError(t, b.Close())
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestBaseSQLProvider_Release(t *testing.T) {
	b := NewBase(Config{}, testDialect())
	assert.NoError(t, b.Release(nil))
}

func TestBaseSQLProvider_Tables(t *testing.T) {
	tests := []struct {
		name   string
		policy core.CasePolicy
		want   []string
	}{
		{name: "exact", policy: core.CaseExact, want: []string{"public.Orders", "sales.customers"}},
		{name: "upper", policy: core.CaseInsensitiveUpper, want: []string{"PUBLIC.ORDERS", "SALES.CUSTOMERS"}},
		{name: "lower", policy: core.CaseInsensitiveLower, want: []string{"public.orders", "sales.customers"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, mock, conn := newMockProvider(t, testDialect(), Config{Case: tt.policy})
			mock.ExpectQuery(regexp.QuoteMeta(tablesQuery)).WillReturnRows(
				sqlmock.NewRows([]string{"table_schema", "table_name"}).
					AddRow("public", "Orders").
					AddRow("sales", "customers"))

			tables, err := b.Tables(context.Background(), conn)
			require.NoError(t, err)

			var names []string
			for _, tbl := range tables {
				names = append(names, tbl.FullName())
			}
			assert.Equal(t, tt.want, names)

			cached, complete := b.Schema().Tables()
			assert.True(t, complete)
			assert.Len(t, cached, 2)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestBaseSQLProvider_Columns(t *testing.T) {
	b, mock, conn := newMockProvider(t, testDialect(), Config{})
	ctx := context.Background()
	orders := core.Table{Schema: "public", Name: "orders"}

	mock.ExpectQuery(regexp.QuoteMeta(columnsQuery)).WithArgs("public", "orders").WillReturnRows(ordersColumns())

	cols, err := b.Columns(ctx, conn, orders)
	require.NoError(t, err)
	require.Len(t, cols, 3)
	assert.Equal(t, "id", cols[0].Name)
	assert.True(t, cols[0].PrimaryKey)
	assert.True(t, cols[0].AutoNumber)
	assert.False(t, cols[0].Nullable)
	assert.Equal(t, core.PortableDecimal, cols[2].Mapping.Portable)
	assert.True(t, cols[2].Nullable)
	assert.True(t, cols[2].HasDefault)
	assert.Equal(t, "public.orders", cols[1].Table)

	// Second call is served from the cache.
	again, err := b.Columns(ctx, conn, orders)
	require.NoError(t, err)
	assert.Equal(t, cols, again)

	t.Run("unknown table", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(columnsQuery)).WithArgs("public", "missing").WillReturnRows(columnRows())
		_, err := b.Columns(ctx, conn, core.Table{Name: "missing"})
		require.Error(t, err)
		assert.ErrorIs(t, err, core.ErrSchemaResolution)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBaseSQLProvider_Offline(t *testing.T) {
	b := NewBase(Config{}, testDialect())
	orders := core.Table{Schema: "public", Name: "orders"}
	b.Schema().SetColumns(orders, []core.Column{{Name: "id", PrimaryKey: true}})
	b.Schema().SetTables([]core.Table{orders})
	b.Schema().SetOffline(true)
	ctx := context.Background()

	tables, err := b.Tables(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, tables, 1)

	key, err := b.PrimaryKey(ctx, nil, orders)
	require.NoError(t, err)
	assert.Equal(t, "id", key)

	_, err = b.Columns(ctx, nil, core.Table{Name: "nope"})
	assert.ErrorIs(t, err, core.ErrSchemaResolution)

	_, err = b.SprocDefinition(ctx, nil, core.SprocName{Name: "nope"})
	assert.ErrorIs(t, err, core.ErrSchemaResolution)

	rels, err := b.Relationships(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, rels)
}

func TestBaseSQLProvider_PrimaryKey(t *testing.T) {
	tests := []struct {
		name    string
		rows    *sqlmock.Rows
		want    string
		wantErr error
	}{
		{
			name: "single key",
			rows: ordersColumns(),
			want: "id",
		},
		{
			name: "no key",
			rows: columnRows([]driver.Value{"a", "text", int64(1), int64(1), false, false, false, false}),
			want: "",
		},
		{
			name: "composite key",
			rows: columnRows(
				[]driver.Value{"a", "integer", int64(0), int64(1), true, false, false, false},
				[]driver.Value{"b", "integer", int64(0), int64(2), "YES", false, false, false},
			),
			wantErr: core.ErrConfiguration,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, mock, conn := newMockProvider(t, testDialect(), Config{})
			mock.ExpectQuery(regexp.QuoteMeta(columnsQuery)).WillReturnRows(tt.rows)

			key, err := b.PrimaryKey(context.Background(), conn, core.Table{Schema: "public", Name: "t"})
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Contains(t, err.Error(), "public.t")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, key)
		})
	}
}

func TestBaseSQLProvider_SelectSQL(t *testing.T) {
	b := NewBase(Config{}, testDialect())
	table := core.Table{Schema: "public", Name: "orders"}
	cols := []core.Column{{Name: "id"}, {Name: "customer_id"}}

	text, args := b.SelectSQL(table, cols, []Filter{{Column: "customer_id", Value: int64(7)}, {Column: "note", Value: nil}})
	assert.Equal(t, `SELECT "id", "customer_id" FROM "public"."orders" WHERE "customer_id" = $1 AND "note" IS NULL`, text)
	assert.Equal(t, []any{int64(7)}, args)

	text, args = b.SelectSQL(core.Table{Name: "t"}, nil, nil)
	assert.Equal(t, `SELECT * FROM "t"`, text)
	assert.Empty(t, args)

	assert.Equal(t, `SELECT "id", "customer_id" FROM "public"."orders" WHERE "id" = $1`, b.SelectByKeySQL(table, "id", cols))
}

func TestBaseSQLProvider_Relationships(t *testing.T) {
	b, mock, conn := newMockProvider(t, testDialect(), Config{})
	mock.ExpectQuery(regexp.QuoteMeta(relsQuery)).WillReturnRows(
		sqlmock.NewRows([]string{"name", "p_schema", "p_table", "p_col", "f_schema", "f_table", "f_col"}).
			AddRow("fk_orders_customers", "public", "customers", "id", "public", "orders", "customer_id"))

	rels, err := b.Relationships(context.Background(), conn)
	require.NoError(t, err)
	require.Len(t, rels, 1)
	assert.Equal(t, core.Relationship{
		Name:         "fk_orders_customers",
		PrimaryTable: "public.customers",
		PrimaryKey:   "id",
		ForeignTable: "public.orders",
		ForeignKey:   "customer_id",
	}, rels[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBaseSQLProvider_SprocDefinition(t *testing.T) {
	b, mock, conn := newMockProvider(t, testDialect(), Config{})
	name := core.SprocName{Name: "order_report"}

	mock.ExpectQuery(regexp.QuoteMeta(sprocQuery)).WithArgs("public", "", "order_report").WillReturnRows(
		sqlmock.NewRows([]string{"name", "data_type", "direction", "ordinal", "length"}).
			AddRow("customer", "integer", "IN", int64(1), nil).
			AddRow("label", "text", "INOUT", int64(2), int64(40)).
			AddRow("total", "numeric", "OUT", int64(3), nil))

	def, err := b.SprocDefinition(context.Background(), conn, name)
	require.NoError(t, err)
	require.Len(t, def.Params, 3)
	assert.Equal(t, core.InOut, def.Params[1].Direction)
	require.NotNil(t, def.Params[1].Length)
	assert.Equal(t, 40, *def.Params[1].Length)
	assert.Equal(t, core.PortableDecimal, def.Params[2].Mapping.Portable)

	cached, ok := b.Schema().Sproc("order_report")
	assert.True(t, ok)
	assert.Equal(t, def, cached)

	t.Run("unsupported", func(t *testing.T) {
		d := testDialect()
		d.SprocParamsQuery = ""
		nb := NewBase(Config{}, d)
		_, err := nb.SprocDefinition(context.Background(), conn, name)
		assert.ErrorIs(t, err, core.ErrConfiguration)
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBaseSQLProvider_TypeMappings(t *testing.T) {
	d := testDialect()
	d.TypesQuery = "SELECT name, code FROM catalog.types"
	b, mock, conn := newMockProvider(t, d, Config{})

	mock.ExpectQuery(regexp.QuoteMeta(d.TypesQuery)).WillReturnRows(
		sqlmock.NewRows([]string{"name", "code"}).
			AddRow("integer", int64(23)).
			AddRow("uuid", int64(2950)))

	mappings, err := b.TypeMappings(context.Background(), conn)
	require.NoError(t, err)

	byName := make(map[string]core.TypeMapping)
	for _, m := range mappings {
		byName[m.BackendName] = m
	}
	require.Contains(t, byName, "integer")
	require.NotNil(t, byName["integer"].BackendCode)
	assert.Equal(t, 23, *byName["integer"].BackendCode)
	assert.Equal(t, core.PortableAny, byName["uuid"].Portable)
	assert.Contains(t, byName, "numeric")

	_, complete := b.Schema().TypeMappings()
	assert.True(t, complete)
}

func TestBaseSQLProvider_NewParameter(t *testing.T) {
	d := testDialect()
	b := NewBase(Config{}, d)

	in := b.NewParameter(core.QueryParameter{Name: "@id", Direction: core.In}, int64(1))
	assert.Equal(t, int64(1), in)

	d.NamedInputs = true
	named := b.NewParameter(core.QueryParameter{Name: "@id", Direction: core.In}, int64(1))
	assert.Equal(t, sql.Named("id", int64(1)), named)

	out := b.NewParameter(core.QueryParameter{Name: "@total", Direction: core.InOut, Mapping: core.TypeMapping{Portable: core.PortableInt64}}, int64(5))
	arg, ok := out.(sql.NamedArg)
	require.True(t, ok)
	o, ok := arg.Value.(sql.Out)
	require.True(t, ok)
	assert.True(t, o.In)
	assert.Equal(t, int64(5), *o.Dest.(*int64))
}
