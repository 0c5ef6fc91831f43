package datacontext

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/leapstack-labs/leapentity/internal/testutil"
	"github.com/leapstack-labs/leapentity/pkg/core"
	"github.com/leapstack-labs/leapentity/pkg/entity"
	"github.com/leapstack-labs/leapentity/pkg/provider"
	"github.com/leapstack-labs/leapentity/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mockDialect() *provider.Dialect {
	return &provider.Dialect{
		Name:        "mock",
		DriverName:  "sqlmock",
		Quoting:     core.Quoting{Start: `"`, End: `"`},
		Placeholder: provider.PlaceholderQuestion,
		SprocCall:   provider.ExecSprocCall,
		Types: map[string]core.PortableType{
			"integer": core.PortableInt64,
			"text":    core.PortableString,
		},
	}
}

// newMockContext builds a context whose provider runs on sqlmock.
func newMockContext(t *testing.T) (*Context, *sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	const conn = "mock://sprocs"
	reg := registry.New(
		registry.WithLogger(testutil.NewTestLogger(t)),
		registry.WithFactoryLookup(func(string) (provider.Factory, bool) {
			return func(cfg provider.Config) (provider.Provider, error) {
				b := provider.NewBase(cfg, mockDialect())
				b.SetDB(conn, db)
				return b, nil
			}, true
		}),
	)
	dc, err := New(context.Background(), reg, conn, registry.Identity{Vendor: "mock", Shape: t.Name()})
	require.NoError(t, err)
	t.Cleanup(func() {
		mock.ExpectClose()
		require.NoError(t, reg.Close())
		assert.NoError(t, mock.ExpectationsWereMet())
	})
	return dc, db, mock
}

func customerOrdersDef() core.SprocDefinition {
	return core.SprocDefinition{
		Name: core.SprocName{Owner: "sales", Name: "customer_orders"},
		Params: []core.SprocParam{{
			QueryParameter: core.QueryParameter{
				Name:      "@customer_id",
				Mapping:   core.TypeMapping{Portable: core.PortableInt64},
				Direction: core.In,
			},
			Ordinal: 1,
		}},
		ResultSets: []string{"customers", "orders"},
	}
}

func expectCustomerOrders(mock sqlmock.Sqlmock) *sqlmock.ExpectedQuery {
	customers := sqlmock.NewRows([]string{"id", "name"}).
		AddRow(int64(7), "Ada").
		AddRow(int64(8), "Grace")
	orders := sqlmock.NewRows([]string{"id", "customer_id"}).
		AddRow(int64(1), int64(7)).
		AddRow(int64(2), int64(7)).
		AddRow(int64(3), int64(8))
	return mock.ExpectQuery(regexp.QuoteMeta(`EXEC "sales"."customer_orders" ?`)).
		WithArgs(int64(7)).
		WillReturnRows(customers, orders)
}

func nestedRows(t *testing.T, e *entity.Entity, name string) []*entity.Entity {
	t.Helper()
	v, err := e.Get(name)
	require.NoError(t, err)
	rows, ok := v.([]*entity.Entity)
	require.True(t, ok, "column %s holds %T", name, v)
	return rows
}

func TestCallSproc_MultipleResultSets(t *testing.T) {
	dc, _, mock := newMockContext(t)
	ctx := context.Background()
	expectCustomerOrders(mock)

	e, err := dc.CallSproc(ctx, customerOrdersDef(), nil, int64(7))
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, "sales.customer_orders", e.Table())

	customers := nestedRows(t, e, "customers")
	orders := nestedRows(t, e, "orders")
	assert.Len(t, customers, 2)
	assert.Len(t, orders, 3)

	name, _ := customers[1].Get("name")
	assert.Equal(t, "Grace", name)
	for _, o := range orders {
		assert.False(t, o.Attached(), "row set entities are not tracked")
	}
	assert.Empty(t, dc.Pending())
}

func TestCallSproc_ReturnColumns(t *testing.T) {
	dc, _, mock := newMockContext(t)
	ctx := context.Background()
	expectCustomerOrders(mock)

	cols := map[string][]core.Column{
		"customers": {
			{Table: "customers", Name: "id", Mapping: core.TypeMapping{Portable: core.PortableDecimal}, Position: 1},
			{Table: "customers", Name: "name", Mapping: core.TypeMapping{Portable: core.PortableString}, Position: 2},
		},
	}
	e, err := dc.CallSproc(ctx, customerOrdersDef(), cols, int64(7))
	require.NoError(t, err)

	customers := nestedRows(t, e, "customers")
	id, _ := customers[0].Get("id")
	assert.Equal(t, "7", id)
	assert.Equal(t, "customers", customers[0].Table())
}

func TestCallSproc_ScalarOutput(t *testing.T) {
	dc, _, mock := newMockContext(t)
	ctx := context.Background()

	def := core.SprocDefinition{
		Name: core.SprocName{Name: "order_total"},
		Params: []core.SprocParam{
			{QueryParameter: core.QueryParameter{Name: "@order_id", Mapping: core.TypeMapping{Portable: core.PortableInt64}, Direction: core.In}, Ordinal: 1},
			{QueryParameter: core.QueryParameter{Name: "@total", Mapping: core.TypeMapping{Portable: core.PortableInt64}, Direction: core.Out}, Ordinal: 2},
		},
	}
	mock.ExpectQuery(regexp.QuoteMeta(`EXEC "order_total" ?`)).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"total"}).AddRow(int64(42)))

	e, err := dc.CallSproc(ctx, def, nil, int64(5))
	require.NoError(t, err)
	require.NotNil(t, e)
	total, err := e.Get("total")
	require.NoError(t, err)
	assert.Equal(t, int64(42), total)
	col, ok := e.Column("total")
	require.True(t, ok)
	assert.Equal(t, core.PortableInt64, col.Mapping.Portable)
}

func TestCallSproc_Unit(t *testing.T) {
	dc, _, mock := newMockContext(t)
	ctx := context.Background()

	def := core.SprocDefinition{Name: core.SprocName{Name: "touch"}}
	mock.ExpectQuery(regexp.QuoteMeta(`EXEC "touch"`)).
		WillReturnRows(sqlmock.NewRows([]string{}))

	e, err := dc.CallSproc(ctx, def, nil)
	require.NoError(t, err)
	assert.Nil(t, e)
}

func TestCallSproc_ArgumentCount(t *testing.T) {
	dc, _, _ := newMockContext(t)

	_, err := dc.CallSproc(context.Background(), customerOrdersDef(), nil)
	assert.Error(t, err)
}

func TestCallSprocAsync_MatchesSync(t *testing.T) {
	dc, _, mock := newMockContext(t)
	ctx := context.Background()
	expectCustomerOrders(mock)
	expectCustomerOrders(mock)

	sync, err := dc.CallSproc(ctx, customerOrdersDef(), nil, int64(7))
	require.NoError(t, err)
	async, err := dc.CallSprocAsync(ctx, customerOrdersDef(), nil, int64(7)).Await(ctx)
	require.NoError(t, err)

	for _, set := range []string{"customers", "orders"} {
		want := nestedRows(t, sync, set)
		got := nestedRows(t, async, set)
		require.Len(t, got, len(want))
		for i := range want {
			assert.Equal(t, want[i].Values(), got[i].Values())
		}
	}
}

func TestCallSprocAsync_ErrorReleasesConnection(t *testing.T) {
	dc, db, mock := newMockContext(t)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta(`EXEC "sales"."customer_orders" ?`)).
		WithArgs(int64(7)).
		WillReturnError(errors.New("deadlock victim"))

	_, err := dc.CallSprocAsync(ctx, customerOrdersDef(), nil, int64(7)).Await(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deadlock victim")
	assert.Zero(t, db.Stats().InUse)
}
