package sqlserver

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapentity/internal/testutil"
	"github.com/leapstack-labs/leapentity/pkg/core"
	"github.com/leapstack-labs/leapentity/pkg/entity"
	"github.com/leapstack-labs/leapentity/pkg/provider"
)

const mockConn = "sqlserver://mock"

func newMockProvider(t *testing.T) (*Provider, sqlmock.Sqlmock, *sql.Conn) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)

	p, err := New(provider.Config{
		Identity: "sqlserver|test",
		Vendor:   "sqlserver",
		Logger:   testutil.NewTestLogger(t),
	})
	require.NoError(t, err)
	p.SetDB(mockConn, db)

	conn, err := p.Open(context.Background(), mockConn)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = p.Release(conn)
		mock.ExpectClose()
		_ = p.Close()
	})
	return p, mock, conn
}

func TestProvider_Registered(t *testing.T) {
	assert.True(t, provider.IsRegistered("sqlserver"))
}

func TestProvider_ColumnsAndInsert(t *testing.T) {
	p, mock, conn := newMockProvider(t)
	ctx := context.Background()

	mock.ExpectQuery(Dialect.ColumnsQuery).
		WithArgs("dbo", "customers").
		WillReturnRows(sqlmock.NewRows([]string{"name", "type", "nullable", "ordinal", "pk", "identity", "has_default", "computed"}).
			AddRow("id", "int", false, int64(1), int64(1), true, int64(0), int64(0)).
			AddRow("name", "nvarchar", false, int64(2), int64(0), false, int64(0), int64(0)).
			AddRow("ref", "uniqueidentifier", true, int64(3), int64(0), false, int64(1), int64(0)).
			AddRow("ver", "rowversion", false, int64(4), int64(0), false, int64(0), int64(1)))

	cols, err := p.Columns(ctx, conn, core.Table{Name: "customers"})
	require.NoError(t, err)
	require.Len(t, cols, 4)
	assert.Equal(t, "dbo.customers", cols[0].Table)
	assert.True(t, cols[0].AutoNumber)
	assert.Equal(t, core.PortableGUID, cols[2].Mapping.Portable)
	assert.True(t, cols[2].HasDefault)
	assert.True(t, cols[3].Computed)
	assert.False(t, cols[3].Writable())

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO [dbo].[customers] ([name]) OUTPUT INSERTED.[id] VALUES (@p1)`).
		WithArgs("Ada").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(12)))
	mock.ExpectCommit()

	e := entity.New("ctx", cols[0].Table, cols, entity.Added)
	require.NoError(t, e.Set("name", "Ada"))
	res, err := p.ApplyChanges(ctx, conn, []*entity.Entity{e}, provider.BatchOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)
	id, _ := e.Get("id")
	assert.Equal(t, int64(12), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProvider_ExecuteProcedureNamedParams(t *testing.T) {
	p, mock, conn := newMockProvider(t)
	ctx := context.Background()

	mock.ExpectQuery(Dialect.SprocParamsQuery).
		WithArgs("sales", "", "order_total").
		WillReturnRows(sqlmock.NewRows([]string{"name", "type", "mode", "ordinal", "length"}).
			AddRow("@order_id", "int", "IN", int64(1), int64(4)).
			AddRow("@total", "money", "OUT", int64(2), int64(8)))

	def, err := p.SprocDefinition(ctx, conn, core.SprocName{Owner: "sales", Name: "order_total"})
	require.NoError(t, err)
	require.Len(t, def.Params, 2)
	require.NotNil(t, def.Params[0].Length)
	assert.Equal(t, 4, *def.Params[0].Length)

	mock.ExpectQuery("sales.order_total").
		WithArgs(sql.Named("order_id", int64(5)), writeOutput{value: "12.50"}).
		WillReturnRows(sqlmock.NewRows(nil))

	res, err := p.ExecuteSproc(ctx, conn, def, []any{int64(5)})
	require.NoError(t, err)
	scalar, ok := res.(provider.Scalar)
	require.True(t, ok)
	assert.Equal(t, "@total", scalar.Name)
	assert.Equal(t, "12.50", scalar.Value)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// writeOutput matches an output parameter and stores value in its
// destination, standing in for the driver.
type writeOutput struct {
	value string
}

func (w writeOutput) Match(v driver.Value) bool {
	out, ok := v.(sql.Out)
	if !ok {
		return false
	}
	dest, ok := out.Dest.(*string)
	if !ok {
		return false
	}
	*dest = w.value
	return true
}

func TestProvider_DSN(t *testing.T) {
	tests := []struct {
		name    string
		params  map[string]any
		conn    string
		want    string
		wantErr bool
	}{
		{
			name: "no params",
			conn: "sqlserver://sa:pw@localhost?database=app",
			want: "sqlserver://sa:pw@localhost?database=app",
		},
		{
			name:   "url form",
			params: map[string]any{"app_name": "leapentity"},
			conn:   "sqlserver://sa:pw@localhost?database=app",
			want:   "sqlserver://sa:pw@localhost?app+name=leapentity&database=app",
		},
		{
			name:   "ado form",
			params: map[string]any{"app_name": "leapentity"},
			conn:   "server=localhost;database=app;",
			want:   "server=localhost;database=app;app name=leapentity",
		},
		{
			name:    "bad url",
			params:  map[string]any{"app_name": "x"},
			conn:    "sqlserver://[::1",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(provider.Config{Vendor: "sqlserver", Params: tt.params})
			require.NoError(t, err)
			got, err := p.dsn(tt.conn)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProvider_Connector(t *testing.T) {
	p, err := New(provider.Config{Vendor: "sqlserver", Params: map[string]any{"session_init": "SET ANSI_NULLS ON"}})
	require.NoError(t, err)

	c, err := p.connector("sqlserver://sa:pw@localhost?database=app")
	require.NoError(t, err)
	assert.NotNil(t, c)
}
