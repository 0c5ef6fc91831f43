package firebird

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapentity/internal/testutil"
	"github.com/leapstack-labs/leapentity/pkg/core"
	"github.com/leapstack-labs/leapentity/pkg/provider"
)

const mockConn = "sysdba:masterkey@localhost:3050/var/db/app.fdb"

func newMockProvider(t *testing.T) (*Provider, sqlmock.Sqlmock, *sql.Conn) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)

	p, err := New(provider.Config{
		Identity: "firebird|test",
		Vendor:   "firebird",
		Case:     core.CaseInsensitiveUpper,
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
	assert.True(t, provider.IsRegistered("firebird"))
}

func TestProvider_Columns(t *testing.T) {
	p, mock, conn := newMockProvider(t)

	mock.ExpectQuery(Dialect.ColumnsQuery).
		WithArgs("CUSTOMERS").
		WillReturnRows(sqlmock.NewRows([]string{"name", "type", "nullable", "ordinal", "pk", "identity", "has_default", "computed"}).
			AddRow("ID", "INTEGER", int64(0), int64(1), int64(1), int64(1), int64(0), int64(0)).
			AddRow("BALANCE", "NUMERIC", int64(1), int64(2), int64(0), int64(0), int64(1), int64(0)).
			AddRow("NOTES", "BLOB SUB_TYPE TEXT", int64(1), int64(3), int64(0), int64(0), int64(0), int64(0)))

	cols, err := p.Columns(context.Background(), conn, core.Table{Name: "customers"})
	require.NoError(t, err)
	require.Len(t, cols, 3)
	assert.Equal(t, "CUSTOMERS", cols[0].Table)
	assert.True(t, cols[0].AutoNumber)
	assert.Equal(t, core.PortableDecimal, cols[1].Mapping.Portable)
	assert.Equal(t, core.PortableString, cols[2].Mapping.Portable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProvider_ExecuteProcedure(t *testing.T) {
	p, mock, conn := newMockProvider(t)
	ctx := context.Background()

	mock.ExpectQuery(Dialect.SprocParamsQuery).
		WithArgs("", "", "ORDER_TOTAL").
		WillReturnRows(sqlmock.NewRows([]string{"name", "type", "dir", "ordinal", "length"}).
			AddRow("ORDER_ID", "INTEGER", "IN", int64(1), nil).
			AddRow("TOTAL", "NUMERIC", "OUT", int64(1001), nil))

	def, err := p.SprocDefinition(ctx, conn, core.SprocName{Name: "ORDER_TOTAL"})
	require.NoError(t, err)

	mock.ExpectQuery(`EXECUTE PROCEDURE "ORDER_TOTAL"(?)`).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"TOTAL"}).AddRow("12.50"))

	res, err := p.ExecuteSproc(ctx, conn, def, []any{int64(3)})
	require.NoError(t, err)
	assert.Equal(t, provider.Scalar{Name: "TOTAL", Value: "12.50"}, res)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSprocCall(t *testing.T) {
	q := Dialect.Quoting
	assert.Equal(t, `EXECUTE PROCEDURE "PING"`, sprocCall(core.SprocDefinition{Name: core.SprocName{Name: "PING"}}, q, nil))
	assert.Equal(t, `SELECT * FROM "LIST_ORDERS"(?)`,
		sprocCall(core.SprocDefinition{Name: core.SprocName{Name: "LIST_ORDERS"}, ResultSets: []string{"orders"}}, q, []string{"?"}))
}

func TestProvider_DSN(t *testing.T) {
	p, err := New(provider.Config{Vendor: "firebird", Params: map[string]any{"role": "READER", "charset": "UTF8"}})
	require.NoError(t, err)

	got, err := p.dsn(mockConn)
	require.NoError(t, err)
	assert.Equal(t, mockConn+"?charset=UTF8&role=READER", got)

	got, err = p.dsn(mockConn + "?wire_crypt=false")
	require.NoError(t, err)
	assert.Equal(t, mockConn+"?wire_crypt=false&charset=UTF8&role=READER", got)

	plain, err := New(provider.Config{Vendor: "firebird"})
	require.NoError(t, err)
	got, err = plain.dsn(mockConn)
	require.NoError(t, err)
	assert.Equal(t, mockConn, got)
}
