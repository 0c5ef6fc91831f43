package mysql

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapentity/internal/testutil"
	"github.com/leapstack-labs/leapentity/pkg/core"
	"github.com/leapstack-labs/leapentity/pkg/entity"
	"github.com/leapstack-labs/leapentity/pkg/provider"
)

const mockConn = "user:pw@tcp(localhost:3306)/app"

func newMockProvider(t *testing.T) (*Provider, sqlmock.Sqlmock, *sql.Conn) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)

	p, err := New(provider.Config{
		Identity: "mysql|test",
		Vendor:   "mysql",
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
	assert.True(t, provider.IsRegistered("mysql"))
	assert.True(t, provider.IsRegistered("mariadb"))
}

func TestProvider_ColumnsAndInsert(t *testing.T) {
	p, mock, conn := newMockProvider(t)
	ctx := context.Background()

	mock.ExpectQuery(columnsQuery).
		WithArgs("", "customers").
		WillReturnRows(sqlmock.NewRows([]string{"name", "type", "nullable", "ordinal", "pk", "auto", "has_default", "computed"}).
			AddRow("id", "int(10) unsigned", int64(0), int64(1), int64(1), int64(1), int64(0), int64(0)).
			AddRow("name", "varchar(100)", int64(0), int64(2), int64(0), int64(0), int64(0), int64(0)).
			AddRow("created", "datetime", int64(1), int64(3), int64(0), int64(0), int64(1), int64(0)))

	cols, err := p.Columns(ctx, conn, core.Table{Name: "customers"})
	require.NoError(t, err)
	require.Len(t, cols, 3)
	assert.Equal(t, "customers", cols[0].Table)
	assert.Equal(t, core.PortableInt64, cols[0].Mapping.Portable)
	assert.True(t, cols[0].AutoNumber)
	assert.Equal(t, core.PortableString, cols[1].Mapping.Portable)
	assert.Equal(t, core.PortableTime, cols[2].Mapping.Portable)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `customers` (`name`) VALUES (?)").
		WithArgs("Ada").
		WillReturnResult(sqlmock.NewResult(31, 1))
	mock.ExpectCommit()

	e := entity.New("ctx", cols[0].Table, cols, entity.Added)
	require.NoError(t, e.Set("name", "Ada"))
	_, err = p.ApplyChanges(ctx, conn, []*entity.Entity{e}, provider.BatchOptions{})
	require.NoError(t, err)
	id, _ := e.Get("id")
	assert.Equal(t, int64(31), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProvider_EmptyInsert(t *testing.T) {
	p, mock, conn := newMockProvider(t)
	ctx := context.Background()

	cols := []core.Column{{Table: "counters", Name: "id", Mapping: core.TypeMapping{Portable: core.PortableInt64}, Position: 1, PrimaryKey: true, AutoNumber: true}}
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `counters` () VALUES ()").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	e := entity.New("ctx", "counters", cols, entity.Added)
	_, err := p.ApplyChanges(ctx, conn, []*entity.Entity{e}, provider.BatchOptions{})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProvider_ProcedureOutputsViaSessionVariables(t *testing.T) {
	p, mock, conn := newMockProvider(t)
	ctx := context.Background()

	param := func(name string, ordinal int, dir core.ParamDirection) core.SprocParam {
		return core.SprocParam{
			QueryParameter: core.QueryParameter{Name: name, Mapping: core.TypeMapping{Portable: core.PortableInt64}, Direction: dir},
			Ordinal:        ordinal,
		}
	}
	def := core.SprocDefinition{
		Name: core.SprocName{Name: "order_stats"},
		Params: []core.SprocParam{
			param("customer_id", 1, core.In),
			param("total", 2, core.Out),
			param("cnt", 3, core.Out),
		},
		ResultSets: []string{"orders"},
	}

	mock.ExpectQuery("CALL `order_stats`(?, @total, @cnt); SELECT @total AS `total`, @cnt AS `cnt`").
		WithArgs(int64(7)).
		WillReturnRows(
			sqlmock.NewRows([]string{"id"}).AddRow(int64(1)).AddRow(int64(2)),
			sqlmock.NewRows([]string{"total", "cnt"}).AddRow(int64(150), int64(2)),
		)

	res, err := p.ExecuteSproc(ctx, conn, def, []any{int64(7)})
	require.NoError(t, err)
	set, ok := res.(provider.Set)
	require.True(t, ok)
	require.Len(t, set.Items, 3)

	rows, ok := set.Items[0].(provider.SingleResultSet)
	require.True(t, ok)
	assert.Equal(t, "orders", rows.Name)
	assert.Equal(t, 2, rows.Rows.Len())
	assert.Equal(t, provider.Scalar{Name: "total", Value: int64(150)}, set.Items[1])
	assert.Equal(t, provider.Scalar{Name: "cnt", Value: int64(2)}, set.Items[2])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProvider_Config(t *testing.T) {
	p, err := New(provider.Config{Vendor: "mysql", Params: map[string]any{
		"collation":    "utf8mb4_unicode_ci",
		"location":     "UTC",
		"read_timeout": "5s",
	}})
	require.NoError(t, err)

	cfg, err := p.config(mockConn)
	require.NoError(t, err)
	assert.True(t, cfg.ParseTime)
	assert.True(t, cfg.MultiStatements)
	assert.Equal(t, "utf8mb4_unicode_ci", cfg.Collation)
	assert.Equal(t, time.UTC, cfg.Loc)
	assert.Equal(t, 5*time.Second, cfg.ReadTimeout)
	assert.Equal(t, "app", cfg.DBName)

	_, err = p.config("not a dsn")
	assert.Error(t, err)

	c, err := p.connector(mockConn)
	require.NoError(t, err)
	assert.NotNil(t, c)

	_, err = New(provider.Config{Vendor: "mysql", Params: map[string]any{"location": "Mars/Olympus_Mons"}})
	assert.Error(t, err)
}
