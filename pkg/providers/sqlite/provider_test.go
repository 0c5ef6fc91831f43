package sqlite

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapentity/internal/testutil"
	"github.com/leapstack-labs/leapentity/pkg/core"
	"github.com/leapstack-labs/leapentity/pkg/provider"
)

const schema = `
CREATE TABLE customers (
  id INTEGER PRIMARY KEY,
  name TEXT NOT NULL,
  email VARCHAR(200),
  created DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE orders (
  id INTEGER PRIMARY KEY,
  customer_id INTEGER NOT NULL REFERENCES customers(id),
  total NUMERIC(10,2),
  note,
  doubled INTEGER GENERATED ALWAYS AS (customer_id * 2) VIRTUAL
);
CREATE TABLE order_tags (
  order_id INTEGER NOT NULL REFERENCES orders,
  tag TEXT NOT NULL,
  PRIMARY KEY (order_id, tag)
);`

func newTestProvider(t *testing.T, params map[string]any) (*Provider, *sql.Conn) {
	t.Helper()
	p, err := New(provider.Config{
		Identity: "sqlite|test",
		Vendor:   "sqlite",
		Params:   params,
		Logger:   testutil.NewTestLogger(t),
	})
	require.NoError(t, err)

	ctx := context.Background()
	conn, err := p.Open(ctx, "")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = p.Release(conn)
		_ = p.Close()
	})

	_, err = conn.ExecContext(ctx, schema)
	require.NoError(t, err)
	return p, conn
}

func TestProvider_Registered(t *testing.T) {
	assert.True(t, provider.IsRegistered("sqlite"))
	assert.True(t, provider.IsRegistered("SQLite"))
}

func TestProvider_Tables(t *testing.T) {
	p, conn := newTestProvider(t, nil)

	tables, err := p.Tables(context.Background(), conn)
	require.NoError(t, err)
	assert.Equal(t, []core.Table{{Name: "customers"}, {Name: "order_tags"}, {Name: "orders"}}, tables)

	cached, complete := p.Schema().Tables()
	assert.True(t, complete)
	assert.Len(t, cached, 3)
}

func TestProvider_Columns(t *testing.T) {
	p, conn := newTestProvider(t, nil)
	ctx := context.Background()

	cols, err := p.Columns(ctx, conn, core.Table{Name: "orders"})
	require.NoError(t, err)
	require.Len(t, cols, 5)

	byName := make(map[string]core.Column)
	for _, c := range cols {
		byName[c.Name] = c
	}

	id := byName["id"]
	assert.True(t, id.PrimaryKey)
	assert.True(t, id.AutoNumber)
	assert.False(t, id.Nullable)
	assert.Equal(t, core.PortableInt64, id.Mapping.Portable)

	assert.False(t, byName["customer_id"].Nullable)
	assert.Equal(t, core.PortableDecimal, byName["total"].Mapping.Portable)
	assert.Equal(t, core.PortableAny, byName["note"].Mapping.Portable)
	assert.True(t, byName["note"].Nullable)
	assert.True(t, byName["doubled"].Computed)

	custCols, err := p.Columns(ctx, conn, core.Table{Name: "customers"})
	require.NoError(t, err)
	assert.Equal(t, "created", custCols[3].Name)
	assert.True(t, custCols[3].HasDefault)
	assert.Equal(t, core.PortableTime, custCols[3].Mapping.Portable)
	assert.Equal(t, core.PortableString, custCols[2].Mapping.Portable)

	_, err = p.Columns(ctx, conn, core.Table{Name: "missing"})
	assert.ErrorIs(t, err, core.ErrSchemaResolution)
}

func TestProvider_PrimaryKey(t *testing.T) {
	p, conn := newTestProvider(t, nil)
	ctx := context.Background()

	key, err := p.PrimaryKey(ctx, conn, core.Table{Name: "customers"})
	require.NoError(t, err)
	assert.Equal(t, "id", key)

	_, err = p.PrimaryKey(ctx, conn, core.Table{Name: "order_tags"})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrConfiguration)
	assert.Contains(t, err.Error(), "order_tags")

	cols, err := p.Columns(ctx, conn, core.Table{Name: "order_tags"})
	require.NoError(t, err)
	assert.False(t, cols[0].AutoNumber, "composite keys are never rowid aliases")
}

func TestProvider_Relationships(t *testing.T) {
	p, conn := newTestProvider(t, nil)

	rels, err := p.Relationships(context.Background(), conn)
	require.NoError(t, err)
	require.Len(t, rels, 2)

	assert.Equal(t, "order_tags", rels[0].ForeignTable)
	assert.Equal(t, "orders", rels[0].PrimaryTable)
	assert.Equal(t, "id", rels[0].PrimaryKey, "implicit reference resolves to the primary key")
	assert.Equal(t, "order_id", rels[0].ForeignKey)

	assert.Equal(t, core.Relationship{
		Name:         "fk_orders_0",
		PrimaryTable: "customers",
		PrimaryKey:   "id",
		ForeignTable: "orders",
		ForeignKey:   "customer_id",
	}, rels[1])
}

func TestProvider_SprocsUnsupported(t *testing.T) {
	p, conn := newTestProvider(t, nil)

	_, err := p.SprocDefinition(context.Background(), conn, core.SprocName{Name: "anything"})
	assert.ErrorIs(t, err, core.ErrConfiguration)
}

func TestProvider_Pragmas(t *testing.T) {
	_, conn := newTestProvider(t, map[string]any{
		"pragmas":      map[string]any{"foreign_keys": "on"},
		"busy_timeout": "2s",
	})
	ctx := context.Background()

	var fk, timeout int
	require.NoError(t, conn.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&fk))
	require.NoError(t, conn.QueryRowContext(ctx, "PRAGMA busy_timeout").Scan(&timeout))
	assert.Equal(t, 1, fk)
	assert.Equal(t, 2000, timeout)
}

func TestParseParams(t *testing.T) {
	tests := []struct {
		name    string
		input   map[string]any
		want    Params
		wantErr bool
	}{
		{name: "nil params", input: nil, want: Params{}},
		{
			name:  "pragmas",
			input: map[string]any{"pragmas": map[string]any{"journal_mode": "wal"}},
			want:  Params{Pragmas: map[string]string{"journal_mode": "wal"}},
		},
		{name: "unknown key", input: map[string]any{"pragma": "x"}, wantErr: true},
		{name: "injected value", input: map[string]any{"pragmas": map[string]any{"foreign_keys": "on; DROP TABLE x"}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseParams(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
