package ssdt

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapentity/internal/testutil"
	"github.com/leapstack-labs/leapentity/pkg/core"
	"github.com/leapstack-labs/leapentity/pkg/provider"
	"github.com/leapstack-labs/leapentity/pkg/schemacache"
)

func projectSnapshot() schemacache.Snapshot {
	return schemacache.Snapshot{
		Vendor:   "ssdt",
		Complete: schemacache.Completeness{Tables: true, Relationships: true},
		Tables: []schemacache.TableSnapshot{
			{
				Table:         core.Table{Schema: "dbo", Name: "customers"},
				ColumnsLoaded: true,
				Columns: []core.Column{
					{Table: "dbo.customers", Name: "id", Mapping: core.TypeMapping{BackendName: "int", Portable: core.PortableInt64}, Position: 1, PrimaryKey: true, AutoNumber: true},
					{Table: "dbo.customers", Name: "name", Mapping: core.TypeMapping{BackendName: "nvarchar", Portable: core.PortableString}, Position: 2},
				},
			},
			{Table: core.Table{Schema: "dbo", Name: "orders"}},
		},
		Relationships: []core.Relationship{{
			Name: "fk_orders_customers", PrimaryTable: "dbo.customers", PrimaryKey: "id",
			ForeignTable: "dbo.orders", ForeignKey: "customer_id",
		}},
	}
}

func writeSnapshot(t *testing.T, name string, entries map[string]schemacache.Snapshot) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	f := schemacache.NewFile()
	for k, s := range entries {
		f.Providers[k] = s
	}
	require.NoError(t, schemacache.Save(path, f))
	return path
}

func TestProvider_Registered(t *testing.T) {
	assert.True(t, provider.IsRegistered("ssdt"))
	assert.True(t, Dialect.SchemaOnly)
	assert.Equal(t, "[", Dialect.Quoting.Start)
}

func TestProvider_ServesSnapshot(t *testing.T) {
	path := writeSnapshot(t, "project.yaml", map[string]schemacache.Snapshot{"ssdt|warehouse": projectSnapshot()})

	p, err := New(provider.Config{
		Identity: "ssdt|other",
		Vendor:   "ssdt",
		Case:     core.CaseInsensitiveLower,
		Params:   map[string]any{"snapshot": path},
		Logger:   testutil.NewTestLogger(t),
	})
	require.NoError(t, err)
	ctx := context.Background()
	assert.True(t, p.Schema().IsOffline())

	tables, err := p.Tables(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, tables, 2)

	cols, err := p.Columns(ctx, nil, core.Table{Name: "customers"})
	require.NoError(t, err)
	assert.Len(t, cols, 2)

	key, err := p.PrimaryKey(ctx, nil, core.Table{Schema: "dbo", Name: "customers"})
	require.NoError(t, err)
	assert.Equal(t, "id", key)

	rels, err := p.Relationships(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, rels, 1)

	_, err = p.Columns(ctx, nil, core.Table{Name: "orders"})
	assert.True(t, errors.Is(err, core.ErrSchemaResolution))

	q, _ := p.SelectSQL(core.Table{Schema: "dbo", Name: "customers"}, cols, nil)
	assert.Equal(t, "SELECT [id], [name] FROM [dbo].[customers]", q)
}

func TestProvider_SelectsEntryBySource(t *testing.T) {
	path := writeSnapshot(t, "project.json", map[string]schemacache.Snapshot{
		"ssdt|warehouse": projectSnapshot(),
		"ssdt|empty":     {Vendor: "ssdt"},
	})

	p, err := New(provider.Config{Vendor: "ssdt", Params: map[string]any{"snapshot": path, "source": "ssdt|warehouse"}})
	require.NoError(t, err)
	tables, _ := p.Schema().Tables()
	assert.Len(t, tables, 2)

	_, err = New(provider.Config{Identity: "ssdt|missing", Vendor: "ssdt", Params: map[string]any{"snapshot": path}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrConfiguration))
	assert.Contains(t, err.Error(), "ssdt|empty, ssdt|warehouse")
}

func TestProvider_CannotConnect(t *testing.T) {
	p, err := New(provider.Config{Identity: "ssdt|x", Vendor: "ssdt"})
	require.NoError(t, err)

	_, err = p.Open(context.Background(), "Server=localhost")
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrConfiguration))
}

func TestProvider_MissingSnapshotFile(t *testing.T) {
	_, err := New(provider.Config{Vendor: "ssdt", Params: map[string]any{"snapshot": filepath.Join(t.TempDir(), "nope.yaml")}})
	assert.Error(t, err)
}
