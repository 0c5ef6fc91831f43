package cli

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/leapstack-labs/leapentity/pkg/providers/sqlite"
)

const shopSchema = `
CREATE TABLE customers (id INTEGER PRIMARY KEY, name TEXT NOT NULL);
CREATE TABLE orders (
	id INTEGER PRIMARY KEY,
	customer_id INTEGER NOT NULL REFERENCES customers(id),
	total NUMERIC
);
INSERT INTO customers (id, name) VALUES (1, 'Ada'), (2, 'Grace');
INSERT INTO orders (id, customer_id, total) VALUES (10, 1, 12.5), (11, 1, 3), (12, 2, 7);
`

// setupProject creates a SQLite database and a config file pointing at it.
func setupProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "shop.db")

	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	_, err = db.Exec(shopSchema)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	cfg := fmt.Sprintf(`schema_file: schema.yaml
telemetry:
  log: true
  prometheus: true
sources:
  shop:
    vendor: sqlite
    connection: %s
`, dbPath)
	cfgPath := filepath.Join(dir, "leapentity.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o600))
	return cfgPath
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	out := new(bytes.Buffer)
	errOut := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRoot_Tables(t *testing.T) {
	cfg := setupProject(t)

	out, err := run(t, "--config", cfg, "tables", "-o", "json")
	require.NoError(t, err)

	var rows []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	var names []any
	for _, r := range rows {
		names = append(names, r["name"])
	}
	assert.Contains(t, names, "customers")
	assert.Contains(t, names, "orders")
}

func TestRoot_ColumnsMarkdown(t *testing.T) {
	cfg := setupProject(t)

	out, err := run(t, "--config", cfg, "columns", "orders")
	require.NoError(t, err)
	assert.Contains(t, out, "customer_id")
	assert.Contains(t, out, "| ")
}

func TestRoot_PrimaryKey(t *testing.T) {
	cfg := setupProject(t)

	out, err := run(t, "--config", cfg, "pk", "customers", "-o", "text")
	require.NoError(t, err)
	assert.Equal(t, "id\n", out)
}

func TestRoot_GetIndividual(t *testing.T) {
	cfg := setupProject(t)

	out, err := run(t, "--config", cfg, "get", "customers", "2", "-o", "json")
	require.NoError(t, err)

	var rows []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "Grace", rows[0]["name"])
	assert.EqualValues(t, 2, rows[0]["id"])
}

func TestRoot_GetWhere(t *testing.T) {
	cfg := setupProject(t)

	out, err := run(t, "--config", cfg, "get", "orders", "--where", "customer_id=1", "-o", "json")
	require.NoError(t, err)

	var rows []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	assert.Len(t, rows, 2)
}

func TestRoot_GetInvalidFilter(t *testing.T) {
	cfg := setupProject(t)

	_, err := run(t, "--config", cfg, "get", "orders", "--where", "customer_id")
	assert.Error(t, err)
}

func TestRoot_SchemaSaveThenOffline(t *testing.T) {
	cfg := setupProject(t)
	snapshot := filepath.Join(filepath.Dir(cfg), "schema.yaml")

	_, err := run(t, "--config", cfg, "schema", "save", snapshot, "--warm")
	require.NoError(t, err)
	require.FileExists(t, snapshot)

	// the offline run must not need the database
	require.NoError(t, os.Remove(filepath.Join(filepath.Dir(cfg), "shop.db")))

	out, err := run(t, "--config", cfg, "--offline", "pk", "orders", "-o", "text")
	require.NoError(t, err)
	assert.Equal(t, "id\n", out)
}

func TestRoot_InvalidConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "leapentity.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("sources:\n  x:\n    vendor: nosuchdb\n"), 0o600))

	_, err := run(t, "--config", cfgPath, "tables")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nosuchdb")
}

func TestRoot_VersionSkipsConfig(t *testing.T) {
	out, err := run(t, "--config", "/does/not/exist.yaml", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "LeapEntity v")
}

func TestCompletionCommand(t *testing.T) {
	out, err := run(t, "completion", "bash")
	require.NoError(t, err)
	assert.Contains(t, out, "leapentity")
}
