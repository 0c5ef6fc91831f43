package schemacache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/leapstack-labs/leapentity/pkg/core"

	_ "modernc.org/sqlite" // sqlite driver
)

// SQLiteStore persists snapshot files in a SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// OpenSQLiteStore opens (creating if needed) and migrates a snapshot database.
// Use ":memory:" for an in-memory store.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	dsn := path + "?_pragma=foreign_keys(1)"
	if path == ":memory:" {
		dsn = "file::memory:?_pragma=foreign_keys(1)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot database: %w", err)
	}
	// One connection keeps ":memory:" databases alive across calls.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping snapshot database: %w", err)
	}

	s := &SQLiteStore{db: db, path: path}
	if err := s.Migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Save replaces the stored snapshots with f.
func (s *SQLiteStore) Save(f *File) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	ctx := context.Background()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin snapshot transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM providers`); err != nil {
		return fmt.Errorf("failed to clear snapshot: %w", err)
	}

	for identity, snap := range f.Providers {
		if err := saveSnapshot(ctx, tx, identity, snap); err != nil {
			return fmt.Errorf("failed to save snapshot %s: %w", identity, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}

func saveSnapshot(ctx context.Context, tx *sql.Tx, identity string, snap Snapshot) error {
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO providers (identity, vendor, offline, types_complete, tables_complete, rels_complete) VALUES (?, ?, ?, ?, ?, ?)`,
		identity, snap.Vendor, snap.Offline, snap.Complete.TypeMappings, snap.Complete.Tables, snap.Complete.Relationships,
	); err != nil {
		return err
	}

	for i, m := range snap.TypeMappings {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO type_mappings (identity, seq, backend_name, backend_code, portable) VALUES (?, ?, ?, ?, ?)`,
			identity, i, m.BackendName, m.BackendCode, string(m.Portable),
		); err != nil {
			return err
		}
	}

	for _, ts := range snap.Tables {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO snapshot_tables (identity, schema_name, table_name, columns_loaded) VALUES (?, ?, ?, ?)`,
			identity, ts.Schema, ts.Name, ts.ColumnsLoaded,
		); err != nil {
			return err
		}
		for i, c := range ts.Columns {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO snapshot_columns (identity, schema_name, table_name, seq, column_name, table_ref, backend_name, backend_code, portable, position, primary_key, nullable, autonumber, has_default, computed)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				identity, ts.Schema, ts.Name, i, c.Name, c.Table, c.Mapping.BackendName, c.Mapping.BackendCode, string(c.Mapping.Portable),
				c.Position, c.PrimaryKey, c.Nullable, c.AutoNumber, c.HasDefault, c.Computed,
			); err != nil {
				return err
			}
		}
	}

	for i, r := range snap.Relationships {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO relationships (identity, seq, name, primary_table, primary_key, foreign_table, foreign_key) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			identity, i, r.Name, r.PrimaryTable, r.PrimaryKey, r.ForeignTable, r.ForeignKey,
		); err != nil {
			return err
		}
	}

	for _, def := range snap.Sprocs {
		data, err := json.Marshal(def)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO sprocs (identity, full_name, definition) VALUES (?, ?, ?)`,
			identity, def.Name.FullName(), string(data),
		); err != nil {
			return err
		}
	}
	return nil
}

// Load reads every stored snapshot.
func (s *SQLiteStore) Load() (*File, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	ctx := context.Background()

	rows, err := s.db.QueryContext(ctx,
		`SELECT identity, vendor, offline, types_complete, tables_complete, rels_complete FROM providers ORDER BY identity`)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}

	f := NewFile()
	var identities []string
	for rows.Next() {
		var identity string
		var snap Snapshot
		if err := rows.Scan(&identity, &snap.Vendor, &snap.Offline, &snap.Complete.TypeMappings, &snap.Complete.Tables, &snap.Complete.Relationships); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		f.Providers[identity] = snap
		identities = append(identities, identity)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}
	_ = rows.Close()

	for _, identity := range identities {
		snap := f.Providers[identity]
		if err := s.loadSnapshot(ctx, identity, &snap); err != nil {
			return nil, fmt.Errorf("failed to load snapshot %s: %w", identity, err)
		}
		f.Providers[identity] = snap
	}
	return f, nil
}

func (s *SQLiteStore) loadSnapshot(ctx context.Context, identity string, snap *Snapshot) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT backend_name, backend_code, portable FROM type_mappings WHERE identity = ? ORDER BY seq`, identity)
	if err != nil {
		return err
	}
	for rows.Next() {
		var m core.TypeMapping
		var code sql.NullInt64
		var portable string
		if err := rows.Scan(&m.BackendName, &code, &portable); err != nil {
			_ = rows.Close()
			return err
		}
		m.BackendCode = intPtr(code)
		m.Portable = core.PortableType(portable)
		snap.TypeMappings = append(snap.TypeMappings, m)
	}
	if err := closeRows(rows); err != nil {
		return err
	}

	rows, err = s.db.QueryContext(ctx,
		`SELECT schema_name, table_name, columns_loaded FROM snapshot_tables WHERE identity = ? ORDER BY schema_name, table_name`, identity)
	if err != nil {
		return err
	}
	for rows.Next() {
		var ts TableSnapshot
		if err := rows.Scan(&ts.Schema, &ts.Name, &ts.ColumnsLoaded); err != nil {
			_ = rows.Close()
			return err
		}
		snap.Tables = append(snap.Tables, ts)
	}
	if err := closeRows(rows); err != nil {
		return err
	}

	for i := range snap.Tables {
		cols, err := s.loadColumns(ctx, identity, snap.Tables[i].Table)
		if err != nil {
			return err
		}
		snap.Tables[i].Columns = cols
	}

	rows, err = s.db.QueryContext(ctx,
		`SELECT name, primary_table, primary_key, foreign_table, foreign_key FROM relationships WHERE identity = ? ORDER BY seq`, identity)
	if err != nil {
		return err
	}
	for rows.Next() {
		var r core.Relationship
		if err := rows.Scan(&r.Name, &r.PrimaryTable, &r.PrimaryKey, &r.ForeignTable, &r.ForeignKey); err != nil {
			_ = rows.Close()
			return err
		}
		snap.Relationships = append(snap.Relationships, r)
	}
	if err := closeRows(rows); err != nil {
		return err
	}

	rows, err = s.db.QueryContext(ctx,
		`SELECT definition FROM sprocs WHERE identity = ? ORDER BY full_name`, identity)
	if err != nil {
		return err
	}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			_ = rows.Close()
			return err
		}
		var def core.SprocDefinition
		if err := json.Unmarshal([]byte(data), &def); err != nil {
			_ = rows.Close()
			return fmt.Errorf("failed to decode sproc definition: %w", err)
		}
		snap.Sprocs = append(snap.Sprocs, def)
	}
	return closeRows(rows)
}

func (s *SQLiteStore) loadColumns(ctx context.Context, identity string, t core.Table) ([]core.Column, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT column_name, table_ref, backend_name, backend_code, portable, position, primary_key, nullable, autonumber, has_default, computed
		 FROM snapshot_columns WHERE identity = ? AND schema_name = ? AND table_name = ? ORDER BY seq`,
		identity, t.Schema, t.Name)
	if err != nil {
		return nil, err
	}
	var cols []core.Column
	for rows.Next() {
		var c core.Column
		var code sql.NullInt64
		var portable string
		if err := rows.Scan(&c.Name, &c.Table, &c.Mapping.BackendName, &code, &portable, &c.Position,
			&c.PrimaryKey, &c.Nullable, &c.AutoNumber, &c.HasDefault, &c.Computed); err != nil {
			_ = rows.Close()
			return nil, err
		}
		c.Mapping.BackendCode = intPtr(code)
		c.Mapping.Portable = core.PortableType(portable)
		cols = append(cols, c)
	}
	return cols, closeRows(rows)
}

func closeRows(rows *sql.Rows) error {
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	return rows.Close()
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}
