package provider

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/leapstack-labs/leapentity/pkg/core"
	"github.com/leapstack-labs/leapentity/pkg/entity"
	"github.com/leapstack-labs/leapentity/pkg/future"
	"github.com/leapstack-labs/leapentity/pkg/schemacache"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// BaseSQLProvider implements Provider over database/sql and a Dialect.
// Embed it in concrete provider implementations.
type BaseSQLProvider struct {
	Cfg    Config
	Dial   *Dialect
	Logger *slog.Logger
	Cache  *schemacache.Cache

	// DSN rewrites a connection string before it reaches the driver.
	DSN func(connString string) (string, error)
	// OnConnect runs on every connection handed out by Open.
	OnConnect func(ctx context.Context, conn *sql.Conn) error
	// Connector, when set, builds the pool with sql.OpenDB instead of
	// sql.Open(Dial.DriverName, dsn).
	Connector func(dsn string) (driver.Connector, error)

	mu  sync.Mutex
	dbs map[string]*sql.DB
}

// NewBase creates a base provider for d.
func NewBase(cfg Config, d *Dialect) *BaseSQLProvider {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Vendor == "" {
		cfg.Vendor = d.Name
	}
	return &BaseSQLProvider{
		Cfg:    cfg,
		Dial:   d,
		Logger: logger,
		Cache:  schemacache.New(cfg.Vendor),
		dbs:    make(map[string]*sql.DB),
	}
}

// Vendor implements Provider.
func (b *BaseSQLProvider) Vendor() string { return b.Cfg.Vendor }

// Identity implements Provider.
func (b *BaseSQLProvider) Identity() string { return b.Cfg.Identity }

// Dialect implements Provider.
func (b *BaseSQLProvider) Dialect() *Dialect { return b.Dial }

// Schema implements Provider.
func (b *BaseSQLProvider) Schema() *schemacache.Cache { return b.Cache }

func (b *BaseSQLProvider) pool(connString string) (*sql.DB, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if db, ok := b.dbs[connString]; ok {
		return db, nil
	}

	dsn := connString
	if b.DSN != nil {
		var err error
		if dsn, err = b.DSN(connString); err != nil {
			return nil, err
		}
	}

	var db *sql.DB
	if b.Connector != nil {
		connector, err := b.Connector(dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s connector: %w", b.Vendor(), err)
		}
		db = sql.OpenDB(connector)
	} else {
		var err error
		if db, err = sql.Open(b.Dial.DriverName, dsn); err != nil {
			return nil, fmt.Errorf("failed to open %s database: %w", b.Vendor(), err)
		}
	}
	if b.Dial.KeepConnectionOpen {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
		db.SetConnMaxIdleTime(0)
	}
	b.dbs[connString] = db
	return db, nil
}

// SetDB registers an already opened pool for connString.
func (b *BaseSQLProvider) SetDB(connString string, db *sql.DB) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dbs[connString] = db
}

// Open implements Provider.
func (b *BaseSQLProvider) Open(ctx context.Context, connString string) (*sql.Conn, error) {
	if b.Dial.SchemaOnly {
		return nil, &core.ConfigError{Subject: b.Identity(), Reason: b.Vendor() + " is a schema-only provider and cannot open connections"}
	}

	db, err := b.pool(connString)
	if err != nil {
		return nil, err
	}
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", b.Vendor(), err)
	}
	if b.OnConnect != nil {
		if err := b.OnConnect(ctx, conn); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to prepare %s connection: %w", b.Vendor(), err)
		}
	}
	b.Logger.Debug("opened connection", "vendor", b.Vendor(), "identity", b.Identity())
	return conn, nil
}

// Release implements Provider. The connection goes back to the pool; pools
// of KeepConnectionOpen dialects keep their single connection alive.
func (b *BaseSQLProvider) Release(conn *sql.Conn) error {
	if conn == nil {
		return nil
	}
	b.Logger.Debug("released connection", "vendor", b.Vendor(), "shared", b.Dial.KeepConnectionOpen)
	if err := conn.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("failed to release connection: %w", err)
	}
	return nil
}

// Close implements Provider.
func (b *BaseSQLProvider) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var errs []error
	for key, db := range b.dbs {
		b.Logger.Debug("closing database connection", "vendor", b.Vendor())
		if err := db.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(b.dbs, key)
	}
	return errors.Join(errs...)
}

// NewCommand implements Provider.
func (b *BaseSQLProvider) NewCommand(q Querier, text string) *Command {
	return &Command{
		Text:      text,
		q:         q,
		identity:  b.Identity(),
		vendor:    b.Vendor(),
		publisher: b.Cfg.Publisher,
	}
}

// NewParameter implements Provider.
func (b *BaseSQLProvider) NewParameter(p core.QueryParameter, value any) any {
	name := BindName(p.Name)
	if p.Direction.IsOutput() {
		out := sql.Out{Dest: outDest(p.Mapping.Portable, p.Direction, value), In: p.Direction == core.InOut}
		if p.Mapping.Portable == core.PortableRows && b.Dial.CursorDest != nil {
			out = sql.Out{Dest: b.Dial.CursorDest()}
		}
		if b.Dial.PositionalOutputs {
			return out
		}
		return sql.Named(name, out)
	}
	if b.Dial.NamedInputs && name != "" {
		return sql.Named(name, value)
	}
	return value
}

// BindName strips the vendor prefix from a parameter name.
func BindName(name string) string {
	return strings.TrimLeft(name, "@:$?")
}

// Fold applies the case policy to a catalog name.
func (b *BaseSQLProvider) Fold(name string) string {
	switch b.Cfg.Case {
	case core.CaseInsensitiveUpper:
		return cases.Upper(language.Und).String(name)
	case core.CaseInsensitiveLower:
		return cases.Lower(language.Und).String(name)
	}
	return name
}

// FoldTable applies the case policy to both parts of a table name.
func (b *BaseSQLProvider) FoldTable(t core.Table) core.Table {
	return core.Table{Schema: b.Fold(t.Schema), Name: b.Fold(t.Name)}
}

// qualify folds t and fills in the default schema, giving the name the
// schema cache and relationship metadata use.
func (b *BaseSQLProvider) qualify(t core.Table) core.Table {
	if t.Schema == "" {
		t.Schema = b.Dial.DefaultSchema
	}
	return b.FoldTable(t)
}

// TypeMappings implements Provider.
func (b *BaseSQLProvider) TypeMappings(ctx context.Context, conn *sql.Conn) ([]core.TypeMapping, error) {
	if b.Cache.IsOffline() {
		m, _ := b.Cache.TypeMappings()
		return m, nil
	}

	byName := make(map[string]core.TypeMapping)
	for _, m := range b.Dial.TypeMappings() {
		byName[m.BackendName] = m
	}

	if b.Dial.TypesQuery != "" {
		if conn == nil {
			return nil, fmt.Errorf("database connection not established")
		}
		rows, err := b.NewCommand(conn, b.Dial.TypesQuery).Query(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to query type metadata: %w", err)
		}
		defer func() { _ = rows.Close() }()

		for rows.Next() {
			var name string
			var code sql.NullInt64
			if err := rows.Scan(&name, &code); err != nil {
				return nil, fmt.Errorf("failed to scan type metadata: %w", err)
			}
			var codePtr *int
			if code.Valid {
				c := int(code.Int64)
				codePtr = &c
			}
			byName[NormalizeTypeName(name)] = b.Dial.Mapping(name, codePtr)
		}
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("error iterating type metadata: %w", err)
		}
	}

	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)
	mappings := make([]core.TypeMapping, 0, len(names))
	for _, name := range names {
		mappings = append(mappings, byName[name])
	}

	b.Cache.SetTypeMappings(mappings)
	return mappings, nil
}

// Tables implements Provider. Backends without a catalog query report the
// tables resolved so far.
func (b *BaseSQLProvider) Tables(ctx context.Context, conn *sql.Conn) ([]core.Table, error) {
	if b.Cache.IsOffline() || b.Dial.TablesQuery == "" {
		t, _ := b.Cache.Tables()
		return t, nil
	}
	if conn == nil {
		return nil, fmt.Errorf("database connection not established")
	}

	rows, err := b.NewCommand(conn, b.Dial.TablesQuery).Query(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query table metadata: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tables []core.Table
	for rows.Next() {
		var schema sql.NullString
		var name string
		if err := rows.Scan(&schema, &name); err != nil {
			return nil, fmt.Errorf("failed to scan table metadata: %w", err)
		}
		tables = append(tables, b.FoldTable(core.Table{Schema: schema.String, Name: name}))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating table metadata: %w", err)
	}

	b.Cache.SetTables(tables)
	return tables, nil
}

// Columns implements Provider.
func (b *BaseSQLProvider) Columns(ctx context.Context, conn *sql.Conn, table core.Table) ([]core.Column, error) {
	table = b.qualify(table)
	if cols, ok := b.Cache.Columns(table.FullName()); ok {
		return cols, nil
	}
	if b.Cache.IsOffline() {
		return nil, &core.SchemaError{Table: table.FullName()}
	}
	cols, err := b.loadColumns(ctx, conn, table)
	if err != nil {
		return nil, err
	}
	b.Cache.SetColumns(table, cols)
	return cols, nil
}

// PrimaryKey implements Provider. Online providers read the key live.
func (b *BaseSQLProvider) PrimaryKey(ctx context.Context, conn *sql.Conn, table core.Table) (string, error) {
	var cols []core.Column
	var err error
	if b.Cache.IsOffline() {
		cols, err = b.Columns(ctx, conn, table)
	} else {
		table = b.qualify(table)
		if cols, err = b.loadColumns(ctx, conn, table); err == nil {
			b.Cache.SetColumns(table, cols)
		}
	}
	if err != nil {
		return "", err
	}
	return SingleKey(table.FullName(), cols)
}

// SingleKey returns the only primary-key column of cols, "" when there is
// none, or a configuration error naming table when the key is composite.
func SingleKey(table string, cols []core.Column) (string, error) {
	keys := core.PrimaryKeys(cols)
	switch len(keys) {
	case 0:
		return "", nil
	case 1:
		return keys[0], nil
	}
	return "", &core.ConfigError{Subject: table, Reason: fmt.Sprintf("composite primary key (%s) is not supported", strings.Join(keys, ", "))}
}

func (b *BaseSQLProvider) loadColumns(ctx context.Context, conn *sql.Conn, table core.Table) ([]core.Column, error) {
	if conn == nil {
		return nil, fmt.Errorf("database connection not established")
	}
	if b.Dial.ColumnsQuery == "" {
		return b.probeColumns(ctx, conn, table)
	}

	var args []any
	if b.Dial.ColumnsArgs != nil {
		args = b.Dial.ColumnsArgs(table)
	} else {
		schema := table.Schema
		if schema == "" {
			schema = b.Dial.DefaultSchema
		}
		args = []any{schema, table.Name}
	}

	rows, err := b.NewCommand(conn, b.Dial.ColumnsQuery).Query(ctx, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query column metadata: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var cols []core.Column
	for rows.Next() {
		var (
			name                                                    string
			dataType                                                sql.NullString
			nullable, ordinal, pk, autonumber, hasDefault, computed any
		)
		if err := rows.Scan(&name, &dataType, &nullable, &ordinal, &pk, &autonumber, &hasDefault, &computed); err != nil {
			return nil, fmt.Errorf("failed to scan column metadata: %w", err)
		}
		cols = append(cols, core.Column{
			Table:      table.FullName(),
			Name:       name,
			Mapping:    b.Dial.Mapping(dataType.String, nil),
			Position:   toInt(ordinal),
			PrimaryKey: truthy(pk),
			Nullable:   truthy(nullable),
			AutoNumber: truthy(autonumber),
			HasDefault: truthy(hasDefault),
			Computed:   truthy(computed),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating column metadata: %w", err)
	}
	if len(cols) == 0 {
		return nil, &core.SchemaError{Table: table.FullName()}
	}
	sort.SliceStable(cols, func(i, j int) bool { return cols[i].Position < cols[j].Position })
	return cols, nil
}

// probeColumns describes a table from an empty result set.
func (b *BaseSQLProvider) probeColumns(ctx context.Context, conn *sql.Conn, table core.Table) ([]core.Column, error) {
	//nolint:gosec // table names come from the catalog or the caller's own schema
	rows, err := b.NewCommand(conn, "SELECT * FROM "+table.QuotedFullName(b.Dial.Quoting)+" WHERE 1=0").Query(ctx)
	if err != nil {
		return nil, &core.SchemaError{Table: table.FullName()}
	}
	defer func() { _ = rows.Close() }()
	return ResultColumns(rows, b.Dial, table.FullName())
}

// SelectSQL implements Provider.
func (b *BaseSQLProvider) SelectSQL(table core.Table, cols []core.Column, filters []Filter) (string, []any) {
	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(b.columnList(cols))
	sb.WriteString(" FROM ")
	sb.WriteString(table.QuotedFullName(b.Dial.Quoting))

	var args []any
	for i, f := range filters {
		if i == 0 {
			sb.WriteString(" WHERE ")
		} else {
			sb.WriteString(" AND ")
		}
		sb.WriteString(b.Dial.QuoteIdentifier(f.Column))
		if f.Value == nil {
			sb.WriteString(" IS NULL")
			continue
		}
		args = append(args, f.Value)
		sb.WriteString(" = ")
		sb.WriteString(b.Dial.FormatPlaceholder(len(args)))
	}
	return sb.String(), args
}

// SelectByKeySQL implements Provider.
func (b *BaseSQLProvider) SelectByKeySQL(table core.Table, key string, cols []core.Column) string {
	return "SELECT " + b.columnList(cols) + " FROM " + table.QuotedFullName(b.Dial.Quoting) +
		" WHERE " + b.Dial.QuoteIdentifier(key) + " = " + b.Dial.FormatPlaceholder(1)
}

func (b *BaseSQLProvider) columnList(cols []core.Column) string {
	if len(cols) == 0 {
		return "*"
	}
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = b.Dial.QuoteIdentifier(c.Name)
	}
	return strings.Join(names, ", ")
}

// Relationships implements Provider.
func (b *BaseSQLProvider) Relationships(ctx context.Context, conn *sql.Conn) ([]core.Relationship, error) {
	if b.Cache.IsOffline() {
		rels, _ := b.Cache.Relationships()
		return rels, nil
	}
	if b.Dial.RelationshipsQuery == "" {
		b.Cache.SetRelationships(nil)
		return nil, nil
	}
	if conn == nil {
		return nil, fmt.Errorf("database connection not established")
	}

	rows, err := b.NewCommand(conn, b.Dial.RelationshipsQuery).Query(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query relationship metadata: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var rels []core.Relationship
	for rows.Next() {
		var name, pSchema, fSchema sql.NullString
		var pTable, pCol, fTable, fCol string
		if err := rows.Scan(&name, &pSchema, &pTable, &pCol, &fSchema, &fTable, &fCol); err != nil {
			return nil, fmt.Errorf("failed to scan relationship metadata: %w", err)
		}
		rels = append(rels, core.Relationship{
			Name:         name.String,
			PrimaryTable: b.FoldTable(core.Table{Schema: pSchema.String, Name: pTable}).FullName(),
			PrimaryKey:   pCol,
			ForeignTable: b.FoldTable(core.Table{Schema: fSchema.String, Name: fTable}).FullName(),
			ForeignKey:   fCol,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating relationship metadata: %w", err)
	}

	b.Cache.SetRelationships(rels)
	return rels, nil
}

// SprocDefinition implements Provider.
func (b *BaseSQLProvider) SprocDefinition(ctx context.Context, conn *sql.Conn, name core.SprocName) (core.SprocDefinition, error) {
	if def, ok := b.Cache.Sproc(name.FullName()); ok {
		return def, nil
	}
	if b.Cache.IsOffline() {
		return core.SprocDefinition{}, &core.SchemaError{Table: name.FullName()}
	}
	if b.Dial.SprocParamsQuery == "" {
		return core.SprocDefinition{}, &core.ConfigError{Subject: name.FullName(), Reason: "stored procedures are not supported by " + b.Vendor()}
	}
	if conn == nil {
		return core.SprocDefinition{}, fmt.Errorf("database connection not established")
	}

	owner := name.Owner
	if owner == "" {
		owner = b.Dial.DefaultSchema
	}
	rows, err := b.NewCommand(conn, b.Dial.SprocParamsQuery).Query(ctx, owner, name.Package, name.Name)
	if err != nil {
		return core.SprocDefinition{}, fmt.Errorf("failed to query procedure metadata: %w", err)
	}
	defer func() { _ = rows.Close() }()

	def := core.SprocDefinition{Name: name}
	for rows.Next() {
		var pname, dataType, direction sql.NullString
		var ordinal any
		var length sql.NullInt64
		if err := rows.Scan(&pname, &dataType, &direction, &ordinal, &length); err != nil {
			return core.SprocDefinition{}, fmt.Errorf("failed to scan procedure metadata: %w", err)
		}
		p := core.SprocParam{
			QueryParameter: core.QueryParameter{
				Name:      pname.String,
				Mapping:   b.Dial.Mapping(dataType.String, nil),
				Direction: ParseDirection(direction.String),
			},
			Ordinal: toInt(ordinal),
		}
		if length.Valid {
			l := int(length.Int64)
			p.Length = &l
		}
		def.Params = append(def.Params, p)
	}
	if err := rows.Err(); err != nil {
		return core.SprocDefinition{}, fmt.Errorf("error iterating procedure metadata: %w", err)
	}

	b.Cache.SetSproc(def)
	return def, nil
}

// ParseDirection reads catalog spellings of parameter modes.
func ParseDirection(s string) core.ParamDirection {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "OUT", "OUTPUT":
		return core.Out
	case "INOUT", "IN/OUT", "IN OUT":
		return core.InOut
	case "RETURN", "RETURN_VALUE", "RESULT":
		return core.Return
	}
	return core.In
}

// ExecuteSprocAsync implements Provider.
func (b *BaseSQLProvider) ExecuteSprocAsync(ctx context.Context, conn *sql.Conn, def core.SprocDefinition, args []any) *future.Future[SprocResult] {
	return future.Go(ctx, func(ctx context.Context) (SprocResult, error) {
		return b.ExecuteSproc(ctx, conn, def, args)
	})
}

// ApplyChangesAsync implements Provider.
func (b *BaseSQLProvider) ApplyChangesAsync(ctx context.Context, conn *sql.Conn, changes []*entity.Entity, opts BatchOptions) *future.Future[BatchResult] {
	return future.Go(ctx, func(ctx context.Context) (BatchResult, error) {
		return b.ApplyChanges(ctx, conn, changes, opts)
	})
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case int64:
		return x != 0
	case int32:
		return x != 0
	case int:
		return x != 0
	case float64:
		return x != 0
	case []byte:
		return truthy(string(x))
	case string:
		switch strings.ToUpper(strings.TrimSpace(x)) {
		case "1", "Y", "YES", "T", "TRUE":
			return true
		}
	}
	return false
}

func toInt(v any) int {
	switch x := v.(type) {
	case int64:
		return int(x)
	case int32:
		return int(x)
	case int:
		return x
	case float64:
		return int(x)
	case []byte:
		return toInt(string(x))
	case string:
		i, _ := strconv.Atoi(strings.TrimSpace(x))
		return i
	}
	return 0
}
