// Package provider defines the contract every backend implements and the
// shared database/sql implementation vendor packages build on.
//
// Concrete providers live in pkg/providers/ subdirectories and register a
// Factory from their init functions; blank-import a provider package to make
// its vendor available.
package provider

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/leapstack-labs/leapentity/pkg/core"
	"github.com/leapstack-labs/leapentity/pkg/entity"
	"github.com/leapstack-labs/leapentity/pkg/future"
	"github.com/leapstack-labs/leapentity/pkg/schemacache"
	"github.com/leapstack-labs/leapentity/pkg/telemetry"
)

// ErrConcurrency is returned when an UPDATE or DELETE matched no row.
var ErrConcurrency = errors.New("row was changed or deleted by another writer")

// ErrReadOnlyColumn is returned when an update carries a change to an
// autonumber or computed column.
var ErrReadOnlyColumn = errors.New("column is not writable")

// Config is what a Factory receives when the registry constructs a provider.
type Config struct {
	// Identity is the registry key of the logical data source.
	Identity string
	Vendor   string
	Case     core.CasePolicy
	Options  map[string]string
	// Params holds vendor-specific settings, decoded by the vendor package.
	Params    map[string]any
	Logger    *slog.Logger
	Publisher *telemetry.Publisher
}

// Factory constructs a provider.
type Factory func(cfg Config) (Provider, error)

// Querier is the subset of *sql.Conn and *sql.Tx commands run against.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Filter is one equality predicate. A nil Value matches NULL.
type Filter struct {
	Column string
	Value  any
}

// BatchOptions configures ApplyChanges.
type BatchOptions struct {
	Isolation sql.IsolationLevel
}

// BatchResult counts the statements ApplyChanges executed.
type BatchResult struct {
	Inserted int
	Updated  int
	Deleted  int
}

// Total returns the number of write statements.
func (r BatchResult) Total() int {
	return r.Inserted + r.Updated + r.Deleted
}

// Provider is the capability set every backend implements.
type Provider interface {
	// Vendor returns the registered vendor name.
	Vendor() string

	// Identity returns the registry key the provider was built for.
	Identity() string

	// Dialect returns the backend description.
	Dialect() *Dialect

	// Open returns a connection for connString. Callers hand it back with Release.
	Open(ctx context.Context, connString string) (*sql.Conn, error)

	// Release returns a connection obtained from Open.
	Release(conn *sql.Conn) error

	// NewCommand builds a command over a connection or transaction.
	NewCommand(q Querier, text string) *Command

	// NewParameter builds the driver argument for one parameter.
	NewParameter(p core.QueryParameter, value any) any

	// TypeMappings runs a full type-mapping pass.
	TypeMappings(ctx context.Context, conn *sql.Conn) ([]core.TypeMapping, error)

	// Tables lists the tables, with the case policy applied to their names.
	Tables(ctx context.Context, conn *sql.Conn) ([]core.Table, error)

	// Columns lists the columns of one table, filling the cache if needed.
	Columns(ctx context.Context, conn *sql.Conn, table core.Table) ([]core.Column, error)

	// PrimaryKey returns the single primary-key column of table, "" when the
	// table has none, or a configuration error when the key is composite.
	PrimaryKey(ctx context.Context, conn *sql.Conn, table core.Table) (string, error)

	// SelectSQL builds a SELECT of cols with one equality predicate per filter.
	SelectSQL(table core.Table, cols []core.Column, filters []Filter) (string, []any)

	// SelectByKeySQL builds the fetch-by-primary-key query.
	SelectByKeySQL(table core.Table, key string, cols []core.Column) string

	// Relationships lists the foreign keys.
	Relationships(ctx context.Context, conn *sql.Conn) ([]core.Relationship, error)

	// SprocDefinition resolves a stored procedure signature.
	SprocDefinition(ctx context.Context, conn *sql.Conn, name core.SprocName) (core.SprocDefinition, error)

	// ExecuteSproc runs a stored procedure with positional arguments.
	ExecuteSproc(ctx context.Context, conn *sql.Conn, def core.SprocDefinition, args []any) (SprocResult, error)

	// ExecuteSprocAsync is the non-blocking form of ExecuteSproc.
	ExecuteSprocAsync(ctx context.Context, conn *sql.Conn, def core.SprocDefinition, args []any) *future.Future[SprocResult]

	// ApplyChanges persists entities in one transaction, in the given order.
	ApplyChanges(ctx context.Context, conn *sql.Conn, changes []*entity.Entity, opts BatchOptions) (BatchResult, error)

	// ApplyChangesAsync is the non-blocking form of ApplyChanges.
	ApplyChangesAsync(ctx context.Context, conn *sql.Conn, changes []*entity.Entity, opts BatchOptions) *future.Future[BatchResult]

	// Schema returns the provider's metadata cache.
	Schema() *schemacache.Cache

	// Close releases every pooled connection.
	Close() error
}
