// Package datacontext is the runtime façade over a provider: entity queries,
// individual lookups, relationship navigation, stored procedures and change
// submission, each in a blocking and a non-blocking form.
//
// A Context is bound to one connection string and one provider identity.
// Entities it creates or materializes are owned by it and must not be handed
// to another Context.
//
// SubmitPendingChanges serializes concurrent callers on a mutex around the
// persist step. SubmitPendingChangesAsync does not take that mutex: it waits,
// for a bounded time, until no pending entity is mid-write and then persists.
// Two concurrent async submissions, or an async and a blocking one, can
// therefore send overlapping batches.
package datacontext

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/leapstack-labs/leapentity/pkg/core"
	"github.com/leapstack-labs/leapentity/pkg/entity"
	"github.com/leapstack-labs/leapentity/pkg/provider"
	"github.com/leapstack-labs/leapentity/pkg/registry"
	"github.com/leapstack-labs/leapentity/pkg/tracker"
)

var (
	// ErrNotFound is returned by GetIndividual when no row matches.
	ErrNotFound = errors.New("entity not found")
	// ErrMultipleRows is returned by GetIndividual when the key is not unique.
	ErrMultipleRows = errors.New("more than one row matched")
	// ErrForeignEntity is returned for entities owned by another context.
	ErrForeignEntity = errors.New("entity belongs to another data context")
)

// Default bounds of the async submission wait.
const (
	DefaultPollBudget   = 250 * time.Millisecond
	DefaultPollInterval = 5 * time.Millisecond
)

// Context is a unit of work against one data source.
type Context struct {
	id         string
	reg        *registry.Registry
	prov       provider.Provider
	identity   registry.Identity
	connString string
	logger     *slog.Logger

	isolation    sql.IsolationLevel
	pollBudget   time.Duration
	pollInterval time.Duration

	pending  *tracker.Set
	submitMu sync.Mutex
}

// Option configures a Context.
type Option func(*Context)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Context) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithIsolation sets the isolation level of submission transactions.
func WithIsolation(level sql.IsolationLevel) Option {
	return func(c *Context) {
		c.isolation = level
	}
}

// WithPollBudget bounds how long SubmitPendingChangesAsync waits for
// in-flight writes, and how often it checks.
func WithPollBudget(budget, interval time.Duration) Option {
	return func(c *Context) {
		if budget >= 0 {
			c.pollBudget = budget
		}
		if interval > 0 {
			c.pollInterval = interval
		}
	}
}

// New creates a context for connString, resolving the shared provider of
// identity through reg.
func New(ctx context.Context, reg *registry.Registry, connString string, identity registry.Identity, opts ...Option) (*Context, error) {
	if reg == nil {
		return nil, &core.ConfigError{Subject: identity.Key(), Reason: "no provider registry"}
	}
	c := &Context{
		id:           uuid.NewString(),
		reg:          reg,
		identity:     identity,
		connString:   connString,
		logger:       slog.New(slog.DiscardHandler),
		pollBudget:   DefaultPollBudget,
		pollInterval: DefaultPollInterval,
		pending:      tracker.NewSet(),
	}
	for _, opt := range opts {
		opt(c)
	}

	p, err := reg.GetOrCreate(ctx, identity, connString)
	if err != nil {
		return nil, err
	}
	c.prov = p
	c.logger = c.logger.With("context", c.id, "vendor", p.Vendor())
	return c, nil
}

// ID returns the context id stamped on owned entities.
func (c *Context) ID() string { return c.id }

// Provider returns the shared provider.
func (c *Context) Provider() provider.Provider { return c.prov }

// Identity returns the provider identity the context is bound to.
func (c *Context) Identity() registry.Identity { return c.identity }

// CreateEntity returns a new, untracked entity for table. Call Track to
// register it for insertion.
func (c *Context) CreateEntity(ctx context.Context, table string) (*entity.Entity, error) {
	t := core.ParseTable(table)
	var cols []core.Column
	err := c.withSchemaConn(ctx, func(conn *sql.Conn) error {
		var err error
		cols, err = c.prov.Columns(ctx, conn, t)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entity.New(c.id, tableName(t, cols), cols, entity.Added), nil
}

// Track registers e as pending and records its later tracked writes.
func (c *Context) Track(e *entity.Entity) error {
	if err := c.own(e); err != nil {
		return err
	}
	e.Attach(c.pending.Touch)
	c.pending.Touch(e)
	return nil
}

// Delete marks e for deletion and registers it as pending.
func (c *Context) Delete(e *entity.Entity) error {
	if err := c.own(e); err != nil {
		return err
	}
	e.Attach(c.pending.Touch)
	e.MarkDeleted()
	c.pending.Touch(e)
	return nil
}

// Pending returns the pending entities, oldest first.
func (c *Context) Pending() []*entity.Entity {
	return c.pending.Entities()
}

// ResetPending forgets every pending change without persisting it.
func (c *Context) ResetPending() {
	c.pending.Clear()
}

// PrimaryKeyDefinition returns the primary-key column of table, or "" when
// it has none. Offline providers answer from the schema cache.
func (c *Context) PrimaryKeyDefinition(ctx context.Context, table string) (string, error) {
	var key string
	err := c.withSchemaConn(ctx, func(conn *sql.Conn) error {
		var err error
		key, err = c.prov.PrimaryKey(ctx, conn, core.ParseTable(table))
		return err
	})
	return key, err
}

// Tables lists the tables the provider knows about.
func (c *Context) Tables(ctx context.Context) ([]core.Table, error) {
	var tables []core.Table
	err := c.withSchemaConn(ctx, func(conn *sql.Conn) error {
		var err error
		tables, err = c.prov.Tables(ctx, conn)
		return err
	})
	return tables, err
}

// Columns returns the columns of table in ordinal order.
func (c *Context) Columns(ctx context.Context, table string) ([]core.Column, error) {
	var cols []core.Column
	err := c.withSchemaConn(ctx, func(conn *sql.Conn) error {
		var err error
		cols, err = c.prov.Columns(ctx, conn, core.ParseTable(table))
		return err
	})
	return cols, err
}

// SaveContextSchema writes the schema cache of every live provider to path.
func (c *Context) SaveContextSchema(path string) error {
	return c.reg.SaveSchema(path)
}

// Close forgets pending changes. The provider stays open for other contexts;
// close the registry to release it.
func (c *Context) Close() error {
	if n := c.pending.Len(); n > 0 {
		c.logger.Debug("closing context with pending changes", "pending", n)
	}
	c.pending.Clear()
	return nil
}

func (c *Context) own(e *entity.Entity) error {
	if e == nil {
		return fmt.Errorf("entity is nil")
	}
	if e.Owner() != c.id {
		return fmt.Errorf("%s: %w", e, ErrForeignEntity)
	}
	return nil
}

// withConn runs fn on a connection from the provider and releases it.
func (c *Context) withConn(ctx context.Context, fn func(conn *sql.Conn) error) error {
	conn, err := c.prov.Open(ctx, c.connString)
	if err != nil {
		return err
	}
	defer c.release(conn)
	return fn(conn)
}

// withSchemaConn is withConn for metadata lookups; offline providers answer
// from the cache without a connection.
func (c *Context) withSchemaConn(ctx context.Context, fn func(conn *sql.Conn) error) error {
	if c.prov.Schema().IsOffline() {
		return fn(nil)
	}
	return c.withConn(ctx, fn)
}

func (c *Context) release(conn *sql.Conn) {
	if err := c.prov.Release(conn); err != nil {
		c.logger.Warn("failed to release connection", "error", err)
	}
}

// tableName is the full name entities of t carry, as the provider spells it.
func tableName(t core.Table, cols []core.Column) string {
	if len(cols) > 0 && cols[0].Table != "" {
		return cols[0].Table
	}
	return t.FullName()
}
