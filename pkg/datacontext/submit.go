package datacontext

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/leapstack-labs/leapentity/pkg/future"
	"github.com/leapstack-labs/leapentity/pkg/provider"
	"github.com/leapstack-labs/leapentity/pkg/tracker"
)

// SubmitPendingChanges persists every pending entity in one transaction.
// Concurrent callers are serialized. Afterwards Unchanged entities and
// persisted deletes leave the pending set; entities whose write failed stay
// pending for a retry.
func (c *Context) SubmitPendingChanges(ctx context.Context) (provider.BatchResult, error) {
	c.submitMu.Lock()
	defer c.submitMu.Unlock()
	return c.submit(ctx)
}

// SubmitPendingChangesAsync is the non-blocking form of SubmitPendingChanges.
// It does not take the submission mutex. Instead it polls until no pending
// entity is mid-write, giving up the wait after the poll budget, and then
// persists. This narrows but does not close the window in which another
// submission or a concurrent write overlaps the batch.
func (c *Context) SubmitPendingChangesAsync(ctx context.Context) *future.Future[provider.BatchResult] {
	return future.Go(ctx, func(ctx context.Context) (provider.BatchResult, error) {
		if err := c.awaitQuiescence(ctx); err != nil {
			return provider.BatchResult{}, err
		}
		return c.submit(ctx)
	})
}

func (c *Context) awaitQuiescence(ctx context.Context) error {
	if !c.pending.AnyInTransition() {
		return nil
	}
	deadline := time.NewTimer(c.pollBudget)
	defer deadline.Stop()
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for c.pending.AnyInTransition() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			c.logger.Debug("pending entities still in transition, submitting anyway", "budget", c.pollBudget)
			return nil
		case <-ticker.C:
		}
	}
	return nil
}

func (c *Context) submit(ctx context.Context) (provider.BatchResult, error) {
	c.pending.Resolve()
	entries := c.pending.Entries()
	if len(entries) == 0 {
		return provider.BatchResult{}, nil
	}

	var result provider.BatchResult
	err := c.withConn(ctx, func(conn *sql.Conn) error {
		rels, err := c.prov.Relationships(ctx, conn)
		if err != nil {
			c.logger.Warn("failed to load relationships, persisting in modification order", "error", err)
			rels = nil
		}
		ordered := tracker.Order(entries, rels, c.logger)

		start := time.Now()
		result, err = c.prov.ApplyChanges(ctx, conn, ordered, provider.BatchOptions{Isolation: c.isolation})
		if err != nil {
			return fmt.Errorf("failed to submit pending changes: %w", err)
		}
		c.logger.Debug("submitted pending changes",
			"inserted", result.Inserted,
			"updated", result.Updated,
			"deleted", result.Deleted,
			"duration", time.Since(start))
		return nil
	})

	c.pending.Resolve()
	return result, err
}
