package provider

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapentity/pkg/core"
	"github.com/leapstack-labs/leapentity/pkg/entity"
)

type pendingWrite struct {
	e         *entity.Entity
	snap      entity.Snapshot
	generated map[string]any
}

// ApplyChanges implements Provider. New entities are inserted, Modified ones
// update their dirty columns and Deleted ones are removed, in the given
// order and inside one transaction. Entities are accepted only after commit.
// An explicitly set autonumber value is inserted as given; a dirty
// autonumber or computed column on update fails the batch.
func (b *BaseSQLProvider) ApplyChanges(ctx context.Context, conn *sql.Conn, changes []*entity.Entity, opts BatchOptions) (BatchResult, error) {
	var result BatchResult
	if conn == nil {
		return result, fmt.Errorf("database connection not established")
	}

	var writes []*pendingWrite
	for _, e := range changes {
		if e == nil || e.PersistedDelete() {
			continue
		}
		release := e.Hold()
		defer release()
		snap := e.Snapshot()
		if snap.State == entity.Unchanged {
			continue
		}
		writes = append(writes, &pendingWrite{e: e, snap: snap})
	}
	if len(writes) == 0 {
		return result, nil
	}

	tx, err := conn.BeginTx(ctx, &sql.TxOptions{Isolation: opts.Isolation})
	if err != nil {
		return result, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, w := range writes {
		var err error
		switch w.snap.State {
		case entity.Added:
			err = b.insert(ctx, tx, w)
			result.Inserted++
		case entity.Modified:
			var wrote bool
			if wrote, err = b.update(ctx, tx, w); wrote {
				result.Updated++
			}
		case entity.Deleted:
			err = b.delete(ctx, tx, w)
			result.Deleted++
		}
		if err != nil {
			return BatchResult{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return BatchResult{}, fmt.Errorf("failed to commit transaction: %w", err)
	}

	for _, w := range writes {
		w.e.Accept(w.snap, w.generated)
	}
	b.Logger.Debug("applied changes", "vendor", b.Vendor(),
		"inserted", result.Inserted, "updated", result.Updated, "deleted", result.Deleted)
	return result, nil
}

func (b *BaseSQLProvider) insert(ctx context.Context, tx *sql.Tx, w *pendingWrite) error {
	table := core.ParseTable(w.e.Table())
	q := b.Dial.Quoting

	var names, binds []string
	var args []any
	var auto *core.Column
	for i, c := range w.snap.Columns {
		explicit := c.AutoNumber && w.snap.Dirty[i] && w.snap.Values[i] != nil
		if c.AutoNumber && !explicit && auto == nil {
			auto = &w.snap.Columns[i]
		}
		if (!c.Writable() && !explicit) || (!w.snap.Dirty[i] && w.snap.Values[i] == nil) {
			continue
		}
		args = append(args, w.snap.Values[i])
		names = append(names, q.Quote(c.Name))
		binds = append(binds, b.Dial.FormatPlaceholder(len(args)))
	}

	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(table.QuotedFullName(q))
	if len(names) > 0 {
		sb.WriteString(" (" + strings.Join(names, ", ") + ")")
	}
	returning := ReturnNone
	if auto != nil {
		returning = b.Dial.Returning
	}
	if returning == ReturnOutputInserted {
		sb.WriteString(" OUTPUT INSERTED." + q.Quote(auto.Name))
	}
	if len(names) > 0 {
		sb.WriteString(" VALUES (" + strings.Join(binds, ", ") + ")")
	} else {
		empty := b.Dial.EmptyInsert
		if empty == "" {
			empty = "DEFAULT VALUES"
		}
		sb.WriteString(" " + empty)
	}
	if returning == ReturnClause {
		sb.WriteString(" RETURNING " + q.Quote(auto.Name))
	}

	cmd := b.NewCommand(tx, sb.String())
	switch returning {
	case ReturnClause, ReturnOutputInserted:
		var id any
		if err := cmd.QueryRow(ctx, args...).Scan(&id); err != nil {
			return fmt.Errorf("failed to insert into %s: %w", table.FullName(), err)
		}
		w.generated = map[string]any{auto.Name: id}
	default:
		res, err := cmd.Exec(ctx, args...)
		if err != nil {
			return fmt.Errorf("failed to insert into %s: %w", table.FullName(), err)
		}
		if returning == ReturnLastInsertID {
			if id, err := res.LastInsertId(); err == nil {
				w.generated = map[string]any{auto.Name: id}
			}
		}
	}
	return coerceGenerated(w)
}

func coerceGenerated(w *pendingWrite) error {
	for name, v := range w.generated {
		col, ok := w.e.Column(name)
		if !ok {
			continue
		}
		cv, err := entity.Coerce(w.e.Table(), col, v)
		if err != nil {
			return err
		}
		w.generated[name] = cv
	}
	return nil
}

func (b *BaseSQLProvider) update(ctx context.Context, tx *sql.Tx, w *pendingWrite) (bool, error) {
	table := core.ParseTable(w.e.Table())
	q := b.Dial.Quoting

	var sets, readOnly []string
	var args []any
	for i, c := range w.snap.Columns {
		if !w.snap.Dirty[i] {
			continue
		}
		if !c.Writable() {
			readOnly = append(readOnly, c.Name)
			continue
		}
		args = append(args, w.snap.Values[i])
		sets = append(sets, q.Quote(c.Name)+" = "+b.Dial.FormatPlaceholder(len(args)))
	}
	if len(readOnly) > 0 {
		return false, fmt.Errorf("failed to update %s: %w: %s", table.FullName(), ErrReadOnlyColumn, strings.Join(readOnly, ", "))
	}
	if len(sets) == 0 {
		return false, nil
	}

	where, args := b.keyPredicate(w.snap, args)
	text := "UPDATE " + table.QuotedFullName(q) + " SET " + strings.Join(sets, ", ") + " WHERE " + where
	res, err := b.NewCommand(tx, text).Exec(ctx, args...)
	if err != nil {
		return false, fmt.Errorf("failed to update %s: %w", table.FullName(), err)
	}
	return true, checkAffected(res, table)
}

func (b *BaseSQLProvider) delete(ctx context.Context, tx *sql.Tx, w *pendingWrite) error {
	table := core.ParseTable(w.e.Table())
	where, args := b.keyPredicate(w.snap, nil)
	text := "DELETE FROM " + table.QuotedFullName(b.Dial.Quoting) + " WHERE " + where
	res, err := b.NewCommand(tx, text).Exec(ctx, args...)
	if err != nil {
		return fmt.Errorf("failed to delete from %s: %w", table.FullName(), err)
	}
	return checkAffected(res, table)
}

// keyPredicate matches the row by its original primary-key value, or by
// every original column value when the table has no key.
func (b *BaseSQLProvider) keyPredicate(s entity.Snapshot, args []any) (string, []any) {
	var conds []string
	keyed := len(core.PrimaryKeys(s.Columns)) > 0
	for i, c := range s.Columns {
		if keyed && !c.PrimaryKey {
			continue
		}
		if !keyed && (c.Computed || c.Mapping.Portable == core.PortableBytes) {
			continue
		}
		v := s.Original[i]
		if v == nil && keyed {
			v = s.Values[i]
		}
		if v == nil {
			conds = append(conds, b.Dial.QuoteIdentifier(c.Name)+" IS NULL")
			continue
		}
		args = append(args, v)
		conds = append(conds, b.Dial.QuoteIdentifier(c.Name)+" = "+b.Dial.FormatPlaceholder(len(args)))
	}
	return strings.Join(conds, " AND "), args
}

func checkAffected(res sql.Result, table core.Table) error {
	n, err := res.RowsAffected()
	if err != nil {
		return nil //nolint:nilerr // driver cannot report affected rows
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", table.FullName(), ErrConcurrency)
	}
	return nil
}
