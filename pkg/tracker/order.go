package tracker

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/leapstack-labs/leapentity/internal/dag"
	"github.com/leapstack-labs/leapentity/pkg/core"
	"github.com/leapstack-labs/leapentity/pkg/entity"
)

// Order returns the entities of entries in persistence order. Inserts and
// updates run parents first, then deletes run children first. Tables with no
// dependency between them keep the order of their oldest pending entity, and
// entities of one table keep their last-modified order. When relationships
// form a cycle the entries are returned in last-modified order.
func Order(entries []Entry, rels []core.Relationship, logger *slog.Logger) []*entity.Entity {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	sorted := append([]Entry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Touched.Before(sorted[j].Touched)
	})

	var writes, deletes []*entity.Entity
	first := make(map[string]int)
	g := dag.NewGraph()
	for i, en := range sorted {
		key := tableKey(en.Entity.Table())
		if _, seen := first[key]; !seen {
			first[key] = i
			g.AddNode(key)
		}
		if en.Entity.State() == entity.Deleted {
			deletes = append(deletes, en.Entity)
		} else {
			writes = append(writes, en.Entity)
		}
	}

	for _, rel := range rels {
		parent, child := tableKey(rel.PrimaryTable), tableKey(rel.ForeignTable)
		if !g.HasNode(parent) || !g.HasNode(child) {
			continue
		}
		_ = g.AddEdge(parent, child)
	}

	tables, err := g.TopologicalSort(func(a, b string) bool { return first[a] < first[b] })
	if err != nil {
		logger.Warn("relationship cycle between pending tables, persisting in modification order",
			"error", err)
		out := make([]*entity.Entity, len(sorted))
		for i, en := range sorted {
			out[i] = en.Entity
		}
		return out
	}

	rank := make(map[string]int, len(tables))
	for i, t := range tables {
		rank[t] = i
	}
	sort.SliceStable(writes, func(i, j int) bool {
		return rank[tableKey(writes[i].Table())] < rank[tableKey(writes[j].Table())]
	})
	sort.SliceStable(deletes, func(i, j int) bool {
		return rank[tableKey(deletes[i].Table())] > rank[tableKey(deletes[j].Table())]
	})
	return append(writes, deletes...)
}

func tableKey(name string) string {
	return strings.ToLower(name)
}
