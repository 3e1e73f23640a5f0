// Package memstore is an in-process [query.Executor]. It keeps every entity
// as a slice of records and is meant for single-instance development and tests.
package memstore

import (
	"context"
	"crypto/rand"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/MrEthical07/goGuard/query"
	"github.com/oklog/ulid/v2"
)

var _ query.Executor = (*Store)(nil)

// IDField is the primary key field assigned on create when absent.
const IDField = "id"

// Store holds records per entity.
type Store struct {
	mu     sync.RWMutex
	tables map[string][]query.Record
	now    func() time.Time
}

// New creates an empty [Store].
func New() *Store {
	return &Store{
		tables: make(map[string][]query.Record),
		now:    time.Now,
	}
}

// Execute implements [query.Executor].
func (s *Store) Execute(_ context.Context, op query.Operation) (query.Result, error) {
	if err := op.Validate(); err != nil {
		return query.Result{}, err
	}

	if op.Kind.IsRead() {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return s.read(op), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch op.Kind {
	case query.Create:
		rec := s.insert(op.Entity, op.Data)
		return query.Result{Records: []query.Record{rec}, Affected: 1}, nil
	case query.CreateMany:
		for _, r := range op.Records {
			s.insert(op.Entity, r)
		}
		return query.Result{Affected: int64(len(op.Records))}, nil
	case query.Update, query.UpdateMany:
		updated := s.update(op.Entity, op.Where, op.Data, op.Kind == query.Update)
		if op.Kind == query.Update && len(updated) == 0 {
			return query.Result{}, query.ErrNotFound
		}
		return query.Result{Records: updated, Affected: int64(len(updated))}, nil
	case query.Upsert:
		if updated := s.update(op.Entity, op.Where, op.Data, true); len(updated) > 0 {
			return query.Result{Records: updated, Affected: 1}, nil
		}
		rec := s.insert(op.Entity, op.Create)
		return query.Result{Records: []query.Record{rec}, Affected: 1}, nil
	case query.Delete, query.DeleteMany:
		deleted := s.delete(op.Entity, op.Where, op.Kind == query.Delete)
		if op.Kind == query.Delete && len(deleted) == 0 {
			return query.Result{}, query.ErrNotFound
		}
		return query.Result{Records: deleted, Affected: int64(len(deleted))}, nil
	}
	return query.Result{}, fmt.Errorf("%w: kind %q", query.ErrUnsupported, op.Kind)
}

// Len returns the number of rows stored for entity.
func (s *Store) Len(entity string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tables[entity])
}

func (s *Store) read(op query.Operation) query.Result {
	var matched []query.Record
	for _, r := range s.tables[op.Entity] {
		if query.Match(r, op.Where) {
			matched = append(matched, r.Clone())
		}
	}

	if op.Kind == query.Count {
		return query.Result{Affected: int64(len(matched))}
	}

	if op.OrderBy != "" {
		sort.SliceStable(matched, func(i, j int) bool {
			c := query.Compare(matched[i][op.OrderBy], matched[j][op.OrderBy])
			if op.Desc {
				return c > 0
			}
			return c < 0
		})
	}

	limit := op.Limit
	if op.Kind == query.FindUnique || op.Kind == query.FindFirst {
		limit = 1
	}
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return query.Result{Records: matched, Affected: int64(len(matched))}
}

func (s *Store) insert(entity string, data query.Record) query.Record {
	rec := data.Clone()
	if rec == nil {
		rec = query.Record{}
	}
	if _, ok := rec[IDField]; !ok {
		rec[IDField] = ulid.MustNew(ulid.Timestamp(s.now()), rand.Reader).String()
	}
	s.tables[entity] = append(s.tables[entity], rec)
	return rec.Clone()
}

func (s *Store) update(entity string, where []query.Condition, data query.Record, single bool) []query.Record {
	var out []query.Record
	for _, r := range s.tables[entity] {
		if !query.Match(r, where) {
			continue
		}
		for k, v := range data {
			r[k] = v
		}
		out = append(out, r.Clone())
		if single {
			break
		}
	}
	return out
}

func (s *Store) delete(entity string, where []query.Condition, single bool) []query.Record {
	rows := s.tables[entity]
	kept := rows[:0]
	var removed []query.Record
	for _, r := range rows {
		if query.Match(r, where) && (!single || len(removed) == 0) {
			removed = append(removed, r)
			continue
		}
		kept = append(kept, r)
	}
	s.tables[entity] = kept
	return removed
}
