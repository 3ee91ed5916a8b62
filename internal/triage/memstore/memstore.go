// Package memstore provides an in-memory implementation of triage.Store.
package memstore

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/linnemanlabs/sieve/internal/item"
	"github.com/linnemanlabs/sieve/internal/triage"
)

// Store holds items, triage records and runs in memory. Suitable for dev/testing.
type Store struct {
	mu     sync.RWMutex
	items  map[string]*item.Item     // item ID -> item
	triage map[string]*triage.Record // item ID -> latest record
	runs   map[string]*triage.Run    // run ID -> run
}

// New initializes a new in-memory Store.
func New() *Store {
	return &Store{
		items:  make(map[string]*item.Item),
		triage: make(map[string]*triage.Record),
		runs:   make(map[string]*triage.Run),
	}
}

// Items returns copies of the items matching q, newest first.
func (s *Store) Items(_ context.Context, q triage.Query) ([]item.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := q.Limit
	if limit <= 0 {
		limit = triage.DefaultQueryLimit
	}

	matched := make([]*item.Item, 0, len(s.items))
	for _, it := range s.items {
		if q.Source != "" && it.Source != q.Source {
			continue
		}
		_, triaged := s.triage[it.ID]
		switch q.Filter {
		case triage.FilterUntriaged:
			if triaged {
				continue
			}
		case triage.FilterTriaged:
			if !triaged {
				continue
			}
		}
		matched = append(matched, it)
	}

	slices.SortFunc(matched, func(a, b *item.Item) int {
		if c := b.Timestamp.Compare(a.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	out := make([]item.Item, 0, min(limit, len(matched)))
	for _, it := range matched[:min(limit, len(matched))] {
		out = append(out, copyItem(it))
	}
	return out, nil
}

// PutItems stores copies of the items, replacing any with the same ID.
func (s *Store) PutItems(_ context.Context, items []item.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range items {
		cp := copyItem(&items[i])
		s.items[cp.ID] = &cp
	}
	return nil
}

// SaveTriage stores a copy of the record, replacing any earlier one for the item.
func (s *Store) SaveTriage(_ context.Context, rec *triage.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	s.triage[rec.ItemID] = &cp
	return nil
}

// GetTriage retrieves the record for an item. Returns a copy.
func (s *Store) GetTriage(_ context.Context, itemID string) (*triage.Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.triage[itemID]
	if !ok {
		return nil, false, nil
	}
	cp := *r
	return &cp, true, nil
}

// PutRun stores a copy of the run.
func (s *Store) PutRun(_ context.Context, r *triage.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := copyRun(r)
	s.runs[r.ID] = &cp
	return nil
}

// GetRun retrieves a run by its ID. Returns a copy.
func (s *Store) GetRun(_ context.Context, id string) (*triage.Run, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.runs[id]
	if !ok {
		return nil, false, nil
	}
	cp := copyRun(r)
	return &cp, true, nil
}

// ActiveRun returns the newest pending or in-progress run for source, for deduplication.
func (s *Store) ActiveRun(_ context.Context, source item.Source) (*triage.Run, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var newest *triage.Run
	for _, r := range s.runs {
		if r.Source != source || !r.Status.Active() {
			continue
		}
		if newest == nil || r.CreatedAt.After(newest.CreatedAt) {
			newest = r
		}
	}
	if newest == nil {
		return nil, false, nil
	}
	cp := copyRun(newest)
	return &cp, true, nil
}

// FailActiveRuns marks every pending or in-progress run failed.
func (s *Store) FailActiveRuns(_ context.Context, reason string, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, r := range s.runs {
		if !r.Status.Active() {
			continue
		}
		r.Status = triage.StatusFailed
		r.Error = reason
		r.CompletedAt = at
		n++
	}
	return n, nil
}

func copyItem(it *item.Item) item.Item {
	cp := *it
	cp.ThreadContext = slices.Clone(it.ThreadContext)
	cp.Metadata = maps.Clone(it.Metadata)
	return cp
}

func copyRun(r *triage.Run) triage.Run {
	cp := *r
	cp.ByPriority = maps.Clone(r.ByPriority)
	cp.Top = slices.Clone(r.Top)
	return cp
}
