// Package memstore keeps the warning catalog and infraction ledger in
// process memory. It backs the "memory" storage driver and tests.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/m3rciful/warnbot/warnings"
)

// Store implements warnings.Catalog and warnings.Ledger.
type Store struct {
	mu       sync.RWMutex
	groups   map[string]warnings.WarningGroup
	types    map[string]warnings.WarningInfo
	active   []warnings.UserWarning
	archived []warnings.UserWarning
}

var (
	_ warnings.Catalog = (*Store)(nil)
	_ warnings.Ledger  = (*Store)(nil)
)

// New returns an empty store.
func New() *Store {
	return &Store{
		groups: make(map[string]warnings.WarningGroup),
		types:  make(map[string]warnings.WarningInfo),
	}
}

func (s *Store) FindWarningType(_ context.Context, trigger string) (warnings.WarningInfo, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info, ok := s.types[trigger]
	return info, ok, nil
}

func (s *Store) FindGroup(_ context.Context, name string) (warnings.WarningGroup, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[name]
	return g, ok, nil
}

func (s *Store) CreateWarningType(_ context.Context, info warnings.WarningInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.types[info.Trigger]; ok {
		return warnings.ErrTriggerExists
	}
	s.types[info.Trigger] = info
	return nil
}

func (s *Store) UpsertGroup(_ context.Context, group warnings.WarningGroup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups[group.Name] = group
	return nil
}

func (s *Store) UpsertWarningType(_ context.Context, info warnings.WarningInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.types[info.Trigger] = info
	return nil
}

func (s *Store) ListGroups(context.Context) ([]warnings.WarningGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]warnings.WarningGroup, 0, len(s.groups))
	for _, g := range s.groups {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) SumActivePoints(_ context.Context, userID int64, group string) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var sum uint64
	for _, w := range s.active {
		if matches(w, userID, group) {
			sum += w.Info.Points
		}
	}
	return sum, nil
}

func (s *Store) InsertActive(_ context.Context, w warnings.UserWarning) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = append(s.active, w)
	return nil
}

func (s *Store) ArchiveActive(_ context.Context, userID int64, group string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.active[:0]
	moved := 0
	for _, w := range s.active {
		if matches(w, userID, group) {
			s.archived = append(s.archived, w)
			moved++
			continue
		}
		kept = append(kept, w)
	}
	s.active = kept
	return moved, nil
}

func (s *Store) ActiveWarnings(_ context.Context, userID int64) ([]warnings.UserWarning, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []warnings.UserWarning
	for _, w := range s.active {
		if w.UserID == userID {
			out = append(out, w)
		}
	}
	return out, nil
}

// ArchivedWarnings returns the archived records of userID.
func (s *Store) ArchivedWarnings(userID int64) []warnings.UserWarning {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []warnings.UserWarning
	for _, w := range s.archived {
		if w.UserID == userID {
			out = append(out, w)
		}
	}
	return out
}

func matches(w warnings.UserWarning, userID int64, group string) bool {
	return w.UserID == userID && w.Info.Group.Name == group
}
