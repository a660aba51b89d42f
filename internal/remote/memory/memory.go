// Package memory is an in-process remote store. It backs the "memory" remote
// backend and doubles as a controllable remote in tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"rkas/internal/core"
)

type Store struct {
	mu       sync.Mutex
	settings *core.SchoolSettings
	items    []core.BudgetItem
	err      error
	calls    int
}

func New() *Store {
	return &Store{}
}

// SetError makes every subsequent call fail with err; nil restores service.
func (s *Store) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Calls returns how many operations were attempted.
func (s *Store) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Seed replaces the stored rows without counting as calls.
func (s *Store) Seed(settings *core.SchoolSettings, items []core.BudgetItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
	s.items = append([]core.BudgetItem(nil), items...)
}

func (s *Store) begin() error {
	s.calls++
	return s.err
}

// FetchSettings implements ports.SettingsRemote
func (s *Store) FetchSettings(_ context.Context) (*core.SchoolSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(); err != nil {
		return nil, err
	}
	if s.settings == nil {
		return nil, nil
	}
	cp := *s.settings
	return &cp, nil
}

// UpsertSettings implements ports.SettingsRemote
func (s *Store) UpsertSettings(_ context.Context, in core.SchoolSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(); err != nil {
		return err
	}
	s.settings = &in
	return nil
}

// FetchItems implements ports.ItemRemote
func (s *Store) FetchItems(_ context.Context) ([]core.BudgetItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(); err != nil {
		return nil, err
	}
	return append([]core.BudgetItem{}, s.items...), nil
}

func (s *Store) indexOf(id string) int {
	for i, it := range s.items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

// InsertItem implements ports.ItemRemote
func (s *Store) InsertItem(_ context.Context, it core.BudgetItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(); err != nil {
		return err
	}
	if s.indexOf(it.ID) >= 0 {
		return fmt.Errorf("insert item %s: duplicate key", it.ID)
	}
	s.items = append(s.items, it)
	return nil
}

// UpdateItem implements ports.ItemRemote. Updating a missing row is a no-op,
// as with an UPDATE matching no rows.
func (s *Store) UpdateItem(_ context.Context, it core.BudgetItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(); err != nil {
		return err
	}
	if i := s.indexOf(it.ID); i >= 0 {
		s.items[i] = it
	}
	return nil
}

// DeleteItem implements ports.ItemRemote
func (s *Store) DeleteItem(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(); err != nil {
		return err
	}
	if i := s.indexOf(id); i >= 0 {
		s.items = append(s.items[:i], s.items[i+1:]...)
	}
	return nil
}
