package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"rkas/internal/amqp"
	"rkas/internal/cache"
	"rkas/internal/core"
	applog "rkas/internal/log"
)

// ChangePublisher announces budget changes to other processes.
type ChangePublisher interface {
	PublishChange(ctx context.Context, ev *amqp.ChangeEvent) error
}

// State is what the presentation layer renders.
type State struct {
	Items        []core.BudgetItem   `json:"items"`
	SchoolData   core.SchoolSettings `json:"schoolData"`
	TotalPagu    int64               `json:"totalPagu"`
	StudentCount int                 `json:"studentCount"`
}

// BudgetStore is the single owner of budget items, school settings and SPJ
// recommendations. Every mutation is written to the local cache before it
// returns and mirrored to the remote store in the background.
type BudgetStore struct {
	cache  *cache.Local
	loader *Loader
	sync   *SyncProcessor
	events ChangePublisher
	newID  func() string

	mu       sync.RWMutex
	items    []core.BudgetItem
	settings core.SchoolSettings
	recs     map[string]core.SPJRecommendation

	// persistMu orders cache writes. Each write snapshots state after taking
	// it, so the last write to land is always the newest.
	persistMu sync.Mutex
}

// NewBudgetStore wires the store. syncer and events may be nil, which means
// local-only persistence and no change notifications.
func NewBudgetStore(local *cache.Local, loader *Loader, syncer *SyncProcessor, events ChangePublisher) *BudgetStore {
	return &BudgetStore{
		cache:    local,
		loader:   loader,
		sync:     syncer,
		events:   events,
		newID:    uuid.NewString,
		items:    []core.BudgetItem{},
		settings: core.DefaultSettings(),
		recs:     map[string]core.SPJRecommendation{},
	}
}

// RemoteEnabled reports whether mutations are mirrored to a remote store.
func (s *BudgetStore) RemoteEnabled() bool {
	return s.sync != nil
}

// LoadAll reconciles the cache and the remote store and adopts the result.
// Queued remote writes are flushed first so the remote read already reflects
// local mutations. It never fails; the worst case is an empty budget with
// default settings.
func (s *BudgetStore) LoadAll(ctx context.Context) State {
	if s.sync != nil {
		s.sync.Flush(ctx)
	}
	res := s.loader.Load(ctx)

	recs, err := s.cache.Recommendations(ctx)
	if err != nil {
		slog.WarnContext(ctx, "Cached SPJ recommendations unreadable, discarding", "error", err)
	}

	s.mu.Lock()
	s.items = res.Items
	s.settings = res.Settings
	// Recommendations whose item is gone elsewhere are orphans
	live := make(map[string]bool, len(res.Items))
	for _, it := range res.Items {
		live[it.ID] = true
	}
	pruned := false
	for id := range recs {
		if !live[id] {
			delete(recs, id)
			pruned = true
		}
	}
	s.recs = recs
	state := s.snapshotLocked()
	s.mu.Unlock()

	if pruned {
		s.persistRecommendations(ctx)
	}

	if s.sync != nil {
		if res.RepushItems {
			for _, it := range res.Items {
				s.sync.Enqueue(SyncOp{Kind: OpInsertItem, Item: it})
			}
		}
		if res.RepushSettings {
			s.sync.Enqueue(SyncOp{Kind: OpUpsertSettings, Settings: res.Settings})
		}
	}

	return state
}

// Snapshot returns a copy of the current state.
func (s *BudgetStore) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *BudgetStore) snapshotLocked() State {
	return State{
		Items:        append([]core.BudgetItem{}, s.items...),
		SchoolData:   s.settings,
		TotalPagu:    s.settings.TotalPagu,
		StudentCount: s.settings.StudentCount,
	}
}

// Items returns a copy of the item collection.
func (s *BudgetStore) Items() []core.BudgetItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.BudgetItem{}, s.items...)
}

// Item looks up one item by id.
func (s *BudgetStore) Item(id string) (core.BudgetItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexLocked(id); i >= 0 {
		return s.items[i], true
	}
	return core.BudgetItem{}, false
}

func (s *BudgetStore) Settings() core.SchoolSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

func (s *BudgetStore) indexLocked(id string) int {
	for i, it := range s.items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

// AddItem validates and stores a new item, assigning an id when empty.
func (s *BudgetStore) AddItem(ctx context.Context, item core.BudgetItem) (core.BudgetItem, error) {
	added, err := s.AddItems(ctx, []core.BudgetItem{item})
	if err != nil {
		return core.BudgetItem{}, err
	}
	return added[0], nil
}

// AddItems stores several new items. Validation covers the whole batch
// before anything is written; the remote then receives one independent
// insert per item.
func (s *BudgetStore) AddItems(ctx context.Context, items []core.BudgetItem) ([]core.BudgetItem, error) {
	prepared := make([]core.BudgetItem, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, it := range items {
		if it.ID == "" {
			it.ID = s.newID()
		}
		it = it.WithTotal()
		if err := it.Validate(); err != nil {
			return nil, fmt.Errorf("validate item %q: %w", it.Name, err)
		}
		if seen[it.ID] {
			return nil, fmt.Errorf("add item %s: %w", it.ID, ErrDuplicateItem)
		}
		seen[it.ID] = true
		prepared = append(prepared, it)
	}

	s.mu.Lock()
	for _, it := range prepared {
		if s.indexLocked(it.ID) >= 0 {
			s.mu.Unlock()
			return nil, fmt.Errorf("add item %s: %w", it.ID, ErrDuplicateItem)
		}
	}
	s.items = append(s.items, prepared...)
	s.mu.Unlock()

	s.persistItems(ctx)
	for _, it := range prepared {
		s.mirror(SyncOp{Kind: OpInsertItem, Item: it})
		s.publish(ctx, amqp.ItemCreated, it.ID, string(it.Month))
	}

	slog.InfoContext(ctx, "Budget items added", "count", len(prepared))
	return prepared, nil
}

// UpdateItem replaces every field of an existing item except its id.
func (s *BudgetStore) UpdateItem(ctx context.Context, item core.BudgetItem) (core.BudgetItem, error) {
	if item.ID == "" {
		return core.BudgetItem{}, core.ErrEmptyID
	}
	item = item.WithTotal()
	if err := item.Validate(); err != nil {
		return core.BudgetItem{}, fmt.Errorf("validate item %q: %w", item.Name, err)
	}

	s.mu.Lock()
	i := s.indexLocked(item.ID)
	if i < 0 {
		s.mu.Unlock()
		return core.BudgetItem{}, fmt.Errorf("update item %s: %w", item.ID, ErrItemNotFound)
	}
	s.items[i] = item
	s.mu.Unlock()

	s.persistItems(ctx)
	s.mirror(SyncOp{Kind: OpUpdateItem, Item: item})
	s.publish(ctx, amqp.ItemUpdated, item.ID, string(item.Month))

	slog.InfoContext(ctx, "Budget item updated", applog.FieldItemID, item.ID, applog.FieldMonth, item.Month)
	return item, nil
}

// DeleteItem removes an item together with its SPJ recommendation.
func (s *BudgetStore) DeleteItem(ctx context.Context, id string) error {
	s.mu.Lock()
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return fmt.Errorf("delete item %s: %w", id, ErrItemNotFound)
	}
	month := s.items[i].Month
	s.items = append(s.items[:i:i], s.items[i+1:]...)
	_, hadRec := s.recs[id]
	delete(s.recs, id)
	s.mu.Unlock()

	s.persistItems(ctx)
	if hadRec {
		s.persistRecommendations(ctx)
	}
	s.mirror(SyncOp{Kind: OpDeleteItem, ItemID: id})
	s.publish(ctx, amqp.ItemDeleted, id, string(month))

	slog.InfoContext(ctx, "Budget item deleted", applog.FieldItemID, id, "spj_removed", hadRec)
	return nil
}

// SaveSettings replaces the settings singleton.
func (s *BudgetStore) SaveSettings(ctx context.Context, settings core.SchoolSettings) (core.SchoolSettings, error) {
	if err := settings.Validate(); err != nil {
		return core.SchoolSettings{}, fmt.Errorf("validate settings: %w", err)
	}

	s.mu.Lock()
	s.settings = settings
	s.mu.Unlock()

	s.persistSettings(ctx)
	s.mirror(SyncOp{Kind: OpUpsertSettings, Settings: settings})
	s.publish(ctx, amqp.SettingsSaved, "", "")

	slog.InfoContext(ctx, "School settings saved", "total_pagu", settings.TotalPagu)
	return settings, nil
}

// Recommendation returns a copy of the cached SPJ checklist for an item.
func (s *BudgetStore) Recommendation(itemID string) (core.SPJRecommendation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.recs[itemID]
	if !ok {
		return core.SPJRecommendation{}, false
	}
	return rec.Clone(), true
}

// storeRecommendation keeps the first recommendation stored for an item and
// returns whichever one ends up cached.
func (s *BudgetStore) storeRecommendation(ctx context.Context, rec core.SPJRecommendation) (core.SPJRecommendation, error) {
	s.mu.Lock()
	if s.indexLocked(rec.ActivityID) < 0 {
		s.mu.Unlock()
		return core.SPJRecommendation{}, fmt.Errorf("store recommendation %s: %w", rec.ActivityID, ErrItemNotFound)
	}
	if existing, ok := s.recs[rec.ActivityID]; ok {
		s.mu.Unlock()
		return existing.Clone(), nil
	}
	s.recs[rec.ActivityID] = rec.Clone()
	s.mu.Unlock()

	s.persistRecommendations(ctx)
	return rec.Clone(), nil
}

// updateRecommendation applies fn to the stored recommendation in place.
func (s *BudgetStore) updateRecommendation(ctx context.Context, itemID string, fn func(*core.SPJRecommendation) error) (core.SPJRecommendation, error) {
	s.mu.Lock()
	rec, ok := s.recs[itemID]
	if !ok {
		s.mu.Unlock()
		return core.SPJRecommendation{}, fmt.Errorf("update recommendation %s: %w", itemID, ErrRecommendationNotFound)
	}
	rec = rec.Clone()
	if err := fn(&rec); err != nil {
		s.mu.Unlock()
		return core.SPJRecommendation{}, err
	}
	s.recs[itemID] = rec
	s.mu.Unlock()

	s.persistRecommendations(ctx)
	return rec.Clone(), nil
}

func (s *BudgetStore) copyRecsLocked() map[string]core.SPJRecommendation {
	out := make(map[string]core.SPJRecommendation, len(s.recs))
	for k, v := range s.recs {
		out[k] = v.Clone()
	}
	return out
}

func (s *BudgetStore) persistItems(ctx context.Context) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	// In-memory state stays authoritative for the session if this fails
	if err := s.cache.SaveItems(ctx, s.Items()); err != nil {
		slog.ErrorContext(ctx, "Failed to cache items", "error", err)
	}
}

func (s *BudgetStore) persistSettings(ctx context.Context) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	if err := s.cache.SaveSettings(ctx, s.Settings()); err != nil {
		slog.ErrorContext(ctx, "Failed to cache settings", "error", err)
	}
}

func (s *BudgetStore) persistRecommendations(ctx context.Context) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.RLock()
	recs := s.copyRecsLocked()
	s.mu.RUnlock()
	if err := s.cache.SaveRecommendations(ctx, recs); err != nil {
		slog.ErrorContext(ctx, "Failed to cache SPJ recommendations", "error", err)
	}
}

func (s *BudgetStore) mirror(op SyncOp) {
	if s.sync == nil {
		return
	}
	s.sync.Enqueue(op)
}

func (s *BudgetStore) publish(ctx context.Context, t amqp.ChangeType, id, month string) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishChange(ctx, amqp.NewChangeEvent(t, id, month)); err != nil {
		slog.WarnContext(ctx, "Failed to publish change event", "type", t, applog.FieldItemID, id, "error", err)
	}
}
