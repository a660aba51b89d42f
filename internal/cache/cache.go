// Package cache is the typed view over the local key-value cache.
package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"rkas/internal/core"
	"rkas/internal/ports"
)

// Logical keys, version-suffixed so a format change can start fresh.
const (
	KeyItems           = "rkas_items_v1"
	KeySettings        = "rkas_school_data_v1"
	KeyRecommendations = "rkas_spj_v1"
)

// Local reads and writes application records to a ports.KV.
type Local struct {
	kv ports.KV
}

func New(kv ports.KV) *Local {
	return &Local{kv: kv}
}

func getJSON[T any](ctx context.Context, kv ports.KV, key string) (T, bool, error) {
	var zero T
	raw, ok, err := kv.Get(ctx, key)
	if err != nil || !ok {
		return zero, false, err
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return zero, false, fmt.Errorf("decode %s: %w", key, err)
	}
	return v, true, nil
}

func putJSON[T any](ctx context.Context, kv ports.KV, key string, v T) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return kv.Put(ctx, key, raw)
}

// Items returns the cached items, or nil when nothing is cached.
func (c *Local) Items(ctx context.Context) ([]core.BudgetItem, error) {
	items, _, err := getJSON[[]core.BudgetItem](ctx, c.kv, KeyItems)
	return items, err
}

func (c *Local) SaveItems(ctx context.Context, items []core.BudgetItem) error {
	if items == nil {
		items = []core.BudgetItem{}
	}
	return putJSON(ctx, c.kv, KeyItems, items)
}

// Settings returns the cached settings, or nil when nothing is cached.
func (c *Local) Settings(ctx context.Context) (*core.SchoolSettings, error) {
	s, ok, err := getJSON[core.SchoolSettings](ctx, c.kv, KeySettings)
	if err != nil || !ok {
		return nil, err
	}
	return &s, nil
}

func (c *Local) SaveSettings(ctx context.Context, s core.SchoolSettings) error {
	return putJSON(ctx, c.kv, KeySettings, s)
}

// Recommendations returns the SPJ map keyed by item id, never nil.
func (c *Local) Recommendations(ctx context.Context) (map[string]core.SPJRecommendation, error) {
	recs, ok, err := getJSON[map[string]core.SPJRecommendation](ctx, c.kv, KeyRecommendations)
	if err != nil {
		return map[string]core.SPJRecommendation{}, err
	}
	if !ok || recs == nil {
		return map[string]core.SPJRecommendation{}, nil
	}
	return recs, nil
}

func (c *Local) SaveRecommendations(ctx context.Context, recs map[string]core.SPJRecommendation) error {
	if recs == nil {
		recs = map[string]core.SPJRecommendation{}
	}
	return putJSON(ctx, c.kv, KeyRecommendations, recs)
}
