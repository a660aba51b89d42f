package ports

import (
	"context"

	"rkas/internal/core"
)

// Ports for outbound adapters.
type (
	// KV is the local persistent cache: string keys, JSON-encoded values.
	KV interface {
		// Get returns the stored value and whether the key exists.
		Get(ctx context.Context, key string) ([]byte, bool, error)
		Put(ctx context.Context, key string, value []byte) error
		Delete(ctx context.Context, key string) error
	}

	// SettingsRemote reads and upserts the settings singleton row.
	SettingsRemote interface {
		// FetchSettings returns nil without error when the row does not exist.
		FetchSettings(ctx context.Context) (*core.SchoolSettings, error)
		UpsertSettings(ctx context.Context, s core.SchoolSettings) error
	}

	// ItemRemote reads and writes budget item rows one at a time.
	ItemRemote interface {
		// FetchItems returns all rows ordered by creation time.
		FetchItems(ctx context.Context) ([]core.BudgetItem, error)
		InsertItem(ctx context.Context, item core.BudgetItem) error
		UpdateItem(ctx context.Context, item core.BudgetItem) error
		DeleteItem(ctx context.Context, id string) error
	}

	// Remote is the relational store that is authoritative on load.
	Remote interface {
		SettingsRemote
		ItemRemote
	}

	// Advisor produces AI audits and SPJ checklists. Both return nil when no
	// usable answer could be obtained.
	Advisor interface {
		RequestAudit(ctx context.Context, items []core.BudgetItem, totalPagu int64) *core.AIAnalysisResponse
		RequestChecklist(ctx context.Context, item core.BudgetItem) *core.SPJRecommendation
		Enabled() bool
	}
)
