package services

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"rkas/internal/cache"
	"rkas/internal/core"
	"rkas/internal/ports"
)

// LoaderConfig controls startup reconciliation.
type LoaderConfig struct {
	// Timeout bounds the remote fetch (default: 10s)
	Timeout time.Duration

	// EmptyRemoteAuthoritative makes a successful zero-row remote fetch wipe
	// the local items. When false a non-empty cache is kept and re-pushed.
	EmptyRemoteAuthoritative bool
}

// Source tells where loaded data came from.
type Source string

const (
	SourceRemote   Source = "remote"
	SourceCache    Source = "cache"
	SourceDefaults Source = "defaults"
)

// LoadResult is the reconciled view of items and settings.
type LoadResult struct {
	Items          []core.BudgetItem
	Settings       core.SchoolSettings
	ItemsSource    Source
	SettingsSource Source

	// RepushItems is set when the remote answered with no rows but local
	// items were kept; they need writing back to converge.
	RepushItems bool
	// RepushSettings is set when the remote has no settings row.
	RepushSettings bool
}

// Loader decides the authoritative view when the cache and the remote
// store disagree. The remote wins when it answers, the cache otherwise.
type Loader struct {
	cache  *cache.Local
	remote ports.Remote
	status *StatusTracker
	config LoaderConfig
}

func NewLoader(local *cache.Local, remote ports.Remote, status *StatusTracker, config LoaderConfig) *Loader {
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if status == nil {
		status = NewStatusTracker(StatusLocalOnly)
	}
	return &Loader{cache: local, remote: remote, status: status, config: config}
}

// Load never fails: any backend error degrades to the cache, then defaults.
func (l *Loader) Load(ctx context.Context) LoadResult {
	res := l.readCache(ctx)

	if l.remote == nil {
		l.status.Set(StatusLocalOnly)
		l.writeBack(ctx, res)
		return res
	}

	l.status.Set(StatusSyncing)

	var (
		remoteSettings *core.SchoolSettings
		remoteItems    []core.BudgetItem
		settingsErr    error
		itemsErr       error
	)
	fetchCtx, cancel := context.WithTimeout(ctx, l.config.Timeout)
	defer cancel()

	// A plain group: one failed fetch must not cancel the other
	var g errgroup.Group
	g.Go(func() error {
		remoteSettings, settingsErr = l.remote.FetchSettings(fetchCtx)
		return nil
	})
	g.Go(func() error {
		remoteItems, itemsErr = l.remote.FetchItems(fetchCtx)
		return nil
	})
	_ = g.Wait()

	if settingsErr != nil {
		slog.WarnContext(ctx, "Remote settings fetch failed, using local", "error", settingsErr)
	} else if remoteSettings != nil {
		res.Settings = *remoteSettings
		res.SettingsSource = SourceRemote
	} else {
		res.RepushSettings = true
	}

	switch {
	case itemsErr != nil:
		slog.WarnContext(ctx, "Remote items fetch failed, using local", "error", itemsErr)
	case len(remoteItems) > 0:
		res.Items = remoteItems
		res.ItemsSource = SourceRemote
	case l.config.EmptyRemoteAuthoritative || len(res.Items) == 0:
		res.Items = []core.BudgetItem{}
		res.ItemsSource = SourceRemote
	default:
		slog.WarnContext(ctx, "Remote returned no items, keeping local cache",
			"local_items", len(res.Items))
		res.RepushItems = true
	}

	if settingsErr != nil || itemsErr != nil {
		l.status.Set(StatusLocalOnly)
	} else {
		l.status.Set(StatusConnected)
	}

	slog.InfoContext(ctx, "Budget data loaded",
		"items", len(res.Items),
		"items_source", res.ItemsSource,
		"settings_source", res.SettingsSource)

	l.writeBack(ctx, res)
	return res
}

func (l *Loader) readCache(ctx context.Context) LoadResult {
	res := LoadResult{
		Items:          []core.BudgetItem{},
		Settings:       core.DefaultSettings(),
		ItemsSource:    SourceDefaults,
		SettingsSource: SourceDefaults,
	}

	items, err := l.cache.Items(ctx)
	if err != nil {
		slog.WarnContext(ctx, "Local items unreadable, starting empty", "error", err)
	} else if items != nil {
		res.Items = items
		res.ItemsSource = SourceCache
	}

	settings, err := l.cache.Settings(ctx)
	if err != nil {
		slog.WarnContext(ctx, "Local settings unreadable, using defaults", "error", err)
	} else if settings != nil {
		res.Settings = *settings
		res.SettingsSource = SourceCache
	}

	return res
}

func (l *Loader) writeBack(ctx context.Context, res LoadResult) {
	if err := l.cache.SaveItems(ctx, res.Items); err != nil {
		slog.ErrorContext(ctx, "Failed to write items back to cache", "error", err)
	}
	if err := l.cache.SaveSettings(ctx, res.Settings); err != nil {
		slog.ErrorContext(ctx, "Failed to write settings back to cache", "error", err)
	}
}
