package main

import (
	"context"
	"fmt"

	"rkas/internal/ai"
	"rkas/internal/backend"
	"rkas/internal/cache"
	"rkas/internal/config"
	applog "rkas/internal/log"
	"rkas/internal/services"
)

// app holds everything one process wires together from configuration.
type app struct {
	cfg     *config.Config
	logger  *applog.Logger
	backend *backend.BackendResult

	status       *services.StatusTracker
	sync         *services.SyncProcessor
	store        *services.BudgetStore
	planner      *services.Planner
	spj          *services.SPJService
	audit        *services.AuditService
	reallocation *services.Reallocation
	advisor      *ai.Requester
}

func newApp(ctx context.Context, cfg *config.Config, logger *applog.Logger) (*app, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(logger.Logger.With(applog.FieldComponent, applog.ComponentBackend)).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, fmt.Errorf("create backend: %w", err)
	}

	a := &app{cfg: cfg, logger: logger, backend: res}
	local := cache.New(res.Cache)
	a.status = services.NewStatusTracker(services.StatusLocalOnly)

	loader := services.NewLoader(local, res.Remote, a.status, services.LoaderConfig{
		Timeout:                  cfg.Remote.LoadTimeout,
		EmptyRemoteAuthoritative: cfg.Reconcile.EmptyRemoteAuthoritative,
	})

	if res.Remote != nil {
		a.sync = services.NewSyncProcessor(res.Remote, a.status, services.SyncProcessorConfig{
			QuietPeriod: cfg.Sync.Debounce,
		})
		if err := a.sync.Start(context.WithoutCancel(ctx)); err != nil {
			_ = res.Cleanup()
			return nil, fmt.Errorf("start sync processor: %w", err)
		}
	}

	// Avoid handing the store a typed nil publisher
	var events services.ChangePublisher
	if res.Events != nil {
		events = res.Events
	}
	a.store = services.NewBudgetStore(local, loader, a.sync, events)

	a.advisor = ai.NewFromKey(cfg.AI.APIKey, ai.Config{
		AuditModel:     cfg.AI.AuditModel,
		ChecklistModel: cfg.AI.ChecklistModel,
		Timeout:        cfg.AI.Timeout,
	})
	a.planner = services.NewPlanner(a.store)
	a.spj = services.NewSPJService(a.store, a.advisor)
	a.audit = services.NewAuditService(a.store, a.advisor)
	a.reallocation = services.NewReallocation(a.store, a.planner)

	logger.InfoContext(ctx, "Application initialized",
		"cache", bcfg.CacheType,
		"remote", !res.LocalOnly(),
		"events", res.Events != nil,
		"ai", a.advisor.Enabled())
	return a, nil
}

// close flushes pending remote writes and releases every backend.
func (a *app) close(ctx context.Context) {
	if a.sync != nil {
		if err := a.sync.Stop(ctx); err != nil {
			a.logger.WarnContext(ctx, "Sync processor did not stop cleanly", "error", err)
		}
	}
	if err := a.advisor.Close(); err != nil {
		a.logger.WarnContext(ctx, "Failed to close AI client", "error", err)
	}
	if err := a.backend.Cleanup(); err != nil {
		a.logger.WarnContext(ctx, "Backend cleanup failed", "error", err)
	}
}
