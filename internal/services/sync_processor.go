package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"rkas/internal/core"
	"rkas/internal/ports"
)

// OpKind names a remote write.
type OpKind string

const (
	OpInsertItem     OpKind = "insert_item"
	OpUpdateItem     OpKind = "update_item"
	OpDeleteItem     OpKind = "delete_item"
	OpUpsertSettings OpKind = "upsert_settings"
)

// SyncOp is one pending remote write.
type SyncOp struct {
	Kind     OpKind
	Item     core.BudgetItem
	ItemID   string
	Settings core.SchoolSettings
}

func (o SyncOp) key() string {
	if o.Kind == OpUpsertSettings {
		return "settings"
	}
	if o.ItemID != "" {
		return "item:" + o.ItemID
	}
	return "item:" + o.Item.ID
}

// SyncProcessorConfig holds configuration for the sync processor
type SyncProcessorConfig struct {
	// QuietPeriod is how long enqueues must pause before a flush (default: 500ms).
	// Zero flushes on every enqueue.
	QuietPeriod time.Duration

	// OpTimeout bounds each remote call (default: 10s)
	OpTimeout time.Duration
}

// DefaultSyncProcessorConfig returns sensible defaults
func DefaultSyncProcessorConfig() SyncProcessorConfig {
	return SyncProcessorConfig{
		QuietPeriod: 500 * time.Millisecond,
		OpTimeout:   10 * time.Second,
	}
}

// SyncStats reports processor counters.
type SyncStats struct {
	Pending int   `json:"pending"`
	Applied int64 `json:"applied"`
	Dropped int64 `json:"dropped"`
}

// SyncProcessor mirrors local mutations to the remote store in the
// background. Writes are coalesced per key, applied after a quiet period and
// dropped on failure without retry.
type SyncProcessor struct {
	remote ports.Remote
	status *StatusTracker
	config SyncProcessorConfig

	pendingMu sync.Mutex
	pending   map[string]SyncOp
	order     []string
	applied   int64
	dropped   int64
	flushMu   sync.Mutex
	kick      chan struct{}

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewSyncProcessor creates a new sync processor
func NewSyncProcessor(remote ports.Remote, status *StatusTracker, config SyncProcessorConfig) *SyncProcessor {
	if config.OpTimeout <= 0 {
		config.OpTimeout = DefaultSyncProcessorConfig().OpTimeout
	}
	if config.QuietPeriod < 0 {
		config.QuietPeriod = 0
	}
	if status == nil {
		status = NewStatusTracker(StatusConnected)
	}
	return &SyncProcessor{
		remote:  remote,
		status:  status,
		config:  config,
		pending: make(map[string]SyncOp),
		kick:    make(chan struct{}, 1),
	}
}

// Enqueue schedules op, merging it with any pending op for the same key.
func (p *SyncProcessor) Enqueue(op SyncOp) {
	p.pendingMu.Lock()
	p.coalesce(op)
	p.pendingMu.Unlock()

	select {
	case p.kick <- struct{}{}:
	default:
	}
}

// coalesce must be called with pendingMu held.
func (p *SyncProcessor) coalesce(op SyncOp) {
	k := op.key()
	prev, exists := p.pending[k]
	if !exists {
		p.pending[k] = op
		p.order = append(p.order, k)
		return
	}

	switch {
	case prev.Kind == OpInsertItem && op.Kind == OpUpdateItem:
		// The row does not exist remotely yet
		op.Kind = OpInsertItem
		p.pending[k] = op
	case prev.Kind == OpInsertItem && op.Kind == OpDeleteItem:
		// Created and removed within one window; the remote never sees it
		delete(p.pending, k)
		for i, pk := range p.order {
			if pk == k {
				p.order = append(p.order[:i], p.order[i+1:]...)
				break
			}
		}
	default:
		p.pending[k] = op
	}
}

// Pending returns the number of writes waiting for a flush.
func (p *SyncProcessor) Pending() int {
	p.pendingMu.Lock()
	defer p.pendingMu.Unlock()
	return len(p.pending)
}

// Stats returns current counters
func (p *SyncProcessor) Stats() SyncStats {
	p.pendingMu.Lock()
	defer p.pendingMu.Unlock()
	return SyncStats{Pending: len(p.pending), Applied: p.applied, Dropped: p.dropped}
}

// Flush applies all pending writes now, in first-enqueue order.
func (p *SyncProcessor) Flush(ctx context.Context) {
	p.flushMu.Lock()
	defer p.flushMu.Unlock()

	p.pendingMu.Lock()
	ops := make([]SyncOp, 0, len(p.order))
	for _, k := range p.order {
		ops = append(ops, p.pending[k])
	}
	p.pending = make(map[string]SyncOp)
	p.order = nil
	p.pendingMu.Unlock()

	if len(ops) == 0 {
		return
	}

	p.status.Set(StatusSyncing)
	failed := 0
	for _, op := range ops {
		if err := p.apply(ctx, op); err != nil {
			failed++
			slog.WarnContext(ctx, "Remote write failed, dropping",
				"operation", op.Kind,
				"key", op.key(),
				"error", err)
		}
	}

	p.pendingMu.Lock()
	p.applied += int64(len(ops) - failed)
	p.dropped += int64(failed)
	p.pendingMu.Unlock()

	if failed > 0 {
		p.status.Set(StatusLocalOnly)
	} else {
		p.status.Set(StatusConnected)
	}

	slog.DebugContext(ctx, "Remote sync flushed", "ops", len(ops), "failed", failed)
}

func (p *SyncProcessor) apply(ctx context.Context, op SyncOp) error {
	ctx, cancel := context.WithTimeout(ctx, p.config.OpTimeout)
	defer cancel()

	switch op.Kind {
	case OpInsertItem:
		return p.remote.InsertItem(ctx, op.Item)
	case OpUpdateItem:
		return p.remote.UpdateItem(ctx, op.Item)
	case OpDeleteItem:
		return p.remote.DeleteItem(ctx, op.ItemID)
	case OpUpsertSettings:
		return p.remote.UpsertSettings(ctx, op.Settings)
	default:
		return fmt.Errorf("unknown operation: %s", op.Kind)
	}
}

// Start begins the processing loop. Returns an error if already running.
func (p *SyncProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("sync processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	stopCh, doneCh := p.stopCh, p.doneCh
	p.mu.Unlock()

	go p.runLoop(ctx, stopCh, doneCh)

	slog.InfoContext(ctx, "Sync processor started", "quiet_period", p.config.QuietPeriod)
	return nil
}

// Stop flushes what is pending and waits for the loop to exit.
func (p *SyncProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	// A Stop that timed out already closed stopCh; later calls only wait
	if p.stopCh != nil {
		close(p.stopCh)
		p.stopCh = nil
	}
	doneCh := p.doneCh
	p.mu.Unlock()

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Sync processor stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Sync processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()

	return nil
}

// IsRunning returns whether the processor is currently running
func (p *SyncProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *SyncProcessor) runLoop(ctx context.Context, stopCh <-chan struct{}, doneCh chan struct{}) {
	defer close(doneCh)

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-stopCh:
			p.Flush(context.WithoutCancel(ctx))
			return
		case <-ctx.Done():
			p.Flush(context.WithoutCancel(ctx))
			return
		case <-p.kick:
			if p.config.QuietPeriod == 0 {
				p.Flush(ctx)
				continue
			}
			timer.Reset(p.config.QuietPeriod)
		case <-timer.C:
			p.Flush(ctx)
		}
	}
}
