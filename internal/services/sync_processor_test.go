package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"rkas/internal/core"
)

// recordingRemote logs every write as "kind:key".
type recordingRemote struct {
	mu   sync.Mutex
	log  []string
	fail map[string]bool
}

func (r *recordingRemote) record(entry string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log = append(r.log, entry)
	if r.fail[entry] {
		return errors.New("remote unavailable")
	}
	return nil
}

func (r *recordingRemote) entries() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.log...)
}

func (r *recordingRemote) FetchSettings(context.Context) (*core.SchoolSettings, error) {
	return nil, nil
}

func (r *recordingRemote) UpsertSettings(_ context.Context, s core.SchoolSettings) error {
	return r.record("upsert:" + s.Name)
}

func (r *recordingRemote) FetchItems(context.Context) ([]core.BudgetItem, error) {
	return nil, nil
}

func (r *recordingRemote) InsertItem(_ context.Context, it core.BudgetItem) error {
	return r.record("insert:" + it.ID + ":" + it.Name)
}

func (r *recordingRemote) UpdateItem(_ context.Context, it core.BudgetItem) error {
	return r.record("update:" + it.ID + ":" + it.Name)
}

func (r *recordingRemote) DeleteItem(_ context.Context, id string) error {
	return r.record("delete:" + id)
}

func testItem(id, name string) core.BudgetItem {
	return core.BudgetItem{
		ID:          id,
		Name:        name,
		Category:    core.StandarIsi,
		AccountCode: "5.1.02.01.01.0024",
		Quantity:    decimal.NewFromInt(1),
		Unit:        "Paket",
		Price:       decimal.NewFromInt(500000),
		Month:       core.Januari,
	}.WithTotal()
}

func equalLog(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %d writes %v, got %d %v", len(want), want, len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("write %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestDefaultSyncProcessorConfig(t *testing.T) {
	config := DefaultSyncProcessorConfig()

	if config.QuietPeriod != 500*time.Millisecond {
		t.Errorf("expected QuietPeriod 500ms, got %v", config.QuietPeriod)
	}
	if config.OpTimeout != 10*time.Second {
		t.Errorf("expected OpTimeout 10s, got %v", config.OpTimeout)
	}
}

func TestNewSyncProcessor_FillsDefaults(t *testing.T) {
	processor := NewSyncProcessor(&recordingRemote{}, nil, SyncProcessorConfig{QuietPeriod: -1})

	if processor.config.QuietPeriod != 0 {
		t.Errorf("negative quiet period should clamp to 0, got %v", processor.config.QuietPeriod)
	}
	if processor.config.OpTimeout != 10*time.Second {
		t.Errorf("expected default OpTimeout, got %v", processor.config.OpTimeout)
	}
	if processor.status == nil {
		t.Error("status tracker should default to non-nil")
	}
}

func TestSyncProcessor_Coalescing(t *testing.T) {
	a := testItem("a", "Buku")
	a2 := testItem("a", "Buku Paket")
	b := testItem("b", "Spidol")
	b2 := testItem("b", "Spidol Hitam")

	tests := []struct {
		name string
		ops  []SyncOp
		want []string
	}{
		{
			name: "insert then update stays insert with latest",
			ops: []SyncOp{
				{Kind: OpInsertItem, Item: a},
				{Kind: OpUpdateItem, Item: a2},
			},
			want: []string{"insert:a:Buku Paket"},
		},
		{
			name: "insert then delete cancels out",
			ops: []SyncOp{
				{Kind: OpInsertItem, Item: a},
				{Kind: OpInsertItem, Item: b},
				{Kind: OpDeleteItem, ItemID: "a"},
			},
			want: []string{"insert:b:Spidol"},
		},
		{
			name: "update then delete becomes delete",
			ops: []SyncOp{
				{Kind: OpUpdateItem, Item: b2},
				{Kind: OpDeleteItem, ItemID: "b"},
			},
			want: []string{"delete:b"},
		},
		{
			name: "settings keep latest",
			ops: []SyncOp{
				{Kind: OpUpsertSettings, Settings: core.SchoolSettings{Name: "SD 1"}},
				{Kind: OpUpsertSettings, Settings: core.SchoolSettings{Name: "SD 2"}},
			},
			want: []string{"upsert:SD 2"},
		},
		{
			name: "first enqueue order is kept",
			ops: []SyncOp{
				{Kind: OpInsertItem, Item: b},
				{Kind: OpUpsertSettings, Settings: core.SchoolSettings{Name: "SD"}},
				{Kind: OpInsertItem, Item: a},
				{Kind: OpUpdateItem, Item: b2},
			},
			want: []string{"insert:b:Spidol Hitam", "upsert:SD", "insert:a:Buku"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			remote := &recordingRemote{}
			processor := NewSyncProcessor(remote, nil, DefaultSyncProcessorConfig())
			for _, op := range tt.ops {
				processor.Enqueue(op)
			}
			if processor.Pending() != len(tt.want) {
				t.Errorf("expected %d pending, got %d", len(tt.want), processor.Pending())
			}

			processor.Flush(context.Background())

			equalLog(t, remote.entries(), tt.want)
			if processor.Pending() != 0 {
				t.Errorf("expected nothing pending after flush, got %d", processor.Pending())
			}
		})
	}
}

func TestSyncProcessor_FailureDropsAndMarksLocalOnly(t *testing.T) {
	remote := &recordingRemote{fail: map[string]bool{"insert:a:Buku": true}}
	status := NewStatusTracker(StatusConnected)
	processor := NewSyncProcessor(remote, status, DefaultSyncProcessorConfig())

	processor.Enqueue(SyncOp{Kind: OpInsertItem, Item: testItem("a", "Buku")})
	processor.Enqueue(SyncOp{Kind: OpInsertItem, Item: testItem("b", "Spidol")})
	processor.Flush(context.Background())

	equalLog(t, remote.entries(), []string{"insert:a:Buku", "insert:b:Spidol"})
	if status.Get() != StatusLocalOnly {
		t.Errorf("expected local-only after a failed write, got %s", status.Get())
	}
	stats := processor.Stats()
	if stats.Applied != 1 || stats.Dropped != 1 {
		t.Errorf("expected 1 applied and 1 dropped, got %+v", stats)
	}

	// Dropped writes are not retried
	processor.Flush(context.Background())
	if len(remote.entries()) != 2 {
		t.Errorf("expected no retry, got %v", remote.entries())
	}

	processor.Enqueue(SyncOp{Kind: OpDeleteItem, ItemID: "b"})
	processor.Flush(context.Background())
	if status.Get() != StatusConnected {
		t.Errorf("expected connected after a clean flush, got %s", status.Get())
	}
}

func TestSyncProcessor_StatusTransitions(t *testing.T) {
	status := NewStatusTracker(StatusConnected)
	var (
		mu   sync.Mutex
		seen []SyncStatus
	)
	status.Subscribe(func(s SyncStatus) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})

	processor := NewSyncProcessor(&recordingRemote{}, status, DefaultSyncProcessorConfig())
	processor.Enqueue(SyncOp{Kind: OpDeleteItem, ItemID: "x"})
	processor.Flush(context.Background())

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 || seen[0] != StatusSyncing || seen[1] != StatusConnected {
		t.Errorf("expected [syncing connected], got %v", seen)
	}
}

func TestSyncProcessor_IsRunning(t *testing.T) {
	processor := NewSyncProcessor(&recordingRemote{}, nil, DefaultSyncProcessorConfig())

	if processor.IsRunning() {
		t.Error("processor should not be running initially")
	}
}

func TestSyncProcessor_StartTwice(t *testing.T) {
	processor := NewSyncProcessor(&recordingRemote{}, nil, DefaultSyncProcessorConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := processor.Start(ctx); err != nil {
		t.Fatalf("first start failed: %v", err)
	}
	defer processor.Stop(context.Background())

	if err := processor.Start(ctx); err == nil {
		t.Error("expected error when starting already running processor")
	}
}

func TestSyncProcessor_StopNotRunning(t *testing.T) {
	processor := NewSyncProcessor(&recordingRemote{}, nil, DefaultSyncProcessorConfig())

	if err := processor.Stop(context.Background()); err != nil {
		t.Errorf("Stop should not error when not running: %v", err)
	}
}

func TestSyncProcessor_DebouncedFlush(t *testing.T) {
	remote := &recordingRemote{}
	processor := NewSyncProcessor(remote, nil, SyncProcessorConfig{QuietPeriod: 20 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := processor.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer processor.Stop(context.Background())

	processor.Enqueue(SyncOp{Kind: OpInsertItem, Item: testItem("a", "Buku")})
	processor.Enqueue(SyncOp{Kind: OpUpdateItem, Item: testItem("a", "Buku Paket")})

	deadline := time.Now().Add(2 * time.Second)
	for len(remote.entries()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	equalLog(t, remote.entries(), []string{"insert:a:Buku Paket"})
}

func TestSyncProcessor_StopFlushesPending(t *testing.T) {
	remote := &recordingRemote{}
	processor := NewSyncProcessor(remote, nil, SyncProcessorConfig{QuietPeriod: time.Hour})

	if err := processor.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	processor.Enqueue(SyncOp{Kind: OpDeleteItem, ItemID: "a"})

	stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := processor.Stop(stopCtx); err != nil {
		t.Fatalf("stop failed: %v", err)
	}

	equalLog(t, remote.entries(), []string{"delete:a"})
	if processor.IsRunning() {
		t.Error("processor should not be running after Stop")
	}
}

// blockingRemote holds every item insert until release is closed.
type blockingRemote struct {
	recordingRemote
	release chan struct{}
}

func (b *blockingRemote) InsertItem(ctx context.Context, it core.BudgetItem) error {
	<-b.release
	return b.recordingRemote.InsertItem(ctx, it)
}

func TestSyncProcessor_StopAfterTimeout(t *testing.T) {
	remote := &blockingRemote{release: make(chan struct{})}
	processor := NewSyncProcessor(remote, nil, SyncProcessorConfig{QuietPeriod: time.Hour})

	if err := processor.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	processor.Enqueue(SyncOp{Kind: OpInsertItem, Item: testItem("a", "Buku")})

	for range 2 {
		stopCtx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		err := processor.Stop(stopCtx)
		cancel()
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("expected deadline exceeded while the flush is blocked, got %v", err)
		}
		if !processor.IsRunning() {
			t.Fatal("processor should still be running while its final flush is in progress")
		}
	}

	close(remote.release)
	if err := processor.Stop(context.Background()); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	equalLog(t, remote.entries(), []string{"insert:a:Buku"})
	if processor.IsRunning() {
		t.Error("processor should not be running after Stop")
	}
}
