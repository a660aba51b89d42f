// Package worker contains background consumers that run outside the HTTP
// service.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"rkas/internal/amqp"
	"rkas/internal/services"
)

// Reloader refreshes a local view of the budget from its backends.
type Reloader interface {
	LoadAll(ctx context.Context) services.State
}

// ChangeWorker follows budget change events published by a running service.
// Each event is written to out as one JSON line; with a Reloader the local
// view is refreshed after every event.
type ChangeWorker struct {
	out      io.Writer
	reloader Reloader

	mu     sync.Mutex
	counts map[amqp.ChangeType]int64
}

func NewChangeWorker(out io.Writer, reloader Reloader) *ChangeWorker {
	return &ChangeWorker{
		out:      out,
		reloader: reloader,
		counts:   make(map[amqp.ChangeType]int64),
	}
}

// HandleChange processes a single change event from AMQP
func (w *ChangeWorker) HandleChange(ctx context.Context, ev *amqp.ChangeEvent) error {
	slog.InfoContext(ctx, "Processing change event",
		"type", ev.Type,
		"id", ev.ID,
		"month", ev.Month)

	line, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode change event: %w", err)
	}

	w.mu.Lock()
	w.counts[ev.Type]++
	_, err = fmt.Fprintf(w.out, "%s\n", line)
	w.mu.Unlock()
	if err != nil {
		return fmt.Errorf("write change event: %w", err)
	}

	if w.reloader != nil {
		st := w.reloader.LoadAll(ctx)
		slog.InfoContext(ctx, "Budget view refreshed", "items", len(st.Items))
	}
	return nil
}

// Counts returns how many events of each type were handled.
func (w *ChangeWorker) Counts() map[amqp.ChangeType]int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make(map[amqp.ChangeType]int64, len(w.counts))
	for k, v := range w.counts {
		out[k] = v
	}
	return out
}
