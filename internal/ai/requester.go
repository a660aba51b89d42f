package ai

import (
	"context"
	"log/slog"
	"time"

	"rkas/internal/config"
	"rkas/internal/core"
)

const (
	DefaultAuditModel     = "gemini-3-flash-preview"
	DefaultChecklistModel = "gemini-3-pro-preview"
	DefaultTimeout        = 60 * time.Second
)

// Config selects models and bounds each call.
type Config struct {
	AuditModel     string
	ChecklistModel string
	Timeout        time.Duration
}

// Requester implements ports.Advisor. It never returns an error: any failure
// is logged and reported as nil.
type Requester struct {
	gen    Generator
	config Config
}

// NewRequester returns a requester over gen. A nil gen disables AI.
func NewRequester(gen Generator, config Config) *Requester {
	if config.AuditModel == "" {
		config.AuditModel = DefaultAuditModel
	}
	if config.ChecklistModel == "" {
		config.ChecklistModel = DefaultChecklistModel
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	return &Requester{gen: gen, config: config}
}

// NewFromKey builds a Gemini-backed requester, disabled when apiKey is not
// configured.
func NewFromKey(apiKey string, cfg Config) *Requester {
	if !config.IsSet(apiKey) {
		return NewRequester(nil, cfg)
	}
	return NewRequester(NewGemini(apiKey), cfg)
}

func (r *Requester) Enabled() bool {
	return r.gen != nil
}

// Close releases the underlying client when it holds one.
func (r *Requester) Close() error {
	if c, ok := r.gen.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

func (r *Requester) generate(ctx context.Context, model, prompt string) (string, bool) {
	ctx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	start := time.Now()
	text, err := r.gen.Generate(ctx, model, prompt)
	if err != nil {
		slog.ErrorContext(ctx, "AI request failed", "model", model, "error", err)
		return "", false
	}
	slog.DebugContext(ctx, "AI request completed", "model", model, "duration_ms", time.Since(start).Milliseconds())
	return text, true
}

// RequestAudit asks for an efficiency and compliance review of items.
func (r *Requester) RequestAudit(ctx context.Context, items []core.BudgetItem, totalPagu int64) *core.AIAnalysisResponse {
	if !r.Enabled() || len(items) == 0 {
		return nil
	}
	prompt, err := auditPrompt(items, totalPagu)
	if err != nil {
		slog.ErrorContext(ctx, "AI audit prompt failed", "error", err)
		return nil
	}
	text, ok := r.generate(ctx, r.config.AuditModel, prompt)
	if !ok {
		return nil
	}
	res, err := parseAudit(text)
	if err != nil {
		slog.ErrorContext(ctx, "AI audit response rejected", "error", err)
		return nil
	}
	return res
}

// RequestChecklist asks for the SPJ evidence list for one item.
func (r *Requester) RequestChecklist(ctx context.Context, item core.BudgetItem) *core.SPJRecommendation {
	if !r.Enabled() {
		return nil
	}
	text, ok := r.generate(ctx, r.config.ChecklistModel, checklistPrompt(item))
	if !ok {
		return nil
	}
	rec, err := parseChecklist(text, item)
	if err != nil {
		slog.ErrorContext(ctx, "AI checklist response rejected", "id", item.ID, "error", err)
		return nil
	}
	return rec
}
