package services

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"rkas/internal/core"
	applog "rkas/internal/log"
	"rkas/internal/ports"
)

// SPJService generates and tracks documentation checklists. A checklist is
// requested from the advisor at most once per item.
type SPJService struct {
	store   *BudgetStore
	advisor ports.Advisor
	group   singleflight.Group
}

func NewSPJService(store *BudgetStore, advisor ports.Advisor) *SPJService {
	return &SPJService{store: store, advisor: advisor}
}

// Checklist returns the item's recommendation, generating it on first use.
func (s *SPJService) Checklist(ctx context.Context, itemID string) (core.SPJRecommendation, error) {
	item, ok := s.store.Item(itemID)
	if !ok {
		return core.SPJRecommendation{}, fmt.Errorf("spj checklist %s: %w", itemID, ErrItemNotFound)
	}
	if rec, ok := s.store.Recommendation(itemID); ok {
		return rec, nil
	}

	v, err, shared := s.group.Do(itemID, func() (any, error) {
		// Another caller may have stored one while we waited
		if rec, ok := s.store.Recommendation(itemID); ok {
			return rec, nil
		}
		// Waiters share this call, so one caller going away must not cancel
		// it; the advisor applies its own timeout
		callCtx := context.WithoutCancel(ctx)
		rec := s.advisor.RequestChecklist(callCtx, item)
		if rec == nil {
			return nil, ErrAIUnavailable
		}
		return s.store.storeRecommendation(callCtx, *rec)
	})
	if err != nil {
		slog.WarnContext(ctx, "SPJ checklist unavailable", applog.FieldItemID, itemID, "error", err)
		return core.SPJRecommendation{}, fmt.Errorf("spj checklist %s: %w", itemID, err)
	}

	rec := v.(core.SPJRecommendation)
	slog.InfoContext(ctx, "SPJ checklist ready", applog.FieldItemID, itemID, "evidence", len(rec.Checklist), "shared", shared)
	return rec.Clone(), nil
}

// Recommendation returns the stored checklist without generating one.
func (s *SPJService) Recommendation(itemID string) (core.SPJRecommendation, error) {
	rec, ok := s.store.Recommendation(itemID)
	if !ok {
		return core.SPJRecommendation{}, fmt.Errorf("spj checklist %s: %w", itemID, ErrRecommendationNotFound)
	}
	return rec, nil
}

// ToggleEvidence flips one evidence item between pending and ready.
func (s *SPJService) ToggleEvidence(ctx context.Context, itemID, evidenceID string) (core.SPJRecommendation, error) {
	return s.store.updateRecommendation(ctx, itemID, func(rec *core.SPJRecommendation) error {
		for i := range rec.Checklist {
			if rec.Checklist[i].ID == evidenceID {
				rec.Checklist[i].Toggle()
				return nil
			}
		}
		return fmt.Errorf("toggle evidence %s: %w", evidenceID, ErrEvidenceNotFound)
	})
}

// AuditService runs the AI budget audit over the current items.
type AuditService struct {
	store   *BudgetStore
	advisor ports.Advisor
}

func NewAuditService(store *BudgetStore, advisor ports.Advisor) *AuditService {
	return &AuditService{store: store, advisor: advisor}
}

func (a *AuditService) Audit(ctx context.Context) (*core.AIAnalysisResponse, error) {
	items := a.store.Items()
	if len(items) == 0 {
		return nil, ErrNoItems
	}
	res := a.advisor.RequestAudit(ctx, items, a.store.Settings().TotalPagu)
	if res == nil {
		return nil, ErrAIUnavailable
	}
	slog.InfoContext(ctx, "Budget audit completed", "items", len(items), "risk", res.RiskAssessment)
	return res, nil
}
