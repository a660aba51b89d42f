package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	"rkas/internal/budget"
	"rkas/internal/core"
)

// DraftPrefix starts the name of every reallocation draft.
const DraftPrefix = "Re-alokasi SiLPA: "

// ReallocationState is where the workflow currently is.
type ReallocationState string

const (
	ReallocationIdle      ReallocationState = "idle"
	ReallocationProposed  ReallocationState = "proposed"
	ReallocationSubmitted ReallocationState = "submitted"
	ReallocationAbandoned ReallocationState = "abandoned"
)

// Draft prefills the planner form with an item's unspent surplus. It has
// no identity; month, category and account code are left for the user.
type Draft struct {
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
	SourceID string          `json:"sourceId"`
}

// NewDraft builds the draft for item, or ErrNoSurplus when nothing is left
// to reallocate.
func NewDraft(item core.BudgetItem) (Draft, error) {
	if !item.IsRealized() {
		return Draft{}, fmt.Errorf("propose reallocation %s: %w", item.ID, ErrNoSurplus)
	}
	surplus := budget.ItemSiLPA(item)
	if !surplus.IsPositive() {
		return Draft{}, fmt.Errorf("propose reallocation %s: %w", item.ID, ErrNoSurplus)
	}
	return Draft{
		Name:     DraftPrefix + item.Name,
		Price:    surplus,
		Quantity: decimal.NewFromInt(1),
		SourceID: item.ID,
	}, nil
}

// Form converts the draft into a planner form the user completes.
func (d Draft) Form() PlanForm {
	return PlanForm{
		Name:     d.Name,
		Quantity: FormValue(d.Quantity.String()),
		Price:    FormValue(d.Price.String()),
	}
}

// ReallocationView is the observable workflow state.
type ReallocationView struct {
	State ReallocationState `json:"state"`
	Draft *Draft            `json:"draft,omitempty"`
}

// Reallocation owns the single SiLPA draft in progress.
type Reallocation struct {
	store   *BudgetStore
	planner *Planner

	mu    sync.Mutex
	state ReallocationState
	draft *Draft
}

func NewReallocation(store *BudgetStore, planner *Planner) *Reallocation {
	return &Reallocation{store: store, planner: planner, state: ReallocationIdle}
}

// Propose replaces any current draft with one built from itemID.
func (r *Reallocation) Propose(ctx context.Context, itemID string) (Draft, error) {
	item, ok := r.store.Item(itemID)
	if !ok {
		return Draft{}, fmt.Errorf("propose reallocation %s: %w", itemID, ErrItemNotFound)
	}
	d, err := NewDraft(item)
	if err != nil {
		return Draft{}, err
	}

	r.mu.Lock()
	r.state = ReallocationProposed
	r.draft = &d
	r.mu.Unlock()

	slog.InfoContext(ctx, "Reallocation proposed", "id", itemID, "surplus", d.Price.String())
	return d, nil
}

func (r *Reallocation) Current() ReallocationView {
	r.mu.Lock()
	defer r.mu.Unlock()
	v := ReallocationView{State: r.state}
	if r.draft != nil {
		d := *r.draft
		v.Draft = &d
	}
	return v
}

// Abandon drops the draft without creating anything.
func (r *Reallocation) Abandon(ctx context.Context) {
	r.mu.Lock()
	had := r.draft != nil
	r.draft = nil
	r.state = ReallocationAbandoned
	r.mu.Unlock()

	if had {
		slog.InfoContext(ctx, "Reallocation abandoned")
	}
}

// Submit creates the items described by the completed form. A rejected form
// leaves the draft in place for correction.
func (r *Reallocation) Submit(ctx context.Context, form PlanForm) ([]core.BudgetItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != ReallocationProposed || r.draft == nil {
		return nil, ErrNoDraft
	}
	items, err := r.planner.Plan(ctx, form)
	if err != nil {
		return nil, err
	}
	r.state = ReallocationSubmitted
	r.draft = nil

	slog.InfoContext(ctx, "Reallocation submitted", "items", len(items))
	return items, nil
}
