package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"rkas/internal/core"
)

// FormValue is a numeric form field kept as typed. It decodes from either a
// JSON string ("1.500.000") or a JSON number (1500000).
type FormValue string

func (v *FormValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*v = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = FormValue(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("form value must be a string or number: %w", err)
	}
	*v = FormValue(n.String())
	return nil
}

// PlanForm is the planner input. One item is created per selected month.
type PlanForm struct {
	Name        string        `json:"name"`
	Category    core.Category `json:"category"`
	AccountCode string        `json:"accountCode"`
	Quantity    FormValue     `json:"quantity"`
	Unit        string        `json:"unit"`
	Price       FormValue     `json:"price"`
	Months      []core.Month  `json:"months"`
	Source      string        `json:"source"`
}

// Build validates the form and expands it into items, one per distinct
// month in calendar order. newID supplies a fresh id for each item.
func (f PlanForm) Build(newID func() string) ([]core.BudgetItem, error) {
	name := strings.TrimSpace(f.Name)
	if name == "" {
		return nil, fmt.Errorf("validate plan: %w", core.ErrEmptyName)
	}
	if !f.Category.Valid() {
		return nil, fmt.Errorf("validate plan: %w: %q", core.ErrInvalidCategory, f.Category)
	}
	code := strings.TrimSpace(f.AccountCode)
	if code == "" {
		return nil, fmt.Errorf("validate plan: %w", core.ErrEmptyAccountCode)
	}

	qty, err := core.ParseAmount(string(f.Quantity))
	if err != nil || !qty.IsPositive() {
		return nil, fmt.Errorf("validate plan: %w: %q", core.ErrInvalidQuantity, f.Quantity)
	}
	price, err := core.ParseAmount(string(f.Price))
	if err != nil || !price.IsPositive() {
		return nil, fmt.Errorf("validate plan: %w: %q", core.ErrInvalidPrice, f.Price)
	}

	if len(f.Months) == 0 {
		return nil, fmt.Errorf("validate plan: %w", core.ErrNoMonths)
	}
	selected := make(map[core.Month]bool, len(f.Months))
	for _, m := range f.Months {
		if !m.Valid() {
			return nil, fmt.Errorf("validate plan: %w: %q", core.ErrInvalidMonth, m)
		}
		selected[m] = true
	}

	items := make([]core.BudgetItem, 0, len(selected))
	for _, m := range core.Months {
		if !selected[m] {
			continue
		}
		item := core.BudgetItem{
			ID:          newID(),
			Name:        name,
			Category:    f.Category,
			AccountCode: code,
			Quantity:    qty,
			Unit:        strings.TrimSpace(f.Unit),
			Price:       price,
			Month:       m,
			Source:      strings.TrimSpace(f.Source),
		}
		items = append(items, item.WithTotal())
	}
	return items, nil
}

// Planner turns planner forms into stored items.
type Planner struct {
	store *BudgetStore
	newID func() string
}

func NewPlanner(store *BudgetStore) *Planner {
	return &Planner{store: store, newID: uuid.NewString}
}

// Plan validates the form and adds one item per selected month.
func (p *Planner) Plan(ctx context.Context, form PlanForm) ([]core.BudgetItem, error) {
	items, err := form.Build(p.newID)
	if err != nil {
		return nil, err
	}
	return p.store.AddItems(ctx, items)
}

// ItemForm is the edit input for a single existing item. An empty
// Realization clears it.
type ItemForm struct {
	Name        string        `json:"name"`
	Category    core.Category `json:"category"`
	AccountCode string        `json:"accountCode"`
	Quantity    FormValue     `json:"quantity"`
	Unit        string        `json:"unit"`
	Price       FormValue     `json:"price"`
	Realization FormValue     `json:"realization"`
	Month       core.Month    `json:"month"`
	Source      string        `json:"source"`
}

// Item converts the form into the replacement for item id. Field validation
// is left to the store.
func (f ItemForm) Item(id string) (core.BudgetItem, error) {
	qty, err := core.ParseAmount(string(f.Quantity))
	if err != nil {
		return core.BudgetItem{}, fmt.Errorf("validate item: %w: %q", core.ErrInvalidQuantity, f.Quantity)
	}
	price, err := core.ParseAmount(string(f.Price))
	if err != nil {
		return core.BudgetItem{}, fmt.Errorf("validate item: %w: %q", core.ErrInvalidPrice, f.Price)
	}
	item := core.BudgetItem{
		ID:          id,
		Name:        strings.TrimSpace(f.Name),
		Category:    f.Category,
		AccountCode: strings.TrimSpace(f.AccountCode),
		Quantity:    qty,
		Unit:        strings.TrimSpace(f.Unit),
		Price:       price,
		Month:       f.Month,
		Source:      strings.TrimSpace(f.Source),
	}
	if strings.TrimSpace(string(f.Realization)) != "" {
		r, err := core.ParseAmount(string(f.Realization))
		if err != nil {
			return core.BudgetItem{}, fmt.Errorf("validate item: %w: %q", core.ErrInvalidRealization, f.Realization)
		}
		item.Realization = &r
	}
	return item, nil
}

// Edit replaces an existing item from an edit form.
func (p *Planner) Edit(ctx context.Context, id string, form ItemForm) (core.BudgetItem, error) {
	item, err := form.Item(id)
	if err != nil {
		return core.BudgetItem{}, err
	}
	return p.store.UpdateItem(ctx, item)
}
