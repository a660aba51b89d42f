// Package budget computes derived views over a collection of budget items.
//
// Every function is pure and recomputes from the items it is given; nothing
// is cached between calls.
package budget

import (
	"github.com/shopspring/decimal"

	"rkas/internal/core"
)

var hundred = decimal.NewFromInt(100)

// TotalSpent sums the planned totals.
func TotalSpent(items []core.BudgetItem) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.Total)
	}
	return sum
}

// TotalRealized sums realizations, treating absent ones as zero.
func TotalRealized(items []core.BudgetItem) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.RealizationValue())
	}
	return sum
}

// Percentage returns round(part / whole * 100), or 0 when whole is not positive.
func Percentage(part, whole decimal.Decimal) int64 {
	if !whole.IsPositive() {
		return 0
	}
	return part.Div(whole).Mul(hundred).Round(0).IntPart()
}

// UsagePercentage is the share of the pagu ceiling already planned.
func UsagePercentage(totalSpent decimal.Decimal, totalPagu int64) int64 {
	return Percentage(totalSpent, decimal.NewFromInt(totalPagu))
}

// PerMonthTotals returns one entry per month in calendar order.
func PerMonthTotals(items []core.BudgetItem) []core.MonthTotal {
	out := make([]core.MonthTotal, len(core.Months))
	for i, m := range core.Months {
		out[i] = core.MonthTotal{Month: m, Total: decimal.Zero}
	}
	for _, it := range items {
		if i := it.Month.Index(); i >= 0 {
			out[i].Total = out[i].Total.Add(it.Total)
		}
	}
	return out
}

// PerCategoryTotals returns one entry per SNP category in canonical order,
// zero sums included.
func PerCategoryTotals(items []core.BudgetItem) []core.CategoryTotal {
	out := make([]core.CategoryTotal, len(core.Categories))
	idx := make(map[core.Category]int, len(core.Categories))
	for i, c := range core.Categories {
		out[i] = core.CategoryTotal{Category: c, Total: decimal.Zero}
		idx[c] = i
	}
	for _, it := range items {
		if i, ok := idx[it.Category]; ok {
			out[i].Total = out[i].Total.Add(it.Total)
		}
	}
	return out
}

// NonZero drops categories without any planned spending, for chart views.
func NonZero(totals []core.CategoryTotal) []core.CategoryTotal {
	var out []core.CategoryTotal
	for _, t := range totals {
		if !t.Total.IsZero() {
			out = append(out, t)
		}
	}
	return out
}

// ItemSiLPA is the unspent remainder of a realized item, never negative.
// Items without a positive realization contribute nothing.
func ItemSiLPA(item core.BudgetItem) decimal.Decimal {
	if !item.IsRealized() {
		return decimal.Zero
	}
	rest := item.Total.Sub(item.RealizationValue())
	if rest.IsNegative() {
		return decimal.Zero
	}
	return rest
}

// TotalSiLPA sums ItemSiLPA over all items.
func TotalSiLPA(items []core.BudgetItem) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(ItemSiLPA(it))
	}
	return sum
}

// Summarize builds the dashboard summary.
func Summarize(items []core.BudgetItem, settings core.SchoolSettings) core.Summary {
	spent := TotalSpent(items)
	realized := TotalRealized(items)
	return core.Summary{
		TotalPagu:             settings.TotalPagu,
		StudentCount:          settings.StudentCount,
		ItemCount:             len(items),
		TotalSpent:            spent,
		TotalRealized:         realized,
		TotalSiLPA:            TotalSiLPA(items),
		RemainingPagu:         decimal.NewFromInt(settings.TotalPagu).Sub(spent),
		UsagePercentage:       UsagePercentage(spent, settings.TotalPagu),
		RealizationPercentage: Percentage(realized, spent),
		PerMonth:              PerMonthTotals(items),
		PerCategory:           PerCategoryTotals(items),
	}
}

// Filter returns the items matching the optional month and category.
// Empty values match everything.
func Filter(items []core.BudgetItem, month core.Month, category core.Category) []core.BudgetItem {
	out := make([]core.BudgetItem, 0, len(items))
	for _, it := range items {
		if month != "" && it.Month != month {
			continue
		}
		if category != "" && it.Category != category {
			continue
		}
		out = append(out, it)
	}
	return out
}
