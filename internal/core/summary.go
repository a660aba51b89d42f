package core

import "github.com/shopspring/decimal"

// MonthTotal is the planned total for one calendar month.
type MonthTotal struct {
	Month Month           `json:"month"`
	Total decimal.Decimal `json:"total"`
}

// CategoryTotal is the planned total for one SNP category.
type CategoryTotal struct {
	Category Category        `json:"category"`
	Total    decimal.Decimal `json:"total"`
}

// Summary is the dashboard view over a budget.
type Summary struct {
	TotalPagu             int64           `json:"totalPagu"`
	StudentCount          int             `json:"studentCount"`
	ItemCount             int             `json:"itemCount"`
	TotalSpent            decimal.Decimal `json:"totalSpent"`
	TotalRealized         decimal.Decimal `json:"totalRealized"`
	TotalSiLPA            decimal.Decimal `json:"totalSilpa"`
	RemainingPagu         decimal.Decimal `json:"remainingPagu"`
	UsagePercentage       int64           `json:"usagePercentage"`
	RealizationPercentage int64           `json:"realizationPercentage"`
	PerMonth              []MonthTotal    `json:"perMonth"`
	PerCategory           []CategoryTotal `json:"perCategory"`
}
