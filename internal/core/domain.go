package core

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// SettingsID is the primary key of the one and only school settings row.
const SettingsID = 1

// DefaultSource is the funding source assigned when none is given.
const DefaultSource = "BOS Reguler"

type (
	// Category is one of the eight national education standards (SNP).
	Category string

	// Month is an Indonesian calendar month name.
	Month string

	// EvidenceStatus tracks whether a piece of SPJ evidence has been collected.
	EvidenceStatus string

	// RiskLevel is the overall risk reported by an audit.
	RiskLevel string

	// BudgetItem is one planned or realized expenditure line.
	BudgetItem struct {
		ID          string           `json:"id"`
		Name        string           `json:"name"`
		Category    Category         `json:"category"`
		AccountCode string           `json:"accountCode"`
		Quantity    decimal.Decimal  `json:"quantity"`
		Unit        string           `json:"unit"`
		Price       decimal.Decimal  `json:"price"`
		Total       decimal.Decimal  `json:"total"`
		Realization *decimal.Decimal `json:"realization,omitempty"`
		Month       Month            `json:"month"`
		Source      string           `json:"source"`
	}

	// SchoolSettings is the singleton school profile keyed by SettingsID.
	SchoolSettings struct {
		Name         string `json:"name"`
		NPSN         string `json:"npsn"`
		Address      string `json:"address"`
		TotalPagu    int64  `json:"totalPagu"`
		StudentCount int    `json:"studentCount"`
	}

	EvidenceItem struct {
		ID          string         `json:"id"`
		Label       string         `json:"label"`
		Description string         `json:"description"`
		Required    bool           `json:"required"`
		Type        string         `json:"type"` // open tag: receipt, photo, signature, tax, doc, ...
		Status      EvidenceStatus `json:"status"`
	}

	// SPJRecommendation is the documentation checklist generated for one item.
	SPJRecommendation struct {
		ActivityID string         `json:"activityId"`
		Checklist  []EvidenceItem `json:"checklist"`
		LegalBasis string         `json:"legalBasis"`
		Tips       string         `json:"tips"`
	}

	// AIAnalysisResponse is the transient result of a budget audit.
	AIAnalysisResponse struct {
		Summary         string    `json:"summary"`
		Recommendations []string  `json:"recommendations"`
		RiskAssessment  RiskLevel `json:"riskAssessment"`
	}
)

const (
	StandarKompetensiLulusan Category = "Standar Kompetensi Lulusan"
	StandarIsi               Category = "Standar Isi"
	StandarProses            Category = "Standar Proses"
	StandarPenilaian         Category = "Standar Penilaian"
	StandarPendidikTendik    Category = "Standar Pendidik & Tendik"
	StandarSaranaPrasarana   Category = "Standar Sarana & Prasarana"
	StandarPengelolaan       Category = "Standar Pengelolaan"
	StandarPembiayaan        Category = "Standar Pembiayaan"
)

const (
	Januari   Month = "Januari"
	Februari  Month = "Februari"
	Maret     Month = "Maret"
	April     Month = "April"
	Mei       Month = "Mei"
	Juni      Month = "Juni"
	Juli      Month = "Juli"
	Agustus   Month = "Agustus"
	September Month = "September"
	Oktober   Month = "Oktober"
	November  Month = "November"
	Desember  Month = "Desember"
)

const (
	StatusPending EvidenceStatus = "pending"
	StatusReady   EvidenceStatus = "ready"
)

const (
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
	RiskHigh   RiskLevel = "High"
)

// Categories lists the SNP standards in canonical order.
var Categories = []Category{
	StandarKompetensiLulusan,
	StandarIsi,
	StandarProses,
	StandarPenilaian,
	StandarPendidikTendik,
	StandarSaranaPrasarana,
	StandarPengelolaan,
	StandarPembiayaan,
}

// Months lists the months in calendar order.
var Months = []Month{
	Januari, Februari, Maret, April, Mei, Juni,
	Juli, Agustus, September, Oktober, November, Desember,
}

var (
	ErrEmptyName          = errors.New("empty name")
	ErrNameTooLong        = errors.New("name too long (max 500 characters)")
	ErrInvalidCategory    = errors.New("invalid category")
	ErrInvalidMonth       = errors.New("invalid month")
	ErrInvalidQuantity    = errors.New("invalid quantity")
	ErrInvalidPrice       = errors.New("invalid price")
	ErrInvalidRealization = errors.New("invalid realization")
	ErrEmptyAccountCode   = errors.New("empty account code")
	ErrNoMonths           = errors.New("no month selected")
	ErrEmptyID            = errors.New("empty id")
	ErrInvalidPagu        = errors.New("invalid total pagu")
	ErrInvalidStudents    = errors.New("invalid student count")
)

func (c Category) Valid() bool {
	for _, k := range Categories {
		if c == k {
			return true
		}
	}
	return false
}

func (m Month) Valid() bool {
	return m.Index() >= 0
}

// Index returns the zero-based calendar position of the month, or -1.
func (m Month) Index() int {
	for i, k := range Months {
		if m == k {
			return i
		}
	}
	return -1
}

func (r RiskLevel) Valid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh:
		return true
	}
	return false
}

// DefaultSettings returns the settings used when no store has any.
func DefaultSettings() SchoolSettings {
	return SchoolSettings{
		Name:         "SD Negeri Pintar Jaya",
		NPSN:         "10203040",
		Address:      "Jl. Pendidikan No. 123, Kecamatan Cerdas, Kota Pintar",
		TotalPagu:    150000000,
		StudentCount: 450,
	}
}

func (s SchoolSettings) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return ErrEmptyName
	}
	if s.TotalPagu < 0 {
		return ErrInvalidPagu
	}
	if s.StudentCount < 0 {
		return ErrInvalidStudents
	}
	return nil
}

// RealizationValue returns the realized amount, zero when absent.
func (b BudgetItem) RealizationValue() decimal.Decimal {
	if b.Realization == nil {
		return decimal.Zero
	}
	return *b.Realization
}

// IsRealized reports whether a positive realization has been recorded.
func (b BudgetItem) IsRealized() bool {
	return b.RealizationValue().IsPositive()
}

// WithTotal returns a copy of the item with Total recomputed from
// Quantity and Price.
func (b BudgetItem) WithTotal() BudgetItem {
	b.Total = b.Quantity.Mul(b.Price)
	if strings.TrimSpace(b.Source) == "" {
		b.Source = DefaultSource
	}
	return b
}

func (b BudgetItem) Validate() error {
	if strings.TrimSpace(b.Name) == "" {
		return ErrEmptyName
	}
	if len(b.Name) > 500 {
		return ErrNameTooLong
	}
	if !b.Category.Valid() {
		return ErrInvalidCategory
	}
	if strings.TrimSpace(b.AccountCode) == "" {
		return ErrEmptyAccountCode
	}
	if !b.Quantity.IsPositive() {
		return ErrInvalidQuantity
	}
	if !b.Price.IsPositive() {
		return ErrInvalidPrice
	}
	if b.Realization != nil && b.Realization.IsNegative() {
		return ErrInvalidRealization
	}
	if !b.Month.Valid() {
		return ErrInvalidMonth
	}
	return nil
}

// Clone returns a deep copy of the recommendation so callers can mutate the
// checklist without touching shared state.
func (r SPJRecommendation) Clone() SPJRecommendation {
	r.Checklist = append([]EvidenceItem(nil), r.Checklist...)
	return r
}

// Toggle flips the evidence status between pending and ready.
func (e *EvidenceItem) Toggle() {
	if e.Status == StatusReady {
		e.Status = StatusPending
		return
	}
	e.Status = StatusReady
}
