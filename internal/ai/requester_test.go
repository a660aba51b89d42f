package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rkas/internal/core"
)

type fakeGenerator struct {
	reply  string
	err    error
	models []string
	prompt string
	block  bool
}

func (f *fakeGenerator) Generate(ctx context.Context, model, prompt string) (string, error) {
	f.models = append(f.models, model)
	f.prompt = prompt
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.reply, f.err
}

func sampleItem() core.BudgetItem {
	return core.BudgetItem{
		ID:          "item-1",
		Name:        "Pembelian Buku Paket",
		Category:    core.StandarSaranaPrasarana,
		AccountCode: "5.1.02.01.01.0024",
		Quantity:    decimal.NewFromInt(10),
		Unit:        "Buah",
		Price:       decimal.NewFromInt(150000),
		Month:       core.Januari,
	}.WithTotal()
}

func TestRequester_Disabled(t *testing.T) {
	r := NewFromKey("undefined", Config{})
	assert.False(t, NewFromKey("  ", Config{}).Enabled())
	assert.False(t, r.Enabled())
	assert.Nil(t, r.RequestAudit(context.Background(), []core.BudgetItem{sampleItem()}, 1000))
	assert.Nil(t, r.RequestChecklist(context.Background(), sampleItem()))

	assert.True(t, NewFromKey("AIza-key", Config{}).Enabled())
}

func TestRequester_RequestAudit(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		err   error
		want  core.RiskLevel
	}{
		{
			name:  "plain json",
			reply: `{"summary":"Anggaran seimbang","recommendations":["Kurangi ATK"],"riskAssessment":"Low"}`,
			want:  core.RiskLow,
		},
		{
			name:  "fenced json",
			reply: "```json\n{\"summary\":\"Perlu perhatian\",\"recommendations\":[],\"riskAssessment\":\"High\"}\n```",
			want:  core.RiskHigh,
		},
		{
			name:  "prose around json",
			reply: "Berikut hasilnya:\n{\"summary\":\"Cukup\",\"riskAssessment\":\"Medium\"}\nSemoga membantu.",
			want:  core.RiskMedium,
		},
		{name: "transport error", err: errors.New("503 unavailable")},
		{name: "not json", reply: "Maaf, saya tidak bisa membantu."},
		{name: "truncated json", reply: `{"summary":"Anggaran`},
		{name: "unknown risk", reply: `{"summary":"x","recommendations":[],"riskAssessment":"Severe"}`},
		{name: "empty summary", reply: `{"summary":"","recommendations":[],"riskAssessment":"Low"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &fakeGenerator{reply: tt.reply, err: tt.err}
			r := NewRequester(gen, Config{})

			res := r.RequestAudit(context.Background(), []core.BudgetItem{sampleItem()}, 150000000)
			require.Equal(t, []string{DefaultAuditModel}, gen.models)
			assert.Contains(t, gen.prompt, "Rp 150.000.000")
			assert.Contains(t, gen.prompt, "Pembelian Buku Paket")

			if tt.want == "" {
				assert.Nil(t, res)
				return
			}
			require.NotNil(t, res)
			assert.Equal(t, tt.want, res.RiskAssessment)
			assert.NotNil(t, res.Recommendations)
		})
	}
}

func TestRequester_RequestAuditSkipsEmptyItems(t *testing.T) {
	gen := &fakeGenerator{reply: `{"summary":"x","riskAssessment":"Low"}`}
	r := NewRequester(gen, Config{})
	assert.Nil(t, r.RequestAudit(context.Background(), nil, 1000))
	assert.Empty(t, gen.models)
}

func TestRequester_RequestChecklist(t *testing.T) {
	gen := &fakeGenerator{reply: "```json\n" + `{
		"activityId": "something-else",
		"checklist": [
			{"id": "kw", "label": "Kuitansi", "description": "E-Kwitansi ber-QR", "required": true, "type": "receipt", "status": "ready"},
			{"label": "Foto barang", "description": "Dengan geotag", "required": true, "type": "photo"},
			{"id": "kw", "label": "Faktur pajak", "description": "PPN", "required": false, "type": "tax"},
			{"id": "bast", "label": "Berita acara", "description": "BAST", "required": true, "type": "handover"}
		],
		"legalBasis": "Juknis BOSP 2026 Bab IV",
		"tips": "Arsipkan digital."
	}` + "\n```"}
	r := NewRequester(gen, Config{ChecklistModel: "custom-model"})
	item := sampleItem()

	rec := r.RequestChecklist(context.Background(), item)
	require.NotNil(t, rec)
	assert.Equal(t, []string{"custom-model"}, gen.models)
	assert.Contains(t, gen.prompt, "Rp 1.500.000")

	assert.Equal(t, item.ID, rec.ActivityID)
	require.Len(t, rec.Checklist, 4)
	ids := make([]string, 0, len(rec.Checklist))
	for _, ev := range rec.Checklist {
		assert.Equal(t, core.StatusPending, ev.Status)
		ids = append(ids, ev.ID)
	}
	assert.Equal(t, []string{"kw", "ev-2", "ev-3", "bast"}, ids)
	assert.Equal(t, "handover", rec.Checklist[3].Type)
	assert.Equal(t, "Juknis BOSP 2026 Bab IV", rec.LegalBasis)
}

func TestRequester_RequestChecklistRejects(t *testing.T) {
	for name, reply := range map[string]string{
		"empty checklist": `{"checklist": [], "legalBasis": "x", "tips": "y"}`,
		"no checklist":    `{"legalBasis": "x"}`,
		"garbage":         `checklist: kuitansi, foto`,
	} {
		t.Run(name, func(t *testing.T) {
			r := NewRequester(&fakeGenerator{reply: reply}, Config{})
			assert.Nil(t, r.RequestChecklist(context.Background(), sampleItem()))
		})
	}
}

func TestRequester_Timeout(t *testing.T) {
	r := NewRequester(&fakeGenerator{block: true}, Config{Timeout: 10 * time.Millisecond})
	assert.Nil(t, r.RequestChecklist(context.Background(), sampleItem()))
}
