package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"rkas/internal/core"
)

func auditPrompt(items []core.BudgetItem, totalPagu int64) (string, error) {
	data, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("encode items: %w", err)
	}

	var b strings.Builder
	b.WriteString("Bertindaklah sebagai Konsultan Keuangan Pendidikan Senior di Indonesia.\n")
	b.WriteString("Analisis data anggaran RKAS (Rencana Kegiatan dan Anggaran Sekolah) berikut:\n")
	fmt.Fprintf(&b, "Total Pagu: %s\n", core.FormatRupiah(decimal.NewFromInt(totalPagu)))
	fmt.Fprintf(&b, "Daftar Item: %s\n\n", data)
	b.WriteString("Berikan analisis mendalam mengenai:\n")
	b.WriteString("1. Kesesuaian dengan 8 Standar Nasional Pendidikan (SNP).\n")
	b.WriteString("2. Identifikasi pemborosan atau efisiensi yang mungkin dilakukan.\n")
	b.WriteString("3. Rekomendasi prioritas pengeluaran untuk meningkatkan mutu pendidikan.\n")
	b.WriteString("4. Penilaian risiko kepatuhan anggaran.\n\n")
	b.WriteString("Jawab HANYA dengan satu objek JSON valid tanpa teks lain, dengan bentuk:\n")
	b.WriteString(`{"summary": "string", "recommendations": ["string"], "riskAssessment": "Low" | "Medium" | "High"}`)
	b.WriteString("\n")
	return b.String(), nil
}

func checklistPrompt(item core.BudgetItem) string {
	var b strings.Builder
	b.WriteString("Bertindaklah sebagai Ahli Audit Internal Kemendikbudristek RI.\n")
	b.WriteString("Berikan rekomendasi daftar bukti (evidence) SPJ untuk kegiatan berikut berdasarkan JUKNIS BOSP TAHUN 2026:\n")
	fmt.Fprintf(&b, "Nama Kegiatan: %s\n", item.Name)
	fmt.Fprintf(&b, "Kategori SNP: %s\n", item.Category)
	fmt.Fprintf(&b, "Kode Rekening: %s\n", item.AccountCode)
	fmt.Fprintf(&b, "Total Nilai: %s\n\n", core.FormatRupiah(item.Total))
	b.WriteString("Aturan Juknis 2026 menekankan pada:\n")
	b.WriteString("- Digitalisasi penuh (E-Kwitansi, QR Code).\n")
	b.WriteString("- Bukti foto dengan Metadata/Geotagging.\n")
	b.WriteString("- Dokumentasi absensi digital untuk honor/pelatihan.\n")
	b.WriteString("- Kelengkapan pajak (PPN/PPh) sesuai tarif terbaru 2026.\n\n")
	b.WriteString("Berikan 5 sampai 8 dokumen yang HARUS ada agar lolos audit BOS.\n")
	b.WriteString("Tentukan 'type' untuk setiap item: 'receipt', 'photo', 'signature', 'tax', atau 'doc'.\n")
	b.WriteString("Jawab HANYA dengan satu objek JSON valid tanpa teks lain, dengan bentuk:\n")
	b.WriteString(`{"checklist": [{"id": "string", "label": "string", "description": "string", "required": true, "type": "string"}], "legalBasis": "pasal atau dasar hukum Juknis BOSP 2026", "tips": "tips agar tidak jadi temuan BPK"}`)
	b.WriteString("\n")
	return b.String()
}
