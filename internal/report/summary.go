package report

import (
	"sort"

	"invoice-pipeline/internal/invoice"
)

// ProcessingSummary describes how the run went file by file.
type ProcessingSummary struct {
	TotalFiles     int
	SucceededAI    int
	SucceededOCR   int
	Failed         int
	SuccessRate    float64 // percentage of files fully AI-extracted
	TotalLineItems int
}

// CurrencyStats are the aggregates for one currency code.
type CurrencyStats struct {
	Code    string
	Count   int
	Total   float64
	Average float64
	Min     float64
	Max     float64
}

// FinancialSummary aggregates invoice totals. Only invoices carrying a
// total amount contribute; the rest are counted as excluded.
type FinancialSummary struct {
	InvoiceCount int
	Total        float64
	Average      float64
	Min          float64
	Max          float64
	Currencies   []CurrencyStats // sorted by code
	Excluded     int
}

// Summarize computes both summaries and returns the per-invoice rows in
// completion order.
func (a *Accumulator) Summarize() (ProcessingSummary, FinancialSummary, []SummaryRow) {
	a.mu.Lock()
	defer a.mu.Unlock()

	proc := ProcessingSummary{
		TotalFiles:     a.totalFiles,
		SucceededAI:    a.outcomes[invoice.OutcomeSucceededAI],
		SucceededOCR:   a.outcomes[invoice.OutcomeSucceededOCROnly],
		Failed:         a.outcomes[invoice.OutcomeFailed],
		TotalLineItems: a.lineItems,
	}
	if proc.TotalFiles > 0 {
		proc.SuccessRate = float64(proc.SucceededAI) / float64(proc.TotalFiles) * 100
	}

	fin := FinancialSummary{Excluded: a.excluded}
	codes := make([]string, 0, len(a.currencies))
	for code := range a.currencies {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		s := a.currencies[code]
		cs := CurrencyStats{
			Code:    code,
			Count:   s.Count,
			Total:   s.Sum,
			Average: s.Sum / float64(s.Count),
			Min:     s.Min,
			Max:     s.Max,
		}
		fin.Currencies = append(fin.Currencies, cs)

		if fin.InvoiceCount == 0 {
			fin.Min = s.Min
			fin.Max = s.Max
		} else {
			if s.Min < fin.Min {
				fin.Min = s.Min
			}
			if s.Max > fin.Max {
				fin.Max = s.Max
			}
		}
		fin.InvoiceCount += s.Count
		fin.Total += s.Sum
	}
	if fin.InvoiceCount > 0 {
		fin.Average = fin.Total / float64(fin.InvoiceCount)
	}

	rows := make([]SummaryRow, len(a.rows))
	copy(rows, a.rows)
	return proc, fin, rows
}
