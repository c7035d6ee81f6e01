// Package report accumulates per-document results across a run and turns
// them into processing/financial summaries and output artifacts.
package report

import (
	"path/filepath"
	"sync"

	"invoice-pipeline/internal/invoice"
)

// SummaryRow is the invoice-level view: one row per processed document,
// independent of line-item flattening.
type SummaryRow struct {
	File          string // relative to the input root when possible
	InvoiceNumber string
	InvoiceDate   *string
	Vendor        *string
	Customer      *string
	TotalAmount   *float64
	Currency      *string
	LineItems     int
	Outcome       invoice.Outcome
	Status        string // AI Extracted | OCR Only | Failed
	Quality       string // Good | Poor | None
	FailureReason string
}

type currencyStats struct {
	Sum   float64
	Count int
	Min   float64
	Max   float64
}

// Accumulator collects results as documents complete. All methods are safe
// for concurrent use; a bounded worker pool can share one instance.
type Accumulator struct {
	mu sync.Mutex

	inputRoot  string
	totalFiles int
	outcomes   map[invoice.Outcome]int
	lineItems  int
	records    []invoice.FlatRecord
	rows       []SummaryRow
	currencies map[string]*currencyStats
	excluded   int // invoices without a usable total amount
}

func NewAccumulator(inputRoot string) *Accumulator {
	return &Accumulator{
		inputRoot:  inputRoot,
		outcomes:   make(map[invoice.Outcome]int),
		currencies: make(map[string]*currencyStats),
	}
}

// AddInvoice records one completed invoice with its flat records.
func (a *Accumulator) AddInvoice(inv invoice.Invoice, outcome invoice.Outcome, records []invoice.FlatRecord) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.totalFiles++
	a.outcomes[outcome]++
	a.lineItems += len(records)
	a.records = append(a.records, records...)

	row := SummaryRow{
		File:          a.relPath(inv.FilePath),
		InvoiceNumber: inv.Header.InvoiceNumber,
		InvoiceDate:   inv.Header.InvoiceDate,
		Vendor:        inv.Header.VendorName,
		Customer:      inv.Header.CustomerName,
		TotalAmount:   inv.Header.TotalAmount,
		Currency:      inv.Header.Currency,
		LineItems:     len(records),
		Outcome:       outcome,
	}
	row.Status, row.Quality = classify(outcome)
	a.rows = append(a.rows, row)

	if inv.Header.TotalAmount == nil {
		a.excluded++
		return
	}
	code := "unknown"
	if inv.Header.Currency != nil && *inv.Header.Currency != "" {
		code = *inv.Header.Currency
	}
	stats, ok := a.currencies[code]
	if !ok {
		stats = &currencyStats{Min: *inv.Header.TotalAmount, Max: *inv.Header.TotalAmount}
		a.currencies[code] = stats
	}
	amount := *inv.Header.TotalAmount
	stats.Sum += amount
	stats.Count++
	if amount < stats.Min {
		stats.Min = amount
	}
	if amount > stats.Max {
		stats.Max = amount
	}
}

// AddFailure records a document that never produced an invoice (unreadable
// file, insufficient text). Failed files are not counted as excluded from
// the financial summary: that count covers only real invoices lacking a
// total.
func (a *Accumulator) AddFailure(path, reason string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.totalFiles++
	a.outcomes[invoice.OutcomeFailed]++

	row := SummaryRow{
		File:          a.relPath(path),
		Outcome:       invoice.OutcomeFailed,
		FailureReason: reason,
	}
	row.Status, row.Quality = classify(invoice.OutcomeFailed)
	a.rows = append(a.rows, row)
}

// Merge folds another accumulator into this one. Lets a parallel
// implementation accumulate per-worker and combine in a single-writer
// step.
func (a *Accumulator) Merge(other *Accumulator) {
	other.mu.Lock()
	defer other.mu.Unlock()
	a.mu.Lock()
	defer a.mu.Unlock()

	a.totalFiles += other.totalFiles
	a.lineItems += other.lineItems
	a.excluded += other.excluded
	a.records = append(a.records, other.records...)
	a.rows = append(a.rows, other.rows...)
	for outcome, n := range other.outcomes {
		a.outcomes[outcome] += n
	}
	for code, s := range other.currencies {
		dst, ok := a.currencies[code]
		if !ok {
			cp := *s
			a.currencies[code] = &cp
			continue
		}
		dst.Sum += s.Sum
		dst.Count += s.Count
		if s.Min < dst.Min {
			dst.Min = s.Min
		}
		if s.Max > dst.Max {
			dst.Max = s.Max
		}
	}
}

// Records returns the flat records accumulated so far, in completion
// order.
func (a *Accumulator) Records() []invoice.FlatRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]invoice.FlatRecord, len(a.records))
	copy(out, a.records)
	return out
}

func (a *Accumulator) relPath(path string) string {
	if a.inputRoot == "" {
		return path
	}
	if rel, err := filepath.Rel(a.inputRoot, path); err == nil && filepath.IsLocal(rel) {
		return rel
	}
	return path
}

func classify(outcome invoice.Outcome) (status, quality string) {
	switch outcome {
	case invoice.OutcomeSucceededAI:
		return "AI Extracted", "Good"
	case invoice.OutcomeSucceededOCROnly:
		return "OCR Only", "Poor"
	default:
		return "Failed", "None"
	}
}
