package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/xuri/excelize/v2"

	"invoice-pipeline/internal/invoice"
)

// Filenames holds the output paths for a single run. All files share the
// same timestamp so a directory of reports groups naturally.
type Filenames struct {
	Records      string
	SummaryTable string
	Narrative    string
	Workbook     string
}

// OutputFilenames derives the run's output paths under dir.
func OutputFilenames(dir string, at time.Time) Filenames {
	ts := at.Format("20060102_150405")
	return Filenames{
		Records:      filepath.Join(dir, fmt.Sprintf("processed_invoices_%s.csv", ts)),
		SummaryTable: filepath.Join(dir, fmt.Sprintf("invoice_summary_table_%s.csv", ts)),
		Narrative:    filepath.Join(dir, fmt.Sprintf("invoice_processing_summary_%s.txt", ts)),
		Workbook:     filepath.Join(dir, fmt.Sprintf("invoice_report_%s.xlsx", ts)),
	}
}

// recordColumns is the fixed CSV column order. The first twelve columns
// are the stable contract; supplemental fields follow.
var recordColumns = []string{
	"invoice_number",
	"invoice_date",
	"due_date",
	"vendor_name",
	"vendor_address",
	"total_amount",
	"item_description",
	"quantity",
	"unit_price",
	"line_total",
	"file_path",
	"processing_timestamp",
	"vendor_tax_id",
	"customer_name",
	"customer_address",
	"tax_amount",
	"subtotal",
	"currency",
	"item_code",
}

func recordValues(r invoice.FlatRecord) []string {
	return []string{
		r.InvoiceNumber,
		strVal(r.InvoiceDate),
		strVal(r.DueDate),
		strVal(r.VendorName),
		strVal(r.VendorAddress),
		numVal(r.TotalAmount),
		r.ItemDescription,
		numVal(r.Quantity),
		numVal(r.UnitPrice),
		numVal(r.LineTotal),
		r.FilePath,
		r.ProcessingTimestamp,
		strVal(r.VendorTaxID),
		strVal(r.CustomerName),
		strVal(r.CustomerAddress),
		numVal(r.TaxAmount),
		numVal(r.Subtotal),
		strVal(r.Currency),
		strVal(r.ItemCode),
	}
}

// WriteRecordsCSV writes one row per flat record. Nil optional fields
// become empty cells.
func WriteRecordsCSV(path string, records []invoice.FlatRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create records csv: %w", err)
	}
	defer func() { _ = f.Close() }()

	w := csv.NewWriter(f)
	if err := w.Write(recordColumns); err != nil {
		return fmt.Errorf("write records header: %w", err)
	}
	for _, r := range records {
		if err := w.Write(recordValues(r)); err != nil {
			return fmt.Errorf("write record row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush records csv: %w", err)
	}
	return f.Close()
}

var summaryColumns = []string{
	"file",
	"invoice_number",
	"invoice_date",
	"vendor",
	"customer",
	"total_amount",
	"currency",
	"line_items",
	"status",
	"quality",
}

// WriteSummaryTableCSV writes the invoice-level summary table, one row
// per processed document.
func WriteSummaryTableCSV(path string, rows []SummaryRow) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create summary csv: %w", err)
	}
	defer func() { _ = f.Close() }()

	w := csv.NewWriter(f)
	if err := w.Write(summaryColumns); err != nil {
		return fmt.Errorf("write summary header: %w", err)
	}
	for _, row := range rows {
		rec := []string{
			row.File,
			row.InvoiceNumber,
			strVal(row.InvoiceDate),
			strVal(row.Vendor),
			strVal(row.Customer),
			numVal(row.TotalAmount),
			strVal(row.Currency),
			strconv.Itoa(row.LineItems),
			row.Status,
			row.Quality,
		}
		if err := w.Write(rec); err != nil {
			return fmt.Errorf("write summary row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush summary csv: %w", err)
	}
	return f.Close()
}

// WriteNarrative writes the human-readable run report.
func WriteNarrative(path string, proc ProcessingSummary, fin FinancialSummary, rows []SummaryRow) error {
	var b strings.Builder
	banner := strings.Repeat("=", 80)

	b.WriteString(banner + "\n")
	b.WriteString("INVOICE PROCESSING SUMMARY REPORT\n")
	b.WriteString(fmt.Sprintf("Generated: %s\n", time.Now().Format("2006-01-02 15:04:05")))
	b.WriteString(banner + "\n\n")

	b.WriteString("PROCESSING OVERVIEW\n")
	b.WriteString(strings.Repeat("-", 40) + "\n")
	b.WriteString(fmt.Sprintf("Total files processed:      %d\n", proc.TotalFiles))
	b.WriteString(fmt.Sprintf("Successful AI extractions:  %d\n", proc.SucceededAI))
	b.WriteString(fmt.Sprintf("OCR-only fallbacks:         %d\n", proc.SucceededOCR))
	b.WriteString(fmt.Sprintf("Failed:                     %d\n", proc.Failed))
	b.WriteString(fmt.Sprintf("Success rate:               %.1f%%\n", proc.SuccessRate))
	b.WriteString(fmt.Sprintf("Total line items extracted: %d\n", proc.TotalLineItems))
	b.WriteString("\n")

	b.WriteString("FINANCIAL SUMMARY\n")
	b.WriteString(strings.Repeat("-", 40) + "\n")
	if fin.InvoiceCount == 0 {
		b.WriteString("No invoices with extractable totals.\n")
	} else {
		b.WriteString(fmt.Sprintf("Invoices with totals: %d\n", fin.InvoiceCount))
		b.WriteString(fmt.Sprintf("Total value:          %.2f\n", fin.Total))
		b.WriteString(fmt.Sprintf("Average value:        %.2f\n", fin.Average))
		b.WriteString(fmt.Sprintf("Minimum value:        %.2f\n", fin.Min))
		b.WriteString(fmt.Sprintf("Maximum value:        %.2f\n", fin.Max))
		for _, cs := range fin.Currencies {
			b.WriteString(fmt.Sprintf("  %s: %d invoice(s), total %.2f, avg %.2f, min %.2f, max %.2f\n",
				cs.Code, cs.Count, cs.Total, cs.Average, cs.Min, cs.Max))
		}
	}
	if fin.Excluded > 0 {
		b.WriteString(fmt.Sprintf("Note: %d invoice(s) excluded from totals (no amount extracted).\n", fin.Excluded))
	}
	b.WriteString("\n")

	b.WriteString("DETAILED INVOICE SUMMARY\n")
	b.WriteString(strings.Repeat("-", 40) + "\n")
	if len(rows) == 0 {
		b.WriteString("No files were processed.\n")
	} else {
		tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "File\tInvoice #\tDate\tVendor\tTotal\tItems\tStatus")
		for _, row := range rows {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
				row.File,
				orDash(row.InvoiceNumber),
				orDash(strVal(row.InvoiceDate)),
				orDash(strVal(row.Vendor)),
				orDash(numVal(row.TotalAmount)),
				row.LineItems,
				row.Status,
			)
		}
		_ = tw.Flush()
	}
	b.WriteString("\n")

	b.WriteString("PROCESSING STATUS BREAKDOWN\n")
	b.WriteString(strings.Repeat("-", 40) + "\n")
	b.WriteString(fmt.Sprintf("AI Extracted: %d\n", proc.SucceededAI))
	b.WriteString(fmt.Sprintf("OCR Only:     %d\n", proc.SucceededOCR))
	b.WriteString(fmt.Sprintf("Failed:       %d\n", proc.Failed))
	for _, row := range rows {
		if row.Outcome == invoice.OutcomeFailed && row.FailureReason != "" {
			b.WriteString(fmt.Sprintf("  %s: %s\n", row.File, row.FailureReason))
		}
	}
	b.WriteString("\n" + banner + "\n")

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write narrative: %w", err)
	}
	return nil
}

// WriteWorkbook writes an XLSX view of the run: flat records on one
// sheet, the per-invoice summary on another.
func WriteWorkbook(path string, records []invoice.FlatRecord, rows []SummaryRow, proc ProcessingSummary, fin FinancialSummary) error {
	f := excelize.NewFile()

	const recordsSheet = "Records"
	if err := f.SetSheetName("Sheet1", recordsSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	for i, h := range recordColumns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(recordsSheet, cell, h)
	}
	for ri, r := range records {
		for ci, v := range recordValues(r) {
			cell, _ := excelize.CoordinatesToCellName(ci+1, ri+2)
			_ = f.SetCellValue(recordsSheet, cell, v)
		}
	}
	_ = f.SetColWidth(recordsSheet, "A", "A", 16)
	_ = f.SetColWidth(recordsSheet, "D", "E", 28)
	_ = f.SetColWidth(recordsSheet, "G", "G", 40)
	_ = f.SetColWidth(recordsSheet, "K", "K", 48)

	const invoicesSheet = "Invoices"
	if _, err := f.NewSheet(invoicesSheet); err != nil {
		return fmt.Errorf("add invoices sheet: %w", err)
	}
	for i, h := range summaryColumns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(invoicesSheet, cell, h)
	}
	for ri, row := range rows {
		vals := []any{
			row.File,
			row.InvoiceNumber,
			strVal(row.InvoiceDate),
			strVal(row.Vendor),
			strVal(row.Customer),
			numVal(row.TotalAmount),
			strVal(row.Currency),
			row.LineItems,
			row.Status,
			row.Quality,
		}
		for ci, v := range vals {
			cell, _ := excelize.CoordinatesToCellName(ci+1, ri+2)
			_ = f.SetCellValue(invoicesSheet, cell, v)
		}
	}
	_ = f.SetColWidth(invoicesSheet, "A", "A", 40)
	_ = f.SetColWidth(invoicesSheet, "D", "E", 28)

	const summarySheet = "Summary"
	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("add summary sheet: %w", err)
	}
	pairs := [][2]any{
		{"Total files", proc.TotalFiles},
		{"AI extracted", proc.SucceededAI},
		{"OCR only", proc.SucceededOCR},
		{"Failed", proc.Failed},
		{"Success rate (%)", proc.SuccessRate},
		{"Line items", proc.TotalLineItems},
		{"Invoices with totals", fin.InvoiceCount},
		{"Total value", fin.Total},
		{"Average value", fin.Average},
		{"Excluded (no amount)", fin.Excluded},
	}
	for ri, p := range pairs {
		keyCell, _ := excelize.CoordinatesToCellName(1, ri+1)
		valCell, _ := excelize.CoordinatesToCellName(2, ri+1)
		_ = f.SetCellValue(summarySheet, keyCell, p[0])
		_ = f.SetCellValue(summarySheet, valCell, p[1])
	}
	_ = f.SetColWidth(summarySheet, "A", "A", 24)

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return f.Close()
}

func strVal(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func numVal(p *float64) string {
	if p == nil {
		return ""
	}
	return strconv.FormatFloat(*p, 'f', -1, 64)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
