package invoice

import "time"

// Sentinel values used when extraction degrades. Reports key off these to
// classify how a document was processed, so they must stay stable.
const (
	EmptyLineItemDescription = "No line items found"
	FallbackVendorName       = "Unknown (OCR only)"
	FallbackMethod           = "ocr-only"
	FallbackTextPrefix       = "OCR Text (AI extraction failed): "
)

// Outcome is the per-file processing status. It drives both relocation
// behavior and report categorization.
type Outcome string

const (
	OutcomeSucceededAI      Outcome = "succeeded_ai"
	OutcomeSucceededOCROnly Outcome = "succeeded_ocr_only"
	OutcomeFailed           Outcome = "failed"
)

// Header holds invoice-level fields. Every field is optional except
// InvoiceNumber, which falls back to the source file name stem when no
// better value is available.
type Header struct {
	InvoiceNumber   string   `json:"invoice_number"`
	InvoiceDate     *string  `json:"invoice_date"` // YYYY-MM-DD
	DueDate         *string  `json:"due_date"`     // YYYY-MM-DD
	VendorName      *string  `json:"vendor_name"`
	VendorAddress   *string  `json:"vendor_address"`
	VendorTaxID     *string  `json:"vendor_tax_id"`
	CustomerName    *string  `json:"customer_name"`
	CustomerAddress *string  `json:"customer_address"`
	TotalAmount     *float64 `json:"total_amount"`
	TaxAmount       *float64 `json:"tax_amount"`
	Subtotal        *float64 `json:"subtotal"`
	Currency        *string  `json:"currency"`
	Notes           string   `json:"notes,omitempty"`
}

// LineItem is one billed position. Description is never empty; an invoice
// with zero extractable items is represented by a single item carrying
// EmptyLineItemDescription.
type LineItem struct {
	Description string   `json:"item_description"`
	Quantity    *float64 `json:"quantity"`
	UnitPrice   *float64 `json:"unit_price"`
	LineTotal   *float64 `json:"line_total"`
	ItemCode    *string  `json:"item_code"`
}

// Invoice is one structured document: header, ordered line items and
// provenance metadata. Immutable after creation.
type Invoice struct {
	Header    Header
	LineItems []LineItem
	RawText   string
	FilePath  string
	// Method records how the structure was obtained: the AI provider name,
	// or FallbackMethod when every provider failed.
	Method      string
	ProcessedAt time.Time
}

// FlatRecord is one denormalized row: the full header repeated next to a
// single line item, plus file provenance.
type FlatRecord struct {
	InvoiceNumber   string
	InvoiceDate     *string
	DueDate         *string
	VendorName      *string
	VendorAddress   *string
	VendorTaxID     *string
	CustomerName    *string
	CustomerAddress *string
	TotalAmount     *float64
	TaxAmount       *float64
	Subtotal        *float64
	Currency        *string

	ItemDescription string
	Quantity        *float64
	UnitPrice       *float64
	LineTotal       *float64
	ItemCode        *string

	FilePath            string
	ProcessingTimestamp string
}
