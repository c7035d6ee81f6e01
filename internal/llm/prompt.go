package llm

import "strings"

// BuildExtractionPrompt composes the instruction sent to every provider:
// the expected JSON shape plus formatting rules, followed by the invoice
// text itself.
func BuildExtractionPrompt(text string) string {
	var b strings.Builder
	b.WriteString(`Extract structured invoice information from the following text. Return a JSON object with this exact structure:

{
    "header": {
        "invoice_number": "string or null",
        "invoice_date": "YYYY-MM-DD format or null",
        "due_date": "YYYY-MM-DD format or null",
        "vendor_name": "string or null",
        "vendor_address": "string or null",
        "vendor_tax_id": "string or null",
        "customer_name": "string or null",
        "customer_address": "string or null",
        "total_amount": "decimal number or null",
        "tax_amount": "decimal number or null",
        "subtotal": "decimal number or null",
        "currency": "string (USD, EUR, etc.) or null"
    },
    "line_items": [
        {
            "item_description": "string",
            "quantity": "decimal number or null",
            "unit_price": "decimal number or null",
            "line_total": "decimal number or null",
            "item_code": "string or null"
        }
    ]
}

Rules:
- Extract all line items with their descriptions, quantities, prices, and totals
- Be precise with numerical values (remove currency symbols, keep only numbers and decimals)
- Convert dates to YYYY-MM-DD format
- If information is not found, use null
- Return only valid JSON, no additional text

Invoice text:
`)
	b.WriteString(text)
	return b.String()
}
