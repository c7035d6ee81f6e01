package llm

// BuildInvoiceJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a
// generic map. Providers are prompted with the same shape; we use the
// schema locally to reject responses that drifted from it.
func BuildInvoiceJSONSchema() map[string]any {
	headerProps := map[string]any{
		"invoice_number":   nullableString(),
		"invoice_date":     nullableDate(),
		"due_date":         nullableDate(),
		"vendor_name":      nullableString(),
		"vendor_address":   nullableString(),
		"vendor_tax_id":    nullableString(),
		"customer_name":    nullableString(),
		"customer_address": nullableString(),
		"total_amount":     nullableNumber(),
		"tax_amount":       nullableNumber(),
		"subtotal":         nullableNumber(),
		"currency":         nullableString(),
	}

	itemProps := map[string]any{
		"item_description": map[string]any{"type": "string", "minLength": 1},
		"quantity":         nullableNumber(),
		"unit_price":       nullableNumber(),
		"line_total":       nullableNumber(),
		"item_code":        nullableString(),
	}

	return map[string]any{
		"type":     "object",
		"required": []string{"header"},
		"properties": map[string]any{
			"header": map[string]any{
				"type":       "object",
				"properties": headerProps,
			},
			"line_items": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":       "object",
					"required":   []string{"item_description"},
					"properties": itemProps,
				},
			},
		},
	}
}

func nullableString() map[string]any {
	return map[string]any{"type": []string{"string", "null"}}
}

func nullableNumber() map[string]any {
	return map[string]any{"type": []string{"number", "null"}}
}

func nullableDate() map[string]any {
	return map[string]any{
		"type":    []string{"string", "null"},
		"pattern": `^\d{4}-\d{2}-\d{2}$`,
	}
}
