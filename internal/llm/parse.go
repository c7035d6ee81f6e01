package llm

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"invoice-pipeline/internal/invoice"
)

type responseDocument struct {
	Header    invoice.Header     `json:"header"`
	LineItems []invoice.LineItem `json:"line_items"`
}

// parseResponse turns a provider's raw output into a validated document.
// It tolerates markdown fences and prose around the JSON object; anything
// beyond that is a parse failure, which the chain treats exactly like a
// provider failure. The second return lists numeric fields that had to be
// dropped during sanitizing.
func parseResponse(raw []byte) (responseDocument, []string, error) {
	body, err := extractJSONObject(string(raw))
	if err != nil {
		return responseDocument{}, nil, err
	}

	cleaned, dropped, err := sanitizeNumericFields([]byte(body))
	if err != nil {
		return responseDocument{}, nil, fmt.Errorf("sanitize response: %w", err)
	}

	if err := ValidateJSONAgainstSchema(BuildInvoiceJSONSchema(), cleaned); err != nil {
		return responseDocument{}, dropped, err
	}

	var doc responseDocument
	if err := json.Unmarshal(cleaned, &doc); err != nil {
		return responseDocument{}, dropped, fmt.Errorf("unmarshal document: %w", err)
	}
	return doc, dropped, nil
}

// extractJSONObject strips markdown code fences and surrounding prose,
// returning the outermost {...} object.
func extractJSONObject(text string) (string, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	start := strings.Index(text, "{")
	if start == -1 {
		return "", fmt.Errorf("no JSON object found in response")
	}
	end := strings.LastIndex(text, "}")
	if end == -1 || end < start {
		return "", fmt.Errorf("invalid JSON object in response")
	}
	return text[start : end+1], nil
}

var headerNumericKeys = []string{"total_amount", "tax_amount", "subtotal"}
var itemNumericKeys = []string{"quantity", "unit_price", "line_total"}

// sanitizeNumericFields normalizes numeric fields that providers sometimes
// emit as strings ("99.00", "$99.00") so the stricter schema still
// validates. Unparseable values are dropped rather than failing the whole
// document; the fields are all optional.
func sanitizeNumericFields(doc []byte) ([]byte, []string, error) {
	var m map[string]any
	if err := json.Unmarshal(doc, &m); err != nil {
		return nil, nil, err
	}

	var dropped []string

	if header, ok := m["header"].(map[string]any); ok {
		dropped = append(dropped, coerceNumbers(header, headerNumericKeys, "header.")...)
	}
	if items, ok := m["line_items"].([]any); ok {
		for i, it := range items {
			if item, ok := it.(map[string]any); ok {
				prefix := fmt.Sprintf("line_items[%d].", i)
				dropped = append(dropped, coerceNumbers(item, itemNumericKeys, prefix)...)
			}
		}
	}

	out, err := json.Marshal(m)
	if err != nil {
		return nil, nil, err
	}
	return out, dropped, nil
}

func coerceNumbers(obj map[string]any, keys []string, prefix string) []string {
	var dropped []string
	for _, k := range keys {
		v, ok := obj[k]
		if !ok {
			continue
		}
		switch t := v.(type) {
		case string:
			s := strings.TrimSpace(strings.Trim(t, "$€£ "))
			s = strings.ReplaceAll(s, ",", "")
			if s == "" || strings.EqualFold(s, "null") {
				obj[k] = nil
				continue
			}
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				obj[k] = f
			} else {
				obj[k] = nil
				dropped = append(dropped, prefix+k)
			}
		}
	}
	return dropped
}
