package invoice

import "time"

// Flatten expands an invoice into one record per line item. An invoice with
// zero line items yields exactly one record carrying the empty-items
// sentinel and nil numeric fields, so every invoice stays visible in the
// tabular output. The processing timestamp is captured here, at flattening
// time, to reflect pipeline completion order.
func Flatten(inv Invoice) []FlatRecord {
	ts := time.Now().Format(time.RFC3339)

	base := FlatRecord{
		InvoiceNumber:       inv.Header.InvoiceNumber,
		InvoiceDate:         inv.Header.InvoiceDate,
		DueDate:             inv.Header.DueDate,
		VendorName:          inv.Header.VendorName,
		VendorAddress:       inv.Header.VendorAddress,
		VendorTaxID:         inv.Header.VendorTaxID,
		CustomerName:        inv.Header.CustomerName,
		CustomerAddress:     inv.Header.CustomerAddress,
		TotalAmount:         inv.Header.TotalAmount,
		TaxAmount:           inv.Header.TaxAmount,
		Subtotal:            inv.Header.Subtotal,
		Currency:            inv.Header.Currency,
		FilePath:            inv.FilePath,
		ProcessingTimestamp: ts,
	}

	if len(inv.LineItems) == 0 {
		rec := base
		rec.ItemDescription = EmptyLineItemDescription
		return []FlatRecord{rec}
	}

	records := make([]FlatRecord, 0, len(inv.LineItems))
	for _, item := range inv.LineItems {
		rec := base
		rec.ItemDescription = item.Description
		rec.Quantity = item.Quantity
		rec.UnitPrice = item.UnitPrice
		rec.LineTotal = item.LineTotal
		rec.ItemCode = item.ItemCode
		records = append(records, rec)
	}
	return records
}
