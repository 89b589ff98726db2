package cart

import "github.com/shopspring/decimal"

// Totals are derived from the line items on every read.
type Totals struct {
	TotalItems int             `json:"total_items"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

// ComputeTotals sums quantities and price times quantity.
func ComputeTotals(items []LineItem) Totals {
	totals := Totals{TotalPrice: decimal.Zero}
	for _, item := range items {
		totals.TotalItems += item.Quantity
		totals.TotalPrice = totals.TotalPrice.Add(item.Subtotal())
	}
	return totals
}
