// Package engine derives invoice totals from line items. Every call
// site shares this one derivation so independently written screens
// agree bit-for-bit on the same input.
package engine

import (
	"github.com/shopspring/decimal"
	"github.com/mk070/zenlance-sub002/internal/invoice/domain"
)

var oneHundred = decimal.NewFromInt(100)

// Totals is a fully-derived snapshot of an invoice's amounts. TaxRate
// and DiscountRate are the normalized inputs the amounts were derived
// from; persisting them keeps stored rate and amount in agreement.
type Totals struct {
	Items          []domain.LineItem
	Subtotal       decimal.Decimal
	TaxRate        decimal.Decimal
	TaxAmount      decimal.Decimal
	DiscountRate   decimal.Decimal
	DiscountAmount decimal.Decimal
	Total          decimal.Decimal
}

// ComputeTotals recomputes every derived amount. It is pure and cheap
// enough to run on each keystroke of an edit form.
//
// Rounding order is a fixed policy: raw per-item amounts are summed at
// full precision, the subtotal is rounded to 2 decimals, tax and
// discount are computed off the rounded subtotal and rounded
// individually, and the total is rounded once more at the end.
// Negative quantities and rates clamp to zero instead of failing, so a
// half-typed form stays responsive; submission validation is where bad
// values become blocking errors.
func ComputeTotals(items []domain.LineItem, taxRate, discountRate decimal.Decimal) Totals {
	out := make([]domain.LineItem, len(items))
	rawSubtotal := decimal.Zero

	for i, item := range items {
		qty := clampNonNegative(item.Quantity)
		rate := clampNonNegative(item.Rate)
		raw := qty.Mul(rate)
		rawSubtotal = rawSubtotal.Add(raw)

		out[i] = domain.LineItem{
			Description: item.Description,
			Quantity:    qty,
			Rate:        rate,
			Amount:      raw.Round(2),
		}
	}

	subtotal := rawSubtotal.Round(2)
	taxRate = clampNonNegative(taxRate)
	discountRate = clampNonNegative(discountRate)
	taxAmount := subtotal.Mul(taxRate).Div(oneHundred).Round(2)
	discountAmount := subtotal.Mul(discountRate).Div(oneHundred).Round(2)
	total := subtotal.Add(taxAmount).Sub(discountAmount).Round(2)

	return Totals{
		Items:          out,
		Subtotal:       subtotal,
		TaxRate:        taxRate,
		TaxAmount:      taxAmount,
		DiscountRate:   discountRate,
		DiscountAmount: discountAmount,
		Total:          total,
	}
}

// AddItem appends a zero-valued line.
func AddItem(items []domain.LineItem) []domain.LineItem {
	return append(items, domain.LineItem{
		Quantity: decimal.Zero,
		Rate:     decimal.Zero,
		Amount:   decimal.Zero,
	})
}

// RemoveItem drops the line at index. Out-of-range indexes are a
// no-op. The list may go empty here; submission validation rejects an
// empty invoice before it can leave draft.
func RemoveItem(items []domain.LineItem, index int) []domain.LineItem {
	if index < 0 || index >= len(items) {
		return items
	}
	out := make([]domain.LineItem, 0, len(items)-1)
	out = append(out, items[:index]...)
	return append(out, items[index+1:]...)
}

func clampNonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
