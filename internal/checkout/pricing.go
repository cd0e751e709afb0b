package checkout

import "github.com/shopspring/decimal"

var (
	// TaxRate is fixed; returns are never taxed.
	TaxRate = decimal.New(10, -2)

	hundred = decimal.NewFromInt(100)
)

// Compute derives the price breakdown of a cart. It is pure: callers run it
// again after every cart or context change instead of patching totals.
//
// Discount and tax are rounded to cents, so the figures on screen always add
// up: Total = Subtotal - DiscountAmount + Tax - CreditApplied.
func Compute(lines []CartLine, discountPercent decimal.Decimal, t TransactionType, customer *Customer, applyCredit bool) Breakdown {
	var b Breakdown

	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.Total())
	}
	b.Subtotal = subtotal

	pct := clampPercent(discountPercent)
	b.DiscountAmount = subtotal.Mul(pct).Div(hundred).Round(2)
	b.AfterDiscount = subtotal.Sub(b.DiscountAmount)

	b.Tax = decimal.Zero
	if t != TypeReturn {
		b.Tax = b.AfterDiscount.Mul(TaxRate).Round(2)
	}
	b.TotalBeforeCredit = b.AfterDiscount.Add(b.Tax)

	b.CreditApplied = decimal.Zero
	if applyCredit && customer != nil && customer.StoreCredit.IsPositive() && t != TypeReturn {
		b.CreditApplied = decimal.Min(customer.StoreCredit, b.TotalBeforeCredit)
	}
	b.Total = b.TotalBeforeCredit.Sub(b.CreditApplied)
	return b
}

func clampPercent(p decimal.Decimal) decimal.Decimal {
	if p.IsNegative() {
		return decimal.Zero
	}
	if p.GreaterThan(hundred) {
		return hundred
	}
	return p
}
