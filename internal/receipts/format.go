package receipts

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"

	"github.com/ahinestrog/mypos/internal/checkout"
)

// Money renders an amount as $1,234.50, with the sign in front.
func Money(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}
	return sign + "$" + humanize.FormatFloat("#,###.##", d.Round(2).InexactFloat64())
}

// Format renders the plain-text receipt shown to the cashier after a
// checkout.
func Format(r checkout.Receipt) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Transaction #%d\n", r.TransactionID)
	fmt.Fprintf(&b, "%s  %s  %s\n", r.Timestamp.Format("2006-01-02 15:04"), r.Type, r.PaymentMethod)
	b.WriteString(strings.Repeat("-", 32) + "\n")
	for _, l := range r.Lines {
		fmt.Fprintf(&b, "%s x%d  %s\n", l.Name, l.Quantity, Money(l.Total()))
	}
	b.WriteString(strings.Repeat("-", 32) + "\n")

	bd := r.Breakdown
	fmt.Fprintf(&b, "Subtotal  %s\n", Money(bd.Subtotal))
	if bd.DiscountAmount.IsPositive() {
		fmt.Fprintf(&b, "Discount  %s\n", Money(bd.DiscountAmount.Neg()))
	}
	fmt.Fprintf(&b, "Tax       %s\n", Money(bd.Tax))
	if r.CreditUsed.IsPositive() {
		fmt.Fprintf(&b, "Credit    %s\n", Money(r.CreditUsed.Neg()))
	}
	fmt.Fprintf(&b, "TOTAL     %s\n", Money(r.Total))
	return b.String()
}

// Summary is the one-line form used in receipt listings.
func Summary(r checkout.Receipt) string {
	items := 0
	for _, l := range r.Lines {
		items += l.Quantity
	}
	return fmt.Sprintf("#%d  %-6s  %s  %s  %s",
		r.TransactionID, r.Type, humanize.Time(r.Timestamp), itemCount(items), Money(r.Total))
}

func itemCount(n int) string {
	if n == 1 {
		return "1 item"
	}
	return humanize.Comma(int64(n)) + " items"
}
