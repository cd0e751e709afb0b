package server

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ahinestrog/mypos/internal/checkout"
	"github.com/ahinestrog/mypos/internal/receipts"
)

const dateLayout = "2006-01-02"

type createSessionReq struct {
	EmployeeID int64 `json:"employee_id" validate:"required,gt=0"`
}

type setTypeReq struct {
	Type    string `json:"type" validate:"required,oneof=Sale Rental Return sale rental return"`
	Confirm bool   `json:"confirm"`
}

type addLineReq struct {
	ItemID int64 `json:"item_id" validate:"required,gt=0"`
}

type adjustLineReq struct {
	Delta int `json:"delta" validate:"required,ne=0,min=-999,max=999"`
}

// contextReq is a partial update; absent fields are left alone.
type contextReq struct {
	DiscountPercent *decimal.Decimal `json:"discount_percent"`
	DueDate         *string          `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
	ClearDueDate    bool             `json:"clear_due_date"`
	PaymentMethod   *string          `json:"payment_method" validate:"omitempty,min=1"`
	ApplyCredit     *bool            `json:"apply_credit"`
}

type lookupReq struct {
	Phone string `json:"phone" validate:"required,max=32"`
}

type createCustomerReq struct {
	Phone   string `json:"phone" validate:"omitempty,max=32"`
	Confirm bool   `json:"confirm"`
}

type addFundsReq struct {
	Amount  string `json:"amount" validate:"required,numeric"`
	Confirm bool   `json:"confirm"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type lineView struct {
	ItemID   int64  `json:"item_id"`
	Name     string `json:"name"`
	Price    string `json:"price"`
	Quantity int    `json:"quantity"`
	Total    string `json:"total"`
}

type customerView struct {
	ID          int64  `json:"customer_id"`
	Phone       string `json:"phone_number"`
	StoreCredit string `json:"store_credit"`
}

type contextView struct {
	Type            string        `json:"type"`
	Customer        *customerView `json:"customer"`
	PhoneInput      string        `json:"phone_input"`
	DueDate         *string       `json:"due_date"`
	DiscountPercent string        `json:"discount_percent"`
	PaymentMethod   string        `json:"payment_method"`
	ApplyCredit     bool          `json:"apply_credit"`
}

type breakdownView struct {
	Subtotal          string `json:"subtotal"`
	DiscountAmount    string `json:"discount_amount"`
	AfterDiscount     string `json:"after_discount"`
	Tax               string `json:"tax"`
	TotalBeforeCredit string `json:"total_before_credit"`
	CreditApplied     string `json:"credit_applied"`
	Total             string `json:"total"`
}

type sessionView struct {
	ID         string        `json:"id"`
	EmployeeID int64         `json:"employee_id"`
	Lines      []lineView    `json:"lines"`
	Context    contextView   `json:"context"`
	Breakdown  breakdownView `json:"breakdown"`
	// Confirm lists the actions the UI should confirm before sending.
	Confirm map[string]bool `json:"confirm"`
}

type lookupView struct {
	Found                   bool          `json:"found"`
	NeedsCreateConfirmation bool          `json:"needs_create_confirmation"`
	Customer                *customerView `json:"customer"`
}

type itemView struct {
	ItemID          int64  `json:"item_id"`
	Name            string `json:"name"`
	Price           string `json:"price"`
	QuantityInStock int    `json:"quantity_in_stock"`
	ItemType        string `json:"item_type"`
}

type receiptView struct {
	TransactionID int64         `json:"transaction_id"`
	Timestamp     time.Time     `json:"timestamp"`
	Type          string        `json:"type"`
	EmployeeID    int64         `json:"employee_id"`
	CustomerID    *int64        `json:"customer_id,omitempty"`
	PaymentMethod string        `json:"payment_method"`
	Lines         []lineView    `json:"lines"`
	Total         string        `json:"total"`
	CreditUsed    string        `json:"credit_used"`
	Breakdown     breakdownView `json:"breakdown"`
	Text          string        `json:"text"`
}

func money(d decimal.Decimal) string { return d.StringFixed(2) }

func toLines(ls []checkout.CartLine) []lineView {
	out := make([]lineView, 0, len(ls))
	for _, l := range ls {
		out = append(out, lineView{
			ItemID:   l.ItemID,
			Name:     l.Name,
			Price:    money(l.Price),
			Quantity: l.Quantity,
			Total:    money(l.Total()),
		})
	}
	return out
}

func toCustomer(c *checkout.Customer) *customerView {
	if c == nil {
		return nil
	}
	return &customerView{ID: c.ID, Phone: c.Phone, StoreCredit: money(c.StoreCredit)}
}

func toBreakdown(b checkout.Breakdown) breakdownView {
	return breakdownView{
		Subtotal:          money(b.Subtotal),
		DiscountAmount:    money(b.DiscountAmount),
		AfterDiscount:     money(b.AfterDiscount),
		Tax:               money(b.Tax),
		TotalBeforeCredit: money(b.TotalBeforeCredit),
		CreditApplied:     money(b.CreditApplied),
		Total:             money(b.Total),
	}
}

func toSession(s *checkout.Session) sessionView {
	c := s.Context()
	cv := contextView{
		Type:            c.Type.String(),
		Customer:        toCustomer(c.Customer),
		PhoneInput:      c.PhoneInput,
		DiscountPercent: c.DiscountPercent.String(),
		PaymentMethod:   string(c.PaymentMethod),
		ApplyCredit:     c.ApplyCredit,
	}
	if c.DueDate != nil {
		d := c.DueDate.Format(dateLayout)
		cv.DueDate = &d
	}
	return sessionView{
		ID:         s.ID,
		EmployeeID: s.EmployeeID,
		Lines:      toLines(s.Lines()),
		Context:    cv,
		Breakdown:  toBreakdown(s.Breakdown()),
		Confirm: map[string]bool{
			"create_customer": s.RequiresConfirmation(checkout.ActionCreateCustomer),
			"add_funds":       s.RequiresConfirmation(checkout.ActionAddFunds),
			"change_type":     s.RequiresConfirmation(checkout.ActionChangeType),
			"abandon":         s.RequiresConfirmation(checkout.ActionAbandon),
		},
	}
}

func toItems(items []checkout.Item) []itemView {
	out := make([]itemView, 0, len(items))
	for _, it := range items {
		out = append(out, itemView{
			ItemID:          it.ID,
			Name:            it.Name,
			Price:           money(it.Price),
			QuantityInStock: it.Stock,
			ItemType:        it.ItemType.String(),
		})
	}
	return out
}

func toReceipt(r checkout.Receipt) receiptView {
	return receiptView{
		TransactionID: r.TransactionID,
		Timestamp:     r.Timestamp,
		Type:          r.Type.String(),
		EmployeeID:    r.EmployeeID,
		CustomerID:    r.CustomerID,
		PaymentMethod: string(r.PaymentMethod),
		Lines:         toLines(r.Lines),
		Total:         money(r.Total),
		CreditUsed:    money(r.CreditUsed),
		Breakdown:     toBreakdown(r.Breakdown),
		Text:          receipts.Format(r),
	}
}
