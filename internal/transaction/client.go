// Package transaction is the client of the external transaction service,
// the only write path for Sales, Rentals and Returns.
package transaction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/ahinestrog/mypos/internal/checkout"
	"github.com/ahinestrog/mypos/internal/httpx"
)

// DueDateLayout is how rental due dates travel on the wire.
const DueDateLayout = "2006-01-02"

type lineDTO struct {
	ItemID   int64       `json:"item_id"`
	Quantity int         `json:"quantity"`
	Price    json.Number `json:"price"`
}

type checkoutReq struct {
	EmployeeID      int64       `json:"employee_id"`
	CustomerID      *int64      `json:"customer_id,omitempty"`
	Items           []lineDTO   `json:"items"`
	Type            string      `json:"type"`
	DueDate         *string     `json:"due_date,omitempty"`
	PaymentMethod   string      `json:"payment_method"`
	UseCredit       bool        `json:"use_credit"`
	DiscountPercent json.Number `json:"discount_percent"`
}

type checkoutResp struct {
	TransactionID int64           `json:"transaction_id"`
	FinalTotal    decimal.Decimal `json:"final_total"`
	CreditUsed    decimal.Decimal `json:"credit_used"`
}

func encodeRequest(req checkout.TransactionRequest) checkoutReq {
	out := checkoutReq{
		EmployeeID:      req.EmployeeID,
		CustomerID:      req.CustomerID,
		Items:           make([]lineDTO, 0, len(req.Lines)),
		Type:            req.Type.String(),
		PaymentMethod:   string(req.PaymentMethod),
		UseCredit:       req.UseCredit,
		DiscountPercent: json.Number(req.DiscountPercent.String()),
	}
	for _, l := range req.Lines {
		out.Items = append(out.Items, lineDTO{ItemID: l.ItemID, Quantity: l.Quantity, Price: json.Number(l.Price.String())})
	}
	if req.DueDate != nil {
		s := req.DueDate.Format(DueDateLayout)
		out.DueDate = &s
	}
	return out
}

type Client struct {
	doer *httpx.Doer
}

func NewClient(doer *httpx.Doer) *Client { return &Client{doer: doer} }

// Submit posts the transaction once. An answer from the service refusing it
// comes back as *checkout.SubmissionRejectedError carrying the service's
// detail message. Gateway errors and network failures are returned as they
// are so the caller treats them as transport failures.
func (c *Client) Submit(ctx context.Context, req checkout.TransactionRequest) (checkout.TransactionResult, error) {
	var out checkoutResp
	if err := c.doer.Post(ctx, "/checkout", encodeRequest(req), &out); err != nil {
		var se *httpx.StatusError
		if errors.As(err, &se) && !isGatewayStatus(se.StatusCode) {
			return checkout.TransactionResult{}, &checkout.SubmissionRejectedError{Status: se.StatusCode, Message: se.Detail}
		}
		return checkout.TransactionResult{}, fmt.Errorf("submit transaction: %w", err)
	}
	return checkout.TransactionResult{
		TransactionID: out.TransactionID,
		FinalTotal:    out.FinalTotal,
		CreditUsed:    out.CreditUsed,
	}, nil
}

func isGatewayStatus(code int) bool {
	switch code {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}
