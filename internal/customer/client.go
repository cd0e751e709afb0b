// Package customer is the client of the external customer service.
package customer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"

	"github.com/ahinestrog/mypos/internal/checkout"
	"github.com/ahinestrog/mypos/internal/httpx"
)

var (
	ErrCustomerExists   = errors.New("customer already exists")
	ErrCustomerNotFound = errors.New("customer not found")
)

type customerDTO struct {
	CustomerID  int64           `json:"customer_id"`
	PhoneNumber string          `json:"phone_number"`
	StoreCredit decimal.Decimal `json:"store_credit"`
}

func (d customerDTO) toCustomer() checkout.Customer {
	return checkout.Customer{ID: d.CustomerID, Phone: d.PhoneNumber, StoreCredit: d.StoreCredit}
}

type createReq struct {
	PhoneNumber string `json:"phone_number"`
}

type addCreditReq struct {
	CustomerID int64       `json:"customer_id"`
	Amount     json.Number `json:"amount"`
}

type Client struct {
	doer *httpx.Doer
}

func NewClient(doer *httpx.Doer) *Client { return &Client{doer: doer} }

// FindByPhone returns (nil, nil) when nobody has that phone number.
func (c *Client) FindByPhone(ctx context.Context, phone string) (*checkout.Customer, error) {
	var out *customerDTO
	if err := c.doer.Get(ctx, "/customers/search", url.Values{"phone": {phone}}, &out); err != nil {
		if httpx.IsStatus(err, http.StatusNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("search customer: %w", err)
	}
	if out == nil {
		return nil, nil
	}
	cu := out.toCustomer()
	return &cu, nil
}

func (c *Client) Create(ctx context.Context, phone string) (checkout.Customer, error) {
	var out customerDTO
	if err := c.doer.Post(ctx, "/customers/", createReq{PhoneNumber: phone}, &out); err != nil {
		if httpx.IsStatus(err, http.StatusBadRequest) || httpx.IsStatus(err, http.StatusConflict) {
			return checkout.Customer{}, fmt.Errorf("%w: %s", ErrCustomerExists, phone)
		}
		return checkout.Customer{}, fmt.Errorf("create customer: %w", err)
	}
	if out.PhoneNumber == "" {
		out.PhoneNumber = phone
	}
	return out.toCustomer(), nil
}

// AddCredit tops up a customer's store credit. The service only answers
// with a message, so the returned customer is nil unless it echoes the
// updated record.
func (c *Client) AddCredit(ctx context.Context, customerID int64, amount decimal.Decimal) (*checkout.Customer, error) {
	var out struct {
		customerDTO
		Message string `json:"message"`
	}
	if err := c.doer.Post(ctx, "/customers/add_credit", addCreditReq{CustomerID: customerID, Amount: json.Number(amount.String())}, &out); err != nil {
		if httpx.IsStatus(err, http.StatusNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrCustomerNotFound, customerID)
		}
		return nil, fmt.Errorf("add credit: %w", err)
	}
	if out.CustomerID == 0 {
		return nil, nil
	}
	cu := out.toCustomer()
	return &cu, nil
}
