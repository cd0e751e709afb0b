package checkout

import (
	"errors"
	"fmt"
)

// Cart mutations. The rejected mutation is not applied.
var (
	ErrOutOfStock        = errors.New("item is out of stock")
	ErrTypeMismatch      = errors.New("item is for sale only")
	ErrStockLimitReached = errors.New("max stock reached")
	ErrLineNotFound      = errors.New("line not found")
	ErrUnknownItem       = errors.New("item not in catalog")
)

// Transaction-level preconditions.
var (
	ErrEmptyCart          = errors.New("cart is empty")
	ErrRentalRequirements = errors.New("rentals require due date and customer")
)

// Submission.
var (
	ErrSubmissionRejected = errors.New("transaction rejected")
	ErrTransportFailure   = errors.New("transaction service unreachable")
)

// Context edits.
var (
	ErrDiscountOutOfRange  = errors.New("discount must be between 0 and 100")
	ErrInvalidPayment      = errors.New("unknown payment method")
	ErrInvalidCreditAmount = errors.New("credit amount must be positive")
	ErrNoCustomer          = errors.New("no customer selected")
)

// SubmissionRejectedError carries the server's reason for refusing a
// transaction. It matches ErrSubmissionRejected with errors.Is.
type SubmissionRejectedError struct {
	Status  int
	Message string
}

func (e *SubmissionRejectedError) Error() string {
	return fmt.Sprintf("transaction rejected (%d): %s", e.Status, e.Message)
}

func (e *SubmissionRejectedError) Unwrap() error { return ErrSubmissionRejected }

// Code maps an engine error onto a stable identifier for API clients.
// Unknown errors map to "".
func Code(err error) string {
	switch {
	case errors.Is(err, ErrOutOfStock):
		return "out_of_stock"
	case errors.Is(err, ErrTypeMismatch):
		return "type_mismatch"
	case errors.Is(err, ErrStockLimitReached):
		return "stock_limit_reached"
	case errors.Is(err, ErrLineNotFound):
		return "line_not_found"
	case errors.Is(err, ErrUnknownItem):
		return "unknown_item"
	case errors.Is(err, ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, ErrRentalRequirements):
		return "rental_requirements"
	case errors.Is(err, ErrSubmissionRejected):
		return "submission_rejected"
	case errors.Is(err, ErrTransportFailure):
		return "transport_failure"
	case errors.Is(err, ErrDiscountOutOfRange):
		return "discount_out_of_range"
	case errors.Is(err, ErrInvalidPayment):
		return "invalid_payment_method"
	case errors.Is(err, ErrInvalidCreditAmount):
		return "invalid_credit_amount"
	case errors.Is(err, ErrNoCustomer):
		return "no_customer"
	}
	return ""
}
