package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CustomerService is the engine's view of the external customer service.
// FindByPhone returns (nil, nil) when no customer has that phone.
// AddCredit may return a nil customer when the service does not echo the
// updated record.
type CustomerService interface {
	FindByPhone(ctx context.Context, phone string) (*Customer, error)
	Create(ctx context.Context, phone string) (Customer, error)
	AddCredit(ctx context.Context, customerID int64, amount decimal.Decimal) (*Customer, error)
}

// Action names a cashier action that may need an explicit confirmation
// before the UI carries it out.
type Action int

const (
	ActionCreateCustomer Action = iota
	ActionAddFunds
	ActionChangeType
	ActionAbandon
)

// CustomerLookup is the outcome of searching a customer by phone.
type CustomerLookup struct {
	Phone    string
	Customer *Customer
}

func (l CustomerLookup) Found() bool { return l.Customer != nil }

// NeedsCreateConfirmation is true when the phone is unknown and the UI
// should ask before creating a new customer for it.
func (l CustomerLookup) NeedsCreateConfirmation() bool {
	return l.Customer == nil && l.Phone != ""
}

// Session is one cashier's checkout: a cart plus its context. It is driven
// by a single caller at a time and holds no locks of its own.
type Session struct {
	ID         string
	EmployeeID int64

	cart    *Cart
	ctx     Context
	catalog Catalog
}

func NewSession(id string, employeeID int64, catalog Catalog) *Session {
	return &Session{
		ID:         id,
		EmployeeID: employeeID,
		cart:       NewCart(),
		ctx:        NewContext(),
		catalog:    catalog,
	}
}

func (s *Session) Context() Context {
	c := s.ctx
	if c.Customer != nil {
		cu := *c.Customer
		c.Customer = &cu
	}
	return c
}

func (s *Session) Lines() []CartLine { return s.cart.Lines() }

func (s *Session) Breakdown() Breakdown {
	return Compute(s.cart.Lines(), s.ctx.DiscountPercent, s.ctx.Type, s.ctx.Customer, s.ctx.ApplyCredit)
}

func (s *Session) Validate() error { return Validate(s.cart, s.ctx) }

// RequiresConfirmation reports whether an action is destructive enough that
// the UI should ask the cashier first.
func (s *Session) RequiresConfirmation(a Action) bool {
	switch a {
	case ActionCreateCustomer, ActionAddFunds:
		return true
	case ActionChangeType, ActionAbandon:
		return s.cart.Len() > 0
	}
	return false
}

// SetType switches the transaction mode. A different type empties the cart
// and drops the due date and discount; the customer stays selected.
func (s *Session) SetType(t TransactionType) {
	if t == s.ctx.Type {
		return
	}
	s.cart.Clear()
	s.ctx.Type = t
	s.ctx.DueDate = nil
	s.ctx.DiscountPercent = decimal.Zero
}

func (s *Session) Add(itemID int64) error {
	it, ok := s.lookup(itemID)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownItem, itemID)
	}
	return s.cart.Add(it, s.ctx.Type)
}

func (s *Session) Adjust(itemID int64, delta int) error {
	return s.cart.AdjustQuantity(s.catalog, itemID, delta, s.ctx.Type)
}

func (s *Session) ClearCart() { s.cart.Clear() }

func (s *Session) SetDiscount(pct decimal.Decimal) error {
	if pct.IsNegative() || pct.GreaterThan(hundred) {
		return ErrDiscountOutOfRange
	}
	s.ctx.DiscountPercent = pct
	return nil
}

func (s *Session) SetDueDate(d *time.Time) { s.ctx.DueDate = d }

func (s *Session) SetPaymentMethod(pm PaymentMethod) error {
	if !pm.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidPayment, pm)
	}
	s.ctx.PaymentMethod = pm
	return nil
}

func (s *Session) SetApplyCredit(on bool) { s.ctx.ApplyCredit = on }

func (s *Session) SelectCustomer(c Customer) {
	s.ctx.Customer = &c
	s.ctx.PhoneInput = c.Phone
}

func (s *Session) ClearCustomer() {
	s.ctx.Customer = nil
	s.ctx.PhoneInput = ""
	s.ctx.ApplyCredit = false
}

// LookupCustomer searches by phone and selects the customer when found.
func (s *Session) LookupCustomer(ctx context.Context, customers CustomerService, phone string) (CustomerLookup, error) {
	phone = strings.TrimSpace(phone)
	s.ctx.PhoneInput = phone
	if phone == "" {
		return CustomerLookup{}, nil
	}
	c, err := customers.FindByPhone(ctx, phone)
	if err != nil {
		return CustomerLookup{Phone: phone}, err
	}
	if c != nil {
		s.SelectCustomer(*c)
	}
	return CustomerLookup{Phone: phone, Customer: c}, nil
}

// CreateCustomer registers the phone last typed in (or the given one) and
// selects the new customer.
func (s *Session) CreateCustomer(ctx context.Context, customers CustomerService, phone string) (Customer, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		phone = s.ctx.PhoneInput
	}
	c, err := customers.Create(ctx, phone)
	if err != nil {
		return Customer{}, err
	}
	s.SelectCustomer(c)
	return c, nil
}

// AddFunds tops up the selected customer's store credit and reloads the
// balance from the customer service.
func (s *Session) AddFunds(ctx context.Context, customers CustomerService, amount decimal.Decimal) (Customer, error) {
	if s.ctx.Customer == nil {
		return Customer{}, ErrNoCustomer
	}
	if !amount.IsPositive() {
		return Customer{}, ErrInvalidCreditAmount
	}
	cur := *s.ctx.Customer
	updated, err := customers.AddCredit(ctx, cur.ID, amount)
	if err != nil {
		return Customer{}, err
	}
	if updated == nil {
		updated, err = customers.FindByPhone(ctx, cur.Phone)
		if err != nil {
			return Customer{}, err
		}
		if updated == nil {
			return Customer{}, fmt.Errorf("customer %d vanished after top-up", cur.ID)
		}
	}
	s.SelectCustomer(*updated)
	return *updated, nil
}

// Checkout submits the session's transaction.
func (s *Session) Checkout(ctx context.Context, sub *Submitter) (Receipt, error) {
	return sub.Submit(ctx, s.cart, &s.ctx, s.Breakdown(), s.EmployeeID)
}

// Reset abandons the checkout in progress.
func (s *Session) Reset() {
	s.cart.Clear()
	s.ctx.reset()
}

func (s *Session) lookup(id int64) (Item, bool) {
	if s.catalog == nil {
		return Item{}, false
	}
	return s.catalog.Item(id)
}
