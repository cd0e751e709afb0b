package checkout

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType is the mode of the active checkout. Types are mutually
// exclusive: switching type empties the cart.
type TransactionType int

const (
	TypeSale TransactionType = iota
	TypeRental
	TypeReturn
)

func (t TransactionType) String() string {
	switch t {
	case TypeSale:
		return "Sale"
	case TypeRental:
		return "Rental"
	case TypeReturn:
		return "Return"
	default:
		return "Unknown"
	}
}

func ParseTransactionType(s string) (TransactionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sale":
		return TypeSale, nil
	case "rental":
		return TypeRental, nil
	case "return":
		return TypeReturn, nil
	}
	return 0, fmt.Errorf("unknown transaction type %q", s)
}

// ItemType says whether a catalog item may be rented.
type ItemType int

const (
	ItemSale ItemType = iota
	ItemRental
)

func (t ItemType) String() string {
	if t == ItemRental {
		return "Rental"
	}
	return "Sale"
}

func ParseItemType(s string) (ItemType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sale":
		return ItemSale, nil
	case "rental":
		return ItemRental, nil
	}
	return 0, fmt.Errorf("unknown item type %q", s)
}

type PaymentMethod string

const (
	PaymentCash        PaymentMethod = "Cash"
	PaymentCredit      PaymentMethod = "Credit"
	PaymentCheck       PaymentMethod = "Check"
	PaymentStoreCredit PaymentMethod = "Store Credit"
)

func (p PaymentMethod) Valid() bool {
	switch p {
	case PaymentCash, PaymentCredit, PaymentCheck, PaymentStoreCredit:
		return true
	}
	return false
}

// Item is a read-only snapshot of an inventory record. The inventory service
// owns it; the engine never writes it back.
type Item struct {
	ID       int64
	Name     string
	Price    decimal.Decimal
	Stock    int
	ItemType ItemType
}

// Catalog resolves items by id from the latest inventory snapshot.
type Catalog interface {
	Item(id int64) (Item, bool)
}

// CartLine keeps the price seen when the item was first added so later
// catalog price changes do not alter the cart in progress.
type CartLine struct {
	ItemID   int64
	Name     string
	Price    decimal.Decimal
	Quantity int
}

func (l CartLine) Total() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type Customer struct {
	ID          int64
	Phone       string
	StoreCredit decimal.Decimal
}

// Context is the ephemeral state of one checkout besides the cart lines.
type Context struct {
	Type            TransactionType
	Customer        *Customer
	PhoneInput      string
	DueDate         *time.Time
	DiscountPercent decimal.Decimal
	PaymentMethod   PaymentMethod
	ApplyCredit     bool
}

// NewContext returns the defaults a cashier sees on a fresh screen.
func NewContext() Context {
	return Context{
		Type:          TypeSale,
		PaymentMethod: PaymentCash,
	}
}

// reset clears the per-customer state. The transaction type and payment
// method stay as the cashier left them.
func (c *Context) reset() {
	t, pm := c.Type, c.PaymentMethod
	*c = NewContext()
	c.Type, c.PaymentMethod = t, pm
}

type Breakdown struct {
	Subtotal          decimal.Decimal
	DiscountAmount    decimal.Decimal
	AfterDiscount     decimal.Decimal
	Tax               decimal.Decimal
	TotalBeforeCredit decimal.Decimal
	CreditApplied     decimal.Decimal
	Total             decimal.Decimal
}

// Receipt is created only after the transaction service accepted a
// submission. Total and CreditUsed are the server's figures; Breakdown is the
// advisory local computation shown while the cart was open.
type Receipt struct {
	TransactionID int64
	Timestamp     time.Time
	Type          TransactionType
	EmployeeID    int64
	CustomerID    *int64
	PaymentMethod PaymentMethod
	Lines         []CartLine
	Total         decimal.Decimal
	CreditUsed    decimal.Decimal
	Breakdown     Breakdown
}
