// Package events publishes post-commit domain events of the cashier.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/ahinestrog/mypos/internal/checkout"
)

// Routing keys published by the cashier.
const (
	RKTransactionCompleted    = "pos.transaction.completed"
	RKInventoryResyncRequired = "inventory.resync.requested"
)

type TransactionCompletedPayload struct {
	EventID       string    `json:"event_id"`
	TransactionID int64     `json:"transaction_id"`
	Type          string    `json:"type"`
	EmployeeID    int64     `json:"employee_id"`
	CustomerID    *int64    `json:"customer_id,omitempty"`
	PaymentMethod string    `json:"payment_method"`
	Items         []ItemEvt `json:"items"`
	Total         string    `json:"total"`
	CreditUsed    string    `json:"credit_used"`
	OccurredAt    time.Time `json:"occurred_at"`
}

type ItemEvt struct {
	ItemID int64  `json:"item_id"`
	Name   string `json:"name"`
	Qty    int    `json:"qty"`
	Price  string `json:"price"`
}

// InventoryResyncPayload tells stock holders which items moved and by how
// much. Delta is negative for Sales and Rentals and positive for Returns.
type InventoryResyncPayload struct {
	EventID       string       `json:"event_id"`
	TransactionID int64        `json:"transaction_id"`
	Items         []StockDelta `json:"items"`
}

type StockDelta struct {
	ItemID int64 `json:"item_id"`
	Delta  int   `json:"delta"`
}

func completedPayload(r checkout.Receipt) TransactionCompletedPayload {
	p := TransactionCompletedPayload{
		EventID:       uuid.NewString(),
		TransactionID: r.TransactionID,
		Type:          r.Type.String(),
		EmployeeID:    r.EmployeeID,
		CustomerID:    r.CustomerID,
		PaymentMethod: string(r.PaymentMethod),
		Items:         make([]ItemEvt, 0, len(r.Lines)),
		Total:         r.Total.StringFixed(2),
		CreditUsed:    r.CreditUsed.StringFixed(2),
		OccurredAt:    r.Timestamp.UTC(),
	}
	for _, l := range r.Lines {
		p.Items = append(p.Items, ItemEvt{ItemID: l.ItemID, Name: l.Name, Qty: l.Quantity, Price: l.Price.StringFixed(2)})
	}
	return p
}

func resyncPayload(r checkout.Receipt) InventoryResyncPayload {
	sign := -1
	if r.Type == checkout.TypeReturn {
		sign = 1
	}
	p := InventoryResyncPayload{
		EventID:       uuid.NewString(),
		TransactionID: r.TransactionID,
		Items:         make([]StockDelta, 0, len(r.Lines)),
	}
	for _, l := range r.Lines {
		p.Items = append(p.Items, StockDelta{ItemID: l.ItemID, Delta: sign * l.Quantity})
	}
	return p
}
