// Package receipts keeps a local journal of committed transactions so the
// cashier can list and reprint them.
package receipts

import (
	"context"
	"errors"

	"github.com/ahinestrog/mypos/internal/checkout"
)

var ErrNotFound = errors.New("receipt not found")

type Store interface {
	Save(ctx context.Context, r checkout.Receipt) error
	Get(ctx context.Context, transactionID int64) (checkout.Receipt, error)
	Recent(ctx context.Context, limit int) ([]checkout.Receipt, error)
}
