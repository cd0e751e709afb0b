package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

type TransactionRequest struct {
	EmployeeID      int64
	CustomerID      *int64
	Lines           []CartLine
	Type            TransactionType
	DueDate         *time.Time
	PaymentMethod   PaymentMethod
	UseCredit       bool
	DiscountPercent decimal.Decimal
}

// TransactionResult is authoritative: FinalTotal is what gets recorded.
type TransactionResult struct {
	TransactionID int64
	FinalTotal    decimal.Decimal
	CreditUsed    decimal.Decimal
}

// TransactionService commits a Sale, Rental or Return. A refusal by the
// server must be reported as *SubmissionRejectedError; any other error is
// treated as a transport failure.
type TransactionService interface {
	Submit(ctx context.Context, req TransactionRequest) (TransactionResult, error)
}

// InventorySyncer is told about every committed transaction so that stock
// figures held outside the service can be refreshed.
type InventorySyncer interface {
	Resync(ctx context.Context, r Receipt) error
}

type ReceiptJournal interface {
	Save(ctx context.Context, r Receipt) error
}

type Submitter struct {
	txns    TransactionService
	syncers []InventorySyncer
	journal ReceiptJournal
	now     func() time.Time
}

type SubmitterOption func(*Submitter)

func WithSyncers(s ...InventorySyncer) SubmitterOption {
	return func(sub *Submitter) { sub.syncers = append(sub.syncers, s...) }
}

func WithJournal(j ReceiptJournal) SubmitterOption {
	return func(sub *Submitter) { sub.journal = j }
}

func WithClock(now func() time.Time) SubmitterOption {
	return func(sub *Submitter) { sub.now = now }
}

func NewSubmitter(txns TransactionService, opts ...SubmitterOption) *Submitter {
	s := &Submitter{txns: txns, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Submit posts the transaction once. It never retries: on failure the cart
// and context are left exactly as they were so the cashier can fix and
// resubmit. On success both are reset and a Receipt is returned.
//
// Cancelling ctx does not abort a submission already on the wire; only the
// transaction service's own timeout bounds it.
func (s *Submitter) Submit(ctx context.Context, cart *Cart, c *Context, b Breakdown, employeeID int64) (Receipt, error) {
	if err := Validate(cart, *c); err != nil {
		return Receipt{}, err
	}
	ctx = context.WithoutCancel(ctx)

	lines := cart.Lines()
	req := TransactionRequest{
		EmployeeID:      employeeID,
		Lines:           lines,
		Type:            c.Type,
		PaymentMethod:   c.PaymentMethod,
		UseCredit:       c.ApplyCredit,
		DiscountPercent: c.DiscountPercent,
	}
	if c.Customer != nil {
		id := c.Customer.ID
		req.CustomerID = &id
	}
	if c.Type == TypeRental {
		req.DueDate = c.DueDate
	}

	res, err := s.txns.Submit(ctx, req)
	if err != nil {
		var rej *SubmissionRejectedError
		if errors.As(err, &rej) {
			log.Warn().Int("status", rej.Status).Str("reason", rej.Message).Msg("checkout: rejected")
			return Receipt{}, err
		}
		log.Error().Err(err).Msg("checkout: transport failure")
		return Receipt{}, fmt.Errorf("%w: %w", ErrTransportFailure, err)
	}

	r := Receipt{
		TransactionID: res.TransactionID,
		Timestamp:     s.now(),
		Type:          c.Type,
		EmployeeID:    employeeID,
		CustomerID:    req.CustomerID,
		PaymentMethod: c.PaymentMethod,
		Lines:         lines,
		Total:         res.FinalTotal,
		CreditUsed:    res.CreditUsed,
		Breakdown:     b,
	}
	if !res.FinalTotal.Abs().Equal(b.Total) {
		log.Warn().
			Int64("txn", r.TransactionID).
			Str("local", b.Total.StringFixed(2)).
			Str("server", res.FinalTotal.StringFixed(2)).
			Msg("checkout: server total differs from local breakdown")
	}
	log.Info().Int64("txn", r.TransactionID).Str("type", r.Type.String()).Int("lines", len(lines)).Msg("checkout: committed")

	cart.Clear()
	c.reset()

	s.afterCommit(ctx, r)
	return r, nil
}

// afterCommit runs the post-commit hooks. The transaction is already
// recorded server-side, so failures here are only logged.
func (s *Submitter) afterCommit(ctx context.Context, r Receipt) {
	if s.journal != nil {
		if err := s.journal.Save(ctx, r); err != nil {
			log.Error().Err(err).Int64("txn", r.TransactionID).Msg("checkout: journal save failed")
		}
	}
	for _, sy := range s.syncers {
		if err := sy.Resync(ctx, r); err != nil {
			log.Warn().Err(err).Int64("txn", r.TransactionID).Msg("checkout: inventory resync failed")
		}
	}
}
