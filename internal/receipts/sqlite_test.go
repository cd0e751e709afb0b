package receipts

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahinestrog/mypos/internal/checkout"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "receipts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleReceipt(id int64, at time.Time) checkout.Receipt {
	lines := []checkout.CartLine{
		{ItemID: 1, Name: "Claw Hammer", Price: decimal.RequireFromString("12.50"), Quantity: 2},
		{ItemID: 5, Name: "Nails 1lb", Price: decimal.RequireFromString("3.99"), Quantity: 1},
	}
	cid := int64(8)
	return checkout.Receipt{
		TransactionID: id,
		Timestamp:     at,
		Type:          checkout.TypeSale,
		EmployeeID:    3,
		CustomerID:    &cid,
		PaymentMethod: checkout.PaymentCash,
		Lines:         lines,
		Total:         decimal.RequireFromString("30.14"),
		CreditUsed:    decimal.RequireFromString("1.00"),
		Breakdown:     checkout.Compute(lines, decimal.Zero, checkout.TypeSale, &checkout.Customer{ID: 8, StoreCredit: decimal.NewFromInt(1)}, true),
	}
}

func TestSQLiteStore_SaveGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	at := time.Date(2026, 2, 2, 10, 30, 0, 0, time.UTC)
	want := sampleReceipt(31, at)

	require.NoError(t, s.Save(ctx, want))
	got, err := s.Get(ctx, 31)
	require.NoError(t, err)

	assert.Equal(t, want.TransactionID, got.TransactionID)
	assert.True(t, at.Equal(got.Timestamp))
	assert.Equal(t, checkout.TypeSale, got.Type)
	assert.Equal(t, int64(8), *got.CustomerID)
	assert.Equal(t, checkout.PaymentCash, got.PaymentMethod)
	assert.True(t, want.Total.Equal(got.Total))
	assert.True(t, want.CreditUsed.Equal(got.CreditUsed))
	assert.True(t, want.Breakdown.Total.Equal(got.Breakdown.Total))
	assert.True(t, want.Breakdown.TotalBeforeCredit.Equal(got.Breakdown.TotalBeforeCredit))
	require.Len(t, got.Lines, 2)
	assert.Equal(t, "Claw Hammer", got.Lines[0].Name)
	assert.Equal(t, "3.99", got.Lines[1].Price.StringFixed(2))
}

func TestSQLiteStore_GetMissing(t *testing.T) {
	_, err := newTestStore(t).Get(context.Background(), 404)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_SaveReplaces(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	r := sampleReceipt(1, time.Now())
	require.NoError(t, s.Save(ctx, r))

	r.Lines = r.Lines[:1]
	r.CustomerID = nil
	require.NoError(t, s.Save(ctx, r))

	got, err := s.Get(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, got.Lines, 1)
	assert.Nil(t, got.CustomerID)
}

func TestSQLiteStore_Recent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 2, 2, 10, 0, 0, 0, time.UTC)
	for i := int64(1); i <= 5; i++ {
		require.NoError(t, s.Save(ctx, sampleReceipt(i, base.Add(time.Duration(i)*time.Minute))))
	}

	got, err := s.Recent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []int64{5, 4, 3}, []int64{got[0].TransactionID, got[1].TransactionID, got[2].TransactionID})
	assert.Len(t, got[0].Lines, 2)
}
