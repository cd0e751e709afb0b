package receipts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite" // driver 100% Go

	"github.com/ahinestrog/mypos/internal/checkout"
)

// SQLiteStore persists receipts with money stored as decimal text.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func migrate(db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS receipts(
  transaction_id INTEGER PRIMARY KEY,
  created_unix INTEGER NOT NULL,
  type TEXT NOT NULL,
  employee_id INTEGER NOT NULL,
  customer_id INTEGER,
  payment_method TEXT NOT NULL,
  total TEXT NOT NULL,
  credit_used TEXT NOT NULL,
  subtotal TEXT NOT NULL,
  discount TEXT NOT NULL,
  tax TEXT NOT NULL,
  credit_applied TEXT NOT NULL,
  local_total TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS receipt_lines(
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  transaction_id INTEGER NOT NULL,
  item_id INTEGER NOT NULL,
  name TEXT NOT NULL,
  qty INTEGER NOT NULL,
  price TEXT NOT NULL,
  FOREIGN KEY(transaction_id) REFERENCES receipts(transaction_id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_receipts_created ON receipts(created_unix);
CREATE INDEX IF NOT EXISTS idx_lines_txn ON receipt_lines(transaction_id);
`
	_, err := db.Exec(schema)
	return err
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

// Save stores r, replacing any earlier copy with the same transaction id.
func (s *SQLiteStore) Save(ctx context.Context, r checkout.Receipt) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM receipts WHERE transaction_id=?`, r.TransactionID); err != nil {
		return err
	}

	var customerID sql.NullInt64
	if r.CustomerID != nil {
		customerID = sql.NullInt64{Int64: *r.CustomerID, Valid: true}
	}
	b := r.Breakdown
	if _, err := tx.ExecContext(ctx, `
  INSERT INTO receipts(transaction_id, created_unix, type, employee_id, customer_id, payment_method,
    total, credit_used, subtotal, discount, tax, credit_applied, local_total)
  VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		r.TransactionID, r.Timestamp.Unix(), r.Type.String(), r.EmployeeID, customerID, string(r.PaymentMethod),
		r.Total.String(), r.CreditUsed.String(), b.Subtotal.String(), b.DiscountAmount.String(),
		b.Tax.String(), b.CreditApplied.String(), b.Total.String()); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
  INSERT INTO receipt_lines(transaction_id, item_id, name, qty, price)
  VALUES(?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, l := range r.Lines {
		if _, err := stmt.ExecContext(ctx, r.TransactionID, l.ItemID, l.Name, l.Quantity, l.Price.String()); err != nil {
			return err
		}
	}
	return tx.Commit()
}

const receiptColumns = `transaction_id, created_unix, type, employee_id, customer_id, payment_method,
    total, credit_used, subtotal, discount, tax, credit_applied, local_total`

func (s *SQLiteStore) Get(ctx context.Context, transactionID int64) (checkout.Receipt, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+receiptColumns+` FROM receipts WHERE transaction_id=?`, transactionID)
	r, err := scanReceipt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return checkout.Receipt{}, fmt.Errorf("%w: %d", ErrNotFound, transactionID)
	}
	if err != nil {
		return checkout.Receipt{}, err
	}
	if r.Lines, err = s.listLines(ctx, transactionID); err != nil {
		return checkout.Receipt{}, err
	}
	return r, nil
}

// Recent returns the newest receipts first.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]checkout.Receipt, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+receiptColumns+` FROM receipts ORDER BY created_unix DESC, transaction_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	var out []checkout.Receipt
	for rows.Next() {
		r, err := scanReceipt(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range out {
		if out[i].Lines, err = s.listLines(ctx, out[i].TransactionID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *SQLiteStore) listLines(ctx context.Context, transactionID int64) ([]checkout.CartLine, error) {
	rows, err := s.db.QueryContext(ctx, `
    SELECT item_id, name, qty, price
    FROM receipt_lines WHERE transaction_id=? ORDER BY id`, transactionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []checkout.CartLine
	for rows.Next() {
		var (
			l     checkout.CartLine
			price string
		)
		if err := rows.Scan(&l.ItemID, &l.Name, &l.Quantity, &price); err != nil {
			return nil, err
		}
		if l.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("line price: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReceipt(sc scanner) (checkout.Receipt, error) {
	var (
		r                 checkout.Receipt
		created           int64
		typ, pm           string
		customerID        sql.NullInt64
		total, creditUsed string
		sub, disc, tax    string
		credit, local     string
	)
	if err := sc.Scan(&r.TransactionID, &created, &typ, &r.EmployeeID, &customerID, &pm,
		&total, &creditUsed, &sub, &disc, &tax, &credit, &local); err != nil {
		return checkout.Receipt{}, err
	}
	r.Timestamp = time.Unix(created, 0)
	r.PaymentMethod = checkout.PaymentMethod(pm)
	if customerID.Valid {
		id := customerID.Int64
		r.CustomerID = &id
	}
	t, err := checkout.ParseTransactionType(typ)
	if err != nil {
		return checkout.Receipt{}, err
	}
	r.Type = t

	dst := []*decimal.Decimal{
		&r.Total, &r.CreditUsed, &r.Breakdown.Subtotal, &r.Breakdown.DiscountAmount,
		&r.Breakdown.Tax, &r.Breakdown.CreditApplied, &r.Breakdown.Total,
	}
	for i, s := range []string{total, creditUsed, sub, disc, tax, credit, local} {
		v, err := decimal.NewFromString(s)
		if err != nil {
			return checkout.Receipt{}, fmt.Errorf("receipt %d: %w", r.TransactionID, err)
		}
		*dst[i] = v
	}
	b := &r.Breakdown
	b.AfterDiscount = b.Subtotal.Sub(b.DiscountAmount)
	b.TotalBeforeCredit = b.AfterDiscount.Add(b.Tax)
	return r, nil
}
