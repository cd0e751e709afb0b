package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahinestrog/mypos/internal/checkout"
	"github.com/ahinestrog/mypos/internal/httpx"
	"github.com/ahinestrog/mypos/internal/inventory"
	"github.com/ahinestrog/mypos/internal/receipts"
	"github.com/ahinestrog/mypos/internal/transaction"
)

type itemSource []checkout.Item

func (s itemSource) Items(context.Context) ([]checkout.Item, error) { return s, nil }

type memCustomers struct {
	mu     sync.Mutex
	byID   map[int64]checkout.Customer
	nextID int64
}

func (m *memCustomers) FindByPhone(_ context.Context, phone string) (*checkout.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.byID {
		if c.Phone == phone {
			return &c, nil
		}
	}
	return nil, nil
}

func (m *memCustomers) Create(_ context.Context, phone string) (checkout.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	c := checkout.Customer{ID: m.nextID, Phone: phone, StoreCredit: decimal.Zero}
	m.byID[c.ID] = c
	return c, nil
}

func (m *memCustomers) AddCredit(_ context.Context, id int64, amount decimal.Decimal) (*checkout.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.byID[id]
	c.StoreCredit = c.StoreCredit.Add(amount)
	m.byID[id] = c
	return nil, nil
}

type scriptedTxns struct {
	mu     sync.Mutex
	nextID int64
	reject string
}

func (s *scriptedTxns) Submit(_ context.Context, req checkout.TransactionRequest) (checkout.TransactionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reject != "" {
		return checkout.TransactionResult{}, &checkout.SubmissionRejectedError{Status: 400, Message: s.reject}
	}
	s.nextID++
	b := checkout.Compute(req.Lines, req.DiscountPercent, req.Type, nil, false)
	return checkout.TransactionResult{TransactionID: s.nextID, FinalTotal: b.Total}, nil
}

type fixture struct {
	srv   *Server
	h     http.Handler
	txns  *scriptedTxns
	store *receipts.SQLiteStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	txns := &scriptedTxns{nextID: 100}
	f := newFixtureWith(t, txns)
	f.txns = txns
	return f
}

func newFixtureWith(t *testing.T, txns checkout.TransactionService) *fixture {
	t.Helper()
	src := itemSource{
		{ID: 1, Name: "Claw Hammer", Price: decimal.RequireFromString("10.00"), Stock: 5, ItemType: checkout.ItemSale},
		{ID: 2, Name: "Tile Saw", Price: decimal.RequireFromString("40.00"), Stock: 1, ItemType: checkout.ItemRental},
		{ID: 3, Name: "Sledge Hammer", Price: decimal.RequireFromString("25.00"), Stock: 0, ItemType: checkout.ItemSale},
	}
	cat := inventory.NewCatalog(src)
	require.NoError(t, cat.Load(context.Background()))

	store, err := receipts.NewSQLiteStore(filepath.Join(t.TempDir(), "receipts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	srv := New(Deps{
		Catalog:   cat,
		Customers: &memCustomers{byID: map[int64]checkout.Customer{}},
		Submitter: checkout.NewSubmitter(txns, checkout.WithJournal(store), checkout.WithSyncers(cat)),
		Receipts:  store,
	})
	return &fixture{srv: srv, h: srv.Routes([]string{"*"}), store: store}
}

func (f *fixture) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var rd bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&rd).Encode(body))
	}
	req := httptest.NewRequest(method, path, &rd)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.h.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 && rec.Body.Bytes()[0] == '{' {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func (f *fixture) openSession(t *testing.T) string {
	t.Helper()
	rec, out := f.do(t, http.MethodPost, "/api/v1/sessions", map[string]any{"employee_id": 7})
	require.Equal(t, http.StatusCreated, rec.Code)
	return out["id"].(string)
}

func breakdown(out map[string]any) map[string]any { return out["breakdown"].(map[string]any) }

func TestSaleCheckoutFlow(t *testing.T) {
	f := newFixture(t)
	id := f.openSession(t)
	base := "/api/v1/sessions/" + id

	for i := 0; i < 2; i++ {
		rec, _ := f.do(t, http.MethodPost, base+"/lines", map[string]any{"item_id": 1})
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec, out := f.do(t, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "20.00", breakdown(out)["subtotal"])
	assert.Equal(t, "22.00", breakdown(out)["total"])
	assert.Equal(t, true, out["confirm"].(map[string]any)["abandon"])

	rec, out = f.do(t, http.MethodPut, base+"/context", map[string]any{"discount_percent": 10, "payment_method": "Check"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "19.80", breakdown(out)["total"])

	rec, out = f.do(t, http.MethodPost, base+"/checkout", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, float64(101), out["transaction_id"])
	assert.Equal(t, "19.80", out["total"])
	assert.Contains(t, out["text"], "Transaction #101")

	rec, out = f.do(t, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, out["lines"])
	assert.Equal(t, "Check", out["context"].(map[string]any)["payment_method"])

	rec, out = f.do(t, http.MethodGet, "/api/v1/receipts/101", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Sale", out["type"])

	rec, _ = f.do(t, http.MethodGet, "/api/v1/receipts/999", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCartRejections(t *testing.T) {
	f := newFixture(t)
	base := "/api/v1/sessions/" + f.openSession(t)

	rec, out := f.do(t, http.MethodPost, base+"/lines", map[string]any{"item_id": 3})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "out_of_stock", out["code"])

	rec, out = f.do(t, http.MethodPost, base+"/lines", map[string]any{"item_id": 99})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "unknown_item", out["code"])

	rec, out = f.do(t, http.MethodPatch, base+"/lines/1", map[string]any{"delta": 1})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "line_not_found", out["code"])

	rec, _ = f.do(t, http.MethodPost, base+"/lines", map[string]any{"item_id": 2})
	require.Equal(t, http.StatusOK, rec.Code)
	rec, out = f.do(t, http.MethodPatch, base+"/lines/2", map[string]any{"delta": 1})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "stock_limit_reached", out["code"])

	rec, out = f.do(t, http.MethodPut, base+"/context", map[string]any{"discount_percent": 120, "payment_method": "Cash"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "discount_out_of_range", out["code"])

	rec, out = f.do(t, http.MethodPost, base+"/checkout", nil)
	require.Equal(t, http.StatusCreated, rec.Code, out)

	rec, out = f.do(t, http.MethodPost, base+"/checkout", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "empty_cart", out["code"])
}

func TestRentalFlow(t *testing.T) {
	f := newFixture(t)
	base := "/api/v1/sessions/" + f.openSession(t)

	rec, _ := f.do(t, http.MethodPost, base+"/lines", map[string]any{"item_id": 1})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, out := f.do(t, http.MethodPut, base+"/type", map[string]any{"type": "Rental"})
	assert.Equal(t, http.StatusPreconditionRequired, rec.Code)
	assert.Equal(t, "confirmation_required", out["code"])

	rec, out = f.do(t, http.MethodPut, base+"/type", map[string]any{"type": "Rental", "confirm": true})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, out["lines"])

	rec, out = f.do(t, http.MethodPost, base+"/lines", map[string]any{"item_id": 1})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "type_mismatch", out["code"])

	rec, out = f.do(t, http.MethodPost, base+"/checkout", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "rental_requirements", out["code"])

	rec, _ = f.do(t, http.MethodPost, base+"/lines", map[string]any{"item_id": 2})
	require.Equal(t, http.StatusOK, rec.Code)
	rec, out = f.do(t, http.MethodPut, base+"/context", map[string]any{"due_date": "2026-11-02"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2026-11-02", out["context"].(map[string]any)["due_date"])

	rec, out = f.do(t, http.MethodPost, base+"/customer/lookup", map[string]any{"phone": "5550100"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, out["needs_create_confirmation"])

	rec, _ = f.do(t, http.MethodPost, base+"/customer", map[string]any{})
	assert.Equal(t, http.StatusPreconditionRequired, rec.Code)
	rec, out = f.do(t, http.MethodPost, base+"/customer", map[string]any{"confirm": true})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "5550100", out["context"].(map[string]any)["customer"].(map[string]any)["phone_number"])

	rec, out = f.do(t, http.MethodPost, base+"/checkout", nil)
	require.Equal(t, http.StatusCreated, rec.Code, out)
	assert.Equal(t, "Rental", out["type"])
	assert.Equal(t, "44.00", out["total"])

	// stock was resynced after the commit
	rec, _ = f.do(t, http.MethodGet, "/api/v1/items?q=saw", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestAddFundsNeedsConfirmation(t *testing.T) {
	f := newFixture(t)
	base := "/api/v1/sessions/" + f.openSession(t)

	rec, out := f.do(t, http.MethodPost, base+"/customer/credit", map[string]any{"amount": "5", "confirm": true})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "no_customer", out["code"])

	rec, _ = f.do(t, http.MethodPost, base+"/customer", map[string]any{"phone": "777", "confirm": true})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, _ = f.do(t, http.MethodPost, base+"/customer/credit", map[string]any{"amount": "5"})
	assert.Equal(t, http.StatusPreconditionRequired, rec.Code)

	rec, out = f.do(t, http.MethodPost, base+"/customer/credit", map[string]any{"amount": "-5", "confirm": true})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "invalid_credit_amount", out["code"])

	rec, out = f.do(t, http.MethodPost, base+"/customer/credit", map[string]any{"amount": "12.50", "confirm": true})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "12.50", out["context"].(map[string]any)["customer"].(map[string]any)["store_credit"])

	rec, out = f.do(t, http.MethodDelete, base+"/customer", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, out["context"].(map[string]any)["customer"])
}

func TestRejectedCheckoutKeepsCart(t *testing.T) {
	f := newFixture(t)
	f.txns.reject = "Insufficient stock"
	base := "/api/v1/sessions/" + f.openSession(t)

	rec, _ := f.do(t, http.MethodPost, base+"/lines", map[string]any{"item_id": 1})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, out := f.do(t, http.MethodPost, base+"/checkout", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "submission_rejected", out["code"])
	assert.Equal(t, "Insufficient stock", out["error"])

	rec, out = f.do(t, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, out["lines"], 1)
}

func TestContextUpdateIsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	base := "/api/v1/sessions/" + f.openSession(t)

	rec, out := f.do(t, http.MethodPut, base+"/context", map[string]any{"discount_percent": 150, "payment_method": "Check"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "discount_out_of_range", out["code"])

	rec, out = f.do(t, http.MethodPut, base+"/context", map[string]any{"discount_percent": 10, "payment_method": "Bitcoin"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "invalid_payment_method", out["code"])

	rec, out = f.do(t, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	ctx := out["context"].(map[string]any)
	assert.Equal(t, "Cash", ctx["payment_method"])
	assert.Equal(t, "0", ctx["discount_percent"])
}

func TestCheckoutSurvivesClientCancel(t *testing.T) {
	var commits atomic.Int32
	entered := make(chan struct{})
	release := make(chan struct{})
	var enterOnce, releaseOnce sync.Once
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		commits.Add(1)
		enterOnce.Do(func() { close(entered) })
		<-release
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"transaction_id":500,"final_total":11.00,"credit_used":0}`))
	}))
	defer upstream.Close()
	defer releaseOnce.Do(func() { close(release) })

	f := newFixtureWith(t, transaction.NewClient(httpx.New(upstream.URL, httpx.Options{Name: "transactions"})))
	base := "/api/v1/sessions/" + f.openSession(t)
	rec, _ := f.do(t, http.MethodPost, base+"/lines", map[string]any{"item_id": 1})
	require.Equal(t, http.StatusOK, rec.Code)

	reqCtx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodPost, base+"/checkout", nil).WithContext(reqCtx)
	rec = httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		defer close(done)
		f.h.ServeHTTP(rec, req)
	}()

	// the browser goes away after the service has the request
	<-entered
	cancel()
	releaseOnce.Do(func() { close(release) })
	<-done

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, int32(1), commits.Load())

	rec, out := f.do(t, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, out["lines"])

	rec, out = f.do(t, http.MethodPost, base+"/checkout", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "empty_cart", out["code"])
	assert.Equal(t, int32(1), commits.Load())

	_, err := f.store.Get(context.Background(), 500)
	assert.NoError(t, err)
}

func TestCheckoutInFlightIsRefused(t *testing.T) {
	f := newFixture(t)
	id := f.openSession(t)
	e, ok := f.srv.sessions.get(id)
	require.True(t, ok)
	e.busy.Store(true)

	rec, out := f.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/checkout", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "checkout_in_progress", out["code"])
}

func TestSessionLifecycle(t *testing.T) {
	f := newFixture(t)

	rec, out := f.do(t, http.MethodPost, "/api/v1/sessions", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request", out["code"])

	rec, _ = f.do(t, http.MethodGet, "/api/v1/sessions/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	id := f.openSession(t)
	base := "/api/v1/sessions/" + id
	rec, _ = f.do(t, http.MethodPost, base+"/lines", map[string]any{"item_id": 1})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = f.do(t, http.MethodPost, base+"/abandon", nil)
	assert.Equal(t, http.StatusPreconditionRequired, rec.Code)
	rec, out = f.do(t, http.MethodPost, base+"/abandon?confirm=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, out["lines"])

	rec, _ = f.do(t, http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec, _ = f.do(t, http.MethodGet, base, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestItemsAndHealth(t *testing.T) {
	f := newFixture(t)

	rec, _ := f.do(t, http.MethodGet, "/api/v1/items?q=hammer", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var items []itemView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
	require.Len(t, items, 2)
	assert.Equal(t, "10.00", items[0].Price)

	rec, out := f.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", out["status"])

	rec, _ = f.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
