package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/ahinestrog/mypos/internal/checkout"
	"github.com/ahinestrog/mypos/internal/metrics"
	"github.com/ahinestrog/mypos/internal/receipts"
)

func confirmationRequired(w http.ResponseWriter, action string) {
	respondError(w, http.StatusPreconditionRequired, "confirmation_required", action+" must be confirmed")
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionReq
	if !s.decode(w, r, &req) {
		return
	}
	e := s.sessions.create(req.EmployeeID)
	log.Info().Str("session", e.sess.ID).Int64("employee", req.EmployeeID).Msg("session opened")
	respondJSON(w, http.StatusCreated, toSession(e.sess))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request, sess *checkout.Session) {
	respondJSON(w, http.StatusOK, toSession(sess))
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	e, ok := s.sessions.get(id)
	if !ok {
		respondError(w, http.StatusNotFound, "session_not_found", "session not found")
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sess.RequiresConfirmation(checkout.ActionAbandon) && r.URL.Query().Get("confirm") != "true" {
		confirmationRequired(w, "abandon")
		return
	}
	s.sessions.remove(id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAbandon(w http.ResponseWriter, r *http.Request, sess *checkout.Session) {
	if sess.RequiresConfirmation(checkout.ActionAbandon) && r.URL.Query().Get("confirm") != "true" {
		confirmationRequired(w, "abandon")
		return
	}
	sess.Reset()
	respondJSON(w, http.StatusOK, toSession(sess))
}

func (s *Server) handleSetType(w http.ResponseWriter, r *http.Request, sess *checkout.Session) {
	var req setTypeReq
	if !s.decode(w, r, &req) {
		return
	}
	t, err := checkout.ParseTransactionType(req.Type)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if t != sess.Context().Type && sess.RequiresConfirmation(checkout.ActionChangeType) && !req.Confirm {
		confirmationRequired(w, "type change")
		return
	}
	sess.SetType(t)
	respondJSON(w, http.StatusOK, toSession(sess))
}

func (s *Server) handleAddLine(w http.ResponseWriter, r *http.Request, sess *checkout.Session) {
	var req addLineReq
	if !s.decode(w, r, &req) {
		return
	}
	if err := sess.Add(req.ItemID); err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toSession(sess))
}

func (s *Server) handleAdjustLine(w http.ResponseWriter, r *http.Request, sess *checkout.Session) {
	itemID, err := strconv.ParseInt(chi.URLParam(r, "itemID"), 10, 64)
	if err != nil || itemID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_item_id", "item id must be a positive integer")
		return
	}
	var req adjustLineReq
	if !s.decode(w, r, &req) {
		return
	}
	if err := sess.Adjust(itemID, req.Delta); err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toSession(sess))
}

func (s *Server) handleClearLines(w http.ResponseWriter, r *http.Request, sess *checkout.Session) {
	sess.ClearCart()
	respondJSON(w, http.StatusOK, toSession(sess))
}

// handleSetContext applies every present field or none of them.
func (s *Server) handleSetContext(w http.ResponseWriter, r *http.Request, sess *checkout.Session) {
	var req contextReq
	if !s.decode(w, r, &req) {
		return
	}
	if req.DiscountPercent != nil && (req.DiscountPercent.IsNegative() || req.DiscountPercent.GreaterThan(decimal.NewFromInt(100))) {
		respondEngineError(w, checkout.ErrDiscountOutOfRange)
		return
	}
	if req.PaymentMethod != nil && !checkout.PaymentMethod(*req.PaymentMethod).Valid() {
		respondEngineError(w, checkout.ErrInvalidPayment)
		return
	}
	var due *time.Time
	if req.DueDate != nil {
		d, err := time.ParseInLocation(dateLayout, *req.DueDate, time.Local)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_request", "due_date must be YYYY-MM-DD")
			return
		}
		due = &d
	}

	if req.DiscountPercent != nil {
		if err := sess.SetDiscount(*req.DiscountPercent); err != nil {
			respondEngineError(w, err)
			return
		}
	}
	if req.PaymentMethod != nil {
		if err := sess.SetPaymentMethod(checkout.PaymentMethod(*req.PaymentMethod)); err != nil {
			respondEngineError(w, err)
			return
		}
	}
	switch {
	case due != nil:
		sess.SetDueDate(due)
	case req.ClearDueDate:
		sess.SetDueDate(nil)
	}
	if req.ApplyCredit != nil {
		sess.SetApplyCredit(*req.ApplyCredit)
	}
	respondJSON(w, http.StatusOK, toSession(sess))
}

func (s *Server) handleLookupCustomer(w http.ResponseWriter, r *http.Request, sess *checkout.Session) {
	var req lookupReq
	if !s.decode(w, r, &req) {
		return
	}
	res, err := sess.LookupCustomer(r.Context(), s.deps.Customers, req.Phone)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, lookupView{
		Found:                   res.Found(),
		NeedsCreateConfirmation: res.NeedsCreateConfirmation(),
		Customer:                toCustomer(res.Customer),
	})
}

func (s *Server) handleCreateCustomer(w http.ResponseWriter, r *http.Request, sess *checkout.Session) {
	var req createCustomerReq
	if !s.decode(w, r, &req) {
		return
	}
	if sess.RequiresConfirmation(checkout.ActionCreateCustomer) && !req.Confirm {
		confirmationRequired(w, "customer creation")
		return
	}
	if req.Phone == "" && sess.Context().PhoneInput == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "phone is required")
		return
	}
	if _, err := sess.CreateCustomer(r.Context(), s.deps.Customers, req.Phone); err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, toSession(sess))
}

func (s *Server) handleClearCustomer(w http.ResponseWriter, r *http.Request, sess *checkout.Session) {
	sess.ClearCustomer()
	respondJSON(w, http.StatusOK, toSession(sess))
}

func (s *Server) handleAddFunds(w http.ResponseWriter, r *http.Request, sess *checkout.Session) {
	var req addFundsReq
	if !s.decode(w, r, &req) {
		return
	}
	if sess.RequiresConfirmation(checkout.ActionAddFunds) && !req.Confirm {
		confirmationRequired(w, "adding funds")
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "amount must be a decimal number")
		return
	}
	if _, err := sess.AddFunds(r.Context(), s.deps.Customers, amount); err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toSession(sess))
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	e, ok := s.sessions.get(chi.URLParam(r, "id"))
	if !ok {
		respondError(w, http.StatusNotFound, "session_not_found", "session not found")
		return
	}
	if !e.busy.CompareAndSwap(false, true) {
		respondError(w, http.StatusConflict, "checkout_in_progress", "a checkout is already being submitted")
		return
	}
	defer e.busy.Store(false)
	e.mu.Lock()
	defer e.mu.Unlock()

	typ := e.sess.Context().Type.String()
	start := time.Now()
	rec, err := e.sess.Checkout(r.Context(), s.deps.Submitter)
	metrics.CheckoutSubmitSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.Checkouts.WithLabelValues(typ, checkoutOutcome(err)).Inc()
		respondEngineError(w, err)
		return
	}
	metrics.Checkouts.WithLabelValues(typ, metrics.OutcomeCommitted).Inc()
	respondJSON(w, http.StatusCreated, toReceipt(rec))
}

func checkoutOutcome(err error) string {
	switch {
	case errors.Is(err, checkout.ErrSubmissionRejected):
		return metrics.OutcomeRejected
	case errors.Is(err, checkout.ErrTransportFailure):
		return metrics.OutcomeTransport
	}
	return metrics.OutcomeInvalid
}

func (s *Server) handleSearchItems(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, toItems(s.deps.Catalog.Search(r.URL.Query().Get("q"))))
}

func (s *Server) handleRefreshItems(w http.ResponseWriter, r *http.Request) {
	snap, err := s.deps.Catalog.Refresh(r.Context())
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toItems(snap.Items()))
}

func (s *Server) handleListReceipts(w http.ResponseWriter, r *http.Request) {
	if s.deps.Receipts == nil {
		respondJSON(w, http.StatusOK, []receiptView{})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	list, err := s.deps.Receipts.Recent(r.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("list receipts")
		respondError(w, http.StatusInternalServerError, "internal_error", "could not read receipts")
		return
	}
	out := make([]receiptView, 0, len(list))
	for _, rec := range list {
		out = append(out, toReceipt(rec))
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetReceipt(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "txnID"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "transaction id must be an integer")
		return
	}
	if s.deps.Receipts == nil {
		respondError(w, http.StatusNotFound, "receipt_not_found", "receipt not found")
		return
	}
	rec, err := s.deps.Receipts.Get(r.Context(), id)
	if errors.Is(err, receipts.ErrNotFound) {
		respondError(w, http.StatusNotFound, "receipt_not_found", "receipt not found")
		return
	}
	if err != nil {
		log.Error().Err(err).Int64("txn", id).Msg("get receipt")
		respondError(w, http.StatusInternalServerError, "internal_error", "could not read receipt")
		return
	}
	respondJSON(w, http.StatusOK, toReceipt(rec))
}
