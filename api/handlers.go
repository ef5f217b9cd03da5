/*
handlers.go - HTTP handlers for the deposit-intake surface

PURPOSE:
  Exposes the incentive engine to the surrounding admin application.
  Handles HTTP request/response and JSON serialization, delegating all
  computation to the engine.

ENDPOINTS:
  POST /api/deposits                      Submit a deposit
  GET  /api/processors/{id}/deposits      List today's deposits
  GET  /api/processors/{id}/payments      List bonus payments
  GET  /api/processors/{id}/shift         Current shift summary

ERROR HANDLING:
  - 400: validation errors, with field-level detail
  - 409: duplicate deposit
  - 503: persistent shift conflict (retry exhausted)
  - 500: everything else

SECURITY NOTE:
  No authentication here; sessions and roles belong to the surrounding
  admin application, which fronts this service.

SEE ALSO:
  - dto.go: request/response data structures
  - server.go: router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/incentive-engine/engine"
)

// PaymentLister is the read-side store surface the handlers use: the
// engine's Store plus the payment listing the admin screens need.
type PaymentLister interface {
	engine.Store
	ListPayments(ctx context.Context, p engine.ProcessorID) ([]engine.BonusPayment, error)
}

// Handler holds all dependencies for the HTTP handlers.
type Handler struct {
	Engine *engine.Engine
	Store  PaymentLister
	Ref    engine.ReferenceData
	Log    *zap.Logger
}

// NewHandler creates a handler over the engine and its store.
func NewHandler(eng *engine.Engine, store PaymentLister, ref engine.ReferenceData, log *zap.Logger) *Handler {
	return &Handler{Engine: eng, Store: store, Ref: ref, Log: log}
}

// =============================================================================
// DEPOSIT HANDLERS
// =============================================================================

// SubmitDeposit runs one submission through the engine.
func (h *Handler) SubmitDeposit(w http.ResponseWriter, r *http.Request) {
	var req SubmitDepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON body", nil)
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid submission", []FieldErrorDTO{
			{Field: "amount", Message: "must be a decimal string"},
		})
		return
	}

	deposit, err := h.Engine.Submit(r.Context(), engine.SubmitRequest{
		ProcessorID:   engine.ProcessorID(req.ProcessorID),
		PayerIdentity: req.PayerIdentity,
		Amount:        amount,
		Currency:      req.Currency,
		Offer:         req.Offer,
		Geo:           req.Geo,
		PaymentMethod: req.PaymentMethod,
		Notes:         req.Notes,
	})
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, depositDTO(deposit))
}

// ListDeposits returns the processor's deposits for the current
// accounting day.
func (h *Handler) ListDeposits(w http.ResponseWriter, r *http.Request) {
	p := engine.ProcessorID(chi.URLParam(r, "id"))
	dayStart := engine.DayStart(time.Now(), h.Ref.DayStartHour())

	deposits, err := h.Store.DepositsSince(r.Context(), p, dayStart)
	if err != nil {
		h.Log.Error("failed to list deposits", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list deposits", nil)
		return
	}

	dtos := make([]DepositDTO, len(deposits))
	for i := range deposits {
		dtos[i] = depositDTO(&deposits[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListPayments returns the processor's bonus payments.
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	p := engine.ProcessorID(chi.URLParam(r, "id"))

	payments, err := h.Store.ListPayments(r.Context(), p)
	if err != nil {
		h.Log.Error("failed to list payments", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list payments", nil)
		return
	}

	dtos := make([]PaymentDTO, len(payments))
	for i := range payments {
		dtos[i] = paymentDTO(&payments[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ShiftSummary returns the processor's current shift snapshot: the
// cumulative amount, the applied tier and the shift-level bonus total.
func (h *Handler) ShiftSummary(w http.ResponseWriter, r *http.Request) {
	p := engine.ProcessorID(chi.URLParam(r, "id"))
	now := time.Now()

	shift, err := h.Store.ActiveShift(r.Context(), p)
	if err != nil {
		h.Log.Error("failed to load active shift", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load shift", nil)
		return
	}

	dayStart := engine.DayStart(now, h.Ref.DayStartHour())
	windowStart := dayStart
	shiftType := h.shiftTypeAt(now)
	if shift != nil {
		windowStart = shift.Start()
		shiftType = shift.Type
	}

	deposits, err := h.Store.DepositsSince(r.Context(), p, windowStart)
	if err != nil {
		h.Log.Error("failed to load shift deposits", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load deposits", nil)
		return
	}

	cumulative := decimal.Zero
	dtos := make([]DepositDTO, len(deposits))
	for i := range deposits {
		cumulative = cumulative.Add(deposits[i].Amount)
		dtos[i] = depositDTO(&deposits[i])
	}

	summary := ShiftSummaryDTO{
		ShiftType:    string(shiftType),
		ShiftStart:   windowStart.UTC().Format(time.RFC3339),
		HasShift:     shift != nil,
		Cumulative:   cumulative.String(),
		BonusPercent: "0",
		TotalBonus:   "0",
		Deposits:     dtos,
	}
	if tier, ok := engine.SelectTier(h.Ref.Tiers(shiftType), shiftType, cumulative); ok {
		summary.BonusPercent = tier.Percent.String()
		summary.TotalBonus = engine.ShiftBonus(tier, cumulative).String()
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) shiftTypeAt(now time.Time) engine.ShiftType {
	hour := now.Hour()
	for _, w := range h.Ref.ShiftWindows() {
		if w.Contains(hour) {
			return w.Type
		}
	}
	return h.Ref.DefaultShiftType()
}

// =============================================================================
// ERROR/RESPONSE HELPERS
// =============================================================================

func (h *Handler) writeEngineError(w http.ResponseWriter, err error) {
	var verr *engine.ValidationError
	if errors.As(err, &verr) {
		fields := make([]FieldErrorDTO, len(verr.Fields))
		for i, f := range verr.Fields {
			fields[i] = FieldErrorDTO{Field: f.Field, Message: f.Message}
		}
		writeError(w, http.StatusBadRequest, "invalid submission", fields)
		return
	}
	if errors.Is(err, engine.ErrDuplicateDeposit) {
		writeError(w, http.StatusConflict, err.Error(), nil)
		return
	}
	if engine.IsRetryable(err) {
		writeError(w, http.StatusServiceUnavailable, "shift busy, retry the submission", nil)
		return
	}
	h.Log.Error("deposit submission failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "deposit submission failed", nil)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string, fields []FieldErrorDTO) {
	writeJSON(w, status, ErrorDTO{Error: msg, Fields: fields})
}
