/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication, decoupling the
  engine's domain model from the external contract. Monetary values are
  decimal strings end to end; no floats cross the wire.

NAMING CONVENTION:
  - *DTO: response types returned to clients
  - *Request: request body types from clients

SEE ALSO:
  - handlers.go: uses these types
  - engine/types.go: the domain records these mirror
*/
package api

import (
	"time"

	"github.com/warp/incentive-engine/engine"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// SubmitDepositRequest is the deposit-intake request body.
type SubmitDepositRequest struct {
	ProcessorID   string `json:"processor_id"`
	PayerIdentity string `json:"payer_identity"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	Offer         string `json:"offer,omitempty"`
	Geo           string `json:"geo,omitempty"`
	PaymentMethod string `json:"payment_method,omitempty"`
	Notes         string `json:"notes,omitempty"`
}

// DepositDTO represents a deposit in API responses.
type DepositDTO struct {
	ID                string `json:"id"`
	ProcessorID       string `json:"processor_id"`
	PayerIdentity     string `json:"payer_identity"`
	Amount            string `json:"amount"`
	Currency          string `json:"currency"`
	CreatedAt         string `json:"created_at"`
	BonusRate         string `json:"bonus_rate"`
	BonusAmount       string `json:"bonus_amount"`
	CommissionPercent string `json:"commission_percent"`
	CommissionAmount  string `json:"commission_amount"`
	NetEarnings       string `json:"net_earnings"`
	Offer             string `json:"offer,omitempty"`
	Geo               string `json:"geo,omitempty"`
	PaymentMethod     string `json:"payment_method,omitempty"`
	Notes             string `json:"notes,omitempty"`
}

// PaymentDTO represents a bonus payment in API responses.
type PaymentDTO struct {
	ID          string `json:"id"`
	ProcessorID string `json:"processor_id"`
	Kind        string `json:"kind"`
	Amount      string `json:"amount"`
	DepositID   string `json:"deposit_id,omitempty"`
	PlanName    string `json:"plan_name,omitempty"`
	PeriodStart string `json:"period_start"`
	PeriodEnd   string `json:"period_end"`
	ShiftType   string `json:"shift_type,omitempty"`
	HoldUntil   string `json:"hold_until,omitempty"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
}

// ShiftSummaryDTO is the current-shift snapshot for one processor.
type ShiftSummaryDTO struct {
	ShiftType    string       `json:"shift_type"`
	ShiftStart   string       `json:"shift_start"`
	HasShift     bool         `json:"has_active_shift"`
	Cumulative   string       `json:"cumulative_amount"`
	BonusPercent string       `json:"bonus_percent"`
	TotalBonus   string       `json:"total_bonus"`
	Deposits     []DepositDTO `json:"deposits"`
}

// ErrorDTO is the JSON error envelope.
type ErrorDTO struct {
	Error  string          `json:"error"`
	Fields []FieldErrorDTO `json:"fields,omitempty"`
}

// FieldErrorDTO carries field-level validation detail.
type FieldErrorDTO struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func depositDTO(d *engine.Deposit) DepositDTO {
	return DepositDTO{
		ID:                string(d.ID),
		ProcessorID:       string(d.ProcessorID),
		PayerIdentity:     d.PayerIdentity,
		Amount:            d.Amount.String(),
		Currency:          d.Currency,
		CreatedAt:         d.CreatedAt.UTC().Format(time.RFC3339),
		BonusRate:         d.BonusRate.String(),
		BonusAmount:       d.BonusAmount.String(),
		CommissionPercent: d.CommissionPercent.String(),
		CommissionAmount:  d.CommissionAmount.String(),
		NetEarnings:       d.NetEarnings.String(),
		Offer:             d.Offer,
		Geo:               d.Geo,
		PaymentMethod:     d.PaymentMethod,
		Notes:             d.Notes,
	}
}

func paymentDTO(bp *engine.BonusPayment) PaymentDTO {
	dto := PaymentDTO{
		ID:          string(bp.ID),
		ProcessorID: string(bp.ProcessorID),
		Kind:        string(bp.Kind),
		Amount:      bp.Amount.String(),
		DepositID:   string(bp.DepositID),
		PlanName:    bp.PlanName,
		PeriodStart: bp.PeriodStart.UTC().Format(time.RFC3339),
		PeriodEnd:   bp.PeriodEnd.UTC().Format(time.RFC3339),
		ShiftType:   string(bp.ShiftType),
		Status:      string(bp.Status),
		CreatedAt:   bp.CreatedAt.UTC().Format(time.RFC3339),
	}
	if !bp.HoldUntil.IsZero() {
		dto.HoldUntil = bp.HoldUntil.UTC().Format(time.RFC3339)
	}
	return dto
}
