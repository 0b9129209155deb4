/**
 * @description
 * This file defines the withdrawal ledger model and the pure state-machine
 * helper used when applying administrative decisions.
 *
 * State machine: pending -> completed, pending -> rejected. Both terminal
 * states are immutable; repeating the decision that already took effect is a
 * no-op rather than an error.
 */

package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Withdrawal statuses.
const (
	WithdrawalStatusPending   = "pending"
	WithdrawalStatusCompleted = "completed"
	WithdrawalStatusRejected  = "rejected"
)

// Withdrawal decisions accepted from administrators.
const (
	WithdrawalDecisionApprove = "approve"
	WithdrawalDecisionReject  = "reject"
)

// ErrInvalidWithdrawalDecision is returned for a decision outside
// {approve, reject}.
var ErrInvalidWithdrawalDecision = errors.New("invalid withdrawal decision")

// ErrWithdrawalDecisionConflict is returned when a decision targets a
// withdrawal already settled with a different outcome.
var ErrWithdrawalDecisionConflict = errors.New("withdrawal already decided")

// Withdrawal represents a creator's payout request. Pending withdrawals
// already count against the available balance, so two requests can never
// jointly overdraw it.
type Withdrawal struct {
	ID        uuid.UUID `json:"id"`
	CreatorID uuid.UUID `json:"creator_id"`
	Amount    int64     `json:"amount"` // in centavos
	PayoutKey string    `json:"payout_key"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PendingWithdrawal is the admin review read model: a pending withdrawal with
// the requesting creator's identity attached.
type PendingWithdrawal struct {
	Withdrawal
	CreatorName  string `json:"creator_name"`
	CreatorEmail string `json:"creator_email"`
}

// RequestWithdrawalPayload is the DTO for a creator's payout request.
type RequestWithdrawalPayload struct {
	Amount    int64  `json:"amount" validate:"required,gt=0"` // in centavos
	PayoutKey string `json:"payout_key" validate:"required"`
}

// DecideWithdrawalPayload is the DTO for an administrator's decision.
type DecideWithdrawalPayload struct {
	Decision string `json:"decision" validate:"required,oneof=approve reject"`
}

// WithdrawalStatusForDecision maps an admin decision to the terminal status
// it produces.
func WithdrawalStatusForDecision(decision string) (string, error) {
	switch decision {
	case WithdrawalDecisionApprove:
		return WithdrawalStatusCompleted, nil
	case WithdrawalDecisionReject:
		return WithdrawalStatusRejected, nil
	default:
		return "", ErrInvalidWithdrawalDecision
	}
}

// ResolveWithdrawalDecision inspects a withdrawal that was already out of the
// pending state when a decision arrived. A repeated identical decision is
// reported as a no-op; anything else is a conflict.
func ResolveWithdrawalDecision(currentStatus, decidedStatus string) (noop bool, err error) {
	if currentStatus == decidedStatus {
		return true, nil
	}
	return false, ErrWithdrawalDecisionConflict
}
