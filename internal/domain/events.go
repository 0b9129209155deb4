/**
 * @description
 * Event payloads published to the message broker when ledger state changes,
 * and the processor callback event consumed to trigger verification.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// SubscriptionActivatedEvent is published after a payment is reconciled into
// a subscription and transaction pair.
type SubscriptionActivatedEvent struct {
	SubscriptionID uuid.UUID `json:"subscription_id"`
	GroupID        uuid.UUID `json:"group_id"`
	CreatorID      uuid.UUID `json:"creator_id"`
	BuyerID        string    `json:"buyer_id"`
	SessionID      string    `json:"session_id"`
	Amount         int64     `json:"amount"`     // in centavos
	NetAmount      int64     `json:"net_amount"` // in centavos
	ExpiresAt      time.Time `json:"expires_at"`
	Timestamp      time.Time `json:"timestamp"`
}

// WithdrawalRequestedEvent is published when a creator submits a payout
// request.
type WithdrawalRequestedEvent struct {
	WithdrawalID uuid.UUID `json:"withdrawal_id"`
	CreatorID    uuid.UUID `json:"creator_id"`
	Amount       int64     `json:"amount"` // in centavos
	Timestamp    time.Time `json:"timestamp"`
}

// WithdrawalDecidedEvent is published when an administrator settles a payout
// request.
type WithdrawalDecidedEvent struct {
	WithdrawalID uuid.UUID `json:"withdrawal_id"`
	CreatorID    uuid.UUID `json:"creator_id"`
	Amount       int64     `json:"amount"` // in centavos
	Status       string    `json:"status"`
	Timestamp    time.Time `json:"timestamp"`
}

// CheckoutSessionCompletedEvent is the processor callback payload consumed
// from the broker. Only the session id is trusted; everything else is
// re-fetched from the processor during verification.
type CheckoutSessionCompletedEvent struct {
	SessionID string `json:"session_id"`
}
