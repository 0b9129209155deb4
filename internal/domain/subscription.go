/**
 * @description
 * This file defines the subscription and transaction ledger models plus the
 * checkout DTOs exchanged with the external payment processor.
 *
 * @notes
 * - A Transaction is keyed by the processor checkout session id. At most one
 *   Transaction exists per session; this is the idempotency anchor of the
 *   whole reconciliation protocol.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Subscription statuses.
const (
	SubscriptionStatusActive    = "active"
	SubscriptionStatusExpired   = "expired"
	SubscriptionStatusCancelled = "cancelled"
)

// Transaction statuses.
const (
	TransactionStatusCompleted = "completed"
	TransactionStatusFailed    = "failed"
)

// Subscription represents a buyer's time-boxed access to a group.
// Buyers are opaque Telegram user ids, not creator accounts. At most one
// active row exists per (buyer, group); re-subscribing after expiry creates
// a new row, paying while active extends the existing one.
type Subscription struct {
	ID            uuid.UUID `json:"id"`
	GroupID       uuid.UUID `json:"group_id"`
	PricingPlanID uuid.UUID `json:"pricing_plan_id"`
	BuyerID       string    `json:"buyer_id"`
	BuyerUsername string    `json:"buyer_username"`
	AmountPaid    int64     `json:"amount_paid"` // in centavos
	Status        string    `json:"status"`
	StartedAt     time.Time `json:"started_at"`
	ExpiresAt     time.Time `json:"expires_at"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Transaction is the ledger record for one reconciled payment. The creator id
// is denormalized from the subscription's group so balance aggregates stay a
// single-table read.
type Transaction struct {
	ID             uuid.UUID `json:"id"`
	SubscriptionID uuid.UUID `json:"subscription_id"`
	CreatorID      uuid.UUID `json:"creator_id"`
	SessionID      string    `json:"session_id"`
	Amount         int64     `json:"amount"`     // in centavos
	Fee            int64     `json:"fee"`        // in centavos
	NetAmount      int64     `json:"net_amount"` // amount - fee, in centavos
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}

// CreateCheckoutPayload is the DTO for starting a checkout against the
// payment processor.
type CreateCheckoutPayload struct {
	PlanID        uuid.UUID `json:"plan_id" validate:"required"`
	BuyerID       string    `json:"buyer_id" validate:"required"`
	BuyerUsername string    `json:"buyer_username"`
}

// CheckoutSession is returned to the buyer-facing client after a checkout
// session is created. Nothing is persisted until the payment is verified.
type CheckoutSession struct {
	SessionID   string `json:"session_id"`
	CheckoutURL string `json:"checkout_url"`
}

// VerifyPaymentResult reports the outcome of a verification call. Verifying
// the same paid session any number of times yields the same subscription.
type VerifyPaymentResult struct {
	Paid         bool          `json:"paid"`
	Subscription *Subscription `json:"subscription,omitempty"`
}

// SubscriptionStatus answers the buyer-facing "do I currently have access"
// question for one group. A row the background expirer has not flipped yet
// still reports inactive once its expiry has passed.
type SubscriptionStatus struct {
	Active       bool          `json:"active"`
	Subscription *Subscription `json:"subscription,omitempty"`
}
