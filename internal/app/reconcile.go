/**
 * @description
 * Payment verification and reconciliation. VerifyPayment is the single entry
 * point that turns a checkout session id into ledger state; it is safe to
 * call any number of times for the same session and safe to call
 * concurrently.
 *
 * The flow is deliberately split in two phases:
 *  1. Outside any database transaction: re-fetch the session from the
 *     processor (callbacks are never trusted) and resolve the plan it was
 *     sold against. No ledger locks are held during these network calls.
 *  2. Inside one database transaction: ReconcilePayment inserts or extends
 *     the subscription and writes the transaction row keyed by session id.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/televip/billing-service/internal/domain"
	"github.com/televip/billing-service/internal/store"
	"github.com/televip/billing-service/pkg/rabbitmq"
)

// ErrSessionUnpaid is returned when the processor reports the session as not
// yet settled. Callers should treat it as "try again later", not a failure.
var ErrSessionUnpaid = errors.New("checkout session is not paid")

// ErrSessionMetadata is returned when a paid session is missing or carries
// malformed checkout metadata. This indicates a bug in checkout creation and
// needs an operator, so it is kept distinct from transient errors.
var ErrSessionMetadata = errors.New("checkout session metadata is invalid")

// PlatformFee computes the platform's cut of a payment in basis points,
// rounding half up so the split is deterministic across runs. The remainder
// (the creator's net) is always amount - fee.
func PlatformFee(amount, feeBps int64) int64 {
	return (amount*feeBps + 5000) / 10000
}

// VerifyPayment re-fetches the checkout session from the processor and, if
// it is paid, reconciles it into the ledger. The returned subscription is
// identical for the first and every subsequent call with the same session.
func (s *Service) VerifyPayment(ctx context.Context, sessionID string) (*domain.VerifyPaymentResult, error) {
	// Fast path: already reconciled sessions skip the processor round trip.
	if tr, err := s.repo.FindTransactionBySessionID(ctx, sessionID); err == nil {
		sub, subErr := s.repo.FindSubscriptionByID(ctx, tr.SubscriptionID)
		if subErr != nil {
			return nil, subErr
		}
		return &domain.VerifyPaymentResult{Paid: true, Subscription: sub}, nil
	} else if !errors.Is(err, store.ErrTransactionNotFound) {
		return nil, err
	}

	session, err := s.paymentsClient.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch checkout session: %w", err)
	}
	if !session.Paid() {
		return &domain.VerifyPaymentResult{Paid: false}, ErrSessionUnpaid
	}

	planID, buyerID, buyerUsername, err := checkoutMetadata(session.Data.Metadata)
	if err != nil {
		return nil, err
	}

	// The plan is resolved before the ledger transaction so no lock is held
	// across this read. An inactive plan still reconciles: the buyer already
	// paid for it.
	plan, err := s.repo.ResolvePlan(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve plan for paid session %s: %w", sessionID, err)
	}

	amount := session.Data.AmountTotal
	fee := PlatformFee(amount, s.feeBps)
	sub, tr, err := s.repo.ReconcilePayment(ctx, store.ReconcilePaymentParams{
		SessionID:      sessionID,
		BuyerID:        buyerID,
		BuyerUsername:  buyerUsername,
		PlanID:         plan.PlanID,
		GroupID:        plan.GroupID,
		CreatorID:      plan.CreatorID,
		DurationMonths: plan.DurationMonths,
		Amount:         amount,
		Fee:            fee,
		NetAmount:      amount - fee,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to reconcile payment for session %s: %w", sessionID, err)
	}

	log.Printf("level=info component=service msg=\"payment reconciled\" session_id=%s subscription_id=%s amount=%d fee=%d", sessionID, sub.ID, tr.Amount, tr.Fee)

	if s.eventProducer != nil {
		event := domain.SubscriptionActivatedEvent{
			SubscriptionID: sub.ID,
			GroupID:        sub.GroupID,
			CreatorID:      tr.CreatorID,
			BuyerID:        sub.BuyerID,
			SessionID:      sessionID,
			Amount:         tr.Amount,
			NetAmount:      tr.NetAmount,
			ExpiresAt:      sub.ExpiresAt,
			Timestamp:      time.Now().UTC(),
		}
		if err := s.eventProducer.Publish(ctx, rabbitmq.BillingExchange, rabbitmq.RoutingKeySubscriptionActivated, event); err != nil {
			log.Printf("level=warn component=service msg=\"failed to publish subscription.activated\" session_id=%s err=%v", sessionID, err)
			// The ledger write already committed; event delivery is best effort.
		}
	}

	return &domain.VerifyPaymentResult{Paid: true, Subscription: sub}, nil
}

// checkoutMetadata extracts the identifiers stamped onto the session at
// checkout creation time.
func checkoutMetadata(metadata map[string]string) (planID uuid.UUID, buyerID, buyerUsername string, err error) {
	rawPlanID, ok := metadata["plan_id"]
	if !ok {
		return uuid.Nil, "", "", fmt.Errorf("%w: missing plan_id", ErrSessionMetadata)
	}
	planID, err = uuid.Parse(rawPlanID)
	if err != nil {
		return uuid.Nil, "", "", fmt.Errorf("%w: bad plan_id %q", ErrSessionMetadata, rawPlanID)
	}

	buyerID, ok = metadata["buyer_id"]
	if !ok || buyerID == "" {
		return uuid.Nil, "", "", fmt.Errorf("%w: missing buyer_id", ErrSessionMetadata)
	}

	return planID, buyerID, metadata["buyer_username"], nil
}
