/**
 * @description
 * The withdrawal workflow: creators request payouts against their available
 * balance, administrators approve or reject them. The balance check and the
 * pending insert happen atomically in the store; this file adds rate
 * limiting, event publication and the decision state machine on top.
 */

package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/televip/billing-service/internal/domain"
	"github.com/televip/billing-service/pkg/rabbitmq"
)

// RateLimitedError is returned when a creator exceeds the withdrawal request
// window. RetryAfterSeconds feeds the Retry-After response header.
type RateLimitedError struct {
	RetryAfterSeconds int
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("too many withdrawal requests, retry in %ds", e.RetryAfterSeconds)
}

// GetAvailableBalance returns what the creator could withdraw right now:
// completed net earnings minus pending and completed withdrawals.
func (s *Service) GetAvailableBalance(ctx context.Context, creatorID uuid.UUID) (int64, error) {
	if _, err := s.repo.FindCreatorByID(ctx, creatorID); err != nil {
		return 0, err
	}
	return s.repo.AvailableBalance(ctx, creatorID)
}

// RequestWithdrawal creates a pending payout request for the creator. The
// store enforces the balance invariant under a row lock; a request that
// passes here can never overdraw even against concurrent requests.
func (s *Service) RequestWithdrawal(ctx context.Context, creatorID uuid.UUID, payload domain.RequestWithdrawalPayload) (*domain.Withdrawal, error) {
	if s.rateLimiter != nil {
		count, retryAfter, err := s.rateLimiter.ConsumeRateLimit(ctx, rateLimitScopeWithdrawal, creatorID.String(), WithdrawalRateLimit, WithdrawalRateWindow)
		if err != nil {
			log.Printf("level=warn component=service msg=\"withdrawal rate limiter unavailable\" creator_id=%s err=%v", creatorID, err)
			// Fail open: the ledger invariant does not depend on the limiter.
		} else if count > WithdrawalRateLimit {
			return nil, &RateLimitedError{RetryAfterSeconds: retryAfter}
		}
	}

	withdrawal, err := s.repo.CreateWithdrawal(ctx, creatorID, payload.Amount, payload.PayoutKey)
	if err != nil {
		return nil, err
	}

	log.Printf("level=info component=service msg=\"withdrawal requested\" withdrawal_id=%s creator_id=%s amount=%d", withdrawal.ID, creatorID, withdrawal.Amount)

	if s.eventProducer != nil {
		event := domain.WithdrawalRequestedEvent{
			WithdrawalID: withdrawal.ID,
			CreatorID:    creatorID,
			Amount:       withdrawal.Amount,
			Timestamp:    time.Now().UTC(),
		}
		if err := s.eventProducer.Publish(ctx, rabbitmq.BillingExchange, rabbitmq.RoutingKeyWithdrawalRequested, event); err != nil {
			log.Printf("level=warn component=service msg=\"failed to publish withdrawal.requested\" withdrawal_id=%s err=%v", withdrawal.ID, err)
		}
	}

	return withdrawal, nil
}

// ListWithdrawals retrieves a creator's withdrawal history.
func (s *Service) ListWithdrawals(ctx context.Context, creatorID uuid.UUID) ([]domain.Withdrawal, error) {
	return s.repo.ListWithdrawalsByCreator(ctx, creatorID)
}

// ListPendingWithdrawals retrieves the admin review queue.
func (s *Service) ListPendingWithdrawals(ctx context.Context) ([]domain.PendingWithdrawal, error) {
	return s.repo.ListPendingWithdrawals(ctx)
}

// DecideWithdrawal applies an administrator's decision. Repeating the same
// decision is a no-op; a conflicting decision on a settled withdrawal fails
// without modifying it. The actual payout transfer happens out of band; an
// approval here records that the money is committed to leave the platform.
func (s *Service) DecideWithdrawal(ctx context.Context, withdrawalID uuid.UUID, payload domain.DecideWithdrawalPayload) (*domain.Withdrawal, error) {
	decidedStatus, err := domain.WithdrawalStatusForDecision(payload.Decision)
	if err != nil {
		return nil, err
	}

	withdrawal, err := s.repo.DecideWithdrawal(ctx, withdrawalID, decidedStatus)
	if err != nil {
		return nil, err
	}

	log.Printf("level=info component=service msg=\"withdrawal decided\" withdrawal_id=%s status=%s", withdrawal.ID, withdrawal.Status)

	if s.eventProducer != nil {
		event := domain.WithdrawalDecidedEvent{
			WithdrawalID: withdrawal.ID,
			CreatorID:    withdrawal.CreatorID,
			Amount:       withdrawal.Amount,
			Status:       withdrawal.Status,
			Timestamp:    time.Now().UTC(),
		}
		if err := s.eventProducer.Publish(ctx, rabbitmq.BillingExchange, rabbitmq.RoutingKeyWithdrawalDecided, event); err != nil {
			log.Printf("level=warn component=service msg=\"failed to publish withdrawal.decided\" withdrawal_id=%s err=%v", withdrawal.ID, err)
		}
	}

	return withdrawal, nil
}
