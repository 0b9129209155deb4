package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/televip/billing-service/internal/domain"
	"github.com/televip/billing-service/internal/store"
)

type stubRateLimiter struct {
	count      int
	retryAfter int
	err        error
}

func (s *stubRateLimiter) ConsumeRateLimit(ctx context.Context, scope, subject string, limit int, window time.Duration) (int, int, error) {
	return s.count, s.retryAfter, s.err
}

func TestRequestWithdrawal(t *testing.T) {
	creatorID := uuid.New()

	repo := &stubRepository{
		createWithdrawal: func(ctx context.Context, id uuid.UUID, amount int64, payoutKey string) (*domain.Withdrawal, error) {
			return &domain.Withdrawal{
				ID:        uuid.New(),
				CreatorID: id,
				Amount:    amount,
				PayoutKey: payoutKey,
				Status:    domain.WithdrawalStatusPending,
			}, nil
		},
	}

	publisher := &stubPublisher{}
	svc := NewService(repo, nil, publisher, &stubRateLimiter{count: 1, retryAfter: 60}, ServiceOptions{})

	withdrawal, err := svc.RequestWithdrawal(context.Background(), creatorID, domain.RequestWithdrawalPayload{
		Amount:    5000,
		PayoutKey: "gcash:09171234567",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if withdrawal.Status != domain.WithdrawalStatusPending {
		t.Fatalf("expected pending withdrawal, got %s", withdrawal.Status)
	}
	if len(publisher.events) != 1 || publisher.events[0].routingKey != "withdrawal.requested" {
		t.Fatalf("expected withdrawal.requested event, got %+v", publisher.events)
	}
}

func TestRequestWithdrawalRateLimited(t *testing.T) {
	repo := &stubRepository{
		createWithdrawal: func(ctx context.Context, id uuid.UUID, amount int64, payoutKey string) (*domain.Withdrawal, error) {
			t.Fatal("createWithdrawal should not be reached when rate limited")
			return nil, nil
		},
	}

	svc := NewService(repo, nil, nil, &stubRateLimiter{count: WithdrawalRateLimit + 1, retryAfter: 42}, ServiceOptions{})

	_, err := svc.RequestWithdrawal(context.Background(), uuid.New(), domain.RequestWithdrawalPayload{Amount: 100, PayoutKey: "k"})
	var limited *RateLimitedError
	if !errors.As(err, &limited) {
		t.Fatalf("expected RateLimitedError, got %v", err)
	}
	if limited.RetryAfterSeconds != 42 {
		t.Fatalf("expected retry after 42s, got %d", limited.RetryAfterSeconds)
	}
}

func TestRequestWithdrawalLimiterFailureFailsOpen(t *testing.T) {
	repo := &stubRepository{
		createWithdrawal: func(ctx context.Context, id uuid.UUID, amount int64, payoutKey string) (*domain.Withdrawal, error) {
			return &domain.Withdrawal{ID: uuid.New(), CreatorID: id, Amount: amount, Status: domain.WithdrawalStatusPending}, nil
		},
	}

	svc := NewService(repo, nil, nil, &stubRateLimiter{err: errors.New("redis down")}, ServiceOptions{})

	if _, err := svc.RequestWithdrawal(context.Background(), uuid.New(), domain.RequestWithdrawalPayload{Amount: 100, PayoutKey: "k"}); err != nil {
		t.Fatalf("expected request to succeed when limiter is unavailable, got %v", err)
	}
}

func TestRequestWithdrawalInsufficientBalance(t *testing.T) {
	repo := &stubRepository{
		createWithdrawal: func(ctx context.Context, id uuid.UUID, amount int64, payoutKey string) (*domain.Withdrawal, error) {
			return nil, &store.InsufficientBalanceError{Available: 1000, Requested: amount}
		},
	}

	publisher := &stubPublisher{}
	svc := NewService(repo, nil, publisher, nil, ServiceOptions{})

	_, err := svc.RequestWithdrawal(context.Background(), uuid.New(), domain.RequestWithdrawalPayload{Amount: 5000, PayoutKey: "k"})
	var insufficient *store.InsufficientBalanceError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientBalanceError, got %v", err)
	}
	if insufficient.Available != 1000 || insufficient.Requested != 5000 {
		t.Fatalf("wrong balance details: %+v", insufficient)
	}
	if len(publisher.events) != 0 {
		t.Fatalf("no event should be published for a rejected request, got %+v", publisher.events)
	}
}

func TestDecideWithdrawal(t *testing.T) {
	withdrawalID := uuid.New()

	tests := []struct {
		name       string
		decision   string
		wantStatus string
		wantErr    error
	}{
		{name: "approve settles as completed", decision: domain.WithdrawalDecisionApprove, wantStatus: domain.WithdrawalStatusCompleted},
		{name: "reject settles as rejected", decision: domain.WithdrawalDecisionReject, wantStatus: domain.WithdrawalStatusRejected},
		{name: "unknown decision fails before the store", decision: "maybe", wantErr: domain.ErrInvalidWithdrawalDecision},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &stubRepository{
				decideWithdrawal: func(ctx context.Context, id uuid.UUID, decidedStatus string) (*domain.Withdrawal, error) {
					if tt.wantErr != nil {
						t.Fatal("store should not be reached for an invalid decision")
					}
					return &domain.Withdrawal{ID: id, CreatorID: uuid.New(), Amount: 100, Status: decidedStatus}, nil
				},
			}

			publisher := &stubPublisher{}
			svc := NewService(repo, nil, publisher, nil, ServiceOptions{})

			withdrawal, err := svc.DecideWithdrawal(context.Background(), withdrawalID, domain.DecideWithdrawalPayload{Decision: tt.decision})
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected error %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if withdrawal.Status != tt.wantStatus {
				t.Fatalf("expected status %s, got %s", tt.wantStatus, withdrawal.Status)
			}
			if len(publisher.events) != 1 || publisher.events[0].routingKey != "withdrawal.decided" {
				t.Fatalf("expected withdrawal.decided event, got %+v", publisher.events)
			}
		})
	}
}

func TestGetAvailableBalance(t *testing.T) {
	creatorID := uuid.New()
	repo := &stubRepository{
		findCreatorByID: func(ctx context.Context, id uuid.UUID) (*domain.Creator, error) {
			if id != creatorID {
				return nil, store.ErrCreatorNotFound
			}
			return &domain.Creator{ID: id}, nil
		},
		availableBalance: func(ctx context.Context, id uuid.UUID) (int64, error) {
			return 123456, nil
		},
	}

	svc := NewService(repo, nil, nil, nil, ServiceOptions{})

	balance, err := svc.GetAvailableBalance(context.Background(), creatorID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if balance != 123456 {
		t.Fatalf("expected balance 123456, got %d", balance)
	}

	if _, err := svc.GetAvailableBalance(context.Background(), uuid.New()); !errors.Is(err, store.ErrCreatorNotFound) {
		t.Fatalf("expected ErrCreatorNotFound for unknown creator, got %v", err)
	}
}
