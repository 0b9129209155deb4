package app

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/televip/billing-service/internal/domain"
	"github.com/televip/billing-service/internal/store"
	"github.com/televip/billing-service/pkg/paymentsclient"
)

// stubRepository embeds the interface so each test only fills in the methods
// it exercises; anything else panics with a nil pointer, which is what we
// want from an unexpected call.
type stubRepository struct {
	store.Repository

	findTransactionBySessionID func(ctx context.Context, sessionID string) (*domain.Transaction, error)
	findSubscriptionByID       func(ctx context.Context, id uuid.UUID) (*domain.Subscription, error)
	resolvePlan                func(ctx context.Context, planID uuid.UUID) (*domain.ResolvedPlan, error)
	reconcilePayment           func(ctx context.Context, params store.ReconcilePaymentParams) (*domain.Subscription, *domain.Transaction, error)
	findCreatorByID            func(ctx context.Context, id uuid.UUID) (*domain.Creator, error)
	availableBalance           func(ctx context.Context, id uuid.UUID) (int64, error)
	createWithdrawal           func(ctx context.Context, creatorID uuid.UUID, amount int64, payoutKey string) (*domain.Withdrawal, error)
	decideWithdrawal           func(ctx context.Context, withdrawalID uuid.UUID, decidedStatus string) (*domain.Withdrawal, error)
}

func (s *stubRepository) FindTransactionBySessionID(ctx context.Context, sessionID string) (*domain.Transaction, error) {
	return s.findTransactionBySessionID(ctx, sessionID)
}

func (s *stubRepository) FindSubscriptionByID(ctx context.Context, id uuid.UUID) (*domain.Subscription, error) {
	return s.findSubscriptionByID(ctx, id)
}

func (s *stubRepository) ResolvePlan(ctx context.Context, planID uuid.UUID) (*domain.ResolvedPlan, error) {
	return s.resolvePlan(ctx, planID)
}

func (s *stubRepository) ReconcilePayment(ctx context.Context, params store.ReconcilePaymentParams) (*domain.Subscription, *domain.Transaction, error) {
	return s.reconcilePayment(ctx, params)
}

func (s *stubRepository) FindCreatorByID(ctx context.Context, id uuid.UUID) (*domain.Creator, error) {
	return s.findCreatorByID(ctx, id)
}

func (s *stubRepository) AvailableBalance(ctx context.Context, id uuid.UUID) (int64, error) {
	return s.availableBalance(ctx, id)
}

func (s *stubRepository) CreateWithdrawal(ctx context.Context, creatorID uuid.UUID, amount int64, payoutKey string) (*domain.Withdrawal, error) {
	return s.createWithdrawal(ctx, creatorID, amount, payoutKey)
}

func (s *stubRepository) DecideWithdrawal(ctx context.Context, withdrawalID uuid.UUID, decidedStatus string) (*domain.Withdrawal, error) {
	return s.decideWithdrawal(ctx, withdrawalID, decidedStatus)
}

type stubPaymentsClient struct {
	createSession func(ctx context.Context, payload paymentsclient.CreateSessionRequest) (*paymentsclient.SessionResponse, error)
	getSession    func(ctx context.Context, sessionID string) (*paymentsclient.SessionResponse, error)
}

func (s *stubPaymentsClient) CreateCheckoutSession(ctx context.Context, payload paymentsclient.CreateSessionRequest) (*paymentsclient.SessionResponse, error) {
	return s.createSession(ctx, payload)
}

func (s *stubPaymentsClient) GetCheckoutSession(ctx context.Context, sessionID string) (*paymentsclient.SessionResponse, error) {
	return s.getSession(ctx, sessionID)
}

type publishedEvent struct {
	exchange   string
	routingKey string
	body       interface{}
}

type stubPublisher struct {
	events []publishedEvent
}

func (s *stubPublisher) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	s.events = append(s.events, publishedEvent{exchange: exchange, routingKey: routingKey, body: body})
	return nil
}

func (s *stubPublisher) Close() {}

func paidSession(id string, amount int64, metadata map[string]string) *paymentsclient.SessionResponse {
	resp := &paymentsclient.SessionResponse{}
	resp.Data.ID = id
	resp.Data.PaymentStatus = paymentsclient.PaymentStatusPaid
	resp.Data.AmountTotal = amount
	resp.Data.Metadata = metadata
	return resp
}

func TestPlatformFee(t *testing.T) {
	tests := []struct {
		name   string
		amount int64
		feeBps int64
		want   int64
	}{
		{name: "29.90 at 3%", amount: 2990, feeBps: 300, want: 90},
		{name: "100.00 at 3%", amount: 10000, feeBps: 300, want: 300},
		{name: "exact half rounds up", amount: 50, feeBps: 300, want: 2},
		{name: "below half rounds down", amount: 16, feeBps: 300, want: 0},
		{name: "above half rounds up", amount: 33, feeBps: 300, want: 1},
		{name: "zero fee rate", amount: 2990, feeBps: 0, want: 0},
		{name: "full fee rate", amount: 2990, feeBps: 10000, want: 2990},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PlatformFee(tt.amount, tt.feeBps); got != tt.want {
				t.Fatalf("PlatformFee(%d, %d) = %d, want %d", tt.amount, tt.feeBps, got, tt.want)
			}
		})
	}
}

func TestVerifyPaymentComputesFeeSplit(t *testing.T) {
	planID := uuid.New()
	creatorID := uuid.New()
	groupID := uuid.New()

	var gotParams store.ReconcilePaymentParams
	repo := &stubRepository{
		findTransactionBySessionID: func(ctx context.Context, sessionID string) (*domain.Transaction, error) {
			return nil, store.ErrTransactionNotFound
		},
		resolvePlan: func(ctx context.Context, id uuid.UUID) (*domain.ResolvedPlan, error) {
			return &domain.ResolvedPlan{
				PlanID:         planID,
				GroupID:        groupID,
				CreatorID:      creatorID,
				DurationMonths: 1,
				Price:          2990,
				Active:         true,
			}, nil
		},
		reconcilePayment: func(ctx context.Context, params store.ReconcilePaymentParams) (*domain.Subscription, *domain.Transaction, error) {
			gotParams = params
			sub := &domain.Subscription{ID: uuid.New(), GroupID: params.GroupID, BuyerID: params.BuyerID}
			tr := &domain.Transaction{
				ID: uuid.New(), SubscriptionID: sub.ID, CreatorID: params.CreatorID,
				SessionID: params.SessionID, Amount: params.Amount, Fee: params.Fee, NetAmount: params.NetAmount,
			}
			return sub, tr, nil
		},
	}

	payments := &stubPaymentsClient{
		getSession: func(ctx context.Context, sessionID string) (*paymentsclient.SessionResponse, error) {
			return paidSession(sessionID, 2990, map[string]string{
				"plan_id":  planID.String(),
				"buyer_id": "tg:777",
			}), nil
		},
	}

	publisher := &stubPublisher{}
	svc := NewService(repo, payments, publisher, nil, ServiceOptions{FeeBps: 300})

	result, err := svc.VerifyPayment(context.Background(), "cs_test_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Paid || result.Subscription == nil {
		t.Fatalf("expected paid result with subscription, got %+v", result)
	}

	if gotParams.Amount != 2990 || gotParams.Fee != 90 || gotParams.NetAmount != 2900 {
		t.Fatalf("wrong fee split: amount=%d fee=%d net=%d", gotParams.Amount, gotParams.Fee, gotParams.NetAmount)
	}
	if gotParams.CreatorID != creatorID || gotParams.GroupID != groupID {
		t.Fatalf("wrong plan attribution: %+v", gotParams)
	}

	if len(publisher.events) != 1 {
		t.Fatalf("expected 1 published event, got %d", len(publisher.events))
	}
	if publisher.events[0].routingKey != "subscription.activated" {
		t.Fatalf("wrong routing key: %s", publisher.events[0].routingKey)
	}
}

func TestVerifyPaymentShortCircuitsReconciledSession(t *testing.T) {
	subID := uuid.New()
	repo := &stubRepository{
		findTransactionBySessionID: func(ctx context.Context, sessionID string) (*domain.Transaction, error) {
			return &domain.Transaction{ID: uuid.New(), SubscriptionID: subID, SessionID: sessionID}, nil
		},
		findSubscriptionByID: func(ctx context.Context, id uuid.UUID) (*domain.Subscription, error) {
			if id != subID {
				t.Fatalf("looked up wrong subscription: %s", id)
			}
			return &domain.Subscription{ID: subID, Status: domain.SubscriptionStatusActive}, nil
		},
	}

	// No processor stub: a fetch would panic, proving the session is served
	// entirely from the ledger.
	svc := NewService(repo, nil, nil, nil, ServiceOptions{})

	result, err := svc.VerifyPayment(context.Background(), "cs_done")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Paid || result.Subscription.ID != subID {
		t.Fatalf("expected existing subscription back, got %+v", result)
	}
}

func TestVerifyPaymentUnpaidSession(t *testing.T) {
	repo := &stubRepository{
		findTransactionBySessionID: func(ctx context.Context, sessionID string) (*domain.Transaction, error) {
			return nil, store.ErrTransactionNotFound
		},
	}
	payments := &stubPaymentsClient{
		getSession: func(ctx context.Context, sessionID string) (*paymentsclient.SessionResponse, error) {
			resp := &paymentsclient.SessionResponse{}
			resp.Data.ID = sessionID
			resp.Data.PaymentStatus = paymentsclient.PaymentStatusUnpaid
			return resp, nil
		},
	}

	svc := NewService(repo, payments, nil, nil, ServiceOptions{})

	result, err := svc.VerifyPayment(context.Background(), "cs_unpaid")
	if !errors.Is(err, ErrSessionUnpaid) {
		t.Fatalf("expected ErrSessionUnpaid, got %v", err)
	}
	if result == nil || result.Paid {
		t.Fatalf("expected unpaid result, got %+v", result)
	}
}

func TestVerifyPaymentBadMetadata(t *testing.T) {
	repo := &stubRepository{
		findTransactionBySessionID: func(ctx context.Context, sessionID string) (*domain.Transaction, error) {
			return nil, store.ErrTransactionNotFound
		},
	}

	tests := []struct {
		name     string
		metadata map[string]string
	}{
		{name: "missing plan id", metadata: map[string]string{"buyer_id": "tg:1"}},
		{name: "malformed plan id", metadata: map[string]string{"plan_id": "not-a-uuid", "buyer_id": "tg:1"}},
		{name: "missing buyer id", metadata: map[string]string{"plan_id": uuid.NewString()}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payments := &stubPaymentsClient{
				getSession: func(ctx context.Context, sessionID string) (*paymentsclient.SessionResponse, error) {
					return paidSession(sessionID, 1000, tt.metadata), nil
				},
			}
			svc := NewService(repo, payments, nil, nil, ServiceOptions{})

			if _, err := svc.VerifyPayment(context.Background(), "cs_bad"); !errors.Is(err, ErrSessionMetadata) {
				t.Fatalf("expected ErrSessionMetadata, got %v", err)
			}
		})
	}
}

func TestConsumerAckDecisions(t *testing.T) {
	planID := uuid.New()
	repo := &stubRepository{
		findTransactionBySessionID: func(ctx context.Context, sessionID string) (*domain.Transaction, error) {
			return nil, store.ErrTransactionNotFound
		},
		resolvePlan: func(ctx context.Context, id uuid.UUID) (*domain.ResolvedPlan, error) {
			return &domain.ResolvedPlan{PlanID: planID, DurationMonths: 1}, nil
		},
		reconcilePayment: func(ctx context.Context, params store.ReconcilePaymentParams) (*domain.Subscription, *domain.Transaction, error) {
			return &domain.Subscription{ID: uuid.New()}, &domain.Transaction{ID: uuid.New()}, nil
		},
	}

	tests := []struct {
		name    string
		body    string
		status  string
		wantAck bool
	}{
		{name: "paid session acks", body: `{"session_id":"cs_1"}`, status: paymentsclient.PaymentStatusPaid, wantAck: true},
		{name: "unpaid session requeues", body: `{"session_id":"cs_2"}`, status: paymentsclient.PaymentStatusUnpaid, wantAck: false},
		{name: "garbage payload acks to drop", body: `{not json`, wantAck: true},
		{name: "empty session id acks to drop", body: `{"session_id":""}`, wantAck: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payments := &stubPaymentsClient{
				getSession: func(ctx context.Context, sessionID string) (*paymentsclient.SessionResponse, error) {
					return paidSession(sessionID, 1000, map[string]string{
						"plan_id":  planID.String(),
						"buyer_id": "tg:5",
					}), nil
				},
			}
			if tt.status == paymentsclient.PaymentStatusUnpaid {
				payments.getSession = func(ctx context.Context, sessionID string) (*paymentsclient.SessionResponse, error) {
					resp := &paymentsclient.SessionResponse{}
					resp.Data.ID = sessionID
					resp.Data.PaymentStatus = paymentsclient.PaymentStatusUnpaid
					return resp, nil
				}
			}

			svc := NewService(repo, payments, nil, nil, ServiceOptions{})
			consumer := NewCheckoutEventsConsumer(svc)

			if got := consumer.HandleSessionCompleted([]byte(tt.body)); got != tt.wantAck {
				t.Fatalf("HandleSessionCompleted(%q) = %t, want %t", tt.body, got, tt.wantAck)
			}
		})
	}
}
