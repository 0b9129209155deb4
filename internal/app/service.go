/**
 * @description
 * This file contains the core business logic for the billing-service. The
 * `Service` struct orchestrates all billing operations, coordinating between
 * the database repository, the payment processor client, and the message
 * broker.
 *
 * Key features:
 * - Creator, group and pricing plan management.
 * - Checkout session creation against the external payment processor.
 * - Creator and platform dashboard aggregates.
 *
 * Payment verification and the withdrawal workflow live in reconcile.go and
 * withdrawal.go respectively.
 *
 * @dependencies
 * - context, errors, fmt, log, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID generation.
 * - internal/domain, internal/store: For domain models and data access.
 * - pkg/paymentsclient, pkg/rabbitmq: For external service communication.
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
	"github.com/televip/billing-service/pkg/paymentsclient"
	"github.com/televip/billing-service/pkg/rabbitmq"
)

// DefaultPlatformFeeBps is the platform's cut in basis points (3%).
const DefaultPlatformFeeBps = 300

// PaymentsClient is the subset of the processor API the service depends on.
type PaymentsClient interface {
	CreateCheckoutSession(ctx context.Context, payload paymentsclient.CreateSessionRequest) (*paymentsclient.SessionResponse, error)
	GetCheckoutSession(ctx context.Context, sessionID string) (*paymentsclient.SessionResponse, error)
}

// RateLimiter counts an attempt against a per-subject window and reports the
// running count plus when the window resets.
type RateLimiter interface {
	ConsumeRateLimit(ctx context.Context, scope, subject string, limit int, window time.Duration) (count int, retryAfterSeconds int, err error)
}

// Service provides the core business logic for billing.
type Service struct {
	repo           store.Repository
	paymentsClient PaymentsClient
	eventProducer  rabbitmq.Publisher
	rateLimiter    RateLimiter

	feeBps     int64
	currency   string
	successURL string
	cancelURL  string
}

// ServiceOptions carries the tunables wired in from configuration.
type ServiceOptions struct {
	FeeBps     int64
	Currency   string
	SuccessURL string
	CancelURL  string
}

// NewService creates a new billing service instance.
func NewService(repo store.Repository, payments PaymentsClient, producer rabbitmq.Publisher, limiter RateLimiter, opts ServiceOptions) *Service {
	if opts.FeeBps <= 0 {
		opts.FeeBps = DefaultPlatformFeeBps
	}
	if opts.Currency == "" {
		opts.Currency = "PHP"
	}
	return &Service{
		repo:           repo,
		paymentsClient: payments,
		eventProducer:  producer,
		rateLimiter:    limiter,
		feeBps:         opts.FeeBps,
		currency:       opts.Currency,
		successURL:     opts.SuccessURL,
		cancelURL:      opts.CancelURL,
	}
}

// RegisterCreator records a creator's identity under the id assigned by the
// upstream auth service. Authentication happens there; this only establishes
// the ledger entity withdrawals settle against.
func (s *Service) RegisterCreator(ctx context.Context, creatorID uuid.UUID, payload domain.RegisterCreatorPayload) (*domain.Creator, error) {
	creator := &domain.Creator{
		ID:       creatorID,
		Email:    payload.Email,
		Name:     payload.Name,
		Username: payload.Username,
	}
	if err := s.repo.CreateCreator(ctx, creator); err != nil {
		return nil, err
	}
	log.Printf("level=info component=service msg=\"creator registered\" creator_id=%s username=%s", creator.ID, creator.Username)
	return creator, nil
}

// GetCreator retrieves a creator by id.
func (s *Service) GetCreator(ctx context.Context, creatorID uuid.UUID) (*domain.Creator, error) {
	return s.repo.FindCreatorByID(ctx, creatorID)
}

// CreateGroup registers a Telegram group under a creator.
func (s *Service) CreateGroup(ctx context.Context, creatorID uuid.UUID, payload domain.CreateGroupPayload) (*domain.Group, error) {
	if _, err := s.repo.FindCreatorByID(ctx, creatorID); err != nil {
		return nil, err
	}

	group := &domain.Group{
		ID:             uuid.New(),
		CreatorID:      creatorID,
		TelegramChatID: payload.TelegramChatID,
		Name:           payload.Name,
	}
	if err := s.repo.CreateGroup(ctx, group); err != nil {
		return nil, fmt.Errorf("failed to create group: %w", err)
	}
	return group, nil
}

// ListGroups retrieves all groups owned by a creator.
func (s *Service) ListGroups(ctx context.Context, creatorID uuid.UUID) ([]domain.Group, error) {
	return s.repo.ListGroupsByCreator(ctx, creatorID)
}

// CreatePricingPlan adds a plan to one of the creator's groups. Ownership is
// checked so a creator cannot attach plans to someone else's group.
func (s *Service) CreatePricingPlan(ctx context.Context, creatorID uuid.UUID, payload domain.CreatePricingPlanPayload) (*domain.PricingPlan, error) {
	group, err := s.repo.FindGroupByID(ctx, payload.GroupID)
	if err != nil {
		return nil, err
	}
	if group.CreatorID != creatorID {
		return nil, store.ErrGroupNotFound
	}

	plan := &domain.PricingPlan{
		ID:             uuid.New(),
		GroupID:        payload.GroupID,
		Name:           payload.Name,
		Price:          payload.Price,
		DurationMonths: payload.DurationMonths,
		Active:         true,
	}
	if err := s.repo.CreatePricingPlan(ctx, plan); err != nil {
		return nil, fmt.Errorf("failed to create pricing plan: %w", err)
	}
	return plan, nil
}

// ListPlans retrieves the active plans of a group. Public: buyers browse this
// before checkout.
func (s *Service) ListPlans(ctx context.Context, groupID uuid.UUID) ([]domain.PricingPlan, error) {
	if _, err := s.repo.FindGroupByID(ctx, groupID); err != nil {
		return nil, err
	}
	return s.repo.ListActivePlansByGroup(ctx, groupID)
}

// DeactivatePlan retires a plan so no new checkouts can reference it.
// Existing subscriptions are unaffected.
func (s *Service) DeactivatePlan(ctx context.Context, creatorID uuid.UUID, planID uuid.UUID) error {
	return s.repo.DeactivatePricingPlan(ctx, planID, creatorID)
}

// CreateCheckout starts a checkout session at the payment processor for a
// plan. Nothing is persisted: ledger rows only appear once the processor
// confirms payment during verification.
func (s *Service) CreateCheckout(ctx context.Context, payload domain.CreateCheckoutPayload) (*domain.CheckoutSession, error) {
	plan, err := s.repo.ResolvePlan(ctx, payload.PlanID)
	if err != nil {
		return nil, err
	}
	if !plan.Active {
		return nil, store.ErrPlanInactive
	}

	sessionReq := paymentsclient.CreateSessionRequest{
		Amount:      plan.Price,
		Currency:    s.currency,
		Description: fmt.Sprintf("%s - %s", plan.GroupName, plan.PlanName),
		SuccessURL:  s.successURL,
		CancelURL:   s.cancelURL,
		Metadata: map[string]string{
			"plan_id":        plan.PlanID.String(),
			"buyer_id":       payload.BuyerID,
			"buyer_username": payload.BuyerUsername,
		},
	}
	session, err := s.paymentsClient.CreateCheckoutSession(ctx, sessionReq)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	log.Printf("level=info component=service msg=\"checkout session created\" session_id=%s plan_id=%s buyer_id=%s", session.Data.ID, plan.PlanID, payload.BuyerID)
	return &domain.CheckoutSession{
		SessionID:   session.Data.ID,
		CheckoutURL: session.Data.CheckoutURL,
	}, nil
}

// GetSubscription retrieves a subscription by id.
func (s *Service) GetSubscription(ctx context.Context, subscriptionID uuid.UUID) (*domain.Subscription, error) {
	return s.repo.FindSubscriptionByID(ctx, subscriptionID)
}

// GetSubscriptionStatus reports whether a buyer currently holds unexpired
// access to a group. No-subscription is a normal answer here, not an error:
// the bot calls this on every join attempt.
func (s *Service) GetSubscriptionStatus(ctx context.Context, groupID uuid.UUID, buyerID string) (*domain.SubscriptionStatus, error) {
	sub, err := s.repo.FindActiveSubscription(ctx, buyerID, groupID)
	if err != nil {
		if errors.Is(err, store.ErrSubscriptionNotFound) {
			return &domain.SubscriptionStatus{Active: false}, nil
		}
		return nil, err
	}
	return &domain.SubscriptionStatus{Active: true, Subscription: sub}, nil
}

// GetDashboard assembles the creator dashboard: aggregates plus recent
// transactions.
func (s *Service) GetDashboard(ctx context.Context, creatorID uuid.UUID) (*domain.Dashboard, error) {
	creator, err := s.repo.FindCreatorByID(ctx, creatorID)
	if err != nil {
		return nil, err
	}

	stats, err := s.repo.GetDashboardStats(ctx, creatorID)
	if err != nil {
		return nil, fmt.Errorf("failed to load dashboard stats: %w", err)
	}
	recent, err := s.repo.ListRecentTransactionsByCreator(ctx, creatorID, 10)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent transactions: %w", err)
	}

	return &domain.Dashboard{
		Creator:            *creator,
		Stats:              *stats,
		RecentTransactions: recent,
	}, nil
}

// GetPlatformStats returns platform-wide aggregates for administrators.
func (s *Service) GetPlatformStats(ctx context.Context) (*domain.PlatformStats, error) {
	return s.repo.GetPlatformStats(ctx)
}
