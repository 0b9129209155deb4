/**
 * @description
 * This file defines the `Repository` interface, which specifies the contract
 * for all ledger-store operations required by the billing-service. By
 * defining an interface, we decouple the application's business logic from
 * the PostgreSQL implementation, making the code more modular and easier to
 * test.
 *
 * @dependencies
 * - context, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID generation and handling.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/televip/billing-service/internal/domain"
)

var (
	ErrCreatorNotFound          = errors.New("creator not found")
	ErrCreatorExists            = errors.New("creator email or username already in use")
	ErrGroupNotFound            = errors.New("group not found")
	ErrPlanNotFound             = errors.New("pricing plan not found")
	ErrPlanInactive             = errors.New("pricing plan is no longer available")
	ErrSubscriptionNotFound     = errors.New("subscription not found")
	ErrTransactionNotFound      = errors.New("transaction not found")
	ErrWithdrawalNotFound       = errors.New("withdrawal not found")
	ErrWithdrawalAlreadyDecided = errors.New("withdrawal already decided")
	ErrInvalidAmount            = errors.New("amount must be positive")
)

// InsufficientBalanceError is returned when a withdrawal request exceeds the
// creator's available balance. It carries the balance computed inside the
// same transaction as the rejected insert so the caller can explain the
// rejection.
type InsufficientBalanceError struct {
	Available int64 // in centavos
	Requested int64 // in centavos
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: requested %d, available %d", e.Requested, e.Available)
}

// ReconcilePaymentParams carries everything the ledger needs to convert one
// verified processor payment into subscription and transaction rows. Plan
// resolution and fee arithmetic happen before the database transaction
// begins; no external call runs while ledger locks are held.
type ReconcilePaymentParams struct {
	SessionID      string
	BuyerID        string
	BuyerUsername  string
	PlanID         uuid.UUID
	GroupID        uuid.UUID
	CreatorID      uuid.UUID
	DurationMonths int
	Amount         int64 // in centavos
	Fee            int64 // in centavos
	NetAmount      int64 // in centavos
}

// Repository defines the set of methods for interacting with the ledger.
type Repository interface {
	// Creator methods
	CreateCreator(ctx context.Context, creator *domain.Creator) error
	FindCreatorByID(ctx context.Context, creatorID uuid.UUID) (*domain.Creator, error)

	// Group and pricing catalog methods
	CreateGroup(ctx context.Context, group *domain.Group) error
	FindGroupByID(ctx context.Context, groupID uuid.UUID) (*domain.Group, error)
	ListGroupsByCreator(ctx context.Context, creatorID uuid.UUID) ([]domain.Group, error)
	CreatePricingPlan(ctx context.Context, plan *domain.PricingPlan) error
	ResolvePlan(ctx context.Context, planID uuid.UUID) (*domain.ResolvedPlan, error)
	ListActivePlansByGroup(ctx context.Context, groupID uuid.UUID) ([]domain.PricingPlan, error)
	DeactivatePricingPlan(ctx context.Context, planID uuid.UUID, creatorID uuid.UUID) error

	// Reconciliation methods
	FindTransactionBySessionID(ctx context.Context, sessionID string) (*domain.Transaction, error)
	FindSubscriptionByID(ctx context.Context, subscriptionID uuid.UUID) (*domain.Subscription, error)
	FindActiveSubscription(ctx context.Context, buyerID string, groupID uuid.UUID) (*domain.Subscription, error)
	ReconcilePayment(ctx context.Context, params ReconcilePaymentParams) (*domain.Subscription, *domain.Transaction, error)
	ExpireLapsedSubscriptions(ctx context.Context, now time.Time) (int64, error)

	// Balance and withdrawal methods
	AvailableBalance(ctx context.Context, creatorID uuid.UUID) (int64, error)
	CreateWithdrawal(ctx context.Context, creatorID uuid.UUID, amount int64, payoutKey string) (*domain.Withdrawal, error)
	DecideWithdrawal(ctx context.Context, withdrawalID uuid.UUID, decidedStatus string) (*domain.Withdrawal, error)
	ListWithdrawalsByCreator(ctx context.Context, creatorID uuid.UUID) ([]domain.Withdrawal, error)
	ListPendingWithdrawals(ctx context.Context) ([]domain.PendingWithdrawal, error)

	// Dashboard aggregates
	GetDashboardStats(ctx context.Context, creatorID uuid.UUID) (*domain.DashboardStats, error)
	ListRecentTransactionsByCreator(ctx context.Context, creatorID uuid.UUID, limit int) ([]domain.Transaction, error)
	GetPlatformStats(ctx context.Context) (*domain.PlatformStats, error)
}
