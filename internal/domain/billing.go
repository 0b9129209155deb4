/**
 * @description
 * This file defines the core domain models for the billing-service. These
 * structs represent the main entities and data transfer objects (DTOs) used
 * throughout the service's business logic, database interactions, and API
 * layers.
 *
 * @notes
 * - Monetary amounts are stored as `int64` in the smallest currency unit
 *   (centavos), which avoids floating-point inaccuracies with financial data.
 * - Creators own groups, groups own pricing plans; buyers are opaque
 *   Telegram user ids, never creator rows.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Creator represents a content creator selling access to private channels.
// This struct maps directly to the `creators` table in the database.
type Creator struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Group represents a private Telegram channel owned by a creator.
type Group struct {
	ID             uuid.UUID `json:"id"`
	CreatorID      uuid.UUID `json:"creator_id"`
	TelegramChatID string    `json:"telegram_chat_id"`
	Name           string    `json:"name"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// PricingPlan represents a purchasable access tier for a group. Plans are
// soft-retired via the Active flag and never deleted, so existing
// subscriptions keep the price they were sold at.
type PricingPlan struct {
	ID             uuid.UUID `json:"id"`
	GroupID        uuid.UUID `json:"group_id"`
	Name           string    `json:"name"`
	Price          int64     `json:"price"` // in centavos
	DurationMonths int       `json:"duration_months"`
	Active         bool      `json:"active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ResolvedPlan is the Pricing Catalog read model: a plan joined with the
// group and creator that own it, as needed by checkout and reconciliation.
type ResolvedPlan struct {
	PlanID         uuid.UUID
	GroupID        uuid.UUID
	CreatorID      uuid.UUID
	GroupName      string
	PlanName       string
	Price          int64 // in centavos
	DurationMonths int
	Active         bool
}

// RegisterCreatorPayload is the DTO for creating a new creator account.
// Credentials are the external auth collaborator's concern; this service only
// records identity.
type RegisterCreatorPayload struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required"`
	Username string `json:"username" validate:"required,min=3,max=32"`
}

// CreateGroupPayload is the DTO for registering a new group.
type CreateGroupPayload struct {
	Name           string `json:"name" validate:"required"`
	TelegramChatID string `json:"telegram_chat_id" validate:"required"`
}

// CreatePricingPlanPayload is the DTO for adding a plan to a group.
type CreatePricingPlanPayload struct {
	GroupID        uuid.UUID `json:"group_id" validate:"required"`
	Name           string    `json:"name" validate:"required"`
	Price          int64     `json:"price" validate:"required,gt=0"` // in centavos
	DurationMonths int       `json:"duration_months" validate:"required,gt=0"`
}

// DashboardStats summarizes a creator's ledger for the dashboard view.
type DashboardStats struct {
	TotalSubscribers   int   `json:"total_subscribers"`
	ActiveSubscribers  int   `json:"active_subscribers"`
	TotalRevenue       int64 `json:"total_revenue"`       // net, in centavos
	PendingWithdrawals int64 `json:"pending_withdrawals"` // in centavos
	AvailableBalance   int64 `json:"available_balance"`   // in centavos
}

// Dashboard is the full creator dashboard response.
type Dashboard struct {
	Creator            Creator        `json:"creator"`
	Stats              DashboardStats `json:"stats"`
	RecentTransactions []Transaction  `json:"recent_transactions"`
}

// PlatformStats summarizes the whole platform for the admin dashboard.
type PlatformStats struct {
	TotalCreators            int64 `json:"total_creators"`
	TotalGroups              int64 `json:"total_groups"`
	TotalSubscriptions       int64 `json:"total_subscriptions"`
	GrossRevenue             int64 `json:"gross_revenue"` // in centavos
	TotalFees                int64 `json:"total_fees"`    // in centavos
	NetRevenue               int64 `json:"net_revenue"`   // in centavos
	PendingWithdrawalsCount  int64 `json:"pending_withdrawals_count"`
	PendingWithdrawalsAmount int64 `json:"pending_withdrawals_amount"` // in centavos
}
