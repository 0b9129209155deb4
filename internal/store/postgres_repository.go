/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository`
 * interface. It contains all the SQL needed to interact with the ledger
 * tables: creators, groups, pricing plans, subscriptions, transactions and
 * withdrawals.
 *
 * The two operations that carry the system's consistency guarantees live
 * here:
 *   - ReconcilePayment: one database transaction that converts a verified
 *     processor payment into exactly one subscription and one transaction
 *     row, no matter how many times or how concurrently it is invoked for
 *     the same session id.
 *   - CreateWithdrawal: balance check and insert under a creator row lock,
 *     so two concurrent requests can never jointly overdraw.
 *
 * @dependencies
 * - context, errors, time: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/televip/billing-service/internal/domain"
)

const uniqueViolationCode = "23505"

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}

// CreateCreator inserts a new creator row. Email and username uniqueness is
// enforced by the schema; violations surface as ErrCreatorExists.
func (r *PostgresRepository) CreateCreator(ctx context.Context, creator *domain.Creator) error {
	query := `
		INSERT INTO creators (id, email, name, username)
		VALUES ($1, lower(btrim($2)), $3, lower(btrim($4)))
		RETURNING email, username, created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query, creator.ID, creator.Email, creator.Name, creator.Username).
		Scan(&creator.Email, &creator.Username, &creator.CreatedAt, &creator.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrCreatorExists
		}
		return err
	}
	return nil
}

// FindCreatorByID retrieves a creator from the database by their ID.
func (r *PostgresRepository) FindCreatorByID(ctx context.Context, creatorID uuid.UUID) (*domain.Creator, error) {
	var creator domain.Creator
	query := `SELECT id, email, name, username, created_at, updated_at FROM creators WHERE id = $1`
	err := r.db.QueryRow(ctx, query, creatorID).Scan(
		&creator.ID, &creator.Email, &creator.Name, &creator.Username,
		&creator.CreatedAt, &creator.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCreatorNotFound
		}
		return nil, err
	}
	return &creator, nil
}

// CreateGroup inserts a new group owned by a creator.
func (r *PostgresRepository) CreateGroup(ctx context.Context, group *domain.Group) error {
	query := `
		INSERT INTO groups (id, creator_id, telegram_chat_id, name)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`
	return r.db.QueryRow(ctx, query, group.ID, group.CreatorID, group.TelegramChatID, group.Name).
		Scan(&group.CreatedAt, &group.UpdatedAt)
}

// FindGroupByID retrieves a group from the database by its ID.
func (r *PostgresRepository) FindGroupByID(ctx context.Context, groupID uuid.UUID) (*domain.Group, error) {
	var group domain.Group
	query := `SELECT id, creator_id, telegram_chat_id, name, created_at, updated_at FROM groups WHERE id = $1`
	err := r.db.QueryRow(ctx, query, groupID).Scan(
		&group.ID, &group.CreatorID, &group.TelegramChatID, &group.Name,
		&group.CreatedAt, &group.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrGroupNotFound
		}
		return nil, err
	}
	return &group, nil
}

// ListGroupsByCreator retrieves all groups owned by a creator.
func (r *PostgresRepository) ListGroupsByCreator(ctx context.Context, creatorID uuid.UUID) ([]domain.Group, error) {
	query := `
		SELECT id, creator_id, telegram_chat_id, name, created_at, updated_at
		FROM groups
		WHERE creator_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.db.Query(ctx, query, creatorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []domain.Group
	for rows.Next() {
		var group domain.Group
		if err := rows.Scan(
			&group.ID, &group.CreatorID, &group.TelegramChatID, &group.Name,
			&group.CreatedAt, &group.UpdatedAt,
		); err != nil {
			return nil, err
		}
		groups = append(groups, group)
	}
	return groups, rows.Err()
}

// CreatePricingPlan inserts a new plan for a group.
func (r *PostgresRepository) CreatePricingPlan(ctx context.Context, plan *domain.PricingPlan) error {
	query := `
		INSERT INTO pricing_plans (id, group_id, name, price, duration_months, active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`
	return r.db.QueryRow(ctx, query,
		plan.ID, plan.GroupID, plan.Name, plan.Price, plan.DurationMonths, plan.Active,
	).Scan(&plan.CreatedAt, &plan.UpdatedAt)
}

// ResolvePlan is the pricing catalog read path: the plan joined with the
// group and creator that own it. Callers decide whether an inactive plan is
// an error; a paid session must reconcile even against a retired plan.
func (r *PostgresRepository) ResolvePlan(ctx context.Context, planID uuid.UUID) (*domain.ResolvedPlan, error) {
	var plan domain.ResolvedPlan
	query := `
		SELECT p.id, p.group_id, g.creator_id, g.name, p.name, p.price, p.duration_months, p.active
		FROM pricing_plans p
		JOIN groups g ON g.id = p.group_id
		WHERE p.id = $1
	`
	err := r.db.QueryRow(ctx, query, planID).Scan(
		&plan.PlanID, &plan.GroupID, &plan.CreatorID, &plan.GroupName,
		&plan.PlanName, &plan.Price, &plan.DurationMonths, &plan.Active,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	return &plan, nil
}

// ListActivePlansByGroup retrieves the purchasable plans for a group,
// shortest duration first.
func (r *PostgresRepository) ListActivePlansByGroup(ctx context.Context, groupID uuid.UUID) ([]domain.PricingPlan, error) {
	query := `
		SELECT id, group_id, name, price, duration_months, active, created_at, updated_at
		FROM pricing_plans
		WHERE group_id = $1 AND active = true
		ORDER BY duration_months ASC
	`
	rows, err := r.db.Query(ctx, query, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plans []domain.PricingPlan
	for rows.Next() {
		var plan domain.PricingPlan
		if err := rows.Scan(
			&plan.ID, &plan.GroupID, &plan.Name, &plan.Price, &plan.DurationMonths,
			&plan.Active, &plan.CreatedAt, &plan.UpdatedAt,
		); err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}
	return plans, rows.Err()
}

// DeactivatePricingPlan soft-retires a plan. The row is kept so existing
// subscriptions retain the price they were sold at. The ownership check is
// folded into the UPDATE so a creator cannot retire another creator's plan.
func (r *PostgresRepository) DeactivatePricingPlan(ctx context.Context, planID uuid.UUID, creatorID uuid.UUID) error {
	query := `
		UPDATE pricing_plans p
		SET active = false, updated_at = NOW()
		FROM groups g
		WHERE p.id = $1 AND p.group_id = g.id AND g.creator_id = $2
	`
	result, err := r.db.Exec(ctx, query, planID, creatorID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrPlanNotFound
	}
	return nil
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// FindTransactionBySessionID retrieves the transaction keyed by an external
// checkout session id, if any.
func (r *PostgresRepository) FindTransactionBySessionID(ctx context.Context, sessionID string) (*domain.Transaction, error) {
	return findTransactionBySessionID(ctx, r.db, sessionID)
}

func findTransactionBySessionID(ctx context.Context, q queryRower, sessionID string) (*domain.Transaction, error) {
	var tr domain.Transaction
	query := `
		SELECT id, subscription_id, creator_id, session_id, amount, fee, net_amount, status, created_at
		FROM transactions
		WHERE session_id = $1
	`
	err := q.QueryRow(ctx, query, sessionID).Scan(
		&tr.ID, &tr.SubscriptionID, &tr.CreatorID, &tr.SessionID,
		&tr.Amount, &tr.Fee, &tr.NetAmount, &tr.Status, &tr.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return &tr, nil
}

// FindSubscriptionByID retrieves a subscription by its ID.
func (r *PostgresRepository) FindSubscriptionByID(ctx context.Context, subscriptionID uuid.UUID) (*domain.Subscription, error) {
	return findSubscriptionByID(ctx, r.db, subscriptionID)
}

func findSubscriptionByID(ctx context.Context, q queryRower, subscriptionID uuid.UUID) (*domain.Subscription, error) {
	var sub domain.Subscription
	query := `
		SELECT id, group_id, pricing_plan_id, buyer_id, buyer_username, amount_paid,
		       status, started_at, expires_at, created_at, updated_at
		FROM subscriptions
		WHERE id = $1
	`
	err := q.QueryRow(ctx, query, subscriptionID).Scan(
		&sub.ID, &sub.GroupID, &sub.PricingPlanID, &sub.BuyerID, &sub.BuyerUsername,
		&sub.AmountPaid, &sub.Status, &sub.StartedAt, &sub.ExpiresAt,
		&sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}
	return &sub, nil
}

// FindActiveSubscription retrieves the buyer's current, unexpired
// subscription for a group.
func (r *PostgresRepository) FindActiveSubscription(ctx context.Context, buyerID string, groupID uuid.UUID) (*domain.Subscription, error) {
	var sub domain.Subscription
	query := `
		SELECT id, group_id, pricing_plan_id, buyer_id, buyer_username, amount_paid,
		       status, started_at, expires_at, created_at, updated_at
		FROM subscriptions
		WHERE buyer_id = $1 AND group_id = $2 AND status = 'active' AND expires_at > NOW()
	`
	err := r.db.QueryRow(ctx, query, buyerID, groupID).Scan(
		&sub.ID, &sub.GroupID, &sub.PricingPlanID, &sub.BuyerID, &sub.BuyerUsername,
		&sub.AmountPaid, &sub.Status, &sub.StartedAt, &sub.ExpiresAt,
		&sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}
	return &sub, nil
}

// ReconcilePayment converts one verified processor payment into ledger state
// inside a single database transaction:
//
//  1. If a transaction row already exists for the session id, the payment was
//     reconciled before; the associated subscription is returned unchanged.
//  2. If the buyer already holds an active subscription for the group, its
//     expiry is extended by the plan duration instead of creating a second
//     active row.
//  3. Otherwise a new active subscription is inserted.
//  4. The transaction row is inserted keyed by the session id.
//
// Two racing calls for the same session serialize on the unique index over
// transactions.session_id: the loser's insert fails with a unique violation,
// its transaction rolls back, and the retry observes the winner's committed
// row in step 1. A race between two different sessions for the same buyer
// and group serializes the same way on the one-active-row partial index.
func (r *PostgresRepository) ReconcilePayment(ctx context.Context, params ReconcilePaymentParams) (*domain.Subscription, *domain.Transaction, error) {
	const maxAttempts = 3

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		sub, tr, err := r.reconcilePaymentOnce(ctx, params)
		if err == nil {
			return sub, tr, nil
		}
		if !isUniqueViolation(err) {
			return nil, nil, err
		}
		lastErr = err
	}
	return nil, nil, lastErr
}

func (r *PostgresRepository) reconcilePaymentOnce(ctx context.Context, params ReconcilePaymentParams) (*domain.Subscription, *domain.Transaction, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback(ctx)

	// Idempotency check inside the transaction: a committed row for this
	// session id means the payment is already reconciled.
	existingTr, err := findTransactionBySessionID(ctx, tx, params.SessionID)
	if err == nil {
		sub, subErr := findSubscriptionByID(ctx, tx, existingTr.SubscriptionID)
		if subErr != nil {
			return nil, nil, subErr
		}
		if commitErr := tx.Commit(ctx); commitErr != nil {
			return nil, nil, commitErr
		}
		return sub, existingTr, nil
	}
	if !errors.Is(err, ErrTransactionNotFound) {
		return nil, nil, err
	}

	var sub domain.Subscription

	// Lock any existing active row for this buyer and group so concurrent
	// reconciliations of different sessions serialize on the extension.
	lockQuery := `
		SELECT id FROM subscriptions
		WHERE buyer_id = $1 AND group_id = $2 AND status = 'active'
		FOR UPDATE
	`
	var existingSubID uuid.UUID
	err = tx.QueryRow(ctx, lockQuery, params.BuyerID, params.GroupID).Scan(&existingSubID)
	switch {
	case err == nil:
		// The buyer paid again while still subscribed. Extend the existing
		// row instead of duplicating it; the paid amount accumulates.
		extendQuery := `
			UPDATE subscriptions
			SET expires_at = GREATEST(expires_at, NOW()) + make_interval(months => $2),
			    amount_paid = amount_paid + $3,
			    updated_at = NOW()
			WHERE id = $1
			RETURNING id, group_id, pricing_plan_id, buyer_id, buyer_username, amount_paid,
			          status, started_at, expires_at, created_at, updated_at
		`
		err = tx.QueryRow(ctx, extendQuery, existingSubID, params.DurationMonths, params.Amount).Scan(
			&sub.ID, &sub.GroupID, &sub.PricingPlanID, &sub.BuyerID, &sub.BuyerUsername,
			&sub.AmountPaid, &sub.Status, &sub.StartedAt, &sub.ExpiresAt,
			&sub.CreatedAt, &sub.UpdatedAt,
		)
		if err != nil {
			return nil, nil, err
		}
	case errors.Is(err, pgx.ErrNoRows):
		insertQuery := `
			INSERT INTO subscriptions (
				id, group_id, pricing_plan_id, buyer_id, buyer_username, amount_paid,
				status, started_at, expires_at
			)
			VALUES ($1, $2, $3, $4, $5, $6, 'active', NOW(), NOW() + make_interval(months => $7))
			RETURNING id, group_id, pricing_plan_id, buyer_id, buyer_username, amount_paid,
			          status, started_at, expires_at, created_at, updated_at
		`
		err = tx.QueryRow(ctx, insertQuery,
			uuid.New(), params.GroupID, params.PlanID, params.BuyerID,
			params.BuyerUsername, params.Amount, params.DurationMonths,
		).Scan(
			&sub.ID, &sub.GroupID, &sub.PricingPlanID, &sub.BuyerID, &sub.BuyerUsername,
			&sub.AmountPaid, &sub.Status, &sub.StartedAt, &sub.ExpiresAt,
			&sub.CreatedAt, &sub.UpdatedAt,
		)
		if err != nil {
			return nil, nil, err
		}
	default:
		return nil, nil, err
	}

	var tr domain.Transaction
	trQuery := `
		INSERT INTO transactions (id, subscription_id, creator_id, session_id, amount, fee, net_amount, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'completed')
		RETURNING id, subscription_id, creator_id, session_id, amount, fee, net_amount, status, created_at
	`
	err = tx.QueryRow(ctx, trQuery,
		uuid.New(), sub.ID, params.CreatorID, params.SessionID,
		params.Amount, params.Fee, params.NetAmount,
	).Scan(
		&tr.ID, &tr.SubscriptionID, &tr.CreatorID, &tr.SessionID,
		&tr.Amount, &tr.Fee, &tr.NetAmount, &tr.Status, &tr.CreatedAt,
	)
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, err
	}
	return &sub, &tr, nil
}

// ExpireLapsedSubscriptions marks active subscriptions whose expiry has
// passed as expired and reports how many rows changed.
func (r *PostgresRepository) ExpireLapsedSubscriptions(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE subscriptions
		SET status = 'expired', updated_at = NOW()
		WHERE status = 'active' AND expires_at <= $1
	`
	result, err := r.db.Exec(ctx, query, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

// availableBalanceQuery computes earnings minus claimed withdrawals in one
// statement so the two aggregates come from the same snapshot. Pending
// withdrawals count as claimed.
const availableBalanceQuery = `
	SELECT
		COALESCE((SELECT SUM(net_amount) FROM transactions WHERE creator_id = $1 AND status = 'completed'), 0)
		-
		COALESCE((SELECT SUM(amount) FROM withdrawals WHERE creator_id = $1 AND status IN ('pending', 'completed')), 0)
`

// AvailableBalance computes a creator's withdrawable balance from the ledger.
func (r *PostgresRepository) AvailableBalance(ctx context.Context, creatorID uuid.UUID) (int64, error) {
	var balance int64
	if err := r.db.QueryRow(ctx, availableBalanceQuery, creatorID).Scan(&balance); err != nil {
		return 0, err
	}
	return balance, nil
}

// CreateWithdrawal validates the requested amount against the creator's
// available balance and inserts the pending row as one atomic unit. The
// creator row is locked FOR UPDATE first, so concurrent requests from the
// same creator serialize and cannot jointly overdraw; requests from
// different creators do not contend.
func (r *PostgresRepository) CreateWithdrawal(ctx context.Context, creatorID uuid.UUID, amount int64, payoutKey string) (*domain.Withdrawal, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var lockedID uuid.UUID
	err = tx.QueryRow(ctx, `SELECT id FROM creators WHERE id = $1 FOR UPDATE`, creatorID).Scan(&lockedID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCreatorNotFound
		}
		return nil, err
	}

	var available int64
	if err := tx.QueryRow(ctx, availableBalanceQuery, creatorID).Scan(&available); err != nil {
		return nil, err
	}
	if amount > available {
		return nil, &InsufficientBalanceError{Available: available, Requested: amount}
	}

	var withdrawal domain.Withdrawal
	insertQuery := `
		INSERT INTO withdrawals (id, creator_id, amount, payout_key, status)
		VALUES ($1, $2, $3, $4, 'pending')
		RETURNING id, creator_id, amount, payout_key, status, created_at, updated_at
	`
	err = tx.QueryRow(ctx, insertQuery, uuid.New(), creatorID, amount, payoutKey).Scan(
		&withdrawal.ID, &withdrawal.CreatorID, &withdrawal.Amount,
		&withdrawal.PayoutKey, &withdrawal.Status,
		&withdrawal.CreatedAt, &withdrawal.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &withdrawal, nil
}

// DecideWithdrawal transitions a pending withdrawal to its terminal status.
// The conditional UPDATE only matches pending rows; when it matches nothing
// the current row is re-read and the decision resolved against it, so a
// repeated identical decision is a no-op and a conflicting one fails without
// touching the terminal state.
func (r *PostgresRepository) DecideWithdrawal(ctx context.Context, withdrawalID uuid.UUID, decidedStatus string) (*domain.Withdrawal, error) {
	var withdrawal domain.Withdrawal
	updateQuery := `
		UPDATE withdrawals
		SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING id, creator_id, amount, payout_key, status, created_at, updated_at
	`
	err := r.db.QueryRow(ctx, updateQuery, withdrawalID, decidedStatus).Scan(
		&withdrawal.ID, &withdrawal.CreatorID, &withdrawal.Amount,
		&withdrawal.PayoutKey, &withdrawal.Status,
		&withdrawal.CreatedAt, &withdrawal.UpdatedAt,
	)
	if err == nil {
		return &withdrawal, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	// Not pending (or missing): resolve against the committed row.
	readQuery := `
		SELECT id, creator_id, amount, payout_key, status, created_at, updated_at
		FROM withdrawals
		WHERE id = $1
	`
	err = r.db.QueryRow(ctx, readQuery, withdrawalID).Scan(
		&withdrawal.ID, &withdrawal.CreatorID, &withdrawal.Amount,
		&withdrawal.PayoutKey, &withdrawal.Status,
		&withdrawal.CreatedAt, &withdrawal.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWithdrawalNotFound
		}
		return nil, err
	}

	if _, err := domain.ResolveWithdrawalDecision(withdrawal.Status, decidedStatus); err != nil {
		return nil, ErrWithdrawalAlreadyDecided
	}
	return &withdrawal, nil
}

// ListWithdrawalsByCreator retrieves all withdrawals for a creator, newest first.
func (r *PostgresRepository) ListWithdrawalsByCreator(ctx context.Context, creatorID uuid.UUID) ([]domain.Withdrawal, error) {
	query := `
		SELECT id, creator_id, amount, payout_key, status, created_at, updated_at
		FROM withdrawals
		WHERE creator_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.db.Query(ctx, query, creatorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var withdrawals []domain.Withdrawal
	for rows.Next() {
		var w domain.Withdrawal
		if err := rows.Scan(
			&w.ID, &w.CreatorID, &w.Amount, &w.PayoutKey, &w.Status,
			&w.CreatedAt, &w.UpdatedAt,
		); err != nil {
			return nil, err
		}
		withdrawals = append(withdrawals, w)
	}
	return withdrawals, rows.Err()
}

// ListPendingWithdrawals retrieves all pending withdrawals with the
// requesting creator's identity, oldest first so admins review in order.
func (r *PostgresRepository) ListPendingWithdrawals(ctx context.Context) ([]domain.PendingWithdrawal, error) {
	query := `
		SELECT w.id, w.creator_id, w.amount, w.payout_key, w.status, w.created_at, w.updated_at,
		       c.name, c.email
		FROM withdrawals w
		JOIN creators c ON c.id = w.creator_id
		WHERE w.status = 'pending'
		ORDER BY w.created_at ASC
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pending []domain.PendingWithdrawal
	for rows.Next() {
		var p domain.PendingWithdrawal
		if err := rows.Scan(
			&p.ID, &p.CreatorID, &p.Amount, &p.PayoutKey, &p.Status,
			&p.CreatedAt, &p.UpdatedAt, &p.CreatorName, &p.CreatorEmail,
		); err != nil {
			return nil, err
		}
		pending = append(pending, p)
	}
	return pending, rows.Err()
}

// GetDashboardStats aggregates one creator's ledger for the dashboard view.
// All counters come from a single statement so they are mutually consistent.
func (r *PostgresRepository) GetDashboardStats(ctx context.Context, creatorID uuid.UUID) (*domain.DashboardStats, error) {
	var stats domain.DashboardStats
	query := `
		SELECT
			(SELECT COUNT(*) FROM subscriptions s JOIN groups g ON g.id = s.group_id WHERE g.creator_id = $1),
			(SELECT COUNT(*) FROM subscriptions s JOIN groups g ON g.id = s.group_id
			 WHERE g.creator_id = $1 AND s.status = 'active' AND s.expires_at > NOW()),
			COALESCE((SELECT SUM(net_amount) FROM transactions WHERE creator_id = $1 AND status = 'completed'), 0),
			COALESCE((SELECT SUM(amount) FROM withdrawals WHERE creator_id = $1 AND status = 'pending'), 0),
			(` + availableBalanceQuery + `)
	`
	err := r.db.QueryRow(ctx, query, creatorID).Scan(
		&stats.TotalSubscribers, &stats.ActiveSubscribers,
		&stats.TotalRevenue, &stats.PendingWithdrawals, &stats.AvailableBalance,
	)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// ListRecentTransactionsByCreator retrieves a creator's most recent
// completed transactions.
func (r *PostgresRepository) ListRecentTransactionsByCreator(ctx context.Context, creatorID uuid.UUID, limit int) ([]domain.Transaction, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	query := `
		SELECT id, subscription_id, creator_id, session_id, amount, fee, net_amount, status, created_at
		FROM transactions
		WHERE creator_id = $1 AND status = 'completed'
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, creatorID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []domain.Transaction
	for rows.Next() {
		var tr domain.Transaction
		if err := rows.Scan(
			&tr.ID, &tr.SubscriptionID, &tr.CreatorID, &tr.SessionID,
			&tr.Amount, &tr.Fee, &tr.NetAmount, &tr.Status, &tr.CreatedAt,
		); err != nil {
			return nil, err
		}
		transactions = append(transactions, tr)
	}
	return transactions, rows.Err()
}

// GetPlatformStats aggregates the whole platform for the admin dashboard.
func (r *PostgresRepository) GetPlatformStats(ctx context.Context) (*domain.PlatformStats, error) {
	var stats domain.PlatformStats
	query := `
		SELECT
			(SELECT COUNT(*) FROM creators),
			(SELECT COUNT(*) FROM groups),
			(SELECT COUNT(*) FROM subscriptions),
			COALESCE((SELECT SUM(amount) FROM transactions WHERE status = 'completed'), 0),
			COALESCE((SELECT SUM(fee) FROM transactions WHERE status = 'completed'), 0),
			COALESCE((SELECT SUM(net_amount) FROM transactions WHERE status = 'completed'), 0),
			(SELECT COUNT(*) FROM withdrawals WHERE status = 'pending'),
			COALESCE((SELECT SUM(amount) FROM withdrawals WHERE status = 'pending'), 0)
	`
	err := r.db.QueryRow(ctx, query).Scan(
		&stats.TotalCreators, &stats.TotalGroups, &stats.TotalSubscriptions,
		&stats.GrossRevenue, &stats.TotalFees, &stats.NetRevenue,
		&stats.PendingWithdrawalsCount, &stats.PendingWithdrawalsAmount,
	)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}
