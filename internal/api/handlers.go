/**
 * @description
 * This file contains the HTTP handlers for the billing-service's API
 * endpoints. Handlers are responsible for parsing incoming requests, calling
 * the appropriate methods on the application service, and writing the HTTP
 * response. They act as the bridge between the web layer and the business
 * logic layer.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - github.com/go-playground/validator/v10: Request payload validation.
 * - internal/app, internal/domain, internal/store: For service logic, models, and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/televip/billing-service/internal/app"
	"github.com/televip/billing-service/internal/domain"
	"github.com/televip/billing-service/internal/store"
)

// BillingHandlers holds the application service that handlers will use.
type BillingHandlers struct {
	service  *app.Service
	validate *validator.Validate
}

// NewBillingHandlers creates a new instance of BillingHandlers.
func NewBillingHandlers(service *app.Service) *BillingHandlers {
	return &BillingHandlers{
		service:  service,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// decodeAndValidate parses the JSON body into dst and runs struct validation.
// On failure it writes the 400 response itself and reports false.
func (h *BillingHandlers) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Validation failed: %v", err))
		return false
	}
	return true
}

func (h *BillingHandlers) creatorFromContext(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	creatorID, ok := GetCreatorID(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get creator ID from context")
		return uuid.Nil, false
	}
	return creatorID, true
}

func urlParamUUID(r *http.Request, name string) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, name))
}

// RegisterCreatorHandler records the authenticated subject as a creator.
func (h *BillingHandlers) RegisterCreatorHandler(w http.ResponseWriter, r *http.Request) {
	creatorID, ok := h.creatorFromContext(w, r)
	if !ok {
		return
	}

	var payload domain.RegisterCreatorPayload
	if !h.decodeAndValidate(w, r, &payload) {
		return
	}

	creator, err := h.service.RegisterCreator(r.Context(), creatorID, payload)
	if err != nil {
		if errors.Is(err, store.ErrCreatorExists) {
			h.writeError(w, http.StatusConflict, "Email or username already in use")
			return
		}
		log.Printf("level=error component=api endpoint=register_creator err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusCreated, creator)
}

// GetMeHandler returns the authenticated creator's profile.
func (h *BillingHandlers) GetMeHandler(w http.ResponseWriter, r *http.Request) {
	creatorID, ok := h.creatorFromContext(w, r)
	if !ok {
		return
	}

	creator, err := h.service.GetCreator(r.Context(), creatorID)
	if err != nil {
		if errors.Is(err, store.ErrCreatorNotFound) {
			h.writeError(w, http.StatusNotFound, "Creator not found")
			return
		}
		log.Printf("level=error component=api endpoint=get_me creator_id=%s err=%v", creatorID, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, creator)
}

// CreateGroupHandler registers a Telegram group under the creator.
func (h *BillingHandlers) CreateGroupHandler(w http.ResponseWriter, r *http.Request) {
	creatorID, ok := h.creatorFromContext(w, r)
	if !ok {
		return
	}

	var payload domain.CreateGroupPayload
	if !h.decodeAndValidate(w, r, &payload) {
		return
	}

	group, err := h.service.CreateGroup(r.Context(), creatorID, payload)
	if err != nil {
		if errors.Is(err, store.ErrCreatorNotFound) {
			h.writeError(w, http.StatusNotFound, "Creator not found")
			return
		}
		log.Printf("level=error component=api endpoint=create_group creator_id=%s err=%v", creatorID, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusCreated, group)
}

// ListGroupsHandler lists the creator's groups.
func (h *BillingHandlers) ListGroupsHandler(w http.ResponseWriter, r *http.Request) {
	creatorID, ok := h.creatorFromContext(w, r)
	if !ok {
		return
	}

	groups, err := h.service.ListGroups(r.Context(), creatorID)
	if err != nil {
		log.Printf("level=error component=api endpoint=list_groups creator_id=%s err=%v", creatorID, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, groups)
}

// CreatePlanHandler adds a pricing plan to one of the creator's groups.
func (h *BillingHandlers) CreatePlanHandler(w http.ResponseWriter, r *http.Request) {
	creatorID, ok := h.creatorFromContext(w, r)
	if !ok {
		return
	}

	var payload domain.CreatePricingPlanPayload
	if !h.decodeAndValidate(w, r, &payload) {
		return
	}

	plan, err := h.service.CreatePricingPlan(r.Context(), creatorID, payload)
	if err != nil {
		if errors.Is(err, store.ErrGroupNotFound) {
			h.writeError(w, http.StatusNotFound, "Group not found")
			return
		}
		log.Printf("level=error component=api endpoint=create_plan creator_id=%s err=%v", creatorID, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusCreated, plan)
}

// DeactivatePlanHandler retires a pricing plan.
func (h *BillingHandlers) DeactivatePlanHandler(w http.ResponseWriter, r *http.Request) {
	creatorID, ok := h.creatorFromContext(w, r)
	if !ok {
		return
	}

	planID, err := urlParamUUID(r, "planID")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid plan ID")
		return
	}

	if err := h.service.DeactivatePlan(r.Context(), creatorID, planID); err != nil {
		if errors.Is(err, store.ErrPlanNotFound) {
			h.writeError(w, http.StatusNotFound, "Pricing plan not found")
			return
		}
		log.Printf("level=error component=api endpoint=deactivate_plan plan_id=%s err=%v", planID, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusNoContent, nil)
}

// ListPlansHandler lists the active plans of a group. Public: buyers browse
// this before paying.
func (h *BillingHandlers) ListPlansHandler(w http.ResponseWriter, r *http.Request) {
	groupID, err := urlParamUUID(r, "groupID")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid group ID")
		return
	}

	plans, err := h.service.ListPlans(r.Context(), groupID)
	if err != nil {
		if errors.Is(err, store.ErrGroupNotFound) {
			h.writeError(w, http.StatusNotFound, "Group not found")
			return
		}
		log.Printf("level=error component=api endpoint=list_plans group_id=%s err=%v", groupID, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, plans)
}

// CreateCheckoutHandler starts a checkout session for a plan. Public: buyers
// are Telegram users, not authenticated creators.
func (h *BillingHandlers) CreateCheckoutHandler(w http.ResponseWriter, r *http.Request) {
	var payload domain.CreateCheckoutPayload
	if !h.decodeAndValidate(w, r, &payload) {
		return
	}

	session, err := h.service.CreateCheckout(r.Context(), payload)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrPlanNotFound):
			h.writeError(w, http.StatusNotFound, "Pricing plan not found")
		case errors.Is(err, store.ErrPlanInactive):
			h.writeError(w, http.StatusGone, "Pricing plan is no longer available")
		default:
			log.Printf("level=error component=api endpoint=create_checkout plan_id=%s err=%v", payload.PlanID, err)
			h.writeError(w, http.StatusBadGateway, "Payment processor unavailable")
		}
		return
	}

	h.writeJSON(w, http.StatusCreated, session)
}

// verifyPaymentRequest is the body of POST /payments/verify.
type verifyPaymentRequest struct {
	SessionID string `json:"session_id" validate:"required"`
}

// VerifyPaymentHandler verifies a checkout session against the processor and
// reconciles it. Safe to call repeatedly with the same session id.
func (h *BillingHandlers) VerifyPaymentHandler(w http.ResponseWriter, r *http.Request) {
	var payload verifyPaymentRequest
	if !h.decodeAndValidate(w, r, &payload) {
		return
	}

	result, err := h.service.VerifyPayment(r.Context(), payload.SessionID)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrSessionUnpaid):
			h.writeJSON(w, http.StatusPaymentRequired, result)
		case errors.Is(err, app.ErrSessionMetadata):
			log.Printf("level=error component=api endpoint=verify_payment session_id=%s err=%v", payload.SessionID, err)
			h.writeError(w, http.StatusUnprocessableEntity, "Checkout session is not verifiable")
		case errors.Is(err, store.ErrPlanNotFound):
			log.Printf("level=error component=api endpoint=verify_payment session_id=%s err=%v", payload.SessionID, err)
			h.writeError(w, http.StatusUnprocessableEntity, "Checkout session references an unknown plan")
		default:
			log.Printf("level=error component=api endpoint=verify_payment session_id=%s err=%v", payload.SessionID, err)
			h.writeError(w, http.StatusBadGateway, "Could not verify payment")
		}
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// GetSubscriptionHandler returns a subscription by id.
func (h *BillingHandlers) GetSubscriptionHandler(w http.ResponseWriter, r *http.Request) {
	subscriptionID, err := urlParamUUID(r, "subscriptionID")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid subscription ID")
		return
	}

	sub, err := h.service.GetSubscription(r.Context(), subscriptionID)
	if err != nil {
		if errors.Is(err, store.ErrSubscriptionNotFound) {
			h.writeError(w, http.StatusNotFound, "Subscription not found")
			return
		}
		log.Printf("level=error component=api endpoint=get_subscription subscription_id=%s err=%v", subscriptionID, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, sub)
}

// GetSubscriptionStatusHandler reports whether a buyer currently holds
// access to a group. Public: the bot checks this before admitting a buyer,
// so "no subscription" is a 200 with active=false, not a 404.
func (h *BillingHandlers) GetSubscriptionStatusHandler(w http.ResponseWriter, r *http.Request) {
	groupID, err := urlParamUUID(r, "groupID")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid group ID")
		return
	}
	buyerID := chi.URLParam(r, "buyerID")
	if buyerID == "" {
		h.writeError(w, http.StatusBadRequest, "Invalid buyer ID")
		return
	}

	status, err := h.service.GetSubscriptionStatus(r.Context(), groupID, buyerID)
	if err != nil {
		log.Printf("level=error component=api endpoint=get_subscription_status group_id=%s buyer_id=%s err=%v", groupID, buyerID, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, status)
}

// GetBalanceHandler returns the creator's available balance.
func (h *BillingHandlers) GetBalanceHandler(w http.ResponseWriter, r *http.Request) {
	creatorID, ok := h.creatorFromContext(w, r)
	if !ok {
		return
	}

	balance, err := h.service.GetAvailableBalance(r.Context(), creatorID)
	if err != nil {
		if errors.Is(err, store.ErrCreatorNotFound) {
			h.writeError(w, http.StatusNotFound, "Creator not found")
			return
		}
		log.Printf("level=error component=api endpoint=get_balance creator_id=%s err=%v", creatorID, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]int64{"available_balance": balance})
}

// RequestWithdrawalHandler creates a pending payout request.
func (h *BillingHandlers) RequestWithdrawalHandler(w http.ResponseWriter, r *http.Request) {
	creatorID, ok := h.creatorFromContext(w, r)
	if !ok {
		return
	}

	var payload domain.RequestWithdrawalPayload
	if !h.decodeAndValidate(w, r, &payload) {
		return
	}

	withdrawal, err := h.service.RequestWithdrawal(r.Context(), creatorID, payload)
	if err != nil {
		var insufficient *store.InsufficientBalanceError
		var limited *app.RateLimitedError
		switch {
		case errors.As(err, &insufficient):
			h.writeJSON(w, http.StatusBadRequest, map[string]interface{}{
				"error":     "Insufficient balance",
				"available": insufficient.Available,
				"requested": insufficient.Requested,
			})
		case errors.As(err, &limited):
			w.Header().Set("Retry-After", strconv.Itoa(limited.RetryAfterSeconds))
			h.writeError(w, http.StatusTooManyRequests, "Too many withdrawal requests")
		case errors.Is(err, store.ErrInvalidAmount):
			h.writeError(w, http.StatusBadRequest, "Amount must be positive")
		case errors.Is(err, store.ErrCreatorNotFound):
			h.writeError(w, http.StatusNotFound, "Creator not found")
		default:
			log.Printf("level=error component=api endpoint=request_withdrawal creator_id=%s err=%v", creatorID, err)
			h.writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	h.writeJSON(w, http.StatusCreated, withdrawal)
}

// ListWithdrawalsHandler lists the creator's withdrawal history.
func (h *BillingHandlers) ListWithdrawalsHandler(w http.ResponseWriter, r *http.Request) {
	creatorID, ok := h.creatorFromContext(w, r)
	if !ok {
		return
	}

	withdrawals, err := h.service.ListWithdrawals(r.Context(), creatorID)
	if err != nil {
		log.Printf("level=error component=api endpoint=list_withdrawals creator_id=%s err=%v", creatorID, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, withdrawals)
}

// GetDashboardHandler returns the creator dashboard.
func (h *BillingHandlers) GetDashboardHandler(w http.ResponseWriter, r *http.Request) {
	creatorID, ok := h.creatorFromContext(w, r)
	if !ok {
		return
	}

	dashboard, err := h.service.GetDashboard(r.Context(), creatorID)
	if err != nil {
		if errors.Is(err, store.ErrCreatorNotFound) {
			h.writeError(w, http.StatusNotFound, "Creator not found")
			return
		}
		log.Printf("level=error component=api endpoint=get_dashboard creator_id=%s err=%v", creatorID, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, dashboard)
}

// ListPendingWithdrawalsHandler returns the admin review queue.
func (h *BillingHandlers) ListPendingWithdrawalsHandler(w http.ResponseWriter, r *http.Request) {
	pending, err := h.service.ListPendingWithdrawals(r.Context())
	if err != nil {
		log.Printf("level=error component=api endpoint=list_pending_withdrawals err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, pending)
}

// DecideWithdrawalHandler applies an admin decision to a withdrawal.
func (h *BillingHandlers) DecideWithdrawalHandler(w http.ResponseWriter, r *http.Request) {
	withdrawalID, err := urlParamUUID(r, "withdrawalID")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid withdrawal ID")
		return
	}

	var payload domain.DecideWithdrawalPayload
	if !h.decodeAndValidate(w, r, &payload) {
		return
	}

	withdrawal, err := h.service.DecideWithdrawal(r.Context(), withdrawalID, payload)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidWithdrawalDecision):
			h.writeError(w, http.StatusBadRequest, "Decision must be approve or reject")
		case errors.Is(err, store.ErrWithdrawalNotFound):
			h.writeError(w, http.StatusNotFound, "Withdrawal not found")
		case errors.Is(err, store.ErrWithdrawalAlreadyDecided):
			h.writeError(w, http.StatusConflict, "Withdrawal already decided")
		default:
			log.Printf("level=error component=api endpoint=decide_withdrawal withdrawal_id=%s err=%v", withdrawalID, err)
			h.writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	h.writeJSON(w, http.StatusOK, withdrawal)
}

// GetPlatformStatsHandler returns platform-wide aggregates.
func (h *BillingHandlers) GetPlatformStatsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.GetPlatformStats(r.Context())
	if err != nil {
		log.Printf("level=error component=api endpoint=platform_stats err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, stats)
}

func (h *BillingHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

func (h *BillingHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
