package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/televip/billing-service/internal/app"
	"github.com/televip/billing-service/internal/domain"
	"github.com/televip/billing-service/internal/store"
)

const testJWTSecret = "test-secret"

// fakeRepo embeds the Repository interface; tests fill in only the methods
// the route under test reaches.
type fakeRepo struct {
	store.Repository

	resolvePlan            func(ctx context.Context, planID uuid.UUID) (*domain.ResolvedPlan, error)
	findActiveSubscription func(ctx context.Context, buyerID string, groupID uuid.UUID) (*domain.Subscription, error)
	createWithdrawal       func(ctx context.Context, creatorID uuid.UUID, amount int64, payoutKey string) (*domain.Withdrawal, error)
	decideWithdrawal       func(ctx context.Context, withdrawalID uuid.UUID, decidedStatus string) (*domain.Withdrawal, error)
	findCreatorByID        func(ctx context.Context, creatorID uuid.UUID) (*domain.Creator, error)
	platformStats          func(ctx context.Context) (*domain.PlatformStats, error)
}

func (f *fakeRepo) ResolvePlan(ctx context.Context, planID uuid.UUID) (*domain.ResolvedPlan, error) {
	return f.resolvePlan(ctx, planID)
}

func (f *fakeRepo) FindActiveSubscription(ctx context.Context, buyerID string, groupID uuid.UUID) (*domain.Subscription, error) {
	return f.findActiveSubscription(ctx, buyerID, groupID)
}

func (f *fakeRepo) CreateWithdrawal(ctx context.Context, creatorID uuid.UUID, amount int64, payoutKey string) (*domain.Withdrawal, error) {
	return f.createWithdrawal(ctx, creatorID, amount, payoutKey)
}

func (f *fakeRepo) DecideWithdrawal(ctx context.Context, withdrawalID uuid.UUID, decidedStatus string) (*domain.Withdrawal, error) {
	return f.decideWithdrawal(ctx, withdrawalID, decidedStatus)
}

func (f *fakeRepo) FindCreatorByID(ctx context.Context, creatorID uuid.UUID) (*domain.Creator, error) {
	return f.findCreatorByID(ctx, creatorID)
}

func (f *fakeRepo) GetPlatformStats(ctx context.Context) (*domain.PlatformStats, error) {
	return f.platformStats(ctx)
}

func signToken(t *testing.T, subject string, role string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub": subject,
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	if role != "" {
		claims["role"] = role
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func newTestRouter(repo store.Repository) http.Handler {
	svc := app.NewService(repo, nil, nil, nil, app.ServiceOptions{FeeBps: 300})
	return BillingRoutes(NewBillingHandlers(svc), testJWTSecret)
}

func TestRequestWithdrawalInsufficientBalanceResponse(t *testing.T) {
	repo := &fakeRepo{
		createWithdrawal: func(ctx context.Context, creatorID uuid.UUID, amount int64, payoutKey string) (*domain.Withdrawal, error) {
			return nil, &store.InsufficientBalanceError{Available: 1500, Requested: amount}
		},
	}
	router := newTestRouter(repo)

	body := `{"amount": 5000, "payout_key": "gcash:09171234567"}`
	req := httptest.NewRequest("POST", "/withdrawals", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+signToken(t, uuid.NewString(), ""))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Error     string `json:"error"`
		Available int64  `json:"available"`
		Requested int64  `json:"requested"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Available != 1500 || resp.Requested != 5000 {
		t.Fatalf("wrong balance details in response: %+v", resp)
	}
}

func TestRequestWithdrawalValidation(t *testing.T) {
	router := newTestRouter(&fakeRepo{})

	tests := []struct {
		name string
		body string
	}{
		{name: "zero amount", body: `{"amount": 0, "payout_key": "k"}`},
		{name: "negative amount", body: `{"amount": -100, "payout_key": "k"}`},
		{name: "missing payout key", body: `{"amount": 100}`},
		{name: "garbage body", body: `{`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/withdrawals", strings.NewReader(tt.body))
			req.Header.Set("Authorization", "Bearer "+signToken(t, uuid.NewString(), ""))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400 for %q, got %d", tt.body, rec.Code)
			}
		})
	}
}

func TestDecideWithdrawalConflict(t *testing.T) {
	repo := &fakeRepo{
		decideWithdrawal: func(ctx context.Context, withdrawalID uuid.UUID, decidedStatus string) (*domain.Withdrawal, error) {
			return nil, store.ErrWithdrawalAlreadyDecided
		},
	}
	router := newTestRouter(repo)

	req := httptest.NewRequest("POST", "/admin/withdrawals/"+uuid.NewString()+"/decision", strings.NewReader(`{"decision":"reject"}`))
	req.Header.Set("Authorization", "Bearer "+signToken(t, uuid.NewString(), RoleAdmin))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	repo := &fakeRepo{
		platformStats: func(ctx context.Context) (*domain.PlatformStats, error) {
			return &domain.PlatformStats{}, nil
		},
	}
	router := newTestRouter(repo)

	req := httptest.NewRequest("GET", "/admin/stats", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, uuid.NewString(), ""))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without admin role, got %d", rec.Code)
	}

	req = httptest.NewRequest("GET", "/admin/stats", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, uuid.NewString(), RoleAdmin))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with admin role, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAuthMiddlewareRejects(t *testing.T) {
	router := newTestRouter(&fakeRepo{})

	tests := []struct {
		name   string
		header string
	}{
		{name: "no header", header: ""},
		{name: "not bearer", header: "Basic abc"},
		{name: "garbage token", header: "Bearer not.a.jwt"},
		{name: "non-uuid subject", header: "Bearer " + mustSign(jwt.MapClaims{"sub": "user_123", "exp": time.Now().Add(time.Hour).Unix()})},
		{name: "expired token", header: "Bearer " + mustSign(jwt.MapClaims{"sub": uuid.NewString(), "exp": time.Now().Add(-time.Hour).Unix()})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/groups", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rec.Code)
			}
		})
	}
}

func mustSign(claims jwt.MapClaims) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, _ := token.SignedString([]byte(testJWTSecret))
	return signed
}

func TestCreateCheckoutInactivePlan(t *testing.T) {
	repo := &fakeRepo{
		resolvePlan: func(ctx context.Context, planID uuid.UUID) (*domain.ResolvedPlan, error) {
			return &domain.ResolvedPlan{PlanID: planID, Active: false}, nil
		},
	}
	router := newTestRouter(repo)

	body := `{"plan_id":"` + uuid.NewString() + `","buyer_id":"tg:42"}`
	req := httptest.NewRequest("POST", "/checkout", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusGone {
		t.Fatalf("expected 410 for retired plan, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCreateCheckoutUnknownPlan(t *testing.T) {
	repo := &fakeRepo{
		resolvePlan: func(ctx context.Context, planID uuid.UUID) (*domain.ResolvedPlan, error) {
			return nil, store.ErrPlanNotFound
		},
	}
	router := newTestRouter(repo)

	body := `{"plan_id":"` + uuid.NewString() + `","buyer_id":"tg:42"}`
	req := httptest.NewRequest("POST", "/checkout", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown plan, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestGetSubscriptionStatus(t *testing.T) {
	groupID := uuid.New()
	subID := uuid.New()

	tests := []struct {
		name       string
		buyerID    string
		repoResult *domain.Subscription
		repoErr    error
		wantActive bool
	}{
		{
			name:       "active subscriber",
			buyerID:    "tg:42",
			repoResult: &domain.Subscription{ID: subID, GroupID: groupID, BuyerID: "tg:42", Status: domain.SubscriptionStatusActive},
			wantActive: true,
		},
		{
			name:       "no subscription is active=false not 404",
			buyerID:    "tg:99",
			repoErr:    store.ErrSubscriptionNotFound,
			wantActive: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeRepo{
				findActiveSubscription: func(ctx context.Context, buyerID string, gotGroupID uuid.UUID) (*domain.Subscription, error) {
					if buyerID != tt.buyerID || gotGroupID != groupID {
						t.Fatalf("looked up wrong pair: buyer=%s group=%s", buyerID, gotGroupID)
					}
					return tt.repoResult, tt.repoErr
				},
			}
			router := newTestRouter(repo)

			req := httptest.NewRequest("GET", "/groups/"+groupID.String()+"/subscriptions/"+tt.buyerID, nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
			}

			var status domain.SubscriptionStatus
			if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if status.Active != tt.wantActive {
				t.Fatalf("expected active=%t, got %+v", tt.wantActive, status)
			}
			if tt.wantActive && (status.Subscription == nil || status.Subscription.ID != subID) {
				t.Fatalf("expected subscription %s in response, got %+v", subID, status.Subscription)
			}
		})
	}
}
