package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vocalcoach/backend/models"
	"github.com/vocalcoach/backend/repository"
)

// drainCredits spends the user's signup credits so tests can start from zero.
func drainCredits(t *testing.T, repo *repository.GORMRepository, userID string) {
	t.Helper()
	for {
		consumed, err := repo.ConsumeCredit(context.Background(), userID)
		if err != nil {
			t.Fatalf("ConsumeCredit failed: %v", err)
		}
		if !consumed {
			return
		}
	}
}

func paidFeatureRequest(user *models.User) *http.Request {
	req := httptest.NewRequest("GET", "/api/v1/call/call-report/call-1", nil)
	ctx := context.WithValue(req.Context(), "user", user)
	return req.WithContext(ctx)
}

func TestRequirePaidFeatureConsumesCredit(t *testing.T) {
	repo := newTestRepo(t)
	svc := NewCreditService(repo)
	user := createTestUser(t, repo, "credits@example.com")

	invoked := false
	var premiumCtx interface{}
	handler := svc.RequirePaidFeature(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		invoked = true
		premiumCtx = r.Context().Value("premium")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, paidFeatureRequest(user))

	if !invoked {
		t.Fatal("handler not invoked for user with credits")
	}
	if premium, ok := premiumCtx.(bool); !ok || premium {
		t.Errorf("expected premium=false in context, got %v", premiumCtx)
	}

	fresh, err := repo.GetUserByID(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}
	if fresh.Credits != 2 {
		t.Errorf("expected 2 credits after one use, got %d", fresh.Credits)
	}
}

func TestRequirePaidFeatureRejectsWithoutCredits(t *testing.T) {
	repo := newTestRepo(t)
	svc := NewCreditService(repo)
	user := createTestUser(t, repo, "broke@example.com")
	drainCredits(t, repo, user.ID)

	invoked := false
	handler := svc.RequirePaidFeature(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		invoked = true
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, paidFeatureRequest(user))

	if invoked {
		t.Fatal("handler invoked despite empty credit balance")
	}
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("rejection body not JSON: %v", err)
	}
	if body["needsUpgrade"] != true {
		t.Errorf("rejection missing needsUpgrade flag: %v", body)
	}
	if body["credits"] != float64(0) {
		t.Errorf("expected 0 credits in rejection, got %v", body["credits"])
	}

	fresh, _ := repo.GetUserByID(context.Background(), user.ID)
	if fresh.Credits != 0 {
		t.Errorf("rejection changed credit balance: %d", fresh.Credits)
	}
}

func TestRequirePaidFeaturePremiumPassthrough(t *testing.T) {
	repo := newTestRepo(t)
	svc := NewCreditService(repo)
	user := createTestUser(t, repo, "premium@example.com")

	expiry := time.Now().Add(24 * time.Hour)
	if err := repo.GrantPremium(context.Background(), user.ID, expiry, 0); err != nil {
		t.Fatalf("GrantPremium failed: %v", err)
	}
	user, _ = repo.GetUserByID(context.Background(), user.ID)

	var premiumCtx interface{}
	handler := svc.RequirePaidFeature(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		premiumCtx = r.Context().Value("premium")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, paidFeatureRequest(user))

	if premium, ok := premiumCtx.(bool); !ok || !premium {
		t.Errorf("expected premium=true in context, got %v", premiumCtx)
	}

	fresh, _ := repo.GetUserByID(context.Background(), user.ID)
	if fresh.Credits != user.Credits {
		t.Errorf("premium passthrough consumed a credit: %d -> %d", user.Credits, fresh.Credits)
	}
}

func TestRequirePaidFeatureExpiredPremiumFallsBackToCredits(t *testing.T) {
	repo := newTestRepo(t)
	svc := NewCreditService(repo)
	user := createTestUser(t, repo, "lapsed@example.com")

	expiry := time.Now().Add(-24 * time.Hour)
	if err := repo.GrantPremium(context.Background(), user.ID, expiry, 0); err != nil {
		t.Fatalf("GrantPremium failed: %v", err)
	}
	user, _ = repo.GetUserByID(context.Background(), user.ID)

	handler := svc.RequirePaidFeature(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, paidFeatureRequest(user))

	fresh, _ := repo.GetUserByID(context.Background(), user.ID)
	if fresh.Credits != user.Credits-1 {
		t.Errorf("expired premium did not fall back to credits: %d -> %d", user.Credits, fresh.Credits)
	}
}

func TestEntitlementStatus(t *testing.T) {
	svc := NewCreditService(nil)
	now := time.Now()
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	tests := []struct {
		name    string
		user    models.User
		canUse  bool
		premium bool
	}{
		{name: "credits only", user: models.User{Credits: 3}, canUse: true},
		{name: "no credits", user: models.User{Credits: 0}},
		{name: "active premium", user: models.User{IsPremium: true, PremiumExpiry: &future}, canUse: true, premium: true},
		{name: "expired premium with credits", user: models.User{Credits: 1, IsPremium: true, PremiumExpiry: &past}, canUse: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := svc.Status(&tt.user, now)
			if status.CanUseFeature != tt.canUse {
				t.Errorf("CanUseFeature = %v, expected %v", status.CanUseFeature, tt.canUse)
			}
			if status.IsPremium != tt.premium {
				t.Errorf("IsPremium = %v, expected %v", status.IsPremium, tt.premium)
			}
		})
	}
}
