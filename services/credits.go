package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/vocalcoach/backend/models"
	"github.com/vocalcoach/backend/repository"
)

// CreditService gates paid features: premium-valid users pass through
// untouched, everyone else spends one credit per invocation.
type CreditService struct {
	repo *repository.GORMRepository
}

func NewCreditService(repo *repository.GORMRepository) *CreditService {
	return &CreditService{repo: repo}
}

// EntitlementStatus is the payment/feature view returned to the UI.
type EntitlementStatus struct {
	Credits       int        `json:"credits"`
	IsPremium     bool       `json:"is_premium"`
	PremiumExpiry *time.Time `json:"premium_expiry,omitempty"`
	CanUseFeature bool       `json:"can_use_feature"`
}

// Status computes the user's current entitlement.
func (s *CreditService) Status(user *models.User, now time.Time) EntitlementStatus {
	premiumValid := user.PremiumValid(now)
	return EntitlementStatus{
		Credits:       user.Credits,
		IsPremium:     premiumValid,
		PremiumExpiry: user.PremiumExpiry,
		CanUseFeature: premiumValid || user.Credits > 0,
	}
}

// RequirePaidFeature is the middleware in front of paid endpoints. The
// credit deduction is one conditional UPDATE, so concurrent requests from
// the same user cannot drive the balance negative; a losing racer is
// rejected with the upgrade prompt.
func (s *CreditService) RequirePaidFeature(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := r.Context().Value("user").(*models.User)
		if !ok {
			http.Error(w, "User not found in context", http.StatusInternalServerError)
			return
		}

		if user.PremiumValid(time.Now()) {
			ctx := context.WithValue(r.Context(), "premium", true)
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		consumed, err := s.repo.ConsumeCredit(r.Context(), user.ID)
		if err != nil {
			slog.Error("Failed to consume credit", "error", err, "user_id", user.ID)
			http.Error(w, "Failed to check credits", http.StatusInternalServerError)
			return
		}

		if !consumed {
			s.rejectNeedsUpgrade(w, r, user)
			return
		}

		slog.Info("Credit consumed for paid feature", "user_id", user.ID, "path", r.URL.Path)
		ctx := context.WithValue(r.Context(), "premium", false)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *CreditService) rejectNeedsUpgrade(w http.ResponseWriter, r *http.Request, user *models.User) {
	credits := 0
	if fresh, err := s.repo.GetUserByID(r.Context(), user.ID); err == nil && fresh != nil {
		credits = fresh.Credits
	}

	slog.Info("Paid feature rejected, no credits remaining", "user_id", user.ID, "path", r.URL.Path)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error":        "No credits remaining",
		"credits":      credits,
		"needsUpgrade": true,
	})
}
