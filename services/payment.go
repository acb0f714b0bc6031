package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	razorpay "github.com/razorpay/razorpay-go"
	"github.com/razorpay/razorpay-go/utils"
	"github.com/vocalcoach/backend/models"
	"github.com/vocalcoach/backend/repository"
)

const (
	PremiumDurationDays = 30
	PremiumBonusCredits = 3
)

var ErrInvalidPaymentSignature = errors.New("invalid payment signature")

// PaymentService creates premium-tier orders on the payment gateway and
// verifies completed payments.
type PaymentService struct {
	repo      *repository.GORMRepository
	client    *razorpay.Client
	keySecret string
	priceINR  int
}

func NewPaymentService(repo *repository.GORMRepository, keyID, keySecret string, priceINR int) *PaymentService {
	return &PaymentService{
		repo:      repo,
		client:    razorpay.NewClient(keyID, keySecret),
		keySecret: keySecret,
		priceINR:  priceINR,
	}
}

// CreateOrder opens a payment-gateway order for the fixed premium price.
func (s *PaymentService) CreateOrder(ctx context.Context, user *models.User) (map[string]interface{}, error) {
	data := map[string]interface{}{
		"amount":   s.priceINR * 100, // Gateway expects paise
		"currency": "INR",
		"receipt":  "premium_" + user.ID,
		"notes": map[string]interface{}{
			"user_id": user.ID,
			"email":   user.Email,
		},
	}

	order, err := s.client.Order.Create(data, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment order: %w", err)
	}

	slog.Info("Payment order created", "user_id", user.ID, "order_id", order["id"])
	return order, nil
}

// VerifyPayment checks the gateway signature and, on success, grants the
// premium tier for 30 days from now (replacing, not extending, any previous
// expiry) plus the bonus credits.
func (s *PaymentService) VerifyPayment(ctx context.Context, userID, orderID, paymentID, signature string, now time.Time) (*time.Time, error) {
	params := map[string]interface{}{
		"razorpay_order_id":   orderID,
		"razorpay_payment_id": paymentID,
	}
	if !utils.VerifyPaymentSignature(params, signature, s.keySecret) {
		slog.Warn("Payment signature verification failed", "user_id", userID, "order_id", orderID)
		return nil, ErrInvalidPaymentSignature
	}

	expiry := now.Add(PremiumDurationDays * 24 * time.Hour)
	if err := s.repo.GrantPremium(ctx, userID, expiry, PremiumBonusCredits); err != nil {
		return nil, fmt.Errorf("failed to grant premium: %w", err)
	}

	slog.Info("Payment verified, premium granted", "user_id", userID, "order_id", orderID, "expiry", expiry)
	return &expiry, nil
}
