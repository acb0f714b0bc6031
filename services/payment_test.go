package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"testing"
	"time"
)

const testKeySecret = "test_key_secret"

// signPayment produces the gateway's payment signature for the order/payment
// pair, matching Razorpay's HMAC-SHA256 scheme.
func signPayment(orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(testKeySecret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyPaymentGrantsPremium(t *testing.T) {
	repo := newTestRepo(t)
	svc := NewPaymentService(repo, "test_key_id", testKeySecret, 499)
	user := createTestUser(t, repo, "buyer@example.com")
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	signature := signPayment("order_123", "pay_456")
	expiry, err := svc.VerifyPayment(context.Background(), user.ID, "order_123", "pay_456", signature, now)
	if err != nil {
		t.Fatalf("VerifyPayment failed: %v", err)
	}

	wantExpiry := now.Add(PremiumDurationDays * 24 * time.Hour)
	if !expiry.Equal(wantExpiry) {
		t.Errorf("expected expiry %v, got %v", wantExpiry, expiry)
	}

	fresh, err := repo.GetUserByID(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}
	if !fresh.PremiumValid(now) {
		t.Error("user not premium after verified payment")
	}
	if fresh.Credits != user.Credits+PremiumBonusCredits {
		t.Errorf("expected %d credits after bonus, got %d", user.Credits+PremiumBonusCredits, fresh.Credits)
	}
}

func TestVerifyPaymentReplacesExpiry(t *testing.T) {
	repo := newTestRepo(t)
	svc := NewPaymentService(repo, "test_key_id", testKeySecret, 499)
	user := createTestUser(t, repo, "renewer@example.com")

	first := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	if _, err := svc.VerifyPayment(context.Background(), user.ID, "order_1", "pay_1", signPayment("order_1", "pay_1"), first); err != nil {
		t.Fatalf("first VerifyPayment failed: %v", err)
	}

	// A second purchase ten days in restarts the 30-day window from that
	// moment instead of stacking onto the remaining 20 days.
	second := first.Add(10 * 24 * time.Hour)
	expiry, err := svc.VerifyPayment(context.Background(), user.ID, "order_2", "pay_2", signPayment("order_2", "pay_2"), second)
	if err != nil {
		t.Fatalf("second VerifyPayment failed: %v", err)
	}
	if want := second.Add(PremiumDurationDays * 24 * time.Hour); !expiry.Equal(want) {
		t.Errorf("expected replaced expiry %v, got %v", want, expiry)
	}
}

func TestVerifyPaymentRejectsBadSignature(t *testing.T) {
	repo := newTestRepo(t)
	svc := NewPaymentService(repo, "test_key_id", testKeySecret, 499)
	user := createTestUser(t, repo, "fraud@example.com")
	now := time.Now()

	_, err := svc.VerifyPayment(context.Background(), user.ID, "order_123", "pay_456", "deadbeef", now)
	if !errors.Is(err, ErrInvalidPaymentSignature) {
		t.Fatalf("expected ErrInvalidPaymentSignature, got %v", err)
	}

	fresh, _ := repo.GetUserByID(context.Background(), user.ID)
	if fresh.IsPremium {
		t.Error("rejected payment still granted premium")
	}
	if fresh.Credits != user.Credits {
		t.Errorf("rejected payment changed credits: %d -> %d", user.Credits, fresh.Credits)
	}
}
