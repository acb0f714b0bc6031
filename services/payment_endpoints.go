package services

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/vocalcoach/backend/models"
	"github.com/vocalcoach/backend/repository"
)

type PaymentEndpoints struct {
	paymentService *PaymentService
	creditService  *CreditService
	repo           *repository.GORMRepository
}

type VerifyPaymentRequest struct {
	OrderID   string `json:"razorpay_order_id"`
	PaymentID string `json:"razorpay_payment_id"`
	Signature string `json:"razorpay_signature"`
}

func NewPaymentEndpoints(paymentService *PaymentService, creditService *CreditService, repo *repository.GORMRepository) *PaymentEndpoints {
	return &PaymentEndpoints{
		paymentService: paymentService,
		creditService:  creditService,
		repo:           repo,
	}
}

func (e *PaymentEndpoints) RegisterRoutes(r chi.Router) {
	r.Route("/payment", func(r chi.Router) {
		r.Post("/create-order", e.CreateOrderHandler)
		r.Post("/verify", e.VerifyHandler)
		r.Get("/status", e.StatusHandler)
	})
}

func (e *PaymentEndpoints) CreateOrderHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value("user").(*models.User)
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	order, err := e.paymentService.CreateOrder(r.Context(), user)
	if err != nil {
		slog.Error("Failed to create payment order", "error", err, "user_id", user.ID)
		http.Error(w, "Failed to create payment order", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"order": order,
	})
}

func (e *PaymentEndpoints) VerifyHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value("user").(*models.User)
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	var req VerifyPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.OrderID == "" || req.PaymentID == "" || req.Signature == "" {
		http.Error(w, "Order id, payment id and signature are required", http.StatusBadRequest)
		return
	}

	expiry, err := e.paymentService.VerifyPayment(r.Context(), user.ID, req.OrderID, req.PaymentID, req.Signature, time.Now())
	if err != nil {
		if errors.Is(err, ErrInvalidPaymentSignature) {
			http.Error(w, "Payment verification failed", http.StatusBadRequest)
			return
		}
		slog.Error("Failed to verify payment", "error", err, "user_id", user.ID)
		http.Error(w, "Failed to verify payment", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message":        "Payment verified, premium activated",
		"premium_expiry": expiry,
	})

	slog.Info("Payment verified", "user_id", user.ID, "order_id", req.OrderID)
}

func (e *PaymentEndpoints) StatusHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value("user").(*models.User)
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	// Reload so the status reflects credits consumed since login
	fresh, err := e.repo.GetUserByID(r.Context(), user.ID)
	if err != nil || fresh == nil {
		slog.Error("Failed to load user for payment status", "error", err, "user_id", user.ID)
		http.Error(w, "Failed to get payment status", http.StatusInternalServerError)
		return
	}

	status := e.creditService.Status(fresh, time.Now())

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}
