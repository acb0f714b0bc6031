package services

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/vocalcoach/backend/models"
	"github.com/vocalcoach/backend/repository"
	ws "github.com/vocalcoach/backend/websocket"
	"gorm.io/gorm"
)

// Server holds all server dependencies
type Server struct {
	config             *Config
	gormDB             *repository.GORMRepository
	rawDB              interface{} // Store the raw GORM DB for health checks
	geminiService      *GeminiService
	voiceAPIService    *VoiceAPIService
	leaderboardService *LeaderboardService
	statsService       *StatsService
	reportService      *CallReportService
	creditService      *CreditService
	paymentService     *PaymentService
	diagnosisService   *DiagnosisService
	poller             *CallSyncPoller
	authService        *AuthService
	authEndpoints      *AuthEndpoints
	statsEndpoints     *StatsEndpoints
	callEndpoints      *CallEndpoints
	paymentEndpoints   *PaymentEndpoints
	diagnosisEndpoints *DiagnosisEndpoints
	wsHub              *ws.Hub
	upgrader           websocket.Upgrader
}

// NewServer creates a new server instance
func NewServer(config *Config) *Server {
	return &Server{
		config: config,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return CheckOrigin(r, config.WebSocket.AllowedOrigins)
			},
		},
	}
}

// InitializeServices initializes all server services
func (s *Server) InitializeServices() error {
	if s.config.Database.URL == "" {
		slog.Warn("Database URL not configured, running without database")
	}

	// WebSocket hub runs regardless so event producers always have a target
	s.wsHub = ws.NewHub()
	go s.wsHub.Run()

	if s.config.AI.GeminiAPIKey != "" {
		s.geminiService = NewGeminiService(s.config.AI.GeminiAPIKey)
		slog.Info("Gemini service initialized")
	}

	if s.config.Voice.APIKey != "" {
		s.voiceAPIService = NewVoiceAPIService(s.config.Voice.APIKey, s.config.Voice.BaseURL)
		slog.Info("Voice API service initialized", "base_url", s.config.Voice.BaseURL)
	}

	if s.config.Redis.URL != "" {
		s.leaderboardService = NewLeaderboardService(s.config.Redis.URL)
	}

	if s.gormDB != nil {
		s.statsService = NewStatsService(s.gormDB, s.leaderboardService)
		s.creditService = NewCreditService(s.gormDB)
		s.statsEndpoints = NewStatsEndpoints(s.statsService, s.leaderboardService, s.gormDB)
		slog.Info("Stats service initialized")
	}

	if s.gormDB != nil && s.voiceAPIService != nil {
		if s.geminiService != nil {
			s.reportService = NewCallReportService(s.gormDB, s.voiceAPIService, s.geminiService, s.wsHub)
			slog.Info("Call report service initialized")
		}
		s.callEndpoints = NewCallEndpoints(s.gormDB, s.reportService, s.creditService)

		s.poller = NewCallSyncPoller(s.gormDB, s.voiceAPIService, s.wsHub, s.config.Poller.Interval)
		slog.Info("Call sync poller initialized", "interval", s.config.Poller.Interval)
	}

	if s.gormDB != nil && s.config.Payment.RazorpayKeyID != "" && s.config.Payment.RazorpayKeySecret != "" {
		s.paymentService = NewPaymentService(s.gormDB, s.config.Payment.RazorpayKeyID, s.config.Payment.RazorpayKeySecret, s.config.Payment.PremiumPriceINR)
		s.paymentEndpoints = NewPaymentEndpoints(s.paymentService, s.creditService, s.gormDB)
		slog.Info("Payment service initialized")
	}

	if s.gormDB != nil && (s.config.AI.DiagnosisEndpoint != "" || s.geminiService != nil) {
		s.diagnosisService = NewDiagnosisService(s.gormDB, s.config.AI.DiagnosisEndpoint, s.config.AI.DiagnosisKey, s.geminiService)
		s.diagnosisEndpoints = NewDiagnosisEndpoints(s.diagnosisService, s.creditService, s.gormDB)
		slog.Info("Diagnosis service initialized")
	}

	if s.config.JWT.Secret != "" && s.gormDB != nil {
		s.authService = NewAuthService(s.gormDB, s.config.JWT.Secret)
		s.authEndpoints = NewAuthEndpoints(s.authService)
		slog.Info("Authentication service initialized")
	}

	return nil
}

// SetDatabase sets the database connection
func (s *Server) SetDatabase(db *repository.GORMRepository, rawDB interface{}) {
	s.gormDB = db
	s.rawDB = rawDB
}

// SetupRoutes configures all HTTP routes
func (s *Server) SetupRoutes() *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health endpoint
	r.Get("/health", s.healthHandler)

	// API v1 route group
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", s.apiV1Handler)

		// WebSocket route (protected)
		if s.authService != nil {
			r.Group(func(r chi.Router) {
				r.Use(s.authService.Middleware)
				r.Get("/ws", s.websocketHandlerFunc)
			})
		} else {
			r.Get("/ws", s.websocketHandlerFunc)
		}

		// Authentication routes (public/protected split handled inside)
		if s.authEndpoints != nil {
			s.authEndpoints.RegisterRoutes(r)
		}

		// Protected feature routes
		if s.authService != nil {
			r.Group(func(r chi.Router) {
				r.Use(s.authService.Middleware)

				if s.statsEndpoints != nil {
					s.statsEndpoints.RegisterRoutes(r)
				}
				if s.callEndpoints != nil {
					s.callEndpoints.RegisterRoutes(r)
				}
				if s.paymentEndpoints != nil {
					s.paymentEndpoints.RegisterRoutes(r)
				}
				if s.diagnosisEndpoints != nil {
					s.diagnosisEndpoints.RegisterRoutes(r)
				}
			})
		}
	})

	return r
}

// Start starts the HTTP server and the background call sync poller.
func (s *Server) Start() {
	port := s.config.Server.Port
	if port == "" {
		port = "8080"
	}

	if s.poller != nil {
		s.poller.Start()
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: s.SetupRoutes(),
	}

	// Graceful shutdown
	go func() {
		slog.Info("Starting server", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server...")

	if s.poller != nil {
		s.poller.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	slog.Info("Server exited")
}

// CheckOrigin validates the origin of WebSocket connections to prevent CSRF attacks
func CheckOrigin(r *http.Request, allowedOriginsStr string) bool {
	origin := r.Header.Get("Origin")

	// If no allowed origins are configured, deny all requests for security
	if allowedOriginsStr == "" {
		slog.Warn("WebSocket connection rejected: no allowed origins configured", "origin", origin)
		return false
	}

	// Parse allowed origins (comma-separated list)
	allowedOrigins := strings.Split(allowedOriginsStr, ",")
	for i := range allowedOrigins {
		allowedOrigins[i] = strings.TrimSpace(allowedOrigins[i])
	}

	for _, allowed := range allowedOrigins {
		if allowed == origin {
			slog.Info("WebSocket connection accepted", "origin", origin)
			return true
		}
	}

	slog.Warn("WebSocket connection rejected: origin not allowed", "origin", origin, "allowed_origins", allowedOriginsStr)
	return false
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	dbStatus := "not configured"

	if s.rawDB != nil {
		if gormDB, ok := s.rawDB.(*gorm.DB); ok {
			if sqlDB, err := gormDB.DB(); err == nil {
				if err := sqlDB.Ping(); err != nil {
					dbStatus = "down"
					status = "degraded"
				} else {
					dbStatus = "up"
				}
			} else {
				dbStatus = "down"
				status = "degraded"
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"` + status + `","database":"` + dbStatus + `"}`))
}

func (s *Server) apiV1Handler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"message":"API v1","version":"1.0.0"}`))
}

func (s *Server) websocketHandlerFunc(w http.ResponseWriter, r *http.Request) {
	// Get user from context (set by auth middleware); anonymous when auth is off
	userID := ""
	if user, ok := r.Context().Value("user").(*models.User); ok {
		userID = user.ID
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("WebSocket upgrade failed", "error", err)
		return
	}

	slog.Info("WebSocket connection established", "user_id", userID)

	client := s.wsHub.RegisterClient(conn, userID)

	go client.WritePump()
	client.ReadPump()
}
