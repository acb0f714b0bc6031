package services

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/vocalcoach/backend/models"
	"github.com/vocalcoach/backend/repository"
)

type CallEndpoints struct {
	repo          *repository.GORMRepository
	reportService *CallReportService
	creditService *CreditService
}

type SaveCallRequest struct {
	CallID string `json:"callId"`
}

func NewCallEndpoints(repo *repository.GORMRepository, reportService *CallReportService, creditService *CreditService) *CallEndpoints {
	return &CallEndpoints{
		repo:          repo,
		reportService: reportService,
		creditService: creditService,
	}
}

func (e *CallEndpoints) RegisterRoutes(r chi.Router) {
	r.Route("/call", func(r chi.Router) {
		r.Get("/", e.ListCallsHandler)
		r.Post("/save", e.SaveCallHandler)

		// Report routes need the analysis pipeline configured
		if e.reportService != nil {
			r.Get("/call-report-status/{callid}", e.ReportStatusHandler)

			// Report generation is a paid feature
			r.Group(func(r chi.Router) {
				r.Use(e.creditService.RequirePaidFeature)
				r.Get("/call-report/{callid}", e.GetReportHandler)
			})
		}
	})
}

func (e *CallEndpoints) ListCallsHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value("user").(*models.User)
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	calls, err := e.repo.GetCallsForUser(r.Context(), user.ID)
	if err != nil {
		slog.Error("Failed to list calls", "error", err, "user_id", user.ID)
		http.Error(w, "Failed to get calls", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"calls": calls,
		"count": len(calls),
	})
}

// SaveCallHandler associates the authenticated user with a call id. The
// poller stays authoritative for call metadata; this only claims ownership.
func (e *CallEndpoints) SaveCallHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value("user").(*models.User)
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	var req SaveCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.CallID == "" {
		http.Error(w, "callId is required", http.StatusBadRequest)
		return
	}

	call, err := e.repo.AttachCallToUser(r.Context(), req.CallID, user.ID)
	if err != nil {
		slog.Error("Failed to save call", "error", err, "call_id", req.CallID, "user_id", user.ID)
		http.Error(w, "Failed to save call", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"call":    call,
		"message": "Call saved",
	})

	slog.Info("Call saved for user", "call_id", req.CallID, "user_id", user.ID)
}

func (e *CallEndpoints) ReportStatusHandler(w http.ResponseWriter, r *http.Request) {
	callID := chi.URLParam(r, "callid")
	if callID == "" {
		http.Error(w, "Call ID is required", http.StatusBadRequest)
		return
	}

	exists, err := e.reportService.CheckReportStatus(r.Context(), callID)
	if err != nil {
		if errors.Is(err, ErrCallNotFound) {
			http.Error(w, "Call not found", http.StatusNotFound)
			return
		}
		slog.Error("Failed to check report status", "error", err, "call_id", callID)
		http.Error(w, "Failed to check report status", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"exists": exists,
	})
}

func (e *CallEndpoints) GetReportHandler(w http.ResponseWriter, r *http.Request) {
	callID := chi.URLParam(r, "callid")
	if callID == "" {
		http.Error(w, "Call ID is required", http.StatusBadRequest)
		return
	}

	report, err := e.reportService.GetOrGenerateReport(r.Context(), callID)
	if err != nil {
		switch {
		case errors.Is(err, ErrCallNotFound):
			http.Error(w, "Call not found", http.StatusNotFound)
		case errors.Is(err, ErrNoRecording):
			http.Error(w, "No recording available for this call", http.StatusBadRequest)
		default:
			slog.Error("Failed to get call report", "error", err, "call_id", callID)
			http.Error(w, "Failed to generate report", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "Report ready",
		"report":  report,
	})

	slog.Info("Call report served", "call_id", callID, "report_id", report.ID)
}
