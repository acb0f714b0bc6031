package services

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/vocalcoach/backend/models"
	"github.com/vocalcoach/backend/repository"
)

// maxDiagnosisAudioBytes caps uploaded samples at 15MB.
const maxDiagnosisAudioBytes = 15 << 20

type DiagnosisEndpoints struct {
	diagnosisService *DiagnosisService
	creditService    *CreditService
	repo             *repository.GORMRepository
}

func NewDiagnosisEndpoints(diagnosisService *DiagnosisService, creditService *CreditService, repo *repository.GORMRepository) *DiagnosisEndpoints {
	return &DiagnosisEndpoints{
		diagnosisService: diagnosisService,
		creditService:    creditService,
		repo:             repo,
	}
}

func (e *DiagnosisEndpoints) RegisterRoutes(r chi.Router) {
	r.Route("/diagnosis", func(r chi.Router) {
		r.Get("/", e.HistoryHandler)
		r.Group(func(r chi.Router) {
			r.Use(e.creditService.RequirePaidFeature)
			r.Post("/", e.DiagnoseHandler)
		})
	})
}

func (e *DiagnosisEndpoints) DiagnoseHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value("user").(*models.User)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxDiagnosisAudioBytes)
	if err := r.ParseMultipartForm(maxDiagnosisAudioBytes); err != nil {
		http.Error(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		http.Error(w, "Missing audio file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "Failed to read audio file", http.StatusBadRequest)
		return
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "audio/mpeg"
	}

	diagnosis, err := e.diagnosisService.Diagnose(r.Context(), user.ID, audio, mimeType)
	if err != nil {
		slog.Error("Voice diagnosis failed", "user_id", user.ID, "error", err)
		http.Error(w, "Diagnosis failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(diagnosis)
}

func (e *DiagnosisEndpoints) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value("user").(*models.User)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	diagnoses, err := e.repo.GetVoiceDiagnoses(r.Context(), user.ID)
	if err != nil {
		slog.Error("Failed to load diagnosis history", "user_id", user.ID, "error", err)
		http.Error(w, "Failed to load diagnosis history", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"diagnoses": diagnoses,
	})
}
