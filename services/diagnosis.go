package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/vocalcoach/backend/models"
	"github.com/vocalcoach/backend/repository"
)

// DiagnosisService runs voice-health analysis of uploaded audio. A dedicated
// model endpoint is preferred when configured; Gemini serves as the fallback.
type DiagnosisService struct {
	repo     *repository.GORMRepository
	endpoint string
	apiKey   string
	gemini   *GeminiService
	client   *http.Client
}

func NewDiagnosisService(repo *repository.GORMRepository, endpoint, apiKey string, gemini *GeminiService) *DiagnosisService {
	return &DiagnosisService{
		repo:     repo,
		endpoint: endpoint,
		apiKey:   apiKey,
		gemini:   gemini,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type diagnosisVerdict struct {
	Verdict    string  `json:"verdict"`
	Confidence float64 `json:"confidence"`
}

// Diagnose analyzes the audio sample and persists the resulting verdict.
func (s *DiagnosisService) Diagnose(ctx context.Context, userID string, audio []byte, mimeType string) (*models.VoiceDiagnosis, error) {
	raw, err := s.analyze(ctx, audio, mimeType)
	if err != nil {
		return nil, err
	}

	verdict := parseDiagnosisVerdict(raw)

	diagnosis := &models.VoiceDiagnosis{
		UserID:      userID,
		Verdict:     verdict.Verdict,
		Confidence:  clampScore(verdict.Confidence),
		RawResponse: raw,
	}
	if err := s.repo.CreateVoiceDiagnosis(ctx, diagnosis); err != nil {
		return nil, fmt.Errorf("failed to persist diagnosis: %w", err)
	}

	slog.Info("Voice diagnosis completed", "user_id", userID, "diagnosis_id", diagnosis.ID, "confidence", diagnosis.Confidence)
	return diagnosis, nil
}

func (s *DiagnosisService) analyze(ctx context.Context, audio []byte, mimeType string) (string, error) {
	if s.endpoint != "" {
		raw, err := s.callModelEndpoint(ctx, audio, mimeType)
		if err == nil {
			return raw, nil
		}
		slog.Warn("Diagnosis endpoint failed, falling back to Gemini", "error", err)
	}

	if s.gemini != nil {
		return s.gemini.DiagnoseVoice(ctx, audio, mimeType)
	}
	return "", fmt.Errorf("no diagnosis backend configured")
}

func (s *DiagnosisService) callModelEndpoint(ctx context.Context, audio []byte, mimeType string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", s.endpoint, bytes.NewReader(audio))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mimeType)
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call diagnosis endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("diagnosis endpoint error: %d - %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read diagnosis response: %w", err)
	}
	return string(body), nil
}

// parseDiagnosisVerdict extracts the verdict JSON from the model reply.
// Unparseable replies are kept verbatim as the verdict text.
func parseDiagnosisVerdict(raw string) diagnosisVerdict {
	if object, ok := extractJSONObject(raw); ok {
		var verdict diagnosisVerdict
		if err := json.Unmarshal([]byte(object), &verdict); err == nil && verdict.Verdict != "" {
			return verdict
		}
	}
	return diagnosisVerdict{Verdict: strings.TrimSpace(raw)}
}
