package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// VoiceAPIService is the HTTP client for the external voice-call platform.
type VoiceAPIService struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// ProviderCall is one call as reported by the voice platform's API.
type ProviderCall struct {
	ID           string     `json:"id"`
	StartedAt    *time.Time `json:"startedAt,omitempty"`
	EndedAt      *time.Time `json:"endedAt,omitempty"`
	Duration     float64    `json:"duration,omitempty"` // Seconds, used when timestamps are missing
	RecordingURL string     `json:"recordingUrl,omitempty"`
	Cost         float64    `json:"cost,omitempty"`
	Transcript   string     `json:"transcript,omitempty"`
	Summary      string     `json:"summary,omitempty"`
}

func NewVoiceAPIService(apiKey, baseURL string) *VoiceAPIService {
	return &VoiceAPIService{
		apiKey:  apiKey,
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// ListCalls fetches the full call list from the voice platform.
func (v *VoiceAPIService) ListCalls(ctx context.Context) ([]ProviderCall, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", v.baseURL+"/call", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+v.apiKey)

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("voice API error: %d - %s", resp.StatusCode, string(body))
	}

	var calls []ProviderCall
	if err := json.NewDecoder(resp.Body).Decode(&calls); err != nil {
		return nil, fmt.Errorf("failed to decode call list: %w", err)
	}

	slog.Info("Fetched call list from voice platform", "count", len(calls))
	return calls, nil
}

// GetCall fetches the detail record for one call, including the provider's
// transcript or summary when it produced one.
func (v *VoiceAPIService) GetCall(ctx context.Context, callID string) (*ProviderCall, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", v.baseURL+"/call/"+callID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+v.apiKey)

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("voice API error: %d - %s", resp.StatusCode, string(body))
	}

	var call ProviderCall
	if err := json.NewDecoder(resp.Body).Decode(&call); err != nil {
		return nil, fmt.Errorf("failed to decode call detail: %w", err)
	}
	return &call, nil
}

// DownloadRecording fetches the raw recording audio for transcription.
func (v *VoiceAPIService) DownloadRecording(ctx context.Context, recordingURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", recordingURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download recording: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("recording download error: %d", resp.StatusCode)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read recording body: %w", err)
	}

	slog.Info("Recording downloaded", "url", recordingURL, "size", len(audio))
	return audio, nil
}
