package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/vocalcoach/backend/models"
	"github.com/vocalcoach/backend/repository"
	ws "github.com/vocalcoach/backend/websocket"
)

var (
	ErrCallNotFound = errors.New("call not found")
	ErrNoRecording  = errors.New("no recording available")
)

// fallbackTranscript is analyzed in place of real speech when every
// transcription path fails; the pipeline never aborts on transcription.
const fallbackTranscript = "unable to transcribe"

// CallProvider is the slice of the voice platform API the report pipeline needs.
type CallProvider interface {
	GetCall(ctx context.Context, callID string) (*ProviderCall, error)
	DownloadRecording(ctx context.Context, recordingURL string) ([]byte, error)
}

// TranscriptAnalyzer is the slice of the AI service the report pipeline needs.
type TranscriptAnalyzer interface {
	TranscribeAudio(ctx context.Context, audioData []byte) (string, error)
	AnalyzeCallTranscript(ctx context.Context, transcript string) (string, error)
}

// CallReportService generates and caches AI analyses of calls. A report is
// generated at most once per call; later requests are served from storage.
type CallReportService struct {
	repo     *repository.GORMRepository
	provider CallProvider
	analyzer TranscriptAnalyzer
	hub      *ws.Hub
}

func NewCallReportService(repo *repository.GORMRepository, provider CallProvider, analyzer TranscriptAnalyzer, hub *ws.Hub) *CallReportService {
	return &CallReportService{
		repo:     repo,
		provider: provider,
		analyzer: analyzer,
		hub:      hub,
	}
}

// callAnalysis is the JSON shape requested from the LLM.
type callAnalysis struct {
	Sentiment        string   `json:"sentiment"`
	Confidence       float64  `json:"confidence"`
	Vocabulary       float64  `json:"vocabulary"`
	UserTalkPct      float64  `json:"userTalkPct"`
	AssistantTalkPct float64  `json:"assistantTalkPct"`
	ImprovementAreas []string `json:"improvementAreas"`
}

// CheckReportStatus reports whether an analysis already exists for the call,
// letting the UI choose "generate" vs "view" without paying generation cost.
func (s *CallReportService) CheckReportStatus(ctx context.Context, callID string) (bool, error) {
	call, err := s.repo.GetCallByExternalID(ctx, callID)
	if err != nil {
		return false, fmt.Errorf("failed to look up call: %w", err)
	}
	if call == nil {
		return false, ErrCallNotFound
	}

	report, err := s.repo.GetReportByCallID(ctx, callID)
	if err != nil {
		return false, fmt.Errorf("failed to look up report: %w", err)
	}
	return report != nil, nil
}

// GetOrGenerateReport returns the persisted report for the call, generating
// one on first request. Transcription and analysis failures degrade to
// fallbacks rather than failing the request; only unknown calls and calls
// without a recording are rejected.
func (s *CallReportService) GetOrGenerateReport(ctx context.Context, callID string) (*models.Report, error) {
	call, err := s.repo.GetCallByExternalID(ctx, callID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up call: %w", err)
	}
	if call == nil {
		return nil, ErrCallNotFound
	}

	existing, err := s.repo.GetReportByCallID(ctx, callID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up report: %w", err)
	}
	if existing != nil {
		slog.Info("Report served from cache", "call_id", callID, "report_id", existing.ID)
		return existing, nil
	}

	if call.RecordingURL == "" {
		return nil, ErrNoRecording
	}

	transcript := s.acquireTranscript(ctx, call)

	analysis, degradedReason := s.analyzeTranscript(ctx, transcript)

	report := &models.Report{
		CallID:           callID,
		Sentiment:        analysis.Sentiment,
		Confidence:       analysis.Confidence,
		Vocabulary:       analysis.Vocabulary,
		UserTalkPct:      analysis.UserTalkPct,
		AssistantTalkPct: analysis.AssistantTalkPct,
		ImprovementAreas: analysis.ImprovementAreas,
		Transcript:       transcript,
		Degraded:         degradedReason != "",
		DegradedReason:   degradedReason,
	}

	saved, err := s.repo.CreateReport(ctx, report)
	if err != nil {
		return nil, fmt.Errorf("failed to persist report: %w", err)
	}

	if s.hub != nil {
		s.hub.BroadcastEvent("report_ready", map[string]interface{}{
			"call_id":   callID,
			"report_id": saved.ID,
			"degraded":  saved.Degraded,
		})
	}

	slog.Info("Report generated", "call_id", callID, "report_id", saved.ID, "sentiment", saved.Sentiment, "degraded", saved.Degraded)
	return saved, nil
}

// acquireTranscript resolves the call transcript in priority order: the
// provider's own transcript or summary, then transcription of the downloaded
// recording, then the literal fallback placeholder.
func (s *CallReportService) acquireTranscript(ctx context.Context, call *models.Call) string {
	detail, err := s.provider.GetCall(ctx, call.ExternalID)
	if err != nil {
		slog.Warn("Failed to fetch call detail, falling back to recording transcription", "error", err, "call_id", call.ExternalID)
	} else if detail != nil {
		if strings.TrimSpace(detail.Transcript) != "" {
			return detail.Transcript
		}
		if strings.TrimSpace(detail.Summary) != "" {
			return detail.Summary
		}
	}

	audio, err := s.provider.DownloadRecording(ctx, call.RecordingURL)
	if err != nil {
		slog.Warn("Failed to download recording", "error", err, "call_id", call.ExternalID)
		return fallbackTranscript
	}

	transcript, err := s.analyzer.TranscribeAudio(ctx, audio)
	if err != nil || strings.TrimSpace(transcript) == "" {
		slog.Warn("Transcription failed or returned no text", "error", err, "call_id", call.ExternalID)
		return fallbackTranscript
	}
	return transcript
}

// analyzeTranscript runs the LLM analysis and parses its reply. The second
// return value is empty for a genuine analysis and carries the degradation
// reason when the neutral fallback was substituted.
func (s *CallReportService) analyzeTranscript(ctx context.Context, transcript string) (*callAnalysis, string) {
	response, err := s.analyzer.AnalyzeCallTranscript(ctx, transcript)
	if err != nil {
		slog.Error("LLM analysis failed, substituting neutral report", "error", err)
		return neutralAnalysis(), fmt.Sprintf("analysis request failed: %v", err)
	}

	analysis, err := parseCallAnalysis(response)
	if err != nil {
		slog.Error("Failed to parse LLM analysis, substituting neutral report", "error", err, "response_length", len(response))
		return neutralAnalysis(), fmt.Sprintf("analysis response unparseable: %v", err)
	}
	return analysis, ""
}

// extractJSONObject returns the first balanced {...} block in the reply.
// Brace counting ignores braces inside JSON strings, so prose before, after
// or between objects never widens the extracted span.
func extractJSONObject(response string) (string, bool) {
	start := strings.Index(response, "{")
	if start == -1 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(response); i++ {
		c := response[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return response[start : i+1], true
			}
		}
	}
	return "", false
}

// parseCallAnalysis extracts the first JSON object substring from the LLM's
// free-text reply and validates it.
func parseCallAnalysis(response string) (*callAnalysis, error) {
	object, ok := extractJSONObject(response)
	if !ok {
		return nil, fmt.Errorf("no JSON object in response")
	}

	var analysis callAnalysis
	if err := json.Unmarshal([]byte(object), &analysis); err != nil {
		return nil, fmt.Errorf("malformed JSON: %w", err)
	}

	switch analysis.Sentiment {
	case models.SentimentPositive, models.SentimentNeutral, models.SentimentNegative:
	default:
		return nil, fmt.Errorf("unknown sentiment %q", analysis.Sentiment)
	}

	analysis.Confidence = clampScore(analysis.Confidence)
	analysis.Vocabulary = clampScore(analysis.Vocabulary)
	analysis.UserTalkPct = clampScore(analysis.UserTalkPct)
	analysis.AssistantTalkPct = clampScore(analysis.AssistantTalkPct)
	if len(analysis.ImprovementAreas) == 0 {
		analysis.ImprovementAreas = []string{"No specific improvement areas identified"}
	}
	return &analysis, nil
}

func neutralAnalysis() *callAnalysis {
	return &callAnalysis{
		Sentiment:        models.SentimentNeutral,
		Confidence:       50,
		Vocabulary:       50,
		UserTalkPct:      50,
		AssistantTalkPct: 50,
		ImprovementAreas: []string{"Analysis unavailable for this call"},
	}
}

func clampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
