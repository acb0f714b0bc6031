package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/genai"
)

const ModelName = "gemini-2.5-flash"

// GeminiService handles all Gemini AI operations: call analysis, audio
// transcription, and voice-health diagnosis.
type GeminiService struct {
	genaiClient *genai.Client
}

func NewGeminiService(apiKey string) *GeminiService {
	genaiClient, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		slog.Error("Failed to create genai client", "error", err)
		return nil
	}

	return &GeminiService{genaiClient: genaiClient}
}

// AnalyzeCallTranscript submits a call transcript for structured scoring and
// returns the model's free-text reply. Callers are responsible for extracting
// and validating the JSON payload.
func (g *GeminiService) AnalyzeCallTranscript(ctx context.Context, transcript string) (string, error) {
	if g.genaiClient == nil {
		return "", fmt.Errorf("genai client not initialized")
	}

	prompt := fmt.Sprintf(`You are a communication coach analyzing a phone call between a user practicing their speaking skills and an AI voice assistant.

Transcript:
%s

Respond with ONLY a JSON object in exactly this shape:
{
  "sentiment": "Positive" | "Neutral" | "Negative",
  "confidence": <0-100>,
  "vocabulary": <0-100>,
  "userTalkPct": <0-100>,
  "assistantTalkPct": <0-100>,
  "improvementAreas": ["<short actionable suggestion>", ...]
}

Where:
- sentiment is the overall tone of the user's speech
- confidence scores how confidently the user spoke
- vocabulary scores the richness of the user's vocabulary
- userTalkPct and assistantTalkPct estimate the speaking-time split and sum to 100
- improvementAreas lists 2-4 short, specific suggestions`, transcript)

	result, err := g.genaiClient.Models.GenerateContent(
		ctx,
		ModelName,
		genai.Text(prompt),
		nil,
	)
	if err != nil {
		return "", fmt.Errorf("failed to analyze transcript: %w", err)
	}

	response := result.Text()
	slog.Info("Call transcript analyzed", "transcript_length", len(transcript), "response_length", len(response))
	return response, nil
}

// TranscribeAudio transcribes recorded call audio to text.
func (g *GeminiService) TranscribeAudio(ctx context.Context, audioData []byte) (string, error) {
	slog.Info("Transcribing audio with Gemini", "size", len(audioData))

	// Add timeout for transcription
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	if g.genaiClient == nil {
		return "", fmt.Errorf("genai client not initialized")
	}

	parts := []*genai.Part{
		genai.NewPartFromText("Transcribe this audio to text. Provide only the transcript, no additional commentary."),
		&genai.Part{
			InlineData: &genai.Blob{
				MIMEType: "audio/mpeg",
				Data:     audioData,
			},
		},
	}

	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}

	result, err := g.genaiClient.Models.GenerateContent(
		ctx,
		ModelName,
		contents,
		nil,
	)
	if err != nil {
		return "", fmt.Errorf("failed to generate transcript: %w", err)
	}

	transcript := result.Text()
	slog.Info("Audio transcribed successfully", "transcript_length", len(transcript))

	return transcript, nil
}

// DiagnoseVoice analyzes an uploaded voice sample for vocal-health signals.
// Used as the fallback when no dedicated diagnosis endpoint is configured.
func (g *GeminiService) DiagnoseVoice(ctx context.Context, audioData []byte, mimeType string) (string, error) {
	if g.genaiClient == nil {
		return "", fmt.Errorf("genai client not initialized")
	}

	parts := []*genai.Part{
		genai.NewPartFromText(`Listen to this voice sample and assess the speaker's vocal health.

Respond with ONLY a JSON object in exactly this shape:
{
  "verdict": "<one-paragraph assessment of vocal health, strain, breathiness and clarity>",
  "confidence": <0-100>
}`),
		&genai.Part{
			InlineData: &genai.Blob{
				MIMEType: mimeType,
				Data:     audioData,
			},
		},
	}

	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}

	result, err := g.genaiClient.Models.GenerateContent(
		ctx,
		ModelName,
		contents,
		nil,
	)
	if err != nil {
		return "", fmt.Errorf("failed to diagnose voice sample: %w", err)
	}

	return result.Text(), nil
}
