package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDiagnosePersistsVerdict(t *testing.T) {
	repo := newTestRepo(t)
	user := createTestUser(t, repo, "voice@example.com")

	var gotAuth, gotContentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		w.Write([]byte(`{"verdict":"mild vocal strain","confidence":72}`))
	}))
	defer server.Close()

	svc := NewDiagnosisService(repo, server.URL, "test-key", nil)

	diagnosis, err := svc.Diagnose(context.Background(), user.ID, []byte("fake-audio"), "audio/wav")
	if err != nil {
		t.Fatalf("Diagnose failed: %v", err)
	}
	if diagnosis.Verdict != "mild vocal strain" || diagnosis.Confidence != 72 {
		t.Errorf("unexpected verdict: %+v", diagnosis)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("expected bearer auth, got %q", gotAuth)
	}
	if gotContentType != "audio/wav" {
		t.Errorf("expected audio content type, got %q", gotContentType)
	}

	history, err := repo.GetVoiceDiagnoses(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("GetVoiceDiagnoses failed: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected 1 persisted diagnosis, got %d", len(history))
	}
}

func TestDiagnoseWithoutBackend(t *testing.T) {
	repo := newTestRepo(t)
	svc := NewDiagnosisService(repo, "", "", nil)

	if _, err := svc.Diagnose(context.Background(), "user-1", []byte("audio"), "audio/wav"); err == nil {
		t.Fatal("expected error when no diagnosis backend is configured")
	}
}

func TestParseDiagnosisVerdict(t *testing.T) {
	tests := []struct {
		name           string
		raw            string
		wantVerdict    string
		wantConfidence float64
	}{
		{
			name:           "bare JSON",
			raw:            `{"verdict":"healthy","confidence":90}`,
			wantVerdict:    "healthy",
			wantConfidence: 90,
		},
		{
			name:           "JSON wrapped in prose",
			raw:            "Based on the sample:\n{\"verdict\":\"hoarseness\",\"confidence\":65}\nConsult a specialist.",
			wantVerdict:    "hoarseness",
			wantConfidence: 65,
		},
		{
			name:        "free text kept verbatim",
			raw:         "  The voice sounds healthy overall.  ",
			wantVerdict: "The voice sounds healthy overall.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdict := parseDiagnosisVerdict(tt.raw)
			if verdict.Verdict != tt.wantVerdict {
				t.Errorf("verdict = %q, expected %q", verdict.Verdict, tt.wantVerdict)
			}
			if verdict.Confidence != tt.wantConfidence {
				t.Errorf("confidence = %v, expected %v", verdict.Confidence, tt.wantConfidence)
			}
		})
	}
}
