package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"wingmate/internal/models"
)

// TestConfidenceScore checks the saturating volume formula
func TestConfidenceScore(t *testing.T) {
	tests := []struct {
		name          string
		conversations int64
		messages      int64
		expected      float64
	}{
		{name: "Fresh record", conversations: 0, messages: 0, expected: 10},
		{name: "Some evidence", conversations: 2, messages: 10, expected: 25},
		{name: "Saturates at 100", conversations: 50, messages: 1000, expected: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ConfidenceScore(tt.conversations, tt.messages); got != tt.expected {
				t.Errorf("ConfidenceScore(%d, %d) = %.2f, want %.2f", tt.conversations, tt.messages, got, tt.expected)
			}
		})
	}
}

// TestConfidenceScoreMonotonic: growing counters never lower the score
func TestConfidenceScoreMonotonic(t *testing.T) {
	prev := 0.0
	for conversations := int64(0); conversations <= 30; conversations += 5 {
		score := ConfidenceScore(conversations, conversations*10)
		if score < prev {
			t.Fatalf("Score decreased: %.2f after %.2f at %d conversations", score, prev, conversations)
		}
		prev = score
	}
}

// TestShouldAnalyze exercises the staleness+volume gate
func TestShouldAnalyze(t *testing.T) {
	s := &AnalysisService{}
	now := time.Now()
	recent := now.Add(-1 * time.Hour)
	stale := now.Add(-48 * time.Hour)

	tests := []struct {
		name     string
		person   models.PersonRecord
		expected bool
	}{
		{
			name:     "Never analyzed",
			person:   models.PersonRecord{},
			expected: true,
		},
		{
			name: "Recently analyzed",
			person: models.PersonRecord{
				LastAnalyzedAt: &recent,
				Metrics:        models.PersonMetrics{TotalMessages: 500},
			},
			expected: false,
		},
		{
			name: "Stale but quiet",
			person: models.PersonRecord{
				LastAnalyzedAt:         &stale,
				Metrics:                models.PersonMetrics{TotalMessages: 105},
				MessagesAtLastAnalysis: 100,
			},
			expected: false,
		},
		{
			name: "Stale and active",
			person: models.PersonRecord{
				LastAnalyzedAt:         &stale,
				Metrics:                models.PersonMetrics{TotalMessages: 120},
				MessagesAtLastAnalysis: 100,
			},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.ShouldAnalyze(&tt.person); got != tt.expected {
				t.Errorf("ShouldAnalyze = %v, want %v", got, tt.expected)
			}
		})
	}
}

// synthesisTestService builds an AnalysisService pointed at a stub
// reasoning endpoint.
func synthesisTestService(server *httptest.Server) *AnalysisService {
	return &AnalysisService{
		cfg: AnalysisConfig{
			BaseURL: server.URL,
			APIKey:  "test-key",
			Model:   "test-model",
		},
		client:  server.Client(),
		limiter: rate.NewLimiter(rate.Inf, 1),
	}
}

func completionResponse(content string) string {
	return `{"choices":[{"message":{"content":` + content + `}}]}`
}

// TestRequestSynthesis parses a well-formed structured response
func TestRequestSynthesis(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("Unexpected Authorization header: %s", auth)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(completionResponse(`"{\"personality_traits\":[{\"value\":\"extrovertida\",\"confidence\":0.8}],\"likes\":[],\"dislikes\":[],\"behavior_patterns\":[],\"communication_style\":\"respostas curtas\",\"recommended_approaches\":[\"perguntas abertas\"],\"avoid_approaches\":[]}"`)))
	}))
	defer server.Close()

	s := synthesisTestService(server)
	result, err := s.requestSynthesis(context.Background(), "evidence")
	if err != nil {
		t.Fatalf("requestSynthesis returned error: %v", err)
	}
	if len(result.PersonalityTraits) != 1 || result.PersonalityTraits[0].Value != "extrovertida" {
		t.Errorf("Traits = %+v, want one extrovertida entry", result.PersonalityTraits)
	}
	if result.CommunicationStyle != "respostas curtas" {
		t.Errorf("CommunicationStyle = %q", result.CommunicationStyle)
	}
}

// TestRequestSynthesisUnparsableContent: prose instead of the requested
// JSON fails the cycle with the reasoning sentinel, so nothing downstream
// writes back a partial result.
func TestRequestSynthesisUnparsableContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(completionResponse(`"This person seems very friendly and outgoing."`)))
	}))
	defer server.Close()

	s := synthesisTestService(server)
	result, err := s.requestSynthesis(context.Background(), "evidence")
	if !errors.Is(err, models.ErrReasoning) {
		t.Errorf("Expected ErrReasoning, got %v", err)
	}
	if result != nil {
		t.Errorf("Expected nil result on unparsable content, got %+v", result)
	}
}

// TestRequestSynthesisUpstreamError maps non-200 responses to ErrReasoning
func TestRequestSynthesisUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":"overloaded"}`))
	}))
	defer server.Close()

	s := synthesisTestService(server)
	if _, err := s.requestSynthesis(context.Background(), "evidence"); !errors.Is(err, models.ErrReasoning) {
		t.Errorf("Expected ErrReasoning, got %v", err)
	}
}

// TestRequestSynthesisEmptyChoices rejects a response with no completion
func TestRequestSynthesisEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	s := synthesisTestService(server)
	if _, err := s.requestSynthesis(context.Background(), "evidence"); !errors.Is(err, models.ErrReasoning) {
		t.Errorf("Expected ErrReasoning, got %v", err)
	}
}

// TestToInsights tags synthesized items with their source
func TestToInsights(t *testing.T) {
	payloads := []insightPayload{
		{Value: "extrovertida", Confidence: 0.8},
		{Value: "responde rápido à noite", Confidence: 0.6},
	}

	insights := toInsights(payloads)

	if len(insights) != 2 {
		t.Fatalf("Expected 2 insights, got %d", len(insights))
	}
	for _, insight := range insights {
		if insight.Source != "deep_analysis" {
			t.Errorf("Source = %q, want deep_analysis", insight.Source)
		}
	}
	if insights[0].Value != "extrovertida" || insights[0].Confidence != 0.8 {
		t.Errorf("First insight mismatch: %+v", insights[0])
	}
}
