package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/time/rate"

	"wingmate/internal/database"
	"wingmate/internal/logging"
	"wingmate/internal/models"
)

// Re-analysis gate: fire if never analyzed, or if the record is both stale
// and has accrued enough new evidence. Idle records are never re-analyzed;
// very active ones refresh promptly.
const (
	ReanalysisInterval     = 24 * time.Hour
	ReanalysisMessageFloor = 10
)

// Evidence bundle bounds.
const (
	recentFeedbackLimit     = 50
	recentConversationLimit = 20
)

// DeepAnalysisSystemPrompt instructs the reasoning service.
const DeepAnalysisSystemPrompt = `You are the collective-profile analyst for a conversation coaching product. You receive the accumulated crowd evidence about one person: observed profile data, opener performance statistics, strategy ledgers, recent per-message feedback and conversation excerpts.

Synthesize a fresh holistic read of this person. Base every item strictly on the evidence; do not invent facts. Each trait, like, dislike and behavior pattern carries a confidence between 0 and 1.

Return JSON matching the requested schema.`

// deepAnalysisSchema defines the structured output contract.
var deepAnalysisSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"personality_traits": insightArraySchema("Personality traits inferred from the evidence"),
		"likes":              insightArraySchema("Topics and behaviors this person responds well to"),
		"dislikes":           insightArraySchema("Topics and behaviors this person responds poorly to"),
		"behavior_patterns":  insightArraySchema("Recurring behavior patterns across conversations"),
		"communication_style": map[string]interface{}{
			"type":        "string",
			"description": "One-paragraph summary of how this person communicates",
		},
		"recommended_approaches": map[string]interface{}{
			"type":  "array",
			"items": map[string]interface{}{"type": "string"},
		},
		"avoid_approaches": map[string]interface{}{
			"type":  "array",
			"items": map[string]interface{}{"type": "string"},
		},
	},
	"required": []string{
		"personality_traits", "likes", "dislikes", "behavior_patterns",
		"communication_style", "recommended_approaches", "avoid_approaches",
	},
	"additionalProperties": false,
}

func insightArraySchema(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "array",
		"description": description,
		"items": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"value":      map[string]interface{}{"type": "string"},
				"confidence": map[string]interface{}{"type": "number"},
			},
			"required":             []string{"value", "confidence"},
			"additionalProperties": false,
		},
	}
}

// AnalysisConfig configures the reasoning service client.
type AnalysisConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Workers int
	// QueueSize bounds the in-process analysis queue.
	QueueSize int
}

// AnalysisService commissions the periodic LLM re-synthesis of a
// PersonRecord's qualitative insights. Triggering and execution are
// decoupled: callers enqueue person ids, workers drain the queue. A failed
// cycle leaves the record untouched; the next trigger retries naturally.
type AnalysisService struct {
	persons       *mongo.Collection
	feedback      *mongo.Collection
	conversations *mongo.Collection
	redis         *RedisService

	cfg     AnalysisConfig
	client  *http.Client
	limiter *rate.Limiter

	queue  chan string
	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewAnalysisService creates a new deep analysis service
func NewAnalysisService(mongodb *database.MongoDB, redis *RedisService, cfg AnalysisConfig) *AnalysisService {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	return &AnalysisService{
		persons:       mongodb.Collection(database.CollectionPersons),
		feedback:      mongodb.Collection(database.CollectionMessageFeedback),
		conversations: mongodb.Collection(database.CollectionConversations),
		redis:         redis,
		cfg:           cfg,
		client:        &http.Client{Timeout: 60 * time.Second},
		limiter:       rate.NewLimiter(rate.Limit(1), 3), // 1 req/s to the reasoning service, burst 3
		queue:         make(chan string, cfg.QueueSize),
	}
}

// Start launches the analysis workers.
func (s *AnalysisService) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	for i := 0; i < s.cfg.Workers; i++ {
		s.wg.Add(1)
		go s.worker(ctx, i)
	}
	log.Printf("🚀 [ANALYSIS] Started %d analysis workers", s.cfg.Workers)
}

// Stop drains the workers.
func (s *AnalysisService) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	log.Println("🛑 [ANALYSIS] Analysis workers stopped")
}

func (s *AnalysisService) worker(ctx context.Context, id int) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case personID := <-s.queue:
			if err := s.Analyze(ctx, personID); err != nil {
				// Swallowed into logs: this path is fire-and-forget and must
				// never affect the foreground feedback flow.
				log.Printf("⚠️ [ANALYSIS] Worker %d: analysis of %s failed: %v", id, personID, err)
			}
		}
	}
}

// Enqueue schedules a deep analysis without blocking the caller. A full
// queue drops the request; the periodic sweep will pick the record up again.
func (s *AnalysisService) Enqueue(personID string) {
	select {
	case s.queue <- personID:
		log.Printf("📥 [ANALYSIS] Queued deep analysis for %s", personID)
	default:
		log.Printf("⚠️ [ANALYSIS] Queue full, dropping analysis request for %s", personID)
	}
}

// ShouldAnalyze implements the staleness+volume gate.
func (s *AnalysisService) ShouldAnalyze(p *models.PersonRecord) bool {
	if p.LastAnalyzedAt == nil {
		return true
	}
	return time.Since(*p.LastAnalyzedAt) > ReanalysisInterval && p.NewMessagesSince() > ReanalysisMessageFloor
}

// analysisResult is the structured payload expected from the reasoning
// service.
type analysisResult struct {
	PersonalityTraits     []insightPayload `json:"personality_traits"`
	Likes                 []insightPayload `json:"likes"`
	Dislikes              []insightPayload `json:"dislikes"`
	BehaviorPatterns      []insightPayload `json:"behavior_patterns"`
	CommunicationStyle    string           `json:"communication_style"`
	RecommendedApproaches []string         `json:"recommended_approaches"`
	AvoidApproaches       []string         `json:"avoid_approaches"`
}

type insightPayload struct {
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// Analyze runs one full deep-analysis cycle for a person: evidence bundle,
// reasoning call, and the one write path that is allowed to replace insight
// fields instead of unioning them.
func (s *AnalysisService) Analyze(ctx context.Context, personID string) error {
	var person models.PersonRecord
	err := s.persons.FindOne(ctx, bson.M{"_id": personID}).Decode(&person)
	if err == mongo.ErrNoDocuments {
		return fmt.Errorf("person %s: %w", personID, models.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to load person %s: %w", personID, err)
	}

	// Re-check the gate: the record may have been analyzed while queued.
	if !s.ShouldAnalyze(&person) {
		if m := GetMetrics(); m != nil {
			m.AnalysisRuns.WithLabelValues("skipped").Inc()
		}
		return nil
	}

	evidence, err := s.buildEvidence(ctx, &person)
	if err != nil {
		return err
	}

	result, err := s.requestSynthesis(ctx, evidence)
	if err != nil {
		if m := GetMetrics(); m != nil {
			m.AnalysisRuns.WithLabelValues("failed").Inc()
		}
		return err
	}

	if err := s.writeBack(ctx, &person, result); err != nil {
		return err
	}

	if m := GetMetrics(); m != nil {
		m.AnalysisRuns.WithLabelValues("ok").Inc()
	}
	logging.WithPerson(personID, person.Platform).Info("deep analysis complete",
		"traits", len(result.PersonalityTraits),
		"likes", len(result.Likes),
		"patterns", len(result.BehaviorPatterns))
	return nil
}

// buildEvidence assembles the bounded evidence bundle: profile fields,
// opener statistics, the 50 most recent feedback entries and excerpts from
// the 20 most recent conversations (each already capped).
func (s *AnalysisService) buildEvidence(ctx context.Context, person *models.PersonRecord) (string, error) {
	var b strings.Builder

	fmt.Fprintf(&b, "PERSON: %s (platform: %s)\n", person.NormalizedName, person.Platform)
	fmt.Fprintf(&b, "Conversations reported: %d | Messages: %d | Response rate: %.0f%%\n\n",
		person.Metrics.TotalConversations, person.Metrics.TotalMessages, person.Metrics.ResponseRate)

	if len(person.ProfileData.PossibleAges) > 0 {
		fmt.Fprintf(&b, "Reported ages: %v\n", person.ProfileData.PossibleAges)
	}
	if len(person.ProfileData.PossibleLocations) > 0 {
		fmt.Fprintf(&b, "Reported locations: %s\n", strings.Join(person.ProfileData.PossibleLocations, "; "))
	}
	if len(person.ProfileData.PossibleBios) > 0 {
		fmt.Fprintf(&b, "Reported bios: %s\n", strings.Join(person.ProfileData.PossibleBios, " | "))
	}
	if len(person.ProfileData.Interests) > 0 {
		fmt.Fprintf(&b, "Interests: %s\n", strings.Join(person.ProfileData.Interests, ", "))
	}

	if len(person.Insights.OpenerStats) > 0 {
		b.WriteString("\nOPENER PERFORMANCE:\n")
		for bucket, stat := range person.Insights.OpenerStats {
			fmt.Fprintf(&b, "- %s: %d sent, %.0f%% response rate\n", bucket, stat.Sent, stat.ResponseRate)
		}
	}
	writeLedger(&b, "WHAT WORKS", person.Insights.WhatWorks)
	writeLedger(&b, "WHAT DOESN'T WORK", person.Insights.WhatDoesntWork)

	feedback, err := s.recentFeedback(ctx, person.ID)
	if err != nil {
		return "", err
	}
	if len(feedback) > 0 {
		b.WriteString("\nRECENT MESSAGE FEEDBACK (newest first):\n")
		for _, fb := range feedback {
			outcome := "no response"
			if fb.GotResponse {
				outcome = "got response"
				if fb.ResponseQuality != "" {
					outcome += " (" + fb.ResponseQuality + ")"
				}
			}
			fmt.Fprintf(&b, "- [%s] %q -> %s\n", fb.Role, fb.Text, outcome)
		}
	}

	conversations, err := s.recentConversations(ctx, person.ID)
	if err != nil {
		return "", err
	}
	if len(conversations) > 0 {
		b.WriteString("\nCONVERSATION EXCERPTS:\n")
		for _, conv := range conversations {
			fmt.Fprintf(&b, "--- conversation %s ---\n", conv.ID)
			for _, msg := range conv.Messages {
				fmt.Fprintf(&b, "%s: %s\n", msg.Sender, msg.Text)
			}
		}
	}

	return b.String(), nil
}

func writeLedger(b *strings.Builder, title string, entries []models.StrategyStat) {
	if len(entries) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s:\n", title)
	for _, entry := range entries {
		fmt.Fprintf(b, "- %s: %d ok / %d failed (%.0f%%)\n",
			entry.Strategy, entry.SuccessCount, entry.FailCount, entry.SuccessRate)
	}
}

func (s *AnalysisService) recentFeedback(ctx context.Context, personID string) ([]models.MessageFeedback, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(recentFeedbackLimit)
	cursor, err := s.feedback.Find(ctx, bson.M{"personId": personID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent feedback: %w", err)
	}
	defer cursor.Close(ctx)

	var out []models.MessageFeedback
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode feedback: %w", err)
	}
	return out, nil
}

func (s *AnalysisService) recentConversations(ctx context.Context, personID string) ([]models.Conversation, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "updatedAt", Value: -1}}).
		SetLimit(recentConversationLimit)
	cursor, err := s.conversations.Find(ctx, bson.M{"personId": personID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversations: %w", err)
	}
	defer cursor.Close(ctx)

	var out []models.Conversation
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode conversations: %w", err)
	}
	return out, nil
}

// requestSynthesis makes the single-turn structured call to the reasoning
// service. A malformed response is an error; nothing is written back and no
// automatic retry happens.
func (s *AnalysisService) requestSynthesis(ctx context.Context, evidence string) (*analysisResult, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limiter: %v", models.ErrReasoning, err)
	}

	requestBody := map[string]interface{}{
		"model": s.cfg.Model,
		"messages": []map[string]interface{}{
			{"role": "system", "content": DeepAnalysisSystemPrompt},
			{"role": "user", "content": evidence},
		},
		"stream":      false,
		"temperature": 0.3,
		"response_format": map[string]interface{}{
			"type": "json_schema",
			"json_schema": map[string]interface{}{
				"name":   "deep_analysis",
				"strict": true,
				"schema": deepAnalysisSchema,
			},
		},
	}

	reqBody, err := json.Marshal(requestBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", s.cfg.BaseURL+"/chat/completions", bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrReasoning, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", models.ErrReasoning, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d: %s", models.ErrReasoning, resp.StatusCode, string(body))
	}

	var apiResponse struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &apiResponse); err != nil {
		return nil, fmt.Errorf("%w: failed to parse API response: %v", models.ErrReasoning, err)
	}
	if len(apiResponse.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty response", models.ErrReasoning)
	}

	var result analysisResult
	content := apiResponse.Choices[0].Message.Content
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		log.Printf("⚠️ [ANALYSIS] Unparsable synthesis (%d bytes): %v", len(content), err)
		return nil, fmt.Errorf("%w: unparsable synthesis: %v", models.ErrReasoning, err)
	}
	return &result, nil
}

// writeBack replaces the synthesized insight fields and recomputes the
// confidence score. This is the single place where Replace on insight
// fields is legal: the result is a fresh holistic synthesis, not piecemeal
// evidence.
func (s *AnalysisService) writeBack(ctx context.Context, person *models.PersonRecord, result *analysisResult) error {
	now := time.Now().UTC()
	confidence := ConfidenceScore(person.Metrics.TotalConversations, person.Metrics.TotalMessages)

	ops := []MergeOp{
		Replace("collectiveInsights.personalityTraits", toInsights(result.PersonalityTraits)),
		Replace("collectiveInsights.likes", toInsights(result.Likes)),
		Replace("collectiveInsights.dislikes", toInsights(result.Dislikes)),
		Replace("collectiveInsights.behaviorPatterns", toInsights(result.BehaviorPatterns)),
		Replace("collectiveInsights.communicationStyle", result.CommunicationStyle),
		Replace("collectiveInsights.recommendedApproaches", result.RecommendedApproaches),
		Replace("collectiveInsights.avoidApproaches", result.AvoidApproaches),
		Replace("confidenceScore", confidence),
		Replace("lastAnalyzedAt", now),
		Replace("lastUpdated", now),
		Replace("messagesAtLastAnalysis", person.Metrics.TotalMessages),
		Increment("version", 1),
	}

	_, err := s.persons.UpdateOne(ctx, bson.M{"_id": person.ID}, BuildUpdate(ops))
	if err != nil {
		return fmt.Errorf("analysis write-back failed for %s: %w", person.ID, err)
	}

	// Drop the cached brief so consumers see the fresh synthesis.
	if s.redis != nil {
		key := briefCacheKey(person.NormalizedName, person.Platform)
		if err := s.redis.Delete(ctx, key); err != nil {
			log.Printf("⚠️ [ANALYSIS] Failed to invalidate brief cache: %v", err)
		}
	}
	return nil
}

func toInsights(payloads []insightPayload) []models.Insight {
	out := make([]models.Insight, 0, len(payloads))
	for _, p := range payloads {
		out = append(out, models.Insight{
			Value:      p.Value,
			Confidence: p.Confidence,
			Source:     "deep_analysis",
		})
	}
	return out
}

// ConfidenceScore saturates at 100 and only grows while the underlying
// counters grow, so successive analyses never lower it.
func ConfidenceScore(conversations, messages int64) float64 {
	score := 10 + float64(conversations)*5 + float64(messages)*0.5
	if score > 100 {
		return 100
	}
	return score
}
