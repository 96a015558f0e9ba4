package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"wingmate/internal/database"
	"wingmate/internal/models"
)

// openerExampleCap and strategyExampleCap bound how many raw examples each
// bucket retains.
const (
	openerExampleCap   = 5
	strategyExampleCap = 5
)

// FeedbackRequest is one reported message outcome.
type FeedbackRequest struct {
	PersonID            string `json:"person_id"`
	ConversationRef     string `json:"conversation_ref"`
	MessageID           string `json:"message_id"`
	Role                string `json:"role"` // "opener" or "reply"
	Text                string `json:"text"`
	GotResponse         bool   `json:"got_response"`
	ResponseTimeSeconds *int64 `json:"response_time_seconds,omitempty"`
	ResponseQuality     string `json:"response_quality,omitempty"`
}

// FeedbackService turns per-message outcomes into PersonRecord heuristics:
// opener bucket stats, the whatWorks/whatDoesntWork ledgers and the volume
// counters. After each update it evaluates the deep-analysis trigger.
type FeedbackService struct {
	persons       *mongo.Collection
	feedback      *mongo.Collection
	conversations *mongo.Collection
	avatars       *AvatarService
	analysis      *AnalysisService
}

// NewFeedbackService creates a new feedback service
func NewFeedbackService(mongodb *database.MongoDB, avatars *AvatarService, analysis *AnalysisService) *FeedbackService {
	return &FeedbackService{
		persons:       mongodb.Collection(database.CollectionPersons),
		feedback:      mongodb.Collection(database.CollectionMessageFeedback),
		conversations: mongodb.Collection(database.CollectionConversations),
		avatars:       avatars,
		analysis:      analysis,
	}
}

// SubmitFeedback anonymizes and persists the feedback event, folds it into
// the person's heuristics and, when the staleness+volume gate opens,
// schedules a deep analysis without blocking the caller.
func (s *FeedbackService) SubmitFeedback(ctx context.Context, req FeedbackRequest) (*models.MessageFeedback, error) {
	start := time.Now()

	if req.PersonID == "" || req.MessageID == "" {
		return nil, fmt.Errorf("person ID and message ID are required")
	}

	// Unknown personId is a caller error, never a fabricated record.
	if _, err := s.avatars.GetPerson(ctx, req.PersonID); err != nil {
		return nil, err
	}

	anonymized := AnonymizeMessage(req.Text)

	fb := &models.MessageFeedback{
		PersonID:            req.PersonID,
		ConversationRef:     req.ConversationRef,
		MessageID:           req.MessageID,
		Role:                req.Role,
		Text:                anonymized,
		GotResponse:         req.GotResponse,
		ResponseTimeSeconds: req.ResponseTimeSeconds,
		ResponseQuality:     req.ResponseQuality,
		StrategyTag:         ExtractStrategyTag(anonymized),
		CreatedAt:           time.Now().UTC(),
	}
	if req.Role == models.MessageRoleOpener {
		fb.OpenerType = ClassifyOpener(anonymized)
	}

	if _, err := s.feedback.InsertOne(ctx, fb); err != nil {
		return nil, fmt.Errorf("failed to persist feedback: %w", err)
	}

	if req.ConversationRef != "" {
		if err := s.appendConversationExcerpt(ctx, req.PersonID, req.ConversationRef, anonymized); err != nil {
			log.Printf("⚠️ [FEEDBACK] Failed to append conversation excerpt: %v", err)
		}
	}

	person, err := s.applyHeuristics(ctx, fb)
	if err != nil {
		return nil, err
	}

	if m := GetMetrics(); m != nil {
		m.FeedbackProcessed.Inc()
		m.FeedbackLatency.Observe(time.Since(start).Seconds())
	}

	// Fire-and-forget: a full queue or a failing analysis never affects the
	// foreground feedback flow.
	if s.analysis != nil && s.analysis.ShouldAnalyze(person) {
		s.analysis.Enqueue(person.ID)
	}

	return fb, nil
}

// appendConversationExcerpt keeps a capped excerpt of the conversation as
// raw evidence for deep analysis.
func (s *FeedbackService) appendConversationExcerpt(ctx context.Context, personID, conversationRef, text string) error {
	msg := models.ConversationMessage{
		Sender: "user",
		Text:   text,
		SentAt: time.Now().UTC(),
	}

	update := bson.M{
		"$push": bson.M{
			"messages": bson.M{
				"$each":  []models.ConversationMessage{msg},
				"$slice": -models.ConversationExcerptCap,
			},
		},
		"$set":         bson.M{"updatedAt": time.Now().UTC()},
		"$setOnInsert": bson.M{"personId": personID},
	}

	_, err := s.conversations.UpdateOne(ctx, bson.M{"_id": conversationRef}, update, options.Update().SetUpsert(true))
	return err
}

// applyHeuristics folds one feedback event into the person's stats inside a
// version-guarded read-modify-write, retried on conflict. Returns the
// post-update record.
func (s *FeedbackService) applyHeuristics(ctx context.Context, fb *models.MessageFeedback) (*models.PersonRecord, error) {
	for attempt := 0; attempt < maxWriteRetries; attempt++ {
		person, err := s.avatars.GetPerson(ctx, fb.PersonID)
		if err != nil {
			return nil, err
		}

		set := bson.M{"lastUpdated": time.Now().UTC()}

		if fb.OpenerType != "" {
			stat := person.Insights.OpenerStats[fb.OpenerType]
			stat.Sent++
			if fb.GotResponse {
				stat.Responses++
			}
			stat.ResponseRate = float64(stat.Responses) / float64(stat.Sent) * 100
			stat.Examples = appendCapped(stat.Examples, fb.Text, openerExampleCap)
			set["collectiveInsights.openerStats."+fb.OpenerType] = stat
		}

		// Warm responses credit the strategy; silence debits it. A received
		// but lukewarm response moves neither ledger.
		if fb.GotResponse && fb.ResponseQuality == models.ResponseQualityWarm {
			set["collectiveInsights.whatWorks"] = updateLedger(person.Insights.WhatWorks, fb.StrategyTag, fb.Text, true)
		} else if !fb.GotResponse {
			set["collectiveInsights.whatDoesntWork"] = updateLedger(person.Insights.WhatDoesntWork, fb.StrategyTag, fb.Text, false)
		}

		totalMessages := person.Metrics.TotalMessages + 1
		totalResponses := person.Metrics.TotalResponses
		if fb.GotResponse {
			totalResponses++
		}
		set["metrics.responseRate"] = float64(totalResponses) / float64(totalMessages) * 100

		inc := bson.M{
			"metrics.totalMessages": int64(1),
			"version":               int64(1),
		}
		if fb.GotResponse {
			inc["metrics.totalResponses"] = int64(1)
		}

		// The version filter detects a concurrent writer; a miss means our
		// read went stale and we redo the whole pass.
		res, err := s.persons.UpdateOne(ctx,
			bson.M{"_id": fb.PersonID, "version": person.Version},
			bson.M{"$set": set, "$inc": inc},
		)
		if err != nil {
			return nil, fmt.Errorf("heuristics update failed for %s: %w", fb.PersonID, err)
		}
		if res.ModifiedCount == 1 {
			return s.avatars.GetPerson(ctx, fb.PersonID)
		}

		log.Printf("🔁 [FEEDBACK] Version conflict on %s (attempt %d), retrying", fb.PersonID, attempt+1)
	}

	return nil, fmt.Errorf("heuristics update for %s: %w", fb.PersonID, models.ErrConflict)
}

// updateLedger increments the matching strategy entry, creating it with the
// observed counts when absent. Examples are kept only for successes.
func updateLedger(entries []models.StrategyStat, tag, example string, success bool) []models.StrategyStat {
	out := make([]models.StrategyStat, len(entries))
	copy(out, entries)

	for i := range out {
		if out[i].Strategy != tag {
			continue
		}
		if success {
			out[i].SuccessCount++
			out[i].Examples = appendCapped(out[i].Examples, example, strategyExampleCap)
		} else {
			out[i].FailCount++
		}
		out[i].SuccessRate = successRate(out[i].SuccessCount, out[i].FailCount)
		return out
	}

	entry := models.StrategyStat{Strategy: tag}
	if success {
		entry.SuccessCount = 1
		entry.Examples = []string{example}
	} else {
		entry.FailCount = 1
	}
	entry.SuccessRate = successRate(entry.SuccessCount, entry.FailCount)
	return append(out, entry)
}

func successRate(success, fail int64) float64 {
	total := success + fail
	if total == 0 {
		return 0
	}
	return float64(success) / float64(total) * 100
}

// appendCapped appends keeping only the limit most recent entries.
func appendCapped(examples []string, example string, limit int) []string {
	if example == "" {
		return examples
	}
	out := append(append([]string(nil), examples...), example)
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}
