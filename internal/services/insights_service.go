package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"wingmate/internal/models"
)

// briefCacheTTL bounds how stale a cached brief may get between analyses.
const briefCacheTTL = 10 * time.Minute

func briefCacheKey(normalizedName, platform string) string {
	return fmt.Sprintf("brief:%s:%s", normalizedName, platform)
}

// InsightsService renders a PersonRecord's high-confidence insights into a
// human-readable brief for message-suggestion consumers. Below the
// confidence floor it returns empty: "not enough collective knowledge yet"
// beats guessing.
type InsightsService struct {
	avatars *AvatarService
	redis   *RedisService
}

// NewInsightsService creates a new insights service
func NewInsightsService(avatars *AvatarService, redis *RedisService) *InsightsService {
	return &InsightsService{avatars: avatars, redis: redis}
}

// BriefFor returns the insight brief for a name+platform pair, or "" when
// no record exists or confidence is below the floor.
func (s *InsightsService) BriefFor(ctx context.Context, name, platform string) (string, error) {
	key := briefCacheKey(NormalizeName(name), platform)

	if s.redis != nil {
		if cached, err := s.redis.Get(ctx, key); err == nil && cached != "" {
			return cached, nil
		}
	}

	person, err := s.avatars.FindByName(ctx, name, platform)
	if errors.Is(err, models.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}

	if person.ConfidenceScore < models.InsightConfidenceFloor {
		return "", nil
	}

	brief := renderBrief(person)

	if s.redis != nil && brief != "" {
		if err := s.redis.Set(ctx, key, brief, briefCacheTTL); err != nil {
			log.Printf("⚠️ [INSIGHTS] Failed to cache brief: %v", err)
		}
	}
	return brief, nil
}

// renderBrief formats the collective knowledge as a prompt-ready text block.
func renderBrief(person *models.PersonRecord) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Collective knowledge about this person (confidence %.0f/100, %d conversations observed):\n",
		person.ConfidenceScore, person.Metrics.TotalConversations)

	writeInsightLine(&b, "Personality", person.Insights.PersonalityTraits)
	writeInsightLine(&b, "Responds well to", person.Insights.Likes)
	writeInsightLine(&b, "Responds poorly to", person.Insights.Dislikes)
	writeInsightLine(&b, "Behavior patterns", person.Insights.BehaviorPatterns)

	if person.Insights.CommunicationStyle != "" {
		fmt.Fprintf(&b, "Communication style: %s\n", person.Insights.CommunicationStyle)
	}

	if best := bestOpener(person.Insights.OpenerStats); best != "" {
		fmt.Fprintf(&b, "Best-performing opener type: %s\n", best)
	}

	if len(person.Insights.RecommendedApproaches) > 0 {
		fmt.Fprintf(&b, "Recommended: %s\n", strings.Join(person.Insights.RecommendedApproaches, "; "))
	}
	if len(person.Insights.AvoidApproaches) > 0 {
		fmt.Fprintf(&b, "Avoid: %s\n", strings.Join(person.Insights.AvoidApproaches, "; "))
	}

	return strings.TrimSpace(b.String())
}

func writeInsightLine(b *strings.Builder, label string, insights []models.Insight) {
	var values []string
	for _, insight := range insights {
		if insight.Confidence >= 0.5 {
			values = append(values, insight.Value)
		}
	}
	if len(values) > 0 {
		fmt.Fprintf(b, "%s: %s\n", label, strings.Join(values, ", "))
	}
}

// bestOpener picks the bucket with the highest response rate among buckets
// with enough volume to mean anything.
func bestOpener(stats map[string]models.OpenerStat) string {
	best := ""
	bestRate := -1.0
	for bucket, stat := range stats {
		if stat.Sent < 3 {
			continue
		}
		if stat.ResponseRate > bestRate {
			bestRate = stat.ResponseRate
			best = bucket
		}
	}
	if best == "" {
		return ""
	}
	return fmt.Sprintf("%s (%.0f%% response rate)", best, bestRate)
}
