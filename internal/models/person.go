package models

import (
	"time"
)

// PersonRecord is the crowd-aggregated profile of one real-world person on
// one platform. Every user that reports a sighting or submits feedback
// contributes to the same record; profile fields only grow (array union),
// counters only increase. The sole exception is the deep-analysis write-back,
// which replaces the insight fields wholesale with a fresh synthesis.
type PersonRecord struct {
	ID             string `bson:"_id" json:"id"`
	NormalizedName string `bson:"normalizedName" json:"normalized_name"`
	Platform       string `bson:"platform" json:"platform"`
	Username       string `bson:"username,omitempty" json:"username,omitempty"`

	ProfileData ProfileData        `bson:"profileData" json:"profile_data"`
	FaceData    FaceData           `bson:"faceData" json:"face_data"`
	Insights    CollectiveInsights `bson:"collectiveInsights" json:"collective_insights"`
	Metrics     PersonMetrics      `bson:"metrics" json:"metrics"`

	// ConfidenceScore (0-100) grows with evidence volume. Recomputed on each
	// deep analysis as min(100, 10 + conversations*5 + messages*0.5).
	ConfidenceScore float64 `bson:"confidenceScore" json:"confidence_score"`

	// Version guards read-modify-write updates of the heuristic fields.
	Version int64 `bson:"version" json:"version"`

	// MessagesAtLastAnalysis records Metrics.TotalMessages as of the last
	// deep analysis, so the staleness+volume trigger can count new messages.
	MessagesAtLastAnalysis int64 `bson:"messagesAtLastAnalysis" json:"messages_at_last_analysis"`

	CreatedAt      time.Time  `bson:"createdAt" json:"created_at"`
	LastUpdated    time.Time  `bson:"lastUpdated" json:"last_updated"`
	LastAnalyzedAt *time.Time `bson:"lastAnalyzedAt,omitempty" json:"last_analyzed_at,omitempty"`
}

// ProfileData holds the union of everything independent reporters have
// observed. Sets are append-only and deduplicated; nothing is ever
// overwritten, so concurrent merges from different reporters are safe.
type ProfileData struct {
	PossibleAges      []int    `bson:"possibleAges,omitempty" json:"possible_ages,omitempty"`
	PossibleLocations []string `bson:"possibleLocations,omitempty" json:"possible_locations,omitempty"`
	PossibleBios      []string `bson:"possibleBios,omitempty" json:"possible_bios,omitempty"`
	Interests         []string `bson:"interests,omitempty" json:"interests,omitempty"`
}

// FaceData keeps the stored photo refs and their perceptual fingerprints as
// parallel ordered lists. Lists grow by append and never shrink.
type FaceData struct {
	ImageRefs    []string `bson:"imageRefs,omitempty" json:"image_refs,omitempty"`
	Fingerprints []string `bson:"fingerprints,omitempty" json:"fingerprints,omitempty"`
	Description  string   `bson:"description,omitempty" json:"description,omitempty"`
}

// Insight is a single derived observation with a confidence value and the
// evidence source it came from.
type Insight struct {
	Value      string  `bson:"value" json:"value"`
	Confidence float64 `bson:"confidence" json:"confidence"`
	Source     string  `bson:"source,omitempty" json:"source,omitempty"`
}

// OpenerStat tracks how one coarse opener-type bucket performs.
type OpenerStat struct {
	Sent         int64    `bson:"sent" json:"sent"`
	Responses    int64    `bson:"responses" json:"responses"`
	ResponseRate float64  `bson:"responseRate" json:"response_rate"`
	Examples     []string `bson:"examples,omitempty" json:"examples,omitempty"`
}

// StrategyStat is one entry in the whatWorks / whatDoesntWork ledgers.
type StrategyStat struct {
	Strategy     string   `bson:"strategy" json:"strategy"`
	SuccessCount int64    `bson:"successCount" json:"success_count"`
	FailCount    int64    `bson:"failCount" json:"fail_count"`
	SuccessRate  float64  `bson:"successRate" json:"success_rate"`
	Examples     []string `bson:"examples,omitempty" json:"examples,omitempty"`
}

// CollectiveInsights is the derived-knowledge section of a PersonRecord.
// Traits, likes, dislikes, patterns, the communication summary and the
// approach lists are replaced by each deep analysis; opener stats and the
// strategy ledgers are maintained incrementally by the feedback path.
type CollectiveInsights struct {
	PersonalityTraits  []Insight `bson:"personalityTraits,omitempty" json:"personality_traits,omitempty"`
	Likes              []Insight `bson:"likes,omitempty" json:"likes,omitempty"`
	Dislikes           []Insight `bson:"dislikes,omitempty" json:"dislikes,omitempty"`
	BehaviorPatterns   []Insight `bson:"behaviorPatterns,omitempty" json:"behavior_patterns,omitempty"`
	CommunicationStyle string    `bson:"communicationStyle,omitempty" json:"communication_style,omitempty"`

	OpenerStats map[string]OpenerStat `bson:"openerStats,omitempty" json:"opener_stats,omitempty"`

	WhatWorks      []StrategyStat `bson:"whatWorks,omitempty" json:"what_works,omitempty"`
	WhatDoesntWork []StrategyStat `bson:"whatDoesntWork,omitempty" json:"what_doesnt_work,omitempty"`

	RecommendedApproaches []string `bson:"recommendedApproaches,omitempty" json:"recommended_approaches,omitempty"`
	AvoidApproaches       []string `bson:"avoidApproaches,omitempty" json:"avoid_approaches,omitempty"`
}

// InitialConfidence is assigned on first sighting; a record only becomes
// eligible for the insight brief once deep analysis has raised it past
// InsightConfidenceFloor.
const (
	InitialConfidence      = 10.0
	InsightConfidenceFloor = 20.0
)

// NewPersonRecord constructs a fresh record for a first sighting.
func NewPersonRecord(id, normalizedName, platform, username string) *PersonRecord {
	now := time.Now().UTC()
	return &PersonRecord{
		ID:              id,
		NormalizedName:  normalizedName,
		Platform:        platform,
		Username:        username,
		ConfidenceScore: InitialConfidence,
		Version:         1,
		CreatedAt:       now,
		LastUpdated:     now,
	}
}

// NewMessagesSince returns how many messages accrued after the last deep
// analysis.
func (p *PersonRecord) NewMessagesSince() int64 {
	return p.Metrics.TotalMessages - p.MessagesAtLastAnalysis
}

// PersonMetrics are monotonically increasing evidence counters.
type PersonMetrics struct {
	TotalConversations int64   `bson:"totalConversations" json:"total_conversations"`
	TotalMessages      int64   `bson:"totalMessages" json:"total_messages"`
	TotalResponses     int64   `bson:"totalResponses" json:"total_responses"`
	ResponseRate       float64 `bson:"responseRate" json:"response_rate"`
}
