package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Message roles reported by the caller.
const (
	MessageRoleOpener = "opener"
	MessageRoleReply  = "reply"
)

// Response quality labels. "warm" is the only label that counts as a
// strategy success.
const (
	ResponseQualityWarm    = "warm"
	ResponseQualityNeutral = "neutral"
	ResponseQualityCold    = "cold"
)

// MessageFeedback is one per coached message a caller reports on. Created
// once, immutable thereafter; it feeds the PersonRecord heuristics and is
// retained as raw evidence for deep analysis.
type MessageFeedback struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PersonID        string             `bson:"personId" json:"person_id"`
	ConversationRef string             `bson:"conversationRef" json:"conversation_ref"`
	MessageID       string             `bson:"messageId" json:"message_id"`

	Role string `bson:"role" json:"role"` // "opener" or "reply"

	// Text is the anonymized message text (self-introductions, phone-shaped
	// substrings and @handles stripped before persisting).
	Text string `bson:"text" json:"text"`

	GotResponse         bool   `bson:"gotResponse" json:"got_response"`
	ResponseTimeSeconds *int64 `bson:"responseTimeSeconds,omitempty" json:"response_time_seconds,omitempty"`
	ResponseQuality     string `bson:"responseQuality,omitempty" json:"response_quality,omitempty"`

	// Classification results, recorded so deep analysis can replay them.
	OpenerType  string `bson:"openerType,omitempty" json:"opener_type,omitempty"`
	StrategyTag string `bson:"strategyTag,omitempty" json:"strategy_tag,omitempty"`

	CreatedAt time.Time `bson:"createdAt" json:"created_at"`
}

// ConversationMessage is one excerpt line kept as deep-analysis evidence.
type ConversationMessage struct {
	Sender string    `bson:"sender" json:"sender"` // "user" or "match"
	Text   string    `bson:"text" json:"text"`
	SentAt time.Time `bson:"sentAt" json:"sent_at"`
}

// Conversation keeps a capped excerpt of one reporter's conversation with a
// person, keyed by the caller's conversationRef. Only the most recent
// excerpt lines are retained.
type Conversation struct {
	ID        string                `bson:"_id" json:"id"` // caller's conversationRef
	PersonID  string                `bson:"personId" json:"person_id"`
	Messages  []ConversationMessage `bson:"messages,omitempty" json:"messages,omitempty"`
	UpdatedAt time.Time             `bson:"updatedAt" json:"updated_at"`
}

// ConversationExcerptCap bounds how many excerpt lines a conversation keeps.
const ConversationExcerptCap = 10
