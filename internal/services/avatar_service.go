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

// maxWriteRetries bounds the transparent retry on conflicting record
// writes. Concurrent reporters are the common case, not the exception.
const maxWriteRetries = 3

// ReportProfileRequest is one sighting of a person, as reported by a caller.
type ReportProfileRequest struct {
	Name            string   `json:"name"`
	Platform        string   `json:"platform"`
	Username        string   `json:"username,omitempty"`
	Age             *int     `json:"age,omitempty"`
	Location        string   `json:"location,omitempty"`
	Bio             string   `json:"bio,omitempty"`
	Interests       []string `json:"interests,omitempty"`
	Photo           []byte   `json:"photo,omitempty"`
	FaceDescription string   `json:"face_description,omitempty"`
}

// FindOrCreateResult summarizes how a sighting resolved.
type FindOrCreateResult struct {
	Person          *models.PersonRecord
	Created         bool
	IsExistingMatch bool
	StoredImageRef  string
}

// AvatarService owns PersonRecord identity and merge logic. All mutation is
// additive union or counter increment, so records can absorb concurrent
// reports from independent users without losing evidence.
type AvatarService struct {
	persons *mongo.Collection
	dedup   *DedupService
}

// NewAvatarService creates a new collective avatar service
func NewAvatarService(mongodb *database.MongoDB, dedup *DedupService) *AvatarService {
	return &AvatarService{
		persons: mongodb.Collection(database.CollectionPersons),
		dedup:   dedup,
	}
}

// FindOrCreate resolves a sighting to a PersonRecord and merges the new
// observations into it. With a photo, identity comes from the face-match
// orchestrator; without one, from the deterministic identifier alone.
// Every sighting counts one conversation.
func (s *AvatarService) FindOrCreate(ctx context.Context, req ReportProfileRequest) (*FindOrCreateResult, error) {
	if req.Name == "" || req.Platform == "" {
		return nil, fmt.Errorf("name and platform are required")
	}

	result := &FindOrCreateResult{}
	personID := PersonIdentifier(req.Name, req.Platform, req.Username, req.Age)

	var photo *PhotoResult
	if len(req.Photo) > 0 {
		var err error
		photo, err = s.dedup.ProcessProfilePhoto(ctx, req.Name, req.Age, req.Platform, req.Photo, req.FaceDescription, req.Username)
		if err != nil {
			return nil, err
		}
		personID = photo.PersonID
		result.IsExistingMatch = photo.IsExistingMatch
		result.StoredImageRef = photo.StoredImageRef
	}

	merged, err := s.mergeSighting(ctx, personID, req)
	if err != nil {
		return nil, err
	}
	result.Created = sightingCreated(photo, merged)

	person, err := s.GetPerson(ctx, personID)
	if err != nil {
		return nil, err
	}
	result.Person = person

	if m := GetMetrics(); m != nil {
		m.ProfilesReported.Inc()
		if result.Created {
			m.ProfileMerges.WithLabelValues("created").Inc()
		} else {
			m.ProfileMerges.WithLabelValues("merged").Inc()
		}
	}

	log.Printf("👤 [AVATAR] Sighting of %q on %s -> %s (created=%v, faceMatch=%v)",
		req.Name, req.Platform, personID, result.Created, result.IsExistingMatch)

	return result, nil
}

// sightingCreated reports whether this sighting created the person record.
// A photo-bearing first sighting inserts the record while attaching face
// data, before the profile merge runs, so the merge upsert alone cannot be
// trusted to notice the insert.
func sightingCreated(photo *PhotoResult, mergeInserted bool) bool {
	if photo != nil && photo.Created {
		return true
	}
	return mergeInserted
}

// mergeSighting applies the additive merge for one sighting in a single
// atomic upsert: set-union on the observed profile fields plus the
// conversation counter increment. Duplicate-key races between concurrent
// first sightings are retried as plain merges.
func (s *AvatarService) mergeSighting(ctx context.Context, personID string, req ReportProfileRequest) (bool, error) {
	ops := []MergeOp{
		Increment("metrics.totalConversations", 1),
		Replace("lastUpdated", time.Now().UTC()),
	}
	if req.Age != nil {
		ops = append(ops, Union("profileData.possibleAges", *req.Age))
	}
	if req.Location != "" {
		ops = append(ops, Union("profileData.possibleLocations", req.Location))
	}
	if req.Bio != "" {
		ops = append(ops, Union("profileData.possibleBios", req.Bio))
	}
	if len(req.Interests) > 0 {
		values := make([]interface{}, len(req.Interests))
		for i, interest := range req.Interests {
			values[i] = interest
		}
		ops = append(ops, MergeOp{Kind: OpUnion, Field: "profileData.interests", Value: values})
	}

	update := BuildUpdate(ops)

	fresh := models.NewPersonRecord(personID, NormalizeName(req.Name), req.Platform, req.Username)
	setOnInsert := bson.M{
		"normalizedName":         fresh.NormalizedName,
		"platform":               fresh.Platform,
		"confidenceScore":        fresh.ConfidenceScore,
		"version":                fresh.Version,
		"createdAt":              fresh.CreatedAt,
		"messagesAtLastAnalysis": int64(0),
	}
	if req.Username != "" {
		setOnInsert["username"] = req.Username
	}
	update["$setOnInsert"] = setOnInsert

	var lastErr error
	for attempt := 0; attempt < maxWriteRetries; attempt++ {
		res, err := s.persons.UpdateOne(ctx, bson.M{"_id": personID}, update, options.Update().SetUpsert(true))
		if err == nil {
			return res.UpsertedCount == 1, nil
		}
		if !mongo.IsDuplicateKeyError(err) {
			return false, fmt.Errorf("sighting merge failed for %s: %w", personID, err)
		}
		// Another reporter created the record between our upsert check and
		// write. Retry; the next pass merges into the existing document.
		lastErr = err
		log.Printf("🔁 [AVATAR] Upsert race on %s (attempt %d), retrying", personID, attempt+1)
	}
	return false, fmt.Errorf("%w: %v", models.ErrConflict, lastErr)
}

// GetPerson returns the record for personID, or models.ErrNotFound.
func (s *AvatarService) GetPerson(ctx context.Context, personID string) (*models.PersonRecord, error) {
	var person models.PersonRecord
	err := s.persons.FindOne(ctx, bson.M{"_id": personID}).Decode(&person)
	if err == mongo.ErrNoDocuments {
		return nil, fmt.Errorf("person %s: %w", personID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load person %s: %w", personID, err)
	}
	return &person, nil
}

// FindByName returns the best-known record for a normalized name+platform
// pair, preferring the one with the most accumulated confidence.
func (s *AvatarService) FindByName(ctx context.Context, name, platform string) (*models.PersonRecord, error) {
	filter := bson.M{
		"normalizedName": NormalizeName(name),
		"platform":       platform,
	}
	opts := options.FindOne().SetSort(bson.D{{Key: "confidenceScore", Value: -1}})

	var person models.PersonRecord
	err := s.persons.FindOne(ctx, filter, opts).Decode(&person)
	if err == mongo.ErrNoDocuments {
		return nil, fmt.Errorf("person %q on %s: %w", name, platform, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find person by name: %w", err)
	}
	return &person, nil
}
