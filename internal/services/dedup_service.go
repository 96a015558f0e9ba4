package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"wingmate/internal/database"
	"wingmate/internal/imagehash"
	"wingmate/internal/models"
)

// MatchThreshold is the minimum similarity percentage for declaring that a
// new photo shows an already-known person.
const MatchThreshold = 85.0

// DedupService decides whether a submitted face photo belongs to an
// already-known PersonRecord and persists the photo. It is the identity
// authority for photo-bearing sightings; the AvatarService handles the
// additive profile merge afterwards.
type DedupService struct {
	persons    *mongo.Collection
	imageStore *ImageStoreService

	// fingerprints of recently seen image bytes, keyed by content hash, so
	// a re-submitted photo skips the decode+scale work.
	fpCache *gocache.Cache
}

// NewDedupService creates a new image deduplication service
func NewDedupService(mongodb *database.MongoDB, imageStore *ImageStoreService) *DedupService {
	return &DedupService{
		persons:    mongodb.Collection(database.CollectionPersons),
		imageStore: imageStore,
		fpCache:    gocache.New(30*time.Minute, 10*time.Minute),
	}
}

// Fingerprint computes the perceptual hash of imageBytes, with a content
// cache in front of the decode.
func (s *DedupService) Fingerprint(imageBytes []byte) (imagehash.Hash, error) {
	sum := sha256.Sum256(imageBytes)
	key := hex.EncodeToString(sum[:])

	if cached, ok := s.fpCache.Get(key); ok {
		return cached.(imagehash.Hash), nil
	}

	h, err := imagehash.Fingerprint(imageBytes)
	if err != nil {
		if m := GetMetrics(); m != nil {
			m.FaceMatches.WithLabelValues("decode_error").Inc()
		}
		return h, err
	}

	s.fpCache.Set(key, h, gocache.DefaultExpiration)
	return h, nil
}

// FindCandidates restricts the search space to records sharing the same
// normalized name and platform. When an age is supplied, a record qualifies
// if its reported age set contains that age or age-1: a birthday may have
// occurred between two sightings, so the off-by-one is intentional.
// Candidates come back in createdAt ascending order, which makes the
// tie-break on equal similarity scores explicit: the earliest-created
// record wins.
func (s *DedupService) FindCandidates(ctx context.Context, name string, age *int, platform string) ([]models.PersonRecord, error) {
	filter := bson.M{
		"normalizedName": NormalizeName(name),
		"platform":       platform,
	}
	if age != nil {
		filter["profileData.possibleAges"] = bson.M{"$in": []int{*age, *age - 1}}
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	cursor, err := s.persons.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("candidate search failed: %w", err)
	}
	defer cursor.Close(ctx)

	var candidates []models.PersonRecord
	if err := cursor.All(ctx, &candidates); err != nil {
		return nil, fmt.Errorf("failed to decode candidates: %w", err)
	}
	return candidates, nil
}

// MatchResult is the outcome of comparing a new photo against candidates.
type MatchResult struct {
	IsMatch    bool
	Similarity float64
	MatchedID  string
}

// MatchAgainstCandidates fingerprints the new image once and compares it
// against every stored fingerprint of every candidate, keeping the single
// best score. Only a strictly better score replaces the current best, so
// ties resolve to the candidate scanned first.
func (s *DedupService) MatchAgainstCandidates(imageBytes []byte, candidates []models.PersonRecord) (MatchResult, error) {
	result := MatchResult{}

	newHash, err := s.Fingerprint(imageBytes)
	if err != nil {
		return result, err
	}

	for _, candidate := range candidates {
		for _, stored := range candidate.FaceData.Fingerprints {
			storedHash, err := imagehash.Parse(stored)
			if err != nil {
				log.Printf("⚠️ [DEDUP] Skipping unreadable fingerprint on person %s: %v", candidate.ID, err)
				continue
			}
			score := imagehash.Similarity(newHash, storedHash)
			if score > result.Similarity {
				result.Similarity = score
				result.MatchedID = candidate.ID
			}
		}
	}

	result.IsMatch = result.MatchedID != "" && result.Similarity >= MatchThreshold

	if m := GetMetrics(); m != nil {
		m.MatchSimilarity.Observe(result.Similarity)
		if result.IsMatch {
			m.FaceMatches.WithLabelValues("match").Inc()
		} else {
			m.FaceMatches.WithLabelValues("no_match").Inc()
		}
	}

	return result, nil
}

// PhotoResult is the outcome of processing one submitted profile photo.
type PhotoResult struct {
	PersonID        string
	Created         bool
	IsExistingMatch bool
	Similarity      float64
	StoredImageRef  string
}

// ProcessProfilePhoto is the orchestrating entry point: handle-keyed
// platforms always attach the photo to the handle's record (creating it if
// absent); other platforms run find -> match -> attach-or-create. The photo
// is persisted before the match decision is used, so a match failure never
// loses the uploaded evidence.
func (s *DedupService) ProcessProfilePhoto(ctx context.Context, name string, age *int, platform string, imageBytes []byte, description, username string) (*PhotoResult, error) {
	hash, err := s.Fingerprint(imageBytes)
	if err != nil {
		return nil, err
	}

	if IsHandleKeyed(platform) && username != "" {
		personID := PersonIdentifier(name, platform, username, age)

		ref, err := s.imageStore.Store(imageBytes, personID)
		if err != nil {
			return nil, err
		}

		inserted, err := s.attachFace(ctx, personID, name, platform, username, ref, hash, description)
		if err != nil {
			return nil, err
		}

		return &PhotoResult{PersonID: personID, Created: inserted, IsExistingMatch: !inserted, StoredImageRef: ref}, nil
	}

	candidates, err := s.FindCandidates(ctx, name, age, platform)
	if err != nil {
		return nil, err
	}

	match, err := s.MatchAgainstCandidates(imageBytes, candidates)
	if err != nil {
		return nil, err
	}

	personID := PersonIdentifier(name, platform, username, age)
	if match.IsMatch {
		personID = match.MatchedID
	}

	// Persist before acting on the match decision.
	ref, err := s.imageStore.Store(imageBytes, personID)
	if err != nil {
		return nil, err
	}

	inserted, err := s.attachFace(ctx, personID, name, platform, username, ref, hash, description)
	if err != nil {
		return nil, err
	}

	log.Printf("🔍 [DEDUP] Photo for %q on %s -> person %s (match=%v, similarity=%.1f%%)",
		name, platform, personID, match.IsMatch, match.Similarity)

	return &PhotoResult{
		PersonID:        personID,
		Created:         inserted,
		IsExistingMatch: match.IsMatch,
		Similarity:      match.Similarity,
		StoredImageRef:  ref,
	}, nil
}

// attachFace appends the stored ref and fingerprint to the person's face
// data, creating the record on first sighting. Refs and fingerprints are
// $push (not $addToSet) because they are parallel ordered lists. Reports
// whether the upsert inserted a fresh record.
func (s *DedupService) attachFace(ctx context.Context, personID, name, platform, username, ref string, hash imagehash.Hash, description string) (bool, error) {
	fresh := models.NewPersonRecord(personID, NormalizeName(name), platform, username)

	setOnInsert := bson.M{
		"normalizedName":         fresh.NormalizedName,
		"platform":               fresh.Platform,
		"confidenceScore":        fresh.ConfidenceScore,
		"version":                fresh.Version,
		"createdAt":              fresh.CreatedAt,
		"messagesAtLastAnalysis": int64(0),
	}
	if username != "" {
		setOnInsert["username"] = username
	}

	set := bson.M{"lastUpdated": time.Now().UTC()}
	if description != "" {
		set["faceData.description"] = description
	}

	update := bson.M{
		"$push": bson.M{
			"faceData.imageRefs":    ref,
			"faceData.fingerprints": hash.String(),
		},
		"$set":         set,
		"$setOnInsert": setOnInsert,
	}

	res, err := s.persons.UpdateOne(ctx, bson.M{"_id": personID}, update, options.Update().SetUpsert(true))
	if err != nil {
		return false, fmt.Errorf("failed to attach face data to %s: %w", personID, err)
	}
	return res.UpsertedCount == 1, nil
}

// IsDecodeError reports whether err came from unreadable image bytes.
func IsDecodeError(err error) bool {
	return errors.Is(err, models.ErrDecode)
}
