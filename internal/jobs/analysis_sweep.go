package jobs

import (
	"context"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"wingmate/internal/database"
	"wingmate/internal/models"
	"wingmate/internal/services"
)

// sweepBatchLimit bounds how many records one sweep pass enqueues.
const sweepBatchLimit = 200

// AnalysisSweepJob periodically re-queues deep analysis for records the
// request-path trigger missed: a dropped queue entry, or activity that
// crossed the thresholds between feedback submissions. It applies the same
// staleness+volume gate as the foreground trigger.
type AnalysisSweepJob struct {
	persons  *mongo.Collection
	analysis *services.AnalysisService
	interval time.Duration
}

// NewAnalysisSweepJob creates a new analysis sweep job
func NewAnalysisSweepJob(mongodb *database.MongoDB, analysis *services.AnalysisService, interval time.Duration) *AnalysisSweepJob {
	return &AnalysisSweepJob{
		persons:  mongodb.Collection(database.CollectionPersons),
		analysis: analysis,
		interval: interval,
	}
}

// Run scans for records due for re-analysis and enqueues them.
func (j *AnalysisSweepJob) Run(ctx context.Context) error {
	cutoff := time.Now().Add(-services.ReanalysisInterval)

	// Candidates: never analyzed but already carrying messages, or stale
	// since the cutoff. The exact message-volume check happens in Go, where
	// the trigger logic lives.
	filter := bson.M{
		"$or": []bson.M{
			{"lastAnalyzedAt": bson.M{"$exists": false}, "metrics.totalMessages": bson.M{"$gt": 0}},
			{"lastAnalyzedAt": bson.M{"$lt": cutoff}},
		},
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "lastAnalyzedAt", Value: 1}}).
		SetLimit(sweepBatchLimit)
	cursor, err := j.persons.Find(ctx, filter, opts)
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)

	enqueued := 0
	for cursor.Next(ctx) {
		var person models.PersonRecord
		if err := cursor.Decode(&person); err != nil {
			log.Printf("⚠️ [ANALYSIS-SWEEP] Failed to decode person: %v", err)
			continue
		}
		if j.analysis.ShouldAnalyze(&person) {
			j.analysis.Enqueue(person.ID)
			enqueued++
		}
	}

	if enqueued > 0 {
		log.Printf("🧹 [ANALYSIS-SWEEP] Enqueued %d records for re-analysis", enqueued)
	}
	return cursor.Err()
}

// NextRunTime schedules the next sweep one interval out.
func (j *AnalysisSweepJob) NextRunTime() time.Time {
	return time.Now().Add(j.interval)
}
