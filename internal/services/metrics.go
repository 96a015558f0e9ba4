package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all custom Prometheus metrics for the application
type Metrics struct {
	// Profile reporting
	ProfilesReported prometheus.Counter
	ProfileMerges    *prometheus.CounterVec // outcome: "created" or "merged"

	// Face matching
	FaceMatches     *prometheus.CounterVec // result: "match", "no_match", "decode_error"
	MatchSimilarity prometheus.Histogram

	// Feedback
	FeedbackProcessed prometheus.Counter
	FeedbackLatency   prometheus.Histogram

	// Deep analysis
	AnalysisRuns *prometheus.CounterVec // status: "ok", "failed", "skipped"
}

var globalMetrics *Metrics

// InitMetrics initializes the Prometheus metrics
func InitMetrics() *Metrics {
	metrics := &Metrics{
		ProfilesReported: promauto.NewCounter(prometheus.CounterOpts{
			Name: "wingmate_profiles_reported_total",
			Help: "Total number of profile sightings reported",
		}),

		ProfileMerges: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "wingmate_profile_merges_total",
			Help: "Profile resolutions by outcome",
		}, []string{"outcome"}), // "created" or "merged"

		FaceMatches: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "wingmate_face_matches_total",
			Help: "Face match decisions by result",
		}, []string{"result"}), // "match", "no_match", "decode_error"

		MatchSimilarity: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "wingmate_face_match_similarity_percent",
			Help:    "Best similarity score per match attempt",
			Buckets: []float64{10, 25, 50, 70, 80, 85, 90, 95, 99, 100},
		}),

		FeedbackProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "wingmate_feedback_processed_total",
			Help: "Total number of message feedback events processed",
		}),

		FeedbackLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "wingmate_feedback_duration_seconds",
			Help:    "Feedback ingestion latency in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}),

		AnalysisRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "wingmate_deep_analysis_runs_total",
			Help: "Deep analysis cycles by status",
		}, []string{"status"}), // "ok", "failed", "skipped"
	}

	globalMetrics = metrics
	return metrics
}

// GetMetrics returns the global metrics instance (may be nil before init)
func GetMetrics() *Metrics {
	return globalMetrics
}
