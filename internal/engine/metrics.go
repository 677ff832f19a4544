package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MemoriesSavedTotal counts memory writes by result.
	// Labels: result (created, deduped)
	MemoriesSavedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "recalld",
			Subsystem: "engine",
			Name:      "memories_saved_total",
			Help:      "Total number of memory upserts by result",
		},
		[]string{"result"},
	)

	// LearningsRejectedTotal counts validation-gate rejections.
	LearningsRejectedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "recalld",
			Subsystem: "engine",
			Name:      "learnings_rejected_total",
			Help:      "Total number of learnings rejected by the validation gate",
		},
	)

	// FeedbackEdgesUpdatedTotal counts posterior updates by edge kind.
	// Labels: kind (recall, co_used)
	FeedbackEdgesUpdatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "recalld",
			Subsystem: "engine",
			Name:      "feedback_edges_updated_total",
			Help:      "Total number of Beta-posterior edge updates",
		},
		[]string{"kind"},
	)

	// RetrievalsTotal counts context bundle requests by path taken.
	// Labels: path (cases, fallback, empty)
	RetrievalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "recalld",
			Subsystem: "engine",
			Name:      "retrievals_total",
			Help:      "Total number of context bundle retrievals by resolution path",
		},
		[]string{"path"},
	)

	// RetrievalFallbackErrorsTotal counts fallback searches that degraded to
	// empty results because of an infrastructure failure.
	RetrievalFallbackErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "recalld",
			Subsystem: "engine",
			Name:      "retrieval_fallback_errors_total",
			Help:      "Total number of fallback searches degraded by infrastructure errors",
		},
	)

	// AutoRelateEdgesTotal counts RELATED_TO edges merged by auto-relation.
	AutoRelateEdgesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "recalld",
			Subsystem: "engine",
			Name:      "autorelate_edges_total",
			Help:      "Total number of RELATED_TO edges merged by tag auto-relation",
		},
	)
)
