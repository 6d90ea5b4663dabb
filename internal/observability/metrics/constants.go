// Package metrics provides custom Prometheus metrics for the naskban
// components.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Result label values shared across metrics.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultEmpty   = "empty"
	ResultHit     = "hit"
	ResultMiss    = "miss"
)

// Queue label values.
const (
	QueueOCR = "ocr"
	QueueAI  = "ai"
)

// Operation label values for pipeline durations.
const (
	OpClaimNext       = "claim_next"
	OpSetPageResult   = "set_page_result"
	OpSuggestLink     = "suggest_link"
	OpReviewLink      = "review_link"
	OpEnqueueFinding  = "enqueue_finding"
	OpUpdateFinding   = "update_finding"
	OpFillBookTexts   = "fill_book_texts"
	OpAggregateText   = "aggregate_text"
	OpSynchronizeLink = "synchronize_link"
)

// Bucket layouts.
var (
	operationDurationBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	externalDurationBuckets  = prometheus.ExponentialBuckets(0.05, 2, 10)
)

// seconds converts a duration to the float seconds Prometheus expects.
func seconds(d time.Duration) float64 {
	return d.Seconds()
}
