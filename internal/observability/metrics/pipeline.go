package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics contains Prometheus metrics for the processing queues, the
// link workflow and the poem-match queue. All methods are safe on a nil
// receiver so services can run without metrics.
type PipelineMetrics struct {
	registry *prometheus.Registry

	queueClaimsTotal         *prometheus.CounterVec
	queueResetsTotal         *prometheus.CounterVec
	pageResultsTotal         *prometheus.CounterVec
	booksCompletedTotal      *prometheus.CounterVec
	aggregationFailuresTotal *prometheus.CounterVec
	textBackupsTotal         prometheus.Counter
	flagRegressionsTotal     prometheus.Counter

	linkSuggestionsTotal *prometheus.CounterVec
	linkReviewsTotal     *prometheus.CounterVec
	linkSyncTotal        prometheus.Counter

	findingsQueuedTotal *prometheus.CounterVec
	findingUpdatesTotal *prometheus.CounterVec

	operationDuration *prometheus.HistogramVec
}

// NewPipelineMetrics creates and registers pipeline metrics.
func NewPipelineMetrics(registry *prometheus.Registry) (*PipelineMetrics, error) {
	m := &PipelineMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register pipeline metrics: %w", err)
	}
	return m, nil
}

func (m *PipelineMetrics) initMetrics() {
	m.queueClaimsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "naskban_queue_claims_total",
		Help: "Next-item requests per queue, by whether a book was handed out",
	}, []string{"queue", "result"})

	m.queueResetsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "naskban_queue_resets_total",
		Help: "Queue marker resets per queue",
	}, []string{"queue"})

	m.pageResultsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "naskban_page_results_total",
		Help: "Page result submissions by path and outcome",
	}, []string{"queue", "result"})

	m.booksCompletedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "naskban_books_completed_total",
		Help: "Books that became fully OCRed or fully AI revised",
	}, []string{"queue"})

	m.aggregationFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "naskban_book_text_aggregation_failures_total",
		Help: "Book text aggregations rejected and rolled back to the previous text",
	}, []string{"queue"})

	m.textBackupsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "naskban_unrevised_text_backups_total",
		Help: "Page texts preserved before an AI revision overwrote them",
	})

	m.flagRegressionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "naskban_book_ocr_flag_regressions_total",
		Help: "Books whose OCR flag was cleared by a page resubmission",
	})

	m.linkSuggestionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "naskban_ganjoor_link_suggestions_total",
		Help: "Ganjoor link suggestions by source and outcome",
	}, []string{"source", "result"})

	m.linkReviewsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "naskban_ganjoor_link_reviews_total",
		Help: "Ganjoor link reviews by decision",
	}, []string{"decision"})

	m.linkSyncTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "naskban_ganjoor_link_synchronizations_total",
		Help: "Approved links marked as absorbed by Ganjoor",
	})

	m.findingsQueuedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "naskban_poem_match_findings_queued_total",
		Help: "Poem-match enqueue requests by outcome",
	}, []string{"result"})

	m.findingUpdatesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "naskban_poem_match_progress_updates_total",
		Help: "Poem-match progress reports by resulting state",
	}, []string{"state"})

	m.operationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "naskban_pipeline_operation_duration_seconds",
		Help:    "Duration of pipeline operations",
		Buckets: operationDurationBuckets,
	}, []string{"operation"})
}

// RecordClaim records a next-item request on a queue.
func (m *PipelineMetrics) RecordClaim(queue string, found bool) {
	if m == nil {
		return
	}
	result := ResultSuccess
	if !found {
		result = ResultEmpty
	}
	m.queueClaimsTotal.WithLabelValues(queue, result).Inc()
}

// RecordReset records a queue reset.
func (m *PipelineMetrics) RecordReset(queue string) {
	if m == nil {
		return
	}
	m.queueResetsTotal.WithLabelValues(queue).Inc()
}

// RecordPageResult records a page result submission.
func (m *PipelineMetrics) RecordPageResult(queue string, err error) {
	if m == nil {
		return
	}
	m.pageResultsTotal.WithLabelValues(queue, resultLabel(err)).Inc()
}

// RecordBookCompleted records a book reaching the end of a queue.
func (m *PipelineMetrics) RecordBookCompleted(queue string) {
	if m == nil {
		return
	}
	m.booksCompletedTotal.WithLabelValues(queue).Inc()
}

// RecordAggregationFailure records a rolled back book text aggregation.
func (m *PipelineMetrics) RecordAggregationFailure(queue string) {
	if m == nil {
		return
	}
	m.aggregationFailuresTotal.WithLabelValues(queue).Inc()
}

// RecordTextBackup records an unrevised text backup.
func (m *PipelineMetrics) RecordTextBackup() {
	if m == nil {
		return
	}
	m.textBackupsTotal.Inc()
}

// RecordFlagRegression records a book OCR flag being cleared.
func (m *PipelineMetrics) RecordFlagRegression() {
	if m == nil {
		return
	}
	m.flagRegressionsTotal.Inc()
}

// RecordLinkSuggestion records a suggestion attempt.
func (m *PipelineMetrics) RecordLinkSuggestion(byMachine bool, err error) {
	if m == nil {
		return
	}
	source := "user"
	if byMachine {
		source = "machine"
	}
	m.linkSuggestionsTotal.WithLabelValues(source, resultLabel(err)).Inc()
}

// RecordLinkReview records a review decision.
func (m *PipelineMetrics) RecordLinkReview(decision string) {
	if m == nil {
		return
	}
	m.linkReviewsTotal.WithLabelValues(decision).Inc()
}

// RecordLinkSync records a link synchronization.
func (m *PipelineMetrics) RecordLinkSync() {
	if m == nil {
		return
	}
	m.linkSyncTotal.Inc()
}

// RecordFindingQueued records an enqueue attempt.
func (m *PipelineMetrics) RecordFindingQueued(err error) {
	if m == nil {
		return
	}
	m.findingsQueuedTotal.WithLabelValues(resultLabel(err)).Inc()
}

// RecordFindingUpdate records a progress report, labelled by the resulting state.
func (m *PipelineMetrics) RecordFindingUpdate(started, finished bool) {
	if m == nil {
		return
	}
	state := "queued"
	switch {
	case finished:
		state = "finished"
	case started:
		state = "running"
	}
	m.findingUpdatesTotal.WithLabelValues(state).Inc()
}

// ObserveOperation records the duration of a pipeline operation.
func (m *PipelineMetrics) ObserveOperation(operation string, d time.Duration) {
	if m == nil {
		return
	}
	m.operationDuration.WithLabelValues(operation).Observe(seconds(d))
}

// Describe implements the prometheus.Collector interface.
func (m *PipelineMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.queueClaimsTotal.Describe(ch)
	m.queueResetsTotal.Describe(ch)
	m.pageResultsTotal.Describe(ch)
	m.booksCompletedTotal.Describe(ch)
	m.aggregationFailuresTotal.Describe(ch)
	m.textBackupsTotal.Describe(ch)
	m.flagRegressionsTotal.Describe(ch)
	m.linkSuggestionsTotal.Describe(ch)
	m.linkReviewsTotal.Describe(ch)
	m.linkSyncTotal.Describe(ch)
	m.findingsQueuedTotal.Describe(ch)
	m.findingUpdatesTotal.Describe(ch)
	m.operationDuration.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *PipelineMetrics) Collect(ch chan<- prometheus.Metric) {
	m.queueClaimsTotal.Collect(ch)
	m.queueResetsTotal.Collect(ch)
	m.pageResultsTotal.Collect(ch)
	m.booksCompletedTotal.Collect(ch)
	m.aggregationFailuresTotal.Collect(ch)
	m.textBackupsTotal.Collect(ch)
	m.flagRegressionsTotal.Collect(ch)
	m.linkSuggestionsTotal.Collect(ch)
	m.linkReviewsTotal.Collect(ch)
	m.linkSyncTotal.Collect(ch)
	m.findingsQueuedTotal.Collect(ch)
	m.findingUpdatesTotal.Collect(ch)
	m.operationDuration.Collect(ch)
}

func resultLabel(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultSuccess
}
