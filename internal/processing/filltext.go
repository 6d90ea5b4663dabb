package processing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rmuseum/naskban-go/internal/datastore/repository"
	"github.com/rmuseum/naskban-go/internal/errors"
	"github.com/rmuseum/naskban-go/internal/events"
	"github.com/rmuseum/naskban-go/internal/jobqueue"
	"github.com/rmuseum/naskban-go/internal/logger"
	"github.com/rmuseum/naskban-go/internal/notification"
	"github.com/rmuseum/naskban-go/internal/observability/metrics"
)

const (
	fillJobName = "StartFillingMissingBookTexts"
	fillJobStep = "Query data"

	// fillProgressEvery is how many books pass between progress updates
	fillProgressEvery = 25
)

// Submitter runs work in the background
type Submitter interface {
	Submit(name string, action jobqueue.Action) error
}

// JobTracker records long-running job progress
type JobTracker interface {
	NewJob(ctx context.Context, name, step string) (uuid.UUID, error)
	UpdateJob(ctx context.Context, id uuid.UUID, progress float64, step string, succeeded bool, errText string) error
}

// TextFiller rebuilds the aggregated text of OCRed books whose text is
// empty, for books completed before aggregation existed or whose
// aggregation failed.
type TextFiller struct {
	db       *gorm.DB
	queue    Submitter
	tracker  JobTracker
	notifier notification.Notifier
	opts     options
}

// NewTextFiller creates a TextFiller. A nil notifier disables outcome
// notifications.
func NewTextFiller(db *gorm.DB, queue Submitter, tracker JobTracker, notifier notification.Notifier, opts ...Option) *TextFiller {
	o := newOptions(opts)
	o.log = o.log.Module("filltext")
	if notifier == nil {
		notifier = notification.Noop{}
	}
	return &TextFiller{db: db, queue: queue, tracker: tracker, notifier: notifier, opts: o}
}

// Start records a job and submits the fill to the background queue. It
// returns the job id immediately; progress is visible through the tracker.
func (f *TextFiller) Start(ctx context.Context) (uuid.UUID, error) {
	jobID, err := f.tracker.NewJob(ctx, fillJobName, fillJobStep)
	if err != nil {
		return uuid.Nil, err
	}

	err = f.queue.Submit(fillJobName, func(runCtx context.Context) error {
		return f.run(runCtx, jobID)
	})
	if err != nil {
		if uerr := f.tracker.UpdateJob(ctx, jobID, 100, "", false, err.Error()); uerr != nil {
			f.opts.log.Error("failed to close rejected job", logger.Error(uerr))
		}
		return uuid.Nil, err
	}
	return jobID, nil
}

// run is the background body of the job. The job record is always closed.
func (f *TextFiller) run(ctx context.Context, jobID uuid.UUID) error {
	start := time.Now()
	log := f.opts.log.With(logger.String("job_id", jobID.String()))

	filled, err := f.fill(ctx, jobID)
	f.opts.metrics.ObserveOperation(metrics.OpFillBookTexts, time.Since(start))

	outcome := notification.JobOutcome{ID: jobID, Name: fillJobName, Succeeded: err == nil}
	if err != nil {
		outcome.Error = err.Error()
		log.Error("filling book texts failed", logger.Error(err))
	} else {
		log.Info("filling book texts finished", logger.Int("filled", filled))
	}

	// The job context may already be cancelled by a queue shutdown; the
	// closing writes must still land.
	closeCtx := context.WithoutCancel(ctx)
	if uerr := f.tracker.UpdateJob(closeCtx, jobID, 100, "", outcome.Succeeded, outcome.Error); uerr != nil {
		log.Error("failed to record job outcome", logger.Error(uerr))
	}
	if nerr := f.notifier.NotifyJob(closeCtx, outcome); nerr != nil {
		log.Warn("job notification failed", logger.Error(nerr))
	}
	f.opts.events.TryPublish(events.New(events.KindJobFinished, map[string]any{
		"job_id":    jobID.String(),
		"name":      fillJobName,
		"succeeded": outcome.Succeeded,
		"filled":    filled,
	}))
	return err
}

// fill aggregates every OCRed book with empty text and saves non-empty
// results. A book whose text exceeds the size limit is skipped.
func (f *TextFiller) fill(ctx context.Context, jobID uuid.UUID) (int, error) {
	books := repository.NewBookRepository(f.db)

	ids, err := books.IDsMissingText(ctx)
	if err != nil {
		return 0, f.storeError(err, "list_books_missing_text")
	}

	filled := 0
	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			return filled, err
		}

		text, err := aggregateBook(ctx, f.db, id, f.opts.maxBookTextBytes)
		switch {
		case errors.IsCategory(err, errors.CategoryLimit):
			f.opts.log.Warn("skipping book with oversized text", logger.Int64("book_id", int64(id)), logger.Error(err))
		case err != nil:
			return filled, f.storeError(err, "aggregate_book_text")
		case text != "":
			if err := books.UpdateFields(ctx, id, map[string]any{"book_text": text}); err != nil {
				return filled, f.storeError(err, "save_book_text")
			}
			filled++
		}

		if (i+1)%fillProgressEvery == 0 && i+1 < len(ids) {
			progress := float64(i+1) * 100 / float64(len(ids))
			step := fmt.Sprintf("Filled %d of %d books", i+1, len(ids))
			if err := f.tracker.UpdateJob(ctx, jobID, progress, step, false, ""); err != nil {
				f.opts.log.Warn("failed to record job progress", logger.Error(err))
			}
		}
	}
	return filled, nil
}

func (f *TextFiller) storeError(err error, operation string) error {
	return errors.New(err).
		Component(componentProcessing).
		Category(errors.CategoryDatabase).
		Context("operation", operation).
		Build()
}
