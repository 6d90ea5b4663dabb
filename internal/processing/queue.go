// Package processing implements the OCR and AI revision pipelines: handing
// out the next book to external workers, accepting page results and keeping
// the book level flags and aggregated text consistent with its pages.
package processing

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/rmuseum/naskban-go/internal/datastore/entities"
	"github.com/rmuseum/naskban-go/internal/datastore/repository"
	"github.com/rmuseum/naskban-go/internal/errors"
	"github.com/rmuseum/naskban-go/internal/events"
	"github.com/rmuseum/naskban-go/internal/logger"
	"github.com/rmuseum/naskban-go/internal/observability/metrics"
)

const componentProcessing = "processing"

// Kind selects one of the two processing queues
type Kind string

const (
	KindOCR Kind = metrics.QueueOCR
	KindAI  Kind = metrics.QueueAI
)

// ParseKind converts a CLI or URL token to a Kind
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindOCR, KindAI:
		return Kind(s), nil
	default:
		return "", errors.Newf("unknown queue %q, expected ocr or ai", s).
			Component(componentProcessing).
			Category(errors.CategoryValidation).
			Build()
	}
}

// Queue hands out books to external OCR or AI workers. A claimed book is
// recorded as a marker; only the largest claimed id matters, so each book
// is handed out at most once until Reset.
type Queue struct {
	db   *gorm.DB
	kind Kind
	opts options
}

// NewQueue creates the queue of the given kind over db
func NewQueue(db *gorm.DB, kind Kind, opts ...Option) *Queue {
	o := newOptions(opts)
	o.log = o.log.Module(string(kind))
	return &Queue{db: db, kind: kind, opts: o}
}

// Kind returns the queue kind
func (q *Queue) Kind() Kind {
	return q.kind
}

func (q *Queue) markers(db *gorm.DB) repository.QueueRepository {
	if q.kind == KindAI {
		return repository.NewAIQueueRepository(db)
	}
	return repository.NewOCRQueueRepository(db)
}

func (q *Queue) eligible() repository.BookQuery {
	if q.kind == KindAI {
		notRevised := false
		return repository.BookQuery{OCRed: true, AIRevised: &notRevised}
	}
	return repository.BookQuery{OCRed: false}
}

// GetNext claims the lowest-id eligible book above the high-water mark and
// returns it with its pages ordered by page number and BookText empty. It
// returns (nil, nil) when nothing is eligible. Two concurrent callers may
// claim the same book; workers tolerate that.
func (q *Queue) GetNext(ctx context.Context) (*entities.Book, error) {
	start := time.Now()
	defer func() { q.opts.metrics.ObserveOperation(metrics.OpClaimNext, time.Since(start)) }()

	var next *entities.Book
	var mark uint
	err := q.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		markers := q.markers(tx)

		var err error
		mark, err = markers.HighWaterMark(ctx)
		if err != nil {
			return err
		}

		book, err := repository.NewBookRepository(tx).FirstPublishedAfter(ctx, mark, q.eligible())
		if errors.Is(err, repository.ErrBookNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		if err := markers.Claim(ctx, book.ID); err != nil {
			return err
		}
		book.BookText = ""
		next = book
		return nil
	})
	if err != nil {
		return nil, errors.New(err).
			Component(componentProcessing).
			Category(errors.CategoryDatabase).
			Context("operation", "claim_next_book").
			Context("queue", string(q.kind)).
			Build()
	}

	q.opts.metrics.RecordClaim(string(q.kind), next != nil)
	if next == nil {
		q.opts.log.Debug("queue is empty", logger.Int64("high_water_mark", int64(mark)))
		return nil, nil
	}

	q.opts.log.Info("book claimed",
		logger.Int64("book_id", int64(next.ID)),
		logger.Int("pages", len(next.Pages)),
		logger.Int64("high_water_mark", int64(mark)))
	q.opts.events.TryPublish(events.New(events.KindQueueClaimed, map[string]any{
		"queue":   string(q.kind),
		"book_id": next.ID,
	}))
	return next, nil
}

// Reset deletes every marker of this queue so all eligible books are handed
// out again. It returns the number of markers removed.
func (q *Queue) Reset(ctx context.Context) (int64, error) {
	removed, err := q.markers(q.db).Reset(ctx)
	if err != nil {
		return 0, errors.New(err).
			Component(componentProcessing).
			Category(errors.CategoryDatabase).
			Context("operation", "reset_queue").
			Context("queue", string(q.kind)).
			Build()
	}

	q.opts.metrics.RecordReset(string(q.kind))
	q.opts.log.Info("queue reset", logger.Int64("removed", removed))
	q.opts.events.TryPublish(events.New(events.KindQueueReset, map[string]any{
		"queue":   string(q.kind),
		"removed": removed,
	}))
	return removed, nil
}
