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

// PageOCRInfo is a page result submitted by an external worker. AIRevised
// selects the AI revision path; otherwise OCRed is applied as given.
type PageOCRInfo struct {
	PageID                    uint   `json:"pageId"`
	PageText                  string `json:"pageText"`
	FullResolutionImageWidth  int    `json:"fullResolutionImageWidth"`
	FullResolutionImageHeight int    `json:"fullResolutionImageHeight"`
	OCRed                     bool   `json:"ocred"`
	AIRevised                 bool   `json:"aiRevised"`
}

// bookChange is what a submission did to its book, reported after commit
type bookChange struct {
	bookID            uint
	completed         bool
	regressed         bool
	aggregationFailed bool
	backedUp          bool
}

// PageResults accepts page results from both pipelines
type PageResults struct {
	db   *gorm.DB
	opts options
}

// NewPageResults creates a PageResults over db
func NewPageResults(db *gorm.DB, opts ...Option) *PageResults {
	o := newOptions(opts)
	o.log = o.log.Module("results")
	return &PageResults{db: db, opts: o}
}

// SetPageOCRInfo stores a page result and re-evaluates the book. The page
// text is always overwritten; image dimensions only when both are given.
//
// On the AI path the text being replaced is appended to the backup log when
// it is non-empty and either the page was not yet revised or the new text
// differs. When every page is revised the book is marked revised and its
// text re-aggregated.
//
// On the OCR path the page flag is set to info.OCRed. When every page is
// OCRed the book is marked OCRed and its text re-aggregated; when the book
// was OCRed and this result leaves a page un-OCRed the book flag is cleared
// and its text left alone.
//
// Everything runs in one transaction. A failed aggregation keeps the old
// book text and does not fail the submission.
func (r *PageResults) SetPageOCRInfo(ctx context.Context, info PageOCRInfo) error {
	start := time.Now()
	queue := metrics.QueueOCR
	if info.AIRevised {
		queue = metrics.QueueAI
	}

	change, err := r.apply(ctx, info)
	r.opts.metrics.RecordPageResult(queue, err)
	r.opts.metrics.ObserveOperation(metrics.OpSetPageResult, time.Since(start))
	if err != nil {
		return err
	}

	log := r.opts.log.With(
		logger.String("queue", queue),
		logger.Int64("page_id", int64(info.PageID)),
		logger.Int64("book_id", int64(change.bookID)))

	if change.backedUp {
		r.opts.metrics.RecordTextBackup()
	}
	if change.aggregationFailed {
		r.opts.metrics.RecordAggregationFailure(queue)
	}
	if change.regressed {
		r.opts.metrics.RecordFlagRegression()
		log.Warn("book lost its OCRed flag after a page was resubmitted as not OCRed")
	}
	if change.completed {
		r.opts.metrics.RecordBookCompleted(queue)
		kind := events.KindBookOCRed
		if info.AIRevised {
			kind = events.KindBookAIRevised
		}
		r.opts.events.TryPublish(events.New(kind, map[string]any{"book_id": change.bookID}))
		log.Info("book completed")
	} else {
		log.Debug("page result stored")
	}
	return nil
}

func (r *PageResults) apply(ctx context.Context, info PageOCRInfo) (bookChange, error) {
	var change bookChange
	if info.PageID == 0 {
		return change, errors.Newf("page id is required").
			Component(componentProcessing).
			Category(errors.CategoryValidation).
			Context("operation", "set_page_ocr_info").
			Build()
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		pages := repository.NewPageRepository(tx)

		page, err := pages.GetByID(ctx, info.PageID)
		if err != nil {
			return err
		}
		change.bookID = page.BookID

		if info.AIRevised {
			if needsBackup(page, info.PageText) {
				if err := repository.NewBackupRepository(tx).Append(ctx, page.ID, page.PageText); err != nil {
					return err
				}
				change.backedUp = true
			}
			page.AIRevised = true
		} else {
			now := r.opts.now()
			page.OCRed = info.OCRed
			page.OCRTime = &now
		}

		if info.FullResolutionImageWidth != 0 && info.FullResolutionImageHeight != 0 {
			page.FullResolutionImageWidth = info.FullResolutionImageWidth
			page.FullResolutionImageHeight = info.FullResolutionImageHeight
		}
		page.PageText = info.PageText

		if err := pages.Save(ctx, page); err != nil {
			return err
		}

		if info.AIRevised {
			return r.reevaluateRevision(ctx, tx, &change)
		}
		return r.reevaluateOCR(ctx, tx, &change)
	})
	if err != nil {
		category := errors.CategoryDatabase
		if errors.Is(err, repository.ErrPageNotFound) || errors.Is(err, repository.ErrBookNotFound) {
			category = errors.CategoryNotFound
		}
		return change, errors.New(err).
			Component(componentProcessing).
			Category(category).
			Context("operation", "set_page_ocr_info").
			Context("page_id", info.PageID).
			Build()
	}
	return change, nil
}

// needsBackup reports whether the current page text must be preserved
// before an AI revision overwrites it
func needsBackup(page *entities.Page, incoming string) bool {
	if page.PageText == "" {
		return false
	}
	return !page.AIRevised || page.PageText != incoming
}

func (r *PageResults) reevaluateRevision(ctx context.Context, tx *gorm.DB, change *bookChange) error {
	remaining, err := repository.NewPageRepository(tx).CountWithout(ctx, change.bookID, repository.PageFlagAIRevised)
	if err != nil || remaining > 0 {
		return err
	}

	fields := map[string]any{"ai_revised": true}
	if text, ok := r.aggregate(ctx, tx, change.bookID); ok {
		fields["book_text"] = text
	} else {
		change.aggregationFailed = true
	}
	change.completed = true
	return repository.NewBookRepository(tx).UpdateFields(ctx, change.bookID, fields)
}

func (r *PageResults) reevaluateOCR(ctx context.Context, tx *gorm.DB, change *bookChange) error {
	remaining, err := repository.NewPageRepository(tx).CountWithout(ctx, change.bookID, repository.PageFlagOCRed)
	if err != nil {
		return err
	}

	books := repository.NewBookRepository(tx)
	if remaining == 0 {
		fields := map[string]any{"ocred": true, "ocr_time": r.opts.now()}
		if text, ok := r.aggregate(ctx, tx, change.bookID); ok {
			fields["book_text"] = text
		} else {
			change.aggregationFailed = true
		}
		change.completed = true
		return books.UpdateFields(ctx, change.bookID, fields)
	}

	book, err := books.GetByID(ctx, change.bookID)
	if err != nil {
		return err
	}
	if !book.OCRed {
		return nil
	}
	change.regressed = true
	return books.UpdateFields(ctx, change.bookID, map[string]any{"ocred": false})
}

// aggregate recomputes the book text. Failures are logged and reported as
// !ok so the caller keeps the stored text.
func (r *PageResults) aggregate(ctx context.Context, tx *gorm.DB, bookID uint) (string, bool) {
	start := time.Now()
	text, err := aggregateBook(ctx, tx, bookID, r.opts.maxBookTextBytes)
	r.opts.metrics.ObserveOperation(metrics.OpAggregateText, time.Since(start))
	if err != nil {
		r.opts.log.Warn("book text aggregation failed, keeping previous text",
			logger.Int64("book_id", int64(bookID)),
			logger.String("category", string(errors.CategoryOf(err))),
			logger.Error(err))
		return "", false
	}
	return text, true
}
