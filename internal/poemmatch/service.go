// Package poemmatch keeps the queue of poem-match findings: batch jobs that
// compare the pages of a book with the poems of a Ganjoor category. The
// matching itself runs in an external worker which polls the queue and
// reports progress back through UpdateProgress.
package poemmatch

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rmuseum/naskban-go/internal/datastore/entities"
	"github.com/rmuseum/naskban-go/internal/datastore/repository"
	"github.com/rmuseum/naskban-go/internal/errors"
	"github.com/rmuseum/naskban-go/internal/events"
	"github.com/rmuseum/naskban-go/internal/ganjoor"
	"github.com/rmuseum/naskban-go/internal/logger"
	"github.com/rmuseum/naskban-go/internal/observability/metrics"
)

const componentPoemMatch = "poem-match"

const (
	msgAlreadyQueued   = "این بخش پیشتر برای این کتاب در صف قرار گرفته است."
	msgInvalidProgress = "پیشرفت باید بین ۰ و ۱۰۰ باشد."

	maxProgress = 100
)

// Corpus is the part of the Ganjoor API a finding needs at enqueue time.
// *ganjoor.Client satisfies it.
type Corpus interface {
	Category(ctx context.Context, id int) (*ganjoor.Category, error)
	Page(ctx context.Context, url string) (*ganjoor.Page, error)
}

// Request asks for a category to be matched against a book, starting at a
// poem and page.
type Request struct {
	CatID      int     `json:"ganjoorCatId"`
	PoemID     int     `json:"ganjoorPoemId"`
	BookID     uint    `json:"bookId"`
	PageNumber int     `json:"pageNumber"`
	Threshold  float64 `json:"threshold"`
}

// Progress is a worker report on a finding
type Progress struct {
	ID                uuid.UUID `json:"id"`
	Started           bool      `json:"started"`
	CurrentPoemID     int       `json:"currentPoemId"`
	CurrentPageNumber int       `json:"currentPageNumber"`
	Progress          int       `json:"progress"`
	Finished          bool      `json:"finished"`
}

// Service manages findings
type Service struct {
	db      *gorm.DB
	corpus  Corpus
	metrics *metrics.PipelineMetrics
	events  events.Publisher
	log     logger.Logger
	now     func() time.Time
}

// NewService creates a Service. A nil publisher discards events.
func NewService(db *gorm.DB, corpus Corpus, m *metrics.PipelineMetrics, publisher events.Publisher, log logger.Logger) *Service {
	if publisher == nil {
		publisher = events.Noop{}
	}
	if log == nil {
		log = logger.Global().Module(componentPoemMatch)
	}
	return &Service{
		db:      db,
		corpus:  corpus,
		metrics: m,
		events:  publisher,
		log:     log,
		now:     time.Now,
	}
}

// Enqueue registers a finding for (CatID, BookID). Only one finding may ever
// exist per pair, finished or not. Corpus metadata is fetched before anything
// is written, so a network failure leaves no trace.
func (s *Service) Enqueue(ctx context.Context, userID string, req Request) (*entities.PoemMatchFinding, error) {
	start := time.Now()
	finding, err := s.enqueue(ctx, userID, req)
	s.metrics.RecordFindingQueued(err)
	s.metrics.ObserveOperation(metrics.OpEnqueueFinding, time.Since(start))
	if err != nil {
		s.log.Warn("poem match finding rejected",
			logger.Int("cat_id", req.CatID),
			logger.Int64("book_id", int64(req.BookID)),
			logger.Error(err))
		return nil, err
	}

	s.log.Info("poem match finding queued",
		logger.String("finding_id", finding.ID.String()),
		logger.Int("cat_id", finding.GanjoorCatID),
		logger.Int64("book_id", int64(finding.BookID)))
	s.events.TryPublish(events.New(events.KindFindingQueued, findingEventData(finding)))
	return finding, nil
}

func (s *Service) enqueue(ctx context.Context, userID string, req Request) (*entities.PoemMatchFinding, error) {
	if req.CatID <= 0 || req.BookID == 0 {
		return nil, errors.New(errors.NewStd("شناسهٔ بخش گنجور و شناسهٔ کتاب الزامی است.")).
			Component(componentPoemMatch).
			Category(errors.CategoryValidation).
			Context("operation", "enqueue_finding").
			Build()
	}

	findings := repository.NewFindingRepository(s.db)
	exists, err := findings.Exists(ctx, req.CatID, req.BookID)
	if err != nil {
		return nil, s.wrap(err, "enqueue_finding")
	}
	if exists {
		return nil, s.conflict(req)
	}

	cat, err := s.corpus.Category(ctx, req.CatID)
	if err != nil {
		return nil, s.wrap(err, "fetch_category")
	}
	page, err := s.corpus.Page(ctx, cat.FullURL)
	if err != nil {
		return nil, s.wrap(err, "fetch_category_page")
	}

	book, err := repository.NewBookRepository(s.db).GetPublished(ctx, req.BookID)
	if err != nil {
		return nil, s.wrap(err, "enqueue_finding")
	}

	finding := &entities.PoemMatchFinding{
		GanjoorCatID:        req.CatID,
		GanjoorCatFullTitle: page.FullTitle,
		GanjoorCatFullURL:   cat.FullURL,
		GanjoorPoemID:       req.PoemID,
		BookID:              book.ID,
		BookTitle:           book.Title,
		PageNumber:          req.PageNumber,
		Threshold:           req.Threshold,
		QueueTime:           s.now(),
		QueuedByID:          userID,
		CurrentPoemID:       req.PoemID,
		CurrentPageNumber:   req.PageNumber,
	}
	if err := findings.Create(ctx, finding); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, s.conflict(req)
		}
		return nil, s.wrap(err, "enqueue_finding")
	}
	return finding, nil
}

func (s *Service) conflict(req Request) error {
	return errors.New(errors.NewStd(msgAlreadyQueued)).
		Component(componentPoemMatch).
		Category(errors.CategoryConflict).
		Context("operation", "enqueue_finding").
		Context("cat_id", req.CatID).
		Context("book_id", req.BookID).
		Build()
}

// Queue lists findings. Each flag narrows the result when true.
func (s *Service) Queue(ctx context.Context, notStarted, notFinished bool) ([]entities.PoemMatchFinding, error) {
	findings, err := repository.NewFindingRepository(s.db).List(ctx, notStarted, notFinished)
	if err != nil {
		return nil, s.wrap(err, "list_findings")
	}
	return findings, nil
}

// UpdateProgress applies a worker report. Started and Finished latch: their
// timestamps are stamped on the first transition only and a report cannot
// clear them. Progress and the cursor always take the reported values;
// Progress must lie in 0..100.
func (s *Service) UpdateProgress(ctx context.Context, userID string, p Progress) error {
	if p.Progress < 0 || p.Progress > maxProgress {
		return errors.New(errors.NewStd(msgInvalidProgress)).
			Component(componentPoemMatch).
			Category(errors.CategoryValidation).
			Context("operation", "update_finding").
			Context("progress", p.Progress).
			Build()
	}

	start := time.Now()
	var finding *entities.PoemMatchFinding
	var justFinished bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		findings := repository.NewFindingRepository(tx)

		var err error
		finding, err = findings.GetByID(ctx, p.ID)
		if err != nil {
			return err
		}

		now := s.now()
		if p.Started && !finding.Started {
			finding.Started = true
			finding.StartTime = &now
		}
		if p.Finished && !finding.Finished {
			finding.Finished = true
			finding.FinishTime = &now
			justFinished = true
		}
		finding.Progress = p.Progress
		finding.CurrentPoemID = p.CurrentPoemID
		finding.CurrentPageNumber = p.CurrentPageNumber
		finding.LastUpdate = &now
		finding.LastUpdatedByID = &userID

		return findings.Save(ctx, finding)
	})
	s.metrics.ObserveOperation(metrics.OpUpdateFinding, time.Since(start))
	if err != nil {
		return s.wrap(err, "update_finding")
	}

	s.metrics.RecordFindingUpdate(finding.Started, finding.Finished)
	s.log.Debug("poem match progress updated",
		logger.String("finding_id", finding.ID.String()),
		logger.Int("progress", finding.Progress),
		logger.Bool("finished", finding.Finished))

	if justFinished {
		s.log.Info("poem match finding finished",
			logger.String("finding_id", finding.ID.String()),
			logger.Int("cat_id", finding.GanjoorCatID),
			logger.Int64("book_id", int64(finding.BookID)))
		s.events.TryPublish(events.New(events.KindFindingFinished, findingEventData(finding)))
	}
	return nil
}

func (s *Service) wrap(err error, operation string) error {
	var ee *errors.EnhancedError
	if errors.As(err, &ee) {
		return err
	}

	category := errors.CategoryDatabase
	switch {
	case errors.Is(err, repository.ErrBookNotFound),
		errors.Is(err, repository.ErrFindingNotFound):
		category = errors.CategoryNotFound
	case errors.Is(err, repository.ErrDuplicateKey):
		category = errors.CategoryConflict
	}
	return errors.New(err).
		Component(componentPoemMatch).
		Category(category).
		Context("operation", operation).
		Build()
}

func findingEventData(f *entities.PoemMatchFinding) map[string]any {
	return map[string]any{
		"finding_id": f.ID.String(),
		"cat_id":     f.GanjoorCatID,
		"cat_title":  f.GanjoorCatFullTitle,
		"book_id":    f.BookID,
		"book_title": f.BookTitle,
	}
}
