// Package ganjoorlinks manages cross-references between scanned pages and
// Ganjoor poems: users or machines suggest a link, a reviewer approves or
// rejects it, and approved links are later marked synchronized once Ganjoor
// has absorbed them.
//
// Approval writes two page tags: a "Ganjoor Link" value pointing at the poem
// and, once per distinct title, a "Title in TOC" entry so the poem shows up
// in the book's table of contents.
package ganjoorlinks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rmuseum/naskban-go/internal/datastore/entities"
	"github.com/rmuseum/naskban-go/internal/datastore/repository"
	"github.com/rmuseum/naskban-go/internal/errors"
	"github.com/rmuseum/naskban-go/internal/events"
	"github.com/rmuseum/naskban-go/internal/logger"
	"github.com/rmuseum/naskban-go/internal/observability/metrics"
	"github.com/rmuseum/naskban-go/internal/persian"
)

const componentLinks = "ganjoor-links"

const (
	msgAlreadySuggested = "این مورد پیشتر پیشنهاد شده است."
	msgInvalidReview    = "نتیجهٔ بازبینی باید تأیید یا رد باشد."

	// pageTitleImage separates the book part of a link title from the page number
	pageTitleImage = " - تصویر "

	// tocLevel is the heading level stored in the TOC tag supplement
	tocLevel = "1"
)

// Suggestion is a proposed link between a Ganjoor poem and a book page
type Suggestion struct {
	GanjoorPostID        int    `json:"ganjoorPostId"`
	GanjoorURL           string `json:"ganjoorUrl"`
	GanjoorTitle         string `json:"ganjoorTitle"`
	BookID               uint   `json:"bookId"`
	PageNumber           int    `json:"pageNumber"`
	IsTextOriginalSource bool   `json:"isTextOriginalSource"`
	SuggestedByMachine   bool   `json:"suggestedByMachine"`
}

// LinkView is an awaiting link as shown to a reviewer
type LinkView struct {
	ID                        uuid.UUID             `json:"id"`
	GanjoorPostID             int                   `json:"ganjoorPostId"`
	GanjoorURL                string                `json:"ganjoorUrl"`
	GanjoorTitle              string                `json:"ganjoorTitle"`
	EntityName                string                `json:"entityName"`
	EntityFriendlyURL         string                `json:"entityFriendlyUrl"`
	ExternalThumbnailImageURL string                `json:"externalThumbnailImageUrl"`
	ReviewResult              entities.ReviewResult `json:"reviewResult"`
	Synchronized              bool                  `json:"synchronized"`
	SuggestedByID             string                `json:"suggestedById"`
	SuggestedByMachine        bool                  `json:"suggestedByMachine"`
	IsTextOriginalSource      bool                  `json:"isTextOriginalSource"`
	SuggestionDate            time.Time             `json:"suggestionDate"`
}

// Service runs the suggest, review and synchronize workflow
type Service struct {
	db      *gorm.DB
	siteURL string
	metrics *metrics.PipelineMetrics
	events  events.Publisher
	log     logger.Logger
	now     func() time.Time
}

// NewService creates a Service. siteURL prefixes the friendly URLs handed
// to reviewers. A nil publisher discards events.
func NewService(db *gorm.DB, siteURL string, m *metrics.PipelineMetrics, publisher events.Publisher, log logger.Logger) *Service {
	if publisher == nil {
		publisher = events.Noop{}
	}
	if log == nil {
		log = logger.Global().Module(componentLinks)
	}
	return &Service{
		db:      db,
		siteURL: strings.TrimRight(siteURL, "/"),
		metrics: m,
		events:  publisher,
		log:     log,
		now:     time.Now,
	}
}

// Suggest records an awaiting link. It fails with a conflict while another
// suggestion for the same poem and page is awaiting or approved, and with
// not-found when the book or page does not exist.
func (s *Service) Suggest(ctx context.Context, userID string, in Suggestion) (*entities.GanjoorLink, error) {
	start := time.Now()
	link, err := s.suggest(ctx, userID, in)
	s.metrics.RecordLinkSuggestion(in.SuggestedByMachine, err)
	s.metrics.ObserveOperation(metrics.OpSuggestLink, time.Since(start))
	if err != nil {
		return nil, err
	}

	s.log.Info("ganjoor link suggested",
		logger.String("link_id", link.ID.String()),
		logger.Int("ganjoor_post_id", link.GanjoorPostID),
		logger.Int64("book_id", int64(link.BookID)),
		logger.Int("page_number", link.PageNumber),
		logger.Bool("by_machine", link.SuggestedByMachine))
	s.events.TryPublish(events.New(events.KindLinkSuggested, linkEventData(link)))
	return link, nil
}

func (s *Service) suggest(ctx context.Context, userID string, in Suggestion) (*entities.GanjoorLink, error) {
	if err := validateSuggestion(userID, in); err != nil {
		return nil, err
	}

	var link *entities.GanjoorLink
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		book, err := repository.NewBookRepository(tx).GetByID(ctx, in.BookID)
		if err != nil {
			return err
		}

		links := repository.NewLinkRepository(tx)
		exists, err := links.ExistsActive(ctx, in.GanjoorPostID, in.BookID, in.PageNumber)
		if err != nil {
			return err
		}
		if exists {
			return errors.New(errors.NewStd(msgAlreadySuggested)).
				Component(componentLinks).
				Category(errors.CategoryConflict).
				Context("operation", "suggest_link").
				Context("ganjoor_post_id", in.GanjoorPostID).
				Context("book_id", in.BookID).
				Context("page_number", in.PageNumber).
				Build()
		}

		page, err := repository.NewPageRepository(tx).GetByNumber(ctx, in.BookID, in.PageNumber)
		if err != nil {
			return err
		}

		link = &entities.GanjoorLink{
			GanjoorPostID:             in.GanjoorPostID,
			GanjoorURL:                in.GanjoorURL,
			GanjoorTitle:              in.GanjoorTitle,
			BookID:                    book.ID,
			PageNumber:                in.PageNumber,
			SuggestedByID:             userID,
			SuggestionDate:            s.now(),
			ReviewResult:              entities.ReviewAwaiting,
			SuggestedByMachine:        in.SuggestedByMachine,
			IsTextOriginalSource:      in.IsTextOriginalSource,
			Title:                     PageTitle(book, in.PageNumber),
			ExternalThumbnailImageURL: page.ThumbnailImageURL,
		}
		return links.Create(ctx, link)
	})
	if err != nil {
		return nil, s.wrap(err, "suggest_link")
	}
	return link, nil
}

func validateSuggestion(userID string, in Suggestion) error {
	var problem string
	switch {
	case userID == "":
		problem = "شناسهٔ کاربر مشخص نشده است."
	case in.GanjoorPostID <= 0:
		problem = "شناسهٔ شعر گنجور نامعتبر است."
	case in.BookID == 0:
		problem = "شناسهٔ کتاب نامعتبر است."
	case in.PageNumber <= 0:
		problem = "شمارهٔ صفحه نامعتبر است."
	default:
		return nil
	}
	return errors.New(errors.NewStd(problem)).
		Component(componentLinks).
		Category(errors.CategoryValidation).
		Context("operation", "suggest_link").
		Build()
}

// PageTitle renders the display title of a book page:
// "Title - AuthorsLine - تصویر <page in Persian digits>".
func PageTitle(book *entities.Book, pageNumber int) string {
	title := book.Title
	if book.AuthorsLine != "" {
		title += " - " + book.AuthorsLine
	}
	return title + pageTitleImage + persian.Number(pageNumber)
}

// NextUnreviewed returns the skip-th awaiting link in suggestion order, or
// nil when there is none.
func (s *Service) NextUnreviewed(ctx context.Context, skip int, onlyMachine bool) (*LinkView, error) {
	link, err := repository.NewLinkRepository(s.db).NextAwaiting(ctx, skip, onlyMachine)
	if errors.Is(err, repository.ErrLinkNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, s.wrap(err, "next_unreviewed_link")
	}
	return s.view(link), nil
}

func (s *Service) view(link *entities.GanjoorLink) *LinkView {
	return &LinkView{
		ID:                        link.ID,
		GanjoorPostID:             link.GanjoorPostID,
		GanjoorURL:                link.GanjoorURL,
		GanjoorTitle:              link.GanjoorTitle,
		EntityName:                link.Title,
		EntityFriendlyURL:         fmt.Sprintf("%s/%d/%d", s.siteURL, link.BookID, link.PageNumber),
		ExternalThumbnailImageURL: link.ExternalThumbnailImageURL,
		ReviewResult:              link.ReviewResult,
		Synchronized:              link.Synchronized,
		SuggestedByID:             link.SuggestedByID,
		SuggestedByMachine:        link.SuggestedByMachine,
		IsTextOriginalSource:      link.IsTextOriginalSource,
		SuggestionDate:            link.SuggestionDate,
	}
}

// UnreviewedCount counts awaiting links
func (s *Service) UnreviewedCount(ctx context.Context, onlyMachine bool) (int64, error) {
	count, err := repository.NewLinkRepository(s.db).CountAwaiting(ctx, onlyMachine)
	if err != nil {
		return 0, s.wrap(err, "count_unreviewed_links")
	}
	return count, nil
}

// Unsynced returns approved links Ganjoor has not absorbed yet
func (s *Service) Unsynced(ctx context.Context) ([]entities.GanjoorLink, error) {
	links, err := repository.NewLinkRepository(s.db).Unsynced(ctx)
	if err != nil {
		return nil, s.wrap(err, "list_unsynced_links")
	}
	return links, nil
}

// Synchronize marks a link as absorbed by Ganjoor. Repeating it is harmless.
func (s *Service) Synchronize(ctx context.Context, linkID uuid.UUID) error {
	start := time.Now()
	err := repository.NewLinkRepository(s.db).UpdateFields(ctx, linkID, map[string]any{"synchronized": true})
	s.metrics.ObserveOperation(metrics.OpSynchronizeLink, time.Since(start))
	if err != nil {
		return s.wrap(err, "synchronize_link")
	}

	s.metrics.RecordLinkSync()
	s.log.Debug("ganjoor link synchronized", logger.String("link_id", linkID.String()))
	s.events.TryPublish(events.New(events.KindLinkSynchronized, map[string]any{"link_id": linkID.String()}))
	return nil
}

// IsBookRelatedToPoem reports whether any awaiting or approved link ties the
// book to the poem.
func (s *Service) IsBookRelatedToPoem(ctx context.Context, bookID uint, poemID int) (bool, error) {
	related, err := repository.NewLinkRepository(s.db).ExistsRelated(ctx, bookID, poemID)
	if err != nil {
		return false, s.wrap(err, "is_book_related_to_poem")
	}
	return related, nil
}

// wrap leaves categorized errors alone and classifies the rest
func (s *Service) wrap(err error, operation string) error {
	var ee *errors.EnhancedError
	if errors.As(err, &ee) {
		return err
	}

	category := errors.CategoryDatabase
	switch {
	case errors.Is(err, repository.ErrBookNotFound),
		errors.Is(err, repository.ErrPageNotFound),
		errors.Is(err, repository.ErrLinkNotFound):
		category = errors.CategoryNotFound
	case errors.Is(err, repository.ErrDuplicateKey):
		category = errors.CategoryConflict
	}
	return errors.New(err).
		Component(componentLinks).
		Category(category).
		Context("operation", operation).
		Build()
}

func linkEventData(link *entities.GanjoorLink) map[string]any {
	return map[string]any{
		"link_id":         link.ID.String(),
		"ganjoor_post_id": link.GanjoorPostID,
		"book_id":         link.BookID,
		"page_number":     link.PageNumber,
	}
}
