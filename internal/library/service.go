// Package library serves the reader-facing features of the catalog: a book's
// table of contents, bookmarks and reading activity.
package library

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/k3a/html2text"
	"gorm.io/gorm"

	"github.com/rmuseum/naskban-go/internal/datastore/entities"
	"github.com/rmuseum/naskban-go/internal/datastore/repository"
	"github.com/rmuseum/naskban-go/internal/errors"
	"github.com/rmuseum/naskban-go/internal/logger"
)

const componentLibrary = "library"

const (
	// activityWindow is how many recent visits UserLastActivity inspects
	activityWindow = 200

	// notePreviewRunes bounds the plain-text note preview
	notePreviewRunes = 200

	msgReadOnly = "سایت به دلایل فنی مثل انتقال سرور موقتاً در حالت فقط خواندنی قرار دارد. لطفاً ساعاتی دیگر مجدداً تلاش کنید."
)

// TOCEntry is one table-of-contents line
type TOCEntry struct {
	Title           string `json:"title"`
	Order           int    `json:"order"`
	Level           int    `json:"level"`
	ItemFriendlyURL string `json:"itemFriendlyUrl"`
}

// BookmarkView is a bookmark with what a reader needs to display it
type BookmarkView struct {
	ID               uuid.UUID `json:"id"`
	BookID           uint      `json:"bookId"`
	BookTitle        string    `json:"bookTitle"`
	PageNumber       int       `json:"pageNumber"`
	Note             string    `json:"note"`
	NotePreview      string    `json:"notePreview"`
	ExternalImageURL string    `json:"externalImageUrl"`
	DateTime         time.Time `json:"dateTime"`
}

// Activity is the latest visit of a user to one book
type Activity struct {
	DateTime         time.Time `json:"dateTime"`
	BookID           uint      `json:"bookId"`
	PageNumber       *int      `json:"pageNumber,omitempty"`
	BookTitle        string    `json:"bookTitle"`
	ExternalImageURL string    `json:"externalImageUrl"`
}

// Service implements the library features
type Service struct {
	db       *gorm.DB
	readOnly bool
	log      logger.Logger
	now      func() time.Time
}

// NewService creates a Service. In read-only mode bookmark changes are
// refused while reads and visit tracking keep working.
func NewService(db *gorm.DB, readOnly bool, log logger.Logger) *Service {
	if log == nil {
		log = logger.Global().Module(componentLibrary)
	}
	return &Service{db: db, readOnly: readOnly, log: log, now: time.Now}
}

// TableOfContents lists the "Title in TOC" values of a book in page order,
// then in tag order. The heading level comes from the value supplement and
// defaults to 1.
func (s *Service) TableOfContents(ctx context.Context, bookID uint) ([]TOCEntry, error) {
	if _, err := repository.NewBookRepository(s.db).GetByID(ctx, bookID); err != nil {
		return nil, s.wrap(err, "table_of_contents")
	}

	tags := repository.NewTagRepository(s.db)
	tocTag, err := tags.GetByName(ctx, entities.TagTitleInTOC)
	if errors.Is(err, repository.ErrTagNotFound) {
		// No link was ever approved
		return []TOCEntry{}, nil
	}
	if err != nil {
		return nil, s.wrap(err, "table_of_contents")
	}
	rows, err := tags.BookValues(ctx, bookID, tocTag.ID)
	if err != nil {
		return nil, s.wrap(err, "table_of_contents")
	}

	entries := make([]TOCEntry, 0, len(rows))
	for i, row := range rows {
		level, err := strconv.Atoi(strings.TrimSpace(row.ValueSupplement))
		if err != nil {
			level = 1
		}
		entries = append(entries, TOCEntry{
			Title:           row.Value,
			Order:           i + 1,
			Level:           level,
			ItemFriendlyURL: fmt.Sprintf("%d/%d", bookID, row.PageNumber),
		})
	}
	return entries, nil
}

// SwitchBookmark adds the bookmark when absent and removes it otherwise. The
// returned flag reports whether the bookmark exists afterwards. A nil pageID
// bookmarks the whole book.
func (s *Service) SwitchBookmark(ctx context.Context, userID string, bookID uint, pageID *uint, note string) (*entities.Bookmark, bool, error) {
	if s.readOnly {
		return nil, false, errors.New(errors.NewStd(msgReadOnly)).
			Component(componentLibrary).
			Category(errors.CategoryState).
			Context("operation", "switch_bookmark").
			Build()
	}
	if userID == "" || bookID == 0 {
		return nil, false, errors.New(errors.NewStd("کاربر و کتاب باید مشخص باشند.")).
			Component(componentLibrary).
			Category(errors.CategoryValidation).
			Context("operation", "switch_bookmark").
			Build()
	}

	var bookmark *entities.Bookmark
	var added bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		bookmarks := repository.NewBookmarkRepository(tx)
		existing, err := bookmarks.Find(ctx, userID, bookID, pageID)
		switch {
		case err == nil:
			bookmark = existing
			return bookmarks.Delete(ctx, existing.ID)
		case !errors.Is(err, repository.ErrBookmarkNotFound):
			return err
		}

		if _, err := repository.NewBookRepository(tx).GetByID(ctx, bookID); err != nil {
			return err
		}
		if pageID != nil {
			page, err := repository.NewPageRepository(tx).GetByID(ctx, *pageID)
			if err != nil {
				return err
			}
			if page.BookID != bookID {
				return repository.ErrPageNotFound
			}
		}

		bookmark = &entities.Bookmark{
			UserID:   userID,
			BookID:   bookID,
			PageID:   pageID,
			Note:     note,
			DateTime: s.now(),
		}
		added = true
		return bookmarks.Create(ctx, bookmark)
	})
	if err != nil {
		return nil, false, s.wrap(err, "switch_bookmark")
	}

	s.log.Debug("bookmark switched",
		logger.String("user_id", userID),
		logger.Int64("book_id", int64(bookID)),
		logger.Bool("bookmarked", added))
	return bookmark, added, nil
}

// Bookmarks lists a user's bookmarks newest first. A zero bookID spans all
// books; a nil pageID spans all pages and a pageID of 0 keeps book-level
// bookmarks only.
func (s *Service) Bookmarks(ctx context.Context, userID string, bookID uint, pageID *uint, skip, take int) ([]BookmarkView, error) {
	bookmarks, err := repository.NewBookmarkRepository(s.db).List(ctx, userID, bookID, pageID, skip, take)
	if err != nil {
		return nil, s.wrap(err, "list_bookmarks")
	}

	ids := make([]uint, 0, len(bookmarks))
	for i := range bookmarks {
		ids = append(ids, bookmarks[i].BookID)
	}
	books, err := repository.NewBookRepository(s.db).Summaries(ctx, ids)
	if err != nil {
		return nil, s.wrap(err, "list_bookmarks")
	}

	pages := repository.NewPageRepository(s.db)
	views := make([]BookmarkView, 0, len(bookmarks))
	for i := range bookmarks {
		b := &bookmarks[i]
		book := books[b.BookID]
		view := BookmarkView{
			ID:               b.ID,
			BookID:           b.BookID,
			BookTitle:        book.Title,
			Note:             b.Note,
			NotePreview:      NotePreview(b.Note),
			ExternalImageURL: book.CoverImageURL,
			DateTime:         b.DateTime,
		}
		if b.PageID != nil {
			page, err := pages.GetByID(ctx, *b.PageID)
			switch {
			case err == nil:
				view.PageNumber = page.PageNumber
				view.ExternalImageURL = page.ThumbnailImageURL
			case !errors.Is(err, repository.ErrPageNotFound):
				return nil, s.wrap(err, "list_bookmarks")
			}
		}
		views = append(views, view)
	}
	return views, nil
}

// NotePreview renders an HTML note as a short line of plain text.
func NotePreview(note string) string {
	text := strings.Join(strings.Fields(html2text.HTML2Text(note)), " ")
	runes := []rune(text)
	if len(runes) <= notePreviewRunes {
		return text
	}
	return string(runes[:notePreviewRunes]) + "…"
}

// TrackVisit records a reader interaction. A zero DateTime is stamped now.
func (s *Service) TrackVisit(ctx context.Context, visit *entities.VisitRecord) error {
	if visit.DateTime.IsZero() {
		visit.DateTime = s.now()
	}
	if err := repository.NewVisitRepository(s.db).Create(ctx, visit); err != nil {
		return s.wrap(err, "track_visit")
	}
	return nil
}

// UserLastActivity returns one entry per recently visited book, newest
// first. When the latest visit to a book names no page, the most recent
// visit that does is used for the page number. Pages show their thumbnail
// and books without a page show their cover. Books or pages that no longer
// exist are left out.
func (s *Service) UserLastActivity(ctx context.Context, userID string) ([]Activity, error) {
	visits, err := repository.NewVisitRepository(s.db).RecentWithBook(ctx, userID, activityWindow)
	if err != nil {
		return nil, s.wrap(err, "user_last_activity")
	}

	var order []uint
	latest := make(map[uint]Activity)
	for _, v := range visits {
		bookID := *v.BookID
		entry, seen := latest[bookID]
		if !seen {
			order = append(order, bookID)
			latest[bookID] = Activity{DateTime: v.DateTime, BookID: bookID, PageNumber: v.PageNumber}
			continue
		}
		if entry.PageNumber == nil && v.PageNumber != nil {
			entry.PageNumber = v.PageNumber
			latest[bookID] = entry
		}
	}

	books, err := repository.NewBookRepository(s.db).Summaries(ctx, order)
	if err != nil {
		return nil, s.wrap(err, "user_last_activity")
	}
	var keys []repository.PageKey
	for _, id := range order {
		if p := latest[id].PageNumber; p != nil {
			keys = append(keys, repository.PageKey{BookID: id, PageNumber: *p})
		}
	}
	thumbnails, err := repository.NewPageRepository(s.db).Thumbnails(ctx, keys)
	if err != nil {
		return nil, s.wrap(err, "user_last_activity")
	}

	activities := make([]Activity, 0, len(order))
	for _, id := range order {
		book, ok := books[id]
		if !ok {
			continue
		}
		entry := latest[id]
		entry.BookTitle = book.Title
		if entry.PageNumber == nil {
			entry.ExternalImageURL = book.CoverImageURL
		} else {
			thumb, ok := thumbnails[repository.PageKey{BookID: id, PageNumber: *entry.PageNumber}]
			if !ok {
				continue
			}
			entry.ExternalImageURL = thumb
		}
		activities = append(activities, entry)
	}
	return activities, nil
}

func (s *Service) wrap(err error, operation string) error {
	var ee *errors.EnhancedError
	if errors.As(err, &ee) {
		return err
	}

	category := errors.CategoryDatabase
	switch {
	case errors.Is(err, repository.ErrBookNotFound),
		errors.Is(err, repository.ErrPageNotFound),
		errors.Is(err, repository.ErrBookmarkNotFound):
		category = errors.CategoryNotFound
	case errors.Is(err, repository.ErrDuplicateKey):
		category = errors.CategoryConflict
	}
	return errors.New(err).
		Component(componentLibrary).
		Category(category).
		Context("operation", operation).
		Build()
}
