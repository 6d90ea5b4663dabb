// Package testutil holds helpers shared by package tests: an in-memory
// entity store with seeders and waits on background work.
package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/rmuseum/naskban-go/internal/datastore/entities"
)

// NewTestDB returns a migrated in-memory SQLite database. The pool is limited
// to one connection because every connection to ":memory:" is a separate
// database; code under test must therefore use the transaction handle inside
// db.Transaction.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:?_foreign_keys=ON"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(entities.All()...))
	return db
}

// PageSeed describes a page created by SeedBook.
type PageSeed struct {
	Number    int
	Text      string
	OCRed     bool
	AIRevised bool
}

// SeedBook inserts a book with the given pages and returns it with pages
// ordered by number.
func SeedBook(t *testing.T, db *gorm.DB, book entities.Book, pages ...PageSeed) *entities.Book {
	t.Helper()

	if book.Title == "" {
		book.Title = "دیوان حافظ"
	}
	for _, p := range pages {
		book.Pages = append(book.Pages, entities.Page{
			PageNumber:        p.Number,
			PageText:          p.Text,
			OCRed:             p.OCRed,
			AIRevised:         p.AIRevised,
			ThumbnailImageURL: fmt.Sprintf("https://img.example.org/%d/thumb.jpg", p.Number),
		})
	}
	require.NoError(t, db.WithContext(context.Background()).Create(&book).Error)
	return &book
}

// PublishedBook returns a published book entity with the given id and flags.
func PublishedBook(id uint, ocred, aiRevised bool) entities.Book {
	return entities.Book{
		ID:          id,
		Title:       fmt.Sprintf("کتاب %d", id),
		AuthorsLine: "ناشناس",
		Status:      entities.BookStatusPublished,
		OCRed:       ocred,
		AIRevised:   aiRevised,
	}
}
