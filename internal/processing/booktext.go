package processing

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/rmuseum/naskban-go/internal/datastore/entities"
	"github.com/rmuseum/naskban-go/internal/datastore/repository"
	"github.com/rmuseum/naskban-go/internal/errors"
)

// pageSeparator follows every non-empty page in the aggregated book text
const pageSeparator = "\n"

// AggregateBookText joins the non-empty page texts in ascending page number
// order, each followed by a newline. Pages must already be sorted. With
// maxBytes > 0 a result longer than maxBytes fails with CategoryLimit.
func AggregateBookText(pages []entities.Page, maxBytes int) (string, error) {
	var sb strings.Builder
	for i := range pages {
		if pages[i].PageText == "" {
			continue
		}
		sb.WriteString(pages[i].PageText)
		sb.WriteString(pageSeparator)

		if maxBytes > 0 && sb.Len() > maxBytes {
			return "", errors.Newf("book text exceeds %d bytes", maxBytes).
				Component(componentProcessing).
				Category(errors.CategoryLimit).
				Context("operation", "aggregate_book_text").
				Context("book_id", pages[i].BookID).
				Context("page_number", pages[i].PageNumber).
				Build()
		}
	}
	return sb.String(), nil
}

// aggregateBook loads the pages of bookID through db and aggregates them
func aggregateBook(ctx context.Context, db *gorm.DB, bookID uint, maxBytes int) (string, error) {
	pages, err := repository.NewPageRepository(db).ListByBook(ctx, bookID)
	if err != nil {
		return "", err
	}
	return AggregateBookText(pages, maxBytes)
}
