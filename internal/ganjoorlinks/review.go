package ganjoorlinks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rmuseum/naskban-go/internal/datastore/entities"
	"github.com/rmuseum/naskban-go/internal/datastore/repository"
	"github.com/rmuseum/naskban-go/internal/errors"
	"github.com/rmuseum/naskban-go/internal/events"
	"github.com/rmuseum/naskban-go/internal/logger"
	"github.com/rmuseum/naskban-go/internal/observability/metrics"
)

// Review records a reviewer decision. Approving a link that was not already
// approved tags its page; rejecting only records the decision, which frees
// the poem and page for a new suggestion. A rejected link cannot be
// approved once another live link holds the same target.
func (s *Service) Review(ctx context.Context, linkID uuid.UUID, reviewerID string, result entities.ReviewResult) error {
	if result != entities.ReviewApproved && result != entities.ReviewRejected {
		return errors.New(errors.NewStd(msgInvalidReview)).
			Component(componentLinks).
			Category(errors.CategoryValidation).
			Context("operation", "review_link").
			Context("result", int(result)).
			Build()
	}

	start := time.Now()
	var link *entities.GanjoorLink
	var tagged bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		links := repository.NewLinkRepository(tx)

		var err error
		link, err = links.GetByID(ctx, linkID)
		if err != nil {
			return err
		}
		wasApproved := link.ReviewResult == entities.ReviewApproved

		// A rejected link only comes back if nothing took its target since
		if link.ReviewResult == entities.ReviewRejected && result != entities.ReviewRejected {
			taken, err := links.ExistsActive(ctx, link.GanjoorPostID, link.BookID, link.PageNumber)
			if err != nil {
				return err
			}
			if taken {
				return errors.New(errors.NewStd(msgAlreadySuggested)).
					Component(componentLinks).
					Category(errors.CategoryConflict).
					Context("operation", "review_link").
					Context("link_id", linkID.String()).
					Build()
			}
		}

		reviewedAt := s.now()
		err = links.UpdateFields(ctx, linkID, map[string]any{
			"review_result": result,
			"reviewer_id":   reviewerID,
			"review_date":   reviewedAt,
		})
		if err != nil {
			return err
		}
		link.ReviewResult = result
		link.ReviewerID = &reviewerID
		link.ReviewDate = &reviewedAt

		if result != entities.ReviewApproved || wasApproved {
			return nil
		}
		tagged = true
		return tagPage(ctx, tx, link)
	})
	s.metrics.ObserveOperation(metrics.OpReviewLink, time.Since(start))
	if err != nil {
		return s.wrap(err, "review_link")
	}

	s.metrics.RecordLinkReview(result.String())
	s.log.Info("ganjoor link reviewed",
		logger.String("link_id", linkID.String()),
		logger.String("result", result.String()),
		logger.Bool("page_tagged", tagged))

	kind := events.KindLinkRejected
	if result == entities.ReviewApproved {
		kind = events.KindLinkApproved
	}
	s.events.TryPublish(events.New(kind, linkEventData(link)))
	return nil
}

// tagPage adds the "Ganjoor Link" value to the linked page and a "Title in
// TOC" value unless the page already lists the same title.
func tagPage(ctx context.Context, tx *gorm.DB, link *entities.GanjoorLink) error {
	page, err := repository.NewPageRepository(tx).GetByNumber(ctx, link.BookID, link.PageNumber)
	if err != nil {
		return err
	}

	tags := repository.NewTagRepository(tx)
	linkTag, err := tags.GetOrCreate(ctx, entities.TagGanjoorLink)
	if err != nil {
		return err
	}
	err = tags.AddValue(ctx, &entities.TagValue{
		PageID:          page.ID,
		TagID:           linkTag.ID,
		Value:           link.GanjoorTitle,
		ValueSupplement: link.GanjoorURL,
		Order:           1,
	})
	if err != nil {
		return err
	}

	tocTag, err := tags.GetOrCreate(ctx, entities.TagTitleInTOC)
	if err != nil {
		return err
	}
	listed, err := tags.ValueExists(ctx, page.ID, tocTag.ID, link.GanjoorTitle)
	if err != nil || listed {
		return err
	}
	existing, err := tags.CountValues(ctx, page.ID, tocTag.ID)
	if err != nil {
		return err
	}
	return tags.AddValue(ctx, &entities.TagValue{
		PageID:          page.ID,
		TagID:           tocTag.ID,
		Value:           link.GanjoorTitle,
		ValueSupplement: tocLevel,
		Order:           1 + int(existing),
	})
}
