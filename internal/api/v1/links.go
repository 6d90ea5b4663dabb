package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/rmuseum/naskban-go/internal/datastore/entities"
	"github.com/rmuseum/naskban-go/internal/ganjoorlinks"
)

// ReviewRequest is the body of a link review
type ReviewRequest struct {
	Result entities.ReviewResult `json:"result"`
}

func (c *Controller) initLinkRoutes() {
	c.Group.POST("/links", c.SuggestLink)
	c.Group.GET("/links/next", c.NextUnreviewedLink)
	c.Group.GET("/links/unreviewed/count", c.UnreviewedLinkCount)
	c.Group.PUT("/links/:id/review", c.ReviewLink)
	c.Group.GET("/links/unsynced", c.UnsyncedLinks)
	c.Group.PUT("/links/:id/sync", c.SynchronizeLink)
	c.Group.GET("/books/:id/poems/:poemId/related", c.IsBookRelatedToPoem)
}

// SuggestLink records a suggestion by the caller
func (c *Controller) SuggestLink(ctx echo.Context) error {
	user, err := requireUser(ctx, "suggest_link")
	if err != nil {
		return c.HandleError(ctx, err)
	}
	var in ganjoorlinks.Suggestion
	if err := ctx.Bind(&in); err != nil {
		return c.HandleError(ctx, badRequest(err, "suggest_link"))
	}

	link, err := c.svc.Links.Suggest(ctx.Request().Context(), user, in)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	return ctx.JSON(http.StatusCreated, link)
}

// NextUnreviewedLink returns the skip-th awaiting link, or 204 when there
// is none.
func (c *Controller) NextUnreviewedLink(ctx echo.Context) error {
	var skip int
	var onlyMachine bool
	err := echo.QueryParamsBinder(ctx).
		Int("skip", &skip).
		Bool("onlyMachine", &onlyMachine).
		BindError()
	if err != nil {
		return c.HandleError(ctx, badRequest(err, "next_unreviewed_link"))
	}

	view, err := c.svc.Links.NextUnreviewed(ctx.Request().Context(), skip, onlyMachine)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	if view == nil {
		return ctx.NoContent(http.StatusNoContent)
	}
	return ctx.JSON(http.StatusOK, view)
}

// UnreviewedLinkCount counts awaiting links
func (c *Controller) UnreviewedLinkCount(ctx echo.Context) error {
	var onlyMachine bool
	if err := echo.QueryParamsBinder(ctx).Bool("onlyMachine", &onlyMachine).BindError(); err != nil {
		return c.HandleError(ctx, badRequest(err, "count_unreviewed_links"))
	}

	count, err := c.svc.Links.UnreviewedCount(ctx.Request().Context(), onlyMachine)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, map[string]int64{"count": count})
}

// ReviewLink records the caller's decision on a link
func (c *Controller) ReviewLink(ctx echo.Context) error {
	user, err := requireUser(ctx, "review_link")
	if err != nil {
		return c.HandleError(ctx, err)
	}
	id, err := pathUUID(ctx, "id", "review_link")
	if err != nil {
		return c.HandleError(ctx, err)
	}
	var req ReviewRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, badRequest(err, "review_link"))
	}

	if err := c.svc.Links.Review(ctx.Request().Context(), id, user, req.Result); err != nil {
		return c.HandleError(ctx, err)
	}
	return ctx.NoContent(http.StatusNoContent)
}

// UnsyncedLinks lists approved links Ganjoor has not absorbed yet
func (c *Controller) UnsyncedLinks(ctx echo.Context) error {
	links, err := c.svc.Links.Unsynced(ctx.Request().Context())
	if err != nil {
		return c.HandleError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, links)
}

// SynchronizeLink marks a link as absorbed by Ganjoor
func (c *Controller) SynchronizeLink(ctx echo.Context) error {
	id, err := pathUUID(ctx, "id", "synchronize_link")
	if err != nil {
		return c.HandleError(ctx, err)
	}
	if err := c.svc.Links.Synchronize(ctx.Request().Context(), id); err != nil {
		return c.HandleError(ctx, err)
	}
	return ctx.NoContent(http.StatusNoContent)
}

// IsBookRelatedToPoem reports whether a live link ties the book to the poem
func (c *Controller) IsBookRelatedToPoem(ctx echo.Context) error {
	bookID, err := pathUint(ctx, "id", "is_book_related_to_poem")
	if err != nil {
		return c.HandleError(ctx, err)
	}
	poemID, err := strconv.Atoi(ctx.Param("poemId"))
	if err != nil {
		return c.HandleError(ctx, badRequest(err, "is_book_related_to_poem"))
	}

	related, err := c.svc.Links.IsBookRelatedToPoem(ctx.Request().Context(), bookID, poemID)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, map[string]bool{"related": related})
}
