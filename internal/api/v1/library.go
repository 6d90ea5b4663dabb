package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/rmuseum/naskban-go/internal/api/middleware"
	"github.com/rmuseum/naskban-go/internal/datastore/entities"
)

// BookmarkRequest toggles a bookmark. A missing pageId bookmarks the book.
type BookmarkRequest struct {
	BookID uint   `json:"bookId"`
	PageID *uint  `json:"pageId"`
	Note   string `json:"note"`
}

// BookmarkResponse reports the bookmark state after a toggle
type BookmarkResponse struct {
	Bookmarked bool               `json:"bookmarked"`
	Bookmark   *entities.Bookmark `json:"bookmark,omitempty"`
}

func (c *Controller) initLibraryRoutes() {
	c.Group.GET("/books/:id/toc", c.TableOfContents)
	c.Group.POST("/bookmarks", c.SwitchBookmark)
	c.Group.GET("/bookmarks", c.ListBookmarks)
	c.Group.POST("/visits", c.TrackVisit)
	c.Group.GET("/users/:id/activity", c.UserLastActivity)
}

// TableOfContents returns a book's table of contents
func (c *Controller) TableOfContents(ctx echo.Context) error {
	bookID, err := pathUint(ctx, "id", "table_of_contents")
	if err != nil {
		return c.HandleError(ctx, err)
	}
	entries, err := c.svc.Library.TableOfContents(ctx.Request().Context(), bookID)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, entries)
}

// SwitchBookmark adds or removes a bookmark of the caller
func (c *Controller) SwitchBookmark(ctx echo.Context) error {
	user, err := requireUser(ctx, "switch_bookmark")
	if err != nil {
		return c.HandleError(ctx, err)
	}
	var req BookmarkRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, badRequest(err, "switch_bookmark"))
	}

	bookmark, added, err := c.svc.Library.SwitchBookmark(ctx.Request().Context(), user, req.BookID, req.PageID, req.Note)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	resp := BookmarkResponse{Bookmarked: added}
	if added {
		resp.Bookmark = bookmark
	}
	return ctx.JSON(http.StatusOK, resp)
}

// ListBookmarks lists the caller's bookmarks. pageId=0 selects book-level
// bookmarks only.
func (c *Controller) ListBookmarks(ctx echo.Context) error {
	user, err := requireUser(ctx, "list_bookmarks")
	if err != nil {
		return c.HandleError(ctx, err)
	}

	var bookID uint
	var skip, take int
	err = echo.QueryParamsBinder(ctx).
		Uint("bookId", &bookID).
		Int("skip", &skip).
		Int("take", &take).
		BindError()
	if err != nil {
		return c.HandleError(ctx, badRequest(err, "list_bookmarks"))
	}

	var pageID *uint
	if raw := ctx.QueryParam("pageId"); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return c.HandleError(ctx, badRequest(err, "list_bookmarks"))
		}
		id := uint(v)
		pageID = &id
	}

	views, err := c.svc.Library.Bookmarks(ctx.Request().Context(), user, bookID, pageID, skip, take)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, views)
}

// TrackVisit records a reader interaction. Anonymous visits are accepted.
func (c *Controller) TrackVisit(ctx echo.Context) error {
	var visit entities.VisitRecord
	if err := ctx.Bind(&visit); err != nil {
		return c.HandleError(ctx, badRequest(err, "track_visit"))
	}
	visit.ID = 0
	visit.UserID = nil
	if user := ctx.Request().Header.Get(middleware.UserIDHeader); user != "" {
		visit.UserID = &user
	}

	if err := c.svc.Library.TrackVisit(ctx.Request().Context(), &visit); err != nil {
		return c.HandleError(ctx, err)
	}
	return ctx.NoContent(http.StatusNoContent)
}

// UserLastActivity lists the books a user visited recently
func (c *Controller) UserLastActivity(ctx echo.Context) error {
	activity, err := c.svc.Library.UserLastActivity(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return c.HandleError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, activity)
}
