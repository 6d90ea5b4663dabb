package api

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/rmuseum/naskban-go/internal/processing"
)

func (c *Controller) initQueueRoutes() {
	c.Group.GET("/queue/:kind/next", c.GetNextBook)
	c.Group.DELETE("/queue/:kind", c.ResetQueue)
	c.Group.PUT("/pages/:id/ocr", c.SetPageOCRInfo)
}

func (c *Controller) queue(ctx echo.Context, operation string) (BookQueue, error) {
	kind, err := processing.ParseKind(ctx.Param("kind"))
	if err != nil {
		return nil, err
	}
	q, ok := c.svc.Queues[kind]
	if !ok {
		return nil, badRequest(fmt.Errorf("queue %s is not served", kind), operation)
	}
	return q, nil
}

// GetNextBook claims the next book of the ocr or ai queue. An empty queue
// answers 204.
func (c *Controller) GetNextBook(ctx echo.Context) error {
	q, err := c.queue(ctx, "get_next_book")
	if err != nil {
		return c.HandleError(ctx, err)
	}
	book, err := q.GetNext(ctx.Request().Context())
	if err != nil {
		return c.HandleError(ctx, err)
	}
	if book == nil {
		return ctx.NoContent(http.StatusNoContent)
	}
	return ctx.JSON(http.StatusOK, book)
}

// ResetQueue forgets every claim of a queue
func (c *Controller) ResetQueue(ctx echo.Context) error {
	q, err := c.queue(ctx, "reset_queue")
	if err != nil {
		return c.HandleError(ctx, err)
	}
	removed, err := q.Reset(ctx.Request().Context())
	if err != nil {
		return c.HandleError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, map[string]int64{"removed": removed})
}

// SetPageOCRInfo stores a worker's result for one page
func (c *Controller) SetPageOCRInfo(ctx echo.Context) error {
	pageID, err := pathUint(ctx, "id", "set_page_ocr_info")
	if err != nil {
		return c.HandleError(ctx, err)
	}

	var info processing.PageOCRInfo
	if err := ctx.Bind(&info); err != nil {
		return c.HandleError(ctx, badRequest(err, "set_page_ocr_info"))
	}
	info.PageID = pageID

	if err := c.svc.Results.SetPageOCRInfo(ctx.Request().Context(), info); err != nil {
		return c.HandleError(ctx, err)
	}
	return ctx.NoContent(http.StatusNoContent)
}
