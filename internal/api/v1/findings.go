package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/rmuseum/naskban-go/internal/poemmatch"
)

func (c *Controller) initFindingRoutes() {
	c.Group.POST("/findings", c.EnqueueFinding)
	c.Group.GET("/findings", c.ListFindings)
	c.Group.PUT("/findings/:id", c.UpdateFinding)
}

// EnqueueFinding queues a category to be matched against a book
func (c *Controller) EnqueueFinding(ctx echo.Context) error {
	user, err := requireUser(ctx, "enqueue_finding")
	if err != nil {
		return c.HandleError(ctx, err)
	}
	var req poemmatch.Request
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, badRequest(err, "enqueue_finding"))
	}

	finding, err := c.svc.Findings.Enqueue(ctx.Request().Context(), user, req)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	return ctx.JSON(http.StatusCreated, finding)
}

// ListFindings lists the queue. Without parameters only unfinished findings
// are returned.
func (c *Controller) ListFindings(ctx echo.Context) error {
	notStarted := false
	notFinished := true
	err := echo.QueryParamsBinder(ctx).
		Bool("notStarted", &notStarted).
		Bool("notFinished", &notFinished).
		BindError()
	if err != nil {
		return c.HandleError(ctx, badRequest(err, "list_findings"))
	}

	findings, err := c.svc.Findings.Queue(ctx.Request().Context(), notStarted, notFinished)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, findings)
}

// UpdateFinding stores a worker's progress report
func (c *Controller) UpdateFinding(ctx echo.Context) error {
	user, err := requireUser(ctx, "update_finding")
	if err != nil {
		return c.HandleError(ctx, err)
	}
	id, err := pathUUID(ctx, "id", "update_finding")
	if err != nil {
		return c.HandleError(ctx, err)
	}
	var p poemmatch.Progress
	if err := ctx.Bind(&p); err != nil {
		return c.HandleError(ctx, badRequest(err, "update_finding"))
	}
	p.ID = id

	if err := c.svc.Findings.UpdateProgress(ctx.Request().Context(), user, p); err != nil {
		return c.HandleError(ctx, err)
	}
	return ctx.NoContent(http.StatusNoContent)
}
