package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/rmuseum/naskban-go/internal/errors"
)

const msgBackupsDisabled = "پشتیبان‌گیری فعال نیست."

func (c *Controller) initJobRoutes() {
	c.Group.POST("/jobs/booktext", c.StartFillingBookTexts)
	c.Group.POST("/jobs/backup", c.StartBackup)
	c.Group.GET("/backups", c.ListBackups)
	c.Group.GET("/jobs", c.ListJobs)
	c.Group.GET("/jobs/:id", c.GetJob)
}

// StartFillingBookTexts starts the background fill of missing book texts
// and answers with the job id to poll.
func (c *Controller) StartFillingBookTexts(ctx echo.Context) error {
	id, err := c.svc.BookText.Start(ctx.Request().Context())
	if err != nil {
		return c.HandleError(ctx, err)
	}
	return ctx.JSON(http.StatusAccepted, map[string]string{"id": id.String()})
}

// StartBackup queues a backup of the entity store and answers with the job
// id to poll.
func (c *Controller) StartBackup(ctx echo.Context) error {
	if c.svc.Backup == nil {
		return c.HandleError(ctx, backupsDisabled("start_backup"))
	}
	id, err := c.svc.Backup.Start(ctx.Request().Context())
	if err != nil {
		return c.HandleError(ctx, err)
	}
	return ctx.JSON(http.StatusAccepted, map[string]string{"id": id.String()})
}

// ListBackups lists stored archives on every target, newest first
func (c *Controller) ListBackups(ctx echo.Context) error {
	if c.svc.Backups == nil {
		return c.HandleError(ctx, backupsDisabled("list_backups"))
	}
	infos, err := c.svc.Backups.List(ctx.Request().Context())
	if err != nil {
		return c.HandleError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, infos)
}

func backupsDisabled(operation string) error {
	return errors.New(errors.NewStd(msgBackupsDisabled)).
		Component(componentAPI).
		Category(errors.CategoryState).
		Context("operation", operation).
		Build()
}

// ListJobs lists recent jobs, newest first
func (c *Controller) ListJobs(ctx echo.Context) error {
	jobs, err := c.svc.Jobs.List(ctx.Request().Context())
	if err != nil {
		return c.HandleError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, jobs)
}

// GetJob returns one job's progress
func (c *Controller) GetJob(ctx echo.Context) error {
	id, err := pathUUID(ctx, "id", "get_job")
	if err != nil {
		return c.HandleError(ctx, err)
	}
	job, err := c.svc.Jobs.Get(ctx.Request().Context(), id)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, job)
}
