// Package api implements the JSON endpoints of the naskban HTTP surface under
// /api/v1: the processing queues used by OCR and AI workers, the Ganjoor link
// review workflow, the poem-match finding queue, background jobs and the
// reader-facing library features.
package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/rmuseum/naskban-go/internal/api/middleware"
	"github.com/rmuseum/naskban-go/internal/backup"
	"github.com/rmuseum/naskban-go/internal/datastore/entities"
	"github.com/rmuseum/naskban-go/internal/errors"
	"github.com/rmuseum/naskban-go/internal/ganjoorlinks"
	"github.com/rmuseum/naskban-go/internal/library"
	"github.com/rmuseum/naskban-go/internal/logger"
	"github.com/rmuseum/naskban-go/internal/observability/metrics"
	"github.com/rmuseum/naskban-go/internal/poemmatch"
	"github.com/rmuseum/naskban-go/internal/processing"
)

const (
	componentAPI = "api"

	// Prefix is the path every endpoint of this package is mounted under
	Prefix = "/api/v1"

	msgBadRequest  = "درخواست نامعتبر است."
	msgUserMissing = "شناسهٔ کاربر مشخص نشده است."
)

// errorKindHTTP labels errors raised by the router itself
const errorKindHTTP = "http"

// BookQueue hands out books to external workers
type BookQueue interface {
	GetNext(ctx context.Context) (*entities.Book, error)
	Reset(ctx context.Context) (int64, error)
}

// JobStarter starts a background job and returns its id
type JobStarter interface {
	Start(ctx context.Context) (uuid.UUID, error)
}

// JobReader reads recorded job progress
type JobReader interface {
	Get(ctx context.Context, id uuid.UUID) (*entities.LongRunningJob, error)
	List(ctx context.Context) ([]entities.LongRunningJob, error)
}

// BackupLister lists stored backup archives
type BackupLister interface {
	List(ctx context.Context) ([]backup.Info, error)
}

// Services bundles what the endpoints delegate to. Every field except
// the backup pair and DataDir is required.
type Services struct {
	Queues   map[processing.Kind]BookQueue
	Results  *processing.PageResults
	BookText JobStarter
	Jobs     JobReader
	Links    *ganjoorlinks.Service
	Findings *poemmatch.Service
	Library  *library.Service

	// Backup and Backups are nil when backups are disabled
	Backup  JobStarter
	Backups BackupLister

	// DataDir is the directory holding the SQLite file; its disk usage is
	// reported by the system endpoints. Empty for MySQL.
	DataDir string
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// Controller owns the v1 route group
type Controller struct {
	Echo    *echo.Echo
	Group   *echo.Group
	svc     Services
	metrics *metrics.HTTPMetrics
	logger  logger.Logger
}

// New registers the v1 routes on e and installs the JSON error handler
func New(e *echo.Echo, svc Services, m *metrics.HTTPMetrics, log logger.Logger) (*Controller, error) {
	if e == nil {
		return nil, errors.Newf("echo instance is required").
			Component(componentAPI).
			Category(errors.CategoryConfiguration).
			Build()
	}
	if log == nil {
		log = logger.Global().Module(componentAPI)
	}

	c := &Controller{
		Echo:    e,
		Group:   e.Group(Prefix),
		svc:     svc,
		metrics: m,
		logger:  log,
	}
	e.HTTPErrorHandler = c.httpErrorHandler
	c.initRoutes()
	return c, nil
}

func (c *Controller) initRoutes() {
	c.Group.GET("/health", c.HealthCheck)

	routeInitializers := []struct {
		name string
		fn   func()
	}{
		{"queue routes", c.initQueueRoutes},
		{"link routes", c.initLinkRoutes},
		{"finding routes", c.initFindingRoutes},
		{"job routes", c.initJobRoutes},
		{"library routes", c.initLibraryRoutes},
		{"system routes", c.initSystemRoutes},
	}

	for _, initializer := range routeInitializers {
		initializer.fn()
		c.logger.Debug("routes initialized", logger.String("group", initializer.name))
	}
}

// HealthCheck reports that the API is serving
func (c *Controller) HealthCheck(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]string{"status": "healthy"})
}

// StatusFor maps an error category to the HTTP status returned for it
func StatusFor(category errors.ErrorCategory) int {
	switch category {
	case errors.CategoryValidation:
		return http.StatusBadRequest
	case errors.CategoryNotFound:
		return http.StatusNotFound
	case errors.CategoryConflict, errors.CategoryState:
		return http.StatusConflict
	case errors.CategoryNetwork, errors.CategoryExternal:
		return http.StatusBadGateway
	case errors.CategoryJobQueue:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// HandleError writes err as an ErrorResponse. Infrastructure failures are
// logged in full; the client only sees errors.UserMessage.
func (c *Controller) HandleError(ctx echo.Context, err error) error {
	category := errors.CategoryOf(err)
	code := StatusFor(category)
	c.metrics.RecordHTTPError(ctx.Path(), string(category))

	fields := []logger.Field{
		logger.String("path", ctx.Request().URL.Path),
		logger.String("method", ctx.Request().Method),
		logger.String("kind", string(category)),
		logger.Int("code", code),
		logger.Error(err),
	}
	if code >= http.StatusInternalServerError {
		c.logger.Error("API error", fields...)
	} else {
		c.logger.Debug("API request refused", fields...)
	}

	return ctx.JSON(code, ErrorResponse{Error: errors.UserMessage(err), Kind: string(category)})
}

// httpErrorHandler renders router errors (unknown routes, body limits) in
// the same shape as handler errors.
func (c *Controller) httpErrorHandler(err error, ctx echo.Context) {
	if ctx.Response().Committed {
		return
	}

	var he *echo.HTTPError
	if !errors.As(err, &he) {
		_ = c.HandleError(ctx, err)
		return
	}

	message := http.StatusText(he.Code)
	if s, ok := he.Message.(string); ok {
		message = s
	}
	c.metrics.RecordHTTPError(ctx.Path(), errorKindHTTP)

	if ctx.Request().Method == http.MethodHead {
		_ = ctx.NoContent(he.Code)
		return
	}
	_ = ctx.JSON(he.Code, ErrorResponse{Error: message, Kind: errorKindHTTP})
}

// badRequest wraps a binding or parameter failure
func badRequest(cause error, operation string) error {
	return errors.New(errors.NewStd(msgBadRequest)).
		Component(componentAPI).
		Category(errors.CategoryValidation).
		Context("operation", operation).
		Context("cause", cause.Error()).
		Build()
}

// requireUser returns the caller identity from the X-User-ID header
func requireUser(ctx echo.Context, operation string) (string, error) {
	user := ctx.Request().Header.Get(middleware.UserIDHeader)
	if user == "" {
		return "", errors.New(errors.NewStd(msgUserMissing)).
			Component(componentAPI).
			Category(errors.CategoryValidation).
			Context("operation", operation).
			Build()
	}
	return user, nil
}

func pathUint(ctx echo.Context, name, operation string) (uint, error) {
	v, err := strconv.ParseUint(ctx.Param(name), 10, 64)
	if err != nil || v == 0 {
		if err == nil {
			err = errors.NewStd(name + " must be positive")
		}
		return 0, badRequest(err, operation)
	}
	return uint(v), nil
}

func pathUUID(ctx echo.Context, name, operation string) (uuid.UUID, error) {
	id, err := uuid.Parse(ctx.Param(name))
	if err != nil {
		return uuid.Nil, badRequest(err, operation)
	}
	return id, nil
}
