// Package app assembles the naskban components from settings: the entity
// store, metrics, the event bus and its MQTT and notification consumers,
// the background work queue, the Ganjoor client and the services the HTTP
// API and the CLI commands call.
package app

import (
	"context"
	"net/http"
	"path/filepath"
	"time"

	"github.com/rmuseum/naskban-go/internal/api"
	v1 "github.com/rmuseum/naskban-go/internal/api/v1"
	"github.com/rmuseum/naskban-go/internal/backup"
	"github.com/rmuseum/naskban-go/internal/backup/sources"
	"github.com/rmuseum/naskban-go/internal/backup/targets"
	"github.com/rmuseum/naskban-go/internal/buildinfo"
	"github.com/rmuseum/naskban-go/internal/conf"
	"github.com/rmuseum/naskban-go/internal/datastore"
	"github.com/rmuseum/naskban-go/internal/errors"
	"github.com/rmuseum/naskban-go/internal/events"
	"github.com/rmuseum/naskban-go/internal/ganjoor"
	"github.com/rmuseum/naskban-go/internal/ganjoorlinks"
	"github.com/rmuseum/naskban-go/internal/httpclient"
	"github.com/rmuseum/naskban-go/internal/jobqueue"
	"github.com/rmuseum/naskban-go/internal/library"
	"github.com/rmuseum/naskban-go/internal/logger"
	"github.com/rmuseum/naskban-go/internal/mqtt"
	"github.com/rmuseum/naskban-go/internal/notification"
	"github.com/rmuseum/naskban-go/internal/observability"
	"github.com/rmuseum/naskban-go/internal/poemmatch"
	"github.com/rmuseum/naskban-go/internal/processing"
	"github.com/rmuseum/naskban-go/internal/telemetry"
)

const componentApp = "app"

const (
	// mqttConnectTimeout bounds the first broker connection attempt
	mqttConnectTimeout = 15 * time.Second

	// mqttPublishTimeout bounds one event publish
	mqttPublishTimeout = 10 * time.Second

	eventBusShutdownTimeout = 5 * time.Second

	// defaultStopTimeout applies when settings leave the queue stop timeout unset
	defaultStopTimeout = 30 * time.Second
)

// App holds the assembled components. Close releases them in reverse order.
type App struct {
	Settings *conf.Settings
	Info     buildinfo.BuildInfo
	Metrics  *observability.Metrics

	Store    datastore.Manager
	Bus      *events.EventBus
	Jobs     *jobqueue.Queue
	Tracker  *jobqueue.Tracker
	Notifier notification.Notifier

	OCRQueue *processing.Queue
	AIQueue  *processing.Queue
	Results  *processing.PageResults
	Filler   *processing.TextFiller
	Links    *ganjoorlinks.Service
	Findings *poemmatch.Service
	Library  *library.Service

	// Backups, BackupJob and scheduler are nil when backups are disabled
	Backups   *backup.Manager
	BackupJob *backup.Job
	scheduler *backup.Scheduler

	log        logger.Logger
	mqtt       mqtt.Client
	httpClient *httpclient.Client
}

// New opens the entity store and wires every component. The background
// queue is started; the HTTP server is not.
func New(ctx context.Context, settings *conf.Settings, info buildinfo.BuildInfo, log logger.Logger) (*App, error) {
	if log == nil {
		log = logger.Global().Module(componentApp)
	}
	a := &App{Settings: settings, Info: info, log: log}

	if err := telemetry.InitSentry(settings, info.GetVersion(), log.Module("telemetry")); err != nil {
		log.Warn("error telemetry is unavailable", logger.Error(err))
	}

	m, err := observability.NewMetrics()
	if err != nil {
		return nil, errors.New(err).
			Component(componentApp).
			Category(errors.CategoryConfiguration).
			Context("operation", "init_metrics").
			Build()
	}
	a.Metrics = m

	store, err := datastore.Open(settings, log.Module("datastore"))
	if err != nil {
		return nil, err
	}
	if err := store.Initialize(); err != nil {
		_ = store.Close()
		return nil, err
	}
	a.Store = store

	if err := a.initEvents(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}

	a.Jobs = jobqueue.NewQueue(jobqueue.Config{
		Workers:  settings.JobQueue.Workers,
		Capacity: settings.JobQueue.Capacity,
	}, m.JobQueue, log.Module("jobqueue"))
	a.Jobs.Start()
	a.Tracker = jobqueue.NewTracker(store.DB(), log.Module("jobqueue"))

	a.initServices()
	if err := a.initBackup(); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

// initEvents creates the event bus with its MQTT and notification consumers
func (a *App) initEvents(ctx context.Context) error {
	a.Bus = events.NewEventBus(events.DefaultConfig(), a.log.Module("events"))

	notifier, err := notification.NewFromSettings(a.Settings, a.Metrics.Notification, a.log.Module("notification"))
	if err != nil {
		return err
	}
	a.Notifier = notifier
	if svc, ok := notifier.(*notification.Service); ok {
		if err := a.Bus.RegisterConsumer(notification.NewEventConsumer(svc)); err != nil {
			return err
		}
	}

	if !a.Settings.MQTT.Enabled {
		return nil
	}
	a.mqtt = mqtt.NewClient(mqtt.ConfigFromSettings(a.Settings), a.Metrics.MQTT, a.log.Module("mqtt"))
	connectCtx, cancel := context.WithTimeout(ctx, mqttConnectTimeout)
	defer cancel()
	if err := a.mqtt.Connect(connectCtx); err != nil {
		// The client keeps reconnecting in the background.
		a.log.Warn("MQTT broker unreachable at startup", logger.Error(err))
	}
	return a.Bus.RegisterConsumer(events.NewMQTTConsumer(a.mqtt, a.Settings.MQTT.TopicPrefix, mqttPublishTimeout))
}

func (a *App) initServices() {
	db := a.Store.DB()
	pipeline := a.Metrics.Pipeline
	opts := []processing.Option{
		processing.WithLogger(a.log.Module("processing")),
		processing.WithMetrics(pipeline),
		processing.WithEvents(a.Bus),
		processing.WithMaxBookTextBytes(a.Settings.Processing.MaxBookTextBytes),
	}

	a.OCRQueue = processing.NewQueue(db, processing.KindOCR, opts...)
	a.AIQueue = processing.NewQueue(db, processing.KindAI, opts...)
	a.Results = processing.NewPageResults(db, opts...)
	a.Filler = processing.NewTextFiller(db, a.Jobs, a.Tracker, a.Notifier, opts...)

	a.httpClient = httpclient.New(&httpclient.Config{UserAgent: a.Info.UserAgent()})
	a.httpClient.SetAfterResponseHook(outboundLogger(a.log.Module("httpclient")))
	corpus := ganjoor.NewClient(ganjoor.ConfigFromSettings(a.Settings), a.httpClient, a.Metrics.Ganjoor, a.log.Module("ganjoor"))

	a.Links = ganjoorlinks.NewService(db, a.Settings.Main.SiteURL, pipeline, a.Bus, a.log.Module("ganjoor-links"))
	a.Findings = poemmatch.NewService(db, corpus, pipeline, a.Bus, a.log.Module("poem-match"))
	a.Library = library.NewService(db, a.Settings.Main.ReadOnly, a.log.Module("library"))
}

// initBackup builds the backup manager and its scheduler when enabled
func (a *App) initBackup() error {
	cfg := a.Settings.Backup
	if !cfg.Enabled {
		return nil
	}
	log := a.log.Module("backup")

	stores, err := targets.FromSettings(cfg.Targets, log)
	if err != nil {
		return err
	}
	a.Backups = backup.NewManager(
		sources.NewSQLiteSource(a.Store.DB(), log),
		stores,
		backup.Config{Keep: cfg.Keep, AppVersion: a.Info.GetVersion(), Settings: a.Settings},
		a.Metrics.Backup,
		log)
	a.BackupJob = backup.NewJob(a.Backups, a.Jobs, a.Tracker, a.Notifier, a.Bus, log)
	a.scheduler = backup.NewScheduler(a.BackupJob, cfg.Interval, log)
	log.Info("backups enabled",
		logger.Duration("interval", cfg.Interval),
		logger.Int("keep", cfg.Keep),
		logger.Any("targets", a.Backups.Targets()))
	return nil
}

// outboundLogger logs every outbound call at debug level
func outboundLogger(log logger.Logger) httpclient.ResponseHook {
	return func(req *http.Request, resp *http.Response, err error, elapsed time.Duration) {
		fields := []logger.Field{
			logger.String("method", req.Method),
			logger.String("host", req.URL.Host),
			logger.String("path", req.URL.Path),
			logger.Duration("elapsed", elapsed),
		}
		if err != nil {
			log.Debug("outbound request failed", append(fields, logger.Error(err))...)
			return
		}
		log.Debug("outbound request", append(fields, logger.Int("status", resp.StatusCode))...)
	}
}

// Queue returns the processing queue of the given kind
func (a *App) Queue(kind processing.Kind) *processing.Queue {
	if kind == processing.KindAI {
		return a.AIQueue
	}
	return a.OCRQueue
}

// APIServices returns what the HTTP endpoints delegate to
func (a *App) APIServices() v1.Services {
	var dataDir string
	if !a.Store.IsMySQL() {
		dataDir = filepath.Dir(a.Store.Path())
	}
	svc := v1.Services{
		Queues: map[processing.Kind]v1.BookQueue{
			processing.KindOCR: a.OCRQueue,
			processing.KindAI:  a.AIQueue,
		},
		Results:  a.Results,
		BookText: a.Filler,
		Jobs:     a.Tracker,
		Links:    a.Links,
		Findings: a.Findings,
		Library:  a.Library,
		DataDir:  dataDir,
	}
	if a.BackupJob != nil {
		svc.Backup = a.BackupJob
		svc.Backups = a.Backups
	}
	return svc
}

// Serve runs the HTTP server until ctx is cancelled, then shuts it down.
func (a *App) Serve(ctx context.Context) error {
	server, err := api.New(a.Settings,
		api.WithLogger(a.log.Module("api")),
		api.WithServices(a.APIServices()),
		api.WithMetrics(a.Metrics),
		api.WithBuildInfo(a.Info))
	if err != nil {
		return err
	}

	server.Start()
	if a.scheduler != nil {
		a.scheduler.Start(ctx)
		defer a.scheduler.Stop()
	}

	<-ctx.Done()
	a.log.Info("shutdown requested")
	return server.Shutdown()
}

// Close drains background work and releases every resource. It is safe on
// a partially initialized App.
func (a *App) Close() error {
	var errs []error

	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	if a.Jobs != nil {
		timeout := a.Settings.JobQueue.StopTimeout
		if timeout <= 0 {
			timeout = defaultStopTimeout
		}
		if err := a.Jobs.Stop(timeout); err != nil {
			errs = append(errs, err)
		}
	}
	if a.Bus != nil {
		if err := a.Bus.Shutdown(eventBusShutdownTimeout); err != nil {
			errs = append(errs, err)
		}
	}
	if a.mqtt != nil {
		a.mqtt.Disconnect()
	}
	if a.httpClient != nil {
		a.httpClient.Close()
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	telemetry.Shutdown()

	return errors.Join(errs...)
}

// Run assembles an App, calls fn and closes the App. It serves one-shot
// CLI commands; close errors are logged, not returned.
func Run(ctx context.Context, settings *conf.Settings, info buildinfo.BuildInfo, fn func(context.Context, *App) error) error {
	a, err := New(ctx, settings, info, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			a.log.Warn("shutdown finished with errors", logger.Error(err))
		}
	}()
	return fn(ctx, a)
}
