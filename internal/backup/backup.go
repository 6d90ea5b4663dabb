// Package backup snapshots the entity store into a compressed archive,
// ships it to the configured targets and keeps a bounded number of
// archives on each of them.
package backup

import (
	"context"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rmuseum/naskban-go/internal/conf"
	"github.com/rmuseum/naskban-go/internal/errors"
	"github.com/rmuseum/naskban-go/internal/logger"
	"github.com/rmuseum/naskban-go/internal/observability/metrics"
)

const componentBackup = "backup"

const (
	archivePrefix   = "naskban-backup-"
	archiveExt      = ".tar.gz"
	idTimeLayout    = "20060102-150405"
	metadataVersion = 1

	// storeTimeout bounds one upload to one target
	storeTimeout = 15 * time.Minute

	// pruneTimeout bounds listing and deleting old archives on one target
	pruneTimeout = 5 * time.Minute
)

// Source produces a consistent copy of the data to back up
type Source interface {
	// Name identifies the source in archive metadata
	Name() string
	// Snapshot writes the copy into dir and returns its path
	Snapshot(ctx context.Context, dir string) (string, error)
}

// Target is a place archives are stored
type Target interface {
	// Name identifies the target in logs and metrics
	Name() string
	// Store uploads the archive at archivePath under md.FileName()
	Store(ctx context.Context, archivePath string, md *Metadata) error
	// List returns the archives present on the target
	List(ctx context.Context) ([]Info, error)
	// Delete removes the archive with the given id
	Delete(ctx context.Context, id string) error
}

// Metadata describes one archive. It is stored inside the archive as
// metadata.json.
type Metadata struct {
	Version    int       `json:"version"`
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	Source     string    `json:"source"`
	Size       int64     `json:"size"`                 // archive bytes
	DataSize   int64     `json:"dataSize"`             // snapshot bytes before compression
	Checksum   string    `json:"checksum"`             // sha256 of the snapshot
	ConfigHash string    `json:"configHash,omitempty"` // sha256 of the redacted settings
	AppVersion string    `json:"appVersion"`
}

// FileName is the archive file name used on every target
func (m *Metadata) FileName() string {
	return FileName(m.ID)
}

// FileName returns the archive file name for id
func FileName(id string) string {
	return id + archiveExt
}

// ValidID reports whether id names an archive. Targets use it to refuse
// ids that could escape their directory.
func ValidID(id string) bool {
	_, _, ok := ParseArchiveName(FileName(id))
	return ok
}

// Info is an archive found on a target
type Info struct {
	ID        string    `json:"id"`
	Target    string    `json:"target"`
	Timestamp time.Time `json:"timestamp"`
	Size      int64     `json:"size"`
}

// ParseArchiveName recovers the archive id and creation time from a file
// name. ok is false for anything that is not an archive.
func ParseArchiveName(name string) (id string, created time.Time, ok bool) {
	if !strings.HasPrefix(name, archivePrefix) || !strings.HasSuffix(name, archiveExt) {
		return "", time.Time{}, false
	}
	id = strings.TrimSuffix(name, archiveExt)
	created, err := time.ParseInLocation(idTimeLayout, strings.TrimPrefix(id, archivePrefix), time.UTC)
	if err != nil {
		return "", time.Time{}, false
	}
	return id, created, true
}

// Config configures a Manager
type Config struct {
	Keep       int            // archives kept per target, at least 1
	AppVersion string         // recorded in metadata
	Settings   *conf.Settings // stored redacted in each archive; nil skips it
	TempDir    string         // work directory parent; empty uses the system default
}

// Manager runs backups. Runs are serialized; a run requested while another
// is in progress fails with a conflict error.
type Manager struct {
	source  Source
	targets []Target
	cfg     Config
	metrics *metrics.BackupMetrics
	log     logger.Logger
	now     func() time.Time

	mu sync.Mutex
}

// NewManager creates a Manager. A nil metrics collector disables metrics.
func NewManager(source Source, targets []Target, cfg Config, m *metrics.BackupMetrics, log logger.Logger) *Manager {
	if log == nil {
		log = logger.Global().Module(componentBackup)
	}
	if cfg.Keep < 1 {
		cfg.Keep = 1
	}
	return &Manager{
		source:  source,
		targets: targets,
		cfg:     cfg,
		metrics: m,
		log:     log,
		now:     time.Now,
	}
}

// Targets returns the names of the configured targets
func (m *Manager) Targets() []string {
	names := make([]string, len(m.targets))
	for i, t := range m.targets {
		names[i] = t.Name()
	}
	return names
}

// Run creates one archive and stores it on every target. A target that
// fails does not stop the others; the returned error joins every failure
// and the metadata is returned whenever the archive was built.
func (m *Manager) Run(ctx context.Context) (*Metadata, error) {
	if !m.mu.TryLock() {
		return nil, errors.Newf("a backup is already running").
			Component(componentBackup).
			Category(errors.CategoryConflict).
			Build()
	}
	defer m.mu.Unlock()

	start := time.Now()
	md, err := m.run(ctx)

	var size int64
	if md != nil {
		size = md.Size
	}
	m.metrics.RecordRun(time.Since(start), size, err)
	return md, err
}

func (m *Manager) run(ctx context.Context) (*Metadata, error) {
	if len(m.targets) == 0 {
		return nil, errors.Newf("no backup targets configured").
			Component(componentBackup).
			Category(errors.CategoryConfiguration).
			Build()
	}

	workDir, err := os.MkdirTemp(m.cfg.TempDir, "naskban-backup-*")
	if err != nil {
		return nil, fileError(err, "create_work_dir")
	}
	defer func() {
		if err := os.RemoveAll(workDir); err != nil {
			m.log.Warn("failed to remove backup work directory", logger.String("path", workDir), logger.Error(err))
		}
	}()

	now := m.now().UTC()
	md := &Metadata{
		Version:    metadataVersion,
		ID:         archivePrefix + now.Format(idTimeLayout),
		Timestamp:  now,
		Source:     m.source.Name(),
		AppVersion: m.cfg.AppVersion,
	}
	log := m.log.With(logger.String("backup_id", md.ID))
	log.Info("backup started", logger.String("source", md.Source), logger.Int("targets", len(m.targets)))

	snapshot, err := m.source.Snapshot(ctx, workDir)
	if err != nil {
		return nil, err
	}

	archivePath, err := writeArchive(workDir, snapshot, m.cfg.Settings, md)
	if err != nil {
		return nil, err
	}
	log.Info("archive created", logger.Int64("size", md.Size), logger.Int64("data_size", md.DataSize))

	var errs []error
	for _, t := range m.targets {
		if err := ctx.Err(); err != nil {
			return md, err
		}

		storeCtx, cancel := context.WithTimeout(ctx, storeTimeout)
		err := t.Store(storeCtx, archivePath, md)
		cancel()
		m.metrics.RecordStore(t.Name(), err)
		if err != nil {
			log.Error("failed to store backup", logger.String("target", t.Name()), logger.Error(err))
			errs = append(errs, errors.New(err).
				Component(componentBackup).
				Context("operation", "store").
				Context("target", t.Name()).
				Build())
			continue
		}
		log.Info("backup stored", logger.String("target", t.Name()))

		// Retention failures leave extra archives behind but do not fail the run
		if err := m.prune(ctx, t); err != nil {
			log.Warn("failed to prune old backups", logger.String("target", t.Name()), logger.Error(err))
		}
	}

	if len(errs) > 0 {
		return md, errors.Join(errs...)
	}
	log.Info("backup finished")
	return md, nil
}

// prune deletes the oldest archives on t beyond the retention count
func (m *Manager) prune(ctx context.Context, t Target) error {
	ctx, cancel := context.WithTimeout(ctx, pruneTimeout)
	defer cancel()

	infos, err := t.List(ctx)
	if err != nil {
		return err
	}
	if len(infos) <= m.cfg.Keep {
		return nil
	}
	sortNewestFirst(infos)

	var errs []error
	for _, info := range infos[m.cfg.Keep:] {
		if err := t.Delete(ctx, info.ID); err != nil {
			errs = append(errs, err)
			continue
		}
		m.log.Info("old backup deleted", logger.String("target", t.Name()), logger.String("backup_id", info.ID))
	}
	return errors.Join(errs...)
}

// List returns the archives on every target, newest first. Targets that
// cannot be listed are reported in the error alongside what was found.
func (m *Manager) List(ctx context.Context) ([]Info, error) {
	var (
		all  []Info
		errs []error
	)
	for _, t := range m.targets {
		infos, err := t.List(ctx)
		if err != nil {
			errs = append(errs, errors.New(err).
				Component(componentBackup).
				Context("operation", "list").
				Context("target", t.Name()).
				Build())
			continue
		}
		all = append(all, infos...)
	}
	sortNewestFirst(all)
	return all, errors.Join(errs...)
}

func sortNewestFirst(infos []Info) {
	sort.SliceStable(infos, func(i, j int) bool {
		return infos[i].Timestamp.After(infos[j].Timestamp)
	})
}

func fileError(err error, operation string) error {
	return errors.New(err).
		Component(componentBackup).
		Category(errors.CategoryFileIO).
		Context("operation", operation).
		Build()
}
