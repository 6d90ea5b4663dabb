package targets

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/rmuseum/naskban-go/internal/backup"
	"github.com/rmuseum/naskban-go/internal/errors"
	"github.com/rmuseum/naskban-go/internal/logger"
)

const (
	dirPermissions  = 0o700
	filePermissions = 0o600
)

// LocalTarget stores archives in a directory on the local filesystem
type LocalTarget struct {
	dir string
	log logger.Logger
}

// NewLocalTarget creates the directory when missing
func NewLocalTarget(dir string, log logger.Logger) (*LocalTarget, error) {
	if dir == "" {
		return nil, errors.Newf("local backup target needs a path").
			Component(componentTargets).
			Category(errors.CategoryConfiguration).
			Build()
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, targetError(err, "local", "resolve_path", errors.CategoryConfiguration)
	}
	if err := os.MkdirAll(abs, dirPermissions); err != nil {
		return nil, targetError(err, "local", "create_dir", errors.CategoryFileIO)
	}
	if log == nil {
		log = logger.Global().Module(componentTargets)
	}
	return &LocalTarget{dir: abs, log: log.Module("local")}, nil
}

// Name implements backup.Target
func (t *LocalTarget) Name() string {
	return "local:" + t.dir
}

// Store implements backup.Target. The archive is copied under a temporary
// name and renamed into place.
func (t *LocalTarget) Store(ctx context.Context, archivePath string, md *backup.Metadata) error {
	src, err := os.Open(archivePath)
	if err != nil {
		return targetError(err, t.Name(), "open_archive", errors.CategoryFileIO)
	}
	defer src.Close()

	tmp, err := os.CreateTemp(t.dir, partName(md.FileName())+"-*")
	if err != nil {
		return targetError(err, t.Name(), "create_temp", errors.CategoryFileIO)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := io.Copy(tmp, contextReader{ctx: ctx, r: src}); err != nil {
		return targetError(err, t.Name(), "copy_archive", errors.CategoryFileIO)
	}
	if err := tmp.Chmod(filePermissions); err != nil {
		return targetError(err, t.Name(), "chmod", errors.CategoryFileIO)
	}
	if err := tmp.Sync(); err != nil {
		return targetError(err, t.Name(), "sync", errors.CategoryFileIO)
	}
	if err := tmp.Close(); err != nil {
		return targetError(err, t.Name(), "close", errors.CategoryFileIO)
	}
	if err := os.Rename(tmpPath, filepath.Join(t.dir, md.FileName())); err != nil {
		return targetError(err, t.Name(), "rename", errors.CategoryFileIO)
	}
	committed = true

	t.log.Debug("archive stored", logger.String("file", md.FileName()))
	return nil
}

// List implements backup.Target
func (t *LocalTarget) List(ctx context.Context) ([]backup.Info, error) {
	entries, err := os.ReadDir(t.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, targetError(err, t.Name(), "read_dir", errors.CategoryFileIO)
	}

	var infos []backup.Info
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !entry.Type().IsRegular() {
			continue
		}
		id, created, ok := backup.ParseArchiveName(entry.Name())
		if !ok {
			continue
		}
		fi, err := entry.Info()
		if err != nil {
			continue
		}
		infos = append(infos, backup.Info{ID: id, Target: t.Name(), Timestamp: created, Size: fi.Size()})
	}
	return infos, nil
}

// Delete implements backup.Target
func (t *LocalTarget) Delete(_ context.Context, id string) error {
	if !backup.ValidID(id) {
		return invalidIDError(id)
	}
	if err := os.Remove(filepath.Join(t.dir, backup.FileName(id))); err != nil {
		category := errors.CategoryFileIO
		if errors.Is(err, os.ErrNotExist) {
			category = errors.CategoryNotFound
		}
		return targetError(err, t.Name(), "delete", category)
	}
	return nil
}

// contextReader stops a copy once ctx is done
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
