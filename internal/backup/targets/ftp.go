package targets

import (
	"context"
	"os"
	"path"
	"strings"

	"github.com/jlaffaye/ftp"

	"github.com/rmuseum/naskban-go/internal/backup"
	"github.com/rmuseum/naskban-go/internal/errors"
	"github.com/rmuseum/naskban-go/internal/logger"
)

const defaultFTPPort = 21

// FTPTarget stores archives on an FTP server. A connection is opened per
// operation.
type FTPTarget struct {
	cfg RemoteConfig
	log logger.Logger
}

// NewFTPTarget validates the configuration. No connection is made until
// the first operation.
func NewFTPTarget(cfg RemoteConfig, log logger.Logger) (*FTPTarget, error) {
	cfg.applyDefaults(defaultFTPPort)
	if cfg.Host == "" || cfg.Username == "" {
		return nil, errors.Newf("ftp backup target needs host and username").
			Component(componentTargets).
			Category(errors.CategoryConfiguration).
			Build()
	}
	if log == nil {
		log = logger.Global().Module(componentTargets)
	}
	return &FTPTarget{cfg: cfg, log: log.Module("ftp")}, nil
}

// Name implements backup.Target
func (t *FTPTarget) Name() string {
	return "ftp:" + t.cfg.addr() + ":" + t.cfg.Path
}

func (t *FTPTarget) connect(ctx context.Context) (*ftp.ServerConn, error) {
	conn, err := ftp.Dial(t.cfg.addr(), ftp.DialWithContext(ctx), ftp.DialWithTimeout(t.cfg.Timeout))
	if err != nil {
		return nil, targetError(err, t.Name(), "dial", errors.CategoryNetwork)
	}
	if err := conn.Login(t.cfg.Username, t.cfg.Password); err != nil {
		_ = conn.Quit()
		return nil, targetError(err, t.Name(), "login", errors.CategoryExternal)
	}
	return conn, nil
}

func (t *FTPTarget) quit(conn *ftp.ServerConn) {
	if err := conn.Quit(); err != nil {
		t.log.Debug("ftp quit failed", logger.Error(err))
	}
}

// makeDirs creates every component of dir. Errors are ignored because
// servers report existing directories in different ways; a real problem
// surfaces on the upload.
func makeDirs(conn *ftp.ServerConn, dir string) {
	current := ""
	if strings.HasPrefix(dir, "/") {
		current = "/"
	}
	for _, part := range strings.Split(strings.Trim(dir, "/"), "/") {
		if part == "" {
			continue
		}
		current = path.Join(current, part)
		_ = conn.MakeDir(current)
	}
}

// Store implements backup.Target
func (t *FTPTarget) Store(ctx context.Context, archivePath string, md *backup.Metadata) error {
	src, err := os.Open(archivePath)
	if err != nil {
		return targetError(err, t.Name(), "open_archive", errors.CategoryFileIO)
	}
	defer src.Close()

	conn, err := t.connect(ctx)
	if err != nil {
		return err
	}
	defer t.quit(conn)

	makeDirs(conn, t.cfg.Path)

	final := path.Join(t.cfg.Path, md.FileName())
	part := path.Join(t.cfg.Path, partName(md.FileName()))
	if err := conn.Stor(part, contextReader{ctx: ctx, r: src}); err != nil {
		_ = conn.Delete(part)
		return targetError(err, t.Name(), "upload", errors.CategoryNetwork)
	}
	if err := conn.Rename(part, final); err != nil {
		_ = conn.Delete(part)
		return targetError(err, t.Name(), "rename", errors.CategoryExternal)
	}

	t.log.Debug("archive stored", logger.String("file", final))
	return nil
}

// List implements backup.Target
func (t *FTPTarget) List(ctx context.Context) ([]backup.Info, error) {
	conn, err := t.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer t.quit(conn)

	entries, err := conn.List(t.cfg.Path)
	if err != nil {
		return nil, targetError(err, t.Name(), "list", errors.CategoryExternal)
	}
	return ftpArchives(entries, t.Name()), nil
}

func ftpArchives(entries []*ftp.Entry, target string) []backup.Info {
	var infos []backup.Info
	for _, e := range entries {
		if e.Type != ftp.EntryTypeFile {
			continue
		}
		id, created, ok := backup.ParseArchiveName(path.Base(e.Name))
		if !ok {
			continue
		}
		infos = append(infos, backup.Info{ID: id, Target: target, Timestamp: created, Size: int64(e.Size)})
	}
	return infos
}

// Delete implements backup.Target
func (t *FTPTarget) Delete(ctx context.Context, id string) error {
	if !backup.ValidID(id) {
		return invalidIDError(id)
	}
	conn, err := t.connect(ctx)
	if err != nil {
		return err
	}
	defer t.quit(conn)

	if err := conn.Delete(path.Join(t.cfg.Path, backup.FileName(id))); err != nil {
		return targetError(err, t.Name(), "delete", errors.CategoryExternal)
	}
	return nil
}
