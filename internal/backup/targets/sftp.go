package targets

import (
	"context"
	"io"
	"net"
	"os"
	"path"
	"path/filepath"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/rmuseum/naskban-go/internal/backup"
	"github.com/rmuseum/naskban-go/internal/errors"
	"github.com/rmuseum/naskban-go/internal/logger"
)

const defaultSFTPPort = 22

// sftpDialer opens a session; the returned func closes it
type sftpDialer func(ctx context.Context) (*sftp.Client, func(), error)

// SFTPTarget stores archives on an SFTP server. Host keys are checked
// against a known_hosts file.
type SFTPTarget struct {
	cfg  RemoteConfig
	dial sftpDialer
	log  logger.Logger
}

// NewSFTPTarget prepares the SSH client configuration. No connection is made
// until the first operation.
func NewSFTPTarget(cfg RemoteConfig, log logger.Logger) (*SFTPTarget, error) {
	cfg.applyDefaults(defaultSFTPPort)
	if cfg.Host == "" || cfg.Username == "" {
		return nil, errors.Newf("sftp backup target needs host and username").
			Component(componentTargets).
			Category(errors.CategoryConfiguration).
			Build()
	}

	clientConfig, err := sshClientConfig(&cfg)
	if err != nil {
		return nil, err
	}

	if log == nil {
		log = logger.Global().Module(componentTargets)
	}
	t := &SFTPTarget{cfg: cfg, log: log.Module("sftp")}
	t.dial = func(ctx context.Context) (*sftp.Client, func(), error) {
		return dialSFTP(ctx, cfg.addr(), clientConfig)
	}
	return t, nil
}

func newSFTPTargetWithDialer(cfg RemoteConfig, dial sftpDialer, log logger.Logger) *SFTPTarget {
	cfg.applyDefaults(defaultSFTPPort)
	if log == nil {
		log = logger.Global().Module(componentTargets)
	}
	return &SFTPTarget{cfg: cfg, dial: dial, log: log.Module("sftp")}
}

func sshClientConfig(cfg *RemoteConfig) (*ssh.ClientConfig, error) {
	var auth []ssh.AuthMethod
	switch {
	case cfg.KeyFile != "":
		key, err := os.ReadFile(cfg.KeyFile)
		if err != nil {
			return nil, targetError(err, "sftp", "read_key", errors.CategoryConfiguration)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, targetError(err, "sftp", "parse_key", errors.CategoryConfiguration)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	case cfg.Password != "":
		auth = append(auth, ssh.Password(cfg.Password))
	default:
		return nil, errors.Newf("sftp backup target needs a key file or a password").
			Component(componentTargets).
			Category(errors.CategoryConfiguration).
			Build()
	}

	knownHostsFile := cfg.KnownHosts
	if knownHostsFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, targetError(err, "sftp", "locate_known_hosts", errors.CategoryConfiguration)
		}
		knownHostsFile = filepath.Join(home, ".ssh", "known_hosts")
	}
	hostKeys, err := knownhosts.New(knownHostsFile)
	if err != nil {
		return nil, targetError(err, "sftp", "load_known_hosts", errors.CategoryConfiguration)
	}

	return &ssh.ClientConfig{
		User:            cfg.Username,
		Auth:            auth,
		HostKeyCallback: hostKeys,
		Timeout:         cfg.Timeout,
	}, nil
}

func dialSFTP(ctx context.Context, addr string, config *ssh.ClientConfig) (*sftp.Client, func(), error) {
	dialer := net.Dialer{Timeout: config.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, nil, targetError(err, "sftp", "dial", errors.CategoryNetwork)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		_ = conn.Close()
		return nil, nil, targetError(err, "sftp", "handshake", errors.CategoryNetwork)
	}
	sshClient := ssh.NewClient(sshConn, chans, reqs)

	client, err := sftp.NewClient(sshClient)
	if err != nil {
		_ = sshClient.Close()
		return nil, nil, targetError(err, "sftp", "open_session", errors.CategoryNetwork)
	}

	return client, func() {
		_ = client.Close()
		_ = sshClient.Close()
	}, nil
}

// Name implements backup.Target
func (t *SFTPTarget) Name() string {
	return "sftp:" + t.cfg.addr() + ":" + t.cfg.Path
}

// Store implements backup.Target
func (t *SFTPTarget) Store(ctx context.Context, archivePath string, md *backup.Metadata) error {
	src, err := os.Open(archivePath)
	if err != nil {
		return targetError(err, t.Name(), "open_archive", errors.CategoryFileIO)
	}
	defer src.Close()

	client, closeSession, err := t.dial(ctx)
	if err != nil {
		return err
	}
	defer closeSession()

	if err := client.MkdirAll(t.cfg.Path); err != nil {
		return targetError(err, t.Name(), "mkdir", errors.CategoryExternal)
	}

	final := path.Join(t.cfg.Path, md.FileName())
	part := path.Join(t.cfg.Path, partName(md.FileName()))

	dst, err := client.Create(part)
	if err != nil {
		return targetError(err, t.Name(), "create", errors.CategoryExternal)
	}
	if _, err := io.Copy(dst, contextReader{ctx: ctx, r: src}); err != nil {
		_ = dst.Close()
		_ = client.Remove(part)
		return targetError(err, t.Name(), "upload", errors.CategoryNetwork)
	}
	if err := dst.Close(); err != nil {
		_ = client.Remove(part)
		return targetError(err, t.Name(), "upload", errors.CategoryNetwork)
	}
	if err := client.Rename(part, final); err != nil {
		_ = client.Remove(part)
		return targetError(err, t.Name(), "rename", errors.CategoryExternal)
	}

	t.log.Debug("archive stored", logger.String("file", final))
	return nil
}

// List implements backup.Target
func (t *SFTPTarget) List(ctx context.Context) ([]backup.Info, error) {
	client, closeSession, err := t.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer closeSession()

	entries, err := client.ReadDir(t.cfg.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, targetError(err, t.Name(), "read_dir", errors.CategoryExternal)
	}

	var infos []backup.Info
	for _, entry := range entries {
		if !entry.Mode().IsRegular() {
			continue
		}
		id, created, ok := backup.ParseArchiveName(entry.Name())
		if !ok {
			continue
		}
		infos = append(infos, backup.Info{ID: id, Target: t.Name(), Timestamp: created, Size: entry.Size()})
	}
	return infos, nil
}

// Delete implements backup.Target
func (t *SFTPTarget) Delete(ctx context.Context, id string) error {
	if !backup.ValidID(id) {
		return invalidIDError(id)
	}
	client, closeSession, err := t.dial(ctx)
	if err != nil {
		return err
	}
	defer closeSession()

	if err := client.Remove(path.Join(t.cfg.Path, backup.FileName(id))); err != nil {
		category := errors.CategoryExternal
		if errors.Is(err, os.ErrNotExist) {
			category = errors.CategoryNotFound
		}
		return targetError(err, t.Name(), "delete", category)
	}
	return nil
}
