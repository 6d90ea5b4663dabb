// Package targets provides the places backup archives are stored: a local
// directory, an SFTP server or an FTP server.
package targets

import (
	"fmt"
	"strings"
	"time"

	"github.com/rmuseum/naskban-go/internal/backup"
	"github.com/rmuseum/naskban-go/internal/conf"
	"github.com/rmuseum/naskban-go/internal/errors"
	"github.com/rmuseum/naskban-go/internal/logger"
)

const componentTargets = "backup-target"

const (
	defaultTimeout    = 30 * time.Second
	defaultRemotePath = "backups"
)

// FromSettings builds one target per configured entry
func FromSettings(settings []conf.BackupTargetSettings, log logger.Logger) ([]backup.Target, error) {
	if log == nil {
		log = logger.Global().Module(componentTargets)
	}

	targets := make([]backup.Target, 0, len(settings))
	for i, s := range settings {
		var (
			t   backup.Target
			err error
		)
		switch strings.ToLower(s.Type) {
		case conf.BackupTargetLocal:
			t, err = NewLocalTarget(s.Path, log)
		case conf.BackupTargetSFTP:
			t, err = NewSFTPTarget(RemoteConfigFromSettings(s), log)
		case conf.BackupTargetFTP:
			t, err = NewFTPTarget(RemoteConfigFromSettings(s), log)
		default:
			err = errors.Newf("unknown backup target type %q", s.Type).
				Component(componentTargets).
				Category(errors.CategoryConfiguration).
				Build()
		}
		if err != nil {
			return nil, fmt.Errorf("backup target %d: %w", i, err)
		}
		targets = append(targets, t)
	}
	return targets, nil
}

// RemoteConfig configures an SFTP or FTP target
type RemoteConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	KeyFile    string // SFTP only
	KnownHosts string // SFTP only
	Path       string
	Timeout    time.Duration
}

// RemoteConfigFromSettings maps target settings to a RemoteConfig
func RemoteConfigFromSettings(s conf.BackupTargetSettings) RemoteConfig {
	return RemoteConfig{
		Host:       s.Host,
		Port:       s.Port,
		Username:   s.Username,
		Password:   s.Password,
		KeyFile:    s.KeyFile,
		KnownHosts: s.KnownHosts,
		Path:       s.Path,
		Timeout:    s.Timeout,
	}
}

func (c *RemoteConfig) applyDefaults(port int) {
	if c.Port == 0 {
		c.Port = port
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	c.Path = strings.TrimRight(c.Path, "/")
	if c.Path == "" {
		c.Path = defaultRemotePath
	}
}

func (c *RemoteConfig) addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// partName is the temporary name an upload is written under before it is
// renamed into place, so listings never show a half-written archive.
func partName(name string) string {
	return "." + name + ".part"
}

func invalidIDError(id string) error {
	return errors.Newf("invalid backup id %q", id).
		Component(componentTargets).
		Category(errors.CategoryValidation).
		Build()
}

func targetError(err error, target, operation string, category errors.ErrorCategory) error {
	return errors.New(err).
		Component(componentTargets).
		Category(category).
		Context("target", target).
		Context("operation", operation).
		Build()
}
