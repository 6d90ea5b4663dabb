package targets

import (
	"testing"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmuseum/naskban-go/internal/conf"
	"github.com/rmuseum/naskban-go/internal/errors"
)

func TestNewFTPTargetDefaults(t *testing.T) {
	target, err := NewFTPTarget(RemoteConfig{Host: "ftp.example.org", Username: "naskban", Password: "secret"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "ftp:ftp.example.org:21:backups", target.Name())
	assert.Equal(t, defaultTimeout, target.cfg.Timeout)

	_, err = NewFTPTarget(RemoteConfig{Host: "ftp.example.org"}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestFTPArchivesFiltersListing(t *testing.T) {
	entries := []*ftp.Entry{
		{Name: "naskban-backup-20240501-083000.tar.gz", Type: ftp.EntryTypeFile, Size: 2048},
		{Name: "/srv/backups/naskban-backup-20240502-083000.tar.gz", Type: ftp.EntryTypeFile, Size: 4096},
		{Name: ".naskban-backup-20240503-083000.tar.gz.part", Type: ftp.EntryTypeFile, Size: 10},
		{Name: "naskban-backup-20240504-083000.tar.gz", Type: ftp.EntryTypeFolder},
		{Name: "notes.txt", Type: ftp.EntryTypeFile, Size: 1},
	}

	infos := ftpArchives(entries, "ftp:test")
	require.Len(t, infos, 2)
	assert.Equal(t, "naskban-backup-20240501-083000", infos[0].ID)
	assert.Equal(t, int64(2048), infos[0].Size)
	assert.Equal(t, time.Date(2024, 5, 2, 8, 30, 0, 0, time.UTC), infos[1].Timestamp)
	assert.Equal(t, "ftp:test", infos[1].Target)
}

func TestFromSettings(t *testing.T) {
	dir := t.TempDir()
	targets, err := FromSettings([]conf.BackupTargetSettings{
		{Type: "local", Path: dir},
		{Type: "FTP", Host: "ftp.example.org", Port: 2121, Username: "naskban", Path: "/naskban"},
	}, testLogger())
	require.NoError(t, err)
	require.Len(t, targets, 2)
	assert.Equal(t, "local:"+dir, targets[0].Name())
	assert.Equal(t, "ftp:ftp.example.org:2121:/naskban", targets[1].Name())

	_, err = FromSettings([]conf.BackupTargetSettings{{Type: "rsync"}}, testLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backup target 0")
}
