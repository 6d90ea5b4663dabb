package backup

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmuseum/naskban-go/internal/conf"
	"github.com/rmuseum/naskban-go/internal/errors"
	"github.com/rmuseum/naskban-go/internal/logger"
	"github.com/rmuseum/naskban-go/internal/observability/metrics"
)

var testClock = time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC)

// fileSource writes fixed bytes as its snapshot
type fileSource struct {
	data []byte
	err  error
}

func (fileSource) Name() string { return "test" }

func (s fileSource) Snapshot(_ context.Context, dir string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	path := filepath.Join(dir, "snapshot.db")
	return path, os.WriteFile(path, s.data, 0o600)
}

// memTarget keeps archives in memory
type memTarget struct {
	name     string
	storeErr error

	mu       sync.Mutex
	archives map[string][]byte
	infos    map[string]Info
}

func newMemTarget(name string) *memTarget {
	return &memTarget{name: name, archives: map[string][]byte{}, infos: map[string]Info{}}
}

func (t *memTarget) Name() string { return t.name }

func (t *memTarget) Store(_ context.Context, archivePath string, md *Metadata) error {
	if t.storeErr != nil {
		return t.storeErr
	}
	data, err := os.ReadFile(archivePath)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.archives[md.ID] = data
	t.infos[md.ID] = Info{ID: md.ID, Target: t.name, Timestamp: md.Timestamp, Size: int64(len(data))}
	return nil
}

func (t *memTarget) List(context.Context) ([]Info, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	infos := make([]Info, 0, len(t.infos))
	for _, info := range t.infos {
		infos = append(infos, info)
	}
	return infos, nil
}

func (t *memTarget) Delete(_ context.Context, id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.archives, id)
	delete(t.infos, id)
	return nil
}

func (t *memTarget) ids() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := make([]string, 0, len(t.archives))
	for id := range t.archives {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func testLogger() logger.Logger {
	return logger.NewSlogLogger(io.Discard, logger.LogLevelDebug, nil)
}

// newTestManager returns a manager whose clock advances one minute per run
func newTestManager(t *testing.T, source Source, targets []Target, cfg Config, m *metrics.BackupMetrics) *Manager {
	t.Helper()
	cfg.TempDir = t.TempDir()
	mgr := NewManager(source, targets, cfg, m, testLogger())
	next := testClock
	mgr.now = func() time.Time {
		now := next
		next = next.Add(time.Minute)
		return now
	}
	return mgr
}

func archiveEntries(t *testing.T, data []byte) map[string]string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "archive.tar.gz")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)

	entries := map[string]string{}
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		body, err := io.ReadAll(tr)
		require.NoError(t, err)
		entries[hdr.Name] = string(body)
	}
	return entries
}

func TestManagerRunStoresArchiveOnEveryTarget(t *testing.T) {
	a, b := newMemTarget("a"), newMemTarget("b")
	settings := &conf.Settings{}
	settings.Main.Name = "naskban"
	settings.MQTT.Password = "mqtt-secret"

	m := newTestManager(t, fileSource{data: []byte("sqlite bytes")}, []Target{a, b},
		Config{Keep: 3, AppVersion: "1.2.3", Settings: settings}, nil)

	md, err := m.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "naskban-backup-20240501-083000", md.ID)
	assert.Equal(t, "test", md.Source)
	assert.Equal(t, int64(len("sqlite bytes")), md.DataSize)
	sum := sha256.Sum256([]byte("sqlite bytes"))
	assert.Equal(t, hex.EncodeToString(sum[:]), md.Checksum)
	assert.NotEmpty(t, md.ConfigHash)
	assert.Positive(t, md.Size)

	assert.Equal(t, []string{md.ID}, a.ids())
	assert.Equal(t, []string{md.ID}, b.ids())

	entries := archiveEntries(t, a.archives[md.ID])
	assert.Equal(t, "sqlite bytes", entries[DatabaseEntry])
	assert.Contains(t, entries[ConfigEntry], "naskban")
	assert.NotContains(t, entries[ConfigEntry], "mqtt-secret")
	assert.Contains(t, entries[MetadataEntry], md.Checksum)
}

func TestReadMetadata(t *testing.T) {
	target := newMemTarget("a")
	m := newTestManager(t, fileSource{data: []byte("db")}, []Target{target}, Config{Keep: 1, AppVersion: "1.2.3"}, nil)

	md, err := m.Run(context.Background())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), md.FileName())
	require.NoError(t, os.WriteFile(path, target.archives[md.ID], 0o600))

	stored, err := ReadMetadata(path)
	require.NoError(t, err)
	assert.Equal(t, md.ID, stored.ID)
	assert.Equal(t, md.Checksum, stored.Checksum)
	assert.Equal(t, "1.2.3", stored.AppVersion)
	assert.Equal(t, md.Size, stored.Size)
	assert.Empty(t, stored.ConfigHash, "no settings were archived")

	_, entryFound := archiveEntries(t, target.archives[md.ID])[ConfigEntry]
	assert.False(t, entryFound)
}

func TestReadMetadataRejectsForeignFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("not an archive"), 0o600))

	_, err := ReadMetadata(path)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryFileIO))
}

func TestManagerPrunesBeyondKeep(t *testing.T) {
	target := newMemTarget("a")
	m := newTestManager(t, fileSource{data: []byte("db")}, []Target{target}, Config{Keep: 2}, nil)

	for range 3 {
		_, err := m.Run(context.Background())
		require.NoError(t, err)
	}

	assert.Equal(t, []string{
		"naskban-backup-20240501-083100",
		"naskban-backup-20240501-083200",
	}, target.ids())
}

func TestManagerContinuesPastFailingTarget(t *testing.T) {
	broken := newMemTarget("broken")
	broken.storeErr = errors.Newf("connection refused").Category(errors.CategoryNetwork).Build()
	healthy := newMemTarget("healthy")

	registry := prometheus.NewRegistry()
	bm, err := metrics.NewBackupMetrics(registry)
	require.NoError(t, err)

	m := newTestManager(t, fileSource{data: []byte("db")}, []Target{broken, healthy}, Config{Keep: 1}, bm)

	md, err := m.Run(context.Background())
	require.Error(t, err)
	require.NotNil(t, md, "the archive was built")
	assert.Equal(t, errors.CategoryNetwork, errors.CategoryOf(err))
	assert.Contains(t, err.Error(), "connection refused")

	assert.Empty(t, broken.ids())
	assert.Equal(t, []string{md.ID}, healthy.ids())

	expected := `
# HELP naskban_backup_target_stores_total Archive uploads by target and outcome
# TYPE naskban_backup_target_stores_total counter
naskban_backup_target_stores_total{result="error",target="broken"} 1
naskban_backup_target_stores_total{result="success",target="healthy"} 1
`
	require.NoError(t, testutil.CollectAndCompare(bm, strings.NewReader(expected), "naskban_backup_target_stores_total"))
}

func TestManagerSourceFailure(t *testing.T) {
	target := newMemTarget("a")
	sourceErr := errors.Newf("disk I/O error").Category(errors.CategoryDatabase).Build()
	m := newTestManager(t, fileSource{err: sourceErr}, []Target{target}, Config{Keep: 1}, nil)

	md, err := m.Run(context.Background())
	require.ErrorIs(t, err, sourceErr)
	assert.Nil(t, md)
	assert.Empty(t, target.ids())
}

func TestManagerRejectsOverlappingRuns(t *testing.T) {
	m := newTestManager(t, fileSource{data: []byte("db")}, []Target{newMemTarget("a")}, Config{Keep: 1}, nil)

	m.mu.Lock()
	_, err := m.Run(context.Background())
	m.mu.Unlock()

	require.Error(t, err)
	assert.True(t, errors.IsConflict(err))
}

func TestManagerWithoutTargets(t *testing.T) {
	m := newTestManager(t, fileSource{data: []byte("db")}, nil, Config{Keep: 1}, nil)

	_, err := m.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestManagerListMergesTargetsNewestFirst(t *testing.T) {
	a, b := newMemTarget("a"), newMemTarget("b")
	m := newTestManager(t, fileSource{data: []byte("db")}, []Target{a, b}, Config{Keep: 5}, nil)

	for range 2 {
		_, err := m.Run(context.Background())
		require.NoError(t, err)
	}

	infos, err := m.List(context.Background())
	require.NoError(t, err)
	require.Len(t, infos, 4)
	assert.Equal(t, "naskban-backup-20240501-083100", infos[0].ID)
	assert.Equal(t, "naskban-backup-20240501-083000", infos[3].ID)
	assert.Equal(t, []string{"a", "b"}, m.Targets())
}

func TestParseArchiveName(t *testing.T) {
	tests := []struct {
		name   string
		wantID string
		wantOK bool
	}{
		{"naskban-backup-20240501-083000.tar.gz", "naskban-backup-20240501-083000", true},
		{".naskban-backup-20240501-083000.tar.gz.part", "", false},
		{"naskban-backup-latest.tar.gz", "", false},
		{"naskban-backup-20240501-083000.zip", "", false},
		{"../naskban-backup-20240501-083000.tar.gz", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, created, ok := ParseArchiveName(tt.name)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantID, id)
			if ok {
				assert.Equal(t, testClock, created)
			}
		})
	}

	assert.True(t, ValidID("naskban-backup-20240501-083000"))
	assert.False(t, ValidID("../../etc/passwd"))
}
