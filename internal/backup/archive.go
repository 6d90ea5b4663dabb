package backup

import (
	"archive/tar"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rmuseum/naskban-go/internal/conf"
	"github.com/rmuseum/naskban-go/internal/errors"
)

// Entry names inside an archive
const (
	MetadataEntry = "metadata.json"
	DatabaseEntry = "naskban.db"
	ConfigEntry   = "config.yaml"
)

// writeArchive packs the snapshot, the redacted settings and the metadata
// into dir/<id>.tar.gz and fills in the size and checksum fields of md.
func writeArchive(dir, snapshot string, settings *conf.Settings, md *Metadata) (string, error) {
	stat, err := os.Stat(snapshot)
	if err != nil {
		return "", fileError(err, "stat_snapshot")
	}
	md.DataSize = stat.Size()

	checksum, err := fileChecksum(snapshot)
	if err != nil {
		return "", fileError(err, "checksum_snapshot")
	}
	md.Checksum = checksum

	var configData []byte
	if settings != nil {
		configData, err = conf.RedactedYAML(settings)
		if err != nil {
			return "", errors.New(err).
				Component(componentBackup).
				Category(errors.CategoryConfiguration).
				Context("operation", "marshal_settings").
				Build()
		}
		sum := sha256.Sum256(configData)
		md.ConfigHash = hex.EncodeToString(sum[:])
	}

	archivePath := filepath.Join(dir, md.FileName())
	f, err := os.OpenFile(archivePath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return "", fileError(err, "create_archive")
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)

	// The archive size is not known until it is closed, so the embedded
	// metadata leaves it at zero.
	metaJSON, err := json.MarshalIndent(md, "", "  ")
	if err != nil {
		return "", fileError(err, "marshal_metadata")
	}
	if err := writeEntry(tw, MetadataEntry, md.Timestamp, metaJSON); err != nil {
		return "", err
	}
	if configData != nil {
		if err := writeEntry(tw, ConfigEntry, md.Timestamp, configData); err != nil {
			return "", err
		}
	}
	if err := writeFileEntry(tw, DatabaseEntry, md.Timestamp, snapshot, md.DataSize); err != nil {
		return "", err
	}

	if err := tw.Close(); err != nil {
		return "", fileError(err, "close_tar")
	}
	if err := gz.Close(); err != nil {
		return "", fileError(err, "close_gzip")
	}
	if err := f.Sync(); err != nil {
		return "", fileError(err, "sync_archive")
	}

	archiveStat, err := f.Stat()
	if err != nil {
		return "", fileError(err, "stat_archive")
	}
	md.Size = archiveStat.Size()
	return archivePath, nil
}

func writeEntry(tw *tar.Writer, name string, modTime time.Time, data []byte) error {
	hdr := &tar.Header{Name: name, Mode: 0o600, Size: int64(len(data)), ModTime: modTime}
	if err := tw.WriteHeader(hdr); err != nil {
		return fileError(err, "write_"+name)
	}
	if _, err := tw.Write(data); err != nil {
		return fileError(err, "write_"+name)
	}
	return nil
}

func writeFileEntry(tw *tar.Writer, name string, modTime time.Time, path string, size int64) error {
	src, err := os.Open(path)
	if err != nil {
		return fileError(err, "open_snapshot")
	}
	defer src.Close()

	hdr := &tar.Header{Name: name, Mode: 0o600, Size: size, ModTime: modTime}
	if err := tw.WriteHeader(hdr); err != nil {
		return fileError(err, "write_"+name)
	}
	if _, err := io.CopyN(tw, src, size); err != nil {
		return fileError(err, "write_"+name)
	}
	return nil
}

func fileChecksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ReadMetadata returns the metadata stored in an archive
func ReadMetadata(archivePath string) (*Metadata, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return nil, fileError(err, "open_archive")
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fileError(err, "read_gzip")
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fileError(err, "read_tar")
		}
		if hdr.Name != MetadataEntry {
			continue
		}

		var md Metadata
		if err := json.NewDecoder(tr).Decode(&md); err != nil {
			return nil, fileError(err, "decode_metadata")
		}
		stat, err := f.Stat()
		if err == nil {
			md.Size = stat.Size()
		}
		return &md, nil
	}

	return nil, errors.Newf("%s has no %s entry", filepath.Base(archivePath), MetadataEntry).
		Component(componentBackup).
		Category(errors.CategoryValidation).
		Build()
}
