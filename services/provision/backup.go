package provision

import (
	"archive/tar"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"gopkg.in/yaml.v3"
)

// backupFile copies an about-to-be-overwritten destination aside with
// the run's timestamp suffix. Re-running within the same run stamp
// reuses the existing copy, so one run makes at most one backup per
// destination. The backup precedes the overwrite unconditionally; a
// backup failure aborts only that file's handling.
func (e *Env) backupFile(dest string) (string, error) {
	backup := dest + ".bak-" + e.runStamp
	if _, err := os.Stat(backup); err == nil {
		return backup, nil
	}
	if err := copyFile(dest, backup); err != nil {
		return "", fmt.Errorf("backup %s: %w", dest, err)
	}
	return backup, nil
}

func copyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// snapshotEntry records one replaced file inside a backup snapshot.
type snapshotEntry struct {
	Path   string `yaml:"path"`
	Size   int64  `yaml:"size"`
	SHA256 string `yaml:"sha256"`
}

type snapshotManifest struct {
	RunID     uuid.UUID       `yaml:"run_id"`
	CreatedAt time.Time       `yaml:"created_at"`
	Files     []snapshotEntry `yaml:"files"`
}

const snapshotManifestName = "manifest.yaml"

// writeBackupSnapshot archives the pre-overwrite contents of the named
// files into one zstd-compressed tarball, with a manifest listing each
// file's digest. Files that disappeared between backup and archive are
// skipped.
func writeBackupSnapshot(archivePath string, runID uuid.UUID, backups map[string]string) error {
	if len(backups) == 0 {
		return errors.New("no backups to snapshot")
	}
	if err := os.MkdirAll(filepath.Dir(archivePath), 0o755); err != nil {
		return fmt.Errorf("create backup dir: %w", err)
	}

	out, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}
	defer out.Close()

	zw, err := zstd.NewWriter(out)
	if err != nil {
		return fmt.Errorf("init zstd writer: %w", err)
	}
	tw := tar.NewWriter(zw)

	manifest := snapshotManifest{RunID: runID, CreatedAt: time.Now().UTC().Truncate(time.Second)}
	type fileData struct {
		name string
		data []byte
	}
	var files []fileData
	for orig, backup := range backups {
		data, err := os.ReadFile(backup)
		if err != nil {
			continue
		}
		sum := sha256.Sum256(data)
		manifest.Files = append(manifest.Files, snapshotEntry{
			Path:   orig,
			Size:   int64(len(data)),
			SHA256: hex.EncodeToString(sum[:]),
		})
		// Entry names mirror the destination path so two replaced files
		// with the same basename cannot shadow each other on extraction.
		files = append(files, fileData{name: filepath.Join("files", strings.TrimLeft(orig, "/")), data: data})
	}

	manifestBytes, err := yaml.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("marshal snapshot manifest: %w", err)
	}
	if err := writeTarEntry(tw, snapshotManifestName, manifestBytes); err != nil {
		return err
	}
	for _, f := range files {
		if err := writeTarEntry(tw, f.name, f.data); err != nil {
			return err
		}
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("close tar: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("close zstd: %w", err)
	}
	return out.Close()
}

func writeTarEntry(tw *tar.Writer, name string, data []byte) error {
	hdr := &tar.Header{
		Name:    name,
		Mode:    0o644,
		Size:    int64(len(data)),
		ModTime: time.Now(),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("write tar header %s: %w", name, err)
	}
	if _, err := tw.Write(data); err != nil {
		return fmt.Errorf("write tar entry %s: %w", name, err)
	}
	return nil
}
