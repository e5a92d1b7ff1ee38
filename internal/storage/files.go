package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/opsdesk/opsdesk/internal/config"
	"github.com/opsdesk/opsdesk/models"
)

// Store writes attachment files under a single upload directory. Metadata
// lives in the attachments table; the store only handles bytes.
type Store struct {
	dir      string
	maxBytes int64
}

// New creates a Store rooted at cfg.UploadDir.
func New(cfg config.StorageConfig) (*Store, error) {
	if cfg.UploadDir == "" {
		return nil, fmt.Errorf("storage.upload_dir is not configured")
	}
	if err := os.MkdirAll(cfg.UploadDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating upload directory: %w", err)
	}
	maxMB := cfg.MaxUploadMB
	if maxMB <= 0 {
		maxMB = 16
	}
	return &Store{dir: cfg.UploadDir, maxBytes: int64(maxMB) << 20}, nil
}

// MaxBytes returns the per-file upload cap.
func (s *Store) MaxBytes() int64 { return s.maxBytes }

// Save streams r to disk under a random name that keeps the original
// extension. Returns the stored path (relative to the upload dir) and the
// number of bytes written.
func (s *Store) Save(filename string, r io.Reader) (string, int64, error) {
	name := models.NewID() + sanitizeExt(filename)
	dest, err := safeJoin(s.dir, name)
	if err != nil {
		return "", 0, err
	}

	f, err := os.OpenFile(dest, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return "", 0, fmt.Errorf("creating upload file: %w", err)
	}
	defer f.Close()

	n, err := io.Copy(f, io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		os.Remove(dest)
		return "", 0, fmt.Errorf("writing upload: %w", err)
	}
	if n > s.maxBytes {
		os.Remove(dest)
		return "", 0, fmt.Errorf("upload exceeds %d bytes", s.maxBytes)
	}
	return name, n, nil
}

// Open returns a reader for a previously stored file.
func (s *Store) Open(storedName string) (*os.File, error) {
	path, err := safeJoin(s.dir, storedName)
	if err != nil {
		return nil, err
	}
	return os.Open(path)
}

// Remove deletes a stored file. Missing files are not an error.
func (s *Store) Remove(storedName string) error {
	path, err := safeJoin(s.dir, storedName)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// safeJoin resolves name inside baseDir and rejects anything that would
// escape it (directory traversal).
func safeJoin(baseDir, name string) (string, error) {
	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return "", fmt.Errorf("resolving upload directory: %w", err)
	}
	dest, err := filepath.Abs(filepath.Join(baseDir, name))
	if err != nil {
		return "", fmt.Errorf("invalid filename: %w", err)
	}
	if !strings.HasPrefix(dest, absBase+string(filepath.Separator)) {
		return "", fmt.Errorf("filename would escape upload directory")
	}
	return dest, nil
}

// sanitizeExt keeps a short, harmless extension from the client filename.
func sanitizeExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	if len(ext) > 10 || strings.ContainsAny(ext, "/\\") {
		return ""
	}
	return ext
}
