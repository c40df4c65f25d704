package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"exam-backend/internal/shared/storage/object"
	"exam-backend/internal/shared/util"
)

// Store implements object.Store on the local filesystem.
//
// Layout:
//
//	<base>/uploads/<jobID>/input.pdf
//	<base>/outputs/<jobID>/<fileName>
type Store struct {
	baseDir string
}

// New creates a local store rooted at baseDir.
func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

var _ object.Store = (*Store)(nil)

// SaveUpload writes the source PDF for a job, enforcing maxBytes when positive.
func (s *Store) SaveUpload(ctx context.Context, jobID string, r io.Reader, maxBytes int64) (string, int64, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}
	if err := validateJobID(jobID); err != nil {
		return "", 0, err
	}

	dirPath := filepath.Join(s.baseDir, "uploads", jobID)
	if err := os.MkdirAll(dirPath, 0o755); err != nil {
		return "", 0, fmt.Errorf("mkdir: %w", err)
	}

	fullPath := filepath.Join(dirPath, "input.pdf")
	f, err := os.OpenFile(fullPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return "", 0, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	src := r
	if maxBytes > 0 {
		src = io.LimitReader(r, maxBytes+1)
	}
	size, err := io.Copy(f, src)
	if err != nil {
		os.Remove(fullPath)
		return "", 0, fmt.Errorf("write body: %w", err)
	}
	if maxBytes > 0 && size > maxBytes {
		os.Remove(fullPath)
		return "", 0, object.ErrTooLarge
	}

	return filepath.Join("uploads", jobID, "input.pdf"), size, nil
}

// SaveOutput writes a generated artifact for a job.
func (s *Store) SaveOutput(ctx context.Context, jobID string, fileName string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := validateJobID(jobID); err != nil {
		return "", err
	}
	sanitized, err := util.SanitizeFileName(fileName)
	if err != nil {
		return "", fmt.Errorf("sanitize file name: %w", err)
	}

	dirPath := filepath.Join(s.baseDir, "outputs", jobID)
	if err := os.MkdirAll(dirPath, 0o755); err != nil {
		return "", fmt.Errorf("mkdir: %w", err)
	}

	fullPath := filepath.Join(dirPath, sanitized)
	f, err := os.OpenFile(fullPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return "", fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(fullPath)
		return "", fmt.Errorf("write body: %w", err)
	}

	return filepath.Join("outputs", jobID, sanitized), nil
}

// Open opens a stored file for reading.
func (s *Store) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	full, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	return os.Open(full)
}

// Exists reports whether a stored file is still present.
func (s *Store) Exists(path string) bool {
	full, err := s.resolve(path)
	if err != nil {
		return false
	}
	info, err := os.Stat(full)
	return err == nil && !info.IsDir()
}

// ReleaseJob removes the upload and output directories for a job.
func (s *Store) ReleaseJob(jobID string) error {
	if err := validateJobID(jobID); err != nil {
		return err
	}
	var firstErr error
	for _, sub := range []string{"uploads", "outputs"} {
		dir := filepath.Join(s.baseDir, sub, jobID)
		if err := os.RemoveAll(dir); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("remove %s: %w", dir, err)
		}
	}
	return firstErr
}

// FullPath resolves a storage path to an absolute filesystem path.
func (s *Store) FullPath(path string) (string, error) {
	return s.resolve(path)
}

func (s *Store) resolve(path string) (string, error) {
	clean := filepath.Clean(path)
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid storage path")
	}
	return filepath.Join(s.baseDir, clean), nil
}

func validateJobID(jobID string) error {
	if jobID == "" || strings.ContainsAny(jobID, `/\`) || strings.Contains(jobID, "..") {
		return fmt.Errorf("invalid job id")
	}
	return nil
}
