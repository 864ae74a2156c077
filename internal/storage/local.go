package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LocalStore implements the Store interface using local disk.
// Every job gets its own directory under a configurable root.
type LocalStore struct {
	root string
}

// NewLocalStore creates a new LocalStore instance.
// The root parameter specifies where job directories are created.
// If root is empty, a directory under os.TempDir() is used.
// The directory is created if it doesn't exist.
func NewLocalStore(root string) (*LocalStore, error) {
	if root == "" {
		root = filepath.Join(os.TempDir(), "flashcut")
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}

	if err := os.MkdirAll(abs, 0750); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}

	return &LocalStore{root: abs}, nil
}

// Root returns the storage root path.
func (s *LocalStore) Root() string {
	return s.root
}

// CreateJob creates the directory for a job and returns its path.
func (s *LocalStore) CreateJob(ctx context.Context, jobID string) (string, error) {
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	id, err := cleanJobID(jobID)
	if err != nil {
		return "", err
	}

	dir := filepath.Join(s.root, id)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("create job directory: %w", err)
	}

	return dir, nil
}

// SaveFile writes data under the job directory and returns the file path.
// The name is reduced to its base component before use.
func (s *LocalStore) SaveFile(ctx context.Context, jobID, name string, data io.Reader) (string, error) {
	dir, err := s.CreateJob(ctx, jobID)
	if err != nil {
		return "", err
	}

	base, err := cleanFileName(name)
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, base)
	f, err := os.Create(path) // #nosec G304 - path is built from sanitized components under the store root
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}

	if _, err := io.Copy(f, data); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("write file: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("close file: %w", err)
	}

	return path, nil
}

// FilePath resolves a stored file, returning ErrNotFound when the job
// or file does not exist. Directories are never resolved.
func (s *LocalStore) FilePath(jobID, name string) (string, error) {
	id, err := cleanJobID(jobID)
	if err != nil {
		return "", err
	}

	base, err := cleanFileName(name)
	if err != nil {
		return "", err
	}

	path := filepath.Join(s.root, id, base)
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("stat file: %w", err)
	}
	if info.IsDir() {
		return "", ErrNotFound
	}

	return path, nil
}

// List returns the files stored under a job, sorted by name.
// Subdirectories are skipped.
func (s *LocalStore) List(ctx context.Context, jobID string) ([]Artifact, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	id, err := cleanJobID(jobID)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(filepath.Join(s.root, id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read job directory: %w", err)
	}

	artifacts := make([]Artifact, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		artifacts = append(artifacts, Artifact{Name: entry.Name(), Size: info.Size()})
	}

	sort.Slice(artifacts, func(i, j int) bool {
		return artifacts[i].Name < artifacts[j].Name
	})

	return artifacts, nil
}

// RemoveFile deletes one file under a job. Missing files are not an error.
func (s *LocalStore) RemoveFile(ctx context.Context, jobID, name string) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	id, err := cleanJobID(jobID)
	if err != nil {
		return err
	}

	base, err := cleanFileName(name)
	if err != nil {
		return err
	}

	if err := os.Remove(filepath.Join(s.root, id, base)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove file %s: %w", base, err)
	}

	return nil
}

// RemoveJob deletes a job directory and everything in it.
func (s *LocalStore) RemoveJob(ctx context.Context, jobID string) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	id, err := cleanJobID(jobID)
	if err != nil {
		return err
	}

	if err := os.RemoveAll(filepath.Join(s.root, id)); err != nil {
		return fmt.Errorf("remove job directory: %w", err)
	}

	return nil
}

// UploadToS3 is not supported by LocalStore and returns ErrS3NotConfigured.
func (s *LocalStore) UploadToS3(_ context.Context, _ string, _ io.Reader) (string, error) {
	return "", ErrS3NotConfigured
}

// cleanJobID rejects job IDs that are empty or could escape the root.
func cleanJobID(id string) (string, error) {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, id)
	}
	return id, nil
}

// cleanFileName reduces a name to its base component and rejects the
// values Base cannot make safe. Backslashes are treated as separators
// so Windows-style upload names cannot smuggle a path.
func cleanFileName(name string) (string, error) {
	base := filepath.Base(strings.ReplaceAll(name, `\`, `/`))
	if base == "" || base == "." || base == ".." || base == "/" {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return base, nil
}
