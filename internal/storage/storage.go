// Package storage persists per-job files: the uploaded sources while a
// request is being processed and the derived artifacts served by the
// download endpoint. It defines the Store interface (port) for
// hexagonal architecture and implementations for local disk and
// S3-backed delivery.
package storage

import (
	"context"
	"errors"
	"io"
)

var (
	// ErrNotFound is returned when a job or file does not exist.
	ErrNotFound = errors.New("file not found")

	// ErrInvalidName is returned for empty or path-escaping names.
	ErrInvalidName = errors.New("invalid name")

	// ErrS3NotConfigured is returned when S3 operations are attempted
	// without proper configuration.
	ErrS3NotConfigured = errors.New("S3 storage is not configured")
)

// Artifact describes one file stored under a job.
type Artifact struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// Store defines the interface for per-job file storage.
// Implementations must keep every job in its own directory and
// optionally support S3 uploads for final video delivery.
type Store interface {
	// CreateJob creates the directory for a job and returns its path.
	// Creating an existing job is not an error.
	CreateJob(ctx context.Context, jobID string) (dir string, err error)

	// SaveFile writes data under the job and returns the file path.
	// The name is reduced to its base component first.
	SaveFile(ctx context.Context, jobID, name string, data io.Reader) (path string, err error)

	// FilePath resolves a stored file, returning ErrNotFound when the
	// job or file does not exist.
	FilePath(jobID, name string) (string, error)

	// List returns the files stored under a job, sorted by name.
	List(ctx context.Context, jobID string) ([]Artifact, error)

	// RemoveFile deletes one file under a job.
	// Missing files are not an error.
	RemoveFile(ctx context.Context, jobID, name string) error

	// RemoveJob deletes a job directory and everything in it.
	RemoveJob(ctx context.Context, jobID string) error

	// UploadToS3 uploads data to S3 and returns the public URL.
	// Returns ErrS3NotConfigured if S3 is not configured.
	UploadToS3(ctx context.Context, key string, data io.Reader) (url string, err error)
}
