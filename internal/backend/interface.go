package backend

import (
	"context"

	"daisycash/internal/blob"
	"daisycash/internal/store"
)

// CleanupFunc releases resources held by a backend.
type CleanupFunc func() error

// BackendResult bundles the record store and the receipt store selected by
// configuration.
type BackendResult struct {
	Store   store.Store
	Blobs   blob.Store
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Memory specific. Empty SeedDir uses the built-in categories.
	SeedDir string

	Blob BlobType

	// Local blob store
	BlobDir     string
	BlobBaseURL string

	// GCS blob store
	GCSBucket                string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
}

// BackendType selects the record store.
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

// BlobType selects where receipt images live.
type BlobType string

const (
	LocalBlob BlobType = "local"
	GCSBlob   BlobType = "gcs"
)

func (bt BlobType) IsValid() bool {
	return bt == LocalBlob || bt == GCSBlob
}
