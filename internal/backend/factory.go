package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"daisycash/internal/blob"
	"daisycash/internal/blob/gcs"
	"daisycash/internal/blob/local"
	"daisycash/internal/storage"
	"daisycash/internal/store"
	"daisycash/internal/store/memory"

	"google.golang.org/api/option"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	st, err := f.createStore(config)
	if err != nil {
		return nil, err
	}

	blobs, closeBlobs, err := f.createBlobStore(ctx, config)
	if err != nil {
		st.Close()
		return nil, err
	}

	return &BackendResult{
		Store: st,
		Blobs: blobs,
		Cleanup: func() error {
			return errors.Join(closeBlobs(), st.Close())
		},
	}, nil
}

func (f *DefaultFactory) createStore(config Config) (store.Store, error) {
	switch config.Type {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
		return repo, nil
	case MemoryBackend:
		var st *memory.Store
		if config.SeedDir != "" {
			st = memory.NewFromFiles(config.SeedDir)
		} else {
			st = memory.New(nil)
		}
		f.logger.Info("Initialized memory backend", "seed_dir", config.SeedDir)
		return st, nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createBlobStore(ctx context.Context, config Config) (blob.Store, func() error, error) {
	switch config.Blob {
	case LocalBlob:
		s, err := local.New(config.BlobDir, config.BlobBaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize local blob store: %w", err)
		}
		f.logger.Info("Initialized local blob store", "dir", config.BlobDir)
		return s, func() error { return nil }, nil
	case GCSBlob:
		s, err := gcs.New(ctx, config.GCSBucket, credentialOptions(config)...)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize GCS blob store: %w", err)
		}
		f.logger.Info("Initialized GCS blob store", "bucket", config.GCSBucket)
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported blob backend: %s", config.Blob)
	}
}

// credentialOptions prefers inline JSON over a key file. With neither, the
// client falls back to application default credentials.
func credentialOptions(config Config) []option.ClientOption {
	switch {
	case config.GoogleServiceAccountJSON != "":
		return []option.ClientOption{option.WithCredentialsJSON([]byte(config.GoogleServiceAccountJSON))}
	case config.GoogleServiceAccountFile != "":
		return []option.ClientOption{option.WithCredentialsFile(config.GoogleServiceAccountFile)}
	default:
		return nil
	}
}
