package backend

import (
	"fmt"

	"daisycash/internal/config"
)

// FilesPath is the URL prefix under which the HTTP server serves local blobs.
const FilesPath = "/files"

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	return Config{
		Type:         backendType,
		SQLiteDBPath: appConfig.SQLiteDBPath,
		SeedDir:      appConfig.SeedDir,

		Blob:        BlobType(appConfig.BlobBackend),
		BlobDir:     appConfig.BlobDir,
		BlobBaseURL: FilesPath,

		GCSBucket:                appConfig.GCSBucket,
		GoogleServiceAccountJSON: appConfig.GoogleServiceAccountJSON,
		GoogleServiceAccountFile: appConfig.GoogleServiceAccountFile,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}
	if c.Type == SQLiteBackend && c.SQLiteDBPath == "" {
		return fmt.Errorf("SQLite database path is required for sqlite backend")
	}

	switch c.Blob {
	case LocalBlob:
		if c.BlobDir == "" {
			return fmt.Errorf("blob directory is required for local blob backend")
		}
	case GCSBlob:
		if c.GCSBucket == "" {
			return fmt.Errorf("bucket is required for gcs blob backend")
		}
	default:
		return fmt.Errorf("invalid blob backend: %s", c.Blob)
	}
	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{SQLiteBackend, MemoryBackend}
}
