// Package gcs stores receipt images in a Google Cloud Storage bucket.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	"daisycash/internal/blob"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

const uploadTimeout = 2 * time.Minute

type Store struct {
	client *storage.Client
	bucket string
}

var _ blob.Store = (*Store)(nil)

// New connects with Application Default Credentials unless opts say otherwise.
func New(ctx context.Context, bucket string, opts ...option.ClientOption) (*Store, error) {
	if bucket == "" {
		return nil, errors.New("gcs bucket name is required")
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &Store{client: client, bucket: bucket}, nil
}

func (s *Store) Upload(ctx context.Context, name, contentType string, r io.Reader) (string, error) {
	ref := blob.NewRef(contentType)

	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(ref).NewWriter(ctx)
	w.ContentType = contentType
	w.Metadata = map[string]string{"original-name": name}

	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return "", fmt.Errorf("copy to GCS writer: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize upload: %w", err)
	}
	return ref, nil
}

func (s *Store) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	if err := blob.ValidRef(ref); err != nil {
		return nil, err
	}
	rc, err := s.client.Bucket(s.bucket).Object(ref).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, fmt.Errorf("%s: %w", ref, blob.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("open GCS object %s/%s: %w", s.bucket, ref, err)
	}
	return rc, nil
}

func (s *Store) Delete(ctx context.Context, ref string) error {
	if err := blob.ValidRef(ref); err != nil {
		return err
	}
	err := s.client.Bucket(s.bucket).Object(ref).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("delete GCS object %s/%s: %w", s.bucket, ref, err)
	}
	return nil
}

// URL is the public object URL. It resolves only when the bucket allows
// public reads; otherwise clients go through /files/{ref}.
func (s *Store) URL(ref string) string {
	return "https://storage.googleapis.com/" + s.bucket + "/" + url.PathEscape(ref)
}

func (s *Store) Close() error {
	return s.client.Close()
}
