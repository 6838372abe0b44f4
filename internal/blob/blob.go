// Package blob stores receipt images. Backends live in blob/local and blob/gcs.
package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// MaxImageSize is the largest accepted receipt upload.
const MaxImageSize = 5 << 20

var (
	ErrNotFound   = errors.New("blob not found")
	ErrInvalidRef = errors.New("invalid blob reference")
	ErrTooLarge   = errors.New("file exceeds 5 MiB")
	ErrNotImage   = errors.New("file is not an image")
)

type Store interface {
	// Upload stores r under a fresh reference and returns it.
	Upload(ctx context.Context, name, contentType string, r io.Reader) (ref string, err error)
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
	// Delete removes the blob. A missing blob is not an error.
	Delete(ctx context.Context, ref string) error
	// URL is where clients fetch the blob.
	URL(ref string) string
}

var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"image/bmp":  ".bmp",
}

// Image is a validated upload held in memory.
type Image struct {
	Data        []byte
	ContentType string
}

// ReadImage reads at most MaxImageSize bytes from r and checks that the
// content sniffs as an image.
func ReadImage(r io.Reader) (Image, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxImageSize+1))
	if err != nil {
		return Image{}, fmt.Errorf("read upload: %w", err)
	}
	if len(data) > MaxImageSize {
		return Image{}, ErrTooLarge
	}
	ct := http.DetectContentType(data)
	if !strings.HasPrefix(ct, "image/") {
		return Image{}, fmt.Errorf("%w: %s", ErrNotImage, ct)
	}
	return Image{Data: data, ContentType: ct}, nil
}

// Reader returns a fresh reader over the image bytes.
func (i Image) Reader() io.Reader {
	return bytes.NewReader(i.Data)
}

// NewRef builds a unique object name keeping an extension that matches the
// content type.
func NewRef(contentType string) string {
	ext, ok := extensions[contentType]
	if !ok {
		if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
			ext = exts[0]
		}
	}
	return uuid.NewString() + ext
}

// ValidRef rejects references that could escape a storage root.
func ValidRef(ref string) error {
	if ref == "" || ref == "." || ref == ".." || strings.ContainsAny(ref, `/\`) || strings.Contains(ref, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}
	return nil
}
