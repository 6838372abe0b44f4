package local

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"daisycash/internal/blob"
)

func TestUploadOpenRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "blobs")
	s, err := New(dir, "/files")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ref, err := s.Upload(context.Background(), "receipt.png", "image/png", strings.NewReader("payload"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if !strings.HasSuffix(ref, ".png") {
		t.Fatalf("expected .png ref, got %s", ref)
	}
	if got := s.URL(ref); got != "/files/"+ref {
		t.Fatalf("unexpected url %s", got)
	}

	rc, err := s.Open(context.Background(), ref)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if !bytes.Equal(data, []byte("payload")) {
		t.Fatalf("unexpected content %q", data)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("temp files left behind: %v", entries)
	}
}

func TestOpenRejectsBadRefs(t *testing.T) {
	s, _ := New(t.TempDir(), "/files")
	for _, ref := range []string{"", "..", "../etc/passwd", `a\b`, "x/y"} {
		if _, err := s.Open(context.Background(), ref); !errors.Is(err, blob.ErrInvalidRef) {
			t.Fatalf("%q: expected ErrInvalidRef, got %v", ref, err)
		}
	}
	if _, err := s.Open(context.Background(), "missing.png"); !errors.Is(err, blob.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, _ := New(dir, "/files")
	ref, err := s.Upload(ctx, "r.png", "image/png", strings.NewReader("payload"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if err := s.Delete(ctx, ref); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Open(ctx, ref); !errors.Is(err, blob.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := s.Delete(ctx, ref); err != nil {
		t.Fatalf("second delete should be a no-op, got %v", err)
	}
	if err := s.Delete(ctx, "../x"); !errors.Is(err, blob.ErrInvalidRef) {
		t.Fatalf("expected ErrInvalidRef, got %v", err)
	}
}
