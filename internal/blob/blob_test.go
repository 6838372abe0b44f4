package blob

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

// 1x1 transparent PNG
var pngPixel = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89,
}

func TestReadImage(t *testing.T) {
	img, err := ReadImage(bytes.NewReader(pngPixel))
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if img.ContentType != "image/png" {
		t.Fatalf("unexpected content type %s", img.ContentType)
	}

	if _, err := ReadImage(strings.NewReader("plain text")); !errors.Is(err, ErrNotImage) {
		t.Fatalf("expected ErrNotImage, got %v", err)
	}

	big := append(append([]byte{}, pngPixel...), make([]byte, MaxImageSize)...)
	if _, err := ReadImage(bytes.NewReader(big)); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
}

func TestNewRefAndValidRef(t *testing.T) {
	ref := NewRef("image/jpeg")
	if !strings.HasSuffix(ref, ".jpg") {
		t.Fatalf("unexpected ref %s", ref)
	}
	if err := ValidRef(ref); err != nil {
		t.Fatalf("generated ref rejected: %v", err)
	}
	for _, bad := range []string{"", "..", "a/b", `a\b`, "..x"} {
		if err := ValidRef(bad); !errors.Is(err, ErrInvalidRef) {
			t.Fatalf("%q: expected ErrInvalidRef", bad)
		}
	}
}
