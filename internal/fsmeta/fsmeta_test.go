package fsmeta

import (
	"errors"
	"testing"
)

func TestStandardizeFillsDefaults(t *testing.T) {
	got, err := Standardize(Raw{Size: 42}, "/albums/trip/photo.jpg")
	if err != nil {
		t.Fatal(err)
	}
	if got.Type != TypeFile {
		t.Errorf("expected file type default, got %s", got.Type)
	}
	if got.Path != "/albums/trip/photo.jpg" {
		t.Errorf("expected path override, got %s", got.Path)
	}
	if got.Mimetype != "image/jpeg" {
		t.Errorf("expected inferred image/jpeg, got %s", got.Mimetype)
	}
	if got.Size != 42 {
		t.Errorf("expected size 42, got %d", got.Size)
	}
}

func TestStandardizeKeepsBackendMimetype(t *testing.T) {
	got, err := Standardize(Raw{Path: "/a.jpg", Mimetype: "image/pjpeg"}, "")
	if err != nil {
		t.Fatal(err)
	}
	if got.Mimetype != "image/pjpeg" {
		t.Errorf("backend mimetype should win, got %s", got.Mimetype)
	}
}

func TestStandardizeDirectory(t *testing.T) {
	for _, marker := range []string{"dir", "directory"} {
		got, err := Standardize(Raw{Path: "/albums", Type: marker}, "")
		if err != nil {
			t.Fatal(err)
		}
		if got.Type != TypeDir {
			t.Errorf("marker %q: expected dir, got %s", marker, got.Type)
		}
	}
}

func TestStandardizeUnknownExtension(t *testing.T) {
	got, err := Standardize(Raw{Path: "/blob.xyzzy"}, "")
	if err != nil {
		t.Fatal(err)
	}
	if got.Mimetype != "application/octet-stream" {
		t.Errorf("expected octet-stream fallback, got %s", got.Mimetype)
	}
}

func TestStandardizeMalformed(t *testing.T) {
	if _, err := Standardize(Raw{Path: "/a", Type: "symlink"}, ""); !errors.Is(err, ErrMalformedMetadata) {
		t.Errorf("unknown type marker: expected ErrMalformedMetadata, got %v", err)
	}
	if _, err := Standardize(Raw{Path: "/a", Size: -1}, ""); !errors.Is(err, ErrMalformedMetadata) {
		t.Errorf("negative size: expected ErrMalformedMetadata, got %v", err)
	}
}

func TestDetectContent(t *testing.T) {
	// PNG magic bytes
	png := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}
	if got := DetectContent(png); got != "image/png" {
		t.Errorf("expected image/png, got %s", got)
	}
}
