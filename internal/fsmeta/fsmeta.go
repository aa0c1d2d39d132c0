// Package fsmeta defines the canonical metadata shape shared by all storage
// adapters and the normalizer that produces it from backend-raw entries.
package fsmeta

import (
	"errors"
	"fmt"
	"mime"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// EntryType classifies a backend entry.
type EntryType string

const (
	TypeFile EntryType = "file"
	TypeDir  EntryType = "dir"
)

// ErrMalformedMetadata is returned when a backend entry cannot be normalized.
var ErrMalformedMetadata = errors.New("fsmeta: malformed backend metadata")

// Raw is what adapters report for an entry. Backends differ in what they can
// provide; absent fields are zero and filled with defaults by Standardize.
type Raw struct {
	Path      string
	Type      string // "file", "dir", or "" (assumed file)
	Timestamp int64  // unix seconds; 0 if the backend has no mtime
	Size      int64
	Mimetype  string // "" if the backend has no content-type
}

// Normalized is the canonical metadata shape consumed by the rest of the
// system.
type Normalized struct {
	Path      string
	Type      EntryType
	Timestamp int64
	Size      int64
	Mimetype  string
}

// Standardize converts raw backend metadata into the canonical shape. When
// pathOverride is non-empty it replaces the raw path (used when the caller
// addressed the entry itself and the backend reported no path). Pure, no I/O.
func Standardize(raw Raw, pathOverride string) (Normalized, error) {
	p := raw.Path
	if pathOverride != "" {
		p = pathOverride
	}

	var typ EntryType
	switch raw.Type {
	case "file", "":
		typ = TypeFile
	case "dir", "directory":
		typ = TypeDir
	default:
		return Normalized{}, fmt.Errorf("%w: unknown entry type %q", ErrMalformedMetadata, raw.Type)
	}

	if raw.Size < 0 {
		return Normalized{}, fmt.Errorf("%w: negative size %d", ErrMalformedMetadata, raw.Size)
	}

	mt := raw.Mimetype
	if mt == "" {
		mt = TypeByPath(p)
	}

	return Normalized{
		Path:      p,
		Type:      typ,
		Timestamp: raw.Timestamp,
		Size:      raw.Size,
		Mimetype:  mt,
	}, nil
}

// TypeByPath infers a mimetype from a path's extension, falling back to
// application/octet-stream.
func TypeByPath(p string) string {
	mt := mime.TypeByExtension(path.Ext(p))
	if mt == "" {
		return "application/octet-stream"
	}
	// Strip parameters such as "; charset=utf-8" for a stable canonical form.
	if idx := strings.IndexByte(mt, ';'); idx > 0 {
		mt = strings.TrimSpace(mt[:idx])
	}
	return mt
}

// DetectContent sniffs a mimetype from content bytes. Used as a fallback when
// the extension lookup is inconclusive.
func DetectContent(content []byte) string {
	return mimetype.Detect(content).String()
}
