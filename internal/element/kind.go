// Package element implements the typed element model: a closed set of kinds
// resolved by file extension, element construction from normalized backend
// metadata, and the filename grammar that carries display name and tags.
package element

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

// Kind is the closed category an element belongs to.
type Kind string

const (
	KindImage    Kind = "image"
	KindDocument Kind = "document"
	KindLink     Kind = "link"
	KindGeneric  Kind = "generic"
)

// ErrUnsupportedType is returned when no kind claims an extension.
var ErrUnsupportedType = errors.New("element: unsupported element type")

// behavior is the per-kind capability table.
type behavior struct {
	extensions  []string
	loadContent bool
}

var behaviors = map[Kind]behavior{
	KindImage: {
		extensions: []string{"jpg", "jpeg", "png", "gif", "webp", "bmp"},
	},
	KindDocument: {
		extensions:  []string{"txt", "md", "markdown"},
		loadContent: true,
	},
	KindLink: {
		// A link element stores a URL as its content rather than file bytes.
		extensions:  []string{"url", "link", "webloc"},
		loadContent: true,
	},
	KindGeneric: {
		extensions: []string{"pdf", "zip", "csv", "json", "mp3", "mp4"},
	},
}

// extToKind maps each claimed extension to exactly one kind.
var extToKind = func() map[string]Kind {
	m := make(map[string]Kind)
	for kind, b := range behaviors {
		for _, ext := range b.extensions {
			if prev, ok := m[ext]; ok {
				panic(fmt.Sprintf("extension %q claimed by both %s and %s", ext, prev, kind))
			}
			m[ext] = kind
		}
	}
	return m
}()

// ResolveKind returns the kind claiming the extension of basenameOrExt.
// Accepts a bare extension ("jpg"), a dotted one (".jpg") or a full basename
// ("photo.jpg").
func ResolveKind(basenameOrExt string) (Kind, error) {
	ext := extensionOf(basenameOrExt)
	if kind, ok := extToKind[ext]; ok {
		return kind, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedType, basenameOrExt)
}

// Extensions returns the extensions the kind claims.
func (k Kind) Extensions() []string {
	exts := behaviors[k].extensions
	out := make([]string, len(exts))
	copy(out, exts)
	return out
}

// ShouldLoadContent reports whether reads of this kind must load content.
func (k Kind) ShouldLoadContent() bool {
	return behaviors[k].loadContent
}

// extensionOf normalizes any of the accepted ResolveKind argument forms to a
// bare lowercase extension.
func extensionOf(s string) string {
	if ext := path.Ext(s); ext != "" {
		s = ext
	}
	return strings.ToLower(strings.TrimPrefix(s, "."))
}
