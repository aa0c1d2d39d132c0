package element

import (
	"path"
	"regexp"
	"strings"

	"github.com/shelfd/shelfd/internal/fsmeta"
	"github.com/shelfd/shelfd/internal/pathcodec"
)

// tagSegment matches one bracketed tag segment in a basename, e.g. "[beach]".
var tagSegment = regexp.MustCompile(`\[([^\[\]]+)\]`)

// Element is one file-backed record, constructed transiently per request from
// normalized backend metadata. Content is only populated when the kind
// requires it and a content-loading operation ran.
type Element struct {
	Kind            Kind     `json:"kind"`
	Name            string   `json:"name"`
	Tags            []string `json:"tags"`
	Updated         int64    `json:"updated"`
	Size            int64    `json:"size"`
	Extension       string   `json:"extension"`
	CollectionToken string   `json:"collection"`
	Token           string   `json:"token"`
	Content         []byte   `json:"content,omitempty"`
	FileURL         string   `json:"file_url,omitempty"`
}

// Construct builds a typed element from normalized metadata. The basename is
// taken from meta.Path; name and ordered tags are parsed from its bracketed
// segments ("sunset [beach][2024].jpg" -> name "sunset", tags beach, 2024).
func Construct(kind Kind, meta fsmeta.Normalized, collectionToken string) Element {
	basename := path.Base(meta.Path)
	name, tags := parseBasename(basename)

	return Element{
		Kind:            kind,
		Name:            name,
		Tags:            tags,
		Updated:         meta.Timestamp,
		Size:            meta.Size,
		Extension:       extensionOf(basename),
		CollectionToken: collectionToken,
		Token:           pathcodec.Encode(basename),
	}
}

// Basename reconstructs the element's current stored basename from its token.
// Falls back to re-serializing name/tags/extension if the token is absent.
func (e *Element) Basename() string {
	if e.Token != "" {
		if raw, err := pathcodec.Decode(e.Token); err == nil {
			return raw
		}
	}
	return buildBasename(e.Name, e.Tags, e.Extension)
}

// URL returns the stored link target for link elements, empty otherwise.
func (e *Element) URL() string {
	if e.Kind != KindLink {
		return ""
	}
	return strings.TrimSpace(string(e.Content))
}

// Edit returns a mutable view of the element's renameable attributes.
func (e *Element) Edit() *Editable {
	tags := make([]string, len(e.Tags))
	copy(tags, e.Tags)
	return &Editable{
		Name:      e.Name,
		Tags:      tags,
		extension: e.Extension,
	}
}

// Editable is the mutable view handed to batch-rename transforms. Name and
// Tags may be changed freely; the extension is fixed because it determines
// the kind.
type Editable struct {
	Name string
	Tags []string

	extension string
}

// DropTag removes every occurrence of tag, preserving the order of the rest.
func (ed *Editable) DropTag(tag string) {
	kept := ed.Tags[:0]
	for _, t := range ed.Tags {
		if t != tag {
			kept = append(kept, t)
		}
	}
	ed.Tags = kept
}

// AddTag appends tag unless already present.
func (ed *Editable) AddTag(tag string) {
	for _, t := range ed.Tags {
		if t == tag {
			return
		}
	}
	ed.Tags = append(ed.Tags, tag)
}

// Basename serializes the edited attributes back into a stored basename.
func (ed *Editable) Basename() string {
	return buildBasename(ed.Name, ed.Tags, ed.extension)
}

// parseBasename splits a stored basename into display name and ordered tags.
// The extension is stripped first; bracketed segments anywhere in the
// remainder become tags, and the rest (whitespace-collapsed) is the name.
func parseBasename(basename string) (string, []string) {
	stem := strings.TrimSuffix(basename, path.Ext(basename))

	var tags []string
	for _, m := range tagSegment.FindAllStringSubmatch(stem, -1) {
		tags = append(tags, m[1])
	}

	name := tagSegment.ReplaceAllString(stem, "")
	name = strings.Join(strings.Fields(name), " ")

	return name, tags
}

// buildBasename is the inverse of parseBasename.
func buildBasename(name string, tags []string, extension string) string {
	var b strings.Builder
	b.WriteString(name)
	for _, tag := range tags {
		b.WriteString(" [")
		b.WriteString(tag)
		b.WriteString("]")
	}
	if extension != "" {
		b.WriteString(".")
		b.WriteString(extension)
	}
	return b.String()
}
