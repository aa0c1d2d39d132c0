package element

import (
	"errors"
	"testing"

	"github.com/shelfd/shelfd/internal/fsmeta"
	"github.com/shelfd/shelfd/internal/pathcodec"
)

func TestResolveKind(t *testing.T) {
	cases := []struct {
		in   string
		want Kind
	}{
		{"jpg", KindImage},
		{".PNG", KindImage},
		{"photo.jpeg", KindImage},
		{"notes.md", KindDocument},
		{"bookmark.url", KindLink},
		{"report.pdf", KindGeneric},
		{"archive.tar.gz", ""},
		{"mystery.xyzzy", ""},
		{"noextension", ""},
	}

	for _, c := range cases {
		kind, err := ResolveKind(c.in)
		if c.want == "" {
			if !errors.Is(err, ErrUnsupportedType) {
				t.Errorf("ResolveKind(%q): expected ErrUnsupportedType, got %v", c.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ResolveKind(%q): %v", c.in, err)
			continue
		}
		if kind != c.want {
			t.Errorf("ResolveKind(%q) = %s, want %s", c.in, kind, c.want)
		}
	}
}

func TestEveryExtensionClaimedOnce(t *testing.T) {
	seen := make(map[string]Kind)
	for _, kind := range []Kind{KindImage, KindDocument, KindLink, KindGeneric} {
		for _, ext := range kind.Extensions() {
			if prev, ok := seen[ext]; ok {
				t.Errorf("extension %q claimed by both %s and %s", ext, prev, kind)
			}
			seen[ext] = kind
		}
	}
}

func TestShouldLoadContent(t *testing.T) {
	if KindImage.ShouldLoadContent() {
		t.Error("image kind should not require content loads")
	}
	if !KindDocument.ShouldLoadContent() {
		t.Error("document kind should require content loads")
	}
	if !KindLink.ShouldLoadContent() {
		t.Error("link kind should require content loads")
	}
	if KindGeneric.ShouldLoadContent() {
		t.Error("generic kind should not require content loads")
	}
}

func TestConstructParsesNameAndTags(t *testing.T) {
	meta := fsmeta.Normalized{
		Path:      "/albums/trip/sunset [beach] [2024].jpg",
		Type:      fsmeta.TypeFile,
		Timestamp: 1700000000,
		Size:      1234,
	}
	colToken := pathcodec.Encode("/albums/trip")

	el := Construct(KindImage, meta, colToken)

	if el.Name != "sunset" {
		t.Errorf("name: got %q", el.Name)
	}
	if len(el.Tags) != 2 || el.Tags[0] != "beach" || el.Tags[1] != "2024" {
		t.Errorf("tags: got %v", el.Tags)
	}
	if el.Extension != "jpg" {
		t.Errorf("extension: got %q", el.Extension)
	}
	if el.Updated != 1700000000 || el.Size != 1234 {
		t.Errorf("metadata: got updated=%d size=%d", el.Updated, el.Size)
	}
	if el.CollectionToken != colToken {
		t.Errorf("collection token: got %q", el.CollectionToken)
	}

	basename, err := pathcodec.Decode(el.Token)
	if err != nil {
		t.Fatal(err)
	}
	if basename != "sunset [beach] [2024].jpg" {
		t.Errorf("token decodes to %q", basename)
	}
}

func TestConstructNoTags(t *testing.T) {
	el := Construct(KindDocument, fsmeta.Normalized{Path: "/notes/todo.md"}, "")
	if el.Name != "todo" {
		t.Errorf("name: got %q", el.Name)
	}
	if len(el.Tags) != 0 {
		t.Errorf("tags: got %v", el.Tags)
	}
}

func TestEditBasenameRoundTrip(t *testing.T) {
	el := Construct(KindImage, fsmeta.Normalized{Path: "/a/sunset [beach] [2024].jpg"}, "")

	ed := el.Edit()
	if got := ed.Basename(); got != "sunset [beach] [2024].jpg" {
		t.Errorf("unedited basename: got %q", got)
	}

	ed.DropTag("beach")
	if got := ed.Basename(); got != "sunset [2024].jpg" {
		t.Errorf("after DropTag: got %q", got)
	}

	ed.AddTag("golden hour")
	ed.AddTag("golden hour") // duplicate ignored
	if got := ed.Basename(); got != "sunset [2024] [golden hour].jpg" {
		t.Errorf("after AddTag: got %q", got)
	}

	ed.Name = "dusk"
	if got := ed.Basename(); got != "dusk [2024] [golden hour].jpg" {
		t.Errorf("after rename: got %q", got)
	}
}

func TestEditDoesNotAliasElement(t *testing.T) {
	el := Construct(KindImage, fsmeta.Normalized{Path: "/a/x [t].jpg"}, "")
	ed := el.Edit()
	ed.DropTag("t")
	if len(el.Tags) != 1 {
		t.Error("editing the view mutated the element")
	}
}

func TestLinkURL(t *testing.T) {
	el := Construct(KindLink, fsmeta.Normalized{Path: "/links/docs.url"}, "")
	el.Content = []byte("https://example.com/docs\n")
	if got := el.URL(); got != "https://example.com/docs" {
		t.Errorf("URL: got %q", got)
	}

	img := Construct(KindImage, fsmeta.Normalized{Path: "/a/b.jpg"}, "")
	img.Content = []byte("https://example.com")
	if img.URL() != "" {
		t.Error("non-link kinds must not expose a URL")
	}
}
