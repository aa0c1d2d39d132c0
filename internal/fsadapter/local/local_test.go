package local

import (
	"context"
	"errors"
	"testing"

	"github.com/shelfd/shelfd/internal/fsadapter"
)

func newTestAdapter(t *testing.T) *Adapter {
	t.Helper()
	a, err := New(Config{RootPath: t.TempDir(), CreateDirs: true})
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func TestWriteReadMetadata(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	if err := a.Write(ctx, "/albums/trip/photo.jpg", []byte("0123456789")); err != nil {
		t.Fatal(err)
	}

	content, err := a.Read(ctx, "/albums/trip/photo.jpg")
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "0123456789" {
		t.Errorf("read back %q", content)
	}

	meta, err := a.Metadata(ctx, "/albums/trip/photo.jpg")
	if err != nil {
		t.Fatal(err)
	}
	if meta.Size != 10 {
		t.Errorf("size: got %d", meta.Size)
	}
	if meta.Type != "file" {
		t.Errorf("type: got %q", meta.Type)
	}
	if meta.Timestamp == 0 {
		t.Error("expected non-zero timestamp")
	}
}

func TestWriteRefusesExisting(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	if err := a.Write(ctx, "/a.txt", []byte("one")); err != nil {
		t.Fatal(err)
	}
	if err := a.Write(ctx, "/a.txt", []byte("two")); !errors.Is(err, fsadapter.ErrExists) {
		t.Errorf("expected ErrExists, got %v", err)
	}
}

func TestUpdateRequiresExisting(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	if err := a.Update(ctx, "/missing.txt", []byte("x")); !errors.Is(err, fsadapter.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if err := a.Write(ctx, "/a.txt", []byte("one")); err != nil {
		t.Fatal(err)
	}
	if err := a.Update(ctx, "/a.txt", []byte("two")); err != nil {
		t.Fatal(err)
	}
	content, _ := a.Read(ctx, "/a.txt")
	if string(content) != "two" {
		t.Errorf("after update: %q", content)
	}
}

func TestList(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	a.Write(ctx, "/col/one.txt", []byte("1"))
	a.Write(ctx, "/col/two.txt", []byte("22"))
	a.Write(ctx, "/col/sub/three.txt", []byte("333"))

	metas, err := a.List(ctx, "/col")
	if err != nil {
		t.Fatal(err)
	}
	if len(metas) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(metas))
	}

	files, dirs := 0, 0
	for _, m := range metas {
		switch m.Type {
		case "file":
			files++
		case "dir":
			dirs++
		}
	}
	if files != 2 || dirs != 1 {
		t.Errorf("expected 2 files + 1 dir, got %d files %d dirs", files, dirs)
	}
}

func TestListMissingDir(t *testing.T) {
	a := newTestAdapter(t)
	if _, err := a.List(context.Background(), "/nope"); !errors.Is(err, fsadapter.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRename(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	a.Write(ctx, "/col/old.txt", []byte("x"))
	a.Write(ctx, "/col/taken.txt", []byte("y"))

	if err := a.Rename(ctx, "/col/old.txt", "/col/taken.txt"); !errors.Is(err, fsadapter.ErrExists) {
		t.Errorf("rename onto existing: expected ErrExists, got %v", err)
	}
	if err := a.Rename(ctx, "/col/missing.txt", "/col/new.txt"); !errors.Is(err, fsadapter.ErrNotFound) {
		t.Errorf("rename missing: expected ErrNotFound, got %v", err)
	}

	if err := a.Rename(ctx, "/col/old.txt", "/col/new.txt"); err != nil {
		t.Fatal(err)
	}
	if _, err := a.Metadata(ctx, "/col/old.txt"); !errors.Is(err, fsadapter.ErrNotFound) {
		t.Error("old path should be gone after rename")
	}
	content, err := a.Read(ctx, "/col/new.txt")
	if err != nil || string(content) != "x" {
		t.Errorf("new path content: %q, %v", content, err)
	}
}

func TestDelete(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	a.Write(ctx, "/a.txt", []byte("x"))
	if err := a.Delete(ctx, "/a.txt"); err != nil {
		t.Fatal(err)
	}
	if err := a.Delete(ctx, "/a.txt"); !errors.Is(err, fsadapter.ErrNotFound) {
		t.Errorf("second delete: expected ErrNotFound, got %v", err)
	}
}
