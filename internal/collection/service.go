// Package collection implements the element service: listing, creating,
// updating, reading and deleting typed elements within a collection backed by
// the acting user's storage adapter.
package collection

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/shelfd/shelfd/internal/element"
	"github.com/shelfd/shelfd/internal/events"
	"github.com/shelfd/shelfd/internal/fsadapter"
	"github.com/shelfd/shelfd/internal/fsmeta"
	"github.com/shelfd/shelfd/internal/logging"
	"github.com/shelfd/shelfd/internal/metrics"
	"github.com/shelfd/shelfd/internal/pathcodec"
)

var (
	// ErrEmptyContent is returned when a create carries no content for a
	// kind that requires it.
	ErrEmptyContent = errors.New("collection: element content is empty")

	// ErrInvalidName is returned when a requested element name is empty or
	// escapes the collection directory.
	ErrInvalidName = errors.New("collection: invalid element name")

	// ErrWriteFailed wraps backend failures while persisting content.
	ErrWriteFailed = errors.New("collection: backend write failed")

	// ErrCannotRename wraps backend failures while renaming an element.
	ErrCannotRename = errors.New("collection: backend rename failed")
)

// Service operates on the elements of collections reachable through one
// storage adapter. A Service is built per request for the acting user.
type Service struct {
	adapter     fsadapter.Adapter
	broadcaster *events.Broadcaster
}

// NewService creates a Service over the given adapter. The broadcaster is
// optional; when nil no change events are published.
func NewService(adapter fsadapter.Adapter, broadcaster *events.Broadcaster) *Service {
	return &Service{adapter: adapter, broadcaster: broadcaster}
}

// UpdateRequest carries the changes applied by Update. Nil fields are left
// unchanged.
type UpdateRequest struct {
	Name    *string
	Tags    *[]string
	Content []byte
}

// ContentResult is the outcome of GetContent.
type ContentResult struct {
	Data        []byte
	Mimetype    string
	Modified    time.Time
	NotModified bool
}

// List returns every supported element in the collection, oldest first.
// Backend failures and unreadable entries degrade to an empty or shortened
// list rather than an error; only a malformed collection token fails.
func (s *Service) List(ctx context.Context, collectionToken string) (out []element.Element, err error) {
	defer s.observe("list")(&err)

	dir, err := pathcodec.Decode(collectionToken)
	if err != nil {
		return nil, err
	}

	raws, err := s.adapter.List(ctx, dir)
	if err != nil {
		logging.WithContext(ctx).Debug("collection listing failed, returning empty",
			zap.String("dir", dir), zap.Error(err))
		return []element.Element{}, nil
	}

	out = make([]element.Element, 0, len(raws))
	for _, raw := range raws {
		meta, err := fsmeta.Standardize(raw, "")
		if err != nil {
			logging.WithContext(ctx).Debug("skipping malformed entry",
				zap.String("path", raw.Path), zap.Error(err))
			continue
		}
		if meta.Type != fsmeta.TypeFile {
			continue
		}
		kind, err := element.ResolveKind(meta.Path)
		if err != nil {
			logging.WithContext(ctx).Debug("skipping unsupported entry",
				zap.String("path", meta.Path))
			continue
		}
		out = append(out, element.Construct(kind, meta, collectionToken))
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Updated < out[j].Updated
	})
	return out, nil
}

// Create stores a new element under the given basename. Content is required;
// an occupied basename fails with fsadapter.ErrExists.
func (s *Service) Create(ctx context.Context, collectionToken, basename string, content []byte) (el element.Element, err error) {
	defer s.observe("create")(&err)

	dir, err := pathcodec.Decode(collectionToken)
	if err != nil {
		return element.Element{}, err
	}
	basename, err = sanitizeName(basename)
	if err != nil {
		return element.Element{}, err
	}
	kind, err := element.ResolveKind(basename)
	if err != nil {
		return element.Element{}, err
	}
	if len(content) == 0 {
		return element.Element{}, ErrEmptyContent
	}

	p := path.Join(dir, basename)
	if err := s.adapter.Write(ctx, p, content); err != nil {
		if errors.Is(err, fsadapter.ErrExists) {
			return element.Element{}, err
		}
		return element.Element{}, fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}

	el, err = s.fetch(ctx, kind, p, collectionToken, false)
	if err != nil {
		return element.Element{}, err
	}

	s.publish(events.Event{
		Type:       events.EventCreate,
		Collection: collectionToken,
		Token:      el.Token,
		Size:       el.Size,
	})
	metrics.RecordContentUpload(int64(len(content)))
	return el, nil
}

// Update applies name, tag and content changes to an existing element. A
// rename (name or tag change) is applied before any content write, so a
// failed content update never leaves the element under its old basename.
func (s *Service) Update(ctx context.Context, collectionToken, elementToken string, req UpdateRequest) (el element.Element, err error) {
	defer s.observe("update")(&err)

	dir, basename, kind, err := s.resolve(collectionToken, elementToken)
	if err != nil {
		return element.Element{}, err
	}

	oldPath := path.Join(dir, basename)
	raw, err := s.adapter.Metadata(ctx, oldPath)
	if err != nil {
		return element.Element{}, err
	}
	meta, err := fsmeta.Standardize(raw, oldPath)
	if err != nil {
		return element.Element{}, err
	}
	current := element.Construct(kind, meta, collectionToken)

	ed := current.Edit()
	if req.Name != nil {
		name, err := sanitizeName(*req.Name)
		if err != nil {
			return element.Element{}, err
		}
		ed.Name = name
	}
	if req.Tags != nil {
		ed.Tags = *req.Tags
	}

	newBasename := ed.Basename()
	newPath := path.Join(dir, newBasename)
	if newBasename != basename {
		if err := s.adapter.Rename(ctx, oldPath, newPath); err != nil {
			if errors.Is(err, fsadapter.ErrNotFound) {
				return element.Element{}, err
			}
			return element.Element{}, fmt.Errorf("%w: %w", ErrCannotRename, err)
		}
		s.publish(events.Event{
			Type:       events.EventRename,
			Collection: collectionToken,
			Token:      pathcodec.Encode(newBasename),
		})
	}

	if req.Content != nil && kind.ShouldLoadContent() {
		if err := s.adapter.Update(ctx, newPath, req.Content); err != nil {
			if errors.Is(err, fsadapter.ErrNotFound) {
				return element.Element{}, err
			}
			return element.Element{}, fmt.Errorf("%w: %v", ErrWriteFailed, err)
		}
		metrics.RecordContentUpload(int64(len(req.Content)))
		s.publish(events.Event{
			Type:       events.EventModify,
			Collection: collectionToken,
			Token:      pathcodec.Encode(newBasename),
			Size:       int64(len(req.Content)),
		})
	}

	return s.fetch(ctx, kind, newPath, collectionToken, kind.ShouldLoadContent())
}

// Get returns a single element. For content-bearing kinds (documents, links)
// the content is loaded; for others only metadata is fetched.
func (s *Service) Get(ctx context.Context, collectionToken, elementToken string) (el element.Element, err error) {
	defer s.observe("get")(&err)

	dir, basename, kind, err := s.resolve(collectionToken, elementToken)
	if err != nil {
		return element.Element{}, err
	}
	return s.fetch(ctx, kind, path.Join(dir, basename), collectionToken, kind.ShouldLoadContent())
}

// GetContent returns the raw bytes of an element for download. When the
// request carries If-Modified-Since and the stored mtime is not newer, the
// content read is skipped entirely and NotModified is set.
func (s *Service) GetContent(ctx context.Context, collectionToken, elementToken string, headers http.Header) (res ContentResult, err error) {
	defer s.observe("getContent")(&err)

	dir, basename, _, err := s.resolve(collectionToken, elementToken)
	if err != nil {
		return ContentResult{}, err
	}

	p := path.Join(dir, basename)
	raw, err := s.adapter.Metadata(ctx, p)
	if err != nil {
		return ContentResult{}, err
	}
	meta, err := fsmeta.Standardize(raw, p)
	if err != nil {
		return ContentResult{}, err
	}
	modified := time.Unix(meta.Timestamp, 0).UTC()

	if ims := headers.Get("If-Modified-Since"); ims != "" {
		if since, perr := http.ParseTime(ims); perr == nil && !modified.After(since) {
			return ContentResult{Mimetype: meta.Mimetype, Modified: modified, NotModified: true}, nil
		}
	}

	data, err := s.adapter.Read(ctx, p)
	if err != nil {
		return ContentResult{}, err
	}

	mt := meta.Mimetype
	if mt == "" || mt == "application/octet-stream" {
		mt = fsmeta.DetectContent(data)
	}

	metrics.RecordContentDownload(int64(len(data)))
	return ContentResult{Data: data, Mimetype: mt, Modified: modified}, nil
}

// Delete removes an element. Deleting an element that is already gone
// succeeds.
func (s *Service) Delete(ctx context.Context, collectionToken, elementToken string) (err error) {
	defer s.observe("delete")(&err)

	dir, basename, _, err := s.resolve(collectionToken, elementToken)
	if err != nil {
		return err
	}

	if err := s.adapter.Delete(ctx, path.Join(dir, basename)); err != nil {
		if errors.Is(err, fsadapter.ErrNotFound) {
			return nil
		}
		return err
	}

	s.publish(events.Event{
		Type:       events.EventDelete,
		Collection: collectionToken,
		Token:      elementToken,
	})
	return nil
}

// BatchRename applies transform to every listed element accepted by match
// and renames the changed ones. A failed rename does not stop the batch; all
// failures are joined into the returned error. Returns the number of
// elements actually renamed.
func (s *Service) BatchRename(ctx context.Context, collectionToken string, match func(element.Element) bool, transform func(*element.Editable)) (renamed int, err error) {
	defer s.observe("batchRename")(&err)

	dir, err := pathcodec.Decode(collectionToken)
	if err != nil {
		return 0, err
	}

	elements, err := s.List(ctx, collectionToken)
	if err != nil {
		return 0, err
	}

	var failures []error
	for i := range elements {
		el := &elements[i]
		if match != nil && !match(*el) {
			continue
		}

		ed := el.Edit()
		transform(ed)

		oldBasename := el.Basename()
		newBasename := ed.Basename()
		if newBasename == oldBasename {
			continue
		}

		oldPath := path.Join(dir, oldBasename)
		newPath := path.Join(dir, newBasename)
		if rerr := s.adapter.Rename(ctx, oldPath, newPath); rerr != nil {
			failures = append(failures,
				fmt.Errorf("rename %q to %q: %w", oldBasename, newBasename, rerr))
			continue
		}
		renamed++
		s.publish(events.Event{
			Type:       events.EventRename,
			Collection: collectionToken,
			Token:      pathcodec.Encode(newBasename),
		})
	}

	if len(failures) > 0 {
		return renamed, fmt.Errorf("%w: %w", ErrCannotRename, errors.Join(failures...))
	}
	return renamed, nil
}

// resolve decodes both tokens and determines the element kind without any
// backend I/O. Unsupported extensions fail here, before the adapter is
// touched.
func (s *Service) resolve(collectionToken, elementToken string) (dir, basename string, kind element.Kind, err error) {
	dir, err = pathcodec.Decode(collectionToken)
	if err != nil {
		return "", "", "", err
	}
	basename, err = pathcodec.Decode(elementToken)
	if err != nil {
		return "", "", "", err
	}
	basename, err = sanitizeName(basename)
	if err != nil {
		return "", "", "", err
	}
	kind, err = element.ResolveKind(basename)
	if err != nil {
		return "", "", "", err
	}
	return dir, basename, kind, nil
}

// fetch re-reads metadata at p and constructs the element, loading content
// when asked.
func (s *Service) fetch(ctx context.Context, kind element.Kind, p, collectionToken string, loadContent bool) (element.Element, error) {
	raw, err := s.adapter.Metadata(ctx, p)
	if err != nil {
		return element.Element{}, err
	}
	meta, err := fsmeta.Standardize(raw, p)
	if err != nil {
		return element.Element{}, err
	}

	el := element.Construct(kind, meta, collectionToken)
	if loadContent {
		data, err := s.adapter.Read(ctx, p)
		if err != nil {
			return element.Element{}, err
		}
		el.Content = data
		if el.Kind == element.KindLink {
			el.FileURL = el.URL()
		}
	}
	return el, nil
}

// observe times one service operation and records the outcome. Use with a
// named error return:
//
//	defer s.observe("create")(&err)
func (s *Service) observe(op string) func(*error) {
	start := time.Now()
	return func(err *error) {
		metrics.RecordElementOp(op, time.Since(start), *err == nil)
	}
}

func (s *Service) publish(event events.Event) {
	if s.broadcaster != nil {
		s.broadcaster.Publish(event)
	}
}

// sanitizeName validates a basename: non-empty, no path separators, no
// traversal segments.
func sanitizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: empty name", ErrInvalidName)
	}
	if strings.ContainsAny(name, "/\\") || name == "." || name == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return name, nil
}
