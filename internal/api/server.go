// Package api exposes the element service over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/shelfd/shelfd/internal/auth"
	"github.com/shelfd/shelfd/internal/collection"
	"github.com/shelfd/shelfd/internal/element"
	"github.com/shelfd/shelfd/internal/events"
	"github.com/shelfd/shelfd/internal/fsadapter"
	"github.com/shelfd/shelfd/internal/fsadapter/registry"
	"github.com/shelfd/shelfd/internal/logging"
	"github.com/shelfd/shelfd/internal/metrics"
	"github.com/shelfd/shelfd/internal/pathcodec"
)

// AdapterResolver resolves the storage adapter bound to a user. Satisfied by
// registry.Manager.
type AdapterResolver interface {
	ForUser(ctx context.Context, userID int) (fsadapter.Adapter, error)
	Evict(userID int)
}

// BackendStore persists per-user backend configuration. Satisfied by
// registry.BackendStore.
type BackendStore interface {
	GetForUser(ctx context.Context, userID int) (*registry.BackendRow, error)
	Set(ctx context.Context, row *registry.BackendRow) error
	Delete(ctx context.Context, userID int) error
}

// Server is the HTTP API over the element service.
type Server struct {
	manager       AdapterResolver
	store         BackendStore
	broadcaster   *events.Broadcaster
	verifier      *auth.Verifier
	maxUploadSize int64

	handler http.Handler
}

// Options configures a Server.
type Options struct {
	Manager       AdapterResolver
	Store         BackendStore
	Broadcaster   *events.Broadcaster
	Verifier      *auth.Verifier
	MaxUploadSize int64
}

// NewServer wires up all routes and middleware.
func NewServer(opts Options) *Server {
	s := &Server{
		manager:       opts.Manager,
		store:         opts.Store,
		broadcaster:   opts.Broadcaster,
		verifier:      opts.Verifier,
		maxUploadSize: opts.MaxUploadSize,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)

	protected := http.NewServeMux()
	protected.HandleFunc("GET /api/v1/collections/{collection}/elements", s.handleList)
	protected.HandleFunc("POST /api/v1/collections/{collection}/elements", s.handleCreate)
	protected.HandleFunc("GET /api/v1/collections/{collection}/elements/{element}", s.handleGet)
	protected.HandleFunc("PUT /api/v1/collections/{collection}/elements/{element}", s.handleUpdate)
	protected.HandleFunc("DELETE /api/v1/collections/{collection}/elements/{element}", s.handleDelete)
	protected.HandleFunc("GET /api/v1/collections/{collection}/elements/{element}/content", s.handleGetContent)
	protected.HandleFunc("POST /api/v1/collections/{collection}/rename", s.handleBatchRename)
	protected.HandleFunc("GET /api/v1/events", s.handleEvents)

	protected.HandleFunc("GET /api/v1/admin/backends/{userID}", s.handleAdminGetBackend)
	protected.HandleFunc("PUT /api/v1/admin/backends/{userID}", s.handleAdminSetBackend)
	protected.HandleFunc("DELETE /api/v1/admin/backends/{userID}", s.handleAdminDeleteBackend)

	mux.Handle("/api/v1/", s.verifier.Middleware(protected))

	s.handler = metrics.Middleware(logging.Middleware(mux))
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// service builds the element service for the acting user.
func (s *Server) service(r *http.Request) (*collection.Service, error) {
	claims := auth.GetClaims(r.Context())
	if claims == nil {
		return nil, errors.New("no claims in context")
	}
	adapter, err := s.manager.ForUser(r.Context(), claims.UserID)
	if err != nil {
		return nil, err
	}
	return collection.NewService(adapter, s.broadcaster), nil
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	svc, err := s.service(r)
	if err != nil {
		s.sendError(w, r, err)
		return
	}
	elements, err := svc.List(r.Context(), r.PathValue("collection"))
	if err != nil {
		s.sendError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]any{"elements": elements})
}

type createRequest struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	svc, err := s.service(r)
	if err != nil {
		s.sendError(w, r, err)
		return
	}

	name, content, err := s.readUpload(r)
	if err != nil {
		s.sendError(w, r, err)
		return
	}

	el, err := svc.Create(r.Context(), r.PathValue("collection"), name, content)
	if err != nil {
		s.sendError(w, r, err)
		return
	}
	sendJSON(w, http.StatusCreated, el)
}

// readUpload extracts the element name and content from either a multipart
// form (field "file", name from the filename) or a JSON body.
func (s *Server) readUpload(r *http.Request) (string, []byte, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, s.maxUploadSize)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(s.maxUploadSize); err != nil {
			return "", nil, fmt.Errorf("%w: %v", collection.ErrInvalidName, err)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			return "", nil, fmt.Errorf("%w: missing file field", collection.ErrInvalidName)
		}
		defer file.Close()

		content, err := io.ReadAll(file)
		if err != nil {
			return "", nil, fmt.Errorf("%w: %v", collection.ErrWriteFailed, err)
		}
		return header.Filename, content, nil
	}

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return "", nil, fmt.Errorf("%w: %v", collection.ErrInvalidName, err)
	}
	return req.Name, []byte(req.Content), nil
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	svc, err := s.service(r)
	if err != nil {
		s.sendError(w, r, err)
		return
	}
	el, err := svc.Get(r.Context(), r.PathValue("collection"), r.PathValue("element"))
	if err != nil {
		s.sendError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, el)
}

type updateRequest struct {
	Name    *string   `json:"name"`
	Tags    *[]string `json:"tags"`
	Content *string   `json:"content"`
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	svc, err := s.service(r)
	if err != nil {
		s.sendError(w, r, err)
		return
	}

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, r, fmt.Errorf("%w: %v", collection.ErrInvalidName, err))
		return
	}

	upd := collection.UpdateRequest{Name: req.Name, Tags: req.Tags}
	if req.Content != nil {
		upd.Content = []byte(*req.Content)
	}

	el, err := svc.Update(r.Context(), r.PathValue("collection"), r.PathValue("element"), upd)
	if err != nil {
		s.sendError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, el)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	svc, err := s.service(r)
	if err != nil {
		s.sendError(w, r, err)
		return
	}
	if err := svc.Delete(r.Context(), r.PathValue("collection"), r.PathValue("element")); err != nil {
		s.sendError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetContent(w http.ResponseWriter, r *http.Request) {
	svc, err := s.service(r)
	if err != nil {
		s.sendError(w, r, err)
		return
	}

	res, err := svc.GetContent(r.Context(), r.PathValue("collection"), r.PathValue("element"), r.Header)
	if err != nil {
		s.sendError(w, r, err)
		return
	}

	w.Header().Set("Last-Modified", res.Modified.Format(http.TimeFormat))
	if res.NotModified {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", res.Mimetype)
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Data)))
	w.Write(res.Data)
}

type renameRequest struct {
	Match struct {
		Kinds  []string `json:"kinds"`
		HasTag string   `json:"has_tag"`
	} `json:"match"`
	Transform struct {
		DropTag string  `json:"drop_tag"`
		AddTag  string  `json:"add_tag"`
		SetName *string `json:"set_name"`
	} `json:"transform"`
}

func (s *Server) handleBatchRename(w http.ResponseWriter, r *http.Request) {
	svc, err := s.service(r)
	if err != nil {
		s.sendError(w, r, err)
		return
	}

	var req renameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, r, fmt.Errorf("%w: %v", collection.ErrInvalidName, err))
		return
	}
	if req.Transform.DropTag == "" && req.Transform.AddTag == "" && req.Transform.SetName == nil {
		s.sendError(w, r, fmt.Errorf("%w: empty transform", collection.ErrInvalidName))
		return
	}

	match := func(el element.Element) bool {
		if len(req.Match.Kinds) > 0 {
			ok := false
			for _, k := range req.Match.Kinds {
				if el.Kind == element.Kind(k) {
					ok = true
					break
				}
			}
			if !ok {
				return false
			}
		}
		if req.Match.HasTag != "" {
			ok := false
			for _, t := range el.Tags {
				if t == req.Match.HasTag {
					ok = true
					break
				}
			}
			if !ok {
				return false
			}
		}
		return true
	}

	transform := func(ed *element.Editable) {
		if req.Transform.SetName != nil {
			ed.Name = *req.Transform.SetName
		}
		if req.Transform.DropTag != "" {
			ed.DropTag(req.Transform.DropTag)
		}
		if req.Transform.AddTag != "" {
			ed.AddTag(req.Transform.AddTag)
		}
	}

	renamed, err := svc.BatchRename(r.Context(), r.PathValue("collection"), match, transform)
	if err != nil {
		// Partial failures still report how far the batch got.
		sendJSON(w, errorStatus(err), map[string]any{
			"renamed": renamed,
			"error":   err.Error(),
		})
		return
	}
	sendJSON(w, http.StatusOK, map[string]any{"renamed": renamed})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := s.broadcaster.Subscribe()
	defer s.broadcaster.Unsubscribe(ch)

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			data, err := events.MarshalEvent(event)
			if err != nil {
				continue
			}
			if _, err := w.Write(data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (s *Server) handleAdminGetBackend(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.Atoi(r.PathValue("userID"))
	if err != nil {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return
	}
	row, err := s.store.GetForUser(r.Context(), userID)
	if err != nil {
		s.sendError(w, r, err)
		return
	}
	if row == nil {
		s.sendError(w, r, fsadapter.ErrNoBackend)
		return
	}
	sendJSON(w, http.StatusOK, row)
}

type setBackendRequest struct {
	BackendType string          `json:"backend_type"`
	Config      json.RawMessage `json:"config"`
}

func (s *Server) handleAdminSetBackend(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.Atoi(r.PathValue("userID"))
	if err != nil {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return
	}

	var req setBackendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	// Validate the configuration by instantiating an adapter before storing.
	adapter, err := registry.NewAdapterFromConfig(r.Context(), req.BackendType, req.Config)
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid backend config: %v", err), http.StatusBadRequest)
		return
	}
	adapter.Close()

	row := &registry.BackendRow{
		UserID:      userID,
		BackendType: req.BackendType,
		Config:      req.Config,
	}
	if err := s.store.Set(r.Context(), row); err != nil {
		s.sendError(w, r, err)
		return
	}
	s.manager.Evict(userID)
	logging.WithContext(r.Context()).Info("backend configured",
		zap.Int("user_id", userID), zap.String("backend", req.BackendType))
	sendJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAdminDeleteBackend(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.Atoi(r.PathValue("userID"))
	if err != nil {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return
	}
	if err := s.store.Delete(r.Context(), userID); err != nil {
		s.sendError(w, r, err)
		return
	}
	s.manager.Evict(userID)
	w.WriteHeader(http.StatusNoContent)
}

func sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// errorStatus maps service errors onto HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, pathcodec.ErrMalformedToken),
		errors.Is(err, collection.ErrInvalidName),
		errors.Is(err, collection.ErrEmptyContent):
		return http.StatusBadRequest
	case errors.Is(err, fsadapter.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, fsadapter.ErrExists):
		return http.StatusConflict
	case errors.Is(err, element.ErrUnsupportedType):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, fsadapter.ErrNoBackend):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) sendError(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	if status >= 500 {
		logging.WithContext(r.Context()).Error("request failed",
			zap.String("path", r.URL.Path), zap.Error(err))
	}
	sendJSON(w, status, map[string]string{"error": err.Error()})
}
