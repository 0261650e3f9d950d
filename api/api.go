// Package api serves the watched-directory REST endpoints and the directory
// browser.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"path/filepath"
	"syscall"
	"time"

	"github.com/justin-molloy/mediawatch/engine"
	"github.com/justin-molloy/mediawatch/store"
	"github.com/justin-molloy/mediawatch/walker"
)

// Roots is the part of the engine the handlers use.
type Roots interface {
	ListRoots(ctx context.Context) ([]store.WatchedRoot, error)
	GetRoot(ctx context.Context, path string) (store.WatchedRoot, error)
	CreateRoot(ctx context.Context, path string) (store.WatchedRoot, error)
	DeleteRoot(ctx context.Context, path string) error
	Watching(path string) bool
	Browse(ctx context.Context, remote, path string) ([]walker.Entry, error)
}

type rootView struct {
	Path       string     `json:"path"`
	LastUpdate *time.Time `json:"lastUpdate"`
	Watching   bool       `json:"watching"`
}

type listView struct {
	Items []rootView `json:"_items"`
}

type createRequest struct {
	Path string `json:"path"`
}

type errorView struct {
	Error string `json:"error"`
}

type handler struct {
	roots Roots
}

func NewHandler(roots Roots) http.Handler {
	h := &handler{roots: roots}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /watchedDirs", h.list)
	mux.HandleFunc("POST /watchedDirs", h.create)
	mux.HandleFunc("GET /watchedDirs/{path...}", h.get)
	mux.HandleFunc("DELETE /watchedDirs/{path...}", h.remove)
	mux.HandleFunc("GET /walk", h.walk)

	return logRequests(mux)
}

// NewServer returns a server for addr. The caller runs and shuts it down.
func NewServer(addr string, roots Roots) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           NewHandler(roots),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func (h *handler) view(r store.WatchedRoot) rootView {
	v := rootView{Path: r.Path, Watching: h.roots.Watching(r.Path)}
	if !r.LastUpdate.IsZero() {
		at := r.LastUpdate.UTC()
		v.LastUpdate = &at
	}
	return v
}

func (h *handler) list(w http.ResponseWriter, r *http.Request) {
	roots, err := h.roots.ListRoots(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	out := listView{Items: make([]rootView, 0, len(roots))}
	for _, root := range roots {
		out.Items = append(out.Items, h.view(root))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorView{Error: "invalid request body: " + err.Error()})
		return
	}

	root, err := h.roots.CreateRoot(r.Context(), req.Path)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.view(root))
}

func (h *handler) get(w http.ResponseWriter, r *http.Request) {
	root, err := h.roots.GetRoot(r.Context(), pathParam(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.view(root))
}

func (h *handler) remove(w http.ResponseWriter, r *http.Request) {
	if err := h.roots.DeleteRoot(r.Context(), pathParam(r)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) walk(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	entries, err := h.roots.Browse(r.Context(), q.Get("remote"), q.Get("path"))
	if err != nil {
		writeError(w, err)
		return
	}
	if entries == nil {
		entries = []walker.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// pathParam turns the trailing URL segments back into an absolute path.
func pathParam(r *http.Request) string {
	p := r.PathValue("path")
	if filepath.IsAbs(p) {
		return p
	}
	return "/" + p
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, engine.ErrUnknownRemote),
		errors.Is(err, fs.ErrNotExist):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrInvalidPath),
		errors.Is(err, syscall.ENOTDIR):
		return http.StatusBadRequest
	case errors.Is(err, fs.ErrPermission):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error("Request failed", "error", err)
	}
	writeJSON(w, status, errorView{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to write response", "error", err)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		slog.Debug("Handled request", "method", r.Method, "path", r.URL.Path,
			"status", rec.status, "duration", time.Since(start))
	})
}
