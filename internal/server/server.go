// Package server exposes the fleet over a local HTTP API.
package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/driftlock/fleetctl/internal/app"
	"github.com/driftlock/fleetctl/internal/archive"
	fleeterrors "github.com/driftlock/fleetctl/internal/errors"
	"github.com/driftlock/fleetctl/internal/imagebind"
	"github.com/driftlock/fleetctl/internal/lifecycle"
	"github.com/driftlock/fleetctl/internal/logging"
	"github.com/driftlock/fleetctl/internal/ports"
)

// Server serves the fleet HTTP API.
type Server struct {
	app    *app.App
	router chi.Router
}

// New builds a Server over an application context.
func New(a *app.App) *Server {
	s := &Server{app: a}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/projects", s.handleListProjects)
		r.Post("/rescan", s.handleRescan)
		r.Post("/start-all", s.handleStartAll)
		r.Post("/stop-all", s.handleStopAll)
		r.Get("/ports", s.handlePorts)

		r.Route("/projects/{name}", func(r chi.Router) {
			r.Get("/", s.handleGetProject)
			r.Delete("/", s.handleDeleteProject)
			r.Post("/start", s.handleStart)
			r.Post("/stop", s.handleStop)
			r.Post("/restart", s.handleRestart)
			r.Get("/logs", s.handleLogs)
			r.Get("/events", s.handleEvents)
		})

		r.Post("/import", s.handleImport)
		r.Post("/import/image", s.handleImportImage)
		r.Post("/embed", s.handleEmbed)
		r.Post("/extract", s.handleExtract)
		r.Post("/inspect", s.handleInspect)
	})

	s.router = r
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe runs the API until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.app.HostConfig.ListenAddr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	logging.Info("API listening", "addr", srv.Addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// envelope is the uniform response wrapper.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusFor(err))
	json.NewEncoder(w).Encode(envelope{Success: false, Error: err.Error()})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ports.ErrPortExhausted):
		return http.StatusConflict
	case errors.Is(err, archive.ErrArchiveTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, archive.ErrInvalidArchive),
		errors.Is(err, archive.ErrMissingManifest),
		errors.Is(err, imagebind.ErrInvalidContainer),
		errors.Is(err, imagebind.ErrNotEmbedded):
		return http.StatusBadRequest
	}

	switch fleeterrors.GetExitCode(err) {
	case fleeterrors.ExitProjectNotFound:
		return http.StatusNotFound
	case fleeterrors.ExitPortAllocation:
		return http.StatusConflict
	case fleeterrors.ExitConfigError, fleeterrors.ExitImportError, fleeterrors.ExitCodecError:
		return http.StatusBadRequest
	case fleeterrors.ExitProcessFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logging.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// projectView is a Descriptor enriched with live state.
type projectView struct {
	Name          string          `json:"name"`
	DisplayName   string          `json:"display_name"`
	Type          string          `json:"type"`
	ConfigSource  string          `json:"config_source"`
	Orphaned      bool            `json:"orphaned,omitempty"`
	State         lifecycle.State `json:"state"`
	LastError     string          `json:"last_error,omitempty"`
	Ports         []ports.Row     `json:"ports,omitempty"`
	DeclaredPorts map[string]int  `json:"declared_ports,omitempty"`
}

func (s *Server) projectView(name string) (projectView, bool) {
	d, ok := s.app.Registry.Get(name)
	if !ok {
		return projectView{}, false
	}

	v := projectView{
		Name:          d.Name,
		DisplayName:   d.DisplayName,
		Type:          string(d.Type),
		ConfigSource:  string(d.ConfigSource),
		Orphaned:      d.Orphaned,
		State:         s.app.Manager.State(d.Name),
		DeclaredPorts: d.DeclaredPorts,
	}
	if msg, _, _ := s.app.Manager.LastError(d.Name); msg != "" {
		v.LastError = msg
	}
	for _, row := range s.app.Table.Snapshot() {
		if row.Project == d.Name {
			v.Ports = append(v.Ports, row)
		}
	}
	return v, true
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	var views []projectView
	for _, d := range s.app.Registry.List() {
		if v, ok := s.projectView(d.Name); ok {
			views = append(views, v)
		}
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	v, ok := s.projectView(name)
	if !ok {
		writeError(w, fleeterrors.ProjectNotFound(name))
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleRescan(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Rescan(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"projects": len(s.app.Registry.List())})
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	backup, err := s.app.DeleteProject(r.Context(), name)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"project": name,
		"backup":  backup,
	})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	s.lifecycleOp(w, r, s.app.Manager.Start)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.lifecycleOp(w, r, s.app.Manager.Stop)
}

func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	s.lifecycleOp(w, r, s.app.Manager.Restart)
}

func (s *Server) lifecycleOp(w http.ResponseWriter, r *http.Request, op func(context.Context, string, string) error) {
	name := chi.URLParam(r, "name")
	component := r.URL.Query().Get("component")
	if component == "" {
		component = ports.ComponentFrontend
	}

	if err := op(r.Context(), name, component); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"project": name,
		"state":   s.app.Manager.State(name),
	})
}

// batchResult is the serialized form of a lifecycle.Result.
type batchResult struct {
	Project string `json:"project"`
	Error   string `json:"error,omitempty"`
}

func toBatchResults(results []lifecycle.Result) []batchResult {
	out := make([]batchResult, 0, len(results))
	for _, res := range results {
		br := batchResult{Project: res.Project}
		if res.Err != nil {
			br.Error = res.Err.Error()
		}
		out = append(out, br)
	}
	return out
}

func (s *Server) handleStartAll(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toBatchResults(s.app.Manager.StartAll(r.Context())))
}

func (s *Server) handleStopAll(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toBatchResults(s.app.Manager.StopAll(r.Context())))
}

func (s *Server) handlePorts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.app.Table.Snapshot())
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	component := r.URL.Query().Get("component")
	if component == "" {
		component = ports.ComponentFrontend
	}

	if _, ok := s.app.Registry.Get(name); !ok {
		writeError(w, fleeterrors.ProjectNotFound(name))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"project":   name,
		"component": component,
		"tail":      s.app.Manager.Tail(name, component),
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	events, err := s.app.Audit.Events(name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	data, err := s.readBody(r)
	if err != nil {
		writeError(w, err)
		return
	}

	name, err := s.app.Importer.Import(r.Context(), data, r.URL.Query().Get("name"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"project": name})
}

func (s *Server) handleImportImage(w http.ResponseWriter, r *http.Request) {
	data, err := s.readBody(r)
	if err != nil {
		writeError(w, err)
		return
	}

	name, err := s.app.Importer.ImportFromImage(r.Context(), data, r.URL.Query().Get("name"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"project": name})
}

// readBody reads the request body up to the configured import ceiling.
func (s *Server) readBody(r *http.Request) ([]byte, error) {
	limit := s.app.HostConfig.ImportMaxBytes
	data, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		return nil, fleeterrors.ImportError("failed to read request body", err)
	}
	if int64(len(data)) > limit {
		return nil, archive.ErrArchiveTooLarge
	}
	return data, nil
}

// embedRequest carries a container image and files to embed, all base64.
type embedRequest struct {
	Image string `json:"image"`
	Files []struct {
		Path    string `json:"path"`
		Tag     string `json:"tag,omitempty"`
		Content string `json:"content"`
	} `json:"files"`
}

func (s *Server) handleEmbed(w http.ResponseWriter, r *http.Request) {
	var req embedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fleeterrors.CodecError("invalid embed request", err))
		return
	}

	container, err := base64.StdEncoding.DecodeString(req.Image)
	if err != nil {
		writeError(w, fleeterrors.CodecError("image is not valid base64", err))
		return
	}

	files := make([]imagebind.File, 0, len(req.Files))
	for _, f := range req.Files {
		content, err := base64.StdEncoding.DecodeString(f.Content)
		if err != nil {
			writeError(w, fleeterrors.CodecError("file content is not valid base64", err))
			return
		}
		tag := f.Tag
		if tag == "" {
			tag = imagebind.TagFor(f.Path)
		}
		files = append(files, imagebind.File{Path: f.Path, Tag: tag, Content: content})
	}

	out, err := imagebind.Embed(container, files)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"image": base64.StdEncoding.EncodeToString(out),
	})
}

type extractRequest struct {
	Image string   `json:"image"`
	Tags  []string `json:"tags,omitempty"`
}

type extractedFile struct {
	Path    string `json:"path"`
	Tag     string `json:"tag"`
	Size    int    `json:"size"`
	Content string `json:"content"`
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	var req extractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fleeterrors.CodecError("invalid extract request", err))
		return
	}

	container, err := base64.StdEncoding.DecodeString(req.Image)
	if err != nil {
		writeError(w, fleeterrors.CodecError("image is not valid base64", err))
		return
	}

	payload, err := imagebind.ExtractTagged(container, req.Tags...)
	if err != nil {
		writeError(w, err)
		return
	}

	files := make([]extractedFile, 0, len(payload.Files))
	for _, f := range payload.Files {
		files = append(files, extractedFile{
			Path:    f.Path,
			Tag:     f.Tag,
			Size:    len(f.Content),
			Content: base64.StdEncoding.EncodeToString(f.Content),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"created_at": payload.CreatedAt,
		"files":      files,
	})
}

func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	var req extractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fleeterrors.CodecError("invalid inspect request", err))
		return
	}

	container, err := base64.StdEncoding.DecodeString(req.Image)
	if err != nil {
		writeError(w, fleeterrors.CodecError("image is not valid base64", err))
		return
	}

	if !imagebind.IsEmbedded(container) {
		writeJSON(w, http.StatusOK, map[string]any{"embedded": false})
		return
	}

	entries, err := imagebind.Inspect(container)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"embedded": true,
		"entries":  entries,
	})
}
