// Package preview is a small development file server for generated sites.
// It serves a folder as-is, applies a redirect map and can reload open
// pages when the folder changes.
package preview

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/conneroisu/folio/internal/content"
	"github.com/conneroisu/folio/internal/logging"
	"github.com/conneroisu/folio/internal/server"
	"github.com/conneroisu/folio/internal/watcher"
)

// DefaultIndexPage is served for directory requests.
const DefaultIndexPage = "index.html"

// Options configures a preview server.
type Options struct {
	Folder    string
	IndexPage string
	// NotFoundPage, relative to Folder, is the body of 404 responses.
	NotFoundPage string
	Redirects    []Redirect
	// Live injects the reload script into HTML responses and serves the
	// websocket that triggers it.
	Live bool
}

// Server serves a folder.
type Server struct {
	opts    Options
	hub     *Hub
	logger  logging.Logger
	handler http.Handler

	httpServer   *http.Server
	serverMutex  sync.RWMutex
	shutdownOnce sync.Once
}

// New creates a preview server for opts.Folder.
func New(opts Options, logger logging.Logger) (*Server, error) {
	if opts.Folder == "" {
		opts.Folder = "."
	}
	if opts.IndexPage == "" {
		opts.IndexPage = DefaultIndexPage
	}
	info, err := os.Stat(opts.Folder)
	if err != nil {
		return nil, fmt.Errorf("preview folder: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("preview folder %s is not a directory", opts.Folder)
	}
	if logger == nil {
		logger = logging.Discard()
	}

	s := &Server{
		opts:   opts,
		logger: logger.WithComponent("preview"),
	}
	s.hub = NewHub(s.logger)
	s.handler = server.Chain(http.HandlerFunc(s.serve),
		server.RecoveryMiddleware(s.logger),
		server.LoggingMiddleware(s.logger),
	)
	return s, nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Hub returns the live reload hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		s.status(w, r, http.StatusMethodNotAllowed)
		return
	}

	pathname := r.URL.Path
	for _, redirect := range s.opts.Redirects {
		if redirect.Pattern.MatchString(pathname) {
			http.Redirect(w, r, redirect.Location, http.StatusFound)
			return
		}
	}
	if s.opts.Live && pathname == ReloadPath {
		s.hub.ServeHTTP(w, r)
		return
	}

	location := filepath.Join(s.opts.Folder, filepath.FromSlash(path.Clean("/"+pathname)))
	if info, err := os.Stat(location); err == nil && info.IsDir() {
		if !strings.HasSuffix(pathname, "/") {
			http.Redirect(w, r, pathname+"/", http.StatusFound)
			return
		}
		location = filepath.Join(location, s.opts.IndexPage)
	}

	info, err := os.Stat(location)
	if err != nil || info.IsDir() {
		s.notFound(w, r)
		return
	}
	contentType, ok := content.ContentType(filepath.Ext(location))
	if !ok {
		s.notFound(w, r)
		return
	}
	data, err := os.ReadFile(location)
	if err != nil {
		s.notFound(w, r)
		return
	}
	s.write(w, r, http.StatusOK, contentType, data)
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	if s.opts.NotFoundPage != "" {
		page := filepath.Join(s.opts.Folder, filepath.FromSlash(s.opts.NotFoundPage))
		if data, err := os.ReadFile(page); err == nil {
			contentType, ok := content.ContentType(filepath.Ext(page))
			if !ok {
				contentType = "text/html; charset=utf-8"
			}
			s.write(w, r, http.StatusNotFound, contentType, data)
			return
		}
	}
	s.status(w, r, http.StatusNotFound)
}

// status writes a bare status code body.
func (s *Server) status(w http.ResponseWriter, r *http.Request, code int) {
	s.write(w, r, code, "text/plain; charset=utf-8", []byte(strconv.Itoa(code)))
}

func (s *Server) write(w http.ResponseWriter, r *http.Request, code int, contentType string, data []byte) {
	if s.opts.Live && strings.HasPrefix(contentType, "text/html") {
		data = InjectReloadScript(data)
	}
	h := w.Header()
	h.Set("Content-Type", contentType)
	h.Set("Content-Length", strconv.Itoa(len(data)))
	h.Set("Cache-Control", "no-cache")
	w.WriteHeader(code)
	if r.Method != http.MethodHead {
		_, _ = w.Write(data)
	}
}

// Watch reloads connected pages whenever the folder changes, until ctx is
// done. The caller stops w.
func (s *Server) Watch(ctx context.Context, w *watcher.FileWatcher) error {
	w.AddFilter(watcher.NoHiddenFilter)
	w.AddFilter(watcher.NoEditorFilter)
	w.AddHandler(func(ctx context.Context, events []watcher.ChangeEvent) error {
		s.logger.Info(ctx, "reloading pages", "changes", len(events), "clients", s.hub.Clients())
		s.hub.Reload()
		return nil
	})
	if err := w.AddRecursive(s.opts.Folder); err != nil {
		return err
	}
	w.Start(ctx)
	return nil
}

// Serve serves on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.serverMutex.Lock()
	s.httpServer = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	httpServer := s.httpServer
	s.serverMutex.Unlock()

	s.logger.Info(ctx, "serving folder",
		"folder", s.opts.Folder,
		"url", "http://"+ln.Addr().String(),
		"live", s.opts.Live,
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("preview server error: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), server.ShutdownTimeout)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errCh
		return nil
	}
}

// Shutdown stops the server. Open websocket connections are closed.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.serverMutex.RLock()
		httpServer := s.httpServer
		s.serverMutex.RUnlock()
		if httpServer == nil {
			return
		}
		s.hub.closeAll()
		shutdownErr = httpServer.Shutdown(ctx)
	})
	return shutdownErr
}
