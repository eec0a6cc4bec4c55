// Package server is the live website server. Pages, posts and feeds are
// rendered on request; production requests are served from the render cache
// while requests to localhost see drafts and fresh files.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/conneroisu/folio/internal/cache"
	"github.com/conneroisu/folio/internal/config"
	"github.com/conneroisu/folio/internal/logging"
	"github.com/conneroisu/folio/internal/site"
)

// ShutdownTimeout bounds the graceful shutdown after the context ends.
const ShutdownTimeout = 5 * time.Second

// Server serves a website from the content tree.
type Server struct {
	config   *config.Config
	composer *site.Composer
	cache    *cache.Cache
	logger   logging.Logger
	router   *Router
	handler  http.Handler

	httpServer   *http.Server
	serverMutex  sync.RWMutex
	shutdownOnce sync.Once
}

// New creates a server. The cache may be nil, in which case every request
// reads the files.
func New(cfg *config.Config, composer *site.Composer, c *cache.Cache, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.Discard()
	}
	s := &Server{
		config:   cfg,
		composer: composer,
		cache:    c,
		logger:   logger.WithComponent("server"),
		router:   NewRouter(),
	}
	s.routes()
	s.handler = Chain(s.router,
		RecoveryMiddleware(s.logger),
		LoggingMiddleware(s.logger),
		SecurityHeadersMiddleware(),
	)
	return s
}

// Handler returns the server's root handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() {
	home := http.HandlerFunc(s.redirectHome)
	for _, pattern := range []string{"/.git*", "/admin*", "/.folio*", "/themes/*"} {
		s.router.Handle(pattern, home)
	}
	doc := s.composer.Document()
	if doc.Path != "" {
		s.router.Handle("/"+filepath.Base(doc.Path), home)
	}
	for _, redirect := range doc.Redirects {
		if redirect.Pattern == "" {
			continue
		}
		s.router.Handle(redirect.Pattern, http.RedirectHandler(redirect.Target, http.StatusFound))
	}

	s.router.HandleFunc("/blog/atom.xml", s.handleFeed(site.FormatAtom))
	s.router.HandleFunc("/atom.xml", s.handleFeed(site.FormatAtom))
	s.router.HandleFunc("/blog/rss.xml", s.handleFeed(site.FormatRSS))
	s.router.HandleFunc("/rss.xml", s.handleFeed(site.FormatRSS))
	s.router.HandleFunc("/blog", s.handleBlog)
	s.router.HandleFunc("/blog/*", s.handlePost)
	s.router.HandleFunc("/.well-known/acme-challenge/*", s.handleACME)
	s.router.HandleFunc("/*", s.handleDefault)
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.config.Server.Host, strconv.Itoa(s.config.Server.Port))
}

// Start listens on the configured address and serves until ctx is done, then
// shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.Addr(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.serverMutex.Lock()
	s.httpServer = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	server := s.httpServer
	s.serverMutex.Unlock()

	s.logger.Info(ctx, "server listening",
		"addr", ln.Addr().String(),
		"production", s.config.Production(),
		"content", s.composer.ContentDir(),
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errCh
		return nil
	}
}

// Shutdown stops the server, waiting for in-flight requests until ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.serverMutex.RLock()
		server := s.httpServer
		s.serverMutex.RUnlock()

		if server != nil {
			s.logger.Info(ctx, "shutting down server")
			shutdownErr = server.Shutdown(ctx)
		}
	})
	return shutdownErr
}

// requestInfo is the per-request rendering context.
type requestInfo struct {
	draft bool
	host  string
}

func (s *Server) inspect(r *http.Request) requestInfo {
	host := scheme(r) + "://" + r.Host
	if doc := s.composer.Document(); doc.Host != "" {
		host = strings.TrimSuffix(doc.Host, "/")
	}
	return requestInfo{
		draft: !s.config.Production() || isLocalhost(r.Host),
		host:  host,
	}
}

// cacheFor returns the cache for a request. Draft requests bypass it.
func (s *Server) cacheFor(info requestInfo) *cache.Cache {
	if info.draft {
		return nil
	}
	return s.cache
}

func scheme(r *http.Request) string {
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		return proto
	}
	if proto := r.Header.Get("X-Forwarded-Protocol"); proto != "" {
		return proto
	}
	return "http"
}

func isLocalhost(host string) bool {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return host == "localhost" || host == "127.0.0.1"
}
