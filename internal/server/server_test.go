package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/folio/internal/cache"
	"github.com/conneroisu/folio/internal/config"
	"github.com/conneroisu/folio/internal/site"
)

type testSite struct {
	root   string
	server *Server
	cache  *cache.Cache
}

func newTestSite(t *testing.T, production bool, files map[string]string) *testSite {
	t.Helper()
	root := t.TempDir()
	contentDir := filepath.Join(root, "content")
	for name, data := range files {
		file := filepath.Join(contentDir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(file), 0o755))
		require.NoError(t, os.WriteFile(file, []byte(data), 0o644))
	}
	require.NoError(t, os.MkdirAll(contentDir, 0o755))

	doc, err := config.ParseSite([]byte(`
name: Jane
redirects:
  - pattern: /old/*
    target: /new.html
`))
	require.NoError(t, err)
	doc.Path = filepath.Join(root, "app.json")

	cfg := &config.Config{
		Server: config.ServerConfig{Host: "127.0.0.1", Port: 0},
		Site:   config.SiteConfig{Root: root, Content: "content", Themes: "themes", Theme: "default"},
	}
	if production {
		cfg.Environment = config.EnvironmentProduction
	}

	c := cache.New(production)
	composer := site.New(site.Options{
		ContentDir: contentDir,
		ThemeDir:   filepath.Join(root, "themes", "default"),
		Document:   doc,
		Cache:      c,
	})
	return &testSite{root: root, server: New(cfg, composer, c, nil), cache: c}
}

func (ts *testSite) get(t *testing.T, method, target, host string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	if host != "" {
		req.Host = host
	}
	rec := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rec, req)
	return rec
}

func post(n int, state string) string {
	return fmt.Sprintf("---\ntitle: Post %d\ndate: 2024-01-%02d\nstate: %s\n---\n<p>Body %d</p>", n, n, state, n)
}

func TestRouterGlobs(t *testing.T) {
	r := NewRouter()
	ok := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
	for _, p := range []string{"/.git*", "/blog", "/blog/*", "/a.b", "/*"} {
		r.Handle(p, ok)
	}

	tests := map[string]string{
		"/.git":       "/.git*",
		"/.gitignore": "/.git*",
		"/.GIT/head":  "/.git*",
		"/BLOG":       "/blog",
		"/blog":       "/blog",
		"/blog/":      "/blog/*",
		"/blog/x/y":   "/blog/*",
		"/a.b":        "/a.b",
		"/axb":        "/*",
		"/blogger":    "/*",
		"/index.html": "/*",
	}
	for path, want := range tests {
		assert.Equal(t, want, r.Match(path), path)
	}
	assert.Equal(t, "", NewRouter().Match("/"))
}

func TestMethods(t *testing.T) {
	ts := newTestSite(t, false, map[string]string{"style.css": "body{}"})

	rec := ts.get(t, http.MethodPost, "/style.css", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "GET, HEAD", rec.Header().Get("Allow"))

	rec = ts.get(t, http.MethodHead, "/style.css", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "6", rec.Header().Get("Content-Length"))
	assert.Empty(t, rec.Body.String())
}

func TestDenylistAndRedirects(t *testing.T) {
	ts := newTestSite(t, false, map[string]string{"new.html": "new"})

	for _, target := range []string{"/.git/config", "/admin", "/admin.cfg", "/.folio.yml", "/themes/default/post.html", "/app.json"} {
		rec := ts.get(t, http.MethodGet, target, "")
		assert.Equal(t, http.StatusFound, rec.Code, target)
		assert.Equal(t, "/", rec.Header().Get("Location"), target)
	}

	rec := ts.get(t, http.MethodGet, "/old/page.html", "")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/new.html", rec.Header().Get("Location"))
}

func TestFeeds(t *testing.T) {
	files := map[string]string{}
	for i := 1; i <= 12; i++ {
		files[fmt.Sprintf("blog/2024-01-%02d-post.html", i)] = post(i, "post")
	}
	ts := newTestSite(t, false, files)

	rec := ts.get(t, http.MethodGet, "/blog/atom.xml", "example.com")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/atom+xml; charset=utf-8", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Equal(t, site.FeedSize, strings.Count(body, "<entry>"))
	assert.Contains(t, body, "<id>http://example.com/blog/2024-01-12-post/</id>")
	assert.NotContains(t, body, "2024-01-02-post")

	req := httptest.NewRequest(http.MethodGet, "/rss.xml", nil)
	req.Host = "example.com"
	req.Header.Set("X-Forwarded-Proto", "https")
	rec = httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/rss+xml; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "<link>https://example.com/blog/2024-01-12-post/</link>")
}

func TestFeedSelfURL(t *testing.T) {
	for _, production := range []bool{false, true} {
		ts := newTestSite(t, production, map[string]string{
			"blog/2024-01-01-post.html": post(1, "post"),
		})
		for _, target := range []string{"/atom.xml", "/blog/atom.xml", "/rss.xml", "/blog/rss.xml"} {
			rec := ts.get(t, http.MethodGet, target, "example.com")
			require.Equal(t, http.StatusOK, rec.Code, target)
			assert.Contains(t, rec.Body.String(), `href="http://example.com`+target+`"`,
				"production=%v %s", production, target)
		}
	}
}

func TestFeedTemplateOverride(t *testing.T) {
	ts := newTestSite(t, false, map[string]string{
		"blog/2024-01-01-post.html": post(1, "post"),
		"blog/feed.atom":            "custom {{#items}}{{title}}{{/items}}",
	})
	rec := ts.get(t, http.MethodGet, "/atom.xml", "")
	assert.Equal(t, "custom Post 1", rec.Body.String())
}

func TestBlogListing(t *testing.T) {
	files := map[string]string{}
	for i := 1; i <= 12; i++ {
		files[fmt.Sprintf("blog/2024-01-%02d-post.html", i)] = post(i, "post")
	}
	ts := newTestSite(t, false, files)

	rec := ts.get(t, http.MethodGet, "/blog?id=0", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 10, strings.Count(rec.Body.String(), `class="item"`))
	assert.Contains(t, rec.Body.String(), `title="/blog?id=10"`)

	rec = ts.get(t, http.MethodGet, "/blog?id=10", "")
	assert.Equal(t, 2, strings.Count(rec.Body.String(), `class="item"`))
	assert.NotContains(t, rec.Body.String(), "stream")

	rec = ts.get(t, http.MethodGet, "/blog?id=50", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "item")

	for _, target := range []string{"/blog", "/blog?id=x", "/blog?id=-1"} {
		rec = ts.get(t, http.MethodGet, target, "")
		assert.Equal(t, http.StatusFound, rec.Code, target)
		assert.Equal(t, "/", rec.Header().Get("Location"), target)
	}
}

func TestPosts(t *testing.T) {
	ts := newTestSite(t, true, map[string]string{
		"blog/2024-01-01-post.html":         post(1, "post"),
		"blog/2024-01-02-post.html":         post(2, "draft"),
		"blog/2024-01-03-bundle/index.html": post(3, "post"),
		"blog/2024-01-03-bundle/photo.png":  "png",
	})

	rec := ts.get(t, http.MethodGet, "/blog/2024-01-01-post/", "example.com")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<h1>Post 1</h1>")
	assert.Contains(t, rec.Body.String(), "Jane")

	rec = ts.get(t, http.MethodGet, "/blog/2024-01-01-POST", "example.com")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.get(t, http.MethodGet, "/blog/2024-01-02-post", "example.com")
	assert.Equal(t, http.StatusFound, rec.Code, "drafts are hidden in production")

	rec = ts.get(t, http.MethodGet, "/blog/2024-01-02-post", "localhost:8080")
	assert.Equal(t, http.StatusOK, rec.Code, "drafts are visible on localhost")

	rec = ts.get(t, http.MethodGet, "/blog/2024-01-03-bundle/photo.png", "example.com")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "png", rec.Body.String())

	rec = ts.get(t, http.MethodGet, "/blog/2024-01-03-bundle/missing.png", "example.com")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.get(t, http.MethodGet, "/blog/nope", "example.com")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
}

func TestACME(t *testing.T) {
	ts := newTestSite(t, false, map[string]string{
		".well-known/acme-challenge/token": "proof",
	})

	rec := ts.get(t, http.MethodGet, "/.well-known/acme-challenge/token", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "proof", rec.Body.String())

	rec = ts.get(t, http.MethodGet, "/.well-known/acme-challenge/other", "")
	assert.Equal(t, http.StatusFound, rec.Code)
}

func TestDefaultHandler(t *testing.T) {
	ts := newTestSite(t, false, map[string]string{
		"index.html":       "<h1>{{name}}</h1>",
		"about.html":       "about {{name}}",
		"notes.md":         "# Notes",
		"docs/index.html":  "docs",
		"style.css":        "body{}",
		"assets/readme.md": "raw",
	})

	tests := []struct {
		name     string
		target   string
		status   int
		location string
		body     string
	}{
		{"root page", "/", http.StatusOK, "", "<h1>Jane</h1>"},
		{"page", "/about.html", http.StatusOK, "", "about Jane"},
		{"markdown page", "/notes.html", http.StatusOK, "", "Notes</h1>"},
		{"index suffix", "/docs/index.html", http.StatusMovedPermanently, "/docs/", ""},
		{"root index suffix", "/index.html", http.StatusMovedPermanently, "/", ""},
		{"directory", "/docs", http.StatusFound, "/docs/", ""},
		{"directory index", "/docs/", http.StatusOK, "", "docs"},
		{"asset", "/style.css", http.StatusOK, "", "body{}"},
		{"missing asset", "/missing.css", http.StatusNotFound, "", ""},
		{"unknown extension", "/notes.md", http.StatusFound, "/", ""},
		{"missing page", "/docs/missing.html", http.StatusFound, "/docs", ""},
		{"missing directory", "/gone/", http.StatusFound, "/", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.get(t, http.MethodGet, tt.target, "")
			assert.Equal(t, tt.status, rec.Code)
			if tt.location != "" {
				assert.Equal(t, tt.location, rec.Header().Get("Location"))
			}
			if tt.body != "" {
				assert.Contains(t, rec.Body.String(), tt.body)
			}
		})
	}

	rec := ts.get(t, http.MethodGet, "/style.css", "")
	assert.Equal(t, "private, max-age=0", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "-1", rec.Header().Get("Expires"))
	assert.Equal(t, "text/css; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestProductionCache(t *testing.T) {
	ts := newTestSite(t, true, map[string]string{"about.html": "v1"})
	about := filepath.Join(ts.root, "content", "about.html")

	rec := ts.get(t, http.MethodGet, "/about.html", "example.com")
	assert.Equal(t, "v1", rec.Body.String())

	require.NoError(t, os.WriteFile(about, []byte("v2"), 0o644))

	rec = ts.get(t, http.MethodGet, "/about.html", "example.com")
	assert.Equal(t, "v1", rec.Body.String(), "production pages are cached")

	rec = ts.get(t, http.MethodGet, "/about.html", "localhost")
	assert.Equal(t, "v2", rec.Body.String(), "localhost bypasses the cache")

	assert.Positive(t, ts.cache.Stats().Hits)
}

func TestIsLocalhost(t *testing.T) {
	assert.True(t, isLocalhost("localhost"))
	assert.True(t, isLocalhost("localhost:8080"))
	assert.True(t, isLocalhost("127.0.0.1:3000"))
	assert.False(t, isLocalhost("example.com"))
	assert.False(t, isLocalhost("localhost.example.com"))
}

func TestServeShutdown(t *testing.T) {
	ts := newTestSite(t, false, map[string]string{"index.html": "hi"})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ts.server.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(ShutdownTimeout + time.Second):
		t.Fatal("server did not shut down")
	}
}
