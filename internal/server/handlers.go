package server

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/conneroisu/folio/internal/cache"
	"github.com/conneroisu/folio/internal/content"
	siteerrors "github.com/conneroisu/folio/internal/errors"
	"github.com/conneroisu/folio/internal/site"
)

const htmlType = "text/html; charset=utf-8"

var feedTypes = map[string]string{
	site.FormatAtom: "application/atom+xml; charset=utf-8",
	site.FormatRSS:  "application/rss+xml; charset=utf-8",
}

func (s *Server) redirectHome(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusFound)
}

// blogContinuation is the URL of the listing page starting at next.
func blogContinuation(next int) string {
	return "/blog?id=" + strconv.Itoa(next)
}

func (s *Server) handleFeed(format string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		info := s.inspect(r)
		key := "feed:" + format + ":" + info.host + r.URL.Path
		data, err := cache.Value(s.cacheFor(info), key, func() (string, error) {
			var tmpl string
			source := filepath.Join(s.composer.ContentDir(), site.BlogDir, "feed."+format)
			if b, err := os.ReadFile(source); err == nil {
				tmpl = string(b)
			}
			return s.composer.Feed(site.FeedOptions{
				Format:   format,
				Host:     info.host,
				SelfURL:  info.host + r.URL.Path,
				Template: tmpl,
				Draft:    info.draft,
			})
		})
		if err != nil {
			s.fail(w, r, err)
			return
		}
		s.write(w, r, feedTypes[format], []byte(data))
	}
}

func (s *Server) handleBlog(w http.ResponseWriter, r *http.Request) {
	start, err := strconv.Atoi(r.URL.Query().Get("id"))
	if err != nil || start < 0 {
		s.redirectHome(w, r)
		return
	}
	info := s.inspect(r)
	data, err := cache.Value(s.cacheFor(info), "blog:"+strconv.Itoa(start), func() (string, error) {
		l, err := s.composer.Listing(site.ListingOptions{Start: start, Draft: info.draft})
		if err != nil {
			return "", err
		}
		return s.composer.RenderListing(l, blogContinuation, "/", info.draft)
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.write(w, r, htmlType, []byte(data))
}

func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	info := s.inspect(r)
	slug := strings.Trim(strings.TrimPrefix(r.URL.Path, "/"+site.BlogDir+"/"), "/")

	if entry, ok := s.composer.Lookup(slug, info.draft); ok {
		data, err := cache.Value(s.cacheFor(info), "render:post:"+entry.Slug, func() (string, error) {
			return s.composer.RenderPost(entry, site.PageOptions{
				Root:     "/",
				Draft:    info.draft,
				Host:     info.host,
				Location: r.URL.Path,
			})
		})
		if err == nil {
			s.write(w, r, htmlType, []byte(data))
			return
		}
		if !siteerrors.IsNotFound(err) {
			s.fail(w, r, err)
			return
		}
	}

	if _, known := content.ContentType(path.Ext(r.URL.Path)); known {
		s.handleDefault(w, r)
		return
	}
	s.redirectHome(w, r)
}

func (s *Server) handleACME(w http.ResponseWriter, r *http.Request) {
	file := strings.TrimPrefix(path.Clean(r.URL.Path), "/")
	source := filepath.Join(s.composer.ContentDir(), filepath.FromSlash(file))
	info, err := os.Stat(source)
	if err != nil || info.IsDir() {
		s.redirectHome(w, r)
		return
	}
	data, err := os.ReadFile(source)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.write(w, r, "text/plain; charset=utf-8", data)
}

// handleDefault serves files of the content tree: assets as bytes and HTML
// or Markdown pages through the template renderer.
func (s *Server) handleDefault(w http.ResponseWriter, r *http.Request) {
	info := s.inspect(r)
	raw := r.URL.Path
	pathname := strings.ToLower(path.Clean(raw))
	if pathname != "/" && strings.HasSuffix(raw, "/") {
		pathname += "/"
	}
	if strings.HasSuffix(pathname, "/index.html") {
		http.Redirect(w, r, strings.TrimSuffix(pathname, "index.html"), http.StatusMovedPermanently)
		return
	}

	file := pathname
	if strings.HasSuffix(pathname, "/") {
		file = path.Join(pathname, "index.html")
	}
	file = strings.TrimPrefix(file, "/")
	source := filepath.Join(s.composer.ContentDir(), filepath.FromSlash(file))
	ext := path.Ext(file)
	c := s.cacheFor(info)

	contentType, known := content.ContentType(ext)
	if known && ext != ".html" {
		s.serveAsset(w, r, c, source, contentType)
		return
	}
	if ext != "" && ext != ".html" {
		s.redirectHome(w, r)
		return
	}

	stat := c.Stat(source)
	if !stat.Exists && ext == ".html" {
		markdown := strings.TrimSuffix(source, ext) + ".md"
		if md := c.Stat(markdown); md.Exists && !md.IsDir {
			source, stat = markdown, md
		}
	}
	switch {
	case !stat.Exists:
		if file == "index.html" {
			s.redirectHome(w, r)
		} else {
			http.Redirect(w, r, path.Dir(strings.TrimSuffix(pathname, "/")), http.StatusFound)
		}
		return
	case stat.IsDir || ext == "":
		http.Redirect(w, r, strings.TrimSuffix(pathname, "/")+"/", http.StatusFound)
		return
	}

	data, err := cache.Value(c, "page:"+info.host+":"+file, func() (string, error) {
		return s.composer.RenderPage(source, site.PageOptions{
			Root:         "/",
			Draft:        info.draft,
			Host:         info.host,
			Location:     "/" + file,
			Continuation: blogContinuation,
		})
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.write(w, r, htmlType, []byte(data))
}

func (s *Server) serveAsset(w http.ResponseWriter, r *http.Request, c *cache.Cache, source, contentType string) {
	stat := c.Stat(source)
	switch {
	case !stat.Exists:
		http.NotFound(w, r)
		return
	case stat.IsDir:
		s.redirectHome(w, r)
		return
	}
	data, err := c.ReadFile(source)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "private, max-age=0")
	w.Header().Set("Expires", "-1")
	s.write(w, r, contentType, data)
}

func (s *Server) write(w http.ResponseWriter, r *http.Request, contentType string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if r.Method == http.MethodHead {
		return
	}
	if _, err := w.Write(data); err != nil {
		s.logger.Debug(r.Context(), "write response", "path", r.URL.Path, "error", err.Error())
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error(r.Context(), err, "render failed", "path", r.URL.Path)
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}
