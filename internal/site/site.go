// Package site composes blog listings, syndication feeds and full pages
// from the content tree, the theme and the site document. Both the live
// server and the static generator render through a Composer.
package site

import (
	"context"
	"embed"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/conneroisu/folio/internal/cache"
	"github.com/conneroisu/folio/internal/config"
	"github.com/conneroisu/folio/internal/content"
	siteerrors "github.com/conneroisu/folio/internal/errors"
	"github.com/conneroisu/folio/internal/logging"
	"github.com/conneroisu/folio/internal/mustache"
)

//go:embed templates/*
var defaults embed.FS

// BlogDir is the folder of the content tree that holds posts.
const BlogDir = "blog"

// Options configures a Composer.
type Options struct {
	// ContentDir is the root of pages and posts.
	ContentDir string
	// ThemeDir holds post.html, feed.html, page.html and partials.
	ThemeDir string
	Document *config.SiteDocument
	// Cache is consulted for non-draft renders. It may be nil.
	Cache  *cache.Cache
	Logger logging.Logger
}

// Composer renders site output. It is safe for concurrent use.
type Composer struct {
	contentDir string
	themeDir   string
	doc        *config.SiteDocument
	cache      *cache.Cache
	logger     logging.Logger
}

// New creates a Composer.
func New(opts Options) *Composer {
	doc := opts.Document
	if doc == nil {
		doc = &config.SiteDocument{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Composer{
		contentDir: opts.ContentDir,
		themeDir:   opts.ThemeDir,
		doc:        doc,
		cache:      opts.Cache,
		logger:     logger.WithComponent("site"),
	}
}

// Document returns the site document.
func (c *Composer) Document() *config.SiteDocument {
	return c.doc
}

// ContentDir returns the content root.
func (c *Composer) ContentDir() string {
	return c.contentDir
}

// cacheFor returns the cache to use for a render. Draft renders always
// read the files.
func (c *Composer) cacheFor(draft bool) *cache.Cache {
	if draft {
		return nil
	}
	return c.cache
}

// Entry is one post of the blog folder.
type Entry struct {
	// Slug names the post in URLs, e.g. "2024-03-01-hello".
	Slug string
	// Path is the source file.
	Path string
	// Bundle is true for folder posts (slug/index.html) that may carry
	// assets next to the source.
	Bundle bool
}

var indexNames = []string{"index.html", "index.md"}

// Posts lists the blog entries newest first. File names are expected to
// sort chronologically, so this is the reverse lexicographic order.
func (c *Composer) Posts(draft bool) ([]Entry, error) {
	blog := filepath.Join(c.contentDir, BlogDir)
	return cache.Value(c.cacheFor(draft), "posts:"+blog, func() ([]Entry, error) {
		items, err := os.ReadDir(blog)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, nil
			}
			return nil, siteerrors.NewIO(siteerrors.CodeReadFailed, blog, err)
		}

		entries := make([]Entry, 0, len(items))
		for _, item := range items {
			name := item.Name()
			if strings.HasPrefix(name, ".") {
				continue
			}
			if entry, ok := c.entryFor(blog, name, item.IsDir()); ok {
				entries = append(entries, entry)
			}
		}
		sort.Slice(entries, func(i, j int) bool {
			return entries[i].Slug > entries[j].Slug
		})
		return entries, nil
	})
}

func (c *Composer) entryFor(blog, name string, dir bool) (Entry, bool) {
	if dir {
		for _, index := range indexNames {
			source := filepath.Join(blog, name, index)
			if info, err := os.Stat(source); err == nil && !info.IsDir() {
				return Entry{Slug: name, Path: source, Bundle: true}, true
			}
		}
		return Entry{}, false
	}
	ext := strings.ToLower(filepath.Ext(name))
	if ext != ".html" && ext != ".md" {
		return Entry{}, false
	}
	slug := strings.TrimSuffix(name, filepath.Ext(name))
	if slug == "feed" || slug == "index" {
		return Entry{}, false
	}
	return Entry{Slug: slug, Path: filepath.Join(blog, name)}, true
}

// Lookup finds the entry for slug, case-insensitively.
func (c *Composer) Lookup(slug string, draft bool) (Entry, bool) {
	slug = strings.Trim(slug, "/")
	if slug == "" || strings.Contains(slug, "/") {
		return Entry{}, false
	}
	entries, err := c.Posts(draft)
	if err != nil {
		return Entry{}, false
	}
	for _, e := range entries {
		if strings.EqualFold(e.Slug, slug) {
			return e, true
		}
	}
	return Entry{}, false
}

// Load reads an entry. The returned post may be modified by the caller.
func (c *Composer) Load(e Entry, draft bool) (content.Post, bool) {
	type loaded struct {
		post content.Post
		ok   bool
	}
	res, _ := cache.Value(c.cacheFor(draft), "post:"+e.Path, func() (loaded, error) {
		post, ok := content.Load(e.Path)
		return loaded{post, ok}, nil
	})
	if !res.ok {
		return nil, false
	}
	return res.post.Clone(), true
}

// qualifies reports whether a post is shown: published posts always, drafts
// only in draft mode.
func qualifies(post content.Post, draft bool) bool {
	return draft || post.Published()
}

// themeTemplate returns the theme file name, or the embedded default when
// the theme does not provide it.
func (c *Composer) themeTemplate(name string, draft bool) (string, error) {
	if c.themeDir != "" {
		file := filepath.Join(c.themeDir, name)
		data, err := c.cacheFor(draft).ReadFile(file)
		if err == nil {
			return string(data), nil
		}
		if !os.IsNotExist(err) {
			return "", siteerrors.NewIO(siteerrors.CodeReadFailed, file, err)
		}
	}
	data, err := defaults.ReadFile(path.Join("templates", name))
	if err != nil {
		return "", siteerrors.NewNotFound(name)
	}
	return string(data), nil
}

// Partials resolves {{> name}} against the theme directory.
func (c *Composer) Partials(draft bool) mustache.Partials {
	return mustache.PartialFunc(func(name string) (string, error) {
		if strings.Contains(name, "..") {
			return "", siteerrors.NewValidation(siteerrors.CodeInvalidPath,
				fmt.Sprintf("partial name %q escapes the theme", name))
		}
		file := filepath.Join(c.themeDir, filepath.FromSlash(name))
		data, err := c.cacheFor(draft).ReadFile(file)
		if err != nil {
			c.logger.Warn(context.Background(), err, "partial not found", "partial", name)
			return "", nil
		}
		return string(data), nil
	})
}

// siteView converts the site document into a view. Typed fields fill in
// keys the raw document lacks, which happens when it was built in code.
func (c *Composer) siteView() mustache.View {
	view := mustache.FromMap(c.doc.Raw)
	for key, value := range map[string]string{
		"name":        c.doc.Name,
		"description": c.doc.Description,
		"host":        c.doc.Host,
	} {
		if _, ok := view[key]; !ok && value != "" {
			view[key] = mustache.Text(value)
		}
	}
	return view
}

func postView(post content.Post) mustache.View {
	view := make(mustache.View, len(post))
	for key, value := range post {
		view[key] = mustache.Text(value)
	}
	return view
}

// userDate formats a front-matter date for display, or "" when it does not
// parse.
func userDate(value string) string {
	if t, ok := content.ParseTime(value); ok {
		return content.FormatDate(t, "user")
	}
	return ""
}
