// Package build renders the whole content tree into a static folder that
// any file server can host.
package build

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/natefinch/atomic"
	"golang.org/x/sync/errgroup"

	"github.com/conneroisu/folio/internal/cache"
	"github.com/conneroisu/folio/internal/content"
	siteerrors "github.com/conneroisu/folio/internal/errors"
	"github.com/conneroisu/folio/internal/logging"
	"github.com/conneroisu/folio/internal/site"
)

// Options configures a Generator.
type Options struct {
	// ContentDir is mirrored into Destination.
	ContentDir  string
	Destination string
	// Concurrency bounds the files rendered at once within a directory.
	Concurrency int
	// Production hides drafts.
	Production bool
	// Host is the absolute origin used in feeds when the site document has
	// none.
	Host string
}

// Generator renders a content tree into static files.
type Generator struct {
	opts     Options
	composer *site.Composer
	cache    *cache.Cache
	logger   logging.Logger
}

// NewGenerator creates a generator. The cache, which should be the one the
// composer uses, is reset before every run.
func NewGenerator(opts Options, composer *site.Composer, c *cache.Cache, logger logging.Logger) *Generator {
	if opts.Concurrency <= 0 {
		opts.Concurrency = runtime.NumCPU()
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Generator{
		opts:     opts,
		composer: composer,
		cache:    c,
		logger:   logger.WithComponent("build"),
	}
}

// run is the state of one Generate call.
type run struct {
	*Generator
	content string
	dest    string
	draft   bool
	report  *Report

	// continuations holds the listing pages requested by rendered pages,
	// keyed by output path.
	mu            sync.Mutex
	continuations map[string]listingJob
	done          map[string]bool

	// hasAtomFeed is set when the content ships blog/feed.atom, which the
	// pages then link to relatively.
	hasAtomFeed bool
}

type listingJob struct {
	start int
	root  string
	dir   string
}

// Generate cleans the destination and renders every file of the content
// tree into it. Any file system error aborts the run.
func (g *Generator) Generate(ctx context.Context) (*Report, error) {
	perf := logging.StartOperation(g.logger, "generate")
	g.cache.Reset()

	contentDir, err := filepath.Abs(g.opts.ContentDir)
	if err != nil {
		return nil, siteerrors.NewIO(siteerrors.CodeInvalidPath, g.opts.ContentDir, err)
	}
	dest, err := filepath.Abs(g.opts.Destination)
	if err != nil {
		return nil, siteerrors.NewIO(siteerrors.CodeInvalidPath, g.opts.Destination, err)
	}
	if err := checkDestination(contentDir, dest); err != nil {
		return nil, err
	}

	r := &run{
		Generator:     g,
		content:       contentDir,
		dest:          dest,
		draft:         !g.opts.Production,
		report:        &Report{started: time.Now()},
		continuations: make(map[string]listingJob),
		done:          make(map[string]bool),
	}
	if info, err := os.Stat(filepath.Join(contentDir, site.BlogDir, "feed.atom")); err == nil && !info.IsDir() {
		r.hasAtomFeed = true
	}

	if err := clean(dest); err != nil {
		perf.EndWithError(ctx, err)
		return nil, err
	}
	if err := r.walk(ctx, "", ""); err != nil {
		perf.EndWithError(ctx, err)
		return nil, err
	}
	if err := r.writeContinuations(); err != nil {
		perf.EndWithError(ctx, err)
		return nil, err
	}

	report := r.report.finish()
	perf.End(ctx,
		"files", humanize.Comma(report.Files),
		"size", humanize.Bytes(uint64(report.Bytes)),
		"pages", report.Pages,
		"posts", report.Posts,
		"feeds", report.Feeds,
		"copied", report.Copied,
		"destination", dest,
	)
	return report, nil
}

// checkDestination refuses destinations whose cleaning would delete the
// content itself.
func checkDestination(contentDir, dest string) error {
	if dest == filepath.Dir(dest) {
		return siteerrors.NewValidation(siteerrors.CodeInvalidPath, "destination is a file system root")
	}
	if dest == contentDir || strings.HasPrefix(contentDir, dest+string(filepath.Separator)) {
		return siteerrors.NewValidation(siteerrors.CodeInvalidPath,
			fmt.Sprintf("destination %s contains the content folder", dest))
	}
	return nil
}

// clean empties dest, creating it when missing.
func clean(dest string) error {
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return siteerrors.NewIO(siteerrors.CodeWriteFailed, dest, err)
	}
	entries, err := os.ReadDir(dest)
	if err != nil {
		return siteerrors.NewIO(siteerrors.CodeReadFailed, dest, err)
	}
	for _, e := range entries {
		target := filepath.Join(dest, e.Name())
		if err := os.RemoveAll(target); err != nil {
			return siteerrors.NewIO(siteerrors.CodeWriteFailed, target, err)
		}
	}
	return nil
}

// walk renders the directory rel of the content tree. root is the relative
// prefix leading from rel back to the site root.
func (r *run) walk(ctx context.Context, rel, root string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := filepath.Join(r.content, filepath.FromSlash(rel))
	entries, err := os.ReadDir(dir)
	if err != nil {
		return siteerrors.NewIO(siteerrors.CodeReadFailed, dir, err)
	}

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(r.opts.Concurrency)
	var dirs []string
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if e.IsDir() {
			if filepath.Join(dir, name) != r.dest {
				dirs = append(dirs, name)
			}
			continue
		}
		group.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return r.renderFile(rel, name, root)
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}

	for _, name := range dirs {
		if err := r.walk(ctx, path.Join(rel, name), root+"../"); err != nil {
			return err
		}
	}
	return nil
}

// renderFile dispatches one source file to the feed, post or page renderer,
// or copies it.
func (r *run) renderFile(rel, name, root string) error {
	source := filepath.Join(r.content, filepath.FromSlash(rel), name)
	ext := strings.ToLower(path.Ext(name))
	base := strings.TrimSuffix(name, path.Ext(name))

	if entry, outRoot, ok := r.postEntry(rel, name, source); ok {
		return r.renderPost(entry, outRoot)
	}

	switch {
	case ext == ".rss" || ext == ".atom":
		return r.renderFeed(source, path.Join(rel, name), strings.TrimPrefix(ext, "."))
	case ext == ".html":
		return r.renderPage(source, path.Join(rel, name), rel, root)
	case content.IsMarkdown(name):
		return r.renderPage(source, path.Join(rel, base+".html"), rel, root)
	}
	return r.copy(source, path.Join(rel, name))
}

// postEntry recognizes blog posts: blog/<slug>.html|md files and the index
// of blog/<slug>/ folders.
func (r *run) postEntry(rel, name, source string) (site.Entry, string, bool) {
	ext := strings.ToLower(path.Ext(name))
	if ext != ".html" && ext != ".md" {
		return site.Entry{}, "", false
	}
	base := strings.TrimSuffix(name, path.Ext(name))

	switch {
	case rel == site.BlogDir:
		if base == "index" || base == "feed" {
			return site.Entry{}, "", false
		}
		return site.Entry{Slug: base, Path: source}, "../../", true

	case path.Dir(rel) == site.BlogDir && base == "index":
		// A folder holding both sources is rendered from index.html.
		if ext == ".md" {
			if _, err := os.Stat(filepath.Join(filepath.Dir(source), "index.html")); err == nil {
				return site.Entry{}, "", false
			}
		}
		return site.Entry{Slug: path.Base(rel), Path: source, Bundle: true}, "../../", true
	}
	return site.Entry{}, "", false
}

func (r *run) renderPost(entry site.Entry, root string) error {
	out, err := r.composer.RenderPost(entry, site.PageOptions{
		Root:     root,
		Draft:    r.draft,
		Host:     r.opts.Host,
		Location: "/" + path.Join(site.BlogDir, entry.Slug) + "/",
	})
	if siteerrors.IsNotFound(err) {
		r.logger.Debug(context.Background(), "skipping unpublished post", "slug", entry.Slug)
		return nil
	}
	if err != nil {
		return err
	}
	r.report.add(&r.report.Posts)
	return r.write(path.Join(site.BlogDir, entry.Slug, "index.html"), []byte(out))
}

func (r *run) renderFeed(source, target, format string) error {
	tmpl, err := os.ReadFile(source)
	if err != nil {
		return siteerrors.NewIO(siteerrors.CodeReadFailed, source, err)
	}
	host := strings.TrimSuffix(r.opts.Host, "/")
	out, err := r.composer.Feed(site.FeedOptions{
		Format:   format,
		Host:     host,
		SelfURL:  host + "/" + target,
		Template: string(tmpl),
		Draft:    r.draft,
	})
	if err != nil {
		return err
	}
	r.report.add(&r.report.Feeds)
	return r.write(target, []byte(out))
}

func (r *run) renderPage(source, target, dir, root string) error {
	out, err := r.composer.RenderPage(source, r.pageOptions(target, dir, root))
	if err != nil {
		return err
	}
	r.report.add(&r.report.Pages)
	return r.write(target, []byte(out))
}

// pageOptions builds the render context of a page written to target inside
// dir. Listing continuations are written next to the hosting page so that
// their relative links resolve the same way.
func (r *run) pageOptions(target, dir, root string) site.PageOptions {
	opts := site.PageOptions{
		Root:     root,
		Draft:    r.draft,
		Host:     r.opts.Host,
		Location: "/" + target,
		PostURL: func(e site.Entry) string {
			return root + site.BlogDir + "/" + e.Slug + "/"
		},
		Continuation: r.continuation(dir, root),
	}
	if r.opts.Host == "" && r.hasAtomFeed {
		opts.FeedURL = root + site.BlogDir + "/feed.atom"
	}
	return opts
}

func (r *run) continuation(dir, root string) func(next int) string {
	return func(next int) string {
		name := "page" + strconv.Itoa(next/site.PageSize) + ".html"
		target := path.Join(dir, site.BlogDir, name)
		r.mu.Lock()
		if _, ok := r.continuations[target]; !ok && !r.done[target] {
			r.continuations[target] = listingJob{start: next, root: root, dir: dir}
		}
		r.mu.Unlock()
		return site.BlogDir + "/" + name
	}
}

// writeContinuations renders queued listing pages until none are left.
// Rendering a page may queue the one after it.
func (r *run) writeContinuations() error {
	for {
		r.mu.Lock()
		targets := make([]string, 0, len(r.continuations))
		for target := range r.continuations {
			targets = append(targets, target)
		}
		r.mu.Unlock()
		if len(targets) == 0 {
			return nil
		}
		sort.Strings(targets)

		for _, target := range targets {
			r.mu.Lock()
			job := r.continuations[target]
			delete(r.continuations, target)
			r.done[target] = true
			r.mu.Unlock()

			l, err := r.composer.Listing(site.ListingOptions{
				Start: job.start,
				Draft: r.draft,
				PostURL: func(e site.Entry) string {
					return job.root + site.BlogDir + "/" + e.Slug + "/"
				},
			})
			if err != nil {
				return err
			}
			out, err := r.composer.RenderListing(l, r.continuation(job.dir, job.root), job.root, r.draft)
			if err != nil {
				return err
			}
			r.report.add(&r.report.Pages)
			if err := r.write(target, []byte(out)); err != nil {
				return err
			}
		}
	}
}

func (r *run) copy(source, target string) error {
	data, err := os.ReadFile(source)
	if err != nil {
		return siteerrors.NewIO(siteerrors.CodeReadFailed, source, err)
	}
	r.report.add(&r.report.Copied)
	return r.write(target, data)
}

// write stores data at target below the destination atomically.
func (r *run) write(target string, data []byte) error {
	file := filepath.Join(r.dest, filepath.FromSlash(target))
	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		return siteerrors.NewIO(siteerrors.CodeWriteFailed, filepath.Dir(file), err)
	}
	if err := atomic.WriteFile(file, bytes.NewReader(data)); err != nil {
		return siteerrors.NewIO(siteerrors.CodeWriteFailed, file, err)
	}
	r.report.written(int64(len(data)))
	return nil
}
