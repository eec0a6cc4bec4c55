package site

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/conneroisu/folio/internal/content"
	siteerrors "github.com/conneroisu/folio/internal/errors"
	"github.com/conneroisu/folio/internal/mustache"
)

// PageOptions carries the request or output context of a page render.
type PageOptions struct {
	// Root is the prefix that reaches the site root from the page: "/" for
	// the live server, "", "../", "../../" for generated files.
	Root  string
	Draft bool
	// Host is the absolute origin used for the default feed link.
	Host string
	// FeedURL overrides the default feed link.
	FeedURL string
	// Location is the page's own path, used to mark the active navigation
	// entry.
	Location string
	// Continuation builds the URL of the listing page starting at next.
	Continuation func(next int) string
	// PostURL builds listing links. Defaults to DefaultPostURL.
	PostURL func(Entry) string
}

// RenderPost renders a blog entry with the theme's post.html.
func (c *Composer) RenderPost(e Entry, opts PageOptions) (string, error) {
	post, ok := c.Load(e, opts.Draft)
	if !ok || !qualifies(post, opts.Draft) {
		return "", siteerrors.NewNotFound(e.Path)
	}

	view := c.siteView().Merge(postView(post))
	view["date"] = mustache.Text(userDate(post["date"]))
	if post["author"] == "" {
		view["author"] = mustache.Text(c.doc.Name)
	}
	if post["title"] == "" {
		view["title"] = mustache.Text(content.TitleFromSlug(e.Slug))
	}
	view["slug"] = mustache.Text(e.Slug)
	view["root"] = mustache.Text(opts.Root)

	tmpl, err := c.themeTemplate("post.html", opts.Draft)
	if err != nil {
		return "", err
	}
	out, err := mustache.Render(tmpl, view, c.Partials(opts.Draft))
	if err != nil {
		return "", fmt.Errorf("render post %s: %w", e.Slug, err)
	}
	return out, nil
}

// RenderPage renders a page of the content tree. HTML sources are templates
// themselves; Markdown sources are converted and placed into the theme's
// page.html.
func (c *Composer) RenderPage(source string, opts PageOptions) (string, error) {
	info := c.cacheFor(opts.Draft).Stat(source)
	if !info.Exists || info.IsDir {
		return "", siteerrors.NewNotFound(source)
	}

	view := c.pageView(opts)

	var tmpl string
	if content.IsMarkdown(source) {
		post, ok := content.Load(source)
		if !ok {
			return "", siteerrors.NewNotFound(source)
		}
		if post["title"] == "" {
			base := filepath.Base(source)
			post["title"] = content.TitleFromSlug(strings.TrimSuffix(base, filepath.Ext(base)))
		}
		view = view.Merge(postView(post))

		t, err := c.themeTemplate("page.html", opts.Draft)
		if err != nil {
			return "", err
		}
		tmpl = t
	} else {
		data, err := c.cacheFor(opts.Draft).ReadFile(source)
		if err != nil {
			return "", siteerrors.NewIO(siteerrors.CodeReadFailed, source, err)
		}
		tmpl = string(data)
	}

	out, err := mustache.Render(tmpl, view, c.Partials(opts.Draft))
	if err != nil {
		return "", fmt.Errorf("render page %s: %w", source, err)
	}
	return out, nil
}

func (c *Composer) pageView(opts PageOptions) mustache.View {
	view := c.siteView()
	view["root"] = mustache.Text(opts.Root)

	if _, ok := view["links"]; !ok && len(c.doc.Links) > 0 {
		links := make([]mustache.View, 0, len(c.doc.Links))
		for _, l := range c.doc.Links {
			links = append(links, mustache.View{
				"url":    mustache.Text(l.URL),
				"name":   mustache.Text(l.Name),
				"symbol": mustache.Text(l.Symbol),
			})
		}
		view["links"] = mustache.List(links...)
	}

	pages := c.navigation(opts)
	view["pages"] = mustache.List(pages...)

	view["blog"] = mustache.Lazy(func() string {
		out, err := c.Stream(ListingOptions{Draft: opts.Draft, PostURL: opts.PostURL}, opts.Continuation, opts.Root)
		if err != nil {
			c.logger.Error(context.Background(), err, "render blog stream")
			return ""
		}
		return out
	})
	view["tabs"] = c.lazyFragment("tabs.html", mustache.View{"pages": mustache.List(pages...)}, opts.Draft)
	icons := mustache.View{}
	if links, ok := view["links"]; ok {
		icons["links"] = links
	}
	view["icons"] = c.lazyFragment("icons.html", icons, opts.Draft)

	if _, ok := view["feed"]; !ok {
		feed := opts.FeedURL
		view["feed"] = mustache.Lazy(func() string {
			if feed != "" {
				return feed
			}
			return strings.TrimSuffix(opts.Host, "/") + "/" + BlogDir + "/atom.xml"
		})
	}
	return view
}

// navigation lists the pages shown in the menu: visible ones, plus the
// page being rendered even when hidden.
func (c *Composer) navigation(opts PageOptions) []mustache.View {
	rootView := mustache.View{"root": mustache.Text(opts.Root)}
	pages := make([]mustache.View, 0, len(c.doc.Pages))
	for _, p := range c.doc.Pages {
		url, err := mustache.Render(p.URL, rootView, nil)
		if err != nil {
			url = p.URL
		}
		active := isActive(url, opts.Location)
		if !p.Visible && !active {
			continue
		}
		pages = append(pages, mustache.View{
			"name":   mustache.Text(p.Name),
			"url":    mustache.Text(url),
			"active": mustache.Bool(active),
		})
	}
	return pages
}

// isActive reports whether a navigation target points at location.
// Absolute targets compare as cleaned paths; relative ones are resolved
// against the directory of location. A trailing index.html is ignored on
// both sides.
func isActive(target, location string) bool {
	if location == "" || strings.Contains(target, "://") {
		return false
	}
	location = "/" + strings.TrimPrefix(location, "/")
	dir := location
	if !strings.HasSuffix(location, "/") {
		dir = path.Dir(location)
	}
	if !strings.HasPrefix(target, "/") {
		target = path.Join(dir, target)
	}
	return normalize(target) == normalize(location)
}

func normalize(p string) string {
	p = path.Clean(p)
	if path.Base(p) == "index.html" {
		p = path.Dir(p)
	}
	return p
}

func (c *Composer) lazyFragment(name string, view mustache.View, draft bool) mustache.Value {
	return mustache.Lazy(func() string {
		tmpl, err := c.themeTemplate(name, draft)
		if err != nil {
			c.logger.Error(context.Background(), err, "load fragment", "template", name)
			return ""
		}
		out, err := mustache.Render(tmpl, view, c.Partials(draft))
		if err != nil {
			c.logger.Error(context.Background(), err, "render fragment", "template", name)
			return ""
		}
		return strings.TrimSpace(out)
	})
}
