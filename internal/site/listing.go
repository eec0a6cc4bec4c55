package site

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/conneroisu/folio/internal/content"
	"github.com/conneroisu/folio/internal/excerpt"
	"github.com/conneroisu/folio/internal/mustache"
)

// Listing defaults.
const (
	PageSize      = 10
	ExcerptLength = 250
)

// ListingOptions selects one page of the blog stream.
type ListingOptions struct {
	// Start is the number of qualifying posts to skip.
	Start         int
	PageSize      int
	ExcerptLength int
	// Draft includes unpublished posts and bypasses the cache.
	Draft bool
	// PostURL builds the link of an item. Defaults to "/blog/<slug>/".
	PostURL func(Entry) string
}

// Listing is one page of the blog stream.
type Listing struct {
	Items []mustache.View
	// Next is the Start of the following page.
	Next int
	// More reports whether another qualifying post exists after this page.
	More bool
}

var whitespacePair = regexp.MustCompile(`\s\s`)

// Listing builds one page of excerpts. Starting past the last qualifying
// post yields an empty page without a continuation.
func (c *Composer) Listing(opts ListingOptions) (Listing, error) {
	if opts.PageSize <= 0 {
		opts.PageSize = PageSize
	}
	if opts.ExcerptLength <= 0 {
		opts.ExcerptLength = ExcerptLength
	}
	if opts.PostURL == nil {
		opts.PostURL = DefaultPostURL
	}
	if opts.Start < 0 {
		opts.Start = 0
	}

	entries, err := c.Posts(opts.Draft)
	if err != nil {
		return Listing{}, err
	}

	listing := Listing{Next: opts.Start}
	index := 0
	for _, entry := range entries {
		post, ok := c.Load(entry, opts.Draft)
		if !ok || !qualifies(post, opts.Draft) {
			continue
		}
		if index < opts.Start {
			index++
			continue
		}
		if len(listing.Items) == opts.PageSize {
			listing.More = true
			break
		}
		listing.Items = append(listing.Items, excerptView(entry, post, opts))
		listing.Next++
		index++
	}
	return listing, nil
}

func excerptView(entry Entry, post content.Post, opts ListingOptions) mustache.View {
	view := postView(post)
	view["url"] = mustache.Text(opts.PostURL(entry))
	view["date"] = mustache.Text(userDate(post["date"]))
	if post["title"] == "" {
		view["title"] = mustache.Text(content.TitleFromSlug(entry.Slug))
	}

	body := whitespacePair.ReplaceAllString(post.Content(), " ")
	truncated := excerpt.Truncate(body, opts.ExcerptLength)
	view["content"] = mustache.Text(truncated)
	view["more"] = mustache.Bool(truncated != body)
	return view
}

// DefaultPostURL links to a post from the site root.
func DefaultPostURL(e Entry) string {
	return "/" + BlogDir + "/" + e.Slug + "/"
}

// RenderListing renders a listing page with the theme's feed.html. When the
// listing has more posts, continuation(l.Next) supplies the URL of the
// placeholder that loads them.
func (c *Composer) RenderListing(l Listing, continuation func(next int) string, root string, draft bool) (string, error) {
	tmpl, err := c.themeTemplate("feed.html", draft)
	if err != nil {
		return "", err
	}

	placeholder := []mustache.View{}
	if l.More && continuation != nil {
		placeholder = append(placeholder, mustache.View{"url": mustache.Text(continuation(l.Next))})
	}

	view := mustache.View{
		"items":       mustache.List(l.Items...),
		"placeholder": mustache.List(placeholder...),
		"root":        mustache.Text(root),
	}
	out, err := mustache.Render(tmpl, view, c.Partials(draft))
	if err != nil {
		return "", fmt.Errorf("render listing: %w", err)
	}
	return out, nil
}

// Stream renders the first listing page followed by the script that loads
// continuation pages while the reader scrolls.
func (c *Composer) Stream(opts ListingOptions, continuation func(next int) string, root string) (string, error) {
	l, err := c.Listing(opts)
	if err != nil {
		return "", err
	}
	html, err := c.RenderListing(l, continuation, root, opts.Draft)
	if err != nil {
		return "", err
	}
	script, err := defaults.ReadFile("templates/stream.html")
	if err != nil {
		return "", err
	}
	return strings.TrimRight(html, "\n") + "\n" + string(script), nil
}
