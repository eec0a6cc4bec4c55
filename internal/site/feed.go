package site

import (
	"fmt"
	"strings"
	"time"

	"github.com/conneroisu/folio/internal/content"
	siteerrors "github.com/conneroisu/folio/internal/errors"
	"github.com/conneroisu/folio/internal/excerpt"
	"github.com/conneroisu/folio/internal/mustache"
)

// Feed limits.
const (
	FeedSize          = 10
	FeedExcerptLength = 10000
)

// Feed formats.
const (
	FormatAtom = "atom"
	FormatRSS  = "rss"
)

// FeedOptions configures a syndication feed.
type FeedOptions struct {
	// Format is FormatAtom or FormatRSS.
	Format string
	// Host is the absolute origin, e.g. "https://example.com". The site
	// document's host wins when set.
	Host string
	// SelfURL is the feed's own address. Defaults to
	// Host + "/blog/feed.<format>".
	SelfURL string
	// Template overrides the embedded feed template.
	Template string
	Draft    bool
	// PostURL builds item links. Defaults to Host + "/blog/<slug>/".
	PostURL func(Entry) string
	// Now is used for the feed timestamp when no item is dated.
	Now func() time.Time
}

// Feed renders an Atom or RSS document of the newest qualifying posts.
func (c *Composer) Feed(opts FeedOptions) (string, error) {
	format := strings.ToLower(opts.Format)
	if format != FormatAtom && format != FormatRSS {
		return "", siteerrors.NewValidation(siteerrors.CodeInvalidConfig,
			fmt.Sprintf("unknown feed format %q", opts.Format))
	}

	host := strings.TrimSuffix(opts.Host, "/")
	if c.doc.Host != "" {
		host = strings.TrimSuffix(c.doc.Host, "/")
	}
	if opts.SelfURL == "" {
		opts.SelfURL = host + "/" + BlogDir + "/feed." + format
	}
	if opts.PostURL == nil {
		opts.PostURL = func(e Entry) string {
			return host + DefaultPostURL(e)
		}
	}
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}

	entries, err := c.Posts(opts.Draft)
	if err != nil {
		return "", err
	}

	var (
		items  []mustache.View
		recent time.Time
		dated  bool
	)
	for _, entry := range entries {
		if len(items) == FeedSize {
			break
		}
		post, ok := c.Load(entry, opts.Draft)
		if !ok || !qualifies(post, opts.Draft) {
			continue
		}

		item := postView(post)
		item["url"] = mustache.Text(opts.PostURL(entry))
		if post["title"] == "" {
			item["title"] = mustache.Text(content.TitleFromSlug(entry.Slug))
		}
		if author := post["author"]; author == "" || author == c.doc.Name {
			item["author"] = mustache.Bool(false)
		}

		item["date"] = mustache.Text("")
		item["updated"] = mustache.Text("")
		date, hasDate := content.ParseTime(post["date"])
		if hasDate {
			item["date"] = mustache.Text(content.FormatDate(date, format))
		}
		updated, hasUpdated := content.ParseTime(post["updated"])
		if !hasUpdated {
			updated, hasUpdated = date, hasDate
		}
		if hasUpdated {
			item["updated"] = mustache.Text(content.FormatDate(updated, format))
			if !dated || updated.After(recent) {
				recent = updated
				dated = true
			}
		}

		item["content"] = mustache.Text(mustache.EscapeHTML(excerpt.Truncate(post.Content(), FeedExcerptLength)))
		items = append(items, item)
	}
	if !dated {
		recent = now()
	}

	view := c.siteView().Merge(mustache.View{
		"author":  mustache.Text(c.doc.Name),
		"host":    mustache.Text(host),
		"url":     mustache.Text(opts.SelfURL),
		"updated": mustache.Text(content.FormatDate(recent, format)),
		"items":   mustache.List(items...),
	})

	tmpl := opts.Template
	if tmpl == "" {
		data, err := defaults.ReadFile("templates/feed." + format)
		if err != nil {
			return "", err
		}
		tmpl = string(data)
	}

	out, err := mustache.Render(tmpl, view, nil)
	if err != nil {
		return "", fmt.Errorf("render %s feed: %w", format, err)
	}
	return out, nil
}
