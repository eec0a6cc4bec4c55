package content

import (
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Date layouts accepted in front matter, tried in order.
var dateLayouts = []string{
	"2006-01-02 15:04:05 -07:00",
	"2006-01-02 15:04:05 MST",
	"2006-01-02 15:04:05 -0700",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Output formats for dates.
const (
	UserDateFormat = "Jan 2, 2006"
	AtomDateFormat = "2006-01-02T15:04:05Z"
	RSSDateFormat  = "Mon, 02 Jan 2006 15:04:05 +0000"
)

// ParseTime parses a front-matter timestamp. Values without a zone are UTC.
func ParseTime(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatDate renders t for a target: "user", "atom" or "rss". Feed formats
// are always expressed in UTC. Unknown targets yield "".
func FormatDate(t time.Time, format string) string {
	switch format {
	case "user":
		return t.Format(UserDateFormat)
	case "atom":
		return t.UTC().Format(AtomDateFormat)
	case "rss":
		return t.UTC().Format(RSSDateFormat)
	}
	return ""
}

var datePrefix = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}-`)

// TitleFromSlug turns "2024-03-01-hello_world" into "Hello World".
func TitleFromSlug(slug string) string {
	slug = datePrefix.ReplaceAllString(slug, "")
	slug = strings.NewReplacer("-", " ", "_", " ").Replace(slug)
	// Casers are stateful, so each call gets its own.
	return cases.Title(language.English).String(strings.Join(strings.Fields(slug), " "))
}
