// Package content loads posts and pages: front matter, body and the
// Markdown conversion applied to .md sources.
package content

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// ContentKey holds the body of a post. It is always present.
const ContentKey = "content"

// Post is front-matter metadata plus the body under ContentKey.
type Post map[string]string

// Content returns the post body.
func (p Post) Content() string {
	return p[ContentKey]
}

// State returns the "state" field; only "post" is published.
func (p Post) State() string {
	return p["state"]
}

// Published reports whether the post is in the "post" state.
func (p Post) Published() bool {
	return p.State() == "post"
}

// Clone returns a shallow copy the caller may modify.
func (p Post) Clone() Post {
	c := make(Post, len(p))
	for k, v := range p {
		c[k] = v
	}
	return c
}

var lineBreak = regexp.MustCompile(`\r\n?|\n`)

// Parse splits a source file into metadata and body. Lines between the first
// two lines starting with "---" are "key: value" metadata; any other line,
// including later "---" rules, belongs to the body.
func Parse(data string) Post {
	post := Post{}
	body := []string{}
	markers := 0

	for _, line := range lineBreak.Split(data, -1) {
		if markers < 2 && strings.HasPrefix(line, "---") {
			markers++
			continue
		}
		if markers != 1 {
			body = append(body, line)
			continue
		}
		index := strings.Index(line, ":")
		if index < 0 {
			continue
		}
		key := strings.TrimSpace(line[:index])
		if key == "" {
			continue
		}
		post[key] = unquote(strings.TrimSpace(line[index+1:]))
	}

	post[ContentKey] = strings.Join(body, "\n")
	return post
}

func unquote(value string) string {
	if len(value) >= 2 && value[0] == '"' && value[len(value)-1] == '"' {
		return value[1 : len(value)-1]
	}
	return value
}

// Load reads and parses the file at path. It reports false when the file is
// missing, a directory or unreadable. Markdown bodies are converted to HTML;
// a conversion failure keeps the raw body.
func Load(path string) (Post, bool) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return nil, false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}

	post := Parse(string(data))
	if IsMarkdown(path) {
		if html, err := Markdown(post.Content()); err == nil {
			post[ContentKey] = html
		}
	}
	return post, true
}

// IsMarkdown reports whether path names a Markdown source.
func IsMarkdown(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return true
	}
	return false
}
