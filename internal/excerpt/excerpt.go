// Package excerpt shortens HTML to a visible-character budget while keeping
// the markup well formed.
//
// Only visible text counts toward the budget: each rune of plain text, each
// space and each entity reference is one unit; tags count zero. Every tag
// opened inside the excerpt is closed again, either by its own closing tag
// inside the kept prefix or by a copy appended after the cut.
package excerpt

import (
	"regexp"
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"
)

// Ellipsis is appended when visible text was cut off.
const Ellipsis = "&hellip;"

// Overshoot is how far a single word may run past the budget before it is
// cut mid-word.
const Overshoot = 15

var (
	openTag = regexp.MustCompile(`^<(\w+)[^>]*>`)
	anyTag  = regexp.MustCompile(`^</?(\w+)[^>]*>`)
	entity  = regexp.MustCompile(`^#?[A-Za-z0-9]+;`)
	// declaration matches doctypes, processing instructions and closing
	// tags, which are kept whole and count nothing.
	declaration = regexp.MustCompile(`^<(?:[!?]|/\w)[^>]*>`)

	// tagPatterns caches one compiled pattern per tag name.
	tagPatterns sync.Map
)

// StopTags end an excerpt immediately: the tag and everything after it are
// dropped.
var StopTags = map[string]bool{
	"pre":    true,
	"code":   true,
	"img":    true,
	"table":  true,
	"style":  true,
	"script": true,
	"h2":     true,
	"h3":     true,
}

// Truncate returns a prefix of text holding at most length visible units
// (plus the tolerated overshoot of a trailing word), followed by Ellipsis
// when visible text was dropped and by the closing tags still owed.
func Truncate(text string, length int) string {
	pending := map[int]string{}
	count, index := 0, 0
	stopped := false

walk:
	for count < length && index < len(text) {
		if closer, ok := pending[index]; ok {
			delete(pending, index)
			index += len(closer)
			continue
		}

		switch text[index] {
		case '<':
			if n := markup(text[index:]); n > 0 {
				index += n
				continue
			}
			m := openTag.FindStringSubmatch(text[index:])
			if m == nil {
				index++
				count++
				continue
			}
			name := strings.ToLower(m[1])
			if StopTags[name] {
				stopped = true
				break walk
			}
			index += len(m[0])
			if strings.HasSuffix(m[0], "/>") {
				continue
			}
			if at, closer, ok := findCloser(text, index, name); ok {
				pending[at] = closer
			}

		case '&':
			index++
			if body := entity.FindString(text[index:]); body != "" {
				index += len(body)
			}
			count++

		case ' ':
			index++
			count++

		default:
			run := strings.IndexAny(text[index:], " <&")
			if run < 0 {
				run = len(text) - index
			}
			runes := utf8.RuneCountInString(text[index : index+run])
			remaining := length - count
			if runes > remaining+Overshoot {
				run = runeOffset(text[index:], remaining)
				runes = remaining
			}
			index += run
			count += runes
		}
	}

	rest := text[index:]
	visible, blocked := inspect(rest)
	if !stopped && !visible && !blocked {
		return text
	}

	var b strings.Builder
	b.Grow(index + len(Ellipsis) + 8*len(pending))
	b.WriteString(text[:index])
	if !stopped && count >= length && visible {
		b.WriteString(Ellipsis)
	}

	positions := make([]int, 0, len(pending))
	for at := range pending {
		positions = append(positions, at)
	}
	sort.Ints(positions)
	for _, at := range positions {
		b.WriteString(pending[at])
	}
	return b.String()
}

// markup returns the length of the comment, declaration or closing tag at
// the start of s, or 0. An unterminated comment runs to the end of s.
func markup(s string) int {
	if strings.HasPrefix(s, "<!--") {
		if end := strings.Index(s[4:], "-->"); end >= 0 {
			return 4 + end + 3
		}
		return len(s)
	}
	return len(declaration.FindString(s))
}

// findCloser locates the closing tag matching an opening tag of name that
// ends at from. Nested tags of the same name are skipped over, so the result
// is the closer at the same depth.
func findCloser(text string, from int, name string) (int, string, bool) {
	depth := 1
	comments := commentSpans(text[from:])
	for _, loc := range tagPattern(name).FindAllStringSubmatchIndex(text[from:], -1) {
		for len(comments) > 0 && comments[0][1] <= loc[0] {
			comments = comments[1:]
		}
		if len(comments) > 0 && comments[0][0] <= loc[0] {
			continue
		}
		tag := text[from+loc[0] : from+loc[1]]
		switch {
		case loc[3] > loc[2]:
			depth--
			if depth == 0 {
				return from + loc[0], tag, true
			}
		case !strings.HasSuffix(tag, "/>"):
			depth++
		}
	}
	return 0, "", false
}

// commentSpans returns the [start, end) offsets of the comments in s.
func commentSpans(s string) [][2]int {
	var spans [][2]int
	for at := 0; ; {
		start := strings.Index(s[at:], "<!--")
		if start < 0 {
			return spans
		}
		start += at
		at = start + markup(s[start:])
		spans = append(spans, [2]int{start, at})
	}
}

// tagPattern matches opening and closing tags of name, case-insensitively.
func tagPattern(name string) *regexp.Regexp {
	if re, ok := tagPatterns.Load(name); ok {
		return re.(*regexp.Regexp)
	}
	re := regexp.MustCompile(`(?i)<(/?)` + regexp.QuoteMeta(name) + `\b[^>]*>`)
	tagPatterns.Store(name, re)
	return re
}

// runeOffset returns the byte offset of the n-th rune of s.
func runeOffset(s string, n int) int {
	if n <= 0 {
		return 0
	}
	seen := 0
	for i := range s {
		if seen == n {
			return i
		}
		seen++
	}
	return len(s)
}

// inspect reports whether rest still holds visible text outside of tags, and
// whether it contains a stop-listed tag.
func inspect(rest string) (visible, blocked bool) {
	for i := 0; i < len(rest); {
		if rest[i] == '<' {
			if n := markup(rest[i:]); n > 0 {
				i += n
				continue
			}
			if m := anyTag.FindStringSubmatch(rest[i:]); m != nil {
				if StopTags[strings.ToLower(m[1])] {
					blocked = true
				}
				i += len(m[0])
				continue
			}
		}
		r, size := utf8.DecodeRuneInString(rest[i:])
		if !unicode.IsSpace(r) {
			visible = true
		}
		i += size
	}
	return visible, blocked
}
