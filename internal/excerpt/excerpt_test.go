package excerpt

import (
	"io"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/net/html"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		length   int
		expected string
	}{
		{
			name:     "closes open tags after the ellipsis",
			text:     "<p>Hello <b>world</b>, this is a test</p>",
			length:   5,
			expected: "<p>Hello&hellip;</p>",
		},
		{
			name:     "word straddling the budget is kept whole",
			text:     "<p>Hello <b>world</b>, this is a test</p>",
			length:   8,
			expected: "<p>Hello <b>world&hellip;</b></p>",
		},
		{
			name:     "short input is unchanged",
			text:     "<p>Hi <em>there</em></p>",
			length:   250,
			expected: "<p>Hi <em>there</em></p>",
		},
		{
			name:     "exact fit is unchanged",
			text:     "<p>Hello</p>",
			length:   5,
			expected: "<p>Hello</p>",
		},
		{
			name:     "trailing markup is kept on exact fit",
			text:     "Hello<br>",
			length:   5,
			expected: "Hello<br>",
		},
		{
			name:     "stops before stop-listed tags",
			text:     "Intro<pre>code</pre> after",
			length:   100,
			expected: "Intro",
		},
		{
			name:     "stop tag inside an open tag",
			text:     "<div>Intro<img src=\"a.png\"> more</div>",
			length:   100,
			expected: "<div>Intro</div>",
		},
		{
			name:     "stop tags are matched case-insensitively",
			text:     "Lead <H2>Section</H2>",
			length:   100,
			expected: "Lead ",
		},
		{
			name:     "entity counts as one unit",
			text:     "a &amp; b",
			length:   3,
			expected: "a &amp;&hellip;",
		},
		{
			name:     "numeric entity",
			text:     "&#8212;&#8212;&#8212;",
			length:   2,
			expected: "&#8212;&#8212;&hellip;",
		},
		{
			name:     "long word is cut at the budget",
			text:     "abcdefghijklmnopqrstuvwxyz0123456789",
			length:   10,
			expected: "abcdefghij&hellip;",
		},
		{
			name:     "word within the overshoot is kept",
			text:     "abcdefghijklmnopqrst",
			length:   10,
			expected: "abcdefghijklmnopqrst",
		},
		{
			name:     "runes not bytes",
			text:     "héllo wörld",
			length:   5,
			expected: "héllo&hellip;",
		},
		{
			name:     "closing tag found case-insensitively",
			text:     "<B>bold</b> tail",
			length:   2,
			expected: "<B>bold&hellip;</b>",
		},
		{
			name:     "unclosed tag stays unbalanced",
			text:     "<p>no closing tag here and more",
			length:   5,
			expected: "<p>no closing&hellip;",
		},
		{
			name:     "nested tags close innermost first",
			text:     "<div><p>one two three</p><p>four</p></div>",
			length:   7,
			expected: "<div><p>one two&hellip;</p></div>",
		},
		{
			name:     "same-name nesting inside another tag",
			text:     "<b>A<i>S<b>Q</b>T</i>R</b>",
			length:   2,
			expected: "<b>A<i>S&hellip;</i></b>",
		},
		{
			name:     "stray angle bracket counts as text",
			text:     "a < b",
			length:   10,
			expected: "a < b",
		},
		{
			name:     "passed closing tags are consumed",
			text:     "<b>x</b> <i>y</i> zzz",
			length:   3,
			expected: "<b>x</b> <i>y&hellip;</i>",
		},
		{
			name:     "comment is kept whole and counts nothing",
			text:     "<p>Intro <!-- note --> more text here and beyond</p>",
			length:   8,
			expected: "<p>Intro <!-- note --> more&hellip;</p>",
		},
		{
			name:     "comment text is not visible",
			text:     "<!-- a long comment -->Hello",
			length:   5,
			expected: "<!-- a long comment -->Hello",
		},
		{
			name:     "unterminated comment is not visible",
			text:     "ab <!-- open",
			length:   2,
			expected: "ab <!-- open",
		},
		{
			name:     "stop tag inside a comment is ignored",
			text:     "Lead <!-- <pre> --> tail",
			length:   100,
			expected: "Lead <!-- <pre> --> tail",
		},
		{
			name:     "closing tag inside a comment is not the closer",
			text:     "<i><b>x <!-- </b> --></b>y z</i>",
			length:   3,
			expected: "<i><b>x <!-- </b> --></b>y&hellip;</i>",
		},
		{
			name:     "doctype is skipped",
			text:     "<!DOCTYPE html><p>Hello world</p>",
			length:   5,
			expected: "<!DOCTYPE html><p>Hello&hellip;</p>",
		},
		{
			name:     "processing instruction is skipped",
			text:     `<?xml version="1.0"?>abc def`,
			length:   3,
			expected: `<?xml version="1.0"?>abc&hellip;`,
		},
		{
			name:     "stray closing tag is kept whole",
			text:     "a</b>bcdefghijklmnopqrstuvwxyz0123456789",
			length:   3,
			expected: "a</b>bc&hellip;",
		},
		{
			name:     "zero budget",
			text:     "<p>text</p>",
			length:   0,
			expected: "&hellip;",
		},
		{
			name:     "empty input",
			text:     "",
			length:   10,
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Truncate(tt.text, tt.length)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestTruncateOutputIsBalanced(t *testing.T) {
	inputs := []string{
		"<div><p>Some <em>emphasised <strong>and strong</strong></em> text</p><p>Second paragraph with <a href=\"/x\">a link</a>.</p></div>",
		"<ul><li>one</li><li>two <span>three</span></li></ul><p>tail text that goes on</p>",
		"<blockquote><p>quoted &amp; escaped &lt;text&gt;</p></blockquote>",
	}

	for _, input := range inputs {
		for length := 0; length <= 60; length += 3 {
			out := Truncate(input, length)
			assert.True(t, balanced(out), "length %d produced %q", length, out)
		}
	}
}

var entityRef = regexp.MustCompile(`&#?[A-Za-z0-9]+;`)

func TestTruncateNeverSplitsEntities(t *testing.T) {
	input := "Caf&eacute; &amp; cr&egrave;me &#8212; br&ucirc;l&eacute;e &lt;3"
	for length := 0; length < 40; length++ {
		out := Truncate(input, length)
		assert.Equal(t, strings.Count(out, "&"), len(entityRef.FindAllString(out, -1)),
			"length %d produced %q", length, out)
	}
}

// balanced reports whether every start tag in s is closed in order. Void
// elements are ignored.
func balanced(s string) bool {
	var stack []string
	z := html.NewTokenizer(strings.NewReader(s))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return z.Err() == io.EOF && len(stack) == 0
		case html.StartTagToken:
			name, _ := z.TagName()
			if !voidElements[string(name)] {
				stack = append(stack, string(name))
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if len(stack) == 0 || stack[len(stack)-1] != string(name) {
				return false
			}
			stack = stack[:len(stack)-1]
		}
	}
}

var voidElements = map[string]bool{
	"br": true, "hr": true, "img": true, "input": true, "meta": true, "link": true,
}
