// Package mustache implements the small logic-less template language used
// by folio themes.
//
// Supported tags:
//
//	{{name}}             HTML-escaped variable
//	{{{name}}}           raw variable
//	{{#name}}...{{/name}} section, repeated for lists, kept for true values
//	{{> name}}           partial, resolved through a Partials implementation
//
// Names match [-_/.\w]+ and may be padded with whitespace inside the braces.
// Anything that does not resolve is left in the output as written, so a page
// rendered without its data still shows where the data would go.
package mustache

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	siteerrors "github.com/conneroisu/folio/internal/errors"
)

// MaxPartialDepth bounds partial nesting so a partial that includes itself
// fails instead of recursing forever.
const MaxPartialDepth = 32

// Partials resolves partial names to template source.
type Partials interface {
	Partial(name string) (string, error)
}

// PartialFunc adapts a function to Partials.
type PartialFunc func(name string) (string, error)

// Partial implements Partials.
func (f PartialFunc) Partial(name string) (string, error) {
	return f(name)
}

// PartialMap serves partials from memory. Unknown names resolve to "".
type PartialMap map[string]string

// Partial implements Partials.
func (m PartialMap) Partial(name string) (string, error) {
	return m[name], nil
}

var (
	rawTag     = regexp.MustCompile(`^\{\{\{\s*([-_/.\w]+)\s*\}\}\}`)
	openTag    = regexp.MustCompile(`^\{\{#\s*([-_/.\w]+)\s*\}\}\s?`)
	closeTag   = regexp.MustCompile(`^\{\{/\s*([-_/.\w]+)\s*\}\}\s?`)
	partialTag = regexp.MustCompile(`^\{\{>\s*([-_/.\w]+)\s*\}\}`)
	escapedTag = regexp.MustCompile(`^\{\{\s*([-_/.\w]+)\s*\}\}`)
)

type node interface{}

type textNode string

type variableNode struct {
	name    string
	source  string
	escaped bool
}

type sectionNode struct {
	name     string
	children []node
}

type partialNode struct {
	name   string
	source string
}

// Template is a parsed template. It is immutable and safe for concurrent
// use.
type Template struct {
	nodes []node
}

type frame struct {
	name   string
	source string
	nodes  []node
}

// Parse builds the node tree for src. Parsing never fails: unclosed
// sections and stray closing tags are kept as literal text.
func Parse(src string) *Template {
	stack := []*frame{{}}
	top := func() *frame { return stack[len(stack)-1] }
	// unwind turns the top frame back into literal text in its parent.
	unwind := func() {
		f := top()
		stack = stack[:len(stack)-1]
		parent := top()
		parent.nodes = append(parent.nodes, textNode(f.source))
		parent.nodes = append(parent.nodes, f.nodes...)
	}

	text := 0
	flush := func(end int) {
		if end > text {
			top().nodes = append(top().nodes, textNode(src[text:end]))
		}
	}

	for i := 0; i < len(src); {
		next := strings.Index(src[i:], "{{")
		if next < 0 {
			break
		}
		i += next
		rest := src[i:]

		var m []string
		switch {
		case strings.HasPrefix(rest, "{{{") && rawTag.MatchString(rest):
			m = rawTag.FindStringSubmatch(rest)
			flush(i)
			top().nodes = append(top().nodes, variableNode{name: m[1], source: m[0]})
		case strings.HasPrefix(rest, "{{#") && openTag.MatchString(rest):
			m = openTag.FindStringSubmatch(rest)
			flush(i)
			stack = append(stack, &frame{name: m[1], source: m[0]})
		case strings.HasPrefix(rest, "{{/") && closeTag.MatchString(rest):
			m = closeTag.FindStringSubmatch(rest)
			flush(i)
			match := -1
			for j := len(stack) - 1; j > 0; j-- {
				if stack[j].name == m[1] {
					match = j
					break
				}
			}
			if match < 0 {
				top().nodes = append(top().nodes, textNode(m[0]))
				break
			}
			for len(stack)-1 > match {
				unwind()
			}
			f := top()
			stack = stack[:len(stack)-1]
			top().nodes = append(top().nodes, sectionNode{name: f.name, children: f.nodes})
		case strings.HasPrefix(rest, "{{>") && partialTag.MatchString(rest):
			m = partialTag.FindStringSubmatch(rest)
			flush(i)
			top().nodes = append(top().nodes, partialNode{name: m[1], source: m[0]})
		case escapedTag.MatchString(rest):
			m = escapedTag.FindStringSubmatch(rest)
			flush(i)
			top().nodes = append(top().nodes, variableNode{name: m[1], source: m[0], escaped: true})
		}

		if m == nil {
			i++
			continue
		}
		i += len(m[0])
		text = i
	}
	flush(len(src))

	for len(stack) > 1 {
		unwind()
	}
	return &Template{nodes: stack[0].nodes}
}

// Execute renders the template against view, writing to w. partials may be
// nil, in which case partial tags are written unchanged.
func (t *Template) Execute(w io.Writer, view View, partials Partials) error {
	r := &renderer{w: w, partials: partials}
	return r.render(t.nodes, view)
}

// Render parses and executes src in one step.
func Render(src string, view View, partials Partials) (string, error) {
	var b strings.Builder
	if err := Parse(src).Execute(&b, view, partials); err != nil {
		return "", err
	}
	return b.String(), nil
}

type renderer struct {
	w        io.Writer
	partials Partials
	depth    int
}

func (r *renderer) write(s string) error {
	_, err := io.WriteString(r.w, s)
	return err
}

func (r *renderer) render(nodes []node, view View) error {
	for _, n := range nodes {
		var err error
		switch n := n.(type) {
		case textNode:
			err = r.write(string(n))
		case variableNode:
			err = r.variable(n, view)
		case sectionNode:
			err = r.section(n, view)
		case partialNode:
			err = r.partial(n, view)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *renderer) variable(n variableNode, view View) error {
	value, ok := view[n.name]
	if !ok {
		return r.write(n.source)
	}
	s, ok := value.Text()
	if !ok {
		return r.write(n.source)
	}
	if n.escaped {
		s = EscapeHTML(s)
	}
	return r.write(s)
}

func (r *renderer) section(n sectionNode, view View) error {
	value, ok := view[n.name]
	if !ok {
		return nil
	}
	switch value.Kind() {
	case KindList:
		for _, item := range value.Items() {
			if err := r.render(n.children, view.Merge(item)); err != nil {
				return err
			}
		}
		return nil
	case KindBool:
		if b, _ := value.Bool(); !b {
			return nil
		}
	default:
		if s, _ := value.Text(); s == "" {
			return nil
		}
	}
	return r.render(n.children, view)
}

func (r *renderer) partial(n partialNode, view View) error {
	if r.partials == nil {
		return r.write(n.source)
	}
	if r.depth >= MaxPartialDepth {
		return siteerrors.NewTemplate(siteerrors.CodePartialDepth,
			fmt.Sprintf("partial %q nested deeper than %d", n.name, MaxPartialDepth))
	}
	src, err := r.partials.Partial(n.name)
	if err != nil {
		return fmt.Errorf("partial %q: %w", n.name, err)
	}
	r.depth++
	defer func() { r.depth-- }()
	return r.render(Parse(src).nodes, view)
}

var htmlEscaper = strings.NewReplacer(
	`&`, "&amp;",
	`<`, "&lt;",
	`>`, "&gt;",
	`"`, "&quot;",
	`'`, "&#39;",
	`/`, "&#x2F;",
	"`", "&#x60;",
	`=`, "&#x3D;",
)

// EscapeHTML escapes & < > " ' / ` and = for safe inclusion in HTML text and
// attribute values.
func EscapeHTML(s string) string {
	return htmlEscaper.Replace(s)
}
