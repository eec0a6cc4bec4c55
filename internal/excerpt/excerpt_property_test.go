//go:build property

package excerpt

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

var (
	words    = []string{"lorem", "ipsum", "héllo", "naïve", "x", "supercalifragilisticexpialidocious"}
	entities = []string{"&amp;", "&lt;", "&#8212;", "&eacute;"}
	tags     = []string{"p", "b", "em", "span", "a"}
)

// document turns a list of opcodes into balanced HTML, with comments but
// without stop-listed tags. It also returns the visible length as Truncate counts it.
func document(ops []int) (string, int) {
	var b strings.Builder
	var open []string
	visible := 0
	for _, op := range ops {
		switch {
		case op < 4:
			w := words[op%len(words)]
			if op == 3 {
				w = words[5]
			}
			b.WriteString(w)
			visible += utf8.RuneCountInString(w)
		case op == 4:
			b.WriteString(entities[len(open)%len(entities)])
			visible++
		case op == 5:
			b.WriteString(" ")
			visible++
		case op < 9:
			tag := tags[(op+len(open))%len(tags)]
			b.WriteString("<" + tag + ">")
			open = append(open, tag)
		case op == 9:
			if len(open) > 0 {
				b.WriteString("</" + open[len(open)-1] + ">")
				open = open[:len(open)-1]
			}
		default:
			b.WriteString("<!-- note -->")
		}
	}
	for i := len(open) - 1; i >= 0; i-- {
		b.WriteString("</" + open[i] + ">")
	}
	return b.String(), visible
}

func TestTruncateProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(4242)
	parameters.MinSuccessfulTests = 300

	properties := gopter.NewProperties(parameters)
	opsGen := gen.SliceOf(gen.IntRange(0, 10))

	properties.Property("output tags are balanced", prop.ForAll(
		func(ops []int, length int) bool {
			text, _ := document(ops)
			return balanced(Truncate(text, length))
		},
		opsGen, gen.IntRange(0, 120),
	))

	properties.Property("text within budget is returned unchanged", prop.ForAll(
		func(ops []int, slack int) bool {
			text, visible := document(ops)
			return Truncate(text, visible+slack) == text
		},
		opsGen, gen.IntRange(0, 10),
	))

	properties.Property("entities are never split", prop.ForAll(
		func(ops []int, length int) bool {
			text, _ := document(ops)
			out := Truncate(text, length)
			return strings.Count(out, "&") == len(entityRef.FindAllString(out, -1))
		},
		opsGen, gen.IntRange(0, 120),
	))

	properties.Property("output is the input or a prefix with an ellipsis", prop.ForAll(
		func(ops []int, length int) bool {
			text, _ := document(ops)
			out := Truncate(text, length)
			if out == text {
				return true
			}
			cut := strings.Index(out, Ellipsis)
			return cut >= 0 && strings.HasPrefix(text, out[:cut])
		},
		opsGen, gen.IntRange(0, 120),
	))

	properties.Property("comments are never split", prop.ForAll(
		func(ops []int, length int) bool {
			text, _ := document(ops)
			out := Truncate(text, length)
			return strings.Count(out, "<!--") == strings.Count(out, "-->")
		},
		opsGen, gen.IntRange(0, 120),
	))

	properties.Property("output is valid UTF-8", prop.ForAll(
		func(ops []int, length int) bool {
			text, _ := document(ops)
			return utf8.ValidString(Truncate(text, length))
		},
		opsGen, gen.IntRange(0, 120),
	))

	properties.TestingRun(t)
}
