package mustache

import (
	"fmt"
	"sync"
)

// Kind identifies the variant held by a Value.
type Kind int

const (
	KindText Kind = iota
	KindBool
	KindList
	KindLazy
)

// String returns the name of the kind.
func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindBool:
		return "bool"
	case KindList:
		return "list"
	case KindLazy:
		return "lazy"
	default:
		return "unknown"
	}
}

// Value is one entry of a View: text, a boolean, a list of nested views, or
// text computed on first use.
type Value struct {
	kind Kind
	text string
	flag bool
	list []View
	lazy *lazyText
}

type lazyText struct {
	once sync.Once
	fn   func() string
	text string
}

func (l *lazyText) get() string {
	l.once.Do(func() {
		if l.fn != nil {
			l.text = l.fn()
		}
	})
	return l.text
}

// Text returns a text value.
func Text(s string) Value {
	return Value{kind: KindText, text: s}
}

// Bool returns a boolean value.
func Bool(b bool) Value {
	return Value{kind: KindBool, flag: b}
}

// List returns a list value; sections over it render once per item.
func List(items ...View) Value {
	return Value{kind: KindList, list: items}
}

// Lazy returns a value computed by fn the first time it is needed. Copies of
// the value share the result, so fn runs at most once.
func Lazy(fn func() string) Value {
	return Value{kind: KindLazy, lazy: &lazyText{fn: fn}}
}

// Kind reports the variant.
func (v Value) Kind() Kind {
	return v.kind
}

// Text returns the string for text and lazy values. Lazy values are
// evaluated here.
func (v Value) Text() (string, bool) {
	switch v.kind {
	case KindText:
		return v.text, true
	case KindLazy:
		return v.lazy.get(), true
	}
	return "", false
}

// Bool returns the flag of a boolean value.
func (v Value) Bool() (bool, bool) {
	return v.flag, v.kind == KindBool
}

// Items returns the views of a list value.
func (v Value) Items() []View {
	if v.kind != KindList {
		return nil
	}
	return v.list
}

// View maps names to values for one render pass.
type View map[string]Value

// Merge returns a new view holding v overlaid with over; keys in over win.
func (v View) Merge(over View) View {
	out := make(View, len(v)+len(over))
	for k, val := range v {
		out[k] = val
	}
	for k, val := range over {
		out[k] = val
	}
	return out
}

// FromMap converts decoded JSON or YAML data into a view. Strings become
// text, booleans stay booleans, numbers are formatted as text and slices of
// objects become lists. Nested objects and nulls are dropped since no
// template construct can address them.
func FromMap(data map[string]interface{}) View {
	view := make(View, len(data))
	for k, raw := range data {
		if val, ok := FromAny(raw); ok {
			view[k] = val
		}
	}
	return view
}

// FromAny converts a single decoded value. See FromMap.
func FromAny(raw interface{}) (Value, bool) {
	switch x := raw.(type) {
	case Value:
		return x, true
	case string:
		return Text(x), true
	case bool:
		return Bool(x), true
	case int, int64, int32, uint, uint64, uint32, float64, float32:
		return Text(fmt.Sprint(x)), true
	case []View:
		return List(x...), true
	case View:
		return List(x), true
	case []interface{}:
		items := make([]View, 0, len(x))
		for _, item := range x {
			if m, ok := item.(map[string]interface{}); ok {
				items = append(items, FromMap(m))
			}
		}
		return List(items...), true
	case []map[string]interface{}:
		items := make([]View, 0, len(x))
		for _, m := range x {
			items = append(items, FromMap(m))
		}
		return List(items...), true
	}
	return Value{}, false
}
