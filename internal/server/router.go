package server

import (
	"net/http"
	"regexp"
	"strings"
)

// Router dispatches requests to the first route whose glob pattern matches
// the whole path. Only GET and HEAD are served.
//
// Patterns use "*" as the only wildcard; it matches any run of characters,
// slashes included. "/blog" therefore matches only "/blog" while "/blog/*"
// matches everything below it. Matching ignores case.
type Router struct {
	routes []route
}

type route struct {
	pattern string
	re      *regexp.Regexp
	handler http.Handler
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{}
}

// Handle registers handler for pattern. Routes are tried in registration
// order.
func (r *Router) Handle(pattern string, handler http.Handler) {
	r.routes = append(r.routes, route{
		pattern: pattern,
		re:      compileGlob(pattern),
		handler: handler,
	})
}

// HandleFunc registers fn for pattern.
func (r *Router) HandleFunc(pattern string, fn http.HandlerFunc) {
	r.Handle(pattern, fn)
}

// Match returns the pattern that would serve path, or "" when none does.
func (r *Router) Match(path string) string {
	for _, rt := range r.routes {
		if rt.re.MatchString(path) {
			return rt.pattern
		}
	}
	return ""
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}
	for _, rt := range r.routes {
		if rt.re.MatchString(req.URL.Path) {
			rt.handler.ServeHTTP(w, req)
			return
		}
	}
	http.NotFound(w, req)
}

// compileGlob turns a route pattern into an anchored, case-insensitive
// regular expression.
func compileGlob(pattern string) *regexp.Regexp {
	parts := strings.Split(pattern, "*")
	for i, part := range parts {
		parts[i] = regexp.QuoteMeta(part)
	}
	return regexp.MustCompile("(?i)^" + strings.Join(parts, ".*") + "$")
}
