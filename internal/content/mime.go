package content

import "strings"

// contentTypes is the fixed table of extensions served from the content
// tree. Anything else is treated as a page or rejected.
var contentTypes = map[string]string{
	".html":  "text/html; charset=utf-8",
	".js":    "text/javascript; charset=utf-8",
	".css":   "text/css; charset=utf-8",
	".png":   "image/png",
	".gif":   "image/gif",
	".jpg":   "image/jpeg",
	".jpeg":  "image/jpeg",
	".ico":   "image/x-icon",
	".svg":   "image/svg+xml",
	".rss":   "application/rss+xml; charset=utf-8",
	".atom":  "application/atom+xml; charset=utf-8",
	".json":  "application/json; charset=utf-8",
	".xml":   "application/xml; charset=utf-8",
	".txt":   "text/plain; charset=utf-8",
	".zip":   "application/zip",
	".ttf":   "font/ttf",
	".otf":   "font/otf",
	".eot":   "application/vnd.ms-fontobject",
	".woff":  "font/woff",
	".woff2": "font/woff2",
}

// ContentType returns the MIME type for a file extension such as ".css".
func ContentType(ext string) (string, bool) {
	t, ok := contentTypes[strings.ToLower(ext)]
	return t, ok
}
