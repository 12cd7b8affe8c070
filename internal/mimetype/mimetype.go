package mimetype

import "strings"

// Default is used for extensions missing from the table.
const Default = "application/octet-stream"

var byExtension = map[string]string{
	".html": "text/html",
	".js":   "application/javascript",
	".css":  "text/css",
	".json": "application/json",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".gif":  "image/gif",
	".svg":  "image/svg+xml",
	".ico":  "image/x-icon",
}

// Lookup returns the content type registered for ext (with leading dot).
func Lookup(ext string) (string, bool) {
	ct, ok := byExtension[ext]
	return ct, ok
}

// ForPath picks a content type from the extension of the last path segment.
// Matching is case-sensitive.
func ForPath(p string) string {
	if ct, ok := Lookup(Ext(p)); ok {
		return ct
	}
	return Default
}

// Ext returns the suffix starting at the final dot of the last segment of
// a slash-separated path, or "" if that segment has no dot. A leading dot
// alone (".env") does not start an extension.
func Ext(p string) string {
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		p = p[i+1:]
	}
	if i := strings.LastIndexByte(p, '.'); i > 0 {
		return p[i:]
	}
	return ""
}
