package syncplan

import "strings"

const manifestFile = "manifest.json"

// Canonicalize reduces an add-on transport URL to a comparison key. The
// scheme, query and fragment are dropped, the host is lower-cased, and a
// trailing "manifest.json" and trailing slashes are ignored. The path
// keeps its case since add-ons embed configuration tokens there.
func Canonicalize(raw string) string {
	s := strings.TrimSpace(raw)
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+len("://"):]
	}
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}

	host, path, _ := strings.Cut(s, "/")
	host = strings.ToLower(host)

	path = strings.TrimRight(path, "/")
	if path == manifestFile || strings.HasSuffix(path, "/"+manifestFile) {
		path = strings.TrimSuffix(path, manifestFile)
		path = strings.TrimRight(path, "/")
	}

	if path == "" {
		return host
	}
	return host + "/" + path
}

// looksLikeURL tells protected URLs apart from protected names.
func looksLikeURL(s string) bool {
	return strings.Contains(s, "://") || strings.HasSuffix(strings.TrimRight(s, "/"), manifestFile)
}
