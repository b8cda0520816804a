package cloud

import (
	"path"
	"strings"
)

// Filter narrows a traversal. The zero value admits everything.
type Filter struct {
	// Extensions is a file-extension allow-list (".md", ".pdf"); empty
	// admits all extensions. Matching is case-insensitive.
	Extensions []string

	// ExcludePatterns drop any item whose path contains a pattern as a
	// substring (".obsidian" excludes the whole directory subtree).
	ExcludePatterns []string

	// IncludedPaths, when non-empty, is an allow-list of sub-paths. An item
	// is admitted if its path is a prefix of, or is prefixed by, at least
	// one allowed path — the two-way rule lets traversal descend through
	// an allowed path's ancestors.
	IncludedPaths []string
}

// admitPath applies the exclude and include rules common to files and
// directories.
func (f Filter) admitPath(p string) bool {
	for _, pattern := range f.ExcludePatterns {
		if pattern != "" && strings.Contains(p, pattern) {
			return false
		}
	}

	if len(f.IncludedPaths) == 0 {
		return true
	}
	for _, inc := range f.IncludedPaths {
		if inc == "" {
			continue
		}
		if strings.HasPrefix(p, inc) || strings.HasPrefix(inc, p) {
			return true
		}
	}
	return false
}

// allowsExtension reports whether a file name passes the extension allow-list.
func (f Filter) allowsExtension(name string) bool {
	if len(f.Extensions) == 0 {
		return true
	}
	ext := strings.ToLower(path.Ext(name))
	for _, allowed := range f.Extensions {
		if strings.ToLower(allowed) == ext {
			return true
		}
	}
	return false
}
