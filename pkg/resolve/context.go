package resolve

import (
	"path/filepath"
	"strings"
)

// Accepted stylesheet extensions, in default preference order.
const (
	ExtSCSS = ".scss"
	ExtSASS = ".sass"
)

// Context is the immutable per-call configuration of a resolution.
// The importer directory is not stored: it is derived from the importer path of each
// file visited, so transitive imports resolve relative to the file that wrote them.
type Context struct {
	// RootPath is the project root, searched after the importer's directory.
	RootPath string
	// AltPaths are additional search roots in priority order. Relative entries are
	// taken relative to RootPath.
	AltPaths []string
	// Glob enables expansion of wildcard imports such as "dir/*".
	Glob bool
	// Extensions overrides the extension preference order. Empty means the
	// importer's own extension first, then the other one.
	Extensions []string
}

// SearchRoots returns the ordered, de-duplicated roots for a file in importerDir:
// importerDir, then RootPath, then AltPaths.
func (c Context) SearchRoots(importerDir string) []string {
	roots := make([]string, 0, len(c.AltPaths)+2)
	seen := make(map[string]struct{}, cap(roots))

	add := func(root string) {
		if root == "" {
			return
		}

		root = filepath.Clean(root)
		if _, dup := seen[root]; dup {
			return
		}

		seen[root] = struct{}{}
		roots = append(roots, root)
	}

	add(importerDir)
	add(c.RootPath)

	for _, alt := range c.AltPaths {
		if alt != "" && !filepath.IsAbs(alt) && c.RootPath != "" {
			alt = filepath.Join(c.RootPath, alt)
		}

		add(alt)
	}

	return roots
}

// ExtensionOrder returns the extensions tried for an import written in importerPath.
func (c Context) ExtensionOrder(importerPath string) []string {
	if len(c.Extensions) > 0 {
		out := make([]string, 0, len(c.Extensions))

		for _, ext := range c.Extensions {
			ext = strings.ToLower(strings.TrimSpace(ext))
			if ext == "" {
				continue
			}

			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}

			out = append(out, ext)
		}

		if len(out) > 0 {
			return out
		}
	}

	if strings.EqualFold(filepath.Ext(importerPath), ExtSASS) {
		return []string{ExtSASS, ExtSCSS}
	}

	return []string{ExtSCSS, ExtSASS}
}

// IsStylesheet reports whether name carries an accepted stylesheet extension.
func IsStylesheet(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))

	return ext == ExtSCSS || ext == ExtSASS
}

// IsPartial reports whether the base name of path follows the partial convention.
func IsPartial(path string) bool {
	return strings.HasPrefix(filepath.Base(path), "_")
}
