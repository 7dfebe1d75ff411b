package resolve

import (
	"path"
	"path/filepath"
	"strings"
)

const (
	partialPrefix = "_"
	indexName     = "index"
)

// Unquote strips one pair of matching single or double quotes.
func Unquote(target string) string {
	target = strings.TrimSpace(target)

	if len(target) >= 2 {
		first, last := target[0], target[len(target)-1]
		if (first == '"' || first == '\'') && first == last {
			return target[1 : len(target)-1]
		}
	}

	return target
}

// IsPlainCSS reports whether an unquoted target is left to the browser or to the
// compiler's built-in modules rather than resolved to a stylesheet on disk.
func IsPlainCSS(target string) bool {
	lower := strings.ToLower(target)

	switch {
	case strings.HasPrefix(lower, "url("),
		strings.HasPrefix(lower, "http://"),
		strings.HasPrefix(lower, "https://"),
		strings.HasPrefix(lower, "//"),
		strings.HasPrefix(lower, "sass:"):
		return true
	}

	return strings.HasSuffix(lower, ".css")
}

// Candidates returns every path a direct import target may refer to, in precedence
// order. Precedence is root-major: all variants under one search root are tried
// before the next root. Within a root each extension is tried in order, the
// underscored partial before the plain name, and index files come last.
func Candidates(target string, roots, exts []string) []string {
	slashed := filepath.ToSlash(target)
	if strings.HasSuffix(slashed, "/") {
		return nil
	}

	dir, base := path.Split(slashed)
	names := fileNames(base, exts)

	var indexes []string
	if !IsStylesheet(base) {
		indexes = fileNames(indexName, exts)
	}

	if filepath.IsAbs(target) {
		roots = []string{""}
	}

	out := make([]string, 0, len(roots)*(len(names)+len(indexes)))
	seen := make(map[string]struct{}, cap(out))

	add := func(p string) {
		p = filepath.Clean(p)
		if _, dup := seen[p]; dup {
			return
		}

		seen[p] = struct{}{}
		out = append(out, p)
	}

	for _, root := range roots {
		for _, name := range names {
			add(filepath.Join(root, filepath.FromSlash(dir), name))
		}

		for _, name := range indexes {
			add(filepath.Join(root, filepath.FromSlash(slashed), name))
		}
	}

	return out
}

// fileNames expands one base name into its partial/extension variants.
func fileNames(base string, exts []string) []string {
	variants := func(name string) []string {
		if strings.HasPrefix(name, partialPrefix) {
			return []string{name}
		}

		return []string{partialPrefix + name, name}
	}

	if IsStylesheet(base) {
		return variants(base)
	}

	names := make([]string, 0, len(exts)*2)
	for _, ext := range exts {
		names = append(names, variants(base+ext)...)
	}

	return names
}
