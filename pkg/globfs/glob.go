// Package globfs expands wildcard patterns against a billy filesystem.
package globfs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

const (
	// recursiveToken is the pattern segment that requests descent into subdirectories.
	recursiveToken = "**"
	separator      = "/"
)

// ErrBadPattern is returned for patterns doublestar cannot compile.
var ErrBadPattern = errors.New("bad glob pattern")

// HasMeta reports whether s contains glob metacharacters.
func HasMeta(s string) bool {
	return strings.ContainsAny(s, "*?[{")
}

// Split cuts a slash-separated pattern before its first segment holding a
// metacharacter. It returns the literal directory prefix and the remaining pattern:
// "sub/**/*" gives ("sub", "**/*") and "*.scss" gives ("", "*.scss"). A pattern
// without metacharacters splits at its last slash.
func Split(pattern string) (string, string) {
	pattern = filepath.ToSlash(pattern)
	segments := strings.Split(pattern, separator)

	for i, segment := range segments {
		if HasMeta(segment) {
			dir := strings.Join(segments[:i], separator)
			if i == 1 && dir == "" {
				dir = separator
			}

			return dir, strings.Join(segments[i:], separator)
		}
	}

	i := strings.LastIndex(pattern, separator)
	if i < 0 {
		return "", pattern
	}

	return pattern[:i], pattern[i+1:]
}

// Glob returns the regular files under dir whose path relative to dir matches pattern.
// Results are absolute (joined with dir) and sorted. Only dir itself is listed for a
// single-segment pattern; subdirectories are visited when the pattern spans several
// segments, and to any depth only when it contains "**". A missing dir yields no
// matches and no error.
func Glob(fsys billy.Filesystem, dir, pattern string) ([]string, error) {
	pattern = filepath.ToSlash(pattern)

	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("%w: %q", ErrBadPattern, pattern)
	}

	var (
		matches []string
		err     error
	)

	deep := strings.Contains(pattern, recursiveToken)

	if deep || strings.Contains(pattern, separator) {
		matches, err = walkMatches(fsys, dir, pattern, deep)
	} else {
		matches, err = listMatches(fsys, dir, pattern)
	}

	if err != nil {
		return nil, err
	}

	sort.Strings(matches)

	return matches, nil
}

func listMatches(fsys billy.Filesystem, dir, pattern string) ([]string, error) {
	entries, err := fsys.ReadDir(dir)
	if err != nil {
		if IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("globfs: readdir %q: %w", dir, err)
	}

	var matches []string

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		if doublestar.MatchUnvalidated(pattern, entry.Name()) {
			matches = append(matches, filepath.Join(dir, entry.Name()))
		}
	}

	return matches, nil
}

// walkMatches matches every file below dir. Without deep, directories deeper than
// the pattern's segment count are skipped.
func walkMatches(fsys billy.Filesystem, dir, pattern string, deep bool) ([]string, error) {
	var matches []string

	maxDepth := strings.Count(pattern, separator)

	walkErr := util.Walk(fsys, dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if IsNotExist(err) {
				return nil
			}

			return err
		}

		rel, relErr := filepath.Rel(dir, path)
		if relErr != nil {
			return fmt.Errorf("relative path of %q: %w", path, relErr)
		}

		if info.IsDir() {
			if !deep && rel != "." && strings.Count(filepath.ToSlash(rel), separator) >= maxDepth {
				return filepath.SkipDir
			}

			return nil
		}

		if doublestar.MatchUnvalidated(pattern, filepath.ToSlash(rel)) {
			matches = append(matches, filepath.Join(dir, rel))
		}

		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("globfs: walk %q: %w", dir, walkErr)
	}

	return matches, nil
}

// IsNotExist reports whether err means the path, or one of its parents, is absent.
func IsNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist) || errors.Is(err, syscall.ENOTDIR)
}
