package platform

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"unicode"
)

// DependencyCacheDir is never treated as a platform.
const DependencyCacheDir = "node_modules"

// DiscoverOptions controls Discover.
type DiscoverOptions struct {
	// Only, if set, restricts the result to this one platform name.
	Only string
}

// Discover returns the names of the candidate platform directories under root, sorted.
//
// Entries whose name does not start with a letter or digit (such as .git or .lib), entries
// that are not directories, and the dependency cache directory are excluded. If opts.Only is
// set, the directory listing is not consulted and the result is exactly that name; if it does
// not name a usable platform, Load reports it.
func Discover(root string, opts DiscoverOptions) ([]string, error) {
	if opts.Only != "" {
		return []string{opts.Only}, nil
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to list platforms in %s: %w", root, err)
	}

	var names []string
	for _, entry := range entries {
		if IsCandidate(entry.Name(), isDir(root, entry)) {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// IsCandidate reports whether a directory entry with this name could be a platform.
func IsCandidate(name string, isDirectory bool) bool {
	if name == "" || !isDirectory || name == DependencyCacheDir {
		return false
	}
	first := []rune(name)[0]
	return unicode.IsLetter(first) || unicode.IsDigit(first)
}

func isDir(root string, entry os.DirEntry) bool {
	if entry.IsDir() {
		return true
	}
	if entry.Type()&os.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(filepath.Join(root, entry.Name()))
	return err == nil && info.IsDir()
}
