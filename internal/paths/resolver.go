// Package paths maps named roots to directories so callers can refer
// to files as "share:scans/receipt.pdf" instead of absolute paths. The
// add-on uses it for the Home Assistant /share and /media mounts.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Resolver expands "<root>:<relative path>" references. A nil
// *Resolver passes every path through unchanged.
type Resolver struct {
	roots map[string]string
	names []string // longest first
}

// New creates a Resolver from root names (without the colon) to
// directories. A leading ~ in a directory is expanded. It returns nil
// for an empty map.
func New(roots map[string]string) *Resolver {
	if len(roots) == 0 {
		return nil
	}
	r := &Resolver{roots: make(map[string]string, len(roots))}
	for name, dir := range roots {
		name = strings.TrimSuffix(name, ":")
		r.roots[name] = filepath.Clean(ExpandHome(dir))
		r.names = append(r.names, name)
	}
	sort.Slice(r.names, func(i, j int) bool {
		if len(r.names[i]) != len(r.names[j]) {
			return len(r.names[i]) > len(r.names[j])
		}
		return r.names[i] < r.names[j]
	})
	return r
}

// Resolve expands a root reference. Paths without a known root are
// returned unchanged. A reference that climbs out of its root is an
// error.
func (r *Resolver) Resolve(path string) (string, error) {
	if r == nil {
		return path, nil
	}
	for _, name := range r.names {
		rel, ok := strings.CutPrefix(path, name+":")
		if !ok {
			continue
		}
		base := r.roots[name]
		full := filepath.Join(base, rel)
		if full != base && !strings.HasPrefix(full, base+string(filepath.Separator)) {
			return "", fmt.Errorf("path %q escapes the %s root", path, name)
		}
		return full, nil
	}
	return path, nil
}

// Roots returns the configured root names in alphabetical order.
func (r *Resolver) Roots() []string {
	if r == nil {
		return nil
	}
	names := append([]string(nil), r.names...)
	sort.Strings(names)
	return names
}

// ExpandHome replaces a leading "~" or "~/" with the user's home
// directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
