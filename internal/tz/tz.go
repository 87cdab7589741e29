// Package tz resolves and enumerates display timezones.
package tz

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// zoneDirs lists the places a host zoneinfo tree is typically found,
// mirroring the search order of the time package.
var zoneDirs = []string{
	"/usr/share/zoneinfo",
	"/usr/share/lib/zoneinfo",
	"/usr/lib/locale/TZ",
	"/etc/zoneinfo",
}

// nonZoneNames are uppercase entries in the zoneinfo tree that are not
// usable zone identifiers.
var nonZoneNames = map[string]bool{
	"Factory": true,
}

// Resolve maps a timezone name to a *time.Location. An empty name selects
// the host's local timezone.
func Resolve(name string) (*time.Location, error) {
	if name == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone value %q: %w", name, err)
	}
	return loc, nil
}

// Available returns the sorted IANA zone names known to the host, read from
// the first zoneinfo tree found in zoneDirs.
func Available() ([]string, error) {
	var root string
	for _, dir := range zoneDirs {
		if st, err := os.Stat(dir); err == nil && st.IsDir() {
			root = dir
			break
		}
	}
	if root == "" {
		return nil, errors.New("no zoneinfo directory found on this host")
	}

	var names []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, rerr := filepath.Rel(root, path)
		if rerr != nil {
			return rerr
		}
		if rel == "." {
			return nil
		}
		// Zone names begin with an uppercase letter; everything else is
		// metadata (zone.tab, leapseconds, posixrules, ...) or a
		// duplicate tree (posix/, right/).
		base := d.Name()
		if base[0] < 'A' || base[0] > 'Z' || strings.Contains(base, ".") {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !d.IsDir() && !nonZoneNames[filepath.ToSlash(rel)] {
			names = append(names, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}
