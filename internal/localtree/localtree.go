// Package localtree walks a local directory for upload.
package localtree

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
)

var ErrNotDirectory = errors.New("localtree: not a directory")

// Entry is one file or directory below the walk root.
type Entry struct {
	// RelPath is slash separated and relative to the root.
	RelPath string
	AbsPath string
	IsDir   bool
	Size    int64
}

// Walk lists root in lexical order, parents before their children. Ignored
// directories are not descended into. Symlinks are skipped.
func Walk(root string, ignore *IgnoreList) ([]Entry, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotDirectory, root)
	}
	if ignore == nil {
		ignore = NewIgnoreList(root)
	}

	var entries []Entry
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root || d.Type()&fs.ModeSymlink != 0 {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if ignore.ShouldIgnore(rel, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		entry := Entry{RelPath: rel, AbsPath: path, IsDir: d.IsDir()}
		if !d.IsDir() {
			fi, err := d.Info()
			if err != nil {
				return err
			}
			if !fi.Mode().IsRegular() {
				return nil
			}
			entry.Size = fi.Size()
		}
		entries = append(entries, entry)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return entries, nil
}

// Glob expands a doublestar pattern relative to the working directory into
// the matching local files.
func Glob(pattern string) ([]string, error) {
	if !doublestar.ValidatePattern(filepath.ToSlash(pattern)) {
		return nil, fmt.Errorf("invalid pattern %q", pattern)
	}
	matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, err
	}
	return matches, nil
}

// TotalSize sums the file sizes.
func TotalSize(entries []Entry) int64 {
	var total int64
	for _, e := range entries {
		total += e.Size
	}
	return total
}
