// Package scan finds the regular files a batch run checksums.
package scan

import (
	"context"
	"io/fs"
	"log"
	"os"
	"path/filepath"
)

// Entry holds metadata for a single regular file (no content). MTime is in
// nanoseconds since the epoch so that a same-second rewrite still changes it.
type Entry struct {
	Path  string
	Size  int64
	MTime int64
}

// Walk traverses root and calls fn for each regular file whose root-relative
// path is not excluded by patterns. Excluded directories are skipped entirely;
// root itself is never excluded. Symlinks are neither followed nor yielded.
// If root itself is a regular file it is the only entry.
//
// An unreadable directory below root is logged and skipped. Errors on root
// itself are returned.
func Walk(ctx context.Context, root string, patterns []string, fn func(Entry) error) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root || d == nil {
				return err
			}
			log.Printf("[scan] skip %s: %v", path, err)
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if path != root {
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			if ShouldExclude(filepath.ToSlash(rel), patterns) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := os.Lstat(path)
		if err != nil {
			return err
		}
		return fn(Entry{Path: path, Size: info.Size(), MTime: info.ModTime().UnixNano()})
	})
}
