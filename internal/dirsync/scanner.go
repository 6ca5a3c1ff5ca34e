package dirsync

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/input-output-hk/catalyst-forge-libs/fs"
)

// Entry is one local file discovered by a scan, paired with the blob key
// it maps to.
type Entry struct {
	// Path is the local filesystem path
	Path string

	// Key is the destination blob key (prefix + slash-relative path)
	Key string

	// Size is the file size in bytes
	Size int64

	// ModTime is the local modification time
	ModTime time.Time
}

// scan walks root on the given filesystem and returns the files that pass
// the include/exclude filters, each mapped to its destination key. Entries
// come back in walk order, which is deterministic for a given tree.
func scan(
	ctx context.Context,
	filesystem fs.Filesystem,
	root, prefix string,
	include, exclude []string,
) ([]Entry, error) {
	var entries []Entry

	err := filesystem.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("relative path for %s: %w", path, err)
		}
		if !shouldInclude(relPath, include, exclude) {
			return nil
		}

		entries = append(entries, Entry{
			Path:    path,
			Key:     joinKey(prefix, filepath.ToSlash(relPath)),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	return entries, nil
}

// joinKey joins a key prefix and a relative path with exactly one slash.
func joinKey(prefix, rel string) string {
	if prefix == "" {
		return rel
	}
	if prefix[len(prefix)-1] == '/' {
		return prefix + rel
	}
	return prefix + "/" + rel
}
