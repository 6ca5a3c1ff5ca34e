package dirsync

import (
	"fmt"
	"io"

	"github.com/input-output-hk/catalyst-forge-libs/fs"
	"github.com/opencontainers/go-digest"

	"github.com/input-output-hk/catalyst-forge-libs/blob/blobtypes"
)

// comparator decides whether a local file differs from its remote blob.
// The returned reason is recorded on the planned action.
type comparator interface {
	changed(local Entry, remote *blobtypes.BlobProperties) (bool, string, error)
}

// newComparator builds the comparator for a comparison mode. The filesystem
// is needed for digest comparison, which reads the local file.
func newComparator(mode blobtypes.CompareMode, filesystem fs.Filesystem) comparator {
	switch mode {
	case blobtypes.CompareSize:
		return sizeComparator{}
	case blobtypes.CompareAlways:
		return alwaysComparator{}
	default:
		return digestComparator{fs: filesystem}
	}
}

// digestComparator compares sizes first, then the stored content digest.
// Blobs uploaded without a stored digest cannot be verified and are
// re-uploaded.
type digestComparator struct {
	fs fs.Filesystem
}

func (c digestComparator) changed(local Entry, remote *blobtypes.BlobProperties) (bool, string, error) {
	if local.Size != remote.ContentLength {
		return true, "size changed", nil
	}
	if remote.ContentDigest == "" {
		return true, "no stored digest", nil
	}

	localDigest, err := c.fileDigest(local.Path)
	if err != nil {
		return false, "", err
	}
	if localDigest != remote.ContentDigest {
		return true, "content changed", nil
	}
	return false, "", nil
}

func (c digestComparator) fileDigest(path string) (digest.Digest, error) {
	file, err := c.fs.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	digester := digest.Canonical.Digester()
	if _, err := io.Copy(digester.Hash(), file); err != nil {
		return "", fmt.Errorf("digest %s: %w", path, err)
	}
	return digester.Digest(), nil
}

// sizeComparator compares file sizes only.
type sizeComparator struct{}

func (sizeComparator) changed(local Entry, remote *blobtypes.BlobProperties) (bool, string, error) {
	if local.Size != remote.ContentLength {
		return true, "size changed", nil
	}
	return false, "", nil
}

// alwaysComparator forces a re-upload of every file.
type alwaysComparator struct{}

func (alwaysComparator) changed(Entry, *blobtypes.BlobProperties) (bool, string, error) {
	return true, "forced", nil
}
