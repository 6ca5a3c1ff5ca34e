// Package validation provides centralized input validation logic.
// This includes container name validation, blob key validation, and transfer
// parameter checks.
//
// All user inputs are validated synchronously, before any network activity;
// validation failures are never retried.
package validation

import (
	"strings"

	"github.com/input-output-hk/catalyst-forge-libs/blob/blobtypes"
	"github.com/input-output-hk/catalyst-forge-libs/blob/errors"
)

// maxBlockIDLength bounds a minted block ID on the wire.
const maxBlockIDLength = 64

// seqSuffixLength is the length of the "-NNNNNN" suffix appended to the
// block ID prefix.
const seqSuffixLength = 7

// ValidateContainerName validates that a container name is acceptable to
// the service. Returns ErrInvalidInput if the name is invalid.
func ValidateContainerName(container string) error {
	if container == "" {
		return errors.NewError("validateContainerName", errors.ErrInvalidInput).
			WithContainer(container).
			WithMessage("container name cannot be empty")
	}

	if len(container) < 3 || len(container) > 63 {
		return errors.NewError("validateContainerName", errors.ErrInvalidInput).
			WithContainer(container).
			WithMessage("container name must be between 3 and 63 characters long")
	}

	for _, r := range container {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '-' {
			return errors.NewError("validateContainerName", errors.ErrInvalidInput).
				WithContainer(container).
				WithMessage("container name may only contain lowercase letters, digits, and hyphens")
		}
	}

	if strings.HasPrefix(container, "-") || strings.HasSuffix(container, "-") {
		return errors.NewError("validateContainerName", errors.ErrInvalidInput).
			WithContainer(container).
			WithMessage("container name cannot start or end with a hyphen")
	}

	return nil
}

// ValidateBlobKey validates that a blob key is acceptable to the service.
// This includes preventing path traversal and control characters.
func ValidateBlobKey(key string) error {
	if key == "" {
		return errors.NewError("validateBlobKey", errors.ErrInvalidInput).
			WithKey(key).
			WithMessage("blob key cannot be empty")
	}

	if len(key) > 1024 {
		return errors.NewError("validateBlobKey", errors.ErrInvalidInput).
			WithKey(key).
			WithMessage("blob key cannot exceed 1024 characters")
	}

	if hasPathTraversal(key) {
		return errors.NewError("validateBlobKey", errors.ErrInvalidInput).
			WithKey(key).
			WithMessage("blob key cannot contain path traversal sequences")
	}

	for _, r := range key {
		if r < 0x20 || r == 0x7f {
			return errors.NewError("validateBlobKey", errors.ErrInvalidInput).
				WithKey(key).
				WithMessage("blob key cannot contain control characters")
		}
	}

	return nil
}

// ValidateBlockChunkSize validates a chunk size for a block-oriented target.
func ValidateBlockChunkSize(chunkSize int64) error {
	if chunkSize <= 0 {
		return errors.NewError("validateChunkSize", errors.ErrInvalidChunkSize).
			WithMessage("chunk size must be positive")
	}
	if chunkSize > blobtypes.MaxBlockChunkSize {
		return errors.NewError("validateChunkSize", errors.ErrInvalidChunkSize).
			WithMessage("chunk size exceeds the maximum block size")
	}
	return nil
}

// ValidatePageChunkSize validates a chunk size for a page-oriented target.
// Pages are written as aligned ranges, so the chunk size must be a multiple
// of the page alignment and small enough for per-chunk digest eligibility.
func ValidatePageChunkSize(chunkSize int64) error {
	if chunkSize <= 0 {
		return errors.NewError("validateChunkSize", errors.ErrInvalidChunkSize).
			WithMessage("chunk size must be positive")
	}
	if chunkSize%blobtypes.PageAlignment != 0 {
		return errors.NewError("validateChunkSize", errors.ErrInvalidChunkSize).
			WithMessage("page chunk size must be 512-byte aligned")
	}
	if chunkSize > blobtypes.MaxTransactionalChunkSize {
		return errors.NewError("validateChunkSize", errors.ErrInvalidChunkSize).
			WithMessage("page chunk size exceeds the maximum page write size")
	}
	return nil
}

// ValidatePageLength validates the declared total length of a page-oriented
// blob.
func ValidatePageLength(length int64) error {
	if length < 0 {
		return errors.NewError("validatePageLength", errors.ErrInvalidInput).
			WithMessage("length cannot be negative")
	}
	if length%blobtypes.PageAlignment != 0 {
		return errors.NewError("validatePageLength", errors.ErrInvalidInput).
			WithMessage("page blob length must be 512-byte aligned")
	}
	return nil
}

// ValidatePageRange validates an aligned page range for a ranged page
// write or clear.
func ValidatePageRange(offset, length int64) error {
	if offset < 0 {
		return errors.NewError("validatePageRange", errors.ErrInvalidInput).
			WithMessage("offset cannot be negative")
	}
	if length <= 0 {
		return errors.NewError("validatePageRange", errors.ErrInvalidInput).
			WithMessage("length must be positive")
	}
	if offset%blobtypes.PageAlignment != 0 || length%blobtypes.PageAlignment != 0 {
		return errors.NewError("validatePageRange", errors.ErrInvalidInput).
			WithMessage("page ranges must be 512-byte aligned")
	}
	return nil
}

// ValidateBlockIDPrefix validates the prefix block IDs are minted from.
// The prefix plus the sequence suffix must fit the service's ID limit.
func ValidateBlockIDPrefix(prefix string) error {
	if prefix == "" {
		return errors.NewError("validateBlockIDPrefix", errors.ErrInvalidInput).
			WithMessage("block ID prefix cannot be empty")
	}
	if len(prefix)+seqSuffixLength > maxBlockIDLength {
		return errors.NewError("validateBlockIDPrefix", errors.ErrInvalidInput).
			WithMessage("block ID prefix too long")
	}
	for _, r := range prefix {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') && r != '-' && r != '_' {
			return errors.NewError("validateBlockIDPrefix", errors.ErrInvalidInput).
				WithMessage("block ID prefix may only contain letters, digits, hyphens, and underscores")
		}
	}
	return nil
}

// ValidateConcurrency validates a concurrency limit.
func ValidateConcurrency(concurrency int) error {
	if concurrency <= 0 {
		return errors.NewError("validateConcurrency", errors.ErrInvalidInput).
			WithMessage("concurrency must be positive")
	}
	return nil
}

// ValidateSize validates a declared transfer size.
func ValidateSize(size int64) error {
	if size < 0 {
		return errors.NewError("validateSize", errors.ErrInvalidInput).
			WithMessage("size cannot be negative")
	}
	return nil
}

// hasPathTraversal reports whether the key contains dot-dot path elements.
func hasPathTraversal(key string) bool {
	for _, part := range strings.Split(key, "/") {
		if part == ".." {
			return true
		}
	}
	return false
}
