// Package blobapi defines the typed service boundary between the transfer
// engine and the blob store, plus its HTTP implementation.
//
// The Service interface mirrors the wire operations one-to-one: each chunk
// operation maps to exactly one request carrying exactly one chunk's bytes.
// Tests substitute the interface with function-field mocks.
package blobapi

import (
	"context"
	"time"

	"github.com/opencontainers/go-digest"

	"github.com/input-output-hk/catalyst-forge-libs/blob/internal/retry"
)

// BlobType discriminates the two target layouts.
type BlobType string

// Supported blob types
const (
	// BlobTypeBlock is a block-oriented blob committed from a block list
	BlobTypeBlock BlobType = "BlockBlob"

	// BlobTypePage is a page-oriented blob written as aligned ranges
	BlobTypePage BlobType = "PageBlob"
)

// Properties are the caller-visible properties stored with a blob.
type Properties struct {
	// ContentType is the MIME type to store
	ContentType string

	// ContentDigest is the whole-content digest to store, if any
	ContentDigest digest.Digest

	// Metadata contains user-defined metadata
	Metadata map[string]string
}

// PutResult is the typed result of a write operation.
type PutResult struct {
	// ETag is the entity tag returned by the service
	ETag string
}

// BlobInfo is the typed result of a properties read.
type BlobInfo struct {
	// Type is the blob layout
	Type BlobType

	// ContentLength is the blob size in bytes
	ContentLength int64

	// ContentType is the stored MIME type
	ContentType string

	// ContentDigest is the stored content digest, if any
	ContentDigest digest.Digest

	// ETag is the entity tag
	ETag string

	// LastModified is the service-side modification time
	LastModified time.Time

	// Metadata contains user-defined metadata
	Metadata map[string]string
}

// RangeResult is the typed result of a ranged read.
type RangeResult struct {
	// Bytes is the number of bytes read into the caller's buffer
	Bytes int

	// ETag is the entity tag of the blob the range was read from
	ETag string
}

// Service is the wire boundary consumed by the transfer engine. Every method
// issues at most one HTTP request. Write operations always target the
// primary location; reads accept a location so the retry chain can fail
// over.
type Service interface {
	// PutBlock uploads one chunk as an independently addressable block.
	// transactionalDigest, when non-empty, is sent for service-side
	// verification of this chunk alone.
	PutBlock(
		ctx context.Context,
		container, key, blockID string,
		body []byte,
		transactionalDigest digest.Digest,
	) (*PutResult, error)

	// PutBlockList commits the blob from the full ordered block ID list.
	PutBlockList(
		ctx context.Context,
		container, key string,
		blockIDs []string,
		props Properties,
	) (*PutResult, error)

	// CreatePageBlob creates a zero-filled page blob of the given length.
	CreatePageBlob(
		ctx context.Context,
		container, key string,
		length int64,
		props Properties,
	) (*PutResult, error)

	// PutPages writes one chunk to the aligned page range starting at offset.
	PutPages(
		ctx context.Context,
		container, key string,
		offset int64,
		body []byte,
		transactionalDigest digest.Digest,
	) (*PutResult, error)

	// ClearPages zeroes the aligned page range [offset, offset+length)
	// without transferring any body.
	ClearPages(
		ctx context.Context,
		container, key string,
		offset, length int64,
	) (*PutResult, error)

	// SetProperties finalizes or updates blob properties.
	SetProperties(
		ctx context.Context,
		container, key string,
		props Properties,
	) (*PutResult, error)

	// GetProperties reads blob properties from the given location.
	GetProperties(
		ctx context.Context,
		loc retry.Location,
		container, key string,
	) (*BlobInfo, error)

	// GetRange reads the byte range [offset, offset+len(buf)) into buf from
	// the given location.
	GetRange(
		ctx context.Context,
		loc retry.Location,
		container, key string,
		offset int64,
		buf []byte,
	) (*RangeResult, error)

	// Delete removes a blob.
	Delete(ctx context.Context, container, key string) error
}
