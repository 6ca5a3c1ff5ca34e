// Package blobtypes provides shared type definitions for the blob module.
package blobtypes

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/input-output-hk/catalyst-forge-libs/fs"
	"github.com/opencontainers/go-digest"
)

// Default transfer tuning values applied when options leave a field unset.
const (
	// DefaultChunkSize is the default transfer chunk size (4MiB)
	DefaultChunkSize = 4 * 1024 * 1024

	// DefaultConcurrency is the default number of overlapped chunk operations
	DefaultConcurrency = 5

	// DefaultRequestTimeout is the default per-request timeout
	DefaultRequestTimeout = 30 * time.Second

	// MaxBlockChunkSize is the largest chunk a block-oriented target accepts (100MiB)
	MaxBlockChunkSize = 100 * 1024 * 1024

	// MaxTransactionalChunkSize is the largest chunk eligible for a
	// per-chunk transactional digest (4MiB)
	MaxTransactionalChunkSize = 4 * 1024 * 1024

	// PageAlignment is the required alignment for page-oriented writes
	PageAlignment = 512
)

// LocationMode selects which service endpoint(s) an operation may use.
type LocationMode int

// Supported location modes
const (
	// LocationPrimaryOnly sends every request to the primary endpoint
	LocationPrimaryOnly LocationMode = iota

	// LocationSecondaryOnly sends every request to the secondary endpoint
	LocationSecondaryOnly

	// LocationPrimaryThenSecondary sends requests to the primary endpoint
	// and allows read-only operations to fail over to the secondary
	LocationPrimaryThenSecondary
)

// String returns the human-readable name of the location mode.
func (m LocationMode) String() string {
	switch m {
	case LocationSecondaryOnly:
		return "secondary"
	case LocationPrimaryThenSecondary:
		return "primary-then-secondary"
	default:
		return "primary"
	}
}

// ProgressTracker defines the interface for tracking transfer progress.
// Implementations can provide real-time progress updates during uploads and downloads.
type ProgressTracker interface {
	// Update is called as chunks complete with cumulative transfer progress
	Update(bytesTransferred, totalBytes int64)

	// Complete is called when the transfer completes successfully
	Complete()

	// Error is called when the transfer fails
	Error(err error)
}

// BlobProperties contains the service-side properties of a blob.
type BlobProperties struct {
	// ContentLength is the size of the blob in bytes
	ContentLength int64

	// ContentType is the MIME type of the blob
	ContentType string

	// ContentDigest is the stored content digest, if any
	ContentDigest digest.Digest

	// ETag is the entity tag for the blob
	ETag string

	// LastModified is when the blob was last modified
	LastModified time.Time

	// Metadata contains user-defined metadata
	Metadata map[string]string
}

// UploadResult contains the result of an upload operation.
type UploadResult struct {
	// Key is the blob key that was uploaded
	Key string

	// Size is the number of bytes transferred
	Size int64

	// ETag is the entity tag returned by the commit or finalize call
	ETag string

	// ContentDigest is the digest stored with the blob (computed from the
	// transfer stream unless the caller supplied an override)
	ContentDigest digest.Digest

	// Chunks is the number of chunks the transfer was split into
	Chunks int

	// ChunksSkipped is the number of all-zero chunks elided by the
	// sparse-write optimization (page-oriented targets only)
	ChunksSkipped int

	// Duration is how long the upload took
	Duration time.Duration
}

// DownloadResult contains the result of a download operation.
type DownloadResult struct {
	// Key is the blob key that was downloaded
	Key string

	// Size is the number of bytes transferred
	Size int64

	// ETag is the entity tag of the downloaded blob
	ETag string

	// ContentDigest is the digest computed over the downloaded bytes
	ContentDigest digest.Digest

	// Chunks is the number of ranged reads the transfer was split into
	Chunks int

	// Duration is how long the download took
	Duration time.Duration
}

// ClientConfig holds configuration for the blob client.
type ClientConfig struct {
	// PrimaryEndpoint is the base URL of the primary service location
	PrimaryEndpoint string

	// SecondaryEndpoint is the base URL of the secondary (read) location
	SecondaryEndpoint string

	// Token is an opaque capability token attached to every request
	Token string

	// ChunkSize is the transfer chunk size in bytes
	ChunkSize int64

	// Concurrency bounds the number of overlapped chunk operations
	Concurrency int

	// UseTransactionalDigest enables per-chunk digest headers
	UseTransactionalDigest bool

	// StoreFinalDigest stores the whole-content digest on commit
	StoreFinalDigest bool

	// DisableDigestValidation skips download-side digest verification
	DisableDigestValidation bool

	// BlockIDPrefix is the prefix used to mint block IDs
	BlockIDPrefix string

	// ExecutionTimeBudget bounds the total wall-clock time spent on a
	// single logical operation including retries; zero means unbounded
	ExecutionTimeBudget time.Duration

	// RequestTimeout bounds each individual HTTP attempt
	RequestTimeout time.Duration

	// LocationMode selects endpoint failover behavior
	LocationMode LocationMode

	// Logger receives debug traces; nil disables logging
	Logger *slog.Logger

	// Filesystem is the filesystem abstraction for file operations
	Filesystem fs.Filesystem

	// HTTPClient overrides the transport used for service requests
	HTTPClient *http.Client
}

// UploadOptionConfig holds configuration for upload operations via functional options.
type UploadOptionConfig struct {
	ContentType     string
	Metadata        map[string]string
	ProgressTracker ProgressTracker
	ChunkSize       int64
	Concurrency     int
	ContentDigest   digest.Digest // caller-supplied override; wins over the accumulator
}

// DownloadOptionConfig holds configuration for download operations via functional options.
type DownloadOptionConfig struct {
	ProgressTracker ProgressTracker
	ChunkSize       int64
	Concurrency     int
}

// CompareMode selects how directory sync decides whether a local file
// differs from its remote blob.
type CompareMode int

// Supported comparison modes
const (
	// CompareDigest compares sizes first, then the stored content digest.
	// Files with matching size and digest are skipped.
	CompareDigest CompareMode = iota

	// CompareSize compares sizes only. Fast but misses same-size edits.
	CompareSize

	// CompareAlways treats every local file as changed, forcing re-upload.
	CompareAlways
)

// String returns the human-readable name of the comparison mode.
func (m CompareMode) String() string {
	switch m {
	case CompareSize:
		return "size"
	case CompareAlways:
		return "always"
	default:
		return "digest"
	}
}

// SyncAction describes one planned action from a directory sync.
type SyncAction struct {
	// Path is the local file path
	Path string

	// Key is the destination blob key
	Key string

	// Size is the local file size in bytes
	Size int64

	// Reason describes why the file is being uploaded
	Reason string
}

// SyncError records a per-file failure during a directory sync.
// Sync continues past individual failures; all of them are reported
// in the result.
type SyncError struct {
	// Path is the local file path that failed
	Path string

	// Key is the destination blob key
	Key string

	// Err is the underlying error
	Err error
}

// Error implements the error interface.
func (e SyncError) Error() string {
	return "sync " + e.Path + " -> " + e.Key + ": " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e SyncError) Unwrap() error { return e.Err }

// SyncResult contains the outcome of a directory sync.
type SyncResult struct {
	// Uploaded is the number of files uploaded
	Uploaded int

	// Skipped is the number of files left untouched because the remote
	// copy already matches
	Skipped int

	// Failed is the number of files that could not be synced
	Failed int

	// BytesUploaded is the total bytes uploaded
	BytesUploaded int64

	// Planned holds the planned uploads when running in dry-run mode
	Planned []SyncAction

	// Errors contains per-file failures
	Errors []SyncError

	// Duration is the total sync time
	Duration time.Duration
}

// SyncOptionConfig holds configuration for directory sync via functional options.
type SyncOptionConfig struct {
	Include     []string
	Exclude     []string
	Concurrency int
	DryRun      bool
	Compare     CompareMode
}

// Option is a functional option for configuring the blob client.
type (
	Option func(*ClientConfig)
	// UploadOption is a functional option for configuring upload operations.
	UploadOption func(*UploadOptionConfig)
	// DownloadOption is a functional option for configuring download operations.
	DownloadOption func(*DownloadOptionConfig)
	// SyncOption is a functional option for configuring directory sync.
	SyncOption func(*SyncOptionConfig)
)
