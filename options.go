// Package blob provides functional options for configuring client behavior.
// These options follow the functional options pattern for clean, composable configuration.
package blob

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/input-output-hk/catalyst-forge-libs/fs"
	"github.com/opencontainers/go-digest"

	"github.com/input-output-hk/catalyst-forge-libs/blob/blobtypes"
)

// WithEndpoint sets the primary service endpoint URL. Required.
func WithEndpoint(endpoint string) blobtypes.Option {
	return func(c *blobtypes.ClientConfig) {
		c.PrimaryEndpoint = endpoint
	}
}

// WithSecondaryEndpoint sets the secondary (read) endpoint URL.
// Required when a location mode other than primary-only is selected.
func WithSecondaryEndpoint(endpoint string) blobtypes.Option {
	return func(c *blobtypes.ClientConfig) {
		c.SecondaryEndpoint = endpoint
	}
}

// WithToken sets the capability token attached to every request.
func WithToken(token string) blobtypes.Option {
	return func(c *blobtypes.ClientConfig) {
		c.Token = token
	}
}

// WithChunkSize sets the transfer chunk size in bytes.
// Default is 4MiB. Page-oriented uploads require 512-byte alignment.
func WithChunkSize(size int64) blobtypes.Option {
	return func(c *blobtypes.ClientConfig) {
		if size > 0 {
			c.ChunkSize = size
		}
	}
}

// WithConcurrency sets the maximum number of overlapped chunk operations.
// Default is 5.
func WithConcurrency(concurrency int) blobtypes.Option {
	return func(c *blobtypes.ClientConfig) {
		if concurrency > 0 {
			c.Concurrency = concurrency
		}
	}
}

// WithTransactionalDigest enables per-chunk digests: each chunk write
// carries a digest over that chunk's bytes for service-side verification.
// Only chunks up to 4MiB are eligible.
func WithTransactionalDigest(enabled bool) blobtypes.Option {
	return func(c *blobtypes.ClientConfig) {
		c.UseTransactionalDigest = enabled
	}
}

// WithContentDigestStorage controls whether the whole-content digest is
// stored with the blob on commit. Enabled by default.
func WithContentDigestStorage(enabled bool) blobtypes.Option {
	return func(c *blobtypes.ClientConfig) {
		c.StoreFinalDigest = enabled
	}
}

// WithDigestValidationDisabled skips download-side digest verification.
// Use only when the cost of hashing outweighs the integrity guarantee.
func WithDigestValidationDisabled() blobtypes.Option {
	return func(c *blobtypes.ClientConfig) {
		c.DisableDigestValidation = true
	}
}

// WithBlockIDPrefix sets the prefix block IDs are minted from.
// Default is "block".
func WithBlockIDPrefix(prefix string) blobtypes.Option {
	return func(c *blobtypes.ClientConfig) {
		if prefix != "" {
			c.BlockIDPrefix = prefix
		}
	}
}

// WithExecutionTimeBudget bounds the total wall-clock time of a single
// logical operation, including all retries and backoff. Zero (the default)
// means unbounded.
func WithExecutionTimeBudget(budget time.Duration) blobtypes.Option {
	return func(c *blobtypes.ClientConfig) {
		c.ExecutionTimeBudget = budget
	}
}

// WithRequestTimeout bounds each individual HTTP attempt.
// Default is 30 seconds.
func WithRequestTimeout(timeout time.Duration) blobtypes.Option {
	return func(c *blobtypes.ClientConfig) {
		c.RequestTimeout = timeout
	}
}

// WithLocationMode selects endpoint failover behavior for reads.
// Default is primary-only.
func WithLocationMode(mode blobtypes.LocationMode) blobtypes.Option {
	return func(c *blobtypes.ClientConfig) {
		c.LocationMode = mode
	}
}

// WithLogger sets the logger for debug traces. Nil (the default) disables
// logging.
func WithLogger(logger *slog.Logger) blobtypes.Option {
	return func(c *blobtypes.ClientConfig) {
		c.Logger = logger
	}
}

// WithFilesystem sets a custom filesystem implementation for file operations.
// This allows using in-memory filesystems for testing or virtual filesystems.
// If not specified, defaults to the OS filesystem.
func WithFilesystem(filesystem fs.Filesystem) blobtypes.Option {
	return func(c *blobtypes.ClientConfig) {
		c.Filesystem = filesystem
	}
}

// WithHTTPClient allows providing a custom HTTP client.
// This gives full control over HTTP behavior including proxies and TLS.
func WithHTTPClient(client *http.Client) blobtypes.Option {
	return func(c *blobtypes.ClientConfig) {
		c.HTTPClient = client
	}
}

// WithContentType sets the content type for upload operations.
func WithContentType(contentType string) blobtypes.UploadOption {
	return func(c *blobtypes.UploadOptionConfig) {
		c.ContentType = contentType
	}
}

// WithMetadata sets metadata for upload operations.
func WithMetadata(metadata map[string]string) blobtypes.UploadOption {
	return func(c *blobtypes.UploadOptionConfig) {
		if c.Metadata == nil {
			c.Metadata = make(map[string]string)
		}
		for k, v := range metadata {
			c.Metadata[k] = v
		}
	}
}

// WithProgress sets a progress tracker for upload operations.
func WithProgress(tracker blobtypes.ProgressTracker) blobtypes.UploadOption {
	return func(c *blobtypes.UploadOptionConfig) {
		c.ProgressTracker = tracker
	}
}

// WithContentDigest supplies a precomputed whole-content digest to store
// with the blob instead of the digest computed from the transfer stream.
func WithContentDigest(d digest.Digest) blobtypes.UploadOption {
	return func(c *blobtypes.UploadOptionConfig) {
		c.ContentDigest = d
	}
}

// WithUploadChunkSize sets the chunk size for this upload only.
// This overrides the client-level default.
func WithUploadChunkSize(size int64) blobtypes.UploadOption {
	return func(c *blobtypes.UploadOptionConfig) {
		if size > 0 {
			c.ChunkSize = size
		}
	}
}

// WithUploadConcurrency sets the concurrency level for this upload only.
// This overrides the client-level default.
func WithUploadConcurrency(concurrency int) blobtypes.UploadOption {
	return func(c *blobtypes.UploadOptionConfig) {
		if concurrency > 0 {
			c.Concurrency = concurrency
		}
	}
}

// WithDownloadProgress sets a progress tracker for download operations.
func WithDownloadProgress(tracker blobtypes.ProgressTracker) blobtypes.DownloadOption {
	return func(c *blobtypes.DownloadOptionConfig) {
		c.ProgressTracker = tracker
	}
}

// WithDownloadChunkSize sets the chunk size for this download only.
func WithDownloadChunkSize(size int64) blobtypes.DownloadOption {
	return func(c *blobtypes.DownloadOptionConfig) {
		if size > 0 {
			c.ChunkSize = size
		}
	}
}

// WithDownloadConcurrency sets the concurrency level for this download only.
func WithDownloadConcurrency(concurrency int) blobtypes.DownloadOption {
	return func(c *blobtypes.DownloadOptionConfig) {
		if concurrency > 0 {
			c.Concurrency = concurrency
		}
	}
}

// WithSyncInclude limits a directory sync to files matching at least one
// of the given glob patterns. Patterns match slash-separated paths
// relative to the sync root; "**" matches across directories.
func WithSyncInclude(patterns ...string) blobtypes.SyncOption {
	return func(c *blobtypes.SyncOptionConfig) {
		c.Include = append(c.Include, patterns...)
	}
}

// WithSyncExclude excludes files matching any of the given glob patterns
// from a directory sync. Excludes take precedence over includes. A
// pattern ending in "/" excludes an entire directory.
func WithSyncExclude(patterns ...string) blobtypes.SyncOption {
	return func(c *blobtypes.SyncOptionConfig) {
		c.Exclude = append(c.Exclude, patterns...)
	}
}

// WithSyncConcurrency sets the number of files synced in parallel.
// This overrides the client-level default.
func WithSyncConcurrency(concurrency int) blobtypes.SyncOption {
	return func(c *blobtypes.SyncOptionConfig) {
		if concurrency > 0 {
			c.Concurrency = concurrency
		}
	}
}

// WithSyncDryRun plans the sync without uploading. The planned actions
// are returned in the result.
func WithSyncDryRun() blobtypes.SyncOption {
	return func(c *blobtypes.SyncOptionConfig) {
		c.DryRun = true
	}
}

// WithSyncCompareMode selects how changed files are detected.
func WithSyncCompareMode(mode blobtypes.CompareMode) blobtypes.SyncOption {
	return func(c *blobtypes.SyncOptionConfig) {
		c.Compare = mode
	}
}
