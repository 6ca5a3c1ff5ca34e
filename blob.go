package blob

import (
	"context"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/input-output-hk/catalyst-forge-libs/fs"

	"github.com/input-output-hk/catalyst-forge-libs/blob/blobtypes"
	bloberrors "github.com/input-output-hk/catalyst-forge-libs/blob/errors"
	"github.com/input-output-hk/catalyst-forge-libs/blob/internal/blobapi"
	"github.com/input-output-hk/catalyst-forge-libs/blob/internal/retry"
	"github.com/input-output-hk/catalyst-forge-libs/blob/internal/transfer"
	"github.com/input-output-hk/catalyst-forge-libs/blob/internal/validation"
)

const (
	// DefaultContentType is the default content type used when content type detection fails
	DefaultContentType = "application/octet-stream"
)

// Upload uploads size bytes from reader to a block-oriented blob.
//
// The stream is split into chunks uploaded concurrently as independently
// addressable blocks, then committed atomically from the ordered block list.
// A failed upload never becomes visible as a finished blob. The reader is
// consumed exactly once, in order; it does not need to be seekable.
//
// Returns:
//   - *UploadResult: ETag, stored digest, chunk counts, and duration
//   - error: Returns an error if the upload fails
//
// Example:
//
//	file, _ := os.Open("data.bin")
//	defer file.Close()
//	info, _ := file.Stat()
//
//	result, err := client.Upload(ctx, "backups", "2024/data.bin", file, info.Size(),
//	    blob.WithContentType("application/octet-stream"),
//	    blob.WithProgress(tracker),
//	)
func (c *Client) Upload(
	ctx context.Context,
	container, key string,
	reader io.Reader,
	size int64,
	opts ...blobtypes.UploadOption,
) (*blobtypes.UploadResult, error) {
	if err := c.validateTarget("upload", container, key); err != nil {
		return nil, err
	}
	if reader == nil {
		return nil, bloberrors.NewBlobError("upload", container, key, bloberrors.ErrInvalidInput).
			WithMessage("reader cannot be nil")
	}
	if err := validation.ValidateSize(size); err != nil {
		return nil, bloberrors.NewBlobError("upload", container, key, err)
	}

	config := c.uploadOptions(key, opts)
	if err := validation.ValidateBlockChunkSize(config.ChunkSize); err != nil {
		return nil, bloberrors.NewBlobError("upload", container, key, err)
	}

	result, err := transfer.UploadBlocks(ctx, c.transferConfig(container, key, config), reader, size)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// UploadFile uploads a file from the filesystem to a block-oriented blob.
//
// The content type is sniffed from the file's leading bytes when not set
// explicitly. The file size is taken from Stat at open time; the file must
// not change length during the transfer.
//
// Example:
//
//	result, err := client.UploadFile(ctx, "backups", "docs/report.pdf", "/path/to/report.pdf",
//	    blob.WithMetadata(map[string]string{"Author": "ops"}),
//	)
func (c *Client) UploadFile(
	ctx context.Context,
	container, key, path string,
	opts ...blobtypes.UploadOption,
) (*blobtypes.UploadResult, error) {
	if err := c.validateTarget("uploadFile", container, key); err != nil {
		return nil, err
	}
	if path == "" {
		return nil, bloberrors.NewBlobError("uploadFile", container, key, bloberrors.ErrInvalidInput).
			WithMessage("path cannot be empty")
	}

	filesystem := c.getFS()
	info, err := filesystem.Stat(path)
	if err != nil {
		return nil, bloberrors.NewBlobError("uploadFile", container, key, err)
	}
	if info.IsDir() {
		return nil, bloberrors.NewBlobError("uploadFile", container, key, bloberrors.ErrInvalidInput).
			WithMessage("path points to a directory, not a file")
	}

	file, err := filesystem.Open(path)
	if err != nil {
		return nil, bloberrors.NewBlobError("uploadFile", container, key, err)
	}
	defer file.Close()

	config := c.uploadOptions(path, opts)
	if config.ContentType == DefaultContentType {
		config.ContentType = c.detectContentType(path)
	}
	if err := validation.ValidateBlockChunkSize(config.ChunkSize); err != nil {
		return nil, bloberrors.NewBlobError("uploadFile", container, key, err)
	}

	result, err := transfer.UploadBlocks(ctx, c.transferConfig(container, key, config), file, info.Size())
	if err != nil {
		return nil, err
	}
	return result, nil
}

// UploadPages uploads size bytes from reader to a page-oriented blob.
//
// The blob is created zero-filled at its full length, then non-zero chunks
// are written as aligned page ranges; all-zero chunks are skipped entirely.
// This makes sparse content (disk images, preallocated files) cheap to
// transfer. Both size and the chunk size must be 512-byte aligned.
//
// Example:
//
//	result, err := client.UploadPages(ctx, "images", "vm/disk.img", file, size)
//	fmt.Printf("skipped %d of %d chunks\n", result.ChunksSkipped, result.Chunks)
func (c *Client) UploadPages(
	ctx context.Context,
	container, key string,
	reader io.Reader,
	size int64,
	opts ...blobtypes.UploadOption,
) (*blobtypes.UploadResult, error) {
	if err := c.validateTarget("uploadPages", container, key); err != nil {
		return nil, err
	}
	if reader == nil {
		return nil, bloberrors.NewBlobError("uploadPages", container, key, bloberrors.ErrInvalidInput).
			WithMessage("reader cannot be nil")
	}
	if err := validation.ValidatePageLength(size); err != nil {
		return nil, bloberrors.NewBlobError("uploadPages", container, key, err)
	}

	config := c.uploadOptions(key, opts)
	if config.ChunkSize == blobtypes.DefaultChunkSize && size > 0 && size < config.ChunkSize {
		// A short page blob still needs an aligned chunk covering it.
		config.ChunkSize = size
	}
	if err := validation.ValidatePageChunkSize(config.ChunkSize); err != nil {
		return nil, bloberrors.NewBlobError("uploadPages", container, key, err)
	}

	result, err := transfer.UploadPages(ctx, c.transferConfig(container, key, config), reader, size)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ClearPages resets a page range of an existing page-oriented blob to
// zeros without transferring any data. Together with UploadPages this
// keeps sparse content sparse: punching a hole costs one request no
// matter how large the range. Offset and length must be 512-byte aligned.
//
// Example:
//
//	// drop the second MiB of a disk image
//	err := client.ClearPages(ctx, "images", "vm/disk.img", 1<<20, 1<<20)
func (c *Client) ClearPages(ctx context.Context, container, key string, offset, length int64) error {
	if err := c.validateTarget("clearPages", container, key); err != nil {
		return err
	}
	if err := validation.ValidatePageRange(offset, length); err != nil {
		return bloberrors.NewBlobError("clearPages", container, key, err)
	}

	err := retry.Do(ctx, c.writeRetryOptions(), func(ctx context.Context, _ retry.Location) error {
		_, err := c.service.ClearPages(ctx, container, key, offset, length)
		return err
	})
	if err != nil {
		return bloberrors.NewBlobError("clearPages", container, key, err)
	}
	return nil
}

// Download downloads a blob into w as concurrent ranged reads reassembled
// by offset. Unless validation is disabled, the content digest is recomputed
// over the downloaded bytes and checked against the stored digest.
//
// Example:
//
//	file, _ := os.Create("restored.bin")
//	defer file.Close()
//
//	result, err := client.Download(ctx, "backups", "2024/data.bin", file,
//	    blob.WithDownloadProgress(tracker),
//	)
func (c *Client) Download(
	ctx context.Context,
	container, key string,
	w io.WriterAt,
	opts ...blobtypes.DownloadOption,
) (*blobtypes.DownloadResult, error) {
	if err := c.validateTarget("download", container, key); err != nil {
		return nil, err
	}
	if w == nil {
		return nil, bloberrors.NewBlobError("download", container, key, bloberrors.ErrInvalidInput).
			WithMessage("writer cannot be nil")
	}

	config := c.downloadOptions(opts)
	result, err := transfer.Download(ctx, c.downloadTransferConfig(container, key, config), w)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// DownloadFile downloads a blob to a file on the filesystem. The file is
// created if it doesn't exist, or truncated if it does.
//
// Example:
//
//	result, err := client.DownloadFile(ctx, "backups", "2024/data.bin", "/tmp/data.bin")
func (c *Client) DownloadFile(
	ctx context.Context,
	container, key, path string,
	opts ...blobtypes.DownloadOption,
) (*blobtypes.DownloadResult, error) {
	if err := c.validateTarget("downloadFile", container, key); err != nil {
		return nil, err
	}
	if path == "" {
		return nil, bloberrors.NewBlobError("downloadFile", container, key, bloberrors.ErrInvalidInput).
			WithMessage("path cannot be empty")
	}

	file, err := c.getFS().Create(path)
	if err != nil {
		return nil, bloberrors.NewBlobError("downloadFile", container, key, err)
	}
	defer file.Close()

	config := c.downloadOptions(opts)
	result, err := transfer.Download(ctx, c.downloadTransferConfig(container, key, config), &fileWriterAt{f: file})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Properties retrieves a blob's service-side properties without downloading
// its content. Read-only: may fail over to the secondary endpoint per the
// client's location mode.
func (c *Client) Properties(ctx context.Context, container, key string) (*blobtypes.BlobProperties, error) {
	if err := c.validateTarget("properties", container, key); err != nil {
		return nil, err
	}

	var info *blobapi.BlobInfo
	err := retry.Do(ctx, c.readRetryOptions(), func(ctx context.Context, loc retry.Location) error {
		i, err := c.service.GetProperties(ctx, loc, container, key)
		if err == nil {
			info = i
		}
		return err
	})
	if err != nil {
		return nil, bloberrors.NewBlobError("properties", container, key, err)
	}

	return &blobtypes.BlobProperties{
		ContentLength: info.ContentLength,
		ContentType:   info.ContentType,
		ContentDigest: info.ContentDigest,
		ETag:          info.ETag,
		LastModified:  info.LastModified,
		Metadata:      info.Metadata,
	}, nil
}

// Exists checks whether a blob exists. A not-found result is not an error.
func (c *Client) Exists(ctx context.Context, container, key string) (bool, error) {
	_, err := c.Properties(ctx, container, key)
	if err != nil {
		if bloberrors.IsBlobNotFound(err) {
			return false, nil
		}
		return false, bloberrors.NewBlobError("exists", container, key, err)
	}
	return true, nil
}

// Delete removes a blob. Deleting a blob that does not exist returns
// ErrBlobNotFound.
func (c *Client) Delete(ctx context.Context, container, key string) error {
	if err := c.validateTarget("delete", container, key); err != nil {
		return err
	}

	err := retry.Do(ctx, c.writeRetryOptions(), func(ctx context.Context, _ retry.Location) error {
		return c.service.Delete(ctx, container, key)
	})
	if err != nil {
		return bloberrors.NewBlobError("delete", container, key, err)
	}
	return nil
}

// validateTarget checks the container/key pair shared by every operation.
func (c *Client) validateTarget(op, container, key string) error {
	if err := validation.ValidateContainerName(container); err != nil {
		return bloberrors.NewBlobError(op, container, key, bloberrors.ErrInvalidInput).
			WithMessage(err.Error())
	}
	if err := validation.ValidateBlobKey(key); err != nil {
		return bloberrors.NewBlobError(op, container, key, bloberrors.ErrInvalidInput).
			WithMessage(err.Error())
	}
	return nil
}

// uploadOptions resolves per-call upload options over the client defaults.
func (c *Client) uploadOptions(path string, opts []blobtypes.UploadOption) *blobtypes.UploadOptionConfig {
	config := &blobtypes.UploadOptionConfig{
		ContentType: DefaultContentType,
		Metadata:    make(map[string]string),
		ChunkSize:   c.config.ChunkSize,
		Concurrency: c.config.Concurrency,
	}
	for _, opt := range opts {
		opt(config)
	}
	if config.ContentType == DefaultContentType {
		config.ContentType = c.detectContentTypeFromExtension(path)
	}
	return config
}

// downloadOptions resolves per-call download options over the client defaults.
func (c *Client) downloadOptions(opts []blobtypes.DownloadOption) *blobtypes.DownloadOptionConfig {
	config := &blobtypes.DownloadOptionConfig{
		ChunkSize:   c.config.ChunkSize,
		Concurrency: c.config.Concurrency,
	}
	for _, opt := range opts {
		opt(config)
	}
	return config
}

// transferConfig builds the engine configuration for one upload.
func (c *Client) transferConfig(container, key string, config *blobtypes.UploadOptionConfig) transfer.Config {
	return transfer.Config{
		Service:                 c.service,
		Container:               container,
		Key:                     key,
		ChunkSize:               config.ChunkSize,
		Concurrency:             config.Concurrency,
		BlockIDPrefix:           c.config.BlockIDPrefix,
		UseTransactionalDigest:  c.config.UseTransactionalDigest,
		StoreFinalDigest:        c.config.StoreFinalDigest,
		DisableDigestValidation: c.config.DisableDigestValidation,
		DigestOverride:          config.ContentDigest,
		Properties: blobapi.Properties{
			ContentType: config.ContentType,
			Metadata:    config.Metadata,
		},
		Policies:     c.defaultPolicies(),
		Budget:       c.config.ExecutionTimeBudget,
		LocationMode: c.config.LocationMode,
		Progress:     config.ProgressTracker,
		Logger:       c.config.Logger,
	}
}

// downloadTransferConfig builds the engine configuration for one download.
func (c *Client) downloadTransferConfig(container, key string, config *blobtypes.DownloadOptionConfig) transfer.Config {
	return transfer.Config{
		Service:                 c.service,
		Container:               container,
		Key:                     key,
		ChunkSize:               config.ChunkSize,
		Concurrency:             config.Concurrency,
		DisableDigestValidation: c.config.DisableDigestValidation,
		Policies:                c.defaultPolicies(),
		Budget:                  c.config.ExecutionTimeBudget,
		LocationMode:            c.config.LocationMode,
		Progress:                config.ProgressTracker,
		Logger:                  c.config.Logger,
	}
}

// readRetryOptions builds driver options for standalone read calls, with
// failover per the location mode.
func (c *Client) readRetryOptions() retry.Options {
	initial := retry.LocationPrimary
	policies := c.defaultPolicies()

	switch c.config.LocationMode {
	case blobtypes.LocationSecondaryOnly:
		initial = retry.LocationSecondary
	case blobtypes.LocationPrimaryThenSecondary:
		policies = append([]retry.Policy{retry.Failover{Enabled: true, ReadOnly: true}}, policies...)
	}

	return retry.Options{
		Policies:        policies,
		Budget:          c.config.ExecutionTimeBudget,
		Start:           time.Now(),
		InitialLocation: initial,
		Logger:          c.config.Logger,
	}
}

// writeRetryOptions builds driver options for standalone write calls.
// Writes always target the primary.
func (c *Client) writeRetryOptions() retry.Options {
	return retry.Options{
		Policies:        c.defaultPolicies(),
		Budget:          c.config.ExecutionTimeBudget,
		Start:           time.Now(),
		InitialLocation: retry.LocationPrimary,
		Logger:          c.config.Logger,
	}
}

// detectContentType determines the content type using mimetype where possible,
// falling back to extension-based lookup when the path is not a local file.
func (c *Client) detectContentType(path string) string {
	filesystem := c.getFS()
	info, err := filesystem.Stat(path)
	if err != nil || info.IsDir() {
		return c.detectContentTypeFromExtension(path)
	}

	file, err := filesystem.Open(path)
	if err != nil {
		return c.detectContentTypeFromExtension(path)
	}
	defer file.Close()

	// Read first 512 bytes for content detection
	buf := make([]byte, 512)
	n, _ := file.Read(buf)
	if n > 0 {
		if mt := mimetype.Detect(buf[:n]); mt != nil {
			return mt.String()
		}
	}

	return c.detectContentTypeFromExtension(path)
}

// detectContentTypeFromExtension detects content type from file extension
func (c *Client) detectContentTypeFromExtension(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != "" {
		if byExt := mime.TypeByExtension(ext); byExt != "" {
			return byExt
		}
	}
	return DefaultContentType
}

// fileWriterAt adapts a seekable fs.File to io.WriterAt for concurrent
// chunk writes. Writes are serialized; the seek offset is not shared state
// outside the lock.
type fileWriterAt struct {
	mu sync.Mutex
	f  fs.File
}

func (w *fileWriterAt) WriteAt(p []byte, off int64) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.f.Seek(off, io.SeekStart); err != nil {
		return 0, err
	}
	return w.f.Write(p)
}
