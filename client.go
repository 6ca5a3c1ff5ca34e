package blob

import (
	"sync"
	"time"

	"github.com/input-output-hk/catalyst-forge-libs/fs"
	"github.com/input-output-hk/catalyst-forge-libs/fs/billy"

	"github.com/input-output-hk/catalyst-forge-libs/blob/blobtypes"
	"github.com/input-output-hk/catalyst-forge-libs/blob/errors"
	"github.com/input-output-hk/catalyst-forge-libs/blob/internal/blobapi"
	"github.com/input-output-hk/catalyst-forge-libs/blob/internal/retry"
	"github.com/input-output-hk/catalyst-forge-libs/blob/internal/validation"
)

// Client is a blob store client. It is safe for concurrent use; each
// operation runs its own transfer session against the shared service
// connection.
type Client struct {
	// service is the wire boundary; tests substitute a mock here
	service blobapi.Service

	// config holds the resolved client configuration
	config blobtypes.ClientConfig

	// mu protects mutable client state
	mu sync.RWMutex

	// fs is the filesystem abstraction for file operations
	fs fs.Filesystem
}

// New creates a blob client with the provided options.
//
// Example:
//
//	client, err := blob.New(
//	    blob.WithEndpoint("https://store.example.com"),
//	    blob.WithToken(token),
//	)
func New(opts ...blobtypes.Option) (*Client, error) {
	cfg := blobtypes.ClientConfig{
		ChunkSize:        blobtypes.DefaultChunkSize,
		Concurrency:      blobtypes.DefaultConcurrency,
		RequestTimeout:   blobtypes.DefaultRequestTimeout,
		BlockIDPrefix:    "block",
		StoreFinalDigest: true,
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.PrimaryEndpoint == "" {
		return nil, errors.NewError("client initialization", errors.ErrInvalidInput).
			WithMessage("primary endpoint must be configured")
	}
	if err := validation.ValidateBlockChunkSize(cfg.ChunkSize); err != nil {
		return nil, err
	}
	if err := validation.ValidateConcurrency(cfg.Concurrency); err != nil {
		return nil, err
	}
	if err := validation.ValidateBlockIDPrefix(cfg.BlockIDPrefix); err != nil {
		return nil, err
	}
	if cfg.LocationMode != blobtypes.LocationPrimaryOnly && cfg.SecondaryEndpoint == "" {
		return nil, errors.NewError("client initialization", errors.ErrInvalidInput).
			WithMessage("location mode requires a secondary endpoint")
	}

	service := blobapi.NewRESTClient(blobapi.Config{
		PrimaryEndpoint:   cfg.PrimaryEndpoint,
		SecondaryEndpoint: cfg.SecondaryEndpoint,
		Token:             cfg.Token,
		RequestTimeout:    cfg.RequestTimeout,
		HTTPClient:        cfg.HTTPClient,
	})

	filesystem := cfg.Filesystem
	if filesystem == nil {
		filesystem = billy.NewOSFS("/")
	}

	return &Client{
		service: service,
		config:  cfg,
		fs:      filesystem,
	}, nil
}

// NewWithService creates a client backed by a custom Service implementation.
// This is primarily used for testing with mocked services.
func NewWithService(service blobapi.Service, opts ...blobtypes.Option) *Client {
	cfg := blobtypes.ClientConfig{
		ChunkSize:        blobtypes.DefaultChunkSize,
		Concurrency:      blobtypes.DefaultConcurrency,
		RequestTimeout:   blobtypes.DefaultRequestTimeout,
		BlockIDPrefix:    "block",
		StoreFinalDigest: true,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Client{
		service: service,
		config:  cfg,
		fs:      billy.NewInMemoryFS(),
	}
}

// SetFilesystem replaces the filesystem implementation used by file-based
// operations. Useful for testing with in-memory filesystems.
func (c *Client) SetFilesystem(filesystem fs.Filesystem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fs = filesystem
}

// Close releases any resources held by the client.
// Currently a no-op but included for future extensibility.
func (c *Client) Close() error {
	return nil
}

// getFS returns the current filesystem under the read lock.
func (c *Client) getFS() fs.Filesystem {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fs
}

// defaultPolicies builds the retry filter chain applied to each chunk
// operation: exponential backoff capped at a few seconds.
func (c *Client) defaultPolicies() []retry.Policy {
	return []retry.Policy{
		retry.Exponential{
			Base:        200 * time.Millisecond,
			Cap:         5 * time.Second,
			MaxAttempts: 4,
		},
	}
}
