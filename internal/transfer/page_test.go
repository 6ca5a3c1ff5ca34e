package transfer

import (
	"bytes"
	"context"
	"testing"

	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bloberrors "github.com/input-output-hk/catalyst-forge-libs/blob/errors"
	"github.com/input-output-hk/catalyst-forge-libs/blob/internal/blobapi"
	"github.com/input-output-hk/catalyst-forge-libs/blob/internal/testutil"
)

func pageConfig(svc blobapi.Service) Config {
	return Config{
		Service:          svc,
		Container:        "test-container",
		Key:              "disk.img",
		ChunkSize:        512 * 1024,
		Concurrency:      2,
		StoreFinalDigest: true,
	}
}

func TestUploadPagesSkipsZeroChunks(t *testing.T) {
	// A fully zero 1 MiB image at 512 KiB chunks: the blob is created at
	// full length, no page is ever written, and the finalize call still
	// stores the digest.
	data := testutil.ZeroBytes(1024 * 1024)

	svc := &testutil.MockService{}
	res, err := UploadPages(context.Background(), pageConfig(svc), bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	assert.Equal(t, 1, svc.CreateCount())
	assert.Equal(t, int64(len(data)), svc.CreatedLength())
	assert.Empty(t, svc.PutPagesCalls())
	assert.Equal(t, 1, svc.SetPropertiesCount())

	assert.Equal(t, 2, res.Chunks)
	assert.Equal(t, 2, res.ChunksSkipped)
	assert.Equal(t, digest.Canonical.FromBytes(data), res.ContentDigest)
}

func TestUploadPagesWritesOnlyNonZeroChunks(t *testing.T) {
	// Three chunks: data, zeroes, data.
	data := make([]byte, 3*64*1024)
	copy(data[:64*1024], testutil.NewDataGenerator(21).Bytes(64*1024))
	copy(data[2*64*1024:], testutil.NewDataGenerator(22).Bytes(64*1024))

	svc := &testutil.MockService{}
	cfg := pageConfig(svc)
	cfg.ChunkSize = 64 * 1024

	res, err := UploadPages(context.Background(), cfg, bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	calls := svc.PutPagesCalls()
	require.Len(t, calls, 2)
	offsets := map[int64]bool{}
	for _, c := range calls {
		offsets[c.Offset] = true
		assert.Equal(t, data[c.Offset:c.Offset+int64(len(c.Body))], c.Body)
	}
	assert.True(t, offsets[0])
	assert.True(t, offsets[2*64*1024])

	assert.Equal(t, 3, res.Chunks)
	assert.Equal(t, 1, res.ChunksSkipped)
}

func TestUploadPagesSkippedChunksAdvanceProgress(t *testing.T) {
	data := testutil.ZeroBytes(256 * 1024)

	svc := &testutil.MockService{}
	tracker := &testutil.MockProgressTracker{}
	cfg := pageConfig(svc)
	cfg.ChunkSize = 64 * 1024
	cfg.Progress = tracker

	_, err := UploadPages(context.Background(), cfg, bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	assert.True(t, tracker.Completed())
	last, ok := tracker.LastUpdate()
	require.True(t, ok)
	assert.Equal(t, int64(len(data)), last.BytesTransferred)
}

func TestUploadPagesNoFinalizeWithoutDigest(t *testing.T) {
	data := testutil.ZeroBytes(64 * 1024)

	svc := &testutil.MockService{}
	cfg := pageConfig(svc)
	cfg.ChunkSize = 64 * 1024
	cfg.StoreFinalDigest = false

	res, err := UploadPages(context.Background(), cfg, bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	assert.Equal(t, 0, svc.SetPropertiesCount())
	assert.Empty(t, res.ContentDigest)
}

func TestUploadPagesCreateFailureAborts(t *testing.T) {
	svc := &testutil.MockService{}
	svc.CreatePageBlobFunc = func(
		_ context.Context, _, _ string, _ int64, _ blobapi.Properties,
	) (*blobapi.PutResult, error) {
		return nil, bloberrors.NewRequestError(403, bloberrors.CodeAuthFailure, "forbidden")
	}

	_, err := UploadPages(context.Background(), pageConfig(svc), bytes.NewReader(testutil.ZeroBytes(1024)), 1024)
	require.Error(t, err)
	assert.ErrorIs(t, err, bloberrors.ErrAccessDenied)
	assert.Empty(t, svc.PutPagesCalls())
}

func TestUploadPagesTransactionalDigestPerChunk(t *testing.T) {
	data := testutil.NewDataGenerator(23).Bytes(128 * 1024)

	svc := &testutil.MockService{}
	cfg := pageConfig(svc)
	cfg.ChunkSize = 64 * 1024
	cfg.UseTransactionalDigest = true

	_, err := UploadPages(context.Background(), cfg, bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	for _, c := range svc.PutPagesCalls() {
		assert.Equal(t, digest.Canonical.FromBytes(c.Body), c.Digest)
	}
}

func TestUploadPagesCancelDuringAdmissionNeverFinalizes(t *testing.T) {
	// Same shape as the block-upload cancellation case: the first page
	// write ignores cancellation while the next chunk waits for admission.
	// The transfer must fail rather than finalize with ranges missing.
	data := testutil.NewDataGenerator(11).Bytes(3 * 512 * 1024)

	svc := &testutil.MockService{}
	started := make(chan struct{}, 3)
	release := make(chan struct{})
	svc.PutPagesFunc = func(
		_ context.Context, _, _ string, _ int64, _ []byte, _ digest.Digest,
	) (*blobapi.PutResult, error) {
		started <- struct{}{}
		<-release
		return &blobapi.PutResult{ETag: `"e1"`}, nil
	}

	cfg := pageConfig(svc)
	cfg.Concurrency = 1

	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() {
		_, err := UploadPages(ctx, cfg, bytes.NewReader(data), int64(len(data)))
		errs <- err
	}()

	<-started
	cancel()
	close(release)

	err := <-errs
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, svc.SetPropertiesCount())
}
