package transfer

import (
	"context"
	"io"
	"time"

	"github.com/input-output-hk/catalyst-forge-libs/blob/blobtypes"
	bloberrors "github.com/input-output-hk/catalyst-forge-libs/blob/errors"
	"github.com/input-output-hk/catalyst-forge-libs/blob/internal/blobapi"
	"github.com/input-output-hk/catalyst-forge-libs/blob/internal/pool"
	"github.com/input-output-hk/catalyst-forge-libs/blob/internal/retry"
)

// UploadBlocks streams size bytes from r to a block-oriented target: each
// chunk becomes an independently addressable block, and the blob is
// committed from the full emission-ordered block ID list. An incomplete
// list is never committed, so a failed transfer never becomes visible as a
// final object.
func UploadBlocks(ctx context.Context, cfg Config, r io.Reader, size int64) (*blobtypes.UploadResult, error) {
	sess := newSession(cfg, size)

	// One slack buffer beyond the concurrency limit so the producer can
	// fill the next chunk while all workers are busy.
	arena := pool.NewArena(cfg.Concurrency+1, cfg.ChunkSize)
	producer := NewProducer(r, size, cfg.ChunkSize, arena)
	sched := NewScheduler(cfg.Concurrency)

	// Block IDs in emission order; the commit list is built from this,
	// never from completion order.
	var blockIDs []string

	var readErr error
	for {
		chunk, err := producer.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			// Stop admitting work but still drain in-flight operations
			// before reporting.
			readErr = bloberrors.NewBlobError("upload", cfg.Container, cfg.Key, err)
			break
		}

		id := BlockID(cfg.BlockIDPrefix, chunk.Seq)
		op := blockOp(sess, arena, chunk, id)
		if err := sched.Launch(ctx, op); err != nil {
			// The chunk was never dispatched: its buffer goes straight
			// back to the arena and its ID stays off the commit list.
			// Cancellation during admission is as terminal as a read
			// failure; a latched chunk failure resurfaces via Wait.
			arena.Release(chunk.Data)
			readErr = bloberrors.NewBlobError("upload", cfg.Container, cfg.Key, err)
			break
		}
		// Only dispatched blocks may ever be committed.
		blockIDs = append(blockIDs, id)
	}

	sess.setPhase(PhaseDraining)
	err := sched.Wait()
	if err == nil {
		err = readErr
	}
	if err == nil {
		// Cancellation between the last emission and the commit must not
		// produce a committed blob.
		err = ctx.Err()
	}
	if err != nil {
		sess.finish(err)
		return nil, err
	}

	sess.setPhase(PhaseCommitting)
	props := cfg.Properties
	props.ContentDigest = sess.finalDigest(producer.Digest())

	var commit *blobapi.PutResult
	err = retry.Do(ctx, sess.retryOptions(false), func(ctx context.Context, _ retry.Location) error {
		var err error
		commit, err = cfg.Service.PutBlockList(ctx, cfg.Container, cfg.Key, blockIDs, props)
		return err
	})
	if err != nil {
		err = bloberrors.NewBlobError("commit", cfg.Container, cfg.Key, err)
		sess.finish(err)
		return nil, err
	}

	sess.finish(nil)
	return &blobtypes.UploadResult{
		Key:           cfg.Key,
		Size:          size,
		ETag:          commit.ETag,
		ContentDigest: props.ContentDigest,
		Chunks:        len(blockIDs),
		Duration:      time.Since(sess.start),
	}, nil
}

// blockOp binds one chunk to its PutBlock call. The chunk's buffer belongs
// to the operation until its single terminal outcome, then returns to the
// arena.
func blockOp(sess *session, arena *pool.Arena, chunk *Chunk, id string) Operation {
	td := sess.chunkDigest(chunk.Data)

	return func(ctx context.Context) error {
		defer arena.Release(chunk.Data)

		err := retry.Do(ctx, sess.retryOptions(false), func(ctx context.Context, _ retry.Location) error {
			_, err := sess.cfg.Service.PutBlock(ctx, sess.cfg.Container, sess.cfg.Key, id, chunk.Data, td)
			return err
		})
		if err != nil {
			return bloberrors.NewBlobError("putBlock", sess.cfg.Container, sess.cfg.Key, err)
		}

		sess.advance(int64(len(chunk.Data)))
		return nil
	}
}
