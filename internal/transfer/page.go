package transfer

import (
	"context"
	"io"
	"time"

	"github.com/input-output-hk/catalyst-forge-libs/blob/blobtypes"
	bloberrors "github.com/input-output-hk/catalyst-forge-libs/blob/errors"
	"github.com/input-output-hk/catalyst-forge-libs/blob/internal/pool"
	"github.com/input-output-hk/catalyst-forge-libs/blob/internal/retry"
)

// UploadPages streams size bytes from r to a page-oriented target. The blob
// is created at its full length up front; all-zero chunks are never written
// over the network (the created blob is already zero-filled), yet still
// advance progress. A finalize call stores the content digest when enabled.
func UploadPages(ctx context.Context, cfg Config, r io.Reader, size int64) (*blobtypes.UploadResult, error) {
	sess := newSession(cfg, size)

	err := retry.Do(ctx, sess.retryOptions(false), func(ctx context.Context, _ retry.Location) error {
		_, err := cfg.Service.CreatePageBlob(ctx, cfg.Container, cfg.Key, size, cfg.Properties)
		return err
	})
	if err != nil {
		err = bloberrors.NewBlobError("createPageBlob", cfg.Container, cfg.Key, err)
		sess.finish(err)
		return nil, err
	}

	arena := pool.NewArena(cfg.Concurrency+1, cfg.ChunkSize)
	producer := NewProducer(r, size, cfg.ChunkSize, arena)
	sched := NewScheduler(cfg.Concurrency)

	chunks := 0
	skipped := 0

	var readErr error
	for {
		chunk, err := producer.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			readErr = bloberrors.NewBlobError("upload", cfg.Container, cfg.Key, err)
			break
		}
		chunks++

		// Sparse-write optimization: an all-zero chunk is already
		// represented by the zero-filled blob. Treat it as successful.
		if chunk.IsZero() {
			skipped++
			arena.Release(chunk.Data)
			sess.advance(int64(len(chunk.Data)))
			continue
		}

		if err := sched.Launch(ctx, pageOp(sess, arena, chunk)); err != nil {
			// Never-dispatched chunk: cancellation during admission is as
			// terminal as a read failure, so the blob is never finalized
			// with ranges missing.
			arena.Release(chunk.Data)
			readErr = bloberrors.NewBlobError("upload", cfg.Container, cfg.Key, err)
			break
		}
	}

	sess.setPhase(PhaseDraining)
	err = sched.Wait()
	if err == nil {
		err = readErr
	}
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		sess.finish(err)
		return nil, err
	}

	sess.setPhase(PhaseCommitting)
	etag := ""
	if d := sess.finalDigest(producer.Digest()); d != "" {
		props := cfg.Properties
		props.ContentDigest = d

		err = retry.Do(ctx, sess.retryOptions(false), func(ctx context.Context, _ retry.Location) error {
			res, err := cfg.Service.SetProperties(ctx, cfg.Container, cfg.Key, props)
			if err == nil {
				etag = res.ETag
			}
			return err
		})
		if err != nil {
			err = bloberrors.NewBlobError("finalize", cfg.Container, cfg.Key, err)
			sess.finish(err)
			return nil, err
		}

		sess.finish(nil)
		return &blobtypes.UploadResult{
			Key:           cfg.Key,
			Size:          size,
			ETag:          etag,
			ContentDigest: d,
			Chunks:        chunks,
			ChunksSkipped: skipped,
			Duration:      time.Since(sess.start),
		}, nil
	}

	sess.finish(nil)
	return &blobtypes.UploadResult{
		Key:           cfg.Key,
		Size:          size,
		Chunks:        chunks,
		ChunksSkipped: skipped,
		Duration:      time.Since(sess.start),
	}, nil
}

// pageOp binds one non-zero chunk to its PutPages call.
func pageOp(sess *session, arena *pool.Arena, chunk *Chunk) Operation {
	td := sess.chunkDigest(chunk.Data)

	return func(ctx context.Context) error {
		defer arena.Release(chunk.Data)

		err := retry.Do(ctx, sess.retryOptions(false), func(ctx context.Context, _ retry.Location) error {
			_, err := sess.cfg.Service.PutPages(ctx, sess.cfg.Container, sess.cfg.Key, chunk.Offset, chunk.Data, td)
			return err
		})
		if err != nil {
			return bloberrors.NewBlobError("putPages", sess.cfg.Container, sess.cfg.Key, err)
		}

		sess.advance(int64(len(chunk.Data)))
		return nil
	}
}
