package transfer

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/opencontainers/go-digest"

	"github.com/input-output-hk/catalyst-forge-libs/blob/blobtypes"
	bloberrors "github.com/input-output-hk/catalyst-forge-libs/blob/errors"
	"github.com/input-output-hk/catalyst-forge-libs/blob/internal/pool"
	"github.com/input-output-hk/catalyst-forge-libs/blob/internal/retry"
)

// Download streams a blob into w as concurrent ranged reads, reassembled by
// offset. Unless validation is disabled, the content digest is recomputed
// over the bytes in offset order and checked against the stored digest; a
// mismatch is terminal and never retried.
func Download(ctx context.Context, cfg Config, w io.WriterAt) (*blobtypes.DownloadResult, error) {
	sess := newSession(cfg, 0)

	var info *blobapiInfo
	err := retry.Do(ctx, sess.retryOptions(true), func(ctx context.Context, loc retry.Location) error {
		i, err := cfg.Service.GetProperties(ctx, loc, cfg.Container, cfg.Key)
		if err == nil {
			info = &blobapiInfo{length: i.ContentLength, etag: i.ETag, stored: i.ContentDigest}
		}
		return err
	})
	if err != nil {
		err = bloberrors.NewBlobError("download", cfg.Container, cfg.Key, err)
		sess.finish(err)
		return nil, err
	}

	size := info.length
	sess.total = size

	if size == 0 {
		sess.finish(nil)
		return &blobtypes.DownloadResult{Key: cfg.Key, ETag: info.etag, Duration: time.Since(sess.start)}, nil
	}

	arena := pool.NewArena(cfg.Concurrency+1, cfg.ChunkSize)
	sched := NewScheduler(cfg.Concurrency)
	hasher := newOrderedHasher(arena, !cfg.DisableDigestValidation)

	chunks := 0
	for offset := int64(0); offset < size; offset += cfg.ChunkSize {
		want := cfg.ChunkSize
		if size-offset < want {
			want = size - offset
		}

		buf, err := arena.Acquire(ctx)
		if err != nil {
			break
		}

		op := rangeOp(sess, hasher, w, rangeChunk{seq: chunks, offset: offset, buf: buf[:want]})
		if err := sched.Launch(ctx, op); err != nil {
			arena.Release(buf)
			break
		}
		chunks++
	}

	sess.setPhase(PhaseDraining)
	if err := sched.Wait(); err != nil {
		sess.finish(err)
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		sess.finish(err)
		return nil, err
	}

	sess.setPhase(PhaseCommitting)
	acked := sess.bytesAcked.Load()
	if acked != size {
		err := bloberrors.NewBlobError("download", cfg.Container, cfg.Key,
			fmt.Errorf("%w: got %d bytes, want %d", bloberrors.ErrLengthMismatch, acked, size))
		sess.finish(err)
		return nil, err
	}

	computed := hasher.digest()
	if !cfg.DisableDigestValidation && info.stored != "" && computed != info.stored {
		err := bloberrors.NewBlobError("download", cfg.Container, cfg.Key,
			fmt.Errorf("%w: got %s, want %s", bloberrors.ErrDigestMismatch, computed, info.stored))
		sess.finish(err)
		return nil, err
	}

	sess.finish(nil)
	return &blobtypes.DownloadResult{
		Key:           cfg.Key,
		Size:          size,
		ETag:          info.etag,
		ContentDigest: computed,
		Chunks:        chunks,
		Duration:      time.Since(sess.start),
	}, nil
}

// blobapiInfo is the slice of blob properties the downloader needs.
type blobapiInfo struct {
	length int64
	etag   string
	stored digest.Digest
}

// rangeChunk describes one ranged read.
type rangeChunk struct {
	seq    int
	offset int64
	buf    []byte
}

// rangeOp binds one ranged read to its GetRange call. The buffer is handed
// to the ordered hasher on success, which releases it once the bytes have
// been folded into the running digest in offset order.
func rangeOp(sess *session, hasher *orderedHasher, w io.WriterAt, rc rangeChunk) Operation {
	return func(ctx context.Context) error {
		err := retry.Do(ctx, sess.retryOptions(true), func(ctx context.Context, loc retry.Location) error {
			res, err := sess.cfg.Service.GetRange(ctx, loc, sess.cfg.Container, sess.cfg.Key, rc.offset, rc.buf)
			if err != nil {
				return err
			}
			if res.Bytes != len(rc.buf) {
				return fmt.Errorf("short range read: got %d bytes, want %d", res.Bytes, len(rc.buf))
			}
			return nil
		})
		if err != nil {
			hasher.release(rc.buf)
			return bloberrors.NewBlobError("getRange", sess.cfg.Container, sess.cfg.Key, err)
		}

		if _, err := w.WriteAt(rc.buf, rc.offset); err != nil {
			hasher.release(rc.buf)
			return bloberrors.NewBlobError("getRange", sess.cfg.Container, sess.cfg.Key,
				fmt.Errorf("writing chunk at offset %d: %w", rc.offset, err))
		}

		hasher.add(rc.seq, rc.buf)
		sess.advance(int64(len(rc.buf)))
		return nil
	}
}

// orderedHasher folds completed chunks into the running digest in sequence
// order, holding out-of-order completions until their predecessors arrive.
// At most one arena's worth of buffers is ever held, so memory stays
// bounded by the pool.
type orderedHasher struct {
	mu       sync.Mutex
	next     int
	pending  map[int][]byte
	digester digest.Digester
	arena    *pool.Arena
	enabled  bool
}

func newOrderedHasher(arena *pool.Arena, enabled bool) *orderedHasher {
	return &orderedHasher{
		pending:  make(map[int][]byte),
		digester: digest.Canonical.Digester(),
		arena:    arena,
		enabled:  enabled,
	}
}

// add accepts a completed chunk's buffer and flushes any run of in-order
// chunks into the digest, releasing their buffers.
func (h *orderedHasher) add(seq int, buf []byte) {
	if !h.enabled {
		h.arena.Release(buf)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.pending[seq] = buf
	for {
		data, ok := h.pending[h.next]
		if !ok {
			return
		}
		_, _ = h.digester.Hash().Write(data)
		h.arena.Release(data)
		delete(h.pending, h.next)
		h.next++
	}
}

// release returns a failed chunk's buffer without hashing it.
func (h *orderedHasher) release(buf []byte) {
	h.arena.Release(buf)
}

// digest returns the digest over all flushed chunks.
func (h *orderedHasher) digest() digest.Digest {
	if !h.enabled {
		return ""
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.digester.Digest()
}
