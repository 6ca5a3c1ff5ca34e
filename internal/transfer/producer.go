package transfer

import (
	"context"
	"fmt"
	"io"

	"github.com/opencontainers/go-digest"

	"github.com/input-output-hk/catalyst-forge-libs/blob/internal/pool"
)

// Producer turns a source reader into a lazy, finite, ordered sequence of
// chunks. It is single-use and not restartable: the source is read exactly
// once, in strict byte order.
//
// The producer pauses naturally when the arena has no free buffer: Next
// blocks on Acquire until an in-flight operation releases one. That is the
// scheduler-full backpressure signal; no explicit pause/resume calls exist.
type Producer struct {
	r         io.Reader
	arena     *pool.Arena
	digester  digest.Digester
	total     int64
	remaining int64
	chunkSize int64
	seq       int
	done      bool
}

// NewProducer creates a producer that will emit ceil(total/chunkSize) chunks
// from r, acquiring each chunk's buffer from arena. The running content
// digest is accumulated over bytes in emission order, independent of how
// chunk operations later complete.
func NewProducer(r io.Reader, total, chunkSize int64, arena *pool.Arena) *Producer {
	return &Producer{
		r:         r,
		arena:     arena,
		digester:  digest.Canonical.Digester(),
		total:     total,
		remaining: total,
		chunkSize: chunkSize,
	}
}

// Next emits the next chunk, blocking while the arena is exhausted. It
// returns io.EOF after the final chunk; EOF means "no more chunks", not
// that any network operation has completed. A short or failed source read
// surfaces verbatim and poisons the producer.
func (p *Producer) Next(ctx context.Context) (*Chunk, error) {
	if p.done {
		return nil, io.EOF
	}
	if p.remaining == 0 {
		p.done = true
		return nil, io.EOF
	}

	buf, err := p.arena.Acquire(ctx)
	if err != nil {
		p.done = true
		return nil, err
	}

	want := p.chunkSize
	if p.remaining < want {
		want = p.remaining
	}

	n, err := io.ReadFull(p.r, buf[:want])
	if err != nil {
		p.done = true
		p.arena.Release(buf)
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("source ended %d bytes short of declared length %d: %w",
				p.remaining-int64(n), p.total, io.ErrUnexpectedEOF)
		}
		return nil, fmt.Errorf("reading source: %w", err)
	}

	chunk := &Chunk{
		Seq:    p.seq,
		Offset: p.total - p.remaining,
		Data:   buf[:want],
	}

	// Digest bytes in emission order so the final digest matches the
	// source regardless of completion order.
	_, _ = p.digester.Hash().Write(chunk.Data)

	p.seq++
	p.remaining -= want
	return chunk, nil
}

// Digest returns the running content digest over all bytes emitted so far.
// Meaningful for the whole stream only after Next has returned io.EOF.
func (p *Producer) Digest() digest.Digest {
	return p.digester.Digest()
}

// Emitted returns the number of chunks emitted so far.
func (p *Producer) Emitted() int {
	return p.seq
}

// Total returns the declared stream length in bytes.
func (p *Producer) Total() int64 {
	return p.total
}
