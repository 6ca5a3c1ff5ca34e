// Package pool provides memory management for chunked transfers.
//
// The arena bounds transfer memory to (concurrency x chunk size) by handing
// out a fixed set of equal-size buffers. A transfer that wants more memory
// than the arena holds waits; buffer exhaustion is backpressure, never an
// error.
package pool

import (
	"context"
	"fmt"
)

// Arena is a fixed-size pool of equal-size buffers owned by exactly one
// transfer session. Ownership of each buffer transfers atomically between
// the producer, one in-flight operation, and the arena; no two holders ever
// alias the same buffer.
type Arena struct {
	free    chan []byte
	bufSize int64
	size    int
}

// NewArena creates an arena of count buffers of bufSize bytes each.
// All buffers are allocated up front and stay live for the arena's lifetime.
func NewArena(count int, bufSize int64) *Arena {
	if count <= 0 {
		count = 1
	}

	a := &Arena{
		free:    make(chan []byte, count),
		bufSize: bufSize,
		size:    count,
	}

	for i := 0; i < count; i++ {
		a.free <- make([]byte, bufSize)
	}

	return a
}

// Acquire returns a free buffer, blocking until one is released or the
// context is done. The returned slice has the arena's full buffer capacity;
// callers re-slice it to the bytes they fill.
func (a *Arena) Acquire(ctx context.Context) ([]byte, error) {
	select {
	case buf := <-a.free:
		return buf[:cap(buf)], nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release returns a buffer to the arena. Releases are accepted in any
// order. Releasing a buffer the arena does not own, or releasing more
// buffers than were acquired, is a programming error and panics.
func (a *Arena) Release(buf []byte) {
	if int64(cap(buf)) != a.bufSize {
		panic(fmt.Sprintf("pool: released buffer capacity %d does not match arena buffer size %d", cap(buf), a.bufSize))
	}

	select {
	case a.free <- buf[:cap(buf)]:
	default:
		panic("pool: release without matching acquire")
	}
}

// Size returns the number of buffers the arena owns.
func (a *Arena) Size() int {
	return a.size
}

// BufferSize returns the size of each buffer in bytes.
func (a *Arena) BufferSize() int64 {
	return a.bufSize
}

// Free returns the number of buffers currently available without blocking.
// Intended for tests and introspection; the value is immediately stale.
func (a *Arena) Free() int {
	return len(a.free)
}
