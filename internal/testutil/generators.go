package testutil

import (
	"bytes"
	"io"
	"math/rand"
)

// DataGenerator produces deterministic test payloads from a fixed seed so
// failures reproduce byte-for-byte.
type DataGenerator struct {
	rng *rand.Rand
}

// NewDataGenerator creates a generator seeded with the given value.
func NewDataGenerator(seed int64) *DataGenerator {
	return &DataGenerator{rng: rand.New(rand.NewSource(seed))}
}

// Bytes returns size bytes of deterministic pseudo-random data.
func (g *DataGenerator) Bytes(size int) []byte {
	data := make([]byte, size)
	g.rng.Read(data)
	return data
}

// Reader returns a reader over size bytes of deterministic data along with
// the backing slice for later comparison.
func (g *DataGenerator) Reader(size int) (io.Reader, []byte) {
	data := g.Bytes(size)
	return bytes.NewReader(data), data
}

// ZeroBytes returns size bytes of zeroes.
func ZeroBytes(size int) []byte {
	return make([]byte, size)
}

// WriterAt is an in-memory io.WriterAt backed by a fixed-size buffer, used
// as a download sink.
type WriterAt struct {
	buf []byte
}

// NewWriterAt creates a sink of the given size.
func NewWriterAt(size int64) *WriterAt {
	return &WriterAt{buf: make([]byte, size)}
}

// WriteAt implements io.WriterAt.
func (w *WriterAt) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 || off+int64(len(p)) > int64(len(w.buf)) {
		return 0, io.ErrShortWrite
	}
	return copy(w.buf[off:], p), nil
}

// Bytes returns the written contents.
func (w *WriterAt) Bytes() []byte {
	return w.buf
}
