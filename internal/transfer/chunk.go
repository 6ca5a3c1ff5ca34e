// Package transfer implements the chunked transfer engine: chunk production,
// bounded-concurrency scheduling, per-chunk retry, and commit/finalization.
package transfer

import "fmt"

// Chunk is one fixed-size slice of a transfer's byte stream. The sequence
// number is assigned at emission, before any network activity, and is what
// the commit step orders by; completion order is irrelevant.
type Chunk struct {
	// Seq is the emission-order sequence number, starting at zero
	Seq int

	// Offset is the chunk's starting byte offset within the stream
	Offset int64

	// Data holds the chunk's bytes. The backing buffer belongs to the
	// transfer's arena; whoever holds the chunk owns the buffer until it
	// is released.
	Data []byte
}

// End returns the exclusive end offset of the chunk.
func (c *Chunk) End() int64 {
	return c.Offset + int64(len(c.Data))
}

// IsZero reports whether every byte in the chunk is zero. Page-oriented
// targets skip the network write for all-zero chunks entirely.
func (c *Chunk) IsZero() bool {
	for _, b := range c.Data {
		if b != 0 {
			return false
		}
	}
	return true
}

// BlockID mints the wire identifier for a block chunk. IDs are fixed at
// emission time; the committed list is ordered by sequence number.
func BlockID(prefix string, seq int) string {
	return fmt.Sprintf("%s-%06d", prefix, seq)
}
