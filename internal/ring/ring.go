// Package ring implements the fixed-capacity byte ring buffer used by
// TCP send/receive queues (spec §3 "RingBuffer").
package ring

import "github.com/anemos-os/netstack/internal/necode"

// Buffer is a fixed-capacity byte ring. Bytes occupy [0, capacity); head
// is the next write position, tail is the next read position, used is
// the current occupancy. Invariant: used <= capacity.
type Buffer struct {
	buf  []byte
	head int
	tail int
	used int
}

// New allocates a ring buffer with the given capacity in bytes.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = 1
	}
	return &Buffer{buf: make([]byte, capacity)}
}

// Cap returns the ring's total capacity.
func (r *Buffer) Cap() int { return len(r.buf) }

// Len returns the number of bytes currently buffered.
func (r *Buffer) Len() int { return r.used }

// Free returns the number of bytes that can still be written.
func (r *Buffer) Free() int { return len(r.buf) - r.used }

// Write appends as many bytes of p as fit and returns the count written.
// It never blocks and never returns an error; a short write means the
// ring is full, and the TCP send path reports ErrWouldBlock when nothing
// fits.
func (r *Buffer) Write(p []byte) int {
	n := min(len(p), r.Free())
	for i := 0; i < n; i++ {
		r.buf[r.head] = p[i]
		r.head = (r.head + 1) % len(r.buf)
	}
	r.used += n
	return n
}

// Read copies up to len(p) buffered bytes into p, advances tail, and
// returns the count read.
func (r *Buffer) Read(p []byte) int {
	n := min(len(p), r.used)
	for i := 0; i < n; i++ {
		p[i] = r.buf[r.tail]
		r.tail = (r.tail + 1) % len(r.buf)
	}
	r.used -= n
	return n
}

// Peek copies up to len(p) buffered bytes into p without advancing tail.
func (r *Buffer) Peek(p []byte) int {
	n := min(len(p), r.used)
	t := r.tail
	for i := 0; i < n; i++ {
		p[i] = r.buf[t]
		t = (t + 1) % len(r.buf)
	}
	return n
}

// Discard advances tail by n bytes without copying, as if they had been
// read. It returns necode.ErrInvalidArgument if n exceeds the buffered
// length.
func (r *Buffer) Discard(n int) error {
	if n < 0 || n > r.used {
		return necode.ErrInvalidArgument
	}
	r.tail = (r.tail + n) % len(r.buf)
	r.used -= n
	return nil
}

// Reset empties the buffer without releasing its backing array.
func (r *Buffer) Reset() {
	r.head, r.tail, r.used = 0, 0, 0
}
