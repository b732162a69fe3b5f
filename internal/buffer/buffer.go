// Package buffer implements PacketBuffer (spec §3, §4.1): an owned byte
// region with adjustable head/tail reserves that lets every protocol
// layer prepend or strip its header in place, without copying the
// payload.
//
// Layout:
//
//	+----------+------------------+----------+
//	| headroom |    data (Len())  | tailroom |
//	+----------+------------------+----------+
//	start      data          data+len    start+capacity
//
// A PacketBuffer is exclusively owned by whichever layer currently holds
// it (spec §9 "Ownership of buffers"); handing it to the next layer is a
// move, not a copy. Clone() is the only explicit way to duplicate one.
package buffer

import (
	"fmt"

	"github.com/anemos-os/netstack/internal/necode"
	"github.com/anemos-os/netstack/internal/pool"
)

// StandardCapacity is large enough to hold a full link frame (spec §8
// max payload 1500 + the 14-byte link header), the size every pooled
// buffer is allocated at regardless of how much headroom the caller
// asks for.
const StandardCapacity = 1514

var standardPool = pool.New(func() *Buffer {
	return &Buffer{region: make([]byte, StandardCapacity)}
})

// Allocate draws a StandardCapacity-sized buffer from the shared pool
// instead of hitting the allocator on every packet, positioning its
// data window after headroom bytes of reserve. Release returns it to
// the pool once the owning layer is done with it (spec §9 "Ownership
// of buffers" — Release is a deliberate hand-back, not a Close/defer
// pattern every layer must remember).
func Allocate(headroom int) (*Buffer, error) {
	if headroom < 0 || headroom > StandardCapacity {
		return nil, fmt.Errorf("buffer: allocate(%d): %w", headroom, necode.ErrInvalidArgument)
	}
	b := standardPool.Get()
	b.start = 0
	b.data = headroom
	b.length = 0
	b.Meta = Meta{}
	return b, nil
}

// Release returns b to the shared pool. b must not be used afterward.
func Release(b *Buffer) {
	standardPool.Put(b)
}

// Meta carries the side-band metadata that travels with a buffer as it
// moves between layers (spec §3 "Metadata side-band").
type Meta struct {
	LinkSrc    [6]byte
	LinkDst    [6]byte
	NetSrc     uint32
	NetDst     uint32
	Protocol   uint8
	Broadcast  bool
	Multicast  bool
	Outbound   bool // true for tx, false for rx
}

// Buffer is an owned, fixed-capacity byte region with a movable data
// window. start/data/end are always ≤ len(region); the struct never
// reallocates region after Alloc.
type Buffer struct {
	region []byte
	start  int
	data   int
	length int

	Meta Meta
}

// Alloc reserves capacity bytes with headroom bytes of initial headroom
// (data window starts empty, positioned after the headroom). It returns
// necode.ErrInvalidArgument if headroom exceeds capacity.
func Alloc(capacity, headroom int) (*Buffer, error) {
	if capacity < 0 || headroom < 0 || headroom > capacity {
		return nil, fmt.Errorf("buffer: alloc(%d, %d): %w", capacity, headroom, necode.ErrInvalidArgument)
	}
	return &Buffer{
		region: make([]byte, capacity),
		start:  0,
		data:   headroom,
		length: 0,
	}, nil
}

// Cap returns the total backing capacity.
func (b *Buffer) Cap() int { return len(b.region) }

// Len returns the current data length.
func (b *Buffer) Len() int { return b.length }

// Headroom returns the number of bytes available before the data window
// for an in-place header Push.
func (b *Buffer) Headroom() int { return b.data - b.start }

// Tailroom returns the number of bytes available after the data window
// for an in-place Put.
func (b *Buffer) Tailroom() int { return len(b.region) - b.data - b.length }

// Bytes returns the current data window. The slice aliases the
// buffer's backing array; callers must not retain it past the buffer's
// lifetime.
func (b *Buffer) Bytes() []byte { return b.region[b.data : b.data+b.length] }

// Push extends the data window frontward by n bytes, consuming
// headroom, and returns the newly exposed prefix so the caller can fill
// in a header. Used to prepend a protocol header bottom-up (transport,
// then network, then link) without copying the payload already written.
func (b *Buffer) Push(n int) ([]byte, error) {
	if n < 0 || n > b.Headroom() {
		return nil, fmt.Errorf("buffer: push(%d) exceeds headroom %d: %w", n, b.Headroom(), necode.ErrInvalidArgument)
	}
	b.data -= n
	b.length += n
	return b.region[b.data : b.data+n], nil
}

// Pull advances the data window forward by n bytes, discarding the
// prefix (used to strip a parsed header on the inbound path).
func (b *Buffer) Pull(n int) error {
	if n < 0 || n > b.length {
		return fmt.Errorf("buffer: pull(%d) exceeds length %d: %w", n, b.length, necode.ErrInvalidArgument)
	}
	b.data += n
	b.length -= n
	return nil
}

// Put extends the data window tailward by n bytes, consuming tailroom,
// and returns the newly exposed suffix for the caller to fill with
// payload.
func (b *Buffer) Put(n int) ([]byte, error) {
	if n < 0 || n > b.Tailroom() {
		return nil, fmt.Errorf("buffer: put(%d) exceeds tailroom %d: %w", n, b.Tailroom(), necode.ErrInvalidArgument)
	}
	suffix := b.region[b.data+b.length : b.data+b.length+n]
	b.length += n
	return suffix, nil
}

// Trim shrinks the data window from the tail by n bytes.
func (b *Buffer) Trim(n int) error {
	if n < 0 || n > b.length {
		return fmt.Errorf("buffer: trim(%d) exceeds length %d: %w", n, b.length, necode.ErrInvalidArgument)
	}
	b.length -= n
	return nil
}

// CopyIn overwrites the data window with payload via Put, growing the
// buffer by len(payload).
func (b *Buffer) CopyIn(payload []byte) error {
	dst, err := b.Put(len(payload))
	if err != nil {
		return err
	}
	copy(dst, payload)
	return nil
}

// Clone returns a deep, independent copy of the buffer (same headroom,
// data, and tailroom layout, separate backing array). No protocol layer
// calls it; TCP retransmission rebuilds the control segment instead.
func (b *Buffer) Clone() *Buffer {
	region := make([]byte, len(b.region))
	copy(region, b.region)
	return &Buffer{
		region: region,
		start:  b.start,
		data:   b.data,
		length: b.length,
		Meta:   b.Meta,
	}
}
