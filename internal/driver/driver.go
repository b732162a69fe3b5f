// Package driver implements the link-layer I/O boundary (spec §6): the
// one place this stack touches an actual transport, whether a host TAP
// device or an in-memory loopback used for tests and cmd/netbench.
package driver

import (
	"errors"
	"io"

	"github.com/anemos-os/netstack/internal/link"
)

// Driver is the boundary between LinkLayer and the outside world: it
// reads and writes whole frames. Read blocks until a frame is
// available or the driver is closed.
type Driver interface {
	Read() ([]byte, error)
	Write(frame []byte) error
	HardwareAddr() link.HWAddr
	Close() error
}

// ErrClosed is returned by Read/Write once the driver has been closed.
var ErrClosed = errors.New("driver: closed")

// Loopback is an in-memory Driver with no kernel involvement: frames
// written to one end are handed back out Read on the same instance
// (true loopback) or, when Pair is used, delivered to a partner
// instance (virtual point-to-point link). It grounds cmd/netbench and
// the package's own tests, where a TAP device is unavailable.
type Loopback struct {
	hw    link.HWAddr
	inbox chan []byte
	peer  *Loopback
	done  chan struct{}
}

// NewLoopback creates a Loopback driver that echoes every written frame
// back to its own Read (useful for exercising a single stack without a
// peer).
func NewLoopback(hw link.HWAddr) *Loopback {
	return &Loopback{hw: hw, inbox: make(chan []byte, 64), done: make(chan struct{})}
}

// Pair connects two Loopback drivers so frames written to one arrive on
// the other's Read, modeling a point-to-point cable between two stacks.
func Pair(a, b *Loopback) {
	a.peer = b
	b.peer = a
}

func (l *Loopback) Read() ([]byte, error) {
	select {
	case frame := <-l.inbox:
		return frame, nil
	case <-l.done:
		return nil, ErrClosed
	}
}

func (l *Loopback) Write(frame []byte) error {
	cp := make([]byte, len(frame))
	copy(cp, frame)
	target := l
	if l.peer != nil {
		target = l.peer
	}
	select {
	case target.inbox <- cp:
		return nil
	case <-l.done:
		return ErrClosed
	default:
		return io.ErrShortWrite // receiver's inbox is full, frame dropped
	}
}

func (l *Loopback) HardwareAddr() link.HWAddr { return l.hw }

func (l *Loopback) Close() error {
	select {
	case <-l.done:
	default:
		close(l.done)
	}
	return nil
}
