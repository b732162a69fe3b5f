// Package udp implements UdpPath (spec §4.6): the stateless 8-byte
// datagram header and delivery to a socket's receive queue.
package udp

import (
	"fmt"
	"log/slog"

	"github.com/anemos-os/netstack/internal/necode"
	"github.com/anemos-os/netstack/internal/wire"
)

// HeaderSize is the fixed UDP-style header: src port(2) + dst port(2) +
// length(2) + checksum(2).
const HeaderSize = 8

const protoUDP = 17

// Header is the parsed form of a UDP-style datagram header.
type Header struct {
	SrcPort  uint16
	DstPort  uint16
	Length   uint16 // header + payload
	Checksum uint16
}

// Marshal serializes the header and payload, computing the checksum
// over the 12-byte pseudo-header (spec §4.5.3 style, protocol=17)
// followed by the datagram. A checksum of zero is valid and means "not
// computed" (spec §4.6).
func Marshal(srcIP, dstIP uint32, srcPort, dstPort uint16, payload []byte) []byte {
	length := uint16(HeaderSize + len(payload))
	b := make([]byte, length)
	wire.PutUint16(b[0:2], srcPort)
	wire.PutUint16(b[2:4], dstPort)
	wire.PutUint16(b[4:6], length)
	wire.PutUint16(b[6:8], 0) // checksum placeholder
	copy(b[HeaderSize:], payload)

	cs := checksum(srcIP, dstIP, b)
	if cs == 0 {
		cs = 0xFFFF // avoid emitting the reserved "no checksum" value for an actual zero sum
	}
	wire.PutUint16(b[6:8], cs)
	return b
}

func checksum(srcIP, dstIP uint32, datagram []byte) uint16 {
	pseudo := make([]byte, 12)
	wire.PutUint32(pseudo[0:4], srcIP)
	wire.PutUint32(pseudo[4:8], dstIP)
	pseudo[8] = 0
	pseudo[9] = protoUDP
	wire.PutUint16(pseudo[10:12], uint16(len(datagram)))

	sum := wire.ChecksumFold(0, pseudo)
	sum = wire.ChecksumFold(sum, datagram)
	return wire.ChecksumFinish(sum)
}

// Parse validates and parses a UDP-style datagram. A zero checksum
// field is accepted unconditionally (spec §4.6 "checksum=0 valid").
func Parse(srcIP, dstIP uint32, buf []byte) (Header, []byte, error) {
	if len(buf) < HeaderSize {
		return Header{}, nil, fmt.Errorf("udp: short datagram (%d bytes): %w", len(buf), necode.ErrInvalidArgument)
	}
	h := Header{
		SrcPort:  wire.GetUint16(buf[0:2]),
		DstPort:  wire.GetUint16(buf[2:4]),
		Length:   wire.GetUint16(buf[4:6]),
		Checksum: wire.GetUint16(buf[6:8]),
	}
	if int(h.Length) > len(buf) || int(h.Length) < HeaderSize {
		return Header{}, nil, fmt.Errorf("udp: bad length %d: %w", h.Length, necode.ErrInvalidArgument)
	}
	if h.Checksum != 0 {
		check := make([]byte, h.Length)
		copy(check, buf[:h.Length])
		wire.PutUint16(check[6:8], 0)
		if checksum(srcIP, dstIP, check) != h.Checksum {
			return Header{}, nil, fmt.Errorf("udp: checksum mismatch: %w", necode.ErrChecksumMismatch)
		}
	}
	return h, buf[HeaderSize:h.Length], nil
}

// Datagram is one received UDP-style payload with its originating
// address, handed to the socket layer's receive queue.
type Datagram struct {
	SrcIP   uint32
	SrcPort uint16
	Payload []byte
}

// Deliverer accepts a received datagram addressed to localPort,
// implemented by internal/socket's endpoint table.
type Deliverer interface {
	Deliver(localPort uint16, dg Datagram)
}

// Path wires UDP receive dispatch to the socket layer's delivery
// contract (spec §4.6 "deliver to socket receive queue").
type Path struct {
	deliverer Deliverer
	logger    *slog.Logger
}

// New creates a Path that hands inbound datagrams to deliverer.
func New(deliverer Deliverer, logger *slog.Logger) *Path {
	if logger == nil {
		logger = slog.Default()
	}
	return &Path{deliverer: deliverer, logger: logger}
}

// Receive is the inbound entry point registered with the IP layer for
// protocol 17.
func (p *Path) Receive(src, dst uint32, payload []byte) {
	h, body, err := Parse(src, dst, payload)
	if err != nil {
		p.logger.Debug("udp: dropping malformed datagram", "err", err)
		return
	}
	p.deliverer.Deliver(h.DstPort, Datagram{SrcIP: src, SrcPort: h.SrcPort, Payload: body})
}
