package tcpcore

import (
	"fmt"

	"github.com/anemos-os/netstack/internal/necode"
	"github.com/anemos-os/netstack/internal/wire"
)

// HeaderSize is the fixed 20-byte segment header this stack builds and
// accepts (no TCP options beyond what §4.5.3 specifies, i.e. none at
// the wire level). No MSS is advertised to the peer; outbound payloads
// are capped at the MSS constant.
const HeaderSize = 20

// Flag bits of the 1-byte flags field.
const (
	FlagFIN uint8 = 1 << 0
	FlagSYN uint8 = 1 << 1
	FlagRST uint8 = 1 << 2
	FlagPSH uint8 = 1 << 3
	FlagACK uint8 = 1 << 4
	FlagURG uint8 = 1 << 5
)

// Segment is the parsed form of a TCP-like segment.
type Segment struct {
	SrcPort uint16
	DstPort uint16
	Seq     uint32
	Ack     uint32
	Flags   uint8
	Window  uint16
	Payload []byte
}

func (s Segment) has(flag uint8) bool { return s.Flags&flag != 0 }

// Marshal serializes the segment header and payload and fills in the
// checksum using the 12-byte pseudo-header described in spec §4.5.3.
func (s Segment) Marshal(srcIP, dstIP uint32) []byte {
	total := HeaderSize + len(s.Payload)
	b := make([]byte, total)
	wire.PutUint16(b[0:2], s.SrcPort)
	wire.PutUint16(b[2:4], s.DstPort)
	wire.PutUint32(b[4:8], s.Seq)
	wire.PutUint32(b[8:12], s.Ack)
	b[12] = s.Flags
	b[13] = 0 // reserved
	wire.PutUint16(b[14:16], s.Window)
	wire.PutUint16(b[16:18], 0) // checksum placeholder
	wire.PutUint16(b[18:20], 0) // urgent pointer, unused
	copy(b[HeaderSize:], s.Payload)

	cs := segmentChecksum(srcIP, dstIP, b)
	wire.PutUint16(b[16:18], cs)
	return b
}

func segmentChecksum(srcIP, dstIP uint32, segment []byte) uint16 {
	pseudo := make([]byte, 12)
	wire.PutUint32(pseudo[0:4], srcIP)
	wire.PutUint32(pseudo[4:8], dstIP)
	pseudo[8] = 0
	pseudo[9] = protoTCP
	wire.PutUint16(pseudo[10:12], uint16(len(segment)))

	sum := wire.ChecksumFold(0, pseudo)
	sum = wire.ChecksumFold(sum, segment)
	return wire.ChecksumFinish(sum)
}

const protoTCP = 6

// ParseSegment validates the checksum and parses a segment from buf.
func ParseSegment(srcIP, dstIP uint32, buf []byte) (Segment, error) {
	if len(buf) < HeaderSize {
		return Segment{}, fmt.Errorf("tcpcore: short segment (%d bytes): %w", len(buf), necode.ErrInvalidArgument)
	}
	want := wire.GetUint16(buf[16:18])
	check := make([]byte, len(buf))
	copy(check, buf)
	wire.PutUint16(check[16:18], 0)
	got := segmentChecksum(srcIP, dstIP, check)
	if got != want {
		return Segment{}, fmt.Errorf("tcpcore: checksum mismatch: %w", necode.ErrChecksumMismatch)
	}

	s := Segment{
		SrcPort: wire.GetUint16(buf[0:2]),
		DstPort: wire.GetUint16(buf[2:4]),
		Seq:     wire.GetUint32(buf[4:8]),
		Ack:     wire.GetUint32(buf[8:12]),
		Flags:   buf[12],
		Window:  wire.GetUint16(buf[14:16]),
	}
	if len(buf) > HeaderSize {
		s.Payload = buf[HeaderSize:]
	}
	return s, nil
}

// recvSegment trims seg's payload to the portion that actually lands
// in the receive window (spec §4.5.4 "straddling segments"): bytes
// already consumed (sequence numbers below rcvNxt) are stripped from
// the front, and bytes beyond the advertised receive window are
// stripped from the back. inWindow is false only when seg's starting
// sequence is still ahead of rcvNxt — a genuine gap, which this stack
// drops outright rather than buffering in a reassembly queue.
func recvSegment(t *tcb, seg Segment) (payload []byte, inWindow bool) {
	if SeqGreater(seg.Seq, t.rcvNxt) {
		return nil, false
	}
	offset := t.rcvNxt - seg.Seq
	if offset < uint32(len(seg.Payload)) {
		payload = seg.Payload[offset:]
	}
	if uint32(len(payload)) > t.rcvWnd {
		payload = payload[:t.rcvWnd]
	}
	return payload, true
}

// seqConsumed is 1 for SYN/FIN segments (each consumes one sequence
// position) plus the payload length; pure ACKs and zero-length data
// consume nothing beyond the payload (spec §4.5.2).
func seqConsumed(flags uint8, payloadLen int) uint32 {
	n := uint32(payloadLen)
	if flags&FlagSYN != 0 {
		n++
	}
	if flags&FlagFIN != 0 {
		n++
	}
	return n
}
