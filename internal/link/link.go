// Package link implements LinkLayer (spec §4.2): the fixed 14-byte
// Ethernet-style frame header, EtherType multiplexing, and the inbound
// dispatch decision (accept for us vs. drop).
package link

import (
	"fmt"
	"log/slog"
	"net"

	"github.com/anemos-os/netstack/internal/necode"
	"github.com/anemos-os/netstack/internal/wire"
)

const (
	// HeaderSize is the fixed Ethernet-style link header: dest(6) +
	// src(6) + ethertype(2).
	HeaderSize = 14

	// MinFrameSize is the minimum wire size a frame is padded to on
	// transmit.
	MinFrameSize = 64

	// MaxPayload is the largest payload (above the link header) this
	// stack will build or accept; spec §8 "Maximum frame size (payload
	// = 1500) is acceptable; 1501 is refused."
	MaxPayload = 1500
)

// EtherType selectors multiplexed by LinkLayer.Dispatch.
const (
	EtherTypeIPv4 uint16 = 0x0800
	EtherTypeARP  uint16 = 0x0806
)

// HWAddr is a 48-bit hardware address.
type HWAddr [6]byte

// BroadcastHW is the all-ones hardware broadcast address.
var BroadcastHW = HWAddr{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}

// IsBroadcast reports whether addr is the all-ones broadcast address.
func IsBroadcast(addr HWAddr) bool { return addr == BroadcastHW }

// String renders addr in standard colon-separated hex notation.
func (addr HWAddr) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", addr[0], addr[1], addr[2], addr[3], addr[4], addr[5])
}

// ParseHWAddr parses a colon-separated hex hardware address string
// (e.g. "aa:bb:cc:dd:ee:ff").
func ParseHWAddr(s string) (HWAddr, error) {
	mac, err := net.ParseMAC(s)
	if err != nil || len(mac) != 6 {
		return HWAddr{}, fmt.Errorf("link: parse hardware address %q: %w", s, necode.ErrInvalidArgument)
	}
	var addr HWAddr
	copy(addr[:], mac)
	return addr, nil
}

// IsMulticast reports whether addr has the Ethernet multicast bit set
// (the low-order bit of the first octet).
func IsMulticast(addr HWAddr) bool { return addr[0]&0x01 != 0 }

// Header is the parsed form of the 14-byte link header.
type Header struct {
	Dst       HWAddr
	Src       HWAddr
	EtherType uint16
}

// Marshal writes the header to a 14-byte slice.
func (h Header) Marshal() []byte {
	b := make([]byte, HeaderSize)
	copy(b[0:6], h.Dst[:])
	copy(b[6:12], h.Src[:])
	wire.PutUint16(b[12:14], h.EtherType)
	return b
}

// ParseHeader parses a link header from the front of frame, returning
// the header and the remaining payload slice (still backed by frame).
func ParseHeader(frame []byte) (Header, []byte, error) {
	if len(frame) < HeaderSize {
		return Header{}, nil, fmt.Errorf("link: short frame (%d bytes): %w", len(frame), necode.ErrInvalidArgument)
	}
	var h Header
	copy(h.Dst[:], frame[0:6])
	copy(h.Src[:], frame[6:12])
	h.EtherType = wire.GetUint16(frame[12:14])
	return h, frame[HeaderSize:], nil
}

// BuildFrame assembles a complete link frame: header + payload, padded
// with zero bytes to MinFrameSize if shorter. Returns
// necode.ErrInvalidArgument if payload exceeds MaxPayload.
func BuildFrame(dst, src HWAddr, etherType uint16, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayload {
		return nil, fmt.Errorf("link: payload %d exceeds max %d: %w", len(payload), MaxPayload, necode.ErrInvalidArgument)
	}
	h := Header{Dst: dst, Src: src, EtherType: etherType}
	frame := append(h.Marshal(), payload...)
	if len(frame) < MinFrameSize {
		pad := make([]byte, MinFrameSize-len(frame))
		frame = append(frame, pad...)
	}
	return frame, nil
}

// Handler processes the payload of a frame that passed the inbound
// acceptance check, given the frame's source hardware address.
type Handler func(src HWAddr, payload []byte)

// Sender transmits a fully-framed buffer; implemented by internal/driver.
type Sender interface {
	Send(frame []byte) error
}

// Layer ties together header build/parse, EtherType dispatch, and the
// driver send contract (spec §6).
type Layer struct {
	LocalHW  HWAddr
	sender   Sender
	logger   *slog.Logger
	handlers map[uint16]Handler
}

// New creates a Layer bound to the local hardware address and a driver
// Sender. logger may be nil, in which case slog.Default() is used.
func New(localHW HWAddr, sender Sender, logger *slog.Logger) *Layer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Layer{
		LocalHW:  localHW,
		sender:   sender,
		logger:   logger,
		handlers: make(map[uint16]Handler),
	}
}

// Register installs the handler invoked for inbound frames carrying the
// given EtherType.
func (l *Layer) Register(etherType uint16, h Handler) {
	l.handlers[etherType] = h
}

// Transmit builds a frame to dst carrying payload under etherType and
// hands it to the driver. On driver failure, the error is logged and
// returned (spec §6: "On failure the core logs and drops").
func (l *Layer) Transmit(dst HWAddr, etherType uint16, payload []byte) error {
	frame, err := BuildFrame(dst, l.LocalHW, etherType, payload)
	if err != nil {
		return err
	}
	if err := l.sender.Send(frame); err != nil {
		l.logger.Error("link: driver send failed", "err", err, "dst", dst, "ethertype", etherType)
		return err
	}
	return nil
}

// Dispatch is the inbound entry point invoked by the driver for every
// received frame (spec §6 core_receive). It accepts frames addressed to
// the local hardware address or the broadcast address, drops everything
// else, and routes accepted frames to the handler registered for the
// frame's EtherType; frames with no registered handler are dropped.
func (l *Layer) Dispatch(frame []byte) {
	h, payload, err := ParseHeader(frame)
	if err != nil {
		l.logger.Debug("link: dropping malformed frame", "err", err)
		return
	}
	if h.Dst != l.LocalHW && !IsBroadcast(h.Dst) {
		return
	}
	handler, ok := l.handlers[h.EtherType]
	if !ok {
		l.logger.Debug("link: no handler for ethertype, dropping", "ethertype", h.EtherType)
		return
	}
	handler(h.Src, payload)
}
