// Package ipv4 implements IpLayer (spec §4.4): datagram header build and
// parse, the one's-complement checksum, the local-vs-gateway routing
// decision, and protocol dispatch to the transport layers.
package ipv4

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/anemos-os/netstack/internal/link"
	"github.com/anemos-os/netstack/internal/necode"
	"github.com/anemos-os/netstack/internal/wire"
)

// Protocol numbers dispatched by IpLayer (spec §4.4).
const (
	ProtoICMP uint8 = 1
	ProtoTCP  uint8 = 6
	ProtoUDP  uint8 = 17
)

const (
	// HeaderSize is the fixed 20-byte IPv4 header this stack builds and
	// requires (no IP options).
	HeaderSize = 20
	version4   = 4
	ihlWords   = 5 // header length in 32-bit words for a 20-byte header
	defaultTTL = 64
	flagDF     = 0x4000 // don't-fragment bit within the 16-bit flags/fragoffset field
)

// Header is the parsed form of an IPv4 header.
type Header struct {
	IHL      uint8 // header length in 32-bit words
	TTL      uint8
	Protocol uint8
	ID       uint16
	Src      uint32
	Dst      uint32
	Checksum uint16
	Total    uint16 // total datagram length (header + payload)
}

// Marshal serializes the header to 20 bytes and fills in the checksum.
func (h Header) Marshal() []byte {
	b := make([]byte, HeaderSize)
	b[0] = version4<<4 | ihlWords
	b[1] = 0 // DSCP/ECN, unused
	wire.PutUint16(b[2:4], h.Total)
	wire.PutUint16(b[4:6], h.ID)
	wire.PutUint16(b[6:8], flagDF)
	b[8] = h.TTL
	b[9] = h.Protocol
	wire.PutUint16(b[10:12], 0) // checksum placeholder
	wire.PutUint32(b[12:16], h.Src)
	wire.PutUint32(b[16:20], h.Dst)
	cs := wire.Checksum(b[:HeaderSize])
	wire.PutUint16(b[10:12], cs)
	return b
}

// ParseHeader validates and parses an IPv4 header from the front of
// pkt, returning the header and the remaining payload (truncated to
// Header.Total when the driver handed up more than the datagram, e.g.
// Ethernet padding).
func ParseHeader(pkt []byte) (Header, []byte, error) {
	if len(pkt) < HeaderSize {
		return Header{}, nil, fmt.Errorf("ipv4: short packet (%d bytes): %w", len(pkt), necode.ErrInvalidArgument)
	}
	verIHL := pkt[0]
	version := verIHL >> 4
	ihl := verIHL & 0x0F
	if version != version4 {
		return Header{}, nil, fmt.Errorf("ipv4: bad version %d: %w", version, necode.ErrInvalidArgument)
	}
	headerBytes := int(ihl) * 4
	if ihl < ihlWords || headerBytes > len(pkt) {
		return Header{}, nil, fmt.Errorf("ipv4: bad header length %d words: %w", ihl, necode.ErrInvalidArgument)
	}
	if wire.Checksum(pkt[:headerBytes]) != 0 {
		return Header{}, nil, fmt.Errorf("ipv4: checksum mismatch: %w", necode.ErrChecksumMismatch)
	}

	h := Header{
		IHL:      ihl,
		Total:    wire.GetUint16(pkt[2:4]),
		ID:       wire.GetUint16(pkt[4:6]),
		TTL:      pkt[8],
		Protocol: pkt[9],
		Checksum: wire.GetUint16(pkt[10:12]),
		Src:      wire.GetUint32(pkt[12:16]),
		Dst:      wire.GetUint32(pkt[16:20]),
	}
	end := len(pkt)
	if int(h.Total) >= headerBytes && int(h.Total) <= len(pkt) {
		end = int(h.Total)
	}
	return h, pkt[headerBytes:end], nil
}

// Config is the process-wide IpConfig (spec §3): local address, netmask,
// gateway, and the rolling identification counter. Mutable only via
// Reconfigure, as the spec's "mutable only via explicit reconfiguration
// calls" requires.
type Config struct {
	Local   uint32
	Netmask uint32
	Gateway uint32

	idCounter atomic.Uint32
}

// NewConfig builds an IpConfig for the given local/netmask/gateway.
func NewConfig(local, netmask, gateway uint32) *Config {
	return &Config{Local: local, Netmask: netmask, Gateway: gateway}
}

// Reconfigure atomically replaces local/netmask/gateway.
func (c *Config) Reconfigure(local, netmask, gateway uint32) {
	c.Local, c.Netmask, c.Gateway = local, netmask, gateway
}

// NextID returns the next 16-bit identification value, wrapping freely
// (spec §5 "process-wide and wraps freely").
func (c *Config) NextID() uint16 {
	return uint16(c.idCounter.Add(1))
}

// BroadcastAddr returns the all-ones broadcast address.
const BroadcastAddr uint32 = 0xFFFFFFFF

// IsSubnetBroadcast reports whether addr is the directed broadcast
// address of the configured local subnet.
func (c *Config) IsSubnetBroadcast(addr uint32) bool {
	return addr == (c.Local&c.Netmask)|^c.Netmask
}

// IsLocal reports whether addr falls in the locally-attached subnet.
func (c *Config) IsLocal(addr uint32) bool {
	return addr&c.Netmask == c.Local&c.Netmask
}

// NextHop implements the spec §4.4 routing decision: deliver directly to
// dest when it shares our subnet or is a broadcast address, otherwise
// via the gateway. isBroadcast reports that the caller should address
// the link-layer broadcast hardware address directly, bypassing ARP.
func (c *Config) NextHop(dest uint32) (nextHop uint32, isBroadcast bool) {
	if dest == BroadcastAddr || c.IsSubnetBroadcast(dest) {
		return dest, true
	}
	if c.IsLocal(dest) {
		return dest, false
	}
	return c.Gateway, false
}

// Resolver resolves a next-hop internet address to a hardware address,
// implemented by internal/arp.Cache. Pending is not an error (spec §7):
// the caller drops the outbound packet and logs.
type Resolver interface {
	Lookup(ip uint32) (hw link.HWAddr, pending bool)
}

// Handler processes an inbound datagram payload for one protocol number.
type Handler func(src, dst uint32, payload []byte)

// Layer wires IpConfig, the link layer, the ARP resolver, and the
// transport dispatch table together (spec §4.4).
type Layer struct {
	Cfg      *Config
	link     *link.Layer
	resolver Resolver
	logger   *slog.Logger
	handlers map[uint8]Handler
}

// New creates an IP layer bound to cfg, the link layer used for
// transmission, and the ARP resolver used for next-hop lookups.
func New(cfg *Config, linkLayer *link.Layer, resolver Resolver, logger *slog.Logger) *Layer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Layer{
		Cfg:      cfg,
		link:     linkLayer,
		resolver: resolver,
		logger:   logger,
		handlers: make(map[uint8]Handler),
	}
}

// Register installs the handler invoked for inbound datagrams carrying
// the given protocol number.
func (l *Layer) Register(protocol uint8, h Handler) {
	l.handlers[protocol] = h
}

// Send builds a datagram to dest carrying payload under protocol,
// resolves the next hop to a hardware address, and transmits it via the
// link layer. If the next hop is not yet resolved, the packet is
// dropped and logged per spec §7 ("ARP unresolved returns Pending, ...
// the packet is not queued").
func (l *Layer) Send(dest uint32, protocol uint8, payload []byte) error {
	if len(payload) > link.MaxPayload-HeaderSize {
		return fmt.Errorf("ipv4: payload %d exceeds mtu budget: %w", len(payload), necode.ErrInvalidArgument)
	}
	h := Header{
		TTL:      defaultTTL,
		Protocol: protocol,
		ID:       l.Cfg.NextID(),
		Src:      l.Cfg.Local,
		Dst:      dest,
		Total:    uint16(HeaderSize + len(payload)),
	}
	datagram := append(h.Marshal(), payload...)

	nextHop, broadcast := l.Cfg.NextHop(dest)
	var dstHW link.HWAddr
	if broadcast {
		dstHW = link.BroadcastHW
	} else {
		hw, pending := l.resolver.Lookup(nextHop)
		if pending {
			l.logger.Debug("ipv4: next hop unresolved, dropping", "next_hop", nextHop)
			return nil
		}
		dstHW = hw
	}
	return l.link.Transmit(dstHW, link.EtherTypeIPv4, datagram)
}

// Receive is the inbound entry point registered with the link layer's
// EtherTypeIPv4 handler. It validates the header, applies the
// local/broadcast/multicast acceptance filter, and dispatches by
// protocol number. This stack never forwards (spec §4.4).
func (l *Layer) Receive(_ link.HWAddr, pkt []byte) {
	h, payload, err := ParseHeader(pkt)
	if err != nil {
		l.logger.Debug("ipv4: dropping malformed datagram", "err", err)
		return
	}
	if h.TTL == 0 {
		l.logger.Debug("ipv4: dropping datagram with ttl 0")
		return
	}
	// A top nibble of 0xE is the 224.0.0.0/4 multicast range.
	if h.Dst != l.Cfg.Local && h.Dst != BroadcastAddr && !l.Cfg.IsSubnetBroadcast(h.Dst) && h.Dst>>28 != 0xE {
		return
	}
	handler, ok := l.handlers[h.Protocol]
	if !ok {
		l.logger.Debug("ipv4: no handler for protocol, dropping", "protocol", h.Protocol)
		return
	}
	handler(h.Src, h.Dst, payload)
}
