// Package arp implements ArpCache (spec §4.3): a fixed-size address
// resolution table with a Free/Pending/Resolved/Stale entry lifecycle,
// broadcast request / unicast reply handling, and the tick-driven retry
// and expiry policy.
package arp

import (
	"fmt"
	"log/slog"

	"github.com/rs/xid"

	"github.com/anemos-os/netstack/internal/link"
	"github.com/anemos-os/netstack/internal/necode"
	"github.com/anemos-os/netstack/internal/wire"
)

var errShortPacket = fmt.Errorf("arp: short packet: %w", necode.ErrInvalidArgument)

// State is the lifecycle state of one cache entry.
type State int

const (
	Free State = iota
	Pending
	Resolved
	Stale
)

func (s State) String() string {
	switch s {
	case Free:
		return "free"
	case Pending:
		return "pending"
	case Resolved:
		return "resolved"
	case Stale:
		return "stale"
	default:
		return "unknown"
	}
}

const (
	// DefaultCapacity is the fixed number of entries the cache holds
	// (spec §3: "fixed-size array, 64 entries default").
	DefaultCapacity = 64

	// DefaultRetryInterval is the time between retransmitted requests
	// for a Pending entry.
	DefaultRetryInterval = 1000 // ms, one timer wheel tick
	// DefaultMaxRetries bounds the number of retransmissions before a
	// Pending resolution is abandoned and the entry is freed.
	DefaultMaxRetries = 3
	// DefaultResolvedTTL is how long a Resolved entry is trusted before
	// it is demoted to Stale and due for revalidation (spec §4.3: 300s).
	DefaultResolvedTTL = 300_000 // ms
	// DefaultStaleTTL is how long a Stale entry is kept as a fallback
	// answer before it becomes eligible for eviction (spec §4.3: twice
	// the resolved timeout).
	DefaultStaleTTL = 2 * DefaultResolvedTTL // ms
)

const (
	hwTypeEthernet  = 1
	protoTypeIPv4   = 0x0800
	opRequest       = 1
	opReply         = 2
	packetSize      = 28
)

type entry struct {
	state       State
	ip          uint32
	hw          link.HWAddr
	lastUpdated int64
	retries     int

	// corrID tags one resolution attempt (set on beginResolution, cleared
	// once Resolved) so its retries and eventual outcome can be
	// correlated across separate debug log lines.
	corrID xid.ID
}

// Cache is the fixed-size ARP table bound to one link layer and local
// identity.
type Cache struct {
	entries [DefaultCapacity]entry

	localIP uint32
	localHW link.HWAddr
	link    *link.Layer
	now     func() int64
	logger  *slog.Logger

	retryInterval int64
	maxRetries    int
	resolvedTTL   int64
	staleTTL      int64
}

// New creates a Cache for the given local IP/hardware address, bound to
// linkLayer for transmitting requests/replies. now returns the current
// monotonic millisecond count (spec §9 now_ms()).
func New(localIP uint32, localHW link.HWAddr, linkLayer *link.Layer, now func() int64, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Cache{
		localIP:       localIP,
		localHW:       localHW,
		link:          linkLayer,
		now:           now,
		logger:        logger,
		retryInterval: DefaultRetryInterval,
		maxRetries:    DefaultMaxRetries,
		resolvedTTL:   DefaultResolvedTTL,
		staleTTL:      DefaultStaleTTL,
	}
	linkLayer.Register(link.EtherTypeARP, c.Receive)
	return c
}

// Tunables overrides the package-default retry/TTL parameters (spec §4.3
// Options). Capacity is not among them: the cache is a fixed-size array
// sized by DefaultCapacity, not a runtime-resizable table.
type Tunables struct {
	RetryIntervalMs int64
	MaxRetries      int
	ResolvedTTLMs   int64
	StaleTTLMs      int64
}

// NewWithTunables is New with the retry/TTL parameters overridden by any
// non-zero field of tunables; zero fields keep the package default.
func NewWithTunables(localIP uint32, localHW link.HWAddr, linkLayer *link.Layer, now func() int64, logger *slog.Logger, tunables Tunables) *Cache {
	c := New(localIP, localHW, linkLayer, now, logger)
	if tunables.RetryIntervalMs > 0 {
		c.retryInterval = tunables.RetryIntervalMs
	}
	if tunables.MaxRetries > 0 {
		c.maxRetries = tunables.MaxRetries
	}
	if tunables.ResolvedTTLMs > 0 {
		c.resolvedTTL = tunables.ResolvedTTLMs
	}
	if tunables.StaleTTLMs > 0 {
		c.staleTTL = tunables.StaleTTLMs
	}
	return c
}

// Lookup implements ipv4.Resolver. A Resolved or Stale entry returns its
// hardware address immediately (spec: stale entries remain usable while
// revalidation is in flight). A Free slot starts a new resolution and
// reports pending; a Pending entry also reports pending without
// resending (retries are timer-driven, see Tick).
func (c *Cache) Lookup(ip uint32) (link.HWAddr, bool) {
	if idx := c.find(ip); idx >= 0 {
		e := &c.entries[idx]
		switch e.state {
		case Resolved, Stale:
			return e.hw, false
		case Pending:
			return link.HWAddr{}, true
		}
	}
	c.beginResolution(ip)
	return link.HWAddr{}, true
}

// StaticSet installs a Resolved entry for ip, used for static ARP
// entries loaded from configuration (spec §10 supplemented feature:
// static ARP/route persistence). The entry is not pinned: Tick ages it
// to Stale and then frees it like any other Resolved entry, and it can
// be evicted to make room.
func (c *Cache) StaticSet(ip uint32, hw link.HWAddr) {
	idx := c.find(ip)
	if idx < 0 {
		idx = c.evictionCandidate()
	}
	c.entries[idx] = entry{state: Resolved, ip: ip, hw: hw, lastUpdated: c.now()}
}

// Entry is a read-only view of one occupied cache slot, for
// introspection (spec §12 supplemented feature: management API view of
// the ARP cache).
type Entry struct {
	IP          uint32
	HW          link.HWAddr
	State       State
	LastUpdated int64
	Retries     int
}

// Snapshot returns every non-Free entry currently held.
func (c *Cache) Snapshot() []Entry {
	out := make([]Entry, 0, len(c.entries))
	for i := range c.entries {
		e := &c.entries[i]
		if e.state == Free {
			continue
		}
		out = append(out, Entry{IP: e.ip, HW: e.hw, State: e.state, LastUpdated: e.lastUpdated, Retries: e.retries})
	}
	return out
}

func (c *Cache) find(ip uint32) int {
	for i := range c.entries {
		if c.entries[i].state != Free && c.entries[i].ip == ip {
			return i
		}
	}
	return -1
}

// evictionCandidate picks a slot per the spec §3 eviction order: prefer
// a Free slot, then the oldest Stale entry, then the oldest Resolved
// entry, and only as a last resort the oldest Pending entry.
func (c *Cache) evictionCandidate() int {
	for i := range c.entries {
		if c.entries[i].state == Free {
			return i
		}
	}
	if idx := c.oldestInState(Stale); idx >= 0 {
		return idx
	}
	if idx := c.oldestInState(Resolved); idx >= 0 {
		return idx
	}
	return c.oldestInState(Pending)
}

func (c *Cache) oldestInState(st State) int {
	best := -1
	for i := range c.entries {
		if c.entries[i].state != st {
			continue
		}
		if best < 0 || c.entries[i].lastUpdated < c.entries[best].lastUpdated {
			best = i
		}
	}
	return best
}

func (c *Cache) beginResolution(ip uint32) {
	idx := c.evictionCandidate()
	id := xid.New()
	c.entries[idx] = entry{state: Pending, ip: ip, lastUpdated: c.now(), retries: 0, corrID: id}
	c.sendRequest(ip, id)
}

func (c *Cache) sendRequest(targetIP uint32, corrID xid.ID) {
	pkt := buildPacket(opRequest, c.localHW, c.localIP, link.HWAddr{}, targetIP)
	if err := c.link.Transmit(link.BroadcastHW, link.EtherTypeARP, pkt); err != nil {
		c.logger.Debug("arp: request transmit failed", "err", err, "target_ip", targetIP, "corr_id", corrID.String())
	}
}

// Receive handles an inbound ARP packet delivered by the link layer.
func (c *Cache) Receive(_ link.HWAddr, payload []byte) {
	pkt, err := parsePacket(payload)
	if err != nil {
		c.logger.Debug("arp: dropping malformed packet", "err", err)
		return
	}

	if pkt.senderIP != 0 {
		c.learn(pkt.senderIP, pkt.senderHW)
	}

	if pkt.opcode == opRequest && pkt.targetIP == c.localIP {
		reply := buildPacket(opReply, c.localHW, c.localIP, pkt.senderHW, pkt.senderIP)
		if err := c.link.Transmit(pkt.senderHW, link.EtherTypeARP, reply); err != nil {
			c.logger.Debug("arp: reply transmit failed", "err", err)
		}
	}
}

func (c *Cache) learn(ip uint32, hw link.HWAddr) {
	idx := c.find(ip)
	if idx < 0 {
		idx = c.evictionCandidate()
	}
	c.entries[idx] = entry{state: Resolved, ip: ip, hw: hw, lastUpdated: c.now()}
}

// Tick runs the cache's timer-driven maintenance: retransmitting
// requests for Pending entries, demoting expired Resolved entries to
// Stale, and freeing expired Stale/abandoned Pending entries. It is
// invoked once per timer wheel tick (spec §4.6, ~1s cadence).
func (c *Cache) Tick() {
	now := c.now()
	for i := range c.entries {
		e := &c.entries[i]
		switch e.state {
		case Pending:
			if now-e.lastUpdated < c.retryInterval {
				continue
			}
			if e.retries >= c.maxRetries {
				c.logger.Debug("arp: resolution abandoned", "ip", e.ip, "corr_id", e.corrID.String())
				*e = entry{}
				continue
			}
			e.retries++
			e.lastUpdated = now
			c.sendRequest(e.ip, e.corrID)
		case Resolved:
			if now-e.lastUpdated >= c.resolvedTTL {
				e.state = Stale
				e.lastUpdated = now
			}
		case Stale:
			if now-e.lastUpdated >= c.staleTTL {
				*e = entry{}
			}
		}
	}
}

type packet struct {
	opcode   uint16
	senderHW link.HWAddr
	senderIP uint32
	targetHW link.HWAddr
	targetIP uint32
}

func buildPacket(opcode uint16, senderHW link.HWAddr, senderIP uint32, targetHW link.HWAddr, targetIP uint32) []byte {
	b := make([]byte, packetSize)
	wire.PutUint16(b[0:2], hwTypeEthernet)
	wire.PutUint16(b[2:4], protoTypeIPv4)
	b[4] = 6
	b[5] = 4
	wire.PutUint16(b[6:8], opcode)
	copy(b[8:14], senderHW[:])
	wire.PutUint32(b[14:18], senderIP)
	copy(b[18:24], targetHW[:])
	wire.PutUint32(b[24:28], targetIP)
	return b
}

func parsePacket(b []byte) (packet, error) {
	if len(b) < packetSize {
		return packet{}, errShortPacket
	}
	var p packet
	p.opcode = wire.GetUint16(b[6:8])
	copy(p.senderHW[:], b[8:14])
	p.senderIP = wire.GetUint32(b[14:18])
	copy(p.targetHW[:], b[18:24])
	p.targetIP = wire.GetUint32(b[24:28])
	return p, nil
}
