// Package socket implements SocketApi (spec §4.7): a unified,
// integer-handled endpoint table over TcpCore and UdpPath, ephemeral
// port allocation, and per-endpoint option state.
package socket

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/anemos-os/netstack/internal/ipv4"
	"github.com/anemos-os/netstack/internal/necode"
	"github.com/anemos-os/netstack/internal/tcpcore"
	"github.com/anemos-os/netstack/internal/udp"
)

// Type selects the connectionless/connection-oriented/raw family (spec
// §4.7 "selects ... type").
type Type int

const (
	Stream Type = iota
	Datagram
	Raw
)

const (
	// DefaultCapacity is the fixed endpoint table size.
	DefaultCapacity = 256
	// HandleBase offsets exposed handles above typical low-numbered file
	// descriptor ranges, so an endpoint handle is visibly distinguishable
	// from other kernel handle spaces (spec §4.7).
	HandleBase = 1 << 16

	EphemeralPortLo = 49152
	EphemeralPortHi = 65535

	// DefaultPendingDatagrams bounds the per-endpoint datagram receive
	// queue depth; excess inbound datagrams are dropped and logged.
	DefaultPendingDatagrams = 128
)

// Handle identifies one endpoint. The zero value never names a live
// endpoint.
type Handle int64

func makeHandle(index, generation uint32) Handle {
	return Handle(HandleBase) + Handle(generation)<<32 + Handle(index)
}

func (h Handle) index() uint32 { return uint32(h) }

// Options holds the per-endpoint option state recognized by the spec
// (reuse-addr, broadcast, keepalive, timeouts, buffer sizes, last
// error). Buffer sizes are read-only after creation.
type Options struct {
	ReuseAddr   bool
	Broadcast   bool
	KeepAlive   bool
	RecvTimeout time.Duration
	SendTimeout time.Duration
	SendBufSize int
	RecvBufSize int
	LastError   error
}

type endpoint struct {
	inUse      bool
	generation uint32
	handle     Handle

	typ      Type
	protocol uint8 // meaningful for Raw only

	localIP    uint32
	localPort  uint16
	remoteIP   uint32
	remotePort uint16
	connected  bool

	tcpID  tcpcore.SocketID
	hasTCP bool

	listening bool

	pendingDatagrams []udp.Datagram
	opts             Options
}

// Table is the fixed-capacity endpoint table and the single point of
// contact between applications and TcpCore/UdpPath/IpLayer.
type Table struct {
	entries []endpoint
	ip      *ipv4.Layer
	tcp     *tcpcore.Manager
	logger  *slog.Logger

	nextEphemeral uint16

	rawSubscribers map[uint8][]Handle
}

// New creates a Table of the given capacity bound to the IP layer and
// TCP manager it dispatches to.
func New(capacity int, ip *ipv4.Layer, tcp *tcpcore.Manager, logger *slog.Logger) *Table {
	if logger == nil {
		logger = slog.Default()
	}
	t := &Table{
		entries:        make([]endpoint, capacity),
		ip:             ip,
		tcp:            tcp,
		logger:         logger,
		nextEphemeral:  EphemeralPortLo,
		rawSubscribers: make(map[uint8][]Handle),
	}
	ip.Register(ipv4.ProtoUDP, udp.New(t, logger).Receive)
	return t
}

func (t *Table) allocate() (*endpoint, error) {
	for i := range t.entries {
		if !t.entries[i].inUse {
			e := &t.entries[i]
			gen := e.generation
			*e = endpoint{inUse: true, generation: gen, opts: Options{SendBufSize: tcpcore.DefaultSendBuffer, RecvBufSize: tcpcore.DefaultRecvBuffer}}
			e.handle = makeHandle(uint32(i), gen)
			return e, nil
		}
	}
	return nil, fmt.Errorf("socket: endpoint table full: %w", necode.ErrNoMemory)
}

func (t *Table) get(h Handle) (*endpoint, error) {
	idx := h.index()
	if int(idx) >= len(t.entries) {
		return nil, fmt.Errorf("socket: %w", necode.ErrInvalidArgument)
	}
	e := &t.entries[idx]
	if !e.inUse || e.handle != h {
		return nil, fmt.Errorf("socket: stale handle: %w", necode.ErrInvalidArgument)
	}
	return e, nil
}

func (t *Table) free(e *endpoint) {
	if e.typ == Raw {
		t.unsubscribeRaw(e.handle, e.protocol)
	}
	gen := e.generation + 1
	*e = endpoint{generation: gen}
}

// Socket creates a new unbound endpoint of the given type (and, for
// Raw, the IP protocol number it will send/receive).
func (t *Table) Socket(typ Type, protocol uint8) (Handle, error) {
	e, err := t.allocate()
	if err != nil {
		return 0, err
	}
	e.typ = typ
	e.protocol = protocol
	if typ == Raw {
		t.subscribeRaw(e.handle, protocol)
	}
	return e.handle, nil
}

// subscribeRaw registers h to receive inbound IP payloads carrying
// protocol. The first subscriber for a protocol installs the IP layer
// handler; later subscribers for the same protocol just join the fan-out
// list, since multiple raw sockets may share a protocol number.
func (t *Table) subscribeRaw(h Handle, protocol uint8) {
	t.rawSubscribers[protocol] = append(t.rawSubscribers[protocol], h)
	if len(t.rawSubscribers[protocol]) == 1 {
		t.ip.Register(protocol, func(src, _ uint32, payload []byte) {
			t.deliverRaw(protocol, src, payload)
		})
	}
}

func (t *Table) unsubscribeRaw(h Handle, protocol uint8) {
	subs := t.rawSubscribers[protocol]
	for i, sub := range subs {
		if sub == h {
			t.rawSubscribers[protocol] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

// deliverRaw fans an inbound IP payload for protocol out to every raw
// endpoint subscribed to it, dropping (with a log) into any endpoint
// whose queue is already at DefaultPendingDatagrams.
func (t *Table) deliverRaw(protocol uint8, src uint32, payload []byte) {
	for _, h := range t.rawSubscribers[protocol] {
		e, err := t.get(h)
		if err != nil {
			continue
		}
		if len(e.pendingDatagrams) >= DefaultPendingDatagrams {
			t.logger.Debug("socket: raw queue full, dropping", "protocol", protocol)
			continue
		}
		e.pendingDatagrams = append(e.pendingDatagrams, udp.Datagram{SrcIP: src, Payload: payload})
	}
}

// portInUse reports whether port is already held by a non-reuse entry
// of the same type. Stream, Datagram, and Raw each occupy their own
// port namespace (spec §4.7/§3: "at most one bound non-reuse entry per
// (type, port) pair"), so a bound TCP listener on port 80 never blocks
// a UDP socket from binding the same port number.
func (t *Table) portInUse(port uint16, typ Type, reuseAddr bool) bool {
	for i := range t.entries {
		e := &t.entries[i]
		if e.inUse && e.typ == typ && e.localPort == port && !(reuseAddr && e.opts.ReuseAddr) {
			return true
		}
	}
	return false
}

func (t *Table) allocateEphemeralPort(typ Type) (uint16, error) {
	for i := 0; i < EphemeralPortHi-EphemeralPortLo+1; i++ {
		port := t.nextEphemeral
		t.nextEphemeral++
		if t.nextEphemeral > EphemeralPortHi || t.nextEphemeral < EphemeralPortLo {
			t.nextEphemeral = EphemeralPortLo
		}
		if !t.portInUse(port, typ, false) {
			return port, nil
		}
	}
	return 0, fmt.Errorf("socket: no ephemeral ports available: %w", necode.ErrAddressInUse)
}

// Bind assigns localIP:localPort to the endpoint. A zero localPort
// allocates an ephemeral port from the 49152-65535 range (spec §4.7).
func (t *Table) Bind(h Handle, localIP uint32, localPort uint16) error {
	e, err := t.get(h)
	if err != nil {
		return err
	}
	if localPort == 0 {
		port, err := t.allocateEphemeralPort(e.typ)
		if err != nil {
			return err
		}
		localPort = port
	} else if t.portInUse(localPort, e.typ, e.opts.ReuseAddr) {
		return fmt.Errorf("socket: port %d in use: %w", localPort, necode.ErrAddressInUse)
	}
	e.localIP = localIP
	e.localPort = localPort
	return nil
}

func (t *Table) ensureBound(e *endpoint, localIP uint32) error {
	if e.localPort != 0 {
		return nil
	}
	port, err := t.allocateEphemeralPort(e.typ)
	if err != nil {
		return err
	}
	e.localIP = localIP
	e.localPort = port
	return nil
}

// Listen marks a bound Stream endpoint as passively listening with the
// given accept backlog (spec §4.7 "Listen applies only to stream and
// requires prior bind").
func (t *Table) Listen(h Handle, backlog int) error {
	e, err := t.get(h)
	if err != nil {
		return err
	}
	if e.typ != Stream {
		return fmt.Errorf("socket: listen on non-stream endpoint: %w", necode.ErrInvalidArgument)
	}
	if e.localPort == 0 {
		return fmt.Errorf("socket: listen before bind: %w", necode.ErrInvalidArgument)
	}
	id, err := t.tcp.Listen(e.localIP, e.localPort, backlog)
	if err != nil {
		return err
	}
	e.tcpID = id
	e.hasTCP = true
	e.listening = true
	return nil
}

// Accept returns a new endpoint for the next completed connection on a
// listening endpoint, or necode.ErrWouldBlock if none is pending.
func (t *Table) Accept(h Handle) (Handle, error) {
	listener, err := t.get(h)
	if err != nil {
		return 0, err
	}
	if !listener.listening {
		return 0, fmt.Errorf("socket: accept on non-listening endpoint: %w", necode.ErrInvalidArgument)
	}
	childID, ok, err := t.tcp.Accept(listener.tcpID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("socket: %w", necode.ErrWouldBlock)
	}
	remoteIP, remotePort, err := t.tcp.Peer(childID)
	if err != nil {
		return 0, err
	}

	child, err := t.allocate()
	if err != nil {
		return 0, err
	}
	child.typ = Stream
	child.localIP = listener.localIP
	child.localPort = listener.localPort
	child.remoteIP = remoteIP
	child.remotePort = remotePort
	child.connected = true
	child.tcpID = childID
	child.hasTCP = true
	return child.handle, nil
}

// Connect triggers TcpCore's active-open path for Stream endpoints or
// fixes the default destination for Datagram endpoints (spec §4.7).
func (t *Table) Connect(h Handle, remoteIP uint32, remotePort uint16) error {
	e, err := t.get(h)
	if err != nil {
		return err
	}
	switch e.typ {
	case Stream:
		if err := t.ensureBound(e, remoteIP); err != nil {
			e.opts.LastError = err
			return err
		}
		id, err := t.tcp.Connect(e.localIP, e.localPort, remoteIP, remotePort)
		if err != nil {
			e.opts.LastError = err
			return err
		}
		e.tcpID = id
		e.hasTCP = true
		e.remoteIP, e.remotePort = remoteIP, remotePort
		e.connected = true
	case Datagram, Raw:
		e.remoteIP, e.remotePort = remoteIP, remotePort
		e.connected = true
	}
	return nil
}

// Send transmits data on a connected endpoint: via TcpCore for Stream,
// or to the fixed default destination for Datagram/Raw.
func (t *Table) Send(h Handle, data []byte) (int, error) {
	e, err := t.get(h)
	if err != nil {
		return 0, err
	}
	var n int
	switch e.typ {
	case Stream:
		if !e.hasTCP {
			err = fmt.Errorf("socket: %w", necode.ErrNotConnected)
			break
		}
		n, err = t.tcp.Send(e.tcpID, data)
	case Datagram, Raw:
		if !e.connected {
			err = fmt.Errorf("socket: send without connect: %w", necode.ErrNotConnected)
			break
		}
		n, err = t.sendTo(e, e.remoteIP, e.remotePort, data)
	default:
		err = fmt.Errorf("socket: %w", necode.ErrInvalidArgument)
	}
	if err != nil {
		e.opts.LastError = err
	}
	return n, err
}

// SendTo transmits a single datagram to an explicit destination,
// independent of any fixed default destination (spec §4.7 sendto).
func (t *Table) SendTo(h Handle, destIP uint32, destPort uint16, data []byte) (int, error) {
	e, err := t.get(h)
	if err != nil {
		return 0, err
	}
	if e.typ == Stream {
		return 0, fmt.Errorf("socket: sendto on stream endpoint: %w", necode.ErrInvalidArgument)
	}
	if err := t.ensureBound(e, destIP); err != nil {
		return 0, err
	}
	return t.sendTo(e, destIP, destPort, data)
}

func (t *Table) sendTo(e *endpoint, destIP uint32, destPort uint16, data []byte) (int, error) {
	if e.typ == Raw {
		if err := t.ip.Send(destIP, e.protocol, data); err != nil {
			return 0, err
		}
		return len(data), nil
	}
	datagram := udp.Marshal(e.localIP, destIP, e.localPort, destPort, data)
	if err := t.ip.Send(destIP, ipv4.ProtoUDP, datagram); err != nil {
		return 0, err
	}
	return len(data), nil
}

// Recv reads from a Stream endpoint's receive ring.
func (t *Table) Recv(h Handle, buf []byte) (int, error) {
	e, err := t.get(h)
	if err != nil {
		return 0, err
	}
	if e.typ != Stream || !e.hasTCP {
		err := fmt.Errorf("socket: recv on non-stream endpoint: %w", necode.ErrInvalidArgument)
		e.opts.LastError = err
		return 0, err
	}
	n, err := t.tcp.Recv(e.tcpID, buf)
	if err != nil {
		e.opts.LastError = err
	}
	return n, err
}

// RecvFrom drains the next queued datagram and reports its source
// address (spec §4.7 recvfrom).
func (t *Table) RecvFrom(h Handle, buf []byte) (int, uint32, uint16, error) {
	e, err := t.get(h)
	if err != nil {
		return 0, 0, 0, err
	}
	if e.typ == Stream {
		err := fmt.Errorf("socket: recvfrom on stream endpoint: %w", necode.ErrInvalidArgument)
		e.opts.LastError = err
		return 0, 0, 0, err
	}
	if len(e.pendingDatagrams) == 0 {
		err := fmt.Errorf("socket: %w", necode.ErrWouldBlock)
		e.opts.LastError = err
		return 0, 0, 0, err
	}
	dg := e.pendingDatagrams[0]
	e.pendingDatagrams = e.pendingDatagrams[1:]
	n := copy(buf, dg.Payload)
	return n, dg.SrcIP, dg.SrcPort, nil
}

// Deliver implements udp.Deliverer: it locates the bound datagram
// endpoint for localPort and enqueues the datagram, dropping it (with a
// log) if the endpoint's queue is already at DefaultPendingDatagrams.
func (t *Table) Deliver(localPort uint16, dg udp.Datagram) {
	for i := range t.entries {
		e := &t.entries[i]
		if !e.inUse || e.typ != Datagram || e.localPort != localPort {
			continue
		}
		if len(e.pendingDatagrams) >= DefaultPendingDatagrams {
			t.logger.Debug("socket: datagram queue full, dropping", "local_port", localPort)
			return
		}
		e.pendingDatagrams = append(e.pendingDatagrams, dg)
		return
	}
}

// Close destroys the endpoint. For a Stream endpoint with an active
// TcpCore connection, the connection's graceful shutdown proceeds
// independently after the handle is freed (spec §4.7).
func (t *Table) Close(h Handle) error {
	e, err := t.get(h)
	if err != nil {
		return err
	}
	if e.hasTCP {
		_ = t.tcp.Close(e.tcpID)
	}
	t.free(e)
	return nil
}

// Abort immediately destroys the endpoint and, for Stream, sends RST
// (spec §4.7, §4.5.7).
func (t *Table) Abort(h Handle) error {
	e, err := t.get(h)
	if err != nil {
		return nil
	}
	if e.hasTCP {
		_ = t.tcp.Abort(e.tcpID)
	}
	t.free(e)
	return nil
}

// SetOptions replaces the mutable option fields (buffer sizes are
// read-only after creation and are left untouched).
func (t *Table) SetOptions(h Handle, opts Options) error {
	e, err := t.get(h)
	if err != nil {
		return err
	}
	e.opts.ReuseAddr = opts.ReuseAddr
	e.opts.Broadcast = opts.Broadcast
	e.opts.KeepAlive = opts.KeepAlive
	e.opts.RecvTimeout = opts.RecvTimeout
	e.opts.SendTimeout = opts.SendTimeout
	return nil
}

// Options returns the endpoint's current option state.
func (t *Table) Options(h Handle) (Options, error) {
	e, err := t.get(h)
	if err != nil {
		return Options{}, err
	}
	return e.opts, nil
}

// LocalAddr reports the endpoint's bound local address and port.
func (t *Table) LocalAddr(h Handle) (uint32, uint16, error) {
	e, err := t.get(h)
	if err != nil {
		return 0, 0, err
	}
	return e.localIP, e.localPort, nil
}

// EndpointSnapshot is a read-only view of one in-use endpoint, for
// introspection (spec §12 supplemented feature: management API view of
// the socket table).
type EndpointSnapshot struct {
	Handle     Handle
	Type       Type
	Protocol   uint8
	LocalIP    uint32
	LocalPort  uint16
	RemoteIP   uint32
	RemotePort uint16
	Connected  bool
	Listening  bool
	TCPID      tcpcore.SocketID
	HasTCP     bool
}

// Snapshot returns every in-use endpoint.
func (t *Table) Snapshot() []EndpointSnapshot {
	out := make([]EndpointSnapshot, 0, len(t.entries))
	for i := range t.entries {
		e := &t.entries[i]
		if !e.inUse {
			continue
		}
		out = append(out, EndpointSnapshot{
			Handle: e.handle, Type: e.typ, Protocol: e.protocol,
			LocalIP: e.localIP, LocalPort: e.localPort,
			RemoteIP: e.remoteIP, RemotePort: e.remotePort,
			Connected: e.connected, Listening: e.listening,
			TCPID: e.tcpID, HasTCP: e.hasTCP,
		})
	}
	return out
}
