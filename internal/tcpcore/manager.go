// Package tcpcore implements TcpCore (spec §4.5): the eleven-state
// reliable stream protocol, its sequence arithmetic, segment
// build/parse, listen/accept backlog, and retransmission.
//
// The manager is driven synchronously: Receive is called from the IP
// layer's inbound path and Tick from the timer wheel, both expected to
// run on the single cooperative processing goroutine (spec §5); no
// internal locking is performed.
package tcpcore

import (
	"fmt"
	"log/slog"

	"github.com/anemos-os/netstack/internal/necode"
	"github.com/anemos-os/netstack/internal/ring"
)

const (
	// DefaultCapacity is the fixed number of connection control blocks
	// the manager holds (spec §9 arena+index).
	DefaultCapacity = 256
	// DefaultSendBuffer and DefaultRecvBuffer are the per-socket ring
	// sizes (spec §4.5 "ring buffers, default 64 KiB").
	DefaultSendBuffer = 64 * 1024
	DefaultRecvBuffer = 64 * 1024
	// DefaultRTO is the base retransmission timeout for control segments.
	DefaultRTO = 1000 // ms
	// DefaultMaxRetries bounds control-segment retransmission before the
	// connection is aborted.
	DefaultMaxRetries = 5
	// DefaultTimeWait is the TIME-WAIT hold duration.
	DefaultTimeWait = 60_000 // ms
	// MSS is the largest segment payload this stack builds, derived from
	// the link MTU budget (1500 - 20 IP header - 20 TCP header).
	MSS = 1460
)

// IPSender transmits a transport payload to dest, matching
// ipv4.Layer.Send's signature so *ipv4.Layer satisfies it directly.
type IPSender interface {
	Send(dest uint32, protocol uint8, payload []byte) error
}

// Manager owns the fixed-capacity connection control block slab and all
// TcpCore operations.
type Manager struct {
	slab   []tcb
	sender IPSender
	now    func() int64
	logger *slog.Logger

	rto         int64
	maxRetries  int
	timeWait    int64
	sendBufSize int
	recvBufSize int

	synAdmit func(srcIP uint32) bool
}

// NewManager creates a Manager with the given slab capacity, bound to
// sender for outbound segments. now returns the monotonic millisecond
// clock (spec §9 now_ms()).
func NewManager(capacity int, sender IPSender, now func() int64, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		slab:        make([]tcb, capacity),
		sender:      sender,
		now:         now,
		logger:      logger,
		rto:         DefaultRTO,
		maxRetries:  DefaultMaxRetries,
		timeWait:    DefaultTimeWait,
		sendBufSize: DefaultSendBuffer,
		recvBufSize: DefaultRecvBuffer,
	}
}

// SetSynAdmission installs a gate consulted before a bare SYN is queued
// onto a listener's backlog (spec §12 supplemented feature: SYN flood
// admission control). A nil admit always allows, matching the default
// when this is never called.
func (m *Manager) SetSynAdmission(admit func(srcIP uint32) bool) {
	m.synAdmit = admit
}

func (m *Manager) allocate() (*tcb, error) {
	for i := range m.slab {
		if !m.slab[i].inUse {
			t := &m.slab[i]
			gen := t.generation
			*t = tcb{inUse: true, generation: gen}
			t.id = makeSocketID(uint32(i), gen)
			return t, nil
		}
	}
	return nil, fmt.Errorf("tcpcore: connection table full: %w", necode.ErrNoMemory)
}

func (m *Manager) get(id SocketID) (*tcb, error) {
	idx := id.index()
	if int(idx) >= len(m.slab) {
		return nil, fmt.Errorf("tcpcore: %w", necode.ErrNotConnected)
	}
	t := &m.slab[idx]
	if !t.inUse || t.generation != id.generation() {
		return nil, fmt.Errorf("tcpcore: stale socket id: %w", necode.ErrNotConnected)
	}
	return t, nil
}

func (m *Manager) destroy(t *tcb) {
	t.state = Closed
	t.reset()
}

func genISN(now int64, localPort, remotePort uint16, remoteIP uint32) uint32 {
	const mixConstant = 0x9E3779B9
	mix := uint32(now) ^ mixConstant
	mix ^= uint32(localPort)<<16 | uint32(remotePort)
	mix ^= remoteIP
	return mix
}

// Listen creates a passive-open socket bound to localIP:localPort with
// the given accept backlog limit (spec §4.5.5).
func (m *Manager) Listen(localIP uint32, localPort uint16, backlog int) (SocketID, error) {
	t, err := m.allocate()
	if err != nil {
		return 0, err
	}
	t.localIP = localIP
	t.localPort = localPort
	t.backlog = backlog
	t.state = Listen
	return t.id, nil
}

// Connect creates an active-open socket and sends the initial SYN
// (spec §4.5.1 Closed→SynSent).
func (m *Manager) Connect(localIP uint32, localPort uint16, remoteIP uint32, remotePort uint16) (SocketID, error) {
	t, err := m.allocate()
	if err != nil {
		return 0, err
	}
	t.localIP, t.localPort = localIP, localPort
	t.remoteIP, t.remotePort = remoteIP, remotePort
	t.iss = genISN(m.now(), localPort, remotePort, remoteIP)
	t.sndUna, t.sndNxt = t.iss, t.iss
	t.rcvWnd = uint32(m.recvBufSize)
	t.sendRing = ring.New(m.sendBufSize)
	t.recvRing = ring.New(m.recvBufSize)
	t.state = SynSent
	m.sendSegment(t, FlagSYN, nil)
	return t.id, nil
}

// Accept consumes one entry from listenID's pending queue and creates
// the child connection, transitioning it to SynReceived and emitting
// SYN+ACK (spec §4.5.5). ok is false when the queue is empty.
func (m *Manager) Accept(listenID SocketID) (SocketID, bool, error) {
	listener, err := m.get(listenID)
	if err != nil {
		return 0, false, err
	}
	if listener.state != Listen {
		return 0, false, fmt.Errorf("tcpcore: socket is not listening: %w", necode.ErrInvalidArgument)
	}
	if len(listener.pendingQueue) == 0 {
		return 0, false, nil
	}
	pc := listener.pendingQueue[0]
	listener.pendingQueue = listener.pendingQueue[1:]

	child, err := m.allocate()
	if err != nil {
		return 0, false, err
	}
	child.localIP, child.localPort = listener.localIP, listener.localPort
	child.remoteIP, child.remotePort = pc.remoteIP, pc.remotePort
	child.listenID = listenID
	child.irs = pc.theirISN
	child.rcvNxt = pc.theirISN + 1
	child.rcvWnd = uint32(m.recvBufSize)
	child.iss = genISN(m.now(), child.localPort, child.remotePort, child.remoteIP)
	child.sndUna, child.sndNxt = child.iss, child.iss
	child.sendRing = ring.New(m.sendBufSize)
	child.recvRing = ring.New(m.recvBufSize)
	child.state = SynReceived
	m.sendSegment(child, FlagSYN|FlagACK, nil)
	return child.id, true, nil
}

// Send enqueues data for transmission and attempts immediate delivery.
// It never blocks: a full send ring yields necode.ErrWouldBlock.
func (m *Manager) Send(id SocketID, data []byte) (int, error) {
	t, err := m.get(id)
	if err != nil {
		return 0, err
	}
	if t.state != Established && t.state != CloseWait {
		return 0, fmt.Errorf("tcpcore: %w", necode.ErrNotConnected)
	}
	n := t.sendRing.Write(data)
	if n == 0 && len(data) > 0 {
		return 0, fmt.Errorf("tcpcore: send buffer full: %w", necode.ErrWouldBlock)
	}
	m.flush(t)
	return n, nil
}

// Recv drains received data into buf. A zero-length, nil-error result
// with the connection in a post-FIN state signals end of stream; while
// the connection is still open and nothing is buffered, Recv returns
// necode.ErrWouldBlock.
func (m *Manager) Recv(id SocketID, buf []byte) (int, error) {
	t, err := m.get(id)
	if err != nil {
		return 0, err
	}
	n := t.recvRing.Read(buf)
	if n > 0 {
		return n, nil
	}
	if peerClosed(t.state) {
		return 0, nil
	}
	return 0, fmt.Errorf("tcpcore: %w", necode.ErrWouldBlock)
}

func peerClosed(s State) bool {
	switch s {
	case CloseWait, Closing, LastAck, TimeWait, Closed:
		return true
	default:
		return false
	}
}

// Close performs the graceful application-close transition for the
// socket's current state (spec §4.5.7); it is a no-op on states that
// are already closing or closed.
func (m *Manager) Close(id SocketID) error {
	t, err := m.get(id)
	if err != nil {
		return err
	}
	switch t.state {
	case Established:
		m.flush(t) // drain any buffered Send data before the FIN (spec §4.5.7)
		t.state = FinWait1
		m.sendSegment(t, FlagFIN|FlagACK, nil)
	case CloseWait:
		m.flush(t)
		t.state = LastAck
		m.sendSegment(t, FlagFIN|FlagACK, nil)
	case Listen, SynSent, SynReceived:
		m.destroy(t)
	default:
		// FinWait1/FinWait2/Closing/LastAck/TimeWait/Closed: already
		// closing or closed; idempotent.
	}
	return nil
}

// Abort sends RST and destroys the connection immediately regardless of
// state (spec §4.5.7). Aborting an already-destroyed id is a no-op.
func (m *Manager) Abort(id SocketID) error {
	t, err := m.get(id)
	if err != nil {
		return nil
	}
	if t.state != Closed && t.state != Listen {
		m.sendSegment(t, FlagRST, nil)
	}
	m.destroy(t)
	return nil
}

// Peer reports the remote address/port of an established or
// handshaking connection, used by the socket layer to report a newly
// accepted connection's remote endpoint.
func (m *Manager) Peer(id SocketID) (remoteIP uint32, remotePort uint16, err error) {
	t, err := m.get(id)
	if err != nil {
		return 0, 0, err
	}
	return t.remoteIP, t.remotePort, nil
}

// StateOf reports id's current connection state.
func (m *Manager) StateOf(id SocketID) (State, error) {
	t, err := m.get(id)
	if err != nil {
		return Closed, err
	}
	return t.state, nil
}
