package tcpcore

import "github.com/anemos-os/netstack/internal/ring"

// SocketID identifies a TcpCore connection control block. It packs a
// slab index in the low 32 bits and a generation counter in the high 32
// bits so a stale id (from a socket that has since been destroyed and
// its slot reused) is detected rather than silently aliasing a new
// connection (spec §9 "arena+index" redesign guidance).
type SocketID uint64

func makeSocketID(index, generation uint32) SocketID {
	return SocketID(uint64(generation)<<32 | uint64(index))
}

func (id SocketID) index() uint32      { return uint32(id) }
func (id SocketID) generation() uint32 { return uint32(id >> 32) }

// pendingConn is one entry in a Listen socket's backlog (spec §4.5.5):
// the remote address/port and their initial sequence number, recorded
// when the SYN arrived. The child socket is created lazily at Accept.
type pendingConn struct {
	remoteIP   uint32
	remotePort uint16
	theirISN   uint32
}

// tcb is one TCP control block (spec §4.5, "TcpSocket").
type tcb struct {
	inUse      bool
	generation uint32

	id SocketID

	state State

	localIP    uint32
	localPort  uint16
	remoteIP   uint32
	remotePort uint16

	sndUna uint32
	sndNxt uint32
	sndWnd uint32
	iss    uint32

	rcvNxt uint32
	rcvWnd uint32
	irs    uint32

	sendRing *ring.Buffer
	recvRing *ring.Buffer

	// Control-segment retransmission (SYN, SYN+ACK, FIN; spec §4.5.6 and
	// the optimistic-ack Open Question decision recorded in the package
	// design notes).
	controlPending bool
	controlFlags   uint8
	controlSeq     uint32
	retries        int
	lastActivity   int64

	timeWaitEntered int64

	// Listen-only state.
	backlog      int
	pendingQueue []pendingConn

	// Child-only: the Listen socket this connection was accepted from,
	// kept only for diagnostics.
	listenID SocketID
}

func (t *tcb) fourTupleMatches(remoteIP uint32, remotePort uint16, localPort uint16) bool {
	return t.remoteIP == remoteIP && t.remotePort == remotePort && t.localPort == localPort
}

func (t *tcb) reset() {
	*t = tcb{generation: t.generation + 1}
}
