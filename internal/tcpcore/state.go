package tcpcore

// State is one of the eleven TcpCore connection states (spec §4.5.1).
type State int

const (
	Closed State = iota
	Listen
	SynSent
	SynReceived
	Established
	FinWait1
	FinWait2
	CloseWait
	Closing
	LastAck
	TimeWait
)

func (s State) String() string {
	switch s {
	case Closed:
		return "CLOSED"
	case Listen:
		return "LISTEN"
	case SynSent:
		return "SYN_SENT"
	case SynReceived:
		return "SYN_RECEIVED"
	case Established:
		return "ESTABLISHED"
	case FinWait1:
		return "FIN_WAIT_1"
	case FinWait2:
		return "FIN_WAIT_2"
	case CloseWait:
		return "CLOSE_WAIT"
	case Closing:
		return "CLOSING"
	case LastAck:
		return "LAST_ACK"
	case TimeWait:
		return "TIME_WAIT"
	default:
		return "UNKNOWN"
	}
}

// SeqLess reports a < b under signed 32-bit wraparound comparison
// (spec §4.5.2).
func SeqLess(a, b uint32) bool { return int32(a-b) < 0 }

// SeqLessEq reports a <= b under wraparound comparison.
func SeqLessEq(a, b uint32) bool { return a == b || SeqLess(a, b) }

// SeqGreater reports a > b under wraparound comparison.
func SeqGreater(a, b uint32) bool { return SeqLess(b, a) }

// SeqGreaterEq reports a >= b under wraparound comparison.
func SeqGreaterEq(a, b uint32) bool { return a == b || SeqGreater(a, b) }

// InWindow reports whether seq lies in [rcvNxt, rcvNxt+rcvWnd).
func InWindow(seq, rcvNxt, rcvWnd uint32) bool {
	return SeqGreaterEq(seq, rcvNxt) && SeqLess(seq, rcvNxt+rcvWnd)
}
