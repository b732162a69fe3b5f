package tcpcore

import "github.com/anemos-os/netstack/internal/ring"

// Receive is the inbound entry point registered with the IP layer for
// protocol 6 (spec §4.5.4). src/dst are the datagram's source and
// destination internet addresses.
func (m *Manager) Receive(src, dst uint32, payload []byte) {
	seg, err := ParseSegment(src, dst, payload)
	if err != nil {
		m.logger.Debug("tcpcore: dropping segment", "err", err)
		return
	}

	if t := m.findConnection(src, seg.SrcPort, seg.DstPort); t != nil {
		m.processSegment(t, seg, dst)
		return
	}

	if listener := m.findListener(seg.DstPort); listener != nil {
		m.processListener(listener, src, seg)
		return
	}

	if seg.Flags&FlagRST == 0 {
		m.sendPortUnreachable(src, dst, seg)
	}
}

func (m *Manager) findConnection(remoteIP uint32, remotePort, localPort uint16) *tcb {
	for i := range m.slab {
		t := &m.slab[i]
		if t.inUse && t.state != Listen && t.fourTupleMatches(remoteIP, remotePort, localPort) {
			return t
		}
	}
	return nil
}

func (m *Manager) findListener(localPort uint16) *tcb {
	for i := range m.slab {
		t := &m.slab[i]
		if t.inUse && t.state == Listen && t.localPort == localPort {
			return t
		}
	}
	return nil
}

// sendPortUnreachable answers an unmatched, non-RST segment with a bare
// RST, mirroring how a real stack signals connection-refused to the
// initiator of a SynSent handshake.
func (m *Manager) sendPortUnreachable(src, dst uint32, seg Segment) {
	ack := seg.Seq + seqConsumed(seg.Flags, len(seg.Payload))
	reply := Segment{SrcPort: seg.DstPort, DstPort: seg.SrcPort, Seq: 0, Ack: ack, Flags: FlagRST | FlagACK}
	wire := reply.Marshal(dst, src)
	if err := m.sender.Send(src, protoTCP, wire); err != nil {
		m.logger.Debug("tcpcore: port-unreachable reply failed", "err", err)
	}
}

// processListener handles an inbound segment addressed to a Listen
// socket's port (spec §4.5.5): a bare SYN is queued subject to the
// backlog limit, anything else is dropped.
func (m *Manager) processListener(listener *tcb, remoteIP uint32, seg Segment) {
	if seg.Flags&FlagRST != 0 {
		return
	}
	if seg.Flags&FlagSYN == 0 || seg.Flags&FlagACK != 0 {
		return
	}
	if m.synAdmit != nil && !m.synAdmit(remoteIP) {
		m.logger.Debug("tcpcore: syn admission denied", "local_port", listener.localPort)
		return
	}
	if len(listener.pendingQueue) >= listener.backlog {
		m.logger.Debug("tcpcore: backlog full, dropping SYN", "local_port", listener.localPort)
		return
	}
	listener.pendingQueue = append(listener.pendingQueue, pendingConn{
		remoteIP:   remoteIP,
		remotePort: seg.SrcPort,
		theirISN:   seg.Seq,
	})
}

// controlAcked reports whether the control segment t last sent (SYN or
// FIN) has been acknowledged.
func controlAcked(t *tcb) bool {
	return t.controlPending && SeqGreaterEq(t.sndUna, t.controlSeq+1)
}

// processSegment applies the spec §4.5.1 transition table and §4.5.4
// reception rules to an inbound segment for an established or
// handshaking connection.
func (m *Manager) processSegment(t *tcb, seg Segment, dstIP uint32) {
	if t.state == TimeWait {
		if seg.Flags&FlagFIN != 0 {
			m.sendBareAck(t)
		}
		return
	}

	if seg.Flags&FlagRST != 0 {
		m.destroy(t)
		return
	}

	switch t.state {
	case SynSent:
		m.handleSynSent(t, seg)
	case SynReceived:
		m.handleSynReceived(t, seg)
	case Established, FinWait1, FinWait2:
		m.handleDataBearing(t, seg)
	case CloseWait, Closing, LastAck:
		m.handleAckOnly(t, seg)
	}
}

func (m *Manager) handleSynSent(t *tcb, seg Segment) {
	switch {
	case seg.Flags&FlagSYN != 0 && seg.Flags&FlagACK != 0:
		if seg.Ack != t.sndNxt {
			return // bad ack, drop
		}
		t.irs = seg.Seq
		t.rcvNxt = seg.Seq + 1
		t.sndUna = seg.Ack
		t.sndWnd = uint32(seg.Window)
		t.controlPending = false
		t.rcvWnd = uint32(m.recvBufSize)
		t.sendRing = ringOrNew(t.sendRing, m.sendBufSize)
		t.recvRing = ringOrNew(t.recvRing, m.recvBufSize)
		t.state = Established
		m.sendSegment(t, FlagACK, nil)
	case seg.Flags&FlagSYN != 0:
		// simultaneous open: peer opened toward us without having seen
		// our SYN acked yet.
		t.irs = seg.Seq
		t.rcvNxt = seg.Seq + 1
		t.state = SynReceived
		m.sendSegment(t, FlagSYN|FlagACK, nil)
	}
}

func ringOrNew(r *ring.Buffer, cap int) *ring.Buffer {
	if r != nil {
		return r
	}
	return ring.New(cap)
}

func (m *Manager) handleSynReceived(t *tcb, seg Segment) {
	if seg.Flags&FlagACK == 0 || seg.Ack != t.sndNxt {
		return
	}
	t.sndUna = seg.Ack
	t.sndWnd = uint32(seg.Window)
	t.controlPending = false
	t.state = Established
}

func (m *Manager) handleDataBearing(t *tcb, seg Segment) {
	gotFin := false
	respond := false

	payload, inWindow := recvSegment(t, seg)
	if inWindow {
		if len(payload) > 0 {
			n := t.recvRing.Write(payload)
			t.rcvNxt += uint32(n)
		}
		if seg.Flags&FlagFIN != 0 && t.rcvNxt == seg.Seq+uint32(len(seg.Payload)) {
			t.rcvNxt++
			gotFin = true
		}
		if len(seg.Payload) > 0 || seg.Flags&FlagFIN != 0 {
			respond = true
		}
	} else {
		respond = true // duplicate ack for out-of-window segment
	}

	if seg.Flags&FlagACK != 0 && SeqLess(t.sndUna, seg.Ack) && SeqLessEq(seg.Ack, t.sndNxt) {
		t.sndUna = seg.Ack
		t.sndWnd = uint32(seg.Window)
		if controlAcked(t) {
			t.controlPending = false
		}
	}

	switch t.state {
	case Established:
		if gotFin {
			t.state = CloseWait
		}
	case FinWait1:
		finAcked := !t.controlPending
		switch {
		case finAcked && gotFin:
			t.state = TimeWait
			t.timeWaitEntered = m.now()
		case gotFin:
			t.state = Closing
		case finAcked:
			t.state = FinWait2
		}
	case FinWait2:
		if gotFin {
			t.state = TimeWait
			t.timeWaitEntered = m.now()
		}
	}

	if respond && t.state != TimeWait {
		m.sendSegment(t, FlagACK, nil)
	} else if respond && t.state == TimeWait {
		m.sendBareAck(t)
	}

	if t.state == Established || t.state == CloseWait {
		m.flush(t)
	}
}

func (m *Manager) handleAckOnly(t *tcb, seg Segment) {
	if seg.Flags&FlagACK == 0 {
		return
	}
	if SeqLess(t.sndUna, seg.Ack) && SeqLessEq(seg.Ack, t.sndNxt) {
		t.sndUna = seg.Ack
		t.sndWnd = uint32(seg.Window)
	}
	switch t.state {
	case Closing:
		if controlAcked(t) {
			t.state = TimeWait
			t.timeWaitEntered = m.now()
			t.controlPending = false
		}
	case LastAck:
		if controlAcked(t) {
			m.destroy(t)
		}
	}
}

func (m *Manager) sendBareAck(t *tcb) {
	seg := Segment{SrcPort: t.localPort, DstPort: t.remotePort, Seq: t.sndNxt, Ack: t.rcvNxt, Flags: FlagACK}
	wire := seg.Marshal(t.localIP, t.remoteIP)
	if err := m.sender.Send(t.remoteIP, protoTCP, wire); err != nil {
		m.logger.Debug("tcpcore: time-wait ack failed", "err", err)
	}
}
