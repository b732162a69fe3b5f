package tcpcore

// sendSegment builds and transmits a segment for t, advancing snd_nxt by
// the sequence positions the flags/payload consume (spec §4.5.3). SYN
// and FIN segments are tracked for RTO-driven retransmission; plain
// data segments advance snd_una immediately, the baseline
// optimistic-acknowledgement behavior this implementation adopts for
// data (control segments are still retransmitted).
func (m *Manager) sendSegment(t *tcb, flags uint8, payload []byte) error {
	seg := Segment{
		SrcPort: t.localPort,
		DstPort: t.remotePort,
		Seq:     t.sndNxt,
		Ack:     t.rcvNxt,
		Flags:   flags,
		Window:  uint16(minInt(t.recvRing.Free(), 0xFFFF)),
		Payload: payload,
	}
	wire := seg.Marshal(t.localIP, t.remoteIP)

	// Bookkeeping happens before the send: a synchronous sender may
	// deliver the peer's reply to t before Send returns.
	if flags&(FlagSYN|FlagFIN) != 0 {
		t.controlPending = true
		t.controlFlags = flags
		t.controlSeq = seg.Seq
		t.retries = 0
		t.lastActivity = m.now()
	} else if len(payload) > 0 {
		t.sndUna = t.sndNxt + uint32(len(payload))
	}

	t.sndNxt += seqConsumed(flags, len(payload))
	return m.sender.Send(t.remoteIP, protoTCP, wire)
}

// retransmit resends the tracked control segment unchanged (same
// sequence number, so the peer's duplicate-detection still applies).
func (m *Manager) retransmit(t *tcb) error {
	seg := Segment{
		SrcPort: t.localPort,
		DstPort: t.remotePort,
		Seq:     t.controlSeq,
		Ack:     t.rcvNxt,
		Flags:   t.controlFlags,
		Window:  uint16(minInt(t.recvRing.Free(), 0xFFFF)),
	}
	wire := seg.Marshal(t.localIP, t.remoteIP)
	return m.sender.Send(t.remoteIP, protoTCP, wire)
}

// flush transmits as much buffered send data as the peer's advertised
// window allows, in MSS-sized segments, setting PSH on the segment that
// drains the buffer (spec §4.5.3).
func (m *Manager) flush(t *tcb) {
	if t.state != Established && t.state != CloseWait {
		return
	}
	for {
		avail := t.sendRing.Len()
		if avail == 0 {
			return
		}
		room := int(t.sndWnd)
		if room <= 0 {
			return
		}
		n := minInt(minInt(avail, room), MSS)
		if n == 0 {
			return
		}
		buf := make([]byte, n)
		got := t.sendRing.Read(buf)
		buf = buf[:got]

		flags := FlagACK
		if t.sendRing.Len() == 0 {
			flags |= FlagPSH
		}
		if err := m.sendSegment(t, flags, buf); err != nil {
			m.logger.Debug("tcpcore: segment send failed", "err", err, "local_port", t.localPort)
			return
		}
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
