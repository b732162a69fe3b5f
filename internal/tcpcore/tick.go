package tcpcore

// Tick drives control-segment retransmission and TIME-WAIT expiry
// (spec §4.5.6, §4.5.7). It is invoked once per timer wheel tick.
func (m *Manager) Tick() {
	now := m.now()
	for i := range m.slab {
		t := &m.slab[i]
		if !t.inUse {
			continue
		}
		switch {
		case t.state == TimeWait:
			if now-t.timeWaitEntered >= m.timeWait {
				m.destroy(t)
			}
		case t.controlPending:
			deadline := t.lastActivity + m.rto*int64(t.retries+1)
			if now < deadline {
				continue
			}
			if t.retries >= m.maxRetries {
				m.logger.Debug("tcpcore: retry limit exceeded, aborting", "local_port", t.localPort, "remote_port", t.remotePort)
				m.destroy(t)
				continue
			}
			t.retries++
			t.lastActivity = now
			if err := m.retransmit(t); err != nil {
				m.logger.Debug("tcpcore: retransmit failed", "err", err)
			}
		}
	}
}
