// Package metrics exposes the process's packet/connection counters as
// Prometheus metrics, grounded on the retrieval pack's sockstats
// exporter. The metrics are registered on their own Registry rather than
// the global default, so tests can instantiate independent instances.
//
// Only SynRejected is updated by the stack (by netctx's SYN admission
// gate). The frame, checksum, UDP and retransmit counters and the ARP/TCP
// gauges are registered and read back by Totals, but no protocol layer
// increments or sets them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry bundles every counter/gauge this stack exposes, each created
// against its own prometheus.Registry (never the global default) so
// concurrent tests, and independent NetworkContexts in the same
// process, do not collide on metric registration.
type Registry struct {
	reg *prometheus.Registry

	FramesReceived  prometheus.Counter
	FramesDropped   *prometheus.CounterVec
	ArpCacheEntries *prometheus.GaugeVec
	TCPConnections  *prometheus.GaugeVec
	TCPRetransmits  prometheus.Counter
	ChecksumErrors  *prometheus.CounterVec
	UDPDatagrams    *prometheus.CounterVec
	SynRejected     *prometheus.CounterVec
}

// New creates a Registry with every metric registered.
func New() *Registry {
	reg := prometheus.NewRegistry()

	m := &Registry{
		reg: reg,
		FramesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "netstack",
			Subsystem: "link",
			Name:      "frames_received_total",
			Help:      "Inbound link frames accepted for dispatch.",
		}),
		FramesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "netstack",
			Subsystem: "link",
			Name:      "frames_dropped_total",
			Help:      "Inbound link frames dropped, by reason.",
		}, []string{"reason"}),
		ArpCacheEntries: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "netstack",
			Subsystem: "arp",
			Name:      "cache_entries",
			Help:      "Current ARP cache entry count, by state.",
		}, []string{"state"}),
		TCPConnections: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "netstack",
			Subsystem: "tcp",
			Name:      "connections",
			Help:      "Current connection count, by state.",
		}, []string{"state"}),
		TCPRetransmits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "netstack",
			Subsystem: "tcp",
			Name:      "retransmits_total",
			Help:      "Control-segment retransmissions (SYN/SYN-ACK/FIN).",
		}),
		ChecksumErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "netstack",
			Name:      "checksum_errors_total",
			Help:      "Packets dropped for checksum mismatch, by layer.",
		}, []string{"layer"}),
		UDPDatagrams: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "netstack",
			Subsystem: "udp",
			Name:      "datagrams_total",
			Help:      "UDP datagrams processed, by direction.",
		}, []string{"direction"}),
		SynRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "netstack",
			Subsystem: "tcp",
			Name:      "syn_rejected_total",
			Help:      "Inbound SYNs rejected by the admission-control rate limiter, by tier.",
		}, []string{"tier"}),
	}

	reg.MustRegister(
		m.FramesReceived,
		m.FramesDropped,
		m.ArpCacheEntries,
		m.TCPConnections,
		m.TCPRetransmits,
		m.ChecksumErrors,
		m.UDPDatagrams,
		m.SynRejected,
	)
	return m
}

// Gatherer exposes the underlying prometheus.Gatherer for an HTTP
// handler (promhttp.HandlerFor) to serve.
func (m *Registry) Gatherer() prometheus.Gatherer { return m.reg }

// Totals is a point-in-time readback of the cumulative counters, for
// the management API's stats endpoint (it reports current totals, not
// a scrape-formatted exposition).
type Totals struct {
	FramesReceived uint64
	FramesDropped  uint64
	ChecksumErrors uint64
	TCPRetransmits uint64
	UDPDatagrams   uint64
	SynRejected    uint64
}

// Totals sums every counter family gathered from the registry.
func (m *Registry) Totals() Totals {
	var t Totals
	families, err := m.reg.Gather()
	if err != nil {
		return t
	}
	for _, fam := range families {
		var sum uint64
		for _, metric := range fam.GetMetric() {
			sum += uint64(metric.GetCounter().GetValue())
		}
		switch fam.GetName() {
		case "netstack_link_frames_received_total":
			t.FramesReceived = sum
		case "netstack_link_frames_dropped_total":
			t.FramesDropped = sum
		case "netstack_checksum_errors_total":
			t.ChecksumErrors = sum
		case "netstack_tcp_retransmits_total":
			t.TCPRetransmits = sum
		case "netstack_udp_datagrams_total":
			t.UDPDatagrams = sum
		case "netstack_tcp_syn_rejected_total":
			t.SynRejected = sum
		}
	}
	return t
}
