package models

import "time"

// CPUStats contains system CPU statistics.
type CPUStats struct {
	NumCPU      int     `json:"num_cpu"`
	UsedPercent float64 `json:"used_percent"`
	IdlePercent float64 `json:"idle_percent"`
}

// MemoryStats contains system memory statistics.
type MemoryStats struct {
	TotalMB     float64 `json:"total_mb"`
	FreeMB      float64 `json:"free_mb"`
	UsedMB      float64 `json:"used_mb"`
	UsedPercent float64 `json:"used_percent"`
}

// ServerStatsResponse contains server runtime statistics.
type ServerStatsResponse struct {
	Uptime        string             `json:"uptime"`
	UptimeSeconds int64              `json:"uptime_seconds"`
	StartTime     time.Time          `json:"start_time"`
	CPU           CPUStats           `json:"cpu"`
	Memory        MemoryStats        `json:"memory"`
	Network       NetworkStatsResponse `json:"network"`
}

// NetworkStatsResponse contains live stack counters: entry counts
// sourced from the ARP cache and socket table snapshots, plus the
// cumulative packet/checksum counters tracked by the metrics registry.
type NetworkStatsResponse struct {
	ArpCacheEntries int    `json:"arp_cache_entries"`
	SocketCount     int    `json:"socket_count"`
	TCPConnections  int    `json:"tcp_connections"`
	FramesReceived  uint64 `json:"frames_received_total"`
	FramesDropped   uint64 `json:"frames_dropped_total"`
	ChecksumErrors  uint64 `json:"checksum_errors_total"`
	TCPRetransmits  uint64 `json:"tcp_retransmits_total"`
	UDPDatagrams    uint64 `json:"udp_datagrams_total"`
	SynRejected     uint64 `json:"syn_rejected_total"`
}
