package models

// APIConfigResponse is a redacted view of config.APIConfig (no api_key
// exposed).
type APIConfigResponse struct {
	Enabled bool   `json:"enabled"`
	Host    string `json:"host"`
	Port    int    `json:"port"`
}

// NetworkConfigResponse mirrors config.NetworkConfig.
type NetworkConfigResponse struct {
	LocalIP string `json:"local_ip"`
	Netmask string `json:"netmask"`
	Gateway string `json:"gateway"`
}

// ArpConfigResponse mirrors config.ArpConfig.
type ArpConfigResponse struct {
	Capacity      int `json:"capacity"`
	RetryMs       int `json:"retry_ms"`
	MaxRetries    int `json:"max_retries"`
	ResolvedTTLMs int `json:"resolved_ttl_ms"`
	StaleTTLMs    int `json:"stale_ttl_ms"`
}

// TcpConfigResponse mirrors config.TcpConfig.
type TcpConfigResponse struct {
	Capacity     int `json:"capacity"`
	SendBufBytes int `json:"send_buf_bytes"`
	RecvBufBytes int `json:"recv_buf_bytes"`
	RTOMs        int `json:"rto_ms"`
	MaxRetries   int `json:"max_retries"`
	TimeWaitMs   int `json:"time_wait_ms"`
}

// SocketConfigResponse mirrors config.SocketConfig.
type SocketConfigResponse struct {
	Capacity        int `json:"capacity"`
	EphemeralPortLo int `json:"ephemeral_port_lo"`
	EphemeralPortHi int `json:"ephemeral_port_hi"`
}

// ConfigResponse is the API response for GET /config: every section
// except the API key, which is never echoed back.
type ConfigResponse struct {
	Network NetworkConfigResponse `json:"network"`
	Arp     ArpConfigResponse     `json:"arp"`
	Tcp     TcpConfigResponse     `json:"tcp"`
	Socket  SocketConfigResponse  `json:"socket"`
	API     APIConfigResponse     `json:"api"`
}

// NetworkConfigUpdateRequest is the body for PUT /config: the local IP,
// netmask and gateway to write to the persistent store. The request does
// not change the running stack's addressing.
type NetworkConfigUpdateRequest struct {
	LocalIP string `json:"local_ip"`
	Netmask string `json:"netmask"`
	Gateway string `json:"gateway"`
}
