// Package config provides configuration loading for netstackd using
// Viper. Configuration is loaded from YAML files with automatic
// environment variable binding.
//
// Environment variables use the NETSTACK_ prefix and underscore-separated
// keys:
//   - NETSTACK_NETWORK_LOCAL_IP -> network.local_ip
//   - NETSTACK_DRIVER_KIND -> driver.kind
//   - NETSTACK_API_ENABLED -> api.enabled
package config

import (
	"os"
	"strings"
)

// NetworkConfig contains the stack's own addressing (spec §4.4 IpLayer
// Config, §9 "process-wide state").
type NetworkConfig struct {
	LocalIP string `yaml:"local_ip" mapstructure:"local_ip"`
	Netmask string `yaml:"netmask"  mapstructure:"netmask"`
	Gateway string `yaml:"gateway"  mapstructure:"gateway"`
}

// DriverConfig selects and configures the link driver backend (spec §6,
// §12 supplemented host driver).
type DriverConfig struct {
	Kind      string `yaml:"kind"       mapstructure:"kind"` // "tap" or "loopback"
	TAPDevice string `yaml:"tap_device" mapstructure:"tap_device"`
	HWAddr    string `yaml:"hw_addr"    mapstructure:"hw_addr"`
}

// ArpConfig contains ArpCache tunables (spec §4.3).
type ArpConfig struct {
	Capacity      int `yaml:"capacity"        mapstructure:"capacity"`
	RetryMs       int `yaml:"retry_ms"        mapstructure:"retry_ms"`
	MaxRetries    int `yaml:"max_retries"     mapstructure:"max_retries"`
	ResolvedTTLMs int `yaml:"resolved_ttl_ms" mapstructure:"resolved_ttl_ms"`
	StaleTTLMs    int `yaml:"stale_ttl_ms"    mapstructure:"stale_ttl_ms"`
}

// TcpConfig contains TcpCore tunables (spec §4.5).
type TcpConfig struct {
	Capacity     int `yaml:"capacity"        mapstructure:"capacity"`
	SendBufBytes int `yaml:"send_buf_bytes"  mapstructure:"send_buf_bytes"`
	RecvBufBytes int `yaml:"recv_buf_bytes"  mapstructure:"recv_buf_bytes"`
	RTOMs        int `yaml:"rto_ms"          mapstructure:"rto_ms"`
	MaxRetries   int `yaml:"max_retries"     mapstructure:"max_retries"`
	TimeWaitMs   int `yaml:"time_wait_ms"    mapstructure:"time_wait_ms"`
}

// SocketConfig contains SocketApi tunables (spec §4.7).
type SocketConfig struct {
	Capacity        int `yaml:"capacity"          mapstructure:"capacity"`
	EphemeralPortLo int `yaml:"ephemeral_port_lo" mapstructure:"ephemeral_port_lo"`
	EphemeralPortHi int `yaml:"ephemeral_port_hi" mapstructure:"ephemeral_port_hi"`
}

// TimerConfig contains the Timer/Wheel cadence (spec §6).
type TimerConfig struct {
	IntervalMs int `yaml:"interval_ms" mapstructure:"interval_ms"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level            string `yaml:"level"             mapstructure:"level"`
	Structured       bool   `yaml:"structured"        mapstructure:"structured"`
	StructuredFormat string `yaml:"structured_format" mapstructure:"structured_format"`
}

// APIConfig contains management API settings.
//
// Note: APIKey is intentionally treated as a secret and should not be
// returned by API endpoints.
type APIConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Host    string `yaml:"host"    mapstructure:"host"`
	Port    int    `yaml:"port"    mapstructure:"port"`
	APIKey  string `yaml:"api_key" mapstructure:"api_key"`
}

// MetricsConfig contains Prometheus exposition settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path"    mapstructure:"path"`
}

// StoreConfig contains the persisted-config database location (spec §10.4).
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// RateLimitConfig contains SYN admission-control tunables (spec §12
// supplemented feature).
type RateLimitConfig struct {
	Enabled       bool    `yaml:"enabled"         mapstructure:"enabled"`
	GlobalQPS     float64 `yaml:"global_qps"      mapstructure:"global_qps"`
	GlobalBurst   int     `yaml:"global_burst"    mapstructure:"global_burst"`
	PerIPQPS      float64 `yaml:"per_ip_qps"      mapstructure:"per_ip_qps"`
	PerIPBurst    int     `yaml:"per_ip_burst"    mapstructure:"per_ip_burst"`
	MaxTrackedIPs int     `yaml:"max_tracked_ips" mapstructure:"max_tracked_ips"`
}

// Config is the root configuration structure.
type Config struct {
	Network   NetworkConfig   `yaml:"network"    mapstructure:"network"`
	Driver    DriverConfig    `yaml:"driver"     mapstructure:"driver"`
	Arp       ArpConfig       `yaml:"arp"        mapstructure:"arp"`
	Tcp       TcpConfig       `yaml:"tcp"        mapstructure:"tcp"`
	Socket    SocketConfig    `yaml:"socket"     mapstructure:"socket"`
	Timer     TimerConfig     `yaml:"timer"      mapstructure:"timer"`
	Logging   LoggingConfig   `yaml:"logging"    mapstructure:"logging"`
	API       APIConfig       `yaml:"api"        mapstructure:"api"`
	Metrics   MetricsConfig   `yaml:"metrics"    mapstructure:"metrics"`
	Store     StoreConfig     `yaml:"store"      mapstructure:"store"`
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// ResolveConfigPath determines the config file path from flag or
// environment.
func ResolveConfigPath(flagValue string) string {
	if strings.TrimSpace(flagValue) != "" {
		return flagValue
	}
	if v := strings.TrimSpace(os.Getenv("NETSTACK_CONFIG")); v != "" {
		return v
	}
	return ""
}

// Load loads configuration from a YAML file with environment variable
// overrides. This is the main entry point for loading configuration.
//
// Configuration priority (highest to lowest):
//  1. Environment variables (NETSTACK_*)
//  2. Config file values
//  3. Default values
func Load(path string) (*Config, error) {
	return loadFromSource(path)
}
