// Package config provides configuration loading and validation for
// netstackd.
//
// Configuration is loaded with the following priority (highest to lowest):
//  1. Command-line flags (not handled here, see cmd/netstackd/main.go)
//  2. Environment variables (NETSTACK_* prefix)
//  3. YAML config file (if specified with --config)
//  4. Hardcoded defaults
//
// Environment variables are mapped from NETSTACK_CATEGORY_SETTING format,
// e.g., NETSTACK_NETWORK_LOCAL_IP maps to network.local_ip in YAML.
//
// All configuration is validated during Load() to ensure correctness early.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// initConfig sets up the config loader with defaults, env binding, and config file.
func initConfig(configPath string) (*viper.Viper, error) {
	v := viper.New()

	setDefaults(v)

	// Uses NETSTACK_ prefix: NETSTACK_NETWORK_LOCAL_IP -> network.local_ip
	v.SetEnvPrefix("NETSTACK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return v, nil
}

// setDefaults configures all default values.
func setDefaults(v *viper.Viper) {
	// Network defaults: 10.0.0.1/24 via 10.0.0.254, as used throughout
	// the example scenarios.
	v.SetDefault("network.local_ip", "10.0.0.1")
	v.SetDefault("network.netmask", "255.255.255.0")
	v.SetDefault("network.gateway", "10.0.0.254")

	// Driver defaults
	v.SetDefault("driver.kind", "tap")
	v.SetDefault("driver.tap_device", "tap0")
	v.SetDefault("driver.hw_addr", "02:00:00:00:00:01")

	// ArpCache defaults (spec §4.3)
	v.SetDefault("arp.capacity", 64)
	v.SetDefault("arp.retry_ms", 1000)
	v.SetDefault("arp.max_retries", 3)
	v.SetDefault("arp.resolved_ttl_ms", 300_000)
	v.SetDefault("arp.stale_ttl_ms", 600_000)

	// TcpCore defaults (spec §4.5)
	v.SetDefault("tcp.capacity", 256)
	v.SetDefault("tcp.send_buf_bytes", 64*1024)
	v.SetDefault("tcp.recv_buf_bytes", 64*1024)
	v.SetDefault("tcp.rto_ms", 1000)
	v.SetDefault("tcp.max_retries", 5)
	v.SetDefault("tcp.time_wait_ms", 60_000)

	// SocketApi defaults (spec §4.7)
	v.SetDefault("socket.capacity", 256)
	v.SetDefault("socket.ephemeral_port_lo", 49152)
	v.SetDefault("socket.ephemeral_port_hi", 65535)

	// Timer/Wheel defaults (spec §6)
	v.SetDefault("timer.interval_ms", 1000)

	// Logging defaults
	v.SetDefault("logging.level", "INFO")
	v.SetDefault("logging.structured", false)
	v.SetDefault("logging.structured_format", "json")

	// Management API defaults.
	// Default to disabled and bound to localhost for safety.
	v.SetDefault("api.enabled", false)
	v.SetDefault("api.host", "127.0.0.1")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.api_key", "")

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	// Store defaults
	v.SetDefault("store.path", "netstack.db")

	// SYN admission-control defaults (spec §12): disabled out of the box,
	// generous enough to never bite a well-behaved host when turned on.
	v.SetDefault("rate_limit.enabled", false)
	v.SetDefault("rate_limit.global_qps", 10_000.0)
	v.SetDefault("rate_limit.global_burst", 20_000)
	v.SetDefault("rate_limit.per_ip_qps", 50.0)
	v.SetDefault("rate_limit.per_ip_burst", 100)
	v.SetDefault("rate_limit.max_tracked_ips", 65_536)
}

// loadFromSource loads configuration from file and environment.
func loadFromSource(configPath string) (*Config, error) {
	v, err := initConfig(configPath)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}

	loadNetworkConfig(v, cfg)
	loadDriverConfig(v, cfg)
	loadArpConfig(v, cfg)
	loadTcpConfig(v, cfg)
	loadSocketConfig(v, cfg)
	loadTimerConfig(v, cfg)
	loadLoggingConfig(v, cfg)
	loadAPIConfig(v, cfg)
	loadMetricsConfig(v, cfg)
	loadStoreConfig(v, cfg)
	loadRateLimitConfig(v, cfg)

	if err := normalizeConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadNetworkConfig(v *viper.Viper, cfg *Config) {
	cfg.Network.LocalIP = v.GetString("network.local_ip")
	cfg.Network.Netmask = v.GetString("network.netmask")
	cfg.Network.Gateway = v.GetString("network.gateway")
}

func loadDriverConfig(v *viper.Viper, cfg *Config) {
	cfg.Driver.Kind = strings.ToLower(v.GetString("driver.kind"))
	cfg.Driver.TAPDevice = v.GetString("driver.tap_device")
	cfg.Driver.HWAddr = v.GetString("driver.hw_addr")
}

func loadArpConfig(v *viper.Viper, cfg *Config) {
	cfg.Arp.Capacity = v.GetInt("arp.capacity")
	cfg.Arp.RetryMs = v.GetInt("arp.retry_ms")
	cfg.Arp.MaxRetries = v.GetInt("arp.max_retries")
	cfg.Arp.ResolvedTTLMs = v.GetInt("arp.resolved_ttl_ms")
	cfg.Arp.StaleTTLMs = v.GetInt("arp.stale_ttl_ms")
}

func loadTcpConfig(v *viper.Viper, cfg *Config) {
	cfg.Tcp.Capacity = v.GetInt("tcp.capacity")
	cfg.Tcp.SendBufBytes = v.GetInt("tcp.send_buf_bytes")
	cfg.Tcp.RecvBufBytes = v.GetInt("tcp.recv_buf_bytes")
	cfg.Tcp.RTOMs = v.GetInt("tcp.rto_ms")
	cfg.Tcp.MaxRetries = v.GetInt("tcp.max_retries")
	cfg.Tcp.TimeWaitMs = v.GetInt("tcp.time_wait_ms")
}

func loadSocketConfig(v *viper.Viper, cfg *Config) {
	cfg.Socket.Capacity = v.GetInt("socket.capacity")
	cfg.Socket.EphemeralPortLo = v.GetInt("socket.ephemeral_port_lo")
	cfg.Socket.EphemeralPortHi = v.GetInt("socket.ephemeral_port_hi")
}

func loadTimerConfig(v *viper.Viper, cfg *Config) {
	cfg.Timer.IntervalMs = v.GetInt("timer.interval_ms")
}

func loadLoggingConfig(v *viper.Viper, cfg *Config) {
	cfg.Logging.Level = strings.ToUpper(v.GetString("logging.level"))
	cfg.Logging.Structured = v.GetBool("logging.structured")
	cfg.Logging.StructuredFormat = v.GetString("logging.structured_format")
}

func loadAPIConfig(v *viper.Viper, cfg *Config) {
	cfg.API.Enabled = v.GetBool("api.enabled")
	cfg.API.Host = v.GetString("api.host")
	cfg.API.Port = v.GetInt("api.port")
	cfg.API.APIKey = v.GetString("api.api_key")
}

func loadMetricsConfig(v *viper.Viper, cfg *Config) {
	cfg.Metrics.Enabled = v.GetBool("metrics.enabled")
	cfg.Metrics.Path = v.GetString("metrics.path")
}

func loadStoreConfig(v *viper.Viper, cfg *Config) {
	cfg.Store.Path = v.GetString("store.path")
}

func loadRateLimitConfig(v *viper.Viper, cfg *Config) {
	cfg.RateLimit.Enabled = v.GetBool("rate_limit.enabled")
	cfg.RateLimit.GlobalQPS = v.GetFloat64("rate_limit.global_qps")
	cfg.RateLimit.GlobalBurst = v.GetInt("rate_limit.global_burst")
	cfg.RateLimit.PerIPQPS = v.GetFloat64("rate_limit.per_ip_qps")
	cfg.RateLimit.PerIPBurst = v.GetInt("rate_limit.per_ip_burst")
	cfg.RateLimit.MaxTrackedIPs = v.GetInt("rate_limit.max_tracked_ips")
}

// normalizeConfig validates and normalizes the configuration.
func normalizeConfig(cfg *Config) error {
	if cfg.Network.LocalIP == "" {
		return errors.New("network.local_ip is required")
	}
	if cfg.Driver.Kind != "tap" && cfg.Driver.Kind != "loopback" {
		return fmt.Errorf("driver.kind must be \"tap\" or \"loopback\", got %q", cfg.Driver.Kind)
	}

	if cfg.Arp.Capacity <= 0 {
		cfg.Arp.Capacity = 64
	}
	if cfg.Tcp.Capacity <= 0 {
		cfg.Tcp.Capacity = 256
	}
	if cfg.Socket.Capacity <= 0 {
		cfg.Socket.Capacity = 256
	}
	if cfg.Socket.EphemeralPortLo <= 0 || cfg.Socket.EphemeralPortHi <= cfg.Socket.EphemeralPortLo {
		return errors.New("socket.ephemeral_port_hi must be greater than socket.ephemeral_port_lo")
	}
	if cfg.Timer.IntervalMs <= 0 {
		cfg.Timer.IntervalMs = 1000
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "INFO"
	}
	if cfg.Logging.StructuredFormat == "" {
		cfg.Logging.StructuredFormat = "json"
	}

	if cfg.API.Host == "" {
		cfg.API.Host = "127.0.0.1"
	}
	if cfg.API.Enabled {
		if cfg.API.Port <= 0 || cfg.API.Port > 65535 {
			return errors.New("api.port must be 1..65535")
		}
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = "netstack.db"
	}

	if cfg.RateLimit.Enabled && cfg.RateLimit.MaxTrackedIPs <= 0 {
		cfg.RateLimit.MaxTrackedIPs = 65_536
	}

	return nil
}
