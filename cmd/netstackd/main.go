//go:build linux

// Command netstackd runs the network stack as a standalone daemon: it
// opens a link driver (TAP or loopback), wires up the ARP/IP/TCP/Socket
// stack, and optionally serves the management REST API alongside it.
//
// The TAP backend is Linux-only (internal/driver's tap_linux.go), so
// this binary only builds on linux; cmd/netbench exercises the same
// stack portably over the loopback driver.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anemos-os/netstack/internal/api"
	"github.com/anemos-os/netstack/internal/config"
	"github.com/anemos-os/netstack/internal/driver"
	"github.com/anemos-os/netstack/internal/link"
	"github.com/anemos-os/netstack/internal/logging"
	"github.com/anemos-os/netstack/internal/metrics"
	"github.com/anemos-os/netstack/internal/netctx"
	"github.com/anemos-os/netstack/internal/store"
	"github.com/anemos-os/netstack/internal/wire"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

type cliFlags struct {
	configPath string
	driverKind string
	tapDevice  string
	apiEnabled bool
}

func parseFlags() cliFlags {
	var f cliFlags
	flag.StringVar(&f.configPath, "config", "", "Path to YAML config file")
	flag.StringVar(&f.driverKind, "driver", "", "Override driver.kind: tap or loopback")
	flag.StringVar(&f.tapDevice, "tap-device", "", "Override driver.tap_device")
	flag.BoolVar(&f.apiEnabled, "api", false, "Force-enable the management API regardless of config")
	flag.Parse()
	return f
}

func applyCLIOverrides(cfg *config.Config, f cliFlags) {
	if f.driverKind != "" {
		cfg.Driver.Kind = f.driverKind
	}
	if f.tapDevice != "" {
		cfg.Driver.TAPDevice = f.tapDevice
	}
	if f.apiEnabled {
		cfg.API.Enabled = true
	}
}

func run() error {
	f := parseFlags()

	configPath := config.ResolveConfigPath(f.configPath)
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyCLIOverrides(cfg, f)

	logger := logging.Configure(logging.Config{
		Level:            cfg.Logging.Level,
		Structured:       cfg.Logging.Structured,
		StructuredFormat: cfg.Logging.StructuredFormat,
	})
	logger.Info("netstackd starting",
		"driver", cfg.Driver.Kind,
		"local_ip", cfg.Network.LocalIP,
		"api_enabled", cfg.API.Enabled,
	)

	db, err := store.Open(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	d, hw, err := openDriver(cfg)
	if err != nil {
		return fmt.Errorf("open driver: %w", err)
	}
	defer d.Close()

	netCfg, err := buildNetctxConfig(cfg, hw)
	if err != nil {
		return fmt.Errorf("build network config: %w", err)
	}

	m := metrics.New()
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	stack := netctx.New(netCfg, d, timerwheelNow, m, logger)
	seedStaticARP(stack, db, logger)

	var apiSrv *api.Server
	if cfg.API.Enabled {
		apiSrv = api.New(cfg, logger, m, db, configPath)
		apiSrv.SetNetwork(stack)
		logger.Info("management API starting", "addr", apiSrv.Addr())
		go func() {
			serveErr := apiSrv.ListenAndServe()
			if serveErr == nil || errors.Is(serveErr, http.ErrServerClosed) {
				return
			}
			logger.Error("API server error", "err", serveErr)
			cancel()
		}()
	}

	runErr := stack.Run(ctx)

	if apiSrv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = apiSrv.Shutdown(shutdownCtx)
		shutdownCancel()
		logger.Info("management API stopped")
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return fmt.Errorf("stack exited with error: %w", runErr)
	}
	return nil
}

func timerwheelNow() int64 { return time.Now().UnixMilli() }

func openDriver(cfg *config.Config) (driver.Driver, link.HWAddr, error) {
	hw, err := link.ParseHWAddr(cfg.Driver.HWAddr)
	if err != nil {
		return nil, link.HWAddr{}, fmt.Errorf("driver.hw_addr: %w", err)
	}

	switch cfg.Driver.Kind {
	case "loopback":
		// Self-echoing: useful for exercising the stack against itself
		// without a TAP device. cmd/netbench uses driver.Pair directly
		// for genuine two-sided scenarios.
		return driver.NewLoopback(hw), hw, nil
	case "tap":
		d, err := driver.OpenTAP(cfg.Driver.TAPDevice, hw)
		if err != nil {
			return nil, link.HWAddr{}, err
		}
		return d, hw, nil
	default:
		return nil, link.HWAddr{}, fmt.Errorf("unsupported driver.kind %q", cfg.Driver.Kind)
	}
}

func buildNetctxConfig(cfg *config.Config, hw link.HWAddr) (netctx.Config, error) {
	localIP, err := wire.ParseV4(cfg.Network.LocalIP)
	if err != nil {
		return netctx.Config{}, fmt.Errorf("network.local_ip: %w", err)
	}
	netmask, err := wire.ParseV4(cfg.Network.Netmask)
	if err != nil {
		return netctx.Config{}, fmt.Errorf("network.netmask: %w", err)
	}
	gateway, err := wire.ParseV4(cfg.Network.Gateway)
	if err != nil {
		return netctx.Config{}, fmt.Errorf("network.gateway: %w", err)
	}

	return netctx.Config{
		LocalIP: localIP,
		Netmask: netmask,
		Gateway: gateway,
		LocalHW: hw,
		ArpConfig: netctx.ArpConfig{
			RetryMs:       int64(cfg.Arp.RetryMs),
			MaxRetries:    cfg.Arp.MaxRetries,
			ResolvedTTLMs: int64(cfg.Arp.ResolvedTTLMs),
			StaleTTLMs:    int64(cfg.Arp.StaleTTLMs),
		},
		TCPConfig:  netctx.TCPConfig{Capacity: cfg.Tcp.Capacity},
		SockConfig: netctx.SockConfig{Capacity: cfg.Socket.Capacity},
		SynGuard: netctx.SynGuardConfig{
			Enabled:       cfg.RateLimit.Enabled,
			GlobalQPS:     cfg.RateLimit.GlobalQPS,
			GlobalBurst:   cfg.RateLimit.GlobalBurst,
			PerIPQPS:      cfg.RateLimit.PerIPQPS,
			PerIPBurst:    cfg.RateLimit.PerIPBurst,
			MaxTrackedIPs: cfg.RateLimit.MaxTrackedIPs,
		},
		TickMs: int64(cfg.Timer.IntervalMs),
	}, nil
}

// seedStaticARP installs every durable static ARP mapping from the
// store into the live cache at boot.
func seedStaticARP(stack *netctx.Context, db *store.DB, logger *slog.Logger) {
	entries, err := db.ListStaticARP()
	if err != nil {
		logger.Error("failed to load static ARP entries", "err", err)
		return
	}
	for _, e := range entries {
		ip, err := wire.ParseV4(e.IP)
		if err != nil {
			logger.Warn("skipping invalid stored static ARP entry", "ip", e.IP, "err", err)
			continue
		}
		hw, err := link.ParseHWAddr(e.HWAddr)
		if err != nil {
			logger.Warn("skipping invalid stored static ARP entry", "hw_addr", e.HWAddr, "err", err)
			continue
		}
		stack.Arp.StaticSet(ip, hw)
	}
}
