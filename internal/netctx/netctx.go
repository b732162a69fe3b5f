// Package netctx implements the process-wide NetworkContext (spec §9):
// the single container for local addressing, the layer stack, and the
// timer wheel, plus the single cooperative dispatch loop that the rest
// of the core assumes runs it (spec §5 "no parallelism inside this
// core").
package netctx

import (
	"context"
	"log/slog"
	"time"

	"github.com/anemos-os/netstack/internal/arp"
	"github.com/anemos-os/netstack/internal/driver"
	"github.com/anemos-os/netstack/internal/ipv4"
	"github.com/anemos-os/netstack/internal/link"
	"github.com/anemos-os/netstack/internal/metrics"
	"github.com/anemos-os/netstack/internal/ratelimit"
	"github.com/anemos-os/netstack/internal/socket"
	"github.com/anemos-os/netstack/internal/tcpcore"
	"github.com/anemos-os/netstack/internal/timerwheel"
)

// Config bundles the addressing and capacity knobs needed to build a
// Context; zero-valued capacity/interval fields fall back to each
// layer's own defaults.
type Config struct {
	LocalIP    uint32
	Netmask    uint32
	Gateway    uint32
	LocalHW    link.HWAddr
	ArpConfig  ArpConfig
	TCPConfig  TCPConfig
	SockConfig SockConfig
	SynGuard   SynGuardConfig
	TickMs     int64
}

// SynGuardConfig carries the SYN admission-control knobs; a zero-valued
// Config leaves synAdmit unset and every SYN is admitted.
type SynGuardConfig struct {
	Enabled        bool
	GlobalQPS      float64
	GlobalBurst    int
	PerIPQPS       float64
	PerIPBurst     int
	MaxTrackedIPs  int
}

// ArpConfig carries the arp.Cache retry/TTL knobs a config layer can
// override; zero fields keep the package defaults.
type ArpConfig struct {
	RetryMs       int64
	MaxRetries    int
	ResolvedTTLMs int64
	StaleTTLMs    int64
}

// TCPConfig carries the tcpcore.Manager sizing knobs a config layer can
// override.
type TCPConfig struct {
	Capacity int
}

// SockConfig carries the socket.Table sizing knobs a config layer can
// override.
type SockConfig struct {
	Capacity int
}

type linkSender struct{ d driver.Driver }

func (s linkSender) Send(frame []byte) error { return s.d.Write(frame) }

// Context is the process-wide "network context" value described in
// spec §9: local addressing, the ARP/IP/TCP/Socket stack, and the
// timer wheel that drives it, all instantiated together so independent
// tests (and cmd/netbench's two-sided scenarios) can each hold their
// own.
type Context struct {
	Driver driver.Driver
	Link   *link.Layer
	Arp    *arp.Cache
	IP     *ipv4.Layer
	TCP    *tcpcore.Manager
	Socket *socket.Table
	Wheel  *timerwheel.Wheel

	logger *slog.Logger
}

// New wires a complete stack on top of d: link layer, ARP cache, IP
// layer, TCP manager, socket table, and a timer wheel ticking every
// cfg.TickMs milliseconds (timerwheel.DefaultInterval when zero). now is
// the monotonic millisecond clock (spec §9 now_ms()); pass
// timerwheel.NowMs when unsure. m may be nil to skip metrics
// instrumentation entirely.
func New(cfg Config, d driver.Driver, now func() int64, m *metrics.Registry, logger *slog.Logger) *Context {
	if logger == nil {
		logger = slog.Default()
	}

	ll := link.New(cfg.LocalHW, linkSender{d: d}, logger)
	arpCache := arp.NewWithTunables(cfg.LocalIP, cfg.LocalHW, ll, now, logger, arp.Tunables{
		RetryIntervalMs: cfg.ArpConfig.RetryMs,
		MaxRetries:      cfg.ArpConfig.MaxRetries,
		ResolvedTTLMs:   cfg.ArpConfig.ResolvedTTLMs,
		StaleTTLMs:      cfg.ArpConfig.StaleTTLMs,
	})

	ipCfg := ipv4.NewConfig(cfg.LocalIP, cfg.Netmask, cfg.Gateway)
	ipLayer := ipv4.New(ipCfg, ll, arpCache, logger)
	ll.Register(link.EtherTypeIPv4, ipLayer.Receive)

	tcpCapacity := cfg.TCPConfig.Capacity
	if tcpCapacity <= 0 {
		tcpCapacity = tcpcore.DefaultCapacity
	}
	tcpMgr := tcpcore.NewManager(tcpCapacity, ipLayer, now, logger)
	if cfg.SynGuard.Enabled {
		guard := ratelimit.NewSynGuard(
			ratelimit.Config{Rate: cfg.SynGuard.GlobalQPS, Burst: cfg.SynGuard.GlobalBurst, MaxEntries: 1},
			ratelimit.Config{Rate: cfg.SynGuard.PerIPQPS, Burst: cfg.SynGuard.PerIPBurst, MaxEntries: cfg.SynGuard.MaxTrackedIPs},
		)
		tcpMgr.SetSynAdmission(func(srcIP uint32) bool {
			allowed, tier := guard.AllowTier(srcIP)
			if !allowed && m != nil {
				m.SynRejected.WithLabelValues(tier).Inc()
			}
			return allowed
		})
	}

	sockCapacity := cfg.SockConfig.Capacity
	if sockCapacity <= 0 {
		sockCapacity = socket.DefaultCapacity
	}
	sockTable := socket.New(sockCapacity, ipLayer, tcpMgr, logger)

	return &Context{
		Driver: d,
		Link:   ll,
		Arp:    arpCache,
		IP:     ipLayer,
		TCP:    tcpMgr,
		Socket: sockTable,
		Wheel:  timerwheel.New(time.Duration(cfg.TickMs) * time.Millisecond),
		logger: logger,
	}
}

// Run is the single cooperative processing loop (spec §5): a receiver
// goroutine pumps frames off the driver into a channel (mirroring the
// teacher's recv-then-handoff server pattern), and this loop serially
// dispatches each inbound frame or timer tick, never both at once, until
// ctx is cancelled or the driver is closed.
func (c *Context) Run(ctx context.Context) error {
	frames := make(chan []byte, 64)
	recvErrs := make(chan error, 1)

	go func() {
		for {
			frame, err := c.Driver.Read()
			if err != nil {
				recvErrs <- err
				return
			}
			select {
			case frames <- frame:
			case <-ctx.Done():
				return
			}
		}
	}()

	go c.Wheel.Run(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-recvErrs:
			return err
		case frame := <-frames:
			c.Link.Dispatch(frame)
		case <-c.Wheel.Ticks():
			c.Arp.Tick()
			c.TCP.Tick()
		}
	}
}
