package netctx

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/anemos-os/netstack/internal/driver"
	"github.com/anemos-os/netstack/internal/link"
	"github.com/anemos-os/netstack/internal/metrics"
	"github.com/anemos-os/netstack/internal/socket"
)

func newPair(t *testing.T) (*Context, *Context) {
	t.Helper()
	now := func() int64 { return time.Now().UnixMilli() }

	a := driver.NewLoopback(link.HWAddr{1, 1, 1, 1, 1, 1})
	b := driver.NewLoopback(link.HWAddr{2, 2, 2, 2, 2, 2})
	driver.Pair(a, b)

	ctxA := New(Config{LocalIP: 0x0A000001, Netmask: 0xFFFFFF00, Gateway: 0x0A0000FE, LocalHW: a.HardwareAddr()}, a, now, nil, nil)
	ctxB := New(Config{LocalIP: 0x0A000002, Netmask: 0xFFFFFF00, Gateway: 0x0A0000FE, LocalHW: b.HardwareAddr()}, b, now, nil, nil)
	ctxA.Arp.StaticSet(0x0A000002, b.HardwareAddr())
	ctxB.Arp.StaticSet(0x0A000001, a.HardwareAddr())
	return ctxA, ctxB
}

func TestRunDispatchesHandshakeAcrossLoopbackPair(t *testing.T) {
	ctxA, ctxB := newPair(t)

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ctxA.Run(runCtx)
	go ctxB.Run(runCtx)

	server, err := ctxB.Socket.Socket(socket.Stream, 0)
	require.NoError(t, err)
	require.NoError(t, ctxB.Socket.Bind(server, 0x0A000002, 80))
	require.NoError(t, ctxB.Socket.Listen(server, 4))

	client, err := ctxA.Socket.Socket(socket.Stream, 0)
	require.NoError(t, err)
	require.NoError(t, ctxA.Socket.Bind(client, 0x0A000001, 5000))
	require.NoError(t, ctxA.Socket.Connect(client, 0x0A000002, 80))

	var accepted socket.Handle
	require.Eventually(t, func() bool {
		h, err := ctxB.Socket.Accept(server)
		if err != nil {
			return false
		}
		accepted = h
		return true
	}, time.Second, time.Millisecond, "expected handshake to complete")

	require.Eventually(t, func() bool {
		_, err := ctxA.Socket.Send(client, []byte("hello"))
		return err == nil
	}, time.Second, time.Millisecond, "expected client send to succeed once established")

	buf := make([]byte, 16)
	require.Eventually(t, func() bool {
		n, err := ctxB.Socket.Recv(accepted, buf)
		return err == nil && n == 5
	}, time.Second, time.Millisecond, "expected server to receive client data")
	require.Equal(t, "hello", string(buf[:5]))
}

func TestSynGuardDeniesSecondSynFromSameSourceOnceBurstIsSpent(t *testing.T) {
	now := func() int64 { return time.Now().UnixMilli() }

	a := driver.NewLoopback(link.HWAddr{1, 1, 1, 1, 1, 1})
	b := driver.NewLoopback(link.HWAddr{2, 2, 2, 2, 2, 2})
	driver.Pair(a, b)

	ctxA := New(Config{LocalIP: 0x0A000001, Netmask: 0xFFFFFF00, Gateway: 0x0A0000FE, LocalHW: a.HardwareAddr()}, a, now, nil, nil)
	ctxB := New(Config{
		LocalIP: 0x0A000002, Netmask: 0xFFFFFF00, Gateway: 0x0A0000FE, LocalHW: b.HardwareAddr(),
		SynGuard: SynGuardConfig{Enabled: true, GlobalQPS: 1000, GlobalBurst: 1000, PerIPQPS: 0.001, PerIPBurst: 1, MaxTrackedIPs: 16},
	}, b, now, nil, nil)
	ctxA.Arp.StaticSet(0x0A000002, b.HardwareAddr())
	ctxB.Arp.StaticSet(0x0A000001, a.HardwareAddr())

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ctxA.Run(runCtx)
	go ctxB.Run(runCtx)

	server, err := ctxB.Socket.Socket(socket.Stream, 0)
	require.NoError(t, err)
	require.NoError(t, ctxB.Socket.Bind(server, 0x0A000002, 90))
	require.NoError(t, ctxB.Socket.Listen(server, 4))

	first, err := ctxA.Socket.Socket(socket.Stream, 0)
	require.NoError(t, err)
	require.NoError(t, ctxA.Socket.Bind(first, 0x0A000001, 6001))
	require.NoError(t, ctxA.Socket.Connect(first, 0x0A000002, 90))

	var accepted socket.Handle
	require.Eventually(t, func() bool {
		h, err := ctxB.Socket.Accept(server)
		if err != nil {
			return false
		}
		accepted = h
		return true
	}, time.Second, time.Millisecond, "first connection from a fresh source should be admitted")
	require.NotZero(t, accepted)

	second, err := ctxA.Socket.Socket(socket.Stream, 0)
	require.NoError(t, err)
	require.NoError(t, ctxA.Socket.Bind(second, 0x0A000001, 6002))
	require.NoError(t, ctxA.Socket.Connect(second, 0x0A000002, 90))

	time.Sleep(50 * time.Millisecond)
	_, err = ctxB.Socket.Accept(server)
	require.Error(t, err, "second SYN from the same source should be denied once the per-IP burst is spent")
}

func TestSynGuardDenialIncrementsMetricsCounter(t *testing.T) {
	now := func() int64 { return time.Now().UnixMilli() }

	a := driver.NewLoopback(link.HWAddr{1, 1, 1, 1, 1, 1})
	b := driver.NewLoopback(link.HWAddr{2, 2, 2, 2, 2, 2})
	driver.Pair(a, b)

	m := metrics.New()
	ctxA := New(Config{LocalIP: 0x0A000001, Netmask: 0xFFFFFF00, Gateway: 0x0A0000FE, LocalHW: a.HardwareAddr()}, a, now, nil, nil)
	ctxB := New(Config{
		LocalIP: 0x0A000002, Netmask: 0xFFFFFF00, Gateway: 0x0A0000FE, LocalHW: b.HardwareAddr(),
		SynGuard: SynGuardConfig{Enabled: true, GlobalQPS: 1000, GlobalBurst: 1000, PerIPQPS: 0.001, PerIPBurst: 1, MaxTrackedIPs: 16},
	}, b, now, m, nil)
	ctxA.Arp.StaticSet(0x0A000002, b.HardwareAddr())
	ctxB.Arp.StaticSet(0x0A000001, a.HardwareAddr())

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ctxA.Run(runCtx)
	go ctxB.Run(runCtx)

	server, err := ctxB.Socket.Socket(socket.Stream, 0)
	require.NoError(t, err)
	require.NoError(t, ctxB.Socket.Bind(server, 0x0A000002, 91))
	require.NoError(t, ctxB.Socket.Listen(server, 4))

	first, err := ctxA.Socket.Socket(socket.Stream, 0)
	require.NoError(t, err)
	require.NoError(t, ctxA.Socket.Bind(first, 0x0A000001, 6101))
	require.NoError(t, ctxA.Socket.Connect(first, 0x0A000002, 91))

	require.Eventually(t, func() bool {
		_, err := ctxB.Socket.Accept(server)
		return err == nil
	}, time.Second, time.Millisecond, "first connection from a fresh source should be admitted")

	second, err := ctxA.Socket.Socket(socket.Stream, 0)
	require.NoError(t, err)
	require.NoError(t, ctxA.Socket.Bind(second, 0x0A000001, 6102))
	require.NoError(t, ctxA.Socket.Connect(second, 0x0A000002, 91))

	require.Eventually(t, func() bool {
		return m.Totals().SynRejected >= 1
	}, time.Second, time.Millisecond, "denied SYN should increment the syn_rejected_total counter")
}
