package socket

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/anemos-os/netstack/internal/ipv4"
	"github.com/anemos-os/netstack/internal/link"
	"github.com/anemos-os/netstack/internal/tcpcore"
	"github.com/anemos-os/netstack/internal/udp"
)

type nullSender struct{}

func (nullSender) Send(dest uint32, protocol uint8, payload []byte) error { return nil }

type fakeLinkSender struct{}

func (fakeLinkSender) Send(frame []byte) error { return nil }

func newTestTable(t *testing.T) *Table {
	t.Helper()
	now := int64(0)
	mgr := tcpcore.NewManager(16, nullSender{}, func() int64 { return now }, nil)
	cfg := ipv4.NewConfig(0x0A000001, 0xFFFFFF00, 0x0A0000FE)
	ll := link.New(link.HWAddr{1, 1, 1, 1, 1, 1}, fakeLinkSender{}, nil)
	ipLayer := ipv4.New(cfg, ll, stubResolver{}, nil)
	return New(DefaultCapacity, ipLayer, mgr, nil)
}

type stubResolver struct{}

func (stubResolver) Lookup(uint32) (link.HWAddr, bool) { return link.HWAddr{}, true }

func TestBindAssignsEphemeralPortWhenUnspecified(t *testing.T) {
	tbl := newTestTable(t)
	h, err := tbl.Socket(Datagram, 0)
	require.NoError(t, err)

	require.NoError(t, tbl.Bind(h, 0x0A000001, 0))
	_, port, err := tbl.LocalAddr(h)
	require.NoError(t, err)
	require.GreaterOrEqual(t, port, uint16(EphemeralPortLo))
	require.LessOrEqual(t, port, uint16(EphemeralPortHi))
}

func TestBindRejectsDuplicatePortWithoutReuseAddr(t *testing.T) {
	tbl := newTestTable(t)
	a, _ := tbl.Socket(Datagram, 0)
	require.NoError(t, tbl.Bind(a, 0x0A000001, 5000))

	b, _ := tbl.Socket(Datagram, 0)
	err := tbl.Bind(b, 0x0A000001, 5000)
	require.Error(t, err)
}

func TestBindAllowsDuplicatePortWithReuseAddr(t *testing.T) {
	tbl := newTestTable(t)
	a, _ := tbl.Socket(Datagram, 0)
	require.NoError(t, tbl.SetOptions(a, Options{ReuseAddr: true}))
	require.NoError(t, tbl.Bind(a, 0x0A000001, 5000))

	b, _ := tbl.Socket(Datagram, 0)
	require.NoError(t, tbl.SetOptions(b, Options{ReuseAddr: true}))
	require.NoError(t, tbl.Bind(b, 0x0A000001, 5000))
}

func TestBindAllowsSamePortAcrossDifferentTypes(t *testing.T) {
	tbl := newTestTable(t)
	udpSock, _ := tbl.Socket(Datagram, 0)
	require.NoError(t, tbl.Bind(udpSock, 0x0A000001, 80))

	tcpSock, _ := tbl.Socket(Stream, 0)
	require.NoError(t, tbl.Bind(tcpSock, 0x0A000001, 80))
}

func TestListenRequiresStreamAndPriorBind(t *testing.T) {
	tbl := newTestTable(t)
	h, _ := tbl.Socket(Datagram, 0)
	require.Error(t, tbl.Listen(h, 4))

	s, _ := tbl.Socket(Stream, 0)
	require.Error(t, tbl.Listen(s, 4)) // not bound yet

	require.NoError(t, tbl.Bind(s, 0x0A000001, 80))
	require.NoError(t, tbl.Listen(s, 4))
}

func TestAcceptReturnsWouldBlockWhenNoPendingConnection(t *testing.T) {
	tbl := newTestTable(t)
	s, _ := tbl.Socket(Stream, 0)
	require.NoError(t, tbl.Bind(s, 0x0A000001, 80))
	require.NoError(t, tbl.Listen(s, 4))

	_, err := tbl.Accept(s)
	require.Error(t, err)
}

func TestDatagramSendWithoutConnectFails(t *testing.T) {
	tbl := newTestTable(t)
	h, _ := tbl.Socket(Datagram, 0)
	require.NoError(t, tbl.Bind(h, 0x0A000001, 0))

	_, err := tbl.Send(h, []byte("hi"))
	require.Error(t, err)
}

func TestDeliverRoutesDatagramToBoundEndpoint(t *testing.T) {
	tbl := newTestTable(t)
	h, _ := tbl.Socket(Datagram, 0)
	require.NoError(t, tbl.Bind(h, 0x0A000001, 5353))

	tbl.Deliver(5353, udp.Datagram{SrcIP: 0x0A000099, SrcPort: 53, Payload: []byte("payload")})

	buf := make([]byte, 32)
	n, srcIP, srcPort, err := tbl.RecvFrom(h, buf)
	require.NoError(t, err)
	require.Equal(t, "payload", string(buf[:n]))
	require.Equal(t, uint32(0x0A000099), srcIP)
	require.Equal(t, uint16(53), srcPort)
}

func TestCloseFreesHandleAndRejectsFurtherUse(t *testing.T) {
	tbl := newTestTable(t)
	h, _ := tbl.Socket(Datagram, 0)
	require.NoError(t, tbl.Close(h))

	require.Error(t, tbl.Bind(h, 0x0A000001, 5000))
}

func TestRawSocketSendUsesConfiguredProtocol(t *testing.T) {
	tbl := newTestTable(t)
	h, err := tbl.Socket(Raw, ipv4.ProtoICMP)
	require.NoError(t, err)
	require.NoError(t, tbl.Bind(h, 0x0A000001, 0))
	require.NoError(t, tbl.Connect(h, 0x0A000002, 0))

	n, err := tbl.Send(h, []byte("echo"))
	require.NoError(t, err)
	require.Equal(t, 4, n)
}

func TestRawSocketReceivesInboundProtocolPayloadAndFansOutToAllSubscribers(t *testing.T) {
	tbl := newTestTable(t)
	h1, err := tbl.Socket(Raw, ipv4.ProtoICMP)
	require.NoError(t, err)
	h2, err := tbl.Socket(Raw, ipv4.ProtoICMP)
	require.NoError(t, err)

	payload := []byte("ping")
	hdr := ipv4.Header{TTL: 64, Protocol: ipv4.ProtoICMP, Src: 0x0A000005, Dst: 0x0A000001, Total: ipv4.HeaderSize + uint16(len(payload))}
	pkt := append(hdr.Marshal(), payload...)
	tbl.ip.Receive(link.HWAddr{}, pkt)

	for _, h := range []Handle{h1, h2} {
		buf := make([]byte, 32)
		n, srcIP, _, err := tbl.RecvFrom(h, buf)
		require.NoError(t, err)
		require.Equal(t, "ping", string(buf[:n]))
		require.Equal(t, uint32(0x0A000005), srcIP)
	}
}

func TestRawSocketUnsubscribesOnClose(t *testing.T) {
	tbl := newTestTable(t)
	h, err := tbl.Socket(Raw, ipv4.ProtoICMP)
	require.NoError(t, err)
	require.NoError(t, tbl.Close(h))
	require.Empty(t, tbl.rawSubscribers[ipv4.ProtoICMP])
}

func TestSnapshotListsOnlyInUseEndpointsWithBoundAddress(t *testing.T) {
	tbl := newTestTable(t)

	h1, err := tbl.Socket(Datagram, 0)
	require.NoError(t, err)
	require.NoError(t, tbl.Bind(h1, 0x0A000001, 5000))

	h2, err := tbl.Socket(Raw, ipv4.ProtoICMP)
	require.NoError(t, err)

	snap := tbl.Snapshot()
	require.Len(t, snap, 2)

	byHandle := make(map[Handle]EndpointSnapshot, len(snap))
	for _, s := range snap {
		byHandle[s.Handle] = s
	}

	s1, ok := byHandle[h1]
	require.True(t, ok)
	require.Equal(t, Datagram, s1.Type)
	require.Equal(t, uint32(0x0A000001), s1.LocalIP)
	require.Equal(t, uint16(5000), s1.LocalPort)

	s2, ok := byHandle[h2]
	require.True(t, ok)
	require.Equal(t, Raw, s2.Type)
	require.Equal(t, ipv4.ProtoICMP, s2.Protocol)

	require.NoError(t, tbl.Close(h1))
	require.Len(t, tbl.Snapshot(), 1)
}
