// Command netbench drives two in-process network contexts connected by
// a paired loopback driver through repeated TCP connect/transfer/close
// cycles and reports throughput and latency, without needing a TAP
// device or a second host.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"sort"
	"time"

	"github.com/anemos-os/netstack/internal/driver"
	"github.com/anemos-os/netstack/internal/link"
	"github.com/anemos-os/netstack/internal/necode"
	"github.com/anemos-os/netstack/internal/netctx"
	"github.com/anemos-os/netstack/internal/socket"
	"github.com/anemos-os/netstack/internal/wire"
)

func main() {
	var (
		connections = flag.Int("connections", 500, "Number of sequential connect/transfer/close cycles")
		payloadSize = flag.Int("payload-bytes", 4096, "Bytes sent per connection")
		timeout     = flag.Duration("timeout", 2*time.Second, "Per-operation timeout")
	)
	flag.Parse()

	serverIP, err := wire.ParseV4("10.0.0.1")
	if err != nil {
		panic(err)
	}
	clientIP, err := wire.ParseV4("10.0.0.2")
	if err != nil {
		panic(err)
	}
	serverHW := link.HWAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}
	clientHW := link.HWAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x02}

	serverDriver := driver.NewLoopback(serverHW)
	clientDriver := driver.NewLoopback(clientHW)
	driver.Pair(serverDriver, clientDriver)

	now := func() int64 { return time.Now().UnixMilli() }

	server := netctx.New(netctx.Config{
		LocalIP: serverIP, Netmask: 0xFFFFFF00, Gateway: serverIP, LocalHW: serverHW,
	}, serverDriver, now, nil, nil)
	client := netctx.New(netctx.Config{
		LocalIP: clientIP, Netmask: 0xFFFFFF00, Gateway: serverIP, LocalHW: clientHW,
	}, clientDriver, now, nil, nil)

	server.Arp.StaticSet(clientIP, clientHW)
	client.Arp.StaticSet(serverIP, serverHW)

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go server.Run(runCtx)
	go client.Run(runCtx)

	listener, err := server.Socket.Socket(socket.Stream, 0)
	if err != nil {
		panic(fmt.Sprintf("server socket: %v", err))
	}
	const serverPort = 9100
	if err := server.Socket.Bind(listener, serverIP, serverPort); err != nil {
		panic(fmt.Sprintf("server bind: %v", err))
	}
	if err := server.Socket.Listen(listener, 16); err != nil {
		panic(fmt.Sprintf("server listen: %v", err))
	}

	payload := make([]byte, *payloadSize)
	for i := range payload {
		payload[i] = byte(i)
	}

	lat := make([]float64, 0, *connections)
	clientPort := uint16(40000)

	t0 := time.Now()
	for i := 0; i < *connections; i++ {
		start := time.Now()
		if ok := runCycle(server, client, listener, serverIP, serverPort, clientIP, clientPort, payload, *timeout); ok {
			lat = append(lat, float64(time.Since(start).Microseconds())/1000.0)
		}
		clientPort++
	}
	elapsed := time.Since(t0).Seconds()

	if len(lat) == 0 {
		fmt.Println("no successful connection cycles")
		return
	}
	sort.Float64s(lat)
	fmt.Printf("connections=%d payload_bytes=%d succeeded=%d\n", *connections, *payloadSize, len(lat))
	fmt.Printf("elapsed_s=%.3f cycles_per_s=%.1f\n", elapsed, float64(len(lat))/elapsed)
	fmt.Printf("latency_ms p50=%.3f p95=%.3f p99=%.3f min=%.3f max=%.3f\n",
		percentile(lat, 50), percentile(lat, 95), percentile(lat, 99), lat[0], lat[len(lat)-1])
}

func runCycle(server, client *netctx.Context, listener socket.Handle, serverIP uint32, serverPort uint16, clientIP uint32, clientPort uint16, payload []byte, timeout time.Duration) bool {
	conn, err := client.Socket.Socket(socket.Stream, 0)
	if err != nil {
		return false
	}
	defer client.Socket.Close(conn)

	if err := client.Socket.Bind(conn, clientIP, clientPort); err != nil {
		return false
	}
	if err := client.Socket.Connect(conn, serverIP, serverPort); err != nil {
		return false
	}

	accepted, err := waitAccept(server, listener, timeout)
	if err != nil {
		return false
	}
	defer server.Socket.Close(accepted)

	if _, err := client.Socket.Send(conn, payload); err != nil {
		return false
	}

	received := make([]byte, 0, len(payload))
	buf := make([]byte, len(payload))
	deadline := time.Now().Add(timeout)
	for len(received) < len(payload) {
		if time.Now().After(deadline) {
			return false
		}
		n, err := server.Socket.Recv(accepted, buf)
		if err != nil {
			if errors.Is(err, necode.ErrWouldBlock) {
				time.Sleep(time.Millisecond)
				continue
			}
			return false
		}
		received = append(received, buf[:n]...)
	}
	return len(received) == len(payload)
}

func waitAccept(server *netctx.Context, listener socket.Handle, timeout time.Duration) (socket.Handle, error) {
	deadline := time.Now().Add(timeout)
	for {
		h, err := server.Socket.Accept(listener)
		if err == nil {
			return h, nil
		}
		if time.Now().After(deadline) {
			return 0, err
		}
		time.Sleep(time.Millisecond)
	}
}

func percentile(sorted []float64, p int) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}
	idx := int(float64(len(sorted))*float64(p)/100.0) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
