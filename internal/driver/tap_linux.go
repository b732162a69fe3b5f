//go:build linux

package driver

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/anemos-os/netstack/internal/link"
)

// Linux TUN/TAP ioctl constants (linux/if_tun.h). TUNSETIFF's value is
// architecture-independent on Linux (0x400454ca).
const (
	tunDevicePath = "/dev/net/tun"
	ifNameSize    = 16
	tunSetIFF     = 0x400454ca
	iffTap        = 0x0002
	iffNoPI       = 0x1000
)

type ifReq struct {
	name  [ifNameSize]byte
	flags uint16
	_     [22]byte // pad to sizeof(struct ifreq)
}

// TAP is a Driver backed by a Linux TAP character device, read and
// written as raw Ethernet-style frames with no packet-info prefix
// (IFF_NO_PI).
type TAP struct {
	file *os.File
	hw   link.HWAddr
	name string
}

// OpenTAP opens or creates the named TAP interface and binds a Driver
// to it. hw is the hardware address LinkLayer will use as its source;
// it is the caller's responsibility to have assigned that address to
// the interface (e.g. via `ip link set <name> address ...`) before
// traffic is expected to be accepted by peers on the segment.
func OpenTAP(name string, hw link.HWAddr) (*TAP, error) {
	fd, err := unix.Open(tunDevicePath, unix.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("driver: open %s: %w", tunDevicePath, err)
	}

	var req ifReq
	copy(req.name[:], name)
	req.flags = iffTap | iffNoPI

	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(tunSetIFF), uintptr(unsafe.Pointer(&req))); errno != 0 {
		unix.Close(fd)
		return nil, fmt.Errorf("driver: TUNSETIFF %s: %w", name, errno)
	}

	return &TAP{file: os.NewFile(uintptr(fd), tunDevicePath), hw: hw, name: name}, nil
}

func (t *TAP) Read() ([]byte, error) {
	buf := make([]byte, link.HeaderSize+link.MaxPayload)
	n, err := t.file.Read(buf)
	if err != nil {
		return nil, fmt.Errorf("driver: tap read: %w", err)
	}
	return buf[:n], nil
}

func (t *TAP) Write(frame []byte) error {
	if _, err := t.file.Write(frame); err != nil {
		return fmt.Errorf("driver: tap write: %w", err)
	}
	return nil
}

func (t *TAP) HardwareAddr() link.HWAddr { return t.hw }

func (t *TAP) Close() error {
	return t.file.Close()
}
