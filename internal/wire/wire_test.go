package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSwap16IsIdempotentInPairs(t *testing.T) {
	for _, v := range []uint16{0, 1, 0x1234, 0xFFFF, 0x00FF} {
		require.Equal(t, v, Swap16(Swap16(v)))
	}
}

func TestSwap32IsIdempotentInPairs(t *testing.T) {
	for _, v := range []uint32{0, 1, 0x12345678, 0xFFFFFFFF, 0x000000FF} {
		require.Equal(t, v, Swap32(Swap32(v)))
	}
}

func TestPutGetUint16RoundTrip(t *testing.T) {
	b := make([]byte, 2)
	PutUint16(b, 0xABCD)
	require.Equal(t, []byte{0xAB, 0xCD}, b)
	require.Equal(t, uint16(0xABCD), GetUint16(b))
}

func TestPutGetUint32RoundTrip(t *testing.T) {
	b := make([]byte, 4)
	PutUint32(b, 0xDEADBEEF)
	require.Equal(t, []byte{0xDE, 0xAD, 0xBE, 0xEF}, b)
	require.Equal(t, uint32(0xDEADBEEF), GetUint32(b))
}

func TestChecksumOfSelfPlusChecksumIsZero(t *testing.T) {
	data := []byte{0x45, 0x00, 0x00, 0x54, 0x00, 0x00, 0x40, 0x00, 0x40, 0x01, 0x00, 0x00, 0x0A, 0x00, 0x00, 0x01, 0x0A, 0x00, 0x00, 0x02}
	cs := Checksum(data)
	PutUint16(data[10:12], cs)
	require.Equal(t, uint16(0), Checksum(data))
}

func TestChecksumHandlesOddLength(t *testing.T) {
	require.NotPanics(t, func() {
		Checksum([]byte{0x01, 0x02, 0x03})
	})
}

func TestChecksumFoldMatchesChecksum(t *testing.T) {
	data := []byte("hello, checksum")
	want := Checksum(data)
	got := ChecksumFinish(ChecksumFold(0, data))
	require.Equal(t, want, got)
}

func TestParseV4FormatV4RoundTrip(t *testing.T) {
	ip, err := ParseV4("10.0.0.1")
	require.NoError(t, err)
	require.Equal(t, uint32(0x0A000001), ip)
	require.Equal(t, "10.0.0.1", FormatV4(ip))
}

func TestParseV4RejectsInvalidAddress(t *testing.T) {
	_, err := ParseV4("not-an-ip")
	require.Error(t, err)

	_, err = ParseV4("::1")
	require.Error(t, err)
}
