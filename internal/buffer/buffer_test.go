package buffer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllocInvariants(t *testing.T) {
	b, err := Alloc(128, 32)
	require.NoError(t, err)
	require.Equal(t, 128, b.Cap())
	require.Equal(t, 0, b.Len())
	require.Equal(t, 32, b.Headroom())
	require.Equal(t, 96, b.Tailroom())
}

func TestAllocRejectsHeadroomExceedingCapacity(t *testing.T) {
	_, err := Alloc(16, 32)
	require.Error(t, err)
}

func TestPushThenPullRoundTrips(t *testing.T) {
	b, err := Alloc(64, 20)
	require.NoError(t, err)
	require.NoError(t, b.CopyIn([]byte("payload")))

	hdr, err := b.Push(4)
	require.NoError(t, err)
	copy(hdr, []byte{1, 2, 3, 4})
	require.Equal(t, 11, b.Len())
	require.Equal(t, 16, b.Headroom())

	require.Equal(t, []byte{1, 2, 3, 4}, b.Bytes()[:4])
	require.NoError(t, b.Pull(4))
	require.Equal(t, "payload", string(b.Bytes()))
}

func TestPushBeyondHeadroomFails(t *testing.T) {
	b, err := Alloc(32, 4)
	require.NoError(t, err)
	_, err = b.Push(5)
	require.Error(t, err)
}

func TestPutBeyondTailroomFails(t *testing.T) {
	b, err := Alloc(8, 0)
	require.NoError(t, err)
	_, err = b.Put(9)
	require.Error(t, err)
}

func TestTrimShrinksTail(t *testing.T) {
	b, err := Alloc(32, 0)
	require.NoError(t, err)
	require.NoError(t, b.CopyIn([]byte("hello world")))
	require.NoError(t, b.Trim(6))
	require.Equal(t, "hello", string(b.Bytes()))
}

func TestCloneIsIndependent(t *testing.T) {
	b, err := Alloc(32, 4)
	require.NoError(t, err)
	require.NoError(t, b.CopyIn([]byte("abc")))

	c := b.Clone()
	_, err = c.Put(1)
	require.NoError(t, err)
	c.Bytes()[3] = 'z'

	require.Equal(t, "abc", string(b.Bytes()))
	require.Equal(t, "abcz", string(c.Bytes()))
}

func TestAllocateReusesReleasedBuffers(t *testing.T) {
	b, err := Allocate(32)
	require.NoError(t, err)
	require.Equal(t, StandardCapacity, b.Cap())
	require.Equal(t, 32, b.Headroom())
	require.NoError(t, b.CopyIn([]byte("stale")))
	Release(b)

	c, err := Allocate(16)
	require.NoError(t, err)
	require.Equal(t, 16, c.Headroom())
	require.Equal(t, 0, c.Len())
}

func TestAllocateRejectsHeadroomExceedingCapacity(t *testing.T) {
	_, err := Allocate(StandardCapacity + 1)
	require.Error(t, err)
}

func TestInvariantsHoldAfterOperationSequence(t *testing.T) {
	b, err := Alloc(256, 64)
	require.NoError(t, err)
	_, err = b.Put(100)
	require.NoError(t, err)
	_, err = b.Push(20)
	require.NoError(t, err)
	require.NoError(t, b.Pull(10))
	require.NoError(t, b.Trim(5))

	require.GreaterOrEqual(t, b.Headroom(), 0)
	require.GreaterOrEqual(t, b.Tailroom(), 0)
	require.Equal(t, b.Cap(), b.Headroom()+b.Len()+b.Tailroom())
}
