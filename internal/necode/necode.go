// Package necode defines the network-stack error taxonomy (see spec §7).
//
// All exported operations that can fail return an error. Where the error
// corresponds to one of the defined categories below, it wraps the
// matching sentinel with fmt.Errorf("...: %w", necode.ErrXxx) so callers
// can use errors.Is to classify failures without string matching.
package necode

import "errors"

var (
	// ErrInvalidArgument covers null/zero handles, bad enum values, and
	// malformed address lengths passed by a caller.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNoMemory covers allocation failure, a full endpoint table, or a
	// full ARP cache with no evictable entry.
	ErrNoMemory = errors.New("no memory")

	// ErrAddressInUse is returned by Bind when the requested port is
	// already bound by another non-reuse-addr endpoint.
	ErrAddressInUse = errors.New("address in use")

	// ErrNotConnected is returned by Send/Recv on a stream endpoint that
	// is not in the Established state.
	ErrNotConnected = errors.New("not connected")

	// ErrWouldBlock is returned by a blocking call on a nonblocking
	// endpoint, or a blocking endpoint with no progress to report; the
	// caller is expected to re-poll.
	ErrWouldBlock = errors.New("would block")

	// ErrConnectionReset is returned after a peer RST destroys the
	// connection.
	ErrConnectionReset = errors.New("connection reset")

	// ErrConnectionRefused is returned when no listener exists at the
	// destination (peer replies RST to a SYN).
	ErrConnectionRefused = errors.New("connection refused")

	// ErrTimedOut is returned when SYN retries are exhausted without a
	// reply.
	ErrTimedOut = errors.New("connection timed out")

	// ErrChecksumMismatch is internal-only: malformed or checksum-failed
	// inbound frames are logged at DEBUG and dropped, never surfaced to an
	// application-facing call. No metrics counter is incremented for them.
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// ErrPending names the "resolution pending" outcome. ArpCache.Lookup
	// does not return it: Lookup reports a pending resolution through its
	// boolean result, which the IP layer treats as "drop and log", not a
	// failure to propagate further (spec §7).
	ErrPending = errors.New("resolution pending")
)
