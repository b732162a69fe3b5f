package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAllowPermitsBurstThenThrottles(t *testing.T) {
	l := New(Config{Rate: 1, Burst: 3, MaxEntries: 16})

	require.True(t, l.Allow(1))
	require.True(t, l.Allow(1))
	require.True(t, l.Allow(1))
	require.False(t, l.Allow(1))
}

func TestAllowIsPerKey(t *testing.T) {
	l := New(Config{Rate: 1, Burst: 1, MaxEntries: 16})

	require.True(t, l.Allow(1))
	require.False(t, l.Allow(1))
	require.True(t, l.Allow(2))
}

func TestAllowDisabledWhenRateOrBurstNonPositive(t *testing.T) {
	l := New(Config{Rate: 0, Burst: 0})
	for i := 0; i < 10; i++ {
		require.True(t, l.Allow(1))
	}
}

func TestNilLimiterAlwaysAllows(t *testing.T) {
	var l *Limiter
	require.True(t, l.Allow(1))
}

func TestMaxEntriesCapsTrackedKeys(t *testing.T) {
	l := New(Config{Rate: 1, Burst: 1, MaxEntries: 1, CleanupInterval: time.Hour})

	require.True(t, l.Allow(1))
	require.False(t, l.Allow(2))
}

func TestSynGuardRequiresBothGlobalAndPerIP(t *testing.T) {
	g := NewSynGuard(
		Config{Rate: 100, Burst: 100, MaxEntries: 1},
		Config{Rate: 1, Burst: 1, MaxEntries: 16},
	)

	require.True(t, g.Allow(10))
	require.False(t, g.Allow(10))
	require.True(t, g.Allow(20))
}

func TestNilSynGuardAlwaysAllows(t *testing.T) {
	var g *SynGuard
	require.True(t, g.Allow(10))
}

func TestAllowTierReportsWhichTierRejected(t *testing.T) {
	g := NewSynGuard(
		Config{Rate: 0, Burst: 1, MaxEntries: 1},
		Config{Rate: 1, Burst: 1, MaxEntries: 16},
	)
	allowed, tier := g.AllowTier(10)
	require.True(t, allowed)
	require.Empty(t, tier)

	allowed, tier = g.AllowTier(10)
	require.False(t, allowed)
	require.Equal(t, "per_ip", tier)

	g2 := NewSynGuard(
		Config{Rate: 1, Burst: 1, MaxEntries: 1},
		Config{Rate: 100, Burst: 100, MaxEntries: 16},
	)
	require.True(t, func() bool { ok, _ := g2.AllowTier(1); return ok }())
	allowed, tier = g2.AllowTier(2)
	require.False(t, allowed)
	require.Equal(t, "global", tier)
}
