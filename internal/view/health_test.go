package view

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/botwatch/internal/domain"
)

var thresholds = Thresholds{Warn: 30 * time.Second, Bad: 2 * time.Minute}

func healthSnapshot(now time.Time) *domain.StateSnapshot {
	return &domain.StateSnapshot{
		Timestamp:   now.Add(-2 * time.Second),
		WSConnected: true,
		Prices: map[string]domain.PriceFeed{
			"binance":   {Price: "67000", SecondsSinceUpdate: 1.5},
			"chainlink": {Price: "0", SecondsSinceUpdate: 999999999},
		},
	}
}

func findStatus(t *testing.T, statuses []HealthStatus, component string) HealthStatus {
	t.Helper()
	for _, st := range statuses {
		if st.Component == component {
			return st
		}
	}
	t.Fatalf("component %s not found", component)
	return HealthStatus{}
}

func TestHealthForAllGood(t *testing.T) {
	now := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	statuses := HealthFor(healthSnapshot(now), now, thresholds)

	require.Equal(t, HealthOK, findStatus(t, statuses, "backend").Level)
	require.Equal(t, HealthOK, findStatus(t, statuses, "exchange_ws").Level)
	require.Equal(t, HealthOK, findStatus(t, statuses, "feed:binance").Level)
}

func TestHealthForSentinelIsNoData(t *testing.T) {
	now := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	statuses := HealthFor(healthSnapshot(now), now, thresholds)

	cl := findStatus(t, statuses, "feed:chainlink")
	require.Equal(t, HealthNoData, cl.Level)
	require.Zero(t, cl.Age, "sentinel must not be surfaced as an age")
	require.Equal(t, "no data yet", cl.Detail)
}

func TestHealthForNegativeAgeIsNoData(t *testing.T) {
	now := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	s := healthSnapshot(now)
	s.Prices["binance"] = domain.PriceFeed{Price: "67000", SecondsSinceUpdate: -3}

	statuses := HealthFor(s, now, thresholds)
	require.Equal(t, HealthNoData, findStatus(t, statuses, "feed:binance").Level)
}

func TestHealthForStaleFeed(t *testing.T) {
	now := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	s := healthSnapshot(now)
	s.Prices["binance"] = domain.PriceFeed{Price: "67000", SecondsSinceUpdate: 45}

	statuses := HealthFor(s, now, thresholds)
	require.Equal(t, HealthDegraded, findStatus(t, statuses, "feed:binance").Level)

	s.Prices["binance"] = domain.PriceFeed{Price: "67000", SecondsSinceUpdate: 180}
	statuses = HealthFor(s, now, thresholds)
	require.Equal(t, HealthStale, findStatus(t, statuses, "feed:binance").Level)
}

func TestHealthForDisconnectedWS(t *testing.T) {
	now := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	s := healthSnapshot(now)
	s.WSConnected = false

	statuses := HealthFor(s, now, thresholds)
	require.Equal(t, HealthDown, findStatus(t, statuses, "exchange_ws").Level)
	require.Equal(t, HealthDown, Overall(statuses))
}

func TestHealthForFrozenSnapshot(t *testing.T) {
	now := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	s := healthSnapshot(now)
	s.Timestamp = now.Add(-5 * time.Minute)

	statuses := HealthFor(s, now, thresholds)
	backend := findStatus(t, statuses, "backend")
	require.Equal(t, HealthStale, backend.Level)
	require.Equal(t, "snapshot is not advancing", backend.Detail)
}

func TestHealthForNilSnapshot(t *testing.T) {
	statuses := HealthFor(nil, time.Now(), thresholds)
	require.Len(t, statuses, 1)
	require.Equal(t, HealthDown, statuses[0].Level)
	require.Equal(t, HealthDown, Overall(statuses))
}
