package view

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/botwatch/internal/domain"
)

func eventFeed() []domain.TradeEvent {
	base := time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC)
	return []domain.TradeEvent{
		{ID: 1, Account: "chainlink-only", Kind: domain.EventKindEntry, Time: base},
		{ID: 2, Account: "binance-only", Kind: domain.EventKindEntry, Time: base.Add(time.Minute)},
		{ID: 3, Account: "binance-only", Kind: domain.EventKindExit, Time: base.Add(2 * time.Minute)},
		{ID: 4, Account: "chainlink-only", Kind: "rebalance", Time: base.Add(3 * time.Minute)},
		{ID: 5, Account: "binance-only", Kind: domain.EventKindError, Time: base.Add(3 * time.Minute)},
	}
}

func TestGroupEvents(t *testing.T) {
	groups := GroupEvents(eventFeed(), []string{"binance-only", "chainlink-only"})
	require.Len(t, groups, 2)

	require.Equal(t, "binance-only", groups[0].Account)
	require.Equal(t, []uint64{5, 3, 2}, ids(groups[0].Events))

	require.Equal(t, "chainlink-only", groups[1].Account)
	require.Equal(t, []uint64{4, 1}, ids(groups[1].Events))

	// unknown kinds degrade to signal instead of disappearing
	require.Equal(t, domain.EventKindSignal, groups[1].Events[0].Kind)
}

func TestLatestEvents(t *testing.T) {
	latest := LatestEvents(eventFeed(), 3)
	require.Equal(t, []uint64{5, 4, 3}, ids(latest))
}

func TestLatestEventsTiebreakOnID(t *testing.T) {
	ts := time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC)
	events := []domain.TradeEvent{
		{ID: 10, Account: "a", Kind: domain.EventKindSignal, Time: ts},
		{ID: 11, Account: "a", Kind: domain.EventKindSignal, Time: ts},
	}
	latest := LatestEvents(events, 0)
	require.Equal(t, []uint64{11, 10}, ids(latest))
}

func TestLatestEventsDoesNotMutateInput(t *testing.T) {
	events := eventFeed()
	_ = LatestEvents(events, 2)
	require.Equal(t, uint64(1), events[0].ID)
	require.Equal(t, domain.EventKind("rebalance"), events[3].Kind)
}

func ids(events []domain.TradeEvent) []uint64 {
	out := make([]uint64, len(events))
	for i, ev := range events {
		out[i] = ev.ID
	}
	return out
}
