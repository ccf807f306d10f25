package view

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/botwatch/internal/domain"
)

func snapshot() *domain.StateSnapshot {
	return &domain.StateSnapshot{
		Timestamp:   time.Date(2026, 8, 24, 10, 0, 2, 0, time.UTC),
		Status:      domain.BotStatusRunning,
		WSConnected: true,
		Prices: map[string]domain.PriceFeed{
			"binance":   {Price: "67000", SecondsSinceUpdate: 1.2},
			"chainlink": {Price: "67100", SecondsSinceUpdate: 999999999},
		},
		Accounts: []domain.AccountState{
			{
				ID: "chainlink-only", Name: "Chainlink Only",
				StartEquity: "1000", Equity: "987.10",
				TradesWon: 7, TradesLost: 9,
			},
			{
				ID: "binance-only", Name: "Binance Only",
				StartEquity: "1000", Equity: "1043.20",
				Position: &domain.PositionState{
					Side:       domain.PositionSideLong,
					EntryPrice: "66500",
					Amount:     "0.01",
				},
				TradesWon: 12, TradesLost: 4,
			},
		},
	}
}

func TestSummaries(t *testing.T) {
	order := []string{"binance-only", "chainlink-only", "dual-confirmation"}
	summaries := Summaries(snapshot(), order)
	require.Len(t, summaries, 2)

	// configured order wins over payload order
	require.Equal(t, "binance-only", summaries[0].ID)
	require.Equal(t, "chainlink-only", summaries[1].ID)

	b := summaries[0]
	require.Equal(t, "43.2", b.PnL.String())
	require.Equal(t, "4.32", b.PnLPercent.String())
	require.Equal(t, "75", b.WinRate.String())
	require.False(t, b.Degraded)

	require.NotNil(t, b.Position)
	// mark price comes from the freshest feed with data (binance, 67000)
	require.NotNil(t, b.Position.UnrealizedPnL)
	require.Equal(t, "5", b.Position.UnrealizedPnL.String())

	c := summaries[1]
	require.Equal(t, "-12.9", c.PnL.String())
	require.True(t, c.PnLPercent.IsNegative())
	require.Nil(t, c.Position)
}

func TestSummariesUnknownAccountsSortAfter(t *testing.T) {
	s := snapshot()
	s.Accounts = append(s.Accounts, domain.AccountState{
		ID: "aaa-experimental", Name: "Experimental", StartEquity: "100", Equity: "100",
	})

	summaries := Summaries(s, []string{"binance-only"})
	require.Equal(t, "binance-only", summaries[0].ID)
	require.Equal(t, "aaa-experimental", summaries[1].ID)
	require.Equal(t, "chainlink-only", summaries[2].ID)
}

func TestSummariesDegradedOnBadNumbers(t *testing.T) {
	s := snapshot()
	s.Accounts[0].Equity = "not-a-number"

	summaries := Summaries(s, nil)
	for _, sum := range summaries {
		if sum.ID == "chainlink-only" {
			require.True(t, sum.Degraded)
		}
	}
}

func TestSummariesNoMarkPrice(t *testing.T) {
	s := snapshot()
	// both feeds sentinel: no unrealized pnl can be computed
	s.Prices["binance"] = domain.PriceFeed{Price: "67000", SecondsSinceUpdate: -1}

	summaries := Summaries(s, nil)
	for _, sum := range summaries {
		if sum.Position != nil {
			require.Nil(t, sum.Position.UnrealizedPnL)
		}
	}
}

func TestSummariesZeroStartEquity(t *testing.T) {
	s := snapshot()
	s.Accounts[0].StartEquity = "0"

	summaries := Summaries(s, nil)
	for _, sum := range summaries {
		if sum.ID == "chainlink-only" {
			require.True(t, sum.PnLPercent.IsZero())
		}
	}
}

func TestSummariesNilSnapshot(t *testing.T) {
	require.Nil(t, Summaries(nil, nil))
}
