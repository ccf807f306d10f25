// Package view turns raw state snapshots into the presentational
// structures the dashboard renders. Everything here is a pure function
// of the snapshot.
package view

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/botwatch/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// PositionView presentational slice of an open position.
type PositionView struct {
	Side       domain.PositionSide `json:"side"`
	EntryPrice decimal.Decimal     `json:"entry_price"`
	Amount     decimal.Decimal     `json:"amount"`
	// UnrealizedPnL computed against the preferred price feed; nil when
	// no feed has data.
	UnrealizedPnL *decimal.Decimal `json:"unrealized_pnl,omitempty"`
}

// AccountSummary one card on the dashboard.
type AccountSummary struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Equity      decimal.Decimal `json:"equity"`
	StartEquity decimal.Decimal `json:"start_equity"`
	PnL         decimal.Decimal `json:"pnl"`
	// PnLPercent relative to start equity, zero when start equity is zero.
	PnLPercent decimal.Decimal `json:"pnl_percent"`
	Position   *PositionView   `json:"position,omitempty"`
	TradesWon  int             `json:"trades_won"`
	TradesLost int             `json:"trades_lost"`
	// WinRate percent of closed trades won, zero when no trades closed.
	WinRate decimal.Decimal `json:"win_rate"`
	// Degraded set when the account payload could not be fully parsed;
	// the card renders with a warning instead of vanishing.
	Degraded bool `json:"degraded,omitempty"`
}

// Summaries builds one summary per account. Accounts listed in order
// come first, in that order; the rest follow sorted by id.
func Summaries(s *domain.StateSnapshot, order []string) []AccountSummary {
	if s == nil {
		return nil
	}

	markPrice, hasMark := markPrice(s)

	out := make([]AccountSummary, 0, len(s.Accounts))
	for _, acc := range s.Accounts {
		out = append(out, summarize(acc, markPrice, hasMark))
	}

	rank := make(map[string]int, len(order))
	for i, id := range order {
		rank[id] = i
	}
	sort.SliceStable(out, func(i, j int) bool {
		ri, iKnown := rank[out[i].ID]
		rj, jKnown := rank[out[j].ID]
		switch {
		case iKnown && jKnown:
			return ri < rj
		case iKnown:
			return true
		case jKnown:
			return false
		default:
			return out[i].ID < out[j].ID
		}
	})

	return out
}

func summarize(acc domain.AccountState, mark decimal.Decimal, hasMark bool) AccountSummary {
	summary := AccountSummary{
		ID:         acc.ID,
		Name:       acc.Name,
		TradesWon:  acc.TradesWon,
		TradesLost: acc.TradesLost,
	}

	equity, err := acc.EquityValue()
	if err != nil {
		summary.Degraded = true
	}
	start, err := acc.StartEquityValue()
	if err != nil {
		summary.Degraded = true
	}
	summary.Equity = equity
	summary.StartEquity = start
	summary.PnL = equity.Sub(start)
	if start.IsPositive() {
		summary.PnLPercent = summary.PnL.Div(start).Mul(hundred).Round(2)
	}

	if closed := acc.TradesWon + acc.TradesLost; closed > 0 {
		summary.WinRate = decimal.NewFromInt(int64(acc.TradesWon)).
			Div(decimal.NewFromInt(int64(closed))).Mul(hundred).Round(2)
	}

	if acc.Position != nil {
		pv := &PositionView{Side: acc.Position.Side}
		entry, entryErr := decimal.NewFromString(acc.Position.EntryPrice)
		amount, amountErr := decimal.NewFromString(acc.Position.Amount)
		if entryErr != nil || amountErr != nil {
			summary.Degraded = true
		} else {
			pv.EntryPrice = entry
			pv.Amount = amount
			if hasMark {
				pnl := unrealizedPnL(acc.Position.Side, entry, amount, mark)
				pv.UnrealizedPnL = &pnl
			}
		}
		summary.Position = pv
	}

	return summary
}

// markPrice picks the freshest price feed that actually has data.
func markPrice(s *domain.StateSnapshot) (decimal.Decimal, bool) {
	best := decimal.Zero
	bestAge := 0.0
	found := false
	for _, feed := range s.Prices {
		if !feed.HasData() {
			continue
		}
		price, err := decimal.NewFromString(feed.Price)
		if err != nil {
			continue
		}
		if !found || feed.SecondsSinceUpdate < bestAge {
			best = price
			bestAge = feed.SecondsSinceUpdate
			found = true
		}
	}
	return best, found
}

func unrealizedPnL(side domain.PositionSide, entry, amount, mark decimal.Decimal) decimal.Decimal {
	if side == domain.PositionSideShort {
		return entry.Sub(mark).Mul(amount)
	}
	return mark.Sub(entry).Mul(amount)
}
