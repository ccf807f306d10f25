package domain

import (
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// PositionSide direction of an open position.
type PositionSide string

const (
	PositionSideLong  PositionSide = "long"
	PositionSideShort PositionSide = "short"
)

// PositionState an open position as reported by the backend.
type PositionState struct {
	Side       PositionSide `json:"side"`
	EntryPrice string       `json:"entry_price"`
	Amount     string       `json:"amount"`
	EntryTime  time.Time    `json:"entry_time"`
}

// AccountState raw per-account slice of the snapshot. One account is
// one strategy variant (binance-only, chainlink-only, dual-confirmation)
// with its own equity curve and trade history.
type AccountState struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	StartEquity string         `json:"start_equity"`
	Equity      string         `json:"equity"`
	Position    *PositionState `json:"position,omitempty"`
	TradesWon   int            `json:"trades_won"`
	TradesLost  int            `json:"trades_lost"`
}

// EquityValue parses the reported equity.
func (a AccountState) EquityValue() (decimal.Decimal, error) {
	v, err := decimal.NewFromString(a.Equity)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "account %s: bad equity %q", a.ID, a.Equity)
	}
	return v, nil
}

// StartEquityValue parses the reported starting equity.
func (a AccountState) StartEquityValue() (decimal.Decimal, error) {
	v, err := decimal.NewFromString(a.StartEquity)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "account %s: bad start equity %q", a.ID, a.StartEquity)
	}
	return v, nil
}

// EquityPoint one sample of an account's equity curve.
type EquityPoint struct {
	Time  time.Time       `json:"t"`
	Value decimal.Decimal `json:"v"`
}
