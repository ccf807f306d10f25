// Package domain defines the data structures exchanged with the bot
// backend and shared across the dashboard.
package domain

import "time"

// BotStatus reported by the backend in every snapshot.
type BotStatus string

const (
	BotStatusRunning BotStatus = "running"
	BotStatusPaused  BotStatus = "paused"
	BotStatusHalted  BotStatus = "halted"
)

// StaleSentinelFloor is the smallest "seconds since update" value the
// backend uses as a placeholder for "no data yet". Anything at or above
// it (or negative) must not be rendered as a literal duration.
const StaleSentinelFloor = 9e8

// PriceFeed one price source as reported by the backend.
type PriceFeed struct {
	// Price latest price from this source, decimal string on the wire.
	Price string `json:"price"`
	// SecondsSinceUpdate age of the latest tick. Sentinel values
	// (negative or >= StaleSentinelFloor) mean the source has not
	// delivered data yet.
	SecondsSinceUpdate float64 `json:"seconds_since_update"`
}

// HasData reports whether the feed carries a real age rather than the
// "no data yet" sentinel.
func (f PriceFeed) HasData() bool {
	return f.SecondsSinceUpdate >= 0 && f.SecondsSinceUpdate < StaleSentinelFloor
}

// StateSnapshot one payload returned by GET /api/state. It is the only
// contract the dashboard has with the backend.
type StateSnapshot struct {
	// Timestamp backend time the snapshot was taken.
	Timestamp time.Time `json:"ts"`
	// Status bot lifecycle state.
	Status BotStatus `json:"status"`
	// StartedAt backend process start time.
	StartedAt time.Time `json:"started_at"`
	// Pair traded pair, e.g. "BTC_USDT".
	Pair string `json:"pair"`
	// WSConnected backend's websocket link to its exchange.
	WSConnected bool `json:"ws_connected"`
	// Prices price sources keyed by name ("binance", "chainlink").
	Prices map[string]PriceFeed `json:"prices"`
	// EquitySeq monotonically increasing counter the backend bumps on
	// every equity update. A regression means the backend restarted.
	EquitySeq uint64 `json:"equity_seq"`
	// Accounts strategy variants tracked independently.
	Accounts []AccountState `json:"accounts"`
	// Events recent trade events across all accounts.
	Events []TradeEvent `json:"events"`
}

// Account returns the account with the given id.
func (s *StateSnapshot) Account(id string) (AccountState, bool) {
	for _, a := range s.Accounts {
		if a.ID == id {
			return a, true
		}
	}
	return AccountState{}, false
}
