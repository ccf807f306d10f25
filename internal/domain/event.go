package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// EventKind classifies a trade event for grouping in the UI.
type EventKind string

const (
	EventKindEntry  EventKind = "entry"
	EventKindExit   EventKind = "exit"
	EventKindSignal EventKind = "signal"
	EventKindError  EventKind = "error"
)

// knownEventKinds used when normalizing backend payloads.
var knownEventKinds = map[EventKind]struct{}{
	EventKindEntry:  {},
	EventKindExit:   {},
	EventKindSignal: {},
	EventKindError:  {},
}

// NormalizeEventKind maps unknown kinds to signal so a new backend
// event type degrades to a plain log line instead of disappearing.
func NormalizeEventKind(k EventKind) EventKind {
	if _, ok := knownEventKinds[k]; ok {
		return k
	}
	return EventKindSignal
}

// TradeEvent one entry of the backend's event feed.
type TradeEvent struct {
	// ID backend-assigned, strictly increasing per event.
	ID uint64 `json:"id"`
	// Account owning strategy variant.
	Account string    `json:"account"`
	Kind    EventKind `json:"kind"`
	// Action trade action for entry/exit events ("open_long", ...).
	Action string `json:"action,omitempty"`
	Price  string `json:"price,omitempty"`
	Amount string `json:"amount,omitempty"`
	// PnL realized profit for exit events, decimal string.
	PnL     string    `json:"pnl,omitempty"`
	Time    time.Time `json:"time"`
	Message string    `json:"message,omitempty"`
}

// PnLValue parses the realized PnL, zero when absent.
func (e TradeEvent) PnLValue() decimal.Decimal {
	if e.PnL == "" {
		return decimal.Zero
	}
	v, err := decimal.NewFromString(e.PnL)
	if err != nil {
		return decimal.Zero
	}
	return v
}

// String returns a human-readable string representation.
func (e TradeEvent) String() string {
	if e.Message != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Account, e.Kind, e.Message)
	}
	return fmt.Sprintf("[%s] %s %s %s @ %s", e.Account, e.Kind, e.Action, e.Amount, e.Price)
}
