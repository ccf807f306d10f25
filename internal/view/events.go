package view

import (
	"sort"

	"github.com/vadiminshakov/botwatch/internal/domain"
)

// EventGroup trade events of one account, newest first.
type EventGroup struct {
	Account string              `json:"account"`
	Events  []domain.TradeEvent `json:"events"`
}

// GroupEvents splits the event feed per account. Inside a group events
// are newest first; groups follow the configured account order, then
// account id.
func GroupEvents(events []domain.TradeEvent, order []string) []EventGroup {
	byAccount := make(map[string][]domain.TradeEvent)
	for _, ev := range events {
		ev.Kind = domain.NormalizeEventKind(ev.Kind)
		byAccount[ev.Account] = append(byAccount[ev.Account], ev)
	}

	groups := make([]EventGroup, 0, len(byAccount))
	for account, evs := range byAccount {
		sortEventsDesc(evs)
		groups = append(groups, EventGroup{Account: account, Events: evs})
	}

	rank := make(map[string]int, len(order))
	for i, id := range order {
		rank[id] = i
	}
	sort.SliceStable(groups, func(i, j int) bool {
		ri, iKnown := rank[groups[i].Account]
		rj, jKnown := rank[groups[j].Account]
		switch {
		case iKnown && jKnown:
			return ri < rj
		case iKnown:
			return true
		case jKnown:
			return false
		default:
			return groups[i].Account < groups[j].Account
		}
	})

	return groups
}

// LatestEvents returns up to limit events across all accounts, newest
// first with a stable id tiebreak.
func LatestEvents(events []domain.TradeEvent, limit int) []domain.TradeEvent {
	out := make([]domain.TradeEvent, len(events))
	copy(out, events)
	for i := range out {
		out[i].Kind = domain.NormalizeEventKind(out[i].Kind)
	}
	sortEventsDesc(out)

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func sortEventsDesc(events []domain.TradeEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].Time.Equal(events[j].Time) {
			return events[i].Time.After(events[j].Time)
		}
		return events[i].ID > events[j].ID
	})
}
