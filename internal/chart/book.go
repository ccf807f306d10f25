// Package chart maintains per-account equity series for incremental
// delivery to the browser. Points get stable, strictly increasing
// indices so clients append instead of reloading and their pan/zoom
// state survives the polling cycle.
package chart

import (
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/botwatch/internal/domain"
)

// Record one chart point with its delivery metadata.
type Record struct {
	// Index strictly increasing per account, never reused. Doubles as
	// the SSE event id.
	Index uint64 `json:"i"`
	// Generation bumps when the backend restarts and the curve starts
	// over; the client rebuilds the series only on a generation change.
	Generation uint64 `json:"g"`
	// Account owning series.
	Account string             `json:"a"`
	Point   domain.EquityPoint `json:"p"`
}

type series struct {
	generation uint64
	nextIndex  uint64
	records    []Record
}

// Book holds all account series.
type Book struct {
	mu         sync.RWMutex
	ceiling    int
	keepRecent int
	series     map[string]*series
}

// NewBook creates a book. ceiling bounds the point count of an initial
// backfill; keepRecent newest points are never thinned.
func NewBook(ceiling, keepRecent int) *Book {
	return &Book{
		ceiling:    ceiling,
		keepRecent: keepRecent,
		series:     make(map[string]*series),
	}
}

// Append adds a point to the account's series. Points with a timestamp
// equal to the latest one are dropped (the 2s poll is usually faster
// than the backend's equity updates). A timestamp regression means the
// backend restarted: the series resets under a new generation.
func (b *Book) Append(account string, p domain.EquityPoint) (Record, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := b.series[account]
	if s == nil {
		s = &series{}
		b.series[account] = s
	}

	if n := len(s.records); n > 0 {
		last := s.records[n-1].Point.Time
		if p.Time.Equal(last) {
			return Record{}, false
		}
		if p.Time.Before(last) {
			s.generation++
			s.records = s.records[:0]
		}
	}

	s.nextIndex++
	rec := Record{
		Index:      s.nextIndex,
		Generation: s.generation,
		Account:    account,
		Point:      p,
	}
	s.records = append(s.records, rec)
	return rec, true
}

// Restore re-adds a point replayed from the history WAL under the
// index it was originally delivered with. Points from generations
// older than the latest seen one are discarded, but their indices
// still advance the counter: a client that reconnects after a restart
// resumes from its last event id, so an index must never name a
// different point than it did before the restart.
func (b *Book) Restore(account string, index, generation uint64, p domain.EquityPoint) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := b.series[account]
	if s == nil {
		s = &series{generation: generation}
		b.series[account] = s
	}
	if index > s.nextIndex {
		s.nextIndex = index
	}
	switch {
	case generation < s.generation:
		return
	case generation > s.generation:
		s.generation = generation
		s.records = s.records[:0]
	}

	if n := len(s.records); n > 0 && !p.Time.After(s.records[n-1].Point.Time) {
		return
	}

	s.records = append(s.records, Record{
		Index:      index,
		Generation: s.generation,
		Account:    account,
		Point:      p,
	})
}

// PointsAfter returns records with index greater than the given one.
// This is the incremental read path: re-delivery of an index always
// yields the identical point.
func (b *Book) PointsAfter(account string, index uint64) []Record {
	b.mu.RLock()
	defer b.mu.RUnlock()

	s := b.series[account]
	if s == nil {
		return nil
	}

	records := s.records
	i := sort.Search(len(records), func(i int) bool { return records[i].Index > index })
	if i == len(records) {
		return nil
	}

	out := make([]Record, len(records)-i)
	copy(out, records[i:])
	return out
}

// Backfill returns the series for an initial page load, thinned when it
// exceeds the point ceiling. Thinning only affects this first delivery;
// live appends are always exact, so an already-rendered curve is never
// rewritten.
func (b *Book) Backfill(account string) []Record {
	b.mu.RLock()
	defer b.mu.RUnlock()

	s := b.series[account]
	if s == nil {
		return nil
	}

	out := make([]Record, len(s.records))
	copy(out, s.records)
	return thin(out, b.ceiling, b.keepRecent)
}

// Generation returns the current reset generation for the account.
func (b *Book) Generation(account string) uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if s := b.series[account]; s != nil {
		return s.generation
	}
	return 0
}

// Accounts lists accounts with at least one point, sorted.
func (b *Book) Accounts() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]string, 0, len(b.series))
	for account, s := range b.series {
		if len(s.records) > 0 {
			out = append(out, account)
		}
	}
	sort.Strings(out)
	return out
}

// Values returns the raw equity values of the current generation, in
// time order. Used for overlays (SMA, drawdown).
func (b *Book) Values(account string) []decimal.Decimal {
	b.mu.RLock()
	defer b.mu.RUnlock()

	s := b.series[account]
	if s == nil {
		return nil
	}

	out := make([]decimal.Decimal, len(s.records))
	for i, rec := range s.records {
		out[i] = rec.Point.Value
	}
	return out
}

// thin applies exponential thinning: the newest keepRecent records stay
// exact, older ones are kept with a stride that doubles with age, so
// density decays smoothly and the curve shape is preserved.
func thin(records []Record, ceiling, keepRecent int) []Record {
	if len(records) <= ceiling {
		return records
	}
	if keepRecent > len(records) {
		keepRecent = len(records)
	}

	older := records[:len(records)-keepRecent]
	if len(older) == 0 {
		return records
	}
	var thinned []Record

	skip := 1 // start by keeping every 2nd
	kept := 0
	for i := len(older) - 1; i >= 0; i-- {
		thinned = append([]Record{older[i]}, thinned...)
		kept++
		// double the stride every 12 kept records
		if kept%12 == 0 {
			skip *= 2
		}
		i -= skip
	}

	// always keep the very first point so the curve start is visible
	if thinned[0].Index != older[0].Index {
		thinned = append([]Record{older[0]}, thinned...)
	}

	return append(thinned, records[len(records)-keepRecent:]...)
}
