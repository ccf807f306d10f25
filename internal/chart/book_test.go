package chart

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/botwatch/internal/domain"
)

var t0 = time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)

func pt(offset time.Duration, v int64) domain.EquityPoint {
	return domain.EquityPoint{Time: t0.Add(offset), Value: decimal.NewFromInt(v)}
}

func fill(b *Book, account string, n int) {
	for i := 0; i < n; i++ {
		b.Append(account, pt(time.Duration(i)*2*time.Second, 1000+int64(i)))
	}
}

func TestAppendAssignsIncreasingIndices(t *testing.T) {
	b := NewBook(2000, 300)

	r1, ok := b.Append("binance-only", pt(0, 1000))
	require.True(t, ok)
	r2, ok := b.Append("binance-only", pt(2*time.Second, 1004))
	require.True(t, ok)

	require.Equal(t, uint64(1), r1.Index)
	require.Equal(t, uint64(2), r2.Index)
	require.Equal(t, uint64(0), r1.Generation)
}

func TestAppendDropsDuplicateTimestamp(t *testing.T) {
	b := NewBook(2000, 300)
	b.Append("binance-only", pt(0, 1000))

	// same backend timestamp polled again two seconds later
	_, ok := b.Append("binance-only", pt(0, 1000))
	require.False(t, ok)

	require.Len(t, b.PointsAfter("binance-only", 0), 1)
}

func TestAppendRegressionStartsNewGeneration(t *testing.T) {
	b := NewBook(2000, 300)
	b.Append("binance-only", pt(time.Hour, 1050))

	rec, ok := b.Append("binance-only", pt(0, 1000))
	require.True(t, ok, "restart point must be accepted")
	require.Equal(t, uint64(1), rec.Generation)
	require.Equal(t, uint64(2), rec.Index, "indices keep increasing across generations")

	records := b.PointsAfter("binance-only", 0)
	require.Len(t, records, 1, "old generation is discarded")
	require.Equal(t, uint64(1), b.Generation("binance-only"))
}

func TestPointsAfterIsIncremental(t *testing.T) {
	b := NewBook(2000, 300)
	fill(b, "binance-only", 10)

	records := b.PointsAfter("binance-only", 7)
	require.Len(t, records, 3)
	require.Equal(t, uint64(8), records[0].Index)
	require.Equal(t, uint64(10), records[2].Index)

	require.Empty(t, b.PointsAfter("binance-only", 10))
	require.Empty(t, b.PointsAfter("unknown", 0))
}

func TestPointsAfterRedeliveryIsIdentical(t *testing.T) {
	b := NewBook(2000, 300)
	fill(b, "binance-only", 5)

	first := b.PointsAfter("binance-only", 2)
	second := b.PointsAfter("binance-only", 2)
	require.Equal(t, first, second)
}

func TestBackfillBelowCeilingIsExact(t *testing.T) {
	b := NewBook(100, 20)
	fill(b, "binance-only", 80)

	records := b.Backfill("binance-only")
	require.Len(t, records, 80)
}

func TestBackfillThinsAboveCeiling(t *testing.T) {
	b := NewBook(200, 100)
	fill(b, "binance-only", 1000)

	records := b.Backfill("binance-only")
	require.Less(t, len(records), 1000)

	// the newest keepRecent points stay exact
	tail := records[len(records)-100:]
	for i, rec := range tail {
		require.Equal(t, uint64(900+i+1), rec.Index)
	}

	// oldest and newest points survive, order and indices stay strictly increasing
	require.Equal(t, uint64(1), records[0].Index)
	for i := 1; i < len(records); i++ {
		require.Greater(t, records[i].Index, records[i-1].Index)
	}

	// thinning is sparser for older points
	oldGap := records[1].Index - records[0].Index
	recentGap := records[len(records)-1].Index - records[len(records)-2].Index
	require.Greater(t, oldGap, recentGap)
}

func TestBackfillDoesNotMutateSeries(t *testing.T) {
	b := NewBook(50, 25)
	fill(b, "binance-only", 500)

	_ = b.Backfill("binance-only")

	// incremental reads still see every point
	require.Len(t, b.PointsAfter("binance-only", 0), 500)
}

func TestRestoreSkipsStaleGenerations(t *testing.T) {
	b := NewBook(2000, 300)
	b.Restore("binance-only", 1, 0, pt(0, 1000))
	b.Restore("binance-only", 2, 1, pt(10*time.Second, 900))
	b.Restore("binance-only", 3, 0, pt(20*time.Second, 1010)) // late write from old generation
	b.Restore("binance-only", 4, 1, pt(12*time.Second, 905))

	records := b.PointsAfter("binance-only", 0)
	require.Len(t, records, 2)
	require.Equal(t, uint64(2), records[0].Index)
	require.Equal(t, "900", records[0].Point.Value.String())
	require.Equal(t, uint64(4), records[1].Index)
	require.Equal(t, "905", records[1].Point.Value.String())
	require.Equal(t, uint64(1), b.Generation("binance-only"))

	// the skipped record still advanced the counter
	rec, ok := b.Append("binance-only", pt(14*time.Second, 910))
	require.True(t, ok)
	require.Equal(t, uint64(5), rec.Index)
}

func TestRestoreResumesIndicesAfterRestart(t *testing.T) {
	live := NewBook(2000, 300)
	var persisted []Record
	points := []domain.EquityPoint{
		pt(0, 1000), pt(2*time.Second, 1001), pt(4*time.Second, 1002), // first backend run
		pt(time.Second, 900), pt(3*time.Second, 905), // backend restarted, curve starts over
	}
	for _, p := range points {
		rec, ok := live.Append("binance-only", p)
		require.True(t, ok)
		persisted = append(persisted, rec)
	}
	require.Equal(t, uint64(5), persisted[4].Index)
	require.Equal(t, uint64(1), persisted[4].Generation)

	// replay the same records into a fresh book, as WAL replay does on startup
	restored := NewBook(2000, 300)
	for _, rec := range persisted {
		restored.Restore("binance-only", rec.Index, rec.Generation, rec.Point)
	}

	// a client resuming at the last delivered id must not get stale re-delivery
	require.Empty(t, restored.PointsAfter("binance-only", 5))
	require.Equal(t, live.PointsAfter("binance-only", 3), restored.PointsAfter("binance-only", 3),
		"re-delivery of an index must yield the identical point")
	require.Equal(t, uint64(1), restored.Generation("binance-only"))

	// new points continue the counter instead of reusing delivered ids
	rec, ok := restored.Append("binance-only", pt(5*time.Second, 910))
	require.True(t, ok)
	require.Equal(t, uint64(6), rec.Index)
}

func TestAccountsAndValues(t *testing.T) {
	b := NewBook(2000, 300)
	fill(b, "chainlink-only", 2)
	fill(b, "binance-only", 3)

	require.Equal(t, []string{"binance-only", "chainlink-only"}, b.Accounts())

	values := b.Values("binance-only")
	require.Len(t, values, 3)
	require.Equal(t, "1002", values[2].String())
}
