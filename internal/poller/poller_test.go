package poller

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/botwatch/internal/domain"
)

type stubSource struct {
	mu        sync.Mutex
	responses []stubResponse
	calls     int
	delays    int
	resets    int
}

type stubResponse struct {
	snapshot *domain.StateSnapshot
	err      error
}

func (s *stubSource) FetchState(_ context.Context) (*domain.StateSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.calls
	if idx >= len(s.responses) {
		idx = len(s.responses) - 1
	}
	s.calls++
	r := s.responses[idx]
	return r.snapshot, r.err
}

func (s *stubSource) NextRetryDelay() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays++
	return time.Millisecond
}

func (s *stubSource) ResetBackoff() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resets++
}

func (s *stubSource) counts() (calls, delays, resets int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls, s.delays, s.resets
}

func snapshotAt(ts time.Time) *domain.StateSnapshot {
	return &domain.StateSnapshot{Timestamp: ts, Status: domain.BotStatusRunning}
}

func TestPollerDeliversSnapshots(t *testing.T) {
	ts := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	source := &stubSource{responses: []stubResponse{
		{snapshot: snapshotAt(ts)},
		{snapshot: snapshotAt(ts.Add(2 * time.Second))},
	}}

	p := New(source, time.Millisecond, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates, unsubscribe := p.Subscribe()
	defer unsubscribe()

	go p.Run(ctx)

	first := <-updates
	require.Equal(t, ts, first.Timestamp)

	require.Eventually(t, func() bool {
		latest := p.Latest()
		return latest != nil && latest.Timestamp.Equal(ts.Add(2*time.Second))
	}, time.Second, 5*time.Millisecond)
	require.NoError(t, p.LastError())
}

func TestPollerKeepsLastGoodSnapshotOnError(t *testing.T) {
	ts := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	source := &stubSource{responses: []stubResponse{
		{snapshot: snapshotAt(ts)},
		{err: errors.New("backend unreachable")},
	}}

	p := New(source, time.Millisecond, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go p.Run(ctx)

	require.Eventually(t, func() bool {
		return p.LastError() != nil
	}, time.Second, 5*time.Millisecond)

	latest := p.Latest()
	require.NotNil(t, latest, "last good snapshot survives poll failures")
	require.Equal(t, ts, latest.Timestamp)

	_, delays, resets := source.counts()
	require.Equal(t, 1, resets)
	require.Positive(t, delays)
}

func TestPollerUnsubscribeClosesChannel(t *testing.T) {
	source := &stubSource{responses: []stubResponse{
		{snapshot: snapshotAt(time.Now())},
	}}

	p := New(source, time.Millisecond, zap.NewNop())
	updates, unsubscribe := p.Subscribe()

	unsubscribe()
	unsubscribe() // idempotent

	_, ok := <-updates
	require.False(t, ok)
}

func TestPollerStopsOnCancel(t *testing.T) {
	source := &stubSource{responses: []stubResponse{
		{snapshot: snapshotAt(time.Now())},
	}}

	p := New(source, time.Millisecond, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("poller did not stop on cancel")
	}
}
