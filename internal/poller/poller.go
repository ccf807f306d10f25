// Package poller keeps a single fresh snapshot of the bot backend and
// fans updates out to subscribers.
package poller

import (
	"context"
	"sync"
	"time"

	"github.com/bytedance/gopkg/util/gopool"
	"go.uber.org/zap"

	"github.com/vadiminshakov/botwatch/internal/domain"
)

// Source produces state snapshots and owns the retry policy for a
// failing backend.
type Source interface {
	FetchState(ctx context.Context) (*domain.StateSnapshot, error)
	NextRetryDelay() time.Duration
	ResetBackoff()
}

// Poller polls the backend on a fixed interval and exposes the last
// decoded snapshot as a read model. A failed poll never clears the
// last good snapshot, it only records the error and backs off.
type Poller struct {
	source   Source
	logger   *zap.Logger
	interval time.Duration

	mu      sync.RWMutex
	latest  *domain.StateSnapshot
	lastErr error

	subMu   sync.Mutex
	subs    map[uint64]chan *domain.StateSnapshot
	nextSub uint64
}

func New(source Source, interval time.Duration, logger *zap.Logger) *Poller {
	return &Poller{
		source:   source,
		logger:   logger,
		interval: interval,
		subs:     make(map[uint64]chan *domain.StateSnapshot),
	}
}

// Run polls until the context is cancelled. Dispatch to subscribers
// happens off the poll loop so a slow consumer can never delay the
// next poll.
func (p *Poller) Run(ctx context.Context) error {
	updates := make(chan *domain.StateSnapshot, 16)
	gopool.Go(func() { p.dispatch(ctx, updates) })

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}

		s, err := p.source.FetchState(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.setError(err)
			delay := p.source.NextRetryDelay()
			p.logger.Warn("state poll failed", zap.Error(err), zap.Duration("retry_in", delay))
			timer.Reset(delay)
			continue
		}

		p.source.ResetBackoff()
		p.setLatest(s)

		select {
		case updates <- s:
		default:
			p.logger.Warn("dispatch queue full, dropping update")
		}

		timer.Reset(p.interval)
	}
}

// Latest returns the last successfully decoded snapshot, nil before
// the first one arrives.
func (p *Poller) Latest() *domain.StateSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.latest
}

// LastError returns the error of the most recent poll, nil after a
// successful one.
func (p *Poller) LastError() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastErr
}

// Subscribe registers a consumer for snapshot updates. The returned
// cancel func closes the channel. Updates are dropped, not queued,
// when the consumer falls behind; it should re-read Latest.
func (p *Poller) Subscribe() (<-chan *domain.StateSnapshot, func()) {
	ch := make(chan *domain.StateSnapshot, 8)

	p.subMu.Lock()
	id := p.nextSub
	p.nextSub++
	p.subs[id] = ch
	p.subMu.Unlock()

	cancel := func() {
		p.subMu.Lock()
		defer p.subMu.Unlock()
		if _, ok := p.subs[id]; ok {
			delete(p.subs, id)
			close(ch)
		}
	}
	return ch, cancel
}

func (p *Poller) dispatch(ctx context.Context, updates <-chan *domain.StateSnapshot) {
	for {
		select {
		case <-ctx.Done():
			return
		case s := <-updates:
			p.fanout(s)
		}
	}
}

func (p *Poller) fanout(s *domain.StateSnapshot) {
	p.subMu.Lock()
	defer p.subMu.Unlock()
	for _, ch := range p.subs {
		select {
		case ch <- s:
		default:
		}
	}
}

func (p *Poller) setLatest(s *domain.StateSnapshot) {
	p.mu.Lock()
	p.latest = s
	p.lastErr = nil
	p.mu.Unlock()
}

func (p *Poller) setError(err error) {
	p.mu.Lock()
	p.lastErr = err
	p.mu.Unlock()
}
