// Package internal wires the watcher together: backend poller, chart
// book, equity history, console reporter and the dashboard server.
package internal

import (
	"context"
	"os"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vadiminshakov/botwatch/config"
	"github.com/vadiminshakov/botwatch/dashboard"
	"github.com/vadiminshakov/botwatch/internal/chart"
	"github.com/vadiminshakov/botwatch/internal/clients"
	"github.com/vadiminshakov/botwatch/internal/domain"
	"github.com/vadiminshakov/botwatch/internal/history"
	"github.com/vadiminshakov/botwatch/internal/poller"
	"github.com/vadiminshakov/botwatch/internal/refprice"
	"github.com/vadiminshakov/botwatch/internal/reporter"
	"github.com/vadiminshakov/botwatch/internal/view"
)

const reportInterval = 30 * time.Second

// Watcher is a running dashboard instance.
type Watcher struct {
	cfg    *config.Config
	logger *zap.Logger

	poller   *poller.Poller
	book     *chart.Book
	store    *history.Store
	server   *dashboard.Server
	reporter *reporter.Reporter
}

// NewWatcher builds the full instance from config. When a history dir
// is configured, the chart book is rebuilt from the WAL so restarts do
// not lose the curve.
func NewWatcher(cfg *config.Config, logger *zap.Logger) (*Watcher, error) {
	client := clients.NewBotClient(logger, cfg.Endpoint)
	p := poller.New(client, cfg.PollInterval, logger)
	book := chart.NewBook(cfg.Chart.PointCeiling, cfg.Chart.KeepRecent)

	var store *history.Store
	if cfg.History.Dir != "" {
		s, err := history.NewStore(cfg.History.Dir)
		if err != nil {
			return nil, errors.Wrap(err, "failed to open equity history")
		}
		err = s.Replay(func(account string, index, generation uint64, pt domain.EquityPoint) {
			book.Restore(account, index, generation, pt)
		})
		if err != nil && !errors.Is(err, history.ErrNoData) {
			return nil, errors.Wrap(err, "failed to replay equity history")
		}
		store = s
	}

	var checker *refprice.Checker
	if cfg.RefPrice.Platform != "" {
		pricer, err := refprice.New(cfg.RefPrice.Platform)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create reference pricer")
		}
		checker = refprice.NewChecker(pricer, logger)
	}

	thresholds := view.Thresholds{Warn: cfg.Health.WarnAfter, Bad: cfg.Health.BadAfter}
	server := dashboard.NewServer(dashboard.Config{
		Addr:         cfg.ListenAddr,
		AccountOrder: cfg.Accounts,
		Thresholds:   thresholds,
	}, p, book, client, checker, logger)

	return &Watcher{
		cfg:      cfg,
		logger:   logger,
		poller:   p,
		book:     book,
		store:    store,
		server:   server,
		reporter: reporter.New(p, cfg.Accounts, thresholds, reportInterval, os.Stdout, logger),
	}, nil
}

// Run blocks until the context is cancelled or a component fails.
func (w *Watcher) Run(ctx context.Context) error {
	w.logger.Info("watcher starting",
		zap.String("endpoint", w.cfg.Endpoint),
		zap.String("listen", w.cfg.ListenAddr),
		zap.Duration("poll_interval", w.cfg.PollInterval))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.poller.Run(ctx) })
	g.Go(func() error { return w.syncEquity(ctx) })
	g.Go(func() error { return w.reporter.Run(ctx) })
	g.Go(func() error {
		if len(w.cfg.TLS.Domains) > 0 {
			return w.server.StartWithAutoTLS(ctx, w.cfg.TLS.Domains, w.cfg.TLS.CacheDir)
		}
		return w.server.Start(ctx)
	})

	err := g.Wait()
	if w.store != nil {
		if closeErr := w.store.Close(); closeErr != nil {
			w.logger.Warn("failed to close equity history", zap.Error(closeErr))
		}
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// syncEquity feeds equity points from snapshots into the chart book
// and the WAL. The backend bumps equity_seq when the series advanced,
// so unchanged snapshots are skipped cheaply.
func (w *Watcher) syncEquity(ctx context.Context) error {
	updates, cancel := w.poller.Subscribe()
	defer cancel()

	var lastSeq uint64
	seqSeen := false
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case s, ok := <-updates:
			if !ok {
				return nil
			}
			if seqSeen && s.EquitySeq == lastSeq {
				continue
			}
			lastSeq, seqSeen = s.EquitySeq, true

			for _, acc := range s.Accounts {
				equity, err := acc.EquityValue()
				if err != nil {
					w.logger.Warn("skipping unparsable equity",
						zap.String("account", acc.ID), zap.Error(err))
					continue
				}

				point := domain.EquityPoint{Time: s.Timestamp, Value: equity}
				rec, appended := w.book.Append(acc.ID, point)
				if !appended {
					continue
				}
				if w.store != nil {
					if err := w.store.Append(acc.ID, rec.Index, rec.Generation, point); err != nil {
						w.logger.Warn("failed to persist equity point",
							zap.String("account", acc.ID), zap.Error(err))
					}
				}
			}
		}
	}
}
