// Package reporter prints a periodic console digest of account and
// health state for running the watcher in a terminal.
package reporter

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"go.uber.org/zap"

	"github.com/vadiminshakov/botwatch/internal/domain"
	"github.com/vadiminshakov/botwatch/internal/view"
)

// StateSource is the read model the reporter renders from.
type StateSource interface {
	Latest() *domain.StateSnapshot
	LastError() error
}

// digestEventLimit newest events shown per digest.
const digestEventLimit = 5

type Reporter struct {
	source     StateSource
	order      []string
	thresholds view.Thresholds
	interval   time.Duration
	out        io.Writer
	logger     *zap.Logger
}

func New(source StateSource, order []string, thresholds view.Thresholds, interval time.Duration, out io.Writer, logger *zap.Logger) *Reporter {
	return &Reporter{
		source:     source,
		order:      order,
		thresholds: thresholds,
		interval:   interval,
		out:        out,
		logger:     logger,
	}
}

// Run prints a digest every interval until the context is cancelled.
func (r *Reporter) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := io.WriteString(r.out, r.Render(time.Now())); err != nil {
				r.logger.Warn("failed to write report", zap.Error(err))
			}
		}
	}
}

// Render builds the digest for the given moment.
func (r *Reporter) Render(now time.Time) string {
	s := r.source.Latest()
	if s == nil {
		if err := r.source.LastError(); err != nil {
			return fmt.Sprintf("no snapshot yet, last poll error: %v\n", err)
		}
		return "no snapshot yet\n"
	}

	accounts := table.NewWriter()
	accounts.SetStyle(table.StyleLight)
	accounts.AppendHeader(table.Row{"account", "equity", "pnl", "pnl %", "win rate", "position"})
	for _, sum := range view.Summaries(s, r.order) {
		position := "-"
		if sum.Position != nil {
			position = string(sum.Position.Side)
			if sum.Position.UnrealizedPnL != nil {
				position = fmt.Sprintf("%s (upnl %s)", position, sum.Position.UnrealizedPnL.String())
			}
		}
		accounts.AppendRow(table.Row{
			sum.ID,
			sum.Equity.String(),
			sum.PnL.String(),
			sum.PnLPercent.String(),
			sum.WinRate.String(),
			position,
		})
	}

	health := table.NewWriter()
	health.SetStyle(table.StyleLight)
	health.AppendHeader(table.Row{"component", "level", "age", "detail"})
	statuses := view.HealthFor(s, now, r.thresholds)
	for _, st := range statuses {
		age := "-"
		if st.Age > 0 {
			age = st.Age.Round(time.Second).String()
		}
		health.AppendRow(table.Row{st.Component, st.Level.String(), age, st.Detail})
	}

	header := fmt.Sprintf("%s  status=%s  pair=%s  overall=%s\n",
		s.Timestamp.Format(time.RFC3339), s.Status, s.Pair, view.Overall(statuses).String())

	out := header + accounts.Render() + "\n" + health.Render() + "\n"
	if len(s.Events) > 0 {
		out += r.renderEvents(s.Events) + "\n"
	}
	return out
}

// renderEvents shows the newest trade events across all accounts.
func (r *Reporter) renderEvents(all []domain.TradeEvent) string {
	events := table.NewWriter()
	events.SetStyle(table.StyleLight)
	events.AppendHeader(table.Row{"time", "account", "kind", "action", "pnl"})
	for _, ev := range view.LatestEvents(all, digestEventLimit) {
		pnl := "-"
		if ev.PnL != "" {
			pnl = ev.PnLValue().String()
		}
		events.AppendRow(table.Row{
			ev.Time.Format("15:04:05"),
			ev.Account,
			string(ev.Kind),
			ev.Action,
			pnl,
		})
	}
	return events.Render()
}
