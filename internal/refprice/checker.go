package refprice

import (
	"context"
	"sort"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/botwatch/internal/domain"
)

// FeedDrift deviation of one backend feed from the reference quote.
type FeedDrift struct {
	Feed         string          `json:"feed"`
	FeedPrice    decimal.Decimal `json:"feed_price"`
	Reference    decimal.Decimal `json:"reference"`
	DriftPercent decimal.Decimal `json:"drift_percent"`
}

// Checker compares the price feeds inside a snapshot with an
// independent exchange quote for the same pair.
type Checker struct {
	pricer Pricer
	logger *zap.Logger
}

func NewChecker(pricer Pricer, logger *zap.Logger) *Checker {
	return &Checker{pricer: pricer, logger: logger}
}

// Compare fetches the reference price once and reports the drift of
// every feed that currently has data. Feeds with unparsable prices are
// skipped with a warning rather than failing the whole check.
func (c *Checker) Compare(ctx context.Context, s *domain.StateSnapshot) ([]FeedDrift, error) {
	if s == nil {
		return nil, nil
	}

	pair, err := domain.ParsePair(s.Pair)
	if err != nil {
		return nil, errors.Wrap(err, "snapshot carries an invalid pair")
	}

	ref, err := c.pricer.GetPrice(ctx, pair)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get reference price for %s", pair.String())
	}
	if ref.IsZero() {
		return nil, errors.Errorf("reference price for %s is zero", pair.String())
	}

	drifts := make([]FeedDrift, 0, len(s.Prices))
	for name, feed := range s.Prices {
		if !feed.HasData() {
			continue
		}

		price, err := decimal.NewFromString(feed.Price)
		if err != nil {
			c.logger.Warn("feed price is not a number", zap.String("feed", name), zap.String("price", feed.Price))
			continue
		}

		drift := price.Sub(ref).Div(ref).Mul(decimal.NewFromInt(100)).Round(4)
		drifts = append(drifts, FeedDrift{
			Feed:         name,
			FeedPrice:    price,
			Reference:    ref,
			DriftPercent: drift,
		})
	}

	sort.Slice(drifts, func(i, j int) bool { return drifts[i].Feed < drifts[j].Feed })
	return drifts, nil
}
