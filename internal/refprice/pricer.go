// Package refprice cross-checks the backend's price feeds against an
// independent exchange quote.
package refprice

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/botwatch/internal/domain"
)

type Pricer interface {
	GetPrice(ctx context.Context, pair domain.Pair) (decimal.Decimal, error)
}
