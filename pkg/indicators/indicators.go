// Package indicators computes chart overlays for equity series.
package indicators

import (
	"fmt"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/trend"
	"github.com/shopspring/decimal"
)

// Overlay is a derived series drawn on top of an equity curve. Values
// are shorter than the source by Offset points (indicator warmup), so
// Values[0] aligns with source point Offset.
type Overlay struct {
	Name   string            `json:"name"`
	Period int               `json:"period"`
	Offset int               `json:"offset"`
	Values []decimal.Decimal `json:"values"`
}

// CalculateSMA calculates the Simple Moving Average for the given period.
func CalculateSMA(values []decimal.Decimal, period int) ([]decimal.Decimal, error) {
	if len(values) < period {
		return nil, fmt.Errorf("not enough data points: need %d, got %d", period, len(values))
	}

	valuesFloat := decimalsToFloat64(values)

	sma := trend.NewSmaWithPeriod[float64](period)
	inputChan := helper.SliceToChan(valuesFloat)
	outputChan := sma.Compute(inputChan)
	smaFloat := helper.ChanToSlice(outputChan)

	return float64ToDecimals(smaFloat), nil
}

// CalculateEMA calculates the Exponential Moving Average for the given period.
func CalculateEMA(values []decimal.Decimal, period int) ([]decimal.Decimal, error) {
	if len(values) < period {
		return nil, fmt.Errorf("not enough data points: need %d, got %d", period, len(values))
	}

	valuesFloat := decimalsToFloat64(values)

	ema := trend.NewEmaWithPeriod[float64](period)
	inputChan := helper.SliceToChan(valuesFloat)
	outputChan := ema.Compute(inputChan)
	emaFloat := helper.ChanToSlice(outputChan)

	return float64ToDecimals(emaFloat), nil
}

// MaxDrawdown returns the largest peak-to-trough decline of the series
// as a percentage of the peak, rounded to two places. An empty or
// non-declining series yields zero.
func MaxDrawdown(values []decimal.Decimal) decimal.Decimal {
	if len(values) == 0 {
		return decimal.Zero
	}

	peak := values[0]
	worst := decimal.Zero
	for _, v := range values[1:] {
		if v.GreaterThan(peak) {
			peak = v
			continue
		}
		if peak.IsZero() {
			continue
		}
		dd := peak.Sub(v).Div(peak).Mul(decimal.NewFromInt(100))
		if dd.GreaterThan(worst) {
			worst = dd
		}
	}
	return worst.Round(2)
}

// EquityOverlays computes the overlay set drawn for one account: SMA
// and EMA of the equity curve over the same period.
func EquityOverlays(values []decimal.Decimal, period int) ([]Overlay, error) {
	sma, err := CalculateSMA(values, period)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate SMA: %w", err)
	}

	ema, err := CalculateEMA(values, period)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate EMA: %w", err)
	}

	return []Overlay{
		{Name: "sma", Period: period, Offset: len(values) - len(sma), Values: sma},
		{Name: "ema", Period: period, Offset: len(values) - len(ema), Values: ema},
	}, nil
}

// decimalsToFloat64 converts a slice of decimal.Decimal to []float64.
func decimalsToFloat64(decimals []decimal.Decimal) []float64 {
	result := make([]float64, len(decimals))
	for i, d := range decimals {
		result[i], _ = d.Float64()
	}
	return result
}

// float64ToDecimals converts a slice of float64 to []decimal.Decimal.
func float64ToDecimals(floats []float64) []decimal.Decimal {
	result := make([]decimal.Decimal, len(floats))
	for i, f := range floats {
		result[i] = decimal.NewFromFloat(f)
	}
	return result
}
