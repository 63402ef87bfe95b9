package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceBar represents a single OHLCV bar for an instrument over one interval
type PriceBar struct {
	ID        int             `json:"id"`
	Symbol    string          `json:"symbol"`
	Timeframe string          `json:"timeframe"`
	Timestamp time.Time       `json:"timestamp"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Volume    decimal.Decimal `json:"volume"`
	CreatedAt time.Time       `json:"created_at"`
}

// PriceSeries is an ordered sequence of bars for one (symbol, timeframe) pair,
// sorted strictly ascending by timestamp.
type PriceSeries struct {
	Symbol    string     `json:"symbol"`
	Timeframe string     `json:"timeframe"`
	Bars      []PriceBar `json:"bars"`
}

// Closes returns the closing prices of the series as floats, in bar order.
func (s PriceSeries) Closes() []float64 {
	closes := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		closes[i] = b.Close.InexactFloat64()
	}
	return closes
}
