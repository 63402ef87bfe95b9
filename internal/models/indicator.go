package models

import "time"

// Default timeframe used when callers leave it unset
const TimeframeDaily = "daily"

// IndicatorRow holds the derived indicator values for one bar of a price series.
// A nil field means the rolling window had insufficient preceding history; it is
// stored as SQL NULL and serialized as JSON null.
type IndicatorRow struct {
	Timestamp       time.Time `json:"timestamp"`
	RSI             *float64  `json:"rsi"`
	MA20            *float64  `json:"ma_20"`
	MA50            *float64  `json:"ma_50"`
	MA200           *float64  `json:"ma_200"`
	MACD            *float64  `json:"macd"`
	MACDSignal      *float64  `json:"macd_signal"`
	MACDHist        *float64  `json:"macd_hist"`
	BollingerUpper  *float64  `json:"bollinger_upper"`
	BollingerMiddle *float64  `json:"bollinger_middle"`
	BollingerLower  *float64  `json:"bollinger_lower"`
}

// IndicatorSet is the full derived series for one (symbol, timeframe) pair,
// row-aligned with the price series it was computed from.
type IndicatorSet struct {
	Symbol    string         `json:"symbol"`
	Timeframe string         `json:"timeframe"`
	Rows      []IndicatorRow `json:"rows"`
}
