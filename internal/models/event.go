package models

import "time"

// Event type constants
const (
	EventBarUpsert          = "BAR_UPSERT"
	EventIndicatorsComputed = "INDICATORS_COMPUTED"
)

// BarEvent is the envelope for closed bars pushed by the terminal bridge.
// Numeric fields arrive as strings to avoid float precision loss on the wire.
type BarEvent struct {
	EventType string       `json:"event_type"`
	Source    string       `json:"source"`
	Data      BarEventData `json:"data"`
	Timestamp time.Time    `json:"timestamp"`
}

// BarEventData carries the bar payload of a BarEvent
type BarEventData struct {
	Symbol    string  `json:"symbol"`
	Timeframe string  `json:"timeframe"`
	BarTime   string  `json:"bar_time"` // RFC3339
	Open      string  `json:"open"`
	High      string  `json:"high"`
	Low       string  `json:"low"`
	Close     string  `json:"close"`
	Volume    *string `json:"volume,omitempty"`
}

// IndicatorEvent announces that indicator rows were recomputed and persisted
// for one (symbol, timeframe) pair.
type IndicatorEvent struct {
	EventType string        `json:"event_type"`
	Symbol    string        `json:"symbol"`
	Timeframe string        `json:"timeframe"`
	RowCount  int           `json:"row_count"`
	Latest    *IndicatorRow `json:"latest,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}
