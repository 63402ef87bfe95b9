package models

import "time"

// Instrument represents a tracked (symbol, timeframe) pair in the refresh watchlist
type Instrument struct {
	Symbol    string    `json:"symbol"`
	Timeframe string    `json:"timeframe"`
	Enabled   bool      `json:"enabled"`
	Notes     string    `json:"notes,omitempty"`
	AddedAt   time.Time `json:"added_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
