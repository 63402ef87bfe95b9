package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/kgrenier/indicator-pipeline/internal/models"
)

// CreatePriceBar inserts or updates a single price bar
func (db *DB) CreatePriceBar(b *models.PriceBar) error {
	query := `
		INSERT INTO price_bars (symbol, timeframe, bar_time, open, high, low, close, volume, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (symbol, timeframe, bar_time) DO UPDATE SET
			open = EXCLUDED.open,
			high = EXCLUDED.high,
			low = EXCLUDED.low,
			close = EXCLUDED.close,
			volume = EXCLUDED.volume
		RETURNING id
	`
	if b.Timeframe == "" {
		b.Timeframe = models.TimeframeDaily
	}
	err := db.conn.QueryRow(query,
		b.Symbol, b.Timeframe, b.Timestamp, b.Open, b.High, b.Low, b.Close, b.Volume, time.Now(),
	).Scan(&b.ID)

	if err != nil {
		return fmt.Errorf("failed to create price bar: %w", err)
	}
	return nil
}

// CreatePriceBarBatch inserts or updates multiple price bars efficiently
func (db *DB) CreatePriceBarBatch(bars []*models.PriceBar) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO price_bars (symbol, timeframe, bar_time, open, high, low, close, volume, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (symbol, timeframe, bar_time) DO UPDATE SET
			open = EXCLUDED.open,
			high = EXCLUDED.high,
			low = EXCLUDED.low,
			close = EXCLUDED.close,
			volume = EXCLUDED.volume
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, b := range bars {
		timeframe := b.Timeframe
		if timeframe == "" {
			timeframe = models.TimeframeDaily
		}
		_, err := stmt.Exec(b.Symbol, timeframe, b.Timestamp, b.Open, b.High, b.Low, b.Close, b.Volume, now)
		if err != nil {
			return fmt.Errorf("failed to insert price bar for %s: %w", b.Symbol, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// PriceBarExists reports whether a bar is already stored for the given key
func (db *DB) PriceBarExists(symbol, timeframe string, barTime time.Time) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM price_bars WHERE symbol = $1 AND timeframe = $2 AND bar_time = $3)`
	var exists bool
	if err := db.conn.QueryRow(query, symbol, timeframe, barTime).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check price bar existence: %w", err)
	}
	return exists, nil
}

// GetPriceSeries retrieves the full ascending bar series for a (symbol, timeframe) pair.
// The indicator engine requires this ordering.
func (db *DB) GetPriceSeries(symbol, timeframe string) (models.PriceSeries, error) {
	if timeframe == "" {
		timeframe = models.TimeframeDaily
	}
	query := `
		SELECT id, symbol, timeframe, bar_time, open, high, low, close, volume, created_at
		FROM price_bars
		WHERE symbol = $1 AND timeframe = $2
		ORDER BY bar_time ASC
	`
	series := models.PriceSeries{Symbol: symbol, Timeframe: timeframe}

	rows, err := db.conn.Query(query, symbol, timeframe)
	if err != nil {
		return series, fmt.Errorf("failed to get price series: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var b models.PriceBar
		err := rows.Scan(
			&b.ID, &b.Symbol, &b.Timeframe, &b.Timestamp, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume, &b.CreatedAt,
		)
		if err != nil {
			return series, fmt.Errorf("failed to scan price bar: %w", err)
		}
		series.Bars = append(series.Bars, b)
	}

	return series, nil
}

// GetRecentPriceBars retrieves the most recent bars for a symbol, newest first
func (db *DB) GetRecentPriceBars(symbol, timeframe string, limit int) ([]*models.PriceBar, error) {
	if timeframe == "" {
		timeframe = models.TimeframeDaily
	}
	query := `
		SELECT id, symbol, timeframe, bar_time, open, high, low, close, volume, created_at
		FROM price_bars
		WHERE symbol = $1 AND timeframe = $2
		ORDER BY bar_time DESC
		LIMIT $3
	`
	rows, err := db.conn.Query(query, symbol, timeframe, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get price bars: %w", err)
	}
	defer rows.Close()

	var bars []*models.PriceBar
	for rows.Next() {
		var b models.PriceBar
		err := rows.Scan(
			&b.ID, &b.Symbol, &b.Timeframe, &b.Timestamp, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume, &b.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan price bar: %w", err)
		}
		bars = append(bars, &b)
	}

	return bars, nil
}

// GetLatestPriceBar retrieves the most recent bar for a (symbol, timeframe) pair
func (db *DB) GetLatestPriceBar(symbol, timeframe string) (*models.PriceBar, error) {
	if timeframe == "" {
		timeframe = models.TimeframeDaily
	}
	query := `
		SELECT id, symbol, timeframe, bar_time, open, high, low, close, volume, created_at
		FROM price_bars
		WHERE symbol = $1 AND timeframe = $2
		ORDER BY bar_time DESC
		LIMIT 1
	`
	var b models.PriceBar
	err := db.conn.QueryRow(query, symbol, timeframe).Scan(
		&b.ID, &b.Symbol, &b.Timeframe, &b.Timestamp, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume, &b.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no price bars found for %s %s", symbol, timeframe)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest price bar: %w", err)
	}
	return &b, nil
}

// DeletePriceBarsBySymbol removes all bars for a symbol across timeframes
func (db *DB) DeletePriceBarsBySymbol(symbol string) error {
	query := `DELETE FROM price_bars WHERE symbol = $1`
	_, err := db.conn.Exec(query, symbol)
	if err != nil {
		return fmt.Errorf("failed to delete price bars for %s: %w", symbol, err)
	}
	return nil
}

// DeletePriceBarsOlderThan removes bars older than a specified time
func (db *DB) DeletePriceBarsOlderThan(cutoff time.Time) (int64, error) {
	query := `DELETE FROM price_bars WHERE bar_time < $1`
	result, err := db.conn.Exec(query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old price bars: %w", err)
	}
	return result.RowsAffected()
}
