package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/kgrenier/indicator-pipeline/internal/models"
)

// indicator_rows is a wide table: one row per bar carrying every named field,
// nullable where the rolling window had insufficient history. The BI layer
// reads it as-is, so absent values must stay NULL rather than zero.

// UpsertIndicatorRow inserts or updates a single indicator row
func (db *DB) UpsertIndicatorRow(symbol, timeframe string, row *models.IndicatorRow) error {
	query := `
		INSERT INTO indicator_rows (
			symbol, timeframe, bar_time, rsi, ma_20, ma_50, ma_200,
			macd, macd_signal, macd_hist, bollinger_upper, bollinger_middle, bollinger_lower, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (symbol, timeframe, bar_time) DO UPDATE SET
			rsi = EXCLUDED.rsi,
			ma_20 = EXCLUDED.ma_20,
			ma_50 = EXCLUDED.ma_50,
			ma_200 = EXCLUDED.ma_200,
			macd = EXCLUDED.macd,
			macd_signal = EXCLUDED.macd_signal,
			macd_hist = EXCLUDED.macd_hist,
			bollinger_upper = EXCLUDED.bollinger_upper,
			bollinger_middle = EXCLUDED.bollinger_middle,
			bollinger_lower = EXCLUDED.bollinger_lower
	`
	if timeframe == "" {
		timeframe = models.TimeframeDaily
	}
	_, err := db.conn.Exec(query,
		symbol, timeframe, row.Timestamp, row.RSI, row.MA20, row.MA50, row.MA200,
		row.MACD, row.MACDSignal, row.MACDHist, row.BollingerUpper, row.BollingerMiddle, row.BollingerLower,
		time.Now(),
	)

	if err != nil {
		return fmt.Errorf("failed to upsert indicator row: %w", err)
	}
	return nil
}

// UpsertIndicatorSet bulk-inserts a full derived series inside one transaction
func (db *DB) UpsertIndicatorSet(set *models.IndicatorSet) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO indicator_rows (
			symbol, timeframe, bar_time, rsi, ma_20, ma_50, ma_200,
			macd, macd_signal, macd_hist, bollinger_upper, bollinger_middle, bollinger_lower, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (symbol, timeframe, bar_time) DO UPDATE SET
			rsi = EXCLUDED.rsi,
			ma_20 = EXCLUDED.ma_20,
			ma_50 = EXCLUDED.ma_50,
			ma_200 = EXCLUDED.ma_200,
			macd = EXCLUDED.macd,
			macd_signal = EXCLUDED.macd_signal,
			macd_hist = EXCLUDED.macd_hist,
			bollinger_upper = EXCLUDED.bollinger_upper,
			bollinger_middle = EXCLUDED.bollinger_middle,
			bollinger_lower = EXCLUDED.bollinger_lower
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	timeframe := set.Timeframe
	if timeframe == "" {
		timeframe = models.TimeframeDaily
	}

	now := time.Now()
	for i := range set.Rows {
		row := &set.Rows[i]
		_, err := stmt.Exec(
			set.Symbol, timeframe, row.Timestamp, row.RSI, row.MA20, row.MA50, row.MA200,
			row.MACD, row.MACDSignal, row.MACDHist, row.BollingerUpper, row.BollingerMiddle, row.BollingerLower,
			now,
		)
		if err != nil {
			return fmt.Errorf("failed to insert indicator row for %s at %s: %w",
				set.Symbol, row.Timestamp.Format(time.RFC3339), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func scanIndicatorRow(scan func(dest ...interface{}) error) (models.IndicatorRow, error) {
	var row models.IndicatorRow
	var rsi, ma20, ma50, ma200, macd, macdSignal, macdHist, bbUpper, bbMiddle, bbLower sql.NullFloat64

	err := scan(
		&row.Timestamp, &rsi, &ma20, &ma50, &ma200,
		&macd, &macdSignal, &macdHist, &bbUpper, &bbMiddle, &bbLower,
	)
	if err != nil {
		return row, err
	}

	assign := func(dst **float64, src sql.NullFloat64) {
		if src.Valid {
			v := src.Float64
			*dst = &v
		}
	}
	assign(&row.RSI, rsi)
	assign(&row.MA20, ma20)
	assign(&row.MA50, ma50)
	assign(&row.MA200, ma200)
	assign(&row.MACD, macd)
	assign(&row.MACDSignal, macdSignal)
	assign(&row.MACDHist, macdHist)
	assign(&row.BollingerUpper, bbUpper)
	assign(&row.BollingerMiddle, bbMiddle)
	assign(&row.BollingerLower, bbLower)
	return row, nil
}

// GetIndicatorRows retrieves the most recent indicator rows for a pair, newest first
func (db *DB) GetIndicatorRows(symbol, timeframe string, limit int) ([]models.IndicatorRow, error) {
	if timeframe == "" {
		timeframe = models.TimeframeDaily
	}
	query := `
		SELECT bar_time, rsi, ma_20, ma_50, ma_200,
		       macd, macd_signal, macd_hist, bollinger_upper, bollinger_middle, bollinger_lower
		FROM indicator_rows
		WHERE symbol = $1 AND timeframe = $2
		ORDER BY bar_time DESC
		LIMIT $3
	`
	rows, err := db.conn.Query(query, symbol, timeframe, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get indicator rows: %w", err)
	}
	defer rows.Close()

	var result []models.IndicatorRow
	for rows.Next() {
		row, err := scanIndicatorRow(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan indicator row: %w", err)
		}
		result = append(result, row)
	}

	return result, nil
}

// GetLatestIndicatorRow retrieves the most recent indicator row for a pair
func (db *DB) GetLatestIndicatorRow(symbol, timeframe string) (*models.IndicatorRow, error) {
	if timeframe == "" {
		timeframe = models.TimeframeDaily
	}
	query := `
		SELECT bar_time, rsi, ma_20, ma_50, ma_200,
		       macd, macd_signal, macd_hist, bollinger_upper, bollinger_middle, bollinger_lower
		FROM indicator_rows
		WHERE symbol = $1 AND timeframe = $2
		ORDER BY bar_time DESC
		LIMIT 1
	`
	row, err := scanIndicatorRow(db.conn.QueryRow(query, symbol, timeframe).Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no indicator rows found for %s %s", symbol, timeframe)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest indicator row: %w", err)
	}
	return &row, nil
}

// CountIndicatorRows returns the number of stored rows for a pair
func (db *DB) CountIndicatorRows(symbol, timeframe string) (int, error) {
	if timeframe == "" {
		timeframe = models.TimeframeDaily
	}
	var count int
	query := `SELECT COUNT(*) FROM indicator_rows WHERE symbol = $1 AND timeframe = $2`
	if err := db.conn.QueryRow(query, symbol, timeframe).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count indicator rows: %w", err)
	}
	return count, nil
}

// DeleteIndicatorRowsBySymbol removes all indicator rows for a symbol
func (db *DB) DeleteIndicatorRowsBySymbol(symbol string) error {
	query := `DELETE FROM indicator_rows WHERE symbol = $1`
	_, err := db.conn.Exec(query, symbol)
	if err != nil {
		return fmt.Errorf("failed to delete indicator rows for %s: %w", symbol, err)
	}
	return nil
}

// DeleteIndicatorRowsOlderThan removes indicator rows older than a specified time
func (db *DB) DeleteIndicatorRowsOlderThan(cutoff time.Time) (int64, error) {
	query := `DELETE FROM indicator_rows WHERE bar_time < $1`
	result, err := db.conn.Exec(query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old indicator rows: %w", err)
	}
	return result.RowsAffected()
}
