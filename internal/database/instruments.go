package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/kgrenier/indicator-pipeline/internal/models"
)

// CreateInstrument adds a (symbol, timeframe) pair to the refresh watchlist
func (db *DB) CreateInstrument(inst *models.Instrument) error {
	query := `
		INSERT INTO instruments (symbol, timeframe, enabled, notes, added_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (symbol, timeframe) DO UPDATE SET
			enabled = EXCLUDED.enabled,
			notes = EXCLUDED.notes,
			updated_at = EXCLUDED.updated_at
	`
	if inst.Timeframe == "" {
		inst.Timeframe = models.TimeframeDaily
	}
	now := time.Now()

	_, err := db.conn.Exec(query, inst.Symbol, inst.Timeframe, inst.Enabled, inst.Notes, now, now)
	if err != nil {
		return fmt.Errorf("failed to create instrument: %w", err)
	}
	inst.AddedAt = now
	inst.UpdatedAt = now
	return nil
}

// GetInstrument retrieves a watchlist entry by symbol and timeframe
func (db *DB) GetInstrument(symbol, timeframe string) (*models.Instrument, error) {
	if timeframe == "" {
		timeframe = models.TimeframeDaily
	}
	query := `
		SELECT symbol, timeframe, enabled, notes, added_at, updated_at
		FROM instruments
		WHERE symbol = $1 AND timeframe = $2
	`
	var inst models.Instrument
	var notes sql.NullString

	err := db.conn.QueryRow(query, symbol, timeframe).Scan(
		&inst.Symbol, &inst.Timeframe, &inst.Enabled, &notes, &inst.AddedAt, &inst.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("instrument not found: %s %s", symbol, timeframe)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get instrument: %w", err)
	}

	if notes.Valid {
		inst.Notes = notes.String
	}
	return &inst, nil
}

// GetAllInstruments retrieves the full watchlist
func (db *DB) GetAllInstruments() ([]*models.Instrument, error) {
	query := `
		SELECT symbol, timeframe, enabled, notes, added_at, updated_at
		FROM instruments
		ORDER BY symbol ASC, timeframe ASC
	`
	return db.scanInstruments(db.conn.Query(query))
}

// GetEnabledInstruments retrieves the watchlist entries eligible for refresh
func (db *DB) GetEnabledInstruments() ([]*models.Instrument, error) {
	query := `
		SELECT symbol, timeframe, enabled, notes, added_at, updated_at
		FROM instruments
		WHERE enabled = true
		ORDER BY symbol ASC, timeframe ASC
	`
	return db.scanInstruments(db.conn.Query(query))
}

func (db *DB) scanInstruments(rows *sql.Rows, err error) ([]*models.Instrument, error) {
	if err != nil {
		return nil, fmt.Errorf("failed to get instruments: %w", err)
	}
	defer rows.Close()

	var instruments []*models.Instrument
	for rows.Next() {
		var inst models.Instrument
		var notes sql.NullString

		err := rows.Scan(&inst.Symbol, &inst.Timeframe, &inst.Enabled, &notes, &inst.AddedAt, &inst.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan instrument: %w", err)
		}

		if notes.Valid {
			inst.Notes = notes.String
		}
		instruments = append(instruments, &inst)
	}

	return instruments, nil
}

// SetInstrumentEnabled toggles refresh eligibility for a pair
func (db *DB) SetInstrumentEnabled(symbol, timeframe string, enabled bool) error {
	if timeframe == "" {
		timeframe = models.TimeframeDaily
	}
	query := `UPDATE instruments SET enabled = $3, updated_at = $4 WHERE symbol = $1 AND timeframe = $2`
	result, err := db.conn.Exec(query, symbol, timeframe, enabled, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update instrument: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("instrument not found: %s %s", symbol, timeframe)
	}
	return nil
}

// DeleteInstrument removes a pair from the watchlist
func (db *DB) DeleteInstrument(symbol, timeframe string) error {
	if timeframe == "" {
		timeframe = models.TimeframeDaily
	}
	query := `DELETE FROM instruments WHERE symbol = $1 AND timeframe = $2`
	result, err := db.conn.Exec(query, symbol, timeframe)
	if err != nil {
		return fmt.Errorf("failed to delete instrument: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("instrument not found: %s %s", symbol, timeframe)
	}
	return nil
}
