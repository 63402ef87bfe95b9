package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrations(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	testDB := SetupTestDB(t)
	defer testDB.Cleanup(t)

	t.Run("all tables exist", func(t *testing.T) {
		expectedTables := []string{
			"instruments",
			"price_bars",
			"indicator_rows",
		}

		for _, tableName := range expectedTables {
			var exists bool
			err := testDB.GetRawConn().QueryRow(`
				SELECT EXISTS (
					SELECT FROM information_schema.tables
					WHERE table_schema = 'public'
					AND table_name = $1
				)
			`, tableName).Scan(&exists)

			require.NoError(t, err, "failed to check table existence for %s", tableName)
			assert.True(t, exists, "table %s should exist", tableName)
		}
	})

	t.Run("price_bars table has correct columns", func(t *testing.T) {
		expectedColumns := map[string]string{
			"id":         "integer",
			"symbol":     "character varying",
			"timeframe":  "character varying",
			"bar_time":   "timestamp with time zone",
			"open":       "numeric",
			"high":       "numeric",
			"low":        "numeric",
			"close":      "numeric",
			"volume":     "numeric",
			"created_at": "timestamp with time zone",
		}

		for colName, expectedType := range expectedColumns {
			var actualType string
			err := testDB.GetRawConn().QueryRow(`
				SELECT data_type
				FROM information_schema.columns
				WHERE table_name = 'price_bars' AND column_name = $1
			`, colName).Scan(&actualType)

			require.NoError(t, err, "column %s should exist in price_bars table", colName)
			assert.Equal(t, expectedType, actualType, "column %s should have type %s", colName, expectedType)
		}
	})

	t.Run("indicator_rows has one nullable column per indicator field", func(t *testing.T) {
		expectedColumns := []string{
			"rsi", "ma_20", "ma_50", "ma_200",
			"macd", "macd_signal", "macd_hist",
			"bollinger_upper", "bollinger_middle", "bollinger_lower",
		}

		for _, colName := range expectedColumns {
			var isNullable string
			err := testDB.GetRawConn().QueryRow(`
				SELECT is_nullable
				FROM information_schema.columns
				WHERE table_name = 'indicator_rows' AND column_name = $1
			`, colName).Scan(&isNullable)

			require.NoError(t, err, "column %s should exist in indicator_rows table", colName)
			assert.Equal(t, "YES", isNullable, "column %s must be nullable for undefined values", colName)
		}
	})

	t.Run("bar uniqueness constraints are in place", func(t *testing.T) {
		for _, tableName := range []string{"price_bars", "indicator_rows"} {
			var count int
			err := testDB.GetRawConn().QueryRow(`
				SELECT COUNT(*)
				FROM information_schema.table_constraints
				WHERE table_name = $1 AND constraint_type = 'UNIQUE'
			`, tableName).Scan(&count)

			require.NoError(t, err)
			assert.GreaterOrEqual(t, count, 1, "table %s should have a unique constraint", tableName)
		}
	})

	t.Run("migrations are idempotent", func(t *testing.T) {
		err := testDB.RunMigrations()
		assert.NoError(t, err, "re-running migrations should be a no-op")
	})
}
