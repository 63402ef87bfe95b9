package indicator

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kgrenier/indicator-pipeline/internal/models"
)

// seriesFromCloses builds a daily series with one bar per close value
func seriesFromCloses(closes []float64) models.PriceSeries {
	bars := make([]models.PriceBar, len(closes))
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		bars[i] = models.PriceBar{
			Symbol:    "TEST",
			Timeframe: models.TimeframeDaily,
			Timestamp: start.AddDate(0, 0, i),
			Open:      decimal.NewFromFloat(c),
			High:      decimal.NewFromFloat(c + 1),
			Low:       decimal.NewFromFloat(c - 1),
			Close:     decimal.NewFromFloat(c),
			Volume:    decimal.NewFromInt(1000),
		}
	}
	return models.PriceSeries{Symbol: "TEST", Timeframe: models.TimeframeDaily, Bars: bars}
}

// zigzag produces a deterministic oscillating close series with both gains and losses
func zigzag(n int) []float64 {
	closes := make([]float64, n)
	price := 100.0
	for i := range closes {
		if i%3 == 2 {
			price -= 1.5
		} else {
			price += 1.0
		}
		closes[i] = price
	}
	return closes
}

func TestCompute(t *testing.T) {
	t.Run("empty series yields empty output", func(t *testing.T) {
		rows := Compute(models.PriceSeries{Symbol: "TEST", Timeframe: "daily"})
		assert.Len(t, rows, 0)
	})

	t.Run("output is row-aligned with input", func(t *testing.T) {
		for _, n := range []int{1, 5, 19, 20, 50, 250} {
			series := seriesFromCloses(zigzag(n))
			rows := Compute(series)
			require.Len(t, rows, n, "length mismatch for n=%d", n)
			for i := range rows {
				assert.True(t, rows[i].Timestamp.Equal(series.Bars[i].Timestamp),
					"timestamp mismatch at row %d for n=%d", i, n)
			}
		}
	})

	t.Run("values depend only on the series prefix", func(t *testing.T) {
		full := Compute(seriesFromCloses(zigzag(60)))
		for _, k := range []int{1, 15, 25, 59} {
			prefix := Compute(seriesFromCloses(zigzag(60)[:k]))
			require.Len(t, prefix, k)
			for i := range prefix {
				assert.Equal(t, full[i], prefix[i], "prefix divergence at row %d, k=%d", i, k)
			}
		}
	})

	t.Run("RSI warms up after 14 changes and stays bounded", func(t *testing.T) {
		rows := Compute(seriesFromCloses(zigzag(40)))
		for i := 0; i < rsiPeriod; i++ {
			assert.Nil(t, rows[i].RSI, "RSI should be undefined at row %d", i)
		}
		for i := rsiPeriod; i < len(rows); i++ {
			require.NotNil(t, rows[i].RSI, "RSI should be defined at row %d", i)
			assert.GreaterOrEqual(t, *rows[i].RSI, 0.0)
			assert.LessOrEqual(t, *rows[i].RSI, 100.0)
		}
	})

	t.Run("RSI saturates to 100 on monotonic gains", func(t *testing.T) {
		closes := make([]float64, 20)
		for i := range closes {
			closes[i] = 100 + float64(i)
		}
		rows := Compute(seriesFromCloses(closes))
		require.NotNil(t, rows[19].RSI)
		assert.InDelta(t, 100.0, *rows[19].RSI, 1e-9)
	})

	t.Run("RSI is 0 on monotonic losses", func(t *testing.T) {
		closes := make([]float64, 20)
		for i := range closes {
			closes[i] = 100 - float64(i)
		}
		rows := Compute(seriesFromCloses(closes))
		require.NotNil(t, rows[19].RSI)
		assert.InDelta(t, 0.0, *rows[19].RSI, 1e-9)
	})

	t.Run("MA20 matches the trailing arithmetic mean", func(t *testing.T) {
		// close series 1..25: MA20[19] = mean(1..20), MA20[24] = mean(6..25)
		closes := make([]float64, 25)
		for i := range closes {
			closes[i] = float64(i + 1)
		}
		rows := Compute(seriesFromCloses(closes))

		for i := 0; i < 19; i++ {
			assert.Nil(t, rows[i].MA20, "MA20 should be undefined at row %d", i)
		}
		require.NotNil(t, rows[19].MA20)
		assert.InDelta(t, 10.5, *rows[19].MA20, 1e-9)
		require.NotNil(t, rows[24].MA20)
		assert.InDelta(t, 15.5, *rows[24].MA20, 1e-9)
	})

	t.Run("MA50 and MA200 honor their own warm-up windows", func(t *testing.T) {
		rows := Compute(seriesFromCloses(zigzag(210)))
		assert.Nil(t, rows[48].MA50)
		assert.NotNil(t, rows[49].MA50)
		assert.Nil(t, rows[198].MA200)
		assert.NotNil(t, rows[199].MA200)
	})

	t.Run("short series leaves long-window indicators undefined throughout", func(t *testing.T) {
		rows := Compute(seriesFromCloses(zigzag(10)))
		for i, row := range rows {
			assert.Nil(t, row.MA20, "row %d", i)
			assert.Nil(t, row.MA200, "row %d", i)
			assert.Nil(t, row.RSI, "row %d", i)
			assert.Nil(t, row.BollingerUpper, "row %d", i)
			assert.NotNil(t, row.MACD, "MACD is EMA-based and defined at row %d", i)
		}
	})

	t.Run("MACD family is defined from the first row", func(t *testing.T) {
		closes := zigzag(30)
		rows := Compute(seriesFromCloses(closes))

		require.NotNil(t, rows[0].MACD)
		require.NotNil(t, rows[0].MACDSignal)
		require.NotNil(t, rows[0].MACDHist)
		// ema12[0] == ema26[0] == close[0], so macd[0] == 0 and hist[0] == 0
		assert.InDelta(t, 0.0, *rows[0].MACD, 1e-12)
		assert.InDelta(t, 0.0, *rows[0].MACDHist, 1e-12)

		// Cross-check against the reference recurrences
		ema12, ema26, signal := closes[0], closes[0], 0.0
		a12 := 2.0 / 13.0
		a26 := 2.0 / 27.0
		a9 := 2.0 / 10.0
		for i := 1; i < len(closes); i++ {
			ema12 = closes[i]*a12 + ema12*(1-a12)
			ema26 = closes[i]*a26 + ema26*(1-a26)
			macd := ema12 - ema26
			signal = macd*a9 + signal*(1-a9)
			require.NotNil(t, rows[i].MACD)
			assert.InDelta(t, macd, *rows[i].MACD, 1e-9, "macd at row %d", i)
			assert.InDelta(t, signal, *rows[i].MACDSignal, 1e-9, "signal at row %d", i)
			assert.InDelta(t, macd-signal, *rows[i].MACDHist, 1e-9, "hist at row %d", i)
		}
	})

	t.Run("bollinger bands keep upper >= middle >= lower", func(t *testing.T) {
		rows := Compute(seriesFromCloses(zigzag(80)))
		defined := 0
		for i, row := range rows {
			if row.BollingerMiddle == nil {
				assert.Nil(t, row.BollingerUpper, "row %d", i)
				assert.Nil(t, row.BollingerLower, "row %d", i)
				continue
			}
			defined++
			require.NotNil(t, row.BollingerUpper, "row %d", i)
			require.NotNil(t, row.BollingerLower, "row %d", i)
			require.NotNil(t, row.MA20, "row %d", i)
			assert.GreaterOrEqual(t, *row.BollingerUpper, *row.BollingerMiddle, "row %d", i)
			assert.GreaterOrEqual(t, *row.BollingerMiddle, *row.BollingerLower, "row %d", i)
			assert.InDelta(t, *row.MA20, *row.BollingerMiddle, 1e-12, "middle band is MA20 at row %d", i)
		}
		assert.Equal(t, 61, defined)
	})

	t.Run("bollinger matches the sample standard deviation", func(t *testing.T) {
		closes := zigzag(30)
		rows := Compute(seriesFromCloses(closes))

		i := 25
		window := closes[i-19 : i+1]
		var mean float64
		for _, v := range window {
			mean += v
		}
		mean /= 20
		var variance float64
		for _, v := range window {
			variance += (v - mean) * (v - mean)
		}
		std := math.Sqrt(variance / 19)

		require.NotNil(t, rows[i].BollingerUpper)
		assert.InDelta(t, mean+2*std, *rows[i].BollingerUpper, 1e-9)
		assert.InDelta(t, mean-2*std, *rows[i].BollingerLower, 1e-9)
	})

	t.Run("constant series collapses the bands and saturates RSI", func(t *testing.T) {
		closes := make([]float64, 30)
		for i := range closes {
			closes[i] = 100.0
		}
		rows := Compute(seriesFromCloses(closes))

		for i := 19; i < len(rows); i++ {
			require.NotNil(t, rows[i].BollingerMiddle, "row %d", i)
			assert.InDelta(t, 100.0, *rows[i].BollingerUpper, 1e-9, "row %d", i)
			assert.InDelta(t, 100.0, *rows[i].BollingerMiddle, 1e-9, "row %d", i)
			assert.InDelta(t, 100.0, *rows[i].BollingerLower, 1e-9, "row %d", i)
		}
		// Documented division-by-zero policy: zero average loss saturates RSI
		// to 100, even when the average gain is also zero.
		for i := rsiPeriod; i < len(rows); i++ {
			require.NotNil(t, rows[i].RSI, "row %d", i)
			assert.InDelta(t, 100.0, *rows[i].RSI, 1e-9, "row %d", i)
		}
	})

	t.Run("single bar series", func(t *testing.T) {
		rows := Compute(seriesFromCloses([]float64{42.0}))
		require.Len(t, rows, 1)
		assert.Nil(t, rows[0].RSI)
		assert.Nil(t, rows[0].MA20)
		require.NotNil(t, rows[0].MACD)
		assert.InDelta(t, 0.0, *rows[0].MACD, 1e-12)
	})
}

func TestComputeIrregularIntervals(t *testing.T) {
	// Windows are row-count based: gaps in wall-clock time must not change values.
	closes := zigzag(30)
	regular := seriesFromCloses(closes)

	irregular := seriesFromCloses(closes)
	for i := range irregular.Bars {
		// Stretch timestamps non-uniformly while preserving order
		irregular.Bars[i].Timestamp = irregular.Bars[i].Timestamp.Add(time.Duration(i*i) * time.Hour)
	}

	regularRows := Compute(regular)
	irregularRows := Compute(irregular)
	require.Len(t, irregularRows, len(regularRows))
	for i := range regularRows {
		assert.Equal(t, regularRows[i].RSI, irregularRows[i].RSI, "row %d", i)
		assert.Equal(t, regularRows[i].MA20, irregularRows[i].MA20, "row %d", i)
		assert.Equal(t, regularRows[i].MACD, irregularRows[i].MACD, "row %d", i)
	}
}

func TestComputeDoesNotMutateInput(t *testing.T) {
	series := seriesFromCloses(zigzag(25))
	before := make([]string, len(series.Bars))
	for i, b := range series.Bars {
		before[i] = fmt.Sprintf("%s|%s", b.Timestamp.Format(time.RFC3339), b.Close.String())
	}

	_ = Compute(series)

	for i, b := range series.Bars {
		assert.Equal(t, before[i], fmt.Sprintf("%s|%s", b.Timestamp.Format(time.RFC3339), b.Close.String()))
	}
}
