package indicator

import (
	"math"

	"github.com/kgrenier/indicator-pipeline/internal/models"
)

// Window sizes match the standard parameterizations persisted downstream:
// RSI(14), SMA(20/50/200), MACD(12,26,9), Bollinger(20, 2σ).
const (
	rsiPeriod       = 14
	maShortPeriod   = 20
	maMediumPeriod  = 50
	maLongPeriod    = 200
	macdFastSpan    = 12
	macdSlowSpan    = 26
	macdSignalSpan  = 9
	bollingerPeriod = 20
	bollingerWidth  = 2.0
)

// Compute derives one IndicatorRow per input bar, aligned by timestamp.
// The input must be ordered ascending by timestamp; windows are defined over
// row count, so irregular bar spacing is tolerated. A field is nil until its
// rolling window has enough preceding history. Compute is a pure function of
// the series: an empty series yields an empty result and a series shorter
// than a window simply leaves that indicator nil on every row.
func Compute(series models.PriceSeries) []models.IndicatorRow {
	rows := make([]models.IndicatorRow, len(series.Bars))
	if len(rows) == 0 {
		return rows
	}
	closes := series.Closes()

	ma20 := rollingMean(closes, maShortPeriod)
	ma50 := rollingMean(closes, maMediumPeriod)
	ma200 := rollingMean(closes, maLongPeriod)
	std20 := rollingStd(closes, bollingerPeriod)
	rsi := relativeStrengthIndex(closes, rsiPeriod)

	ema12 := exponentialMA(closes, macdFastSpan)
	ema26 := exponentialMA(closes, macdSlowSpan)
	macd := make([]float64, len(closes))
	for i := range macd {
		macd[i] = ema12[i] - ema26[i]
	}
	signal := exponentialMA(macd, macdSignalSpan)

	for i := range rows {
		rows[i] = models.IndicatorRow{
			Timestamp:       series.Bars[i].Timestamp,
			RSI:             defined(rsi[i]),
			MA20:            defined(ma20[i]),
			MA50:            defined(ma50[i]),
			MA200:           defined(ma200[i]),
			MACD:            defined(macd[i]),
			MACDSignal:      defined(signal[i]),
			MACDHist:        defined(macd[i] - signal[i]),
			BollingerUpper:  defined(ma20[i] + bollingerWidth*std20[i]),
			BollingerMiddle: defined(ma20[i]),
			BollingerLower:  defined(ma20[i] - bollingerWidth*std20[i]),
		}
	}
	return rows
}

// defined converts the internal NaN sentinel into the exported nil-means-undefined form.
func defined(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// rollingMean computes the trailing simple mean over the last `period` values.
// Entries before the window fills stay NaN.
func rollingMean(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	var sum float64
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i+1 >= period {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// rollingStd computes the trailing sample standard deviation (n-1 denominator)
// over the last `period` values, with the same warm-up rule as rollingMean.
func rollingStd(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period < 2 {
		return out
	}
	var sum, sumSq float64
	for i, v := range values {
		sum += v
		sumSq += v * v
		if i >= period {
			old := values[i-period]
			sum -= old
			sumSq -= old * old
		}
		if i+1 >= period {
			mean := sum / float64(period)
			variance := (sumSq - float64(period)*mean*mean) / float64(period-1)
			if variance < 0 {
				variance = 0 // guard against float cancellation on near-constant windows
			}
			out[i] = math.Sqrt(variance)
		}
	}
	return out
}

// exponentialMA computes the span-parameterized EMA with alpha = 2/(span+1),
// seeded from the first value so every index is defined.
func exponentialMA(values []float64, span int) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	alpha := 2.0 / float64(span+1)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = values[i]*alpha + out[i-1]*(1-alpha)
	}
	return out
}

// relativeStrengthIndex computes RSI over the trailing `period` price changes.
// The change at index 0 does not exist, so the first defined value is at
// index `period`. When the average loss is zero the ratio would be infinite;
// the value saturates to 100 instead (a zero average gain against a nonzero
// average loss falls out of the formula as 0).
func relativeStrengthIndex(closes []float64, period int) []float64 {
	out := nanSlice(len(closes))
	gains := make([]float64, len(closes))
	losses := make([]float64, len(closes))
	var sumGain, sumLoss float64

	for i := 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gains[i] = change
		} else {
			losses[i] = -change
		}
		sumGain += gains[i]
		sumLoss += losses[i]
		if i > period {
			sumGain -= gains[i-period]
			sumLoss -= losses[i-period]
		}
		if i >= period {
			avgLoss := sumLoss / float64(period)
			if avgLoss == 0 {
				out[i] = 100.0
				continue
			}
			rs := (sumGain / float64(period)) / avgLoss
			out[i] = 100.0 - 100.0/(1.0+rs)
		}
	}
	return out
}
