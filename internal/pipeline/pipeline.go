// Package pipeline drives one refresh cycle per tracked (symbol, timeframe)
// pair: pull bars from the terminal gateway, persist them, recompute the full
// indicator series, bulk-upsert the derived rows, then fan out to the cache
// and the event bus.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/kgrenier/indicator-pipeline/internal/indicator"
	"github.com/kgrenier/indicator-pipeline/internal/models"
	"github.com/kgrenier/indicator-pipeline/internal/terminal"
)

// Store defines the database operations the pipeline needs
type Store interface {
	CreatePriceBarBatch(bars []*models.PriceBar) error
	GetPriceSeries(symbol, timeframe string) (models.PriceSeries, error)
	UpsertIndicatorSet(set *models.IndicatorSet) error
	GetEnabledInstruments() ([]*models.Instrument, error)
}

// LatestCache stores the most recent indicator row per pair
type LatestCache interface {
	SetLatest(ctx context.Context, symbol, timeframe string, row *models.IndicatorRow) error
}

// Publisher announces completed recomputations on the event bus
type Publisher interface {
	PublishIndicatorsComputed(ctx context.Context, event models.IndicatorEvent) error
}

// Pipeline orchestrates fetch, compute, and persist for tracked pairs.
// Cache and publisher are optional; a nil value disables that fan-out.
type Pipeline struct {
	store      Store
	fetcher    terminal.Fetcher
	cache      LatestCache
	producer   Publisher
	fetchLimit int
}

// New creates a Pipeline. fetchLimit bounds how many bars are pulled from the
// terminal per refresh; history already stored is kept regardless.
func New(store Store, fetcher terminal.Fetcher, cache LatestCache, producer Publisher, fetchLimit int) *Pipeline {
	if fetchLimit <= 0 {
		fetchLimit = 500
	}
	return &Pipeline{
		store:      store,
		fetcher:    fetcher,
		cache:      cache,
		producer:   producer,
		fetchLimit: fetchLimit,
	}
}

// RefreshPair runs one full cycle for a single (symbol, timeframe) pair.
// Recomputation is total: the whole stored series is re-derived and upserted,
// so late bar corrections from the terminal are absorbed automatically.
func (p *Pipeline) RefreshPair(ctx context.Context, symbol, timeframe string) error {
	if timeframe == "" {
		timeframe = models.TimeframeDaily
	}

	bars, err := p.fetcher.FetchBars(ctx, symbol, timeframe, p.fetchLimit)
	if err != nil {
		refreshesTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to fetch bars for %s %s: %w", symbol, timeframe, err)
	}
	if len(bars) > 0 {
		if err := p.store.CreatePriceBarBatch(bars); err != nil {
			refreshesTotal.WithLabelValues("error").Inc()
			return fmt.Errorf("failed to store bars for %s %s: %w", symbol, timeframe, err)
		}
	}

	return p.Recompute(ctx, symbol, timeframe)
}

// Recompute re-derives the indicator series from the bars already stored,
// without contacting the terminal. Used by the bar-event consumer, which
// receives bars pushed to it rather than pulled.
func (p *Pipeline) Recompute(ctx context.Context, symbol, timeframe string) error {
	if timeframe == "" {
		timeframe = models.TimeframeDaily
	}

	series, err := p.store.GetPriceSeries(symbol, timeframe)
	if err != nil {
		refreshesTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to load series for %s %s: %w", symbol, timeframe, err)
	}

	computeStart := time.Now()
	rows := indicator.Compute(series)
	computeDuration.Observe(time.Since(computeStart).Seconds())
	rowsComputedTotal.Add(float64(len(rows)))

	// Nothing stored yet for this pair; an empty series is expected for
	// newly tracked instruments, not an error.
	if len(rows) == 0 {
		refreshesTotal.WithLabelValues("empty").Inc()
		return nil
	}

	set := &models.IndicatorSet{Symbol: symbol, Timeframe: timeframe, Rows: rows}
	persistStart := time.Now()
	if err := p.store.UpsertIndicatorSet(set); err != nil {
		refreshesTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to persist indicator rows for %s %s: %w", symbol, timeframe, err)
	}
	persistDuration.Observe(time.Since(persistStart).Seconds())

	latest := rows[len(rows)-1]
	if p.cache != nil {
		if err := p.cache.SetLatest(ctx, symbol, timeframe, &latest); err != nil {
			log.Printf("Failed to cache latest row for %s %s: %v", symbol, timeframe, err)
		}
	}

	if p.producer != nil {
		event := models.IndicatorEvent{
			EventType: models.EventIndicatorsComputed,
			Symbol:    symbol,
			Timeframe: timeframe,
			RowCount:  len(rows),
			Latest:    &latest,
			Timestamp: time.Now(),
		}
		if err := p.producer.PublishIndicatorsComputed(ctx, event); err != nil {
			log.Printf("Failed to publish indicator event for %s %s: %v", symbol, timeframe, err)
		}
	}

	refreshesTotal.WithLabelValues("ok").Inc()
	return nil
}

// RefreshAll sweeps every enabled instrument. A failing pair is logged and
// skipped so one bad symbol cannot stall the rest of the sweep.
func (p *Pipeline) RefreshAll(ctx context.Context) (int, error) {
	instruments, err := p.store.GetEnabledInstruments()
	if err != nil {
		return 0, fmt.Errorf("failed to list enabled instruments: %w", err)
	}

	refreshed := 0
	for _, inst := range instruments {
		if ctx.Err() != nil {
			return refreshed, ctx.Err()
		}
		if err := p.RefreshPair(ctx, inst.Symbol, inst.Timeframe); err != nil {
			log.Printf("Refresh failed for %s %s: %v", inst.Symbol, inst.Timeframe, err)
			continue
		}
		refreshed++
	}

	log.Printf("Sweep complete: %d/%d pairs refreshed", refreshed, len(instruments))
	return refreshed, nil
}
