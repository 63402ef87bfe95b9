package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"github.com/kgrenier/indicator-pipeline/internal/models"
)

// BarRepository defines the database operations the consumer needs
type BarRepository interface {
	CreatePriceBar(b *models.PriceBar) error
	PriceBarExists(symbol, timeframe string, barTime time.Time) (bool, error)
}

// Refresher re-derives the indicator series for a pair after a new bar lands
type Refresher interface {
	Recompute(ctx context.Context, symbol, timeframe string) error
}

// Consumer ingests closed bars pushed by the terminal bridge. Each accepted
// bar is stored and triggers a full recomputation of the pair's indicators;
// bars already stored are skipped, so redelivery is harmless.
type Consumer struct {
	reader    *kafka.Reader
	repo      BarRepository
	refresher Refresher
}

// NewConsumer creates a new Kafka consumer for bar events
func NewConsumer(brokers []string, topic, groupID string, repo BarRepository, refresher Refresher) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       10e3, // 10KB
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		StartOffset:    kafka.FirstOffset,
		CommitInterval: time.Second,
	})

	return &Consumer{
		reader:    reader,
		repo:      repo,
		refresher: refresher,
	}
}

// Start begins consuming messages from Kafka
func (c *Consumer) Start(ctx context.Context) error {
	log.Printf("Starting Kafka consumer for topic: %s", c.reader.Config().Topic)

	for {
		select {
		case <-ctx.Done():
			log.Println("Kafka consumer shutting down...")
			return c.reader.Close()
		default:
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil // Context cancelled, normal shutdown
				}
				log.Printf("Error reading message: %v", err)
				continue
			}

			if err := c.processMessage(ctx, msg); err != nil {
				log.Printf("Error processing message: %v", err)
				// Continue processing other messages
			}
		}
	}
}

// processMessage handles a single Kafka message
func (c *Consumer) processMessage(ctx context.Context, msg kafka.Message) error {
	log.Printf("Received message from partition %d offset %d: key=%s",
		msg.Partition, msg.Offset, string(msg.Key))

	var event models.BarEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal bar event: %w", err)
	}

	// Only process BAR_UPSERT events
	if event.EventType != models.EventBarUpsert {
		log.Printf("Ignoring event type: %s", event.EventType)
		return nil
	}

	bar, err := c.convertEventToBar(event)
	if err != nil {
		return fmt.Errorf("failed to convert event to price bar: %w", err)
	}

	// Check for duplicate (idempotency)
	exists, err := c.repo.PriceBarExists(bar.Symbol, bar.Timeframe, bar.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to check for duplicate bar: %w", err)
	}
	if exists {
		log.Printf("Bar for %s %s at %s already exists, skipping",
			bar.Symbol, bar.Timeframe, bar.Timestamp.Format(time.RFC3339))
		return nil
	}

	if err := c.repo.CreatePriceBar(bar); err != nil {
		return fmt.Errorf("failed to save price bar: %w", err)
	}

	log.Printf("Saved bar: %s %s close=%s at %s",
		bar.Symbol, bar.Timeframe, bar.Close, bar.Timestamp.Format(time.RFC3339))

	if c.refresher != nil {
		if err := c.refresher.Recompute(ctx, bar.Symbol, bar.Timeframe); err != nil {
			return fmt.Errorf("failed to recompute indicators: %w", err)
		}
	}

	return nil
}

// convertEventToBar maps a BarEvent to a PriceBar model
func (c *Consumer) convertEventToBar(event models.BarEvent) (*models.PriceBar, error) {
	data := event.Data

	if data.Symbol == "" {
		return nil, fmt.Errorf("bar event missing symbol")
	}

	timeframe := data.Timeframe
	if timeframe == "" {
		timeframe = models.TimeframeDaily
	}

	barTime, err := time.Parse(time.RFC3339, data.BarTime)
	if err != nil {
		return nil, fmt.Errorf("invalid bar_time %s: %w", data.BarTime, err)
	}

	open, err := decimal.NewFromString(data.Open)
	if err != nil {
		return nil, fmt.Errorf("invalid open %s: %w", data.Open, err)
	}
	high, err := decimal.NewFromString(data.High)
	if err != nil {
		return nil, fmt.Errorf("invalid high %s: %w", data.High, err)
	}
	low, err := decimal.NewFromString(data.Low)
	if err != nil {
		return nil, fmt.Errorf("invalid low %s: %w", data.Low, err)
	}
	closePrice, err := decimal.NewFromString(data.Close)
	if err != nil {
		return nil, fmt.Errorf("invalid close %s: %w", data.Close, err)
	}

	volume := decimal.Zero
	if data.Volume != nil && *data.Volume != "" {
		volume, err = decimal.NewFromString(*data.Volume)
		if err != nil {
			return nil, fmt.Errorf("invalid volume %s: %w", *data.Volume, err)
		}
	}

	return &models.PriceBar{
		Symbol:    data.Symbol,
		Timeframe: timeframe,
		Timestamp: barTime,
		Open:      open,
		High:      high,
		Low:       low,
		Close:     closePrice,
		Volume:    volume,
	}, nil
}

// Close closes the Kafka consumer
func (c *Consumer) Close() error {
	return c.reader.Close()
}
