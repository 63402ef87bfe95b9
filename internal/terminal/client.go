// Package terminal talks to the trading-terminal gateway that exposes the
// platform's market data over REST. Login/session handling lives in the
// gateway itself; this client only pulls candle history.
package terminal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kgrenier/indicator-pipeline/internal/models"
)

// Fetcher retrieves the bar history for one (symbol, timeframe) pair
type Fetcher interface {
	FetchBars(ctx context.Context, symbol, timeframe string, limit int) ([]*models.PriceBar, error)
}

// Client implements Fetcher against the terminal gateway REST API
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewClient creates a terminal gateway client
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// candlesResponse is the gateway's candle history payload
type candlesResponse struct {
	Symbol    string   `json:"symbol"`
	Timeframe string   `json:"timeframe"`
	Candles   []candle `json:"candles"`
	Error     *struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error,omitempty"`
}

type candle struct {
	Time   int64    `json:"time"` // epoch seconds, bar open
	Open   float64  `json:"open"`
	High   float64  `json:"high"`
	Low    float64  `json:"low"`
	Close  float64  `json:"close"`
	Volume *float64 `json:"volume"`
}

// FetchBars retrieves up to limit bars for the pair, normalized to ascending
// timestamp order. Null or zeroed candles (market holidays) are skipped.
func (c *Client) FetchBars(ctx context.Context, symbol, timeframe string, limit int) ([]*models.PriceBar, error) {
	if timeframe == "" {
		timeframe = models.TimeframeDaily
	}

	u := fmt.Sprintf("%s/api/candles?symbol=%s&timeframe=%s&limit=%d",
		c.baseURL, url.QueryEscape(symbol), url.QueryEscape(timeframe), limit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("terminal fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("terminal read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("terminal: status %d, body: %s", resp.StatusCode, string(body))
	}

	var payload candlesResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("terminal decode: %w", err)
	}
	if payload.Error != nil {
		return nil, fmt.Errorf("terminal api error: %s", payload.Error.Description)
	}

	bars := make([]*models.PriceBar, 0, len(payload.Candles))
	for _, cd := range payload.Candles {
		if cd.Open == 0 && cd.High == 0 && cd.Low == 0 && cd.Close == 0 {
			continue
		}
		volume := decimal.Zero
		if cd.Volume != nil {
			volume = decimal.NewFromFloat(*cd.Volume)
		}
		bars = append(bars, &models.PriceBar{
			Symbol:    symbol,
			Timeframe: timeframe,
			Timestamp: time.Unix(cd.Time, 0).UTC(),
			Open:      decimal.NewFromFloat(cd.Open),
			High:      decimal.NewFromFloat(cd.High),
			Low:       decimal.NewFromFloat(cd.Low),
			Close:     decimal.NewFromFloat(cd.Close),
			Volume:    volume,
		})
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Timestamp.Before(bars[j].Timestamp) })

	if len(bars) > limit {
		bars = bars[len(bars)-limit:]
	}
	return bars, nil
}
