// internal/market/dexscreener.go
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"kothwatch/internal/token"
)

const (
	dexScreenerBaseURL = "https://api.dexscreener.io/latest/dex"
	rateLimit          = 300 // requests per minute
	maxFetchTries      = 3
	retryInterval      = time.Second
)

type dexScreenerResponse struct {
	Pairs []pairInfo `json:"pairs"`
}

type pairInfo struct {
	PriceUsd  string     `json:"priceUsd"`
	Volume    volumeInfo `json:"volume"`
	Txns      txnsInfo   `json:"txns"`
	MarketCap float64    `json:"marketCap"`
}

type volumeInfo struct {
	M5 float64 `json:"m5"`
}

type txnsInfo struct {
	M5 txnCounts `json:"m5"`
}

type txnCounts struct {
	Buys  int `json:"buys"`
	Sells int `json:"sells"`
}

// DexScreener fetches per-mint market snapshots. Requests are spaced
// by a rate-limit ticker and retried a bounded number of times with a
// fixed interval; exhausted retries surface as an error the caller
// treats as "no data this tick".
type DexScreener struct {
	client      *http.Client
	baseURL     string
	logger      *zap.Logger
	rateLimiter *time.Ticker
}

// NewDexScreener creates a client against the public API.
func NewDexScreener(logger *zap.Logger) *DexScreener {
	return &DexScreener{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL:     dexScreenerBaseURL,
		logger:      logger.Named("dexscreener"),
		rateLimiter: time.NewTicker(time.Minute / rateLimit),
	}
}

// Snapshot returns current price, five-minute volume and transaction
// counts, and market cap for the mint. A mint with no trading pairs
// yet yields a nil snapshot with a nil error.
func (d *DexScreener) Snapshot(ctx context.Context, mint string) (*token.PriceSnapshot, error) {
	url := fmt.Sprintf("%s/tokens/%s?network=solana", d.baseURL, mint)

	op := func() (*dexScreenerResponse, error) {
		return d.doRequest(ctx, url)
	}
	response, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewConstantBackOff(retryInterval)),
		backoff.WithMaxTries(maxFetchTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			d.logger.Debug("Retrying snapshot fetch",
				zap.String("mint", mint), zap.Duration("in", next), zap.Error(err))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("fetch snapshot for %s: %w", mint, err)
	}

	if len(response.Pairs) == 0 {
		d.logger.Debug("No trading pairs yet", zap.String("mint", mint))
		return nil, nil
	}
	pair := response.Pairs[0]

	price, err := strconv.ParseFloat(pair.PriceUsd, 64)
	if err != nil {
		return nil, fmt.Errorf("parse priceUsd %q for %s: %w", pair.PriceUsd, mint, err)
	}

	// The feed publishes only aggregate five-minute volume, no
	// per-side split; sell volume is recorded as zero.
	return &token.PriceSnapshot{
		Timestamp:  time.Now(),
		Price:      price,
		BuyVolume:  pair.Volume.M5,
		SellVolume: 0,
		Buyers:     pair.Txns.M5.Buys,
		Sellers:    pair.Txns.M5.Sells,
		MarketCap:  pair.MarketCap,
	}, nil
}

func (d *DexScreener) doRequest(ctx context.Context, url string) (*dexScreenerResponse, error) {
	select {
	case <-ctx.Done():
		return nil, backoff.Permanent(ctx.Err())
	case <-d.rateLimiter.C:
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("create request: %w", err))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, string(body))
	}

	var response dexScreenerResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &response, nil
}

// Close stops the rate limiter.
func (d *DexScreener) Close() {
	d.rateLimiter.Stop()
}
