// internal/market/pumpfun.go
package market

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const kingOfTheHillURL = "https://frontend-api-v3.pump.fun/coins/king-of-the-hill?includeNsfw=true"

// DiscoveredCoin is the metadata the discovery feed returns for the
// currently-trending token.
type DiscoveredCoin struct {
	Mint         string  `json:"mint"`
	Name         string  `json:"name"`
	Symbol       string  `json:"symbol"`
	UsdMarketCap float64 `json:"usd_market_cap"`
}

// PumpFun polls the king-of-the-hill discovery feed.
type PumpFun struct {
	client  *http.Client
	baseURL string
	logger  *zap.Logger
}

// NewPumpFun creates a discovery client.
func NewPumpFun(logger *zap.Logger) *PumpFun {
	return &PumpFun{
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
		baseURL: kingOfTheHillURL,
		logger:  logger.Named("pumpfun"),
	}
}

// KingOfTheHill returns the currently-trending coin, or nil when the
// feed has nothing usable. The endpoint has served both a flat coin
// object and a {"coin": {...}} wrapper, so both shapes are accepted.
func (p *PumpFun) KingOfTheHill(ctx context.Context) (*DiscoveredCoin, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch king of the hill: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("king of the hill returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	coin, err := decodeDiscoveredCoin(body)
	if err != nil {
		return nil, err
	}
	if coin == nil {
		p.logger.Debug("Discovery feed returned no mint")
	}
	return coin, nil
}

func decodeDiscoveredCoin(body []byte) (*DiscoveredCoin, error) {
	var wrapper struct {
		Coin json.RawMessage `json:"coin"`
	}
	raw := body
	if err := json.Unmarshal(body, &wrapper); err == nil &&
		len(wrapper.Coin) > 0 && !bytes.Equal(wrapper.Coin, []byte("null")) {
		raw = wrapper.Coin
	}

	var coin DiscoveredCoin
	if err := json.Unmarshal(raw, &coin); err != nil {
		return nil, fmt.Errorf("decode coin: %w", err)
	}
	if coin.Mint == "" {
		return nil, nil
	}
	return &coin, nil
}
