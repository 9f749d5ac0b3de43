package market

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestPumpFun(t *testing.T, handler http.HandlerFunc) *PumpFun {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	p := NewPumpFun(zap.NewNop())
	p.baseURL = server.URL
	return p
}

func TestKingOfTheHillFlatShape(t *testing.T) {
	p := newTestPumpFun(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"mint":"So111","name":"Sample","symbol":"SMPL","usd_market_cap":41000.5}`))
	})

	coin, err := p.KingOfTheHill(context.Background())
	require.NoError(t, err)
	require.NotNil(t, coin)
	assert.Equal(t, "So111", coin.Mint)
	assert.Equal(t, "SMPL", coin.Symbol)
	assert.InDelta(t, 41000.5, coin.UsdMarketCap, 1e-9)
}

func TestKingOfTheHillWrappedShape(t *testing.T) {
	p := newTestPumpFun(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"coin":{"mint":"So222","name":"Wrapped","symbol":"WRP"}}`))
	})

	coin, err := p.KingOfTheHill(context.Background())
	require.NoError(t, err)
	require.NotNil(t, coin)
	assert.Equal(t, "So222", coin.Mint)
}

func TestKingOfTheHillNullCoin(t *testing.T) {
	p := newTestPumpFun(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"coin":null}`))
	})

	coin, err := p.KingOfTheHill(context.Background())
	require.NoError(t, err)
	assert.Nil(t, coin)
}

func TestKingOfTheHillMissingMint(t *testing.T) {
	p := newTestPumpFun(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"name":"NoMint"}`))
	})

	coin, err := p.KingOfTheHill(context.Background())
	require.NoError(t, err)
	assert.Nil(t, coin)
}

func TestKingOfTheHillErrorStatus(t *testing.T) {
	p := newTestPumpFun(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := p.KingOfTheHill(context.Background())
	assert.Error(t, err)
}
