package criteria

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"kothwatch/internal/token"
)

// stubPolicy returns a fixed verdict.
type stubPolicy struct {
	verdict Verdict
}

func (s stubPolicy) Name() string { return "stub" }

func (s stubPolicy) Evaluate(context.Context, *token.CoinRecord, time.Time, CounterSink) Verdict {
	return s.verdict
}

func cleanCoin() *token.CoinRecord {
	return &token.CoinRecord{
		Mint:   "mint1",
		Report: &token.RiskReport{TopHolders: holdersSumming(15)},
	}
}

func TestEvaluatorCombinesPolicyAndChecks(t *testing.T) {
	logger := zap.NewNop()

	t.Run("qualify with passing checks", func(t *testing.T) {
		rec := newCountRecorder()
		e := NewEvaluator(stubPolicy{Qualify}, newChecks(), rec, logger)

		assert.Equal(t, Qualify, e.Evaluate(context.Background(), cleanCoin(), time.Now()))
		assert.Empty(t, rec.counts)
	})

	t.Run("qualify demoted by failing checks", func(t *testing.T) {
		rec := newCountRecorder()
		e := NewEvaluator(stubPolicy{Qualify}, newChecks(), rec, logger)

		coin := cleanCoin()
		coin.Report.TopHolders = holdersSumming(45)

		assert.Equal(t, Undecided, e.Evaluate(context.Background(), coin, time.Now()))
		assert.Equal(t, 1, rec.counts[CounterTopHolders])
	})

	t.Run("policy reject is terminal", func(t *testing.T) {
		rec := newCountRecorder()
		e := NewEvaluator(stubPolicy{Reject}, newChecks(), rec, logger)

		// Secondary checks are not consulted, so a report that would
		// fail them leaves no counter behind.
		coin := cleanCoin()
		coin.Report.TopHolders = nil

		assert.Equal(t, Reject, e.Evaluate(context.Background(), coin, time.Now()))
		assert.Empty(t, rec.counts)
	})

	t.Run("undecided stays undecided", func(t *testing.T) {
		rec := newCountRecorder()
		e := NewEvaluator(stubPolicy{Undecided}, newChecks(), rec, logger)

		assert.Equal(t, Undecided, e.Evaluate(context.Background(), cleanCoin(), time.Now()))
		assert.Empty(t, rec.counts)
	})
}

func TestNewPolicyFactory(t *testing.T) {
	logger := zap.NewNop()

	p, err := NewPolicy(PolicyBollinger, logger)
	require.NoError(t, err)
	assert.Equal(t, PolicyBollinger, p.Name())

	p, err = NewPolicy(PolicyGrowth, logger)
	require.NoError(t, err)
	assert.Equal(t, PolicyGrowth, p.Name())

	_, err = NewPolicy("macd", logger)
	assert.Error(t, err)
}

func TestLoadAllowlist(t *testing.T) {
	t.Run("empty path returns defaults", func(t *testing.T) {
		list, err := LoadAllowlist("")
		require.NoError(t, err)
		assert.Equal(t, DefaultAllowlist(), list)
	})

	t.Run("reads entries from yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "allowlist.yaml")
		content := `allowed_warnings:
  - name: "Copycat token"
    description: "This token is using a verified tokens symbol"
    level: "warn"
  - name: ""
    level: "warn"
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

		list, err := LoadAllowlist(path)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.True(t, list.Permits(token.RiskFlag{
			Name:        "copycat TOKEN",
			Description: "this token is using a verified tokens symbol",
			Level:       "WARN",
		}))
	})

	t.Run("missing file errors", func(t *testing.T) {
		_, err := LoadAllowlist(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
}
