package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateCleanToken(t *testing.T) {
	eval := Evaluate(map[string]any{
		"is_honeypot": "0",
		"buy_tax":     "0.01",
		"sell_tax":    "0.01",
	})

	assert.Equal(t, DecisionAllow, eval.Decision)
	assert.Equal(t, 100, eval.Score)
	assert.Empty(t, eval.Flags)
	assert.Equal(t, "info", eval.AlertLevel)
	assert.Equal(t, "Token check complete", eval.AlertTitle)
	assert.Equal(t, "No major token risks found.", eval.AlertMessage)

	require.NotNil(t, eval.Metrics.BuyTaxPercent)
	assert.InDelta(t, 1.0, *eval.Metrics.BuyTaxPercent, 0.0001)
}

func TestEvaluateHoneypotBlocks(t *testing.T) {
	eval := Evaluate(map[string]any{"is_honeypot": "1"})

	assert.Equal(t, DecisionBlock, eval.Decision)
	assert.Equal(t, 20, eval.Score)
	assert.Equal(t, []string{"is_honeypot"}, eval.CriticalFlags)
	assert.Equal(t, []string{"is_honeypot"}, eval.Flags)
	assert.Equal(t, "error", eval.AlertLevel)
	assert.Equal(t, "Token blocked by policy", eval.AlertTitle)
	assert.Equal(t, "Honeypot behavior detected.", eval.AlertMessage)

	require.Len(t, eval.Badges, 1)
	assert.Equal(t, "Honeypot", eval.Badges[0].Label)
	assert.Equal(t, "error", eval.Badges[0].Level)
}

func TestEvaluateTaxBoundaries(t *testing.T) {
	// 100% sell tax is critical.
	eval := Evaluate(map[string]any{"sell_tax": "100"})
	assert.Equal(t, DecisionBlock, eval.Decision)
	assert.Contains(t, eval.CriticalFlags, "sell_tax_100")
	assert.Contains(t, eval.Reasons, "Sell tax is 100.00%.")

	// 99% is only a high-tax warning.
	eval = Evaluate(map[string]any{"sell_tax": "99"})
	assert.Equal(t, DecisionWarn, eval.Decision)
	assert.Empty(t, eval.CriticalFlags)
	assert.Contains(t, eval.WarningFlags, "sell_tax_high")

	// Below 20% does not trigger anything.
	eval = Evaluate(map[string]any{"sell_tax": "19.9"})
	assert.Equal(t, DecisionAllow, eval.Decision)

	// Ratio form: 0.25 means 25%.
	eval = Evaluate(map[string]any{"buy_tax": "0.25"})
	assert.Contains(t, eval.WarningFlags, "buy_tax_high")
	assert.Contains(t, eval.Reasons, "Buy tax is 25.00%.")

	// Ratio form at the top of the range: 1 means 100%.
	eval = Evaluate(map[string]any{"buy_tax": 1})
	assert.Contains(t, eval.CriticalFlags, "buy_tax_100")
}

func TestEvaluateNumberCoercion(t *testing.T) {
	eval := Evaluate(map[string]any{"buy_tax": " 45 % "})
	require.NotNil(t, eval.Metrics.BuyTaxPercent)
	assert.InDelta(t, 45.0, *eval.Metrics.BuyTaxPercent, 0.0001)

	eval = Evaluate(map[string]any{"buy_tax": "not a number"})
	assert.Nil(t, eval.Metrics.BuyTaxPercent)

	eval = Evaluate(map[string]any{"buy_tax": map[string]any{}})
	assert.Nil(t, eval.Metrics.BuyTaxPercent)
}

func TestEvaluateTruthyFlagForms(t *testing.T) {
	for _, v := range []any{"1", "true", "TRUE", " yes ", true, float64(1)} {
		eval := Evaluate(map[string]any{"transfer_pausable": v})
		assert.Contains(t, eval.WarningFlags, "transfer_pausable", "value %v", v)
	}
	for _, v := range []any{"0", "false", "no", "", false, float64(0), nil} {
		eval := Evaluate(map[string]any{"transfer_pausable": v})
		assert.Empty(t, eval.WarningFlags, "value %v", v)
	}
}

func TestEvaluateWarningStacking(t *testing.T) {
	eval := Evaluate(map[string]any{
		"hidden_owner":      "1", // 20
		"transfer_pausable": "1", // 20
		"is_blacklisted":    "1", // 30
	})

	// 100 - 70 = 30, at the escalation ceiling: warning-only still blocks.
	assert.Equal(t, 30, eval.Score)
	assert.Equal(t, DecisionBlock, eval.Decision)
	assert.Empty(t, eval.CriticalFlags)
	assert.Len(t, eval.WarningFlags, 3)
}

func TestEvaluateWarningOnlyAboveCeilingWarns(t *testing.T) {
	eval := Evaluate(map[string]any{"hidden_owner": "1"})

	assert.Equal(t, 80, eval.Score)
	assert.Equal(t, DecisionWarn, eval.Decision)
	assert.Equal(t, "Proceed with caution", eval.AlertTitle)
	assert.Equal(t, "Hidden ownership controls detected.", eval.AlertMessage)
}

func TestEvaluateAbandonedOwnerReducesOwnerRisks(t *testing.T) {
	base := map[string]any{"is_mintable": "1", "slippage_modifiable": "1"}

	held := Evaluate(base)
	assert.Equal(t, 100-24-22, held.Score)
	assert.False(t, held.Metrics.OwnershipAbandoned)

	abandoned := Evaluate(map[string]any{
		"is_mintable":         "1",
		"slippage_modifiable": "1",
		"owner_address":       "0x000000000000000000000000000000000000dead",
	})
	// Reduced penalties (8+8) plus the abandonment trust bonus (8).
	assert.Equal(t, 100-8-8+8, abandoned.Score)
	assert.True(t, abandoned.Metrics.OwnershipAbandoned)
	assert.Contains(t, abandoned.TrustSignals, "ownership_abandoned")
	assert.Contains(t, abandoned.Reasons, "Minting is enabled, but owner appears abandoned (risk reduced).")
}

func TestEvaluateEmptyOwnerCountsAsAbandoned(t *testing.T) {
	for _, owner := range []string{"", "  ", "0x0000000000000000000000000000000000000000", "0x000000000000000000000000000000000000dEaD"} {
		eval := Evaluate(map[string]any{"owner_address": owner})
		assert.True(t, eval.Metrics.OwnershipAbandoned, "owner %q", owner)
	}

	eval := Evaluate(map[string]any{"owner_address": "0xdac17f958d2ee523a2206206994597c13d831ec7"})
	assert.False(t, eval.Metrics.OwnershipAbandoned)
}

func TestEvaluateDexLiquidity(t *testing.T) {
	// Array form, mixed field names, max wins.
	eval := Evaluate(map[string]any{
		"dex": []any{
			map[string]any{"liquidity_usd": "50000"},
			map[string]any{"liquidityUsd": 250000.0},
			map[string]any{"liquidity": "120,000"},
		},
	})
	require.NotNil(t, eval.Metrics.MaxDexLiquidityUsd)
	assert.InDelta(t, 250000.0, *eval.Metrics.MaxDexLiquidityUsd, 0.0001)
	assert.Contains(t, eval.TrustSignals, "dex_liquidity_high")
	assert.Contains(t, eval.Reasons, "DEX liquidity is $250,000.")

	// Object form.
	eval = Evaluate(map[string]any{
		"dex": map[string]any{
			"uniswap": map[string]any{"liquidity_usd": "150000.75"},
		},
	})
	require.NotNil(t, eval.Metrics.MaxDexLiquidityUsd)
	assert.Contains(t, eval.Reasons, "DEX liquidity is $150,001.")

	// At the threshold is not above it.
	eval = Evaluate(map[string]any{
		"dex": []any{map[string]any{"liquidity_usd": "100000"}},
	})
	assert.NotContains(t, eval.TrustSignals, "dex_liquidity_high")

	// Garbage rows are skipped.
	eval = Evaluate(map[string]any{
		"dex": []any{nil, "junk", map[string]any{"liquidity_usd": "oops"}},
	})
	assert.Nil(t, eval.Metrics.MaxDexLiquidityUsd)
}

func TestEvaluateTrustSignalsRaiseScore(t *testing.T) {
	eval := Evaluate(map[string]any{
		"hidden_owner": "1",
		"trust_list":   "1",
	})

	// 100 - 20 + 18 = 98, but warnings still force WARN.
	assert.Equal(t, 98, eval.Score)
	assert.Equal(t, DecisionWarn, eval.Decision)

	clean := Evaluate(map[string]any{"trust_list": "1"})
	assert.Equal(t, DecisionAllow, clean.Decision)
	assert.Equal(t, 100, clean.Score, "score clamps at 100")
	assert.Equal(t, "No major token risks found. Trust signals detected.", clean.AlertMessage)
}

func TestEvaluateScoreClampsAtZero(t *testing.T) {
	eval := Evaluate(map[string]any{
		"is_honeypot": "1",
		"buy_tax":     "100",
		"sell_tax":    "100",
	})

	assert.Equal(t, 0, eval.Score)
	assert.Equal(t, DecisionBlock, eval.Decision)
	assert.Len(t, eval.CriticalFlags, 3)
	assert.Equal(t, "Honeypot behavior detected.", eval.AlertMessage, "first reason is the alert message")
}

func TestEvaluateFlagsAreOrderedAndUnique(t *testing.T) {
	eval := Evaluate(map[string]any{
		"is_honeypot":  "1",
		"hidden_owner": "1",
	})

	assert.Equal(t, []string{"is_honeypot", "hidden_owner"}, eval.Flags,
		"critical flags come before warnings")
	assert.Equal(t, []string{
		"Honeypot behavior detected.",
		"Hidden ownership controls detected.",
	}, eval.Reasons)
}

func TestFormatUSD(t *testing.T) {
	cases := map[float64]string{
		0:          "0",
		999:        "999",
		1000:       "1,000",
		150000.75:  "150,001",
		1234567:    "1,234,567",
		100000.499: "100,000",
	}
	for in, want := range cases {
		assert.Equal(t, want, formatUSD(in), "input %v", in)
	}
}
