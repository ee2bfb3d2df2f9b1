package risk

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// Policy constants. Penalties subtract from the base score, trust bonuses
// add back; the final score is clamped to [0, 100].
const (
	baseScore        = 100
	criticalPenalty  = 80
	highLiquidityUSD = 100_000

	// Warning-only evaluations whose score still lands at or below this
	// are escalated from WARN to BLOCK.
	blockScoreCeiling = 30
)

// emptyOwnerAddresses are owner values that mean ownership is renounced.
var emptyOwnerAddresses = map[string]struct{}{
	"": {},
	"0x0000000000000000000000000000000000000000": {},
	"0x000000000000000000000000000000000000dead": {},
	"0x000000000000000000000000000000000000dEaD": {},
}

// Evaluate scores a raw GoPlus token security payload. It is a pure
// function: same payload in, same evaluation out.
func Evaluate(payload map[string]any) *Evaluation {
	var (
		criticalFlags []string
		warningFlags  []string
		trustSignals  []string
		reasons       []string
		badges        []Badge
	)
	penalties := 0
	bonuses := 0

	addCritical := func(id, label, detail string) {
		criticalFlags = append(criticalFlags, id)
		reasons = append(reasons, detail)
		penalties += criticalPenalty
		badges = append(badges, Badge{ID: id, Label: label, Detail: detail, Level: LevelError})
	}
	addWarning := func(id, label, detail string, penalty int) {
		warningFlags = append(warningFlags, id)
		reasons = append(reasons, detail)
		penalties += penalty
		badges = append(badges, Badge{ID: id, Label: label, Detail: detail, Level: LevelWarning})
	}
	addTrust := func(id, label, detail string, bonus int) {
		trustSignals = append(trustSignals, id)
		reasons = append(reasons, detail)
		bonuses += bonus
		badges = append(badges, Badge{ID: id, Label: label, Detail: detail, Level: LevelInfo})
	}

	ownerAddress := ""
	if s, ok := payload["owner_address"].(string); ok {
		ownerAddress = strings.TrimSpace(s)
	}
	_, ownershipAbandoned := emptyOwnerAddresses[ownerAddress]

	buyTax := parseTaxPercent(payload["buy_tax"])
	sellTax := parseTaxPercent(payload["sell_tax"])
	maxLiquidity := maxDexLiquidityUSD(payload["dex"])

	// Critical checks.
	if truthyFlag(payload["is_honeypot"]) {
		addCritical("is_honeypot", "Honeypot", "Honeypot behavior detected.")
	}
	if buyTax != nil && *buyTax >= 100 {
		addCritical("buy_tax_100", "Buy Tax 100%", fmt.Sprintf("Buy tax is %.2f%%.", *buyTax))
	}
	if sellTax != nil && *sellTax >= 100 {
		addCritical("sell_tax_100", "Sell Tax 100%", fmt.Sprintf("Sell tax is %.2f%%.", *sellTax))
	}

	// Warning checks. Owner-dependent controls weigh less when ownership
	// is abandoned: nobody holds the lever anymore.
	if truthyFlag(payload["hidden_owner"]) {
		addWarning("hidden_owner", "Hidden Owner", "Hidden ownership controls detected.", 20)
	}
	if truthyFlag(payload["is_mintable"]) {
		if ownershipAbandoned {
			addWarning("is_mintable", "Mintable Supply", "Minting is enabled, but owner appears abandoned (risk reduced).", 8)
		} else {
			addWarning("is_mintable", "Mintable Supply", "Token supply can be minted by owner.", 24)
		}
	}
	if truthyFlag(payload["slippage_modifiable"]) {
		if ownershipAbandoned {
			addWarning("slippage_modifiable", "Tax Modifiable", "Slippage is modifiable, but owner appears abandoned (risk reduced).", 8)
		} else {
			addWarning("slippage_modifiable", "Tax Modifiable", "Owner can modify tax/slippage parameters.", 22)
		}
	}
	if truthyFlag(payload["transfer_pausable"]) {
		addWarning("transfer_pausable", "Transfer Pausable", "Owner can pause transfers at any time.", 20)
	}
	if truthyFlag(payload["is_blacklisted"]) {
		addWarning("is_blacklisted", "Blacklist Control", "Owner can blacklist specific addresses.", 30)
	}
	if buyTax != nil && *buyTax >= 20 && *buyTax < 100 {
		addWarning("buy_tax_high", "High Buy Tax", fmt.Sprintf("Buy tax is %.2f%%.", *buyTax), 18)
	}
	if sellTax != nil && *sellTax >= 20 && *sellTax < 100 {
		addWarning("sell_tax_high", "High Sell Tax", fmt.Sprintf("Sell tax is %.2f%%.", *sellTax), 18)
	}

	// Trust signals.
	if truthyFlag(payload["trust_list"]) {
		addTrust("trust_list", "Trust List", "Token appears on provider trust list.", 18)
	}
	if maxLiquidity != nil && *maxLiquidity > highLiquidityUSD {
		addTrust("dex_liquidity_high", "High Liquidity", fmt.Sprintf("DEX liquidity is $%s.", formatUSD(*maxLiquidity)), 12)
	}
	if ownershipAbandoned {
		addTrust("ownership_abandoned", "Ownership Abandoned", "Owner address is empty or burn address.", 8)
	}

	criticalFlags = uniqueStrings(criticalFlags)
	warningFlags = uniqueStrings(warningFlags)

	eval := &Evaluation{
		Score:         clampScore(baseScore - penalties + bonuses),
		Flags:         uniqueStrings(append(append([]string{}, criticalFlags...), warningFlags...)),
		CriticalFlags: criticalFlags,
		WarningFlags:  warningFlags,
		TrustSignals:  uniqueStrings(trustSignals),
		Reasons:       uniqueStrings(reasons),
		Badges:        badges,
		Metrics: Metrics{
			BuyTaxPercent:      buyTax,
			SellTaxPercent:     sellTax,
			MaxDexLiquidityUsd: maxLiquidity,
			OwnershipAbandoned: ownershipAbandoned,
		},
	}

	decide(eval)
	return eval
}

// decide maps the tier outcome onto the decision and alert fields.
func decide(eval *Evaluation) {
	switch {
	case len(eval.CriticalFlags) > 0,
		len(eval.WarningFlags) > 0 && eval.Score <= blockScoreCeiling:
		eval.Decision = DecisionBlock
		eval.AlertLevel = LevelError
		eval.AlertTitle = "Token blocked by policy"
		eval.AlertMessage = firstReason(eval.Reasons,
			fmt.Sprintf("Found %d mandatory risk flags.", len(eval.CriticalFlags)))

	case len(eval.WarningFlags) > 0:
		eval.Decision = DecisionWarn
		eval.AlertLevel = LevelWarning
		eval.AlertTitle = "Proceed with caution"
		eval.AlertMessage = firstReason(eval.Reasons, "Warning or mandatory risk flags found.")

	default:
		eval.Decision = DecisionAllow
		eval.AlertLevel = LevelInfo
		eval.AlertTitle = "Token check complete"
		if len(eval.TrustSignals) > 0 {
			eval.AlertMessage = "No major token risks found. Trust signals detected."
		} else {
			eval.AlertMessage = "No major token risks found."
		}
	}
}

func firstReason(reasons []string, fallback string) string {
	if len(reasons) > 0 {
		return reasons[0]
	}
	return fallback
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// parseNumber coerces a provider value to a number. GoPlus is loose about
// types: the same field can arrive as a number or as a string with
// percent/currency/grouping noise.
func parseNumber(v any) *float64 {
	switch val := v.(type) {
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return nil
		}
		return &val
	case int:
		f := float64(val)
		return &f
	case string:
		cleaned := strings.Map(func(r rune) rune {
			if r == '%' || r == '$' || r == ',' || unicode.IsSpace(r) {
				return -1
			}
			return r
		}, val)
		if cleaned == "" {
			return nil
		}
		parsed, err := strconv.ParseFloat(cleaned, 64)
		if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
			return nil
		}
		return &parsed
	default:
		return nil
	}
}

// parseTaxPercent normalizes a tax value to percent. Values in [0, 1] are
// ratios and scale by 100; everything else is already percent.
func parseTaxPercent(v any) *float64 {
	numeric := parseNumber(v)
	if numeric == nil {
		return nil
	}
	if *numeric >= 0 && *numeric <= 1 {
		scaled := *numeric * 100
		return &scaled
	}
	return numeric
}

// truthyFlag interprets the provider's boolean-ish flag encodings.
func truthyFlag(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case float64:
		return val == 1
	case int:
		return val == 1
	case string:
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "true", "yes":
			return true
		}
	}
	return false
}

// maxDexLiquidityUSD finds the deepest pool across the dex listings, which
// arrive as either an array or an object keyed by pair.
func maxDexLiquidityUSD(source any) *float64 {
	var rows []any
	switch dex := source.(type) {
	case []any:
		rows = dex
	case map[string]any:
		for _, v := range dex {
			rows = append(rows, v)
		}
	default:
		return nil
	}

	var maxLiquidity *float64
	for _, row := range rows {
		record, ok := row.(map[string]any)
		if !ok {
			continue
		}
		liquidity := parseNumber(record["liquidity_usd"])
		if liquidity == nil {
			liquidity = parseNumber(record["liquidityUsd"])
		}
		if liquidity == nil {
			liquidity = parseNumber(record["liquidity"])
		}
		if liquidity == nil {
			continue
		}
		if maxLiquidity == nil || *liquidity > *maxLiquidity {
			maxLiquidity = liquidity
		}
	}
	return maxLiquidity
}

// formatUSD renders a dollar amount with thousands separators, no cents.
func formatUSD(v float64) string {
	s := strconv.FormatInt(int64(math.Round(v)), 10)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
		if len(s) > lead {
			b.WriteByte(',')
		}
	}
	for i := lead; i < len(s); i += 3 {
		b.WriteString(s[i : i+3])
		if i+3 < len(s) {
			b.WriteByte(',')
		}
	}
	return b.String()
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
