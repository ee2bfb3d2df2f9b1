// Package risk assesses token contracts before users trade them.
//
// The flow is: check the durable assessment cache, else fetch the raw
// security payload from GoPlus, score it through the policy engine, persist
// the result, and return the evaluation. Provider outages degrade to a
// WARN evaluation instead of failing the request - a cautious answer beats
// no answer.
package risk

import (
	"context"
	"time"
)

// Decision is the policy verdict for a token.
type Decision string

const (
	DecisionAllow Decision = "ALLOW"
	DecisionWarn  Decision = "WARN"
	DecisionBlock Decision = "BLOCK"
)

// Badge severity levels, mirrored into alertLevel.
const (
	LevelError   = "error"
	LevelWarning = "warning"
	LevelInfo    = "info"
)

// Badge is one triggered check, rendered as a chip in the client UI.
type Badge struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Detail string `json:"detail"`
	Level  string `json:"level"`
}

// Metrics carries the numeric observations extracted from the provider
// payload. Pointers are nil when the provider did not report the value.
type Metrics struct {
	BuyTaxPercent      *float64 `json:"buyTaxPercent"`
	SellTaxPercent     *float64 `json:"sellTaxPercent"`
	MaxDexLiquidityUsd *float64 `json:"maxDexLiquidityUsd"`
	OwnershipAbandoned bool     `json:"ownershipAbandoned"`
}

// Evaluation is the full scored verdict for one token.
type Evaluation struct {
	Decision      Decision `json:"decision"`
	Score         int      `json:"score"`
	Flags         []string `json:"flags"`
	CriticalFlags []string `json:"criticalFlags"`
	WarningFlags  []string `json:"warningFlags"`
	TrustSignals  []string `json:"trustSignals"`
	Reasons       []string `json:"reasons"`
	Badges        []Badge  `json:"badges"`
	Metrics       Metrics  `json:"metrics"`
	AlertLevel    string   `json:"alertLevel"`
	AlertTitle    string   `json:"alertTitle"`
	AlertMessage  string   `json:"alertMessage"`
}

// Assessment is one persisted risk lookup, raw provider payload included
// so past verdicts can be re-scored under the current policy.
type Assessment struct {
	ID              string         `json:"id"`
	ChainID         int64          `json:"chainId"`
	TokenAddress    string         `json:"tokenAddress"`
	Score           int            `json:"score"`
	Decision        Decision       `json:"decision"`
	Flags           []string       `json:"flags"`
	Reasons         []string       `json:"reasons"`
	ProviderPayload map[string]any `json:"providerPayload"`
	CreatedAt       time.Time      `json:"createdAt"`
}

// Store persists assessments. FindRecent returns the newest assessment for
// the pair no older than ttl, or nil when none qualifies (or ttl <= 0).
type Store interface {
	FindRecent(ctx context.Context, chainID int64, tokenAddress string, ttl time.Duration) (*Assessment, error)
	Persist(ctx context.Context, a *Assessment) error
}

// Provider fetches the raw token security payload for one token.
type Provider interface {
	TokenSecurity(ctx context.Context, chainID int64, tokenAddress string) (map[string]any, error)
}
