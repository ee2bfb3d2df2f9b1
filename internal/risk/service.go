package risk

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/abrium/abrium/internal/goplus"
	"github.com/abrium/abrium/internal/idgen"
	"github.com/abrium/abrium/internal/logging"
	"github.com/abrium/abrium/internal/metrics"
	"github.com/abrium/abrium/internal/traces"
)

const providerName = "goplus"

// Service orchestrates assessments: durable cache, provider fetch, policy
// evaluation, persistence.
type Service struct {
	store    Store
	provider Provider
	cacheTTL time.Duration
}

// NewService creates a risk service. cacheTTL bounds how long a persisted
// assessment can be replayed before a fresh provider fetch is required.
func NewService(store Store, provider Provider, cacheTTL time.Duration) *Service {
	return &Service{store: store, provider: provider, cacheTTL: cacheTTL}
}

// Store returns the underlying store.
func (s *Service) Store() Store {
	return s.store
}

// Assess produces the current policy verdict for one token.
//
// A recent stored assessment is replayed through the current engine rather
// than trusted: policy changes apply retroactively to cached payloads.
// Provider failures never surface to the caller; they degrade to a WARN
// evaluation that is itself persisted for audit.
func (s *Service) Assess(ctx context.Context, chainID int64, tokenAddress string) (*Evaluation, error) {
	normalized := strings.ToLower(strings.TrimSpace(tokenAddress))
	logger := logging.FromContext(ctx)

	ctx, span := traces.StartSpan(ctx, "risk.Assess",
		traces.ChainID(chainID), traces.TokenAddress(normalized))
	defer span.End()

	recent, err := s.store.FindRecent(ctx, chainID, normalized, s.cacheTTL)
	if err != nil {
		// Read-path storage trouble degrades to a cache miss.
		logger.Warn("risk assessment cache read failed",
			"chain_id", chainID, "token_address", normalized, "error", err)
	}
	if recent != nil {
		logger.Info("token risk served from assessment cache",
			"chain_id", chainID, "token_address", normalized, "cached_at", recent.CreatedAt)
		eval := s.replay(chainID, normalized, recent.ProviderPayload)
		metrics.RiskAssessmentsTotal.WithLabelValues(string(eval.Decision), "cache").Inc()
		span.SetAttributes(traces.Decision(string(eval.Decision)), traces.Source("cache"))
		return eval, nil
	}

	payload, providerErr := s.provider.TokenSecurity(ctx, chainID, normalized)

	var eval *Evaluation
	source := "provider"
	if providerErr != nil {
		payload, eval = s.degrade(ctx, chainID, normalized, providerErr)
		source = "fallback"
	} else {
		eval = Evaluate(payload)
	}
	metrics.RiskAssessmentsTotal.WithLabelValues(string(eval.Decision), source).Inc()
	span.SetAttributes(traces.Decision(string(eval.Decision)), traces.Source(source))

	assessment := &Assessment{
		ID:              idgen.WithPrefix("risk_"),
		ChainID:         chainID,
		TokenAddress:    normalized,
		Score:           eval.Score,
		Decision:        eval.Decision,
		Flags:           eval.Flags,
		Reasons:         eval.Reasons,
		ProviderPayload: payload,
	}
	if err := s.store.Persist(ctx, assessment); err != nil {
		return nil, fmt.Errorf("persist risk assessment: %w", err)
	}

	return eval, nil
}

// replay re-scores a stored payload. Synthetic provider-unavailable
// payloads are rebuilt as the degraded evaluation: running them through
// the engine would score an empty payload as a clean ALLOW.
func (s *Service) replay(chainID int64, tokenAddress string, payload map[string]any) *Evaluation {
	if truthyFlag(payload["unavailable"]) {
		providerError, _ := payload["error"].(string)
		if providerError == "" {
			providerError = "Risk provider unavailable"
		}
		providerMessage, _ := payload["message"].(string)
		detail := fmt.Sprintf("GoPlus unavailable for chain %d token %s: %s",
			chainID, tokenAddress, providerError)
		return providerUnavailableEvaluation(detail, providerMessage)
	}
	return Evaluate(payload)
}

// degrade converts a provider failure into the synthetic WARN evaluation
// and the audit payload recording the failure.
func (s *Service) degrade(ctx context.Context, chainID int64, tokenAddress string, providerErr error) (map[string]any, *Evaluation) {
	providerError := providerErr.Error()
	providerMessage := ""
	var code any
	var apiErr *goplus.APIError
	if errors.As(providerErr, &apiErr) {
		providerMessage = apiErr.ProviderMessage
		if apiErr.Code != 0 {
			code = apiErr.Code
		}
	}

	detail := fmt.Sprintf("GoPlus unavailable for chain %d token %s: %s",
		chainID, tokenAddress, providerError)

	logging.FromContext(ctx).Warn("risk provider unavailable, falling back to WARN evaluation",
		"chain_id", chainID,
		"token_address", tokenAddress,
		"provider_error", providerError,
		"provider_code", code,
		"provider_message", providerMessage)

	payload := map[string]any{
		"provider":    providerName,
		"unavailable": true,
		"error":       providerError,
		"code":        code,
		"message":     providerMessage,
	}
	return payload, providerUnavailableEvaluation(detail, providerMessage)
}

func providerUnavailableEvaluation(detail, providerMessage string) *Evaluation {
	alertMessage := strings.TrimSpace(providerMessage)
	if alertMessage == "" {
		alertMessage = "Could not fetch token risk data from provider. Proceed with caution."
	}
	return &Evaluation{
		Decision:      DecisionWarn,
		Score:         50,
		Flags:         []string{"provider_unavailable"},
		CriticalFlags: []string{},
		WarningFlags:  []string{"provider_unavailable"},
		TrustSignals:  []string{},
		Reasons:       []string{detail},
		Badges: []Badge{{
			ID:     "provider_unavailable",
			Label:  "Risk Provider Unavailable",
			Detail: detail,
			Level:  LevelWarning,
		}},
		AlertLevel:   LevelWarning,
		AlertTitle:   "Risk data unavailable",
		AlertMessage: alertMessage,
	}
}
