// Package identity ingests Dynamic auth webhooks and mirrors users and
// their linked wallets into the database.
//
// Dynamic delivers several payload shapes depending on event type and
// product version; extraction accepts all of them. Events are recorded
// idempotently by event id, so redelivered webhooks are acknowledged
// without reapplying their effects.
package identity

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var walletAddressRe = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)

// Wallet is one linked wallet extracted from a webhook payload.
type Wallet struct {
	Address   string // lowercase
	Chain     string
	Provider  string
	IsPrimary bool
}

// UserUpdate is the user state carried by a webhook event.
type UserUpdate struct {
	DynamicUserID string
	Email         string
	AuthProvider  string
	Wallets       []Wallet
}

// Event is one parsed webhook delivery.
type Event struct {
	ID      string
	Type    string
	Payload map[string]any
	User    *UserUpdate // nil when the payload names no user
}

// Store applies webhook events. ProcessEvent records the event and its
// user/wallet effects atomically, reporting duplicate deliveries.
type Store interface {
	ProcessEvent(ctx context.Context, event *Event) (duplicate bool, err error)
}

// VerifySignature checks the HMAC-SHA256 webhook signature. The header
// value may carry multiple comma-separated signatures and a "sha256="
// prefix; only the first entry is checked, in constant time.
func VerifySignature(secret string, rawBody []byte, signatureHeader string) (bool, error) {
	if secret == "" {
		return false, errors.New("webhook secret is not configured")
	}

	received := normalizeSignature(signatureHeader)
	if received == "" {
		return false, nil
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(received)), nil
}

func normalizeSignature(header string) string {
	first, _, _ := strings.Cut(header, ",")
	value := strings.TrimSpace(first)
	return strings.TrimPrefix(value, "sha256=")
}

// ParseEvent decodes a raw webhook body into an Event.
func ParseEvent(rawBody []byte) (*Event, error) {
	var payload map[string]any
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		return nil, fmt.Errorf("decode webhook payload: %w", err)
	}

	event := &Event{
		ID:      extractEventID(payload, rawBody),
		Type:    extractEventType(payload),
		Payload: payload,
	}
	if user := extractUser(payload); user.DynamicUserID != "" {
		event.User = &user
	}
	return event, nil
}

func extractEventType(payload map[string]any) string {
	if direct := stringValue(payload["type"]); direct != "" {
		return direct
	}
	if direct := stringValue(payload["eventName"]); direct != "" {
		return direct
	}
	if nested, ok := payload["event"].(map[string]any); ok {
		if t := stringValue(nested["type"]); t != "" {
			return t
		}
		if t := stringValue(nested["name"]); t != "" {
			return t
		}
	}
	return "unknown"
}

// extractEventID falls back to a content hash so bodies without an id are
// still deduplicated on redelivery.
func extractEventID(payload map[string]any, rawBody []byte) string {
	for _, key := range []string{"id", "eventId", "messageId"} {
		if id := stringValue(payload[key]); id != "" {
			return id
		}
	}
	sum := sha256.Sum256(rawBody)
	return hex.EncodeToString(sum[:])
}

func extractUser(payload map[string]any) UserUpdate {
	data, ok := payload["data"].(map[string]any)
	if !ok {
		data = payload
	}
	user, _ := data["user"].(map[string]any)

	dynamicUserID := firstString(
		payload["userId"], data["userId"], user["id"], payload["subject"], data["subject"])

	email := stringValue(data["email"])
	if email == "" {
		email = stringValue(user["email"])
	}

	var candidates []Wallet

	if wallets, ok := data["wallets"].([]any); ok {
		for _, entry := range wallets {
			item, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			address := normalizeWalletAddress(item["address"])
			if address == "" {
				continue
			}
			candidates = append(candidates, Wallet{
				Address:   address,
				Chain:     firstString(item["chain"], item["chainName"]),
				Provider:  firstString(item["walletProvider"], item["provider"]),
				IsPrimary: item["isPrimary"] == true,
			})
		}
	}

	if credentials, ok := data["verifiedCredentials"].([]any); ok {
		for _, entry := range credentials {
			item, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			address := normalizeWalletAddress(item["address"])
			if address == "" {
				continue
			}
			candidates = append(candidates, Wallet{
				Address:  address,
				Chain:    stringValue(item["chain"]),
				Provider: firstString(item["walletName"], item["provider"]),
			})
		}
	}

	if address := normalizeWalletAddress(data["walletAddress"]); address != "" {
		candidates = append(candidates, Wallet{
			Address:  address,
			Chain:    stringValue(data["chain"]),
			Provider: stringValue(data["provider"]),
		})
	}

	if address := normalizeWalletAddress(data["walletPublicKey"]); address != "" {
		candidates = append(candidates, Wallet{
			Address:  address,
			Chain:    stringValue(data["chain"]),
			Provider: firstString(data["walletName"], data["walletBookName"], data["provider"]),
		})
	}

	linked := normalizeWalletAddress(data["lowerPublicKey"])
	if linked == "" {
		linked = normalizeWalletAddress(data["publicKey"])
	}
	if linked != "" {
		candidates = append(candidates, Wallet{
			Address:  linked,
			Chain:    stringValue(data["chain"]),
			Provider: firstString(data["walletBookName"], data["name"], data["provider"]),
		})
	}

	// Deduplicate by address: the latest candidate wins, the first one
	// keeps the position.
	index := make(map[string]int, len(candidates))
	wallets := make([]Wallet, 0, len(candidates))
	for _, wallet := range candidates {
		if i, seen := index[wallet.Address]; seen {
			wallets[i] = wallet
			continue
		}
		index[wallet.Address] = len(wallets)
		wallets = append(wallets, wallet)
	}

	authProvider := ""
	for _, wallet := range wallets {
		if wallet.Provider != "" {
			authProvider = wallet.Provider
			break
		}
	}
	if authProvider == "" {
		authProvider = stringValue(data["provider"])
	}

	return UserUpdate{
		DynamicUserID: dynamicUserID,
		Email:         email,
		AuthProvider:  authProvider,
		Wallets:       wallets,
	}
}

func normalizeWalletAddress(v any) string {
	address := stringValue(v)
	if address == "" || !walletAddressRe.MatchString(address) {
		return ""
	}
	return strings.ToLower(address)
}

func stringValue(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func firstString(values ...any) string {
	for _, v := range values {
		if s := stringValue(v); s != "" {
			return s
		}
	}
	return ""
}
