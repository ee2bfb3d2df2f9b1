package identity

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret = "whsec_test"
	addrOne    = "0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B"
	addrTwo    = "0x1111111111111111111111111111111111111111"
)

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"type":"user.created"}`)
	valid := sign(testSecret, body)

	tests := []struct {
		name   string
		header string
		want   bool
	}{
		{"bare hex", valid, true},
		{"sha256 prefix", "sha256=" + valid, true},
		{"first of comma list", valid + ",sha256=deadbeef", true},
		{"wrong signature", sign("other", body), false},
		{"empty header", "", false},
		{"garbage", "not-a-signature", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := VerifySignature(testSecret, body, tt.header)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestVerifySignatureRequiresSecret(t *testing.T) {
	_, err := VerifySignature("", []byte("{}"), "sha256=abc")
	assert.Error(t, err)
}

func TestParseEventIdentifiers(t *testing.T) {
	event, err := ParseEvent([]byte(`{"eventId":"evt_1","eventName":"user.created"}`))
	require.NoError(t, err)
	assert.Equal(t, "evt_1", event.ID)
	assert.Equal(t, "user.created", event.Type)

	event, err = ParseEvent([]byte(`{"messageId":"msg_9","event":{"name":"wallet.linked"}}`))
	require.NoError(t, err)
	assert.Equal(t, "msg_9", event.ID)
	assert.Equal(t, "wallet.linked", event.Type)
}

func TestParseEventHashesMissingID(t *testing.T) {
	body := []byte(`{"type":"ping"}`)
	event, err := ParseEvent(body)
	require.NoError(t, err)

	sum := sha256.Sum256(body)
	assert.Equal(t, hex.EncodeToString(sum[:]), event.ID)
	assert.Equal(t, "ping", event.Type)
	assert.Nil(t, event.User)
}

func TestParseEventRejectsInvalidJSON(t *testing.T) {
	_, err := ParseEvent([]byte("nope"))
	assert.Error(t, err)
}

func TestParseEventWalletsArray(t *testing.T) {
	event, err := ParseEvent([]byte(`{
		"id": "evt_2",
		"type": "user.updated",
		"data": {
			"userId": "dyn_1",
			"email": "alice@example.com",
			"wallets": [
				{"address": "` + addrOne + `", "chain": "EVM", "walletProvider": "metamask", "isPrimary": true},
				{"address": "` + addrTwo + `", "chainName": "solana"}
			]
		}
	}`))
	require.NoError(t, err)
	require.NotNil(t, event.User)

	user := event.User
	assert.Equal(t, "dyn_1", user.DynamicUserID)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.Equal(t, "metamask", user.AuthProvider)
	require.Len(t, user.Wallets, 2)
	assert.Equal(t, "0xab5801a7d398351b8be11c439e05c5b3259aec9b", user.Wallets[0].Address)
	assert.True(t, user.Wallets[0].IsPrimary)
	assert.Equal(t, "solana", user.Wallets[1].Chain)
}

func TestParseEventVerifiedCredentials(t *testing.T) {
	event, err := ParseEvent([]byte(`{
		"id": "evt_3",
		"type": "user.created",
		"data": {
			"user": {"id": "dyn_2", "email": "bob@example.com"},
			"verifiedCredentials": [
				{"address": "` + addrOne + `", "chain": "eip155:1", "walletName": "rainbow"},
				{"format": "email"}
			]
		}
	}`))
	require.NoError(t, err)
	require.NotNil(t, event.User)

	user := event.User
	assert.Equal(t, "dyn_2", user.DynamicUserID)
	assert.Equal(t, "bob@example.com", user.Email)
	require.Len(t, user.Wallets, 1)
	assert.Equal(t, "rainbow", user.Wallets[0].Provider)
}

func TestParseEventPublicKeyFallbacks(t *testing.T) {
	event, err := ParseEvent([]byte(`{
		"id": "evt_4",
		"type": "wallet.linked",
		"data": {
			"userId": "dyn_3",
			"walletPublicKey": "` + addrOne + `",
			"walletName": "coinbase"
		}
	}`))
	require.NoError(t, err)
	require.NotNil(t, event.User)
	require.Len(t, event.User.Wallets, 1)
	assert.Equal(t, "0xab5801a7d398351b8be11c439e05c5b3259aec9b", event.User.Wallets[0].Address)
	assert.Equal(t, "coinbase", event.User.Wallets[0].Provider)
	assert.Equal(t, "coinbase", event.User.AuthProvider)
}

func TestParseEventDeduplicatesWallets(t *testing.T) {
	event, err := ParseEvent([]byte(`{
		"id": "evt_5",
		"type": "user.updated",
		"data": {
			"userId": "dyn_4",
			"wallets": [{"address": "` + addrOne + `", "walletProvider": "metamask"}],
			"walletAddress": "` + addrOne + `",
			"provider": "dynamic"
		}
	}`))
	require.NoError(t, err)
	require.NotNil(t, event.User)
	require.Len(t, event.User.Wallets, 1)
	// Later sources override, position stays first.
	assert.Equal(t, "dynamic", event.User.Wallets[0].Provider)
}

func TestParseEventDropsInvalidAddresses(t *testing.T) {
	event, err := ParseEvent([]byte(`{
		"id": "evt_6",
		"type": "user.updated",
		"data": {
			"userId": "dyn_5",
			"wallets": [{"address": "not-an-address"}, {"address": "0x123"}]
		}
	}`))
	require.NoError(t, err)
	require.NotNil(t, event.User)
	assert.Empty(t, event.User.Wallets)
}

func TestMemoryStoreDuplicateEvent(t *testing.T) {
	store := NewMemoryStore()
	event := &Event{ID: "evt_1", Type: "user.created"}

	dup, err := store.ProcessEvent(context.Background(), event)
	require.NoError(t, err)
	assert.False(t, dup)

	dup, err = store.ProcessEvent(context.Background(), event)
	require.NoError(t, err)
	assert.True(t, dup)
}

func TestMemoryStoreUpsertsUserAndWallets(t *testing.T) {
	store := NewMemoryStore()
	addr := "0xab5801a7d398351b8be11c439e05c5b3259aec9b"
	event := &Event{
		ID:   "evt_1",
		Type: "user.created",
		User: &UserUpdate{
			DynamicUserID: "dyn_1",
			Email:         "alice@example.com",
			AuthProvider:  "metamask",
			Wallets:       []Wallet{{Address: addr, Chain: "EVM", Provider: "metamask", IsPrimary: true}},
		},
	}

	_, err := store.ProcessEvent(context.Background(), event)
	require.NoError(t, err)

	user := store.User("dyn_1")
	require.NotNil(t, user)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.Equal(t, addr, user.WalletAddress)
	assert.False(t, user.IsDeleted)
	require.Len(t, store.Wallets("dyn_1"), 1)
}

func TestMemoryStoreUserDeleted(t *testing.T) {
	store := NewMemoryStore()
	addr := "0xab5801a7d398351b8be11c439e05c5b3259aec9b"
	user := &UserUpdate{DynamicUserID: "dyn_1", Wallets: []Wallet{{Address: addr}}}

	_, err := store.ProcessEvent(context.Background(), &Event{ID: "evt_1", Type: "user.created", User: user})
	require.NoError(t, err)

	_, err = store.ProcessEvent(context.Background(), &Event{ID: "evt_2", Type: "user.deleted", User: user})
	require.NoError(t, err)

	record := store.User("dyn_1")
	require.NotNil(t, record)
	assert.True(t, record.IsDeleted)
	assert.NotNil(t, record.DeletedAt)
	assert.Empty(t, store.Wallets("dyn_1"))
}

func TestMemoryStoreWalletUnlinked(t *testing.T) {
	store := NewMemoryStore()
	one := "0xab5801a7d398351b8be11c439e05c5b3259aec9b"
	two := "0x1111111111111111111111111111111111111111"

	_, err := store.ProcessEvent(context.Background(), &Event{
		ID:   "evt_1",
		Type: "user.created",
		User: &UserUpdate{DynamicUserID: "dyn_1", Wallets: []Wallet{{Address: one}, {Address: two}}},
	})
	require.NoError(t, err)

	_, err = store.ProcessEvent(context.Background(), &Event{
		ID:   "evt_2",
		Type: "wallet.unlinked",
		User: &UserUpdate{DynamicUserID: "dyn_1", Wallets: []Wallet{{Address: one}}},
	})
	require.NoError(t, err)

	remaining := store.Wallets("dyn_1")
	require.Len(t, remaining, 1)
	assert.Equal(t, two, remaining[0].Address)
}

func TestMemoryStoreEmailConflictKeepsOwner(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.ProcessEvent(context.Background(), &Event{
		ID:   "evt_1",
		Type: "user.created",
		User: &UserUpdate{DynamicUserID: "dyn_owner", Email: "shared@example.com"},
	})
	require.NoError(t, err)

	_, err = store.ProcessEvent(context.Background(), &Event{
		ID:   "evt_2",
		Type: "user.created",
		User: &UserUpdate{DynamicUserID: "dyn_other", Email: "Shared@Example.com"},
	})
	require.NoError(t, err)

	owner := store.User("dyn_owner")
	require.NotNil(t, owner)
	assert.Equal(t, "shared@example.com", owner.Email)

	other := store.User("dyn_other")
	require.NotNil(t, other, "user is still created without the conflicting email")
	assert.Empty(t, other.Email)
}
