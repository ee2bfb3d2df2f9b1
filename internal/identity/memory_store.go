package identity

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/abrium/abrium/internal/logging"
)

// UserRecord is an in-memory user row.
type UserRecord struct {
	DynamicUserID string
	Email         string
	WalletAddress string
	AuthProvider  string
	IsDeleted     bool
	DeletedAt     *time.Time
	UpdatedAt     time.Time
}

// MemoryStore implements Store in memory for testing and local development
type MemoryStore struct {
	mu      sync.Mutex
	seen    map[string]bool
	users   map[string]*UserRecord
	wallets map[string]map[string]Wallet // dynamicUserID -> address -> wallet
}

// NewMemoryStore creates an in-memory identity store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		seen:    make(map[string]bool),
		users:   make(map[string]*UserRecord),
		wallets: make(map[string]map[string]Wallet),
	}
}

// ProcessEvent implements Store
func (m *MemoryStore) ProcessEvent(ctx context.Context, event *Event) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.seen[event.ID] {
		return true, nil
	}
	m.seen[event.ID] = true

	if event.User == nil {
		return false, nil
	}
	user := event.User

	email := user.Email
	if email != "" {
		for _, existing := range m.users {
			if existing.Email != "" &&
				strings.EqualFold(existing.Email, email) &&
				existing.DynamicUserID != user.DynamicUserID {
				logging.FromContext(ctx).Warn("webhook email conflict, skipping email update",
					"event_id", event.ID,
					"dynamic_user_id", user.DynamicUserID,
					"owner_dynamic_user_id", existing.DynamicUserID)
				email = ""
				break
			}
		}
	}

	record := m.users[user.DynamicUserID]
	if record == nil {
		record = &UserRecord{DynamicUserID: user.DynamicUserID}
		m.users[user.DynamicUserID] = record
	}
	if email != "" {
		record.Email = email
	}
	if len(user.Wallets) > 0 {
		record.WalletAddress = user.Wallets[0].Address
	}
	if user.AuthProvider != "" {
		record.AuthProvider = user.AuthProvider
	}
	record.IsDeleted = false
	record.DeletedAt = nil
	record.UpdatedAt = time.Now()

	switch {
	case strings.Contains(event.Type, "user.deleted"):
		now := time.Now()
		record.IsDeleted = true
		record.DeletedAt = &now
		delete(m.wallets, user.DynamicUserID)

	case strings.Contains(event.Type, "wallet.unlinked"):
		for _, wallet := range user.Wallets {
			if linked := m.wallets[user.DynamicUserID]; linked != nil {
				delete(linked, wallet.Address)
			}
		}

	default:
		for _, wallet := range user.Wallets {
			linked := m.wallets[user.DynamicUserID]
			if linked == nil {
				linked = make(map[string]Wallet)
				m.wallets[user.DynamicUserID] = linked
			}
			linked[wallet.Address] = wallet
		}
	}

	return false, nil
}

// User returns a copy of the stored user, or nil when unknown.
func (m *MemoryStore) User(dynamicUserID string) *UserRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	record := m.users[dynamicUserID]
	if record == nil {
		return nil
	}
	clone := *record
	return &clone
}

// Wallets returns the linked wallets for a user.
func (m *MemoryStore) Wallets(dynamicUserID string) []Wallet {
	m.mu.Lock()
	defer m.mu.Unlock()
	linked := m.wallets[dynamicUserID]
	out := make([]Wallet, 0, len(linked))
	for _, wallet := range linked {
		out = append(out, wallet)
	}
	return out
}
