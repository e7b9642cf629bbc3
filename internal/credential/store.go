package credential

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/oauth2"
)

// Store holds credentials keyed by user id. Implementations must be safe
// for concurrent use.
type Store interface {
	Get(ctx context.Context, userID string) (Credential, error)
	Put(ctx context.Context, cred Credential) error
	Delete(ctx context.Context, userID string) error
	List(ctx context.Context) ([]string, error)
	// Refresh replaces the stored token for userID.
	Refresh(ctx context.Context, userID string, token *oauth2.Token) (Credential, error)
}

// MemoryStore keeps credentials for the lifetime of the process.
type MemoryStore struct {
	mu    sync.RWMutex
	creds map[string]Credential
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{creds: make(map[string]Credential)}
}

func (m *MemoryStore) Get(ctx context.Context, userID string) (Credential, error) {
	_ = ctx
	m.mu.RLock()
	defer m.mu.RUnlock()
	cred, ok := m.creds[userID]
	if !ok {
		return Credential{}, fmt.Errorf("%w: %s", ErrNotAuthenticated, userID)
	}
	return cred.clone(), nil
}

func (m *MemoryStore) Put(ctx context.Context, cred Credential) error {
	_ = ctx
	if cred.UserID == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidCredential)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds[cred.UserID] = cred.clone()
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, userID string) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.creds[userID]; !ok {
		return fmt.Errorf("%w: %s", ErrNotAuthenticated, userID)
	}
	delete(m.creds, userID)
	return nil
}

func (m *MemoryStore) List(ctx context.Context) ([]string, error) {
	_ = ctx
	m.mu.RLock()
	defer m.mu.RUnlock()
	users := make([]string, 0, len(m.creds))
	for id := range m.creds {
		users = append(users, id)
	}
	sort.Strings(users)
	return users, nil
}

func (m *MemoryStore) Refresh(
	ctx context.Context,
	userID string,
	token *oauth2.Token,
) (Credential, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	cred, ok := m.creds[userID]
	if !ok {
		return Credential{}, fmt.Errorf("%w: %s", ErrNotAuthenticated, userID)
	}
	tok := *token
	// Google omits the refresh token on refresh responses; keep ours.
	if tok.RefreshToken == "" && cred.Token != nil {
		tok.RefreshToken = cred.Token.RefreshToken
	}
	cred.Token = &tok
	m.creds[userID] = cred
	return cred.clone(), nil
}

var _ Store = (*MemoryStore)(nil)
