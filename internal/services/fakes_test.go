package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/isdelr/ender-accounts-be/internal/auth"
	"github.com/isdelr/ender-accounts-be/internal/models"
	"github.com/isdelr/ender-accounts-be/internal/store"
	"golang.org/x/crypto/bcrypt"
)

var testSecret = []byte("services-test-secret-0123456789ab")

// memStore is an AccountStore with a unique email index.
type memStore struct {
	mu       sync.Mutex
	accounts map[string]models.Account
	nextID   int
	failWith error
}

func newMemStore() *memStore {
	return &memStore{accounts: map[string]models.Account{}}
}

func (m *memStore) FindByEmail(_ context.Context, email string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	for _, a := range m.accounts {
		if a.Email == strings.ToLower(email) {
			return &a, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) FindByID(_ context.Context, id string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	a, ok := m.accounts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &a, nil
}

func (m *memStore) emailTaken(email, exceptID string) bool {
	for id, a := range m.accounts {
		if id != exceptID && a.Email == email {
			return true
		}
	}
	return false
}

func (m *memStore) Insert(_ context.Context, account *models.Account) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	a := *account
	a.Email = strings.ToLower(a.Email)
	if m.emailTaken(a.Email, "") {
		return nil, store.ErrDuplicateEmail
	}
	m.nextID++
	a.ID = fmt.Sprintf("acct-%d", m.nextID)
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	m.accounts[a.ID] = a
	return &a, nil
}

func (m *memStore) Save(_ context.Context, account *models.Account) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	if _, ok := m.accounts[account.ID]; !ok {
		return nil, store.ErrNotFound
	}
	a := *account
	a.Email = strings.ToLower(a.Email)
	if m.emailTaken(a.Email, a.ID) {
		return nil, store.ErrDuplicateEmail
	}
	a.UpdatedAt = time.Now()
	m.accounts[a.ID] = a
	return &a, nil
}

func (m *memStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	if _, ok := m.accounts[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.accounts, id)
	return nil
}

func (m *memStore) ListAll(_ context.Context) ([]models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	out := make([]models.Account, 0, len(m.accounts))
	for _, a := range m.accounts {
		out = append(out, a)
	}
	return out, nil
}

func (m *memStore) get(id string) models.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accounts[id]
}

type fixture struct {
	store    *memStore
	hasher   *auth.BcryptHasher
	tokens   *auth.TokenService
	accounts *AccountService
	sessions *SessionService
}

func newFixture() *fixture {
	s := newMemStore()
	hasher := auth.NewBcryptHasher(bcrypt.MinCost)
	tokens := auth.NewTokenService(testSecret, time.Hour)
	return &fixture{
		store:    s,
		hasher:   hasher,
		tokens:   tokens,
		accounts: NewAccountService(s, hasher, tokens, nil),
		sessions: NewSessionService(s, hasher, tokens, nil),
	}
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }
