package identity

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/tendant/sound-archive/pkg/soundarchive"
)

// StaticProvider maps fixed bearer tokens to principals. It implements
// IdentityProvider and AccountProvider for development and tests.
type StaticProvider struct {
	mu       sync.RWMutex
	tokens   map[string]soundarchive.Principal
	accounts map[string]soundarchive.Account
}

// NewStaticProvider creates an empty provider.
func NewStaticProvider() *StaticProvider {
	return &StaticProvider{
		tokens:   make(map[string]soundarchive.Principal),
		accounts: make(map[string]soundarchive.Account),
	}
}

// AddToken registers token for the principal with the given id and email.
func (s *StaticProvider) AddToken(token, id, email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token] = soundarchive.Principal{ID: id, Email: email}
	s.accounts[id] = soundarchive.Account{ID: id, Email: email}
}

// VerifyToken implements soundarchive.IdentityProvider.
func (s *StaticProvider) VerifyToken(ctx context.Context, bearer string) (soundarchive.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.tokens[bearer]
	if !ok {
		return soundarchive.Principal{}, errors.New("unknown token")
	}
	return p, nil
}

// CreateAccount implements soundarchive.AccountProvider.
func (s *StaticProvider) CreateAccount(ctx context.Context, req soundarchive.NewAccount) (*soundarchive.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.Email == req.Email {
			return nil, soundarchive.NewValidationError("email", "already registered")
		}
	}
	a := soundarchive.Account{ID: uuid.NewString(), Email: req.Email}
	s.accounts[a.ID] = a
	return &a, nil
}

// DeleteAccount implements soundarchive.AccountProvider.
func (s *StaticProvider) DeleteAccount(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[id]; !ok {
		return soundarchive.ErrNotFound
	}
	delete(s.accounts, id)
	for token, p := range s.tokens {
		if p.ID == id {
			delete(s.tokens, token)
		}
	}
	return nil
}
