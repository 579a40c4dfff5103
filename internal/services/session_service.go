package services

import (
	"context"
	"errors"

	"github.com/isdelr/ender-accounts-be/internal/auth"
	"github.com/isdelr/ender-accounts-be/internal/metrics"
	"github.com/isdelr/ender-accounts-be/internal/models"
	"github.com/isdelr/ender-accounts-be/internal/store"
	"github.com/rs/zerolog/log"
	"github.com/samber/oops"
)

// dummyPassword is hashed once at startup so logins for unknown emails still pay for a bcrypt comparison.
const dummyPassword = "d1b2c3e4-timing-only-never-a-credential"

// EmailFinder looks accounts up by login email.
type EmailFinder interface {
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
}

// SessionServiceProvider defines the interface for session services.
type SessionServiceProvider interface {
	Login(ctx context.Context, email, password string) (models.PublicAccount, Session, error)
}

// SessionService verifies credentials and issues session tokens.
type SessionService struct {
	accounts  EmailFinder
	hasher    auth.PasswordHasher
	tokens    TokenIssuer
	metrics   *metrics.Metrics
	dummyHash string
}

// NewSessionService creates a new SessionService.
func NewSessionService(accounts EmailFinder, hasher auth.PasswordHasher, tokens TokenIssuer, m *metrics.Metrics) *SessionService {
	dummyHash, err := hasher.Hash(dummyPassword)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to prepare dummy password hash")
	}
	return &SessionService{
		accounts:  accounts,
		hasher:    hasher,
		tokens:    tokens,
		metrics:   m,
		dummyHash: dummyHash,
	}
}

// Login authenticates by email and password.
// Unknown email and wrong password both return ErrUnauthorized.
func (s *SessionService) Login(ctx context.Context, email, password string) (models.PublicAccount, Session, error) {
	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		s.metrics.Login(metrics.ResultError)
		return models.PublicAccount{}, Session{}, storeFailure("find by email", err)
	}

	targetHash := s.dummyHash
	if account != nil {
		targetHash = account.PasswordHash
	}

	// Always verify so response time does not reveal whether the email exists.
	valid := s.hasher.Verify(password, targetHash)
	if account == nil || !valid {
		s.metrics.Login(metrics.ResultRejected)
		log.Debug().Msg("Rejected login attempt")
		return models.PublicAccount{}, Session{}, ErrUnauthorized
	}

	token, expiresAt, err := s.tokens.Issue(account.ID)
	if err != nil {
		s.metrics.Login(metrics.ResultError)
		return models.PublicAccount{}, Session{}, oops.Code("SESSION_TOKEN_FAILED").With("account_id", account.ID).Wrap(err)
	}

	s.metrics.Login(metrics.ResultSuccess)
	return account.Public(), Session{Token: token, ExpiresAt: expiresAt}, nil
}
