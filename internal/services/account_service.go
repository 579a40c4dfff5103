package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/isdelr/ender-accounts-be/internal/auth"
	"github.com/isdelr/ender-accounts-be/internal/metrics"
	"github.com/isdelr/ender-accounts-be/internal/models"
	"github.com/isdelr/ender-accounts-be/internal/store"
	"github.com/rs/zerolog/log"
	"github.com/samber/oops"
)

// Session is an issued token and the moment it stops being valid.
type Session struct {
	Token     string
	ExpiresAt time.Time
}

// TokenIssuer mints session tokens for accounts.
type TokenIssuer interface {
	Issue(accountID string) (string, time.Time, error)
}

// SelfUpdate carries the fields an account holder may change. Nil or empty means unchanged.
type SelfUpdate struct {
	Username *string
	Email    *string
	Password *string
}

// AdminUpdate is SelfUpdate plus the privilege flag.
type AdminUpdate struct {
	Username *string
	Email    *string
	Password *string
	IsAdmin  *bool
}

// AccountServiceProvider defines the interface for account lifecycle services.
type AccountServiceProvider interface {
	Register(ctx context.Context, username, email, password string) (models.PublicAccount, Session, error)
	CreateAdmin(ctx context.Context, username, email, password string) (models.PublicAccount, error)
	GetSelf(ctx context.Context, accountID string) (models.PublicAccount, error)
	UpdateSelf(ctx context.Context, accountID string, update SelfUpdate) (models.PublicAccount, error)
	ListAll(ctx context.Context) ([]models.PublicAccount, error)
	GetByID(ctx context.Context, id string) (models.PublicAccount, error)
	UpdateByID(ctx context.Context, id string, update AdminUpdate) (models.PublicAccount, error)
	DeleteByID(ctx context.Context, id string) error
}

// AccountService enforces the account lifecycle rules.
type AccountService struct {
	accounts store.AccountStore
	hasher   auth.PasswordHasher
	tokens   TokenIssuer
	metrics  *metrics.Metrics
}

// NewAccountService creates a new AccountService.
func NewAccountService(accounts store.AccountStore, hasher auth.PasswordHasher, tokens TokenIssuer, m *metrics.Metrics) *AccountService {
	return &AccountService{
		accounts: accounts,
		hasher:   hasher,
		tokens:   tokens,
		metrics:  m,
	}
}

// Register creates a regular account and issues its first session token.
func (s *AccountService) Register(ctx context.Context, username, email, password string) (models.PublicAccount, Session, error) {
	account, err := s.create(ctx, username, email, password, false)
	if err != nil {
		s.metrics.Registration(registrationResult(err))
		return models.PublicAccount{}, Session{}, err
	}

	token, expiresAt, err := s.tokens.Issue(account.ID)
	if err != nil {
		s.metrics.Registration(metrics.ResultError)
		return models.PublicAccount{}, Session{}, oops.Code("ACCOUNT_TOKEN_FAILED").With("account_id", account.ID).Wrap(err)
	}

	s.metrics.Registration(metrics.ResultSuccess)
	log.Info().Str("account_id", account.ID).Msg("Registered account")
	return account.Public(), Session{Token: token, ExpiresAt: expiresAt}, nil
}

// CreateAdmin creates a privileged account. It is reserved for operator bootstrap.
func (s *AccountService) CreateAdmin(ctx context.Context, username, email, password string) (models.PublicAccount, error) {
	account, err := s.create(ctx, username, email, password, true)
	if err != nil {
		return models.PublicAccount{}, err
	}
	log.Info().Str("account_id", account.ID).Msg("Created admin account")
	return account.Public(), nil
}

func (s *AccountService) create(ctx context.Context, username, email, password string, isAdmin bool) (*models.Account, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || email == "" || password == "" {
		return nil, validationErr("please fill all the fields")
	}

	// The unique index is authoritative; this lookup only short-circuits the common case.
	if _, err := s.accounts.FindByEmail(ctx, email); err == nil {
		return nil, ErrConflict
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, storeFailure("find by email", err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, hashFailure(err)
	}

	account, err := s.accounts.Insert(ctx, &models.Account{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		IsAdmin:      isAdmin,
	})
	if err != nil {
		return nil, storeFailure("insert", err)
	}
	return account, nil
}

// GetSelf returns the caller's own account.
func (s *AccountService) GetSelf(ctx context.Context, accountID string) (models.PublicAccount, error) {
	return s.GetByID(ctx, accountID)
}

// UpdateSelf applies a self-service update. The privilege flag is never touched.
func (s *AccountService) UpdateSelf(ctx context.Context, accountID string, update SelfUpdate) (models.PublicAccount, error) {
	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return models.PublicAccount{}, storeFailure("find by id", err)
	}

	if err := s.applyProfile(account, update.Username, update.Email, update.Password); err != nil {
		return models.PublicAccount{}, err
	}
	return s.save(ctx, account)
}

// ListAll returns every account.
func (s *AccountService) ListAll(ctx context.Context) ([]models.PublicAccount, error) {
	accounts, err := s.accounts.ListAll(ctx)
	if err != nil {
		return nil, storeFailure("list", err)
	}

	out := make([]models.PublicAccount, 0, len(accounts))
	for _, account := range accounts {
		out = append(out, account.Public())
	}
	return out, nil
}

// GetByID returns a single account.
func (s *AccountService) GetByID(ctx context.Context, id string) (models.PublicAccount, error) {
	account, err := s.accounts.FindByID(ctx, id)
	if err != nil {
		return models.PublicAccount{}, storeFailure("find by id", err)
	}
	return account.Public(), nil
}

// UpdateByID applies a privileged update, which may change the admin flag.
func (s *AccountService) UpdateByID(ctx context.Context, id string, update AdminUpdate) (models.PublicAccount, error) {
	account, err := s.accounts.FindByID(ctx, id)
	if err != nil {
		return models.PublicAccount{}, storeFailure("find by id", err)
	}

	if err := s.applyProfile(account, update.Username, update.Email, update.Password); err != nil {
		return models.PublicAccount{}, err
	}
	if update.IsAdmin != nil {
		account.IsAdmin = *update.IsAdmin
	}
	return s.save(ctx, account)
}

// DeleteByID removes a non-admin account.
func (s *AccountService) DeleteByID(ctx context.Context, id string) error {
	account, err := s.accounts.FindByID(ctx, id)
	if err != nil {
		return storeFailure("find by id", err)
	}
	if account.IsAdmin {
		return ErrAdminProtected
	}

	if err := s.accounts.Delete(ctx, account.ID); err != nil {
		return storeFailure("delete", err)
	}
	log.Info().Str("account_id", account.ID).Msg("Deleted account")
	return nil
}

func (s *AccountService) applyProfile(account *models.Account, username, email, password *string) error {
	if v := trimmed(username); v != "" {
		account.Username = v
	}
	if v := trimmed(email); v != "" {
		account.Email = v
	}
	if password != nil && *password != "" {
		hash, err := s.hasher.Hash(*password)
		if err != nil {
			return hashFailure(err)
		}
		account.PasswordHash = hash
	}
	return nil
}

func (s *AccountService) save(ctx context.Context, account *models.Account) (models.PublicAccount, error) {
	saved, err := s.accounts.Save(ctx, account)
	if err != nil {
		return models.PublicAccount{}, storeFailure("save", err)
	}
	return saved.Public(), nil
}

func trimmed(v *string) string {
	if v == nil {
		return ""
	}
	return strings.TrimSpace(*v)
}

func registrationResult(err error) string {
	switch {
	case errors.Is(err, ErrConflict):
		return metrics.ResultConflict
	case errors.Is(err, ErrValidation):
		return metrics.ResultInvalid
	default:
		return metrics.ResultError
	}
}
