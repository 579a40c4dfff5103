package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/isdelr/ender-accounts-be/internal/metrics"
	"github.com/isdelr/ender-accounts-be/internal/models"
	"github.com/isdelr/ender-accounts-be/internal/store"
	"github.com/rs/zerolog/log"
)

// DefaultCookieName is the session cookie used when none is configured.
const DefaultCookieName = "jwt"

type contextKey string

// AccountKey is the context key for the authenticated account.
const AccountKey = contextKey("account")

// TokenVerifier resolves a presented token to an account ID.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// AccountFinder resolves account IDs.
type AccountFinder interface {
	FindByID(ctx context.Context, id string) (*models.Account, error)
}

// Gate holds the request filters protecting account routes.
type Gate struct {
	tokens     TokenVerifier
	accounts   AccountFinder
	cookieName string
	metrics    *metrics.Metrics
}

// NewGate creates a Gate. An empty cookieName means DefaultCookieName.
func NewGate(tokens TokenVerifier, accounts AccountFinder, cookieName string, m *metrics.Metrics) *Gate {
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	return &Gate{
		tokens:     tokens,
		accounts:   accounts,
		cookieName: cookieName,
		metrics:    m,
	}
}

// WithAccount returns a copy of ctx carrying the authenticated account.
func WithAccount(ctx context.Context, account *models.Account) context.Context {
	return context.WithValue(ctx, AccountKey, account)
}

// AccountFromContext returns the account attached by Authenticate.
func AccountFromContext(ctx context.Context) (*models.Account, bool) {
	account, ok := ctx.Value(AccountKey).(*models.Account)
	return account, ok && account != nil
}

// tokenFromRequest reads the bearer header first, then the session cookie.
func (g *Gate) tokenFromRequest(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		if token, ok := strings.CutPrefix(authHeader, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if cookie, err := r.Cookie(g.cookieName); err == nil {
		return strings.TrimSpace(cookie.Value)
	}
	return ""
}

// Authenticate verifies the presented token and attaches the account to the request context.
func (g *Gate) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenStr := g.tokenFromRequest(r)
		if tokenStr == "" {
			g.metrics.Denied("missing_token")
			http.Error(w, "Not authorized, no token", http.StatusUnauthorized)
			return
		}

		accountID, err := g.tokens.Verify(tokenStr)
		if err != nil {
			g.metrics.Denied("invalid_token")
			http.Error(w, "Not authorized, token failed", http.StatusUnauthorized)
			return
		}

		account, err := g.accounts.FindByID(r.Context(), accountID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				g.metrics.Denied("unknown_account")
				http.Error(w, "Not authorized, token failed", http.StatusUnauthorized)
				return
			}
			log.Error().Err(err).Str("account_id", accountID).Msg("Failed to resolve account from token")
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		log.Debug().Str("account_id", account.ID).Msg("Authenticated account")
		next.ServeHTTP(w, r.WithContext(WithAccount(r.Context(), account)))
	})
}

// AuthorizeAdmin lets the request through only for admin accounts. It must run after Authenticate.
func (g *Gate) AuthorizeAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		account, ok := AccountFromContext(r.Context())
		if !ok {
			g.metrics.Denied("unauthenticated")
			http.Error(w, "Not authorized, no token", http.StatusUnauthorized)
			return
		}
		if !account.IsAdmin {
			g.metrics.Denied("not_admin")
			http.Error(w, "Not authorized as an admin", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
