package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/isdelr/ender-accounts-be/internal/auth"
	"github.com/isdelr/ender-accounts-be/internal/models"
	"github.com/isdelr/ender-accounts-be/internal/services"
	"github.com/rs/zerolog/log"
)

// CookieConfig controls the session cookie.
type CookieConfig struct {
	Name   string
	Secure bool
}

// AccountHandler handles HTTP requests for account management and sessions.
type AccountHandler struct {
	accounts services.AccountServiceProvider
	sessions services.SessionServiceProvider
	cookie   CookieConfig
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accounts services.AccountServiceProvider, sessions services.SessionServiceProvider, cookie CookieConfig) *AccountHandler {
	if cookie.Name == "" {
		cookie.Name = auth.DefaultCookieName
	}
	return &AccountHandler{accounts: accounts, sessions: sessions, cookie: cookie}
}

// RegisterPayload defines the structure for registration requests.
type RegisterPayload struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginPayload defines the structure for login requests.
type LoginPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ProfilePayload defines a self-service update. Omitted fields stay unchanged.
type ProfilePayload struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
}

// AdminUpdatePayload defines a privileged update.
type AdminUpdatePayload struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
	IsAdmin  *bool   `json:"isAdmin"`
}

func (h *AccountHandler) setSessionCookie(w http.ResponseWriter, session services.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    session.Token,
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteStrictMode,
		Path:     "/",
	})
}

func (h *AccountHandler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    "",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteStrictMode,
		Path:     "/",
	})
}

func currentAccount(w http.ResponseWriter, r *http.Request) (*models.Account, bool) {
	account, ok := auth.AccountFromContext(r.Context())
	if !ok {
		log.Error().Msg("Could not retrieve account from request context")
		http.Error(w, "Could not retrieve user from token", http.StatusInternalServerError)
	}
	return account, ok
}

// Register handles new account registration.
func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	var payload RegisterPayload
	if !decodeJSON(w, r, &payload) {
		return
	}

	account, session, err := h.accounts.Register(r.Context(), payload.Username, payload.Email, payload.Password)
	if err != nil {
		writeServiceError(w, err, "Failed to register account")
		return
	}

	h.setSessionCookie(w, session)
	writeJSON(w, http.StatusCreated, account)
}

// List returns every account.
func (h *AccountHandler) List(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.accounts.ListAll(r.Context())
	if err != nil {
		writeServiceError(w, err, "Failed to list accounts")
		return
	}
	writeJSON(w, http.StatusOK, accounts)
}

// Login handles authentication and sets the session cookie.
func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload LoginPayload
	if !decodeJSON(w, r, &payload) {
		return
	}

	account, session, err := h.sessions.Login(r.Context(), payload.Email, payload.Password)
	if err != nil {
		writeServiceError(w, err, "Failed to log in")
		return
	}

	h.setSessionCookie(w, session)
	writeJSON(w, http.StatusCreated, account)
}

// Logout clears the session cookie. Issued tokens stay valid until they expire.
func (h *AccountHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

// GetProfile returns the authenticated account.
func (h *AccountHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	current, ok := currentAccount(w, r)
	if !ok {
		return
	}

	account, err := h.accounts.GetSelf(r.Context(), current.ID)
	if err != nil {
		writeServiceError(w, err, "Failed to load profile")
		return
	}
	writeJSON(w, http.StatusOK, account)
}

// UpdateProfile applies a self-service update to the authenticated account.
func (h *AccountHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	current, ok := currentAccount(w, r)
	if !ok {
		return
	}

	var payload ProfilePayload
	if !decodeJSON(w, r, &payload) {
		return
	}

	account, err := h.accounts.UpdateSelf(r.Context(), current.ID, services.SelfUpdate{
		Username: payload.Username,
		Email:    payload.Email,
		Password: payload.Password,
	})
	if err != nil {
		writeServiceError(w, err, "Failed to update profile")
		return
	}
	writeJSON(w, http.StatusCreated, account)
}

// Get returns an account by ID.
func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	account, err := h.accounts.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "Failed to get account by ID")
		return
	}
	writeJSON(w, http.StatusOK, account)
}

// Update applies a privileged update to an account by ID.
func (h *AccountHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var payload AdminUpdatePayload
	if !decodeJSON(w, r, &payload) {
		return
	}

	account, err := h.accounts.UpdateByID(r.Context(), id, services.AdminUpdate{
		Username: payload.Username,
		Email:    payload.Email,
		Password: payload.Password,
		IsAdmin:  payload.IsAdmin,
	})
	if err != nil {
		writeServiceError(w, err, "Failed to update account")
		return
	}
	writeJSON(w, http.StatusOK, account)
}

// Delete removes a non-admin account by ID.
func (h *AccountHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.accounts.DeleteByID(r.Context(), id); err != nil {
		writeServiceError(w, err, "Failed to delete account")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "User deleted successfully"})
}
