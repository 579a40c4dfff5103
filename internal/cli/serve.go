package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/isdelr/ender-accounts-be/internal/api"
	"github.com/isdelr/ender-accounts-be/internal/api/handlers"
	"github.com/isdelr/ender-accounts-be/internal/auth"
	"github.com/isdelr/ender-accounts-be/internal/config"
	"github.com/isdelr/ender-accounts-be/internal/metrics"
	"github.com/isdelr/ender-accounts-be/internal/services"
	"github.com/isdelr/ender-accounts-be/internal/store"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), *configFile)
		},
	}
}

func runServe(ctx context.Context, configFile string) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, db, err := bootstrap(ctx, configFile)
	if err != nil {
		return err
	}
	defer db.Close()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           NewHandler(cfg, db),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.Server.Port).Str("driver", cfg.Dialect().String()).Msg("Server starting")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info().Msg("Server exiting")
	return nil
}

// NewHandler wires the account core and returns the HTTP handler.
func NewHandler(cfg *config.Config, db *sql.DB) http.Handler {
	m := metrics.New()
	accounts := store.NewSQLStore(db, cfg.Dialect())
	hasher := auth.NewBcryptHasher(cfg.Auth.Cost)
	tokens := auth.NewTokenService([]byte(cfg.Auth.Secret), cfg.Auth.TTL)

	accountService := services.NewAccountService(accounts, hasher, tokens, m)
	sessionService := services.NewSessionService(accounts, hasher, tokens, m)

	gate := auth.NewGate(tokens, accounts, cfg.Auth.Cookie, m)
	accountHandler := handlers.NewAccountHandler(accountService, sessionService, handlers.CookieConfig{
		Name:   cfg.Auth.Cookie,
		Secure: cfg.IsProduction(),
	})

	return api.NewRouter(accountHandler, gate, api.Options{
		AllowedOrigins: cfg.CORS.Origins,
		Metrics:        m.Handler(),
		AccessLog:      cfg.Server.AccessLog,
	})
}
