package cli

import (
	"github.com/isdelr/ender-accounts-be/internal/auth"
	"github.com/isdelr/ender-accounts-be/internal/services"
	"github.com/isdelr/ender-accounts-be/internal/store"
	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

func newCreateAdminCmd(configFile *string) *cobra.Command {
	var username, email, password string

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an admin account",
		Long: `Create an account with the admin flag set. The HTTP API never grants
admin rights to self-registered accounts, so the first admin is created here.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, db, err := bootstrap(cmd.Context(), *configFile)
			if err != nil {
				return err
			}
			defer db.Close()

			accounts := store.NewSQLStore(db, cfg.Dialect())
			hasher := auth.NewBcryptHasher(cfg.Auth.Cost)
			tokens := auth.NewTokenService([]byte(cfg.Auth.Secret), cfg.Auth.TTL)
			svc := services.NewAccountService(accounts, hasher, tokens, nil)

			account, err := svc.CreateAdmin(cmd.Context(), username, email, password)
			if err != nil {
				return oops.Code("CREATE_ADMIN_FAILED").With("email", email).Wrap(err)
			}

			cmd.Printf("Created admin %s (%s)\n", account.Email, account.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "login email")
	cmd.Flags().StringVar(&password, "password", "", "initial password")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}
