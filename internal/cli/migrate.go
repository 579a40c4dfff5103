package cli

import (
	"github.com/spf13/cobra"
)

func newMigrateCmd(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, db, err := bootstrap(cmd.Context(), *configFile)
			if err != nil {
				return err
			}
			defer db.Close()

			cmd.Println("Migrations completed successfully")
			return nil
		},
	}
}
