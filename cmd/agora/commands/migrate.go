package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yungbote/agora-backend/internal/app"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := loadApp(app.Options{})
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.Migrate(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
		return nil
	},
}
