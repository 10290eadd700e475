package commands

import (
	"github.com/spf13/cobra"

	"github.com/yungbote/agora-backend/internal/app"
)

var (
	serveWithWorker  bool
	serveSkipMigrate bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := signalContext(cmd.Context())
		defer cancel()

		a, err := loadApp(app.Options{Search: true})
		if err != nil {
			return err
		}
		defer a.Close()

		if !serveSkipMigrate {
			if err := a.Migrate(ctx); err != nil {
				return err
			}
		}
		return a.RunServer(ctx, serveWithWorker)
	},
}

func init() {
	serveCmd.Flags().BoolVar(&serveWithWorker, "with-worker", false, "also run the analysis job worker in this process")
	serveCmd.Flags().BoolVar(&serveSkipMigrate, "skip-migrate", false, "do not migrate the schema on startup")
}
