package commands

import (
	"github.com/spf13/cobra"

	"github.com/yungbote/agora-backend/internal/app"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the analysis job worker",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := signalContext(cmd.Context())
		defer cancel()

		a, err := loadApp(app.Options{})
		if err != nil {
			return err
		}
		defer a.Close()
		return a.RunWorker(ctx)
	},
}
