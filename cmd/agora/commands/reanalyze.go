package commands

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/yungbote/agora-backend/internal/app"
	"github.com/yungbote/agora-backend/internal/pkg/dbctx"
)

var reanalyzeCmd = &cobra.Command{
	Use:   "reanalyze <post|reply> <id>",
	Short: "Enqueue argument analysis for one post or reply",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[1])
		if err != nil {
			return fmt.Errorf("invalid content id %q", args[1])
		}
		a, err := loadApp(app.Options{})
		if err != nil {
			return err
		}
		defer a.Close()

		job, created, err := a.Services.Jobs.Reanalyze(dbctx.Context{Ctx: cmd.Context()}, args[0], id)
		if err != nil {
			return err
		}
		if !created {
			fmt.Fprintln(cmd.OutOrStdout(), "analysis already queued or running; nothing to do")
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "enqueued job %s\n", job.ID)
		return nil
	},
}
