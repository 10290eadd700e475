package commands

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/yungbote/agora-backend/internal/app"
	"github.com/yungbote/agora-backend/internal/pkg/dbctx"
)

var (
	deadLetterLimit     int
	deadLetterOlderThan time.Duration
)

var deadLetterCmd = &cobra.Command{
	Use:   "deadletter",
	Short: "Inspect and requeue dead-lettered jobs",
}

var deadLetterListCmd = &cobra.Command{
	Use:   "list",
	Short: "List dead-lettered jobs, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := loadApp(app.Options{})
		if err != nil {
			return err
		}
		defer a.Close()

		jobs, err := a.Services.Jobs.ListDeadLetters(dbctx.Context{Ctx: cmd.Context()}, deadLetterLimit)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tTYPE\tENTITY\tATTEMPTS\tREQUEUES\tDEAD SINCE\tERROR")
		for _, j := range jobs {
			entity := j.EntityType
			if j.EntityID != nil {
				entity += ":" + j.EntityID.String()
			}
			since := ""
			if j.DeadLetteredAt != nil {
				since = j.DeadLetteredAt.UTC().Format(time.RFC3339)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n", j.ID, j.JobType, entity, j.Attempts, j.Requeues, since, j.Error)
		}
		return tw.Flush()
	},
}

var deadLetterRetryCmd = &cobra.Command{
	Use:   "retry <job-id>",
	Short: "Requeue one dead-lettered job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid job id %q", args[0])
		}
		a, err := loadApp(app.Options{})
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Services.Jobs.RetryDeadLetter(dbctx.Context{Ctx: cmd.Context()}, id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "requeued %s\n", id)
		return nil
	},
}

var deadLetterRequeueCmd = &cobra.Command{
	Use:   "requeue",
	Short: "Requeue every dead letter older than --older-than",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := loadApp(app.Options{})
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.Services.Jobs.RequeueDeadLetters(dbctx.Context{Ctx: cmd.Context()}, deadLetterOlderThan, deadLetterLimit)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "requeued %d job(s)\n", n)
		return nil
	},
}

func init() {
	deadLetterCmd.PersistentFlags().IntVar(&deadLetterLimit, "limit", 100, "maximum number of jobs")
	deadLetterRequeueCmd.Flags().DurationVar(&deadLetterOlderThan, "older-than", time.Hour, "only requeue jobs dead-lettered at least this long ago")

	deadLetterCmd.AddCommand(deadLetterListCmd)
	deadLetterCmd.AddCommand(deadLetterRetryCmd)
	deadLetterCmd.AddCommand(deadLetterRequeueCmd)
}
