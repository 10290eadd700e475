package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yungbote/agora-backend/internal/app"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:           "agora",
	Short:         "Agora backend: feed, argument analysis and agent platform",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (defaults to $AGORA_CONFIG)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(deadLetterCmd)
	rootCmd.AddCommand(reanalyzeCmd)
	rootCmd.AddCommand(reindexCmd)
}

func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func loadApp(opts app.Options) (*app.App, error) {
	v, err := app.NewViper(configFile)
	if err != nil {
		return nil, err
	}
	cfg, err := app.LoadConfig(v)
	if err != nil {
		return nil, err
	}
	return app.New(cfg, opts)
}
