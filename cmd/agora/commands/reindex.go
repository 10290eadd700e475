package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yungbote/agora-backend/internal/app"
)

var reindexBatch int

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the lexical search index from the database",
	Long:  "Rebuild the lexical search index. Stop the API first: the index is held open by a single process.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := loadApp(app.Options{Search: true})
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.Services.Search.Reindex(cmd.Context(), a.Repos.Post, a.Repos.Reply, reindexBatch)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "indexed %d document(s)\n", n)
		return nil
	},
}

func init() {
	reindexCmd.Flags().IntVar(&reindexBatch, "batch", 500, "rows per batch")
}
