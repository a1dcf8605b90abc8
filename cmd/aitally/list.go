package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/nmatte/aitally/internal/search"
	"github.com/nmatte/aitally/internal/sync"
	"github.com/nmatte/aitally/internal/tui"
)

func listCmd() *cobra.Command {
	var source, since string
	var limit int

	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Browse all sessions sorted by update time",
		Long:  `Opens a TUI panel showing all synced sessions sorted by update time (newest first). Type to filter by message content.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, db, err := openAll()
			if err != nil {
				return err
			}
			defer db.Close()

			newEngine(cfg, db).Sync(context.Background(), sync.Scope{})

			opts := search.Options{
				Source: source,
				Since:  since,
				Limit:  limit,
			}

			return tui.RunList(db, opts)
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "Filter by source (claude/codex/gemini)")
	cmd.Flags().StringVar(&since, "since", "", "Filter sessions updated since date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Max results (0 = no limit)")

	return cmd
}
