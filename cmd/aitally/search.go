package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/nmatte/aitally/internal/search"
	"github.com/nmatte/aitally/internal/sync"
	"github.com/nmatte/aitally/internal/tui"
)

const (
	sColorReset   = "\033[0m"
	sColorBoldRed = "\033[1;31m"
	sColorBlue    = "\033[1;34m"
	sColorGreen   = "\033[1;32m"
	sColorMagenta = "\033[1;35m"
	sColorDim     = "\033[2m"
)

func colorizeSource(source string) string {
	switch source {
	case "claude":
		return sColorBlue + source + sColorReset
	case "codex":
		return sColorGreen + source + sColorReset
	case "gemini":
		return sColorMagenta + source + sColorReset
	default:
		return source
	}
}

func colorizeSnippet(snippet string) string {
	snippet = strings.ReplaceAll(snippet, ">>>", sColorBoldRed)
	snippet = strings.ReplaceAll(snippet, "<<<", sColorReset)
	return snippet
}

func searchCmd() *cobra.Command {
	var source, role, since, workspacePat string
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Full-text search across synced sessions",
		Long: `Search stored message text using FTS5. Output is TSV for fzf integration:
  rowId, msgIdx, lastTs, source, workspace, summary, snippet

Interactive TUI opens instead when stdout is a terminal.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, db, err := openAll()
			if err != nil {
				return err
			}
			defer db.Close()

			// Auto-sync before searching; failures degrade to stale results
			newEngine(cfg, db).Sync(context.Background(), sync.Scope{})

			opts := search.Options{
				Source:    source,
				Role:      role,
				Workspace: workspacePat,
				Since:     since,
				Limit:     limit,
			}

			// Interactive TUI when stdout is a terminal; TSV output for pipes
			if term.IsTerminal(int(os.Stdout.Fd())) {
				return tui.Run(db, args[0], opts)
			}

			opts.Query = args[0]
			results, err := search.Search(db, opts)
			if err != nil {
				return err
			}

			if len(results) == 0 {
				fmt.Fprintln(os.Stderr, "No results found.")
				return nil
			}

			for _, r := range results {
				snippet := strings.ReplaceAll(r.Snippet, "\t", " ")
				snippet = strings.ReplaceAll(snippet, "\n", " ")
				snippet = colorizeSnippet(snippet)
				summary := strings.ReplaceAll(r.Summary, "\t", " ")
				summary = strings.ReplaceAll(summary, "\n", " ")
				ws := r.Workspace
				if ws == "" {
					ws = "-"
				}
				// first two fields (rowId, msgIdx) stay plain for fzf {1} {2}
				fmt.Printf("%d\t%d\t%s%s%s\t%s\t%s\t%s\t%s\n",
					r.RowID,
					r.MsgIdx,
					sColorDim, r.LastTs, sColorReset,
					colorizeSource(r.Source),
					ws,
					summary,
					snippet,
				)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "Filter by source (claude/codex/gemini)")
	cmd.Flags().StringVar(&role, "role", "", "Filter by role (user/assistant)")
	cmd.Flags().StringVar(&workspacePat, "workspace", "", "Filter by exact workspace key")
	cmd.Flags().StringVar(&since, "since", "", "Filter sessions updated since date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&limit, "limit", 100, "Max results")

	return cmd
}
