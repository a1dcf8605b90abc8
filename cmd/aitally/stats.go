package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nmatte/aitally/internal/store"
)

func statsCmd() *cobra.Command {
	var by, since, workspacePat string
	var sources []string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Aggregate usage by workspace, model, tool, or day",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, err := openAll()
			if err != nil {
				return err
			}
			defer db.Close()

			workspaces, err := resolveWorkspaces(db, workspacePat)
			if err != nil {
				return err
			}
			if workspacePat != "" && len(workspaces) == 0 {
				fmt.Fprintf(os.Stderr, "No workspaces match %q.\n", workspacePat)
				return nil
			}

			filter := store.ListFilter{
				Sources:    parseSources(sources),
				Workspaces: workspaces,
				Since:      since,
			}

			var rows []store.StatRow
			switch by {
			case "workspace":
				rows, err = db.StatsByWorkspace(filter)
			case "model":
				rows, err = db.StatsByModel(filter)
			case "tool":
				rows, err = db.StatsByTool(filter)
			case "day":
				rows, err = db.StatsByDay(filter)
			default:
				return fmt.Errorf("unknown dimension %q (workspace/model/tool/day)", by)
			}
			if err != nil {
				return err
			}

			if len(rows) == 0 {
				fmt.Fprintln(os.Stderr, "No data. Run 'aitally sync' first.")
				return nil
			}

			printStats(by, rows)
			return nil
		},
	}

	cmd.Flags().StringVar(&by, "by", "workspace", "Dimension: workspace, model, tool, or day")
	cmd.Flags().StringSliceVar(&sources, "source", nil, "Limit to sources (claude/codex/gemini)")
	cmd.Flags().StringVar(&since, "since", "", "Only sessions updated since date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&workspacePat, "workspace", "", "Workspace pattern or alias")

	return cmd
}

func printStats(by string, rows []store.StatRow) {
	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	defer w.Flush()

	switch by {
	case "tool":
		fmt.Fprintln(w, "TOOL\tSESSIONS\tCALLS")
		for _, r := range rows {
			fmt.Fprintf(w, "%s\t%d\t%d\n", r.Key, r.Sessions, r.ToolCalls)
		}
	case "day":
		fmt.Fprintln(w, "DAY\tMESSAGES\tTOOLS\tIN\tOUT\tCACHE-R\tCACHE-W")
		for _, r := range rows {
			fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%s\t%s\t%s\n",
				r.Key, r.Messages, r.ToolCalls,
				fmtTokens(r.Tokens.Input), fmtTokens(r.Tokens.Output),
				fmtTokens(r.Tokens.CacheRead), fmtTokens(r.Tokens.CacheWrite))
		}
	default:
		fmt.Fprintln(w, "KEY\tSESSIONS\tMESSAGES\tIN\tOUT\tCACHE-R\tCACHE-W")
		for _, r := range rows {
			fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%s\t%s\t%s\n",
				r.Key, r.Sessions, r.Messages,
				fmtTokens(r.Tokens.Input), fmtTokens(r.Tokens.Output),
				fmtTokens(r.Tokens.CacheRead), fmtTokens(r.Tokens.CacheWrite))
		}
	}
}

// fmtTokens compacts large token counts for table display.
func fmtTokens(n int64) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	case n >= 10_000:
		return fmt.Sprintf("%.0fk", float64(n)/1_000)
	default:
		return fmt.Sprintf("%d", n)
	}
}
