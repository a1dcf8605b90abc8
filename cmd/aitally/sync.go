package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nmatte/aitally/internal/sync"
)

func syncCmd() *cobra.Command {
	var sources []string
	var full, verbose bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Scan the session roots and bring the aggregate store up to date",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, db, err := openAll()
			if err != nil {
				return err
			}
			defer db.Close()

			if full {
				if err := db.ResetFingerprints(); err != nil {
					return fmt.Errorf("reset fingerprints: %w", err)
				}
			}

			fmt.Fprintf(os.Stderr, "Scanning roots...\n")
			fmt.Fprintf(os.Stderr, "  Claude: %s\n", cfg.ClaudeRoot)
			fmt.Fprintf(os.Stderr, "  Codex:  %s\n", cfg.CodexRoot)
			fmt.Fprintf(os.Stderr, "  Gemini: %s\n", cfg.GeminiRoot)

			engine := newEngine(cfg, db)
			engine.SetVerbose(verbose)

			ctx, cancel := signalContext()
			defer cancel()

			report, err := engine.Sync(ctx, sync.Scope{Sources: parseSources(sources)})
			if err != nil {
				// a cancelled run still reports what it committed
				fmt.Fprintf(os.Stderr, "Interrupted. %s\n", report)
				return err
			}

			fmt.Fprintf(os.Stderr, "Done. %s\n", report)
			if report.SkippedRecords > 0 || report.UntypedRecords > 0 {
				fmt.Fprintf(os.Stderr, "  records skipped=%d untyped=%d\n",
					report.SkippedRecords, report.UntypedRecords)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&sources, "source", nil, "Limit to sources (claude/codex/gemini)")
	cmd.Flags().BoolVar(&full, "full", false, "Reprocess every file, ignoring stored fingerprints")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print per-file warnings")

	return cmd
}
