package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func resetCmd() *cobra.Command {
	var stale, fingerprints bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Purge stale records or clear sync fingerprints",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !stale && !fingerprints {
				return fmt.Errorf("nothing to do: pass --stale and/or --fingerprints")
			}

			_, db, err := openAll()
			if err != nil {
				return err
			}
			defer db.Close()

			if stale {
				n, err := db.PurgeStale()
				if err != nil {
					return fmt.Errorf("purge stale: %w", err)
				}
				fmt.Fprintf(os.Stderr, "Purged %d stale session(s).\n", n)
			}

			if fingerprints {
				if err := db.ResetFingerprints(); err != nil {
					return fmt.Errorf("reset fingerprints: %w", err)
				}
				fmt.Fprintln(os.Stderr, "Fingerprints cleared; next sync reprocesses every file.")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&stale, "stale", false, "Delete records whose source files are gone")
	cmd.Flags().BoolVar(&fingerprints, "fingerprints", false, "Force the next sync to reprocess every file")

	return cmd
}
