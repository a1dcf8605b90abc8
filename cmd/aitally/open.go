package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nmatte/aitally/internal/open"
)

func openCmd() *cobra.Command {
	var hitIdx int

	cmd := &cobra.Command{
		Use:   "open <session>",
		Short: "Open the original log file in $EDITOR at the hit line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, err := openAll()
			if err != nil {
				return err
			}
			defer db.Close()

			// accept a raw rowid from the search TSV as well as a session ref
			var sess, ferr = db.FindSession(args[0])
			if ferr != nil {
				if rowID, err := strconv.ParseInt(args[0], 10, 64); err == nil {
					sess, ferr = db.SessionByRowID(rowID)
				}
			}
			if ferr != nil {
				return ferr
			}

			return open.Session(db, sess, hitIdx)
		},
	}

	cmd.Flags().IntVar(&hitIdx, "hit", -1, "Message index to jump to")

	return cmd
}
