package main

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func aliasCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alias",
		Short: "Manage workspace aliases",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set <name> <pattern>",
		Short: "Define an alias for a workspace pattern",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, err := openAll()
			if err != nil {
				return err
			}
			defer db.Close()
			return db.SetAlias(args[0], args[1])
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List defined aliases",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, err := openAll()
			if err != nil {
				return err
			}
			defer db.Close()

			defs, err := db.Aliases()
			if err != nil {
				return err
			}
			if len(defs) == 0 {
				fmt.Fprintln(os.Stderr, "No aliases defined.")
				return nil
			}

			names := make([]string, 0, len(defs))
			for n := range defs {
				names = append(names, n)
			}
			sort.Strings(names)

			w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
			defer w.Flush()
			fmt.Fprintln(w, "ALIAS\tPATTERN")
			for _, n := range names {
				fmt.Fprintf(w, "%s\t%s\n", n, defs[n])
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rm <name>",
		Short: "Remove an alias",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, err := openAll()
			if err != nil {
				return err
			}
			defer db.Close()
			return db.DeleteAlias(args[0])
		},
	})

	return cmd
}
