package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nmatte/aitally/internal/export"
	"github.com/nmatte/aitally/internal/format"
)

func exportCmd() *cobra.Command {
	var outDir string
	var target int

	cmd := &cobra.Command{
		Use:   "export <session>",
		Short: "Export a session transcript as markdown, split into readable parts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, db, err := openAll()
			if err != nil {
				return err
			}
			defer db.Close()

			sess, err := db.FindSession(args[0])
			if err != nil {
				return err
			}

			w := &export.Writer{
				Registry:   format.NewRegistry(cfg.GeminiIndex),
				TargetSize: target,
			}
			paths, err := w.Export(sess, outDir)
			if err != nil {
				return err
			}
			for _, p := range paths {
				fmt.Println(p)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "Output directory")
	cmd.Flags().IntVar(&target, "target", 0, "Target part size in display cells (0 = default)")

	return cmd
}
