package main

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/nmatte/aitally/internal/config"
	"github.com/nmatte/aitally/internal/effort"
	"github.com/nmatte/aitally/internal/format"
	"github.com/nmatte/aitally/internal/session"
	"github.com/nmatte/aitally/internal/store"
)

func showCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <session>",
		Short: "Show one session: metadata, counts, and effort measures",
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

			subs, err := db.Subordinates(sess)
			if err != nil {
				return err
			}

			printSession(sess, subs)

			group, err := loadGroup(cfg, append([]store.SessionRow{*sess}, subs...))
			if err != nil {
				fmt.Fprintf(os.Stderr, "  effort unavailable: %v\n", err)
				return nil
			}

			gap := time.Duration(cfg.GapMinutes) * time.Minute
			res := effort.Compute(group, gap)
			fmt.Printf("\nEffort (gap %s):\n", gap)
			fmt.Printf("  Calendar:    %s\n", res.Calendar.Round(time.Second))
			fmt.Printf("  Simple:      %s\n", res.Simple.Round(time.Second))
			fmt.Printf("  Work period: %s\n", res.WorkPeriod.Round(time.Second))
			for _, p := range res.Periods {
				fmt.Printf("    %s - %s (%s)\n",
					p.Start.Local().Format("2006-01-02 15:04"),
					p.End.Local().Format("15:04"),
					p.Duration().Round(time.Second))
			}
			return nil
		},
	}
	return cmd
}

func printSession(sess *store.SessionRow, subs []store.SessionRow) {
	fmt.Printf("Session:   %s [%s]\n", sess.SessionID, sess.Source)
	fmt.Printf("Workspace: %s\n", sess.Workspace)
	fmt.Printf("File:      %s\n", sess.FilePath)
	if sess.Summary != "" {
		fmt.Printf("Summary:   %s\n", sess.Summary)
	}
	if sess.Model != "" {
		fmt.Printf("Model:     %s\n", sess.Model)
	}
	fmt.Printf("Span:      %s .. %s\n", sess.FirstTs, sess.LastTs)
	fmt.Printf("Messages:  %d (%d user, %d assistant), %d tool calls\n",
		sess.MessageCount, sess.UserCount, sess.AssistantCount, sess.ToolCount)
	fmt.Printf("Tokens:    in=%s out=%s cache-r=%s cache-w=%s\n",
		fmtTokens(sess.Tokens.Input), fmtTokens(sess.Tokens.Output),
		fmtTokens(sess.Tokens.CacheRead), fmtTokens(sess.Tokens.CacheWrite))
	if sess.Stale {
		fmt.Printf("Stale:     source file no longer on disk\n")
	}
	if len(subs) > 0 {
		fmt.Printf("Agents:    %d subordinate session(s)\n", len(subs))
	}
}

// loadGroup re-decodes the source files of a session group so effort can
// walk the merged timeline with full timestamps.
func loadGroup(cfg *config.Config, rows []store.SessionRow) ([]*session.Session, error) {
	registry := format.NewRegistry(cfg.GeminiIndex)

	// one session per file; subordinates may share the parent's file
	seen := make(map[string]struct{})
	var paths []store.SessionRow
	for _, r := range rows {
		if _, ok := seen[r.FilePath]; ok {
			continue
		}
		seen[r.FilePath] = struct{}{}
		paths = append(paths, r)
	}
	sort.Slice(paths, func(i, j int) bool { return paths[i].FirstTs < paths[j].FirstTs })

	var group []*session.Session
	for _, r := range paths {
		adapter, ok := registry.Lookup(format.Source(r.Source))
		if !ok {
			continue
		}
		f, err := os.Open(r.FilePath)
		if err != nil {
			return nil, err
		}
		var st format.DecodeStats
		events, err := adapter.Decode(f, &st)
		f.Close()
		if err != nil {
			return nil, err
		}
		group = append(group, session.Build(format.Source(r.Source), r.SessionID, r.FilePath, events))
	}
	return group, nil
}
