package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nmatte/aitally/internal/config"
	"github.com/nmatte/aitally/internal/format"
	"github.com/nmatte/aitally/internal/scan"
	"github.com/nmatte/aitally/internal/store"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Self-check: verify roots, DB, FTS5, and show stats",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}

			// check roots
			fmt.Println("=== Roots ===")
			checkDir("Claude", cfg.ClaudeRoot)
			checkDir("Codex", cfg.CodexRoot)
			checkDir("Gemini", cfg.GeminiRoot)
			if _, err := os.Stat(cfg.GeminiIndex); err != nil {
				fmt.Printf("  Gemini index: %s (NOT FOUND, project hashes stay unresolved)\n", cfg.GeminiIndex)
			} else {
				fmt.Printf("  Gemini index: %s (OK)\n", cfg.GeminiIndex)
			}

			// scan file counts
			fmt.Println("\n=== File Scan ===")
			files, err := scan.ScanRoots(scan.Roots{
				Claude: cfg.ClaudeRoot,
				Codex:  cfg.CodexRoot,
				Gemini: cfg.GeminiRoot,
			})
			if err != nil {
				fmt.Printf("  scan error: %v\n", err)
			} else {
				counts := map[format.Source]int{}
				for _, f := range files {
					counts[f.Source]++
				}
				fmt.Printf("  Claude JSONL files: %d\n", counts[format.SourceClaude])
				fmt.Printf("  Codex  JSONL files: %d\n", counts[format.SourceCodex])
				fmt.Printf("  Gemini JSON  files: %d\n", counts[format.SourceGemini])
			}

			// check DB
			fmt.Println("\n=== Database ===")
			fmt.Printf("  Path: %s\n", cfg.DBPath)
			if _, err := os.Stat(cfg.DBPath); os.IsNotExist(err) {
				fmt.Println("  Status: NOT FOUND (run 'aitally sync' first)")
				return nil
			}

			db, err := store.Open(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			defer db.Close()

			sessionCount, err := db.SessionCount()
			if err != nil {
				return fmt.Errorf("count sessions: %w", err)
			}

			messageCount, err := db.MessageCount()
			if err != nil {
				return fmt.Errorf("count messages: %w", err)
			}

			staleCount, err := db.StaleCount()
			if err != nil {
				return fmt.Errorf("count stale: %w", err)
			}

			fmt.Printf("  Sessions: %d\n", sessionCount)
			fmt.Printf("  Messages: %d\n", messageCount)
			if staleCount > 0 {
				fmt.Printf("  Stale:    %d (run 'aitally reset --stale' to purge)\n", staleCount)
			}

			// check FTS5
			fmt.Println("\n=== FTS5 ===")
			var ftsCount int
			err = db.Raw().QueryRow("SELECT COUNT(*) FROM messages_fts").Scan(&ftsCount)
			if err != nil {
				fmt.Printf("  FTS5 error: %v\n", err)
			} else {
				fmt.Printf("  FTS5 entries: %d\n", ftsCount)
				if ftsCount == messageCount {
					fmt.Println("  Status: OK (synced)")
				} else {
					fmt.Printf("  Status: MISMATCH (messages=%d, fts=%d)\n", messageCount, ftsCount)
				}
			}

			// check DB file size
			if info, err := os.Stat(cfg.DBPath); err == nil {
				sizeMB := float64(info.Size()) / 1024 / 1024
				fmt.Printf("\n=== DB Size: %.1f MB ===\n", sizeMB)
			}

			return nil
		},
	}
}

func checkDir(name, path string) {
	if info, err := os.Stat(path); err != nil {
		fmt.Printf("  %s: %s (NOT FOUND)\n", name, path)
	} else if !info.IsDir() {
		fmt.Printf("  %s: %s (NOT A DIRECTORY)\n", name, path)
	} else {
		fmt.Printf("  %s: %s (OK)\n", name, path)
	}
}
