package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/nmatte/aitally/internal/config"
	"github.com/nmatte/aitally/internal/format"
	"github.com/nmatte/aitally/internal/scan"
	"github.com/nmatte/aitally/internal/store"
	"github.com/nmatte/aitally/internal/sync"
	"github.com/nmatte/aitally/internal/workspace"
)

// openAll loads config and opens the store. Callers own db.Close.
func openAll() (*config.Config, *store.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	db, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, nil, err
	}
	return cfg, db, nil
}

func newEngine(cfg *config.Config, db *store.DB) *sync.Engine {
	registry := format.NewRegistry(cfg.GeminiIndex)
	roots := scan.Roots{
		Claude: cfg.ClaudeRoot,
		Codex:  cfg.CodexRoot,
		Gemini: cfg.GeminiRoot,
	}
	return sync.NewEngine(db, registry, roots)
}

// parseSources maps --source values to a sync scope / list filter.
func parseSources(sources []string) []format.Source {
	var out []format.Source
	for _, s := range sources {
		if s != "" {
			out = append(out, format.Source(s))
		}
	}
	return out
}

// resolveWorkspaces expands a workspace pattern or alias into the matching
// known keys. An empty pattern selects everything.
func resolveWorkspaces(db *store.DB, pattern string) ([]string, error) {
	if pattern == "" {
		return nil, nil
	}
	known, err := db.WorkspaceKeys()
	if err != nil {
		return nil, err
	}
	return workspace.NewResolver(db).Expand(pattern, known)
}

// signalContext cancels on SIGINT/SIGTERM so a long sync stops between
// files with all prior commits intact.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
