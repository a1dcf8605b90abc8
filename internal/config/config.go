package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
)

type Config struct {
	ClaudeRoot  string `toml:"claude_root"`
	CodexRoot   string `toml:"codex_root"`
	GeminiRoot  string `toml:"gemini_root"`
	GeminiIndex string `toml:"gemini_index"` // project-hash side index
	DBPath      string `toml:"db_path"`
	GapMinutes  int    `toml:"gap_minutes"` // work-period inactivity threshold
}

// Load reads ~/.config/aitally/config.toml over built-in defaults, then
// applies AITALLY_* environment overrides. Environment wins so tests and
// one-off runs can redirect roots without touching the config file.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		ClaudeRoot:  filepath.Join(home, ".claude", "projects"),
		CodexRoot:   filepath.Join(home, ".codex", "sessions"),
		GeminiRoot:  filepath.Join(home, ".gemini", "tmp"),
		GeminiIndex: filepath.Join(home, ".gemini", "tmp", "projects.json"),
		DBPath:      filepath.Join(home, ".config", "aitally", "aitally.db"),
		GapMinutes:  5,
	}

	cfgPath := filepath.Join(home, ".config", "aitally", "config.toml")
	if _, err := os.Stat(cfgPath); err == nil {
		if _, err := toml.DecodeFile(cfgPath, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", cfgPath, err)
		}
	}

	applyEnv(cfg)

	// expand ~ in paths
	cfg.ClaudeRoot = expandHome(cfg.ClaudeRoot, home)
	cfg.CodexRoot = expandHome(cfg.CodexRoot, home)
	cfg.GeminiRoot = expandHome(cfg.GeminiRoot, home)
	cfg.GeminiIndex = expandHome(cfg.GeminiIndex, home)
	cfg.DBPath = expandHome(cfg.DBPath, home)

	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("AITALLY_CLAUDE_ROOT"); v != "" {
		cfg.ClaudeRoot = v
	}
	if v := os.Getenv("AITALLY_CODEX_ROOT"); v != "" {
		cfg.CodexRoot = v
	}
	if v := os.Getenv("AITALLY_GEMINI_ROOT"); v != "" {
		cfg.GeminiRoot = v
	}
	if v := os.Getenv("AITALLY_GEMINI_INDEX"); v != "" {
		cfg.GeminiIndex = v
	}
	if v := os.Getenv("AITALLY_DB"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("AITALLY_GAP_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.GapMinutes = n
		}
	}
}

func expandHome(path, home string) string {
	if len(path) > 1 && path[0] == '~' && path[1] == '/' {
		return filepath.Join(home, path[2:])
	}
	return path
}
