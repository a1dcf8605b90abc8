package workspace

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
)

// Unresolved is the sentinel workspace key for sessions whose project
// directory cannot be derived (e.g. a project hash with no index entry).
// It is propagated visibly to consumers rather than dropped.
const Unresolved = "(unresolved)"

// KeyFromPath normalizes a working-directory path into a workspace key.
func KeyFromPath(path string) string {
	if path == "" {
		return Unresolved
	}
	key := filepath.ToSlash(filepath.Clean(path))
	key = strings.TrimRight(key, "/")
	if key == "" || key == "." {
		return Unresolved
	}
	return key
}

// DecodeClaudeDir decodes a claude project directory name back into a
// workspace key. Directory names replace every path separator with '-', so
// "-Users-alice-code-my-app" means "/Users/alice/code/my-app". Dashes that
// were part of an original segment are indistinguishable from separators;
// the decoded key is still stable per directory, which is all grouping
// needs.
func DecodeClaudeDir(name string) string {
	if name == "" {
		return Unresolved
	}
	if !strings.HasPrefix(name, "-") {
		// relative or already-plain name
		return KeyFromPath(name)
	}
	return "/" + strings.ReplaceAll(strings.TrimPrefix(name, "-"), "-", "/")
}

// HashIndex resolves project hashes to workspace paths via a side index
// file (JSON object of hash -> path). Missing index or missing entries
// resolve to Unresolved.
type HashIndex struct {
	entries map[string]string
}

// LoadHashIndex reads the index file at path. A missing file yields an
// empty, usable index.
func LoadHashIndex(path string) (*HashIndex, error) {
	idx := &HashIndex{entries: make(map[string]string)}
	if path == "" {
		return idx, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return idx, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(data, &idx.entries); err != nil {
		return nil, err
	}
	return idx, nil
}

// Resolve maps a project hash to a workspace key.
func (i *HashIndex) Resolve(hash string) string {
	if path, ok := i.entries[hash]; ok && path != "" {
		return KeyFromPath(path)
	}
	return Unresolved
}

// Put records a hash mapping. Used by tests and by index refresh.
func (i *HashIndex) Put(hash, path string) {
	i.entries[hash] = path
}

// Match reports whether a workspace key matches a pattern. Patterns are
// either exact keys, substrings, or shell globs against the key's base
// name, so "my-app", "my-*" and "code" all select
// "/Users/alice/code/my-app".
func Match(key, pattern string) bool {
	if pattern == "" || pattern == "*" {
		return true
	}
	if key == pattern {
		return true
	}
	if ok, _ := filepath.Match(pattern, key); ok {
		return true
	}
	if ok, _ := filepath.Match(pattern, filepath.Base(key)); ok {
		return true
	}
	return strings.Contains(key, pattern)
}

// AliasStore is the key-value surface the resolver reads alias definitions
// from. The sqlite store implements it.
type AliasStore interface {
	Aliases() (map[string]string, error)
}

// Resolver expands a requested pattern or alias into the matching set of
// known workspace keys.
type Resolver struct {
	aliases AliasStore
}

func NewResolver(aliases AliasStore) *Resolver {
	return &Resolver{aliases: aliases}
}

// Expand resolves pattern against known keys. If pattern names an alias,
// the alias value is used as the pattern instead.
func (r *Resolver) Expand(pattern string, known []string) ([]string, error) {
	if r.aliases != nil {
		defs, err := r.aliases.Aliases()
		if err != nil {
			return nil, err
		}
		if v, ok := defs[pattern]; ok {
			pattern = v
		}
	}
	var out []string
	for _, k := range known {
		if Match(k, pattern) {
			out = append(out, k)
		}
	}
	return out, nil
}
