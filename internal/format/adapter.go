package format

import (
	"io"
	"time"
)

// FileMeta is the raw session metadata an adapter derives a workspace key
// from. Which field matters depends on the format: claude encodes the
// project path in the directory name, codex records a cwd field, gemini
// records a project hash resolved through a side index.
type FileMeta struct {
	Path        string // absolute path of the session file
	Root        string // format root the file was found under
	Cwd         string // working directory captured from records, if any
	ProjectHash string
}

// Adapter decodes one product's on-disk records into canonical events.
// Malformed records are counted in DecodeStats and skipped, never fatal to
// the containing file. Unknown record types are ignored.
type Adapter interface {
	Source() Source

	// Decode reads one session file to completion and returns its events in
	// file order. A returned error means the whole file is undecodable;
	// per-record failures are counted in st instead.
	Decode(r io.Reader, st *DecodeStats) ([]CanonicalEvent, error)

	// WorkspaceKey derives the normalized workspace key for a session file.
	// Returns workspace.Unresolved when the key cannot be derived.
	WorkspaceKey(meta FileMeta) string
}

// Registry maps sources to adapters. Scope/backend selection is passed
// around explicitly rather than read from ambient state, so tests can run
// several registries in one process.
type Registry struct {
	adapters map[Source]Adapter
}

// NewRegistry returns a registry with the three built-in adapters.
// geminiIndex may be empty; the gemini adapter then resolves every project
// hash to the unresolved sentinel.
func NewRegistry(geminiIndex string) *Registry {
	r := &Registry{adapters: make(map[Source]Adapter)}
	r.Register(NewClaudeAdapter())
	r.Register(NewCodexAdapter())
	r.Register(NewGeminiAdapter(geminiIndex))
	return r
}

// Register adds or replaces the adapter for its source.
func (r *Registry) Register(a Adapter) {
	r.adapters[a.Source()] = a
}

// Lookup returns the adapter for a source.
func (r *Registry) Lookup(s Source) (Adapter, bool) {
	a, ok := r.adapters[s]
	return a, ok
}

// Sources returns the registered sources in stable order.
func (r *Registry) Sources() []Source {
	all := []Source{SourceClaude, SourceCodex, SourceGemini}
	var out []Source
	for _, s := range all {
		if _, ok := r.adapters[s]; ok {
			out = append(out, s)
		}
	}
	return out
}

// parseTimestamp accepts the timestamp shapes seen across all three
// formats. Returns the zero time for empty or unparsable input; absence is
// legal for some record kinds.
func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02T15:04:05", s); err == nil {
		return t
	}
	return time.Time{}
}
