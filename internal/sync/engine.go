package sync

import (
	"context"
	"fmt"
	"os"

	"github.com/nmatte/aitally/internal/format"
	"github.com/nmatte/aitally/internal/scan"
	"github.com/nmatte/aitally/internal/session"
	"github.com/nmatte/aitally/internal/store"
)

// Report summarizes one sync run. SkippedRecords and UntypedRecords carry
// the per-line decode counters summed across processed files.
type Report struct {
	Scanned        int
	Updated        int
	Skipped        int
	Stale          int
	Failed         int
	SkippedRecords int
	UntypedRecords int
}

func (r Report) String() string {
	return fmt.Sprintf("scanned=%d updated=%d skipped=%d stale=%d failed=%d",
		r.Scanned, r.Updated, r.Skipped, r.Stale, r.Failed)
}

// Scope restricts a sync run to a subset of sources. An empty scope covers
// every configured root. Workspace filtering is a query-time concern; the
// store always holds all synced sessions.
type Scope struct {
	Sources []format.Source
}

func (s Scope) includes(src format.Source) bool {
	if len(s.Sources) == 0 {
		return true
	}
	for _, x := range s.Sources {
		if x == src {
			return true
		}
	}
	return false
}

// Engine keeps the aggregate store consistent with the source trees. It is
// the sole writer of persisted aggregates. Processing is single-threaded;
// the per-file transaction boundary is what would let per-file work be
// parallelized later.
type Engine struct {
	db       *store.DB
	registry *format.Registry
	roots    scan.Roots
	verbose  bool
}

func NewEngine(db *store.DB, registry *format.Registry, roots scan.Roots) *Engine {
	return &Engine{db: db, registry: registry, roots: roots}
}

// SetVerbose enables per-file warnings on stderr.
func (e *Engine) SetVerbose(v bool) { e.verbose = v }

// Sync walks the configured roots and brings the store up to date.
// Unchanged files are skipped on fingerprint alone; new or changed files
// are decoded and upserted in one transaction each, so cancellation or a
// crash leaves at most the current file unapplied and all prior files
// committed. A failed file never aborts its siblings.
func (e *Engine) Sync(ctx context.Context, scope Scope) (Report, error) {
	var report Report

	roots := e.roots
	if !scope.includes(format.SourceClaude) {
		roots.Claude = ""
	}
	if !scope.includes(format.SourceCodex) {
		roots.Codex = ""
	}
	if !scope.includes(format.SourceGemini) {
		roots.Gemini = ""
	}

	files, err := scan.ScanRoots(roots)
	if err != nil {
		return report, fmt.Errorf("scan: %w", err)
	}
	report.Scanned = len(files)

	seen := make(map[string]struct{}, len(files))

	for _, fi := range files {
		if err := ctx.Err(); err != nil {
			// committed files stay committed; the rest are picked up next run
			return report, err
		}
		seen[fi.Path] = struct{}{}

		stored, err := e.db.Fingerprint(fi.Source, fi.Path)
		if err != nil {
			report.Failed++
			e.warnf("fingerprint %s: %v", fi.Path, err)
			continue
		}
		if !fi.Fingerprint().Changed(stored) {
			report.Skipped++
			continue
		}

		sess, st, err := e.processFile(fi)
		if err != nil {
			report.Failed++
			e.warnf("decode %s: %v", fi.Path, err)
			continue
		}
		report.SkippedRecords += st.Skipped
		report.UntypedRecords += st.Untyped

		if err := e.db.UpsertSession(sess, fi.Fingerprint()); err != nil {
			// store errors fail this file only; prior commits remain valid
			report.Failed++
			e.warnf("upsert %s: %v", fi.Path, err)
			continue
		}
		report.Updated++
	}

	stale, err := e.reconcile(scope, seen)
	if err != nil {
		return report, fmt.Errorf("reconcile: %w", err)
	}
	report.Stale = stale

	return report, nil
}

// processFile decodes one source file into a canonical session.
func (e *Engine) processFile(fi scan.FileInfo) (*session.Session, format.DecodeStats, error) {
	var st format.DecodeStats

	adapter, ok := e.registry.Lookup(fi.Source)
	if !ok {
		return nil, st, fmt.Errorf("no adapter for source %q", fi.Source)
	}

	f, err := os.Open(fi.Path)
	if err != nil {
		return nil, st, err
	}
	defer f.Close()

	events, err := adapter.Decode(f, &st)
	if err != nil {
		return nil, st, err
	}

	sess := session.Build(fi.Source, "", fi.Path, events)
	if sess.ID == "" {
		sess.ID = scan.SessionID(fi.Path)
	}

	root := rootFor(fi.Source, e.roots)
	sess.WorkspaceKey = adapter.WorkspaceKey(format.FileMeta{
		Path:        fi.Path,
		Root:        root,
		Cwd:         sess.Cwd,
		ProjectHash: scan.ProjectHash(fi.Path),
	})
	return sess, st, nil
}

// reconcile marks store records stale when their files are gone from disk.
// Nothing is purged here: data loss must go through the explicit reset
// operation.
func (e *Engine) reconcile(scope Scope, seen map[string]struct{}) (int, error) {
	refs, err := e.db.SyncedFiles(scope.Sources)
	if err != nil {
		return 0, err
	}

	stale := 0
	for _, ref := range refs {
		if ref.Stale {
			continue
		}
		if _, ok := seen[ref.FilePath]; ok {
			continue
		}
		if err := e.db.MarkStale(format.Source(ref.Source), ref.FilePath); err != nil {
			return stale, err
		}
		stale++
	}
	return stale, nil
}

func rootFor(src format.Source, roots scan.Roots) string {
	switch src {
	case format.SourceClaude:
		return roots.Claude
	case format.SourceCodex:
		return roots.Codex
	case format.SourceGemini:
		return roots.Gemini
	}
	return ""
}

func (e *Engine) warnf(msg string, args ...any) {
	if e.verbose {
		fmt.Fprintf(os.Stderr, "  WARN: "+msg+"\n", args...)
	}
}
