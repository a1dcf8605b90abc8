package scan

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/nmatte/aitally/internal/format"
)

// FileInfo identifies one candidate session file plus its fingerprint.
type FileInfo struct {
	Path   string
	Source format.Source
	Mtime  int64
	Size   int64
}

// Fingerprint returns the file's change-detection signature.
func (f FileInfo) Fingerprint() Fingerprint {
	return Fingerprint{Mtime: f.Mtime, Size: f.Size}
}

// Roots maps each source to its directory root. Empty roots are skipped.
type Roots struct {
	Claude string
	Codex  string
	Gemini string
}

// ScanRoots walks all configured roots and returns candidate files. Missing
// roots are not an error; unreadable subtrees are skipped.
func ScanRoots(roots Roots) ([]FileInfo, error) {
	var files []FileInfo

	if roots.Claude != "" {
		cf, err := scanClaude(roots.Claude)
		if err != nil && !os.IsNotExist(err) {
			return nil, err
		}
		files = append(files, cf...)
	}

	if roots.Codex != "" {
		cf, err := scanCodex(roots.Codex)
		if err != nil && !os.IsNotExist(err) {
			return nil, err
		}
		files = append(files, cf...)
	}

	if roots.Gemini != "" {
		gf, err := scanGemini(roots.Gemini)
		if err != nil && !os.IsNotExist(err) {
			return nil, err
		}
		files = append(files, gf...)
	}

	return files, nil
}

func scanClaude(root string) ([]FileInfo, error) {
	var files []FileInfo
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // skip unreadable dirs
		}
		if info.IsDir() {
			if filepath.Base(path) == "subagents" {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".jsonl" {
			return nil
		}
		if strings.Contains(filepath.Base(path), "sessions-index") {
			return nil
		}
		files = append(files, FileInfo{
			Path:   path,
			Source: format.SourceClaude,
			Mtime:  info.ModTime().Unix(),
			Size:   info.Size(),
		})
		return nil
	})
	return files, err
}

func scanCodex(root string) ([]FileInfo, error) {
	var files []FileInfo
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			return nil
		}
		if filepath.Ext(path) != ".jsonl" {
			return nil
		}
		files = append(files, FileInfo{
			Path:   path,
			Source: format.SourceCodex,
			Mtime:  info.ModTime().Unix(),
			Size:   info.Size(),
		})
		return nil
	})
	return files, err
}

// gemini chat files live at <root>/<project-hash>/chats/session-*.json
func scanGemini(root string) ([]FileInfo, error) {
	var files []FileInfo
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			return nil
		}
		if filepath.Ext(path) != ".json" {
			return nil
		}
		if filepath.Base(filepath.Dir(path)) != "chats" {
			return nil
		}
		files = append(files, FileInfo{
			Path:   path,
			Source: format.SourceGemini,
			Mtime:  info.ModTime().Unix(),
			Size:   info.Size(),
		})
		return nil
	})
	return files, err
}

// ProjectHash extracts the gemini project hash from a chat file path.
func ProjectHash(path string) string {
	chats := filepath.Dir(path)
	if filepath.Base(chats) != "chats" {
		return ""
	}
	return filepath.Base(filepath.Dir(chats))
}

// SessionID derives the session identifier from a file path: the file name
// without extension. Not globally unique across products.
func SessionID(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
