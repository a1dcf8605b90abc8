package tui

import (
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nmatte/aitally/internal/render"
	"github.com/nmatte/aitally/internal/search"
	"github.com/nmatte/aitally/internal/store"
)

// previewRenderedMsg is sent when an async preview render completes.
type previewRenderedMsg struct {
	rowID   int64
	msgIdx  int
	content string
	hitLine int
	err     error
}

// loadPreviewCmd returns a tea.Cmd that renders the transcript preview async.
func loadPreviewCmd(db *store.DB, r search.Result, query string, width int) tea.Cmd {
	return func() tea.Msg {
		sess, err := db.SessionByRowID(r.RowID)
		if err != nil {
			return previewRenderedMsg{rowID: r.RowID, msgIdx: r.MsgIdx, err: err}
		}
		content, hitLine, err := render.Transcript(db, sess, render.Options{
			HitIdx:  r.MsgIdx,
			Context: -1,
			Width:   width,
			Query:   query,
		})
		return previewRenderedMsg{
			rowID:   r.RowID,
			msgIdx:  r.MsgIdx,
			content: content,
			hitLine: hitLine,
			err:     err,
		}
	}
}

// newViewport creates a new viewport model with the given dimensions.
func newViewport(width, height int) viewport.Model {
	vp := viewport.New(width, height)
	vp.Style = stylePanelBorder
	return vp
}
