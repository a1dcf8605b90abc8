package open

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/nmatte/aitally/internal/store"
)

// Session opens the original log file in $EDITOR, jumping to the line of
// the given message index when it is known.
func Session(db *store.DB, sess *store.SessionRow, msgIdx int) error {
	if _, err := os.Stat(sess.FilePath); err != nil {
		return fmt.Errorf("file not found: %s", sess.FilePath)
	}

	lineNum := 1
	if msgIdx >= 0 {
		msgs, err := db.Messages(sess.ID)
		if err == nil {
			for _, m := range msgs {
				if m.Idx == msgIdx && m.Line > 0 {
					lineNum = m.Line
					break
				}
			}
		}
	}

	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = "less"
	}

	return openInEditor(editor, sess.FilePath, lineNum)
}

func openInEditor(editor, filePath string, lineNum int) error {
	var cmd *exec.Cmd

	switch {
	case strings.Contains(editor, "vim") || strings.Contains(editor, "nvim"):
		cmd = exec.Command(editor, fmt.Sprintf("+%d", lineNum), filePath)
	case strings.Contains(editor, "code"):
		cmd = exec.Command(editor, "--goto", filePath+":"+strconv.Itoa(lineNum))
	case strings.Contains(editor, "less"):
		cmd = exec.Command(editor, "+"+strconv.Itoa(lineNum), filePath)
	default:
		cmd = exec.Command(editor, filePath)
	}

	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
