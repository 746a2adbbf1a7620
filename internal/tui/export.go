package tui

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"stateflow/internal/geometry"
	"stateflow/internal/interaction"
	"stateflow/internal/notify"
	"stateflow/internal/render"
	"stateflow/internal/scene"
)

// Snapshot draws the whole scene at zoom 1 with a one cell margin, without
// cursor or selection. Trailing blanks are trimmed from every line.
func Snapshot(sc scene.Scene) ([]string, error) {
	b, ok := sc.Bounds()
	if !ok {
		return nil, render.ErrEmpty
	}
	view := interaction.Viewport{
		Zoom: 1,
		Pan:  geometry.Pt(CellWidth-b.Left(), CellHeight-b.Top()),
	}
	w := int(math.Ceil((b.Right()-b.Left())/CellWidth)) + 3
	h := int(math.Ceil((b.Bottom()-b.Top())/CellHeight)) + 3

	lines := draw(Frame{Scene: sc, View: view}, w, h).Plain()
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " ")
	}
	return lines, nil
}

// WriteSnapshot writes Snapshot to path, one line per row.
func WriteSnapshot(path string, sc scene.Scene) error {
	lines, err := Snapshot(sc)
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644)
}

// slug turns a workflow name into a file name stem.
func slug(name string) string {
	s := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		case r == ' ':
			return '-'
		}
		return -1
	}, name)
	if s == "" {
		return "workflow"
	}
	return s
}

func (m *Model) exportPath(ext string) string {
	return filepath.Join(m.opts.ExportDir, slug(m.sess.Workflow().Name)+ext)
}

func (m *Model) exportPNG() {
	path := m.exportPath(".png")
	if err := render.SavePNG(path, m.sess.Scene(), render.Options{}); err != nil {
		m.report(fmt.Errorf("export png: %w", err))
		return
	}
	m.opts.Status.Notify(notify.Success, "exported "+path)
}

func (m *Model) exportText() {
	path := m.exportPath(".txt")
	if err := WriteSnapshot(path, m.sess.Scene()); err != nil {
		m.report(fmt.Errorf("export text: %w", err))
		return
	}
	m.opts.Status.Notify(notify.Success, "exported "+path)
}
