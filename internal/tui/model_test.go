package tui

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stateflow/internal/clipboard"
	"stateflow/internal/editor"
	"stateflow/internal/idgen"
	"stateflow/internal/interaction"
	"stateflow/internal/layout"
	"stateflow/internal/model"
	"stateflow/internal/notify"
	"stateflow/internal/persistence/file"
	"stateflow/internal/scene"
)

type fixture struct {
	m    Model
	sess *editor.Session
	rec  *notify.Recorder
	dir  string
	now  time.Time
}

// newFixture opens an empty workflow on a 100x31 terminal. The view is
// centered on the world origin, so cell (50,15) maps to world (4,8).
func newFixture(t *testing.T, confirm bool) *fixture {
	t.Helper()
	ctx := context.Background()
	gw := file.New(t.TempDir())
	_, err := gw.CreateWorkflow(ctx, model.Workflow{ID: "wf-1", OrgID: "org", Name: "Release Flow"})
	require.NoError(t, err)

	rec := &notify.Recorder{}
	sess, err := editor.Open(ctx, "wf-1", editor.Options{
		Gateway:  gw,
		Layout:   layout.NewStore(layout.NewCacheBackend(), nil),
		Notifier: rec,
		IDs:      idgen.Sequence(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sess.Close() })

	f := &fixture{sess: sess, rec: rec, dir: t.TempDir(), now: time.Unix(1700000000, 0)}
	f.m = New(sess, Options{
		Status:        rec,
		Clipboard:     clipboard.NewLocal(),
		Confirmations: confirm,
		ExportDir:     f.dir,
		Now:           func() time.Time { return f.now },
	})
	f.send(tea.WindowSizeMsg{Width: 100, Height: 31})
	return f
}

func (f *fixture) send(msg tea.Msg) tea.Cmd {
	next, cmd := f.m.Update(msg)
	f.m = next.(Model)
	return cmd
}

func (f *fixture) keys(keys ...string) {
	for _, k := range keys {
		f.send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)})
	}
}

func (f *fixture) drag(x0, y0, x1, y1 int) {
	f.now = f.now.Add(time.Second)
	f.send(tea.MouseMsg{X: x0, Y: y0, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft})
	f.send(tea.MouseMsg{X: x1, Y: y1, Action: tea.MouseActionMotion, Button: tea.MouseButtonLeft})
	f.send(tea.MouseMsg{X: x1, Y: y1, Action: tea.MouseActionRelease})
}

func (f *fixture) only(t *testing.T) model.State {
	t.Helper()
	states := f.sess.Graph().States
	require.Len(t, states, 1)
	return states[0]
}

func TestAddStateAtCursor(t *testing.T) {
	f := newFixture(t, false)
	f.keys("n")
	st := f.only(t)
	assert.Equal(t, "State", st.Name)
	assert.Equal(t, 4.0, st.X)
	assert.Equal(t, 8.0, st.Y)
	assert.Equal(t, scene.NodeSelection(st.ID), f.m.Controller().Selection())
	assert.Contains(t, f.m.StatusText(), `Selected: state "State"`)

	f.keys("l", "l", "s")
	start, ok := f.sess.Graph().StateByName("Start")
	require.True(t, ok)
	assert.Equal(t, model.StateTypeStart, start.StateType)
	assert.Equal(t, 20.0, start.X)
}

func TestMouseDragMovesState(t *testing.T) {
	f := newFixture(t, false)
	f.keys("n")
	f.drag(50, 15, 60, 15)

	st := f.only(t)
	assert.Equal(t, 84.0, st.X)
	assert.Equal(t, 8.0, st.Y)

	f.keys("u")
	assert.Equal(t, 4.0, f.only(t).X)
	f.keys("U")
	assert.Equal(t, 84.0, f.only(t).X)
}

func TestDeleteAsksFirst(t *testing.T) {
	f := newFixture(t, true)
	f.keys("n", "d")
	assert.Equal(t, ModeConfirm, f.m.Mode())
	assert.Contains(t, f.m.StatusText(), `Delete state "State"?`)

	f.keys("n")
	assert.Equal(t, ModeNormal, f.m.Mode())
	f.only(t)

	f.keys("d", "y")
	assert.Empty(t, f.sess.Graph().States)
	assert.True(t, f.m.Controller().Selection().Empty())
}

func TestRename(t *testing.T) {
	f := newFixture(t, false)
	f.keys("n", "r")
	require.Equal(t, ModeInput, f.m.Mode())
	assert.Contains(t, f.m.StatusText(), "Rename: State█")

	for range len("State") {
		f.send(tea.KeyMsg{Type: tea.KeyBackspace})
	}
	f.keys("Draft")
	f.send(tea.KeyMsg{Type: tea.KeySpace})
	f.keys("1")
	f.send(tea.KeyMsg{Type: tea.KeyEnter})

	assert.Equal(t, ModeNormal, f.m.Mode())
	assert.Equal(t, "Draft 1", f.only(t).Name)
}

func TestRenameCollisionIsReported(t *testing.T) {
	f := newFixture(t, false)
	f.keys("n", "l", "n", "r")
	for range len("State 2") {
		f.send(tea.KeyMsg{Type: tea.KeyBackspace})
	}
	f.keys("State")
	f.send(tea.KeyMsg{Type: tea.KeyEnter})

	msg, ok := f.rec.Last()
	require.True(t, ok)
	assert.Equal(t, notify.Error, msg.Kind)
	assert.Contains(t, f.m.StatusText(), "ERROR:")
}

func TestConnectAndStyleTransition(t *testing.T) {
	f := newFixture(t, false)
	f.keys("n")
	for range 40 {
		f.keys("l")
	}
	f.keys("n", "a")
	assert.Equal(t, interaction.ModeConnect, f.m.Controller().Mode())
	f.drag(50, 15, 90, 15)

	g := f.sess.Graph()
	require.Len(t, g.Transitions, 1)
	tr := g.Transitions[0]
	from, _ := g.State(tr.FromStateID)
	to, _ := g.State(tr.ToStateID)
	assert.Equal(t, "State", from.Name)
	assert.Equal(t, "State 2", to.Name)
	assert.Equal(t, scene.EdgeSelection(tr.ID), f.m.Controller().Selection())

	f.keys("A", "t", "y")
	tr, _ = f.sess.Transition(tr.ID)
	assert.Equal(t, model.ArrowOpen, tr.Line.ArrowHead)
	assert.Equal(t, model.PathElbow, tr.Line.PathType)
	assert.Equal(t, model.LineDashed, tr.Line.Style)

	f.keys("g", "QA")
	f.send(tea.KeyMsg{Type: tea.KeyEnter})
	require.Len(t, f.sess.Graph().GatesOf(tr.ID), 1)
	f.keys("G")
	assert.Empty(t, f.sess.Graph().GatesOf(tr.ID))

	f.send(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, interaction.ModeSelect, f.m.Controller().Mode())
}

func TestCopyPaste(t *testing.T) {
	f := newFixture(t, false)
	f.keys("n", "c")
	assert.Contains(t, f.m.StatusText(), "copied state")
	f.keys("p")

	pasted, ok := f.sess.Graph().StateByName("State copy")
	require.True(t, ok)
	assert.Equal(t, 44.0, pasted.X)
	assert.Equal(t, scene.NodeSelection(pasted.ID), f.m.Controller().Selection())
}

func TestTabCyclesStates(t *testing.T) {
	f := newFixture(t, false)
	f.keys("n", "l", "n")
	f.send(tea.KeyMsg{Type: tea.KeyEsc})
	assert.True(t, f.m.Controller().Selection().Empty())

	f.send(tea.KeyMsg{Type: tea.KeyTab})
	first := f.m.Controller().Selection()
	f.send(tea.KeyMsg{Type: tea.KeyTab})
	second := f.m.Controller().Selection()
	assert.NotEqual(t, first, second)
	f.send(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, first, f.m.Controller().Selection())
}

func TestPanKeySavesViewport(t *testing.T) {
	f := newFixture(t, false)
	f.keys("H")
	cfg := f.sess.Workflow().CanvasConfig
	assert.Equal(t, 432.0, cfg.PanX)
	assert.Equal(t, 240.0, cfg.PanY)

	f.keys("+")
	assert.InDelta(t, ZoomStep, f.sess.Workflow().CanvasConfig.Zoom, 1e-9)
	f.keys("0")
	assert.InDelta(t, 1, f.sess.Workflow().CanvasConfig.Zoom, 1e-9)
}

func TestWheelZooms(t *testing.T) {
	f := newFixture(t, false)
	f.send(tea.MouseMsg{X: 10, Y: 10, Action: tea.MouseActionPress, Button: tea.MouseButtonWheelUp})
	assert.InDelta(t, ZoomStep, f.m.Controller().Viewport().Zoom, 1e-9)
	f.send(tea.MouseMsg{X: 10, Y: 10, Action: tea.MouseActionPress, Button: tea.MouseButtonWheelDown})
	assert.InDelta(t, 1, f.m.Controller().Viewport().Zoom, 1e-9)
}

func TestExportPNG(t *testing.T) {
	f := newFixture(t, false)
	f.keys("n", "P")
	path := filepath.Join(f.dir, "release-flow.png")
	_, err := os.Stat(path)
	require.NoError(t, err)
	assert.Contains(t, f.m.StatusText(), "exported")
}

func TestHelpAndQuit(t *testing.T) {
	f := newFixture(t, false)
	f.keys("?")
	assert.Equal(t, ModeHelp, f.m.Mode())
	assert.True(t, strings.HasPrefix(f.m.View(), "stateflow help"))
	f.keys("j")
	assert.Contains(t, f.m.View(), "Help (2-")

	f.keys("q")
	assert.Equal(t, ModeNormal, f.m.Mode())

	cmd := f.send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestQuitConfirmation(t *testing.T) {
	f := newFixture(t, true)
	assert.Nil(t, f.send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")}))
	assert.Contains(t, f.m.StatusText(), "Quit stateflow?")
	cmd := f.send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("y")})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestViewRendersCanvasAndStatus(t *testing.T) {
	f := newFixture(t, false)
	f.keys("n")
	view := f.m.View()
	lines := strings.Split(view, "\n")
	assert.Len(t, lines, 31)
	assert.Contains(t, lines[30], "Mode: SELECT")
	assert.Contains(t, view, "State")
}

func TestExportText(t *testing.T) {
	f := newFixture(t, false)
	f.keys("T")
	assert.Contains(t, f.m.StatusText(), "ERROR:")

	f.keys("n", "T")
	data, err := os.ReadFile(filepath.Join(f.dir, "release-flow.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "State")
}
