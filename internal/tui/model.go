// Package tui is the terminal canvas. Mouse gestures go through the
// interaction controller, keys map straight onto editor commands, and the
// current scene is rasterized to cells on every frame.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"stateflow/internal/clipboard"
	"stateflow/internal/editor"
	"stateflow/internal/geometry"
	"stateflow/internal/interaction"
	"stateflow/internal/model"
	"stateflow/internal/notify"
	"stateflow/internal/scene"
)

const (
	DoubleClickInterval = 400 * time.Millisecond
	StatusRefresh       = 500 * time.Millisecond
	ZoomStep            = 1.25
)

type Mode int

const (
	ModeNormal Mode = iota
	ModeInput
	ModeConfirm
	ModeHelp
)

type inputAction int

const (
	inputRename inputAction = iota
	inputGate
)

type confirmAction int

const (
	confirmDelete confirmAction = iota
	confirmQuit
)

type Options struct {
	// Status receives local errors and is shown in the status line. The
	// session should report to it as well.
	Status        *notify.Recorder
	Clipboard     *clipboard.Board
	Confirmations bool
	// ExportDir is where P writes PNG snapshots.
	ExportDir string
	Logger    *zap.Logger
	Now       func() time.Time
}

type Model struct {
	sess *editor.Session
	ctrl *interaction.Controller
	opts Options
	log  *zap.Logger
	pal  palette

	width    int
	height   int
	centered bool
	cursorX  int
	cursorY  int

	mode          Mode
	input         string
	inputAction   inputAction
	confirmAction confirmAction
	confirmSel    scene.Selection
	helpScroll    int

	seen      int
	lastPress time.Time
	lastCell  [2]int
	pressed   bool
}

type tickMsg time.Time

func New(sess *editor.Session, opts Options) Model {
	if opts.Status == nil {
		opts.Status = &notify.Recorder{}
	}
	if opts.Clipboard == nil {
		opts.Clipboard = clipboard.NewLocal()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	ctrl := interaction.New(sess)
	cfg := sess.Workflow().CanvasConfig
	ctrl.SetViewport(interaction.ViewportFrom(cfg))
	return Model{
		sess:     sess,
		ctrl:     ctrl,
		opts:     opts,
		log:      opts.Logger,
		pal:      newPalette(),
		centered: cfg.Zoom != 0,
	}
}

// Run starts the program on the alternate screen with mouse support.
func Run(m Model) error {
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, err := p.Run()
	return err
}

func tick() tea.Cmd {
	return tea.Tick(StatusRefresh, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Init() tea.Cmd {
	return tick()
}

func (m Model) Controller() *interaction.Controller { return m.ctrl }
func (m Model) Mode() Mode                          { return m.mode }

func (m Model) canvasHeight() int { return max(m.height-1, 1) }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		if !m.centered {
			m.center()
			m.centered = true
		}
		m.clampCursor()
		return m, nil

	case tickMsg:
		return m, tick()

	case tea.MouseMsg:
		if m.mode == ModeNormal {
			m.mouse(msg)
		}
		return m, nil

	case tea.KeyMsg:
		m.seen = len(m.opts.Status.Messages())
		switch m.mode {
		case ModeHelp:
			return m.helpKey(msg)
		case ModeInput:
			return m.inputKey(msg)
		case ModeConfirm:
			return m.confirmKey(msg)
		}
		return m.normalKey(msg)
	}
	return m, nil
}

// center pans so the middle of the scene is in the middle of the screen.
func (m *Model) center() {
	mid := geometry.Point{}
	if b, ok := m.sess.Scene().Bounds(); ok {
		mid = b.Center
	}
	view := m.ctrl.Viewport()
	screen := geometry.Pt(float64(m.width)*CellWidth/2, float64(m.canvasHeight())*CellHeight/2)
	view.Pan = screen.Sub(mid.Scale(view.Zoom))
	m.ctrl.SetViewport(view)
	m.cursorX, m.cursorY = m.width/2, m.canvasHeight()/2
}

func (m *Model) clampCursor() {
	m.cursorX = min(max(m.cursorX, 0), max(m.width-1, 0))
	m.cursorY = min(max(m.cursorY, 0), m.canvasHeight()-1)
}

// cursorWorld is the world point under the keyboard cursor.
func (m Model) cursorWorld() geometry.Point {
	return m.ctrl.Viewport().ScreenToWorld(CellCenter(m.cursorX, m.cursorY))
}

func (m *Model) report(err error) {
	if err != nil {
		m.log.Debug("command failed", zap.Error(err))
		notify.Errorf(m.opts.Status, "%v", err)
	}
	if sel := m.sess.Selection(); sel != m.ctrl.Selection() {
		m.ctrl.Select(sel)
	}
}

func (m *Model) saveViewport() {
	m.report(m.sess.SetViewport(m.ctrl.Viewport().Config()))
}

func (m *Model) mouse(msg tea.MouseMsg) {
	screen := CellCenter(msg.X, msg.Y)
	sc := m.sess.Scene()

	switch {
	case msg.Button == tea.MouseButtonWheelUp:
		m.ctrl.ZoomAt(screen, ZoomStep)
		m.saveViewport()
	case msg.Button == tea.MouseButtonWheelDown:
		m.ctrl.ZoomAt(screen, 1/ZoomStep)
		m.saveViewport()

	case msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft:
		m.cursorX, m.cursorY = msg.X, msg.Y
		now := m.opts.Now()
		at := [2]int{msg.X, msg.Y}
		if at == m.lastCell && now.Sub(m.lastPress) < DoubleClickInterval {
			m.lastPress = time.Time{}
			m.report(m.ctrl.DoubleClick(sc, screen))
			return
		}
		m.lastPress, m.lastCell = now, at
		m.ctrl.PointerDown(sc, screen)
		m.pressed = true

	case msg.Action == tea.MouseActionMotion:
		if m.pressed {
			m.ctrl.PointerMove(sc, screen)
		}

	case msg.Action == tea.MouseActionRelease:
		if !m.pressed {
			return
		}
		m.pressed = false
		panning := m.ctrl.Mode() == interaction.ModePan && m.ctrl.Dragging()
		m.report(m.ctrl.PointerUp(sc, screen))
		if panning {
			m.saveViewport()
		}
	}
}

func (m Model) normalKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	sel := m.ctrl.Selection()
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "q":
		if m.opts.Confirmations {
			m.mode, m.confirmAction = ModeConfirm, confirmQuit
			return m, nil
		}
		return m, tea.Quit
	case "?":
		m.mode, m.helpScroll = ModeHelp, 0
	case "esc":
		switch {
		case m.pressed || m.ctrl.Dragging():
			m.pressed = false
			m.ctrl.Cancel()
		case m.ctrl.Mode() != interaction.ModeSelect:
			m.ctrl.SetMode(interaction.ModeSelect)
		default:
			m.ctrl.Select(scene.Selection{})
		}

	case "h", "left":
		m.cursorX--
		m.clampCursor()
	case "l", "right":
		m.cursorX++
		m.clampCursor()
	case "k", "up":
		m.cursorY--
		m.clampCursor()
	case "j", "down":
		m.cursorY++
		m.clampCursor()
	case "H", "L", "K", "J":
		d := map[string]geometry.Point{
			"H": geometry.Pt(4*CellWidth, 0),
			"L": geometry.Pt(-4*CellWidth, 0),
			"K": geometry.Pt(0, 2*CellHeight),
			"J": geometry.Pt(0, -2*CellHeight),
		}[msg.String()]
		m.ctrl.SetViewport(m.ctrl.Viewport().PanBy(d))
		m.saveViewport()
	case "+", "=":
		m.ctrl.ZoomAt(CellCenter(m.cursorX, m.cursorY), ZoomStep)
		m.saveViewport()
	case "-":
		m.ctrl.ZoomAt(CellCenter(m.cursorX, m.cursorY), 1/ZoomStep)
		m.saveViewport()
	case "0":
		m.ctrl.ZoomAt(CellCenter(m.cursorX, m.cursorY), 1/m.ctrl.Viewport().Zoom)
		m.saveViewport()
	case "z":
		m.toggleMode(interaction.ModePan)
	case "a":
		m.toggleMode(interaction.ModeConnect)
	case "R":
		m.toggleMode(interaction.ModeResize)

	case "n":
		m.addState(model.StateTypeState)
	case "s":
		m.addState(model.StateTypeStart)
	case "e":
		m.addState(model.StateTypeEnd)
	case "tab":
		m.cycleNodes()
	case "enter", "r":
		if name, ok := m.selectedName(sel); ok {
			m.mode, m.inputAction, m.input = ModeInput, inputRename, name
		}
	case "d", "x", "delete":
		if sel.Empty() {
			return m, nil
		}
		if m.opts.Confirmations {
			m.mode, m.confirmAction, m.confirmSel = ModeConfirm, confirmDelete, sel
			return m, nil
		}
		m.report(m.sess.Delete(sel))

	case "A":
		m.onEdge(sel, m.sess.CycleArrow)
	case "t":
		m.onEdge(sel, m.sess.TogglePathType)
	case "y":
		m.onEdge(sel, m.sess.CycleLineStyle)
	case "o":
		m.onEdge(sel, m.sess.ResetRoute)
	case "g":
		if sel.Kind == scene.SelectEdge {
			m.mode, m.inputAction, m.input = ModeInput, inputGate, ""
		}
	case "G":
		m.onEdge(sel, func(id string) error {
			gates := m.sess.Graph().GatesOf(id)
			if len(gates) == 0 {
				return nil
			}
			return m.sess.DeleteGate(id, gates[len(gates)-1].ID)
		})

	case "c":
		m.copy(sel)
	case "p":
		m.paste()
	case "u":
		_, err := m.sess.Undo()
		m.report(err)
	case "U":
		_, err := m.sess.Redo()
		m.report(err)
	case "#":
		snap := m.sess.Layout().Snap
		snap.Enabled = !snap.Enabled
		m.report(m.sess.SetSnap(snap))
	case "P":
		m.exportPNG()
	case "T":
		m.exportText()
	case "ctrl+r":
		m.report(m.sess.Reconcile(context.Background()))
	}
	return m, nil
}

func (m *Model) toggleMode(mode interaction.Mode) {
	if m.ctrl.Mode() == mode {
		mode = interaction.ModeSelect
	}
	m.pressed = false
	m.ctrl.SetMode(mode)
}

func (m *Model) addState(typ model.StateType) {
	st, err := m.sess.AddStateOfType(typ, "", m.cursorWorld())
	if err == nil {
		m.ctrl.Select(scene.NodeSelection(st.ID))
	}
	m.report(err)
}

// cycleNodes selects the next state in sort order.
func (m *Model) cycleNodes() {
	states := m.sess.Graph().SortedStates()
	if len(states) == 0 {
		return
	}
	next := 0
	sel := m.ctrl.Selection()
	for i, s := range states {
		if sel.IsNode(s.ID) {
			next = (i + 1) % len(states)
		}
	}
	m.ctrl.Select(scene.NodeSelection(states[next].ID))
}

func (m Model) selectedName(sel scene.Selection) (string, bool) {
	switch sel.Kind {
	case scene.SelectNode:
		st, ok := m.sess.State(sel.ID)
		return st.Name, ok
	case scene.SelectEdge:
		t, ok := m.sess.Transition(sel.ID)
		return t.Name, ok
	}
	return "", false
}

func (m *Model) onEdge(sel scene.Selection, fn func(id string) error) {
	if sel.Kind != scene.SelectEdge {
		return
	}
	m.report(fn(sel.ID))
}

func (m *Model) copy(sel scene.Selection) {
	it, err := m.sess.Copy(sel)
	if err != nil {
		m.report(err)
		return
	}
	if err := m.opts.Clipboard.Copy(it); err != nil {
		m.log.Debug("system clipboard unavailable", zap.Error(err))
	}
	m.opts.Status.Notify(notify.Success, fmt.Sprintf("copied %s", it.Kind))
}

func (m *Model) paste() {
	it, err := m.opts.Clipboard.Paste()
	if err != nil {
		m.report(err)
		return
	}
	sel, err := m.sess.Paste(it, editor.PasteOffset)
	if err == nil {
		m.ctrl.Select(sel)
	}
	m.report(err)
}

func (m Model) inputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.mode, m.input = ModeNormal, ""
	case tea.KeyEnter:
		m.submitInput()
		m.mode, m.input = ModeNormal, ""
	case tea.KeyBackspace:
		if rs := []rune(m.input); len(rs) > 0 {
			m.input = string(rs[:len(rs)-1])
		}
	case tea.KeySpace:
		m.input += " "
	case tea.KeyRunes:
		m.input += string(msg.Runes)
	}
	return m, nil
}

func (m *Model) submitInput() {
	sel := m.ctrl.Selection()
	text := strings.TrimSpace(m.input)
	switch {
	case m.inputAction == inputGate && sel.Kind == scene.SelectEdge:
		if text == "" {
			return
		}
		_, err := m.sess.AddGate(sel.ID, text)
		m.report(err)
	case sel.Kind == scene.SelectNode:
		m.report(m.sess.RenameState(sel.ID, text))
	case sel.Kind == scene.SelectEdge:
		m.report(m.sess.RenameTransition(sel.ID, text))
	}
}

func (m Model) confirmKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.mode = ModeNormal
	if k := msg.String(); k != "y" && k != "Y" {
		return m, nil
	}
	if m.confirmAction == confirmQuit {
		return m, tea.Quit
	}
	m.report(m.sess.Delete(m.confirmSel))
	return m, nil
}

func (m Model) confirmMessage() string {
	if m.confirmAction == confirmQuit {
		return "Quit stateflow? (y/n)"
	}
	name, _ := m.selectedName(m.confirmSel)
	if m.confirmSel.Kind == scene.SelectNode {
		n := len(m.sess.Graph().TransitionsTouching(m.confirmSel.ID))
		if n > 0 {
			return fmt.Sprintf("Delete state %q and %d transitions? (y/n)", name, n)
		}
		return fmt.Sprintf("Delete state %q? (y/n)", name)
	}
	return "Delete this transition? (y/n)"
}

func (m Model) frame() Frame {
	f := Frame{
		Scene:      m.sess.Scene(),
		View:       m.ctrl.Viewport(),
		Selection:  m.ctrl.Selection(),
		Mode:       m.ctrl.Mode(),
		Guides:     m.ctrl.Guides(),
		Cursor:     [2]int{m.cursorX, m.cursorY},
		ShowCursor: !m.ctrl.Dragging(),
	}
	if from, to, ok := m.ctrl.RubberBand(); ok {
		f.Rubber = &[2]geometry.Point{from, to}
	}
	return f
}

var (
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Background(lipgloss.Color("236"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Background(lipgloss.Color("236")).Bold(true)
)

// StatusText is the plain status line.
func (m Model) StatusText() string {
	switch m.mode {
	case ModeInput:
		label := "Rename"
		if m.inputAction == inputGate {
			label = "Gate name"
		}
		return fmt.Sprintf("Mode: INPUT | %s: %s█ | Enter=save, Esc=cancel", label, m.input)
	case ModeConfirm:
		return "Mode: CONFIRM | " + m.confirmMessage()
	}

	parts := []string{"Mode: " + strings.ToUpper(m.ctrl.Mode().String()), m.sess.Workflow().Name}
	sel := m.ctrl.Selection()
	if name, ok := m.selectedName(sel); ok {
		kind := "state"
		if sel.Kind == scene.SelectEdge {
			kind = "transition"
		}
		parts = append(parts, fmt.Sprintf("Selected: %s %q", kind, name))
	}
	if n := len(m.sess.Unsynced()); n > 0 {
		parts = append(parts, fmt.Sprintf("%d unsynced (ctrl+r to reload)", n))
	}
	if msg, ok := m.latest(); ok {
		if msg.Kind == notify.Error {
			parts = append(parts, "ERROR: "+msg.Text)
		} else {
			parts = append(parts, msg.Text)
		}
	} else {
		parts = append(parts, "? for help | q to quit")
	}
	return strings.Join(parts, " | ")
}

// latest returns the newest notification that arrived since the last key.
func (m Model) latest() (notify.Message, bool) {
	msgs := m.opts.Status.Messages()
	if len(msgs) <= m.seen {
		return notify.Message{}, false
	}
	return msgs[len(msgs)-1], true
}

func (m Model) View() string {
	if m.mode == ModeHelp {
		return m.helpView()
	}
	g := draw(m.frame(), m.width, m.canvasHeight())
	style := statusStyle
	if msg, ok := m.latest(); ok && msg.Kind == notify.Error {
		style = errorStyle
	}
	status := style.Inline(true).MaxWidth(max(m.width, 1)).Render(m.StatusText())
	return strings.Join(g.Styled(m.pal), "\n") + "\n" + status
}
