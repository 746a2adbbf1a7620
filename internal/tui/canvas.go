package tui

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"stateflow/internal/geometry"
	"stateflow/internal/interaction"
	"stateflow/internal/model"
	"stateflow/internal/scene"
)

// A terminal cell covers this many screen pixels.
const (
	CellWidth  = 8.0
	CellHeight = 16.0
)

type cellKind uint8

const (
	kindBlank cellKind = iota
	kindEdge
	kindLabel
	kindGuide
	kindRubber
	kindNode
	kindSentinel
	kindSelected
	kindHandle
	kindCursor
)

type cell struct {
	r     rune
	kind  cellKind
	color string
}

// grid is a screen of runes. Later draws overwrite earlier ones.
type grid struct {
	w, h  int
	cells [][]cell
	view  interaction.Viewport
}

func newGrid(w, h int, view interaction.Viewport) *grid {
	w, h = max(w, 1), max(h, 1)
	g := &grid{w: w, h: h, view: view, cells: make([][]cell, h)}
	for y := range g.cells {
		g.cells[y] = make([]cell, w)
		for x := range g.cells[y] {
			g.cells[y][x] = cell{r: ' '}
		}
	}
	return g
}

// CellAt maps a world point to the cell it falls in.
func CellAt(view interaction.Viewport, p geometry.Point) (int, int) {
	s := view.WorldToScreen(p)
	return int(math.Floor(s.X / CellWidth)), int(math.Floor(s.Y / CellHeight))
}

// CellCenter is the screen pixel at the middle of a cell.
func CellCenter(x, y int) geometry.Point {
	return geometry.Pt((float64(x)+0.5)*CellWidth, (float64(y)+0.5)*CellHeight)
}

func (g *grid) at(p geometry.Point) (int, int) { return CellAt(g.view, p) }

func (g *grid) set(x, y int, r rune, kind cellKind, color string) {
	if x < 0 || y < 0 || x >= g.w || y >= g.h {
		return
	}
	g.cells[y][x] = cell{r: r, kind: kind, color: color}
}

func (g *grid) get(x, y int) rune {
	if x < 0 || y < 0 || x >= g.w || y >= g.h {
		return 0
	}
	return g.cells[y][x].r
}

func (g *grid) text(x, y int, s string, kind cellKind, color string) {
	for i, r := range []rune(s) {
		g.set(x+i, y, r, kind, color)
	}
}

// centered writes s centered on column cx, clipped to width runes.
func (g *grid) centered(cx, y int, s string, width int, kind cellKind) {
	rs := []rune(s)
	if width > 0 && len(rs) > width {
		rs = rs[:width]
	}
	g.text(cx-len(rs)/2, y, string(rs), kind, "")
}

// segment draws a straight run of cells from a to b. Axis aligned runs use
// box drawing lines, anything else a dotted trail.
func (g *grid) segment(x0, y0, x1, y1 int, kind cellKind, color string) {
	r := '·'
	switch {
	case y0 == y1:
		r = '─'
	case x0 == x1:
		r = '│'
	}
	dx, dy := abs(x1-x0), -abs(y1-y0)
	sx, sy := sign(x1-x0), sign(y1-y0)
	e := dx + dy
	for {
		g.set(x0, y0, r, kind, color)
		if x0 == x1 && y0 == y1 {
			return
		}
		if e2 := 2 * e; y0 == y1 || (x0 != x1 && e2 >= dy) {
			e += dy
			x0 += sx
		} else {
			e += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func sign(v int) int {
	switch {
	case v < 0:
		return -1
	case v > 0:
		return 1
	}
	return 0
}

// corner picks the box drawing rune joining an incoming and outgoing
// direction of an elbow connector.
func corner(inX, inY, outX, outY int) rune {
	switch {
	case (inX > 0 && outY > 0) || (inY < 0 && outX < 0):
		return '┐'
	case (inX > 0 && outY < 0) || (inY > 0 && outX < 0):
		return '┘'
	case (inX < 0 && outY > 0) || (inY < 0 && outX > 0):
		return '┌'
	case (inX < 0 && outY < 0) || (inY > 0 && outX > 0):
		return '└'
	}
	return 0
}

func arrowRune(dx, dy int, head model.ArrowHead) rune {
	open := head == model.ArrowOpen
	switch {
	case abs(dx) >= abs(dy) && dx > 0:
		return pick(open, '▷', '▶')
	case abs(dx) >= abs(dy) && dx < 0:
		return pick(open, '◁', '◀')
	case dy < 0:
		return pick(open, '△', '▲')
	}
	return pick(open, '▽', '▼')
}

func pick(cond bool, a, b rune) rune {
	if cond {
		return a
	}
	return b
}

func edgeKind(selected bool) cellKind {
	if selected {
		return kindSelected
	}
	return kindEdge
}

// edgeCells is the connector path as distinct consecutive cells.
func (g *grid) edgeCells(e scene.Edge) [][2]int {
	pts := e.Polyline()
	if e.Elbow() {
		pts = e.Segments
	}
	cells := make([][2]int, 0, len(pts))
	for _, p := range pts {
		x, y := g.at(p)
		if n := len(cells); n > 0 && cells[n-1] == [2]int{x, y} {
			continue
		}
		cells = append(cells, [2]int{x, y})
	}
	return cells
}

func (g *grid) edge(e scene.Edge, selected bool) {
	kind := edgeKind(selected)
	cells := g.edgeCells(e)
	for i := 1; i < len(cells); i++ {
		a, b := cells[i-1], cells[i]
		g.segment(a[0], a[1], b[0], b[1], kind, e.Line.Color)
	}
	if e.Elbow() {
		for i := 1; i+1 < len(cells); i++ {
			a, b, c := cells[i-1], cells[i], cells[i+1]
			if r := corner(sign(b[0]-a[0]), sign(b[1]-a[1]), sign(c[0]-b[0]), sign(c[1]-b[1])); r != 0 {
				g.set(b[0], b[1], r, kind, e.Line.Color)
			}
		}
	}

	for _, gate := range e.Gates {
		x, y := g.at(gate.Point)
		g.set(x, y, '◆', kind, e.Line.Color)
	}
	if e.Name != "" {
		x, y := g.at(e.Label)
		g.centered(x, y, e.Name, 0, kindLabel)
	}
}

// arrow is drawn after the nodes so the head sits on the target border.
func (g *grid) arrow(e scene.Edge, selected bool) {
	cells := g.edgeCells(e)
	if len(cells) < 2 || e.Line.ArrowHead == model.ArrowNone {
		return
	}
	a, b := cells[len(cells)-2], cells[len(cells)-1]
	g.set(b[0], b[1], arrowRune(b[0]-a[0], b[1]-a[1], e.Line.ArrowHead), edgeKind(selected), e.Line.Color)
}

// edgeHandles marks the grips of the selected connector.
func (g *grid) edgeHandles(e scene.Edge) {
	for _, p := range []geometry.Point{e.Start.Point, e.End.Point} {
		x, y := g.at(p)
		g.set(x, y, '●', kindHandle, "")
	}
	for _, p := range e.Waypoints {
		x, y := g.at(p)
		g.set(x, y, '○', kindHandle, "")
	}
	for _, h := range e.Handles {
		if h.Adjustable {
			x, y := g.at(h.Point)
			g.set(x, y, '◇', kindHandle, "")
		}
	}
}

type frame struct{ tl, tr, bl, br, h, vl, vr rune }

var (
	frameRectangle = frame{'┌', '┐', '└', '┘', '─', '│', '│'}
	frameRounded   = frame{'╭', '╮', '╰', '╯', '─', '│', '│'}
	framePill      = frame{'╭', '╮', '╰', '╯', '─', '(', ')'}
	frameDiamond   = frame{'/', '\\', '\\', '/', '─', '<', '>'}
	frameSelected  = frame{'┏', '┓', '┗', '┛', '━', '┃', '┃'}
)

func frameOf(s model.Shape) frame {
	switch s {
	case model.ShapeRectangle:
		return frameRectangle
	case model.ShapePill:
		return framePill
	case model.ShapeDiamond:
		return frameDiamond
	}
	return frameRounded
}

func (g *grid) node(n scene.Node, selected, handles bool) {
	l, t := g.at(geometry.Pt(n.Box.Left(), n.Box.Top()))
	r, b := g.at(geometry.Pt(n.Box.Right(), n.Box.Bottom()))
	r, b = max(r, l+1), max(b, t+1)

	kind := kindNode
	if n.Type.Sentinel() {
		kind = kindSentinel
	}
	f := frameOf(n.Shape)
	if selected {
		f, kind = frameSelected, kindSelected
	}
	for y := t; y <= b; y++ {
		for x := l; x <= r; x++ {
			var ch rune
			switch {
			case y == t && x == l:
				ch = f.tl
			case y == t && x == r:
				ch = f.tr
			case y == b && x == l:
				ch = f.bl
			case y == b && x == r:
				ch = f.br
			case y == t || y == b:
				ch = f.h
			case x == l:
				ch = f.vl
			case x == r:
				ch = f.vr
			default:
				ch = ' '
			}
			g.set(x, y, ch, kind, n.Color)
		}
	}
	g.centered((l+r)/2, (t+b)/2, n.Name, r-l-1, kind)

	if handles {
		for _, h := range scene.ResizeHandles {
			x, y := g.at(h.Point(n.Box))
			g.set(x, y, '■', kindHandle, "")
		}
	}
}

func (g *grid) guide(gd interaction.Guide) {
	if gd.Orientation == geometry.Vertical {
		x, y0 := g.at(geometry.Pt(gd.Pos, gd.From))
		_, y1 := g.at(geometry.Pt(gd.Pos, gd.To))
		for y := min(y0, y1); y <= max(y0, y1); y++ {
			g.set(x, y, '┆', kindGuide, "")
		}
		return
	}
	x0, y := g.at(geometry.Pt(gd.From, gd.Pos))
	x1, _ := g.at(geometry.Pt(gd.To, gd.Pos))
	for x := min(x0, x1); x <= max(x0, x1); x++ {
		g.set(x, y, '┄', kindGuide, "")
	}
}

// Frame is everything drawn on top of the scene for one screen.
type Frame struct {
	Scene     scene.Scene
	View      interaction.Viewport
	Selection scene.Selection
	Mode      interaction.Mode
	Guides    []interaction.Guide
	// Rubber is the line from a connect or endpoint drag, in world
	// coordinates.
	Rubber     *[2]geometry.Point
	Cursor     [2]int
	ShowCursor bool
}

func draw(f Frame, w, h int) *grid {
	g := newGrid(w, h, f.View)
	for _, e := range f.Scene.Edges {
		g.edge(e, f.Selection.IsEdge(e.ID))
	}
	for _, gd := range f.Guides {
		g.guide(gd)
	}
	if f.Rubber != nil {
		x0, y0 := g.at(f.Rubber[0])
		x1, y1 := g.at(f.Rubber[1])
		g.segment(x0, y0, x1, y1, kindRubber, "")
	}
	for _, n := range f.Scene.Nodes {
		sel := f.Selection.IsNode(n.ID)
		g.node(n, sel, sel && f.Mode == interaction.ModeResize)
	}
	for _, e := range f.Scene.Edges {
		g.arrow(e, f.Selection.IsEdge(e.ID))
	}
	if e, ok := f.Scene.Edge(f.Selection.ID); ok && f.Selection.Kind == scene.SelectEdge {
		g.edgeHandles(e)
	}
	if f.ShowCursor {
		g.set(f.Cursor[0], f.Cursor[1], '█', kindCursor, "")
	}
	return g
}

// Plain returns the grid without styling.
func (g *grid) Plain() []string {
	out := make([]string, g.h)
	var b strings.Builder
	for y, row := range g.cells {
		b.Reset()
		for _, c := range row {
			b.WriteRune(c.r)
		}
		out[y] = b.String()
	}
	return out
}

type palette struct {
	kinds map[cellKind]lipgloss.Style
}

func newPalette() palette {
	return palette{kinds: map[cellKind]lipgloss.Style{
		kindEdge:     lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		kindLabel:    lipgloss.NewStyle().Foreground(lipgloss.Color("250")).Italic(true),
		kindGuide:    lipgloss.NewStyle().Foreground(lipgloss.Color("205")),
		kindRubber:   lipgloss.NewStyle().Foreground(lipgloss.Color("75")),
		kindNode:     lipgloss.NewStyle().Foreground(lipgloss.Color("255")),
		kindSentinel: lipgloss.NewStyle().Foreground(lipgloss.Color("114")).Bold(true),
		kindSelected: lipgloss.NewStyle().Foreground(lipgloss.Color("220")).Bold(true),
		kindHandle:   lipgloss.NewStyle().Foreground(lipgloss.Color("203")),
		kindCursor:   lipgloss.NewStyle().Foreground(lipgloss.Color("255")),
	}}
}

func (p palette) style(kind cellKind, color string) (lipgloss.Style, bool) {
	st, ok := p.kinds[kind]
	if !ok {
		return st, false
	}
	if color != "" && kind != kindSelected && kind != kindLabel {
		st = st.Foreground(lipgloss.Color(color))
	}
	return st, true
}

// Styled renders runs of cells that share a kind and color.
func (g *grid) Styled(p palette) []string {
	out := make([]string, g.h)
	var b strings.Builder
	for y, row := range g.cells {
		b.Reset()
		for x := 0; x < len(row); {
			start := x
			for x < len(row) && row[x].kind == row[start].kind && row[x].color == row[start].color {
				x++
			}
			run := make([]rune, 0, x-start)
			for _, c := range row[start:x] {
				run = append(run, c.r)
			}
			if st, ok := p.style(row[start].kind, row[start].color); ok {
				b.WriteString(st.Render(string(run)))
			} else {
				b.WriteString(string(run))
			}
		}
		out[y] = b.String()
	}
	return out
}
