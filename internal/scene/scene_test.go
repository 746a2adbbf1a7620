package scene

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stateflow/internal/geometry"
	"stateflow/internal/layout"
	"stateflow/internal/model"
)

func twoStates() *model.Graph {
	g := model.NewGraph(model.Workflow{ID: "wf", Name: "Release"})
	a := model.NewState("wf", "A", geometry.Pt(0, 0))
	a.ID = "a"
	b := model.NewState("wf", "B", geometry.Pt(300, 0))
	b.ID = "b"
	g.States = []model.State{a, b}
	tr := model.NewTransition("wf", "a", "b")
	tr.ID = "ab"
	tr.Name = "submit"
	g.Transitions = []model.Transition{tr}
	return g
}

func TestBuild_HorizontalPair(t *testing.T) {
	sc := Build(twoStates(), layout.NewOverride())
	require.Empty(t, sc.Invalid)
	e, ok := sc.Edge("ab")
	require.True(t, ok)

	assert.Equal(t, geometry.EdgeRight, e.Start.Edge)
	assert.Equal(t, geometry.EdgeLeft, e.End.Edge)
	assert.Equal(t, geometry.Pt(80, 0), e.Start.Point)
	assert.Equal(t, geometry.Pt(220, 0), e.End.Point)

	// the stubs are the first and last straight commands
	require.GreaterOrEqual(t, len(e.Path), 4)
	assert.Equal(t, geometry.OpLine, e.Path[1].Op)
	assert.Equal(t, geometry.StraightLength, e.Start.Point.Dist(e.Path[1].Pts[0]))
	last := e.Path[len(e.Path)-1]
	prevEnd := e.Path[len(e.Path)-2].Pts[len(e.Path[len(e.Path)-2].Pts)-1]
	assert.Equal(t, geometry.OpLine, last.Op)
	assert.Equal(t, geometry.StraightLength, prevEnd.Dist(last.Pts[0]))

	assert.Equal(t, geometry.Pt(150, 0), e.Label)
	assert.Contains(t, e.D, "M 80 0")
}

func TestBuild_DraggedStateRecomputesAnchors(t *testing.T) {
	g := twoStates()
	before := Build(g, layout.NewOverride())

	a, _ := g.State("a")
	a.Y = 200
	g.UpsertState(a)
	after := Build(g, layout.NewOverride())

	e, ok := after.Edge("ab")
	require.True(t, ok)
	assert.Equal(t, geometry.EdgeTop, e.Start.Edge)
	assert.Equal(t, geometry.EdgeBottom, e.End.Edge)
	assert.InDelta(t, 45, e.Start.Point.X, 1e-9)
	assert.InDelta(t, 170, e.Start.Point.Y, 1e-9)
	assert.InDelta(t, 255, e.End.Point.X, 1e-9)
	assert.InDelta(t, 30, e.End.Point.Y, 1e-9)

	old, _ := before.Edge("ab")
	assert.NotEqual(t, old.D, e.D)
	for _, p := range e.Polyline() {
		assert.False(t, p.Eq(old.Start.Point), "stale anchor %v", p)
	}
}

func TestBuild_ManualAnchorAndWaypoints(t *testing.T) {
	o := layout.NewOverride()
	o.EdgePositions["ab"] = layout.Anchors{From: &geometry.EdgePosition{Edge: geometry.EdgeBottom, Fraction: 0.25}}
	o.Waypoints["ab"] = []geometry.Point{{X: 150, Y: 100}}

	sc := Build(twoStates(), o)
	e, _ := sc.Edge("ab")
	assert.True(t, e.FromManual)
	assert.False(t, e.ToManual)
	assert.Equal(t, geometry.Anchor{Point: geometry.Pt(-40, 30), Edge: geometry.EdgeBottom}, e.Start)
	// end anchor aims at the last waypoint rather than the other box
	assert.Equal(t, geometry.EdgeBottom, e.End.Edge)
	assert.Contains(t, e.Polyline(), geometry.Pt(150, 100))
}

func TestBuild_ElbowHandlesAndGates(t *testing.T) {
	g := twoStates()
	b, _ := g.State("b")
	b.Y = 120
	g.UpsertState(b)
	tr, _ := g.Transition("ab")
	tr.Line.PathType = model.PathElbow
	g.UpsertTransition(tr)
	g.UpsertGate(model.Gate{ID: "g1", TransitionID: "ab", Name: "QA", SortOrder: 1})
	g.UpsertGate(model.Gate{ID: "g2", TransitionID: "ab", Name: "Lead", SortOrder: 2})

	sc := Build(g, layout.NewOverride())
	e, _ := sc.Edge("ab")
	require.True(t, e.Elbow())
	require.NotEmpty(t, e.Segments)
	require.NotEmpty(t, e.Handles)
	for i := 1; i < len(e.Segments); i++ {
		assert.False(t, e.Segments[i-1].Eq(e.Segments[i]))
	}
	require.Len(t, e.Gates, 2)
	assert.Equal(t, "QA", e.Gates[0].Name)
	assert.Equal(t, geometry.PointAlongPolyline(e.Segments, 1.0/3), e.Gates[0].Point)
	assert.Equal(t, geometry.PointAlongPolyline(e.Segments, 2.0/3), e.Gates[1].Point)
}

func TestBuild_LabelOverrides(t *testing.T) {
	o := layout.NewOverride()
	o.LabelOffsets["ab"] = geometry.Pt(0, -12)
	sc := Build(twoStates(), o)
	e, _ := sc.Edge("ab")
	assert.Equal(t, geometry.Pt(150, -12), e.Label)

	o.PinnedLabels["ab"] = geometry.Pt(7, 7)
	e, _ = Build(twoStates(), o).Edge("ab")
	assert.True(t, e.LabelPinned)
	assert.Equal(t, geometry.Pt(7, 7), e.Label)
}

func TestBuild_DanglingTransitionIsReported(t *testing.T) {
	g := twoStates()
	g.RemoveState("b")
	sc := Build(g, layout.NewOverride())
	assert.Equal(t, []string{"ab"}, sc.Invalid)
	assert.Empty(t, sc.Edges)
}

func TestBuild_SelfLoop(t *testing.T) {
	g := twoStates()
	loop := model.NewTransition("wf", "a", "a")
	loop.ID = "aa"
	g.UpsertTransition(loop)

	e, ok := Build(g, layout.NewOverride()).Edge("aa")
	require.True(t, ok)
	assert.Equal(t, geometry.EdgeRight, e.Start.Edge)
	assert.Equal(t, geometry.EdgeTop, e.End.Edge)
	assert.False(t, e.FromManual)
}

func TestHitTesting(t *testing.T) {
	sc := Build(twoStates(), layout.NewOverride())

	n, ok := sc.NodeAt(geometry.Pt(290, 10))
	require.True(t, ok)
	assert.Equal(t, "b", n.ID)
	_, ok = sc.NodeAt(geometry.Pt(150, 0))
	assert.False(t, ok)

	h, ok := sc.ResizeHandleAt("a", geometry.Pt(79, 31))
	require.True(t, ok)
	assert.Equal(t, HandleSE, h)

	side, ok := sc.ConnectAffordanceAt("a", geometry.Pt(0, -32))
	require.True(t, ok)
	assert.Equal(t, geometry.EdgeTop, side)

	end, ok := sc.EndpointAt("ab", geometry.Pt(221, 1))
	require.True(t, ok)
	assert.Equal(t, layout.EndTo, end)

	e, ok := sc.EdgeNear(geometry.Pt(150, 3))
	require.True(t, ok)
	assert.Equal(t, "ab", e.ID)
	_, ok = sc.EdgeNear(geometry.Pt(150, 80))
	assert.False(t, ok)

	_, ok = sc.LabelAt(geometry.Pt(152, 2))
	assert.True(t, ok)

	node, hit, ok := sc.NodeNearBoundary(geometry.Pt(230, 5), 12)
	require.True(t, ok)
	assert.Equal(t, "b", node.ID)
	assert.Equal(t, geometry.EdgeLeft, hit.Edge)
}

func TestResizeHandleSigns(t *testing.T) {
	sx, sy := HandleNW.Signs()
	assert.Equal(t, -1.0, sx)
	assert.Equal(t, -1.0, sy)
	sx, sy = HandleE.Signs()
	assert.Equal(t, 1.0, sx)
	assert.Equal(t, 0.0, sy)
}

func TestBounds(t *testing.T) {
	_, ok := Build(model.NewGraph(model.Workflow{ID: "x"}), layout.NewOverride()).Bounds()
	assert.False(t, ok)

	b, ok := Build(twoStates(), layout.NewOverride()).Bounds()
	require.True(t, ok)
	assert.Equal(t, -80.0, b.Left())
	assert.Equal(t, 380.0, b.Right())
}
