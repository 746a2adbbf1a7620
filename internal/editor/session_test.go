package editor

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stateflow/internal/clipboard"
	"stateflow/internal/geometry"
	"stateflow/internal/idgen"
	"stateflow/internal/layout"
	"stateflow/internal/model"
	"stateflow/internal/notify"
	"stateflow/internal/persistence"
	"stateflow/internal/persistence/file"
	"stateflow/internal/scene"
)

// flakyGateway fails state creation while fail is set.
type flakyGateway struct {
	persistence.Gateway

	mu   sync.Mutex
	fail bool
}

func (f *flakyGateway) setFail(v bool) {
	f.mu.Lock()
	f.fail = v
	f.mu.Unlock()
}

func (f *flakyGateway) CreateState(ctx context.Context, s model.State) (model.State, error) {
	f.mu.Lock()
	fail := f.fail
	f.mu.Unlock()
	if fail {
		return model.State{}, errors.New("connection refused")
	}
	return f.Gateway.CreateState(ctx, s)
}

type fixture struct {
	s   *Session
	gw  *flakyGateway
	rec *notify.Recorder
	ctx context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	gw := &flakyGateway{Gateway: file.New(t.TempDir())}
	_, err := gw.CreateWorkflow(ctx, model.Workflow{ID: "wf-1", OrgID: "org", Name: "Release"})
	require.NoError(t, err)

	rec := &notify.Recorder{}
	s, err := Open(ctx, "wf-1", Options{
		Gateway:  gw,
		Layout:   layout.NewStore(layout.NewCacheBackend(), nil),
		Notifier: rec,
		IDs:      idgen.Sequence(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return &fixture{s: s, gw: gw, rec: rec, ctx: ctx}
}

func (f *fixture) stored(t *testing.T) *model.Graph {
	t.Helper()
	require.NoError(t, f.s.Flush(f.ctx))
	g, err := persistence.LoadGraph(f.ctx, f.gw, "wf-1")
	require.NoError(t, err)
	return g
}

func (f *fixture) addState(t *testing.T, name string, x, y float64) model.State {
	t.Helper()
	st, err := f.s.AddState(name, geometry.Pt(x, y))
	require.NoError(t, err)
	return st
}

func TestOpen_UnknownWorkflow(t *testing.T) {
	_, err := Open(context.Background(), "wf-nope", Options{
		Gateway: file.New(t.TempDir()),
		Layout:  layout.NewStore(layout.NewCacheBackend(), nil),
	})
	assert.ErrorIs(t, err, persistence.ErrNotFound)
}

func TestSession_RoutesFollowCommittedMoves(t *testing.T) {
	f := newFixture(t)
	a := f.addState(t, "A", 0, 0)
	b := f.addState(t, "B", 300, 0)
	tr, err := f.s.CreateTransition(a.ID, b.ID)
	require.NoError(t, err)

	e, ok := f.s.Scene().Edge(tr.ID)
	require.True(t, ok)
	assert.Equal(t, geometry.EdgeRight, e.Start.Edge)
	assert.Equal(t, geometry.EdgeLeft, e.End.Edge)
	assert.Equal(t, geometry.StraightLength, e.Start.Point.Dist(e.Path[1].Pts[0]))
	assert.Equal(t, geometry.Pt(100, 0), e.Path[1].Pts[0])

	require.NoError(t, f.s.CommitStateMove(a.ID, geometry.Pt(0, 200)))
	e, ok = f.s.Scene().Edge(tr.ID)
	require.True(t, ok)
	assert.Equal(t, geometry.EdgeTop, e.Start.Edge)
	assert.Equal(t, geometry.EdgeBottom, e.End.Edge)
	assert.InDelta(t, 45, e.Start.Point.X, 1e-9)
	assert.InDelta(t, 170, e.Start.Point.Y, 1e-9)
	assert.InDelta(t, 255, e.End.Point.X, 1e-9)
	assert.InDelta(t, 30, e.End.Point.Y, 1e-9)

	g := f.stored(t)
	got, ok := g.State(a.ID)
	require.True(t, ok)
	assert.Equal(t, 200.0, got.Y)
	assert.Len(t, g.Transitions, 1)
	assert.Zero(t, f.rec.Count(notify.Error))
}

func TestSession_PreviewIsTransient(t *testing.T) {
	f := newFixture(t)
	a := f.addState(t, "A", 0, 0)

	f.s.PreviewState(a.ID, geometry.Pt(50, 60), geometry.Sz(10, 10))
	n, ok := f.s.Scene().Node(a.ID)
	require.True(t, ok)
	assert.Equal(t, geometry.Pt(50, 60), n.Box.Center)
	assert.Equal(t, geometry.Sz(geometry.MinStateWidth, geometry.MinStateHeight), n.Box.Size)

	st, _ := f.s.State(a.ID)
	assert.Equal(t, geometry.Pt(0, 0), st.Center())

	f.s.ClearPreview(a.ID)
	n, _ = f.s.Scene().Node(a.ID)
	assert.Equal(t, geometry.Pt(0, 0), n.Box.Center)
}

func TestSession_MoveUndoRedo(t *testing.T) {
	f := newFixture(t)
	a := f.addState(t, "A", 0, 0)

	require.NoError(t, f.s.CommitStateMove(a.ID, geometry.Pt(0, 0)))
	require.NoError(t, f.s.CommitStateMove(a.ID, geometry.Pt(40, 10)))

	ok, err := f.s.Undo()
	require.NoError(t, err)
	require.True(t, ok)
	st, _ := f.s.State(a.ID)
	assert.Equal(t, geometry.Pt(0, 0), st.Center())
	stored, _ := f.stored(t).State(a.ID)
	assert.Equal(t, geometry.Pt(0, 0), stored.Center())

	ok, err = f.s.Redo()
	require.NoError(t, err)
	require.True(t, ok)
	st, _ = f.s.State(a.ID)
	assert.Equal(t, geometry.Pt(40, 10), st.Center())

	// undo move, undo add, nothing left
	for range 2 {
		ok, err = f.s.Undo()
		require.NoError(t, err)
		require.True(t, ok)
	}
	ok, _ = f.s.Undo()
	assert.False(t, ok)
	assert.Empty(t, f.stored(t).States)
}

func TestSession_ResizeClamps(t *testing.T) {
	f := newFixture(t)
	a := f.addState(t, "A", 0, 0)

	box := geometry.Box{Center: geometry.Pt(5, 5), Size: geometry.Sz(1, 1)}
	require.NoError(t, f.s.CommitStateResize(a.ID, box))
	st, _ := f.s.State(a.ID)
	assert.Equal(t, geometry.MinStateWidth, st.Width)
	assert.Equal(t, geometry.MinStateHeight, st.Height)

	_, err := f.s.Undo()
	require.NoError(t, err)
	st, _ = f.s.State(a.ID)
	assert.Equal(t, geometry.DefaultStateWidth, st.Width)
}

func TestSession_StateNames(t *testing.T) {
	f := newFixture(t)
	f.addState(t, "A", 0, 0)
	_, err := f.s.AddState("A", geometry.Pt(10, 10))
	assert.ErrorIs(t, err, ErrNameTaken)

	first := f.addState(t, "", 0, 0)
	second := f.addState(t, "", 0, 0)
	assert.Equal(t, "State", first.Name)
	assert.Equal(t, "State 2", second.Name)

	assert.ErrorIs(t, f.s.RenameState(second.ID, "A"), ErrNameTaken)
	require.NoError(t, f.s.RenameState(second.ID, "Review"))
	st, _ := f.s.State(second.ID)
	assert.Equal(t, "Review", st.Name)

	start, err := f.s.AddStateOfType(model.StateTypeStart, "", geometry.Pt(0, 0))
	require.NoError(t, err)
	assert.Equal(t, "Start", start.Name)
	assert.Equal(t, model.ShapePill, start.Shape)
}

func TestSession_DeleteStateCascadesAndUndoRestores(t *testing.T) {
	f := newFixture(t)
	a := f.addState(t, "A", 0, 0)
	b := f.addState(t, "B", 300, 0)
	c := f.addState(t, "C", 300, 300)
	ab, err := f.s.CreateTransition(a.ID, b.ID)
	require.NoError(t, err)
	ca, err := f.s.CreateTransition(c.ID, a.ID)
	require.NoError(t, err)
	bc, err := f.s.CreateTransition(b.ID, c.ID)
	require.NoError(t, err)
	gate, err := f.s.AddGate(ab.ID, "QA sign-off")
	require.NoError(t, err)
	require.NoError(t, f.s.SetWaypoints(ab.ID, []geometry.Point{{X: 150, Y: -80}}))

	require.NoError(t, f.s.DeleteState(a.ID))

	g := f.s.Graph()
	assert.Len(t, g.States, 2)
	require.Len(t, g.Transitions, 1)
	assert.Equal(t, bc.ID, g.Transitions[0].ID)
	assert.Empty(t, g.GatesOf(ab.ID))
	assert.True(t, f.s.Layout().For(ab.ID).IsZero())
	stored := f.stored(t)
	assert.Len(t, stored.States, 2)
	assert.Len(t, stored.Transitions, 1)

	// one undo brings back everything
	ok, err := f.s.Undo()
	require.NoError(t, err)
	require.True(t, ok)
	g = f.s.Graph()
	assert.Len(t, g.States, 3)
	assert.Len(t, g.Transitions, 3)
	assert.Equal(t, []model.Gate{gate}, g.GatesOf(ab.ID))
	assert.Equal(t, []geometry.Point{{X: 150, Y: -80}}, f.s.Layout().For(ab.ID).Waypoints)

	stored = f.stored(t)
	assert.Len(t, stored.States, 3)
	assert.Len(t, stored.Transitions, 3)
	assert.Equal(t, []model.Gate{gate}, stored.GatesOf(ab.ID))
	_, ok = stored.Transition(ca.ID)
	assert.True(t, ok)
	assert.NoError(t, stored.Validate())

	ok, err = f.s.Redo()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, f.stored(t).Transitions, 1)
	assert.Zero(t, f.rec.Count(notify.Error))
}

func TestSession_DeleteTransitionUndo(t *testing.T) {
	f := newFixture(t)
	a := f.addState(t, "A", 0, 0)
	b := f.addState(t, "B", 300, 0)
	tr, err := f.s.CreateTransition(a.ID, b.ID)
	require.NoError(t, err)
	_, err = f.s.AddGate(tr.ID, "QA")
	require.NoError(t, err)
	require.NoError(t, f.s.SetLabelOffset(tr.ID, geometry.Pt(0, -20)))

	require.NoError(t, f.s.Delete(scene.EdgeSelection(tr.ID)))
	_, ok := f.s.Transition(tr.ID)
	assert.False(t, ok)
	assert.Empty(t, f.stored(t).Transitions)

	_, err = f.s.Undo()
	require.NoError(t, err)
	assert.Equal(t, geometry.Pt(0, -20), *f.s.Layout().For(tr.ID).LabelOffset)
	assert.Len(t, f.stored(t).GatesOf(tr.ID), 1)
}

func TestSession_TransitionEdits(t *testing.T) {
	f := newFixture(t)
	a := f.addState(t, "A", 0, 0)
	b := f.addState(t, "B", 300, 0)
	c := f.addState(t, "C", 0, 300)

	_, err := f.s.CreateTransition(a.ID, "st-nope")
	assert.ErrorIs(t, err, ErrUnknownState)

	tr, err := f.s.CreateTransition(a.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, f.s.Selection().IsEdge(tr.ID))

	require.NoError(t, f.s.CycleArrow(tr.ID))
	require.NoError(t, f.s.TogglePathType(tr.ID))
	require.NoError(t, f.s.CycleLineStyle(tr.ID))
	got, _ := f.s.Transition(tr.ID)
	assert.Equal(t, model.ArrowOpen, got.Line.ArrowHead)
	assert.Equal(t, model.PathElbow, got.Line.PathType)
	assert.Equal(t, model.LineDashed, got.Line.Style)

	pos := &geometry.EdgePosition{Edge: geometry.EdgeTop, Fraction: 0.3}
	require.NoError(t, f.s.RerouteTransition(tr.ID, layout.EndTo, c.ID, pos))
	got, _ = f.s.Transition(tr.ID)
	assert.Equal(t, c.ID, got.ToStateID)
	assert.Equal(t, pos, f.s.Layout().For(tr.ID).Anchors.To)
	e, _ := f.s.Scene().Edge(tr.ID)
	assert.True(t, e.ToManual)

	stored, _ := f.stored(t).Transition(tr.ID)
	assert.Equal(t, c.ID, stored.ToStateID)
	assert.Equal(t, model.PathElbow, stored.Line.PathType)

	_, err = f.s.Undo()
	require.NoError(t, err)
	got, _ = f.s.Transition(tr.ID)
	assert.Equal(t, b.ID, got.ToStateID)

	bad := got
	bad.Line.Thickness = 40
	assert.Error(t, f.s.UpdateTransition(bad))
}

func TestSession_GateOrder(t *testing.T) {
	f := newFixture(t)
	a := f.addState(t, "A", 0, 0)
	b := f.addState(t, "B", 300, 0)
	tr, err := f.s.CreateTransition(a.ID, b.ID)
	require.NoError(t, err)

	g1, err := f.s.AddGate(tr.ID, "Legal")
	require.NoError(t, err)
	g2, err := f.s.AddGate(tr.ID, "QA")
	require.NoError(t, err)
	assert.Equal(t, g1.SortOrder+1, g2.SortOrder)

	require.NoError(t, f.s.DeleteGate(tr.ID, g1.ID))
	assert.ErrorIs(t, f.s.DeleteGate(tr.ID, g1.ID), ErrUnknownGate)
	assert.Equal(t, []model.Gate{g2}, f.stored(t).GatesOf(tr.ID))

	e, _ := f.s.Scene().Edge(tr.ID)
	require.Len(t, e.Gates, 1)
	assert.Equal(t, "QA", e.Gates[0].Name)
}

func TestSession_CopyPaste(t *testing.T) {
	f := newFixture(t)
	a := f.addState(t, "A", 0, 0)
	b := f.addState(t, "B", 300, 0)
	tr, err := f.s.CreateTransition(a.ID, b.ID)
	require.NoError(t, err)
	_, err = f.s.AddGate(tr.ID, "QA")
	require.NoError(t, err)

	board := clipboard.NewLocal()
	item, err := f.s.Copy(scene.NodeSelection(a.ID))
	require.NoError(t, err)
	require.NoError(t, board.Copy(item))
	item, err = board.Paste()
	require.NoError(t, err)

	sel, err := f.s.Paste(item, PasteOffset)
	require.NoError(t, err)
	copied, ok := f.s.State(sel.ID)
	require.True(t, ok)
	assert.NotEqual(t, a.ID, copied.ID)
	assert.Equal(t, "A copy", copied.Name)
	assert.Equal(t, geometry.Pt(40, 40), copied.Center())
	assert.Equal(t, sel, f.s.Selection())

	item, err = f.s.Copy(scene.EdgeSelection(tr.ID))
	require.NoError(t, err)
	sel, err = f.s.Paste(item, PasteOffset)
	require.NoError(t, err)
	g := f.stored(t)
	assert.Len(t, g.Transitions, 2)
	gates := g.GatesOf(sel.ID)
	require.Len(t, gates, 1)
	assert.Equal(t, "QA", gates[0].Name)

	_, err = f.s.Undo()
	require.NoError(t, err)
	assert.Len(t, f.stored(t).Transitions, 1)

	_, err = f.s.Copy(scene.Selection{})
	assert.Error(t, err)
}

func TestSession_RerouteUndoRestoresAnchor(t *testing.T) {
	f := newFixture(t)
	a := f.addState(t, "A", 0, 0)
	b := f.addState(t, "B", 300, 0)
	c := f.addState(t, "C", 300, 300)
	tr, err := f.s.CreateTransition(a.ID, b.ID)
	require.NoError(t, err)

	pinned := &geometry.EdgePosition{Edge: geometry.EdgeTop, Fraction: 0.25}
	require.NoError(t, f.s.SetEdgePosition(tr.ID, layout.EndTo, pinned))
	moved := &geometry.EdgePosition{Edge: geometry.EdgeBottom, Fraction: 0.9}
	require.NoError(t, f.s.RerouteTransition(tr.ID, layout.EndTo, c.ID, moved))

	_, err = f.s.Undo()
	require.NoError(t, err)
	got, _ := f.s.Transition(tr.ID)
	assert.Equal(t, b.ID, got.ToStateID)
	assert.Equal(t, pinned, f.s.Layout().For(tr.ID).Anchors.To)

	_, err = f.s.Redo()
	require.NoError(t, err)
	got, _ = f.s.Transition(tr.ID)
	assert.Equal(t, c.ID, got.ToStateID)
	assert.Equal(t, moved, f.s.Layout().For(tr.ID).Anchors.To)

	_, err = f.s.Undo()
	require.NoError(t, err)
	require.NoError(t, f.s.SetEdgePosition(tr.ID, layout.EndTo, nil))
	require.NoError(t, f.s.RerouteTransition(tr.ID, layout.EndTo, c.ID, nil))
	_, err = f.s.Undo()
	require.NoError(t, err)
	assert.Nil(t, f.s.Layout().For(tr.ID).Anchors.To)
}

func TestSession_FailedWriteKeepsLocalStateUntilReconcile(t *testing.T) {
	f := newFixture(t)
	a := f.addState(t, "A", 0, 0)
	require.NoError(t, f.s.Flush(f.ctx))

	f.gw.setFail(true)
	b := f.addState(t, "B", 300, 0)
	require.NoError(t, f.s.Flush(f.ctx))

	_, ok := f.s.State(b.ID)
	assert.True(t, ok, "no automatic rollback")
	assert.Equal(t, []string{b.ID}, f.s.Unsynced())
	assert.Equal(t, 1, f.rec.Count(notify.Error))
	last, _ := f.rec.Last()
	assert.Contains(t, last.Text, "create state")

	f.gw.setFail(false)
	require.NoError(t, f.s.Reconcile(f.ctx))
	_, ok = f.s.State(b.ID)
	assert.False(t, ok)
	_, ok = f.s.State(a.ID)
	assert.True(t, ok)
	assert.Empty(t, f.s.Unsynced())
	assert.False(t, f.s.CanUndo())
	last, _ = f.rec.Last()
	assert.Equal(t, notify.Success, last.Kind)
}

func TestSession_EditAfterCloseIsReported(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.s.Close())

	st := f.addState(t, "Late", 0, 0)
	assert.Equal(t, []string{st.ID}, f.s.Unsynced())
	assert.Equal(t, 1, f.rec.Count(notify.Error))
	last, _ := f.rec.Last()
	assert.Contains(t, last.Text, "create state")
	assert.ErrorIs(t, f.s.Flush(f.ctx), ErrWriterClosed)
}

func TestSession_SetViewport(t *testing.T) {
	f := newFixture(t)
	cfg := model.CanvasConfig{Zoom: 2, PanX: -10, PanY: 5}
	require.NoError(t, f.s.SetViewport(cfg))
	assert.False(t, f.s.CanUndo())
	assert.Equal(t, cfg, f.stored(t).Workflow.CanvasConfig)
}

func TestSession_VisualEditsNeedLiveTransition(t *testing.T) {
	f := newFixture(t)
	assert.ErrorIs(t, f.s.SetWaypoints("tr-nope", nil), ErrUnknownTransition)
	assert.ErrorIs(t, f.s.SetLabelOffset("tr-nope", geometry.Pt(1, 1)), ErrUnknownTransition)
}
