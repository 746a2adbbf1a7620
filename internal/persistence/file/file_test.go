package file

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stateflow/internal/geometry"
	"stateflow/internal/model"
	"stateflow/internal/persistence"
)

func seed(t *testing.T) (*Gateway, context.Context) {
	t.Helper()
	gw := New(t.TempDir())
	ctx := context.Background()
	_, err := gw.CreateWorkflow(ctx, model.Workflow{ID: "wf-1", OrgID: "org", Name: "Release"})
	require.NoError(t, err)
	for i, name := range []string{"Draft", "Review"} {
		s := model.NewState("wf-1", name, geometry.Pt(float64(i)*300, 0))
		s.ID = "st-" + name
		s.SortOrder = 1 - i
		_, err := gw.CreateState(ctx, s)
		require.NoError(t, err)
	}
	tr := model.NewTransition("wf-1", "st-Draft", "st-Review")
	tr.ID = "tr-1"
	_, err = gw.CreateTransition(ctx, tr)
	require.NoError(t, err)
	_, err = gw.CreateGate(ctx, model.Gate{ID: "gt-1", TransitionID: "tr-1", Name: "QA"})
	require.NoError(t, err)
	return gw, ctx
}

func TestGateway_RoundTrip(t *testing.T) {
	gw, ctx := seed(t)

	g, err := persistence.LoadGraph(ctx, gw, "wf-1")
	require.NoError(t, err)
	require.Len(t, g.States, 2)
	assert.Equal(t, "Review", g.States[0].Name, "ordered by sort order")
	require.Len(t, g.Transitions, 1)
	assert.Len(t, g.GatesOf("tr-1"), 1)
	assert.False(t, g.Workflow.CreatedAt.IsZero())
	assert.NoError(t, g.Validate())
}

func TestGateway_UpdateAndNotFound(t *testing.T) {
	gw, ctx := seed(t)

	s := model.NewState("wf-1", "Draft", geometry.Pt(0, 200))
	s.ID = "st-Draft"
	got, err := gw.UpdateState(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, 200.0, got.Y)

	_, err = gw.UpdateState(ctx, model.State{ID: "st-nope", Name: "x"})
	assert.ErrorIs(t, err, persistence.ErrNotFound)

	err = gw.DeleteGate(ctx, "gt-nope")
	assert.ErrorIs(t, err, persistence.ErrNotFound)

	_, err = gw.GetWorkflow(ctx, "wf-nope")
	assert.ErrorIs(t, err, persistence.ErrNotFound)
}

func TestGateway_Constraints(t *testing.T) {
	gw, ctx := seed(t)

	dup := model.NewState("wf-1", "Draft", geometry.Pt(0, 0))
	dup.ID = "st-other"
	_, err := gw.CreateState(ctx, dup)
	assert.ErrorIs(t, err, persistence.ErrConflict)

	bad := model.NewTransition("wf-1", "st-Draft", "st-ghost")
	bad.ID = "tr-bad"
	_, err = gw.CreateTransition(ctx, bad)
	assert.ErrorIs(t, err, persistence.ErrInvalid)

	_, err = gw.CreateGate(ctx, model.Gate{ID: "gt-x", TransitionID: "tr-ghost", Name: "x"})
	assert.ErrorIs(t, err, persistence.ErrInvalid)

	_, err = gw.CreateWorkflow(ctx, model.Workflow{ID: "wf-1", Name: "again"})
	assert.ErrorIs(t, err, persistence.ErrConflict)
}

func TestGateway_DeleteStateCascades(t *testing.T) {
	gw, ctx := seed(t)
	require.NoError(t, gw.DeleteState(ctx, "st-Review"))

	ts, err := gw.GetTransitions(ctx, "wf-1")
	require.NoError(t, err)
	assert.Empty(t, ts)
	gates, err := gw.GetGates(ctx, []string{"tr-1"})
	require.NoError(t, err)
	assert.Empty(t, gates)
}

func TestGateway_SetDefaultWorkflow(t *testing.T) {
	gw, ctx := seed(t)
	_, err := gw.CreateWorkflow(ctx, model.Workflow{ID: "wf-2", OrgID: "org", Name: "Change", IsDefault: true})
	require.NoError(t, err)

	require.NoError(t, gw.SetDefaultWorkflow(ctx, "org", "wf-1"))
	wfs, err := gw.ListWorkflows(ctx, "org")
	require.NoError(t, err)
	require.Len(t, wfs, 2)
	assert.Equal(t, "wf-1", wfs[0].ID)
	assert.True(t, wfs[0].IsDefault)
	assert.False(t, wfs[1].IsDefault)

	def, err := persistence.DefaultWorkflow(ctx, gw, "org")
	require.NoError(t, err)
	assert.Equal(t, "wf-1", def.ID)

	assert.ErrorIs(t, gw.SetDefaultWorkflow(ctx, "other-org", "wf-1"), persistence.ErrNotFound)
}

func TestGateway_CreateGraphIsAllOrNothing(t *testing.T) {
	gw := New(t.TempDir())
	ctx := context.Background()

	g := model.NewGraph(model.Workflow{ID: "wf-9", OrgID: "org", Name: "Imported"})
	a := model.NewState("wf-9", "A", geometry.Pt(0, 0))
	a.ID = "st-a"
	g.States = []model.State{a}
	tr := model.NewTransition("wf-9", "st-a", "st-missing")
	tr.ID = "tr-x"
	g.Transitions = []model.Transition{tr}

	err := gw.CreateGraph(ctx, g)
	assert.ErrorIs(t, err, persistence.ErrInvalid)
	_, err = gw.GetWorkflow(ctx, "wf-9")
	assert.ErrorIs(t, err, persistence.ErrNotFound)

	g.Transitions = nil
	require.NoError(t, gw.CreateGraph(ctx, g))
	states, err := gw.GetStates(ctx, "wf-9")
	require.NoError(t, err)
	assert.Len(t, states, 1)
}

func TestGateway_DeleteWorkflow(t *testing.T) {
	gw, ctx := seed(t)
	require.NoError(t, gw.DeleteWorkflow(ctx, "wf-1"))
	assert.ErrorIs(t, gw.DeleteWorkflow(ctx, "wf-1"), persistence.ErrNotFound)
	wfs, err := gw.ListWorkflows(ctx, "org")
	require.NoError(t, err)
	assert.Empty(t, wfs)
}
