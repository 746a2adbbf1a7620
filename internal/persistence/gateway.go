// Package persistence defines the typed gateway to the authoritative
// workflow database and the errors its implementations return.
package persistence

import (
	"context"
	"fmt"

	"stateflow/internal/model"
)

// Entity names used in *Error.
const (
	EntityWorkflow   = "workflow"
	EntityState      = "state"
	EntityTransition = "transition"
	EntityGate       = "gate"
)

// Gateway is the CRUD boundary of the logical model. Create methods keep a
// non-empty ID and return the stored entity. Lists are ordered by
// sort_order where the entity has one.
type Gateway interface {
	ListWorkflows(ctx context.Context, orgID string) ([]model.Workflow, error)
	GetWorkflow(ctx context.Context, id string) (model.Workflow, error)
	CreateWorkflow(ctx context.Context, wf model.Workflow) (model.Workflow, error)
	UpdateWorkflow(ctx context.Context, wf model.Workflow) (model.Workflow, error)
	DeleteWorkflow(ctx context.Context, id string) error
	// SetDefaultWorkflow flags id as the organization's default and clears
	// the flag on every other workflow of orgID.
	SetDefaultWorkflow(ctx context.Context, orgID, id string) error

	GetStates(ctx context.Context, workflowID string) ([]model.State, error)
	CreateState(ctx context.Context, s model.State) (model.State, error)
	UpdateState(ctx context.Context, s model.State) (model.State, error)
	DeleteState(ctx context.Context, id string) error

	GetTransitions(ctx context.Context, workflowID string) ([]model.Transition, error)
	CreateTransition(ctx context.Context, t model.Transition) (model.Transition, error)
	UpdateTransition(ctx context.Context, t model.Transition) (model.Transition, error)
	DeleteTransition(ctx context.Context, id string) error

	GetGates(ctx context.Context, transitionIDs []string) ([]model.Gate, error)
	CreateGate(ctx context.Context, g model.Gate) (model.Gate, error)
	DeleteGate(ctx context.Context, id string) error

	// CreateGraph stores a workflow with all its states, transitions and
	// gates, or nothing at all.
	CreateGraph(ctx context.Context, g *model.Graph) error

	Close() error
}

// LoadGraph fetches a workflow and everything in it.
func LoadGraph(ctx context.Context, gw Gateway, workflowID string) (*model.Graph, error) {
	wf, err := gw.GetWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	g := model.NewGraph(wf)

	if g.States, err = gw.GetStates(ctx, workflowID); err != nil {
		return nil, fmt.Errorf("load states: %w", err)
	}
	if g.Transitions, err = gw.GetTransitions(ctx, workflowID); err != nil {
		return nil, fmt.Errorf("load transitions: %w", err)
	}
	if len(g.Transitions) == 0 {
		return g, nil
	}

	ids := make([]string, len(g.Transitions))
	for i, t := range g.Transitions {
		ids[i] = t.ID
	}
	gates, err := gw.GetGates(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load gates: %w", err)
	}
	for _, gate := range gates {
		g.UpsertGate(gate)
	}
	return g, nil
}

// DefaultWorkflow returns the organization's default workflow, falling
// back to the first one listed.
func DefaultWorkflow(ctx context.Context, gw Gateway, orgID string) (model.Workflow, error) {
	wfs, err := gw.ListWorkflows(ctx, orgID)
	if err != nil {
		return model.Workflow{}, err
	}
	if len(wfs) == 0 {
		return model.Workflow{}, Wrap("default", EntityWorkflow, orgID, ErrNotFound)
	}
	for _, wf := range wfs {
		if wf.IsDefault {
			return wf, nil
		}
	}
	return wfs[0], nil
}
