package editor

import (
	"fmt"

	"stateflow/internal/clipboard"
	"stateflow/internal/geometry"
	"stateflow/internal/idgen"
	"stateflow/internal/model"
	"stateflow/internal/scene"
)

// PasteOffset shifts a pasted state so it does not cover the original.
var PasteOffset = geometry.Pt(40, 40)

// Copy captures the selected state or transition.
func (s *Session) Copy(sel scene.Selection) (clipboard.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch sel.Kind {
	case scene.SelectNode:
		st, err := s.state(sel.ID)
		if err != nil {
			return clipboard.Item{}, err
		}
		return clipboard.StateItem(st), nil
	case scene.SelectEdge:
		t, err := s.transition(sel.ID)
		if err != nil {
			return clipboard.Item{}, err
		}
		return clipboard.TransitionItem(t, s.graph.GatesOf(t.ID)), nil
	}
	return clipboard.Item{}, fmt.Errorf("editor: nothing selected")
}

// Paste adds a copy of it with fresh ids and selects it. A state lands at
// its original position plus offset with a free name. A transition keeps
// its endpoints, which must exist in this workflow.
func (s *Session) Paste(it clipboard.Item, offset geometry.Point) (scene.Selection, error) {
	if err := it.Validate(); err != nil {
		return scene.Selection{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var after Change
	var sel scene.Selection
	switch it.Kind {
	case clipboard.KindState:
		st := *it.State
		id, err := s.newID(idgen.StatePrefix)
		if err != nil {
			return scene.Selection{}, err
		}
		st.ID = id
		st.WorkflowID = s.graph.Workflow.ID
		st.Name = s.uniqueName(st.Name + " copy")
		st.X += offset.X
		st.Y += offset.Y
		st.SortOrder = s.graph.NextSortOrder()
		if err := model.Validate(st); err != nil {
			return scene.Selection{}, err
		}
		after.States = append(after.States, st)
		sel = scene.NodeSelection(id)

	case clipboard.KindTransition:
		t := *it.Transition
		if _, err := s.state(t.FromStateID); err != nil {
			return scene.Selection{}, err
		}
		if _, err := s.state(t.ToStateID); err != nil {
			return scene.Selection{}, err
		}
		id, err := s.newID(idgen.TransitionPrefix)
		if err != nil {
			return scene.Selection{}, err
		}
		t.ID = id
		t.WorkflowID = s.graph.Workflow.ID
		after.Transitions = append(after.Transitions, t)
		for _, g := range it.Gates {
			gid, err := s.newID(idgen.GatePrefix)
			if err != nil {
				return scene.Selection{}, err
			}
			g.ID, g.TransitionID = gid, id
			after.Gates = append(after.Gates, g)
		}
		sel = scene.EdgeSelection(id)
	}

	s.commit(Action{Type: ActionPaste, After: after})
	s.selection = sel
	return sel, nil
}
