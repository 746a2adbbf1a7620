package editor

import (
	"reflect"

	"stateflow/internal/geometry"
	"stateflow/internal/layout"
	"stateflow/internal/model"
)

// RerouteTransition moves one end of a transition to stateID. A non-nil
// pos pins the end to that spot on the box, nil lets it follow the other
// end. The state change and the anchor are undone together.
func (s *Session) RerouteTransition(id string, end layout.End, stateID string, pos *geometry.EdgePosition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.transition(id)
	if err != nil {
		return err
	}
	if end == layout.EndTo {
		t.ToStateID = stateID
	} else {
		t.FromStateID = stateID
	}
	cur, err := s.checkTransition(&t)
	if err != nil {
		return err
	}
	prev := s.layout.Get(s.graph.Workflow.ID).For(id)
	next := prev
	next.Anchors = prev.Anchors.With(end, pos)
	if t == cur && reflect.DeepEqual(prev.Anchors, next.Anchors) {
		return nil
	}
	s.commit(Action{
		Type: ActionRerouteTransition,
		Before: Change{
			Transitions: []model.Transition{cur},
			Overrides:   map[string]layout.TransitionOverride{id: prev},
		},
		After: Change{
			Transitions: []model.Transition{t},
			Overrides:   map[string]layout.TransitionOverride{id: next},
		},
	})
	return nil
}

// SetEdgePosition pins or, with nil, releases one end of a transition.
func (s *Session) SetEdgePosition(id string, end layout.End, pos *geometry.EdgePosition) error {
	wf, err := s.visual(id)
	if err != nil {
		return err
	}
	return s.layout.SetEdgePosition(wf, id, end, pos)
}

func (s *Session) SetWaypoints(id string, pts []geometry.Point) error {
	wf, err := s.visual(id)
	if err != nil {
		return err
	}
	return s.layout.SetWaypoints(wf, id, pts)
}

func (s *Session) InsertWaypoint(id string, index int, p geometry.Point) error {
	wf, err := s.visual(id)
	if err != nil {
		return err
	}
	return s.layout.InsertWaypoint(wf, id, index, p)
}

func (s *Session) MoveWaypoint(id string, index int, p geometry.Point) error {
	wf, err := s.visual(id)
	if err != nil {
		return err
	}
	return s.layout.MoveWaypoint(wf, id, index, p)
}

func (s *Session) RemoveWaypoint(id string, index int) error {
	wf, err := s.visual(id)
	if err != nil {
		return err
	}
	return s.layout.RemoveWaypoint(wf, id, index)
}

// SetLabelOffset moves a label relative to its path midpoint.
func (s *Session) SetLabelOffset(id string, offset geometry.Point) error {
	wf, err := s.visual(id)
	if err != nil {
		return err
	}
	return s.layout.SetLabelOffset(wf, id, offset)
}

func (s *Session) PinLabel(id string, p geometry.Point) error {
	wf, err := s.visual(id)
	if err != nil {
		return err
	}
	return s.layout.PinLabel(wf, id, p)
}

func (s *Session) UnpinLabel(id string) error {
	wf, err := s.visual(id)
	if err != nil {
		return err
	}
	return s.layout.UnpinLabel(wf, id)
}

// ResetRoute drops every visual override of a transition.
func (s *Session) ResetRoute(id string) error {
	wf, err := s.visual(id)
	if err != nil {
		return err
	}
	_, err = s.layout.ForgetTransition(wf, id)
	return err
}

func (s *Session) SetSnap(snap layout.Snap) error {
	return s.layout.SetSnap(s.WorkflowID(), snap)
}

// visual checks that id names a live transition and returns the workflow
// id its overrides are stored under.
func (s *Session) visual(id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.transition(id); err != nil {
		return "", err
	}
	return s.graph.Workflow.ID, nil
}

// State returns the committed copy of a state.
func (s *Session) State(id string) (model.State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph.State(id)
}

func (s *Session) Transition(id string) (model.Transition, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph.Transition(id)
}
