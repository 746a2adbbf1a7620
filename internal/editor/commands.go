package editor

import (
	"context"
	"fmt"
	"strconv"

	"stateflow/internal/geometry"
	"stateflow/internal/idgen"
	"stateflow/internal/layout"
	"stateflow/internal/model"
	"stateflow/internal/scene"
)

// nameTaken reports whether another state already uses name.
func (s *Session) nameTaken(name, exceptID string) bool {
	other, ok := s.graph.StateByName(name)
	return ok && other.ID != exceptID
}

// uniqueName returns base, or base followed by the lowest free number.
func (s *Session) uniqueName(base string) string {
	if !s.nameTaken(base, "") {
		return base
	}
	for i := 2; ; i++ {
		if name := base + " " + strconv.Itoa(i); !s.nameTaken(name, "") {
			return name
		}
	}
}

func (s *Session) newID(prefix string) (string, error) {
	id, err := s.ids(prefix)
	if err != nil {
		return "", fmt.Errorf("editor: %w", err)
	}
	return id, nil
}

func (s *Session) state(id string) (model.State, error) {
	st, ok := s.graph.State(id)
	if !ok {
		return model.State{}, fmt.Errorf("%w: %s", ErrUnknownState, id)
	}
	return st, nil
}

func (s *Session) transition(id string) (model.Transition, error) {
	t, ok := s.graph.Transition(id)
	if !ok {
		return model.Transition{}, fmt.Errorf("%w: %s", ErrUnknownTransition, id)
	}
	return t, nil
}

// AddState creates a plain state centered at p. An empty name picks the
// next free "State N".
func (s *Session) AddState(name string, p geometry.Point) (model.State, error) {
	return s.AddStateOfType(model.StateTypeState, name, p)
}

// AddStateOfType creates a state of the given type, e.g. a start or end
// sentinel.
func (s *Session) AddStateOfType(typ model.StateType, name string, p geometry.Point) (model.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case name == "":
		name = s.uniqueName(defaultName(typ))
	case s.nameTaken(name, ""):
		return model.State{}, fmt.Errorf("%w: %q", ErrNameTaken, name)
	}
	id, err := s.newID(idgen.StatePrefix)
	if err != nil {
		return model.State{}, err
	}
	st := model.NewState(s.graph.Workflow.ID, name, p)
	st.ID = id
	st.StateType = typ
	st.SortOrder = s.graph.NextSortOrder()
	if typ.Sentinel() {
		st.Shape = model.ShapePill
		st.IsEditable = false
	}
	if err := model.Validate(st); err != nil {
		return model.State{}, err
	}

	s.commit(Action{Type: ActionAddState, After: Change{States: []model.State{st}}})
	s.selection = scene.NodeSelection(id)
	return st, nil
}

func defaultName(typ model.StateType) string {
	switch typ {
	case model.StateTypeStart:
		return "Start"
	case model.StateTypeEnd:
		return "End"
	}
	return "State"
}

// UpdateState replaces the attributes of an existing state.
func (s *Session) UpdateState(st model.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.state(st.ID)
	if err != nil {
		return err
	}
	st.WorkflowID = cur.WorkflowID
	if s.nameTaken(st.Name, st.ID) {
		return fmt.Errorf("%w: %q", ErrNameTaken, st.Name)
	}
	if err := model.Validate(st); err != nil {
		return err
	}
	if st == cur {
		return nil
	}
	s.commit(Action{
		Type:   ActionEditState,
		Before: Change{States: []model.State{cur}},
		After:  Change{States: []model.State{st}},
	})
	return nil
}

// RenameState is UpdateState for the name alone.
func (s *Session) RenameState(id, name string) error {
	s.mu.Lock()
	st, err := s.state(id)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	st.Name = name
	return s.UpdateState(st)
}

// PreviewState shows a state at a transient position and size without
// recording or persisting anything.
func (s *Session) PreviewState(id string, center geometry.Point, size geometry.Size) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.graph.State(id); !ok {
		return
	}
	s.preview[id] = geometry.Box{Center: center, Size: size.Clamp()}
}

// ClearPreview drops the transient position of a state.
func (s *Session) ClearPreview(id string) {
	s.mu.Lock()
	delete(s.preview, id)
	s.mu.Unlock()
}

// CommitStateMove finishes a drag. A release at the starting point
// records nothing.
func (s *Session) CommitStateMove(id string, center geometry.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.preview, id)
	cur, err := s.state(id)
	if err != nil {
		return err
	}
	if cur.Center() == center {
		return nil
	}
	next := cur
	next.X, next.Y = center.X, center.Y
	s.commit(Action{
		Type:   ActionMoveState,
		Before: Change{States: []model.State{cur}},
		After:  Change{States: []model.State{next}},
	})
	return nil
}

// CommitStateResize finishes a resize. The size is clamped to the minimum
// box.
func (s *Session) CommitStateResize(id string, box geometry.Box) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.preview, id)
	cur, err := s.state(id)
	if err != nil {
		return err
	}
	box.Size = box.Size.Clamp()
	if cur.Box() == box {
		return nil
	}
	next := cur
	next.X, next.Y = box.Center.X, box.Center.Y
	next.Width, next.Height = box.Size.W, box.Size.H
	s.commit(Action{
		Type:   ActionResizeState,
		Before: Change{States: []model.State{cur}},
		After:  Change{States: []model.State{next}},
	})
	return nil
}

// DeleteState removes a state with every transition touching it, their
// gates and their visual overrides, as one undoable edit.
func (s *Session) DeleteState(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.state(id)
	if err != nil {
		return err
	}
	before := Change{States: []model.State{cur}}
	s.captureTransitions(&before, s.graph.TransitionsTouching(id)...)
	s.commit(Action{Type: ActionDeleteState, Before: before})
	return nil
}

// captureTransitions adds transitions with their gates and overrides to c.
func (s *Session) captureTransitions(c *Change, ts ...model.Transition) {
	o := s.layout.Get(s.graph.Workflow.ID)
	for _, t := range ts {
		c.Transitions = append(c.Transitions, t)
		c.Gates = append(c.Gates, s.graph.GatesOf(t.ID)...)
		if ov := o.For(t.ID); !ov.IsZero() {
			if c.Overrides == nil {
				c.Overrides = map[string]layout.TransitionOverride{}
			}
			c.Overrides[t.ID] = ov
		}
	}
}

// CreateTransition connects two existing states in the default line style.
func (s *Session) CreateTransition(from, to string) (model.Transition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.state(from); err != nil {
		return model.Transition{}, err
	}
	if _, err := s.state(to); err != nil {
		return model.Transition{}, err
	}
	id, err := s.newID(idgen.TransitionPrefix)
	if err != nil {
		return model.Transition{}, err
	}
	t := model.NewTransition(s.graph.Workflow.ID, from, to)
	t.ID = id
	s.commit(Action{Type: ActionAddTransition, After: Change{Transitions: []model.Transition{t}}})
	s.selection = scene.EdgeSelection(id)
	return t, nil
}

// UpdateTransition replaces the attributes of an existing transition. Its
// endpoints must name states of this workflow.
func (s *Session) UpdateTransition(t model.Transition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateTransition(ActionEditTransition, t)
}

func (s *Session) updateTransition(typ ActionType, t model.Transition) error {
	cur, err := s.checkTransition(&t)
	if err != nil {
		return err
	}
	if t == cur {
		return nil
	}
	s.commit(Action{
		Type:   typ,
		Before: Change{Transitions: []model.Transition{cur}},
		After:  Change{Transitions: []model.Transition{t}},
	})
	return nil
}

// checkTransition validates an edited transition against the graph and
// returns the stored version.
func (s *Session) checkTransition(t *model.Transition) (model.Transition, error) {
	cur, err := s.transition(t.ID)
	if err != nil {
		return model.Transition{}, err
	}
	t.WorkflowID = cur.WorkflowID
	if _, err := s.state(t.FromStateID); err != nil {
		return model.Transition{}, err
	}
	if _, err := s.state(t.ToStateID); err != nil {
		return model.Transition{}, err
	}
	if err := model.Validate(*t); err != nil {
		return model.Transition{}, err
	}
	return cur, nil
}

// editTransition loads a transition, lets fn change it and records the
// result.
func (s *Session) editTransition(id string, fn func(t *model.Transition)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.transition(id)
	if err != nil {
		return err
	}
	fn(&t)
	return s.updateTransition(ActionEditTransition, t)
}

func (s *Session) RenameTransition(id, name string) error {
	return s.editTransition(id, func(t *model.Transition) { t.Name = name })
}

// CycleArrow steps the arrow head through filled, open and none.
func (s *Session) CycleArrow(id string) error {
	return s.editTransition(id, func(t *model.Transition) { t.Line.ArrowHead = t.Line.ArrowHead.Next() })
}

// TogglePathType switches a transition between curved and elbow routing.
func (s *Session) TogglePathType(id string) error {
	return s.editTransition(id, func(t *model.Transition) {
		if t.Line.PathType == model.PathElbow {
			t.Line.PathType = model.PathCurved
		} else {
			t.Line.PathType = model.PathElbow
		}
	})
}

// CycleLineStyle steps through solid, dashed and dotted.
func (s *Session) CycleLineStyle(id string) error {
	return s.editTransition(id, func(t *model.Transition) {
		switch t.Line.Style {
		case model.LineSolid, "":
			t.Line.Style = model.LineDashed
		case model.LineDashed:
			t.Line.Style = model.LineDotted
		default:
			t.Line.Style = model.LineSolid
		}
	})
}

// DeleteTransition removes a transition with its gates and overrides.
func (s *Session) DeleteTransition(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.transition(id)
	if err != nil {
		return err
	}
	var before Change
	s.captureTransitions(&before, t)
	s.commit(Action{Type: ActionDeleteTransition, Before: before})
	return nil
}

// Delete removes whatever sel names.
func (s *Session) Delete(sel scene.Selection) error {
	switch sel.Kind {
	case scene.SelectNode:
		return s.DeleteState(sel.ID)
	case scene.SelectEdge:
		return s.DeleteTransition(sel.ID)
	}
	return nil
}

// AddGate appends a gate to a transition.
func (s *Session) AddGate(transitionID, name string) (model.Gate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.transition(transitionID); err != nil {
		return model.Gate{}, err
	}
	id, err := s.newID(idgen.GatePrefix)
	if err != nil {
		return model.Gate{}, err
	}
	gates := s.graph.GatesOf(transitionID)
	g := model.Gate{ID: id, TransitionID: transitionID, Name: name}
	if n := len(gates); n > 0 {
		g.SortOrder = gates[n-1].SortOrder + 1
	}
	if err := model.Validate(g); err != nil {
		return model.Gate{}, err
	}
	s.commit(Action{Type: ActionAddGate, After: Change{Gates: []model.Gate{g}}})
	return g, nil
}

func (s *Session) DeleteGate(transitionID, gateID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, g := range s.graph.GatesOf(transitionID) {
		if g.ID == gateID {
			s.commit(Action{Type: ActionDeleteGate, Before: Change{Gates: []model.Gate{g}}})
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownGate, gateID)
}

// SetViewport stores the pan and zoom of the workflow. It is advisory and
// not recorded for undo.
func (s *Session) SetViewport(cfg model.CanvasConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.graph.Workflow.CanvasConfig == cfg {
		return nil
	}
	s.graph.Workflow.CanvasConfig = cfg
	wf := s.graph.Workflow
	s.enqueue("update workflow", wf.ID, func(ctx context.Context) error {
		_, err := s.gw.UpdateWorkflow(ctx, wf)
		return err
	})
	return nil
}
