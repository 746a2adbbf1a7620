package editor

import (
	"slices"

	"stateflow/internal/layout"
	"stateflow/internal/model"
)

type ActionType int

const (
	ActionAddState ActionType = iota
	ActionDeleteState
	ActionMoveState
	ActionResizeState
	ActionEditState
	ActionAddTransition
	ActionDeleteTransition
	ActionEditTransition
	ActionRerouteTransition
	ActionAddGate
	ActionDeleteGate
	ActionPaste
)

var actionNames = [...]string{
	ActionAddState:          "add state",
	ActionDeleteState:       "delete state",
	ActionMoveState:         "move state",
	ActionResizeState:       "resize state",
	ActionEditState:         "edit state",
	ActionAddTransition:     "add transition",
	ActionDeleteTransition:  "delete transition",
	ActionEditTransition:    "edit transition",
	ActionRerouteTransition: "reroute transition",
	ActionAddGate:           "add gate",
	ActionDeleteGate:        "delete gate",
	ActionPaste:             "paste",
}

func (t ActionType) String() string {
	if t >= 0 && int(t) < len(actionNames) {
		return actionNames[t]
	}
	return "unknown"
}

// Change is a snapshot of the entities an action touches. Overrides holds
// the visual layout of transitions that the action removes, so undo can
// put it back.
type Change struct {
	States      []model.State
	Transitions []model.Transition
	Gates       []model.Gate
	Overrides   map[string]layout.TransitionOverride
}

func (c Change) hasState(id string) bool {
	return slices.ContainsFunc(c.States, func(s model.State) bool { return s.ID == id })
}

func (c Change) hasTransition(id string) bool {
	return slices.ContainsFunc(c.Transitions, func(t model.Transition) bool { return t.ID == id })
}

func (c Change) hasGate(id string) bool {
	return slices.ContainsFunc(c.Gates, func(g model.Gate) bool { return g.ID == id })
}

// Action is one undoable edit. Undo makes Before true again and redo
// makes After true again; entities listed only on the other side are
// removed.
type Action struct {
	Type   ActionType
	Before Change
	After  Change
}
