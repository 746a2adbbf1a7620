package model

import (
	"errors"
	"fmt"
	"slices"
	"sort"
)

var (
	ErrDanglingTransition = errors.New("transition references unknown state")
	ErrCrossWorkflow      = errors.New("entity belongs to another workflow")
)

// Graph is the in-memory aggregate of one workflow. Gates are keyed by
// transition id.
type Graph struct {
	Workflow    Workflow
	States      []State
	Transitions []Transition
	Gates       map[string][]Gate
}

func NewGraph(wf Workflow) *Graph {
	return &Graph{Workflow: wf, Gates: map[string][]Gate{}}
}

func (g *Graph) stateIndex(id string) int {
	return slices.IndexFunc(g.States, func(s State) bool { return s.ID == id })
}

func (g *Graph) transitionIndex(id string) int {
	return slices.IndexFunc(g.Transitions, func(t Transition) bool { return t.ID == id })
}

func (g *Graph) State(id string) (State, bool) {
	if i := g.stateIndex(id); i >= 0 {
		return g.States[i], true
	}
	return State{}, false
}

func (g *Graph) StateByName(name string) (State, bool) {
	for _, s := range g.States {
		if s.Name == name {
			return s, true
		}
	}
	return State{}, false
}

func (g *Graph) Transition(id string) (Transition, bool) {
	if i := g.transitionIndex(id); i >= 0 {
		return g.Transitions[i], true
	}
	return Transition{}, false
}

// UpsertState replaces the state with the same id or appends it.
func (g *Graph) UpsertState(s State) {
	if i := g.stateIndex(s.ID); i >= 0 {
		g.States[i] = s
		return
	}
	g.States = append(g.States, s)
}

func (g *Graph) RemoveState(id string) bool {
	i := g.stateIndex(id)
	if i < 0 {
		return false
	}
	g.States = slices.Delete(g.States, i, i+1)
	return true
}

func (g *Graph) UpsertTransition(t Transition) {
	if i := g.transitionIndex(t.ID); i >= 0 {
		g.Transitions[i] = t
		return
	}
	g.Transitions = append(g.Transitions, t)
}

// RemoveTransition drops the transition and its gates.
func (g *Graph) RemoveTransition(id string) bool {
	i := g.transitionIndex(id)
	if i < 0 {
		return false
	}
	g.Transitions = slices.Delete(g.Transitions, i, i+1)
	delete(g.Gates, id)
	return true
}

// GatesOf returns the gates of a transition ordered by sort order.
func (g *Graph) GatesOf(transitionID string) []Gate {
	gates := slices.Clone(g.Gates[transitionID])
	SortGates(gates)
	return gates
}

func (g *Graph) UpsertGate(gate Gate) {
	if g.Gates == nil {
		g.Gates = map[string][]Gate{}
	}
	list := g.Gates[gate.TransitionID]
	if i := slices.IndexFunc(list, func(x Gate) bool { return x.ID == gate.ID }); i >= 0 {
		list[i] = gate
	} else {
		list = append(list, gate)
	}
	SortGates(list)
	g.Gates[gate.TransitionID] = list
}

func (g *Graph) RemoveGate(transitionID, id string) bool {
	list := g.Gates[transitionID]
	i := slices.IndexFunc(list, func(x Gate) bool { return x.ID == id })
	if i < 0 {
		return false
	}
	list = slices.Delete(list, i, i+1)
	if len(list) == 0 {
		delete(g.Gates, transitionID)
	} else {
		g.Gates[transitionID] = list
	}
	return true
}

// TransitionsTouching returns every transition with stateID at either end.
func (g *Graph) TransitionsTouching(stateID string) []Transition {
	var out []Transition
	for _, t := range g.Transitions {
		if t.Touches(stateID) {
			out = append(out, t)
		}
	}
	return out
}

// InitialState picks the state new items enter. The first target of a
// start sentinel wins, otherwise the plain state with the lowest sort order.
func (g *Graph) InitialState() (State, bool) {
	for _, s := range g.SortedStates() {
		if s.Type() != StateTypeStart {
			continue
		}
		for _, t := range g.Transitions {
			if t.FromStateID != s.ID {
				continue
			}
			if target, ok := g.State(t.ToStateID); ok {
				return target, true
			}
		}
	}
	for _, s := range g.SortedStates() {
		if s.Type() == StateTypeState {
			return s, true
		}
	}
	return State{}, false
}

// SortedStates returns the states ordered by sort order, then name.
func (g *Graph) SortedStates() []State {
	out := slices.Clone(g.States)
	SortStates(out)
	return out
}

// NextSortOrder is one past the highest sort order in use.
func (g *Graph) NextSortOrder() int {
	n := 0
	for _, s := range g.States {
		if s.SortOrder >= n {
			n = s.SortOrder + 1
		}
	}
	return n
}

// Validate checks referential integrity: every transition connects two
// states of this workflow and every gate belongs to a known transition.
func (g *Graph) Validate() error {
	var errs []error
	for _, s := range g.States {
		if s.WorkflowID != "" && s.WorkflowID != g.Workflow.ID {
			errs = append(errs, fmt.Errorf("state %s: %w", s.ID, ErrCrossWorkflow))
		}
	}
	for _, t := range g.Transitions {
		if t.WorkflowID != "" && t.WorkflowID != g.Workflow.ID {
			errs = append(errs, fmt.Errorf("transition %s: %w", t.ID, ErrCrossWorkflow))
		}
		for _, end := range []string{t.FromStateID, t.ToStateID} {
			if _, ok := g.State(end); !ok {
				errs = append(errs, fmt.Errorf("transition %s -> %q: %w", t.ID, end, ErrDanglingTransition))
			}
		}
	}
	for tid := range g.Gates {
		if _, ok := g.Transition(tid); !ok {
			errs = append(errs, fmt.Errorf("gates of %s: %w", tid, ErrDanglingTransition))
		}
	}
	return errors.Join(errs...)
}

// Clone returns a deep copy.
func (g *Graph) Clone() *Graph {
	c := &Graph{
		Workflow:    g.Workflow,
		States:      slices.Clone(g.States),
		Transitions: slices.Clone(g.Transitions),
		Gates:       make(map[string][]Gate, len(g.Gates)),
	}
	for k, v := range g.Gates {
		c.Gates[k] = slices.Clone(v)
	}
	return c
}

func SortStates(states []State) {
	sort.SliceStable(states, func(i, j int) bool {
		if states[i].SortOrder != states[j].SortOrder {
			return states[i].SortOrder < states[j].SortOrder
		}
		return states[i].Name < states[j].Name
	})
}

func SortGates(gates []Gate) {
	sort.SliceStable(gates, func(i, j int) bool { return gates[i].SortOrder < gates[j].SortOrder })
}
