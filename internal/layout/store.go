// Package layout stores client-local visual overrides of workflows:
// waypoints, label offsets, manual edge anchors and snap settings. None of
// it is part of the logical model or of undo history.
package layout

import (
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"

	"stateflow/internal/geometry"
)

const keyPrefix = "workflow-visual-"

// Key is the backend key of a workflow's overrides.
func Key(workflowID string) string { return keyPrefix + workflowID }

// Store caches overrides per workflow and writes every change through to
// its backend.
type Store struct {
	backend Backend
	log     *zap.Logger

	mu     sync.Mutex
	loaded map[string]*Override
}

func NewStore(backend Backend, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{backend: backend, log: log, loaded: map[string]*Override{}}
}

// Load reads the overrides of a workflow from the backend, replacing any
// cached copy. A missing or undecodable blob yields empty overrides.
func (s *Store) Load(workflowID string) (Override, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.loaded, workflowID)
	o, err := s.get(workflowID)
	if err != nil {
		return NewOverride(), err
	}
	return o.Clone(), nil
}

// Get returns a copy of the cached overrides, loading them on first use.
func (s *Store) Get(workflowID string) Override {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, err := s.get(workflowID)
	if err != nil {
		return NewOverride()
	}
	return o.Clone()
}

func (s *Store) get(workflowID string) (*Override, error) {
	if o, ok := s.loaded[workflowID]; ok {
		return o, nil
	}
	body, found, err := s.backend.Get(Key(workflowID))
	if err != nil {
		return nil, err
	}
	o := NewOverride()
	if found {
		var decoded Override
		if err := json.Unmarshal(body, &decoded); err != nil {
			s.log.Warn("discarding corrupt visual layout",
				zap.String("workflow_id", workflowID), zap.Error(err))
		} else {
			decoded.normalize()
			o = decoded
		}
	}
	s.loaded[workflowID] = &o
	return &o, nil
}

func (s *Store) update(workflowID string, fn func(o *Override)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, err := s.get(workflowID)
	if err != nil {
		return err
	}
	c := o.Clone()
	fn(&c)
	body, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode layout %s: %w", workflowID, err)
	}
	if err := s.backend.Set(Key(workflowID), body); err != nil {
		return err
	}
	s.loaded[workflowID] = &c
	return nil
}

// SetWaypoints replaces the waypoints of a transition. An empty list
// clears them.
func (s *Store) SetWaypoints(workflowID, transitionID string, pts []geometry.Point) error {
	return s.update(workflowID, func(o *Override) {
		if len(pts) == 0 {
			delete(o.Waypoints, transitionID)
			return
		}
		o.Waypoints[transitionID] = slices.Clone(pts)
	})
}

// InsertWaypoint splices p in at index, clamped to the list bounds.
func (s *Store) InsertWaypoint(workflowID, transitionID string, index int, p geometry.Point) error {
	return s.update(workflowID, func(o *Override) {
		wps := o.Waypoints[transitionID]
		index = min(max(index, 0), len(wps))
		o.Waypoints[transitionID] = slices.Insert(slices.Clone(wps), index, p)
	})
}

func (s *Store) MoveWaypoint(workflowID, transitionID string, index int, p geometry.Point) error {
	return s.update(workflowID, func(o *Override) {
		wps := o.Waypoints[transitionID]
		if index >= 0 && index < len(wps) {
			wps[index] = p
		}
	})
}

func (s *Store) RemoveWaypoint(workflowID, transitionID string, index int) error {
	return s.update(workflowID, func(o *Override) {
		wps := o.Waypoints[transitionID]
		if index < 0 || index >= len(wps) {
			return
		}
		wps = slices.Delete(wps, index, index+1)
		if len(wps) == 0 {
			delete(o.Waypoints, transitionID)
			return
		}
		o.Waypoints[transitionID] = wps
	})
}

func (s *Store) SetLabelOffset(workflowID, transitionID string, offset geometry.Point) error {
	return s.update(workflowID, func(o *Override) {
		if offset == (geometry.Point{}) {
			delete(o.LabelOffsets, transitionID)
			return
		}
		o.LabelOffsets[transitionID] = offset
	})
}

// PinLabel fixes a label at an absolute position regardless of the path.
func (s *Store) PinLabel(workflowID, transitionID string, p geometry.Point) error {
	return s.update(workflowID, func(o *Override) {
		o.PinnedLabels[transitionID] = p
	})
}

func (s *Store) UnpinLabel(workflowID, transitionID string) error {
	return s.update(workflowID, func(o *Override) {
		delete(o.PinnedLabels, transitionID)
	})
}

// SetEdgePosition stores a manual anchor for one end of a transition. A
// nil position reverts that end to ray casting.
func (s *Store) SetEdgePosition(workflowID, transitionID string, end End, pos *geometry.EdgePosition) error {
	return s.update(workflowID, func(o *Override) {
		a := o.EdgePositions[transitionID].With(end, pos)
		if a.empty() {
			delete(o.EdgePositions, transitionID)
			return
		}
		o.EdgePositions[transitionID] = a
	})
}

func (s *Store) ClearEdgePosition(workflowID, transitionID string, end End) error {
	return s.SetEdgePosition(workflowID, transitionID, end, nil)
}

func (s *Store) SetSnap(workflowID string, snap Snap) error {
	return s.update(workflowID, func(o *Override) {
		o.Snap = snap
		o.normalize()
	})
}

// ForgetTransition drops all overrides of a transition and returns what
// was stored so the caller can put it back.
func (s *Store) ForgetTransition(workflowID, transitionID string) (TransitionOverride, error) {
	var prev TransitionOverride
	err := s.update(workflowID, func(o *Override) {
		prev = o.For(transitionID)
		o.forget(transitionID)
	})
	return prev, err
}

// RestoreTransition replaces the overrides of a transition with t.
func (s *Store) RestoreTransition(workflowID, transitionID string, t TransitionOverride) error {
	return s.update(workflowID, func(o *Override) {
		o.restore(transitionID, t)
	})
}

// Forget removes every override of a workflow.
func (s *Store) Forget(workflowID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.loaded, workflowID)
	return s.backend.Delete(Key(workflowID))
}
