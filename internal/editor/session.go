// Package editor owns the working copy of one workflow. Every structural
// edit updates the in-memory graph first, is recorded for undo, and is
// written to the gateway in the background.
package editor

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"stateflow/internal/geometry"
	"stateflow/internal/history"
	"stateflow/internal/idgen"
	"stateflow/internal/layout"
	"stateflow/internal/model"
	"stateflow/internal/notify"
	"stateflow/internal/persistence"
	"stateflow/internal/scene"
)

var (
	ErrNameTaken         = errors.New("state name already in use")
	ErrUnknownState      = errors.New("unknown state")
	ErrUnknownTransition = errors.New("unknown transition")
	ErrUnknownGate       = errors.New("unknown gate")
)

type Options struct {
	Gateway  persistence.Gateway
	Layout   *layout.Store
	Notifier notify.Notifier
	Logger   *zap.Logger
	// IDs defaults to idgen.Generate.
	IDs          idgen.Func
	MaxHistory   int
	WriteTimeout time.Duration
}

type Session struct {
	gw       persistence.Gateway
	layout   *layout.Store
	notifier notify.Notifier
	log      *zap.Logger
	ids      idgen.Func
	history  *history.Manager[Action]
	w        *writer

	mu        sync.Mutex
	graph     *model.Graph
	preview   map[string]geometry.Box
	selection scene.Selection
	unsynced  map[string]struct{}
}

// Open loads a workflow and its visual layout and starts the background
// writer. Close must be called to stop it.
func Open(ctx context.Context, workflowID string, opts Options) (*Session, error) {
	if opts.Gateway == nil || opts.Layout == nil {
		return nil, errors.New("editor: gateway and layout store are required")
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.NewLogger(log)
	}
	if opts.IDs == nil {
		opts.IDs = idgen.Generate
	}

	g, err := persistence.LoadGraph(ctx, opts.Gateway, workflowID)
	if err != nil {
		return nil, fmt.Errorf("open workflow %s: %w", workflowID, err)
	}
	if _, err := opts.Layout.Load(workflowID); err != nil {
		return nil, fmt.Errorf("load layout of %s: %w", workflowID, err)
	}

	s := &Session{
		gw:       opts.Gateway,
		layout:   opts.Layout,
		notifier: opts.Notifier,
		log:      log.With(zap.String("workflow", workflowID)),
		ids:      opts.IDs,
		history:  history.New[Action](opts.MaxHistory),
		graph:    g,
		preview:  map[string]geometry.Box{},
		unsynced: map[string]struct{}{},
	}
	s.w = newWriter(opts.WriteTimeout, s.writeFailed)
	s.log.Debug("session opened",
		zap.Int("states", len(g.States)),
		zap.Int("transitions", len(g.Transitions)))
	return s, nil
}

func (s *Session) WorkflowID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph.Workflow.ID
}

func (s *Session) Workflow() model.Workflow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph.Workflow
}

// Graph returns a copy of the working graph.
func (s *Session) Graph() *model.Graph {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph.Clone()
}

func (s *Session) Layout() layout.Override {
	return s.layout.Get(s.WorkflowID())
}

// Scene routes every transition against the current positions, including
// uncommitted drag previews.
func (s *Session) Scene() scene.Scene {
	s.mu.Lock()
	g := s.graph
	if len(s.preview) > 0 {
		g = g.Clone()
		for i, st := range g.States {
			if b, ok := s.preview[st.ID]; ok {
				g.States[i].X, g.States[i].Y = b.Center.X, b.Center.Y
				g.States[i].Width, g.States[i].Height = b.Size.W, b.Size.H
			}
		}
	}
	wf := g.Workflow.ID
	s.mu.Unlock()
	return scene.Build(g, s.layout.Get(wf))
}

func (s *Session) Select(sel scene.Selection) {
	s.mu.Lock()
	s.selection = sel
	s.mu.Unlock()
}

func (s *Session) Selection() scene.Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection
}

func (s *Session) CanUndo() bool { return s.history.CanUndo() }
func (s *Session) CanRedo() bool { return s.history.CanRedo() }

// Undo reverts the latest recorded edit. It reports false when there was
// nothing to undo.
func (s *Session) Undo() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Undo(func(a Action) error {
		s.apply(a.Before, a.After)
		s.log.Debug("undo", zap.Stringer("action", a.Type))
		return nil
	})
}

func (s *Session) Redo() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Redo(func(a Action) error {
		s.apply(a.After, a.Before)
		s.log.Debug("redo", zap.Stringer("action", a.Type))
		return nil
	})
}

// Unsynced lists ids whose last gateway write failed.
func (s *Session) Unsynced() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.unsynced))
	for id := range s.unsynced {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Reconcile waits for pending writes and replaces the working graph with
// the gateway's copy. History is cleared since it may describe edits the
// gateway never saw.
func (s *Session) Reconcile(ctx context.Context) error {
	if err := s.Flush(ctx); err != nil {
		return err
	}
	wf := s.WorkflowID()
	g, err := persistence.LoadGraph(ctx, s.gw, wf)
	if err != nil {
		notify.Errorf(s.notifier, "reload failed: %v", err)
		return fmt.Errorf("reconcile %s: %w", wf, err)
	}

	s.mu.Lock()
	s.graph = g
	clear(s.preview)
	clear(s.unsynced)
	s.history.Clear()
	if !s.selectionValid() {
		s.selection = scene.Selection{}
	}
	s.mu.Unlock()

	s.log.Info("reconciled with gateway")
	s.notifier.Notify(notify.Success, "workflow reloaded")
	return nil
}

func (s *Session) selectionValid() bool {
	switch s.selection.Kind {
	case scene.SelectNode:
		_, ok := s.graph.State(s.selection.ID)
		return ok
	case scene.SelectEdge:
		_, ok := s.graph.Transition(s.selection.ID)
		return ok
	}
	return true
}

// Flush blocks until every write issued so far has completed.
func (s *Session) Flush(ctx context.Context) error {
	return s.w.flush(ctx)
}

// Close drains pending writes and stops the writer. The gateway stays
// open; it belongs to the caller.
func (s *Session) Close() error {
	s.w.close()
	return nil
}

func (s *Session) writeFailed(j job, err error) {
	s.log.Error("gateway write failed",
		zap.String("op", j.desc),
		zap.String("id", j.id),
		zap.Error(err))
	s.mu.Lock()
	s.unsynced[j.id] = struct{}{}
	s.mu.Unlock()
	notify.Errorf(s.notifier, "%s failed: %v", j.desc, err)
}

// enqueue hands a write to the writer. Callers hold s.mu.
func (s *Session) enqueue(desc, id string, run func(ctx context.Context) error) {
	if err := s.w.enqueue(job{desc: desc, id: id, run: run}); err != nil {
		s.log.Error("gateway write dropped",
			zap.String("op", desc),
			zap.String("id", id),
			zap.Error(err))
		s.unsynced[id] = struct{}{}
		notify.Errorf(s.notifier, "%s failed: %v", desc, err)
	}
}

// commit applies a new action and records it. Callers hold s.mu.
func (s *Session) commit(a Action) {
	s.apply(a.After, a.Before)
	s.history.Push(a)
	s.log.Debug("commit", zap.Stringer("action", a.Type))
}

// apply makes to the current truth. Entities listed in other but not in
// to are removed. Callers hold s.mu.
func (s *Session) apply(to, other Change) {
	wf := s.graph.Workflow.ID

	for _, g := range other.Gates {
		if to.hasGate(g.ID) {
			continue
		}
		s.graph.RemoveGate(g.TransitionID, g.ID)
		if other.hasTransition(g.TransitionID) && !to.hasTransition(g.TransitionID) {
			// goes away with its transition
			continue
		}
		id := g.ID
		s.enqueue("delete gate", id, func(ctx context.Context) error {
			return s.gw.DeleteGate(ctx, id)
		})
	}
	for _, t := range other.Transitions {
		if to.hasTransition(t.ID) {
			continue
		}
		s.graph.RemoveTransition(t.ID)
		id := t.ID
		s.enqueue("delete transition", id, func(ctx context.Context) error {
			return s.gw.DeleteTransition(ctx, id)
		})
		if _, err := s.layout.ForgetTransition(wf, id); err != nil {
			s.layoutFailed(id, err)
		}
		if s.selection.IsEdge(id) {
			s.selection = scene.Selection{}
		}
	}
	for _, st := range other.States {
		if to.hasState(st.ID) {
			continue
		}
		s.graph.RemoveState(st.ID)
		delete(s.preview, st.ID)
		id := st.ID
		s.enqueue("delete state", id, func(ctx context.Context) error {
			return s.gw.DeleteState(ctx, id)
		})
		if s.selection.IsNode(id) {
			s.selection = scene.Selection{}
		}
	}

	for _, st := range to.States {
		_, exists := s.graph.State(st.ID)
		s.graph.UpsertState(st)
		delete(s.preview, st.ID)
		if exists {
			s.enqueue("update state", st.ID, func(ctx context.Context) error {
				_, err := s.gw.UpdateState(ctx, st)
				return err
			})
		} else {
			s.enqueue("create state", st.ID, func(ctx context.Context) error {
				_, err := s.gw.CreateState(ctx, st)
				return err
			})
		}
	}
	for _, t := range to.Transitions {
		_, exists := s.graph.Transition(t.ID)
		s.graph.UpsertTransition(t)
		if exists {
			s.enqueue("update transition", t.ID, func(ctx context.Context) error {
				_, err := s.gw.UpdateTransition(ctx, t)
				return err
			})
		} else {
			s.enqueue("create transition", t.ID, func(ctx context.Context) error {
				_, err := s.gw.CreateTransition(ctx, t)
				return err
			})
		}
	}
	for _, g := range to.Gates {
		exists := slices.ContainsFunc(s.graph.Gates[g.TransitionID], func(x model.Gate) bool { return x.ID == g.ID })
		s.graph.UpsertGate(g)
		if exists {
			continue
		}
		s.enqueue("create gate", g.ID, func(ctx context.Context) error {
			_, err := s.gw.CreateGate(ctx, g)
			return err
		})
	}
	for id, ov := range to.Overrides {
		if err := s.layout.RestoreTransition(wf, id, ov); err != nil {
			s.layoutFailed(id, err)
		}
	}
}

func (s *Session) layoutFailed(id string, err error) {
	s.log.Warn("layout write failed", zap.String("transition", id), zap.Error(err))
	notify.Errorf(s.notifier, "saving layout failed: %v", err)
}
