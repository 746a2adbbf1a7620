// Package file implements persistence.Gateway on the local filesystem, one
// JSON document per workflow. It enforces the same constraints as the
// database schema: unique state names per workflow, existing transition
// endpoints, and one default workflow per organization.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"stateflow/internal/model"
	"stateflow/internal/persistence"
)

// document is the on-disk form of one workflow.
type document struct {
	Workflow    model.Workflow     `json:"workflow"`
	States      []model.State      `json:"states"`
	Transitions []model.Transition `json:"transitions"`
	Gates       []model.Gate       `json:"gates"`
}

// Gateway stores workflows under <root>/workflows.
type Gateway struct {
	root string
	mu   sync.Mutex
}

var _ persistence.Gateway = (*Gateway)(nil)

func New(root string) *Gateway {
	return &Gateway{root: root}
}

func (g *Gateway) dir() string { return filepath.Join(g.root, "workflows") }

func (g *Gateway) path(id string) string {
	return filepath.Join(g.dir(), filepath.Base(id)+".json")
}

func (g *Gateway) Close() error { return nil }

func (g *Gateway) read(id string) (*document, error) {
	body, err := os.ReadFile(g.path(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, persistence.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read workflow %s: %w", id, err)
	}
	var doc document
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal workflow %s: %w", id, err)
	}
	return &doc, nil
}

func (g *Gateway) write(doc *document) error {
	if err := os.MkdirAll(g.dir(), 0750); err != nil {
		return fmt.Errorf("failed to create workflows directory: %w", err)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal workflow %s: %w", doc.Workflow.ID, err)
	}
	tmp := g.path(doc.Workflow.ID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write workflow %s: %w", doc.Workflow.ID, err)
	}
	if err := os.Rename(tmp, g.path(doc.Workflow.ID)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace workflow %s: %w", doc.Workflow.ID, err)
	}
	return nil
}

func (g *Gateway) all() ([]*document, error) {
	files, err := fs.Glob(os.DirFS(g.dir()), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list workflow files: %w", err)
	}
	docs := make([]*document, 0, len(files))
	for _, f := range files {
		doc, err := g.read(strings.TrimSuffix(f, ".json"))
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// find returns the document holding an entity matched by pred.
func (g *Gateway) find(pred func(*document) bool) (*document, error) {
	docs, err := g.all()
	if err != nil {
		return nil, err
	}
	for _, doc := range docs {
		if pred(doc) {
			return doc, nil
		}
	}
	return nil, persistence.ErrNotFound
}

func (d *document) stateIndex(id string) int {
	return slices.IndexFunc(d.States, func(s model.State) bool { return s.ID == id })
}

func (d *document) transitionIndex(id string) int {
	return slices.IndexFunc(d.Transitions, func(t model.Transition) bool { return t.ID == id })
}

func (d *document) gateIndex(id string) int {
	return slices.IndexFunc(d.Gates, func(x model.Gate) bool { return x.ID == id })
}

func (d *document) checkStateName(s model.State) error {
	for _, other := range d.States {
		if other.ID != s.ID && other.Name == s.Name {
			return fmt.Errorf("%w: state name %q already used", persistence.ErrConflict, s.Name)
		}
	}
	return nil
}

func (d *document) checkEndpoints(t model.Transition) error {
	for _, id := range []string{t.FromStateID, t.ToStateID} {
		if d.stateIndex(id) < 0 {
			return fmt.Errorf("%w: unknown state %q", persistence.ErrInvalid, id)
		}
	}
	return nil
}

func (d *document) dropTransition(id string) {
	if i := d.transitionIndex(id); i >= 0 {
		d.Transitions = slices.Delete(d.Transitions, i, i+1)
	}
	d.Gates = slices.DeleteFunc(d.Gates, func(x model.Gate) bool { return x.TransitionID == id })
}

// Workflows

func (g *Gateway) ListWorkflows(_ context.Context, orgID string) ([]model.Workflow, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	docs, err := g.all()
	if err != nil {
		return nil, persistence.Wrap("list", persistence.EntityWorkflow, orgID, err)
	}
	var out []model.Workflow
	for _, doc := range docs {
		if doc.Workflow.OrgID == orgID {
			out = append(out, doc.Workflow)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].IsDefault != out[j].IsDefault {
			return out[i].IsDefault
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (g *Gateway) GetWorkflow(_ context.Context, id string) (model.Workflow, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	doc, err := g.read(id)
	if err != nil {
		return model.Workflow{}, persistence.Wrap("get", persistence.EntityWorkflow, id, err)
	}
	return doc.Workflow, nil
}

func (g *Gateway) CreateWorkflow(_ context.Context, wf model.Workflow) (model.Workflow, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	doc := &document{Workflow: wf}
	if err := g.createDocument(doc); err != nil {
		return wf, persistence.Wrap("create", persistence.EntityWorkflow, wf.ID, err)
	}
	return doc.Workflow, nil
}

func (g *Gateway) createDocument(doc *document) error {
	if _, err := os.Stat(g.path(doc.Workflow.ID)); err == nil {
		return fmt.Errorf("%w: workflow exists", persistence.ErrConflict)
	}
	ts := time.Now().UTC()
	if doc.Workflow.CreatedAt.IsZero() {
		doc.Workflow.CreatedAt = ts
	}
	doc.Workflow.UpdatedAt = ts
	return g.write(doc)
}

func (g *Gateway) UpdateWorkflow(_ context.Context, wf model.Workflow) (model.Workflow, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	doc, err := g.read(wf.ID)
	if err != nil {
		return wf, persistence.Wrap("update", persistence.EntityWorkflow, wf.ID, err)
	}
	doc.Workflow.Name = wf.Name
	doc.Workflow.Description = wf.Description
	doc.Workflow.CanvasConfig = wf.CanvasConfig
	doc.Workflow.UpdatedAt = time.Now().UTC()
	if err := g.write(doc); err != nil {
		return wf, persistence.Wrap("update", persistence.EntityWorkflow, wf.ID, err)
	}
	return doc.Workflow, nil
}

func (g *Gateway) DeleteWorkflow(_ context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	err := os.Remove(g.path(id))
	if errors.Is(err, os.ErrNotExist) {
		err = persistence.ErrNotFound
	}
	return persistence.Wrap("delete", persistence.EntityWorkflow, id, err)
}

func (g *Gateway) SetDefaultWorkflow(_ context.Context, orgID, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	wrap := func(err error) error { return persistence.Wrap("set default", persistence.EntityWorkflow, id, err) }

	target, err := g.read(id)
	if err != nil {
		return wrap(err)
	}
	if target.Workflow.OrgID != orgID {
		return wrap(persistence.ErrNotFound)
	}
	docs, err := g.all()
	if err != nil {
		return wrap(err)
	}
	for _, doc := range docs {
		if doc.Workflow.OrgID != orgID {
			continue
		}
		want := doc.Workflow.ID == id
		if doc.Workflow.IsDefault == want {
			continue
		}
		doc.Workflow.IsDefault = want
		doc.Workflow.UpdatedAt = time.Now().UTC()
		if err := g.write(doc); err != nil {
			return wrap(err)
		}
	}
	return nil
}

// States

func (g *Gateway) GetStates(_ context.Context, workflowID string) ([]model.State, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	doc, err := g.read(workflowID)
	if err != nil {
		return nil, persistence.Wrap("list", persistence.EntityState, workflowID, err)
	}
	states := slices.Clone(doc.States)
	model.SortStates(states)
	return states, nil
}

func (g *Gateway) CreateState(_ context.Context, s model.State) (model.State, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	wrap := func(err error) error { return persistence.Wrap("create", persistence.EntityState, s.ID, err) }

	doc, err := g.read(s.WorkflowID)
	if err != nil {
		return s, wrap(err)
	}
	if doc.stateIndex(s.ID) >= 0 {
		return s, wrap(fmt.Errorf("%w: state exists", persistence.ErrConflict))
	}
	if err := doc.checkStateName(s); err != nil {
		return s, wrap(err)
	}
	doc.States = append(doc.States, s)
	return s, wrap(g.write(doc))
}

func (g *Gateway) UpdateState(_ context.Context, s model.State) (model.State, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	wrap := func(err error) error { return persistence.Wrap("update", persistence.EntityState, s.ID, err) }

	doc, err := g.find(func(d *document) bool { return d.stateIndex(s.ID) >= 0 })
	if err != nil {
		return s, wrap(err)
	}
	if err := doc.checkStateName(s); err != nil {
		return s, wrap(err)
	}
	s.WorkflowID = doc.Workflow.ID
	doc.States[doc.stateIndex(s.ID)] = s
	return s, wrap(g.write(doc))
}

// DeleteState also removes the transitions touching the state, matching
// the ON DELETE CASCADE of the database schema.
func (g *Gateway) DeleteState(_ context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	wrap := func(err error) error { return persistence.Wrap("delete", persistence.EntityState, id, err) }

	doc, err := g.find(func(d *document) bool { return d.stateIndex(id) >= 0 })
	if err != nil {
		return wrap(err)
	}
	i := doc.stateIndex(id)
	doc.States = slices.Delete(doc.States, i, i+1)
	for _, t := range slices.Clone(doc.Transitions) {
		if t.Touches(id) {
			doc.dropTransition(t.ID)
		}
	}
	return wrap(g.write(doc))
}

// Transitions

func (g *Gateway) GetTransitions(_ context.Context, workflowID string) ([]model.Transition, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	doc, err := g.read(workflowID)
	if err != nil {
		return nil, persistence.Wrap("list", persistence.EntityTransition, workflowID, err)
	}
	return slices.Clone(doc.Transitions), nil
}

func (g *Gateway) CreateTransition(_ context.Context, t model.Transition) (model.Transition, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	wrap := func(err error) error { return persistence.Wrap("create", persistence.EntityTransition, t.ID, err) }

	doc, err := g.read(t.WorkflowID)
	if err != nil {
		return t, wrap(err)
	}
	if doc.transitionIndex(t.ID) >= 0 {
		return t, wrap(fmt.Errorf("%w: transition exists", persistence.ErrConflict))
	}
	if err := doc.checkEndpoints(t); err != nil {
		return t, wrap(err)
	}
	doc.Transitions = append(doc.Transitions, t)
	return t, wrap(g.write(doc))
}

func (g *Gateway) UpdateTransition(_ context.Context, t model.Transition) (model.Transition, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	wrap := func(err error) error { return persistence.Wrap("update", persistence.EntityTransition, t.ID, err) }

	doc, err := g.find(func(d *document) bool { return d.transitionIndex(t.ID) >= 0 })
	if err != nil {
		return t, wrap(err)
	}
	if err := doc.checkEndpoints(t); err != nil {
		return t, wrap(err)
	}
	t.WorkflowID = doc.Workflow.ID
	doc.Transitions[doc.transitionIndex(t.ID)] = t
	return t, wrap(g.write(doc))
}

func (g *Gateway) DeleteTransition(_ context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	wrap := func(err error) error { return persistence.Wrap("delete", persistence.EntityTransition, id, err) }

	doc, err := g.find(func(d *document) bool { return d.transitionIndex(id) >= 0 })
	if err != nil {
		return wrap(err)
	}
	doc.dropTransition(id)
	return wrap(g.write(doc))
}

// Gates

func (g *Gateway) GetGates(_ context.Context, transitionIDs []string) ([]model.Gate, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(transitionIDs) == 0 {
		return nil, nil
	}
	docs, err := g.all()
	if err != nil {
		return nil, persistence.Wrap("list", persistence.EntityGate, "", err)
	}
	var out []model.Gate
	for _, doc := range docs {
		for _, gate := range doc.Gates {
			if slices.Contains(transitionIDs, gate.TransitionID) {
				out = append(out, gate)
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].TransitionID != out[j].TransitionID {
			return out[i].TransitionID < out[j].TransitionID
		}
		return out[i].SortOrder < out[j].SortOrder
	})
	return out, nil
}

func (g *Gateway) CreateGate(_ context.Context, gate model.Gate) (model.Gate, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	wrap := func(err error) error { return persistence.Wrap("create", persistence.EntityGate, gate.ID, err) }

	doc, err := g.find(func(d *document) bool { return d.transitionIndex(gate.TransitionID) >= 0 })
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			err = fmt.Errorf("%w: unknown transition %q", persistence.ErrInvalid, gate.TransitionID)
		}
		return gate, wrap(err)
	}
	if doc.gateIndex(gate.ID) >= 0 {
		return gate, wrap(fmt.Errorf("%w: gate exists", persistence.ErrConflict))
	}
	doc.Gates = append(doc.Gates, gate)
	return gate, wrap(g.write(doc))
}

func (g *Gateway) DeleteGate(_ context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	wrap := func(err error) error { return persistence.Wrap("delete", persistence.EntityGate, id, err) }

	doc, err := g.find(func(d *document) bool { return d.gateIndex(id) >= 0 })
	if err != nil {
		return wrap(err)
	}
	i := doc.gateIndex(id)
	doc.Gates = slices.Delete(doc.Gates, i, i+1)
	return wrap(g.write(doc))
}

// CreateGraph validates the whole graph before writing a single file.
func (g *Gateway) CreateGraph(_ context.Context, graph *model.Graph) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	wrap := func(err error) error {
		return persistence.Wrap("create graph", persistence.EntityWorkflow, graph.Workflow.ID, err)
	}

	doc := &document{Workflow: graph.Workflow}
	for _, s := range graph.States {
		if err := doc.checkStateName(s); err != nil {
			return wrap(err)
		}
		doc.States = append(doc.States, s)
	}
	for _, t := range graph.Transitions {
		if err := doc.checkEndpoints(t); err != nil {
			return wrap(err)
		}
		doc.Transitions = append(doc.Transitions, t)
		doc.Gates = append(doc.Gates, graph.GatesOf(t.ID)...)
	}
	if err := g.createDocument(doc); err != nil {
		return wrap(err)
	}
	graph.Workflow = doc.Workflow
	return nil
}
