// Package exchange moves the logical definition of a workflow in and out
// of a versioned JSON document. Transitions reference states by name, so
// a document can be imported into any organization with fresh ids. Visual
// overrides are not part of the document.
package exchange

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"stateflow/internal/model"
)

const Version = 1

var ErrInvalidDocument = errors.New("invalid workflow document")

type Document struct {
	Version     int             `json:"version"     validate:"eq=1"`
	ExportedAt  time.Time       `json:"exportedAt"`
	Workflow    WorkflowDoc     `json:"workflow"`
	States      []StateDoc      `json:"states"      validate:"dive"`
	Transitions []TransitionDoc `json:"transitions" validate:"dive"`
}

type WorkflowDoc struct {
	Name         string              `json:"name"                    validate:"required,max=200"`
	Description  string              `json:"description"`
	CanvasConfig *model.CanvasConfig `json:"canvas_config,omitempty"`
}

type StateDoc struct {
	Name                  string          `json:"name"                              validate:"required,max=100"`
	Label                 string          `json:"label"`
	Description           string          `json:"description"`
	Color                 string          `json:"color"                             validate:"omitempty,hexcolor"`
	Icon                  string          `json:"icon"`
	PositionX             float64         `json:"position_x"`
	PositionY             float64         `json:"position_y"`
	IsEditable            bool            `json:"is_editable"`
	RequiresCheckout      bool            `json:"requires_checkout"`
	SortOrder             int             `json:"sort_order"`
	StateType             model.StateType `json:"state_type,omitempty"              validate:"omitempty,oneof=state start end"`
	Shape                 model.Shape     `json:"shape,omitempty"                   validate:"omitempty,oneof=rectangle rounded pill diamond"`
	Width                 float64         `json:"width,omitempty"                   validate:"gte=0"`
	Height                float64         `json:"height,omitempty"                  validate:"gte=0"`
	AutoIncrementRevision bool            `json:"auto_increment_revision,omitempty"`
}

type TransitionDoc struct {
	FromState     string          `json:"from_state"      validate:"required"`
	ToState       string          `json:"to_state"        validate:"required"`
	Name          string          `json:"name"            validate:"max=100"`
	Description   string          `json:"description"`
	LineStyle     model.LineStyle `json:"line_style"      validate:"omitempty,oneof=solid dashed dotted"`
	LinePathType  model.PathType  `json:"line_path_type"  validate:"omitempty,oneof=curved elbow"`
	LineArrowHead model.ArrowHead `json:"line_arrow_head" validate:"omitempty,oneof=filled open none"`
	LineThickness int             `json:"line_thickness"  validate:"omitempty,gte=1,lte=8"`
	LineColor     string          `json:"line_color"      validate:"omitempty,hexcolor"`
	Gates         []GateDoc       `json:"gates,omitempty" validate:"dive"`
}

type GateDoc struct {
	Name        string `json:"name"        validate:"required,max=100"`
	Description string `json:"description"`
}

// Export describes g with states in sort order. It fails if a transition
// references a state that is not in the graph.
func Export(g *model.Graph, now time.Time) (Document, error) {
	cfg := g.Workflow.CanvasConfig
	doc := Document{
		Version:    Version,
		ExportedAt: now.UTC(),
		Workflow: WorkflowDoc{
			Name:         g.Workflow.Name,
			Description:  g.Workflow.Description,
			CanvasConfig: &cfg,
		},
		States:      []StateDoc{},
		Transitions: []TransitionDoc{},
	}
	for _, s := range g.SortedStates() {
		doc.States = append(doc.States, StateDoc{
			Name:                  s.Name,
			Label:                 s.Label,
			Description:           s.Description,
			Color:                 s.Color,
			Icon:                  s.Icon,
			PositionX:             s.X,
			PositionY:             s.Y,
			IsEditable:            s.IsEditable,
			RequiresCheckout:      s.RequiresCheckout,
			SortOrder:             s.SortOrder,
			StateType:             s.StateType,
			Shape:                 s.Shape,
			Width:                 s.Width,
			Height:                s.Height,
			AutoIncrementRevision: s.AutoIncrementRevision,
		})
	}
	for _, t := range g.Transitions {
		from, okFrom := g.State(t.FromStateID)
		to, okTo := g.State(t.ToStateID)
		if !okFrom || !okTo {
			return Document{}, fmt.Errorf("export: transition %s: %w", t.ID, model.ErrDanglingTransition)
		}
		td := TransitionDoc{
			FromState:     from.Name,
			ToState:       to.Name,
			Name:          t.Name,
			Description:   t.Description,
			LineStyle:     t.Line.Style,
			LinePathType:  t.Line.PathType,
			LineArrowHead: t.Line.ArrowHead,
			LineThickness: t.Line.Thickness,
			LineColor:     t.Line.Color,
		}
		for _, gate := range g.GatesOf(t.ID) {
			td.Gates = append(td.Gates, GateDoc{Name: gate.Name, Description: gate.Description})
		}
		doc.Transitions = append(doc.Transitions, td)
	}
	return doc, nil
}

// Encode writes doc as indented JSON.
func Encode(w io.Writer, doc Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode workflow document: %w", err)
	}
	return nil
}
