// Package model defines the logical workflow entities shared with the
// persistence gateway: workflows, states, transitions and gates.
package model

import (
	"time"

	"stateflow/internal/geometry"
)

// CanvasConfig is the last viewed viewport of a workflow. It is advisory.
type CanvasConfig struct {
	Zoom float64 `json:"zoom" validate:"gte=0"`
	PanX float64 `json:"pan_x"`
	PanY float64 `json:"pan_y"`
}

type Workflow struct {
	ID           string       `json:"id"`
	OrgID        string       `json:"org_id"`
	Name         string       `json:"name"          validate:"required,max=200"`
	Description  string       `json:"description"`
	CanvasConfig CanvasConfig `json:"canvas_config"`
	IsDefault    bool         `json:"is_default"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

type StateType string

const (
	StateTypeState StateType = "state"
	StateTypeStart StateType = "start"
	StateTypeEnd   StateType = "end"
)

// Sentinel reports whether the state is a start or end marker rather than
// a lifecycle stage.
func (t StateType) Sentinel() bool { return t == StateTypeStart || t == StateTypeEnd }

type Shape string

const (
	ShapeRectangle Shape = "rectangle"
	ShapeRounded   Shape = "rounded"
	ShapePill      Shape = "pill"
	ShapeDiamond   Shape = "diamond"
)

// State is a node of the workflow graph. X and Y locate the center of its
// box. A zero Width or Height means the default dimensions.
type State struct {
	ID                    string    `json:"id"`
	WorkflowID            string    `json:"workflow_id"`
	Name                  string    `json:"name"                    validate:"required,max=100"`
	Label                 string    `json:"label"`
	Description           string    `json:"description"`
	StateType             StateType `json:"state_type"              validate:"omitempty,oneof=state start end"`
	Shape                 Shape     `json:"shape"                   validate:"omitempty,oneof=rectangle rounded pill diamond"`
	Color                 string    `json:"color"                   validate:"omitempty,hexcolor"`
	Icon                  string    `json:"icon"`
	X                     float64   `json:"position_x"`
	Y                     float64   `json:"position_y"`
	Width                 float64   `json:"width"                   validate:"gte=0"`
	Height                float64   `json:"height"                  validate:"gte=0"`
	IsEditable            bool      `json:"is_editable"`
	RequiresCheckout      bool      `json:"requires_checkout"`
	AutoIncrementRevision bool      `json:"auto_increment_revision"`
	SortOrder             int       `json:"sort_order"`
}

func (s State) Center() geometry.Point { return geometry.Pt(s.X, s.Y) }

// Size returns the box dimensions, substituting defaults for unset ones.
func (s State) Size() geometry.Size {
	sz := geometry.Sz(s.Width, s.Height)
	if sz.W <= 0 {
		sz.W = geometry.DefaultStateWidth
	}
	if sz.H <= 0 {
		sz.H = geometry.DefaultStateHeight
	}
	return sz
}

func (s State) Box() geometry.Box { return geometry.Box{Center: s.Center(), Size: s.Size()} }

// Type returns the state type, treating an empty value as a plain state.
func (s State) Type() StateType {
	if s.StateType == "" {
		return StateTypeState
	}
	return s.StateType
}

// DisplayName is the label when set, the name otherwise.
func (s State) DisplayName() string {
	if s.Label != "" {
		return s.Label
	}
	return s.Name
}

type LineStyle string

const (
	LineSolid  LineStyle = "solid"
	LineDashed LineStyle = "dashed"
	LineDotted LineStyle = "dotted"
)

type PathType string

const (
	PathCurved PathType = "curved"
	PathElbow  PathType = "elbow"
)

type ArrowHead string

const (
	ArrowFilled ArrowHead = "filled"
	ArrowOpen   ArrowHead = "open"
	ArrowNone   ArrowHead = "none"
)

// Next cycles filled -> open -> none -> filled.
func (a ArrowHead) Next() ArrowHead {
	switch a {
	case ArrowFilled, "":
		return ArrowOpen
	case ArrowOpen:
		return ArrowNone
	default:
		return ArrowFilled
	}
}

// Line is the drawing style of a transition.
type Line struct {
	Style     LineStyle `json:"line_style"      validate:"omitempty,oneof=solid dashed dotted"`
	PathType  PathType  `json:"line_path_type"  validate:"omitempty,oneof=curved elbow"`
	ArrowHead ArrowHead `json:"line_arrow_head" validate:"omitempty,oneof=filled open none"`
	Thickness int       `json:"line_thickness"  validate:"omitempty,gte=1,lte=8"`
	Color     string    `json:"line_color"      validate:"omitempty,hexcolor"`
}

const DefaultLineColor = "#64748b"

func DefaultLine() Line {
	return Line{
		Style:     LineSolid,
		PathType:  PathCurved,
		ArrowHead: ArrowFilled,
		Thickness: 2,
		Color:     DefaultLineColor,
	}
}

type Transition struct {
	ID          string `json:"id"`
	WorkflowID  string `json:"workflow_id"`
	FromStateID string `json:"from_state_id" validate:"required"`
	ToStateID   string `json:"to_state_id"   validate:"required"`
	Name        string `json:"name"          validate:"max=100"`
	Description string `json:"description"`
	Line        Line   `json:"line"`
}

// Touches reports whether stateID is either endpoint.
func (t Transition) Touches(stateID string) bool {
	return t.FromStateID == stateID || t.ToStateID == stateID
}

// Gate is an ordered approval condition on a transition.
type Gate struct {
	ID           string `json:"id"`
	TransitionID string `json:"transition_id" validate:"required"`
	Name         string `json:"name"          validate:"required,max=100"`
	Description  string `json:"description"`
	SortOrder    int    `json:"sort_order"`
}

// NewState returns a plain state with default attributes centered at p.
func NewState(workflowID, name string, p geometry.Point) State {
	return State{
		WorkflowID: workflowID,
		Name:       name,
		StateType:  StateTypeState,
		Shape:      ShapeRounded,
		X:          p.X,
		Y:          p.Y,
		Width:      geometry.DefaultStateWidth,
		Height:     geometry.DefaultStateHeight,
		IsEditable: true,
	}
}

// NewTransition returns a transition between two states in the default line style.
func NewTransition(workflowID, from, to string) Transition {
	return Transition{
		WorkflowID:  workflowID,
		FromStateID: from,
		ToStateID:   to,
		Line:        DefaultLine(),
	}
}
