// Package scene derives everything a renderer needs from a workflow graph
// and its visual overrides: node boxes, connector paths, handles, label
// and gate positions. A Scene is an immutable snapshot rebuilt after every
// change.
package scene

import (
	"stateflow/internal/geometry"
	"stateflow/internal/layout"
	"stateflow/internal/model"
)

// CurveSteps is the number of samples per cubic segment used for hit
// testing and raster output.
const CurveSteps = 16

type Node struct {
	ID    string
	Name  string
	Type  model.StateType
	Shape model.Shape
	Color string
	Box   geometry.Box
}

type GatePos struct {
	ID    string
	Name  string
	Point geometry.Point
}

type Edge struct {
	ID     string
	FromID string
	ToID   string
	Name   string
	Line   model.Line

	Start geometry.Anchor
	End   geometry.Anchor
	// FromManual and ToManual report a stored edge position at that end.
	FromManual bool
	ToManual   bool

	Waypoints []geometry.Point
	Path      geometry.Path
	// D is Path rendered as SVG path data.
	D string
	// Segments and Handles are only set for elbow connectors.
	Segments []geometry.Point
	Handles  []geometry.Handle

	Label       geometry.Point
	LabelOffset geometry.Point
	LabelPinned bool
	Gates       []GatePos

	polyline []geometry.Point
}

// Polyline is the flattened path.
func (e Edge) Polyline() []geometry.Point { return e.polyline }

func (e Edge) Elbow() bool { return e.Line.PathType == model.PathElbow }

// Anchor returns the anchor of one end.
func (e Edge) Anchor(end layout.End) geometry.Anchor {
	if end == layout.EndTo {
		return e.End
	}
	return e.Start
}

type Scene struct {
	WorkflowID string
	Nodes      []Node
	Edges      []Edge
	// Invalid lists transitions skipped because an endpoint is missing.
	Invalid []string
	Snap    layout.Snap

	nodes map[string]int
	edges map[string]int
}

// Build lays out every state and routes every transition of g.
func Build(g *model.Graph, o layout.Override) Scene {
	sc := Scene{
		WorkflowID: g.Workflow.ID,
		Snap:       o.Snap,
		nodes:      make(map[string]int, len(g.States)),
		edges:      make(map[string]int, len(g.Transitions)),
	}
	for _, s := range g.States {
		sc.nodes[s.ID] = len(sc.Nodes)
		sc.Nodes = append(sc.Nodes, Node{
			ID:    s.ID,
			Name:  s.DisplayName(),
			Type:  s.Type(),
			Shape: s.Shape,
			Color: s.Color,
			Box:   s.Box(),
		})
	}
	for _, t := range g.Transitions {
		from, okFrom := sc.Node(t.FromStateID)
		to, okTo := sc.Node(t.ToStateID)
		if !okFrom || !okTo {
			sc.Invalid = append(sc.Invalid, t.ID)
			continue
		}
		e := route(t, from.Box, to.Box, o.For(t.ID))
		gates := g.GatesOf(t.ID)
		for i, gate := range gates {
			frac := float64(i+1) / float64(len(gates)+1)
			e.Gates = append(e.Gates, GatePos{ID: gate.ID, Name: gate.Name, Point: e.pointAt(frac)})
		}
		sc.edges[t.ID] = len(sc.Edges)
		sc.Edges = append(sc.Edges, e)
	}
	return sc
}

// self loops default to leaving right and entering top
var (
	loopFrom = geometry.EdgePosition{Edge: geometry.EdgeRight, Fraction: 0.5}
	loopTo   = geometry.EdgePosition{Edge: geometry.EdgeTop, Fraction: 0.5}
)

func resolveAnchor(box geometry.Box, manual *geometry.EdgePosition, toward geometry.Point) geometry.Anchor {
	if manual != nil {
		return geometry.Anchor{
			Point: geometry.PointFromEdgePosition(box.Center, box.Size, *manual),
			Edge:  manual.Edge,
		}
	}
	hit := geometry.ClosestPointOnBoxAlongRay(box.Center, box.Size, toward)
	return geometry.Anchor{Point: hit.Point, Edge: hit.Edge}
}

func route(t model.Transition, from, to geometry.Box, ov layout.TransitionOverride) Edge {
	e := Edge{
		ID:         t.ID,
		FromID:     t.FromStateID,
		ToID:       t.ToStateID,
		Name:       t.Name,
		Line:       t.Line,
		Waypoints:  ov.Waypoints,
		FromManual: ov.Anchors.From != nil,
		ToManual:   ov.Anchors.To != nil,
	}
	fromPos, toPos := ov.Anchors.From, ov.Anchors.To
	if t.FromStateID == t.ToStateID && len(ov.Waypoints) == 0 {
		if fromPos == nil {
			fromPos = &loopFrom
		}
		if toPos == nil {
			toPos = &loopTo
		}
	}

	towardFrom, towardTo := to.Center, from.Center
	if n := len(ov.Waypoints); n > 0 {
		towardFrom, towardTo = ov.Waypoints[0], ov.Waypoints[n-1]
	}
	e.Start = resolveAnchor(from, fromPos, towardFrom)
	e.End = resolveAnchor(to, toPos, towardTo)

	if e.Elbow() {
		ep := geometry.GenerateElbowPath(e.Start, e.End, ov.Waypoints, geometry.ElbowTurnOffset)
		e.Segments = ep.Segments
		e.Handles = ep.Handles
		e.Path = geometry.Polyline(ep.Segments)
		e.D = ep.Path
	} else {
		e.Path = geometry.SplinePath(e.Start, ov.Waypoints, e.End)
		e.D = e.Path.String()
	}
	e.polyline = e.Path.Flatten(CurveSteps)

	if ov.LabelOffset != nil {
		e.LabelOffset = *ov.LabelOffset
	}
	if ov.PinnedLabel != nil {
		e.Label = *ov.PinnedLabel
		e.LabelPinned = true
	} else {
		e.Label = e.pointAt(0.5).Add(e.LabelOffset)
	}
	return e
}

// pointAt places labels and gates. Curves use the stub-inclusive point
// sequence, elbows their segment polyline.
func (e Edge) pointAt(t float64) geometry.Point {
	if e.Elbow() {
		return geometry.PointAlongPolyline(e.Segments, t)
	}
	return geometry.GetPointOnSpline(e.Start, e.Waypoints, e.End, t)
}

func (sc Scene) Node(id string) (Node, bool) {
	if i, ok := sc.nodes[id]; ok {
		return sc.Nodes[i], true
	}
	return Node{}, false
}

func (sc Scene) Edge(id string) (Edge, bool) {
	if i, ok := sc.edges[id]; ok {
		return sc.Edges[i], true
	}
	return Edge{}, false
}

// Bounds is the box enclosing every node and connector, or false for an
// empty scene.
func (sc Scene) Bounds() (geometry.Box, bool) {
	first := true
	var l, t, r, b float64
	grow := func(x0, y0, x1, y1 float64) {
		if first {
			l, t, r, b = x0, y0, x1, y1
			first = false
			return
		}
		l, t, r, b = min(l, x0), min(t, y0), max(r, x1), max(b, y1)
	}
	for _, n := range sc.Nodes {
		grow(n.Box.Left(), n.Box.Top(), n.Box.Right(), n.Box.Bottom())
	}
	for _, e := range sc.Edges {
		for _, p := range e.polyline {
			grow(p.X, p.Y, p.X, p.Y)
		}
		grow(e.Label.X, e.Label.Y, e.Label.X, e.Label.Y)
	}
	if first {
		return geometry.Box{}, false
	}
	return geometry.BoxFromBounds(l, t, r, b), true
}
