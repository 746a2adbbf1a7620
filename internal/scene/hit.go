package scene

import (
	"math"

	"stateflow/internal/geometry"
	"stateflow/internal/layout"
)

const (
	// HandleRadius is the pick radius of resize handles, endpoints,
	// waypoints and connection affordances.
	HandleRadius = 6.0
	// PathTolerance is how far from a connector a click still grabs it.
	PathTolerance = 6.0
)

// ResizeHandle names one of the eight resize grips of a box.
type ResizeHandle string

const (
	HandleN  ResizeHandle = "n"
	HandleS  ResizeHandle = "s"
	HandleE  ResizeHandle = "e"
	HandleW  ResizeHandle = "w"
	HandleNE ResizeHandle = "ne"
	HandleNW ResizeHandle = "nw"
	HandleSE ResizeHandle = "se"
	HandleSW ResizeHandle = "sw"
)

var ResizeHandles = []ResizeHandle{HandleNW, HandleN, HandleNE, HandleE, HandleSE, HandleS, HandleSW, HandleW}

// Signs returns the direction each axis grows when the handle moves
// outward: -1 for the left/top sides, +1 for right/bottom, 0 if unaffected.
func (h ResizeHandle) Signs() (sx, sy float64) {
	for _, r := range h {
		switch r {
		case 'n':
			sy = -1
		case 's':
			sy = 1
		case 'w':
			sx = -1
		case 'e':
			sx = 1
		}
	}
	return sx, sy
}

// Point is the handle position on b.
func (h ResizeHandle) Point(b geometry.Box) geometry.Point {
	sx, sy := h.Signs()
	return geometry.Pt(b.Center.X+sx*b.Size.W/2, b.Center.Y+sy*b.Size.H/2)
}

// NodeAt returns the top-most node containing p.
func (sc Scene) NodeAt(p geometry.Point) (Node, bool) {
	for i := len(sc.Nodes) - 1; i >= 0; i-- {
		if sc.Nodes[i].Box.Contains(p) {
			return sc.Nodes[i], true
		}
	}
	return Node{}, false
}

// NodeNearBoundary returns a node whose boundary lies within d of p.
func (sc Scene) NodeNearBoundary(p geometry.Point, d float64) (Node, geometry.EdgeHit, bool) {
	best, bestDist := -1, math.Inf(1)
	var bestHit geometry.EdgeHit
	for i, n := range sc.Nodes {
		hit := geometry.NearestPointOnBoxEdge(n.Box.Center, n.Box.Size, p)
		if dist := hit.Point.Dist(p); dist <= d && dist < bestDist {
			best, bestDist, bestHit = i, dist, hit
		}
	}
	if best < 0 {
		return Node{}, geometry.EdgeHit{}, false
	}
	return sc.Nodes[best], bestHit, true
}

func (sc Scene) ResizeHandleAt(nodeID string, p geometry.Point) (ResizeHandle, bool) {
	n, ok := sc.Node(nodeID)
	if !ok {
		return "", false
	}
	for _, h := range ResizeHandles {
		if h.Point(n.Box).Near(p, HandleRadius) {
			return h, true
		}
	}
	return "", false
}

// Affordance returns the connection dot on one side of a box.
func Affordance(b geometry.Box, e geometry.Edge) geometry.Point {
	return geometry.PointFromEdgePosition(b.Center, b.Size, geometry.EdgePosition{Edge: e, Fraction: 0.5})
}

// ConnectAffordanceAt reports which mid-edge connection dot of the node is
// under p.
func (sc Scene) ConnectAffordanceAt(nodeID string, p geometry.Point) (geometry.Edge, bool) {
	n, ok := sc.Node(nodeID)
	if !ok {
		return geometry.EdgeNone, false
	}
	for _, e := range []geometry.Edge{geometry.EdgeLeft, geometry.EdgeRight, geometry.EdgeTop, geometry.EdgeBottom} {
		if Affordance(n.Box, e).Near(p, HandleRadius) {
			return e, true
		}
	}
	return geometry.EdgeNone, false
}

func (sc Scene) EndpointAt(edgeID string, p geometry.Point) (layout.End, bool) {
	e, ok := sc.Edge(edgeID)
	if !ok {
		return layout.EndFrom, false
	}
	if e.End.Point.Near(p, HandleRadius) {
		return layout.EndTo, true
	}
	if e.Start.Point.Near(p, HandleRadius) {
		return layout.EndFrom, true
	}
	return layout.EndFrom, false
}

func (sc Scene) WaypointAt(edgeID string, p geometry.Point) (int, bool) {
	e, ok := sc.Edge(edgeID)
	if !ok {
		return -1, false
	}
	for i, wp := range e.Waypoints {
		if wp.Near(p, HandleRadius) {
			return i, true
		}
	}
	return -1, false
}

// SegmentHandleAt returns the adjustable elbow handle under p.
func (sc Scene) SegmentHandleAt(edgeID string, p geometry.Point) (geometry.Handle, bool) {
	e, ok := sc.Edge(edgeID)
	if !ok {
		return geometry.Handle{}, false
	}
	for _, h := range e.Handles {
		if h.Adjustable && h.Point.Near(p, HandleRadius) {
			return h, true
		}
	}
	return geometry.Handle{}, false
}

// LabelAt returns the edge whose label or gate marker is under p.
func (sc Scene) LabelAt(p geometry.Point) (Edge, bool) {
	for i := len(sc.Edges) - 1; i >= 0; i-- {
		e := sc.Edges[i]
		if e.Label.Near(p, HandleRadius*2) {
			return e, true
		}
		for _, g := range e.Gates {
			if g.Point.Near(p, HandleRadius) {
				return e, true
			}
		}
	}
	return Edge{}, false
}

// EdgeNear returns the connector closest to p within PathTolerance.
func (sc Scene) EdgeNear(p geometry.Point) (Edge, bool) {
	best, bestDist := -1, math.Inf(1)
	for i, e := range sc.Edges {
		if d := distanceToPolyline(e.polyline, p); d <= PathTolerance && d < bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 {
		return Edge{}, false
	}
	return sc.Edges[best], true
}

func distanceToPolyline(pts []geometry.Point, p geometry.Point) float64 {
	if len(pts) == 1 {
		return pts[0].Dist(p)
	}
	d := math.Inf(1)
	for i := 1; i < len(pts); i++ {
		d = min(d, geometry.DistanceToSegment(pts[i-1], pts[i], p))
	}
	return d
}
