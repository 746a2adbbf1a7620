package geometry

import "math"

type Edge string

const (
	EdgeNone   Edge = ""
	EdgeLeft   Edge = "left"
	EdgeRight  Edge = "right"
	EdgeTop    Edge = "top"
	EdgeBottom Edge = "bottom"
)

func (e Edge) Valid() bool {
	switch e {
	case EdgeLeft, EdgeRight, EdgeTop, EdgeBottom:
		return true
	}
	return false
}

// Horizontal reports whether a connector leaving this edge travels along x.
func (e Edge) Horizontal() bool { return e == EdgeLeft || e == EdgeRight }

// EdgePosition anchors a connector at a fraction along one side of a box.
// Fractions run left-to-right on top/bottom and top-to-bottom on left/right.
type EdgePosition struct {
	Edge     Edge    `json:"edge" validate:"oneof=left right top bottom"`
	Fraction float64 `json:"fraction" validate:"gte=0,lte=1"`
}

// EdgeHit is the result of projecting a point onto a box boundary.
type EdgeHit struct {
	Point    Point
	Edge     Edge
	Fraction float64
}

func (h EdgeHit) EdgePosition() EdgePosition {
	return EdgePosition{Edge: h.Edge, Fraction: h.Fraction}
}

// RayHit is the default anchor found by casting from the box center.
type RayHit struct {
	Point Point
	Edge  Edge
}

// PerpendicularDirection is the outward unit normal of an edge.
func PerpendicularDirection(e Edge) Point {
	switch e {
	case EdgeLeft:
		return Point{-1, 0}
	case EdgeTop:
		return Point{0, -1}
	case EdgeBottom:
		return Point{0, 1}
	default:
		return Point{1, 0}
	}
}

func spanFraction(v, lo, length float64) float64 {
	if length < epsilon {
		return 0.5
	}
	return clamp((v-lo)/length, 0, 1)
}

// PointFromEdgePosition converts an edge anchor back to world coordinates.
func PointFromEdgePosition(center Point, size Size, pos EdgePosition) Point {
	b := Box{Center: center, Size: size}
	f := pos.Fraction
	if math.IsNaN(f) {
		f = 0.5
	}
	f = clamp(f, 0, 1)
	switch pos.Edge {
	case EdgeLeft:
		return Point{b.Left(), b.Top() + f*size.H}
	case EdgeTop:
		return Point{b.Left() + f*size.W, b.Top()}
	case EdgeBottom:
		return Point{b.Left() + f*size.W, b.Bottom()}
	default:
		return Point{b.Right(), b.Top() + f*size.H}
	}
}

// NearestPointOnBoxEdge finds the boundary point closest to p. The returned
// point is built from the returned edge position so converting back is exact.
func NearestPointOnBoxEdge(center Point, size Size, p Point) EdgeHit {
	b := Box{Center: center, Size: size}
	if !p.finite() {
		p = center
	}
	candidates := [4]EdgePosition{
		{EdgeLeft, spanFraction(p.Y, b.Top(), size.H)},
		{EdgeRight, spanFraction(p.Y, b.Top(), size.H)},
		{EdgeTop, spanFraction(p.X, b.Left(), size.W)},
		{EdgeBottom, spanFraction(p.X, b.Left(), size.W)},
	}
	best := EdgeHit{}
	bestDist := math.Inf(1)
	for _, c := range candidates {
		pt := PointFromEdgePosition(center, size, c)
		if d := pt.Dist2(p); d < bestDist {
			bestDist = d
			best = EdgeHit{Point: pt, Edge: c.Edge, Fraction: c.Fraction}
		}
	}
	return best
}

// ClosestPointOnBoxAlongRay intersects the ray center->target with the box
// boundary and reports the side facing the target.
func ClosestPointOnBoxAlongRay(center Point, size Size, target Point) RayHit {
	d := target.Sub(center)
	if math.Abs(d.X) < epsilon && math.Abs(d.Y) < epsilon {
		return RayHit{Point: Point{center.X + size.W/2, center.Y}, Edge: EdgeRight}
	}

	tx, ty := math.Inf(1), math.Inf(1)
	if math.Abs(d.X) >= epsilon {
		tx = (size.W / 2) / math.Abs(d.X)
	}
	if math.Abs(d.Y) >= epsilon {
		ty = (size.H / 2) / math.Abs(d.Y)
	}

	var hit RayHit
	if tx <= ty {
		hit.Point = center.Add(d.Scale(tx))
		hit.Edge = EdgeLeft
		if d.X > 0 {
			hit.Edge = EdgeRight
		}
	} else {
		hit.Point = center.Add(d.Scale(ty))
		hit.Edge = EdgeTop
		if d.Y > 0 {
			hit.Edge = EdgeBottom
		}
	}
	if hit.Point.finite() {
		return hit
	}
	return edgeByAngle(center, size, d)
}

// edgeByAngle picks a side from the quadrant of d and anchors at its middle.
func edgeByAngle(center Point, size Size, d Point) RayHit {
	angle := math.Atan2(d.Y, d.X)
	var e Edge
	switch {
	case math.IsNaN(angle):
		e = EdgeRight
	case angle >= -math.Pi/4 && angle <= math.Pi/4:
		e = EdgeRight
	case angle > math.Pi/4 && angle < 3*math.Pi/4:
		e = EdgeBottom
	case angle < -math.Pi/4 && angle > -3*math.Pi/4:
		e = EdgeTop
	default:
		e = EdgeLeft
	}
	return RayHit{Point: PointFromEdgePosition(center, size, EdgePosition{Edge: e, Fraction: 0.5}), Edge: e}
}
