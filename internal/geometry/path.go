package geometry

import (
	"math"
	"strconv"
	"strings"
)

type PathOp byte

const (
	OpMove  PathOp = 'M'
	OpLine  PathOp = 'L'
	OpCubic PathOp = 'C'
)

// PathCommand holds one SVG-style command. Cubic commands carry the two
// control points followed by the end point.
type PathCommand struct {
	Op  PathOp
	Pts []Point
}

// Path is a renderer-neutral connector description.
type Path []PathCommand

func (p *Path) moveTo(pt Point) { *p = append(*p, PathCommand{Op: OpMove, Pts: []Point{pt}}) }
func (p *Path) lineTo(pt Point) { *p = append(*p, PathCommand{Op: OpLine, Pts: []Point{pt}}) }

func (p *Path) cubicTo(c1, c2, end Point) {
	*p = append(*p, PathCommand{Op: OpCubic, Pts: []Point{c1, c2, end}})
}

func formatCoord(v float64) string {
	if v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return "0"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// String renders the path as SVG path data, e.g. "M 0 0 L 10 0".
func (p Path) String() string {
	var b strings.Builder
	for i, cmd := range p {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteByte(byte(cmd.Op))
		for _, pt := range cmd.Pts {
			b.WriteByte(' ')
			b.WriteString(formatCoord(pt.X))
			b.WriteByte(' ')
			b.WriteString(formatCoord(pt.Y))
		}
	}
	return b.String()
}

// Flatten approximates the path with a polyline, sampling every cubic
// segment with the given number of steps.
func (p Path) Flatten(steps int) []Point {
	if steps < 1 {
		steps = 1
	}
	var out []Point
	var cur Point
	for _, cmd := range p {
		switch cmd.Op {
		case OpMove, OpLine:
			cur = cmd.Pts[0]
			out = append(out, cur)
		case OpCubic:
			c1, c2, end := cmd.Pts[0], cmd.Pts[1], cmd.Pts[2]
			for i := 1; i <= steps; i++ {
				out = append(out, cubicAt(cur, c1, c2, end, float64(i)/float64(steps)))
			}
			cur = end
		}
	}
	return out
}

func cubicAt(p0, p1, p2, p3 Point, t float64) Point {
	if t >= 1 {
		return p3
	}
	u := 1 - t
	a, b, c, d := u*u*u, 3*u*u*t, 3*u*t*t, t*t*t
	return Point{
		a*p0.X + b*p1.X + c*p2.X + d*p3.X,
		a*p0.Y + b*p1.Y + c*p2.Y + d*p3.Y,
	}
}

// Anchor is a connector endpoint. Edge is EdgeNone when the endpoint is
// not attached to a box side.
type Anchor struct {
	Point Point
	Edge  Edge
}

func (a Anchor) hasEdge() bool { return a.Edge.Valid() }

// stub is the point where the straight perpendicular segment ends.
func (a Anchor) stub() Point {
	return a.Point.Add(PerpendicularDirection(a.Edge).Scale(StraightLength))
}

// splinePoints returns start, stubs, waypoints and end in drawing order.
func splinePoints(start Anchor, waypoints []Point, end Anchor) []Point {
	pts := make([]Point, 0, len(waypoints)+4)
	pts = append(pts, start.Point)
	if start.hasEdge() {
		pts = append(pts, start.stub())
	}
	pts = append(pts, waypoints...)
	if end.hasEdge() {
		pts = append(pts, end.stub())
	}
	return append(pts, end.Point)
}

func controlOffset(length float64) float64 {
	return clamp(length*ControlFactor, MinControlOffset, MaxControlOffset)
}

func direction(from, to Point) (Point, bool) {
	return to.Sub(from).Unit()
}

// SplinePath builds the curved connector: a perpendicular stub out of each
// attached box and cubic segments threading the waypoints in between.
func SplinePath(start Anchor, waypoints []Point, end Anchor) Path {
	var path Path
	path.moveTo(start.Point)

	if len(waypoints) == 0 && (!start.hasEdge() || !end.hasEdge()) {
		if start.hasEdge() {
			path.lineTo(start.stub())
		}
		if end.hasEdge() {
			path.lineTo(end.stub())
		}
		path.lineTo(end.Point)
		return path
	}

	mid := make([]Point, 0, len(waypoints)+2)
	if start.hasEdge() {
		mid = append(mid, start.stub())
		path.lineTo(mid[0])
	} else {
		mid = append(mid, start.Point)
	}
	mid = append(mid, waypoints...)
	if end.hasEdge() {
		mid = append(mid, end.stub())
	} else {
		mid = append(mid, end.Point)
	}

	tangent := func(i int) Point {
		if i == 0 && start.hasEdge() {
			return PerpendicularDirection(start.Edge)
		}
		if i == len(mid)-1 && end.hasEdge() {
			return PerpendicularDirection(end.Edge).Scale(-1)
		}
		prev, next := mid[max(i-1, 0)], mid[min(i+1, len(mid)-1)]
		if d, ok := direction(prev, next); ok {
			return d
		}
		if i+1 < len(mid) {
			if d, ok := direction(mid[i], mid[i+1]); ok {
				return d
			}
		}
		if i > 0 {
			if d, ok := direction(mid[i-1], mid[i]); ok {
				return d
			}
		}
		return Point{1, 0}
	}

	for i := 0; i+1 < len(mid); i++ {
		a, b := mid[i], mid[i+1]
		off := controlOffset(a.Dist(b))
		c1 := a.Add(tangent(i).Scale(off))
		c2 := b.Sub(tangent(i + 1).Scale(off))
		path.cubicTo(c1, c2, b)
	}

	if end.hasEdge() {
		path.lineTo(end.Point)
	}
	return path
}

// GenerateSplinePath is SplinePath rendered as SVG path data.
func GenerateSplinePath(start Anchor, waypoints []Point, end Anchor) string {
	return SplinePath(start, waypoints, end).String()
}

// GetPointOnSpline samples the stub-inclusive point sequence of a spline at
// normalized arc length t. Labels and gates use it so their placement does
// not depend on how the curve is drawn.
func GetPointOnSpline(start Anchor, waypoints []Point, end Anchor, t float64) Point {
	return PointAlongPolyline(splinePoints(start, waypoints, end), t)
}

// FindInsertionIndex returns the index at which a waypoint created at click
// should be spliced into waypoints: the segment of [start, waypoints..., end]
// closest to the click.
func FindInsertionIndex(waypoints []Point, start, end, click Point) int {
	pts := make([]Point, 0, len(waypoints)+2)
	pts = append(pts, start)
	pts = append(pts, waypoints...)
	pts = append(pts, end)

	best, bestDist := 0, math.Inf(1)
	for i := 0; i+1 < len(pts); i++ {
		if d := DistanceToSegment(pts[i], pts[i+1], click); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}
