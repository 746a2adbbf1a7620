// Package geometry turns state boxes, anchor points and waypoints into
// connector paths. Every function is pure and works on float64 world
// coordinates with y growing downwards.
package geometry

import "math"

const (
	StraightLength     = 20.0
	DefaultStateWidth  = 160.0
	DefaultStateHeight = 60.0
	MinStateWidth      = 80.0
	MinStateHeight     = 40.0
	ElbowTurnOffset    = 20.0

	ControlFactor    = 0.4
	MinControlOffset = 20.0
	MaxControlOffset = 120.0

	epsilon = 1e-9
)

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func Pt(x, y float64) Point { return Point{X: x, Y: y} }

func (p Point) Add(q Point) Point     { return Point{p.X + q.X, p.Y + q.Y} }
func (p Point) Sub(q Point) Point     { return Point{p.X - q.X, p.Y - q.Y} }
func (p Point) Scale(f float64) Point { return Point{p.X * f, p.Y * f} }
func (p Point) Dist(q Point) float64  { return math.Hypot(p.X-q.X, p.Y-q.Y) }
func (p Point) Eq(q Point) bool       { return p.X == q.X && p.Y == q.Y }

func (p Point) Dist2(q Point) float64 {
	dx, dy := p.X-q.X, p.Y-q.Y
	return dx*dx + dy*dy
}

// Near reports whether q lies within d of p.
func (p Point) Near(q Point, d float64) bool { return p.Dist2(q) <= d*d }

func (p Point) finite() bool {
	return !math.IsNaN(p.X) && !math.IsNaN(p.Y) && !math.IsInf(p.X, 0) && !math.IsInf(p.Y, 0)
}

// Unit returns p scaled to length 1, or ok=false for a zero vector.
func (p Point) Unit() (Point, bool) {
	l := math.Hypot(p.X, p.Y)
	if l < epsilon || math.IsNaN(l) || math.IsInf(l, 0) {
		return Point{}, false
	}
	return Point{p.X / l, p.Y / l}, true
}

type Size struct {
	W float64 `json:"width"`
	H float64 `json:"height"`
}

func Sz(w, h float64) Size { return Size{W: w, H: h} }

// DefaultSize is the size assigned to freshly created states.
func DefaultSize() Size { return Size{DefaultStateWidth, DefaultStateHeight} }

// Clamp enforces the minimum state dimensions.
func (s Size) Clamp() Size {
	if !(s.W >= MinStateWidth) {
		s.W = MinStateWidth
	}
	if !(s.H >= MinStateHeight) {
		s.H = MinStateHeight
	}
	return s
}

// Box is an axis-aligned rectangle described by its center.
type Box struct {
	Center Point
	Size   Size
}

func (b Box) Left() float64   { return b.Center.X - b.Size.W/2 }
func (b Box) Right() float64  { return b.Center.X + b.Size.W/2 }
func (b Box) Top() float64    { return b.Center.Y - b.Size.H/2 }
func (b Box) Bottom() float64 { return b.Center.Y + b.Size.H/2 }

func (b Box) Contains(p Point) bool {
	return p.X >= b.Left() && p.X <= b.Right() && p.Y >= b.Top() && p.Y <= b.Bottom()
}

// Inflate grows the box by d on every side.
func (b Box) Inflate(d float64) Box {
	return Box{Center: b.Center, Size: Size{b.Size.W + 2*d, b.Size.H + 2*d}}
}

// BoxFromBounds builds a box from its edges.
func BoxFromBounds(left, top, right, bottom float64) Box {
	return Box{
		Center: Point{(left + right) / 2, (top + bottom) / 2},
		Size:   Size{right - left, bottom - top},
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func lerp(a, b Point, t float64) Point {
	return Point{a.X + (b.X-a.X)*t, a.Y + (b.Y-a.Y)*t}
}

// ClosestPointOnSegment projects p onto segment ab.
func ClosestPointOnSegment(a, b, p Point) Point {
	ab := b.Sub(a)
	l2 := ab.X*ab.X + ab.Y*ab.Y
	if l2 < epsilon {
		return a
	}
	t := clamp(((p.X-a.X)*ab.X+(p.Y-a.Y)*ab.Y)/l2, 0, 1)
	return lerp(a, b, t)
}

// DistanceToSegment is the euclidean distance from p to segment ab.
func DistanceToSegment(a, b, p Point) float64 {
	return ClosestPointOnSegment(a, b, p).Dist(p)
}

// PointAlongPolyline samples the polyline at normalized arc length t.
// t<=0 yields the first point and t>=1 the last one, exactly.
func PointAlongPolyline(pts []Point, t float64) Point {
	switch len(pts) {
	case 0:
		return Point{}
	case 1:
		return pts[0]
	}
	if !(t > 0) {
		return pts[0]
	}
	if t >= 1 {
		return pts[len(pts)-1]
	}
	total := 0.0
	for i := 1; i < len(pts); i++ {
		total += pts[i-1].Dist(pts[i])
	}
	if total < epsilon {
		return pts[0]
	}
	target := total * t
	acc := 0.0
	for i := 1; i < len(pts); i++ {
		l := pts[i-1].Dist(pts[i])
		if acc+l >= target {
			if l < epsilon {
				return pts[i]
			}
			return lerp(pts[i-1], pts[i], (target-acc)/l)
		}
		acc += l
	}
	return pts[len(pts)-1]
}
