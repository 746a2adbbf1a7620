package geometry

import "math"

type Orientation int

const (
	Horizontal Orientation = iota
	Vertical
)

func (o Orientation) String() string {
	if o == Vertical {
		return "vertical"
	}
	return "horizontal"
}

// Handle marks the draggable midpoint of an interior elbow segment.
// Segment is the index i of the segment Segments[i]..Segments[i+1].
// A vertical segment moves along x and a horizontal one along y.
type Handle struct {
	Point       Point
	Segment     int
	Orientation Orientation
	Adjustable  bool
}

type ElbowPath struct {
	Path     string
	Segments []Point
	Handles  []Handle
}

// exitEdge resolves the orientation an endpoint leaves in. Endpoints
// without a box side go along the dominant axis towards the other end.
func exitEdge(a Anchor, other Point) Edge {
	if a.hasEdge() {
		return a.Edge
	}
	d := other.Sub(a.Point)
	if math.Abs(d.X) >= math.Abs(d.Y) {
		if d.X < 0 {
			return EdgeLeft
		}
		return EdgeRight
	}
	if d.Y < 0 {
		return EdgeTop
	}
	return EdgeBottom
}

// GenerateElbowPath routes an orthogonal connector. Each end leaves its box
// perpendicular to its edge for turnOffset before turning. Every waypoint
// adds one corner so segments alternate orientation, starting with the
// start edge's orientation; the last leg arrives along the end edge's
// orientation.
func GenerateElbowPath(start, end Anchor, waypoints []Point, turnOffset float64) ElbowPath {
	if !(turnOffset >= 0) {
		turnOffset = ElbowTurnOffset
	}
	startEdge := exitEdge(start, end.Point)
	endEdge := exitEdge(end, start.Point)
	startHoriz, endHoriz := startEdge.Horizontal(), endEdge.Horizontal()

	exit := start.Point
	if start.hasEdge() {
		exit = start.Point.Add(PerpendicularDirection(startEdge).Scale(turnOffset))
	}
	entry := end.Point
	if end.hasEdge() {
		entry = end.Point.Add(PerpendicularDirection(endEdge).Scale(turnOffset))
	}

	pts := []Point{start.Point, exit}
	cur := exit
	lastHoriz := startHoriz
	for _, wp := range waypoints {
		if startHoriz {
			pts = append(pts, Point{wp.X, cur.Y}, wp)
			lastHoriz = false
		} else {
			pts = append(pts, Point{cur.X, wp.Y}, wp)
			lastHoriz = true
		}
		cur = wp
	}

	switch {
	case lastHoriz && endHoriz:
		midX := (cur.X + entry.X) / 2
		pts = append(pts, Point{midX, cur.Y}, Point{midX, entry.Y})
	case !lastHoriz && !endHoriz:
		midY := (cur.Y + entry.Y) / 2
		pts = append(pts, Point{cur.X, midY}, Point{entry.X, midY})
	case lastHoriz:
		pts = append(pts, Point{entry.X, cur.Y})
	default:
		pts = append(pts, Point{cur.X, entry.Y})
	}
	pts = append(pts, entry, end.Point)

	segments := dedupe(pts)
	return ElbowPath{
		Path:     Polyline(segments).String(),
		Segments: segments,
		Handles:  elbowHandles(segments, startHoriz, endHoriz),
	}
}

func dedupe(pts []Point) []Point {
	out := make([]Point, 0, len(pts))
	for _, p := range pts {
		if len(out) > 0 && out[len(out)-1].Eq(p) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Polyline draws straight lines through pts.
func Polyline(pts []Point) Path {
	var p Path
	for i, pt := range pts {
		if i == 0 {
			p.moveTo(pt)
			continue
		}
		p.lineTo(pt)
	}
	return p
}

// elbowHandles places handles on every segment except the two stubs.
// When both ends leave horizontally only vertical segments may move, when
// both leave vertically only horizontal ones, and any segment otherwise.
func elbowHandles(segs []Point, startHoriz, endHoriz bool) []Handle {
	if len(segs) < 4 {
		return nil
	}
	var handles []Handle
	for i := 1; i+2 < len(segs); i++ {
		a, b := segs[i], segs[i+1]
		o := Horizontal
		if a.X == b.X {
			o = Vertical
		}
		adjustable := true
		switch {
		case startHoriz && endHoriz:
			adjustable = o == Vertical
		case !startHoriz && !endHoriz:
			adjustable = o == Horizontal
		}
		handles = append(handles, Handle{
			Point:       lerp(a, b, 0.5),
			Segment:     i,
			Orientation: o,
			Adjustable:  adjustable,
		})
	}
	return handles
}
