package geometry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func onBoundary(b Box, p Point) bool {
	const tol = 1e-9
	near := func(a, b float64) bool { return math.Abs(a-b) <= tol }
	onX := near(p.X, b.Left()) || near(p.X, b.Right())
	onY := near(p.Y, b.Top()) || near(p.Y, b.Bottom())
	inX := p.X >= b.Left()-tol && p.X <= b.Right()+tol
	inY := p.Y >= b.Top()-tol && p.Y <= b.Bottom()+tol
	return (onX && inY) || (onY && inX)
}

func TestNearestPointOnBoxEdge_RoundTrip(t *testing.T) {
	boxes := []Box{
		{Center: Pt(0, 0), Size: Sz(160, 60)},
		{Center: Pt(13.37, -42.1), Size: Sz(97.3, 41.9)},
		{Center: Pt(1e4, 3e3), Size: Sz(80, 40)},
	}
	points := []Point{
		Pt(0, 0), Pt(500, 3), Pt(-500, -3), Pt(7, 900), Pt(-3, -900),
		Pt(79.9, 29.9), Pt(0.1, 0.2), Pt(1e4+1, 3e3-19.5), Pt(-1.2345, 6.789),
	}
	for _, b := range boxes {
		for _, p := range points {
			hit := NearestPointOnBoxEdge(b.Center, b.Size, p)
			assert.GreaterOrEqual(t, hit.Fraction, 0.0)
			assert.LessOrEqual(t, hit.Fraction, 1.0)

			back := PointFromEdgePosition(b.Center, b.Size, hit.EdgePosition())
			assert.Equal(t, hit.Point, back, "box %+v point %+v", b, p)
			assert.True(t, onBoundary(b, back), "point %+v not on boundary of %+v", back, b)
		}
	}
}

func TestNearestPointOnBoxEdge_PicksClosestSide(t *testing.T) {
	c, s := Pt(0, 0), Sz(160, 60)

	hit := NearestPointOnBoxEdge(c, s, Pt(200, 0))
	assert.Equal(t, EdgeRight, hit.Edge)
	assert.Equal(t, Pt(80, 0), hit.Point)
	assert.Equal(t, 0.5, hit.Fraction)

	hit = NearestPointOnBoxEdge(c, s, Pt(-40, -100))
	assert.Equal(t, EdgeTop, hit.Edge)
	assert.Equal(t, 0.25, hit.Fraction)

	hit = NearestPointOnBoxEdge(c, s, Pt(1000, 1000))
	assert.Equal(t, EdgeRight, hit.Edge)
	assert.Equal(t, 1.0, hit.Fraction)
}

func TestPointFromEdgePosition_Degenerate(t *testing.T) {
	c, s := Pt(10, 10), Sz(100, 50)
	assert.Equal(t, Pt(60, 35), PointFromEdgePosition(c, s, EdgePosition{Edge: EdgeRight, Fraction: 7}))
	assert.Equal(t, Pt(-40, -15), PointFromEdgePosition(c, s, EdgePosition{Edge: EdgeLeft, Fraction: -1}))
	assert.Equal(t, Pt(10, -15), PointFromEdgePosition(c, s, EdgePosition{Edge: EdgeTop, Fraction: math.NaN()}))
	assert.Equal(t, Pt(60, 10), PointFromEdgePosition(c, s, EdgePosition{Edge: "diagonal", Fraction: 0.5}))
}

func TestClosestPointOnBoxAlongRay(t *testing.T) {
	c, s := Pt(0, 0), Sz(160, 60)

	for _, tc := range []struct {
		name   string
		target Point
		want   RayHit
	}{
		{"right", Pt(300, 0), RayHit{Pt(80, 0), EdgeRight}},
		{"left", Pt(-300, 0), RayHit{Pt(-80, 0), EdgeLeft}},
		{"below", Pt(0, 200), RayHit{Pt(0, 30), EdgeBottom}},
		{"above", Pt(0, -200), RayHit{Pt(0, -30), EdgeTop}},
		{"shallow diagonal", Pt(160, 30), RayHit{Pt(80, 15), EdgeRight}},
		{"steep diagonal", Pt(30, 60), RayHit{Pt(15, 30), EdgeBottom}},
		{"coincident", Pt(0, 0), RayHit{Pt(80, 0), EdgeRight}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got := ClosestPointOnBoxAlongRay(c, s, tc.target)
			assert.Equal(t, tc.want.Edge, got.Edge)
			assert.InDelta(t, tc.want.Point.X, got.Point.X, 1e-9)
			assert.InDelta(t, tc.want.Point.Y, got.Point.Y, 1e-9)
		})
	}
}

func TestClosestPointOnBoxAlongRay_NonFiniteFallsBack(t *testing.T) {
	got := ClosestPointOnBoxAlongRay(Pt(0, 0), Sz(160, 60), Pt(math.Inf(1), 1))
	require.True(t, got.Edge.Valid())
	assert.False(t, math.IsNaN(got.Point.X) || math.IsNaN(got.Point.Y))
}

func TestPerpendicularDirection(t *testing.T) {
	assert.Equal(t, Pt(-1, 0), PerpendicularDirection(EdgeLeft))
	assert.Equal(t, Pt(1, 0), PerpendicularDirection(EdgeRight))
	assert.Equal(t, Pt(0, -1), PerpendicularDirection(EdgeTop))
	assert.Equal(t, Pt(0, 1), PerpendicularDirection(EdgeBottom))
}
