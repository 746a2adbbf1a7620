package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertOrthogonal(t *testing.T, segs []Point) {
	t.Helper()
	for i := 1; i < len(segs); i++ {
		a, b := segs[i-1], segs[i]
		assert.False(t, a.Eq(b), "duplicate consecutive point %v at %d", a, i)
		assert.True(t, a.X == b.X || a.Y == b.Y, "diagonal segment %v -> %v", a, b)
	}
}

func TestGenerateElbowPath_OffsetBoxes(t *testing.T) {
	start := Anchor{Pt(80, 0), EdgeRight}
	end := Anchor{Pt(220, 100), EdgeLeft}

	ep := GenerateElbowPath(start, end, nil, ElbowTurnOffset)
	assert.Equal(t, []Point{
		Pt(80, 0), Pt(100, 0), Pt(150, 0), Pt(150, 100), Pt(200, 100), Pt(220, 100),
	}, ep.Segments)
	assert.Equal(t, "M 80 0 L 100 0 L 150 0 L 150 100 L 200 100 L 220 100", ep.Path)
	assertOrthogonal(t, ep.Segments)

	require.Len(t, ep.Handles, 3)
	assert.False(t, ep.Handles[0].Adjustable)
	assert.True(t, ep.Handles[1].Adjustable)
	assert.Equal(t, Vertical, ep.Handles[1].Orientation)
	assert.Equal(t, Pt(150, 50), ep.Handles[1].Point)
	assert.Equal(t, 2, ep.Handles[1].Segment)
	assert.False(t, ep.Handles[2].Adjustable)
}

func TestGenerateElbowPath_AlignedBoxesDedupes(t *testing.T) {
	ep := GenerateElbowPath(Anchor{Pt(80, 0), EdgeRight}, Anchor{Pt(220, 0), EdgeLeft}, nil, ElbowTurnOffset)
	assertOrthogonal(t, ep.Segments)
	assert.Equal(t, Pt(80, 0), ep.Segments[0])
	assert.Equal(t, Pt(220, 0), ep.Segments[len(ep.Segments)-1])
}

func TestGenerateElbowPath_Waypoints(t *testing.T) {
	start := Anchor{Pt(80, 0), EdgeRight}
	end := Anchor{Pt(220, 100), EdgeTop}
	wps := []Point{Pt(150, 40)}

	ep := GenerateElbowPath(start, end, wps, ElbowTurnOffset)
	assertOrthogonal(t, ep.Segments)
	assert.Contains(t, ep.Segments, Pt(150, 40))
	assert.Equal(t, Pt(100, 0), ep.Segments[1])
	assert.Equal(t, Pt(220, 80), ep.Segments[len(ep.Segments)-2])
	require.NotEmpty(t, ep.Handles)
	for _, h := range ep.Handles {
		assert.True(t, h.Adjustable, "mixed orientation handles are all adjustable")
	}
}

func TestGenerateElbowPath_WaypointsHorizontalEnds(t *testing.T) {
	start := Anchor{Pt(80, 0), EdgeRight}
	end := Anchor{Pt(220, 100), EdgeLeft}
	wps := []Point{Pt(150, 200)}

	ep := GenerateElbowPath(start, end, wps, ElbowTurnOffset)
	assertOrthogonal(t, ep.Segments)
	assert.Contains(t, ep.Segments, Pt(150, 200))
	assert.Equal(t, Pt(100, 0), ep.Segments[1])
	assert.Equal(t, Pt(200, 100), ep.Segments[len(ep.Segments)-2])
	require.NotEmpty(t, ep.Handles)
	for _, h := range ep.Handles {
		assert.Equal(t, h.Orientation == Vertical, h.Adjustable)
	}
}

func TestGenerateElbowPath_VerticalEdges(t *testing.T) {
	start := Anchor{Pt(0, 30), EdgeBottom}
	end := Anchor{Pt(100, 170), EdgeTop}

	ep := GenerateElbowPath(start, end, nil, ElbowTurnOffset)
	assertOrthogonal(t, ep.Segments)
	assert.Equal(t, Pt(0, 50), ep.Segments[1])
	assert.Equal(t, Pt(100, 150), ep.Segments[len(ep.Segments)-2])
	for _, h := range ep.Handles {
		assert.Equal(t, h.Orientation == Horizontal, h.Adjustable)
	}
}

func TestGenerateElbowPath_NoEdges(t *testing.T) {
	ep := GenerateElbowPath(Anchor{Point: Pt(0, 0)}, Anchor{Point: Pt(50, 40)}, nil, -1)
	assertOrthogonal(t, ep.Segments)
	assert.Equal(t, Pt(0, 0), ep.Segments[0])
	assert.Equal(t, Pt(50, 40), ep.Segments[len(ep.Segments)-1])
}
