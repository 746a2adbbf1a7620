package interaction

import (
	"math"

	"stateflow/internal/geometry"
	"stateflow/internal/layout"
)

// Guide is an alignment line shown while a snapped box is dragged. A
// vertical guide sits at x = Pos and spans From..To along y; a horizontal
// one the other way round.
type Guide struct {
	Orientation geometry.Orientation
	Pos         float64
	From, To    float64
}

func xs(b geometry.Box) [3]float64 { return [3]float64{b.Left(), b.Center.X, b.Right()} }
func ys(b geometry.Box) [3]float64 { return [3]float64{b.Top(), b.Center.Y, b.Bottom()} }

// bestOffset finds the smallest shift within tol that lines one of moving
// up with one of target.
func bestOffset(moving, target [3]float64, tol float64) (float64, float64, bool) {
	best, line, found := 0.0, 0.0, false
	for _, m := range moving {
		for _, t := range target {
			d := t - m
			if math.Abs(d) <= tol && (!found || math.Abs(d) < math.Abs(best)) {
				best, line, found = d, t, true
			}
		}
	}
	return best, line, found
}

func gridOffset(v, grid float64) float64 {
	return math.Round(v/grid)*grid - v
}

// SnapBox aligns box with the closest sibling left, center or right edge
// and top, middle or bottom edge within the tolerance. An axis without an
// alignment hit falls back to the grid when one is set.
func SnapBox(box geometry.Box, siblings []geometry.Box, s layout.Snap) (geometry.Box, []Guide) {
	if !s.Enabled {
		return box, nil
	}
	tol := s.Tolerance
	if tol <= 0 {
		tol = layout.DefaultSnapTolerance
	}

	var dx, dy float64
	var vx, hy *geometry.Box
	var lineX, lineY float64
	bestX, bestY := math.Inf(1), math.Inf(1)
	for i := range siblings {
		sib := &siblings[i]
		if d, line, ok := bestOffset(xs(box), xs(*sib), tol); ok && math.Abs(d) < bestX {
			dx, lineX, bestX, vx = d, line, math.Abs(d), sib
		}
		if d, line, ok := bestOffset(ys(box), ys(*sib), tol); ok && math.Abs(d) < bestY {
			dy, lineY, bestY, hy = d, line, math.Abs(d), sib
		}
	}
	if vx == nil && s.Grid > 0 {
		dx = gridOffset(box.Center.X, s.Grid)
	}
	if hy == nil && s.Grid > 0 {
		dy = gridOffset(box.Center.Y, s.Grid)
	}
	box.Center = box.Center.Add(geometry.Pt(dx, dy))

	var guides []Guide
	if vx != nil {
		guides = append(guides, Guide{
			Orientation: geometry.Vertical,
			Pos:         lineX,
			From:        min(box.Top(), vx.Top()),
			To:          max(box.Bottom(), vx.Bottom()),
		})
	}
	if hy != nil {
		guides = append(guides, Guide{
			Orientation: geometry.Horizontal,
			Pos:         lineY,
			From:        min(box.Left(), hy.Left()),
			To:          max(box.Right(), hy.Right()),
		})
	}
	return box, guides
}
