package interaction

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"stateflow/internal/geometry"
	"stateflow/internal/layout"
	"stateflow/internal/model"
)

func TestViewport_ZoomAtKeepsCursorFixed(t *testing.T) {
	v := Viewport{Zoom: 1, Pan: geometry.Pt(10, -20)}
	cursor := geometry.Pt(100, 50)
	before := v.ScreenToWorld(cursor)

	z := v.ZoomAt(cursor, 2)
	assert.Equal(t, 2.0, z.Zoom)
	assert.Equal(t, before, z.ScreenToWorld(cursor))
	assert.Equal(t, cursor, z.WorldToScreen(before))

	assert.Equal(t, MaxZoom, v.ZoomAt(cursor, 100).Zoom)
	assert.Equal(t, MinZoom, v.ZoomAt(cursor, 0.001).Zoom)
}

func TestViewport_Config(t *testing.T) {
	assert.Equal(t, DefaultViewport(), ViewportFrom(model.CanvasConfig{}))

	v := ViewportFrom(model.CanvasConfig{Zoom: 9, PanX: 3, PanY: 4})
	assert.Equal(t, MaxZoom, v.Zoom)
	assert.Equal(t, model.CanvasConfig{Zoom: MaxZoom, PanX: 3, PanY: 4}, v.Config())
}

func TestSnapBox(t *testing.T) {
	box := geometry.Box{Center: geometry.Pt(103, 48), Size: geometry.Sz(100, 40)}
	sib := geometry.Box{Center: geometry.Pt(100, 200), Size: geometry.Sz(100, 40)}

	got, guides := SnapBox(box, []geometry.Box{sib}, layout.DefaultSnap())
	assert.Equal(t, geometry.Pt(100, 48), got.Center)
	if assert.Len(t, guides, 1) {
		assert.Equal(t, geometry.Vertical, guides[0].Orientation)
		assert.Equal(t, 50.0, guides[0].Pos)
		assert.Equal(t, 28.0, guides[0].From)
		assert.Equal(t, 220.0, guides[0].To)
	}

	got, guides = SnapBox(box, []geometry.Box{sib}, layout.Snap{})
	assert.Equal(t, box, got)
	assert.Nil(t, guides)

	got, _ = SnapBox(box, nil, layout.Snap{Enabled: true, Grid: 20})
	assert.Equal(t, geometry.Pt(100, 40), got.Center)
}
