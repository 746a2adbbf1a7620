package interaction

import (
	"stateflow/internal/geometry"
	"stateflow/internal/model"
)

const (
	MinZoom = 0.25
	MaxZoom = 4.0
)

// Viewport maps world coordinates to the screen: screen = world*Zoom + Pan.
type Viewport struct {
	Zoom float64
	Pan  geometry.Point
}

func DefaultViewport() Viewport { return Viewport{Zoom: 1} }

// ViewportFrom reads a stored canvas config, substituting zoom 1 for
// unset or out of range values.
func ViewportFrom(cfg model.CanvasConfig) Viewport {
	v := Viewport{Zoom: clampZoom(cfg.Zoom), Pan: geometry.Pt(cfg.PanX, cfg.PanY)}
	if cfg.Zoom == 0 {
		v.Zoom = 1
	}
	return v
}

func (v Viewport) Config() model.CanvasConfig {
	return model.CanvasConfig{Zoom: v.Zoom, PanX: v.Pan.X, PanY: v.Pan.Y}
}

func clampZoom(z float64) float64 {
	if !(z >= MinZoom) {
		return MinZoom
	}
	return min(z, MaxZoom)
}

func (v Viewport) zoom() float64 {
	if v.Zoom == 0 {
		return 1
	}
	return v.Zoom
}

func (v Viewport) WorldToScreen(p geometry.Point) geometry.Point {
	return p.Scale(v.zoom()).Add(v.Pan)
}

func (v Viewport) ScreenToWorld(p geometry.Point) geometry.Point {
	return p.Sub(v.Pan).Scale(1 / v.zoom())
}

// ZoomAt scales by factor around a screen point, keeping the world point
// under it fixed.
func (v Viewport) ZoomAt(screen geometry.Point, factor float64) Viewport {
	anchor := v.ScreenToWorld(screen)
	next := Viewport{Zoom: clampZoom(v.zoom() * factor)}
	next.Pan = screen.Sub(anchor.Scale(next.Zoom))
	return next
}

// PanBy shifts the view by a screen-space delta.
func (v Viewport) PanBy(d geometry.Point) Viewport {
	v.Pan = v.Pan.Add(d)
	return v
}
