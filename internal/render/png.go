// Package render rasterizes a scene to PNG.
package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"math"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"

	"stateflow/internal/geometry"
	"stateflow/internal/model"
	"stateflow/internal/scene"
)

var ErrEmpty = errors.New("nothing to export")

const (
	DefaultScale   = 1.0
	DefaultPadding = 40.0
	FontSize       = 12.0
	ArrowSize      = 10.0
	GateRadius     = 5.0
)

// Options control the raster size. Zero values take the defaults.
type Options struct {
	Scale   float64
	Padding float64
}

func (o Options) withDefaults() Options {
	if o.Scale <= 0 {
		o.Scale = DefaultScale
	}
	if o.Padding <= 0 {
		o.Padding = DefaultPadding
	}
	return o
}

var loadFont = sync.OnceValues(func() (*truetype.Font, error) {
	return truetype.Parse(gomono.TTF)
})

// transform maps world coordinates to pixels.
type transform struct {
	origin geometry.Point
	scale  float64
}

func (t transform) pt(p geometry.Point) (float64, float64) {
	return (p.X - t.origin.X) * t.scale, (p.Y - t.origin.Y) * t.scale
}

// Image draws every connector, then every node on top.
func Image(sc scene.Scene, opts Options) (image.Image, error) {
	dc, err := draw(sc, opts)
	if err != nil {
		return nil, err
	}
	return dc.Image(), nil
}

// Encode writes the scene as PNG to w.
func Encode(w io.Writer, sc scene.Scene, opts Options) error {
	dc, err := draw(sc, opts)
	if err != nil {
		return err
	}
	return dc.EncodePNG(w)
}

// SavePNG writes the scene to a PNG file.
func SavePNG(path string, sc scene.Scene, opts Options) error {
	dc, err := draw(sc, opts)
	if err != nil {
		return err
	}
	if err := dc.SavePNG(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

func draw(sc scene.Scene, opts Options) (*gg.Context, error) {
	bounds, ok := sc.Bounds()
	if !ok {
		return nil, ErrEmpty
	}
	opts = opts.withDefaults()
	t := transform{
		origin: geometry.Pt(bounds.Left()-opts.Padding, bounds.Top()-opts.Padding),
		scale:  opts.Scale,
	}
	w := int(math.Ceil((bounds.Size.W + 2*opts.Padding) * opts.Scale))
	h := int(math.Ceil((bounds.Size.H + 2*opts.Padding) * opts.Scale))

	ttf, err := loadFont()
	if err != nil {
		return nil, fmt.Errorf("failed to parse font: %w", err)
	}
	dc := gg.NewContext(max(w, 1), max(h, 1))
	dc.SetColor(color.White)
	dc.Clear()
	dc.SetFontFace(truetype.NewFace(ttf, &truetype.Options{
		Size:    FontSize * opts.Scale,
		DPI:     72,
		Hinting: font.HintingFull,
	}))

	for _, e := range sc.Edges {
		drawEdge(dc, t, e)
	}
	for _, n := range sc.Nodes {
		drawNode(dc, t, n)
	}
	return dc, nil
}

func lineColor(dc *gg.Context, hex string) {
	if hex == "" {
		hex = model.DefaultLineColor
	}
	dc.SetHexColor(hex)
}

func drawEdge(dc *gg.Context, t transform, e scene.Edge) {
	pts := e.Polyline()
	if len(pts) < 2 {
		return
	}
	width := float64(max(e.Line.Thickness, 1)) * t.scale
	dc.SetLineWidth(width)
	lineColor(dc, e.Line.Color)
	switch e.Line.Style {
	case model.LineDashed:
		dc.SetDash(6*t.scale, 4*t.scale)
	case model.LineDotted:
		dc.SetDash(width, 3*t.scale)
	}
	dc.MoveTo(t.pt(pts[0]))
	for _, p := range pts[1:] {
		dc.LineTo(t.pt(p))
	}
	dc.Stroke()
	dc.SetDash()

	drawArrow(dc, t, pts[len(pts)-2], pts[len(pts)-1], e.Line.ArrowHead)

	for _, g := range e.Gates {
		x, y := t.pt(g.Point)
		dc.DrawCircle(x, y, GateRadius*t.scale)
		dc.SetColor(color.White)
		dc.FillPreserve()
		lineColor(dc, e.Line.Color)
		dc.SetLineWidth(t.scale)
		dc.Stroke()
	}

	if e.Name != "" {
		x, y := t.pt(e.Label)
		dc.SetColor(color.Black)
		dc.DrawStringAnchored(e.Name, x, y, 0.5, 0.5)
	}
}

// drawArrow puts a head at to, pointing away from from.
func drawArrow(dc *gg.Context, t transform, from, to geometry.Point, head model.ArrowHead) {
	if head == model.ArrowNone {
		return
	}
	fx, fy := t.pt(from)
	tx, ty := t.pt(to)
	dx, dy := tx-fx, ty-fy
	length := math.Hypot(dx, dy)
	if length < 0.1 {
		return
	}
	dx /= length
	dy /= length

	size := ArrowSize * t.scale
	spread := 0.5
	dc.MoveTo(tx, ty)
	dc.LineTo(tx-size*dx+size*dy*spread, ty-size*dy-size*dx*spread)
	dc.LineTo(tx-size*dx-size*dy*spread, ty-size*dy+size*dx*spread)
	dc.ClosePath()
	if head == model.ArrowOpen {
		dc.SetColor(color.White)
		dc.FillPreserve()
		dc.SetDash()
		dc.Stroke()
		return
	}
	dc.Fill()
}

func drawNode(dc *gg.Context, t transform, n scene.Node) {
	x, y := t.pt(geometry.Pt(n.Box.Left(), n.Box.Top()))
	w, h := n.Box.Size.W*t.scale, n.Box.Size.H*t.scale

	switch n.Shape {
	case model.ShapeRectangle:
		dc.DrawRectangle(x, y, w, h)
	case model.ShapePill:
		dc.DrawRoundedRectangle(x, y, w, h, h/2)
	case model.ShapeDiamond:
		dc.MoveTo(x+w/2, y)
		dc.LineTo(x+w, y+h/2)
		dc.LineTo(x+w/2, y+h)
		dc.LineTo(x, y+h/2)
		dc.ClosePath()
	default:
		dc.DrawRoundedRectangle(x, y, w, h, 8*t.scale)
	}
	dc.SetColor(color.White)
	dc.FillPreserve()
	if n.Color != "" {
		dc.SetHexColor(n.Color)
	} else {
		dc.SetColor(color.Black)
	}
	dc.SetLineWidth(1.5 * t.scale)
	if n.Type.Sentinel() {
		dc.SetLineWidth(3 * t.scale)
	}
	dc.Stroke()

	dc.SetColor(color.Black)
	cx, cy := t.pt(n.Box.Center)
	dc.DrawStringAnchored(n.Name, cx, cy, 0.5, 0.5)
}
