// Package interaction turns pointer gestures on the canvas into editor
// commands. The controller never keeps references into the model between
// events; every call gets the current scene.
package interaction

import (
	"slices"
	"time"

	"stateflow/internal/geometry"
	"stateflow/internal/layout"
	"stateflow/internal/model"
	"stateflow/internal/scene"
)

type Mode int

const (
	ModeSelect Mode = iota
	ModePan
	ModeConnect
	ModeResize
)

func (m Mode) String() string {
	switch m {
	case ModePan:
		return "pan"
	case ModeConnect:
		return "connect"
	case ModeResize:
		return "resize"
	}
	return "select"
}

const (
	// DragThreshold is how far the pointer travels before a press becomes
	// a drag.
	DragThreshold = 4.0
	// LiveInterval throttles drag previews.
	LiveInterval = 16 * time.Millisecond
	// EdgeSnapDistance is how close to a box an endpoint must be released
	// to attach to its boundary.
	EdgeSnapDistance = 12.0
)

// Target receives the edits the controller decides on. *editor.Session
// implements it.
type Target interface {
	PreviewState(id string, center geometry.Point, size geometry.Size)
	ClearPreview(id string)
	CommitStateMove(id string, center geometry.Point) error
	CommitStateResize(id string, box geometry.Box) error
	CreateTransition(from, to string) (model.Transition, error)
	RerouteTransition(id string, end layout.End, stateID string, pos *geometry.EdgePosition) error
	SetEdgePosition(id string, end layout.End, pos *geometry.EdgePosition) error
	SetWaypoints(id string, pts []geometry.Point) error
	SetLabelOffset(id string, offset geometry.Point) error
	Select(sel scene.Selection)
}

type gesture int

const (
	gestureNone gesture = iota
	gestureMove
	gestureResize
	gesturePan
	gestureConnect
	gestureEndpoint
	gestureWaypoint
	gestureInsertWaypoint
	gestureSegment
	gestureLabel
	gestureClick
)

// drag is the snapshot taken when a gesture starts.
type drag struct {
	kind   gesture
	moved  bool
	click  scene.Selection
	screen geometry.Point
	world  geometry.Point
	cur    geometry.Point

	nodeID   string
	edgeID   string
	startBox geometry.Box
	box      geometry.Box
	handle   scene.ResizeHandle

	from geometry.Point
	end  layout.End

	origWaypoints []geometry.Point
	waypoints     []geometry.Point
	index         int
	axis          geometry.Orientation
	path          [2]geometry.Point // start and end of the grabbed connector

	origOffset geometry.Point
	offset     geometry.Point
	view       Viewport

	lastLive time.Time
}

type Controller struct {
	target Target
	// Clock is used for preview throttling.
	Clock func() time.Time

	mode      Mode
	view      Viewport
	selection scene.Selection
	d         drag
	guides    []Guide
}

func New(target Target) *Controller {
	return &Controller{target: target, Clock: time.Now, view: DefaultViewport()}
}

func (c *Controller) Mode() Mode { return c.mode }

// SetMode switches modes, abandoning any gesture in progress.
func (c *Controller) SetMode(m Mode) {
	c.Cancel()
	c.mode = m
}

func (c *Controller) Viewport() Viewport         { return c.view }
func (c *Controller) SetViewport(v Viewport)     { c.view = v }
func (c *Controller) Selection() scene.Selection { return c.selection }
func (c *Controller) Guides() []Guide            { return c.guides }

// Dragging reports whether a gesture has passed the drag threshold.
func (c *Controller) Dragging() bool { return c.d.kind != gestureNone && c.d.moved }

func (c *Controller) Select(sel scene.Selection) {
	c.selection = sel
	c.target.Select(sel)
}

// ZoomAt zooms around a screen point.
func (c *Controller) ZoomAt(screen geometry.Point, factor float64) {
	c.view = c.view.ZoomAt(screen, factor)
}

// RubberBand returns the line drawn while a transition is being created
// or an endpoint is being dragged.
func (c *Controller) RubberBand() (from, to geometry.Point, ok bool) {
	if !c.d.moved || (c.d.kind != gestureConnect && c.d.kind != gestureEndpoint) {
		return geometry.Point{}, geometry.Point{}, false
	}
	return c.d.from, c.d.cur, true
}

// PointerDown starts a gesture at a screen position.
func (c *Controller) PointerDown(sc scene.Scene, screen geometry.Point) {
	c.Cancel()
	p := c.view.ScreenToWorld(screen)
	c.d = drag{screen: screen, world: p, cur: p, view: c.view}

	if c.mode == ModePan {
		c.d.kind = gesturePan
		return
	}
	if c.mode == ModeConnect {
		if n, ok := sc.NodeAt(p); ok {
			c.beginConnect(n, n.Box.Center)
			return
		}
		c.beginClick(scene.Selection{})
		return
	}
	if c.mode == ModeResize && c.selection.Kind == scene.SelectNode {
		if h, ok := sc.ResizeHandleAt(c.selection.ID, p); ok {
			n, _ := sc.Node(c.selection.ID)
			c.d.kind = gestureResize
			c.d.nodeID, c.d.handle = n.ID, h
			c.d.startBox, c.d.box = n.Box, n.Box
			return
		}
	}

	if c.selection.Kind == scene.SelectEdge && c.beginEdgeHandle(sc, p) {
		return
	}
	if c.selection.Kind == scene.SelectNode {
		if e, ok := sc.ConnectAffordanceAt(c.selection.ID, p); ok {
			n, _ := sc.Node(c.selection.ID)
			c.beginConnect(n, scene.Affordance(n.Box, e))
			return
		}
	}
	if e, ok := sc.LabelAt(p); ok {
		c.d.kind = gestureLabel
		c.d.edgeID = e.ID
		c.d.origOffset, c.d.offset = e.LabelOffset, e.LabelOffset
		c.d.click = scene.EdgeSelection(e.ID)
		return
	}
	if n, ok := sc.NodeAt(p); ok {
		c.d.kind = gestureMove
		c.d.nodeID = n.ID
		c.d.startBox, c.d.box = n.Box, n.Box
		c.d.click = scene.NodeSelection(n.ID)
		return
	}
	if e, ok := sc.EdgeNear(p); ok {
		c.d.click = scene.EdgeSelection(e.ID)
		if e.Elbow() {
			c.d.kind = gestureClick
			return
		}
		c.d.kind = gestureInsertWaypoint
		c.d.edgeID = e.ID
		c.d.origWaypoints = slices.Clone(e.Waypoints)
		c.d.path = [2]geometry.Point{e.Start.Point, e.End.Point}
		return
	}
	c.beginClick(scene.Selection{})
}

func (c *Controller) beginClick(sel scene.Selection) {
	c.d.kind = gestureClick
	c.d.click = sel
}

func (c *Controller) beginConnect(n scene.Node, from geometry.Point) {
	c.d.kind = gestureConnect
	c.d.nodeID = n.ID
	c.d.from = from
	c.d.click = scene.NodeSelection(n.ID)
}

// beginEdgeHandle grabs an endpoint, waypoint or elbow handle of the
// selected transition.
func (c *Controller) beginEdgeHandle(sc scene.Scene, p geometry.Point) bool {
	e, ok := sc.Edge(c.selection.ID)
	if !ok {
		return false
	}
	c.d.edgeID = e.ID
	c.d.click = scene.EdgeSelection(e.ID)

	if end, ok := sc.EndpointAt(e.ID, p); ok {
		c.d.kind = gestureEndpoint
		c.d.end = end
		c.d.nodeID, c.d.from = e.ToID, e.Start.Point
		if end == layout.EndFrom {
			c.d.nodeID, c.d.from = e.FromID, e.End.Point
		}
		return true
	}
	c.d.origWaypoints = slices.Clone(e.Waypoints)
	c.d.waypoints = slices.Clone(e.Waypoints)
	if i, ok := sc.WaypointAt(e.ID, p); ok {
		c.d.kind = gestureWaypoint
		c.d.index = i
		return true
	}
	if h, ok := sc.SegmentHandleAt(e.ID, p); ok {
		c.d.kind = gestureSegment
		c.d.axis = h.Orientation
		c.d.index = segmentWaypoint(e, h)
		if c.d.index < 0 {
			c.d.index = geometry.FindInsertionIndex(c.d.waypoints, e.Start.Point, e.End.Point, h.Point)
			c.d.waypoints = slices.Insert(c.d.waypoints, c.d.index, h.Point)
		}
		return true
	}
	c.d.edgeID = ""
	c.d.origWaypoints, c.d.waypoints = nil, nil
	return false
}

// segmentWaypoint returns the index of a waypoint lying on the handle's
// segment, or -1.
func segmentWaypoint(e scene.Edge, h geometry.Handle) int {
	a, b := e.Segments[h.Segment], e.Segments[h.Segment+1]
	for i, wp := range e.Waypoints {
		if wp.Eq(a) || wp.Eq(b) {
			return i
		}
	}
	return -1
}

// PointerMove updates the gesture in progress.
func (c *Controller) PointerMove(sc scene.Scene, screen geometry.Point) {
	if c.d.kind == gestureNone {
		return
	}
	p := c.d.view.ScreenToWorld(screen)
	c.d.cur = p
	if !c.d.moved {
		if p.Dist2(c.d.world) < DragThreshold*DragThreshold {
			return
		}
		c.d.moved = true
		c.activate()
	}
	delta := p.Sub(c.d.world)

	switch c.d.kind {
	case gesturePan:
		c.view = c.d.view.PanBy(screen.Sub(c.d.screen))
	case gestureMove:
		box := c.d.startBox
		box.Center = box.Center.Add(delta)
		c.d.box, c.guides = SnapBox(box, siblings(sc, c.d.nodeID), sc.Snap)
		c.live(func() { c.target.PreviewState(c.d.nodeID, c.d.box.Center, c.d.box.Size) })
	case gestureResize:
		c.d.box = resize(c.d.startBox, c.d.handle, delta)
		c.live(func() { c.target.PreviewState(c.d.nodeID, c.d.box.Center, c.d.box.Size) })
	case gestureWaypoint, gestureInsertWaypoint:
		c.d.waypoints[c.d.index] = p
		c.live(func() { c.setWaypoints(c.d.waypoints) })
	case gestureSegment:
		wp := c.d.waypoints[c.d.index]
		if c.d.axis == geometry.Vertical {
			wp.X = p.X
		} else {
			wp.Y = p.Y
		}
		c.d.waypoints[c.d.index] = wp
		c.live(func() { c.setWaypoints(c.d.waypoints) })
	case gestureLabel:
		c.d.offset = c.d.origOffset.Add(delta)
		c.live(func() { _ = c.target.SetLabelOffset(c.d.edgeID, c.d.offset) })
	}
}

// activate runs once when a press turns into a drag.
func (c *Controller) activate() {
	switch c.d.kind {
	case gestureInsertWaypoint:
		c.d.waypoints = slices.Clone(c.d.origWaypoints)
		c.d.index = geometry.FindInsertionIndex(c.d.waypoints, c.d.path[0], c.d.path[1], c.d.world)
		c.d.waypoints = slices.Insert(c.d.waypoints, c.d.index, c.d.world)
		c.Select(scene.EdgeSelection(c.d.edgeID))
	case gestureMove:
		c.Select(scene.NodeSelection(c.d.nodeID))
	case gestureLabel:
		c.Select(scene.EdgeSelection(c.d.edgeID))
	}
}

func (c *Controller) live(fn func()) {
	now := c.Clock()
	if now.Sub(c.d.lastLive) < LiveInterval {
		return
	}
	c.d.lastLive = now
	fn()
}

func (c *Controller) setWaypoints(pts []geometry.Point) {
	_ = c.target.SetWaypoints(c.d.edgeID, slices.Clone(pts))
}

func siblings(sc scene.Scene, exceptID string) []geometry.Box {
	out := make([]geometry.Box, 0, len(sc.Nodes))
	for _, n := range sc.Nodes {
		if n.ID != exceptID {
			out = append(out, n.Box)
		}
	}
	return out
}

// resize grows or shrinks start by the pointer delta on the sides named by
// the handle, keeping the opposite sides fixed.
func resize(start geometry.Box, h scene.ResizeHandle, delta geometry.Point) geometry.Box {
	left, top, right, bottom := start.Left(), start.Top(), start.Right(), start.Bottom()
	sx, sy := h.Signs()
	switch {
	case sx > 0:
		right = max(right+delta.X, left+geometry.MinStateWidth)
	case sx < 0:
		left = min(left+delta.X, right-geometry.MinStateWidth)
	}
	switch {
	case sy > 0:
		bottom = max(bottom+delta.Y, top+geometry.MinStateHeight)
	case sy < 0:
		top = min(top+delta.Y, bottom-geometry.MinStateHeight)
	}
	return geometry.BoxFromBounds(left, top, right, bottom)
}

// PointerUp finishes the gesture. A release within the drag threshold is
// a click and selects what was pressed.
func (c *Controller) PointerUp(sc scene.Scene, screen geometry.Point) error {
	d := c.d
	c.d = drag{}
	c.guides = nil
	if d.kind == gestureNone {
		return nil
	}
	if !d.moved {
		if d.kind == gestureMove || d.kind == gestureResize {
			c.target.ClearPreview(d.nodeID)
		}
		if d.kind != gesturePan {
			c.Select(d.click)
		}
		return nil
	}
	p := d.view.ScreenToWorld(screen)

	switch d.kind {
	case gestureMove:
		return c.target.CommitStateMove(d.nodeID, d.box.Center)
	case gestureResize:
		return c.target.CommitStateResize(d.nodeID, d.box)
	case gestureConnect:
		n, ok := sc.NodeAt(p)
		if !ok || n.ID == d.nodeID {
			return nil
		}
		t, err := c.target.CreateTransition(d.nodeID, n.ID)
		if err != nil {
			return err
		}
		c.Select(scene.EdgeSelection(t.ID))
	case gestureEndpoint:
		if n, ok := sc.NodeAt(p); ok {
			return c.target.RerouteTransition(d.edgeID, d.end, n.ID, nil)
		}
		if n, hit, ok := sc.NodeNearBoundary(p, EdgeSnapDistance); ok {
			pos := hit.EdgePosition()
			if n.ID == d.nodeID {
				return c.target.SetEdgePosition(d.edgeID, d.end, &pos)
			}
			return c.target.RerouteTransition(d.edgeID, d.end, n.ID, &pos)
		}
	case gestureWaypoint, gestureInsertWaypoint, gestureSegment:
		return c.target.SetWaypoints(d.edgeID, d.waypoints)
	case gestureLabel:
		return c.target.SetLabelOffset(d.edgeID, d.offset)
	}
	return nil
}

// DoubleClick removes a waypoint of the selected transition.
func (c *Controller) DoubleClick(sc scene.Scene, screen geometry.Point) error {
	if c.selection.Kind != scene.SelectEdge {
		return nil
	}
	p := c.view.ScreenToWorld(screen)
	i, ok := sc.WaypointAt(c.selection.ID, p)
	if !ok {
		return nil
	}
	e, _ := sc.Edge(c.selection.ID)
	return c.target.SetWaypoints(e.ID, slices.Delete(slices.Clone(e.Waypoints), i, i+1))
}

// Cancel abandons the gesture in progress and restores what it changed.
func (c *Controller) Cancel() {
	d := c.d
	c.d = drag{}
	c.guides = nil
	if !d.moved {
		return
	}
	switch d.kind {
	case gestureMove, gestureResize:
		c.target.ClearPreview(d.nodeID)
	case gesturePan:
		c.view = d.view
	case gestureWaypoint, gestureInsertWaypoint, gestureSegment:
		_ = c.target.SetWaypoints(d.edgeID, d.origWaypoints)
	case gestureLabel:
		_ = c.target.SetLabelOffset(d.edgeID, d.origOffset)
	}
}
