package layout

import (
	"maps"
	"slices"

	"stateflow/internal/geometry"
)

// End selects one endpoint of a transition.
type End int

const (
	EndFrom End = iota
	EndTo
)

func (e End) String() string {
	if e == EndTo {
		return "to"
	}
	return "from"
}

// Anchors holds manual edge positions for the two ends of a transition.
// A nil side is computed by ray casting.
type Anchors struct {
	From *geometry.EdgePosition `json:"from,omitempty"`
	To   *geometry.EdgePosition `json:"to,omitempty"`
}

func (a Anchors) Get(end End) *geometry.EdgePosition {
	if end == EndTo {
		return a.To
	}
	return a.From
}

func (a *Anchors) set(end End, pos *geometry.EdgePosition) {
	if end == EndTo {
		a.To = pos
	} else {
		a.From = pos
	}
}

// With returns a copy of a with one end pinned to pos, or released when
// pos is nil. The fraction is clamped to [0,1].
func (a Anchors) With(end End, pos *geometry.EdgePosition) Anchors {
	c := a.clone()
	if pos != nil {
		p := *pos
		p.Fraction = min(max(p.Fraction, 0), 1)
		pos = &p
	}
	c.set(end, pos)
	return c
}

func (a Anchors) empty() bool { return a.From == nil && a.To == nil }

type Snap struct {
	Enabled   bool    `json:"enabled"`
	Tolerance float64 `json:"tolerance"`
	Grid      float64 `json:"grid"`
}

const DefaultSnapTolerance = 6.0

func DefaultSnap() Snap {
	return Snap{Enabled: true, Tolerance: DefaultSnapTolerance}
}

// Override is the client-local visual adjustment of one workflow.
type Override struct {
	Waypoints     map[string][]geometry.Point `json:"waypoints"`
	LabelOffsets  map[string]geometry.Point   `json:"labelOffsets"`
	PinnedLabels  map[string]geometry.Point   `json:"pinnedLabelPositions"`
	EdgePositions map[string]Anchors          `json:"edgePositions"`
	Snap          Snap                        `json:"snapSettings"`
}

func NewOverride() Override {
	return Override{
		Waypoints:     map[string][]geometry.Point{},
		LabelOffsets:  map[string]geometry.Point{},
		PinnedLabels:  map[string]geometry.Point{},
		EdgePositions: map[string]Anchors{},
		Snap:          DefaultSnap(),
	}
}

// normalize fills nil maps left by older or hand edited blobs.
func (o *Override) normalize() {
	if o.Waypoints == nil {
		o.Waypoints = map[string][]geometry.Point{}
	}
	if o.LabelOffsets == nil {
		o.LabelOffsets = map[string]geometry.Point{}
	}
	if o.PinnedLabels == nil {
		o.PinnedLabels = map[string]geometry.Point{}
	}
	if o.EdgePositions == nil {
		o.EdgePositions = map[string]Anchors{}
	}
	if o.Snap.Tolerance <= 0 {
		o.Snap.Tolerance = DefaultSnapTolerance
	}
}

func clonePos(p *geometry.EdgePosition) *geometry.EdgePosition {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

func (a Anchors) clone() Anchors {
	return Anchors{From: clonePos(a.From), To: clonePos(a.To)}
}

func (o Override) Clone() Override {
	c := Override{
		Waypoints:     make(map[string][]geometry.Point, len(o.Waypoints)),
		LabelOffsets:  maps.Clone(o.LabelOffsets),
		PinnedLabels:  maps.Clone(o.PinnedLabels),
		EdgePositions: make(map[string]Anchors, len(o.EdgePositions)),
		Snap:          o.Snap,
	}
	for k, v := range o.Waypoints {
		c.Waypoints[k] = slices.Clone(v)
	}
	for k, v := range o.EdgePositions {
		c.EdgePositions[k] = v.clone()
	}
	c.normalize()
	return c
}

// TransitionOverride is everything stored for a single transition.
type TransitionOverride struct {
	Waypoints   []geometry.Point `json:"waypoints,omitempty"`
	LabelOffset *geometry.Point  `json:"labelOffset,omitempty"`
	PinnedLabel *geometry.Point  `json:"pinnedLabel,omitempty"`
	Anchors     Anchors          `json:"anchors"`
}

func (t TransitionOverride) IsZero() bool {
	return len(t.Waypoints) == 0 && t.LabelOffset == nil && t.PinnedLabel == nil && t.Anchors.empty()
}

// For extracts the overrides of one transition.
func (o Override) For(transitionID string) TransitionOverride {
	var t TransitionOverride
	t.Waypoints = slices.Clone(o.Waypoints[transitionID])
	if p, ok := o.LabelOffsets[transitionID]; ok {
		t.LabelOffset = &p
	}
	if p, ok := o.PinnedLabels[transitionID]; ok {
		t.PinnedLabel = &p
	}
	t.Anchors = o.EdgePositions[transitionID].clone()
	return t
}

func (o *Override) forget(transitionID string) {
	delete(o.Waypoints, transitionID)
	delete(o.LabelOffsets, transitionID)
	delete(o.PinnedLabels, transitionID)
	delete(o.EdgePositions, transitionID)
}

func (o *Override) restore(transitionID string, t TransitionOverride) {
	o.forget(transitionID)
	if len(t.Waypoints) > 0 {
		o.Waypoints[transitionID] = slices.Clone(t.Waypoints)
	}
	if t.LabelOffset != nil {
		o.LabelOffsets[transitionID] = *t.LabelOffset
	}
	if t.PinnedLabel != nil {
		o.PinnedLabels[transitionID] = *t.PinnedLabel
	}
	if !t.Anchors.empty() {
		o.EdgePositions[transitionID] = t.Anchors.clone()
	}
}
