package exchange

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"

	"stateflow/internal/idgen"
	"stateflow/internal/model"
	"stateflow/internal/notify"
	"stateflow/internal/persistence"
)

//go:embed schema.json
var schemaJSON []byte

var schema = gojsonschema.NewBytesLoader(schemaJSON)

// Parse checks raw JSON against the document schema and the field rules
// and decodes it.
func Parse(data []byte) (Document, error) {
	result, err := gojsonschema.Validate(schema, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}
		return Document{}, fmt.Errorf("%w: %s", ErrInvalidDocument, strings.Join(msgs, "; "))
	}

	var doc Document
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&doc); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if err := model.Validate(doc); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return doc, nil
}

// Build turns a parsed document into a new graph with fresh ids. Every
// state name must be unique and every transition must name existing
// states; all offending references are reported at once.
func Build(doc Document, orgID string, ids idgen.Func) (*model.Graph, error) {
	var problems []string
	byName := make(map[string]string, len(doc.States))
	for _, s := range doc.States {
		if _, dup := byName[s.Name]; dup {
			problems = append(problems, fmt.Sprintf("duplicate state %q", s.Name))
		}
		byName[s.Name] = ""
	}
	for i, t := range doc.Transitions {
		if _, ok := byName[t.FromState]; !ok {
			problems = append(problems, fmt.Sprintf("transition %d: unknown from_state %q", i, t.FromState))
		}
		if _, ok := byName[t.ToState]; !ok {
			problems = append(problems, fmt.Sprintf("transition %d: unknown to_state %q", i, t.ToState))
		}
	}
	if len(problems) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidDocument, strings.Join(problems, "; "))
	}

	newID := func(prefix string) string {
		id, err := ids(prefix)
		if err != nil {
			problems = append(problems, err.Error())
		}
		return id
	}

	wf := model.Workflow{
		ID:          newID(idgen.WorkflowPrefix),
		OrgID:       orgID,
		Name:        doc.Workflow.Name,
		Description: doc.Workflow.Description,
	}
	if doc.Workflow.CanvasConfig != nil {
		wf.CanvasConfig = *doc.Workflow.CanvasConfig
	}
	g := model.NewGraph(wf)

	for _, sd := range doc.States {
		s := model.State{
			ID:                    newID(idgen.StatePrefix),
			WorkflowID:            wf.ID,
			Name:                  sd.Name,
			Label:                 sd.Label,
			Description:           sd.Description,
			StateType:             sd.StateType,
			Shape:                 sd.Shape,
			Color:                 sd.Color,
			Icon:                  sd.Icon,
			X:                     sd.PositionX,
			Y:                     sd.PositionY,
			Width:                 sd.Width,
			Height:                sd.Height,
			IsEditable:            sd.IsEditable,
			RequiresCheckout:      sd.RequiresCheckout,
			AutoIncrementRevision: sd.AutoIncrementRevision,
			SortOrder:             sd.SortOrder,
		}
		if s.StateType == "" {
			s.StateType = model.StateTypeState
		}
		if s.Shape == "" {
			s.Shape = model.ShapeRounded
		}
		byName[s.Name] = s.ID
		g.States = append(g.States, s)
	}

	for _, td := range doc.Transitions {
		t := model.NewTransition(wf.ID, byName[td.FromState], byName[td.ToState])
		t.ID = newID(idgen.TransitionPrefix)
		t.Name = td.Name
		t.Description = td.Description
		t.Line = lineOf(td)
		g.Transitions = append(g.Transitions, t)
		for i, gd := range td.Gates {
			g.UpsertGate(model.Gate{
				ID:           newID(idgen.GatePrefix),
				TransitionID: t.ID,
				Name:         gd.Name,
				Description:  gd.Description,
				SortOrder:    i,
			})
		}
	}
	if len(problems) > 0 {
		return nil, errors.New(strings.Join(problems, "; "))
	}
	if err := model.ValidateGraph(g); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return g, nil
}

// lineOf fills unset line attributes from the default style.
func lineOf(td TransitionDoc) model.Line {
	l := model.DefaultLine()
	if td.LineStyle != "" {
		l.Style = td.LineStyle
	}
	if td.LinePathType != "" {
		l.PathType = td.LinePathType
	}
	if td.LineArrowHead != "" {
		l.ArrowHead = td.LineArrowHead
	}
	if td.LineThickness != 0 {
		l.Thickness = td.LineThickness
	}
	if td.LineColor != "" {
		l.Color = td.LineColor
	}
	return l
}

type Importer struct {
	Gateway  persistence.Gateway
	Notifier notify.Notifier
	Logger   *zap.Logger
	// IDs defaults to idgen.Generate.
	IDs idgen.Func
	// Name replaces the workflow name from the document when set.
	Name string
}

// Import validates data completely before writing anything, then stores
// the whole workflow in one gateway call. The outcome is reported to the
// notifier exactly once.
func (im *Importer) Import(ctx context.Context, orgID string, data []byte) (*model.Graph, error) {
	log := im.Logger
	if log == nil {
		log = zap.NewNop()
	}
	ids := im.IDs
	if ids == nil {
		ids = idgen.Generate
	}

	g, err := im.build(orgID, data, ids)
	if err == nil {
		start := time.Now()
		err = im.Gateway.CreateGraph(ctx, g)
		log.Debug("import written", zap.Duration("took", time.Since(start)))
	}
	if err != nil {
		log.Warn("import rejected", zap.Error(err))
		if im.Notifier != nil {
			notify.Errorf(im.Notifier, "import failed: %v", err)
		}
		return nil, fmt.Errorf("import: %w", err)
	}

	log.Info("workflow imported",
		zap.String("workflow", g.Workflow.ID),
		zap.Int("states", len(g.States)),
		zap.Int("transitions", len(g.Transitions)))
	if im.Notifier != nil {
		im.Notifier.Notify(notify.Success, fmt.Sprintf("imported %q with %d states", g.Workflow.Name, len(g.States)))
	}
	return g, nil
}

func (im *Importer) build(orgID string, data []byte, ids idgen.Func) (*model.Graph, error) {
	doc, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if im.Name != "" {
		doc.Workflow.Name = im.Name
	}
	return Build(doc, orgID, ids)
}
