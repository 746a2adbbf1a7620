package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"stateflow/internal/model"
	"stateflow/internal/persistence"
)

const workflowColumns = `id, org_id, name, description, canvas_zoom, canvas_pan_x, canvas_pan_y,
	is_default, created_at, updated_at`

const stateColumns = `id, workflow_id, name, label, description, state_type, shape, color, icon,
	position_x, position_y, width, height, is_editable, requires_checkout,
	auto_increment_revision, sort_order`

const transitionColumns = `id, workflow_id, from_state_id, to_state_id, name, description,
	line_style, line_path_type, line_arrow_head, line_thickness, line_color`

const gateColumns = `id, transition_id, name, description, sort_order`

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

var now = func() time.Time { return time.Now().UTC() }

// classify maps driver errors onto the gateway sentinels.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return persistence.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			return fmt.Errorf("%w: %s", persistence.ErrConflict, pqErr.Message)
		case "23503", "23514", "22P02":
			return fmt.Errorf("%w: %s", persistence.ErrInvalid, pqErr.Message)
		}
	}
	return err
}

// expectOne turns an update or delete that matched nothing into ErrNotFound.
func expectOne(res sql.Result, err error) error {
	if err != nil {
		return classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

func scanWorkflow(row scannable) (model.Workflow, error) {
	var wf model.Workflow
	err := row.Scan(
		&wf.ID,
		&wf.OrgID,
		&wf.Name,
		&wf.Description,
		&wf.CanvasConfig.Zoom,
		&wf.CanvasConfig.PanX,
		&wf.CanvasConfig.PanY,
		&wf.IsDefault,
		&wf.CreatedAt,
		&wf.UpdatedAt,
	)
	return wf, err
}

func scanState(row scannable) (model.State, error) {
	var s model.State
	err := row.Scan(
		&s.ID,
		&s.WorkflowID,
		&s.Name,
		&s.Label,
		&s.Description,
		&s.StateType,
		&s.Shape,
		&s.Color,
		&s.Icon,
		&s.X,
		&s.Y,
		&s.Width,
		&s.Height,
		&s.IsEditable,
		&s.RequiresCheckout,
		&s.AutoIncrementRevision,
		&s.SortOrder,
	)
	return s, err
}

func scanTransition(row scannable) (model.Transition, error) {
	var t model.Transition
	err := row.Scan(
		&t.ID,
		&t.WorkflowID,
		&t.FromStateID,
		&t.ToStateID,
		&t.Name,
		&t.Description,
		&t.Line.Style,
		&t.Line.PathType,
		&t.Line.ArrowHead,
		&t.Line.Thickness,
		&t.Line.Color,
	)
	return t, err
}

func scanGate(row scannable) (model.Gate, error) {
	var g model.Gate
	err := row.Scan(&g.ID, &g.TransitionID, &g.Name, &g.Description, &g.SortOrder)
	return g, err
}

func collect[T any](rows *sql.Rows, scan func(scannable) (T, error)) ([]T, error) {
	defer rows.Close()
	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Workflows

func queryListWorkflows(ctx context.Context, db executor, orgID string) ([]model.Workflow, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+workflowColumns+` FROM workflows WHERE org_id = $1 ORDER BY is_default DESC, name ASC`, orgID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanWorkflow)
}

func queryGetWorkflow(ctx context.Context, db executor, id string) (model.Workflow, error) {
	row := db.QueryRowContext(ctx, `SELECT `+workflowColumns+` FROM workflows WHERE id = $1`, id)
	wf, err := scanWorkflow(row)
	return wf, classify(err)
}

func queryCreateWorkflow(ctx context.Context, db executor, wf model.Workflow) (model.Workflow, error) {
	ts := now()
	if wf.CreatedAt.IsZero() {
		wf.CreatedAt = ts
	}
	wf.UpdatedAt = ts
	_, err := db.ExecContext(ctx, `
		INSERT INTO workflows (
			id, org_id, name, description, canvas_zoom, canvas_pan_x, canvas_pan_y,
			is_default, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		wf.ID,
		wf.OrgID,
		wf.Name,
		wf.Description,
		wf.CanvasConfig.Zoom,
		wf.CanvasConfig.PanX,
		wf.CanvasConfig.PanY,
		wf.IsDefault,
		wf.CreatedAt,
		wf.UpdatedAt,
	)
	return wf, classify(err)
}

func queryUpdateWorkflow(ctx context.Context, db executor, wf model.Workflow) (model.Workflow, error) {
	wf.UpdatedAt = now()
	err := expectOne(db.ExecContext(ctx, `
		UPDATE workflows SET
			name = $2, description = $3, canvas_zoom = $4, canvas_pan_x = $5, canvas_pan_y = $6,
			updated_at = $7
		WHERE id = $1`,
		wf.ID,
		wf.Name,
		wf.Description,
		wf.CanvasConfig.Zoom,
		wf.CanvasConfig.PanX,
		wf.CanvasConfig.PanY,
		wf.UpdatedAt,
	))
	return wf, err
}

func queryDeleteWorkflow(ctx context.Context, db executor, id string) error {
	return expectOne(db.ExecContext(ctx, `DELETE FROM workflows WHERE id = $1`, id))
}

func querySetDefaultWorkflow(ctx context.Context, db executor, orgID, id string) error {
	if _, err := db.ExecContext(ctx,
		`UPDATE workflows SET is_default = FALSE WHERE org_id = $1 AND is_default AND id <> $2`, orgID, id); err != nil {
		return classify(err)
	}
	return expectOne(db.ExecContext(ctx,
		`UPDATE workflows SET is_default = TRUE, updated_at = $3 WHERE id = $1 AND org_id = $2`, id, orgID, now()))
}

// States

func queryGetStates(ctx context.Context, db executor, workflowID string) ([]model.State, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+stateColumns+` FROM states WHERE workflow_id = $1 ORDER BY sort_order ASC, name ASC`, workflowID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanState)
}

func queryCreateState(ctx context.Context, db executor, s model.State) (model.State, error) {
	_, err := db.ExecContext(ctx, `
		INSERT INTO states (`+stateColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		s.ID,
		s.WorkflowID,
		s.Name,
		s.Label,
		s.Description,
		string(s.Type()),
		string(s.Shape),
		s.Color,
		s.Icon,
		s.X,
		s.Y,
		s.Width,
		s.Height,
		s.IsEditable,
		s.RequiresCheckout,
		s.AutoIncrementRevision,
		s.SortOrder,
	)
	return s, classify(err)
}

func queryUpdateState(ctx context.Context, db executor, s model.State) (model.State, error) {
	err := expectOne(db.ExecContext(ctx, `
		UPDATE states SET
			name = $2, label = $3, description = $4, state_type = $5, shape = $6, color = $7,
			icon = $8, position_x = $9, position_y = $10, width = $11, height = $12,
			is_editable = $13, requires_checkout = $14, auto_increment_revision = $15,
			sort_order = $16
		WHERE id = $1`,
		s.ID,
		s.Name,
		s.Label,
		s.Description,
		string(s.Type()),
		string(s.Shape),
		s.Color,
		s.Icon,
		s.X,
		s.Y,
		s.Width,
		s.Height,
		s.IsEditable,
		s.RequiresCheckout,
		s.AutoIncrementRevision,
		s.SortOrder,
	))
	return s, err
}

func queryDeleteState(ctx context.Context, db executor, id string) error {
	return expectOne(db.ExecContext(ctx, `DELETE FROM states WHERE id = $1`, id))
}

// Transitions

func queryGetTransitions(ctx context.Context, db executor, workflowID string) ([]model.Transition, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+transitionColumns+` FROM transitions WHERE workflow_id = $1 ORDER BY name ASC, id ASC`, workflowID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanTransition)
}

func queryCreateTransition(ctx context.Context, db executor, t model.Transition) (model.Transition, error) {
	_, err := db.ExecContext(ctx, `
		INSERT INTO transitions (`+transitionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		t.ID,
		t.WorkflowID,
		t.FromStateID,
		t.ToStateID,
		t.Name,
		t.Description,
		string(t.Line.Style),
		string(t.Line.PathType),
		string(t.Line.ArrowHead),
		t.Line.Thickness,
		t.Line.Color,
	)
	return t, classify(err)
}

func queryUpdateTransition(ctx context.Context, db executor, t model.Transition) (model.Transition, error) {
	err := expectOne(db.ExecContext(ctx, `
		UPDATE transitions SET
			from_state_id = $2, to_state_id = $3, name = $4, description = $5,
			line_style = $6, line_path_type = $7, line_arrow_head = $8,
			line_thickness = $9, line_color = $10
		WHERE id = $1`,
		t.ID,
		t.FromStateID,
		t.ToStateID,
		t.Name,
		t.Description,
		string(t.Line.Style),
		string(t.Line.PathType),
		string(t.Line.ArrowHead),
		t.Line.Thickness,
		t.Line.Color,
	))
	return t, err
}

func queryDeleteTransition(ctx context.Context, db executor, id string) error {
	return expectOne(db.ExecContext(ctx, `DELETE FROM transitions WHERE id = $1`, id))
}

// Gates

func queryGetGates(ctx context.Context, db executor, transitionIDs []string) ([]model.Gate, error) {
	if len(transitionIDs) == 0 {
		return nil, nil
	}
	rows, err := db.QueryContext(ctx,
		`SELECT `+gateColumns+` FROM gates WHERE transition_id = ANY($1) ORDER BY transition_id, sort_order ASC`,
		pq.Array(transitionIDs))
	if err != nil {
		return nil, err
	}
	return collect(rows, scanGate)
}

func queryCreateGate(ctx context.Context, db executor, g model.Gate) (model.Gate, error) {
	_, err := db.ExecContext(ctx,
		`INSERT INTO gates (`+gateColumns+`) VALUES ($1, $2, $3, $4, $5)`,
		g.ID, g.TransitionID, g.Name, g.Description, g.SortOrder)
	return g, classify(err)
}

func queryDeleteGate(ctx context.Context, db executor, id string) error {
	return expectOne(db.ExecContext(ctx, `DELETE FROM gates WHERE id = $1`, id))
}
