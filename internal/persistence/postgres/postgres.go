// Package postgres implements persistence.Gateway backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"stateflow/internal/model"
	"stateflow/internal/persistence"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Gateway implements persistence.Gateway on a PostgreSQL database.
type Gateway struct {
	db *sql.DB
}

// Compile-time check that Gateway implements persistence.Gateway.
var _ persistence.Gateway = (*Gateway)(nil)

// New opens a connection to the PostgreSQL database at the given URL,
// configures the connection pool, and runs any pending migrations.
func New(databaseURL string) (*Gateway, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Gateway{db: db}, nil
}

// NewWithDB wraps an already migrated database handle.
func NewWithDB(db *sql.DB) *Gateway {
	return &Gateway{db: db}
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// Close closes the underlying database connection.
func (g *Gateway) Close() error {
	return g.db.Close()
}

// inTx runs fn in a transaction, committing on success and rolling back
// on error.
func (g *Gateway) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (g *Gateway) ListWorkflows(ctx context.Context, orgID string) ([]model.Workflow, error) {
	wfs, err := queryListWorkflows(ctx, g.db, orgID)
	return wfs, persistence.Wrap("list", persistence.EntityWorkflow, orgID, err)
}

func (g *Gateway) GetWorkflow(ctx context.Context, id string) (model.Workflow, error) {
	wf, err := queryGetWorkflow(ctx, g.db, id)
	return wf, persistence.Wrap("get", persistence.EntityWorkflow, id, err)
}

func (g *Gateway) CreateWorkflow(ctx context.Context, wf model.Workflow) (model.Workflow, error) {
	wf, err := queryCreateWorkflow(ctx, g.db, wf)
	return wf, persistence.Wrap("create", persistence.EntityWorkflow, wf.ID, err)
}

func (g *Gateway) UpdateWorkflow(ctx context.Context, wf model.Workflow) (model.Workflow, error) {
	wf, err := queryUpdateWorkflow(ctx, g.db, wf)
	return wf, persistence.Wrap("update", persistence.EntityWorkflow, wf.ID, err)
}

func (g *Gateway) DeleteWorkflow(ctx context.Context, id string) error {
	return persistence.Wrap("delete", persistence.EntityWorkflow, id, queryDeleteWorkflow(ctx, g.db, id))
}

func (g *Gateway) SetDefaultWorkflow(ctx context.Context, orgID, id string) error {
	err := g.inTx(ctx, func(tx *sql.Tx) error {
		return querySetDefaultWorkflow(ctx, tx, orgID, id)
	})
	return persistence.Wrap("set default", persistence.EntityWorkflow, id, err)
}

func (g *Gateway) GetStates(ctx context.Context, workflowID string) ([]model.State, error) {
	states, err := queryGetStates(ctx, g.db, workflowID)
	return states, persistence.Wrap("list", persistence.EntityState, workflowID, err)
}

func (g *Gateway) CreateState(ctx context.Context, s model.State) (model.State, error) {
	s, err := queryCreateState(ctx, g.db, s)
	return s, persistence.Wrap("create", persistence.EntityState, s.ID, err)
}

func (g *Gateway) UpdateState(ctx context.Context, s model.State) (model.State, error) {
	s, err := queryUpdateState(ctx, g.db, s)
	return s, persistence.Wrap("update", persistence.EntityState, s.ID, err)
}

func (g *Gateway) DeleteState(ctx context.Context, id string) error {
	return persistence.Wrap("delete", persistence.EntityState, id, queryDeleteState(ctx, g.db, id))
}

func (g *Gateway) GetTransitions(ctx context.Context, workflowID string) ([]model.Transition, error) {
	ts, err := queryGetTransitions(ctx, g.db, workflowID)
	return ts, persistence.Wrap("list", persistence.EntityTransition, workflowID, err)
}

func (g *Gateway) CreateTransition(ctx context.Context, t model.Transition) (model.Transition, error) {
	t, err := queryCreateTransition(ctx, g.db, t)
	return t, persistence.Wrap("create", persistence.EntityTransition, t.ID, err)
}

func (g *Gateway) UpdateTransition(ctx context.Context, t model.Transition) (model.Transition, error) {
	t, err := queryUpdateTransition(ctx, g.db, t)
	return t, persistence.Wrap("update", persistence.EntityTransition, t.ID, err)
}

func (g *Gateway) DeleteTransition(ctx context.Context, id string) error {
	return persistence.Wrap("delete", persistence.EntityTransition, id, queryDeleteTransition(ctx, g.db, id))
}

func (g *Gateway) GetGates(ctx context.Context, transitionIDs []string) ([]model.Gate, error) {
	gates, err := queryGetGates(ctx, g.db, transitionIDs)
	return gates, persistence.Wrap("list", persistence.EntityGate, "", err)
}

func (g *Gateway) CreateGate(ctx context.Context, gate model.Gate) (model.Gate, error) {
	gate, err := queryCreateGate(ctx, g.db, gate)
	return gate, persistence.Wrap("create", persistence.EntityGate, gate.ID, err)
}

func (g *Gateway) DeleteGate(ctx context.Context, id string) error {
	return persistence.Wrap("delete", persistence.EntityGate, id, queryDeleteGate(ctx, g.db, id))
}

// CreateGraph inserts the workflow, then states, transitions and gates in
// one transaction.
func (g *Gateway) CreateGraph(ctx context.Context, graph *model.Graph) error {
	err := g.inTx(ctx, func(tx *sql.Tx) error {
		return queryCreateGraph(ctx, tx, graph)
	})
	return persistence.Wrap("create graph", persistence.EntityWorkflow, graph.Workflow.ID, err)
}

func queryCreateGraph(ctx context.Context, db executor, graph *model.Graph) error {
	wf, err := queryCreateWorkflow(ctx, db, graph.Workflow)
	if err != nil {
		return err
	}
	graph.Workflow = wf
	for _, s := range graph.States {
		if _, err := queryCreateState(ctx, db, s); err != nil {
			return fmt.Errorf("state %q: %w", s.Name, err)
		}
	}
	for _, t := range graph.Transitions {
		if _, err := queryCreateTransition(ctx, db, t); err != nil {
			return fmt.Errorf("transition %q: %w", t.Name, err)
		}
		for _, gate := range graph.GatesOf(t.ID) {
			if _, err := queryCreateGate(ctx, db, gate); err != nil {
				return fmt.Errorf("gate %q: %w", gate.Name, err)
			}
		}
	}
	return nil
}
