package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"stateflow/internal/config"
	"stateflow/internal/layout"
	"stateflow/internal/logging"
	"stateflow/internal/model"
	"stateflow/internal/persistence"
	"stateflow/internal/persistence/file"
	"stateflow/internal/persistence/postgres"
)

// LogName is the file the editor logs to when log_file is unset, relative
// to the data directory.
const LogName = "stateflow.log"

// app carries what every command shares: the loaded config, its logger
// and the open gateway.
type app struct {
	configPath string
	verbose    bool

	cfg *config.Config
	log *zap.Logger
	gw  persistence.Gateway
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "stateflow",
		Short: "Visual editor for workflow state machines",
		Long: `stateflow edits workflows as state machines on a terminal canvas.

States are boxes, transitions are connectors between them and gates are
checkpoints along a transition. Workflows are stored in PostgreSQL when
database_url is configured and as JSON documents under data_dir otherwise.

Without a subcommand the default workflow is opened in the editor.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runEdit(cmd, nil)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return a.close()
		},
	}
	root.Version = Version
	root.SetVersionTemplate("stateflow {{.Version}}\n")
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "config file (default $STATEFLOW_CONFIG or ~/"+config.FileName+")")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log at debug level")

	root.AddCommand(
		a.editCmd(),
		a.listCmd(),
		a.newCmd(),
		a.exportCmd(),
		a.importCmd(),
		a.pngCmd(),
		a.textCmd(),
	)
	return root
}

// open loads the config, builds the logger and connects the gateway. The
// editor owns the terminal, so it always logs to a file.
func (a *app) open(editor bool) error {
	path := a.configPath
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if a.verbose {
		cfg.LogLevel = "debug"
	}
	if err := os.MkdirAll(cfg.DataDir, 0750); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	logFile := cfg.LogFile
	if editor && logFile == "" {
		logFile = filepath.Join(cfg.DataDir, LogName)
	}
	log, err := logging.New(cfg.LogLevel, logFile)
	if err != nil {
		return err
	}

	a.cfg, a.log = cfg, log
	if cfg.DatabaseURL != "" {
		gw, err := postgres.New(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		a.gw = gw
		log.Debug("using postgres gateway")
	} else {
		a.gw = file.New(cfg.DataDir)
		log.Debug("using file gateway", zap.String("dir", cfg.DataDir))
	}
	return nil
}

func (a *app) close() error {
	var err error
	if a.gw != nil {
		err = a.gw.Close()
		a.gw = nil
	}
	if a.log != nil {
		_ = a.log.Sync()
	}
	return err
}

func (a *app) layoutStore() *layout.Store {
	return layout.NewStore(layout.NewFileBackend(a.cfg.LayoutDir()), a.log)
}

// workflow resolves ref as an id, then as a name within the configured
// organization. An empty ref picks the default workflow.
func (a *app) workflow(ctx context.Context, ref string) (model.Workflow, error) {
	if ref == "" {
		return persistence.DefaultWorkflow(ctx, a.gw, a.cfg.OrgID)
	}
	wf, err := a.gw.GetWorkflow(ctx, ref)
	if err == nil {
		return wf, nil
	}
	if !persistence.IsNotFound(err) {
		return model.Workflow{}, err
	}
	wfs, err := a.gw.ListWorkflows(ctx, a.cfg.OrgID)
	if err != nil {
		return model.Workflow{}, err
	}
	for _, wf := range wfs {
		if wf.Name == ref {
			return wf, nil
		}
	}
	return model.Workflow{}, persistence.Wrap("find", persistence.EntityWorkflow, ref, persistence.ErrNotFound)
}

func (a *app) graph(ctx context.Context, ref string) (*model.Graph, error) {
	wf, err := a.workflow(ctx, ref)
	if err != nil {
		return nil, err
	}
	return persistence.LoadGraph(ctx, a.gw, wf.ID)
}
