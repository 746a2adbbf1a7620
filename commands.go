package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"stateflow/internal/clipboard"
	"stateflow/internal/editor"
	"stateflow/internal/exchange"
	"stateflow/internal/geometry"
	"stateflow/internal/idgen"
	"stateflow/internal/model"
	"stateflow/internal/notify"
	"stateflow/internal/render"
	"stateflow/internal/scene"
	"stateflow/internal/tui"
)

func (a *app) editCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "edit [workflow]",
		Short: "Open a workflow on the canvas",
		Long: `Open a workflow by id or name in the terminal editor. Without an
argument the organization's default workflow is opened.

Press ? inside the editor for key bindings.`,
		Args: cobra.MaximumNArgs(1),
		RunE: a.runEdit,
	}
}

func (a *app) runEdit(cmd *cobra.Command, args []string) error {
	if err := a.open(true); err != nil {
		return err
	}
	ctx := cmd.Context()
	ref := ""
	if len(args) > 0 {
		ref = args[0]
	}
	wf, err := a.workflow(ctx, ref)
	if err != nil {
		return err
	}

	status := &notify.Recorder{}
	sess, err := editor.Open(ctx, wf.ID, editor.Options{
		Gateway:    a.gw,
		Layout:     a.layoutStore(),
		Notifier:   notify.Multi{status, notify.NewLogger(a.log)},
		Logger:     a.log,
		MaxHistory: a.cfg.MaxHistory,
	})
	if err != nil {
		return err
	}
	defer sess.Close()
	if err := sess.SetSnap(a.cfg.SnapSettings()); err != nil {
		a.log.Warn("apply snap settings", zap.Error(err))
	}

	dir, err := os.Getwd()
	if err != nil {
		dir = a.cfg.DataDir
	}
	a.log.Info("editor started", zap.String("workflow", wf.ID))
	return tui.Run(tui.New(sess, tui.Options{
		Status:        status,
		Clipboard:     clipboard.New(),
		Confirmations: a.cfg.Confirmations,
		ExportDir:     dir,
		Logger:        a.log,
	}))
}

func (a *app) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the organization's workflows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.open(false); err != nil {
				return err
			}
			wfs, err := a.gw.ListWorkflows(cmd.Context(), a.cfg.OrgID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(wfs) == 0 {
				fmt.Fprintln(out, "No workflows found")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tDEFAULT\tUPDATED")
			for _, wf := range wfs {
				def := ""
				if wf.IsDefault {
					def = "*"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", wf.ID, wf.Name, def, wf.UpdatedAt.Format(time.DateTime))
			}
			return w.Flush()
		},
	}
}

func (a *app) newCmd() *cobra.Command {
	var (
		description string
		makeDefault bool
		seed        bool
	)
	cmd := &cobra.Command{
		Use:   "new <name>",
		Short: "Create an empty workflow",
		Long: `Create a workflow. The organization's first workflow becomes its
default. With --seed the workflow starts with a Start and an End state.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(false); err != nil {
				return err
			}
			ctx := cmd.Context()
			existing, err := a.gw.ListWorkflows(ctx, a.cfg.OrgID)
			if err != nil {
				return err
			}
			id, err := idgen.Generate(idgen.WorkflowPrefix)
			if err != nil {
				return err
			}
			now := time.Now().UTC()
			g := model.NewGraph(model.Workflow{
				ID:           id,
				OrgID:        a.cfg.OrgID,
				Name:         args[0],
				Description:  description,
				CanvasConfig: model.CanvasConfig{Zoom: 1},
				CreatedAt:    now,
				UpdatedAt:    now,
			})
			if seed {
				if err := seedGraph(g); err != nil {
					return err
				}
			}
			if err := model.ValidateGraph(g); err != nil {
				return err
			}
			if err := a.gw.CreateGraph(ctx, g); err != nil {
				return err
			}
			if makeDefault || len(existing) == 0 {
				if err := a.gw.SetDefaultWorkflow(ctx, a.cfg.OrgID, id); err != nil {
					return err
				}
			}
			a.log.Info("workflow created", zap.String("workflow", id))
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "workflow description")
	cmd.Flags().BoolVar(&makeDefault, "default", false, "make this the default workflow")
	cmd.Flags().BoolVar(&seed, "seed", false, "add a Start and an End state")
	return cmd
}

// seedGraph adds a Start and an End state joined by one transition.
func seedGraph(g *model.Graph) error {
	start := model.NewState(g.Workflow.ID, "Start", geometry.Pt(0, 0))
	start.StateType, start.Shape = model.StateTypeStart, model.ShapePill
	end := model.NewState(g.Workflow.ID, "End", geometry.Pt(300, 0))
	end.StateType, end.Shape, end.SortOrder = model.StateTypeEnd, model.ShapePill, 1
	for _, st := range []*model.State{&start, &end} {
		id, err := idgen.Generate(idgen.StatePrefix)
		if err != nil {
			return err
		}
		st.ID = id
		g.UpsertState(*st)
	}
	tr := model.NewTransition(g.Workflow.ID, start.ID, end.ID)
	id, err := idgen.Generate(idgen.TransitionPrefix)
	if err != nil {
		return err
	}
	tr.ID = id
	g.UpsertTransition(tr)
	return nil
}

func (a *app) exportCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export <workflow>",
		Short: "Write a workflow as a JSON exchange document",
		Long: `Export a workflow by id or name. States and transitions reference
each other by name so the document can be imported into any organization.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(false); err != nil {
				return err
			}
			g, err := a.graph(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			doc, err := exchange.Export(g, time.Now())
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), output, func(w io.Writer) error {
				return exchange.Encode(w, doc)
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	return cmd
}

func (a *app) importCmd() *cobra.Command {
	var (
		name        string
		makeDefault bool
	)
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Create a workflow from a JSON exchange document",
		Long: `Import a document written by export. Use - to read stdin. The document
is validated completely first; nothing is written if any part is invalid.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(false); err != nil {
				return err
			}
			var (
				data []byte
				err  error
			)
			if args[0] == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return fmt.Errorf("read document: %w", err)
			}
			im := &exchange.Importer{
				Gateway:  a.gw,
				Notifier: notify.NewLogger(a.log),
				Logger:   a.log,
				Name:     name,
			}
			g, err := im.Import(cmd.Context(), a.cfg.OrgID, data)
			if err != nil {
				return err
			}
			if makeDefault {
				if err := a.gw.SetDefaultWorkflow(cmd.Context(), a.cfg.OrgID, g.Workflow.ID); err != nil {
					return err
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), g.Workflow.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "name for the new workflow (default: the document's)")
	cmd.Flags().BoolVar(&makeDefault, "default", false, "make the imported workflow the default")
	return cmd
}

func (a *app) pngCmd() *cobra.Command {
	var (
		output string
		scale  float64
	)
	cmd := &cobra.Command{
		Use:   "png <workflow>",
		Short: "Render a workflow to a PNG image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := a.scene(cmd, args[0])
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), output, func(w io.Writer) error {
				return render.Encode(w, sc, render.Options{Scale: scale})
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	cmd.Flags().Float64Var(&scale, "scale", render.DefaultScale, "pixels per world unit")
	return cmd
}

func (a *app) textCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "text <workflow>",
		Short: "Draw a workflow as plain text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := a.scene(cmd, args[0])
			if err != nil {
				return err
			}
			lines, err := tui.Snapshot(sc)
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), output, func(w io.Writer) error {
				for _, l := range lines {
					if _, err := fmt.Fprintln(w, l); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	return cmd
}

// scene builds the scene of a workflow with its stored visual overrides.
func (a *app) scene(cmd *cobra.Command, ref string) (scene.Scene, error) {
	if err := a.open(false); err != nil {
		return scene.Scene{}, err
	}
	g, err := a.graph(cmd.Context(), ref)
	if err != nil {
		return scene.Scene{}, err
	}
	o, err := a.layoutStore().Load(g.Workflow.ID)
	if err != nil {
		return scene.Scene{}, err
	}
	return scene.Build(g, o), nil
}

// writeOutput runs fn against stdout, or against path when one is given.
// The file is only created once fn succeeded.
func writeOutput(stdout io.Writer, path string, fn func(w io.Writer) error) error {
	if path == "" {
		return fn(stdout)
	}
	var buf bytes.Buffer
	if err := fn(&buf); err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return err
		}
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}
