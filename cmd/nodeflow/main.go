package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ldi/nodeflow/internal/config"
	"github.com/ldi/nodeflow/internal/db"
	"github.com/ldi/nodeflow/internal/ui"
	"github.com/ldi/nodeflow/pkg/models"
)

// app carries the resolved configuration for one CLI invocation.
type app struct {
	configPath   string
	dbPath       string
	snapshotPath string
	logLevel     string

	cfg    *config.Config
	logger *slog.Logger
	stderr io.Writer
}

// runMenu is swapped out in tests.
var runMenu = ui.RunMenu

func main() {
	if err := execute(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func execute(args []string, stdout, stderr io.Writer) error {
	root := newRootCmd(stderr)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.Execute()
}

func newRootCmd(stderr io.Writer) *cobra.Command {
	a := &app{stderr: stderr}

	root := &cobra.Command{
		Use:   "nodeflow",
		Short: "Project dependency graph and status engine",
		Long: "nodeflow tracks nodes, dependencies and requests across a project and derives\n" +
			"who can work on what. Running `nodeflow` with no command opens an interactive menu.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runMenu(cmd)
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", filepath.Join(config.DefaultDir, "config.toml"), "Path to config file")
	root.PersistentFlags().StringVar(&a.dbPath, "db-path", "", "Path to database file (overrides config)")
	root.PersistentFlags().StringVar(&a.snapshotPath, "snapshot-path", "", "Path to JSONL snapshot file (overrides config)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")

	root.AddCommand(
		a.initCmd(),
		a.serveCmd(),
		a.mcpCmd(),
		a.projectCmd(),
		a.statusCmd(),
		a.viewCmd("todos", "Show nodes a user can work on now"),
		a.viewCmd("waiting", "Show a user's nodes that are BLOCKED or WAITING"),
		a.viewCmd("blocking", "Show other people's nodes waiting on a user"),
		a.reasonsCmd(),
		a.nodeCmd(),
		a.edgeCmd(),
		a.requestCmd(),
		a.exportCmd(),
		a.importCmd(),
		a.inboxCmd(),
	)

	return root
}

// load reads the config file and applies flag overrides.
func (a *app) load(cmd *cobra.Command) error {
	cfg, err := config.Load(config.ExpandHome(a.configPath))
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("db-path") {
		cfg.General.DBPath = a.dbPath
	}
	if flags.Changed("snapshot-path") {
		cfg.General.SnapshotPath = a.snapshotPath
	}
	if flags.Changed("log-level") {
		cfg.General.LogLevel = a.logLevel
	}
	cfg.General.DBPath = config.ExpandHome(cfg.General.DBPath)
	cfg.General.SnapshotPath = config.ExpandHome(cfg.General.SnapshotPath)

	a.cfg = cfg
	a.logger = config.NewLogger(a.stderr, cfg.General.LogLevel, cfg.General.LogFormat)
	return nil
}

// open opens and migrates the store. Auto snapshots are enabled after
// migration so opening never rewrites the snapshot on its own.
func (a *app) open(ctx context.Context, autoSnapshot bool) (*db.DB, error) {
	if dir := filepath.Dir(a.cfg.General.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	database, err := db.Open(a.cfg.General.DBPath)
	if err != nil {
		return nil, err
	}
	database.SetLogger(a.logger)

	if err := database.Init(ctx); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if autoSnapshot && a.cfg.General.AutoSnapshotEnabled() {
		database.EnableAutoSnapshot(a.cfg.General.SnapshotPath)
	}
	return database, nil
}

func (a *app) runMenu(cmd *cobra.Command) error {
	projects, err := a.projectNames(cmd.Context())
	if err != nil {
		return err
	}

	selected, err := runMenu(projects)
	if err != nil {
		return fmt.Errorf("running menu: %w", err)
	}
	if selected.Command == "" {
		return nil
	}

	sub, _, err := cmd.Find([]string{selected.Command})
	if err != nil || sub == cmd {
		return fmt.Errorf("unknown command: %s", selected.Command)
	}
	sub.SetContext(cmd.Context())
	if err := sub.ValidateArgs(selected.Args); err != nil {
		return fmt.Errorf("%s: %w", selected.Command, err)
	}
	return sub.RunE(sub, selected.Args)
}

// projectNames lists the projects offered by the menu. A workspace without a
// database yet has none, and is left uncreated so `init` can still run.
func (a *app) projectNames(ctx context.Context) ([]string, error) {
	if _, err := os.Stat(a.cfg.General.DBPath); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	database, err := a.open(ctx, false)
	if err != nil {
		return nil, err
	}
	defer database.Close()

	projects, err := database.ListProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	names := make([]string, 0, len(projects))
	for _, p := range projects {
		names = append(names, p.Name)
	}
	return names, nil
}

func resolveProject(ctx context.Context, database *db.DB, ref string) (*models.Project, error) {
	p, err := database.ResolveProject(ctx, ref)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("project not found: %s", ref)
	}
	return p, nil
}

func resolveNode(ctx context.Context, database *db.DB, projectID, ref string) (*models.Node, error) {
	n, err := database.GetNode(ctx, ref)
	if err != nil {
		return nil, err
	}
	if n == nil || n.ProjectID != projectID {
		n, err = database.GetNodeByTitle(ctx, projectID, ref)
		if err != nil {
			return nil, err
		}
	}
	if n == nil {
		return nil, fmt.Errorf("node not found: %s", ref)
	}
	return n, nil
}
