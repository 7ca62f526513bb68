package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ldi/nodeflow/internal/db"
	"github.com/ldi/nodeflow/internal/graph"
	"github.com/ldi/nodeflow/internal/mcp"
	"github.com/ldi/nodeflow/internal/server"
	"github.com/ldi/nodeflow/internal/ui"
	"github.com/ldi/nodeflow/pkg/models"
)

func (a *app) initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the .nodeflow directory, database and config",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			dir := filepath.Dir(a.cfg.General.DBPath)
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create %s: %w", dir, err)
			}
			fmt.Fprintf(out, "✓ Created %s/ directory\n", dir)

			gitignorePath := filepath.Join(dir, ".gitignore")
			gitignore := filepath.Base(a.cfg.General.DBPath) + "*\n"
			if err := os.WriteFile(gitignorePath, []byte(gitignore), 0644); err != nil {
				return fmt.Errorf("failed to create .gitignore: %w", err)
			}
			fmt.Fprintf(out, "✓ Created %s\n", gitignorePath)

			if _, err := os.Stat(a.configPath); errors.Is(err, os.ErrNotExist) {
				if err := writeConfig(a.configPath, a.cfg); err != nil {
					return err
				}
				fmt.Fprintf(out, "✓ Wrote default config to %s\n", a.configPath)
			}

			ctx := cmd.Context()
			database, err := a.open(ctx, false)
			if err != nil {
				return err
			}
			defer database.Close()
			fmt.Fprintf(out, "✓ Initialized database at %s\n", a.cfg.General.DBPath)

			if _, err := os.Stat(a.cfg.General.SnapshotPath); err == nil {
				if err := database.ImportSnapshot(ctx, a.cfg.General.SnapshotPath); err != nil {
					return fmt.Errorf("failed to import snapshot: %w", err)
				}
				fmt.Fprintf(out, "✓ Imported snapshot from %s\n", a.cfg.General.SnapshotPath)
			}

			fmt.Fprintln(out, "✓ nodeflow initialized successfully")
			return nil
		},
	}
}

func writeConfig(path string, cfg any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (a *app) serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP JSON API until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if bind, _ := cmd.Flags().GetString("bind"); bind != "" {
				a.cfg.API.Bind = bind
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			database, err := a.open(ctx, true)
			if err != nil {
				return err
			}
			defer database.Close()

			srv := server.NewServer(database, a.cfg.API, a.logger)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return srv.Start(gctx)
			})
			g.Go(func() error {
				<-gctx.Done()
				a.logger.Info("shutting down", "reason", context.Cause(gctx))
				return nil
			})
			return g.Wait()
		},
	}
	cmd.Flags().String("bind", "", "Listen address (overrides config)")
	return cmd
}

func (a *app) mcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve MCP tools over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := a.open(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer database.Close()

			return mcp.Serve(mcp.NewServer(database, a.cfg.MCP, a.logger))
		},
	}
}

func (a *app) projectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Manage projects",
	}

	var description string
	add := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			database, err := a.open(ctx, true)
			if err != nil {
				return err
			}
			defer database.Close()

			p := &models.Project{Name: args[0], Description: description}
			if err := database.CreateProject(ctx, p); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created project %s (%s)\n", p.Name, p.ID)
			return nil
		},
	}
	add.Flags().StringVar(&description, "description", "", "Project description")

	list := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			database, err := a.open(ctx, false)
			if err != nil {
				return err
			}
			defer database.Close()

			projects, err := database.ListProjects(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-24s %s\n", "NAME", "DESCRIPTION")
			fmt.Fprintln(out, strings.Repeat("-", 60))
			for _, p := range projects {
				fmt.Fprintf(out, "%-24s %s\n", p.Name, p.Description)
			}
			return nil
		},
	}

	cmd.AddCommand(add, list)
	return cmd
}

func (a *app) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [project]",
		Short: "Show computed status counts per project",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			database, err := a.open(ctx, false)
			if err != nil {
				return err
			}
			defer database.Close()

			projects, err := selectProjects(ctx, database, args)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-24s %-8s %-8s %-8s %-8s %-8s %-8s\n", "PROJECT", "NODES", "TODO", "DOING", "BLOCKED", "WAITING", "DONE")
			fmt.Fprintln(out, strings.Repeat("-", 80))
			for _, p := range projects {
				statuses, err := database.ComputeProjectStatuses(ctx, p.ID)
				if err != nil {
					return err
				}
				counts := make(map[models.ComputedStatus]int)
				for _, s := range statuses {
					counts[s]++
				}
				fmt.Fprintf(out, "%-24s %-8d %-8d %-8d %-8d %-8d %-8d\n", p.Name, len(statuses),
					counts[models.StatusTodo], counts[models.StatusDoing], counts[models.StatusBlocked],
					counts[models.StatusWaiting], counts[models.StatusDone])
			}
			return nil
		},
	}
}

func selectProjects(ctx context.Context, database *db.DB, args []string) ([]*models.Project, error) {
	if len(args) == 0 {
		return database.ListProjects(ctx)
	}
	p, err := resolveProject(ctx, database, args[0])
	if err != nil {
		return nil, err
	}
	return []*models.Project{p}, nil
}

// viewCmd builds the todos, waiting and blocking commands, which share arguments.
func (a *app) viewCmd(name, short string) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   name + " <project> <user>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			database, err := a.open(ctx, false)
			if err != nil {
				return err
			}
			defer database.Close()

			p, err := resolveProject(ctx, database, args[0])
			if err != nil {
				return err
			}
			snap, err := database.LoadSnapshot(ctx, p.ID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			userID := args[1]
			statuses := graph.ComputeAll(snap)

			if name == "blocking" {
				pairs := graph.Blocking(snap, userID)
				if asJSON {
					return printJSON(out, pairs)
				}
				fmt.Fprintf(out, "%-30s %-30s %s\n", "WAITING NODE", "ON MY NODE", "OWNERS")
				fmt.Fprintln(out, strings.Repeat("-", 80))
				for _, pair := range pairs {
					fmt.Fprintf(out, "%-30s %-30s %s\n", pair.BlockedNode.Title, pair.WaitingOnMyNode.Title, strings.Join(pair.BlockedNode.Owners(), ","))
				}
				return nil
			}

			var nodes []models.Node
			if name == "todos" {
				nodes = graph.Actionable(snap, statuses, userID)
			} else {
				nodes = graph.Waiting(snap, statuses, userID)
			}
			if nodes == nil {
				nodes = []models.Node{}
			}
			if asJSON {
				return printJSON(out, nodes)
			}
			printNodes(out, nodes, statuses)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output in JSON format")
	return cmd
}

func printNodes(out io.Writer, nodes []models.Node, statuses map[string]models.ComputedStatus) {
	fmt.Fprintf(out, "%-30s %-10s %-10s %s\n", "TITLE", "STATUS", "PRIORITY", "DUE")
	fmt.Fprintln(out, strings.Repeat("-", 70))
	for _, n := range nodes {
		due := "-"
		if n.DueAt != nil {
			due = n.DueAt.Format("2006-01-02")
		}
		fmt.Fprintf(out, "%-30s %-10s %-10d %s\n", n.Title, statuses[n.ID], n.Priority, due)
	}
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *app) reasonsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reasons [project]",
		Short: "Explain why each held node is held and who can release it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			database, err := a.open(ctx, false)
			if err != nil {
				return err
			}
			defer database.Close()

			projects, err := selectProjects(ctx, database, args)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, p := range projects {
				snap, err := database.LoadSnapshot(ctx, p.ID)
				if err != nil {
					return err
				}
				items := graph.WaitingReasons(snap, nil)
				fmt.Fprintf(out, "%s (%d held)\n", p.Name, len(items))
				for _, item := range items {
					fmt.Fprintf(out, "  %-8s %-30s %s: %s\n", item.Status, item.Node.Title, item.Reason, strings.Join(item.Responsible, ", "))
				}
			}
			return nil
		},
	}
}

func (a *app) nodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "node",
		Short: "Manage nodes",
	}

	var description, owner string
	var priority int
	add := &cobra.Command{
		Use:   "add <project> <title>",
		Short: "Create a node",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			database, err := a.open(ctx, true)
			if err != nil {
				return err
			}
			defer database.Close()

			p, err := resolveProject(ctx, database, args[0])
			if err != nil {
				return err
			}
			n := &models.Node{ProjectID: p.ID, Title: args[1], Description: description, OwnerID: owner, Priority: priority}
			if err := database.CreateNode(ctx, n); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created node %s (%s)\n", n.Title, n.ID)
			return nil
		},
	}
	add.Flags().StringVar(&description, "description", "", "Node description")
	add.Flags().StringVar(&owner, "owner", "", "Owner user id")
	add.Flags().IntVar(&priority, "priority", 0, "Priority, higher first")

	set := &cobra.Command{
		Use:   "status <project> <node> <TODO|DOING|DONE>",
		Short: "Set a node's manual status and report unblocked nodes",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			status := models.ManualStatus(strings.ToUpper(args[2]))
			if !status.IsValid() {
				return fmt.Errorf("invalid status %q (want TODO, DOING or DONE)", args[2])
			}

			ctx := cmd.Context()
			database, err := a.open(ctx, true)
			if err != nil {
				return err
			}
			defer database.Close()

			p, err := resolveProject(ctx, database, args[0])
			if err != nil {
				return err
			}
			n, err := resolveNode(ctx, database, p.ID, args[1])
			if err != nil {
				return err
			}

			transitions, err := database.WithMutation(ctx, p.ID, func(ctx context.Context) error {
				return database.UpdateManualStatus(ctx, n.ID, status)
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s is now %s\n", n.Title, status)
			for _, t := range transitions {
				if t.NodeID == n.ID {
					continue
				}
				fmt.Fprintf(out, "  %s: %s -> %s\n", t.NodeID, t.From, t.To)
			}
			return nil
		},
	}

	cmd.AddCommand(add, set)
	return cmd
}

func (a *app) edgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edge",
		Short: "Manage edges between nodes",
	}

	var relation string
	edgeArgs := func(cmd *cobra.Command, args []string) (*db.DB, models.Edge, error) {
		ctx := cmd.Context()
		database, err := a.open(ctx, true)
		if err != nil {
			return nil, models.Edge{}, err
		}
		p, err := resolveProject(ctx, database, args[0])
		if err == nil {
			var from, to *models.Node
			if from, err = resolveNode(ctx, database, p.ID, args[1]); err == nil {
				if to, err = resolveNode(ctx, database, p.ID, args[2]); err == nil {
					return database, models.Edge{FromNodeID: from.ID, ToNodeID: to.ID, Relation: models.Relation(strings.ToUpper(relation))}, nil
				}
			}
		}
		database.Close()
		return nil, models.Edge{}, err
	}

	add := &cobra.Command{
		Use:   "add <project> <from> <to>",
		Short: "Add an edge; DEPENDS_ON edges that would close a cycle are rejected",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			database, e, err := edgeArgs(cmd, args)
			if err != nil {
				return err
			}
			defer database.Close()

			if err := database.CreateEdge(cmd.Context(), &e); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s -[%s]-> %s\n", args[1], e.Relation, args[2])
			return nil
		},
	}

	rm := &cobra.Command{
		Use:   "rm <project> <from> <to>",
		Short: "Remove an edge",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			database, e, err := edgeArgs(cmd, args)
			if err != nil {
				return err
			}
			defer database.Close()

			if err := database.DeleteEdge(cmd.Context(), e.FromNodeID, e.ToNodeID, e.Relation); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s -[%s]-> %s\n", args[1], e.Relation, args[2])
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&relation, "relation", string(models.RelationDependsOn), "Edge relation: DEPENDS_ON, APPROVAL_BY or RELATES_TO")
	cmd.AddCommand(add, rm)
	return cmd
}

func (a *app) requestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "request",
		Short: "Work with requests",
	}

	claim := &cobra.Command{
		Use:   "claim <request-id> <user>",
		Short: "Claim a team request for a team member",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			database, err := a.open(ctx, true)
			if err != nil {
				return err
			}
			defer database.Close()

			r, err := database.ClaimRequest(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Claimed %s by %s\n", r.ID, r.TargetUserID)
			return nil
		},
	}

	var response string
	transition := &cobra.Command{
		Use:   "transition <request-id> <OPEN|RESPONDED|APPROVED|CLOSED>",
		Short: "Move a request to a new status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			database, err := a.open(ctx, true)
			if err != nil {
				return err
			}
			defer database.Close()

			r, err := database.TransitionRequest(ctx, args[0], models.RequestStatus(strings.ToUpper(args[1])), response)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Request %s is now %s\n", r.ID, r.Status)
			return nil
		},
	}
	transition.Flags().StringVar(&response, "response", "", "Final response text")

	cmd.AddCommand(claim, transition)
	return cmd
}

func (a *app) exportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export [path]",
		Short: "Write a JSONL snapshot of the whole store",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.cfg.General.SnapshotPath
			if len(args) == 1 {
				path = args[0]
			}

			ctx := cmd.Context()
			database, err := a.open(ctx, false)
			if err != nil {
				return err
			}
			defer database.Close()

			if err := database.ExportSnapshot(ctx, path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Exported snapshot to %s\n", path)
			return nil
		},
	}
}

func (a *app) importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import [path]",
		Short: "Load a JSONL snapshot into the store",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.cfg.General.SnapshotPath
			if len(args) == 1 {
				path = args[0]
			}

			ctx := cmd.Context()
			database, err := a.open(ctx, false)
			if err != nil {
				return err
			}
			defer database.Close()

			if err := database.ImportSnapshot(ctx, path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Imported snapshot from %s\n", path)
			return nil
		},
	}
}

func (a *app) inboxCmd() *cobra.Command {
	var plain bool
	cmd := &cobra.Command{
		Use:   "inbox <project> <user>",
		Short: "Show a user's todos, waiting and blocking nodes",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			database, err := a.open(ctx, false)
			if err != nil {
				return err
			}
			defer database.Close()

			p, err := resolveProject(ctx, database, args[0])
			if err != nil {
				return err
			}
			load := func() (graph.Snapshot, error) {
				return database.LoadSnapshot(ctx, p.ID)
			}

			if plain {
				snap, err := load()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), ui.BuildInbox(snap, args[1], 80).View())
				return nil
			}
			return ui.RunInbox(args[1], load)
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "Print the inbox once instead of opening the interactive view")
	return cmd
}
