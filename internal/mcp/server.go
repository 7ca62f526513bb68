package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ldi/nodeflow/internal/config"
	"github.com/ldi/nodeflow/internal/db"
	"github.com/ldi/nodeflow/internal/graph"
	"github.com/ldi/nodeflow/pkg/models"
)

// NewServer creates a new MCP server.
func NewServer(database *db.DB, cfg config.MCP, logger *slog.Logger) *server.MCPServer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := server.NewMCPServer(cfg.Name, cfg.Version)

	// Projects and teams
	s.AddTool(mcp.NewTool("create_project",
		mcp.WithDescription("Create a project. A project is the scope of one dependency graph."),
		mcp.WithString("name", mcp.Description("Project name (unique)"), mcp.Required()),
		mcp.WithString("description", mcp.Description("Project description")),
	), createProjectHandler(database))

	s.AddTool(mcp.NewTool("list_projects",
		mcp.WithDescription("List all projects."),
	), listProjectsHandler(database))

	s.AddTool(mcp.NewTool("create_team",
		mcp.WithDescription("Create a team inside a project."),
		mcp.WithString("project", mcp.Description("Project id or name"), mcp.Required()),
		mcp.WithString("name", mcp.Description("Team name"), mcp.Required()),
	), createTeamHandler(database))

	s.AddTool(mcp.NewTool("add_team_member",
		mcp.WithDescription("Add a user to a team."),
		mcp.WithString("team_id", mcp.Description("Team id"), mcp.Required()),
		mcp.WithString("user_id", mcp.Description("User id"), mcp.Required()),
		mcp.WithString("role", mcp.Description("Role (defaults to 'member')")),
	), addTeamMemberHandler(database))

	// Nodes
	s.AddTool(mcp.NewTool("create_node",
		mcp.WithDescription("Create a node (task, deliverable, decision) in a project."),
		mcp.WithString("project", mcp.Description("Project id or name"), mcp.Required()),
		mcp.WithString("title", mcp.Description("Node title"), mcp.Required()),
		mcp.WithString("description", mcp.Description("Node description")),
		mcp.WithString("type", mcp.Description("Free-form node type")),
		mcp.WithNumber("priority", mcp.Description("Priority, higher first")),
		mcp.WithString("due_at", mcp.Description("Due date (RFC 3339 or YYYY-MM-DD)")),
		mcp.WithString("owner_id", mcp.Description("Primary owner user id")),
		mcp.WithString("owner_ids", mcp.Description("Additional owner user ids, comma separated")),
		mcp.WithString("team_ids", mcp.Description("Assigned team ids, comma separated")),
	), createNodeHandler(database))

	s.AddTool(mcp.NewTool("update_node_status",
		mcp.WithDescription("Set a node's manual status and report which nodes changed computed status."),
		mcp.WithString("project", mcp.Description("Project id or name"), mcp.Required()),
		mcp.WithString("node", mcp.Description("Node id or title"), mcp.Required()),
		mcp.WithString("status", mcp.Description("New manual status (TODO|DOING|DONE)"), mcp.Required()),
	), updateNodeStatusHandler(database, logger))

	// Edges
	s.AddTool(mcp.NewTool("create_edge",
		mcp.WithDescription("Create an edge between two nodes. DEPENDS_ON edges that would close a cycle are rejected."),
		mcp.WithString("project", mcp.Description("Project id or name"), mcp.Required()),
		mcp.WithString("from", mcp.Description("Source node id or title (the node that depends)"), mcp.Required()),
		mcp.WithString("to", mcp.Description("Target node id or title"), mcp.Required()),
		mcp.WithString("relation", mcp.Description("DEPENDS_ON (default), APPROVAL_BY or RELATES_TO")),
	), createEdgeHandler(database))

	s.AddTool(mcp.NewTool("delete_edge",
		mcp.WithDescription("Remove an edge."),
		mcp.WithString("project", mcp.Description("Project id or name"), mcp.Required()),
		mcp.WithString("from", mcp.Description("Source node id or title"), mcp.Required()),
		mcp.WithString("to", mcp.Description("Target node id or title"), mcp.Required()),
		mcp.WithString("relation", mcp.Description("DEPENDS_ON (default), APPROVAL_BY or RELATES_TO")),
	), deleteEdgeHandler(database))

	s.AddTool(mcp.NewTool("check_cycle",
		mcp.WithDescription("Check whether adding an edge would be rejected, without writing it."),
		mcp.WithString("project", mcp.Description("Project id or name"), mcp.Required()),
		mcp.WithString("from", mcp.Description("Source node id or title"), mcp.Required()),
		mcp.WithString("to", mcp.Description("Target node id or title"), mcp.Required()),
		mcp.WithString("relation", mcp.Description("DEPENDS_ON (default), APPROVAL_BY or RELATES_TO")),
	), checkCycleHandler(database))

	// Requests
	s.AddTool(mcp.NewTool("create_request",
		mcp.WithDescription("Ask a user or a team a question about a node. Exactly one target must be given."),
		mcp.WithString("project", mcp.Description("Project id or name"), mcp.Required()),
		mcp.WithString("node", mcp.Description("Node id or title"), mcp.Required()),
		mcp.WithString("question", mcp.Description("The question"), mcp.Required()),
		mcp.WithString("requester_id", mcp.Description("User id asking")),
		mcp.WithString("target_user_id", mcp.Description("User to ask")),
		mcp.WithString("target_team_id", mcp.Description("Team to ask")),
	), createRequestHandler(database))

	s.AddTool(mcp.NewTool("transition_request",
		mcp.WithDescription("Move a request to RESPONDED, APPROVED, OPEN or CLOSED."),
		mcp.WithString("request_id", mcp.Description("Request id"), mcp.Required()),
		mcp.WithString("status", mcp.Description("New request status"), mcp.Required()),
		mcp.WithString("response", mcp.Description("Final response text")),
	), transitionRequestHandler(database))

	s.AddTool(mcp.NewTool("claim_request",
		mcp.WithDescription("Claim a team request for yourself. Only one team member can win."),
		mcp.WithString("request_id", mcp.Description("Request id"), mcp.Required()),
		mcp.WithString("user_id", mcp.Description("Claiming user id"), mcp.Required()),
	), claimRequestHandler(database, logger))

	// Views
	s.AddTool(mcp.NewTool("compute_statuses",
		mcp.WithDescription("Compute every node's status in a project."),
		mcp.WithString("project", mcp.Description("Project id or name"), mcp.Required()),
	), computeStatusesHandler(database))

	s.AddTool(mcp.NewTool("my_todos",
		mcp.WithDescription("Nodes the user can work on right now."),
		mcp.WithString("project", mcp.Description("Project id or name"), mcp.Required()),
		mcp.WithString("user_id", mcp.Description("User id"), mcp.Required()),
	), myTodosHandler(database))

	s.AddTool(mcp.NewTool("my_waiting",
		mcp.WithDescription("The user's nodes that are BLOCKED or WAITING."),
		mcp.WithString("project", mcp.Description("Project id or name"), mcp.Required()),
		mcp.WithString("user_id", mcp.Description("User id"), mcp.Required()),
	), myWaitingHandler(database))

	s.AddTool(mcp.NewTool("my_blocking",
		mcp.WithDescription("Other people's nodes that wait on the user's unfinished nodes."),
		mcp.WithString("project", mcp.Description("Project id or name"), mcp.Required()),
		mcp.WithString("user_id", mcp.Description("User id"), mcp.Required()),
	), myBlockingHandler(database))

	s.AddTool(mcp.NewTool("waiting_reasons",
		mcp.WithDescription("Every held node in a project with the reason and who is responsible."),
		mcp.WithString("project", mcp.Description("Project id or name"), mcp.Required()),
	), waitingReasonsHandler(database))

	// Staging Management
	s.AddTool(mcp.NewTool("stage_node",
		mcp.WithDescription("Propose a node. Changes are staged and must be committed to take effect."),
		mcp.WithString("project", mcp.Description("Project id or name"), mcp.Required()),
		mcp.WithString("title", mcp.Description("Node title"), mcp.Required()),
		mcp.WithString("description", mcp.Description("Node description")),
		mcp.WithString("owner_id", mcp.Description("Primary owner user id")),
		mcp.WithNumber("priority", mcp.Description("Priority, higher first")),
		mcp.WithString("session_id", mcp.Description("Session ID for staging changes (defaults to 'default').")),
	), stageNodeHandler(database))

	s.AddTool(mcp.NewTool("stage_edge",
		mcp.WithDescription("Propose an edge between staged or existing nodes, referenced by title. Changes are staged and must be committed to take effect."),
		mcp.WithString("project", mcp.Description("Project id or name"), mcp.Required()),
		mcp.WithString("from_title", mcp.Description("Title of the node that depends"), mcp.Required()),
		mcp.WithString("to_title", mcp.Description("Title of the target node"), mcp.Required()),
		mcp.WithString("relation", mcp.Description("DEPENDS_ON (default), APPROVAL_BY or RELATES_TO")),
		mcp.WithString("session_id", mcp.Description("Session ID for staging changes (defaults to 'default').")),
	), stageEdgeHandler(database))

	s.AddTool(mcp.NewTool("commit_staged_changes",
		mcp.WithDescription("Commit all staged changes for a session in one transaction. A cycle anywhere rejects the whole batch."),
		mcp.WithString("session_id", mcp.Description("Session ID (defaults to 'default').")),
	), commitStagedChangesHandler(database))

	s.AddTool(mcp.NewTool("list_staged_changes",
		mcp.WithDescription("List all staged changes for a session. Use this to review a proposed plan before committing."),
		mcp.WithString("session_id", mcp.Description("Session ID (defaults to 'default').")),
	), listStagedChangesHandler(database))

	return s
}

// Serve starts the MCP server on stdio.
func Serve(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func createProjectHandler(database *db.DB) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		p := &models.Project{
			Name:        mcp.ParseString(request, "name", ""),
			Description: mcp.ParseString(request, "description", ""),
		}
		if p.Name == "" {
			return mcp.NewToolResultError("name is required"), nil
		}

		if err := database.CreateProject(ctx, p); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(p)
	}
}

func listProjectsHandler(database *db.DB) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		projects, err := database.ListProjects(ctx)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(map[string]any{"projects": projects})
	}
}

func createTeamHandler(database *db.DB) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		p, err := resolveProject(ctx, database, mcp.ParseString(request, "project", ""))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		team := &models.Team{ProjectID: p.ID, Name: mcp.ParseString(request, "name", "")}
		if err := database.CreateTeam(ctx, team); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(team)
	}
}

func addTeamMemberHandler(database *db.DB) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		m := models.TeamMember{
			TeamID: mcp.ParseString(request, "team_id", ""),
			UserID: mcp.ParseString(request, "user_id", ""),
			Role:   mcp.ParseString(request, "role", "member"),
		}
		if err := database.AddTeamMember(ctx, m); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("User '%s' added to team '%s'", m.UserID, m.TeamID)), nil
	}
}

func createNodeHandler(database *db.DB) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		p, err := resolveProject(ctx, database, mcp.ParseString(request, "project", ""))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		dueAt, err := parseDue(mcp.ParseString(request, "due_at", ""))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		n := &models.Node{
			ProjectID:   p.ID,
			Title:       mcp.ParseString(request, "title", ""),
			Description: mcp.ParseString(request, "description", ""),
			Type:        mcp.ParseString(request, "type", ""),
			Priority:    mcp.ParseInt(request, "priority", 0),
			DueAt:       dueAt,
			OwnerID:     mcp.ParseString(request, "owner_id", ""),
			OwnerIDs:    splitList(mcp.ParseString(request, "owner_ids", "")),
			TeamIDs:     splitList(mcp.ParseString(request, "team_ids", "")),
		}
		if err := database.CreateNode(ctx, n); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(n)
	}
}

func updateNodeStatusHandler(database *db.DB, logger *slog.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		p, n, err := resolveNode(ctx, database, mcp.ParseString(request, "project", ""), mcp.ParseString(request, "node", ""))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		status := models.ManualStatus(strings.ToUpper(mcp.ParseString(request, "status", "")))
		if !status.IsValid() {
			return mcp.NewToolResultError(fmt.Sprintf("invalid status '%s' (want TODO, DOING or DONE)", status)), nil
		}

		transitions, err := database.WithMutation(ctx, p.ID, func(ctx context.Context) error {
			return database.UpdateManualStatus(ctx, n.ID, status)
		})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		unblocked := []string{}
		for _, t := range transitions {
			if t.Unblocked() {
				unblocked = append(unblocked, t.NodeID)
			}
		}
		logger.Info("manual status updated", "project_id", p.ID, "node_id", n.ID, "status", status, "unblocked", len(unblocked))

		return jsonResult(map[string]any{
			"node_id":     n.ID,
			"status":      status,
			"transitions": transitions,
			"unblocked":   unblocked,
		})
	}
}

func edgeFromRequest(ctx context.Context, database *db.DB, request mcp.CallToolRequest) (models.Edge, error) {
	p, from, err := resolveNode(ctx, database, mcp.ParseString(request, "project", ""), mcp.ParseString(request, "from", ""))
	if err != nil {
		return models.Edge{}, err
	}
	_, to, err := resolveNode(ctx, database, p.ID, mcp.ParseString(request, "to", ""))
	if err != nil {
		return models.Edge{}, err
	}
	relation := models.Relation(strings.ToUpper(mcp.ParseString(request, "relation", string(models.RelationDependsOn))))
	return models.Edge{FromNodeID: from.ID, ToNodeID: to.ID, Relation: relation}, nil
}

func createEdgeHandler(database *db.DB) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		e, err := edgeFromRequest(ctx, database, request)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		if err := database.CreateEdge(ctx, &e); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(e)
	}
}

func deleteEdgeHandler(database *db.DB) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		e, err := edgeFromRequest(ctx, database, request)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		if err := database.DeleteEdge(ctx, e.FromNodeID, e.ToNodeID, e.Relation); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText("Edge deleted successfully"), nil
	}
}

func checkCycleHandler(database *db.DB) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		e, err := edgeFromRequest(ctx, database, request)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		err = database.CheckEdge(ctx, e)
		var cycleErr *graph.CycleError
		switch {
		case err == nil:
			return jsonResult(map[string]any{"allowed": true, "would_create_cycle": false})
		case errors.As(err, &cycleErr):
			return jsonResult(map[string]any{"allowed": false, "would_create_cycle": true, "path": cycleErr.Path})
		case errors.Is(err, graph.ErrSelfLoop), errors.Is(err, graph.ErrDuplicateEdge), errors.Is(err, graph.ErrInvalidRelation):
			return jsonResult(map[string]any{"allowed": false, "would_create_cycle": errors.Is(err, graph.ErrSelfLoop), "reason": err.Error()})
		default:
			return mcp.NewToolResultError(err.Error()), nil
		}
	}
}

func createRequestHandler(database *db.DB) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		_, n, err := resolveNode(ctx, database, mcp.ParseString(request, "project", ""), mcp.ParseString(request, "node", ""))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		r := &models.Request{
			NodeID:       n.ID,
			RequesterID:  mcp.ParseString(request, "requester_id", ""),
			TargetUserID: mcp.ParseString(request, "target_user_id", ""),
			TargetTeamID: mcp.ParseString(request, "target_team_id", ""),
			Question:     mcp.ParseString(request, "question", ""),
		}
		if err := database.CreateRequest(ctx, r); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(r)
	}
}

func transitionRequestHandler(database *db.DB) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		status := models.RequestStatus(strings.ToUpper(mcp.ParseString(request, "status", "")))
		updated, err := database.TransitionRequest(ctx,
			mcp.ParseString(request, "request_id", ""),
			status,
			mcp.ParseString(request, "response", ""),
		)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(updated)
	}
}

func claimRequestHandler(database *db.DB, logger *slog.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id := mcp.ParseString(request, "request_id", "")
		userID := mcp.ParseString(request, "user_id", "")

		claimed, err := database.ClaimRequest(ctx, id, userID)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		logger.Info("request claimed", "request_id", id, "user_id", userID)
		return jsonResult(claimed)
	}
}

func computeStatusesHandler(database *db.DB) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		p, err := resolveProject(ctx, database, mcp.ParseString(request, "project", ""))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		statuses, err := database.ComputeProjectStatuses(ctx, p.ID)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(map[string]any{"statuses": statuses})
	}
}

// snapshotView loads the project snapshot and renders one view of it.
func snapshotView(database *db.DB, view func(s graph.Snapshot, userID string) any) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		p, err := resolveProject(ctx, database, mcp.ParseString(request, "project", ""))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		snap, err := database.LoadSnapshot(ctx, p.ID)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(view(snap, mcp.ParseString(request, "user_id", "")))
	}
}

func myTodosHandler(database *db.DB) server.ToolHandlerFunc {
	return snapshotView(database, func(s graph.Snapshot, userID string) any {
		return map[string]any{"nodes": graph.Actionable(s, nil, userID)}
	})
}

func myWaitingHandler(database *db.DB) server.ToolHandlerFunc {
	return snapshotView(database, func(s graph.Snapshot, userID string) any {
		return map[string]any{"nodes": graph.Waiting(s, nil, userID)}
	})
}

func myBlockingHandler(database *db.DB) server.ToolHandlerFunc {
	return snapshotView(database, func(s graph.Snapshot, userID string) any {
		return map[string]any{"pairs": graph.Blocking(s, userID)}
	})
}

func waitingReasonsHandler(database *db.DB) server.ToolHandlerFunc {
	return snapshotView(database, func(s graph.Snapshot, _ string) any {
		return map[string]any{"items": graph.WaitingReasons(s, nil)}
	})
}

func stageNodeHandler(database *db.DB) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		p, err := resolveProject(ctx, database, mcp.ParseString(request, "project", ""))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		sessionID := mcp.ParseString(request, "session_id", "default")

		n := &models.Node{
			ProjectID:   p.ID,
			Title:       mcp.ParseString(request, "title", ""),
			Description: mcp.ParseString(request, "description", ""),
			OwnerID:     mcp.ParseString(request, "owner_id", ""),
			Priority:    mcp.ParseInt(request, "priority", 0),
		}

		database.Staging.AddNode(sessionID, n)
		return mcp.NewToolResultText(fmt.Sprintf("Node '%s' staged for session '%s'. Propose another or call 'commit_staged_changes' to apply.", n.Title, sessionID)), nil
	}
}

func stageEdgeHandler(database *db.DB) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		p, err := resolveProject(ctx, database, mcp.ParseString(request, "project", ""))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		sessionID := mcp.ParseString(request, "session_id", "default")

		relation := models.Relation(strings.ToUpper(mcp.ParseString(request, "relation", string(models.RelationDependsOn))))
		if !relation.IsValid() {
			return mcp.NewToolResultError(fmt.Sprintf("invalid relation '%s'", relation)), nil
		}

		e := &db.StagedEdge{
			ProjectID: p.ID,
			FromTitle: mcp.ParseString(request, "from_title", ""),
			ToTitle:   mcp.ParseString(request, "to_title", ""),
			Relation:  relation,
		}

		database.Staging.AddEdge(sessionID, e)
		return mcp.NewToolResultText(fmt.Sprintf("Edge '%s' -[%s]-> '%s' staged for session '%s'.", e.FromTitle, relation, e.ToTitle, sessionID)), nil
	}
}

func commitStagedChangesHandler(database *db.DB) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessionID := mcp.ParseString(request, "session_id", "default")
		if err := database.CommitBatch(ctx, sessionID); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		return mcp.NewToolResultText(fmt.Sprintf("Staged changes for session '%s' committed successfully", sessionID)), nil
	}
}

func listStagedChangesHandler(database *db.DB) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessionID := mcp.ParseString(request, "session_id", "default")
		return jsonResult(database.Staging.Peek(sessionID))
	}
}

func resolveProject(ctx context.Context, database *db.DB, ref string) (*models.Project, error) {
	if ref == "" {
		return nil, fmt.Errorf("project is required")
	}
	p, err := database.ResolveProject(ctx, ref)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("project '%s' not found", ref)
	}
	return p, nil
}

// resolveNode looks a node up by id, then by title within the project.
func resolveNode(ctx context.Context, database *db.DB, projectRef, nodeRef string) (*models.Project, *models.Node, error) {
	p, err := resolveProject(ctx, database, projectRef)
	if err != nil {
		return nil, nil, err
	}

	n, err := database.GetNode(ctx, nodeRef)
	if err != nil {
		return nil, nil, err
	}
	if n == nil {
		n, err = database.GetNodeByTitle(ctx, p.ID, nodeRef)
		if err != nil {
			return nil, nil, err
		}
	}
	if n == nil || n.ProjectID != p.ID {
		return nil, nil, fmt.Errorf("node '%s' not found in project '%s'", nodeRef, p.Name)
	}
	return p, n, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseDue(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid due_at '%s' (want RFC 3339 or YYYY-MM-DD)", raw)
}
