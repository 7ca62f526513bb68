// Package server exposes the store and the status engine over an HTTP JSON API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/ldi/nodeflow/internal/config"
	"github.com/ldi/nodeflow/internal/db"
	"github.com/ldi/nodeflow/internal/graph"
	"github.com/ldi/nodeflow/pkg/models"
)

type Server struct {
	db         *db.DB
	cfg        config.API
	logger     *slog.Logger
	httpServer *http.Server
}

func NewServer(database *db.DB, cfg config.API, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{db: database, cfg: cfg, logger: logger}
}

// Handler returns the routed API with request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)

	// Read-only endpoints
	mux.HandleFunc("GET /api/projects", s.handleProjects)
	mux.HandleFunc("GET /api/projects/{project}", s.handleProject)
	mux.HandleFunc("GET /api/projects/{project}/nodes", s.handleNodes)
	mux.HandleFunc("GET /api/projects/{project}/statuses", s.handleStatuses)
	mux.HandleFunc("GET /api/projects/{project}/waiting-reasons", s.handleWaitingReasons)
	mux.HandleFunc("GET /api/projects/{project}/users/{user}/todos", s.handleUserTodos)
	mux.HandleFunc("GET /api/projects/{project}/users/{user}/waiting", s.handleUserWaiting)
	mux.HandleFunc("GET /api/projects/{project}/users/{user}/blocking", s.handleUserBlocking)
	mux.HandleFunc("GET /api/projects/{project}/teams/{team}/todos", s.handleTeamTodos)
	mux.HandleFunc("GET /api/projects/{project}/teams/{team}/waiting", s.handleTeamWaiting)

	// Mutations
	mux.HandleFunc("POST /api/projects/{project}/edges", s.handleCreateEdge)
	mux.HandleFunc("POST /api/nodes/{node}/status", s.handleNodeStatus)
	mux.HandleFunc("POST /api/requests/{request}/claim", s.handleClaimRequest)
	mux.HandleFunc("POST /api/requests/{request}/transition", s.handleTransitionRequest)

	return s.logRequests(mux)
}

// Start serves the API until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:        s.cfg.Bind,
		Handler:     s.Handler(),
		ReadTimeout: s.cfg.ReadTimeout.Duration,
		BaseContext: func(_ net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		timeout := s.cfg.ShutdownTimeout.Duration
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		shutCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		s.httpServer.Shutdown(shutCtx)
	}()

	s.logger.Info("api server starting", "bind", s.cfg.Bind)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// writeStoreError maps store and graph errors onto HTTP status codes.
func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	var cycleErr *graph.CycleError
	switch {
	case errors.As(err, &cycleErr):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error": err.Error(),
			"path":  cycleErr.Path,
		})
		return
	case errors.Is(err, db.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, graph.ErrDuplicateEdge),
		errors.Is(err, graph.ErrAlreadyClaimed),
		errors.Is(err, graph.ErrRequestClosed),
		errors.Is(err, graph.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, graph.ErrNotTeamMember):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, graph.ErrSelfLoop),
		errors.Is(err, graph.ErrInvalidRelation),
		errors.Is(err, graph.ErrAmbiguousTarget),
		errors.Is(err, graph.ErrNotTeamRequest),
		errors.Is(err, db.ErrCrossProject):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.db.PingContext(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /api/projects
func (s *Server) handleProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.db.ListProjects(r.Context())
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if projects == nil {
		projects = []*models.Project{}
	}
	writeJSON(w, http.StatusOK, projects)
}

// GET /api/projects/{project}
func (s *Server) handleProject(w http.ResponseWriter, r *http.Request) {
	p, ok := s.project(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// GET /api/projects/{project}/nodes
func (s *Server) handleNodes(w http.ResponseWriter, r *http.Request) {
	p, ok := s.project(w, r)
	if !ok {
		return
	}

	var status *models.ManualStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		ms := models.ManualStatus(raw)
		if !ms.IsValid() {
			writeError(w, http.StatusBadRequest, "invalid status filter: "+raw)
			return
		}
		status = &ms
	}

	nodes, err := s.db.ListNodes(r.Context(), p.ID, status)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if nodes == nil {
		nodes = []*models.Node{}
	}
	writeJSON(w, http.StatusOK, nodes)
}

// GET /api/projects/{project}/statuses
func (s *Server) handleStatuses(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, graph.ComputeAll(snap))
}

// GET /api/projects/{project}/waiting-reasons
func (s *Server) handleWaitingReasons(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, graph.WaitingReasons(snap, nil))
}

// GET /api/projects/{project}/users/{user}/todos
func (s *Server) handleUserTodos(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, graph.Actionable(snap, nil, r.PathValue("user")))
}

// GET /api/projects/{project}/users/{user}/waiting
func (s *Server) handleUserWaiting(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, graph.Waiting(snap, nil, r.PathValue("user")))
}

// GET /api/projects/{project}/users/{user}/blocking
func (s *Server) handleUserBlocking(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, graph.Blocking(snap, r.PathValue("user")))
}

// GET /api/projects/{project}/teams/{team}/todos
func (s *Server) handleTeamTodos(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, graph.ActionableForTeam(snap, nil, r.PathValue("team")))
}

// GET /api/projects/{project}/teams/{team}/waiting
func (s *Server) handleTeamWaiting(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, graph.WaitingForTeam(snap, nil, r.PathValue("team")))
}

type createEdgeRequest struct {
	FromNodeID string          `json:"from_node_id"`
	ToNodeID   string          `json:"to_node_id"`
	Relation   models.Relation `json:"relation"`
}

// POST /api/projects/{project}/edges
func (s *Server) handleCreateEdge(w http.ResponseWriter, r *http.Request) {
	p, ok := s.project(w, r)
	if !ok {
		return
	}

	var req createEdgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if req.Relation == "" {
		req.Relation = models.RelationDependsOn
	}

	for _, id := range []string{req.FromNodeID, req.ToNodeID} {
		n, err := s.db.GetNode(r.Context(), id)
		if err != nil {
			s.writeStoreError(w, r, err)
			return
		}
		if n == nil || n.ProjectID != p.ID {
			writeError(w, http.StatusNotFound, "node not found in project: "+id)
			return
		}
	}

	edge := &models.Edge{FromNodeID: req.FromNodeID, ToNodeID: req.ToNodeID, Relation: req.Relation}
	if err := s.db.CreateEdge(r.Context(), edge); err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	s.logger.Info("edge created",
		"project_id", p.ID,
		"from", edge.FromNodeID,
		"to", edge.ToNodeID,
		"relation", edge.Relation,
	)
	writeJSON(w, http.StatusCreated, edge)
}

type nodeStatusRequest struct {
	ManualStatus models.ManualStatus `json:"manual_status"`
}

// POST /api/nodes/{node}/status
func (s *Server) handleNodeStatus(w http.ResponseWriter, r *http.Request) {
	var req nodeStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if !req.ManualStatus.IsValid() {
		writeError(w, http.StatusBadRequest, "invalid manual_status: "+string(req.ManualStatus))
		return
	}

	n, err := s.db.GetNode(r.Context(), r.PathValue("node"))
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if n == nil {
		writeError(w, http.StatusNotFound, "node not found: "+r.PathValue("node"))
		return
	}

	transitions, err := s.db.WithMutation(r.Context(), n.ProjectID, func(ctx context.Context) error {
		return s.db.UpdateManualStatus(ctx, n.ID, req.ManualStatus)
	})
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if transitions == nil {
		transitions = []graph.Transition{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"node_id":     n.ID,
		"transitions": transitions,
	})
}

type claimRequest struct {
	UserID string `json:"user_id"`
}

// POST /api/requests/{request}/claim
func (s *Server) handleClaimRequest(w http.ResponseWriter, r *http.Request) {
	var req claimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	claimed, err := s.db.ClaimRequest(r.Context(), r.PathValue("request"), req.UserID)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	s.logger.Info("request claimed", "request_id", claimed.ID, "user_id", req.UserID)
	writeJSON(w, http.StatusOK, claimed)
}

type transitionRequest struct {
	Status   models.RequestStatus `json:"status"`
	Response string               `json:"response"`
}

// POST /api/requests/{request}/transition
func (s *Server) handleTransitionRequest(w http.ResponseWriter, r *http.Request) {
	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	updated, err := s.db.TransitionRequest(r.Context(), r.PathValue("request"), req.Status, req.Response)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// project resolves the {project} path value by id or name.
func (s *Server) project(w http.ResponseWriter, r *http.Request) (*models.Project, bool) {
	ref := r.PathValue("project")
	p, err := s.db.ResolveProject(r.Context(), ref)
	if err != nil {
		s.writeStoreError(w, r, err)
		return nil, false
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "project not found: "+ref)
		return nil, false
	}
	return p, true
}

func (s *Server) snapshot(w http.ResponseWriter, r *http.Request) (graph.Snapshot, bool) {
	p, ok := s.project(w, r)
	if !ok {
		return graph.Snapshot{}, false
	}
	snap, err := s.db.LoadSnapshot(r.Context(), p.ID)
	if err != nil {
		s.writeStoreError(w, r, err)
		return graph.Snapshot{}, false
	}
	return snap, true
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
