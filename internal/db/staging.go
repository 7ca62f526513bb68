package db

import (
	"sync"

	"github.com/ldi/nodeflow/pkg/models"
)

// StagedEdge is an edge waiting for a batch commit. Each endpoint is given
// either by node id or by the title of a node in the same project, staged or
// already stored.
type StagedEdge struct {
	ProjectID  string          `json:"project_id"`
	FromNodeID string          `json:"from_node_id,omitempty"`
	FromTitle  string          `json:"from_title,omitempty"`
	ToNodeID   string          `json:"to_node_id,omitempty"`
	ToTitle    string          `json:"to_title,omitempty"`
	Relation   models.Relation `json:"relation"`
}

type StagedItems struct {
	Nodes []*models.Node `json:"nodes"`
	Edges []*StagedEdge  `json:"edges"`
}

func newStagedItems() *StagedItems {
	return &StagedItems{
		Nodes: []*models.Node{},
		Edges: []*StagedEdge{},
	}
}

// StagingManager provides thread-safe in-memory storage for staged changes.
type StagingManager struct {
	mu     sync.RWMutex
	staged map[string]*StagedItems
}

func NewStagingManager() *StagingManager {
	return &StagingManager{
		staged: make(map[string]*StagedItems),
	}
}

func (sm *StagingManager) session(sessionID string) *StagedItems {
	if sm.staged[sessionID] == nil {
		sm.staged[sessionID] = newStagedItems()
	}
	return sm.staged[sessionID]
}

func (sm *StagingManager) AddNode(sessionID string, node *models.Node) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	items := sm.session(sessionID)
	items.Nodes = append(items.Nodes, node)
}

func (sm *StagingManager) AddEdge(sessionID string, edge *StagedEdge) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	items := sm.session(sessionID)
	items.Edges = append(items.Edges, edge)
}

// Peek returns a copy of the staged items without removing them.
func (sm *StagingManager) Peek(sessionID string) *StagedItems {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	items, ok := sm.staged[sessionID]
	if !ok {
		return newStagedItems()
	}

	return &StagedItems{
		Nodes: append([]*models.Node{}, items.Nodes...),
		Edges: append([]*StagedEdge{}, items.Edges...),
	}
}

// GetAndClear atomically takes the staged items of a session.
func (sm *StagingManager) GetAndClear(sessionID string) *StagedItems {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	items, ok := sm.staged[sessionID]
	if !ok {
		return newStagedItems()
	}

	delete(sm.staged, sessionID)
	return items
}

// Restore puts items taken by GetAndClear back in front of anything staged
// since.
func (sm *StagingManager) Restore(sessionID string, items *StagedItems) {
	if items == nil || (len(items.Nodes) == 0 && len(items.Edges) == 0) {
		return
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()

	current := sm.session(sessionID)
	current.Nodes = append(append([]*models.Node{}, items.Nodes...), current.Nodes...)
	current.Edges = append(append([]*StagedEdge{}, items.Edges...), current.Edges...)
}

func (sm *StagingManager) Clear(sessionID string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	delete(sm.staged, sessionID)
}
