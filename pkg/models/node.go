package models

import "time"

type Node struct {
	ID           string       `json:"id"`
	ProjectID    string       `json:"project_id"`
	Title        string       `json:"title"`
	Description  string       `json:"description"`
	Type         string       `json:"type"`
	Priority     int          `json:"priority"`
	DueAt        *time.Time   `json:"due_at"`
	ManualStatus ManualStatus `json:"manual_status"`
	OwnerID      string       `json:"owner_id,omitempty"`
	OwnerIDs     []string     `json:"owner_ids,omitempty"`
	TeamIDs      []string     `json:"team_ids,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`

	// ProjectName is a helper field for joined queries
	ProjectName string `json:"project_name,omitempty"`
}

// Owners returns the primary owner followed by the additional owners,
// without duplicates or empty ids.
func (n Node) Owners() []string {
	seen := make(map[string]struct{}, len(n.OwnerIDs)+1)
	owners := make([]string, 0, len(n.OwnerIDs)+1)
	add := func(id string) {
		if id == "" {
			return
		}
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}
		owners = append(owners, id)
	}
	add(n.OwnerID)
	for _, id := range n.OwnerIDs {
		add(id)
	}
	return owners
}

// OwnedBy reports whether userID is the primary owner or one of the additional owners.
func (n Node) OwnedBy(userID string) bool {
	if userID == "" {
		return false
	}
	if n.OwnerID == userID {
		return true
	}
	for _, id := range n.OwnerIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// InTeam reports whether the node is associated with teamID.
func (n Node) InTeam(teamID string) bool {
	if teamID == "" {
		return false
	}
	for _, id := range n.TeamIDs {
		if id == teamID {
			return true
		}
	}
	return false
}

// HasAssignee reports whether anyone (user or team) is assigned to the node.
func (n Node) HasAssignee() bool {
	return len(n.Owners()) > 0 || len(n.TeamIDs) > 0
}
