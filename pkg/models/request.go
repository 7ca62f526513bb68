package models

import "time"

// Request is a question or approval ask attached to exactly one node.
// Exactly one of TargetUserID and TargetTeamID is set.
type Request struct {
	ID            string        `json:"id"`
	NodeID        string        `json:"node_id"`
	Status        RequestStatus `json:"status"`
	RequesterID   string        `json:"requester_id"`
	TargetUserID  string        `json:"target_user_id,omitempty"`
	TargetTeamID  string        `json:"target_team_id,omitempty"`
	Question      string        `json:"question"`
	ResponseDraft string        `json:"response_draft,omitempty"`
	Response      string        `json:"response,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
	ClaimedAt     *time.Time    `json:"claimed_at,omitempty"`
}

func (r Request) IsTeamTargeted() bool {
	return r.TargetTeamID != "" && r.TargetUserID == ""
}

// Target returns the id of the user or team the request is addressed to.
func (r Request) Target() string {
	if r.TargetUserID != "" {
		return r.TargetUserID
	}
	return r.TargetTeamID
}
