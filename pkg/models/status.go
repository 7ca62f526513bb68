package models

// ManualStatus is the lifecycle state a user sets on a node.
type ManualStatus string

const (
	ManualStatusTodo  ManualStatus = "TODO"
	ManualStatusDoing ManualStatus = "DOING"
	ManualStatusDone  ManualStatus = "DONE"
)

func (s ManualStatus) IsValid() bool {
	switch s {
	case ManualStatusTodo, ManualStatusDoing, ManualStatusDone:
		return true
	}
	return false
}

// OrDefault returns TODO for an unset status.
func (s ManualStatus) OrDefault() ManualStatus {
	if s == "" {
		return ManualStatusTodo
	}
	return s
}

// ComputedStatus is derived from a snapshot and never stored.
type ComputedStatus string

const (
	StatusBlocked ComputedStatus = "BLOCKED"
	StatusWaiting ComputedStatus = "WAITING"
	StatusDone    ComputedStatus = "DONE"
	StatusDoing   ComputedStatus = "DOING"
	StatusTodo    ComputedStatus = "TODO"
)

// IsHeld reports whether the status is one of the derived hold states.
func (s ComputedStatus) IsHeld() bool {
	return s == StatusBlocked || s == StatusWaiting
}

// Relation is the type of a directed edge between two nodes.
type Relation string

const (
	RelationDependsOn  Relation = "DEPENDS_ON"
	RelationApprovalBy Relation = "APPROVAL_BY"
	RelationRelatesTo  Relation = "RELATES_TO"
)

func (r Relation) IsValid() bool {
	switch r {
	case RelationDependsOn, RelationApprovalBy, RelationRelatesTo:
		return true
	}
	return false
}

// RequestStatus is the lifecycle state of a request.
type RequestStatus string

const (
	RequestStatusOpen      RequestStatus = "OPEN"
	RequestStatusResponded RequestStatus = "RESPONDED"
	RequestStatusApproved  RequestStatus = "APPROVED"
	RequestStatusClosed    RequestStatus = "CLOSED"
)

func (s RequestStatus) IsValid() bool {
	switch s {
	case RequestStatusOpen, RequestStatusResponded, RequestStatusApproved, RequestStatusClosed:
		return true
	}
	return false
}

// IsOpen reports whether the request still holds its node in WAITING.
func (s RequestStatus) IsOpen() bool {
	return s == RequestStatusOpen || s == RequestStatusResponded
}
