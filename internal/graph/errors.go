package graph

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrSelfLoop          = errors.New("graph: self-loop edges are not allowed")
	ErrDuplicateEdge     = errors.New("graph: edge already exists")
	ErrInvalidRelation   = errors.New("graph: unknown edge relation")
	ErrCycle             = errors.New("graph: adding this edge would create a dependency cycle")
	ErrAmbiguousTarget   = errors.New("graph: request must target exactly one of a user or a team")
	ErrNotTeamRequest    = errors.New("graph: request is not targeted at a team")
	ErrAlreadyClaimed    = errors.New("graph: request already claimed")
	ErrNotTeamMember     = errors.New("graph: claimant is not a member of the target team")
	ErrRequestClosed     = errors.New("graph: request is closed")
	ErrInvalidTransition = errors.New("graph: invalid request transition")
)

// CycleError reports the existing path that the rejected edge would close.
// Path runs from the proposed edge's target back to its source.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	if len(e.Path) == 0 {
		return ErrCycle.Error()
	}
	return fmt.Sprintf("%s: %s", ErrCycle, strings.Join(e.Path, " -> "))
}

func (e *CycleError) Unwrap() error {
	return ErrCycle
}
