package graph

import (
	"fmt"
	"time"

	"github.com/ldi/nodeflow/pkg/models"
)

// ValidateTarget rejects requests that address both a user and a team, or neither.
func ValidateTarget(r models.Request) error {
	hasUser := r.TargetUserID != ""
	hasTeam := r.TargetTeamID != ""
	if hasUser == hasTeam {
		return ErrAmbiguousTarget
	}
	return nil
}

var requestTransitions = map[models.RequestStatus][]models.RequestStatus{
	models.RequestStatusOpen:      {models.RequestStatusResponded, models.RequestStatusClosed},
	models.RequestStatusResponded: {models.RequestStatusApproved, models.RequestStatusOpen, models.RequestStatusClosed},
	models.RequestStatusApproved:  {models.RequestStatusClosed},
}

// CanTransition checks a request status change. CLOSED is terminal.
func CanTransition(from, to models.RequestStatus) error {
	if !to.IsValid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, to)
	}
	if from == models.RequestStatusClosed {
		return ErrRequestClosed
	}
	if from == to {
		return nil
	}
	for _, allowed := range requestTransitions[from] {
		if allowed == to {
			return nil
		}
	}
	return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, from, to)
}

// CheckClaim reports whether claimant may take over the team request r.
// team is the request's target team with its current members, or nil if unknown.
func CheckClaim(r models.Request, team *models.Team, claimant string) error {
	if r.Status == models.RequestStatusClosed {
		return ErrRequestClosed
	}
	if r.ClaimedAt != nil {
		return ErrAlreadyClaimed
	}
	if !r.IsTeamTargeted() {
		return ErrNotTeamRequest
	}
	if !r.Status.IsOpen() {
		return fmt.Errorf("%w: cannot claim a %s request", ErrInvalidTransition, r.Status)
	}
	if team == nil || team.ID != r.TargetTeamID || !team.HasMember(claimant) {
		return ErrNotTeamMember
	}
	return nil
}

// Claim returns r converted to a request targeting claimant.
// It does not validate; call CheckClaim first.
func Claim(r models.Request, claimant string, now time.Time) models.Request {
	claimed := r
	claimed.TargetUserID = claimant
	claimed.TargetTeamID = ""
	claimed.ClaimedAt = &now
	claimed.UpdatedAt = now
	return claimed
}
