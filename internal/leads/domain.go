package leads

import (
	"time"

	"github.com/google/uuid"

	"github.com/atelier-crm/atelier-crm/internal/authz"
)

// Lead statuses follow the pipeline order; there is no enforced state
// machine, status is informational.
const (
	StatusNew       = "NEW"
	StatusContacted = "CONTACTED"
	StatusQualified = "QUALIFIED"
	StatusWon       = "WON"
	StatusLost      = "LOST"
)

var validStatuses = map[string]struct{}{
	StatusNew:       {},
	StatusContacted: {},
	StatusQualified: {},
	StatusWon:       {},
	StatusLost:      {},
}

// ValidStatus reports whether s is a known pipeline status.
func ValidStatus(s string) bool {
	_, ok := validStatuses[s]
	return ok
}

// Lead is a sales prospect owned by one planner.
type Lead struct {
	ID        uuid.UUID  `json:"id"`
	Name      string     `json:"name"`
	Phone     string     `json:"phone"`
	Status    string     `json:"status"`
	OwnerID   uuid.UUID  `json:"owner_id"`
	TeamID    *uuid.UUID `json:"team_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Visibility is the row scope a caller's permission set grants.
type Visibility int

const (
	// VisibilityOwn limits reads to leads the caller owns.
	VisibilityOwn Visibility = iota
	// VisibilityTeam widens reads to the caller's team.
	VisibilityTeam
	// VisibilityAll removes row scoping.
	VisibilityAll
)

// VisibilityFor maps a permission set to the widest lead scope it grants.
// Holding no lead view permission still yields owner-only visibility; the
// list is simply empty for callers who own nothing.
func VisibilityFor(perms authz.PermissionSet) Visibility {
	switch {
	case perms.Has(authz.PermLeadViewAll):
		return VisibilityAll
	case perms.Has(authz.PermLeadViewTeam):
		return VisibilityTeam
	default:
		return VisibilityOwn
	}
}
