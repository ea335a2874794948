// Package auth implements login sessions, the inactivity timeout that ends
// them, and the two-level role model used to shape responses.
package auth

import "slices"

// DefaultTeamLeadGroup is the group whose members resolve to RoleTeamLead.
const DefaultTeamLeadGroup = "Team Lead"

// Role is the caller's access level.
type Role string

const (
	RoleStandard Role = "user"
	RoleTeamLead Role = "team_lead"
)

// Identity is an authenticated principal and the facts roles derive from.
type Identity struct {
	Username    string   `json:"username"`
	IsSuperuser bool     `json:"is_superuser"`
	IsStaff     bool     `json:"is_staff"`
	Groups      []string `json:"groups"`
}

// ResolveRole returns RoleTeamLead for superusers, staff and members of the
// "Team Lead" group, RoleStandard otherwise.
func ResolveRole(id Identity) Role {
	return ResolveRoleWithGroup(id, DefaultTeamLeadGroup)
}

// ResolveRoleWithGroup is ResolveRole with a configurable team lead group.
// Group names match exactly.
func ResolveRoleWithGroup(id Identity, teamLeadGroup string) Role {
	if id.IsSuperuser || id.IsStaff || slices.Contains(id.Groups, teamLeadGroup) {
		return RoleTeamLead
	}
	return RoleStandard
}

// IsTeamLead reports whether r is RoleTeamLead.
func (r Role) IsTeamLead() bool { return r == RoleTeamLead }
