package auth

import "testing"

func TestResolveRole(t *testing.T) {
	tests := []struct {
		name string
		id   Identity
		want Role
	}{
		{"plain user", Identity{Username: "u"}, RoleStandard},
		{"superuser", Identity{IsSuperuser: true}, RoleTeamLead},
		{"staff", Identity{IsStaff: true}, RoleTeamLead},
		{"team lead group", Identity{Groups: []string{"Sales", "Team Lead"}}, RoleTeamLead},
		{"group match is exact", Identity{Groups: []string{"team lead"}}, RoleStandard},
		{"other groups", Identity{Groups: []string{"Sales"}}, RoleStandard},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveRole(tt.id); got != tt.want {
				t.Errorf("ResolveRole() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveRoleWithGroup(t *testing.T) {
	id := Identity{Groups: []string{"Supervisors"}}
	if got := ResolveRoleWithGroup(id, "Supervisors"); got != RoleTeamLead {
		t.Errorf("custom group = %q, want team_lead", got)
	}
	if got := ResolveRole(id); got != RoleStandard {
		t.Errorf("default group = %q, want user", got)
	}
}
