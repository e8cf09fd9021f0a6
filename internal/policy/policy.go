// Package policy names the staff roles and which of them may change the
// register. Handlers check these before calling a service; services never
// look at roles.
package policy

type Role string

const (
	RoleAdmin        Role = "admin"
	RoleTeamLeader   Role = "team_leader"
	RoleDeputyLeader Role = "deputy_leader"
	RoleAccountant   Role = "accountant"
	RoleStaff        Role = "staff"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleTeamLeader, RoleDeputyLeader, RoleAccountant, RoleStaff:
		return true
	}
	return false
}

var (
	// Editors may create and change households, persons, residences and
	// complaints.
	Editors = []Role{RoleAdmin, RoleTeamLeader, RoleDeputyLeader}
	// Deactivators may soft-delete a household.
	Deactivators = []Role{RoleAdmin, RoleTeamLeader}
)

// Allows reports whether role is one of allowed.
func Allows(role string, allowed []Role) bool {
	for _, r := range allowed {
		if string(r) == role {
			return true
		}
	}
	return false
}
