package models

// Role is the closed set of member roles a step can be gated on. Steps store
// the role as a value, not a reference, so renaming a member's role never
// rewrites history.
type Role string

const (
	RoleAdmin      Role = "ADMIN"
	RoleAccountant Role = "ACCOUNTANT"
	RoleManager    Role = "MANAGER"
	RoleMember     Role = "MEMBER"
)

// AllRoles lists every role the engine accepts in route definitions.
var AllRoles = []Role{
	RoleAdmin,
	RoleAccountant,
	RoleManager,
	RoleMember,
}

// Valid reports whether r is part of the closed role set.
func (r Role) Valid() bool {
	for _, known := range AllRoles {
		if r == known {
			return true
		}
	}
	return false
}
