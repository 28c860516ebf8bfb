package model

// Role is a patron's position in the library hierarchy.
type Role string

// Roles, lowest to highest.
const (
	RoleMember        Role = "member"
	RoleLibrarian     Role = "librarian"
	RoleHeadLibrarian Role = "head_librarian"
	RoleAdmin         Role = "admin"
	RoleSuperadmin    Role = "superadmin"
)

var roleRanks = map[Role]int{
	RoleMember:        1,
	RoleLibrarian:     2,
	RoleHeadLibrarian: 3,
	RoleAdmin:         4,
	RoleSuperadmin:    5,
}

// Rank returns the role's position in the hierarchy, 0 for unknown roles.
func (r Role) Rank() int {
	return roleRanks[r]
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r.Rank() > 0
}

// HasPermission reports whether actor meets or exceeds the required role.
// Unknown roles on either side fail closed.
func HasPermission(actor, required Role) bool {
	a, r := actor.Rank(), required.Rank()
	if a == 0 || r == 0 {
		return false
	}
	return a >= r
}
