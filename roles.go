package session

// IsValid checks if the role is one of the predefined marketplace roles
func IsValidRole(r Role) bool {
	switch r {
	case RoleStudent, RoleProfessor, RoleAdmin:
		return true
	default:
		return false
	}
}

// ParseRole safely parses a string into a Role
func ParseRole(roleStr string) (Role, bool) {
	role := Role(roleStr)
	return role, IsValidRole(role)
}

// GetAllRoles returns all predefined roles
func GetAllRoles() []Role {
	return []Role{
		RoleStudent,
		RoleProfessor,
		RoleAdmin,
	}
}

// RoleMatches reports whether a principal's role satisfies a route's
// requirement. Roles are not hierarchical: an admin page requires the
// admin role, a professor page the professor role.
func RoleMatches(have, required Role) bool {
	if required == "" {
		return true
	}
	return have == required
}
