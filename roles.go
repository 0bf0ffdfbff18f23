package authclient

// Role is the backend-assigned access level of a user.
type Role string

const (
	// RoleUser is the standard, non-elevated role.
	RoleUser Role = "user"
	// RoleAdmin grants access to the admin surfaces.
	RoleAdmin Role = "admin"
)

// IsValid checks if the role is one of the predefined valid roles
func (r Role) IsValid() bool {
	switch r {
	case RoleUser, RoleAdmin:
		return true
	default:
		return false
	}
}

// IsAdmin reports whether the role carries elevated access.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}

// ParseRole maps a raw string to a Role, reporting whether it was recognized.
func ParseRole(s string) (Role, bool) {
	r := Role(s)
	if r.IsValid() {
		return r, true
	}
	return "", false
}

// NormalizeRole resolves unknown or missing roles to RoleUser. The backend
// occasionally omits the role field and the session invariant requires the
// role to always be defined.
func NormalizeRole(s string) Role {
	if r, ok := ParseRole(s); ok {
		return r
	}
	return RoleUser
}
