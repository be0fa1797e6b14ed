package tokens

// WorkspaceRole is the role a workspace invite grants on acceptance
type WorkspaceRole string

const (
	// RoleGuest is a guest role (ie. view)
	RoleGuest WorkspaceRole = "guest"
	// RoleMember is a member (i.e. view, edit)
	RoleMember WorkspaceRole = "member"
	// RoleAdmin is an admin role (i.e. view, edit, create)
	RoleAdmin WorkspaceRole = "admin"
	// RoleOwner is an owner role (i.e. view, edit, create, delete)
	RoleOwner WorkspaceRole = "owner"
)

// IsValid checks if the role is one of the predefined valid roles
func (r WorkspaceRole) IsValid() bool {
	switch r {
	case RoleGuest, RoleMember, RoleAdmin, RoleOwner:
		return true
	default:
		return false
	}
}

func (r WorkspaceRole) String() string {
	return string(r)
}

// IsAtLeast checks if this role meets the minimum required level
func (r WorkspaceRole) IsAtLeast(minRole WorkspaceRole) bool {
	roleHierarchy := map[WorkspaceRole]int{
		RoleGuest:  0,
		RoleMember: 1,
		RoleAdmin:  2,
		RoleOwner:  3,
	}

	currentLevel, exists := roleHierarchy[r]
	if !exists {
		return false
	}

	minLevel, exists := roleHierarchy[minRole]
	if !exists {
		return false
	}

	return currentLevel >= minLevel
}

// GetAllRoles returns all predefined roles in hierarchical order
func GetAllRoles() []WorkspaceRole {
	return []WorkspaceRole{
		RoleGuest,
		RoleMember,
		RoleAdmin,
		RoleOwner,
	}
}

// ParseRole safely parses a string into a WorkspaceRole type
func ParseRole(roleStr string) (WorkspaceRole, bool) {
	role := WorkspaceRole(roleStr)
	return role, role.IsValid()
}
