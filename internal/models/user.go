package models

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleSuperAdmin UserRole = "SUPERADMIN"
	RoleAdmin      UserRole = "ADMIN"
	RoleRegistrar  UserRole = "REGISTRAR"
	RoleStudent    UserRole = "STUDENT"
	RoleParent     UserRole = "PARENT"
)

// StaffRoles may verify documents and advance the enrollment workflow.
var StaffRoles = []UserRole{RoleSuperAdmin, RoleAdmin, RoleRegistrar}

// IsStaff reports whether the role belongs to enrollment staff.
func (r UserRole) IsStaff() bool {
	for _, staff := range StaffRoles {
		if r == staff {
			return true
		}
	}
	return false
}

