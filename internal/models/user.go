package models

// UserRole represents the roles carried in access tokens.
type UserRole string

const (
	RoleSuperAdmin UserRole = "SUPERADMIN"
	// RoleNdalem is the pesantren household (pengasuh) tier that gives final approval.
	RoleNdalem UserRole = "NDALEM"
	// RoleUstadzah is the dormitory staff tier that reviews requests first.
	RoleUstadzah UserRole = "USTADZAH"
	// RoleWaliSantri is a resident's guardian.
	RoleWaliSantri UserRole = "WALI_SANTRI"
)

// KnownRoles lists the roles issued by the identity provider, highest first.
var KnownRoles = []UserRole{RoleSuperAdmin, RoleNdalem, RoleUstadzah, RoleWaliSantri}

// IsKnownRole reports whether role is one of KnownRoles.
func IsKnownRole(role UserRole) bool {
	for _, known := range KnownRoles {
		if role == known {
			return true
		}
	}
	return false
}

// Actor identifies who performs a workflow operation.
type Actor struct {
	UserID   string
	FullName string
	Role     UserRole
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
