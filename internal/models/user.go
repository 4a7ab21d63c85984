package models

type UserRole string

const (
	RoleAdministrator UserRole = "administrator"
	RoleRecruiter     UserRole = "recruiter"
	RoleSubscriber    UserRole = "subscriber"
)

// Capability names a single permission on the rotation records.
type Capability string

const (
	CapReadRotations    Capability = "read_student_rotations"
	CapEditRotations    Capability = "edit_student_rotations"
	CapPublishRotations Capability = "publish_student_rotations"
	CapDeleteRotations  Capability = "delete_student_rotations"
	CapManageLocations  Capability = "manage_locations"
)

// rotationCapabilities is the full set granted to anyone who manages rotations.
var rotationCapabilities = []Capability{
	CapReadRotations,
	CapEditRotations,
	CapPublishRotations,
	CapDeleteRotations,
}

var roleCapabilities = map[UserRole][]Capability{
	RoleAdministrator: append(append([]Capability{}, rotationCapabilities...), CapManageLocations),
	RoleRecruiter:     rotationCapabilities,
	RoleSubscriber:    {CapReadRotations},
}

// User is the authenticated principal. Users live in the identity provider;
// this service only sees the claims carried by the bearer token.
type User struct {
	ID       string   `json:"id"`
	FullName string   `json:"full_name"`
	Email    string   `json:"email"`
	Role     UserRole `json:"role"`
}

// IsValid reports whether r is a known role.
func (r UserRole) IsValid() bool {
	_, ok := roleCapabilities[r]
	return ok
}

// Capabilities returns the capabilities granted to the role.
func (r UserRole) Capabilities() []Capability {
	return append([]Capability(nil), roleCapabilities[r]...)
}

// Can reports whether the user holds capability c.
func (u *User) Can(c Capability) bool {
	if u == nil {
		return false
	}
	for _, granted := range roleCapabilities[u.Role] {
		if granted == c {
			return true
		}
	}
	return false
}
