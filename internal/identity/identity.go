// Package identity carries the resolved caller identity. Authentication
// itself happens upstream; this service only consumes the result.
package identity

type Role string

const (
	RoleBuyer Role = "buyer"
	RoleAdmin Role = "admin"
)

type Identity struct {
	ID   string
	Role Role
}

func (id Identity) IsAdmin() bool { return id.Role == RoleAdmin }

func (id Identity) Valid() bool {
	return id.ID != "" && (id.Role == RoleBuyer || id.Role == RoleAdmin)
}
