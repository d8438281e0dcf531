// Package actor carries the trusted caller identity supplied by the external
// auth boundary. The core propagates it; it never authenticates credentials.
package actor

// Role is the caller's coarse permission level.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleUser     Role = "user"
	RoleReadOnly Role = "readonly"
)

// Actor identifies who invoked a command.
type Actor struct {
	ID    string
	Email string
	Role  Role
}

// CanCommand reports whether the actor may submit fund movements.
func (a Actor) CanCommand() bool {
	return a.ID != "" && a.Role != RoleReadOnly
}

// CanApprove reports whether the actor may decide pending approvals.
func (a Actor) CanApprove() bool {
	return a.Role == RoleAdmin
}
