package domain

import "fmt"

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Actor is the caller identity established by the identity collaborator.
// It is passed explicitly to every operation that needs it.
type Actor struct {
	UserID string
	Role   Role
}

func (a Actor) Validate() error {
	if a.UserID == "" {
		return fmt.Errorf("actor: %w", ErrUnauthenticated)
	}
	return nil
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// CanAccess reports whether the actor owns the resource or is an admin.
func (a Actor) CanAccess(ownerID string) bool {
	return a.IsAdmin() || (a.UserID != "" && a.UserID == ownerID)
}
