package auth

import "github.com/google/uuid"

type Role string

const (
	RoleClient   Role = "client"
	RoleProvider Role = "provider"
	RoleAdmin    Role = "admin"
)

func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleClient, RoleProvider, RoleAdmin:
		return Role(s), true
	}
	return "", false
}

// Actor is the authenticated caller threaded into every core operation.
type Actor struct {
	UserID uuid.UUID
	Role   Role
}

func (a Actor) IsClient() bool   { return a.Role == RoleClient }
func (a Actor) IsProvider() bool { return a.Role == RoleProvider }
func (a Actor) IsAdmin() bool    { return a.Role == RoleAdmin }
