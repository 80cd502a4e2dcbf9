package domain

import "time"

// Role enumerates caller roles.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
	RoleAdmin Role = "admin"
)

// ValidRole reports whether r is a known role.
func ValidRole(r Role) bool {
	return r == RoleUser || r == RoleAgent || r == RoleAdmin
}

// Actor maps a role to the audit actor recorded for its actions.
// Admin replies are attributed to the agent actor, matching the audit
// vocabulary.
func (r Role) Actor() Actor {
	switch r {
	case RoleAgent, RoleAdmin:
		return ActorAgent
	default:
		return ActorUser
	}
}

// User is an authenticated principal: end user, support agent or
// admin.
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	Role         Role
	Active       bool
	CreatedAt    time.Time
}
