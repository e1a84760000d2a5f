package domain

import "time"

// Role determines what a principal may do across the task board.
type Role string

const (
	RoleUser    Role = "user"
	RoleManager Role = "manager"
)

// Principal is the authenticated actor behind a request.
type Principal struct {
	ID   string
	Role Role
}

// User is the domain model for accounts referenced by tasks.
type User struct {
	ID        string
	Name      string
	Email     string
	Role      Role
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserRef is the expanded form of a user reference on responses.
type UserRef struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Principal converts a loaded user into the actor shape used by the policy layer.
func (u *User) Principal() Principal {
	return Principal{ID: u.ID, Role: u.Role}
}
