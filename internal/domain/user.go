package domain

import "time"

// RoleUser is the only role assigned today. Kept as an enum-style constant so
// storage and serialization do not hardcode the literal.
const RoleUser = "user"

// User is the canonical identity record owned by the credential store.
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
	Farms        []string
}

// UserView is the client-facing projection of a User. It never carries the
// password hash.
type UserView struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	Farms     []string  `json:"farms"`
}

// Sanitize strips credentials from a User for serialization.
func (u User) Sanitize() UserView {
	farms := u.Farms
	if farms == nil {
		farms = []string{}
	}
	return UserView{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
		Farms:     farms,
	}
}
