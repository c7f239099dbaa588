package auth

import "time"

// Identity is the payload carried by an access token.
type Identity struct {
	ID    string
	Role  Role
	Name  string
	Email string
}

// User is the stored account record. Password holds either a bcrypt hash or,
// for accounts created by the previous system, the plaintext password.
type User struct {
	ID        string
	Name      string
	Email     string
	Password  string
	Role      Role
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Identity returns the token payload for u.
func (u User) Identity() Identity {
	return Identity{ID: u.ID, Role: u.Role, Name: u.Name, Email: u.Email}
}

// Public returns the view of u that is safe to send to clients.
func (u User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

// PublicUser never carries the credential.
type PublicUser struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at,omitzero"`
}

// Session is returned by login and registration.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      PublicUser
}
