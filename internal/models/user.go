// internal/models/user.go
package models

import "github.com/google/uuid"

// User is a row in the users table. Password holds the argon2id encoded
// hash once persisted and is never serialized.
type User struct {
	ID       uuid.UUID `json:"id"`
	Email    string    `json:"email"`
	Password string    `json:"-"`
	Username string    `json:"username"`
	Elo      int       `json:"elo"`
}
