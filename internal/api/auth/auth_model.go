package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/FACorreiaa/go-credential-auth/internal/api"
)

// User is a registered account. PasswordHash is the Hasher output, never the
// raw password, and is never serialized.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// View returns the externally visible part of the record.
func (u *User) View() UserView {
	return UserView{ID: u.ID, Username: u.Username, Email: u.Email}
}

// UserView is the user record as returned to clients.
type UserView struct {
	ID       int64  `json:"id" example:"1"`
	Username string `json:"username" example:"alice"`
	Email    string `json:"email" example:"a@x.com"`
}

// Credentials is the transient registration input.
type Credentials struct {
	Username string `json:"username" validate:"required" example:"alice"`
	Password string `json:"password" validate:"required" example:"s3cret!"`
	Email    string `json:"email" validate:"required" example:"a@x.com"`
}

// RegisterRequest represents the expected JSON body for registration.
type RegisterRequest = Credentials

// LoginRequest represents the expected JSON body for login.
type LoginRequest struct {
	Username string `json:"username" validate:"required" example:"alice"`
	Password string `json:"password" validate:"required" example:"s3cret!"`
}

// LoginResponse represents the successful JSON response after login.
type LoginResponse struct {
	Message string `json:"message" example:"User logged in"`
	Token   string `json:"token" example:"eyJhbGciOiJI..."`
}

// RegisterResponse is returned with 201 after a successful registration.
type RegisterResponse struct {
	Message string   `json:"message" example:"User registered successfully"`
	User    UserView `json:"user"`
}

// ProfileResponse is returned by the protected profile route.
type ProfileResponse struct {
	Message string  `json:"message" example:"Reached protected route"`
	User    *Claims `json:"user"`
}

// Response is the generic error body written by api.ErrorResponse.
type Response = api.Response

// Claims is the payload carried by an access token. The numeric user id is
// mirrored into the registered "sub" claim. "exp" only has second resolution,
// so ExpiresAtNano carries the exact expiry in unix nanoseconds.
type Claims struct {
	UserID        int64  `json:"id"`
	Username      string `json:"username"`
	Email         string `json:"email"`
	ExpiresAtNano int64  `json:"exp_ns"`
	jwt.RegisteredClaims
}

// Expiry is the instant the token stops being valid.
func (c *Claims) Expiry() time.Time {
	if c.ExpiresAtNano != 0 {
		return time.Unix(0, c.ExpiresAtNano)
	}
	if c.ExpiresAt != nil {
		return c.ExpiresAt.Time
	}
	return time.Time{}
}
