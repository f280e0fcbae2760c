package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// LoginRequest represents a login request
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse carries the issued bearer token
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Claims are the JWT claims. The subject is the user id; the role is
// informational, verification always reloads the user.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}
