package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// StaffRole is the only role issued today; kept on the token for future scoping.
const StaffRole = "staff"

// LoginRequest holds staff credentials.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse returns the issued access token.
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresIn   int64     `json:"expires_in"`
	Email       string    `json:"email"`
	IssuedAt    time.Time `json:"issued_at"`
}

// StaffClaims is the JWT payload for staff access tokens.
type StaffClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}
