package auth

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/brewline/brewline-backend/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID int64
	Role   enums.UserRole
	JTI    string
}

// AccessTokenClaims represents the typed JWT issued to clients.
type AccessTokenClaims struct {
	UserID int64          `json:"user_id"`
	Role   enums.UserRole `json:"role"`
	jwt.RegisteredClaims
}

// IsStaff reports whether the bearer may act on other users' orders.
func (c *AccessTokenClaims) IsStaff() bool {
	return c != nil && c.Role.IsStaff()
}
