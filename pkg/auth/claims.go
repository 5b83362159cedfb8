package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Nikul30701/E-Commerce-Plateform/pkg/enums"
)

// AccessTokenPayload is the identity baked into a freshly minted token.
type AccessTokenPayload struct {
	UserID uuid.UUID
	Role   enums.Role
	JTI    string
}

// AccessTokenClaims is the JWT body presented by clients.
type AccessTokenClaims struct {
	UserID uuid.UUID  `json:"user_id"`
	Role   enums.Role `json:"role"`
	jwt.RegisteredClaims
}

// Validate runs after the registered claims checks during parsing.
func (c AccessTokenClaims) Validate() error {
	if c.UserID == uuid.Nil {
		return ErrMissingUser
	}
	if !c.Role.IsValid() {
		return fmt.Errorf("token carries unknown role %q", c.Role)
	}
	return nil
}
