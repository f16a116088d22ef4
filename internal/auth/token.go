package auth

import (
	"errors"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/desk-kit/support-desk/internal/domain"
)

// TokenVerifier validates JWT tokens issued by the external identity
// provider. This service never issues or refreshes tokens.
type TokenVerifier struct {
	secret []byte
}

// NewTokenVerifier builds a verifier for the shared signing secret.
func NewTokenVerifier(secret string) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret)}
}

// Claims describes the identity-provider JWT payload.
type Claims struct {
	Email     string          `json:"email"`
	Role      domain.UserRole `json:"role"`
	CompanyID string          `json:"company_id"`
	jwt.RegisteredClaims
}

// ParseToken validates the signature and expiry and returns claims.
func (tv *TokenVerifier) ParseToken(tokenStr string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return tv.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.Subject == "" || claims.CompanyID == "" || !claims.Role.Valid() {
		return nil, errors.New("incomplete token claims")
	}
	return claims, nil
}
