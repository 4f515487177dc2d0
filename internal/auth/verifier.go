package auth

import (
	"errors"
	"fmt"
	"time"

	"eduquiz-service/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken covers every way a bearer token can fail verification.
var ErrInvalidToken = errors.New("invalid bearer token")

// Claims is the identity payload the login service signs into tokens.
type Claims struct {
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	jwt.RegisteredClaims
}

// Verifier decodes bearer tokens minted by the identity provider into
// an Identity. The coordinator never issues tokens itself.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify parses and validates an HMAC-signed token and returns the
// identity it carries.
func (v *Verifier) Verify(tokenString string) (domain.Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return domain.Identity{}, ErrInvalidToken
	}
	if claims.Subject == "" {
		return domain.Identity{}, ErrInvalidToken
	}
	return domain.Identity{
		UserID:      claims.Subject,
		DisplayName: claims.DisplayName,
		Email:       claims.Email,
	}, nil
}

// MintToken signs an identity into a token. Test helper; the real
// identity provider owns token issuance.
func MintToken(secret string, identity domain.Identity, ttl time.Duration) (string, error) {
	claims := Claims{
		DisplayName: identity.DisplayName,
		Email:       identity.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.UserID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
