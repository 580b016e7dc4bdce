package auth

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Tokens are stateless; expiry is the only invalidation mechanism.
const defaultTokenTTL = 7 * 24 * time.Hour

// Claims is the JWT payload issued to authenticated users. The registered
// subject carries the user id; email and role ride along so protected
// handlers can act without a user lookup.
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// Identity is the caller identity handed to core operations after a token
// has been verified. It is an explicit value, never ambient request state.
type Identity struct {
	UserID int
	Email  string
	Role   string
}

// Identity converts verified claims into a caller identity.
func (c *Claims) Identity() (Identity, error) {
	id, err := strconv.Atoi(strings.TrimSpace(c.Subject))
	if err != nil || id < 1 {
		return Identity{}, errors.New("invalid subject")
	}
	return Identity{UserID: id, Email: c.Email, Role: c.Role}, nil
}

// TokenService signs and verifies bearer tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService constructs a TokenService with the 7-day default expiry.
func NewTokenService(secret string) *TokenService {
	return &TokenService{
		secret: []byte(secret),
		ttl:    defaultTokenTTL,
	}
}

// Issue produces a signed HS256 token for the given user.
func (t *TokenService) Issue(userID int, email, role string) (string, error) {
	now := time.Now()
	claims := Claims{
		Email: email,
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.Itoa(userID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Verify parses and validates a token. It fails on a bad signature, an
// unexpected signing method, expiry, or a missing subject.
func (t *TokenService) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return t.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, errors.New("missing subject")
	}
	return claims, nil
}
