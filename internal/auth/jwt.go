package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "budget-tracker"

// TokenService issues and validates the signed session tokens that bind an
// account id to a request.
//
// Tokens are HS256 JWTs. The expiry horizon is one configured duration —
// every token the process issues lives exactly this long, and the session
// cookie's MaxAge is derived from the same value so the cookie cannot
// outlive the token inside it.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService creates a TokenService with the given signing secret and
// token lifetime. A short secret is a configuration error, not something to
// limp along with: callers are expected to fail at startup, not at the first
// sign-in.
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	if ttl <= 0 {
		return nil, errors.New("auth: token TTL must be positive")
	}
	return &TokenService{secret: []byte(secret), ttl: ttl}, nil
}

// TTL returns the configured token lifetime. The handler layer uses it to
// set the session cookie's MaxAge.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Claims is the JWT payload: the account id in the standard "sub" claim plus
// the account email, matching what the rest of the system expects to find in
// a session token.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Generate creates and signs a session token for the given account.
func (s *TokenService) Generate(userID, email string) (string, error) {
	return s.generate(userID, email, s.ttl)
}

// GenerateWithDuration creates a token with a custom expiry. Used by tests
// to mint already-expired tokens without waiting for a clock.
func (s *TokenService) GenerateWithDuration(userID, email string, d time.Duration) (string, error) {
	return s.generate(userID, email, d)
}

func (s *TokenService) generate(userID, email string, d time.Duration) (string, error) {
	now := time.Now()

	c := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Validate parses and verifies a token string, returning the claims if the
// signature, expiry, and issuer all check out.
//
// The algorithm is pinned to HS256 via WithValidMethods; without the pin, a
// token claiming alg=none could slip past verification.
func (s *TokenService) Validate(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&Claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("auth: token expired")
		}
		return nil, fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("auth: invalid token claims")
	}
	if c.Subject == "" {
		return nil, fmt.Errorf("auth: token has no subject")
	}

	return c, nil
}
