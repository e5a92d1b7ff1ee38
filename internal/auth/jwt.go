package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/opsdesk/opsdesk/models"
)

// Identity is the authenticated principal carried by an access token.
// Once a WebSocket session is admitted with an Identity, it is trusted for
// the session's lifetime; a role change requires a new login.
type Identity struct {
	UserID   string
	Username string
	Role     models.Role
}

// Tokens issues and verifies HS256 access tokens.
type Tokens struct {
	secret []byte
	ttl    time.Duration
}

// NewTokens creates a token codec. ttlHours <= 0 defaults to 24 hours.
func NewTokens(secret string, ttlHours int) (*Tokens, error) {
	if secret == "" {
		return nil, fmt.Errorf("auth.jwt_secret is not configured")
	}
	if ttlHours <= 0 {
		ttlHours = 24
	}
	return &Tokens{secret: []byte(secret), ttl: time.Duration(ttlHours) * time.Hour}, nil
}

type claims struct {
	Username string `json:"username,omitempty"`
	Role     string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Issue creates a signed access token for user.
func (t *Tokens) Issue(user *models.User) (string, error) {
	now := time.Now().UTC()
	c := claims{
		Username: user.Username,
		Role:     string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(t.secret)
}

// Verify parses and validates token and returns the embedded Identity.
func (t *Tokens) Verify(token string) (*Identity, error) {
	var c claims
	parsed, err := jwt.ParseWithClaims(token, &c, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", tok.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parsing token: %w", err)
	}
	if !parsed.Valid || c.Subject == "" {
		return nil, fmt.Errorf("invalid token payload")
	}
	role := models.Role(c.Role)
	if !role.Valid() {
		role = models.RoleUser
	}
	return &Identity{UserID: c.Subject, Username: c.Username, Role: role}, nil
}

// TTL returns the configured token lifetime.
func (t *Tokens) TTL() time.Duration { return t.ttl }
