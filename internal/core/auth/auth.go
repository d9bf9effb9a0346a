package auth

import (
	"fmt"
	"strings"

	"commerce-backend/internal/core/apperr"
	"commerce-backend/internal/core/response"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
)

const (
	localUserID = "userID"
	localRole   = "role"

	// RoleAdmin is the role claim value granting access to admin routes.
	RoleAdmin = "admin"
)

// Claims are the bearer token claims issued by the identity service.
type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Middleware verifies HS256 bearer tokens and exposes the verified user id.
// A Middleware with an empty secret lets every request through.
type Middleware struct {
	secret []byte
}

// New creates a Middleware. An empty secret disables authentication.
func New(secret string) *Middleware {
	return &Middleware{secret: []byte(secret)}
}

// Enabled reports whether tokens are verified.
func (m *Middleware) Enabled() bool {
	return len(m.secret) > 0
}

// Authenticate rejects requests without a valid bearer token.
func (m *Middleware) Authenticate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !m.Enabled() {
			return c.Next()
		}

		header := c.Get(fiber.HeaderAuthorization)
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			return response.Error(c, fmt.Errorf("%w: no token provided", apperr.ErrUnauthorized))
		}

		claims, err := m.Parse(raw)
		if err != nil {
			return response.Error(c, err)
		}

		c.Locals(localUserID, claims.Subject)
		c.Locals(localRole, claims.Role)
		return c.Next()
	}
}

// RequireAdmin rejects authenticated requests whose role is not admin.
func (m *Middleware) RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !m.Enabled() {
			return c.Next()
		}
		if role, _ := c.Locals(localRole).(string); role != RoleAdmin {
			return response.Error(c, fmt.Errorf("%w: admin role required", apperr.ErrForbidden))
		}
		return c.Next()
	}
}

// Parse validates a raw token and returns its claims.
func (m *Middleware) Parse(raw string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: invalid token", apperr.ErrUnauthorized)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: token has no subject", apperr.ErrUnauthorized)
	}
	return claims, nil
}

// Issue signs a token for userID. Used by tooling and tests; the identity
// service owns issuance in production.
func (m *Middleware) Issue(userID, role string) (string, error) {
	claims := Claims{
		Role:             role,
		RegisteredClaims: jwt.RegisteredClaims{Subject: userID},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// UserID returns the verified user id, or "" when authentication is disabled.
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals(localUserID).(string)
	return id
}

// IsAdmin reports whether the verified identity carries the admin role.
func IsAdmin(c *fiber.Ctx) bool {
	role, _ := c.Locals(localRole).(string)
	return role == RoleAdmin
}

// CanAccess reports whether the caller may act on resources owned by userID:
// the owner, an admin, or anyone when authentication is disabled.
func CanAccess(c *fiber.Ctx, userID string) bool {
	caller := UserID(c)
	return caller == "" || caller == userID || IsAdmin(c)
}
