// Package auth guards the administrative HTTP endpoints with HS256-signed
// bearer tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"

	"github.com/patric-chuzhbe/newsdigest/internal/logger"
)

// RoleAdmin is the only role accepted by RequireAdmin.
const RoleAdmin = "admin"

var ErrForbiddenRole = errors.New("token does not carry the admin role")

// Auth verifies and issues admin tokens. With an empty signing key every
// request is let through.
type Auth struct {
	signingKey []byte
}

// Claims represents the JWT claims used by the system.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// ContextKey is a custom type for storing values in context to avoid collisions.
type ContextKey string

// SubjectKey holds the subject of a verified admin token.
const SubjectKey ContextKey = "subject"

func New(signingKey []byte) *Auth {
	return &Auth{signingKey: signingKey}
}

// Enabled reports whether tokens are checked at all.
func (a *Auth) Enabled() bool {
	return len(a.signingKey) > 0
}

// RequireAdmin is an HTTP middleware that rejects requests without a valid
// admin bearer token in the Authorization header.
func (a *Auth) RequireAdmin(h http.Handler) http.Handler {
	middleware := func(response http.ResponseWriter, request *http.Request) {
		if !a.Enabled() {
			h.ServeHTTP(response, request)
			return
		}

		claims, err := a.parse(tokenFromHeader(request.Header.Get("Authorization")))
		if err != nil {
			logger.Log.Debugln("Error calling the `a.parse()`: ", zap.Error(err))
			response.Header().Set("WWW-Authenticate", `Bearer realm="newsdigest"`)
			response.WriteHeader(http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(request.Context(), SubjectKey, claims.Subject)
		h.ServeHTTP(response, request.WithContext(ctx))
	}

	return http.HandlerFunc(middleware)
}

func tokenFromHeader(header string) string {
	header = strings.TrimSpace(header)
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return header
}

func (a *Auth) parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return a.signingKey, nil
		},
	)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Role != RoleAdmin {
		return nil, ErrForbiddenRole
	}

	return claims, nil
}

// IssueAdminToken signs an admin token for subject valid for ttl. A zero
// ttl produces a token without expiry.
func (a *Auth) IssueAdminToken(subject string, ttl time.Duration) (string, error) {
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  subject,
			IssuedAt: jwt.NewNumericDate(time.Now()),
		},
		Role: RoleAdmin,
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(ttl))
	}
	return a.BuildJWTString(claims)
}

func (a *Auth) BuildJWTString(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, *claims)

	tokenString, err := token.SignedString(a.signingKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}
