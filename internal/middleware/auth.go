// Package middleware provides HTTP middleware: JWT authentication, admin
// gating, and Prometheus metrics.
package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/skald/internal/domain"
	"github.com/golang-jwt/jwt"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// Claims is the JWT payload carried in the bearer token. Tokens are minted by
// the identity service; this service only verifies them.
type Claims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Admin  bool   `json:"admin"`
	jwt.StandardClaims
}

// Authenticate verifies the bearer token and stores the principal in the
// request context.
func Authenticate(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Missing authorization header"})
			}

			tokenParts := strings.Split(authHeader, " ")
			if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid authorization header format"})
			}

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(tokenParts[1], claims, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid or expired token"})
			}

			userID, err := uuid.Parse(claims.UserID)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid token subject"})
			}

			ctx := domain.NewContextWithUser(c.Request().Context(), &domain.User{
				ID:    userID,
				Email: claims.Email,
				Admin: claims.Admin,
			})
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// RequireAdmin rejects non-admin principals. Must run after Authenticate.
func RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !domain.IsAdmin(c.Request().Context()) {
			return c.JSON(http.StatusForbidden, map[string]string{"error": "Admin access required"})
		}
		return next(c)
	}
}

// GenerateToken mints a signed token for a principal. Used by tests and local
// tooling; production tokens come from the identity service.
func GenerateToken(secret string, userID uuid.UUID, email string, admin bool, ttl time.Duration) (string, error) {
	claims := &Claims{
		UserID: userID.String(),
		Email:  email,
		Admin:  admin,
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: time.Now().Add(ttl).Unix(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
