package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/voicecal/voicecal/internal/profile"
	verrors "github.com/voicecal/voicecal/internal/errors"
)

// userIDContextKey is where the authenticated user id is stored on the
// echo context.
const userIDContextKey = "user_id"

// devUserID is the identity every request gets under auth bypass.
const devUserID = "dev"

// UserID returns the authenticated user id for the request, empty when
// the auth middleware did not run.
func UserID(c echo.Context) string {
	userID, _ := c.Get(userIDContextKey).(string)
	return userID
}

// JWTAuth authenticates requests with a bearer token signed by the
// configured secret. The token subject is the user id. With AuthBypass
// set every request runs as the dev user; Validate only allows that in
// non-production modes.
func JWTAuth(p *profile.Profile) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if p.AuthBypass {
				c.Set(userIDContextKey, devUserID)
				return next(c)
			}

			header := c.Request().Header.Get(echo.HeaderAuthorization)
			token := strings.TrimPrefix(header, "Bearer ")
			if token == "" || token == header {
				return unauthorized(c, "missing bearer token")
			}

			claims := &jwt.RegisteredClaims{}
			parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
				}
				return []byte(p.JWTSecret), nil
			})
			if err != nil || !parsed.Valid || claims.Subject == "" {
				return unauthorized(c, "invalid token")
			}

			c.Set(userIDContextKey, claims.Subject)
			return next(c)
		}
	}
}

func unauthorized(c echo.Context, message string) error {
	return c.JSON(http.StatusUnauthorized, map[string]string{
		"error":   string(verrors.ErrCodeUnauthorized),
		"message": message,
	})
}

// RateLimit rejects requests over the per-user limit. Unauthenticated
// requests are keyed by client IP.
func RateLimit(rl *RateLimiter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := UserID(c)
			if key == "" {
				key = c.RealIP()
			}
			if !rl.Allow(key) {
				return c.JSON(http.StatusTooManyRequests, map[string]string{
					"error": string(verrors.ErrCodeRateLimitExceeded),
				})
			}
			return next(c)
		}
	}
}
