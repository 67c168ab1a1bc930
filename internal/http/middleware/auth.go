package middleware

import (
	"net/http"
	"strings"

	"kidshop/internal/auth"
	"kidshop/pkg/models"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// JWTAuth middleware validates JWT access tokens. The token may come from the
// Authorization header or, for websocket upgrades, a token query parameter.
func JWTAuth(authService *auth.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenString := bearerToken(c)
			if tokenString == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Missing authorization token")
			}

			claims, err := authService.ValidateToken(tokenString)
			if err != nil || claims.Type != auth.TokenAccess {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
			}

			c.Set("claims", claims)
			c.Set("user_id", claims.UserID)
			c.Set("user_email", claims.Email)
			c.Set("user_role", claims.Role)

			return next(c)
		}
	}
}

func bearerToken(c echo.Context) string {
	header := c.Request().Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	if header == "" && c.IsWebSocket() {
		return c.QueryParam("token")
	}
	return ""
}

// RequireRole middleware ensures user has required role
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			roleStr, ok := c.Get("user_role").(string)
			if !ok {
				return echo.NewHTTPError(http.StatusForbidden, "User role not found")
			}

			for _, role := range roles {
				if roleStr == role {
					return next(c)
				}
			}

			return echo.NewHTTPError(http.StatusForbidden, "Insufficient permissions")
		}
	}
}

// AdminOnly allows only the admin role
func AdminOnly() echo.MiddlewareFunc {
	return RequireRole(models.RoleAdmin)
}

// StaffOnly allows admins and editors
func StaffOnly() echo.MiddlewareFunc {
	return RequireRole(models.RoleAdmin, models.RoleEditor)
}

// UserID returns the authenticated user's id, if any
func UserID(c echo.Context) *uuid.UUID {
	if id, ok := c.Get("user_id").(uuid.UUID); ok {
		return &id
	}
	return nil
}
