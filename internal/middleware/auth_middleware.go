package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/son28bmt/Bus-Ticketing-sub002/pkg/jwt"
)

// UserContextKey is the key used to store user information in Gin context
const UserContextKey = "user"

// Role names carried in JWT claims
const (
	RoleUser         = "user"
	RoleCompanyStaff = "company_staff"
	RoleAdmin        = "admin"
)

// UserContext represents the authenticated user's information
type UserContext struct {
	UserID    uuid.UUID `json:"user_id"`
	Phone     string    `json:"phone"`
	Roles     []string  `json:"roles"`
	CompanyID string    `json:"company_id,omitempty"`
}

// IsStaff reports whether the user has an operator-side role
func (u UserContext) IsStaff() bool {
	for _, role := range u.Roles {
		if role == RoleCompanyStaff || role == RoleAdmin {
			return true
		}
	}
	return false
}

func abortUnauthorized(c *gin.Context, detail string) {
	c.JSON(http.StatusUnauthorized, gin.H{
		"ok":        false,
		"errorKind": "unauthorized",
		"detail":    detail,
	})
	c.Abort()
}

// AuthMiddleware creates a middleware that validates JWT tokens
func AuthMiddleware(jwtService *jwt.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "authorization header is required")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			abortUnauthorized(c, "invalid authorization header format, expected: Bearer <token>")
			return
		}

		tokenString := strings.TrimSpace(parts[1])
		if tokenString == "" {
			abortUnauthorized(c, "token cannot be empty")
			return
		}

		claims, err := jwtService.ValidateToken(tokenString)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"path": c.Request.URL.Path,
				"ip":   c.ClientIP(),
			}).WithError(err).Warn("Token validation failed")
			abortUnauthorized(c, "invalid or expired access token")
			return
		}

		c.Set(UserContextKey, UserContext{
			UserID:    claims.UserID,
			Phone:     claims.Phone,
			Roles:     claims.Roles,
			CompanyID: claims.CompanyID,
		})
		c.Next()
	}
}

// RequireRole creates a middleware that checks if user has any required role
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userCtx, exists := GetUserContext(c)
		if !exists {
			abortUnauthorized(c, "user context not found")
			return
		}

		for _, required := range roles {
			for _, role := range userCtx.Roles {
				if role == required {
					c.Next()
					return
				}
			}
		}

		c.JSON(http.StatusForbidden, gin.H{
			"ok":        false,
			"errorKind": "forbidden",
			"detail":    "you don't have permission to access this resource",
		})
		c.Abort()
	}
}

// GetUserContext retrieves the user context from Gin context
func GetUserContext(c *gin.Context) (UserContext, bool) {
	value, exists := c.Get(UserContextKey)
	if !exists {
		return UserContext{}, false
	}

	userCtx, ok := value.(UserContext)
	if !ok {
		return UserContext{}, false
	}

	return userCtx, true
}

// MustGetUserContext retrieves the user context or panics (use only after AuthMiddleware)
func MustGetUserContext(c *gin.Context) UserContext {
	userCtx, exists := GetUserContext(c)
	if !exists {
		panic("user context not found - ensure AuthMiddleware is applied")
	}
	return userCtx
}
