package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/remembrance/memorial-backend/internal/common"
	"github.com/remembrance/memorial-backend/internal/domain"
	"github.com/remembrance/memorial-backend/pkg/jwt"
)

// Context keys set by the auth middlewares
const (
	ctxUserID   = "userID"
	ctxNickname = "nickname"
	ctxRole     = "role"
)

var errInvalidAuthHeader = errors.New("invalid authorization header format")

// JWTAuth requires a valid token from the Authorization header or the session cookie
func JWTAuth(jwtManager *jwt.Manager, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := extractToken(c, cookieName)
		if err != nil {
			common.ErrorResponse(c, http.StatusUnauthorized, "Invalid authorization header format", nil)
			c.Abort()
			return
		}
		if tokenString == "" {
			common.ErrorResponse(c, http.StatusUnauthorized, "Missing authorization header", nil)
			c.Abort()
			return
		}

		claims, err := jwtManager.VerifyToken(tokenString)
		if err != nil {
			if errors.Is(err, jwt.ErrExpiredToken) {
				common.ErrorResponse(c, http.StatusUnauthorized, "Token expired", err)
			} else {
				common.ErrorResponse(c, http.StatusUnauthorized, "Invalid token", err)
			}
			c.Abort()
			return
		}

		setClaims(c, claims)
		c.Next()
	}
}

// OptionalAuth resolves the caller when a valid token is present and lets
// anonymous requests through otherwise
func OptionalAuth(jwtManager *jwt.Manager, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := extractToken(c, cookieName)
		if err == nil && tokenString != "" {
			if claims, err := jwtManager.VerifyToken(tokenString); err == nil {
				setClaims(c, claims)
			}
		}
		c.Next()
	}
}

func extractToken(c *gin.Context, cookieName string) (string, error) {
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return "", errInvalidAuthHeader
		}
		return parts[1], nil
	}
	if cookieName != "" {
		if cookie, err := c.Cookie(cookieName); err == nil {
			return cookie, nil
		}
	}
	return "", nil
}

func setClaims(c *gin.Context, claims *jwt.Claims) {
	role := claims.Role
	if role == "" {
		role = domain.RoleUser
	}
	c.Set(ctxUserID, claims.UserID)
	c.Set(ctxNickname, claims.Nickname)
	c.Set(ctxRole, role)
}

// GetUserID extracts user ID from context
func GetUserID(c *gin.Context) string {
	return getString(c, ctxUserID)
}

// GetRole extracts the user role from context
func GetRole(c *gin.Context) string {
	return getString(c, ctxRole)
}

// GetNickname extracts nickname from context
func GetNickname(c *gin.Context) string {
	return getString(c, ctxNickname)
}

// GetActor returns the caller identity; anonymous requests yield a zero Actor
func GetActor(c *gin.Context) domain.Actor {
	return domain.Actor{UserID: GetUserID(c), Role: GetRole(c)}
}

func getString(c *gin.Context, key string) string {
	v, exists := c.Get(key)
	if !exists {
		return ""
	}
	if str, ok := v.(string); ok {
		return str
	}
	return ""
}
