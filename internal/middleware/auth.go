package middleware

import (
	"strings"

	"github.com/lostmedia/interaction-service/internal/logger"
	"github.com/lostmedia/interaction-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// UserIDKey is the gin context key holding the authenticated user id.
const UserIDKey = "userID"

// Auth verifies the bearer token issued by the auth service and stores the caller's id.
func Auth(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			util.Unauthorized(c, "Authorization header required")
			c.Abort()
			return
		}
		if authenticate(c, jwtSecret) {
			c.Next()
		}
	}
}

// OptionalAuth lets anonymous requests through. A request that does send a token must
// send a valid one.
func OptionalAuth(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			c.Next()
			return
		}
		if authenticate(c, jwtSecret) {
			c.Next()
		}
	}
}

// authenticate validates the Authorization header, aborting with 401 on failure.
func authenticate(c *gin.Context, jwtSecret string) bool {
	parts := strings.Split(c.GetHeader("Authorization"), " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		util.Unauthorized(c, "Invalid authorization header format")
		c.Abort()
		return false
	}

	claims, err := util.ValidateToken(parts[1], jwtSecret)
	if err != nil {
		logger.For(c.Request.Context()).WithError(err).Debug("rejected token")
		util.Unauthorized(c, "Invalid or expired token")
		c.Abort()
		return false
	}

	c.Set(UserIDKey, claims.UserID)
	c.Request = c.Request.WithContext(logger.NewContextWithLogger(c.Request.Context(), logrus.Fields{
		"user_id": claims.UserID,
	}))
	return true
}

// UserID returns the id set by Auth or OptionalAuth.
func UserID(c *gin.Context) (string, bool) {
	v, ok := c.Get(UserIDKey)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}
