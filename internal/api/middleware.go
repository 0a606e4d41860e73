package api

import (
	"errors"
	"net/http"
	"strings"

	"gallery-store/internal/auth"
	"gallery-store/internal/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	sessionCookie = "session"
	userKey       = "user"
)

// sessionToken reads the bearer token, falling back to the session cookie
func sessionToken(c *gin.Context) string {
	if ah := c.GetHeader("Authorization"); strings.HasPrefix(ah, "Bearer ") {
		return strings.TrimPrefix(ah, "Bearer ")
	}
	if v, err := c.Cookie(sessionCookie); err == nil {
		return v
	}
	return ""
}

// loadUser resolves the session of the request. It returns nil, nil when there is no
// valid session.
func (h *Handler) loadUser(c *gin.Context) (*models.User, error) {
	if v, ok := c.Get(userKey); ok {
		return v.(*models.User), nil
	}

	token := sessionToken(c)
	if token == "" {
		return nil, nil
	}

	user, err := h.svc.Users.Authenticate(c.Request.Context(), token)
	if errors.Is(err, auth.ErrInvalidToken) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	c.Set(userKey, user)
	return user, nil
}

// gate aborts unless allow accepts the authenticated user
func (h *Handler) gate(allow func(*models.User) bool, forbidden string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := h.loadUser(c)
		if err != nil {
			h.respondError(c, err)
			c.Abort()
			return
		}
		if user == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Message: "Unauthorized"})
			return
		}
		if !allow(user) {
			c.AbortWithStatusJSON(http.StatusForbidden, errorResponse{Message: forbidden})
			return
		}
		c.Next()
	}
}

func (h *Handler) requireAuth() gin.HandlerFunc {
	return h.gate(func(*models.User) bool { return true }, "")
}

func (h *Handler) requireAdmin() gin.HandlerFunc {
	return h.gate(func(u *models.User) bool { return u.IsAdmin }, "Admin access required")
}

func (h *Handler) requireShopper() gin.HandlerFunc {
	return h.gate(func(u *models.User) bool { return !u.IsAdmin }, "Admins cannot shop")
}

// authUser returns the user stored by the auth gates
func authUser(c *gin.Context) *models.User {
	return c.MustGet(userKey).(*models.User)
}

// rateLimit limits requests per client IP
func (h *Handler) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.limiter == nil {
			c.Next()
			return
		}

		allowed, err := h.limiter.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			h.logger.Warn("Rate limiter failed", zap.Error(err))
			c.Next()
			return
		}
		if !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errorResponse{Message: "Too many requests"})
			return
		}
		c.Next()
	}
}
