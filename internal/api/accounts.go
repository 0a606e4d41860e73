package api

import (
	"net/http"
	"time"

	"gallery-store/internal/service"

	"github.com/gin-gonic/gin"
)

func (h *Handler) register(c *gin.Context) {
	var req service.CredentialsRequest
	if err := bindJSON(c, &req); err != nil {
		h.respondError(c, err)
		return
	}

	session, err := h.svc.Users.Register(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.setSessionCookie(c, session)
	c.JSON(http.StatusCreated, session)
}

func (h *Handler) login(c *gin.Context) {
	var req service.CredentialsRequest
	if err := bindJSON(c, &req); err != nil {
		h.respondError(c, err)
		return
	}

	session, err := h.svc.Users.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.setSessionCookie(c, session)
	c.JSON(http.StatusOK, session)
}

func (h *Handler) logout(c *gin.Context) {
	if token := sessionToken(c); token != "" {
		if err := h.svc.Users.Logout(c.Request.Context(), token); err != nil {
			h.respondError(c, err)
			return
		}
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sessionCookie, "", -1, "/", "", h.opts.CookieSecure, true)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) currentUser(c *gin.Context) {
	c.JSON(http.StatusOK, authUser(c))
}

func (h *Handler) setSessionCookie(c *gin.Context, session *service.Session) {
	maxAge := int(time.Until(session.ExpiresAt).Seconds())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sessionCookie, session.Token, maxAge, "/", "", h.opts.CookieSecure, true)
}
