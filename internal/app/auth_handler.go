package app

import (
	"log"
	"net/http"

	"postboard/internal/middleware"
	"postboard/internal/service"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	authService service.AuthService
}

func NewAuthHandler(authService service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// Register handles user registration
// POST /register/
func (h *AuthHandler) Register(c *gin.Context) {
	var req service.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	user, err := h.authService.Register(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": user.ID, "username": user.Username})
}

// Login handles user login, issuing a token and a session cookie. Writes made
// with the cookie alone must send csrf_token in X-CSRF-Token.
// POST /login/
func (h *AuthHandler) Login(c *gin.Context) {
	var req service.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	user, token, err := h.authService.Login(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	session := sessions.Default(c)
	session.Set(middleware.SessionUserKey, user.ID)
	csrfToken := middleware.IssueCSRFToken(session)
	if err := session.Save(); err != nil {
		log.Printf("Failed to save session for user %d: %v", user.ID, err)
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"csrf_token": csrfToken,
		"user":       gin.H{"id": user.ID, "username": user.Username},
	})
}

// Logout clears the session cookie
// POST /logout/
func (h *AuthHandler) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Options(sessions.Options{Path: "/", MaxAge: -1})
	if err := session.Save(); err != nil {
		log.Printf("Failed to clear session: %v", err)
	}
	c.Status(http.StatusNoContent)
}
