package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"relayengine/auth"
	"relayengine/internal/web/middleware"
	"relayengine/internal/web/models"
)

// Authenticator issues and revokes operator tokens
type Authenticator interface {
	Login(ctx context.Context, username, password string) (string, error)
	Register(ctx context.Context, username, password, email string) (string, error)
	Logout(ctx context.Context, token string) error
}

func RegisterAuthRoutes(router *gin.Engine, authModule Authenticator, middlewareManager *middleware.MiddlewareManager, agentID string) {
	r := router.Group("/auth")
	{
		r.POST("/login", func(c *gin.Context) {
			var loginRequest models.LoginRequest
			if err := c.ShouldBindJSON(&loginRequest); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
				return
			}
			token, err := authModule.Login(c.Request.Context(), loginRequest.Username, loginRequest.Password)
			if err != nil {
				c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, gin.H{"token": token, "agent_id": agentID})
		})

		r.POST("/register", func(c *gin.Context) {
			var registerRequest models.RegisterRequest
			if err := c.ShouldBindJSON(&registerRequest); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
				return
			}
			token, err := authModule.Register(c.Request.Context(), registerRequest.Username, registerRequest.Password, registerRequest.Email)
			if err != nil {
				status := http.StatusBadRequest
				if !errors.Is(err, auth.ErrWeakPassword) {
					status = http.StatusConflict
				}
				c.JSON(status, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusCreated, gin.H{"token": token, "agent_id": agentID})
		})

		r.POST("/logout", middlewareManager.RequireAuth(), func(c *gin.Context) {
			if err := authModule.Logout(c.Request.Context(), c.GetHeader("Authorization")); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to log out"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"status": "Logged out"})
		})
	}
}
